// Package catalog holds the static tables that map raw simulation event types
// and fact kinds to notification types, default priorities, display hints and
// breaking-news escalation ranks.
//
// Default returns the built-in tables; Load and Parse merge YAML overrides on
// top of them.
package catalog

import (
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/fact"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
)

// Escalation ranks. Higher wins when several events compete for breaking news.
const (
	EscalationNone     = 0
	EscalationMinor    = 1
	EscalationMajor    = 2
	EscalationSevere   = 3
	maxEscalationLevel = EscalationSevere
)

// EventKind is what the catalog knows about one raw event type.
type EventKind struct {
	Type       notification.Type
	Priority   notification.Priority
	Escalation int
}

// Catalog is immutable after construction and safe for concurrent use.
type Catalog struct {
	events   map[string]EventKind
	displays map[notification.Type]notification.Display
}

// Event resolves a normalized raw type. Unsupported types report false.
func (c *Catalog) Event(rawType string) (EventKind, bool) {
	if c == nil {
		return EventKind{}, false
	}
	kind, ok := c.events[fact.NormalizeType(rawType)]
	return kind, ok
}

// Supports reports whether rawType maps to a notification type.
func (c *Catalog) Supports(rawType string) bool {
	_, ok := c.Event(rawType)
	return ok
}

// EscalationRank returns the breaking-news rank for rawType, zero when the
// type is not on the escalation allow-list.
func (c *Catalog) EscalationRank(rawType string) int {
	kind, ok := c.Event(rawType)
	if !ok {
		return EscalationNone
	}
	return kind.Escalation
}

// Display returns presentation hints for t, defaulting the icon to the type name.
func (c *Catalog) Display(t notification.Type) notification.Display {
	if c != nil {
		if d, ok := c.displays[t]; ok {
			return d
		}
	}
	return notification.Display{Icon: string(t)}
}

// RawTypes returns the number of supported raw types.
func (c *Catalog) RawTypes() int {
	if c == nil {
		return 0
	}
	return len(c.events)
}

func (c *Catalog) clone() *Catalog {
	out := &Catalog{
		events:   make(map[string]EventKind, len(c.events)),
		displays: make(map[notification.Type]notification.Display, len(c.displays)),
	}
	for k, v := range c.events {
		out.events[k] = v
	}
	for k, v := range c.displays {
		out.displays[k] = v
	}
	return out
}

// Default returns the built-in catalog.
func Default() *Catalog {
	c := &Catalog{
		events:   make(map[string]EventKind),
		displays: make(map[notification.Type]notification.Display),
	}
	add := func(t notification.Type, p notification.Priority, escalation int, rawTypes ...string) {
		for _, raw := range rawTypes {
			c.events[raw] = EventKind{Type: t, Priority: p, Escalation: escalation}
		}
	}

	add(notification.TypeWar, notification.PriorityCritical, EscalationSevere, "war", "declaration_of_war", "war_declared")
	add(notification.TypeNuclear, notification.PriorityCritical, EscalationSevere, "nuclear", "nuclear_test", "nuclear_launch", "nuclear_strike")
	// Escalation only considers critical and high notifications, so the attack
	// rank applies once an override raises its priority.
	add(notification.TypeAttack, notification.PriorityMedium, EscalationSevere, "attack", "military_attack", "strike", "terrorist_attack")
	add(notification.TypePeace, notification.PriorityHigh, EscalationNone, "peace", "ceasefire", "peace_treaty")
	add(notification.TypeCoup, notification.PriorityHigh, EscalationMajor, "coup", "coup_attempt")
	add(notification.TypeCrisis, notification.PriorityHigh, EscalationMajor, "crisis", "economic_crisis", "political_crisis")
	add(notification.TypeRevolution, notification.PriorityMedium, EscalationMinor, "revolution", "uprising")
	add(notification.TypeDisaster, notification.PriorityMedium, EscalationMinor, "disaster", "natural_disaster")
	add(notification.TypeSanctions, notification.PriorityMedium, EscalationMinor, "sanctions", "embargo")
	add(notification.TypeAlliance, notification.PriorityMedium, EscalationNone, "alliance", "alliance_formed")
	add(notification.TypeTreaty, notification.PriorityMedium, EscalationNone, "treaty", "trade_agreement")
	add(notification.TypeElection, notification.PriorityMedium, EscalationNone, "election")
	add(notification.TypeEconomy, notification.PriorityMedium, EscalationNone, "economy", "economic", "trade_deal")

	display := func(t notification.Type, icon, sound string, animated, alerting bool) {
		c.displays[t] = notification.Display{Icon: icon, Sound: sound, Animated: animated, Alerting: alerting}
	}
	display(notification.TypeDominationChange, "flag", "shift", true, true)
	display(notification.TypeContestationStarted, "contest", "", false, false)
	display(notification.TypeContestationResolved, "settled", "", false, false)
	display(notification.TypeInfluenceSurge, "trend-up", "", false, false)
	display(notification.TypeInfluenceCollapse, "trend-down", "warning", true, true)
	display(notification.TypeWar, "war", "alarm", true, true)
	display(notification.TypeNuclear, "radiation", "siren", true, true)
	display(notification.TypeAttack, "explosion", "impact", true, true)
	display(notification.TypePeace, "dove", "chime", false, false)
	display(notification.TypeCoup, "coup", "alarm", true, true)
	display(notification.TypeCrisis, "crisis", "warning", true, true)
	display(notification.TypeRevolution, "revolution", "", true, false)
	display(notification.TypeDisaster, "disaster", "", true, false)
	display(notification.TypeSanctions, "sanctions", "", false, false)
	display(notification.TypeAlliance, "alliance", "", false, false)
	display(notification.TypeTreaty, "treaty", "", false, false)
	display(notification.TypeElection, "ballot", "", false, false)
	display(notification.TypeEconomy, "economy", "", false, false)
	return c
}
