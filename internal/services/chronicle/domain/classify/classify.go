// Package classify turns facts into notifications with deterministic ids,
// priorities, display hints and localized copy.
package classify

import (
	"strconv"
	"time"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/catalog"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/fact"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
	"github.com/louisbranch/statecraft/internal/services/chronicle/render"
)

// Context carries the caller-supplied inputs classification must not compute
// itself.
type Context struct {
	// Tick is the month whose advance produced the fact.
	Tick      calendar.Date
	Timestamp time.Time
}

// Classifier is stateless; the zero value uses the default catalog and
// English copy.
type Classifier struct {
	Catalog   *catalog.Catalog
	Localizer render.Localizer
	// ObservedPower is the player's power. Collapses in its influence are
	// raised to high priority.
	ObservedPower world.PowerID
}

// Classify maps one fact to a notification. Classifying the same fact with
// the same tick always yields the same content apart from Timestamp.
func (c Classifier) Classify(f fact.Fact, ctx Context) notification.Notification {
	cat := c.Catalog
	if cat == nil {
		cat = catalog.Default()
	}

	n := notification.Notification{
		ID:        ID(f, ctx.Tick),
		Timestamp: ctx.Timestamp,
		Date:      ctx.Tick,
		Priority:  notification.PriorityMedium,
	}

	switch v := f.(type) {
	case fact.DominationChange:
		n.Type = notification.TypeDominationChange
		n.Priority = notification.PriorityHigh
		n.ZoneID = v.ZoneID
	case fact.ContestationStarted:
		n.Type = notification.TypeContestationStarted
		n.Priority = notification.PriorityMedium
		n.ZoneID = v.ZoneID
	case fact.ContestationResolved:
		n.Type = notification.TypeContestationResolved
		n.Priority = notification.PriorityLow
		n.ZoneID = v.ZoneID
	case fact.InfluenceSwing:
		n.ZoneID = v.ZoneID
		if v.Surge() {
			n.Type = notification.TypeInfluenceSurge
		} else {
			n.Type = notification.TypeInfluenceCollapse
			if c.ObservedPower != "" && v.Power == c.ObservedPower {
				n.Priority = notification.PriorityHigh
			}
		}
	case fact.SourcedEvent:
		n.RawType = v.RawType
		n.ZoneID = v.ZoneID
		n.CountryIDs = append([]string(nil), v.CountryIDs...)
		n.Type = notification.Type(v.RawType)
		if kind, ok := cat.Event(v.RawType); ok {
			n.Type = kind.Type
			n.Priority = kind.Priority
		}
	default:
		n.Type = notification.Type(f.Kind())
	}

	text := render.Fact(c.Localizer, f)
	n.Title = text.Title
	n.Message = text.Message
	n.Display = cat.Display(n.Type)
	return n
}

// ClassifyAll classifies facts in order.
func (c Classifier) ClassifyAll(facts []fact.Fact, ctx Context) []notification.Notification {
	if len(facts) == 0 {
		return nil
	}
	out := make([]notification.Notification, 0, len(facts))
	for _, f := range facts {
		out = append(out, c.Classify(f, ctx))
	}
	return out
}

// ID derives the notification id for f on tick. Events carrying a service id
// keep it as is; everything else is scoped to the tick's month index.
func ID(f fact.Fact, tick calendar.Date) string {
	if ev, ok := f.(fact.SourcedEvent); ok && ev.EventID != "" {
		return ev.Key()
	}
	return f.Key() + "-" + strconv.Itoa(tick.Index())
}
