// Package notification defines the user-facing record derived from a fact.
package notification

import (
	"errors"
	"strings"
	"time"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
)

// ErrUnknownFilterMode indicates a filter mode outside all|important|unread.
var ErrUnknownFilterMode = errors.New("unknown notification filter mode")

// Priority ranks notifications for display and alerting.
type Priority string

const (
	PriorityCritical Priority = "critical"
	PriorityHigh     Priority = "high"
	PriorityMedium   Priority = "medium"
	PriorityLow      Priority = "low"
)

// Rank orders priorities, critical highest. Unknown priorities rank lowest.
func (p Priority) Rank() int {
	switch p {
	case PriorityCritical:
		return 4
	case PriorityHigh:
		return 3
	case PriorityMedium:
		return 2
	case PriorityLow:
		return 1
	default:
		return 0
	}
}

// Important reports whether p is critical or high.
func (p Priority) Important() bool {
	return p == PriorityCritical || p == PriorityHigh
}

// ParsePriority accepts a priority name in any case.
func ParsePriority(raw string) (Priority, bool) {
	p := Priority(strings.ToLower(strings.TrimSpace(raw)))
	if p.Rank() == 0 {
		return "", false
	}
	return p, true
}

// Type is the notification category shown to the player.
type Type string

// Snapshot-derived types.
const (
	TypeDominationChange     Type = "domination_change"
	TypeContestationStarted  Type = "contestation_started"
	TypeContestationResolved Type = "contestation_resolved"
	TypeInfluenceSurge       Type = "influence_surge"
	TypeInfluenceCollapse    Type = "influence_collapse"
)

// Event-derived types.
const (
	TypeWar        Type = "war"
	TypePeace      Type = "peace"
	TypeCrisis     Type = "crisis"
	TypeCoup       Type = "coup"
	TypeNuclear    Type = "nuclear"
	TypeAttack     Type = "attack"
	TypeSanctions  Type = "sanctions"
	TypeAlliance   Type = "alliance"
	TypeTreaty     Type = "treaty"
	TypeElection   Type = "election"
	TypeRevolution Type = "revolution"
	TypeDisaster   Type = "disaster"
	TypeEconomy    Type = "economy"
)

// Display carries presentation hints resolved from the catalog.
type Display struct {
	Icon     string `json:"icon"`
	Sound    string `json:"sound,omitempty"`
	Animated bool   `json:"animated"`
	// Alerting lets a high-priority notification become a toast.
	Alerting bool `json:"alerting"`
}

// Notification is one inbox entry.
type Notification struct {
	ID         string        `json:"id"`
	Type       Type          `json:"type"`
	Title      string        `json:"title"`
	Message    string        `json:"message"`
	Timestamp  time.Time     `json:"timestamp"`
	Priority   Priority      `json:"priority"`
	ZoneID     string        `json:"zone_id,omitempty"`
	CountryIDs []string      `json:"country_ids,omitempty"`
	Read       bool          `json:"read"`
	Dismissed  bool          `json:"dismissed"`
	RawType    string        `json:"raw_type,omitempty"`
	Date       calendar.Date `json:"date"`
	Display
}

// FilterMode selects an inbox view.
type FilterMode string

const (
	FilterAll       FilterMode = "all"
	FilterImportant FilterMode = "important"
	FilterUnread    FilterMode = "unread"
)

// ParseFilterMode validates a mode, treating blank as all.
func ParseFilterMode(raw string) (FilterMode, error) {
	switch mode := FilterMode(strings.ToLower(strings.TrimSpace(raw))); mode {
	case "":
		return FilterAll, nil
	case FilterAll, FilterImportant, FilterUnread:
		return mode, nil
	default:
		return "", ErrUnknownFilterMode
	}
}

// Matches reports whether n belongs in the view selected by mode.
func (mode FilterMode) Matches(n Notification) bool {
	if n.Dismissed {
		return false
	}
	switch mode {
	case FilterImportant:
		return n.Priority.Important()
	case FilterUnread:
		return !n.Read
	default:
		return true
	}
}
