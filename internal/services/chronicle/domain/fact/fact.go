// Package fact defines the per-tick facts the diff engine emits and the
// validated raw events it folds in.
package fact

import (
	"fmt"
	"hash/fnv"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
)

// Kind tags a Fact variant.
type Kind string

const (
	KindDominationChange     Kind = "domination_change"
	KindContestationStarted  Kind = "contestation_started"
	KindContestationResolved Kind = "contestation_resolved"
	KindInfluenceSwing       Kind = "influence_swing"
	KindSourcedEvent         Kind = "sourced_event"
)

// SwingThreshold is the smallest absolute influence change reported as a swing.
const SwingThreshold = 15

// Fact is one detected difference between frames, or one recognized event.
// Facts are computed per tick and never stored.
type Fact interface {
	Kind() Kind
	// Key identifies the fact independently of the tick it was seen on.
	Key() string
}

// DominationChange reports a zone changing hands. Either power may be empty.
type DominationChange struct {
	ZoneID        string
	ZoneName      string
	PreviousPower world.PowerID
	NewPower      world.PowerID
}

func (DominationChange) Kind() Kind    { return KindDominationChange }
func (f DominationChange) Key() string { return "dom-" + f.ZoneID }

// ContestationStarted groups every power that began contesting a zone this tick.
type ContestationStarted struct {
	ZoneID     string
	ZoneName   string
	Contesters world.PowerSet
}

func (ContestationStarted) Kind() Kind    { return KindContestationStarted }
func (f ContestationStarted) Key() string { return "cst-" + f.ZoneID }

// ContestationResolved groups every power that stopped contesting a zone now
// held by Controller.
type ContestationResolved struct {
	ZoneID           string
	ZoneName         string
	FormerContesters world.PowerSet
	Controller       world.PowerID
}

func (ContestationResolved) Kind() Kind    { return KindContestationResolved }
func (f ContestationResolved) Key() string { return "crs-" + f.ZoneID }

// InfluenceSwing reports a power's influence in a zone moving by at least
// SwingThreshold points. Positive Delta is a surge, negative a collapse.
type InfluenceSwing struct {
	ZoneID   string
	ZoneName string
	Power    world.PowerID
	Delta    int
}

func (InfluenceSwing) Kind() Kind    { return KindInfluenceSwing }
func (f InfluenceSwing) Key() string { return fmt.Sprintf("swg-%s-%s", f.ZoneID, f.Power) }

// Surge reports whether the swing is an increase.
func (f InfluenceSwing) Surge() bool { return f.Delta > 0 }

// SourcedEvent is a simulation event whose raw type the catalog recognizes.
type SourcedEvent struct {
	EventID     string
	RawType     string
	Title       string
	Description string
	CountryIDs  []string
	ZoneID      string
}

func (SourcedEvent) Kind() Kind { return KindSourcedEvent }

// Key uses the service's event id when present. Without one it hashes the
// type and title; the classifier then scopes the key to the tick.
func (f SourcedEvent) Key() string {
	if f.EventID != "" {
		return "evt-" + f.EventID
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(f.RawType))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(f.Title))
	return fmt.Sprintf("evt-%s-%08x", f.RawType, h.Sum32())
}

// FromEvent lifts a validated raw event into a SourcedEvent fact.
func FromEvent(ev RawEvent) SourcedEvent {
	return SourcedEvent{
		EventID:     ev.ID,
		RawType:     ev.Type,
		Title:       ev.Title,
		Description: ev.Description,
		CountryIDs:  append([]string(nil), ev.CountryIDs...),
		ZoneID:      ev.ZoneID,
	}
}
