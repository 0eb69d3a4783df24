package session

import (
	"context"
	"time"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/fact"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
)

// Turn is one month advance as reported by the simulation, already parsed at
// the boundary.
type Turn struct {
	Frame  *world.Frame
	Events []fact.RawEvent
	// UnreadCount is the simulation's unread event figure, nil when absent.
	UnreadCount *int
}

// Simulation is the external service that owns the world.
type Simulation interface {
	AdvanceTurn(ctx context.Context) (Turn, error)
	LoadFrame(ctx context.Context) (*world.Frame, error)
}

// Archive persists notifications beyond the in-memory inbox. Failures are
// logged and never fail a tick.
type Archive interface {
	Append(ctx context.Context, sessionID string, batch []notification.Notification) error
}

// Metrics receives pipeline measurements. A nil Metrics records nothing.
type Metrics interface {
	ObserveAdvance(outcome string, elapsed time.Duration)
	CountFact(kind string)
	CountIngested(priority string)
	CountDuplicates(n int)
	CountEvicted(n int)
	CountToasts(n int)
	CountBreaking()
	SetUnread(n int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveAdvance(string, time.Duration) {}
func (noopMetrics) CountFact(string)                     {}
func (noopMetrics) CountIngested(string)                 {}
func (noopMetrics) CountDuplicates(int)                  {}
func (noopMetrics) CountEvicted(int)                     {}
func (noopMetrics) CountToasts(int)                      {}
func (noopMetrics) CountBreaking()                       {}
func (noopMetrics) SetUnread(int)                        {}
