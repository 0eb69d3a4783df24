// Package session owns one running game's chronicle state: snapshots,
// notifications, toasts and the timeline. It replaces a process-wide store
// with an explicit object the runtime creates and closes.
package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/louisbranch/statecraft/internal/platform/errors"
	"github.com/louisbranch/statecraft/internal/platform/id"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/catalog"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/classify"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/diff"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/inbox"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/snapshot"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/timeline"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/toast"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
	"github.com/louisbranch/statecraft/internal/services/chronicle/render"
)

const tracerName = "github.com/louisbranch/statecraft/internal/services/chronicle/domain/session"

// Config holds the tunables of one session.
type Config struct {
	ObservedPower    world.PowerID
	Retention        int
	MaxToasts        int
	ToastDuration    time.Duration
	BreakingDuration time.Duration
}

// Deps are the collaborators of one session. Simulation is required.
type Deps struct {
	Simulation Simulation
	Catalog    *catalog.Catalog
	Localizer  render.Localizer
	Clock      toast.Clock
	Archive    Archive
	Metrics    Metrics
}

// AdvanceResult is what one successful advance produced.
type AdvanceResult struct {
	Outcome       timeline.Outcome
	Notifications []notification.Notification
	Toasts        []toast.Entry
	Breaking      *toast.Bulletin
}

// Session is safe for concurrent use.
type Session struct {
	id         string
	sim        Simulation
	engine     diff.Engine
	classifier classify.Classifier
	clock      toast.Clock
	archive    Archive
	metrics    Metrics
	tracer     trace.Tracer

	snapshots *snapshot.Store
	inbox     *inbox.Store
	toasts    *toast.Scheduler
	timeline  *timeline.Controller
	observers observers

	mu     sync.Mutex
	closed bool
}

// New builds a session starting at calendar.Start. Call Bootstrap to load the
// simulation's current state.
func New(cfg Config, deps Deps) (*Session, error) {
	if deps.Simulation == nil {
		return nil, errors.New("session: simulation is required")
	}
	sessionID, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("session id: %w", err)
	}
	cat := deps.Catalog
	if cat == nil {
		cat = catalog.Default()
	}
	clock := deps.Clock
	if clock == nil {
		clock = toast.SystemClock{}
	}
	metrics := deps.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}

	s := &Session{
		id:         sessionID,
		sim:        deps.Simulation,
		engine:     diff.Engine{Catalog: cat},
		classifier: classify.Classifier{Catalog: cat, Localizer: deps.Localizer, ObservedPower: cfg.ObservedPower},
		clock:      clock,
		archive:    deps.Archive,
		metrics:    metrics,
		tracer:     otel.Tracer(tracerName),
		snapshots:  snapshot.NewStore(),
		inbox:      inbox.New(inbox.WithRetention(cfg.Retention)),
	}
	s.toasts = toast.NewScheduler(s.inbox, clock,
		toast.WithRanker(cat),
		toast.WithMaxToasts(cfg.MaxToasts),
		toast.WithToastDuration(cfg.ToastDuration),
		toast.WithBreakingDuration(cfg.BreakingDuration),
		toast.WithOnChange(s.publishToasts),
	)
	// Every advance goes through Session.Advance, which hands the timeline a
	// per-call advancer so the batch stays with the call that produced it.
	s.timeline = timeline.New(calendar.Start, nil)
	return s, nil
}

// ID identifies the session in archived rows.
func (s *Session) ID() string { return s.id }

// Bootstrap loads the simulation's current frame without deriving facts.
func (s *Session) Bootstrap(ctx context.Context) error {
	ctx, span := s.tracer.Start(ctx, "chronicle.bootstrap")
	defer span.End()

	frame, err := s.sim.LoadFrame(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "load frame")
		return apperrors.Wrap(apperrors.CodeSimulationUnavailable, "load world state", err)
	}
	s.snapshots.Seed(frame)
	s.timeline.Rebase(frame.Date)
	span.SetAttributes(attribute.String("chronicle.date", frame.Date.String()))

	st := s.timeline.State()
	s.observers.publish(Update{Kind: UpdateTimeline, Timeline: &st})
	return nil
}

// Advance moves the simulation forward one month. It is all-or-nothing: a
// failed simulation call changes nothing.
func (s *Session) Advance(ctx context.Context) (AdvanceResult, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return AdvanceResult{}, errors.New("session closed")
	}
	s.mu.Unlock()

	start := time.Now()
	var result AdvanceResult
	outcome, err := s.timeline.AdvanceWith(ctx, timeline.AdvancerFunc(func(ctx context.Context) (timeline.Outcome, error) {
		out, batch, err := s.runAdvance(ctx)
		result = batch
		return out, err
	}))
	if err != nil {
		s.metrics.ObserveAdvance(advanceOutcome(err), time.Since(start))
		return AdvanceResult{}, mapTimelineError(err)
	}
	s.metrics.ObserveAdvance("ok", time.Since(start))
	result.Outcome = outcome
	s.publishAdvance(result)
	return result, nil
}

// runAdvance derives and commits one month. The timeline guarantees at most
// one runs at a time.
func (s *Session) runAdvance(ctx context.Context) (timeline.Outcome, AdvanceResult, error) {
	ctx, span := s.tracer.Start(ctx, "chronicle.advance")
	defer span.End()

	turn, err := s.sim.AdvanceTurn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "advance turn")
		return timeline.Outcome{}, AdvanceResult{}, apperrors.Wrap(apperrors.CodeSimulationUnavailable, "advance month", err)
	}
	if turn.Frame == nil {
		err := errors.New("simulation returned no frame")
		span.SetStatus(codes.Error, err.Error())
		return timeline.Outcome{}, AdvanceResult{}, apperrors.Wrap(apperrors.CodeSimulationUnavailable, "advance month", err)
	}

	previous := s.snapshots.Current()
	facts := s.engine.Frames(previous, turn.Frame, turn.Events)
	notes := s.classifier.ClassifyAll(facts, classify.Context{Tick: turn.Frame.Date, Timestamp: s.clock.Now()})

	// Commit. Nothing below can fail the advance.
	s.snapshots.Replace(turn.Frame)
	inserted, stats := s.inbox.IngestWithStats(notes)
	scheduled := s.toasts.OnIngest(inserted)
	var breaking *toast.Bulletin
	if b, ok := s.toasts.Escalate(inserted); ok {
		breaking = &b
		s.metrics.CountBreaking()
	}
	s.archiveBatch(ctx, inserted)

	for _, f := range facts {
		s.metrics.CountFact(string(f.Kind()))
	}
	for _, n := range inserted {
		s.metrics.CountIngested(string(n.Priority))
	}
	s.metrics.CountDuplicates(stats.Duplicates)
	s.metrics.CountEvicted(stats.Evicted)
	s.metrics.CountToasts(len(scheduled))

	span.SetAttributes(
		attribute.String("chronicle.date", turn.Frame.Date.String()),
		attribute.Int("chronicle.facts", len(facts)),
		attribute.Int("chronicle.notifications", len(inserted)),
	)

	outcome := timeline.Outcome{
		Date:        turn.Frame.Date,
		UnreadCount: turn.UnreadCount,
		Events:      markers(inserted),
	}
	return outcome, AdvanceResult{Notifications: inserted, Toasts: scheduled, Breaking: breaking}, nil
}

func (s *Session) archiveBatch(ctx context.Context, batch []notification.Notification) {
	if s.archive == nil || len(batch) == 0 {
		return
	}
	if err := s.archive.Append(ctx, s.id, batch); err != nil {
		log.Printf("archive %d notifications: %v", len(batch), err)
	}
}

// markers turns sourced-event notifications into timeline markers.
func markers(batch []notification.Notification) []timeline.Marker {
	var out []timeline.Marker
	for _, n := range batch {
		if n.RawType == "" {
			continue
		}
		out = append(out, timeline.Marker{ID: n.ID, Type: n.Type, Title: n.Title, Priority: n.Priority})
	}
	return out
}

// GoBack views the previous month.
func (s *Session) GoBack() timeline.State {
	st := s.timeline.GoBack()
	s.observers.publish(Update{Kind: UpdateTimeline, Timeline: &st})
	return st
}

// GoForward views the next month, advancing when already live.
func (s *Session) GoForward(ctx context.Context) (timeline.State, error) {
	st, moved := s.timeline.StepForward()
	if !moved {
		if _, err := s.Advance(ctx); err != nil {
			return s.timeline.State(), err
		}
		return s.timeline.State(), nil
	}
	s.observers.publish(Update{Kind: UpdateTimeline, Timeline: &st})
	return st, nil
}

// MarkTimelineRead clears timeline markers; see timeline.Controller.MarkRead.
func (s *Session) MarkTimelineRead(ids ...string) int {
	changed := s.timeline.MarkRead(ids...)
	st := s.timeline.State()
	s.observers.publish(Update{Kind: UpdateTimeline, Timeline: &st})
	return changed
}

// SetPanelOpen records whether the timeline panel is on screen.
func (s *Session) SetPanelOpen(open bool) timeline.State {
	s.timeline.SetPanelOpen(open)
	st := s.timeline.State()
	s.observers.publish(Update{Kind: UpdateTimeline, Timeline: &st})
	return st
}

// Timeline exposes the timeline controller.
func (s *Session) Timeline() *timeline.Controller { return s.timeline }

// Notifications exposes the notification store.
func (s *Session) Notifications() *inbox.Store { return s.inbox }

// Toasts exposes the toast scheduler.
func (s *Session) Toasts() *toast.Scheduler { return s.toasts }

// Snapshot returns the current previous/current frame pair.
func (s *Session) Snapshot() snapshot.Pair { return s.snapshots.Pair() }

// MarkRead marks one notification read.
func (s *Session) MarkRead(id string) error {
	if err := s.inbox.MarkRead(id); err != nil {
		return notFound(id, err)
	}
	s.notificationsChanged()
	return nil
}

// MarkAllRead marks every notification read and returns how many changed.
func (s *Session) MarkAllRead() int {
	changed := s.inbox.MarkAllRead()
	if changed > 0 {
		s.notificationsChanged()
	}
	return changed
}

// Dismiss hides one notification.
func (s *Session) Dismiss(id string) error {
	if err := s.inbox.Dismiss(id); err != nil {
		return notFound(id, err)
	}
	s.notificationsChanged()
	return nil
}

// DismissToast removes a visible toast, marking its notification read.
func (s *Session) DismissToast(id string) error {
	if err := s.toasts.Dismiss(id); err != nil {
		return notFound(id, err)
	}
	s.refreshUnread()
	s.observers.publish(Update{Kind: UpdateToast, Toasts: s.toasts.Active()})
	return nil
}

// DismissBreaking removes the breaking-news bulletin.
func (s *Session) DismissBreaking() bool {
	if !s.toasts.DismissBreaking() {
		return false
	}
	s.observers.publish(Update{Kind: UpdateBreaking})
	return true
}

func (s *Session) notificationsChanged() {
	s.refreshUnread()
	s.observers.publish(Update{Kind: UpdateNotifications})
}

func (s *Session) refreshUnread() {
	s.metrics.SetUnread(s.inbox.UnreadCount())
}

func notFound(id string, err error) error {
	return apperrors.Wrap(apperrors.CodeNotificationNotFound, "notification "+id, err).WithMetadata("id", id)
}

// ClearAll empties the inbox and the toast queue.
func (s *Session) ClearAll() {
	s.inbox.ClearAll()
	s.toasts.Clear()
	s.refreshUnread()
	s.observers.publish(
		Update{Kind: UpdateNotifications},
		Update{Kind: UpdateToast},
		Update{Kind: UpdateBreaking},
	)
}

// Subscribe registers an observer and returns a function that removes it.
func (s *Session) Subscribe(fn Observer) func() {
	return s.observers.add(fn)
}

// Close cancels every pending timer. Further advances fail.
func (s *Session) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.toasts.Close()
}

func (s *Session) publishAdvance(result AdvanceResult) {
	st := s.timeline.State()
	s.refreshUnread()
	updates := []Update{{Kind: UpdateTimeline, Timeline: &st}}
	if len(result.Notifications) > 0 {
		updates = append(updates, Update{Kind: UpdateNotifications, Notifications: result.Notifications})
	}
	if len(result.Toasts) > 0 {
		updates = append(updates, Update{Kind: UpdateToast, Toasts: s.toasts.Active()})
	}
	if result.Breaking != nil {
		updates = append(updates, Update{Kind: UpdateBreaking, Breaking: result.Breaking})
	}
	s.observers.publish(updates...)
}

// publishToasts runs after a toast or bulletin timer fires.
func (s *Session) publishToasts() {
	s.refreshUnread()
	update := Update{Kind: UpdateBreaking}
	if b, ok := s.toasts.Breaking(); ok {
		update.Breaking = &b
	}
	s.observers.publish(
		Update{Kind: UpdateToast, Toasts: s.toasts.Active()},
		update,
	)
}

func mapTimelineError(err error) error {
	switch {
	case errors.Is(err, timeline.ErrNotLive):
		return apperrors.Wrap(apperrors.CodeTimelineNotLive, "advance", err)
	case errors.Is(err, timeline.ErrAdvanceInFlight):
		return apperrors.Wrap(apperrors.CodeAdvanceInFlight, "advance", err)
	default:
		return err
	}
}

func advanceOutcome(err error) string {
	switch apperrors.GetCode(err) {
	case apperrors.CodeSimulationUnavailable:
		return "simulation_error"
	case apperrors.CodeUnknown:
		if errors.Is(err, timeline.ErrNotLive) || errors.Is(err, timeline.ErrAdvanceInFlight) {
			return "rejected"
		}
		return "error"
	default:
		return "error"
	}
}
