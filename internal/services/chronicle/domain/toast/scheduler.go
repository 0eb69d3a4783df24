// Package toast promotes urgent notifications to short-lived toasts and
// selects at most one breaking-news bulletin per tick.
package toast

import (
	"errors"
	"sync"
	"time"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/catalog"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
)

const (
	DefaultMaxToasts        = 5
	DefaultToastDuration    = 8 * time.Second
	DefaultBreakingDuration = 8 * time.Second
)

// ErrNotActive indicates a toast id that is not currently shown.
var ErrNotActive = errors.New("toast not active")

// ReadMarker marks notifications read when their toast leaves the screen.
type ReadMarker interface {
	MarkRead(id string) error
}

// Ranker reports the breaking-news escalation rank of a raw event type.
// Zero means the type never escalates.
type Ranker interface {
	EscalationRank(rawType string) int
}

// Entry is one visible toast.
type Entry struct {
	Notification notification.Notification `json:"notification"`
	ExpiresAt    time.Time                 `json:"expires_at"`
}

// Bulletin is the breaking-news interstitial.
type Bulletin struct {
	Notification notification.Notification `json:"notification"`
	ExpiresAt    time.Time                 `json:"expires_at"`
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMaxToasts caps concurrent toasts.
func WithMaxToasts(n int) Option {
	return func(s *Scheduler) {
		if n > 0 {
			s.maxToasts = n
		}
	}
}

// WithToastDuration sets how long a toast stays visible.
func WithToastDuration(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.toastDuration = d
		}
	}
}

// WithBreakingDuration sets how long a bulletin stays visible.
func WithBreakingDuration(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.breakingDuration = d
		}
	}
}

// WithRanker replaces the default catalog's escalation ranks.
func WithRanker(r Ranker) Option {
	return func(s *Scheduler) {
		if r != nil {
			s.ranker = r
		}
	}
}

// WithOnChange registers a callback run after a timer removes a toast or
// bulletin. It runs outside the scheduler lock.
func WithOnChange(fn func()) Option {
	return func(s *Scheduler) { s.onChange = fn }
}

type activeToast struct {
	entry  Entry
	cancel func()
}

type activeBulletin struct {
	bulletin Bulletin
	cancel   func()
}

// Scheduler is safe for concurrent use. Timer callbacks only remove their own
// entry; they never touch entries scheduled after them.
type Scheduler struct {
	reader           ReadMarker
	clock            Clock
	ranker           Ranker
	onChange         func()
	maxToasts        int
	toastDuration    time.Duration
	breakingDuration time.Duration

	mu       sync.Mutex
	toasts   []*activeToast
	breaking *activeBulletin
	closed   bool
}

// NewScheduler builds a scheduler that marks expired toasts read through
// reader. A nil clock uses SystemClock.
func NewScheduler(reader ReadMarker, clock Clock, opts ...Option) *Scheduler {
	if clock == nil {
		clock = SystemClock{}
	}
	s := &Scheduler{
		reader:           reader,
		clock:            clock,
		ranker:           catalog.Default(),
		maxToasts:        DefaultMaxToasts,
		toastDuration:    DefaultToastDuration,
		breakingDuration: DefaultBreakingDuration,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Qualifies reports whether n becomes a toast: every critical notification,
// and high ones whose type is alerting.
func Qualifies(n notification.Notification) bool {
	switch n.Priority {
	case notification.PriorityCritical:
		return true
	case notification.PriorityHigh:
		return n.Alerting
	default:
		return false
	}
}

// OnIngest promotes qualifying notifications from one ingestion batch and
// returns the toasts it scheduled. Anything beyond the concurrent cap is
// dropped from the toast queue only.
func (s *Scheduler) OnIngest(batch []notification.Notification) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}

	var scheduled []Entry
	for _, n := range batch {
		if !Qualifies(n) || s.activeIndexLocked(n.ID) >= 0 {
			continue
		}
		if len(s.toasts) >= s.maxToasts {
			continue
		}
		active := &activeToast{entry: Entry{Notification: n, ExpiresAt: s.clock.Now().Add(s.toastDuration)}}
		active.cancel = s.clock.AfterFunc(s.toastDuration, func() { s.expire(active) })
		s.toasts = append(s.toasts, active)
		scheduled = append(scheduled, active.entry)
	}
	return scheduled
}

func (s *Scheduler) expire(active *activeToast) {
	s.mu.Lock()
	removed := s.removeLocked(active)
	s.mu.Unlock()
	if !removed {
		return
	}
	s.markRead(active.entry.Notification.ID)
	s.changed()
}

// Dismiss removes a visible toast and marks its notification read.
func (s *Scheduler) Dismiss(id string) error {
	s.mu.Lock()
	i := s.activeIndexLocked(id)
	if i < 0 {
		s.mu.Unlock()
		return ErrNotActive
	}
	active := s.toasts[i]
	active.cancel()
	s.removeLocked(active)
	s.mu.Unlock()

	s.markRead(id)
	return nil
}

// Active returns the visible toasts, oldest first.
func (s *Scheduler) Active() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Entry, 0, len(s.toasts))
	for _, active := range s.toasts {
		out = append(out, active.entry)
	}
	return out
}

// Clear cancels every timer and empties the toast queue and the bulletin.
// Cleared toasts are not marked read.
func (s *Scheduler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

// Close clears the scheduler and makes further scheduling a no-op.
func (s *Scheduler) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
	s.closed = true
}

func (s *Scheduler) clearLocked() {
	for _, active := range s.toasts {
		active.cancel()
	}
	s.toasts = nil
	if s.breaking != nil {
		s.breaking.cancel()
		s.breaking = nil
	}
}

// Escalate picks at most one breaking-news bulletin from a batch: critical or
// high notifications whose raw type has an escalation rank, preferring the
// highest rank, then priority, then batch order. A new bulletin replaces the
// one on screen.
func (s *Scheduler) Escalate(batch []notification.Notification) (Bulletin, bool) {
	best := -1
	bestRank := 0
	for i, n := range batch {
		if !n.Priority.Important() || n.RawType == "" {
			continue
		}
		rank := s.ranker.EscalationRank(n.RawType)
		if rank <= 0 {
			continue
		}
		if best < 0 || rank > bestRank || (rank == bestRank && n.Priority.Rank() > batch[best].Priority.Rank()) {
			best, bestRank = i, rank
		}
	}
	if best < 0 {
		return Bulletin{}, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return Bulletin{}, false
	}
	if s.breaking != nil {
		s.breaking.cancel()
	}
	active := &activeBulletin{bulletin: Bulletin{
		Notification: batch[best],
		ExpiresAt:    s.clock.Now().Add(s.breakingDuration),
	}}
	active.cancel = s.clock.AfterFunc(s.breakingDuration, func() { s.expireBreaking(active) })
	s.breaking = active
	return active.bulletin, true
}

func (s *Scheduler) expireBreaking(active *activeBulletin) {
	s.mu.Lock()
	removed := s.breaking == active
	if removed {
		s.breaking = nil
	}
	s.mu.Unlock()
	if removed {
		s.changed()
	}
}

// Breaking returns the bulletin on screen, if any.
func (s *Scheduler) Breaking() (Bulletin, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.breaking == nil {
		return Bulletin{}, false
	}
	return s.breaking.bulletin, true
}

// DismissBreaking removes the bulletin. It reports whether one was showing.
func (s *Scheduler) DismissBreaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.breaking == nil {
		return false
	}
	s.breaking.cancel()
	s.breaking = nil
	return true
}

func (s *Scheduler) activeIndexLocked(id string) int {
	for i, active := range s.toasts {
		if active.entry.Notification.ID == id {
			return i
		}
	}
	return -1
}

func (s *Scheduler) removeLocked(target *activeToast) bool {
	for i, active := range s.toasts {
		if active == target {
			s.toasts = append(s.toasts[:i], s.toasts[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Scheduler) markRead(id string) {
	if s.reader == nil {
		return
	}
	// The notification may have been evicted or cleared; there is nothing
	// left to mark in that case.
	_ = s.reader.MarkRead(id)
}

func (s *Scheduler) changed() {
	if s.onChange != nil {
		s.onChange()
	}
}
