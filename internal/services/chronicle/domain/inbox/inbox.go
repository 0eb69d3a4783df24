// Package inbox stores notifications for the player with deduplication,
// retention and a monotonic read lifecycle.
package inbox

import (
	"errors"
	"sync"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
)

// DefaultRetention is the number of notifications kept before eviction.
const DefaultRetention = 100

// ErrNotFound indicates an id the store does not hold.
var ErrNotFound = errors.New("notification not found")

// Option configures a Store.
type Option func(*Store)

// WithRetention sets the retention cap. Non-positive values keep the default.
func WithRetention(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.retention = n
		}
	}
}

// WithSeenCapacity bounds how many accepted ids are remembered for
// deduplication after they leave the store.
func WithSeenCapacity(n int) Option {
	return func(s *Store) {
		if n > 0 {
			s.seenCapacity = n
		}
	}
}

// Store is safe for concurrent use.
type Store struct {
	mu           sync.Mutex
	retention    int
	seenCapacity int
	order        []string // oldest first
	items        map[string]*notification.Notification
	seen         *seenSet
}

// New returns an empty store.
func New(opts ...Option) *Store {
	s := &Store{retention: DefaultRetention}
	for _, opt := range opts {
		opt(s)
	}
	if s.seenCapacity < s.retention*10 {
		s.seenCapacity = s.retention * 10
	}
	s.items = make(map[string]*notification.Notification)
	s.seen = newSeenSet(s.seenCapacity)
	return s
}

// Stats describes what one ingestion did besides inserting.
type Stats struct {
	Duplicates int
	Evicted    int
}

// Ingest inserts notifications whose id the store has not seen before and
// returns the ones that were inserted and survived retention, in batch order.
// Duplicates are ignored silently.
func (s *Store) Ingest(batch []notification.Notification) []notification.Notification {
	inserted, _ := s.IngestWithStats(batch)
	return inserted
}

// IngestWithStats is Ingest that also reports duplicates and evictions.
func (s *Store) IngestWithStats(batch []notification.Notification) ([]notification.Notification, Stats) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var stats Stats
	var inserted []string
	for _, n := range batch {
		if n.ID == "" {
			continue
		}
		if s.items[n.ID] != nil || s.seen.Seen(n.ID) {
			stats.Duplicates++
			continue
		}
		stored := n
		stored.CountryIDs = append([]string(nil), n.CountryIDs...)
		s.items[n.ID] = &stored
		s.order = append(s.order, n.ID)
		s.seen.Mark(n.ID)
		inserted = append(inserted, n.ID)
	}
	stats.Evicted = s.evictLocked()

	var out []notification.Notification
	for _, id := range inserted {
		if n, ok := s.items[id]; ok {
			out = append(out, *n)
		}
	}
	return out, stats
}

// evictLocked drops the oldest non-critical notification until the store is
// within retention, falling back to the oldest overall.
func (s *Store) evictLocked() int {
	evicted := 0
	for len(s.order) > s.retention {
		victim := -1
		for i, id := range s.order {
			if s.items[id].Priority != notification.PriorityCritical {
				victim = i
				break
			}
		}
		if victim < 0 {
			victim = 0
		}
		delete(s.items, s.order[victim])
		s.order = append(s.order[:victim], s.order[victim+1:]...)
		evicted++
	}
	return evicted
}

// MarkRead marks one notification read. Read state never reverts.
func (s *Store) MarkRead(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	n.Read = true
	return nil
}

// MarkAllRead marks every notification read and returns how many changed.
func (s *Store) MarkAllRead() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	changed := 0
	for _, n := range s.items {
		if !n.Read {
			n.Read = true
			changed++
		}
	}
	return changed
}

// Dismiss hides a notification from every view.
func (s *Store) Dismiss(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return ErrNotFound
	}
	n.Dismissed = true
	return nil
}

// ClearAll removes every notification. Their ids stay known, so a later
// re-ingest of the same batch does not bring them back.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.items = make(map[string]*notification.Notification)
}

// Reset forgets everything, including which ids were seen.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = nil
	s.items = make(map[string]*notification.Notification)
	s.seen = newSeenSet(s.seenCapacity)
}

// Filter returns the notifications visible in mode, newest first.
func (s *Store) Filter(mode notification.FilterMode) []notification.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notification.Notification
	for i := len(s.order) - 1; i >= 0; i-- {
		n := s.items[s.order[i]]
		if mode.Matches(*n) {
			out = append(out, *n)
		}
	}
	return out
}

// Get returns a copy of one notification.
func (s *Store) Get(id string) (notification.Notification, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.items[id]
	if !ok {
		return notification.Notification{}, false
	}
	return *n, true
}

// Len returns how many notifications are held, dismissed ones included.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

// UnreadCount counts notifications that are neither read nor dismissed.
func (s *Store) UnreadCount() int {
	return s.count(func(n *notification.Notification) bool { return !n.Read && !n.Dismissed })
}

// CriticalUnreadCount counts unread critical notifications.
func (s *Store) CriticalUnreadCount() int {
	return s.count(func(n *notification.Notification) bool {
		return !n.Read && !n.Dismissed && n.Priority == notification.PriorityCritical
	})
}

func (s *Store) count(match func(*notification.Notification) bool) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, n := range s.items {
		if match(n) {
			total++
		}
	}
	return total
}
