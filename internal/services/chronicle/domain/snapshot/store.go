// Package snapshot keeps the previous and current world frames the diff
// engine compares on every tick.
package snapshot

import (
	"sync/atomic"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
)

// Pair is an immutable view of two consecutive frames. Previous is nil until
// the second frame arrives; Current is nil before any frame.
type Pair struct {
	Previous *world.Frame
	Current  *world.Frame
}

// Store publishes Pairs through an atomic pointer so readers always see a
// consistent previous/current combination.
type Store struct {
	pair atomic.Pointer[Pair]
}

// NewStore returns an empty store.
func NewStore() *Store {
	s := &Store{}
	s.pair.Store(&Pair{})
	return s
}

// Pair returns the current pair. Callers must not modify the frames.
func (s *Store) Pair() Pair {
	return *s.pair.Load()
}

// Current returns the latest frame, or nil.
func (s *Store) Current() *world.Frame {
	return s.pair.Load().Current
}

// Seed installs an initial frame without a previous one. Used for the first
// load before any advance, so no facts are derived from it.
func (s *Store) Seed(frame *world.Frame) {
	s.pair.Store(&Pair{Current: frame})
}

// Replace shifts the current frame to previous and installs next, returning
// the pair that was replaced.
func (s *Store) Replace(next *world.Frame) Pair {
	for {
		old := s.pair.Load()
		updated := &Pair{Previous: old.Current, Current: next}
		if s.pair.CompareAndSwap(old, updated) {
			return *old
		}
	}
}

// Reset drops both frames.
func (s *Store) Reset() {
	s.pair.Store(&Pair{})
}
