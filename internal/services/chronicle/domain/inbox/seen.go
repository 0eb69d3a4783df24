package inbox

import "container/list"

// seenSet is a bounded LRU of ids the store has accepted, so ids that were
// evicted or cleared are still recognized as duplicates.
type seenSet struct {
	cap   int
	ll    *list.List // most-recent at front
	items map[string]*list.Element
}

func newSeenSet(capacity int) *seenSet {
	return &seenSet{cap: capacity, ll: list.New(), items: make(map[string]*list.Element, capacity)}
}

func (s *seenSet) Seen(id string) bool {
	el, ok := s.items[id]
	if ok {
		s.ll.MoveToFront(el)
	}
	return ok
}

func (s *seenSet) Mark(id string) {
	if el, ok := s.items[id]; ok {
		s.ll.MoveToFront(el)
		return
	}
	s.items[id] = s.ll.PushFront(id)
	for s.ll.Len() > s.cap {
		tail := s.ll.Back()
		s.ll.Remove(tail)
		delete(s.items, tail.Value.(string))
	}
}

func (s *seenSet) Len() int { return s.ll.Len() }
