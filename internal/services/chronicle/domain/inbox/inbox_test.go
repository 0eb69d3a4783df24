package inbox

import (
	"errors"
	"fmt"
	"testing"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
)

func note(id string, p notification.Priority) notification.Notification {
	return notification.Notification{ID: id, Priority: p, Type: notification.TypeWar}
}

func ids(list []notification.Notification) []string {
	out := make([]string, len(list))
	for i, n := range list {
		out[i] = n.ID
	}
	return out
}

func TestIngestDeduplicates(t *testing.T) {
	t.Parallel()

	s := New()
	batch := []notification.Notification{note("a", notification.PriorityHigh), note("b", notification.PriorityLow)}
	if got := s.Ingest(batch); len(got) != 2 {
		t.Fatalf("inserted = %v", ids(got))
	}
	if got := s.Ingest(batch); len(got) != 0 {
		t.Fatalf("re-ingest inserted = %v", ids(got))
	}
	if s.Len() != 2 {
		t.Fatalf("len = %d, want 2", s.Len())
	}

	dup := []notification.Notification{note("c", notification.PriorityLow), note("c", notification.PriorityHigh)}
	if got := s.Ingest(dup); len(got) != 1 || got[0].Priority != notification.PriorityLow {
		t.Fatalf("in-batch duplicate = %+v", got)
	}
}

func TestClearedIDsStayDeduplicated(t *testing.T) {
	t.Parallel()

	s := New()
	batch := []notification.Notification{note("a", notification.PriorityHigh)}
	s.Ingest(batch)
	s.ClearAll()
	if got := s.Ingest(batch); len(got) != 0 {
		t.Fatalf("cleared id re-inserted: %v", ids(got))
	}

	s.Reset()
	if got := s.Ingest(batch); len(got) != 1 {
		t.Fatal("reset should forget seen ids")
	}
}

func TestRetentionEvictsOldestNonCriticalFirst(t *testing.T) {
	t.Parallel()

	s := New(WithRetention(3))
	s.Ingest([]notification.Notification{
		note("crit-1", notification.PriorityCritical),
		note("low-1", notification.PriorityLow),
		note("high-1", notification.PriorityHigh),
	})
	s.Ingest([]notification.Notification{note("med-1", notification.PriorityMedium)})

	if _, ok := s.Get("low-1"); ok {
		t.Fatal("low-1 should be evicted first")
	}
	if _, ok := s.Get("crit-1"); !ok {
		t.Fatal("critical notification should survive")
	}

	s.Ingest([]notification.Notification{
		note("crit-2", notification.PriorityCritical),
		note("crit-3", notification.PriorityCritical),
	})
	if got := ids(s.Filter(notification.FilterAll)); fmt.Sprint(got) != "[crit-3 crit-2 crit-1]" {
		t.Fatalf("after evicting non-critical = %v", got)
	}

	s.Ingest([]notification.Notification{note("crit-4", notification.PriorityCritical)})
	if _, ok := s.Get("crit-1"); ok {
		t.Fatal("oldest critical should go once only criticals remain")
	}
	if s.Len() != 3 {
		t.Fatalf("len = %d", s.Len())
	}
}

func TestIngestReturnsOnlyRetained(t *testing.T) {
	t.Parallel()

	s := New(WithRetention(2))
	got, stats := s.IngestWithStats([]notification.Notification{
		note("a", notification.PriorityLow),
		note("b", notification.PriorityLow),
		note("c", notification.PriorityLow),
		note("c", notification.PriorityLow),
	})
	if fmt.Sprint(ids(got)) != "[b c]" {
		t.Fatalf("inserted = %v", ids(got))
	}
	if stats.Duplicates != 1 || stats.Evicted != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestReadStateIsMonotonic(t *testing.T) {
	t.Parallel()

	s := New()
	s.Ingest([]notification.Notification{note("a", notification.PriorityHigh), note("b", notification.PriorityCritical)})

	if err := s.MarkRead("a"); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	s.Ingest([]notification.Notification{note("a", notification.PriorityHigh)})
	if n, _ := s.Get("a"); !n.Read {
		t.Fatal("re-ingest must not un-read")
	}
	if err := s.Dismiss("a"); err != nil {
		t.Fatalf("dismiss: %v", err)
	}
	if n, _ := s.Get("a"); !n.Read || !n.Dismissed {
		t.Fatalf("a = %+v", n)
	}

	if got := s.MarkAllRead(); got != 1 {
		t.Fatalf("mark all read changed %d, want 1", got)
	}
	if got := s.MarkAllRead(); got != 0 {
		t.Fatalf("second mark all read changed %d", got)
	}
}

func TestUnknownIDs(t *testing.T) {
	t.Parallel()

	s := New()
	if err := s.MarkRead("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("mark read err = %v", err)
	}
	if err := s.Dismiss("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("dismiss err = %v", err)
	}
}

func TestFilterModesAndCounts(t *testing.T) {
	t.Parallel()

	s := New()
	s.Ingest([]notification.Notification{
		note("crit", notification.PriorityCritical),
		note("high", notification.PriorityHigh),
		note("med", notification.PriorityMedium),
		note("low", notification.PriorityLow),
	})
	_ = s.MarkRead("high")
	_ = s.Dismiss("med")

	tests := []struct {
		mode notification.FilterMode
		want string
	}{
		{notification.FilterAll, "[low high crit]"},
		{notification.FilterImportant, "[high crit]"},
		{notification.FilterUnread, "[low crit]"},
	}
	for _, tc := range tests {
		if got := fmt.Sprint(ids(s.Filter(tc.mode))); got != tc.want {
			t.Fatalf("%s = %s, want %s", tc.mode, got, tc.want)
		}
	}
	if got := s.UnreadCount(); got != 2 {
		t.Fatalf("unread = %d, want 2", got)
	}
	if got := s.CriticalUnreadCount(); got != 1 {
		t.Fatalf("critical unread = %d, want 1", got)
	}
}

func TestSeenSetIsBounded(t *testing.T) {
	t.Parallel()

	s := New(WithRetention(1), WithSeenCapacity(1))
	for i := 0; i < 25; i++ {
		s.Ingest([]notification.Notification{note(fmt.Sprintf("n%d", i), notification.PriorityLow)})
	}
	if got := s.seen.Len(); got != 10 {
		t.Fatalf("seen len = %d, want 10", got)
	}
	if got := s.Ingest([]notification.Notification{note("n0", notification.PriorityLow)}); len(got) != 1 {
		t.Fatal("ids older than the seen window may be re-ingested")
	}
}
