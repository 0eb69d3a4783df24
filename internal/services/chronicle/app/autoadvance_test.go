package server

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	apperrors "github.com/louisbranch/statecraft/internal/platform/errors"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/session"
)

type countingAdvancer struct {
	mu    sync.Mutex
	calls int
	errs  []error
	done  chan struct{}
}

func (a *countingAdvancer) Advance(context.Context) (session.AdvanceResult, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	var err error
	if len(a.errs) > 0 {
		err, a.errs = a.errs[0], a.errs[1:]
	}
	a.done <- struct{}{}
	return session.AdvanceResult{}, err
}

func TestAutoAdvanceRunsPerTickAndSurvivesErrors(t *testing.T) {
	t.Parallel()

	adv := &countingAdvancer{
		errs: []error{
			apperrors.New(apperrors.CodeTimelineNotLive, "viewing history"),
			errors.New("simulation down"),
		},
		done: make(chan struct{}, 3),
	}
	ticks := make(chan time.Time)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		autoAdvance(ctx, ticks, adv)
		close(stopped)
	}()

	for range 3 {
		ticks <- time.Now()
		select {
		case <-adv.done:
		case <-time.After(2 * time.Second):
			t.Fatal("advance was not called")
		}
	}
	cancel()
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("auto-advance did not stop on cancel")
	}

	adv.mu.Lock()
	defer adv.mu.Unlock()
	if adv.calls != 3 {
		t.Fatalf("calls = %d, want 3", adv.calls)
	}
}
