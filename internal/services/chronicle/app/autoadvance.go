package server

import (
	"context"
	"log"
	"time"

	apperrors "github.com/louisbranch/statecraft/internal/platform/errors"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/session"
)

type advancer interface {
	Advance(ctx context.Context) (session.AdvanceResult, error)
}

// autoAdvance advances once per tick until ctx ends. Ticks that land while
// the player browses history or another advance runs are skipped.
func autoAdvance(ctx context.Context, ticks <-chan time.Time, adv advancer) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticks:
			_, err := adv.Advance(ctx)
			if err == nil {
				continue
			}
			switch apperrors.GetCode(err) {
			case apperrors.CodeTimelineNotLive, apperrors.CodeAdvanceInFlight:
			default:
				if ctx.Err() == nil {
					log.Printf("chronicle: auto-advance: %v", err)
				}
			}
		}
	}
}
