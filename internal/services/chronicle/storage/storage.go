// Package storage defines the notification archive contract.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
)

const (
	// DefaultListLimit applies when a query does not set a limit.
	DefaultListLimit = 50
	// MaxListLimit caps one archive listing.
	MaxListLimit = 500
)

// ErrInvalidFilter indicates a malformed archive filter expression.
var ErrInvalidFilter = errors.New("invalid archive filter")

// Record is one archived notification.
type Record struct {
	SessionID    string                    `json:"session_id"`
	Notification notification.Notification `json:"notification"`
	ArchivedAt   time.Time                 `json:"archived_at"`
}

// Query selects archived notifications. Filter is an AIP-160 expression over
// session_id, id, type, raw_type, priority, zone_id, tick and created_at.
type Query struct {
	Filter string
	Limit  int
}

// NormalizedLimit clamps Limit to 1..MaxListLimit, defaulting to DefaultListLimit.
func (q Query) NormalizedLimit() int {
	switch {
	case q.Limit <= 0:
		return DefaultListLimit
	case q.Limit > MaxListLimit:
		return MaxListLimit
	default:
		return q.Limit
	}
}

// Archive persists notifications across sessions.
type Archive interface {
	Append(ctx context.Context, sessionID string, batch []notification.Notification) error
	List(ctx context.Context, q Query) ([]Record, error)
	Close() error
}
