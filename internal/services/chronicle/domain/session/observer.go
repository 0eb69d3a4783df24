package session

import (
	"sync"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/timeline"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/toast"
)

// UpdateKind names what changed.
type UpdateKind string

const (
	UpdateNotifications UpdateKind = "notifications"
	UpdateToast         UpdateKind = "toast"
	UpdateBreaking      UpdateKind = "breaking"
	UpdateTimeline      UpdateKind = "timeline"
)

// Update is pushed to observers after each state change. Only the field
// matching Kind is set.
type Update struct {
	Kind          UpdateKind
	Notifications []notification.Notification
	Toasts        []toast.Entry
	Breaking      *toast.Bulletin
	Timeline      *timeline.State
}

// Observer receives updates. Observers run synchronously and must not block.
type Observer func(Update)

type observers struct {
	mu   sync.Mutex
	next int
	subs map[int]Observer
}

func (o *observers) add(fn Observer) func() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.subs == nil {
		o.subs = make(map[int]Observer)
	}
	key := o.next
	o.next++
	o.subs[key] = fn
	return func() {
		o.mu.Lock()
		defer o.mu.Unlock()
		delete(o.subs, key)
	}
}

func (o *observers) publish(updates ...Update) {
	o.mu.Lock()
	subs := make([]Observer, 0, len(o.subs))
	for _, fn := range o.subs {
		subs = append(subs, fn)
	}
	o.mu.Unlock()
	for _, u := range updates {
		for _, fn := range subs {
			fn(u)
		}
	}
}
