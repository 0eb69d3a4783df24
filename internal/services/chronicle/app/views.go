package server

import (
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/session"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/timeline"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/toast"
	"github.com/louisbranch/statecraft/internal/services/chronicle/storage"
)

type notificationsView struct {
	Added               []notification.Notification `json:"added,omitempty"`
	Items               []notification.Notification `json:"items"`
	UnreadCount         int                         `json:"unread_count"`
	CriticalUnreadCount int                         `json:"critical_unread_count"`
}

type toastsView struct {
	Toasts []toast.Entry `json:"toasts"`
}

type breakingView struct {
	Breaking *toast.Bulletin `json:"breaking"`
}

type eventsView struct {
	Date   calendar.Date     `json:"date"`
	Events []timeline.Marker `json:"events"`
}

type advanceView struct {
	Date          calendar.Date               `json:"date"`
	Timeline      timeline.State              `json:"timeline"`
	Notifications []notification.Notification `json:"notifications"`
	Toasts        []toast.Entry               `json:"toasts"`
	Breaking      *toast.Bulletin             `json:"breaking"`
}

type archiveView struct {
	Records []storage.Record `json:"records"`
}

func buildNotificationsView(sess *session.Session, mode notification.FilterMode, added []notification.Notification) notificationsView {
	store := sess.Notifications()
	return notificationsView{
		Added:               added,
		Items:               nonNilSlice(store.Filter(mode)),
		UnreadCount:         store.UnreadCount(),
		CriticalUnreadCount: store.CriticalUnreadCount(),
	}
}

func buildToastsView(sess *session.Session) toastsView {
	return toastsView{Toasts: nonNilSlice(sess.Toasts().Active())}
}

func buildBreakingView(sess *session.Session) breakingView {
	if b, ok := sess.Toasts().Breaking(); ok {
		return breakingView{Breaking: &b}
	}
	return breakingView{}
}

func buildEventsView(sess *session.Session, date calendar.Date) eventsView {
	return eventsView{Date: date, Events: nonNilSlice(sess.Timeline().EventsFor(date))}
}

func buildAdvanceView(result session.AdvanceResult, st timeline.State) advanceView {
	return advanceView{
		Date:          result.Outcome.Date,
		Timeline:      st,
		Notifications: nonNilSlice(result.Notifications),
		Toasts:        nonNilSlice(result.Toasts),
		Breaking:      result.Breaking,
	}
}

// nonNilSlice keeps empty lists encoded as [] rather than null.
func nonNilSlice[T any](values []T) []T {
	if values == nil {
		return []T{}
	}
	return values
}
