// Package timeline tracks the simulation's current month, the month the player
// is viewing, and the per-month event markers shown on the timeline panel.
package timeline

import (
	"context"
	"errors"
	"sync"

	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
)

var (
	// ErrNotLive rejects an advance while the player is viewing history.
	ErrNotLive = errors.New("timeline is viewing history")
	// ErrAdvanceInFlight rejects an advance while another one runs.
	ErrAdvanceInFlight = errors.New("advance already in flight")

	errNoAdvancer = errors.New("timeline: no advancer")
)

// Marker is one event shown on the timeline for a month.
type Marker struct {
	ID       string                `json:"id"`
	Type     notification.Type     `json:"type"`
	Title    string                `json:"title"`
	Priority notification.Priority `json:"priority"`
	Read     bool                  `json:"read"`
}

// Outcome is what one successful advance reports back.
type Outcome struct {
	Date calendar.Date
	// UnreadCount is the simulation's own unread figure. Nil when the
	// service did not send one.
	UnreadCount *int
	Events      []Marker
}

// Advancer performs the actual month advance.
type Advancer interface {
	Advance(ctx context.Context) (Outcome, error)
}

// AdvancerFunc adapts a function to Advancer.
type AdvancerFunc func(ctx context.Context) (Outcome, error)

func (f AdvancerFunc) Advance(ctx context.Context) (Outcome, error) { return f(ctx) }

// State is a copy of the controller's state.
type State struct {
	Current     calendar.Date  `json:"current"`
	Viewing     *calendar.Date `json:"viewing"`
	UnreadCount int            `json:"unread_count"`
	Advancing   bool           `json:"advancing"`
	PanelOpen   bool           `json:"panel_open"`
}

// Live reports whether the player is viewing the current month.
func (s State) Live() bool { return s.Viewing == nil }

// Controller serializes advances and keeps Viewing at or before Current.
type Controller struct {
	advancer Advancer

	mu        sync.Mutex
	current   calendar.Date
	viewing   *calendar.Date
	unread    int
	advancing bool
	panelOpen bool
	events    map[int][]Marker
}

// New starts a controller at start, never earlier than calendar.Start.
func New(start calendar.Date, advancer Advancer) *Controller {
	c := &Controller{
		advancer: advancer,
		current:  floor(start.Normalize()),
		events:   make(map[int][]Marker),
	}
	return c
}

// Advance runs one advance with the controller's advancer. It fails with
// ErrNotLive when viewing history and ErrAdvanceInFlight when another advance
// is running. A failed advance leaves the state untouched.
func (c *Controller) Advance(ctx context.Context) (Outcome, error) {
	return c.AdvanceWith(ctx, c.advancer)
}

// AdvanceWith is Advance using advancer for this call only.
func (c *Controller) AdvanceWith(ctx context.Context, advancer Advancer) (Outcome, error) {
	if advancer == nil {
		return Outcome{}, errNoAdvancer
	}
	c.mu.Lock()
	if c.viewing != nil {
		c.mu.Unlock()
		return Outcome{}, ErrNotLive
	}
	if c.advancing {
		c.mu.Unlock()
		return Outcome{}, ErrAdvanceInFlight
	}
	c.advancing = true
	c.mu.Unlock()

	out, err := advancer.Advance(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.advancing = false
	if err != nil {
		return Outcome{}, err
	}

	date := out.Date
	switch {
	case !date.Valid():
		date = c.current.Next()
	case date.Before(c.current):
		date = c.current
	}
	c.current = date
	added := c.addMarkersLocked(date, out.Events)

	switch {
	case out.UnreadCount != nil:
		c.unread = max(*out.UnreadCount, 0)
	case !c.panelOpen:
		c.unread += added
	}
	out.Date = date
	c.enforceLocked()
	return out, nil
}

func (c *Controller) addMarkersLocked(date calendar.Date, markers []Marker) int {
	key := date.Index()
	existing := c.events[key]
	added := 0
	for _, m := range markers {
		if m.ID == "" || containsMarker(existing, m.ID) {
			continue
		}
		existing = append(existing, m)
		added++
	}
	if len(existing) > 0 {
		c.events[key] = existing
	}
	return added
}

// GoBack moves the view one month back, never before calendar.Start. It never
// advances the simulation.
func (c *Controller) GoBack() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	base := c.current
	if c.viewing != nil {
		base = *c.viewing
	}
	prev := floor(base.Prev())
	c.viewing = &prev
	c.enforceLocked()
	return c.stateLocked()
}

// GoForward moves the view one month forward, returning to live once it
// reaches the current month. When already live it advances instead.
func (c *Controller) GoForward(ctx context.Context) (State, error) {
	c.mu.Lock()
	if c.viewing == nil {
		c.mu.Unlock()
		if _, err := c.Advance(ctx); err != nil {
			return c.State(), err
		}
		return c.State(), nil
	}
	defer c.mu.Unlock()
	next := c.viewing.Next()
	c.viewing = &next
	c.enforceLocked()
	return c.stateLocked(), nil
}

// StepForward moves the view one month forward without ever advancing. It
// reports false, leaving the state alone, when already live.
func (c *Controller) StepForward() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.viewing == nil {
		return c.stateLocked(), false
	}
	next := c.viewing.Next()
	c.viewing = &next
	c.enforceLocked()
	return c.stateLocked(), true
}

// Rebase moves the current month to date, for example after loading an
// existing game. Views past the new current month return to live.
func (c *Controller) Rebase(date calendar.Date) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !date.Valid() {
		return
	}
	c.current = floor(date)
	c.enforceLocked()
}

// MarkRead marks markers read and returns how many changed. With no ids every
// month is cleared and the unread count drops to zero; otherwise only markers
// of the viewed month (current when live) are considered.
func (c *Controller) MarkRead(ids ...string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	changed := 0
	if len(ids) == 0 {
		for key, markers := range c.events {
			for i := range markers {
				if !markers[i].Read {
					markers[i].Read = true
					changed++
				}
			}
			c.events[key] = markers
		}
		c.unread = 0
		return changed
	}

	wanted := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		wanted[id] = struct{}{}
	}
	key := c.viewingOrCurrentLocked().Index()
	markers := c.events[key]
	for i := range markers {
		if _, ok := wanted[markers[i].ID]; ok && !markers[i].Read {
			markers[i].Read = true
			changed++
		}
	}
	c.unread = max(c.unread-changed, 0)
	return changed
}

// SetPanelOpen records whether the timeline panel is on screen.
func (c *Controller) SetPanelOpen(open bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.panelOpen = open
}

// EventsFor returns a copy of the markers recorded for date.
func (c *Controller) EventsFor(date calendar.Date) []Marker {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Marker(nil), c.events[date.Index()]...)
}

// State returns a snapshot of the controller.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stateLocked()
}

// ViewingOrCurrent returns the month on screen.
func (c *Controller) ViewingOrCurrent() calendar.Date {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewingOrCurrentLocked()
}

func (c *Controller) viewingOrCurrentLocked() calendar.Date {
	if c.viewing != nil {
		return *c.viewing
	}
	return c.current
}

func (c *Controller) stateLocked() State {
	s := State{
		Current:     c.current,
		UnreadCount: c.unread,
		Advancing:   c.advancing,
		PanelOpen:   c.panelOpen,
	}
	if c.viewing != nil {
		v := *c.viewing
		s.Viewing = &v
	}
	return s
}

// enforceLocked keeps Viewing within [calendar.Start, Current). A view that
// reaches Current is live again.
func (c *Controller) enforceLocked() {
	if c.viewing == nil {
		return
	}
	v := floor(*c.viewing)
	if !v.Before(c.current) {
		c.viewing = nil
		return
	}
	c.viewing = &v
}

func floor(d calendar.Date) calendar.Date {
	if d.Before(calendar.Start) {
		return calendar.Start
	}
	return d
}

func containsMarker(markers []Marker, id string) bool {
	for _, m := range markers {
		if m.ID == id {
			return true
		}
	}
	return false
}
