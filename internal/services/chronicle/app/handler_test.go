package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/statecraft/internal/platform/telemetry/metrics"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/fact"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/session"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/timeline"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/world"
	"github.com/louisbranch/statecraft/internal/services/chronicle/simclient"
	"github.com/louisbranch/statecraft/internal/services/chronicle/storage"
)

type stubClock struct{ now time.Time }

func (c stubClock) Now() time.Time { return c.now }

func (stubClock) AfterFunc(time.Duration, func()) func() { return func() {} }

type fakeArchive struct {
	mu      sync.Mutex
	records []storage.Record
	queries []storage.Query
}

func (f *fakeArchive) Append(_ context.Context, sessionID string, batch []notification.Notification) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, n := range batch {
		f.records = append(f.records, storage.Record{SessionID: sessionID, Notification: n})
	}
	return nil
}

func (f *fakeArchive) List(_ context.Context, q storage.Query) ([]storage.Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, q)
	if strings.Contains(q.Filter, "bogus") {
		return nil, fmt.Errorf("%w: unknown field", storage.ErrInvalidFilter)
	}
	return append([]storage.Record(nil), f.records...), nil
}

func (f *fakeArchive) Close() error { return nil }

// scriptedClient bootstraps at 2025-03 with z1 held by USA, then advances to
// 2025-04 where CHN takes z1 and a nuclear test is reported.
func scriptedClient() *fakeSimClient {
	return &fakeSimClient{
		state: simclient.WorldState{Date: calendar.Date{Year: 2025, Month: 3}},
		zones: []world.Zone{{ID: "z1", Name: "Gulf", DominantPower: "USA"}},
		turns: []simclient.Turn{
			{
				Date:  calendar.Date{Year: 2025, Month: 4},
				Zones: []world.Zone{{ID: "z1", Name: "Gulf", DominantPower: "CHN", ContestedBy: world.NewPowerSet("RUS")}},
				Events: []fact.RawEvent{
					{ID: "e1", Type: "nuclear_test", Title: "Detonation"},
				},
			},
			{Date: calendar.Date{Year: 2025, Month: 5}, Zones: []world.Zone{{ID: "z1", Name: "Gulf", DominantPower: "CHN", ContestedBy: world.NewPowerSet("RUS")}}},
		},
	}
}

func newTestSession(t *testing.T, client *fakeSimClient) *session.Session {
	t.Helper()
	sess, err := session.New(session.Config{ObservedPower: "USA"}, session.Deps{
		Simulation: NewSimulation(client),
		Clock:      stubClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)},
	})
	if err != nil {
		t.Fatalf("new session: %v", err)
	}
	t.Cleanup(sess.Close)
	if err := sess.Bootstrap(context.Background()); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	return sess
}

func newTestServer(t *testing.T, client *fakeSimClient, archive storage.Archive) (*httptest.Server, *session.Session) {
	t.Helper()
	sess := newTestSession(t, client)
	m := metrics.NewChronicle(nil)
	hub := newFeedHub(sess, m)
	t.Cleanup(sess.Subscribe(hub.observe))
	srv := httptest.NewServer(newHandler(sess, archive, m, hub))
	t.Cleanup(srv.Close)
	return srv, sess
}

func doRequest(t *testing.T, method, url string, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, url, strings.NewReader(body))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return out
}

func assertErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("status = %d, want %d", resp.StatusCode, status)
	}
	envelope := decodeBody[errorEnvelope](t, resp)
	if envelope.Error.Code != code {
		t.Fatalf("code = %q, want %q", envelope.Error.Code, code)
	}
}

func TestUp(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, scriptedClient(), nil)
	resp := doRequest(t, http.MethodGet, srv.URL+"/up", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}

func TestAdvanceEndpoint(t *testing.T) {
	t.Parallel()

	srv, sess := newTestServer(t, scriptedClient(), nil)
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/timeline/advance", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	view := decodeBody[advanceView](t, resp)
	if view.Date != (calendar.Date{Year: 2025, Month: 4}) {
		t.Fatalf("date = %v", view.Date)
	}
	tick := (calendar.Date{Year: 2025, Month: 4}).Index()
	want := []string{fmt.Sprintf("dom-z1-%d", tick), fmt.Sprintf("cst-z1-%d", tick), "evt-e1"}
	if len(view.Notifications) != len(want) {
		t.Fatalf("notifications = %+v", view.Notifications)
	}
	for i, id := range want {
		if view.Notifications[i].ID != id {
			t.Fatalf("notification %d = %s, want %s", i, view.Notifications[i].ID, id)
		}
	}
	if view.Breaking == nil || view.Breaking.Notification.ID != "evt-e1" {
		t.Fatalf("breaking = %+v", view.Breaking)
	}
	if len(view.Toasts) == 0 {
		t.Fatal("expected toasts")
	}
	if view.Timeline.Current != (calendar.Date{Year: 2025, Month: 4}) {
		t.Fatalf("timeline current = %v", view.Timeline.Current)
	}
	if sess.Notifications().Len() != 3 {
		t.Fatalf("inbox len = %d", sess.Notifications().Len())
	}
}

func TestAdvanceSimulationFailure(t *testing.T) {
	t.Parallel()

	client := scriptedClient()
	srv, sess := newTestServer(t, client, nil)
	client.fail(errors.New("connection refused"))

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/timeline/advance", "")
	assertErrorCode(t, resp, http.StatusBadGateway, "SIMULATION_UNAVAILABLE")
	if got := sess.Timeline().State().Current; got != (calendar.Date{Year: 2025, Month: 3}) {
		t.Fatalf("current = %v, want unchanged", got)
	}
}

func TestTimelineNavigation(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, scriptedClient(), nil)
	if resp := doRequest(t, http.MethodPost, srv.URL+"/api/timeline/advance", ""); resp.StatusCode != http.StatusOK {
		t.Fatalf("advance status = %d", resp.StatusCode)
	}

	back := decodeBody[timeline.State](t, doRequest(t, http.MethodPost, srv.URL+"/api/timeline/back", ""))
	if back.Viewing == nil || *back.Viewing != (calendar.Date{Year: 2025, Month: 3}) {
		t.Fatalf("viewing = %v", back.Viewing)
	}

	resp := doRequest(t, http.MethodPost, srv.URL+"/api/timeline/advance", "")
	assertErrorCode(t, resp, http.StatusConflict, "TIMELINE_NOT_LIVE")

	forward := decodeBody[timeline.State](t, doRequest(t, http.MethodPost, srv.URL+"/api/timeline/forward", ""))
	if !forward.Live() || forward.Current != (calendar.Date{Year: 2025, Month: 4}) {
		t.Fatalf("forward = %+v, want live at 2025-04", forward)
	}

	// Forward while live advances.
	advanced := decodeBody[timeline.State](t, doRequest(t, http.MethodPost, srv.URL+"/api/timeline/forward", ""))
	if advanced.Current != (calendar.Date{Year: 2025, Month: 5}) {
		t.Fatalf("current = %v, want 2025-05", advanced.Current)
	}
}

func TestTimelineEventsAndRead(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, scriptedClient(), nil)
	doRequest(t, http.MethodPost, srv.URL+"/api/timeline/advance", "")

	events := decodeBody[eventsView](t, doRequest(t, http.MethodGet, srv.URL+"/api/timeline/events?year=2025&month=4", ""))
	if len(events.Events) != 1 || events.Events[0].ID != "evt-e1" {
		t.Fatalf("events = %+v", events)
	}
	current := decodeBody[eventsView](t, doRequest(t, http.MethodGet, srv.URL+"/api/timeline/events", ""))
	if current.Date != (calendar.Date{Year: 2025, Month: 4}) || len(current.Events) != 1 {
		t.Fatalf("current events = %+v", current)
	}
	empty := decodeBody[eventsView](t, doRequest(t, http.MethodGet, srv.URL+"/api/timeline/events?year=2025&month=1", ""))
	if empty.Events == nil || len(empty.Events) != 0 {
		t.Fatalf("empty events = %+v", empty.Events)
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/timeline/events?year=2025&month=13", "")
	assertErrorCode(t, resp, http.StatusBadRequest, "INVALID_ARGUMENT")

	read := decodeBody[struct {
		Changed  int            `json:"changed"`
		Timeline timeline.State `json:"timeline"`
	}](t, doRequest(t, http.MethodPost, srv.URL+"/api/timeline/read", `{"ids":["evt-e1"]}`))
	if read.Changed != 1 || read.Timeline.UnreadCount != 0 {
		t.Fatalf("read = %+v", read)
	}

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/timeline/read", `{"ids":`)
	assertErrorCode(t, resp, http.StatusBadRequest, "INVALID_ARGUMENT")
}

func TestTimelinePanel(t *testing.T) {
	t.Parallel()

	srv, sess := newTestServer(t, scriptedClient(), nil)
	st := decodeBody[timeline.State](t, doRequest(t, http.MethodPost, srv.URL+"/api/timeline/panel", `{"open":true}`))
	if !st.PanelOpen || !sess.Timeline().State().PanelOpen {
		t.Fatalf("panel = %+v", st)
	}
	got := decodeBody[timeline.State](t, doRequest(t, http.MethodGet, srv.URL+"/api/timeline", ""))
	if !got.PanelOpen {
		t.Fatal("timeline should report the open panel")
	}
}

func TestNotificationEndpoints(t *testing.T) {
	t.Parallel()

	srv, sess := newTestServer(t, scriptedClient(), nil)
	doRequest(t, http.MethodPost, srv.URL+"/api/timeline/advance", "")

	all := decodeBody[notificationsView](t, doRequest(t, http.MethodGet, srv.URL+"/api/notifications", ""))
	if len(all.Items) != 3 || all.UnreadCount != 3 {
		t.Fatalf("all = %+v", all)
	}
	if all.Items[0].ID != "evt-e1" {
		t.Fatalf("first item = %s, want newest first", all.Items[0].ID)
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/notifications?mode=loud", "")
	assertErrorCode(t, resp, http.StatusBadRequest, "INVALID_FILTER")

	if resp := doRequest(t, http.MethodPost, srv.URL+"/api/notifications/evt-e1/read", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("read status = %d", resp.StatusCode)
	}
	unread := decodeBody[notificationsView](t, doRequest(t, http.MethodGet, srv.URL+"/api/notifications?mode=unread", ""))
	if len(unread.Items) != 2 || unread.UnreadCount != 2 {
		t.Fatalf("unread = %+v", unread)
	}

	resp = doRequest(t, http.MethodPost, srv.URL+"/api/notifications/missing/read", "")
	assertErrorCode(t, resp, http.StatusNotFound, "NOTIFICATION_NOT_FOUND")

	tick := (calendar.Date{Year: 2025, Month: 4}).Index()
	dismissURL := fmt.Sprintf("%s/api/notifications/cst-z1-%d/dismiss", srv.URL, tick)
	if resp := doRequest(t, http.MethodPost, dismissURL, ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("dismiss status = %d", resp.StatusCode)
	}

	readAll := decodeBody[map[string]int](t, doRequest(t, http.MethodPost, srv.URL+"/api/notifications/read-all", ""))
	// The dismissed notification is still held, so it is marked too.
	if readAll["changed"] != 2 {
		t.Fatalf("read-all changed = %d, want 2", readAll["changed"])
	}

	if resp := doRequest(t, http.MethodPost, srv.URL+"/api/notifications/clear", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("clear status = %d", resp.StatusCode)
	}
	if sess.Notifications().Len() != 0 {
		t.Fatalf("inbox len = %d after clear", sess.Notifications().Len())
	}
}

func TestToastAndBreakingEndpoints(t *testing.T) {
	t.Parallel()

	srv, sess := newTestServer(t, scriptedClient(), nil)
	doRequest(t, http.MethodPost, srv.URL+"/api/timeline/advance", "")

	toasts := decodeBody[toastsView](t, doRequest(t, http.MethodGet, srv.URL+"/api/toasts", ""))
	var found bool
	for _, e := range toasts.Toasts {
		if e.Notification.ID == "evt-e1" {
			found = true
		}
	}
	if !found {
		t.Fatalf("toasts = %+v", toasts)
	}

	if resp := doRequest(t, http.MethodPost, srv.URL+"/api/toasts/evt-e1/dismiss", ""); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("dismiss toast status = %d", resp.StatusCode)
	}
	if n, _ := sess.Notifications().Get("evt-e1"); !n.Read {
		t.Fatal("dismissed toast should mark its notification read")
	}
	resp := doRequest(t, http.MethodPost, srv.URL+"/api/toasts/evt-e1/dismiss", "")
	assertErrorCode(t, resp, http.StatusNotFound, "NOTIFICATION_NOT_FOUND")

	breaking := decodeBody[breakingView](t, doRequest(t, http.MethodGet, srv.URL+"/api/breaking", ""))
	if breaking.Breaking == nil || breaking.Breaking.Notification.ID != "evt-e1" {
		t.Fatalf("breaking = %+v", breaking)
	}
	dismissed := decodeBody[map[string]bool](t, doRequest(t, http.MethodPost, srv.URL+"/api/breaking/dismiss", ""))
	if !dismissed["dismissed"] {
		t.Fatal("expected bulletin dismissed")
	}
	again := decodeBody[map[string]bool](t, doRequest(t, http.MethodPost, srv.URL+"/api/breaking/dismiss", ""))
	if again["dismissed"] {
		t.Fatal("second dismiss should report false")
	}
	if got := decodeBody[breakingView](t, doRequest(t, http.MethodGet, srv.URL+"/api/breaking", "")); got.Breaking != nil {
		t.Fatalf("breaking = %+v, want none", got.Breaking)
	}
}

func TestArchiveEndpoint(t *testing.T) {
	t.Parallel()

	archive := &fakeArchive{records: []storage.Record{{SessionID: "s1", Notification: notification.Notification{ID: "evt-e9"}}}}
	srv, _ := newTestServer(t, scriptedClient(), archive)

	view := decodeBody[archiveView](t, doRequest(t, http.MethodGet, srv.URL+`/api/archive?filter=priority+%3D+%22critical%22&limit=10`, ""))
	if len(view.Records) != 1 || view.Records[0].Notification.ID != "evt-e9" {
		t.Fatalf("records = %+v", view.Records)
	}
	if q := archive.queries[0]; q.Filter != `priority = "critical"` || q.Limit != 10 {
		t.Fatalf("query = %+v", q)
	}

	resp := doRequest(t, http.MethodGet, srv.URL+"/api/archive?filter=bogus", "")
	assertErrorCode(t, resp, http.StatusBadRequest, "INVALID_FILTER")

	resp = doRequest(t, http.MethodGet, srv.URL+"/api/archive?limit=ten", "")
	assertErrorCode(t, resp, http.StatusBadRequest, "INVALID_ARGUMENT")
}

func TestArchiveDisabledWithoutStore(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, scriptedClient(), nil)
	resp := doRequest(t, http.MethodGet, srv.URL+"/api/archive", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	srv, _ := newTestServer(t, scriptedClient(), nil)
	doRequest(t, http.MethodPost, srv.URL+"/api/timeline/advance", "")
	resp := doRequest(t, http.MethodGet, srv.URL+"/metrics", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
}
