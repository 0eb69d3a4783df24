package server

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/net/websocket"

	apperrors "github.com/louisbranch/statecraft/internal/platform/errors"
	"github.com/louisbranch/statecraft/internal/platform/telemetry/metrics"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/calendar"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/notification"
	"github.com/louisbranch/statecraft/internal/services/chronicle/domain/session"
	"github.com/louisbranch/statecraft/internal/services/chronicle/storage"
)

const maxRequestBodyBytes = 64 * 1024

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

type errorBody struct {
	Code     string            `json:"code"`
	Message  string            `json:"message"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type readTimelineRequest struct {
	IDs []string `json:"ids"`
}

type panelRequest struct {
	Open bool `json:"open"`
}

type handler struct {
	session *session.Session
	archive storage.Archive
	hub     *feedHub
}

// newHandler routes the presentation API for sess. The caller owns hub's
// session subscription. A nil archive leaves /api/archive unregistered; a nil
// m serves an empty /metrics.
func newHandler(sess *session.Session, archive storage.Archive, m *metrics.Chronicle, hub *feedHub) http.Handler {
	h := &handler{session: sess, archive: archive, hub: hub}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	mux.HandleFunc("GET /api/timeline", h.getTimeline)
	mux.HandleFunc("POST /api/timeline/advance", h.advance)
	mux.HandleFunc("POST /api/timeline/back", h.goBack)
	mux.HandleFunc("POST /api/timeline/forward", h.goForward)
	mux.HandleFunc("POST /api/timeline/read", h.readTimeline)
	mux.HandleFunc("GET /api/timeline/events", h.timelineEvents)
	mux.HandleFunc("POST /api/timeline/panel", h.setPanel)

	mux.HandleFunc("GET /api/notifications", h.listNotifications)
	mux.HandleFunc("POST /api/notifications/{id}/read", h.markRead)
	mux.HandleFunc("POST /api/notifications/read-all", h.markAllRead)
	mux.HandleFunc("POST /api/notifications/{id}/dismiss", h.dismiss)
	mux.HandleFunc("POST /api/notifications/clear", h.clearAll)

	mux.HandleFunc("GET /api/toasts", h.listToasts)
	mux.HandleFunc("POST /api/toasts/{id}/dismiss", h.dismissToast)
	mux.HandleFunc("GET /api/breaking", h.getBreaking)
	mux.HandleFunc("POST /api/breaking/dismiss", h.dismissBreaking)

	if archive != nil {
		mux.HandleFunc("GET /api/archive", h.listArchive)
	}

	mux.Handle("GET /ws", websocket.Handler(hub.serve))
	mux.Handle("GET /metrics", m.Handler())
	return mux
}

func (h *handler) getTimeline(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.Timeline().State())
}

func (h *handler) advance(w http.ResponseWriter, r *http.Request) {
	result, err := h.session.Advance(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, buildAdvanceView(result, h.session.Timeline().State()))
}

func (h *handler) goBack(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.session.GoBack())
}

func (h *handler) goForward(w http.ResponseWriter, r *http.Request) {
	st, err := h.session.GoForward(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (h *handler) readTimeline(w http.ResponseWriter, r *http.Request) {
	var req readTimelineRequest
	if err := decodeOptionalBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	changed := h.session.MarkTimelineRead(req.IDs...)
	writeJSON(w, http.StatusOK, map[string]any{
		"changed":  changed,
		"timeline": h.session.Timeline().State(),
	})
}

func (h *handler) timelineEvents(w http.ResponseWriter, r *http.Request) {
	date := h.session.Timeline().ViewingOrCurrent()
	query := r.URL.Query()
	if query.Has("year") || query.Has("month") {
		year, yearErr := strconv.Atoi(query.Get("year"))
		month, monthErr := strconv.Atoi(query.Get("month"))
		requested := calendar.Date{Year: year, Month: month}
		if yearErr != nil || monthErr != nil || !requested.Valid() {
			writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "year and month must name a valid month"))
			return
		}
		date = requested
	}
	writeJSON(w, http.StatusOK, buildEventsView(h.session, date))
}

func (h *handler) setPanel(w http.ResponseWriter, r *http.Request) {
	var req panelRequest
	if err := decodeOptionalBody(w, r, &req); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, h.session.SetPanelOpen(req.Open))
}

func (h *handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	mode, err := notification.ParseFilterMode(r.URL.Query().Get("mode"))
	if err != nil {
		writeError(w, apperrors.Wrap(apperrors.CodeInvalidFilter, "notification mode", err).
			WithMetadata("mode", r.URL.Query().Get("mode")))
		return
	}
	writeJSON(w, http.StatusOK, buildNotificationsView(h.session, mode, nil))
}

func (h *handler) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.session.MarkRead(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) markAllRead(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]int{"changed": h.session.MarkAllRead()})
}

func (h *handler) dismiss(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Dismiss(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) clearAll(w http.ResponseWriter, r *http.Request) {
	h.session.ClearAll()
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) listToasts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildToastsView(h.session))
}

func (h *handler) dismissToast(w http.ResponseWriter, r *http.Request) {
	if err := h.session.DismissToast(r.PathValue("id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handler) getBreaking(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, buildBreakingView(h.session))
}

func (h *handler) dismissBreaking(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"dismissed": h.session.DismissBreaking()})
}

func (h *handler) listArchive(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	q := storage.Query{Filter: query.Get("filter")}
	if raw := strings.TrimSpace(query.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, apperrors.New(apperrors.CodeInvalidArgument, "limit must be a non-negative integer").
				WithMetadata("limit", raw))
			return
		}
		q.Limit = limit
	}
	records, err := h.archive.List(r.Context(), q)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidFilter) {
			err = apperrors.Wrap(apperrors.CodeInvalidFilter, "archive filter", err).WithMetadata("filter", q.Filter)
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, archiveView{Records: nonNilSlice(records)})
}

// decodeOptionalBody decodes a JSON body into dst. An empty body leaves dst
// untouched.
func decodeOptionalBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return apperrors.Wrap(apperrors.CodeInvalidArgument, "invalid request body", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("chronicle: write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	body := errorBody{Code: string(code), Message: "internal error"}
	var domainErr *apperrors.Error
	if errors.As(err, &domainErr) {
		body.Message = domainErr.Message
		body.Metadata = domainErr.Metadata
	}
	if code == apperrors.CodeUnknown {
		log.Printf("chronicle: request failed: %v", err)
	}
	writeJSON(w, code.HTTPStatus(), errorEnvelope{Error: body})
}
