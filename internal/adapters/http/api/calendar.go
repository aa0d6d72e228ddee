package api

import (
	"net/http"

	"github.com/okian/calpulse/internal/adapters/session"
	"github.com/okian/calpulse/internal/domain/analytics"
	"github.com/okian/calpulse/internal/domain/types"
)

// CalendarHandler handles the calendar analytics requests.
type CalendarHandler struct {
	deps  Dependencies
	guard *sessionGuard
}

// NewCalendarHandler creates a new calendar handler.
func NewCalendarHandler(deps Dependencies, guard *sessionGuard) *CalendarHandler {
	return &CalendarHandler{deps: deps, guard: guard}
}

type timeSeriesResponse struct {
	TimeSeries analytics.TimeSeriesData `json:"timeSeries"`
}

// HandleEvents handles GET /api/calendar/events requests.
func (h *CalendarHandler) HandleEvents(w http.ResponseWriter, r *http.Request) {
	const op = "api.calendar_events"
	h.serve(w, r, op, "Failed to fetch calendar events", func(sess *session.Session, dr types.DateRange) (any, error) {
		return h.deps.Events(r.Context(), sess, dr)
	})
}

// HandleTimeSeries handles GET /api/calendar/timeseries requests.
func (h *CalendarHandler) HandleTimeSeries(w http.ResponseWriter, r *http.Request) {
	const op = "api.calendar_timeseries"
	h.serve(w, r, op, "Failed to fetch time series data", func(sess *session.Session, dr types.DateRange) (any, error) {
		ts, err := h.deps.TimeSeries(r.Context(), sess, dr)
		if err != nil {
			return nil, err
		}
		return timeSeriesResponse{TimeSeries: ts}, nil
	})
}

// HandleInsights handles GET /api/calendar/insights requests.
func (h *CalendarHandler) HandleInsights(w http.ResponseWriter, r *http.Request) {
	const op = "api.calendar_insights"
	h.serve(w, r, op, "Failed to generate insights", func(sess *session.Session, dr types.DateRange) (any, error) {
		return h.deps.Insights(r.Context(), sess, dr)
	})
}

func (h *CalendarHandler) serve(w http.ResponseWriter, r *http.Request, op, fallback string,
	fn func(*session.Session, types.DateRange) (any, error)) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	sess, err := h.guard.require(r, op)
	if err != nil {
		h.guard.fail(w, r, err, fallback)
		return
	}
	q := r.URL.Query()
	dr, err := h.deps.ResolveRange(q.Get("startDate"), q.Get("endDate"))
	if err != nil {
		h.guard.fail(w, r, Wrap(op, err), fallback)
		return
	}

	before := sess.AccessToken
	body, err := fn(sess, dr)
	h.guard.persist(w, r, before, sess)
	if err != nil {
		h.guard.fail(w, r, Wrap(op, err), fallback)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
