package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/okian/calpulse/internal/testevents"
)

// IdempotencyKeyHeader names the header that makes a generate request
// safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// TestEventsHandler handles synthetic event preview and creation.
type TestEventsHandler struct {
	deps  Dependencies
	guard *sessionGuard
}

// NewTestEventsHandler creates a new test events handler.
func NewTestEventsHandler(deps Dependencies, guard *sessionGuard) *TestEventsHandler {
	return &TestEventsHandler{deps: deps, guard: guard}
}

// HandlePreview handles GET /api/test-events/preview requests.
func (h *TestEventsHandler) HandlePreview(w http.ResponseWriter, r *http.Request) {
	const op = "api.test_events_preview"
	const fallback = "Failed to preview events"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	if _, err := h.guard.require(r, op); err != nil {
		h.guard.fail(w, r, err, fallback)
		return
	}
	cfg, err := previewConfig(r.URL.Query())
	if err != nil {
		h.guard.fail(w, r, WrapKind(op, ErrBadRequest, err), fallback)
		return
	}
	preview, err := h.deps.PreviewTestEvents(r.Context(), cfg)
	if err != nil {
		h.guard.fail(w, r, Wrap(op, err), fallback)
		return
	}
	writeJSON(w, http.StatusOK, preview)
}

// HandleGenerate handles POST /api/test-events/generate requests.
func (h *TestEventsHandler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	const op = "api.test_events_generate"
	const fallback = "Failed to generate test events"
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	sess, err := h.guard.require(r, op)
	if err != nil {
		h.guard.fail(w, r, err, fallback)
		return
	}
	var cfg testevents.GeneratorConfig
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		h.guard.fail(w, r, WrapKind(op, ErrBadRequest, err), fallback)
		return
	}

	before := sess.AccessToken
	res, err := h.deps.GenerateTestEvents(r.Context(), sess, cfg, r.Header.Get(IdempotencyKeyHeader))
	h.guard.persist(w, r, before, sess)
	if err != nil {
		h.guard.fail(w, r, Wrap(op, err), fallback)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// previewConfig reads the generator settings from query parameters.
func previewConfig(q url.Values) (testevents.GeneratorConfig, error) {
	cfg := testevents.GeneratorConfig{
		StartDate: q.Get("startDate"),
		EndDate:   q.Get("endDate"),
		TimeZone:  q.Get("timeZone"),
		Realistic: q.Get("realistic") == "true",
	}
	ints := []struct {
		name string
		dst  *int
	}{
		{"eventsPerDay", &cfg.EventsPerDay},
		{"minDuration", &cfg.MinDuration},
		{"maxDuration", &cfg.MaxDuration},
	}
	for _, p := range ints {
		raw := q.Get(p.name)
		if raw == "" {
			continue
		}
		n, err := strconv.Atoi(raw)
		if err != nil {
			return testevents.GeneratorConfig{}, fmt.Errorf("%s must be an integer", p.name)
		}
		*p.dst = n
	}
	return cfg, nil
}
