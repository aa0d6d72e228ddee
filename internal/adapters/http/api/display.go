package api

import (
	"encoding/json"
	"net/http"
	"strings"
)

// DisplayHandler handles the stored display value.
type DisplayHandler struct {
	deps  Dependencies
	guard *sessionGuard
}

// NewDisplayHandler creates a new display value handler.
func NewDisplayHandler(deps Dependencies, guard *sessionGuard) *DisplayHandler {
	return &DisplayHandler{deps: deps, guard: guard}
}

type displayRequest struct {
	Value *float64 `json:"value"`
}

type displayUpdateResponse struct {
	Success bool    `json:"success"`
	Value   float64 `json:"value"`
	Message string  `json:"message"`
}

// HandleDisplay handles GET and POST /api/metrics/display requests.
func (h *DisplayHandler) HandleDisplay(w http.ResponseWriter, r *http.Request) {
	const op = "api.metrics_display"
	switch r.Method {
	case http.MethodGet, http.MethodPost:
	default:
		methodNotAllowed(w, strings.Join([]string{http.MethodGet, http.MethodPost}, ", "))
		return
	}
	if _, err := h.guard.require(r, op); err != nil {
		h.guard.fail(w, r, err, "")
		return
	}

	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, h.deps.DisplayValue(r.Context()))
		return
	}

	var req displayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.guard.fail(w, r, WrapKind(op, ErrInvalidValue, err), "Failed to update value")
		return
	}
	if req.Value == nil {
		h.guard.fail(w, r, NewKind(op, ErrInvalidValue), "Failed to update value")
		return
	}
	if err := h.deps.SetDisplayValue(r.Context(), *req.Value); err != nil {
		h.guard.fail(w, r, Wrap(op, err), "Failed to update value")
		return
	}
	writeJSON(w, http.StatusOK, displayUpdateResponse{
		Success: true,
		Value:   *req.Value,
		Message: "Value updated successfully",
	})
}
