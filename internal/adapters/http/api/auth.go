package api

import (
	"net/http"
	"net/url"

	"github.com/okian/calpulse/internal/domain/types"
	"github.com/okian/calpulse/pkg/logger"
	"github.com/okian/calpulse/pkg/metrics"
)

// AuthHandler handles sign-in and session requests.
type AuthHandler struct {
	deps   Dependencies
	guard  *sessionGuard
	appURL string
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(deps Dependencies, guard *sessionGuard, appURL string) *AuthHandler {
	return &AuthHandler{deps: deps, guard: guard, appURL: appURL}
}

type logoutResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type meResponse struct {
	User          types.User `json:"user"`
	Authenticated bool       `json:"authenticated"`
}

type statusResponse struct {
	Authenticated bool        `json:"authenticated"`
	User          *types.User `json:"user"`
}

// HandleLogin handles GET /api/auth/login requests.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	const op = "api.auth_login"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	target, err := h.deps.LoginURL(r.Context(), r.URL.Query().Get("state"))
	if err != nil {
		h.guard.fail(w, r, Wrap(op, err), "Failed to initiate login")
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// HandleCallback handles GET /api/auth/callback requests. Every outcome is a
// redirect back to the app.
func (h *AuthHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	q := r.URL.Query()
	if e := q.Get("error"); e != "" {
		if desc := q.Get("error_description"); desc != "" {
			e = desc
		}
		h.loginError(w, r, e)
		return
	}
	code := q.Get("code")
	if code == "" {
		h.loginError(w, r, "missing_code")
		return
	}

	sess, err := h.deps.CompleteLogin(r.Context(), code)
	if err != nil {
		h.guard.logger.Warn(r.Context(), "sign-in callback failed", logger.Error(err))
		h.loginError(w, r, err.Error())
		return
	}
	if err := h.guard.sessions.Write(w, sess); err != nil {
		h.guard.logger.Error(r.Context(), "failed to write session", logger.Error(err))
		h.loginError(w, r, err.Error())
		return
	}
	http.Redirect(w, r, h.appURL+"/dashboard", http.StatusFound)
}

func (h *AuthHandler) loginError(w http.ResponseWriter, r *http.Request, reason string) {
	http.Redirect(w, r, h.appURL+"/login?error="+url.QueryEscape(reason), http.StatusFound)
}

// HandleLogout handles POST /api/auth/logout requests.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	h.guard.sessions.Clear(w)
	metrics.RecordSessionEvent("logout")
	writeJSON(w, http.StatusOK, logoutResponse{Success: true, Message: "Logged out successfully"})
}

// HandleMe handles GET /api/auth/me requests.
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	const op = "api.auth_me"
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	sess, err := h.guard.sessions.FromRequest(r)
	if err != nil {
		h.guard.fail(w, r, WrapKind(op, ErrUnauthenticated, err), "")
		return
	}
	writeJSON(w, http.StatusOK, meResponse{User: sess.User, Authenticated: true})
}

// HandleStatus handles GET /api/auth/status requests.
func (h *AuthHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	sess, err := h.guard.sessions.FromRequest(r)
	if err != nil || sess.AccessToken == "" {
		writeJSON(w, http.StatusOK, statusResponse{})
		return
	}
	writeJSON(w, http.StatusOK, statusResponse{Authenticated: true, User: &sess.User})
}
