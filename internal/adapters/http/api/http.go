// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/okian/calpulse/internal/adapters/session"
	service "github.com/okian/calpulse/internal/app"
	"github.com/okian/calpulse/internal/domain/analytics"
	"github.com/okian/calpulse/internal/domain/types"
	"github.com/okian/calpulse/internal/testevents"
	"github.com/okian/calpulse/pkg/logger"
)

// DefaultAppURL is where browser redirects land when no app URL is set.
const DefaultAppURL = "http://localhost:3000"

// Messages returned to clients.
const (
	msgAuthRequired    = "Authentication required"
	msgTokenExpired    = "Token expired. Please login again."
	msgInvalidDate     = "Invalid date format. Use YYYY-MM-DD"
	msgInvalidRange    = "Start date must be before end date"
	msgMissingDates    = "startDate and endDate are required (YYYY-MM-DD)"
	msgNoEvents        = "No events generated. Check your date range and configuration."
	msgDuplicate       = "A request with this Idempotency-Key was already processed"
	msgForbidden       = "Insufficient permissions. Please ensure Calendars.ReadWrite permission is granted in Azure AD."
	msgForbiddenDetail = "Go to Azure Portal → Your App → API permissions → Add Calendars.ReadWrite → Grant admin consent"
	msgInvalidValue    = "Invalid value. Must be a number."
	msgNotConfigured   = "Sign-in is not configured"
	msgBadRequest      = "Invalid request body"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	LoginURL(ctx context.Context, state string) (string, error)
	CompleteLogin(ctx context.Context, code string) (session.Session, error)

	ResolveRange(startDate, endDate string) (types.DateRange, error)
	Events(ctx context.Context, sess *session.Session, r types.DateRange) (service.EventsResult, error)
	TimeSeries(ctx context.Context, sess *session.Session, r types.DateRange) (analytics.TimeSeriesData, error)
	Insights(ctx context.Context, sess *session.Session, r types.DateRange) (service.InsightsResult, error)

	PreviewTestEvents(ctx context.Context, cfg testevents.GeneratorConfig) (service.Preview, error)
	GenerateTestEvents(ctx context.Context, sess *session.Session, cfg testevents.GeneratorConfig, idempotencyKey string) (service.GenerateResult, error)

	DisplayValue(ctx context.Context) service.DisplayValue
	SetDisplayValue(ctx context.Context, v float64) error
}

// Sessions reads and writes the session cookie.
type Sessions interface {
	FromRequest(r *http.Request) (session.Session, error)
	Write(w http.ResponseWriter, s session.Session) error
	Clear(w http.ResponseWriter)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler     *HealthHandler
	statsHandler      *StatsHandler
	authHandler       *AuthHandler
	calendarHandler   *CalendarHandler
	testEventsHandler *TestEventsHandler
	displayHandler    *DisplayHandler
	dashboardHandler  *dashboardHandler
}

// Option configures a Server.
type Option func(*config)

type config struct {
	appURL string
	logger logger.Logger
}

// WithAppURL sets the base URL browser redirects point at.
func WithAppURL(u string) Option {
	return func(c *config) {
		if u != "" {
			c.appURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithLogger sets the logger handlers report failures to.
func WithLogger(l logger.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, sessions Sessions, statsProvider StatsProvider, opts ...Option) *Server {
	cfg := config{appURL: DefaultAppURL}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.logger == nil {
		cfg.logger = logger.Get().Named("api")
	}
	guard := &sessionGuard{sessions: sessions, logger: cfg.logger}

	return &Server{
		healthHandler:     NewHealthHandler(),
		statsHandler:      NewStatsHandler(statsProvider),
		authHandler:       NewAuthHandler(deps, guard, cfg.appURL),
		calendarHandler:   NewCalendarHandler(deps, guard),
		testEventsHandler: NewTestEventsHandler(deps, guard),
		displayHandler:    NewDisplayHandler(deps, guard),
		dashboardHandler:  newdashboardHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/dashboard", s.dashboardHandler.HandleDashboard)
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	mux.HandleFunc("/api/auth/login", MetricsMiddleware(s.authHandler.HandleLogin, "auth_login"))
	mux.HandleFunc("/api/auth/callback", MetricsMiddleware(s.authHandler.HandleCallback, "auth_callback"))
	mux.HandleFunc("/api/auth/logout", MetricsMiddleware(s.authHandler.HandleLogout, "auth_logout"))
	mux.HandleFunc("/api/auth/me", MetricsMiddleware(s.authHandler.HandleMe, "auth_me"))
	mux.HandleFunc("/api/auth/status", MetricsMiddleware(s.authHandler.HandleStatus, "auth_status"))

	mux.HandleFunc("/api/calendar/events", MetricsMiddleware(s.calendarHandler.HandleEvents, "calendar_events"))
	mux.HandleFunc("/api/calendar/timeseries", MetricsMiddleware(s.calendarHandler.HandleTimeSeries, "calendar_timeseries"))
	mux.HandleFunc("/api/calendar/insights", MetricsMiddleware(s.calendarHandler.HandleInsights, "calendar_insights"))

	mux.HandleFunc("/api/test-events/preview", MetricsMiddleware(s.testEventsHandler.HandlePreview, "test_events_preview"))
	mux.HandleFunc("/api/test-events/generate", MetricsMiddleware(s.testEventsHandler.HandleGenerate, "test_events_generate"))

	mux.HandleFunc("/api/metrics/display", MetricsMiddleware(s.displayHandler.HandleDisplay, "metrics_display"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// failure is the client-facing shape of an error.
type failure struct {
	status  int
	code    string
	message string
	details string
}

// classify maps an error onto a response. fallback is the message of
// unexpected failures, whose cause goes into details.
func classify(err error, fallback string) failure {
	var tooLong *service.RangeTooLongError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return failure{status: http.StatusUnauthorized, code: "unauthorized", message: msgAuthRequired}
	case errors.Is(err, service.ErrTokenExpired):
		return failure{status: http.StatusUnauthorized, code: "token_expired", message: msgTokenExpired}
	case errors.Is(err, service.ErrMissingDates):
		return failure{status: http.StatusBadRequest, code: "missing_dates", message: msgMissingDates}
	case errors.Is(err, service.ErrInvalidDate):
		return failure{status: http.StatusBadRequest, code: "invalid_date", message: msgInvalidDate}
	case errors.Is(err, service.ErrInvalidRange):
		return failure{status: http.StatusBadRequest, code: "invalid_range", message: msgInvalidRange}
	case errors.As(err, &tooLong):
		return failure{status: http.StatusBadRequest, code: "range_too_long",
			message: fmt.Sprintf("Date range cannot exceed %d days", tooLong.MaxDays)}
	case errors.Is(err, service.ErrNoEvents):
		return failure{status: http.StatusBadRequest, code: "no_events", message: msgNoEvents}
	case errors.Is(err, service.ErrDuplicateRequest):
		return failure{status: http.StatusConflict, code: "duplicate", message: msgDuplicate}
	case errors.Is(err, service.ErrPermissionDenied):
		return failure{status: http.StatusForbidden, code: "forbidden", message: msgForbidden, details: msgForbiddenDetail}
	case errors.Is(err, service.ErrInvalidValue), errors.Is(err, ErrInvalidValue):
		return failure{status: http.StatusBadRequest, code: "invalid_value", message: msgInvalidValue}
	case errors.Is(err, ErrBadRequest):
		return failure{status: http.StatusBadRequest, code: "bad_request", message: msgBadRequest, details: cause(err)}
	case errors.Is(err, service.ErrAuthNotConfigured):
		return failure{status: http.StatusServiceUnavailable, code: "not_configured", message: msgNotConfigured}
	default:
		return failure{status: http.StatusInternalServerError, code: "internal", message: fallback, details: cause(err)}
	}
}

// cause returns the innermost message of an api.Error, or err itself.
func cause(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Err != nil {
		return e.Err.Error()
	}
	return err.Error()
}

// sessionGuard loads the session of a request and persists refreshed
// tokens back into the cookie.
type sessionGuard struct {
	sessions Sessions
	logger   logger.Logger
}

func (g *sessionGuard) require(r *http.Request, op string) (*session.Session, error) {
	sess, err := g.sessions.FromRequest(r)
	if err != nil || sess.AccessToken == "" {
		return nil, NewKind(op, ErrUnauthenticated)
	}
	return &sess, nil
}

// persist rewrites the cookie when the access token changed while serving.
func (g *sessionGuard) persist(w http.ResponseWriter, r *http.Request, before string, sess *session.Session) {
	if sess == nil || sess.AccessToken == before {
		return
	}
	if err := g.sessions.Write(w, *sess); err != nil {
		g.logger.Warn(r.Context(), "failed to persist refreshed session", logger.Error(err))
	}
}

// fail logs err and writes its classified response.
func (g *sessionGuard) fail(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	f := classify(err, fallback)
	fields := []logger.Field{
		logger.String("path", r.URL.Path),
		logger.Int("status", f.status),
		logger.Error(err),
	}
	if f.status >= statusInternalError {
		g.logger.Error(r.Context(), "request failed", fields...)
	} else {
		g.logger.Debug(r.Context(), "request rejected", fields...)
	}
	writeJSON(w, f.status, errorResponse{Code: f.code, Message: f.message, Details: f.details})
}

func methodNotAllowed(w http.ResponseWriter, allowed string) {
	w.Header().Set("Allow", allowed)
	writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", nil)
}
