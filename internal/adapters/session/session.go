// Package session keeps the signed-in user in a signed JWT cookie.
package session

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/okian/calpulse/internal/domain/types"
)

const (
	// CookieName is the name of the session cookie.
	CookieName = "session_token"

	// DefaultTTL is how long a session stays valid.
	DefaultTTL = 24 * time.Hour

	issuer = "calpulse"
)

// Errors returned by the manager.
var (
	ErrNoSession     = errors.New("session: not signed in")
	ErrInvalid       = errors.New("session: invalid token")
	ErrNoSecret      = errors.New("session: secret not configured")
	ErrMissingAccess = errors.New("session: missing access token")
)

// Session is what the cookie carries between requests.
type Session struct {
	AccessToken string     `json:"accessToken"`
	AccountID   string     `json:"accountId,omitempty"`
	User        types.User `json:"user"`
}

type claims struct {
	Session
	jwt.RegisteredClaims
}

// Manager issues and verifies session cookies.
type Manager struct {
	secret []byte
	ttl    time.Duration
	secure bool
	now    func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithTTL sets the session lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithSecureCookies marks cookies Secure with SameSite=None.
func WithSecureCookies(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// NewManager creates a Manager signing with secret using HS256.
func NewManager(secret string, opts ...Option) (*Manager, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	m := &Manager{secret: []byte(secret), ttl: DefaultTTL, now: time.Now}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// TTL reports the session lifetime.
func (m *Manager) TTL() time.Duration { return m.ttl }

// Issue signs s and returns the token with its expiry.
func (m *Manager) Issue(s Session) (string, time.Time, error) {
	if s.AccessToken == "" {
		return "", time.Time{}, ErrMissingAccess
	}
	now := m.now()
	expiresAt := now.Add(m.ttl)
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Session: s,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   s.User.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session: %w", err)
	}
	return signed, expiresAt, nil
}

// Parse verifies a token and returns its session.
func (m *Manager) Parse(token string) (Session, error) {
	var c claims
	parsed, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(m.now),
	)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if !parsed.Valid || c.AccessToken == "" {
		return Session{}, ErrInvalid
	}
	return c.Session, nil
}

// FromRequest returns the session of a request. A missing, expired or
// tampered cookie yields ErrNoSession.
func (m *Manager) FromRequest(r *http.Request) (Session, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return Session{}, ErrNoSession
	}
	s, err := m.Parse(cookie.Value)
	if err != nil {
		return Session{}, fmt.Errorf("%w: %w", ErrNoSession, err)
	}
	return s, nil
}

// Write issues a token for s and sets it as the session cookie.
func (m *Manager) Write(w http.ResponseWriter, s Session) error {
	token, _, err := m.Issue(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, m.cookie(token, int(m.ttl/time.Second)))
	return nil
}

// Clear expires the session cookie.
func (m *Manager) Clear(w http.ResponseWriter) {
	http.SetCookie(w, m.cookie("", -1))
}

func (m *Manager) cookie(value string, maxAge int) *http.Cookie {
	c := &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	}
	if m.secure {
		c.SameSite = http.SameSiteNoneMode
	}
	return c
}
