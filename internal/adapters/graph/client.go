// Package graph is a small Microsoft Graph client for the signed-in user's
// calendar and profile.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/okian/calpulse/internal/domain/model"
	"github.com/okian/calpulse/internal/domain/types"
	"github.com/okian/calpulse/pkg/metrics"
)

// Defaults.
const (
	DefaultBaseURL  = "https://graph.microsoft.com/v1.0"
	DefaultTimeout  = 30 * time.Second
	DefaultPageSize = 500

	// maxErrorBody caps how much of an error response is kept.
	maxErrorBody = 4096

	calendarViewSelect = "id,subject,start,end,organizer,attendees,isAllDay,bodyPreview"
)

// Operation names used in metrics.
const (
	opCalendarView = "calendar_view"
	opMe           = "me"
	opCreateEvent  = "create_event"
)

// Profile is the subset of the Graph user resource the service needs.
type Profile struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	Mail              string `json:"mail"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// User converts the profile to the session user. Email falls back to the
// principal name when the mailbox address is not set.
func (p Profile) User() types.User {
	email := p.Mail
	if email == "" {
		email = p.UserPrincipalName
	}
	return types.User{ID: p.ID, DisplayName: p.DisplayName, Email: email}
}

// calendarResponse is one page of a calendarView response.
type calendarResponse struct {
	Value    []model.CalendarEvent `json:"value"`
	NextLink string                `json:"@odata.nextLink,omitempty"`
}

// Client talks to the Graph API on behalf of a user access token.
type Client struct {
	baseURL  string
	http     *http.Client
	pageSize int
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, e.g. for tests.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithPageSize sets the $top value of calendarView requests.
func WithPageSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.pageSize = n
		}
	}
}

// New creates a Graph client.
func New(opts ...Option) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		http:     &http.Client{Timeout: DefaultTimeout},
		pageSize: DefaultPageSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CalendarView returns every event overlapping [from, to), following
// pagination links until the last page.
func (c *Client) CalendarView(ctx context.Context, token string, from, to time.Time) ([]model.CalendarEvent, error) {
	params := url.Values{}
	params.Set("startDateTime", from.UTC().Format(time.RFC3339))
	params.Set("endDateTime", to.UTC().Format(time.RFC3339))
	params.Set("$select", calendarViewSelect)
	params.Set("$orderby", "start/dateTime")
	params.Set("$top", strconv.Itoa(c.pageSize))

	reqURL := c.baseURL + "/me/calendarView?" + params.Encode()

	events := make([]model.CalendarEvent, 0)
	for reqURL != "" {
		var page calendarResponse
		if err := c.do(ctx, opCalendarView, token, http.MethodGet, reqURL, nil, &page); err != nil {
			return nil, err
		}
		events = append(events, page.Value...)
		reqURL = page.NextLink
	}
	return events, nil
}

// Me returns the signed-in user's profile.
func (c *Client) Me(ctx context.Context, token string) (Profile, error) {
	var p Profile
	if err := c.do(ctx, opMe, token, http.MethodGet, c.baseURL+"/me", nil, &p); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// CreateEvent creates an event in the user's default calendar and returns
// it as stored.
func (c *Client) CreateEvent(ctx context.Context, token string, ev model.NewEvent) (model.CalendarEvent, error) {
	body, err := json.Marshal(ev)
	if err != nil {
		return model.CalendarEvent{}, fmt.Errorf("encode event: %w", err)
	}
	var created model.CalendarEvent
	if err := c.do(ctx, opCreateEvent, token, http.MethodPost, c.baseURL+"/me/events", body, &created); err != nil {
		return model.CalendarEvent{}, err
	}
	return created, nil
}

// do sends one request and decodes a 2xx JSON response into out.
func (c *Client) do(ctx context.Context, op, token, method, reqURL string, body []byte, out any) error {
	if token == "" {
		return ErrNoToken
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Prefer", `outlook.timezone="UTC"`)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		metrics.RecordGraphRequest(op, "error", time.Since(start).Seconds())
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() { _ = resp.Body.Close() }()
	metrics.RecordGraphRequest(op, strconv.Itoa(resp.StatusCode), time.Since(start).Seconds())

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Status: resp.StatusCode, Body: string(raw)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", op, err)
	}
	return nil
}
