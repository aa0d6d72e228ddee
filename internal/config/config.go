// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case names shared by the YAML file and CALPULSE_ env vars.
// - Durations are stored as integers with the unit in the key name.
// - Errors returned by Load wrap ErrLoadConfig or ErrInvalidConfig.
package config

import (
	"time"
)

// EnvProduction turns on Secure cookies.
const EnvProduction = "production"

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":3001".
	Addr string `koanf:"addr"`

	// AppURL is the browser-facing base URL sign-in redirects return to.
	AppURL string `koanf:"app_url"`

	// Environment names the deployment; "production" enables Secure cookies.
	Environment string `koanf:"environment"`

	// ClientID, ClientSecret and TenantID identify the Azure AD app
	// registration. Sign-in is disabled when the id or secret is empty.
	ClientID     string `koanf:"client_id"`
	ClientSecret string `koanf:"client_secret"`
	TenantID     string `koanf:"tenant_id"`
	RedirectURI  string `koanf:"redirect_uri"`

	// SessionSecret signs session cookies.
	SessionSecret   string `koanf:"session_secret"`
	SessionTTLHours int    `koanf:"session_ttl_hours"`

	GraphBaseURL   string `koanf:"graph_base_url"`
	GraphTimeoutMS int    `koanf:"graph_timeout_ms"`
	GraphPageSize  int    `koanf:"graph_page_size"`

	// EventsCacheSize bounds the cached calendar windows; 0 disables the cache.
	EventsCacheSize       int `koanf:"events_cache_size"`
	EventsCacheTTLSeconds int `koanf:"events_cache_ttl_seconds"`

	// DefaultRangeDays is the window used when a request names no dates.
	DefaultRangeDays int `koanf:"default_range_days"`

	TestEventsMaxDays int `koanf:"test_events_max_days"`
	TestEventsWorkers int `koanf:"test_events_workers"`
	TestEventsDelayMS int `koanf:"test_events_delay_ms"`
	PreviewLimit      int `koanf:"preview_limit"`

	IdempotencyCacheSize int `koanf:"idempotency_cache_size"`

	// Metrics names are <namespace>_<subsystem>_<metric>. Empty buckets keep
	// the Prometheus defaults.
	MetricsNamespace        string    `koanf:"metrics_namespace"`
	MetricsSubsystem        string    `koanf:"metrics_subsystem"`
	MetricsHistogramBuckets []float64 `koanf:"metrics_histogram_buckets"`
}

// New creates a Config holding the defaults.
func New() *Config {
	return &Config{
		LogLevel:              "info",
		LogFormat:             "text",
		Addr:                  ":3001",
		AppURL:                "http://localhost:3000",
		Environment:           "development",
		TenantID:              "common",
		RedirectURI:           "http://localhost:3000/api/auth/callback",
		SessionSecret:         "change-me-in-production",
		SessionTTLHours:       24,
		GraphBaseURL:          "https://graph.microsoft.com/v1.0",
		GraphTimeoutMS:        30_000,
		GraphPageSize:         250,
		EventsCacheSize:       256,
		EventsCacheTTLSeconds: 300,
		DefaultRangeDays:      7,
		TestEventsMaxDays:     30,
		TestEventsWorkers:     1,
		TestEventsDelayMS:     100,
		PreviewLimit:          10,
		IdempotencyCacheSize:  10_000,
		MetricsNamespace:      "calpulse",
		MetricsSubsystem:      "service",
	}
}

// AuthConfigured reports whether sign-in credentials are present.
func (c *Config) AuthConfigured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// SecureCookies reports whether session cookies must be Secure.
func (c *Config) SecureCookies() bool {
	return c.Environment == EnvProduction
}

// SessionTTL returns the session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// GraphTimeout returns the per-request Graph timeout.
func (c *Config) GraphTimeout() time.Duration {
	return time.Duration(c.GraphTimeoutMS) * time.Millisecond
}

// EventsCacheTTL returns how long a fetched window stays cached.
func (c *Config) EventsCacheTTL() time.Duration {
	return time.Duration(c.EventsCacheTTLSeconds) * time.Second
}

// TestEventsDelay returns the pause between two created test events.
func (c *Config) TestEventsDelay() time.Duration {
	return time.Duration(c.TestEventsDelayMS) * time.Millisecond
}
