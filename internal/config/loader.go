package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	envPrefix  = "CALPULSE_"
	envFileVar = "CALPULSE_CONFIG"
)

// Load builds a Config by layering defaults, optional file, and env vars.
// Order of precedence (low -> high):
//  1. defaults (New())
//  2. file (YAML) if CALPULSE_CONFIG is set
//  3. env (prefix CALPULSE_)
func Load(_ context.Context) (*Config, error) {
	k := koanf.New(".")

	if path := os.Getenv(envFileVar); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrLoadConfig, path, err)
		}
	}

	// CALPULSE_SESSION_SECRET -> session_secret. CALPULSE_CONFIG names the
	// file and is not a key.
	envProvider := env.Provider(envPrefix, ".", func(s string) string {
		if s == envFileVar {
			return ""
		}
		return strings.ToLower(strings.TrimPrefix(s, envPrefix))
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("%w: env: %w", ErrLoadConfig, err)
	}

	cfg := New()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadConfig, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values Load cannot default.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.SessionSecret == "":
		return fmt.Errorf("%w: session_secret must not be empty", ErrInvalidConfig)
	case c.SessionTTLHours <= 0:
		return fmt.Errorf("%w: session_ttl_hours must be positive", ErrInvalidConfig)
	case c.GraphTimeoutMS <= 0:
		return fmt.Errorf("%w: graph_timeout_ms must be positive", ErrInvalidConfig)
	case c.EventsCacheSize < 0:
		return fmt.Errorf("%w: events_cache_size must not be negative", ErrInvalidConfig)
	case c.DefaultRangeDays <= 0:
		return fmt.Errorf("%w: default_range_days must be positive", ErrInvalidConfig)
	case c.TestEventsMaxDays <= 0:
		return fmt.Errorf("%w: test_events_max_days must be positive", ErrInvalidConfig)
	case c.TestEventsWorkers <= 0:
		return fmt.Errorf("%w: test_events_workers must be positive", ErrInvalidConfig)
	case c.TestEventsDelayMS < 0:
		return fmt.Errorf("%w: test_events_delay_ms must not be negative", ErrInvalidConfig)
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("%w: log_format must be text or json", ErrInvalidConfig)
	}
	for i := 1; i < len(c.MetricsHistogramBuckets); i++ {
		if c.MetricsHistogramBuckets[i] <= c.MetricsHistogramBuckets[i-1] {
			return fmt.Errorf("%w: metrics_histogram_buckets must be increasing", ErrInvalidConfig)
		}
	}
	return nil
}
