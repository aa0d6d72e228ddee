package config_test

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/okian/calpulse/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfigLoader(t *testing.T) {
	convey.Convey("Given a config loader", t, func() {
		ctx := context.Background()
		clearConfigEnvVars()
		defer clearConfigEnvVars()

		convey.Convey("When loading config with defaults only", func() {
			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load successfully with defaults", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg, convey.ShouldResemble, config.New())
			})
		})

		convey.Convey("When loading config with environment variables", func() {
			_ = os.Setenv("CALPULSE_ADDR", ":8080")
			_ = os.Setenv("CALPULSE_CLIENT_ID", "app-id")
			_ = os.Setenv("CALPULSE_CLIENT_SECRET", "app-secret")
			_ = os.Setenv("CALPULSE_SESSION_TTL_HOURS", "12")
			_ = os.Setenv("CALPULSE_TEST_EVENTS_WORKERS", "4")
			_ = os.Setenv("CALPULSE_EVENTS_CACHE_SIZE", "0")

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should override defaults with env vars", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.ClientID, convey.ShouldEqual, "app-id")
				convey.So(cfg.AuthConfigured(), convey.ShouldBeTrue)
				convey.So(cfg.SessionTTLHours, convey.ShouldEqual, 12)
				convey.So(cfg.TestEventsWorkers, convey.ShouldEqual, 4)
				convey.So(cfg.EventsCacheSize, convey.ShouldEqual, 0)
				convey.So(cfg.DefaultRangeDays, convey.ShouldEqual, 7)
			})
		})

		convey.Convey("When loading config with YAML file", func() {
			yamlContent := `
# local overrides
addr: ":9090"
app_url: "https://calpulse.example"
environment: production
tenant_id: contoso
default_range_days: 14
test_events_delay_ms: 0
log_format: json
metrics_namespace: calpulse_dev
metrics_histogram_buckets: [0.05, 0.25, 1, 5]
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CALPULSE_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should load from YAML file", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":9090")
				convey.So(cfg.AppURL, convey.ShouldEqual, "https://calpulse.example")
				convey.So(cfg.SecureCookies(), convey.ShouldBeTrue)
				convey.So(cfg.TenantID, convey.ShouldEqual, "contoso")
				convey.So(cfg.DefaultRangeDays, convey.ShouldEqual, 14)
				convey.So(cfg.TestEventsDelayMS, convey.ShouldEqual, 0)
				convey.So(cfg.LogFormat, convey.ShouldEqual, "json")
				convey.So(cfg.PreviewLimit, convey.ShouldEqual, 10)
				convey.So(cfg.MetricsNamespace, convey.ShouldEqual, "calpulse_dev")
				convey.So(cfg.MetricsSubsystem, convey.ShouldEqual, "service")
				convey.So(cfg.MetricsHistogramBuckets, convey.ShouldResemble, []float64{0.05, 0.25, 1, 5})
			})
		})

		convey.Convey("When histogram buckets are out of order", func() {
			tmpFile := createTempConfigFile("metrics_histogram_buckets: [1, 0.5]\n")
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CALPULSE_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then the config is rejected", func() {
				convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
				convey.So(err.Error(), convey.ShouldContainSubstring, "metrics_histogram_buckets")
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with both file and environment variables", func() {
			yamlContent := `
addr: ":9090"
preview_limit: 5
`
			tmpFile := createTempConfigFile(yamlContent)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CALPULSE_CONFIG", tmpFile)
			_ = os.Setenv("CALPULSE_ADDR", ":8080")

			cfg, err := config.Load(ctx)

			convey.Convey("Then environment variables should override file values", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(cfg.Addr, convey.ShouldEqual, ":8080")
				convey.So(cfg.PreviewLimit, convey.ShouldEqual, 5)
			})
		})

		convey.Convey("When loading config with invalid YAML file", func() {
			tmpFile := createTempConfigFile(`invalid: yaml: content: [`)
			defer func() { _ = os.Remove(tmpFile) }()
			_ = os.Setenv("CALPULSE_CONFIG", tmpFile)

			cfg, err := config.Load(ctx)

			convey.Convey("Then it should return a load error", func() {
				convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
				convey.So(cfg, convey.ShouldBeNil)
			})
		})

		convey.Convey("When loading config with non-existent file", func() {
			_ = os.Setenv("CALPULSE_CONFIG", "/non/existent/file.yaml")

			cfg, err := config.Load(ctx)

			convey.So(errors.Is(err, config.ErrLoadConfig), convey.ShouldBeTrue)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with invalid numeric environment variables", func() {
			_ = os.Setenv("CALPULSE_GRAPH_PAGE_SIZE", "lots")

			cfg, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(cfg, convey.ShouldBeNil)
		})

		convey.Convey("When loading config with invalid values", func() {
			cases := map[string]string{
				"CALPULSE_ADDR":                 "",
				"CALPULSE_SESSION_SECRET":       "",
				"CALPULSE_SESSION_TTL_HOURS":    "0",
				"CALPULSE_DEFAULT_RANGE_DAYS":   "-1",
				"CALPULSE_TEST_EVENTS_WORKERS":  "0",
				"CALPULSE_TEST_EVENTS_DELAY_MS": "-5",
				"CALPULSE_EVENTS_CACHE_SIZE":    "-1",
				"CALPULSE_LOG_FORMAT":           "xml",
			}

			convey.Convey("Then each one is rejected", func() {
				for key, value := range cases {
					clearConfigEnvVars()
					_ = os.Setenv(key, value)

					cfg, err := config.Load(ctx)
					convey.So(errors.Is(err, config.ErrInvalidConfig), convey.ShouldBeTrue)
					convey.So(cfg, convey.ShouldBeNil)
				}
			})
		})

		convey.Convey("When loading config with an empty addr", func() {
			_ = os.Setenv("CALPULSE_ADDR", "")

			_, err := config.Load(ctx)

			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "addr must not be empty")
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, "CALPULSE_") {
			_ = os.Unsetenv(key)
		}
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "calpulse-config-*.yaml")
	if err != nil {
		panic(err)
	}

	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}

	if err := tmpFile.Close(); err != nil {
		panic(err)
	}

	return tmpFile.Name()
}
