package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/calpulse/internal/adapters/auth"
	"github.com/okian/calpulse/internal/adapters/graph"
	"github.com/okian/calpulse/internal/adapters/http/api"
	"github.com/okian/calpulse/internal/adapters/http/site"
	"github.com/okian/calpulse/internal/adapters/http/swagger"
	"github.com/okian/calpulse/internal/adapters/repository"
	"github.com/okian/calpulse/internal/adapters/session"
	app "github.com/okian/calpulse/internal/app"
	"github.com/okian/calpulse/internal/config"
	"github.com/okian/calpulse/internal/domain/dedupe"
	"github.com/okian/calpulse/pkg/logger"
	"github.com/okian/calpulse/pkg/metrics"
)

// HTTP server timeout constants. Writes allow for a 30 day test event
// generation, which creates events one after another.
const (
	readTimeout               = 10 * time.Second
	writeTimeout              = 5 * time.Minute
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	serviceMetricsInterval    = 5 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat), logger.WithLevel(cfg.LogLevel)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	initMetrics(cfg)

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(ctx, "service failed", logger.Error(err))
		os.Exit(1)
	}
}

// run serves HTTP until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	mux, svc, err := newMux(ctx, cfg)
	if err != nil {
		return err
	}

	go startSystemMetricsUpdater(ctx)
	go startServiceMetricsUpdater(ctx, svc)

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server",
			logger.String("addr", cfg.Addr),
			logger.String("environment", cfg.Environment),
			logger.Bool("auth_configured", cfg.AuthConfigured()))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
		return err
	}
	log.Info(ctx, "server stopped")
	return nil
}

// initMetrics rebuilds the global metrics manager from cfg. It must run
// before newMux, which captures the registry for /healthz.
func initMetrics(cfg *config.Config) {
	metrics.Init(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(cfg.MetricsHistogramBuckets),
		metrics.WithCustomLabels(map[string]string{"environment": cfg.Environment}),
	)
}

// newMux builds the service from cfg and registers every route.
func newMux(ctx context.Context, cfg *config.Config) (*http.ServeMux, *app.Service, error) {
	log := logger.Get()

	sessions, err := session.NewManager(cfg.SessionSecret,
		session.WithTTL(cfg.SessionTTL()),
		session.WithSecureCookies(cfg.SecureCookies()),
	)
	if err != nil {
		return nil, nil, err
	}

	calendar := graph.New(
		graph.WithBaseURL(cfg.GraphBaseURL),
		graph.WithTimeout(cfg.GraphTimeout()),
		graph.WithPageSize(cfg.GraphPageSize),
	)

	opts := []app.Option{
		app.WithLogger(log.Named("service")),
		app.WithEventCache(repository.NewEventCache(cfg.EventsCacheSize, repository.WithTTL(cfg.EventsCacheTTL()))),
		app.WithValueStore(repository.NewValueStore()),
		app.WithDeduper(dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(cfg.IdempotencyCacheSize))),
		app.WithDefaultRangeDays(cfg.DefaultRangeDays),
		app.WithMaxTestEventDays(cfg.TestEventsMaxDays),
		app.WithPreviewLimit(cfg.PreviewLimit),
		app.WithTestEventWorkers(cfg.TestEventsWorkers),
		app.WithTestEventDelay(cfg.TestEventsDelay()),
	}
	identity, err := auth.New(auth.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TenantID:     cfg.TenantID,
		RedirectURI:  cfg.RedirectURI,
	})
	switch {
	case err == nil:
		opts = append(opts, app.WithIdentity(identity))
	case errors.Is(err, auth.ErrNotConfigured):
		log.Warn(ctx, "client id or secret missing; sign-in is disabled")
	default:
		return nil, nil, err
	}
	svc := app.New(calendar, opts...)

	mux := http.NewServeMux()
	site.Register(ctx, mux)
	swagger.Register(ctx, mux)
	api.NewServer(svc, sessions, svc,
		api.WithAppURL(cfg.AppURL),
		api.WithLogger(log.Named("api")),
	).Register(ctx, mux)

	return mux, svc, nil
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// startServiceMetricsUpdater starts a background goroutine that updates service metrics.
func startServiceMetricsUpdater(ctx context.Context, svc *app.Service) {
	ticker := time.NewTicker(serviceMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateServiceMetrics(svc)
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}

// updateServiceMetrics refreshes the gauges GetStats maintains.
func updateServiceMetrics(svc *app.Service) {
	stats := svc.GetStats()
	if cached, ok := stats["cachedWindows"].(int); ok {
		metrics.UpdateCacheEntries(metrics.CacheEvents, cached)
	}
}
