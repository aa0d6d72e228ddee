// Package metrics provides Prometheus metrics for the calpulse service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cache names used as label values.
const (
	CacheEvents = "events"
)

// Manager manages all Prometheus metrics for the calpulse service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     map[string]string
	registry         prometheus.Registerer

	// Analytics Metrics - What the service is for
	analysesRun      *prometheus.CounterVec
	eventsAnalyzed   *prometheus.CounterVec
	analysisDuration *prometheus.HistogramVec

	// Calendar Source Metrics - Graph API calls
	graphRequests        *prometheus.CounterVec
	graphRequestDuration *prometheus.HistogramVec

	// Session Metrics - Sign-in lifecycle
	sessionEvents *prometheus.CounterVec

	// Cache Metrics
	cacheRequests *prometheus.CounterVec
	cacheEntries  *prometheus.GaugeVec

	// Test Event Metrics - Bulk creation outcomes
	testEvents         *prometheus.CounterVec
	idempotencyReplays prometheus.Counter

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// Queue Metrics - Creation job queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker Metrics - Creation workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// Init replaces the global manager with one built from opts on a fresh
// registry. Call it once at startup, before anything captures GetRegistry.
func Init(opts ...Option) {
	registry := prometheus.NewRegistry()
	globalManager = NewManager(append(opts, WithPrometheusRegistry(registry))...)
	customRegistry = registry
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "calpulse",
		subsystem:        "service",
		histogramBuckets: prometheus.DefBuckets,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.analysesRun = m.counterVec("analyses_total",
		"Total number of analyses computed, by kind (range, timeseries, insights)", "kind")
	m.eventsAnalyzed = m.counterVec("events_analyzed_total",
		"Total number of calendar events fed into analyses", "kind")
	m.analysisDuration = m.histogramVec("analysis_duration_seconds",
		"Histogram of analysis computation time in seconds", "kind")

	m.graphRequests = m.counterVec("graph_requests_total",
		"Total number of Microsoft Graph requests", "operation", "status")
	m.graphRequestDuration = m.histogramVec("graph_request_duration_seconds",
		"Histogram of Microsoft Graph request duration in seconds", "operation")

	m.sessionEvents = m.counterVec("session_events_total",
		"Total number of session lifecycle events (login, logout, refresh, failure)", "action")

	m.cacheRequests = m.counterVec("cache_requests_total",
		"Total number of cache lookups", "cache", "result")
	m.cacheEntries = promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "cache_entries",
		Help:        "Current number of cached entries",
		ConstLabels: m.customLabels,
	}, []string{"cache"})

	m.testEvents = m.counterVec("test_events_total",
		"Total number of generated test events by outcome (created, failed)", "outcome")
	m.idempotencyReplays = m.counter("idempotency_replays_total",
		"Total number of generate requests rejected as repeated idempotency keys")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_seconds",
		"Histogram of HTTP request duration in seconds", "endpoint", "method", "status_code")
	m.httpErrors = m.counterVec("http_errors_total",
		"Total number of HTTP error responses by kind", "endpoint", "method", "kind")

	m.queueSize = m.gauge("queue_size", "Current number of creation jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the creation job queue")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of jobs enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of failed enqueue operations")

	m.workerActiveCount = m.gauge("worker_active_count", "Current number of active creation workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_seconds",
		"Histogram of per-job processing time in seconds")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Current system memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Current number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_time_milliseconds",
		"Histogram of garbage collection pause time in milliseconds")
}

// Analytics Metrics Functions

// RecordAnalysis records one analysis of the given kind over n events.
func RecordAnalysis(kind string, events int, seconds float64) {
	globalManager.analysesRun.WithLabelValues(kind).Inc()
	globalManager.eventsAnalyzed.WithLabelValues(kind).Add(float64(events))
	globalManager.analysisDuration.WithLabelValues(kind).Observe(seconds)
}

// RecordGraphRequest records a Graph call and its duration.
func RecordGraphRequest(operation, status string, seconds float64) {
	globalManager.graphRequests.WithLabelValues(operation, status).Inc()
	globalManager.graphRequestDuration.WithLabelValues(operation).Observe(seconds)
}

// RecordSessionEvent records a session lifecycle event.
func RecordSessionEvent(action string) {
	globalManager.sessionEvents.WithLabelValues(action).Inc()
}

// Cache Metrics Functions

// RecordCacheHit records a cache hit.
func RecordCacheHit(cache string) {
	globalManager.cacheRequests.WithLabelValues(cache, "hit").Inc()
}

// RecordCacheMiss records a cache miss.
func RecordCacheMiss(cache string) {
	globalManager.cacheRequests.WithLabelValues(cache, "miss").Inc()
}

// UpdateCacheEntries sets the current number of entries of a cache.
func UpdateCacheEntries(cache string, count int) {
	globalManager.cacheEntries.WithLabelValues(cache).Set(float64(count))
}

// Test Event Metrics Functions

// RecordTestEventCreated increments the created test events counter.
func RecordTestEventCreated() {
	globalManager.testEvents.WithLabelValues("created").Inc()
}

// RecordTestEventFailed increments the failed test events counter.
func RecordTestEventFailed() {
	globalManager.testEvents.WithLabelValues("failed").Inc()
}

// RecordIdempotencyReplay increments the rejected idempotency key counter.
func RecordIdempotencyReplay() {
	globalManager.idempotencyReplays.Inc()
}

// HTTP Metrics Functions

// RecordHTTPRequest increments the HTTP requests counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError counts an error response by kind.
func RecordHTTPError(endpoint, method, kind string) {
	globalManager.httpErrors.WithLabelValues(endpoint, method, kind).Inc()
}

// Queue Metrics Functions

// UpdateQueueSize updates the current queue size gauge.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity updates the queue capacity gauge.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeueRate.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker Metrics Functions

// UpdateWorkerActiveCount updates the active worker count gauge.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records per-job processing time in seconds.
func RecordWorkerProcessingLatency(seconds float64) {
	globalManager.workerProcessingLatency.Observe(seconds)
}

// System Metrics Functions

// UpdateSystemMemoryUsage updates the system memory usage gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount updates the goroutine count gauge.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
