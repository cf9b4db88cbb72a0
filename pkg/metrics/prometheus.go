package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Ratings ledger
	ratingsAppended  prometheus.Counter
	ratingsRejected  *prometheus.CounterVec
	ratingsDuplicate prometheus.Counter
	ledgerAppend     prometheus.Histogram
	ledgerErrors     prometheus.Counter

	// Read path
	profileLatency    prometheus.Histogram
	recommendations   *prometheus.CounterVec
	similarityLatency prometheus.Histogram

	// Catalog
	catalogSize    prometheus.Gauge
	catalogReloads *prometheus.CounterVec

	// Popularity pipeline
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueEnqueueError prometheus.Counter
	workerCount       prometheus.Gauge
	workerErrors      prometheus.Counter
	popularityUpdates prometheus.Counter
	popularDrinks     prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpErrors          *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "shaker",
		subsystem:        "engine",
		histogramBuckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 1000},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.ratingsAppended = m.counter("ratings_appended_total", "Rating events durably appended to the ledger")
	m.ratingsRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "ratings_rejected_total",
		Help: "Rating events rejected before reaching the ledger",
	}, []string{"reason"})
	m.ratingsDuplicate = m.counter("ratings_duplicate_total", "Rating submissions answered from the idempotency set")
	m.ledgerAppend = m.histogram("ledger_append_milliseconds", "Ledger append latency in milliseconds")
	m.ledgerErrors = m.counter("ledger_errors_total", "Ledger storage failures")

	m.profileLatency = m.histogram("profile_build_milliseconds", "Profile aggregation latency in milliseconds")
	m.recommendations = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "recommendations_total",
		Help: "Recommendation requests served by ranking mode",
	}, []string{"mode"})
	m.similarityLatency = m.histogram("similarity_scan_milliseconds", "Nearest-neighbor scan latency in milliseconds")

	m.catalogSize = m.gauge("catalog_drinks", "Drinks in the active catalog snapshot")
	m.catalogReloads = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "catalog_reloads_total",
		Help: "Catalog snapshot reloads by outcome",
	}, []string{"outcome"})

	m.queueSize = m.gauge("queue_size", "Popularity deltas waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Capacity of the popularity queue")
	m.queueEnqueueError = m.counter("queue_enqueue_errors_total", "Popularity deltas that could not be queued")
	m.workerCount = m.gauge("worker_count", "Running popularity workers")
	m.workerErrors = m.counter("worker_errors_total", "Popularity deltas that failed to apply")
	m.popularityUpdates = m.counter("popularity_updates_total", "Popularity deltas applied")
	m.popularDrinks = m.gauge("popular_drinks", "Drinks with at least one positive rating")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status code",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.httpErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_errors_total",
		Help: "HTTP error responses by endpoint and error code",
	}, []string{"endpoint", "code"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "system_gc_pause_time_milliseconds",
		Help:    "GC pause time in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordRatingAppended counts a durable ledger append and its latency.
func RecordRatingAppended(latencyMs float64) {
	globalManager.ratingsAppended.Inc()
	globalManager.ledgerAppend.Observe(latencyMs)
}

// RecordRatingRejected counts a rejected rating by reason.
func RecordRatingRejected(reason string) {
	globalManager.ratingsRejected.WithLabelValues(reason).Inc()
}

// RecordRatingDuplicate counts an idempotent replay.
func RecordRatingDuplicate() {
	globalManager.ratingsDuplicate.Inc()
}

// RecordLedgerError counts a storage failure.
func RecordLedgerError() {
	globalManager.ledgerErrors.Inc()
}

// RecordProfileLatency records profile aggregation latency in milliseconds.
func RecordProfileLatency(latencyMs float64) {
	globalManager.profileLatency.Observe(latencyMs)
}

// RecordRecommendation counts a served recommendation by mode.
func RecordRecommendation(mode string) {
	globalManager.recommendations.WithLabelValues(mode).Inc()
}

// RecordSimilarityLatency records a nearest-neighbor scan in milliseconds.
func RecordSimilarityLatency(latencyMs float64) {
	globalManager.similarityLatency.Observe(latencyMs)
}

// UpdateCatalogSize sets the number of drinks in the active snapshot.
func UpdateCatalogSize(n int) {
	globalManager.catalogSize.Set(float64(n))
}

// RecordCatalogReload counts a reload attempt by outcome ("ok" or "error").
func RecordCatalogReload(outcome string) {
	globalManager.catalogReloads.WithLabelValues(outcome).Inc()
}

// UpdateQueueSize sets the current queue depth.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueueError counts a delta that could not be queued.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueError.Inc()
}

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// RecordWorkerError counts a delta that failed to apply.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordPopularityUpdate counts an applied delta.
func RecordPopularityUpdate() {
	globalManager.popularityUpdates.Inc()
}

// UpdatePopularDrinks sets the number of drinks with positive ratings.
func UpdatePopularDrinks(n int) {
	globalManager.popularDrinks.Set(float64(n))
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordHTTPError counts an error response by its error code.
func RecordHTTPError(endpoint, code string) {
	globalManager.httpErrors.WithLabelValues(endpoint, code).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
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
