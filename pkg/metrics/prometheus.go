// Package metrics provides Prometheus metrics for the CEVS aggregation service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Cache
	cacheRequests  *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec
	cacheEntries   *prometheus.GaugeVec

	// Upstream fetches
	fetchDuration *prometheus.HistogramVec
	fetchErrors   *prometheus.CounterVec
	rowsSkipped   *prometheus.CounterVec

	// Scoring
	compositeScore    prometheus.Histogram
	scoringLatency    prometheus.Histogram
	sourceSkips       *prometheus.CounterVec
	unmappedCountries *prometheus.CounterVec

	// Warmer queue and workers
	queueSize      prometheus.Gauge
	queueCapacity  prometheus.Gauge
	queueEnqueued  prometheus.Counter
	queueDequeued  prometheus.Counter
	queueRejected  prometheus.Counter
	workerActive   prometheus.Gauge
	warmupJobs     *prometheus.CounterVec
	warmupDuration prometheus.Histogram

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager registered on the configured registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "cevs",
		subsystem:        "aggregator",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.cacheRequests = m.counterVec("cache_requests_total", "Cache lookups by source and result (hit, miss, stale)", "source", "result")
	m.cacheEvictions = m.counterVec("cache_evictions_total", "Entries evicted under capacity pressure", "source")
	m.cacheEntries = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "cache_entries", Help: "Live cache entries per source", ConstLabels: m.constLabels,
	}, []string{"source"})

	m.fetchDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "fetch_duration_seconds",
		Help: "Upstream fetch and parse latency per source", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"source"})
	m.fetchErrors = m.counterVec("fetch_errors_total", "Upstream fetch failures by source and category", "source", "category")
	m.rowsSkipped = m.counterVec("rows_skipped_total", "Upstream rows dropped because required fields were missing", "source")

	m.compositeScore = m.histogram("composite_score", "Distribution of clamped composite scores",
		[]float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100})
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Composite score computation latency in milliseconds",
		[]float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000})
	m.sourceSkips = m.counterVec("source_skips_total", "Sources excluded from a composite score because they failed", "source")
	m.unmappedCountries = m.counterVec("unmapped_countries_total", "Country inputs resolved by fallback", "reason")

	m.queueSize = m.gauge("warmup_queue_size", "Refresh jobs waiting in the warmup queue")
	m.queueCapacity = m.gauge("warmup_queue_capacity", "Capacity of the warmup queue")
	m.queueEnqueued = m.counter("warmup_queue_enqueued_total", "Refresh jobs accepted by the queue")
	m.queueDequeued = m.counter("warmup_queue_dequeued_total", "Refresh jobs taken off the queue")
	m.queueRejected = m.counter("warmup_queue_rejected_total", "Refresh jobs rejected because the queue was full or closed")
	m.workerActive = m.gauge("warmup_workers_active", "Warmup workers currently running")
	m.warmupJobs = m.counterVec("warmup_jobs_total", "Refresh jobs processed by result", "result")
	m.warmupDuration = m.histogram("warmup_job_duration_seconds", "Refresh job latency", m.histogramBuckets)

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by route, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_seconds",
		Help: "HTTP request latency", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
}

// RecordCacheRequest counts one cache lookup; result is hit, miss or stale.
func RecordCacheRequest(source, result string) {
	globalManager.cacheRequests.WithLabelValues(source, result).Inc()
}

// RecordCacheEviction counts one capacity eviction.
func RecordCacheEviction(source string) {
	globalManager.cacheEvictions.WithLabelValues(source).Inc()
}

// UpdateCacheEntries sets the live entry count for a source.
func UpdateCacheEntries(source string, n int) {
	globalManager.cacheEntries.WithLabelValues(source).Set(float64(n))
}

// RecordFetchDuration observes one upstream fetch in seconds.
func RecordFetchDuration(source string, seconds float64) {
	globalManager.fetchDuration.WithLabelValues(source).Observe(seconds)
}

// RecordFetchError counts a failed fetch.
func RecordFetchError(source, category string) {
	globalManager.fetchErrors.WithLabelValues(source, category).Inc()
}

// RecordRowsSkipped counts rows dropped while parsing.
func RecordRowsSkipped(source string, n int) {
	if n > 0 {
		globalManager.rowsSkipped.WithLabelValues(source).Add(float64(n))
	}
}

// RecordCompositeScore observes a clamped composite score.
func RecordCompositeScore(score float64) {
	globalManager.compositeScore.Observe(score)
}

// RecordScoringLatency records scoring latency in milliseconds.
func RecordScoringLatency(latencyMs float64) {
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordSourceSkip counts a source excluded from a composite score.
func RecordSourceSkip(source string) {
	globalManager.sourceSkips.WithLabelValues(source).Inc()
}

// RecordUnmappedCountry counts a fallback resolution; reason is unmapped or ambiguous.
func RecordUnmappedCountry(reason string) {
	globalManager.unmappedCountries.WithLabelValues(reason).Inc()
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueRejected increments the rejected enqueue counter.
func RecordQueueRejected() {
	globalManager.queueRejected.Inc()
}

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActive.Set(float64(count))
}

// RecordWarmupJob counts a processed refresh job; result is ok or error.
func RecordWarmupJob(result string, seconds float64) {
	globalManager.warmupJobs.WithLabelValues(result).Inc()
	globalManager.warmupDuration.Observe(seconds)
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in seconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
