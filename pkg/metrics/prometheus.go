// Package metrics provides Prometheus metrics for formguide.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric subsystems.
const (
	subsystemPipeline   = "pipeline"
	subsystemCrawl      = "crawl"
	subsystemRepository = "repository"
	subsystemHTTP       = "http"
)

// Manager owns every Prometheus collector of the process.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	latencyBuckets   []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Enrichment pipeline
	recordsProcessed   prometheus.Counter
	recordsSkipped     prometheus.Counter
	recordsDuplicate   prometheus.Counter
	creatorInvocations *prometheus.CounterVec
	passDuration       prometheus.Histogram
	historyEntities    *prometheus.GaugeVec
	historyRecords     *prometheus.GaugeVec
	progressRecords    prometheus.Gauge
	runsTotal          *prometheus.CounterVec

	// Crawl queue and workers
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	workerActive       prometheus.Gauge
	pageFetchLatency   prometheus.Histogram
	pageErrors         *prometheus.CounterVec
	pagesParsed        prometheus.Counter

	// Repository
	repositoryLatency *prometheus.HistogramVec
	repositoryRows    *prometheus.CounterVec

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec

	errorRateByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "formguide",
		histogramBuckets: prometheus.DefBuckets,
		latencyBuckets:   prometheus.ExponentialBuckets(1, 2, 14), // 1ms .. ~8s
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(subsystem, name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(subsystem, name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gaugeVec(subsystem, name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogram(subsystem, name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	})
}

func (m *Manager) histogramVec(subsystem, name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: subsystem, Name: name, Help: help, ConstLabels: m.constLabels, Buckets: buckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	m.recordsProcessed = m.counter(subsystemPipeline, "records_processed_total",
		"Total number of participation records enriched")
	m.recordsSkipped = m.counter(subsystemPipeline, "records_skipped_total",
		"Total number of malformed records skipped under the skip policy")
	m.recordsDuplicate = m.counter(subsystemPipeline, "records_duplicate_total",
		"Total number of repeated participations dropped before enrichment")
	m.creatorInvocations = m.counterVec(subsystemPipeline, "creator_invocations_total",
		"Variable creator invocations by history scope", "scope")
	m.passDuration = m.histogram(subsystemPipeline, "pass_duration_seconds",
		"Wall time of one enrichment pass", m.histogramBuckets)
	m.historyEntities = m.gaugeVec(subsystemPipeline, "history_entities",
		"Entities tracked by a history index at the end of the last pass", "index")
	m.historyRecords = m.gaugeVec(subsystemPipeline, "history_records",
		"Records held by a history index at the end of the last pass", "index")
	m.progressRecords = m.gauge(subsystemPipeline, "progress_records",
		"Records enriched so far in the running pass")
	m.runsTotal = m.counterVec(subsystemPipeline, "runs_total",
		"Enrichment runs by outcome", "outcome")

	m.queueSize = m.gauge(subsystemCrawl, "queue_size", "Crawl jobs waiting in the queue")
	m.queueCapacity = m.gauge(subsystemCrawl, "queue_capacity", "Crawl queue capacity")
	m.queueEnqueued = m.counter(subsystemCrawl, "enqueued_total", "Crawl jobs accepted by the queue")
	m.queueDequeued = m.counter(subsystemCrawl, "dequeued_total", "Crawl jobs taken by workers")
	m.queueEnqueueErrors = m.counter(subsystemCrawl, "enqueue_errors_total", "Crawl jobs refused by the queue")
	m.workerActive = m.gauge(subsystemCrawl, "workers_active", "Crawl workers currently fetching or parsing")
	m.pageFetchLatency = m.histogram(subsystemCrawl, "page_fetch_duration_milliseconds",
		"Result page fetch latency in milliseconds", m.latencyBuckets)
	m.pageErrors = m.counterVec(subsystemCrawl, "page_errors_total", "Failed pages by stage", "stage")
	m.pagesParsed = m.counter(subsystemCrawl, "pages_parsed_total", "Result pages parsed successfully")

	m.repositoryLatency = m.histogramVec(subsystemRepository, "query_duration_milliseconds",
		"Repository operation latency in milliseconds", m.latencyBuckets, "op")
	m.repositoryRows = m.counterVec(subsystemRepository, "rows_written_total",
		"Rows written by table", "table")

	m.httpRequests = m.counterVec(subsystemHTTP, "requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec(subsystemHTTP, "request_duration_milliseconds",
		"HTTP request duration in milliseconds", m.latencyBuckets, "endpoint", "method", "status_code")
	m.errorRateByEndpoint = m.counterVec(subsystemHTTP, "errors_by_endpoint_total",
		"HTTP errors by endpoint, method and error type", "endpoint", "method", "error_type")
	m.errorRateByType = m.counterVec(subsystemHTTP, "errors_by_type_total",
		"HTTP errors by type and severity", "error_type", "severity")

	m.errorRateByComponent = m.counterVec("", "errors_total",
		"Errors by component and type", "component", "error_type")
}

// Pipeline metrics.

// RecordRecordsProcessed adds n enriched records.
func RecordRecordsProcessed(n int) { globalManager.recordsProcessed.Add(float64(n)) }

// RecordRecordSkipped counts one malformed record skipped.
func RecordRecordSkipped() { globalManager.recordsSkipped.Inc() }

// RecordDuplicates adds n dropped duplicate participations.
func RecordDuplicates(n int) { globalManager.recordsDuplicate.Add(float64(n)) }

// RecordCreatorInvocations adds n creator calls for a history scope.
func RecordCreatorInvocations(scope string, n int) {
	if n > 0 {
		globalManager.creatorInvocations.WithLabelValues(scope).Add(float64(n))
	}
}

// RecordPassDuration observes the duration of one pass in seconds.
func RecordPassDuration(seconds float64) { globalManager.passDuration.Observe(seconds) }

// UpdateHistorySize sets the entity and record counts of a history index.
func UpdateHistorySize(index string, entities, records int) {
	globalManager.historyEntities.WithLabelValues(index).Set(float64(entities))
	globalManager.historyRecords.WithLabelValues(index).Set(float64(records))
}

// UpdateProgress sets the number of records enriched so far.
func UpdateProgress(records int) { globalManager.progressRecords.Set(float64(records)) }

// RecordRun counts a finished run by outcome ("ok" or "failed").
func RecordRun(outcome string) { globalManager.runsTotal.WithLabelValues(outcome).Inc() }

// Crawl metrics.

// UpdateQueueSize sets the number of waiting crawl jobs.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the crawl queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// RecordQueueEnqueue counts an accepted crawl job.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue counts a crawl job taken by a worker.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError counts a refused crawl job.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerActiveCount sets the number of busy crawl workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActive.Set(float64(count)) }

// RecordPageFetchLatency observes a page fetch in milliseconds.
func RecordPageFetchLatency(latencyMs float64) { globalManager.pageFetchLatency.Observe(latencyMs) }

// RecordPageError counts a failed page at a stage ("fetch" or "parse").
func RecordPageError(stage string) { globalManager.pageErrors.WithLabelValues(stage).Inc() }

// RecordPageParsed counts a parsed page.
func RecordPageParsed() { globalManager.pagesParsed.Inc() }

// Repository metrics.

// RecordRepositoryLatency observes a repository operation in milliseconds.
func RecordRepositoryLatency(op string, latencyMs float64) {
	globalManager.repositoryLatency.WithLabelValues(op).Observe(latencyMs)
}

// RecordRowsWritten adds n rows written to table.
func RecordRowsWritten(table string, n int) {
	globalManager.repositoryRows.WithLabelValues(table).Add(float64(n))
}

// HTTP metrics.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
