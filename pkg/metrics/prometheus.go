// Package metrics provides Prometheus metrics for the match detection service.
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
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Matching
	changesProcessed   prometheus.Counter
	changesDuplicate   prometheus.Counter
	pairsScored        prometheus.Counter
	scoringLatency     prometheus.Histogram
	scoringErrors      prometheus.Counter
	sweepDuration      prometheus.Histogram
	sweepCandidates    prometheus.Histogram
	matchesDetected    prometheus.Counter
	matchesReevaluated prometheus.Counter
	matchesRefreshed   prometheus.Counter
	matchScore         prometheus.Histogram
	facetHits          *prometheus.CounterVec
	reviews            *prometheus.CounterVec
	candidateMatches   prometheus.Gauge
	records            *prometheus.GaugeVec

	// Notifications
	notificationsPublished *prometheus.CounterVec
	notificationErrors     *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	errorsByComponent *prometheus.CounterVec
	errorsByEndpoint  *prometheus.CounterVec

	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "reencuentro",
		subsystem:        "matching",
		histogramBuckets: prometheus.DefBuckets,
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
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string, buckets []float64) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: buckets,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.changesProcessed = m.counter("changes_processed_total", "Record changes swept to completion")
	m.changesDuplicate = m.counter("changes_duplicate_total", "Record changes dropped as already seen")
	m.pairsScored = m.counter("pairs_scored_total", "Ficha/hallazgo pairs scored")
	m.scoringLatency = m.histogram("scoring_latency_milliseconds", "Latency of scoring one pair in milliseconds", m.histogramBuckets)
	m.scoringErrors = m.counter("scoring_errors_total", "Pairs whose scoring failed")
	m.sweepDuration = m.histogram("sweep_duration_milliseconds", "Duration of one record sweep in milliseconds", m.histogramBuckets)
	m.sweepCandidates = m.histogram("sweep_candidates", "Counterparts evaluated per sweep",
		[]float64{0, 1, 5, 10, 50, 100, 500, 1000, 5000})
	m.matchesDetected = m.counter("matches_detected_total", "New candidate matches persisted")
	m.matchesReevaluated = m.counter("matches_reevaluated_total", "Existing candidate matches whose evaluation changed")
	m.matchesRefreshed = m.counter("matches_refreshed_total", "Existing candidate matches re-scored with an unchanged evaluation")
	m.matchScore = m.histogram("match_score", "Total score of pairs that cleared the threshold",
		[]float64{100, 200, 300, 400, 500, 600, 750, 900, 1200, 1500})
	m.facetHits = m.counterVec("facet_hits_total", "Facets that contributed points to a scored pair", "facet")
	m.reviews = m.counterVec("reviews_total", "Administrator reviews by resulting state", "state")
	m.candidateMatches = m.gauge("candidate_matches", "Candidate matches currently stored")
	m.records = m.gaugeVec("records", "Records in the registry by kind", "kind")

	m.notificationsPublished = m.counterVec("notifications_published_total", "Match notifications published", "event")
	m.notificationErrors = m.counterVec("notification_errors_total", "Match notifications that failed to publish", "event")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "http_requests_total",
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.repositoryUpdateLatency = m.histogram("repository_update_latency_milliseconds", "Repository write latency in milliseconds", m.histogramBuckets)
	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Repository read latency in milliseconds", m.histogramBuckets)

	m.queueSize = m.gauge("queue_size", "Record changes waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum queue capacity")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueued = m.counter("queue_enqueue_total", "Record changes enqueued")
	m.queueDequeued = m.counter("queue_dequeue_total", "Record changes dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Record changes rejected by the queue")

	m.workerCount = m.gauge("worker_count", "Sweep workers running")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Worker latency per record change in milliseconds", m.histogramBuckets)
	m.workerErrors = m.counter("worker_errors_total", "Record changes whose sweep failed")

	m.errorsByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorsByEndpoint = m.counterVec("errors_by_endpoint_total", "API errors by endpoint and kind", "endpoint", "method", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "Heap memory in use in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
}

func (m *Manager) gaugeVec(name, help string, labels ...string) *prometheus.GaugeVec {
	return promauto.With(m.registry).NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

// RecordChangeProcessed increments the processed record changes counter.
func RecordChangeProcessed() { globalManager.changesProcessed.Inc() }

// RecordChangeDuplicate increments the duplicate record changes counter.
func RecordChangeDuplicate() { globalManager.changesDuplicate.Inc() }

// RecordPairScored counts one scored pair and its latency.
func RecordPairScored(latencyMs float64) {
	globalManager.pairsScored.Inc()
	globalManager.scoringLatency.Observe(latencyMs)
}

// RecordScoringError increments the scoring errors counter.
func RecordScoringError() { globalManager.scoringErrors.Inc() }

// RecordSweep records the duration of a sweep and how many counterparts it evaluated.
func RecordSweep(durationMs float64, candidates int) {
	globalManager.sweepDuration.Observe(durationMs)
	globalManager.sweepCandidates.Observe(float64(candidates))
}

// RecordMatchDetected increments the new matches counter.
func RecordMatchDetected() { globalManager.matchesDetected.Inc() }

// RecordMatchReevaluated increments the re-evaluated matches counter.
func RecordMatchReevaluated() { globalManager.matchesReevaluated.Inc() }

// RecordMatchRefreshed increments the unchanged re-scored matches counter.
func RecordMatchRefreshed() { globalManager.matchesRefreshed.Inc() }

// RecordMatchScore observes the score of a pair that cleared the threshold.
func RecordMatchScore(score int) { globalManager.matchScore.Observe(float64(score)) }

// RecordFacetHit counts a facet that contributed points.
func RecordFacetHit(facet string) { globalManager.facetHits.WithLabelValues(facet).Inc() }

// RecordReview counts an administrator review by resulting state.
func RecordReview(state string) { globalManager.reviews.WithLabelValues(state).Inc() }

// UpdateCandidateMatches sets the stored candidate match count.
func UpdateCandidateMatches(count int) { globalManager.candidateMatches.Set(float64(count)) }

// UpdateRecords sets the registry size for a record kind.
func UpdateRecords(kind string, count int) {
	globalManager.records.WithLabelValues(kind).Set(float64(count))
}

// RecordNotification counts a published notification for event.
func RecordNotification(event string) {
	globalManager.notificationsPublished.WithLabelValues(event).Inc()
}

// RecordNotificationError counts a failed notification for event.
func RecordNotificationError(event string) {
	globalManager.notificationErrors.WithLabelValues(event).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordRepositoryUpdateLatency records repository write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueued.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeued.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// UpdateWorkerCount sets the number of running workers.
func UpdateWorkerCount(count int) { globalManager.workerCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an API error with endpoint, method and kind labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap memory in use.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
