package metrics

import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Recalculation runs
	recalculations       *prometheus.CounterVec
	recalculationLatency *prometheus.HistogramVec
	rowsWritten          *prometheus.CounterVec
	itemErrors           *prometheus.CounterVec
	classesFixed         prometheus.Counter
	snapshotRiders       *prometheus.GaugeVec
	scopeLockWait        prometheus.Histogram

	// Worker pool and scheduler
	workerCount   prometheus.Gauge
	workerRunning prometheus.Gauge
	schedulerRuns *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Repository
	repositoryQueries       *prometheus.CounterVec
	repositoryQueryLatency  *prometheus.HistogramVec
	repositoryUpdateLatency *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

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
		namespace:        "peloton",
		subsystem:        "engine",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
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

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.recalculations = m.counterVec("recalculations_total",
		"Engine invocations by operation and outcome status", "operation", "status")
	m.recalculationLatency = m.histogramVec("recalculation_duration_milliseconds",
		"Engine invocation duration in milliseconds", "operation")
	m.rowsWritten = m.counterVec("rows_written_total",
		"Derived rows written by operation", "operation")
	m.itemErrors = m.counterVec("item_errors_total",
		"Per-item failures absorbed into partial results", "operation")
	m.classesFixed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "classes_fixed_total",
		Help: "Result rows relocated to the class their rider belongs in",
	})
	m.snapshotRiders = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name: "snapshot_riders",
		Help: "Riders in the most recently written snapshot by discipline",
	}, []string{"discipline"})
	m.scopeLockWait = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.constLabels,
		Name:    "scope_lock_wait_milliseconds",
		Help:    "Time spent waiting for another invocation on the same scope",
		Buckets: m.histogramBuckets,
	})

	m.workerCount = m.gauge("worker_pool_size", "Configured size of the fan-out worker pool")
	m.workerRunning = m.gauge("worker_pool_running", "Workers currently running tasks")
	m.schedulerRuns = m.counterVec("scheduler_runs_total", "Scheduled job runs by job and status", "job", "status")

	m.httpRequests = m.counterVec("http_requests_total",
		"Total number of HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds",
		"HTTP request duration in milliseconds", "endpoint", "method", "status_code")

	m.repositoryQueries = m.counterVec("repository_queries_total",
		"Store reads by backend and operation", "backend", "operation")
	m.repositoryQueryLatency = m.histogramVec("repository_query_latency_milliseconds",
		"Store read latency in milliseconds", "backend")
	m.repositoryUpdateLatency = m.histogramVec("repository_update_latency_milliseconds",
		"Store transaction latency in milliseconds", "backend")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "error_type")

	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
}

// RecordRecalculation counts one finished invocation and its duration.
func RecordRecalculation(operation, status string, durationMs float64) {
	globalManager.recalculations.WithLabelValues(operation, status).Inc()
	globalManager.recalculationLatency.WithLabelValues(operation).Observe(durationMs)
}

// AddRowsWritten adds derived rows written by an invocation.
func AddRowsWritten(operation string, n int) {
	if n > 0 {
		globalManager.rowsWritten.WithLabelValues(operation).Add(float64(n))
	}
}

// AddItemErrors adds per-item failures of an invocation.
func AddItemErrors(operation string, n int) {
	if n > 0 {
		globalManager.itemErrors.WithLabelValues(operation).Add(float64(n))
	}
}

// AddClassesFixed adds relocated result rows.
func AddClassesFixed(n int) {
	if n > 0 {
		globalManager.classesFixed.Add(float64(n))
	}
}

// UpdateSnapshotRiders sets the rider count of the newest snapshot for a discipline.
func UpdateSnapshotRiders(discipline string, n int) {
	globalManager.snapshotRiders.WithLabelValues(discipline).Set(float64(n))
}

// RecordScopeLockWait observes time spent waiting for a scope lock.
func RecordScopeLockWait(waitMs float64) {
	globalManager.scopeLockWait.Observe(waitMs)
}

// UpdateWorkerCount sets the configured pool size.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerRunning sets the number of busy workers.
func UpdateWorkerRunning(count int64) {
	globalManager.workerRunning.Set(float64(count))
}

// RecordSchedulerRun counts one scheduled job run.
func RecordSchedulerRun(job, status string) {
	globalManager.schedulerRuns.WithLabelValues(job, status).Inc()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// RecordRepositoryQuery counts one store read.
func RecordRepositoryQuery(backend, operation string) {
	globalManager.repositoryQueries.WithLabelValues(backend, operation).Inc()
}

// RecordRepositoryQueryLatency records store read latency.
func RecordRepositoryQueryLatency(backend string, latencyMs float64) {
	globalManager.repositoryQueryLatency.WithLabelValues(backend).Observe(latencyMs)
}

// RecordRepositoryUpdateLatency records store transaction latency.
func RecordRepositoryUpdateLatency(backend string, latencyMs float64) {
	globalManager.repositoryUpdateLatency.WithLabelValues(backend).Observe(latencyMs)
}

// RecordErrorByComponent records errors by component.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemGoroutineCount samples the goroutine count.
func UpdateSystemGoroutineCount() {
	globalManager.systemGoroutineCount.Set(float64(runtime.NumGoroutine()))
}

// GetRegistry returns the custom registry used by the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
