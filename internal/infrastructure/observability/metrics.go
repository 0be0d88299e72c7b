package observability

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Hakim2Mezrioui/absence-um6ss-sub004/internal/shared/errors"
)

// MetricsConfig holds configuration for metrics initialization
type MetricsConfig struct {
	Namespace string
	Subsystem string
	Registry  prometheus.Registerer
	Gatherer  prometheus.Gatherer
}

// DefaultMetricsConfig returns a config using the default Prometheus registry
func DefaultMetricsConfig() MetricsConfig {
	return MetricsConfig{
		Namespace: "absences",
		Subsystem: "",
		Registry:  prometheus.DefaultRegisterer,
		Gatherer:  prometheus.DefaultGatherer,
	}
}

// NewTestMetrics builds metrics on a private registry.
func NewTestMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	return NewMetricsWithConfig(MetricsConfig{Namespace: "test", Registry: reg, Gatherer: reg})
}

// Metrics holds all Prometheus metrics collectors
type Metrics struct {
	HttpRequestsTotal        *prometheus.CounterVec
	HttpRequestDuration      *prometheus.HistogramVec
	HttpRequestSize          *prometheus.HistogramVec
	HttpResponseSize         *prometheus.HistogramVec
	DatabaseQueryDuration    *prometheus.HistogramVec
	DatabaseQuerySuccess     *prometheus.CounterVec
	DatabaseQueryErrors      *prometheus.CounterVec
	DatabaseConnections      *prometheus.GaugeVec
	DatabaseRetryAttempts    *prometheus.CounterVec
	DatabaseRetrySkipped     *prometheus.CounterVec
	DatabaseRetryMaxAttempts *prometheus.CounterVec
	AuthenticationFailures   *prometheus.CounterVec
	RateLimitHits            *prometheus.CounterVec
	BackgroundJobDuration    *prometheus.HistogramVec
	BackgroundJobErrors      *prometheus.CounterVec
	ErrorCount               *prometheus.CounterVec
	ClientErrorCount         *prometheus.CounterVec
	ServerErrorCount         *prometheus.CounterVec
	NetworkErrorCount        *prometheus.CounterVec
	CircuitBreakerState      *prometheus.GaugeVec
	CircuitBreakerEvents     *prometheus.CounterVec
	CircuitBreakerDuration   *prometheus.SummaryVec

	SessionEventsTotal        *prometheus.CounterVec
	SchedulingDecisions       *prometheus.CounterVec
	TasksEnqueued             *prometheus.CounterVec
	TasksSuperseded           prometheus.Counter
	TaskAttempts              *prometheus.CounterVec
	TaskTerminalFailures      *prometheus.CounterVec
	TasksReclaimed            prometheus.Counter
	TaskLag                   prometheus.Histogram
	ReconciliationDuration    *prometheus.HistogramVec
	ReconciliationRecords     *prometheus.CounterVec
	ReconciliationLockContend prometheus.Counter

	registry prometheus.Registerer
	gatherer prometheus.Gatherer
}

var (
	metrics     *Metrics
	metricsOnce sync.Once
)

// NewMetrics returns the process-wide metrics on the default registry.
func NewMetrics() *Metrics {
	metricsOnce.Do(func() {
		metrics = NewMetricsWithConfig(DefaultMetricsConfig())
	})
	return metrics
}

// NewMetricsWithConfig creates a new Metrics instance with custom configuration
func NewMetricsWithConfig(cfg MetricsConfig) *Metrics {
	factory := promauto.With(cfg.Registry)
	m := &Metrics{
		registry: cfg.Registry,
		gatherer: cfg.Gatherer,
	}

	counter := func(name, help string, labels ...string) *prometheus.CounterVec {
		return factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
		}, labels)
	}
	histogram := func(name, help string, buckets []float64, labels ...string) *prometheus.HistogramVec {
		return factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cfg.Namespace,
			Subsystem: cfg.Subsystem,
			Name:      name,
			Help:      help,
			Buckets:   buckets,
		}, labels)
	}

	// HTTP
	m.HttpRequestsTotal = counter("http_requests_total", "Total number of HTTP requests", "method", "path", "status")
	m.HttpRequestDuration = histogram("http_request_duration_seconds", "Duration of HTTP requests in seconds",
		[]float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10}, "method", "path")
	m.HttpRequestSize = histogram("http_request_size_bytes", "Size of HTTP requests in bytes",
		prometheus.ExponentialBuckets(100, 10, 8), "method", "path")
	m.HttpResponseSize = histogram("http_response_size_bytes", "Size of HTTP responses in bytes",
		prometheus.ExponentialBuckets(100, 10, 8), "method", "path")

	// Database
	m.DatabaseQueryDuration = histogram("database_query_duration_seconds", "Duration of database queries in seconds",
		[]float64{.001, .005, .01, .025, .05, .1, .25, .5, 1}, "query_type", "table")
	m.DatabaseQuerySuccess = counter("database_query_success_total", "Total number of successful database queries", "query_type", "table")
	m.DatabaseQueryErrors = counter("database_query_errors_total", "Total number of database query errors", "query_type", "table", "error_type")
	m.DatabaseConnections = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "database_connections",
		Help:      "Number of database connections by state",
	}, []string{"state"})
	m.DatabaseRetryAttempts = counter("database_retry_attempts_total", "Total number of database operation retry attempts", "operation", "error_type")
	m.DatabaseRetrySkipped = counter("database_retry_skipped_total", "Database operations not retried due to error type", "operation", "error_type")
	m.DatabaseRetryMaxAttempts = counter("database_retry_max_attempts_total", "Database operations that reached max retry attempts", "operation")

	// Auth and throttling
	m.AuthenticationFailures = counter("authentication_failures_total", "Rejected bearer tokens", "reason")
	m.RateLimitHits = counter("rate_limit_hits_total", "Requests rejected by the rate limiter", "route")

	// Background jobs
	m.BackgroundJobDuration = histogram("background_job_duration_seconds", "Duration of background jobs in seconds",
		[]float64{.1, .5, 1, 5, 10, 30, 60, 300}, "job_name")
	m.BackgroundJobErrors = counter("background_job_errors_total", "Total number of background job errors", "job_name", "error_type")

	// Errors
	m.ErrorCount = counter("error_total", "Total number of errors by type", "error_type", "method", "path")
	m.ClientErrorCount = counter("client_error_total", "Total number of client errors", "error_code", "method", "path")
	m.ServerErrorCount = counter("server_error_total", "Total number of server errors", "error_code", "method", "path")
	m.NetworkErrorCount = counter("network_error_total", "Total number of network errors", "error_code", "method", "path")

	// Circuit breaker
	m.CircuitBreakerState = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "circuit_breaker_state",
		Help:      "Current state of circuit breakers (0=closed, 0.5=half_open, 1=open)",
	}, []string{"name", "state"})
	m.CircuitBreakerEvents = counter("circuit_breaker_events_total", "Total number of circuit breaker events", "name", "event_type", "reason")
	m.CircuitBreakerDuration = factory.NewSummaryVec(prometheus.SummaryOpts{
		Namespace:  cfg.Namespace,
		Subsystem:  cfg.Subsystem,
		Name:       "circuit_breaker_duration_seconds",
		Help:       "Duration of operations protected by circuit breakers",
		Objectives: map[float64]float64{0.5: 0.05, 0.9: 0.01, 0.99: 0.001},
	}, []string{"name", "status"})

	// Scheduling
	m.SessionEventsTotal = counter("session_events_total", "Session lifecycle events received", "source", "type", "outcome")
	m.SchedulingDecisions = counter("scheduling_decisions_total", "Dispatch decisions taken for sessions", "kind", "decision")
	m.TasksEnqueued = counter("tasks_enqueued_total", "Delayed reconciliation tasks enqueued", "kind")
	m.TasksSuperseded = factory.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "tasks_superseded_total",
		Help:      "Pending tasks replaced by a newer schedule for the same session",
	})
	m.TaskAttempts = counter("task_attempts_total", "Task executions by result", "kind", "result")
	m.TaskTerminalFailures = counter("task_terminal_failures_total", "Tasks that ended in the failed state", "kind", "error_code")
	m.TasksReclaimed = factory.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "tasks_reclaimed_total",
		Help:      "Running tasks returned to pending after their reservation expired",
	})
	m.TaskLag = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "task_start_lag_seconds",
		Help:      "Delay between a task becoming due and a worker claiming it",
		Buckets:   []float64{.5, 1, 2, 5, 10, 30, 60, 300, 900},
	})
	m.ReconciliationDuration = histogram("reconciliation_duration_seconds", "Duration of reconciliation runs",
		[]float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}, "kind", "trigger", "result")
	m.ReconciliationRecords = counter("reconciliation_records_total", "Attendance records written by reconciliation", "kind", "outcome", "status")
	m.ReconciliationLockContend = factory.NewCounter(prometheus.CounterOpts{
		Namespace: cfg.Namespace,
		Subsystem: cfg.Subsystem,
		Name:      "reconciliation_lock_contention_total",
		Help:      "Reconciliation runs that found the session lock held",
	})

	return m
}

// RecordDatabaseStats records database connection pool statistics
func (m *Metrics) RecordDatabaseStats(openConns, inUse, idle int) {
	m.DatabaseConnections.WithLabelValues("open").Set(float64(openConns))
	m.DatabaseConnections.WithLabelValues("in_use").Set(float64(inUse))
	m.DatabaseConnections.WithLabelValues("idle").Set(float64(idle))
}

// RecordBackgroundJob records metrics for background job execution
func (m *Metrics) RecordBackgroundJob(jobName string, duration time.Duration, err error) {
	m.BackgroundJobDuration.WithLabelValues(jobName).Observe(duration.Seconds())
	if err != nil {
		m.BackgroundJobErrors.WithLabelValues(jobName, errorCode(err)).Inc()
	}
}

// RecordError records error metrics by type
func (m *Metrics) RecordError(errorType errors.ErrorType, method, path string) {
	m.ErrorCount.WithLabelValues(string(errorType), method, path).Inc()
	switch errorType {
	case errors.ErrorTypeClient:
		m.ClientErrorCount.WithLabelValues("client_error", method, path).Inc()
	case errors.ErrorTypeServer:
		m.ServerErrorCount.WithLabelValues("server_error", method, path).Inc()
	case errors.ErrorTypeNetwork:
		m.NetworkErrorCount.WithLabelValues("network_error", method, path).Inc()
	}
}

// RecordReconciliation records the duration of a run and, on success, the
// per-outcome record counts.
func (m *Metrics) RecordReconciliation(event ReconciliationEvent, duration time.Duration) {
	kind := event.SessionKind
	result := "success"
	if event.Err != nil {
		result = errorCode(event.Err)
	}
	m.ReconciliationDuration.WithLabelValues(kind, event.Trigger, result).Observe(duration.Seconds())
	if event.Err != nil {
		return
	}
	m.ReconciliationRecords.WithLabelValues(kind, "created", "").Add(float64(event.Created))
	m.ReconciliationRecords.WithLabelValues(kind, "updated", "").Add(float64(event.Updated))
	m.ReconciliationRecords.WithLabelValues(kind, "unchanged", "").Add(float64(event.Unchanged))
	m.ReconciliationRecords.WithLabelValues(kind, "", "present").Add(float64(event.Present))
	m.ReconciliationRecords.WithLabelValues(kind, "", "late").Add(float64(event.Late))
	m.ReconciliationRecords.WithLabelValues(kind, "", "absent").Add(float64(event.Absent))
}

func errorCode(err error) string {
	if appErr, ok := errors.AsAppError(err); ok {
		return string(appErr.Code)
	}
	return "error"
}

// Registry returns the Prometheus registry used by this Metrics instance
func (m *Metrics) Registry() prometheus.Registerer {
	return m.registry
}

// Gatherer returns the Prometheus gatherer used by this Metrics instance
func (m *Metrics) Gatherer() prometheus.Gatherer {
	return m.gatherer
}

// Unregister removes all metrics from the registry
func (m *Metrics) Unregister() {
	if m.registry == nil {
		return
	}
	collectors := []prometheus.Collector{
		m.HttpRequestsTotal,
		m.HttpRequestDuration,
		m.HttpRequestSize,
		m.HttpResponseSize,
		m.DatabaseQueryDuration,
		m.DatabaseQuerySuccess,
		m.DatabaseQueryErrors,
		m.DatabaseConnections,
		m.DatabaseRetryAttempts,
		m.DatabaseRetrySkipped,
		m.DatabaseRetryMaxAttempts,
		m.AuthenticationFailures,
		m.RateLimitHits,
		m.BackgroundJobDuration,
		m.BackgroundJobErrors,
		m.ErrorCount,
		m.ClientErrorCount,
		m.ServerErrorCount,
		m.NetworkErrorCount,
		m.CircuitBreakerState,
		m.CircuitBreakerEvents,
		m.CircuitBreakerDuration,
		m.SessionEventsTotal,
		m.SchedulingDecisions,
		m.TasksEnqueued,
		m.TasksSuperseded,
		m.TaskAttempts,
		m.TaskTerminalFailures,
		m.TasksReclaimed,
		m.TaskLag,
		m.ReconciliationDuration,
		m.ReconciliationRecords,
		m.ReconciliationLockContend,
	}
	for _, collector := range collectors {
		m.registry.Unregister(collector)
	}
}
