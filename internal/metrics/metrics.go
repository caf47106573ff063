// Package metrics exposes Prometheus collectors for the audit service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	auditTasksTotal           *prometheus.CounterVec
	auditTaskDurationSeconds  *prometheus.HistogramVec
	auditTaskRetriesTotal     *prometheus.CounterVec
	auditActiveWorkers        prometheus.Gauge
	auditSessionsTotal        prometheus.Counter
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDurationSecond *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		auditTasksTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_tasks_total",
				Help: "Total analysis tasks reaching a terminal state, labeled by analyzer type and outcome.",
			},
			[]string{"type", "outcome"},
		)

		auditTaskDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "audit_task_duration_seconds",
				Help:    "Wall time per completed analysis task, labeled by analyzer type.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"type"},
		)

		auditTaskRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "audit_task_retries_total",
				Help: "Total task attempts that failed and were rescheduled, labeled by analyzer type.",
			},
			[]string{"type"},
		)

		auditActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "audit_active_workers",
				Help: "Number of workers currently processing a task.",
			},
		)

		auditSessionsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "audit_sessions_total",
				Help: "Total analysis sessions fanned out by the orchestrator.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecond = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveTask records a terminal task outcome ("completed" or "failed").
func ObserveTask(analyzerType, outcome string, duration time.Duration) {
	auditTasksTotal.WithLabelValues(analyzerType, outcome).Inc()
	if duration > 0 {
		auditTaskDurationSeconds.WithLabelValues(analyzerType).Observe(duration.Seconds())
	}
}

// ObserveRetry records a failed attempt that the queue rescheduled.
func ObserveRetry(analyzerType string) {
	auditTaskRetriesTotal.WithLabelValues(analyzerType).Inc()
}

// ObserveSession increments the session counter.
func ObserveSession() {
	auditSessionsTotal.Inc()
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	auditActiveWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	auditActiveWorkers.Dec()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecond.WithLabelValues(method, route).Observe(duration.Seconds())
}
