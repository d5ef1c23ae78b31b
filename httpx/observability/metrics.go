package observability

import (
	"context"
	"net"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/seb7887/gofw/httpx/transport"
)

// MetricsCollector provides Prometheus metrics collection for HTTP client calls.
// All series are labelled with the logical client name.
type MetricsCollector struct {
	requestDuration *prometheus.HistogramVec
	retryAttempts   *prometheus.CounterVec
	activeRequests  *prometheus.GaugeVec
	callErrors      *prometheus.CounterVec
}

// NewMetricsCollector creates a new Prometheus metrics collector.
// If registry is nil, uses the default Prometheus registry.
func NewMetricsCollector(registry prometheus.Registerer) *MetricsCollector {
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	factory := promauto.With(registry)

	return &MetricsCollector{
		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "http_client_request_duration_seconds",
				Help: "Duration of logical HTTP client calls, retries included",
				Buckets: []float64{
					0.001, // 1ms
					0.005, // 5ms
					0.01,  // 10ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.5,   // 500ms
					1.0,   // 1s
					2.0,   // 2s
					5.0,   // 5s
					10.0,  // 10s
				},
			},
			[]string{"client", "backend", "method", "status_code"},
		),

		retryAttempts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_client_retries_total",
				Help: "Total number of retry attempts",
			},
			[]string{"client", "reason"},
		),

		activeRequests: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "http_client_active_requests",
				Help: "Number of logical calls in flight",
			},
			[]string{"client"},
		),

		callErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_client_errors_total",
				Help: "Failed logical calls by error kind",
			},
			[]string{"client", "kind"},
		),
	}
}

// RecordRequestDuration records the duration of a logical call.
// A status code of 0 means no response was received.
func (m *MetricsCollector) RecordRequestDuration(client, backend, method string, statusCode int, duration time.Duration) {
	m.requestDuration.WithLabelValues(
		client,
		backend,
		method,
		strconv.Itoa(statusCode),
	).Observe(duration.Seconds())
}

// IncrementRetryAttempts increments the retry attempt counter.
// reason: "timeout", "connection", "pool", "other"
func (m *MetricsCollector) IncrementRetryAttempts(client, reason string) {
	m.retryAttempts.WithLabelValues(client, reason).Inc()
}

// IncrementActiveRequests increments the active requests gauge.
func (m *MetricsCollector) IncrementActiveRequests(client string) {
	m.activeRequests.WithLabelValues(client).Inc()
}

// DecrementActiveRequests decrements the active requests gauge.
func (m *MetricsCollector) DecrementActiveRequests(client string) {
	m.activeRequests.WithLabelValues(client).Dec()
}

// IncrementCallErrors counts a failed call under its taxonomy kind.
func (m *MetricsCollector) IncrementCallErrors(client, kind string) {
	m.callErrors.WithLabelValues(client, kind).Inc()
}

// RetryReason maps a retried transport error to a low-cardinality label.
func RetryReason(err error) string {
	var poolErr *transport.PoolTimeoutError
	var netErr net.Error
	switch {
	case errors.As(err, &poolErr):
		return "pool"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &netErr) && netErr.Timeout():
		return "timeout"
	case errors.As(err, &netErr):
		return "connection"
	default:
		return "other"
	}
}
