package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/seb7887/gofw/httpx/errs"
	"github.com/seb7887/gofw/httpx/observability"
)

// MetricsPolicy records Prometheus metrics for logical calls: duration,
// in-flight gauge and failures by kind.
type MetricsPolicy struct {
	collector *observability.MetricsCollector
	client    string
	backend   string
}

// NewMetricsPolicy creates a new metrics policy with the given collector.
func NewMetricsPolicy(collector *observability.MetricsCollector, client, backend string) *MetricsPolicy {
	return &MetricsPolicy{
		collector: collector,
		client:    client,
		backend:   backend,
	}
}

// Execute implements the Policy interface by recording request metrics.
func (m *MetricsPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	m.collector.IncrementActiveRequests(m.client)
	defer m.collector.DecrementActiveRequests(m.client)

	startTime := time.Now()
	resp, err := next(ctx, req)
	duration := time.Since(startTime)

	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	m.collector.RecordRequestDuration(m.client, m.backend, req.Method, status, duration)

	if err != nil {
		m.collector.IncrementCallErrors(m.client, errs.Kind(err))
	}

	return resp, err
}

// OnRetry counts a scheduled retry. It is meant for RetryConfig.OnRetry.
func (m *MetricsPolicy) OnRetry(_ context.Context, _ RetryState, _ time.Duration, err error) {
	m.collector.IncrementRetryAttempts(m.client, observability.RetryReason(err))
}

// Collector returns the underlying metrics collector.
func (m *MetricsPolicy) Collector() *observability.MetricsCollector {
	return m.collector
}
