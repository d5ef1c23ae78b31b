package policy_test

import (
	"context"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/seb7887/gofw/eventbus"
	"github.com/seb7887/gofw/httpx/httpxtest"
	"github.com/seb7887/gofw/httpx/observability"
	"github.com/seb7887/gofw/httpx/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func failingTransport(ctx context.Context, req *http.Request) (*http.Response, error) {
	return nil, syscall.ECONNREFUSED
}

func TestMetricsPolicy_RecordsCallsAndRetries(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := policy.NewMetricsPolicy(observability.NewMetricsCollector(registry), "pokemon", "pooled")

	exec := policy.Chain([]policy.Policy{
		metrics,
		policy.NewRetryPolicy(policy.RetryConfig{Sleep: (&recordingSleeper{}).Sleep, OnRetry: metrics.OnRetry}),
	}, failingTransport)

	_, err := exec(context.Background(), newRequest(t, http.MethodGet, ""))
	require.Error(t, err)

	httpxtest.AssertMetricValueWithLabels(t, registry, "http_client_request_duration_seconds",
		map[string]string{"client": "pokemon", "backend": "pooled", "method": "GET", "status_code": "0"}, 1)
	httpxtest.AssertMetricValueWithLabels(t, registry, "http_client_retries_total",
		map[string]string{"client": "pokemon", "reason": "connection"}, 2)
	httpxtest.AssertMetricValueWithLabels(t, registry, "http_client_errors_total",
		map[string]string{"client": "pokemon", "kind": "terminal"}, 1)
	httpxtest.AssertMetricValueWithLabels(t, registry, "http_client_active_requests",
		map[string]string{"client": "pokemon"}, 0)
}

func TestMetricsPolicy_RecordsStatus(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := policy.NewMetricsPolicy(observability.NewMetricsCollector(registry), "pokemon", "http2")

	_, err := metrics.Execute(context.Background(), newRequest(t, http.MethodGet, ""), func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusNotFound, Body: http.NoBody}, nil
	})
	require.NoError(t, err)

	httpxtest.AssertMetricValueWithLabels(t, registry, "http_client_request_duration_seconds",
		map[string]string{"client": "pokemon", "status_code": "404"}, 1)
}

func TestInstrumentationPolicy_OneSpanPerCall(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer provider.Shutdown(context.Background())

	instrumentation := policy.NewInstrumentationPolicy(provider, "pokemon", "simple")
	exec := policy.Chain([]policy.Policy{
		instrumentation,
		policy.NewCorrelationPolicy("", func() string { return "corr-1" }),
		policy.NewRetryPolicy(policy.RetryConfig{Sleep: (&recordingSleeper{}).Sleep, OnRetry: instrumentation.OnRetry}),
	}, failingTransport)

	_, err := exec(context.Background(), newRequest(t, http.MethodGet, ""))
	require.Error(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]

	assert.Equal(t, "HTTP GET", span.Name)
	assert.Equal(t, codes.Error, span.Status.Code)
	assert.Contains(t, span.Attributes, attribute.String("httpx.client", "pokemon"))
	assert.Contains(t, span.Attributes, attribute.String("httpx.backend", "simple"))
	assert.Contains(t, span.Attributes, attribute.String("httpx.correlation_id", "corr-1"))
	assert.Contains(t, span.Attributes, attribute.String("httpx.error_kind", "terminal"))

	retries := 0
	for _, ev := range span.Events {
		if ev.Name == "retry" {
			retries++
		}
	}
	assert.Equal(t, 2, retries)
}

func TestInstrumentationPolicy_ClientErrorIsNotSpanError(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer provider.Shutdown(context.Background())

	p := policy.NewInstrumentationPolicy(provider, "pokemon", "pooled")
	_, err := p.Execute(context.Background(), newRequest(t, http.MethodGet, ""), func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusNotFound, Body: http.NoBody}, nil
	})
	require.NoError(t, err)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Ok, spans[0].Status.Code)
	assert.Contains(t, spans[0].Attributes, attribute.Int("http.status_code", 404))
}

type eventSink struct {
	events chan policy.CallEvent
}

func (s *eventSink) Receive(_ context.Context, msg any) {
	if ev, ok := msg.(policy.CallEvent); ok {
		s.events <- ev
	}
}

func TestEventPolicy_PublishesCallEvent(t *testing.T) {
	bus := eventbus.NewInMemBus()
	sink := &eventSink{events: make(chan policy.CallEvent, 4)}
	require.NoError(t, bus.Subscribe(policy.DefaultEventTopic, sink))

	exec := policy.Chain([]policy.Policy{
		policy.NewEventPolicy(bus, "", "pokemon", "pooled", nil),
		policy.NewCorrelationPolicy("X-Trace", func() string { return "corr-2" }),
	}, func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return &http.Response{StatusCode: http.StatusUnauthorized, Body: http.NoBody}, nil
	})

	_, err := exec(context.Background(), newRequest(t, http.MethodPost, ""))
	require.NoError(t, err)

	select {
	case ev := <-sink.events:
		assert.Equal(t, "pokemon", ev.Client)
		assert.Equal(t, "pooled", ev.Backend)
		assert.Equal(t, http.MethodPost, ev.Method)
		assert.Equal(t, http.StatusUnauthorized, ev.StatusCode)
		assert.Equal(t, "corr-2", ev.CorrelationID, "custom correlation headers are reported")
		assert.Empty(t, ev.ErrorKind)
	case <-time.After(time.Second):
		t.Fatal("no call event published")
	}
}

func TestEventPolicy_PublishFailureDoesNotFailCall(t *testing.T) {
	bus := eventbus.NewInMemBus()
	require.NoError(t, bus.Close())

	p := policy.NewEventPolicy(bus, "", "pokemon", "pooled", nil)
	resp, err := p.Execute(context.Background(), newRequest(t, http.MethodGet, ""), func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return okResponse("ok"), nil
	})

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
