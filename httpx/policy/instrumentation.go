package policy

import (
	"context"
	"net/http"
	"time"

	"github.com/seb7887/gofw/httpx/errs"
	"github.com/seb7887/gofw/httpx/observability"
	"go.opentelemetry.io/otel/trace"
)

// InstrumentationPolicy opens one OpenTelemetry span per logical call,
// propagates trace context and records the outcome.
type InstrumentationPolicy struct {
	instrumenter *observability.OTELInstrumenter
	client       string
	backend      string
}

// NewInstrumentationPolicy creates a new instrumentation policy with OTEL support.
func NewInstrumentationPolicy(provider trace.TracerProvider, client, backend string) *InstrumentationPolicy {
	return &InstrumentationPolicy{
		instrumenter: observability.NewOTELInstrumenter(provider),
		client:       client,
		backend:      backend,
	}
}

// Execute implements the Policy interface by wrapping the call with an OTEL span.
func (i *InstrumentationPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	ctx, info := trackCall(ctx)
	ctx, span := i.instrumenter.StartSpan(ctx, req,
		observability.AttrClient.String(i.client),
		observability.AttrBackend.String(i.backend),
	)

	resp, err := next(ctx, req)

	if info.correlationID != "" {
		span.SetAttributes(observability.AttrCorrelationID.String(info.correlationID))
	}
	if err != nil {
		span.SetAttributes(observability.AttrErrorKind.String(errs.Kind(err)))
	}
	i.instrumenter.EndSpan(span, resp, err)

	return resp, err
}

// OnRetry adds a retry event to the call span. It is meant for RetryConfig.OnRetry.
func (i *InstrumentationPolicy) OnRetry(ctx context.Context, state RetryState, _ time.Duration, err error) {
	observability.AddRetryEvent(ctx, state.Attempt, err)
}
