package observability

import (
	"context"
	"fmt"
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/seb7887/gofw/httpx"
)

// Span attribute keys specific to httpx.
const (
	AttrClient        = attribute.Key("httpx.client")
	AttrBackend       = attribute.Key("httpx.backend")
	AttrCorrelationID = attribute.Key("httpx.correlation_id")
	AttrAttempt       = attribute.Key("httpx.attempt")
	AttrErrorKind     = attribute.Key("httpx.error_kind")
)

// OTELInstrumenter provides OpenTelemetry instrumentation for logical calls.
// It creates spans, injects trace context into headers, and records request metadata.
type OTELInstrumenter struct {
	tracer     trace.Tracer
	propagator propagation.TextMapPropagator
}

// NewOTELInstrumenter creates a new OTEL instrumenter with the given tracer provider.
// If provider is nil, uses the global tracer provider.
func NewOTELInstrumenter(provider trace.TracerProvider) *OTELInstrumenter {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}

	return &OTELInstrumenter{
		tracer:     provider.Tracer(instrumentationName),
		propagator: otel.GetTextMapPropagator(),
	}
}

// StartSpan creates a client span for a logical call and returns the updated context.
// Extra attributes are attached as given.
func (o *OTELInstrumenter) StartSpan(ctx context.Context, req *http.Request, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	spanName := fmt.Sprintf("HTTP %s", req.Method)
	ctx, span := o.tracer.Start(ctx, spanName,
		trace.WithSpanKind(trace.SpanKindClient),
	)

	span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.url", req.URL.String()),
		attribute.String("http.scheme", req.URL.Scheme),
		attribute.String("http.host", req.URL.Host),
		attribute.String("http.target", req.URL.Path),
	)
	span.SetAttributes(attrs...)

	if req.URL.RawQuery != "" {
		span.SetAttributes(attribute.String("http.query", req.URL.RawQuery))
	}

	o.propagator.Inject(ctx, propagation.HeaderCarrier(req.Header))

	return ctx, span
}

// EndSpan completes the span with response information.
// Only transport errors and 5xx responses mark the span as failed; a 4xx is
// a classified business outcome.
func (o *OTELInstrumenter) EndSpan(span trace.Span, resp *http.Response, err error) {
	switch {
	case err != nil:
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	case resp != nil:
		span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
		if resp.StatusCode >= 500 {
			span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
		} else {
			span.SetStatus(codes.Ok, "")
		}
	}

	span.End()
}

// AddRetryEvent records a scheduled retry on the span in ctx, if any.
func AddRetryEvent(ctx context.Context, attempt int, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.AddEvent("retry", trace.WithAttributes(
		AttrAttempt.Int(attempt),
		attribute.String("error", err.Error()),
	))
}
