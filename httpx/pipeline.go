package httpx

import (
	"context"
	"time"

	"github.com/seb7887/gofw/eventbus"
	"github.com/seb7887/gofw/httpx/backoff"
	"github.com/seb7887/gofw/httpx/observability"
	"github.com/seb7887/gofw/httpx/policy"
	"github.com/seb7887/gofw/httpx/settings"
	"github.com/seb7887/gofw/httpx/transport"
	"github.com/seb7887/gofw/idgen"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Deps carries the shared collaborators of every configured client. Only
// Builder is required; a nil observability dependency disables the policy
// that uses it.
type Deps struct {
	Builder *transport.Builder
	Logger  *zap.Logger
	Metrics *observability.MetricsCollector
	Tracer  trace.TracerProvider

	// Bus receives a CallEvent per logical call on EventTopic
	Bus        eventbus.Bus
	EventTopic string
}

// NewFromSettings assembles the resilience pipeline of a client around an
// already built transport. Policies run in this order, outermost first:
// tracing, metrics, call events, correlation id, default headers, retry,
// rate limit, attempt timeout and verbose logging.
func NewFromSettings(s settings.ClientSettings, tr transport.Transport, deps Deps) (*Client, error) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("client", s.Name), zap.String("backend", string(tr.Backend())))
	backend := string(tr.Backend())

	var (
		policies []policy.Policy
		onRetry  []func(context.Context, policy.RetryState, time.Duration, error)
	)

	if deps.Tracer != nil {
		p := policy.NewInstrumentationPolicy(deps.Tracer, s.Name, backend)
		policies = append(policies, p)
		onRetry = append(onRetry, p.OnRetry)
	}
	if deps.Metrics != nil {
		p := policy.NewMetricsPolicy(deps.Metrics, s.Name, backend)
		policies = append(policies, p)
		onRetry = append(onRetry, p.OnRetry)
	}
	if deps.Bus != nil {
		policies = append(policies, policy.NewEventPolicy(deps.Bus, deps.EventTopic, s.Name, backend, logger))
	}

	generate, err := idgen.ForKind(s.Correlation.Generator)
	if err != nil {
		return nil, &ConfigurationError{Client: s.Name, Key: "correlation.generator", Err: err}
	}
	policies = append(policies, policy.NewCorrelationPolicy(s.Correlation.Header, generate))

	if len(s.DefaultHeaders) > 0 {
		policies = append(policies, policy.NewHeadersPolicy(s.DefaultHeaders))
	}

	// the exponential schedule is the retry policy's own default
	var schedule backoff.Backoff
	if s.Retry.Strategy != "" && s.Retry.Strategy != backoff.Exponential {
		if schedule, err = s.Retry.Strategy.New(s.Retry.Period, s.Retry.MaxPeriod); err != nil {
			return nil, &ConfigurationError{Client: s.Name, Key: "retry.strategy", Err: err}
		}
	}

	onRetry = append(onRetry, func(_ context.Context, state policy.RetryState, delay time.Duration, err error) {
		logger.Debug("retrying call",
			zap.Int("attempt", state.Attempt),
			zap.Int("max_attempts", state.MaxAttempts),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	})
	policies = append(policies, policy.NewRetryPolicy(policy.RetryConfig{
		MaxAttempts: s.Retry.MaxAttempts,
		Period:      s.Retry.Period,
		MaxPeriod:   s.Retry.MaxPeriod,
		Backoff:     schedule,
		OnRetry: func(ctx context.Context, state policy.RetryState, delay time.Duration, err error) {
			for _, fn := range onRetry {
				fn(ctx, state, delay, err)
			}
		},
	}))

	if s.RateLimit.RPS > 0 {
		policies = append(policies, policy.NewRateLimitPolicy(s.RateLimit.RPS, s.RateLimit.Burst))
	}

	policies = append(policies, policy.NewTimeoutPolicy(policy.TimeoutConfig{Attempt: s.AttemptTimeout()}))

	if s.LoggerLevel.Verbose() {
		policies = append(policies, policy.NewLoggingPolicy(logger.Named("wire"), s.LoggerLevel))
	}

	return NewClient(
		WithName(s.Name),
		WithBaseURL(s.URL),
		WithTransport(tr),
		WithPolicies(policies...),
		WithLogger(logger),
	), nil
}
