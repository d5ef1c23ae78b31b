package policy

import "context"

type ctxKey int

const (
	correlationKey ctxKey = iota
	noRetryKey
	attemptKey
)

// WithCorrelationID stores a correlation id that the correlation policy
// sends instead of generating a new one.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey, id)
}

// CorrelationIDFrom returns the correlation id of the call in ctx.
func CorrelationIDFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(correlationKey).(string)
	return id, ok && id != ""
}

// WithoutRetry makes calls in ctx run a single attempt.
func WithoutRetry(ctx context.Context) context.Context {
	return context.WithValue(ctx, noRetryKey, true)
}

func retryDisabled(ctx context.Context) bool {
	off, _ := ctx.Value(noRetryKey).(bool)
	return off
}

func withAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey, attempt)
}

// AttemptFrom returns the 1-based attempt number set by the retry policy,
// or 1 outside of it.
func AttemptFrom(ctx context.Context) int {
	if n, ok := ctx.Value(attemptKey).(int); ok {
		return n
	}
	return 1
}

const callKey ctxKey = -1

// call collects what inner policies learn about a logical call, for the
// outer policies that report on it.
type call struct {
	correlationID string
}

// trackCall returns a context carrying a call record, reusing the one
// installed by an outer policy.
func trackCall(ctx context.Context) (context.Context, *call) {
	if c, ok := ctx.Value(callKey).(*call); ok {
		return ctx, c
	}
	c := &call{}
	return context.WithValue(ctx, callKey, c), c
}

func callFrom(ctx context.Context) *call {
	c, _ := ctx.Value(callKey).(*call)
	return c
}
