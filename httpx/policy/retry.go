package policy

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/seb7887/gofw/httpx/backoff"
	"github.com/seb7887/gofw/httpx/errs"
)

// RetryState is the bookkeeping of one logical call. A fresh state is
// created for every call so concurrent calls never share attempts.
type RetryState struct {
	// Attempt is the 1-based number of the attempt that just ran
	Attempt     int
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Delay is the pause before the next attempt: BaseDelay doubled per
// completed attempt and capped at MaxDelay.
func (s RetryState) Delay() time.Duration {
	return backoff.NewExponentialBackoff(s.BaseDelay, s.MaxDelay).Next(s.Attempt - 1)
}

// Exhausted reports whether no attempt is left.
func (s RetryState) Exhausted() bool {
	return s.Attempt >= s.MaxAttempts
}

// RetryConfig configures the retry policy behavior.
type RetryConfig struct {
	// MaxAttempts is the maximum number of attempts (including the initial request).
	// Default: 3
	MaxAttempts int

	// Period is the delay before the second attempt.
	// Default: 100ms
	Period time.Duration

	// MaxPeriod caps the delay between attempts.
	// Default: 1s
	MaxPeriod time.Duration

	// Backoff overrides the doubling schedule derived from Period and MaxPeriod.
	Backoff backoff.Backoff

	// Retryable decides whether a transport error may be retried.
	// Default: errs.IsRetryable
	Retryable func(error) bool

	// Sleep waits between attempts and returns early with the context error.
	Sleep func(ctx context.Context, d time.Duration) error

	// OnRetry is called before sleeping for the next attempt.
	OnRetry func(ctx context.Context, state RetryState, delay time.Duration, err error)
}

// RetryPolicy re-executes an attempt that failed at the transport level.
// Responses, whatever their status, are never retried.
type RetryPolicy struct {
	config RetryConfig
}

// NewRetryPolicy creates a new retry policy with the given configuration.
func NewRetryPolicy(config RetryConfig) *RetryPolicy {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = 3
	}
	if config.Period <= 0 {
		config.Period = 100 * time.Millisecond
	}
	if config.MaxPeriod <= 0 {
		config.MaxPeriod = time.Second
	}
	if config.Retryable == nil {
		config.Retryable = errs.IsRetryable
	}
	if config.Sleep == nil {
		config.Sleep = sleep
	}

	return &RetryPolicy{
		config: config,
	}
}

// NewState returns the initial state of a logical call.
func (r *RetryPolicy) NewState() RetryState {
	return RetryState{
		MaxAttempts: r.config.MaxAttempts,
		BaseDelay:   r.config.Period,
		MaxDelay:    r.config.MaxPeriod,
	}
}

// Execute implements the Policy interface by retrying failed attempts.
func (r *RetryPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	if retryDisabled(ctx) {
		return next(withAttempt(ctx, 1), req)
	}

	if err := rewindable(req); err != nil {
		return nil, err
	}

	state := r.NewState()
	for {
		state.Attempt++

		if state.Attempt > 1 && req.GetBody != nil {
			body, err := req.GetBody()
			if err != nil {
				return nil, &errs.RequestError{Method: req.Method, URL: req.URL.String(), Err: err}
			}
			req.Body = body
		}

		resp, err := next(withAttempt(ctx, state.Attempt), req)
		if err == nil {
			return resp, nil
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &errs.TerminalError{
				Attempts:    state.Attempt,
				Interrupted: true,
				Err:         errors.WithSecondaryError(ctxErr, err),
			}
		}

		if !r.config.Retryable(err) {
			return nil, &errs.TerminalError{Attempts: state.Attempt, Err: err}
		}

		failed := &errs.RetryableTransportError{Attempt: state.Attempt, Err: err}
		if state.Exhausted() {
			return nil, &errs.TerminalError{Attempts: state.Attempt, Exhausted: true, Err: failed}
		}

		delay := r.delay(state)
		if r.config.OnRetry != nil {
			r.config.OnRetry(ctx, state, delay, err)
		}

		if err := r.config.Sleep(ctx, delay); err != nil {
			return nil, &errs.TerminalError{
				Attempts:    state.Attempt,
				Interrupted: true,
				Err:         errors.WithSecondaryError(err, failed),
			}
		}
	}
}

func (r *RetryPolicy) delay(state RetryState) time.Duration {
	if r.config.Backoff != nil {
		return r.config.Backoff.Next(state.Attempt - 1)
	}
	return state.Delay()
}

// rewindable buffers a request body that cannot be replayed so every
// attempt sends the same bytes.
func rewindable(req *http.Request) error {
	if req.Body == nil || req.Body == http.NoBody || req.GetBody != nil {
		return nil
	}

	data, err := io.ReadAll(req.Body)
	_ = req.Body.Close()
	if err != nil {
		return &errs.RequestError{Method: req.Method, URL: req.URL.String(), Err: errors.Wrap(err, "buffering request body")}
	}

	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}
	req.Body, _ = req.GetBody()
	req.ContentLength = int64(len(data))
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
