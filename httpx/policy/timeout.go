package policy

import (
	"context"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
)

// TimeoutConfig configures the deadline of a single attempt.
type TimeoutConfig struct {
	// Attempt bounds one attempt, from dial until the response body is
	// closed. Zero disables the policy.
	Attempt time.Duration
}

// TimeoutPolicy applies a deadline to every attempt. It sits inside the
// retry policy so each attempt gets a fresh budget.
type TimeoutPolicy struct {
	config TimeoutConfig
}

func NewTimeoutPolicy(config TimeoutConfig) *TimeoutPolicy {
	return &TimeoutPolicy{
		config: config,
	}
}

// Execute implements the Policy interface. The deadline stays armed while
// the caller reads the body and is released when the body is closed.
func (t *TimeoutPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	if t.config.Attempt <= 0 {
		return next(ctx, req)
	}

	attemptCtx, cancel := context.WithTimeout(ctx, t.config.Attempt)

	resp, err := next(attemptCtx, req)
	if err != nil {
		cancel()
		if ctx.Err() == nil && errors.Is(err, context.DeadlineExceeded) {
			return nil, errors.Wrapf(err, "attempt exceeded %s", t.config.Attempt)
		}
		return nil, err
	}

	if resp.Body == nil {
		cancel()
		return resp, nil
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

type cancelOnClose struct {
	io.ReadCloser
	once   sync.Once
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.once.Do(b.cancel)
	return err
}
