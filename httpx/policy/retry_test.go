package policy_test

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/seb7887/gofw/httpx/backoff"
	"github.com/seb7887/gofw/httpx/errs"
	"github.com/seb7887/gofw/httpx/policy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// recordingSleeper records requested delays without waiting.
type recordingSleeper struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *recordingSleeper) Delays() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

func okResponse(body string) *http.Response {
	return &http.Response{
		StatusCode: http.StatusOK,
		Body:       io.NopCloser(bytes.NewBufferString(body)),
	}
}

func newRequest(t *testing.T, method, body string) *http.Request {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, "http://example.com/api/v2/pokemon/ditto", r)
	require.NoError(t, err)
	return req
}

func TestRetryPolicy_SuccessOnFirstAttempt(t *testing.T) {
	sleeper := &recordingSleeper{}
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{Sleep: sleeper.Sleep})

	attempts := 0
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		return okResponse("success"), nil
	}

	resp, err := retryPolicy.Execute(context.Background(), newRequest(t, http.MethodGet, ""), executor)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, attempts, "should succeed on first attempt without retry")
	assert.Empty(t, sleeper.Delays())
}

func TestRetryPolicy_RecoversFromTransportErrors(t *testing.T) {
	sleeper := &recordingSleeper{}
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{Sleep: sleeper.Sleep})

	attempts := 0
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		if attempts < 3 {
			return nil, syscall.ECONNRESET
		}
		return okResponse("success"), nil
	}

	resp, err := retryPolicy.Execute(context.Background(), newRequest(t, http.MethodGet, ""), executor)

	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 3, attempts, "should retry twice before success")
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, sleeper.Delays())
}

func TestRetryPolicy_ExhaustsAfterThreeAttempts(t *testing.T) {
	sleeper := &recordingSleeper{}
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{Sleep: sleeper.Sleep})

	attempts := 0
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		return nil, syscall.ECONNREFUSED
	}

	_, err := retryPolicy.Execute(context.Background(), newRequest(t, http.MethodGet, ""), executor)

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, sleeper.Delays(),
		"no delay after the last attempt")

	var terminal *errs.TerminalError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, 3, terminal.Attempts)
	assert.True(t, errors.Is(err, errs.ErrRetriesExhausted))
	assert.False(t, errors.Is(err, errs.ErrInterrupted))
	assert.True(t, errors.Is(err, syscall.ECONNREFUSED), "last attempt error is preserved")

	var last *errs.RetryableTransportError
	require.ErrorAs(t, err, &last)
	assert.Equal(t, 3, last.Attempt)
}

func TestRetryPolicy_DelayIsCapped(t *testing.T) {
	sleeper := &recordingSleeper{}
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{
		MaxAttempts: 7,
		Period:      100 * time.Millisecond,
		MaxPeriod:   time.Second,
		Sleep:       sleeper.Sleep,
	})

	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	}

	_, err := retryPolicy.Execute(context.Background(), newRequest(t, http.MethodGet, ""), executor)
	require.Error(t, err)

	assert.Equal(t, []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		400 * time.Millisecond,
		800 * time.Millisecond,
		time.Second,
		time.Second,
	}, sleeper.Delays())
}

func TestRetryPolicy_CustomBackoff(t *testing.T) {
	sleeper := &recordingSleeper{}
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{
		Backoff: backoff.NewConstantBackoff(10 * time.Millisecond),
		Sleep:   sleeper.Sleep,
	})

	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return nil, io.ErrUnexpectedEOF
	}

	_, _ = retryPolicy.Execute(context.Background(), newRequest(t, http.MethodGet, ""), executor)
	assert.Equal(t, []time.Duration{10 * time.Millisecond, 10 * time.Millisecond}, sleeper.Delays())
}

func TestRetryPolicy_NeverRetriesResponses(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusNotFound, http.StatusTooManyRequests, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{Sleep: (&recordingSleeper{}).Sleep})

			attempts := 0
			executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
				attempts++
				return &http.Response{StatusCode: status, Body: io.NopCloser(strings.NewReader("boom"))}, nil
			}

			resp, err := retryPolicy.Execute(context.Background(), newRequest(t, http.MethodGet, ""), executor)
			require.NoError(t, err)
			assert.Equal(t, status, resp.StatusCode)
			assert.Equal(t, 1, attempts)
		})
	}
}

func TestRetryPolicy_NonRetryableErrorIsTerminal(t *testing.T) {
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{Sleep: (&recordingSleeper{}).Sleep})

	attempts := 0
	boom := errors.New("x509: certificate signed by unknown authority")
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		return nil, boom
	}

	_, err := retryPolicy.Execute(context.Background(), newRequest(t, http.MethodGet, ""), executor)

	assert.Equal(t, 1, attempts)
	var terminal *errs.TerminalError
	require.ErrorAs(t, err, &terminal)
	assert.Equal(t, 1, terminal.Attempts)
	assert.False(t, errors.Is(err, errs.ErrRetriesExhausted))
	assert.True(t, errors.Is(err, boom))
}

func TestRetryPolicy_InterruptedDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ctx.Err()
		},
	})

	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		return nil, syscall.ECONNRESET
	}

	_, err := retryPolicy.Execute(ctx, newRequest(t, http.MethodGet, ""), executor)

	assert.Equal(t, 1, attempts, "no attempt after the interruption")
	var terminal *errs.TerminalError
	require.ErrorAs(t, err, &terminal)
	assert.True(t, terminal.Interrupted)
	assert.True(t, errors.Is(err, errs.ErrInterrupted))
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestRetryPolicy_RealSleepHonoursCancellation(t *testing.T) {
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{Period: time.Hour, MaxPeriod: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		return nil, syscall.ECONNRESET
	}

	start := time.Now()
	_, err := retryPolicy.Execute(ctx, newRequest(t, http.MethodGet, ""), executor)

	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, errors.Is(err, errs.ErrInterrupted))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestRetryPolicy_ReplaysBody(t *testing.T) {
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{Sleep: (&recordingSleeper{}).Sleep})

	var bodies []string
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(b))
		if len(bodies) < 3 {
			return nil, io.ErrUnexpectedEOF
		}
		return okResponse("ok"), nil
	}

	req := newRequest(t, http.MethodPost, `{"username":"ash"}`)
	_, err := retryPolicy.Execute(context.Background(), req, executor)

	require.NoError(t, err)
	assert.Equal(t, []string{`{"username":"ash"}`, `{"username":"ash"}`, `{"username":"ash"}`}, bodies)
}

func TestRetryPolicy_BuffersOneShotBody(t *testing.T) {
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{Sleep: (&recordingSleeper{}).Sleep})

	var bodies []string
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		b, _ := io.ReadAll(req.Body)
		bodies = append(bodies, string(b))
		if len(bodies) < 2 {
			return nil, io.ErrUnexpectedEOF
		}
		return okResponse("ok"), nil
	}

	req := newRequest(t, http.MethodPut, "")
	req.Body = io.NopCloser(io.MultiReader(strings.NewReader("one"), strings.NewReader("-shot")))

	_, err := retryPolicy.Execute(context.Background(), req, executor)
	require.NoError(t, err)
	assert.Equal(t, []string{"one-shot", "one-shot"}, bodies)
}

func TestRetryPolicy_WithoutRetry(t *testing.T) {
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{Sleep: (&recordingSleeper{}).Sleep})

	attempts := 0
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		attempts++
		return nil, syscall.ECONNRESET
	}

	_, err := retryPolicy.Execute(policy.WithoutRetry(context.Background()), newRequest(t, http.MethodGet, ""), executor)

	assert.Equal(t, 1, attempts)
	assert.True(t, errors.Is(err, syscall.ECONNRESET))
}

func TestRetryPolicy_FreshStatePerCall(t *testing.T) {
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{Sleep: (&recordingSleeper{}).Sleep})

	var mu sync.Mutex
	attemptsByCall := map[string]int{}
	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		mu.Lock()
		attemptsByCall[req.URL.Path]++
		mu.Unlock()
		return nil, syscall.ECONNRESET
	}

	var wg sync.WaitGroup
	for _, name := range []string{"/a", "/b", "/c", "/d"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req, _ := http.NewRequest(http.MethodGet, "http://example.com"+name, nil)
			_, _ = retryPolicy.Execute(context.Background(), req, executor)
		}()
	}
	wg.Wait()

	for name, n := range attemptsByCall {
		assert.Equal(t, 3, n, "call %s", name)
	}
}

func TestRetryPolicy_OnRetryAndAttemptNumbers(t *testing.T) {
	var states []policy.RetryState
	var seen []int
	retryPolicy := policy.NewRetryPolicy(policy.RetryConfig{
		Sleep: (&recordingSleeper{}).Sleep,
		OnRetry: func(_ context.Context, state policy.RetryState, _ time.Duration, _ error) {
			states = append(states, state)
		},
	})

	executor := func(ctx context.Context, req *http.Request) (*http.Response, error) {
		seen = append(seen, policy.AttemptFrom(ctx))
		return nil, io.ErrUnexpectedEOF
	}

	_, _ = retryPolicy.Execute(context.Background(), newRequest(t, http.MethodGet, ""), executor)

	assert.Equal(t, []int{1, 2, 3}, seen)
	require.Len(t, states, 2)
	assert.Equal(t, 1, states[0].Attempt)
	assert.Equal(t, 2, states[1].Attempt)
}

func TestRetryState(t *testing.T) {
	state := policy.RetryState{MaxAttempts: 3, BaseDelay: 100 * time.Millisecond, MaxDelay: time.Second}

	state.Attempt = 1
	assert.Equal(t, 100*time.Millisecond, state.Delay())
	assert.False(t, state.Exhausted())

	state.Attempt = 2
	assert.Equal(t, 200*time.Millisecond, state.Delay())

	state.Attempt = 3
	assert.True(t, state.Exhausted())

	state.Attempt = 10
	assert.Equal(t, time.Second, state.Delay())
}
