package policy

import (
	"context"
	"net/http"

	"github.com/cockroachdb/errors"
	"golang.org/x/time/rate"
)

// RateLimitPolicy paces attempts with a token bucket shared by every call
// of a client. It sits inside the retry policy, so retries are paced too.
type RateLimitPolicy struct {
	limiter *rate.Limiter
}

// NewRateLimitPolicy allows rps attempts per second with the given burst.
func NewRateLimitPolicy(rps float64, burst int) *RateLimitPolicy {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitPolicy{
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (p *RateLimitPolicy) Execute(ctx context.Context, req *http.Request, next Executor) (*http.Response, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, "waiting for rate limiter")
	}
	return next(ctx, req)
}
