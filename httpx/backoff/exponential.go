package backoff

import (
	"math"
	"math/rand/v2"
	"time"
)

// ExponentialBackoff implements exponential backoff with optional jitter.
// The delay increases exponentially with each retry: initial * (factor ^ retry).
// Jitter adds randomness to prevent thundering herd problem.
type ExponentialBackoff struct {
	// Initial is the starting delay for the first retry
	Initial time.Duration

	// Max is the maximum delay cap (prevents unbounded growth)
	Max time.Duration

	// Factor is the multiplier for each retry (typically 2.0 for doubling)
	// Default: 2.0 if not set
	Factor float64

	// Jitter adds randomness to the delay to prevent thundering herd.
	// When enabled, the actual delay will be randomly selected from [0, calculated_delay].
	Jitter bool
}

// Next calculates the exponential delay for the given retry attempt.
func (e *ExponentialBackoff) Next(retry int) time.Duration {
	factor := e.Factor
	if factor == 0 {
		factor = 2.0
	}

	if retry < 0 {
		retry = 0
	}

	delay := float64(e.Initial) * math.Pow(factor, float64(retry))

	if e.Max > 0 && delay > float64(e.Max) {
		delay = float64(e.Max)
	}

	if e.Jitter {
		delay = rand.Float64() * delay
	}

	return time.Duration(delay)
}

// NewExponentialBackoff creates a doubling backoff starting at initial and
// capped at max. Jitter is off, so delays are deterministic:
// 100ms, 200ms, 400ms, ... for initial=100ms.
func NewExponentialBackoff(initial, max time.Duration) *ExponentialBackoff {
	return &ExponentialBackoff{
		Initial: initial,
		Max:     max,
		Factor:  2.0,
	}
}

// Default returns the client retry schedule: 100ms doubling up to 1s.
func Default() *ExponentialBackoff {
	return NewExponentialBackoff(100*time.Millisecond, time.Second)
}
