package backoff

import "time"

// ConstantBackoff waits the same Period before every retry.
type ConstantBackoff struct {
	Period time.Duration
}

func (c *ConstantBackoff) Next(int) time.Duration {
	return c.Period
}

func NewConstantBackoff(period time.Duration) *ConstantBackoff {
	return &ConstantBackoff{Period: period}
}
