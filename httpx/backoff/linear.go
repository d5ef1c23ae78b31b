package backoff

import "time"

// LinearBackoff grows the delay by Step per retry: Step, 2*Step, 3*Step.
type LinearBackoff struct {
	Step time.Duration

	// Max caps the delay; zero leaves it unbounded
	Max time.Duration
}

func (l *LinearBackoff) Next(retry int) time.Duration {
	if retry < 0 {
		retry = 0
	}
	steps := time.Duration(retry + 1)
	if l.Max > 0 && (l.Step <= 0 || steps > l.Max/l.Step) {
		return l.Max
	}
	return l.Step * steps
}

// NewLinearBackoff creates a linear schedule starting at step and capped at max.
func NewLinearBackoff(step, max time.Duration) *LinearBackoff {
	return &LinearBackoff{Step: step, Max: max}
}
