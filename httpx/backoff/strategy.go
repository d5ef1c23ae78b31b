package backoff

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Strategy names a retry schedule selectable from configuration.
type Strategy string

const (
	Exponential Strategy = "exponential"
	Linear      Strategy = "linear"
	Constant    Strategy = "constant"
)

// ParseStrategy accepts the configured name of a schedule. An empty name
// selects Exponential.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(name); s {
	case "":
		return Exponential, nil
	case Exponential, Linear, Constant:
		return s, nil
	default:
		return "", errors.Newf("unknown backoff strategy %q", name)
	}
}

// New builds the schedule for s. period is the first delay and max caps
// the growing schedules; Constant ignores max.
func (s Strategy) New(period, max time.Duration) (Backoff, error) {
	switch s {
	case Exponential, "":
		return NewExponentialBackoff(period, max), nil
	case Linear:
		return NewLinearBackoff(period, max), nil
	case Constant:
		return NewConstantBackoff(period), nil
	default:
		return nil, errors.Newf("unknown backoff strategy %q", string(s))
	}
}
