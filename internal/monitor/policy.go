package monitor

import "time"

// Policy controls the cadence of a poll loop and how it backs off.
type Policy struct {
	Interval   time.Duration
	RetryDelay time.Duration
	// MaxConsecutiveErrors is the failure count at which the loop switches from
	// RetryDelay to an escalating backoff.
	MaxConsecutiveErrors int
	BackoffStep          time.Duration
	BackoffCap           time.Duration
}

func DefaultPolicy() Policy {
	return Policy{
		Interval:             60 * time.Second,
		RetryDelay:           30 * time.Second,
		MaxConsecutiveErrors: 3,
		BackoffStep:          60 * time.Second,
		BackoffCap:           300 * time.Second,
	}
}

// FailureDelay returns how long to sleep after the consecutive-th failure in a row,
// and whether the error counter resets once that sleep is over.
func (p Policy) FailureDelay(consecutive int) (time.Duration, bool) {
	if consecutive < p.MaxConsecutiveErrors {
		return p.RetryDelay, false
	}
	delay := p.BackoffStep * time.Duration(consecutive)
	if delay > p.BackoffCap {
		delay = p.BackoffCap
	}
	return delay, true
}

// StaleAfter is how long a running loop may go without a successful probe before
// the health check complains.
func (p Policy) StaleAfter() time.Duration {
	return 2 * p.Interval
}
