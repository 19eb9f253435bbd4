package publish

import "time"

// RetryPolicy bounds upload retries: a fixed attempt cap with exponential
// backoff. It is injected into the Publisher rather than embedded in call
// sites so tests can shrink the schedule.
type RetryPolicy struct {
	// MaxAttempts is the total number of upload attempts, including the
	// first one. Minimum 1.
	MaxAttempts int

	// BaseDelay is the delay after the first failed attempt; each further
	// failure doubles it.
	BaseDelay time.Duration

	// MaxDelay caps the per-attempt delay. Zero means uncapped.
	MaxDelay time.Duration
}

// DefaultRetryPolicy returns the production schedule: 4 attempts, 500ms
// doubling to a 5s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 4,
		BaseDelay:   500 * time.Millisecond,
		MaxDelay:    5 * time.Second,
	}
}

// Backoff returns the delay to sleep after the given failed attempt
// (1-based): BaseDelay * 2^(attempt-1), capped at MaxDelay.
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.BaseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if p.MaxDelay > 0 && delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		return p.MaxDelay
	}
	return delay
}
