package transform

import (
	"math/rand"
	"time"
)

// RetryPolicy bounds the retry loop for transient failures.
type RetryPolicy struct {
	MaxRetries int           // Extra tries after the first failure.
	BaseDelay  time.Duration // First backoff delay.
	MaxDelay   time.Duration // Backoff cap.
}

// DefaultRetryPolicy matches the documented defaults: 3 retries, 500ms base,
// 8s cap.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 3,
		BaseDelay:  500 * time.Millisecond,
		MaxDelay:   8 * time.Second,
	}
}

// RetryState tracks the attempt count and backoff progression for a single
// work unit. Attempt counts failed tries so far; the total tries made for a
// unit is Attempt on permanent failure, or Attempt+1 when a later try
// succeeds.
type RetryState struct {
	Attempt int
	policy  RetryPolicy
	jitter  func() float64 // returns [0,1); replaceable in tests
}

// NewRetryState initializes retry tracking for one unit.
func NewRetryState(policy RetryPolicy) *RetryState {
	return &RetryState{policy: policy, jitter: rand.Float64}
}

// Advance records a failed attempt of the given kind and reports whether
// another try is allowed, along with the delay to sleep first. Permanent
// kinds and exhausted budgets both return false.
func (s *RetryState) Advance(kind ErrorKind) (time.Duration, bool) {
	s.Attempt++
	if !kind.Transient() {
		return 0, false
	}
	if s.Attempt > s.policy.MaxRetries {
		return 0, false
	}
	return s.backoff(), true
}

// backoff returns base * 2^(attempt-1), capped at MaxDelay, with ±25% jitter
// so concurrent workers do not retry in lockstep.
func (s *RetryState) backoff() time.Duration {
	d := s.policy.BaseDelay
	for i := 1; i < s.Attempt; i++ {
		d *= 2
		if d >= s.policy.MaxDelay {
			d = s.policy.MaxDelay
			break
		}
	}
	if d > s.policy.MaxDelay {
		d = s.policy.MaxDelay
	}
	if d <= 0 {
		return 0
	}
	// Scale into [0.75, 1.25).
	factor := 0.75 + s.jitter()*0.5
	return time.Duration(float64(d) * factor)
}
