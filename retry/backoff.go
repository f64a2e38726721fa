// Package retry provides exponential backoff for connecting to the database
// and the broker at startup. Lifecycle operations never retry.
package retry

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"
)

// Strategy defines the backoff between connection attempts.
//
// The delay before attempt n+1 follows:
// delay = min(BaseDelay * ExponentialBase^n, MaxDelay)
//
// Example with defaults (500ms base, 2.0 exponential, 30s max):
//
//	Attempt 1: immediately
//	Attempt 2: after 1s
//	Attempt 3: after 2s
//	Attempt 4: after 4s
type Strategy struct {
	MaxAttempts     int           // Total attempts including the first one
	BaseDelay       time.Duration // Delay unit for the backoff formula
	MaxDelay        time.Duration // Maximum delay cap
	ExponentialBase float64       // Backoff multiplier (e.g., 2.0 for doubling)
}

// DefaultStrategy returns the startup strategy: 8 attempts, 500ms to 30s.
func DefaultStrategy() Strategy {
	return Strategy{
		MaxAttempts:     8,
		BaseDelay:       500 * time.Millisecond,
		MaxDelay:        30 * time.Second,
		ExponentialBase: 2.0,
	}
}

// CalculateRetryDelay calculates the delay after the given failed attempt.
// Formula: delay = min(BaseDelay * ExponentialBase^attemptNumber, MaxDelay)
func (s Strategy) CalculateRetryDelay(attemptNumber int) time.Duration {
	if attemptNumber <= 0 {
		return s.BaseDelay
	}

	delay := float64(s.BaseDelay) * math.Pow(s.ExponentialBase, float64(attemptNumber))
	if delay > float64(s.MaxDelay) {
		return s.MaxDelay
	}

	return time.Duration(delay)
}

// IsRetryable checks if another attempt is allowed after attemptCount attempts.
func (s Strategy) IsRetryable(attemptCount int) bool {
	return attemptCount < s.MaxAttempts
}

// GetRetrySchedule returns a human-readable description of the schedule.
//
// Example output:
//
//	Retry Schedule:
//	  Attempt 1: immediately
//	  Attempt 2: after 1s
//	  ...
func (s Strategy) GetRetrySchedule() string {
	var b strings.Builder
	b.WriteString("Retry Schedule:\n")
	for i := 1; i <= s.MaxAttempts; i++ {
		if i == 1 {
			b.WriteString("  Attempt 1: immediately\n")
			continue
		}
		fmt.Fprintf(&b, "  Attempt %d: after %v\n", i, s.CalculateRetryDelay(i-1))
	}
	return b.String()
}

// Do calls fn until it succeeds, the attempts are exhausted or ctx is done.
// onRetry, if not nil, is called before each wait with the failed attempt
// number and its error. The last error is returned.
func (s Strategy) Do(ctx context.Context, fn func(ctx context.Context) error, onRetry func(attempt int, delay time.Duration, err error)) error {
	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if attempt >= attempts {
			return fmt.Errorf("giving up after %d attempts: %w", attempt, err)
		}

		delay := s.CalculateRetryDelay(attempt)
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return fmt.Errorf("%w (last error: %v)", ctx.Err(), err)
		case <-timer.C:
		}
	}
}
