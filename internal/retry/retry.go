// Package retry runs an operation a bounded number of times with a randomized pause
// between attempts.
package retry

import (
	"context"
	"fmt"
	"math/rand"
	"time"
)

// Policy configures Do.
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Jitter      time.Duration

	// Retryable decides whether a failed attempt is tried again.
	// A nil Retryable never retries.
	Retryable func(error) bool

	// Sleep and Int63n are swapped out in tests.
	Sleep  func(ctx context.Context, d time.Duration) error
	Int63n func(n int64) int64
}

// Delay returns the pause before the next attempt: BaseDelay plus a random
// value in [0, Jitter).
func (p Policy) Delay() time.Duration {
	delay := p.BaseDelay
	if p.Jitter > 0 {
		randn := p.Int63n
		if randn == nil {
			randn = rand.Int63n
		}
		delay += time.Duration(randn(int64(p.Jitter)))
	}
	return delay
}

// Do calls fn until it succeeds, returns a non-retryable error, or MaxAttempts
// is reached. fn receives the 1-based attempt number. On exhaustion the last
// error is returned wrapped, so errors.Is keeps working for callers.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context, attempt int) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, p.Delay()); err != nil {
				return fmt.Errorf("retry interrupted after %d attempts: %w", attempt-1, lastErr)
			}
		}

		lastErr = fn(ctx, attempt)
		if lastErr == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(lastErr) {
			return lastErr
		}
	}

	return fmt.Errorf("max attempts (%d) exceeded: %w", attempts, lastErr)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
