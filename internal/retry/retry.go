package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy describes how a call is retried.
type Policy struct {
	MaxAttempts int
	Delay       time.Duration
	Backoff     bool // Linear backoff: attempt * Delay

	// Retryable decides whether an error earns another attempt.
	// Nil means every error is retried.
	Retryable func(error) bool

	// OnRetry, if set, is called before waiting for the next attempt.
	OnRetry func(attempt int, err error, wait time.Duration)
}

// Do calls fn until it succeeds, returns a non-retryable error, or the
// attempt budget is spent. Errors from fn are wrapped so errors.Is still works.
func Do(ctx context.Context, p Policy, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if p.Retryable != nil && !p.Retryable(err) {
			return err
		}
		if attempt == attempts {
			return fmt.Errorf("failed after %d attempts: %w", attempts, err)
		}

		delay := p.Delay
		if p.Backoff {
			delay = time.Duration(attempt) * p.Delay
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, err, delay)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
