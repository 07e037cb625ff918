// Package retry wraps one idempotent external call with exponential backoff.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"

	"ArticlesRewriter/internal/apperr"
)

// ErrAttemptsExhausted marks a call that failed on every allowed attempt.
var ErrAttemptsExhausted = errors.New("retry attempts exhausted")

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Config configures retry behavior.
type Config struct {
	// MaxAttempts counts the initial call. Values below 1 mean a single attempt.
	MaxAttempts int
	// BaseDelay is the first backoff; each following one doubles.
	BaseDelay time.Duration
	// IsRetryable defaults to apperr.IsRetryable: timeouts, 5xx, and 429 rate
	// limits without quota wording. Every other 4xx fails fast; a 429 is the one
	// client status retried, since it signals throttling rather than a bad request.
	IsRetryable func(error) bool
	// Sleep defaults to a context-aware timer.
	Sleep SleepFunc
	// OnRetry is called before each backoff sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// Call is a single attempt against the collaborator.
type Call[T any] func(ctx context.Context) (T, error)

// Plan describes how the collaborator is reached.
type Plan[T any] struct {
	// Warmup runs once before the first attempt. Its error is ignored.
	Warmup func(ctx context.Context) error
	// Primary serves every attempt except possibly the last one.
	Primary Call[T]
	// Fallback, when set, replaces Primary on the final attempt only.
	Fallback Call[T]
}

// Do runs plan under cfg and returns the first success or the last error.
func Do[T any](ctx context.Context, cfg Config, plan Plan[T]) (T, error) {
	var zero T
	if plan.Primary == nil {
		return zero, errors.New("retry: primary call is required")
	}

	attempts := max(cfg.MaxAttempts, 1)
	retryable := cfg.IsRetryable
	if retryable == nil {
		retryable = apperr.IsRetryable
	}
	sleep := cfg.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	if plan.Warmup != nil {
		_ = plan.Warmup(ctx)
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		call := plan.Primary
		if attempt == attempts && plan.Fallback != nil {
			call = plan.Fallback
		}

		result, err := call(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if ctx.Err() != nil || !retryable(err) {
			return zero, err
		}
		if attempt == attempts {
			break
		}

		delay := Backoff(cfg.BaseDelay, attempt)
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, delay, err)
		}
		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("backoff after attempt %d: %w", attempt, errors.Join(err, lastErr))
		}
	}

	return zero, fmt.Errorf("%w after %d attempts: %w", ErrAttemptsExhausted, attempts, lastErr)
}

// Backoff returns the delay that follows the given 1-based attempt.
func Backoff(base time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	return base << (attempt - 1)
}

// Sleep waits for d unless ctx finishes first.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
