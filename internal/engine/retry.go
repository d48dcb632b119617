package engine

import (
	"context"
	"fmt"
	"time"
)

// RetryPolicy is an injectable retry strategy. A call is tried once and then
// retried up to MaxRetries times; Backoff(n) is the wait before retry n.
type RetryPolicy struct {
	MaxRetries int
	Backoff    func(attempt int) time.Duration
	Classify   func(error) bool // true when the error is worth retrying

	// Sleep waits for d or until ctx ends. Nil means a timer wait;
	// tests replace it to record delays without sleeping.
	Sleep func(ctx context.Context, d time.Duration) error
}

// ExponentialBackoff returns base, 2*base, 4*base, ... for attempts 1, 2, 3, ...
func ExponentialBackoff(base time.Duration) func(int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return base * time.Duration(1<<uint(attempt-1))
	}
}

// DefaultLLMRetryPolicy retries transient provider failures five times,
// waiting 2, 4, 8, 16 and 32 seconds.
func DefaultLLMRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 5,
		Backoff:    ExponentialBackoff(2 * time.Second),
		Classify:   IsTransient,
	}
}

// RetryableFunc is a function that can be retried.
type RetryableFunc[T any] func(ctx context.Context) (T, error)

// Retry runs fn until it succeeds, returns a non-retryable error, or the
// policy runs out of retries. onRetry, when set, is called before each wait
// with the 1-based retry number.
func Retry[T any](
	ctx context.Context,
	policy RetryPolicy,
	fn RetryableFunc[T],
	onRetry func(attempt int, delay time.Duration, err error),
) (T, error) {
	var zero T

	maxRetries := policy.MaxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	classify := policy.Classify
	if classify == nil {
		classify = IsTransient
	}
	sleep := policy.Sleep
	if sleep == nil {
		sleep = sleepCtx
	}

	var lastErr error
	for retry := 0; ; retry++ {
		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err

		if !classify(err) {
			return zero, err
		}
		if retry >= maxRetries {
			break
		}

		attempt := retry + 1
		delay := time.Duration(0)
		if policy.Backoff != nil {
			delay = policy.Backoff(attempt)
		}
		if hint := ExtractRetryAfter(err); hint > delay {
			delay = hint
		}

		if onRetry != nil {
			onRetry(attempt, delay, err)
		}

		if err := sleep(ctx, delay); err != nil {
			return zero, fmt.Errorf("context cancelled during retry: %w", err)
		}
	}

	return zero, &RetryExhaustedError{Err: lastErr, Attempts: maxRetries + 1}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
