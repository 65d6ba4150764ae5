package llm

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"
)

const MaxRetries = 3

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// backoff is swapped out by tests.
var backoff = Backoff

// Retry runs fn up to MaxRetries times, sleeping between attempts while
// fn keeps failing with a retryable error.
func Retry(ctx context.Context, log *slog.Logger, op string, fn func(context.Context) error) error {
	var lastErr error
	for attempt := range MaxRetries {
		lastErr = fn(ctx)
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		if attempt == MaxRetries-1 {
			break
		}
		if log != nil {
			log.Warn("retryable model error", "op", op, "attempt", attempt, "error", lastErr)
		}
		select {
		case <-time.After(backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
