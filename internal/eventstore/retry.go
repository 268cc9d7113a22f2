package eventstore

import (
	"context"
	"errors"
	"math/rand"
	"time"
)

const (
	defaultMaxAttempts  = 5
	defaultBaseDelay    = 10 * time.Millisecond
	defaultJitterFactor = 0.3
)

// RetryOption configures RetryOnConflict.
type RetryOption func(*retryConfig)

type retryConfig struct {
	maxAttempts  int
	baseDelay    time.Duration
	jitterFactor float64
}

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) RetryOption {
	return func(c *retryConfig) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithBaseDelay sets the delay before the first retry; later retries double it.
func WithBaseDelay(d time.Duration) RetryOption {
	return func(c *retryConfig) {
		if d >= 0 {
			c.baseDelay = d
		}
	}
}

// RetryOnConflict runs fn with exponential backoff, retrying only when it
// fails with ErrConcurrencyConflict. Other errors fail fast.
func RetryOnConflict(ctx context.Context, fn func(ctx context.Context) error, options ...RetryOption) error {
	cfg := retryConfig{
		maxAttempts:  defaultMaxAttempts,
		baseDelay:    defaultBaseDelay,
		jitterFactor: defaultJitterFactor,
	}
	for _, opt := range options {
		opt(&cfg)
	}

	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			jitter := rand.Float64() * float64(delay) * cfg.jitterFactor //nolint:gosec // jitter only
			select {
			case <-time.After(delay + time.Duration(jitter)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil || !errors.Is(lastErr, ErrConcurrencyConflict) {
			return lastErr
		}
	}
	return lastErr
}
