package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

const (
	defaultMaxAttempts = 3
	defaultBaseDelay   = 100 * time.Millisecond
)

var (
	// ErrInvalidMaxAttempts is returned when max attempts are not positive.
	ErrInvalidMaxAttempts = errors.New("max attempts must be positive")

	// ErrNegativeBaseDelay is returned when the base delay is negative.
	ErrNegativeBaseDelay = errors.New("base delay must not be negative")
)

type retryConfig struct {
	maxAttempts int
	baseDelay   time.Duration
	logger      *slog.Logger
	retryable   func(error) bool
}

// RetryOption configures Retry using the functional options pattern.
type RetryOption func(*retryConfig) error

// WithMaxAttempts sets the total number of attempts, the first one included.
func WithMaxAttempts(attempts int) RetryOption {
	return func(c *retryConfig) error {
		if attempts <= 0 {
			return ErrInvalidMaxAttempts
		}
		c.maxAttempts = attempts
		return nil
	}
}

// WithBaseDelay sets the delay before the second attempt.
// Later delays double: baseDelay, baseDelay*2, baseDelay*4, ...
func WithBaseDelay(d time.Duration) RetryOption {
	return func(c *retryConfig) error {
		if d < 0 {
			return ErrNegativeBaseDelay
		}
		c.baseDelay = d
		return nil
	}
}

// WithLogger sets the logger retry attempts are reported to.
func WithLogger(l *slog.Logger) RetryOption {
	return func(c *retryConfig) error {
		c.logger = l
		return nil
	}
}

// WithRetryable replaces the transient-error predicate.
func WithRetryable(fn func(error) bool) RetryOption {
	return func(c *retryConfig) error {
		c.retryable = fn
		return nil
	}
}

// Retry runs fn until it succeeds, fails with a non-retryable error, or the
// attempts run out. Exhaustion returns ErrTransient wrapping the last error.
// Context cancellation during a backoff wait returns ctx.Err().
func Retry(ctx context.Context, fn func(ctx context.Context) error, options ...RetryOption) error {
	cfg := &retryConfig{
		maxAttempts: defaultMaxAttempts,
		baseDelay:   defaultBaseDelay,
		logger:      slog.Default(),
		retryable:   IsTransient,
	}
	for _, option := range options {
		if err := option(cfg); err != nil {
			return err
		}
	}

	var lastErr error
	for attempt := 0; attempt < cfg.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := cfg.baseDelay * time.Duration(1<<(attempt-1))
			cfg.logger.Warn("retrying transaction",
				"attempt", attempt+1,
				"max_attempts", cfg.maxAttempts,
				"delay", delay,
				"error_type", errorType(lastErr),
			)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !cfg.retryable(lastErr) {
			return lastErr
		}
	}

	cfg.logger.Error("transaction retries exhausted",
		"attempts", cfg.maxAttempts,
		"error_type", errorType(lastErr),
		"err", lastErr,
	)
	return fmt.Errorf("%w: %w", ErrTransient, lastErr)
}
