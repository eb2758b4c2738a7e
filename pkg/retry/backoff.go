package retry

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Config defines retry behavior.
type Config struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// Delay is the base delay; the wait before retry n is Delay * n
	// (linear, to bound worst-case latency on human-facing requests).
	Delay time.Duration
	// Retryable decides whether an error is worth another attempt.
	// A nil Retryable retries every error.
	Retryable func(error) bool
}

// ConflictConfig returns the policy for ledger writes that can lose an
// optimistic-concurrency race on a shared key.
func ConflictConfig(retryable func(error) bool) Config {
	return Config{
		MaxAttempts: 3,
		Delay:       200 * time.Millisecond,
		Retryable:   retryable,
	}
}

// ConnectConfig returns the policy for startup connections to external
// systems, where every failure is assumed transient.
func ConnectConfig() Config {
	return Config{
		MaxAttempts: 5,
		Delay:       2 * time.Second,
	}
}

// WithBackoff executes fn with bounded linear backoff.
//
// A non-retryable error is returned immediately. After MaxAttempts the
// last error is returned unchanged so callers can still branch on its
// kind with errors.Is / errors.As.
func WithBackoff(ctx context.Context, cfg Config, logger *zap.Logger, operation string, fn func() error) error {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		default:
		}

		lastErr = fn()
		if lastErr == nil {
			if attempt > 1 {
				logger.Info("Operation succeeded after retries",
					zap.String("operation", operation),
					zap.Int("attempts", attempt))
			}
			return nil
		}

		if cfg.Retryable != nil && !cfg.Retryable(lastErr) {
			return lastErr
		}

		if attempt == cfg.MaxAttempts {
			return lastErr
		}

		delay := cfg.Delay * time.Duration(attempt)

		logger.Warn("Operation failed, retrying",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.MaxAttempts),
			zap.Duration("retry_in", delay),
			zap.Error(lastErr))

		select {
		case <-ctx.Done():
			return fmt.Errorf("retry cancelled: %w", ctx.Err())
		case <-time.After(delay):
		}
	}

	return lastErr
}
