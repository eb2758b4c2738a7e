package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

var errConflict = errors.New("tx conflict")

func fastConfig(retryable func(error) bool) Config {
	return Config{MaxAttempts: 3, Delay: time.Millisecond, Retryable: retryable}
}

func TestWithBackoff_ExhaustsAttemptsAndPreservesError(t *testing.T) {
	logger := zaptest.NewLogger(t)

	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(nil), logger, "always_fails", func() error {
		attempts++
		return errConflict
	})

	assert.Equal(t, 3, attempts)
	// The last error must come back unchanged, not wrapped.
	assert.Equal(t, errConflict, err)
	assert.ErrorIs(t, err, errConflict)
}

func TestWithBackoff_SucceedsAfterRetries(t *testing.T) {
	logger := zaptest.NewLogger(t)

	attempts := 0
	err := WithBackoff(context.Background(), fastConfig(nil), logger, "flaky", func() error {
		attempts++
		if attempts < 3 {
			return errConflict
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestWithBackoff_NonRetryableReturnsImmediately(t *testing.T) {
	logger := zaptest.NewLogger(t)
	permanent := errors.New("invalid argument")

	attempts := 0
	cfg := fastConfig(func(err error) bool { return errors.Is(err, errConflict) })
	err := WithBackoff(context.Background(), cfg, logger, "permanent_failure", func() error {
		attempts++
		return permanent
	})

	assert.Equal(t, 1, attempts)
	assert.ErrorIs(t, err, permanent)
}

func TestWithBackoff_RetryableFilterStillRetriesConflicts(t *testing.T) {
	logger := zaptest.NewLogger(t)

	attempts := 0
	cfg := fastConfig(func(err error) bool { return errors.Is(err, errConflict) })
	err := WithBackoff(context.Background(), cfg, logger, "conflicting", func() error {
		attempts++
		return errConflict
	})

	assert.Equal(t, 3, attempts)
	assert.ErrorIs(t, err, errConflict)
}

func TestWithBackoff_CancelledContext(t *testing.T) {
	logger := zaptest.NewLogger(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := WithBackoff(ctx, fastConfig(nil), logger, "cancelled", func() error {
		t.Fatal("fn must not run after cancellation")
		return nil
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestConflictConfigDefaults(t *testing.T) {
	cfg := ConflictConfig(nil)
	assert.Equal(t, 3, cfg.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Delay)
}
