package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/Veraticus/the-harvest-must-flow/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidationError(t *testing.T) {
	err := fmt.Errorf("resolve products: %w", NewValidationError("product", "9999"))

	assert.True(t, IsValidation(err))
	assert.True(t, errors.Is(err, ErrAmbiguousFilter))
	assert.Contains(t, err.Error(), `invalid product "9999"`)

	assert.False(t, IsValidation(ErrNotFound))
}

func TestUserError(t *testing.T) {
	err := NewUserError("could not open database", ErrNotFound)
	assert.Equal(t, "could not open database: not found", err.Error())
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.Equal(t, "plain", NewUserError("plain", nil).Error())
}

func TestWithRetry(t *testing.T) {
	opts := service.RetryOptions{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond}

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			if calls < 3 {
				return ErrUnavailable
			}
			return nil
		}, opts)
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("gives up", func(t *testing.T) {
		err := WithRetry(context.Background(), func() error { return ErrUnavailable }, opts)
		assert.True(t, errors.Is(err, ErrMaxRetries))
	})

	t.Run("non retryable stops immediately", func(t *testing.T) {
		calls := 0
		err := WithRetry(context.Background(), func() error {
			calls++
			return &RetryableError{Err: ErrInvalidConfig, Retryable: false}
		}, opts)
		assert.True(t, errors.Is(err, ErrInvalidConfig))
		assert.Equal(t, 1, calls)
	})

	t.Run("context cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		err := WithRetry(ctx, func() error { return ErrUnavailable }, service.RetryOptions{MaxAttempts: 5, InitialDelay: time.Second})
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(fmt.Errorf("ping: %w", ErrUnavailable)))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
	assert.False(t, IsRetryable(ErrNotFound))
}

func TestLoggerFromContext(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, slog.LevelDebug, "json")
	require.NoError(t, err)

	ctx := WithLogger(context.Background(), logger.With("run_id", "abc"))
	LogInfo(ctx, "report started", Fields{"products": 3})

	assert.Contains(t, buf.String(), `"run_id":"abc"`)
	assert.Contains(t, buf.String(), `"products":3`)

	assert.Equal(t, slog.Default(), Logger(context.Background()))
}

func TestParseLevel(t *testing.T) {
	lvl, err := ParseLevel("warn")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, lvl)

	_, err = ParseLevel("verbose")
	assert.Error(t, err)

	_, err = NewLogger(&bytes.Buffer{}, slog.LevelInfo, "xml")
	assert.Error(t, err)
}
