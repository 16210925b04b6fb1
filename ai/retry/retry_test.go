package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoValue_SucceedsFirstAttempt(t *testing.T) {
	calls := 0
	result, err := DoValue(context.Background(), Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (string, error) {
		calls++
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", result)
	assert.Equal(t, 1, calls)
}

func TestDoValue_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	result, err := DoValue(context.Background(), Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		if calls < 3 {
			return 0, errors.New("transient")
		}
		return 42, nil
	})

	require.NoError(t, err)
	assert.Equal(t, 42, result)
	assert.Equal(t, 3, calls)
}

func TestDoValue_ExhaustsAttempts(t *testing.T) {
	wantErr := errors.New("always fails")
	calls := 0
	_, err := DoValue(context.Background(), Config{MaxAttempts: 3, BaseDelay: time.Millisecond}, func(ctx context.Context) (int, error) {
		calls++
		return 0, wantErr
	})

	assert.Equal(t, wantErr, err)
	assert.Equal(t, 3, calls)
}

func TestDoValue_NonRetryableErrorPropagatesImmediately(t *testing.T) {
	fatal := errors.New("fatal")
	calls := 0
	start := time.Now()

	cfg := Config{
		MaxAttempts: 5,
		BaseDelay:   time.Second,
		RetryIf:     func(err error) bool { return !errors.Is(err, fatal) },
	}
	_, err := DoValue(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, fatal
	})

	assert.Equal(t, fatal, err)
	assert.Equal(t, 1, calls)
	// No sleep should have happened for a non-retryable error.
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestDoValue_ContextCancelledDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := DoValue(ctx, Config{MaxAttempts: 3, BaseDelay: 5 * time.Second}, func(ctx context.Context) (int, error) {
		calls++
		return 0, errors.New("transient")
	})

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestDo_DelayCappedAtMax(t *testing.T) {
	start := time.Now()
	err := Do(context.Background(), Config{
		MaxAttempts: 4,
		BaseDelay:   2 * time.Millisecond,
		MaxDelay:    4 * time.Millisecond,
	}, func(ctx context.Context) error {
		return errors.New("transient")
	})

	require.Error(t, err)
	// Three sleeps: 2ms, 4ms, capped 4ms. Well under the uncapped 2+4+8.
	assert.Less(t, time.Since(start), time.Second)
}
