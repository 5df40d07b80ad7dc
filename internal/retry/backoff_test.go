package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig(attempts int) BackoffConfig {
	return BackoffConfig{
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  attempts,
	}
}

func TestRetrySucceedsAfterFailures(t *testing.T) {
	b := NewBackoff(fastConfig(5))

	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("not yet")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryExhaustsAttempts(t *testing.T) {
	b := NewBackoff(fastConfig(4))

	opErr := errors.New("still failing")
	calls := 0
	err := b.Retry(context.Background(), func() error {
		calls++
		return opErr
	})

	assert.Equal(t, opErr, err)
	assert.Equal(t, 4, calls)
}

func TestRetryStopsOnContextCancel(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  100,
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := b.Retry(ctx, func() error {
		return errors.New("never succeeds")
	})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestCalculateDelayCapsAtMax(t *testing.T) {
	b := NewBackoff(BackoffConfig{
		InitialDelay: 100 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2.0,
		MaxAttempts:  10,
	})

	assert.Equal(t, 100*time.Millisecond, b.GetNextDelay(1))
	assert.Equal(t, 200*time.Millisecond, b.GetNextDelay(2))
	assert.Equal(t, time.Second, b.GetNextDelay(8))
}
