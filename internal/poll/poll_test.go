package poll

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
)

func TestFor_ImmediateSuccess(t *testing.T) {
	start := time.Now()
	got, err := For(context.Background(), func(context.Context) (int, bool, error) {
		return 42, true, nil
	}, WithInterval(time.Hour))

	require.NoError(t, err)
	assert.Equal(t, 42, got)
	assert.Less(t, time.Since(start), 100*time.Millisecond, "no timer wait before the first attempt")
}

func TestFor_EventualSuccess(t *testing.T) {
	var calls atomic.Int32
	got, err := For(context.Background(), func(context.Context) (string, bool, error) {
		if calls.Add(1) < 3 {
			return "", false, nil
		}
		return "ready", true, nil
	}, WithInterval(time.Millisecond))

	require.NoError(t, err)
	assert.Equal(t, "ready", got)
	assert.EqualValues(t, 3, calls.Load())
}

func TestFor_Timeout(t *testing.T) {
	const (
		interval = 10 * time.Millisecond
		timeout  = 30 * time.Millisecond
	)

	var calls atomic.Int32
	start := time.Now()
	_, err := For(context.Background(), func(context.Context) (bool, bool, error) {
		calls.Add(1)
		return false, false, nil
	}, WithInterval(interval), WithTimeout(timeout), WithOperation("never"))
	elapsed := time.Since(start)

	require.ErrorIs(t, err, errors.ErrTimeout)
	var terr *errors.TimeoutError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "never", terr.Operation)
	assert.GreaterOrEqual(t, elapsed, timeout)
	assert.LessOrEqual(t, calls.Load(), int32(timeout/interval)+1)
	assert.EqualValues(t, calls.Load(), terr.Attempts)
}

func TestFor_ZeroTimeoutAllowsOneAttempt(t *testing.T) {
	t.Run("failing condition", func(t *testing.T) {
		var calls atomic.Int32
		_, err := For(context.Background(), func(context.Context) (int, bool, error) {
			calls.Add(1)
			return 0, false, nil
		}, WithInterval(5*time.Millisecond), WithTimeout(0))

		require.ErrorIs(t, err, errors.ErrTimeout)
		assert.EqualValues(t, 1, calls.Load())
	})

	t.Run("succeeding condition", func(t *testing.T) {
		got, err := For(context.Background(), func(context.Context) (int, bool, error) {
			return 7, true, nil
		}, WithTimeout(0))

		require.NoError(t, err)
		assert.Equal(t, 7, got)
	})
}

func TestFor_ConditionError(t *testing.T) {
	boom := errors.New("boom")
	_, err := For(context.Background(), func(context.Context) (int, bool, error) {
		return 0, false, boom
	})
	assert.ErrorIs(t, err, boom)
}

func TestFor_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := For(ctx, func(context.Context) (int, bool, error) {
		return 0, false, nil
	}, WithInterval(5*time.Millisecond))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFor_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero interval", []Option{WithInterval(0)}},
		{"negative interval", []Option{WithInterval(-time.Second)}},
		{"negative timeout", []Option{WithTimeout(-time.Millisecond)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := For(context.Background(), func(context.Context) (int, bool, error) {
				t.Error("condition should not be evaluated")
				return 0, true, nil
			}, tt.opts...)
			assert.ErrorIs(t, err, errors.ErrInvalidInput)
		})
	}
}

func TestUntil(t *testing.T) {
	var calls atomic.Int32
	err := Until(context.Background(), func(context.Context) (bool, error) {
		return calls.Add(1) == 2, nil
	}, WithInterval(time.Millisecond))

	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}
