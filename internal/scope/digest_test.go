package scope

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type change struct {
	newValue, oldValue any
}

func TestDigest_FirstEvaluationPrimes(t *testing.T) {
	d := NewDigest(time.Millisecond, nil)
	value := "top.game-room"

	var got []change
	d.Watch(func(context.Context) (any, error) { return value, nil }, func(n, o any) {
		got = append(got, change{n, o})
	})

	assert.Zero(t, d.Cycle(context.Background()), "priming is not a change")
	require.Equal(t, []change{{value, value}}, got)

	d.Cycle(context.Background())
	assert.Len(t, got, 1, "unchanged value fired the listener again")

	value = "top.game-world-map"
	assert.Equal(t, 1, d.Cycle(context.Background()))
	require.Len(t, got, 2)
	assert.Equal(t, change{"top.game-world-map", "top.game-room"}, got[1])
}

func TestDigest_GetterErrorKeepsLastValue(t *testing.T) {
	d := NewDigest(time.Millisecond, nil)
	var value any = "a"
	var err error

	var calls int
	d.Watch(func(context.Context) (any, error) { return value, err }, func(any, any) { calls++ })
	d.Cycle(context.Background())

	err = ErrNotReady
	value = "b"
	d.Cycle(context.Background())
	require.Equal(t, 1, calls, "listener called during getter error")

	err = nil
	value = "a"
	d.Cycle(context.Background())
	assert.Equal(t, 1, calls, "value returned to the last known value")
}

func TestDigest_Unwatch(t *testing.T) {
	d := NewDigest(time.Millisecond, nil)
	value := 1
	calls := 0
	unwatch := d.Watch(func(context.Context) (any, error) { return value, nil }, func(any, any) { calls++ })

	d.Cycle(context.Background())
	unwatch()
	unwatch()

	value = 2
	d.Cycle(context.Background())
	assert.Equal(t, 1, calls)
	assert.Zero(t, d.Len())
}

func TestDigest_WatchFromListenerStartsNextCycle(t *testing.T) {
	d := NewDigest(time.Millisecond, nil)
	var inner int

	d.Watch(func(context.Context) (any, error) { return "x", nil }, func(any, any) {
		d.Watch(func(context.Context) (any, error) { return "y", nil }, func(any, any) { inner++ })
	})

	d.Cycle(context.Background())
	require.Zero(t, inner, "watch added during a cycle ran in the same cycle")
	d.Cycle(context.Background())
	assert.Equal(t, 1, inner)
}

func TestDigest_RunStopsOnCancel(t *testing.T) {
	d := NewDigest(time.Millisecond, nil)
	seen := make(chan struct{}, 1)
	d.Watch(func(context.Context) (any, error) { return 1, nil }, func(any, any) {
		select {
		case seen <- struct{}{}:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	select {
	case <-seen:
	case <-time.After(time.Second):
		t.Fatal("Run never evaluated the watch")
	}
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestNewDigest_DefaultInterval(t *testing.T) {
	assert.Equal(t, DefaultDigestInterval, NewDigest(0, nil).Interval())
}
