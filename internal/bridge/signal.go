package bridge

import (
	"runtime/debug"
	"sync"
	"time"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
)

// subscribers is the insertion-ordered callback list of one signal kind.
// Delivery always iterates a snapshot, so a callback registered while a pass
// is running is first called on the next change.
type subscribers[T any] struct {
	name string

	mu       sync.Mutex
	fns      []func(T) error
	watching bool
}

func newSubscribers[T any](name string) *subscribers[T] {
	return &subscribers[T]{name: name}
}

func (s *subscribers[T]) add(fn func(T) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fns = append(s.fns, fn)
}

// start moves the signal from Uninitialized to Watching. It reports true only
// for the first caller, which must attach the watch.
func (s *subscribers[T]) start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.watching {
		return false
	}
	s.watching = true
	return true
}

func (s *subscribers[T]) snapshot() []func(T) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]func(T) error, len(s.fns))
	copy(out, s.fns)
	return out
}

func (s *subscribers[T]) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.fns)
}

// deliver runs every subscriber in registration order with v.
func deliver[T any](b *Bridge, s *subscribers[T], v T) {
	start := time.Now()
	for i, fn := range s.snapshot() {
		invoke(b, s.name, i, fn, v)
	}
	b.observe(s.name, time.Since(start))
}

// invoke calls fn, converting a returned error or a panic into a
// SubscriberError. It never propagates either.
func invoke[T any](b *Bridge, signal string, index int, fn func(T) error, v T) {
	defer func() {
		if r := recover(); r != nil {
			b.subscriberFailed(errors.NewSubscriberPanic(signal, index, r, string(debug.Stack())))
		}
	}()
	var err error
	b.callout(func() { err = fn(v) })
	if err != nil {
		b.subscriberFailed(errors.NewSubscriberError(signal, index, err))
	}
}
