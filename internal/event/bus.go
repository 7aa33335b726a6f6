package event

import (
	"runtime/debug"
	"slices"
	"sync"
	"sync/atomic"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/Iron-Ham/screeps-adapter/internal/logging"
)

// Handler receives a published event on the publishing goroutine.
type Handler func(Event)

type subscription struct {
	types   mapset.Set[string] // nil matches every event type
	handler Handler
}

func (s *subscription) matches(eventType string) bool {
	return s.types == nil || s.types.Contains(eventType)
}

// Bus fans events out to handlers in registration order. Publish reads an
// immutable snapshot of the subscription list, so handlers may subscribe or
// unsubscribe while being called; the change applies to the next Publish.
type Bus struct {
	mu     sync.Mutex // serializes writers of subs
	subs   atomic.Pointer[[]*subscription]
	logger *logging.Logger
}

// NewBus returns an empty bus. Handler panics are logged to logger; a nil
// logger discards them.
func NewBus(logger *logging.Logger) *Bus {
	if logger == nil {
		logger = logging.NopLogger()
	}
	b := &Bus{logger: logger}
	b.subs.Store(&[]*subscription{})
	return b
}

// Subscribe registers handler for the given event types, or for every event
// when no type is given. The returned function removes the subscription and
// is safe to call more than once.
func (b *Bus) Subscribe(handler Handler, types ...string) (unsubscribe func()) {
	sub := &subscription{handler: handler}
	if len(types) > 0 {
		sub.types = mapset.NewThreadUnsafeSet(types...)
	}

	b.mu.Lock()
	next := append(slices.Clone(*b.subs.Load()), sub)
	b.subs.Store(&next)
	b.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { b.remove(sub) }) }
}

func (b *Bus) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	next := slices.DeleteFunc(slices.Clone(*b.subs.Load()), func(s *subscription) bool {
		return s == sub
	})
	b.subs.Store(&next)
}

// Publish calls every matching handler. A panicking handler is logged and
// the remaining handlers still run.
func (b *Bus) Publish(e Event) {
	eventType := e.EventType()
	for _, sub := range *b.subs.Load() {
		if sub.matches(eventType) {
			b.call(sub.handler, e)
		}
	}
}

func (b *Bus) call(handler Handler, e Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"event", e.EventType(), "panic", r, "stack", string(debug.Stack()))
		}
	}()
	handler(e)
}

// Len returns the number of active subscriptions.
func (b *Bus) Len() int {
	return len(*b.subs.Load())
}

// Clear drops every subscription. Unsubscribe functions handed out earlier
// become no-ops.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs.Store(&[]*subscription{})
}
