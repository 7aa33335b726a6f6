package scope

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/logging"
)

// DefaultDigestInterval is how often Run evaluates all watches.
const DefaultDigestInterval = 250 * time.Millisecond

// Digest implements Scope.Watch for adapters whose client cannot push change
// notifications. Every cycle evaluates all watches in registration order on a
// single goroutine and runs their listeners inline, so a listener never races
// another listener and the next change is detected only after the current
// notification pass has returned.
type Digest struct {
	interval time.Duration
	logger   *logging.Logger

	mu       sync.Mutex
	watchers []*watcher

	cycleMu sync.Mutex // serializes cycles between Run and Cycle
	kick    chan struct{}
}

type watcher struct {
	get     Getter
	fn      Listener
	last    any
	primed  bool
	removed atomic.Bool
}

// NewDigest creates a Digest. A non-positive interval selects the default.
func NewDigest(interval time.Duration, logger *logging.Logger) *Digest {
	if interval <= 0 {
		interval = DefaultDigestInterval
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	return &Digest{
		interval: interval,
		logger:   logger,
		kick:     make(chan struct{}, 1),
	}
}

// Interval returns the delay between cycles used by Run.
func (d *Digest) Interval() time.Duration {
	return d.interval
}

// Watch registers a watch. It is safe to call from inside a listener; the new
// watch is first evaluated on the next cycle.
func (d *Digest) Watch(get Getter, fn Listener) func() {
	w := &watcher{get: get, fn: fn}

	d.mu.Lock()
	d.watchers = append(d.watchers, w)
	d.mu.Unlock()

	return func() {
		if w.removed.Swap(true) {
			return
		}
		d.mu.Lock()
		defer d.mu.Unlock()
		for i, other := range d.watchers {
			if other == w {
				d.watchers = append(d.watchers[:i], d.watchers[i+1:]...)
				return
			}
		}
	}
}

// Len returns the number of registered watches.
func (d *Digest) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.watchers)
}

// Kick requests an immediate cycle from Run.
func (d *Digest) Kick() {
	select {
	case d.kick <- struct{}{}:
	default:
	}
}

// Cycle evaluates every watch once and returns how many listeners were called
// because of a change. A getter error leaves the watch's last value untouched.
func (d *Digest) Cycle(ctx context.Context) int {
	d.cycleMu.Lock()
	defer d.cycleMu.Unlock()

	d.mu.Lock()
	snapshot := make([]*watcher, len(d.watchers))
	copy(snapshot, d.watchers)
	d.mu.Unlock()

	changes := 0
	for _, w := range snapshot {
		if ctx.Err() != nil {
			return changes
		}
		if w.removed.Load() {
			continue
		}

		value, err := w.get(ctx)
		if err != nil {
			if errors.Is(err, ErrNotReady) || errors.Is(err, ErrNoRoom) {
				d.logger.Debug("watch getter not ready", "error", err)
			} else {
				d.logger.Warn("watch getter failed", "error", err)
			}
			continue
		}

		if !w.primed {
			w.primed = true
			w.last = value
			w.fn(value, value)
			continue
		}
		if Equal(value, w.last) {
			continue
		}

		old := w.last
		w.last = value
		changes++
		w.fn(value, old)
	}
	return changes
}

// Run cycles every interval (or on Kick) until ctx is cancelled.
func (d *Digest) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.interval)
	defer ticker.Stop()

	for {
		d.Cycle(ctx)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		case <-d.kick:
		}
	}
}
