package bridge

import (
	"time"

	"github.com/Iron-Ham/screeps-adapter/internal/event"
	"github.com/Iron-Ham/screeps-adapter/internal/logging"
	"github.com/Iron-Ham/screeps-adapter/internal/poll"
)

// defaultPollInterval is how often readiness and room probes are retried.
const defaultPollInterval = poll.DefaultInterval

// DefaultRoomViews are the views in which a selected object exists.
var DefaultRoomViews = []string{
	"top.game-room",
	"top.sim-custom",
	"top.sim-survival",
	"top.sim-tutorial",
}

// Option configures a Bridge.
type Option func(*config)

type config struct {
	pollInterval time.Duration
	readyTimeout time.Duration
	roomViews    []string
	compatViews  map[string]string
	version      string
	logger       *logging.Logger
	bus          *event.Bus
	onError      func(error)
	observer     func(signal string, elapsed time.Duration)
}

// WithPollInterval sets the interval of the readiness and room waits.
// A zero or negative value is replaced with the default (50ms).
func WithPollInterval(d time.Duration) Option {
	return func(c *config) {
		c.pollInterval = d
	}
}

// WithReadyTimeout bounds every readiness wait. Zero waits forever.
func WithReadyTimeout(d time.Duration) Option {
	return func(c *config) {
		c.readyTimeout = d
	}
}

// WithRoomViews replaces the room-like views. Each entry is a glob pattern
// matched against the raw view name, e.g. "top.sim-*".
func WithRoomViews(patterns ...string) Option {
	return func(c *config) {
		c.roomViews = patterns
	}
}

// WithCompatViews replaces the legacy view name mapping.
func WithCompatViews(m map[string]string) Option {
	return func(c *config) {
		c.compatViews = m
	}
}

// WithVersion overrides the version reported by the bridge.
func WithVersion(v string) Option {
	return func(c *config) {
		c.version = v
	}
}

// WithLogger sets the logger for the bridge.
func WithLogger(logger *logging.Logger) Option {
	return func(c *config) {
		c.logger = logger
	}
}

// WithBus publishes every notification pass and failure to bus.
func WithBus(bus *event.Bus) Option {
	return func(c *config) {
		c.bus = bus
	}
}

// WithErrorHandler receives subscriber, derivation and attach failures after
// they have been logged. It runs on the goroutine that observed the failure.
func WithErrorHandler(fn func(error)) Option {
	return func(c *config) {
		c.onError = fn
	}
}

// WithDeliveryObserver is called after every notification pass with the time
// it took to run all subscribers of the signal.
func WithDeliveryObserver(fn func(signal string, elapsed time.Duration)) Option {
	return func(c *config) {
		c.observer = fn
	}
}
