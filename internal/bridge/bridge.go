package bridge

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gobwas/glob"
	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/event"
	"github.com/Iron-Ham/screeps-adapter/internal/logging"
	"github.com/Iron-Ham/screeps-adapter/internal/poll"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

// Bridge translates the client's view, hash and selection changes into
// ordered subscriber callbacks.
//
// Each signal kind is Uninitialized until its first registration, which
// attaches a watch in the background once the client is ready. The watch
// persists until Close.
type Bridge struct {
	scope  scope.Scope
	window scope.Window

	version      string
	pollInterval time.Duration
	readyTimeout time.Duration
	roomViews    RoomViews
	compat       map[string]string
	logger       *logging.Logger
	bus          *event.Bus
	onError      func(error)
	observer     func(signal string, elapsed time.Duration)

	ctx    context.Context
	cancel context.CancelFunc
	wg     conc.WaitGroup

	view      *subscribers[ViewChange]
	hash      *subscribers[HashChange]
	room      *subscribers[string]
	selection *subscribers[Selection]

	readyOnce sync.Once
	created   time.Time

	// callouts counts user code running on any goroutine, see callout.
	callouts atomic.Int32

	mu          sync.Mutex
	closed      bool
	unwatches   []func()
	viewKnown   bool
	currentView string
	viewSeq     uint64
	currentHash string
	roomOn      bool
	lastRoom    string
	selOn       bool
	sel         selectionWatch
}

// New creates a Bridge over the given client.
//
// sc and win must be non-nil. Passing nil will panic early to surface wiring
// bugs immediately. An invalid room view pattern is returned as an error.
func New(sc scope.Scope, win scope.Window, opts ...Option) (*Bridge, error) {
	if sc == nil {
		panic("bridge: scope must not be nil")
	}
	if win == nil {
		panic("bridge: window must not be nil")
	}

	cfg := &config{
		pollInterval: defaultPollInterval,
		roomViews:    DefaultRoomViews,
		compatViews:  compatViews,
		version:      Version,
		logger:       logging.NopLogger(),
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.pollInterval <= 0 {
		cfg.pollInterval = defaultPollInterval
	}
	if cfg.readyTimeout < 0 {
		return nil, errors.NewValidationError("ready timeout must not be negative").
			WithField("ready_timeout").WithValue(cfg.readyTimeout)
	}
	if cfg.logger == nil {
		cfg.logger = logging.NopLogger()
	}

	roomViews, err := CompileRoomViews(cfg.roomViews...)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Bridge{
		scope:        sc,
		window:       win,
		version:      cfg.version,
		pollInterval: cfg.pollInterval,
		readyTimeout: cfg.readyTimeout,
		roomViews:    roomViews,
		compat:       cfg.compatViews,
		logger:       cfg.logger,
		bus:          cfg.bus,
		onError:      cfg.onError,
		observer:     cfg.observer,
		ctx:          ctx,
		cancel:       cancel,
		view:         newSubscribers[ViewChange](SignalView),
		hash:         newSubscribers[HashChange](SignalHash),
		room:         newSubscribers[string](SignalRoom),
		selection:    newSubscribers[Selection](SignalSelection),
		created:      time.Now(),
	}, nil
}

// Version returns the version this bridge reports to a Slot.
func (b *Bridge) Version() string {
	return b.version
}

// Close detaches every watch and waits for background work to finish.
// It is safe to call multiple times, including from a subscriber, a Ready
// callback or the error handler. While such a callback is running Close does
// not wait, since the goroutine it would wait for may be the caller's own;
// background work still stops at its next step.
func (b *Bridge) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.cancel()
	b.mu.Unlock()

	if b.callouts.Load() == 0 {
		b.wg.Wait()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.disposeSelectionLocked()
	for _, unwatch := range b.unwatches {
		unwatch()
	}
	b.unwatches = nil
	return nil
}

// Closed reports whether Close has been called.
func (b *Bridge) Closed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Ready calls fn once the client framework is available. It returns
// immediately; fn is never called if ctx is cancelled or the bridge is closed
// first.
func (b *Bridge) Ready(ctx context.Context, fn func()) {
	b.spawn(func() {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		stop := context.AfterFunc(b.ctx, cancel)
		defer stop()

		if err := b.WaitReady(ctx); err != nil {
			if ctx.Err() == nil {
				b.fail("ready wait failed", err)
			}
			return
		}
		b.callout(fn)
	})
}

// WaitReady blocks until the client framework is available. With a ready
// timeout configured it fails with a TimeoutError.
func (b *Bridge) WaitReady(ctx context.Context) error {
	_, err := b.waitRoute(ctx)
	return err
}

// WaitView is WaitReady returning the view the client showed once ready.
func (b *Bridge) WaitView(ctx context.Context) (string, error) {
	return b.waitRoute(ctx)
}

// CurrentView returns the last raw view seen by the view watch, or "" before
// it is attached.
func (b *Bridge) CurrentView() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.currentView
}

// OnViewChange registers fn for view changes.
func (b *Bridge) OnViewChange(fn func(ViewChange) error) {
	b.view.add(fn)
	b.ensureView()
}

// OnHashChange registers fn for window.location.hash changes.
func (b *Bridge) OnHashChange(fn func(HashChange) error) {
	b.hash.add(fn)
	b.ensureHash()
}

// Storage returns the client's local storage.
func (b *Bridge) Storage() scope.Storage {
	return b.window.Storage()
}

// -----------------------------------------------------------------------------
// View signal
// -----------------------------------------------------------------------------

func (b *Bridge) ensureView() {
	if !b.view.start() {
		return
	}
	b.spawn(func() {
		initial, err := b.waitRoute(b.ctx)
		if err != nil {
			b.attachFailed(SignalView, err)
			return
		}

		b.mu.Lock()
		b.currentView = initial
		b.viewKnown = true
		selOn := b.selOn
		b.mu.Unlock()

		// Selection must be synced before the watch can report a newer view.
		if selOn {
			b.syncSelection(0, initial, "")
		}
		b.track(b.scope.Watch(b.getRoute, b.onRoute))
		b.logger.Debug("view watch attached", "view", initial)
	})
}

func (b *Bridge) getRoute(ctx context.Context) (any, error) {
	return b.scope.RouteName(ctx)
}

func (b *Bridge) onRoute(newValue, _ any) {
	name, _ := newValue.(string)

	b.mu.Lock()
	if b.closed || name == b.currentView {
		b.mu.Unlock()
		return
	}
	previous := b.currentView
	b.currentView = name
	b.viewSeq++
	seq := b.viewSeq
	selOn := b.selOn
	b.mu.Unlock()

	b.notifyView(name, previous)
	if selOn {
		b.syncSelection(seq, name, previous)
	}
}

// notifyView delivers one view change. Subscribers of a mapped view get the
// legacy name and then the raw pair, back-to-back.
func (b *Bridge) notifyView(name, previous string) {
	legacy := b.compat[name]
	start := time.Now()
	for i, fn := range b.view.snapshot() {
		if legacy != "" {
			invoke(b, SignalView, i, fn, ViewChange{Legacy: legacy})
		}
		invoke(b, SignalView, i, fn, ViewChange{Name: name, Previous: previous})
	}
	b.observe(SignalView, time.Since(start))
	b.publish(event.NewViewChangedEvent(name, previous, legacy))
}

// IsRoomView reports whether name matches one of the room-like views.
func (b *Bridge) IsRoomView(name string) bool {
	return b.roomViews.Match(name)
}

// RoomViews is a compiled set of room view patterns.
type RoomViews []glob.Glob

// CompileRoomViews compiles glob patterns into a RoomViews matcher.
func CompileRoomViews(patterns ...string) (RoomViews, error) {
	views := make(RoomViews, 0, len(patterns))
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, errors.NewValidationError("invalid room view pattern").
				WithField("room_views").WithValue(pattern)
		}
		views = append(views, g)
	}
	return views, nil
}

// Match reports whether name matches any pattern. The empty name never does.
func (v RoomViews) Match(name string) bool {
	if name == "" {
		return false
	}
	for _, g := range v {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// -----------------------------------------------------------------------------
// Hash signal
// -----------------------------------------------------------------------------

func (b *Bridge) ensureHash() {
	if !b.hash.start() {
		return
	}
	b.spawn(func() {
		initial, err := poll.For(b.ctx, func(ctx context.Context) (string, bool, error) {
			h, err := b.window.Hash(ctx)
			if err != nil {
				return "", false, b.notYet(err)
			}
			return h, true, nil
		}, b.waitOptions("hash")...)
		if err != nil {
			b.attachFailed(SignalHash, err)
			return
		}

		b.mu.Lock()
		b.currentHash = initial
		b.mu.Unlock()

		b.track(b.scope.Watch(b.getHash, b.onHash))
		b.logger.Debug("hash watch attached", "hash", initial)
	})
}

func (b *Bridge) getHash(ctx context.Context) (any, error) {
	return b.window.Hash(ctx)
}

func (b *Bridge) onHash(newValue, _ any) {
	hash, _ := newValue.(string)

	b.mu.Lock()
	if b.closed || hash == b.currentHash {
		b.mu.Unlock()
		return
	}
	previous := b.currentHash
	b.currentHash = hash
	roomOn := b.roomOn
	b.mu.Unlock()

	deliver(b, b.hash, HashChange{Hash: hash, Previous: previous})
	b.publish(event.NewHashChangedEvent(hash, previous))

	if roomOn {
		b.deriveRoom(b.ctx)
	}
}

// -----------------------------------------------------------------------------
// Plumbing
// -----------------------------------------------------------------------------

// waitRoute waits for the framework and returns the current view.
func (b *Bridge) waitRoute(ctx context.Context) (string, error) {
	start := time.Now()
	name, err := poll.For(ctx, func(ctx context.Context) (string, bool, error) {
		name, err := b.scope.RouteName(ctx)
		if err != nil {
			return "", false, b.notYet(err)
		}
		return name, true, nil
	}, b.waitOptions("client ready")...)
	if err != nil {
		return "", err
	}

	b.readyOnce.Do(func() {
		b.logger.Info("client ready", "view", name, "waited", time.Since(start))
		b.publish(event.NewBridgeReadyEvent(b.version, time.Since(b.created)))
	})
	return name, nil
}

func (b *Bridge) waitOptions(operation string) []poll.Option {
	opts := []poll.Option{
		poll.WithInterval(b.pollInterval),
		poll.WithOperation(operation),
	}
	if b.readyTimeout > 0 {
		opts = append(opts, poll.WithTimeout(b.readyTimeout))
	}
	return opts
}

// notYet swallows errors that mean "try again later" so a wait keeps polling.
func (b *Bridge) notYet(err error) error {
	if errors.IsRetryable(err) {
		return nil
	}
	return err
}

// spawn runs fn on a goroutine owned by the bridge. After Close it does nothing.
func (b *Bridge) spawn(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.wg.Go(fn)
}

// track records an unwatch function for Close. A watch attached after Close
// is removed at once.
func (b *Bridge) track(unwatch func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		unwatch()
		return
	}
	b.unwatches = append(b.unwatches, unwatch)
}

// callout runs user code: subscribers, Ready callbacks, the error handler and
// bus handlers.
func (b *Bridge) callout(fn func()) {
	b.callouts.Add(1)
	defer b.callouts.Add(-1)
	fn()
}

func (b *Bridge) attachFailed(signal string, err error) {
	if b.ctx.Err() != nil {
		return
	}
	b.fail("attach failed", errors.Wrapf(err, "attach %s watch", signal))
}

func (b *Bridge) subscriberFailed(err *errors.SubscriberError) {
	b.logger.Error("subscriber failed",
		"signal", err.Signal, "index", err.Index, "error", err)
	b.publish(event.NewSubscriberFailedEvent(err.Signal, err.Index, err))
	b.reportError(err)
}

func (b *Bridge) fail(msg string, err error) {
	b.logger.Error(msg, "error", err)
	b.reportError(err)
}

func (b *Bridge) reportError(err error) {
	if b.onError != nil {
		b.callout(func() { b.onError(err) })
	}
}

func (b *Bridge) observe(signal string, elapsed time.Duration) {
	if b.observer != nil {
		b.observer(signal, elapsed)
	}
}

func (b *Bridge) publish(e event.Event) {
	if b.bus != nil {
		b.callout(func() { b.bus.Publish(e) })
	}
}
