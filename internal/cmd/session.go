package cmd

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/screeps-adapter/internal/bridge"
	"github.com/Iron-Ham/screeps-adapter/internal/config"
	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/event"
	"github.com/Iron-Ham/screeps-adapter/internal/logging"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
	"github.com/Iron-Ham/screeps-adapter/internal/scope/cdpscope"
	"github.com/Iron-Ham/screeps-adapter/internal/scope/jsscope"
	"github.com/Iron-Ham/screeps-adapter/internal/scope/wsscope"
)

// driver is a client connection that runs its own digest loop.
type driver interface {
	scope.Scope
	scope.Window
	Run(ctx context.Context) error
	Close() error
}

// session owns everything a command needs to talk to the client: the logger,
// the driver with its digest loop and the installed bridge.
type session struct {
	cfg    *config.Config
	logger *logging.Logger
	bus    *event.Bus
	driver driver
	slot   *bridge.Slot
	bridge *bridge.Bridge

	cancel context.CancelFunc
	wg     conc.WaitGroup
}

// openSession loads the configuration, connects the configured driver and
// installs a bridge on it. extra options are applied after the configured ones.
func openSession(ctx context.Context, extra ...bridge.Option) (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	d, err := openDriver(ctx, cfg, logger)
	if err != nil {
		_ = logger.Close()
		return nil, err
	}

	bus := event.NewBus(logger)
	opts := []bridge.Option{
		bridge.WithLogger(logger),
		bridge.WithBus(bus),
		bridge.WithPollInterval(cfg.Bridge.PollInterval()),
		bridge.WithReadyTimeout(cfg.Bridge.ReadyTimeout()),
		bridge.WithRoomViews(cfg.Bridge.RoomViews...),
	}
	b, err := bridge.New(d, d, append(opts, extra...)...)
	if err != nil {
		_ = d.Close()
		_ = logger.Close()
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	s := &session{
		cfg:    cfg,
		logger: logger,
		bus:    bus,
		driver: d,
		slot:   bridge.NewSlot(bridge.HigherVersionWins, bus, logger),
		cancel: cancel,
	}
	s.bridge, _ = s.slot.Install(b)
	s.wg.Go(func() {
		if err := d.Run(runCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("driver stopped", "error", err)
		}
	})
	return s, nil
}

// Close tears the session down in reverse order of construction.
func (s *session) Close() error {
	err := s.slot.Close()
	s.cancel()
	s.wg.Wait()
	if cerr := s.driver.Close(); err == nil {
		err = cerr
	}
	if cerr := s.logger.Close(); err == nil {
		err = cerr
	}
	return err
}

// newLogger creates the logger described by cfg.Logging.
func newLogger(cfg *config.Config) (*logging.Logger, error) {
	if !cfg.Logging.Enabled {
		return logging.NopLogger(), nil
	}
	return logging.NewLogger(cfg.Logging.Dir, cfg.Logging.Level)
}

// openDriver connects the driver selected by cfg.Scope.Driver.
func openDriver(ctx context.Context, cfg *config.Config, logger *logging.Logger) (driver, error) {
	digest := cfg.Bridge.DigestInterval()

	switch cfg.Scope.Driver {
	case config.DriverCDP:
		return cdpscope.Open(ctx, cdpscope.Config{
			URL:            cfg.Scope.CDP.URL,
			Target:         cfg.Scope.CDP.Target,
			DigestInterval: digest,
			Logger:         logger,
		})
	case config.DriverJS:
		return jsscope.Load(cfg.Scope.JS.Script, jsscope.Config{
			StepInterval:   cfg.Scope.JS.StepInterval(),
			DigestInterval: digest,
			Logger:         logger,
		})
	case config.DriverWS:
		return wsscope.New(wsscope.Config{
			Listen:         cfg.Scope.WS.Listen,
			Origin:         cfg.Scope.WS.Origin,
			CallTimeout:    cfg.Scope.WS.CallTimeout(),
			DigestInterval: digest,
			Logger:         logger,
		})
	default:
		return nil, fmt.Errorf("unknown driver %q", cfg.Scope.Driver)
	}
}
