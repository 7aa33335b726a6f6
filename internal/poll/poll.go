package poll

import (
	"context"
	"fmt"
	"time"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
)

// DefaultInterval is the delay between evaluations when no interval is given.
const DefaultInterval = 50 * time.Millisecond

// Condition is evaluated until it reports ok. A non-nil error aborts the wait.
type Condition[T any] func(ctx context.Context) (value T, ok bool, err error)

// Option configures a single wait.
type Option func(*config)

type config struct {
	interval   time.Duration
	timeout    time.Duration
	hasTimeout bool
	operation  string
}

// WithInterval sets the delay between evaluations.
func WithInterval(d time.Duration) Option {
	return func(c *config) {
		c.interval = d
	}
}

// WithTimeout bounds the wait. The deadline is measured from the call to For
// and checked before every evaluation. A zero timeout allows exactly one
// evaluation.
func WithTimeout(d time.Duration) Option {
	return func(c *config) {
		c.timeout = d
		c.hasTimeout = true
	}
}

// WithOperation names the wait in timeout errors.
func WithOperation(name string) Option {
	return func(c *config) {
		c.operation = name
	}
}

// For evaluates cond immediately and then every interval until it reports ok,
// returning the value it produced.
//
// When a timeout is set and more than that much time has elapsed before an
// evaluation, For returns a *errors.TimeoutError instead of evaluating again.
// Cancelling ctx stops the wait with ctx.Err(). Without a timeout and with a
// context that is never cancelled, For polls until cond succeeds.
func For[T any](ctx context.Context, cond Condition[T], opts ...Option) (T, error) {
	var zero T

	cfg := config{interval: DefaultInterval, operation: "condition"}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.interval <= 0 {
		return zero, errors.NewValidationError("poll interval must be positive").
			WithField("interval").WithValue(cfg.interval)
	}
	if cfg.hasTimeout && cfg.timeout < 0 {
		return zero, errors.NewValidationError("poll timeout must not be negative").
			WithField("timeout").WithValue(cfg.timeout)
	}

	start := time.Now()
	var timer *time.Timer
	attempts := 0

	for {
		// The first evaluation always runs: elapsed time is zero by definition.
		if cfg.hasTimeout && attempts > 0 && time.Since(start) > cfg.timeout {
			return zero, errors.NewTimeoutError(cfg.operation, cfg.timeout).WithAttempts(attempts)
		}
		if err := ctx.Err(); err != nil {
			return zero, err
		}

		attempts++
		value, ok, err := cond(ctx)
		if err != nil {
			return zero, fmt.Errorf("%s: %w", cfg.operation, err)
		}
		if ok {
			return value, nil
		}

		if timer == nil {
			timer = time.NewTimer(cfg.interval)
			defer timer.Stop()
		} else {
			timer.Reset(cfg.interval)
		}

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}

// Until is For for conditions that carry no value.
func Until(ctx context.Context, cond func(ctx context.Context) (bool, error), opts ...Option) error {
	_, err := For(ctx, func(ctx context.Context) (struct{}, bool, error) {
		ok, err := cond(ctx)
		return struct{}{}, ok, err
	}, opts...)
	return err
}
