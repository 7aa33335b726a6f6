// Package errors holds the sentinel and typed errors shared by the bridge,
// the scope drivers and the CLI.
//
// Bridge failures never reach the caller that triggered them. A failing
// subscriber becomes a SubscriberError and an uncomputable room or selection
// becomes a DerivationError; both go to the bridge's log and error handler.
// Drivers report transport failures as ScopeError. The wait primitive is the
// only operation that returns an error of its own, a TimeoutError.
//
//	var serr *errors.SubscriberError
//	if errors.As(err, &serr) && serr.Panic != nil { ... }
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// Standard library helpers, so callers need a single errors import.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Client state.
var (
	ErrNotReady        = New("client not ready")
	ErrNoRoom          = New("no room view mounted")
	ErrServiceNotFound = New("service not found")
	ErrClosed          = New("closed")
)

var (
	ErrTimeout      = New("operation timed out")
	ErrCanceled     = New("operation canceled")
	ErrInvalidInput = New("invalid input")
)

// retrier is implemented by errors that know whether a retry can help.
type retrier interface {
	Retryable() bool
}

// SubscriberError is a callback that returned an error or panicked during
// delivery. Index is the callback's position in registration order.
type SubscriberError struct {
	Signal string
	Index  int
	Panic  any
	Stack  string
	cause  error
}

// NewSubscriberError wraps the error returned by a callback.
func NewSubscriberError(signal string, index int, cause error) *SubscriberError {
	return &SubscriberError{Signal: signal, Index: index, cause: cause}
}

// NewSubscriberPanic records a recovered panic and the stack it unwound from.
func NewSubscriberPanic(signal string, index int, recovered any, stack string) *SubscriberError {
	return &SubscriberError{Signal: signal, Index: index, Panic: recovered, Stack: stack}
}

func (e *SubscriberError) Error() string {
	what := "callback failed"
	if e.Panic != nil {
		what = fmt.Sprintf("callback panicked: %v", e.Panic)
	}
	msg := fmt.Sprintf("subscriber error [signal=%s, index=%d]: %s", e.Signal, e.Index, what)
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

func (e *SubscriberError) Unwrap() error { return e.cause }

// DerivationError is a room or selection that could not be computed from the
// client state. The next change re-derives, so it is always retryable.
type DerivationError struct {
	What  string
	cause error
}

func NewDerivationError(what string, cause error) *DerivationError {
	return &DerivationError{What: what, cause: cause}
}

func (e *DerivationError) Error() string {
	if e.cause == nil {
		return "cannot derive " + e.What
	}
	return fmt.Sprintf("cannot derive %s: %v", e.What, e.cause)
}

func (e *DerivationError) Unwrap() error   { return e.cause }
func (e *DerivationError) Retryable() bool { return true }

// ScopeError is a driver that failed to talk to the client.
//
//	return errors.NewScopeError("cdp", "evaluate", err).WithRetryable(true)
type ScopeError struct {
	Driver    string
	Operation string
	cause     error
	retryable bool
}

func NewScopeError(driver, operation string, cause error) *ScopeError {
	return &ScopeError{Driver: driver, Operation: operation, cause: cause}
}

// WithRetryable marks the failure as transient, typically a dropped
// connection the driver will re-establish.
func (e *ScopeError) WithRetryable(r bool) *ScopeError {
	e.retryable = r
	return e
}

func (e *ScopeError) Error() string {
	var b strings.Builder
	b.WriteString("scope error")
	if e.Driver != "" {
		fmt.Fprintf(&b, " [driver=%s]", e.Driver)
	}
	b.WriteString(": ")
	b.WriteString(e.Operation)
	if e.cause != nil {
		b.WriteString(": ")
		b.WriteString(e.cause.Error())
	}
	return b.String()
}

func (e *ScopeError) Unwrap() error   { return e.cause }
func (e *ScopeError) Retryable() bool { return e.retryable }

// ValidationError is rejected configuration or arguments. It matches
// ErrInvalidInput.
//
//	errors.NewValidationError("must be positive").WithField("poll_interval").WithValue(d)
type ValidationError struct {
	Message string
	Field   string
	Value   any
}

func NewValidationError(message string) *ValidationError {
	return &ValidationError{Message: message}
}

func (e *ValidationError) WithField(field string) *ValidationError {
	e.Field = field
	return e
}

func (e *ValidationError) WithValue(value any) *ValidationError {
	e.Value = value
	return e
}

func (e *ValidationError) Error() string {
	var ctx []string
	if e.Field != "" {
		ctx = append(ctx, "field="+e.Field)
	}
	if e.Value != nil {
		ctx = append(ctx, fmt.Sprintf("value=%v", e.Value))
	}
	if len(ctx) == 0 {
		return "validation error: " + e.Message
	}
	return fmt.Sprintf("validation error [%s]: %s", strings.Join(ctx, ", "), e.Message)
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidInput }

// TimeoutError is a wait whose condition never held before the deadline.
// It matches ErrTimeout.
type TimeoutError struct {
	Operation string
	Duration  time.Duration
	// Attempts is how many times the condition was evaluated.
	Attempts int
}

func NewTimeoutError(operation string, duration time.Duration) *TimeoutError {
	return &TimeoutError{Operation: operation, Duration: duration}
}

func (e *TimeoutError) WithAttempts(n int) *TimeoutError {
	e.Attempts = n
	return e
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout error: %s (timeout: %s)", e.Operation, e.Duration)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }
func (e *TimeoutError) Retryable() bool      { return true }

// IsRetryable reports whether err is transient. Typed errors decide for
// themselves; otherwise timeouts and missing client state count as transient.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var r retrier
	if As(err, &r) {
		return r.Retryable()
	}
	return Is(err, ErrTimeout) || Is(err, ErrNotReady) || Is(err, ErrNoRoom)
}

// Wrap prefixes err with message. A nil err stays nil.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf is Wrap with a format string.
func Wrapf(err error, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}
