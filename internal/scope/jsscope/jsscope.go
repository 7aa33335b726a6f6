// Package jsscope implements scope.Scope with an embedded JavaScript VM.
//
// A scenario script plays the part of the game client. It mutates the global
// client object (ready, route, params, hash, room, selected) and registers
// services on the global services object. If the script defines a function
// step(n), Run calls it every step interval with an increasing n, which makes
// scenarios replayable:
//
//	client.ready = false;
//	services.AlertService = {show: function (opts) { log(opts.data.message); }};
//	function step(n) {
//	  if (n === 1) client.ready = true;
//	  if (n === 2) client.navigate("top.game-room", "#!/room/shard3/W1N1", {room: "W1N1"});
//	}
//
// The VM also provides log(...) and a localStorage backed by the Go side.
package jsscope

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dop251/goja"
	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/logging"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

const driverName = "js"

// DefaultStepInterval is the delay between step calls used by Run.
const DefaultStepInterval = 500 * time.Millisecond

// Config configures New.
type Config struct {
	// Name identifies the script in errors and stack traces.
	Name string
	// Source is the scenario script.
	Source string
	// StepInterval is the delay between step calls. Zero selects the default.
	StepInterval time.Duration
	// DigestInterval is how often Run evaluates watches.
	DigestInterval time.Duration
	Logger         *logging.Logger
}

// Scope is a scripted client.
type Scope struct {
	*scope.Digest

	name         string
	stepInterval time.Duration
	logger       *logging.Logger

	mu     sync.Mutex // guards the VM, which is not goroutine-safe
	vm     *goja.Runtime
	steps  int
	closed bool

	storeMu sync.Mutex
	store   map[string]string
}

var (
	_ scope.Scope      = (*Scope)(nil)
	_ scope.Window     = (*Scope)(nil)
	_ scope.UserSource = (*Scope)(nil)
)

// state is the decoded __snapshot() result.
type state struct {
	Ready    bool            `json:"ready"`
	Route    string          `json:"route"`
	Params   scope.Params    `json:"params"`
	Hash     string          `json:"hash"`
	Room     bool            `json:"room"`
	Selected *scope.Object   `json:"selected"`
	User     json.RawMessage `json:"user"`
}

// New compiles and runs the scenario's top-level code.
func New(cfg Config) (*Scope, error) {
	if cfg.Name == "" {
		cfg.Name = "scenario.js"
	}
	if cfg.StepInterval <= 0 {
		cfg.StepInterval = DefaultStepInterval
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithDriver(driverName).With("script", cfg.Name)

	s := &Scope{
		Digest:       scope.NewDigest(cfg.DigestInterval, logger),
		name:         cfg.Name,
		stepInterval: cfg.StepInterval,
		logger:       logger,
		vm:           goja.New(),
		store:        make(map[string]string),
	}
	if err := s.install(); err != nil {
		return nil, err
	}

	prog, err := goja.Compile(cfg.Name, cfg.Source, false)
	if err != nil {
		return nil, errors.NewScopeError(driverName, "compile "+cfg.Name, err)
	}
	if _, err := s.vm.RunProgram(prog); err != nil {
		return nil, errors.NewScopeError(driverName, "run "+cfg.Name, err)
	}
	return s, nil
}

// Load reads a scenario file and calls New with it.
func Load(path string, cfg Config) (*Scope, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read scenario %s", path)
	}
	cfg.Name = filepath.Base(path)
	cfg.Source = string(src)
	return New(cfg)
}

func (s *Scope) install() error {
	vm := s.vm
	vm.SetFieldNameMapper(goja.UncapFieldNameMapper())

	if err := vm.Set("log", func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		s.logger.Info("scenario", "message", strings.Join(parts, " "))
		return goja.Undefined()
	}); err != nil {
		return errors.NewScopeError(driverName, "install log", err)
	}

	if err := vm.Set("localStorage", &localStorage{s}); err != nil {
		return errors.NewScopeError(driverName, "install localStorage", err)
	}

	if _, err := vm.RunString(prelude); err != nil {
		return errors.NewScopeError(driverName, "install prelude", err)
	}
	return nil
}

// localStorage is exposed to the script. Its methods must not touch the VM.
type localStorage struct {
	s *Scope
}

func (ls *localStorage) GetItem(key string) any {
	v, ok := ls.s.getItem(key)
	if !ok {
		return nil
	}
	return v
}

func (ls *localStorage) SetItem(key, value string) { ls.s.setItem(key, value) }

func (ls *localStorage) RemoveItem(key string) { ls.s.removeItem(key) }

// call runs a global function of the scenario. Cancelling ctx interrupts a
// long-running script.
func (s *Scope) call(ctx context.Context, op, fn string, args ...any) (goja.Value, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, errors.ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, ok := goja.AssertFunction(s.vm.Get(fn))
	if !ok {
		return nil, errors.NewScopeError(driverName, op, errors.New(fn+" is not a function"))
	}

	fired := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		defer close(fired)
		s.vm.Interrupt(ctx.Err())
	})
	defer func() {
		if !stop() {
			<-fired
			s.vm.ClearInterrupt()
		}
	}()

	values := make([]goja.Value, len(args))
	for i, arg := range args {
		values[i] = s.vm.ToValue(arg)
	}
	v, err := f(goja.Undefined(), values...)
	if err != nil {
		var interrupted *goja.InterruptedError
		if errors.As(err, &interrupted) && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.NewScopeError(driverName, op, err)
	}
	return v, nil
}

func (s *Scope) snapshot(ctx context.Context, op string) (*state, error) {
	v, err := s.call(ctx, op, "__snapshot")
	if err != nil {
		return nil, err
	}
	var st state
	if err := json.Unmarshal([]byte(v.String()), &st); err != nil {
		return nil, errors.NewScopeError(driverName, op, err)
	}
	if !st.Ready {
		return nil, scope.ErrNotReady
	}
	return &st, nil
}

// Step advances the scenario by calling step(n). Scenarios without a step
// function are static and Step is a no-op.
func (s *Scope) Step(ctx context.Context) error {
	if !s.hasStep() {
		return nil
	}
	s.mu.Lock()
	s.steps++
	n := s.steps
	s.mu.Unlock()

	if _, err := s.call(ctx, "step", "step", n); err != nil {
		return err
	}
	s.Kick()
	return nil
}

// Steps returns how many times step was called.
func (s *Scope) Steps() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.steps
}

func (s *Scope) hasStep() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := goja.AssertFunction(s.vm.Get("step"))
	return ok
}

// Run drives the digest and the scenario steps until ctx is cancelled.
func (s *Scope) Run(ctx context.Context) error {
	var wg conc.WaitGroup
	wg.Go(func() {
		_ = s.Digest.Run(ctx)
	})
	if s.hasStep() {
		wg.Go(func() {
			s.stepLoop(ctx)
		})
	}
	wg.Wait()
	return ctx.Err()
}

func (s *Scope) stepLoop(ctx context.Context) {
	ticker := time.NewTicker(s.stepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := s.Step(ctx); err != nil {
			if ctx.Err() != nil || errors.Is(err, errors.ErrClosed) {
				return
			}
			s.logger.Warn("scenario step failed", "step", s.Steps(), "error", err)
		}
	}
}

// Close stops the VM. Later probes fail with errors.ErrClosed.
func (s *Scope) Close() error {
	s.vm.Interrupt(errors.ErrClosed)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// RouteName implements scope.Scope.
func (s *Scope) RouteName(ctx context.Context) (string, error) {
	st, err := s.snapshot(ctx, "route name")
	if err != nil {
		return "", err
	}
	return st.Route, nil
}

// RouteParams implements scope.Scope.
func (s *Scope) RouteParams(ctx context.Context) (scope.Params, error) {
	st, err := s.snapshot(ctx, "route params")
	if err != nil {
		return nil, err
	}
	if st.Params == nil {
		return scope.Params{}, nil
	}
	return st.Params, nil
}

// SelectedObject implements scope.Scope.
func (s *Scope) SelectedObject(ctx context.Context) (*scope.Object, error) {
	st, err := s.snapshot(ctx, "selected object")
	if err != nil {
		return nil, err
	}
	if !st.Room {
		return nil, scope.ErrNoRoom
	}
	return st.Selected, nil
}

// Service implements scope.Scope.
func (s *Scope) Service(ctx context.Context, name string) (scope.Service, error) {
	if _, err := s.snapshot(ctx, "service"); err != nil {
		return nil, err
	}
	v, err := s.call(ctx, "service", "__has", name)
	if err != nil {
		return nil, err
	}
	if !v.ToBoolean() {
		return nil, scope.ErrServiceNotFound
	}
	return &service{scope: s, name: name}, nil
}

// Hash implements scope.Window.
func (s *Scope) Hash(ctx context.Context) (string, error) {
	st, err := s.snapshot(ctx, "hash")
	if err != nil {
		return "", err
	}
	return st.Hash, nil
}

// User implements scope.UserSource with the scenario's client.user.
func (s *Scope) User(ctx context.Context) (json.RawMessage, error) {
	st, err := s.snapshot(ctx, "user")
	if err != nil {
		return nil, err
	}
	return st.User, nil
}

// Storage implements scope.Window.
func (s *Scope) Storage() scope.Storage {
	return storage{s}
}

func (s *Scope) getItem(key string) (string, bool) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	v, ok := s.store[key]
	return v, ok
}

func (s *Scope) setItem(key, value string) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	s.store[key] = value
}

func (s *Scope) removeItem(key string) {
	s.storeMu.Lock()
	defer s.storeMu.Unlock()
	delete(s.store, key)
}

type service struct {
	scope *Scope
	name  string
}

func (sv *service) Name() string { return sv.name }

func (sv *service) Call(ctx context.Context, method string, args ...any) (json.RawMessage, error) {
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return nil, errors.NewValidationError("service arguments are not JSON-encodable").WithValue(err)
	}

	op := sv.name + "." + method
	v, err := sv.scope.call(ctx, op, "__call", sv.name, method, string(encoded))
	if err != nil {
		return nil, err
	}
	var reply struct {
		Found bool            `json:"found"`
		Value json.RawMessage `json:"value"`
	}
	if err := json.Unmarshal([]byte(v.String()), &reply); err != nil {
		return nil, errors.NewScopeError(driverName, op, err)
	}
	if !reply.Found {
		return nil, scope.ErrServiceNotFound
	}
	return reply.Value, nil
}

type storage struct {
	s *Scope
}

func (st storage) GetItem(_ context.Context, key string) (string, bool, error) {
	v, ok := st.s.getItem(key)
	return v, ok, nil
}

func (st storage) SetItem(_ context.Context, key, value string) error {
	st.s.setItem(key, value)
	return nil
}

func (st storage) RemoveItem(_ context.Context, key string) error {
	st.s.removeItem(key)
	return nil
}
