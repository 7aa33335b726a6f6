// Package scopetest provides an in-memory Scope and Window for tests.
//
// The fake never runs a digest on its own. Tests change state with the Set*
// methods and then call Flush to run exactly one digest cycle, which makes the
// order of notifications deterministic.
package scopetest

import (
	"context"
	"encoding/json"
	"maps"
	"sync"

	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

// Call records one service invocation.
type Call struct {
	Service string
	Method  string
	Args    []any
}

// Handler answers service calls for a fake service.
type Handler func(method string, args []any) (json.RawMessage, error)

// Scope is a scriptable fake client.
type Scope struct {
	digest *scope.Digest

	mu       sync.Mutex
	ready    bool
	route    string
	params   scope.Params
	paramErr error
	hash     string
	room     bool
	selected *scope.Object
	user     json.RawMessage
	services map[string]Handler
	calls    []Call
	storage  map[string]string
	probes   int
}

var (
	_ scope.Scope      = (*Scope)(nil)
	_ scope.Window     = (*Scope)(nil)
	_ scope.UserSource = (*Scope)(nil)
)

// New creates a fake client that is not ready yet.
func New() *Scope {
	return &Scope{
		digest:   scope.NewDigest(0, nil),
		params:   scope.Params{},
		services: make(map[string]Handler),
		storage:  make(map[string]string),
	}
}

// NewReady creates a fake client that is already loaded on the given view.
func NewReady(route string) *Scope {
	s := New()
	s.ready = true
	s.route = route
	return s
}

// Flush runs one digest cycle and returns the number of detected changes.
func (s *Scope) Flush() int {
	return s.digest.Cycle(context.Background())
}

// Watches returns the number of active watches.
func (s *Scope) Watches() int {
	return s.digest.Len()
}

// Probes returns how many probe calls have been made.
func (s *Scope) Probes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.probes
}

// SetReady marks the framework as loaded or not.
func (s *Scope) SetReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ready = ready
}

// SetRoute changes the named view.
func (s *Scope) SetRoute(route string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = route
}

// SetParams replaces the route parameters.
func (s *Scope) SetParams(p scope.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.params = maps.Clone(p)
}

// FailRouteParams makes RouteParams return err until called with nil.
func (s *Scope) FailRouteParams(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paramErr = err
}

// SetHash changes window.location.hash.
func (s *Scope) SetHash(hash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hash = hash
}

// Navigate sets route, params and hash in one step.
func (s *Scope) Navigate(route, hash string, p scope.Params) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.route = route
	s.hash = hash
	s.params = maps.Clone(p)
}

// MountRoom mounts or unmounts the room view. Unmounting clears the selection.
func (s *Scope) MountRoom(mounted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.room = mounted
	if !mounted {
		s.selected = nil
	}
}

// Select changes the selected object of the mounted room.
func (s *Scope) Select(obj *scope.Object) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selected = obj
}

// SetUser sets the signed-in user returned by User.
func (s *Scope) SetUser(user json.RawMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
}

// HandleService registers a fake service.
func (s *Scope) HandleService(name string, h Handler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[name] = h
}

// Calls returns a copy of all recorded service calls.
func (s *Scope) Calls() []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Call, len(s.calls))
	copy(out, s.calls)
	return out
}

// Watch implements scope.Scope.
func (s *Scope) Watch(get scope.Getter, fn scope.Listener) func() {
	return s.digest.Watch(get, fn)
}

// RouteName implements scope.Scope.
func (s *Scope) RouteName(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	if !s.ready {
		return "", scope.ErrNotReady
	}
	return s.route, nil
}

// RouteParams implements scope.Scope.
func (s *Scope) RouteParams(context.Context) (scope.Params, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	if !s.ready {
		return nil, scope.ErrNotReady
	}
	if s.paramErr != nil {
		return nil, s.paramErr
	}
	return maps.Clone(s.params), nil
}

// SelectedObject implements scope.Scope.
func (s *Scope) SelectedObject(context.Context) (*scope.Object, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	if !s.ready {
		return nil, scope.ErrNotReady
	}
	if !s.room {
		return nil, scope.ErrNoRoom
	}
	return s.selected, nil
}

// User implements scope.UserSource.
func (s *Scope) User(context.Context) (json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	if !s.ready {
		return nil, scope.ErrNotReady
	}
	if s.user == nil {
		return json.RawMessage("null"), nil
	}
	return s.user, nil
}

// Service implements scope.Scope.
func (s *Scope) Service(_ context.Context, name string) (scope.Service, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	if !s.ready {
		return nil, scope.ErrNotReady
	}
	if _, ok := s.services[name]; !ok {
		return nil, scope.ErrServiceNotFound
	}
	return &service{scope: s, name: name}, nil
}

// Hash implements scope.Window.
func (s *Scope) Hash(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.probes++
	if !s.ready {
		return "", scope.ErrNotReady
	}
	return s.hash, nil
}

// Storage implements scope.Window.
func (s *Scope) Storage() scope.Storage {
	return storage{s}
}

type service struct {
	scope *Scope
	name  string
}

func (sv *service) Name() string { return sv.name }

func (sv *service) Call(_ context.Context, method string, args ...any) (json.RawMessage, error) {
	s := sv.scope
	s.mu.Lock()
	s.calls = append(s.calls, Call{Service: sv.name, Method: method, Args: args})
	h := s.services[sv.name]
	s.mu.Unlock()

	if h == nil {
		return json.RawMessage("null"), nil
	}
	return h(method, args)
}

type storage struct {
	s *Scope
}

func (st storage) GetItem(_ context.Context, key string) (string, bool, error) {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	v, ok := st.s.storage[key]
	return v, ok, nil
}

func (st storage) SetItem(_ context.Context, key, value string) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	st.s.storage[key] = value
	return nil
}

func (st storage) RemoveItem(_ context.Context, key string) error {
	st.s.mu.Lock()
	defer st.s.mu.Unlock()
	delete(st.s.storage, key)
	return nil
}
