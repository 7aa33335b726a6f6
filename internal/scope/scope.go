package scope

import (
	"context"
	"encoding/json"
	"maps"
	"reflect"
	"strconv"

	"github.com/cespare/xxhash/v2"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
)

// Re-exported readiness sentinels so adapters and consumers can check them
// without importing the errors package.
var (
	// ErrNotReady is returned by any probe while the client framework is not loaded.
	ErrNotReady = errors.ErrNotReady
	// ErrNoRoom is returned by SelectedObject while no room view is mounted.
	ErrNoRoom = errors.ErrNoRoom
	// ErrServiceNotFound is returned by Service for unknown names.
	ErrServiceNotFound = errors.ErrServiceNotFound
)

// Getter reads one value from the client. It runs on the digest goroutine.
type Getter func(ctx context.Context) (any, error)

// Listener is called by a watch with the new and previous value. On the first
// evaluation of a watch both arguments are the same value.
type Listener func(newValue, oldValue any)

// Scope is the narrow view of the client's framework internals the bridge
// depends on.
type Scope interface {
	// Watch registers get to be evaluated on every digest cycle and fn to be
	// called whenever its value changes. The returned function removes the watch.
	Watch(get Getter, fn Listener) (unwatch func())

	// RouteName returns the current named view (e.g. "top.game-room").
	RouteName(ctx context.Context) (string, error)

	// RouteParams returns the current route parameters.
	RouteParams(ctx context.Context) (Params, error)

	// SelectedObject returns the object selected in the mounted room view, or
	// nil when nothing is selected. Returns ErrNoRoom if no room is mounted.
	SelectedObject(ctx context.Context) (*Object, error)

	// Service looks up a client service by its injector name.
	Service(ctx context.Context, name string) (Service, error)
}

// Window is the slice of browser globals the bridge uses.
type Window interface {
	// Hash returns window.location.hash.
	Hash(ctx context.Context) (string, error)

	// Storage returns the page's local key-value storage.
	Storage() Storage
}

// UserSource is implemented by clients that can report the signed-in user,
// the object the client's root scope returns from Me().
type UserSource interface {
	User(ctx context.Context) (json.RawMessage, error)
}

// Storage is a synchronous string key-value store (window.localStorage).
type Storage interface {
	GetItem(ctx context.Context, key string) (value string, ok bool, err error)
	SetItem(ctx context.Context, key, value string) error
	RemoveItem(ctx context.Context, key string) error
}

// Service is a handle to a client service resolved through the injector.
type Service interface {
	Name() string
	// Call invokes method with JSON-encodable args and returns the JSON result.
	Call(ctx context.Context, method string, args ...any) (json.RawMessage, error)
}

// Params holds route parameters such as "room" and "shard".
type Params map[string]string

// Room returns the "room" parameter.
func (p Params) Room() string {
	return p["room"]
}

// Equal reports whether both parameter sets hold the same pairs.
func (p Params) Equal(other any) bool {
	o, ok := other.(Params)
	if !ok {
		return false
	}
	return maps.Equal(p, o)
}

// Object is a game object selected in a room view.
type Object struct {
	ID   string          `json:"_id,omitempty"`
	Type string          `json:"type,omitempty"`
	Name string          `json:"name,omitempty"`
	X    int             `json:"x"`
	Y    int             `json:"y"`
	Raw  json.RawMessage `json:"raw,omitempty"`
}

// Key identifies the object across evaluations. Objects without an id (flags)
// fall back to their name, and anything else to a fingerprint of the raw data.
func (o *Object) Key() string {
	if o == nil {
		return ""
	}
	if o.ID != "" {
		return o.ID
	}
	if o.Name != "" {
		return o.Type + ":" + o.Name
	}
	return "h:" + strconv.FormatUint(xxhash.Sum64(o.Raw), 16)
}

// Equal compares objects by identity, not by their current attributes.
func (o *Object) Equal(other any) bool {
	p, ok := other.(*Object)
	if !ok {
		return false
	}
	if o == nil || p == nil {
		return o == nil && p == nil
	}
	return o.Key() == p.Key()
}

// Equaler is implemented by values with their own notion of equality.
type Equaler interface {
	Equal(other any) bool
}

// Equal compares two watched values. Values implementing Equaler decide for
// themselves; everything else is compared with == and uncomparable values
// are never equal.
func Equal(a, b any) bool {
	if e, ok := a.(Equaler); ok {
		return e.Equal(b)
	}
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ta, tb := reflect.TypeOf(a), reflect.TypeOf(b)
	if ta != tb || !ta.Comparable() {
		return false
	}
	return a == b
}
