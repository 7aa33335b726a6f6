package cdpscope

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

// Probe states reported by the page-side envelope.
const (
	stateOK       = "ok"
	stateNotReady = "not-ready"
	stateNoRoom   = "no-room"
	stateNotFound = "not-found"
	stateError    = "error"
)

// envelope wraps a probe body. The body is an async function of
// (injector, body, args) and may return any JSON-serializable value or one of
// the sentinel objects {$state: "..."}. The result always comes back as a JSON
// string so decoding does not depend on how the protocol serializes values.
const envelope = `(async () => {
  const reply = (state, value, error) => JSON.stringify({state, value, error});
  try {
    const body = window.angular && angular.element(document.body);
    const injector = body && body.injector();
    if (!injector) return reply(%q);
    const value = await (%s)(injector, body, %s);
    if (value && typeof value === "object" && typeof value.$state === "string") {
      return reply(value.$state);
    }
    let encoded;
    try { encoded = JSON.parse(JSON.stringify(value === undefined ? null : value)); }
    catch (e) { encoded = null; }
    return reply(%q, encoded);
  } catch (e) {
    return reply(%q, null, String(e && e.message || e));
  }
})()`

// probe is the decoded envelope reply.
type probe struct {
	State string          `json:"state"`
	Value json.RawMessage `json:"value"`
	Error string          `json:"error"`
}

// buildProbe renders body into the envelope with args as a JSON array.
func buildProbe(body string, args ...any) (string, error) {
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", errors.NewValidationError("probe arguments are not JSON-encodable").WithValue(err)
	}
	return fmt.Sprintf(envelope, stateNotReady, strings.TrimSpace(body), encoded, stateOK, stateError), nil
}

// decodeProbe maps a reply to its value or to the matching scope error.
func decodeProbe(op, reply string) (json.RawMessage, error) {
	var p probe
	if err := json.Unmarshal([]byte(reply), &p); err != nil {
		return nil, errors.NewScopeError(driverName, op, err)
	}

	switch p.State {
	case stateOK:
		if len(p.Value) == 0 {
			return json.RawMessage("null"), nil
		}
		return p.Value, nil
	case stateNotReady:
		return nil, scope.ErrNotReady
	case stateNoRoom:
		return nil, scope.ErrNoRoom
	case stateNotFound:
		return nil, scope.ErrServiceNotFound
	case stateError:
		return nil, errors.NewScopeError(driverName, op, errors.New(p.Error))
	default:
		return nil, errors.NewScopeError(driverName, op, fmt.Errorf("unknown probe state %q", p.State))
	}
}

// Probe bodies. Each is an async function (injector, body, args).
const (
	routeNameProbe = `async (injector) => injector.get("$routeSegment").name || ""`

	routeParamsProbe = `async (injector) => {
  const params = injector.get("$routeParams") || {};
  const out = {};
  for (const [k, v] of Object.entries(params)) {
    if (v !== undefined && v !== null) out[k] = String(v);
  }
  return out;
}`

	selectedObjectProbe = `async () => {
  const el = document.querySelector(".room.ng-scope");
  const scope = el && angular.element(el).scope();
  if (!scope) return {$state: "no-room"};
  const o = scope.Room && scope.Room.selectedObject;
  if (!o) return null;
  const raw = {};
  for (const [k, v] of Object.entries(o)) {
    if (v === null || ["string", "number", "boolean"].includes(typeof v)) raw[k] = v;
  }
  return {_id: o._id, type: o.type, name: o.name, x: o.x, y: o.y, raw};
}`

	hashProbe = `async () => window.location.hash`

	userProbe = `async (injector, body) => {
  const root = body.scope();
  if (!root || typeof root.Me !== "function") return {$state: "not-ready"};
  return root.Me() || null;
}`

	serviceProbe = `async (injector, body, args) => {
  if (!injector.has(args[0])) return {$state: "not-found"};
  return true;
}`

	callProbe = `async (injector, body, args) => {
  const [name, method, params] = args;
  if (!injector.has(name)) return {$state: "not-found"};
  const svc = injector.get(name);
  if (typeof svc[method] !== "function") throw new Error(name + "." + method + " is not a function");
  return await svc[method](...params);
}`

	getItemProbe = `async (injector, body, args) => {
  const v = window.localStorage.getItem(args[0]);
  return v === null ? {present: false} : {present: true, value: v};
}`

	setItemProbe = `async (injector, body, args) => { window.localStorage.setItem(args[0], args[1]); return null; }`

	removeItemProbe = `async (injector, body, args) => { window.localStorage.removeItem(args[0]); return null; }`
)
