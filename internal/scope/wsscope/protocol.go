package wsscope

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

// Message types exchanged with the page shim.
const (
	typeState   = "state"   // page -> adapter: snapshot of the client state
	typeReply   = "reply"   // page -> adapter: answer to a request
	typeHas     = "has"     // adapter -> page: does the injector know a service
	typeCall    = "call"    // adapter -> page: invoke a service method
	typeStorage = "storage" // adapter -> page: localStorage access
)

// Storage operations.
const (
	opGet    = "get"
	opSet    = "set"
	opRemove = "remove"
)

// message is the single frame shape for both directions.
type message struct {
	Type string `json:"type"`
	ID   uint64 `json:"id,omitempty"`

	State *state `json:"state,omitempty"`

	Service string `json:"service,omitempty"`
	Method  string `json:"method,omitempty"`
	Args    []any  `json:"args,omitempty"`

	Op    string `json:"op,omitempty"`
	Key   string `json:"key,omitempty"`
	Value string `json:"value,omitempty"`

	Result   json.RawMessage `json:"result,omitempty"`
	Error    string          `json:"error,omitempty"`
	NotFound bool            `json:"notFound,omitempty"`
}

// state is a client snapshot pushed by the shim.
type state struct {
	Ready    bool          `json:"ready"`
	Route    string        `json:"route,omitempty"`
	Params   scope.Params  `json:"params,omitempty"`
	Hash     string        `json:"hash,omitempty"`
	Room     bool          `json:"room,omitempty"`
	Selected *scope.Object `json:"selected,omitempty"`
}

// storedItem is the result of a storage get.
type storedItem struct {
	Present bool   `json:"present"`
	Value   string `json:"value"`
}

// Shim returns the script to paste into the client page (or install as a
// userscript). It connects to url, pushes a snapshot whenever the client state
// changes and answers service and storage requests.
func Shim(url string, interval time.Duration) string {
	if interval <= 0 {
		interval = DefaultPushInterval
	}
	return fmt.Sprintf(shim, url, interval.Milliseconds())
}

const shim = `(function () {
  var url = %q, interval = %d;

  function injector() {
    var body = window.angular && angular.element(document.body);
    return body && body.injector();
  }

  function snapshot() {
    var inj = injector();
    if (!inj) return {ready: false};
    var params = {}, p = inj.get("$routeParams") || {};
    for (var k in p) if (p[k] !== undefined && p[k] !== null) params[k] = String(p[k]);
    var el = document.querySelector(".room.ng-scope");
    var room = el && angular.element(el).scope();
    var sel = null, o = room && room.Room && room.Room.selectedObject;
    if (o) {
      var raw = {};
      for (var f in o) {
        var v = o[f];
        if (v === null || ["string", "number", "boolean"].indexOf(typeof v) >= 0) raw[f] = v;
      }
      sel = {_id: o._id, type: o.type, name: o.name, x: o.x, y: o.y, raw: raw};
    }
    return {
      ready: true,
      route: inj.get("$routeSegment").name || "",
      params: params,
      hash: window.location.hash,
      room: !!room,
      selected: sel
    };
  }

  function reply(ws, id, body) {
    body.type = "reply";
    body.id = id;
    ws.send(JSON.stringify(body));
  }

  function fail(ws, id, e) {
    reply(ws, id, {error: String((e && e.message) || e)});
  }

  function handle(ws, m) {
    try {
      var inj = injector();
      switch (m.type) {
      case "has":
        return reply(ws, m.id, {notFound: !inj || !inj.has(m.service)});
      case "call":
        if (!inj || !inj.has(m.service)) return reply(ws, m.id, {notFound: true});
        var svc = inj.get(m.service);
        Promise.resolve(svc[m.method].apply(svc, m.args || [])).then(function (v) {
          reply(ws, m.id, {result: v === undefined ? null : v});
        }, function (e) { fail(ws, m.id, e); });
        return;
      case "storage":
        if (m.op === "get") {
          var item = window.localStorage.getItem(m.key);
          return reply(ws, m.id, {result: {present: item !== null, value: item || ""}});
        }
        if (m.op === "set") window.localStorage.setItem(m.key, m.value);
        if (m.op === "remove") window.localStorage.removeItem(m.key);
        return reply(ws, m.id, {result: null});
      }
    } catch (e) {
      fail(ws, m.id, e);
    }
  }

  function connect() {
    var ws = new WebSocket(url), last = "", timer = null;
    function push() {
      var s = JSON.stringify(snapshot());
      if (s === last) return;
      last = s;
      ws.send('{"type":"state","state":' + s + "}");
    }
    ws.onopen = function () { push(); timer = setInterval(push, interval); };
    ws.onmessage = function (ev) { handle(ws, JSON.parse(ev.data)); };
    ws.onclose = function () { clearInterval(timer); setTimeout(connect, 1000); };
  }

  connect();
})();
`
