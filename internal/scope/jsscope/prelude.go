package jsscope

// prelude runs before the scenario. It defines the client state the scenario
// mutates and the helpers the Go side calls to read it.
const prelude = `
var client = {
  ready: true,
  route: "",
  params: {},
  hash: "",
  room: false,
  selected: null,
  user: null,
  navigate: function (route, hash, params) {
    this.route = route;
    this.hash = hash || "";
    this.params = params || {};
  },
  mount: function (mounted) {
    this.room = !!mounted;
    if (!mounted) this.selected = null;
  },
  select: function (obj) {
    this.selected = obj || null;
  }
};

var services = {};

function __snapshot() {
  var params = {};
  var p = client.params || {};
  for (var k in p) {
    if (p[k] !== undefined && p[k] !== null) params[k] = String(p[k]);
  }
  var sel = null;
  if (client.room && client.selected) {
    var o = client.selected;
    sel = {_id: o._id, type: o.type, name: o.name, x: o.x | 0, y: o.y | 0, raw: o};
  }
  return JSON.stringify({
    ready: !!client.ready,
    route: String(client.route || ""),
    params: params,
    hash: String(client.hash || ""),
    room: !!client.room,
    selected: sel,
    user: client.user === undefined ? null : client.user
  });
}

function __has(name) {
  return Object.prototype.hasOwnProperty.call(services, name);
}

function __call(name, method, args) {
  if (!__has(name)) return JSON.stringify({found: false});
  var svc = services[name];
  var fn = svc[method];
  if (typeof fn !== "function") throw new Error(name + "." + method + " is not a function");
  var value = fn.apply(svc, JSON.parse(args));
  return JSON.stringify({found: true, value: value === undefined ? null : value});
}
`
