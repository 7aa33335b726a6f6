// Package scope defines the capability interfaces through which the adapter
// observes the Screeps web client.
//
// The client is an AngularJS application with no public event API. Rather than
// reaching into it by CSS selector from every consumer, the bridge depends only
// on [Scope] (watch registration, route name, route parameters, the selected
// object of the mounted room, and a service locator) and [Window] (location
// hash and local storage). Each driver package implements both:
//
//   - cdpscope: a real browser tab over the Chrome DevTools Protocol
//   - jsscope: an embedded JavaScript VM running a scenario script
//   - wsscope: state pushed over a WebSocket by an in-page shim
//   - scopetest: an in-memory fake for unit tests
//
// Drivers that can only poll embed a [Digest], which provides the watch
// primitive with dirty-checking semantics: each cycle evaluates every getter,
// compares with the previous value using [Equal], and calls the listener with
// (new, old) on change. The first evaluation calls the listener with
// (value, value), mirroring the client's own watch behaviour.
//
// Probes return [ErrNotReady] while the framework is still loading and
// SelectedObject returns [ErrNoRoom] while no room view is mounted.
package scope
