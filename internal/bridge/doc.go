// Package bridge turns the Screeps client's internal state changes into a
// small, stable set of subscriber callbacks.
//
// A Bridge watches three signals through a [scope.Scope]: the named view, the
// URL fragment (window.location.hash) and the object selected in the room
// view. Two more are derived from them:
//
//   - room: re-derived from the "room" route parameter on every hash change
//     and delivered only when it differs from the last room
//   - selection: watched only while a room-like view is active; leaving such a
//     view delivers Selection{nil} once and removes the low-level watch
//
// Subscribers of a signal are called in registration order, once per detected
// change, on the goroutine running the client's digest. A subscriber that
// returns an error or panics is reported as an [errors.SubscriberError] and
// does not stop delivery to the others. A subscriber registered while a
// notification pass is running is first called on the next change.
//
// A change into a view with a legacy name (see [CompatViews]) is delivered
// twice to every subscriber: the legacy name first, then the raw pair.
//
// Lifecycle:
//
//	b, err := bridge.New(sc, win, bridge.WithLogger(logger))
//	b.OnRoomChange(func(room string) error { ... })
//	b.Ready(ctx, func() { ... })
//	// ... client runs ...
//	b.Close() // removes every watch, waits for background waits
//
// Applications that may receive bridges from several places install them
// through a [Slot], whose [UpgradePolicy] keeps the newest version.
package bridge
