// Package event mirrors bridge activity onto a pub-sub [Bus].
//
// The bridge publishes one event per notification pass: the four signal
// changes ([ViewChangedEvent], [HashChangedEvent], [RoomChangedEvent],
// [SelectionChangedEvent]), the failures it absorbed
// ([SubscriberFailedEvent], [DerivationFailedEvent]) and its lifecycle
// ([BridgeReadyEvent], [BridgeInstalledEvent]). Observers such as the watch
// command follow everything from one place and cannot disturb the bridge's
// own subscribers.
//
// Handlers run synchronously on the publishing goroutine. A panic in one is
// recovered and logged.
//
//	unsubscribe := bus.Subscribe(func(e event.Event) {
//		fmt.Println("room:", e.(event.RoomChangedEvent).Room)
//	}, event.TypeRoomChanged)
//	defer unsubscribe()
package event
