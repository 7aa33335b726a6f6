package event

import "time"

// Event is the interface that all events must implement.
type Event interface {
	// EventType returns a string identifier for this event type.
	// Convention: "category.action" (e.g., "view.changed", "room.changed")
	EventType() string

	// Timestamp returns when the event occurred.
	Timestamp() time.Time
}

// Event type names.
const (
	TypeViewChanged      = "view.changed"
	TypeHashChanged      = "hash.changed"
	TypeRoomChanged      = "room.changed"
	TypeSelectionChanged = "selection.changed"
	TypeSubscriberFailed = "subscriber.failed"
	TypeDerivationFailed = "derivation.failed"
	TypeBridgeReady      = "bridge.ready"
	TypeBridgeInstalled  = "bridge.installed"
)

// baseEvent provides common fields for all events.
// Embed this in concrete event types to satisfy the Event interface.
type baseEvent struct {
	eventType string
	timestamp time.Time
}

func (e baseEvent) EventType() string    { return e.eventType }
func (e baseEvent) Timestamp() time.Time { return e.timestamp }

func newBaseEvent(eventType string) baseEvent {
	return baseEvent{
		eventType: eventType,
		timestamp: time.Now(),
	}
}

// -----------------------------------------------------------------------------
// Signal Events
// -----------------------------------------------------------------------------

// ViewChangedEvent is emitted after view subscribers were notified.
type ViewChangedEvent struct {
	baseEvent
	View     string // Raw route name, e.g. "top.game-room"
	Previous string // Previous raw route name
	Legacy   string // Legacy alias delivered before the raw pair, if any
}

// NewViewChangedEvent creates a ViewChangedEvent.
func NewViewChangedEvent(view, previous, legacy string) ViewChangedEvent {
	return ViewChangedEvent{
		baseEvent: newBaseEvent(TypeViewChanged),
		View:      view,
		Previous:  previous,
		Legacy:    legacy,
	}
}

// HashChangedEvent is emitted after hash subscribers were notified.
type HashChangedEvent struct {
	baseEvent
	Hash     string
	Previous string
}

// NewHashChangedEvent creates a HashChangedEvent.
func NewHashChangedEvent(hash, previous string) HashChangedEvent {
	return HashChangedEvent{
		baseEvent: newBaseEvent(TypeHashChanged),
		Hash:      hash,
		Previous:  previous,
	}
}

// RoomChangedEvent is emitted when the derived room identifier changes.
type RoomChangedEvent struct {
	baseEvent
	Room string // Empty when the client left the room views
}

// NewRoomChangedEvent creates a RoomChangedEvent.
func NewRoomChangedEvent(room string) RoomChangedEvent {
	return RoomChangedEvent{
		baseEvent: newBaseEvent(TypeRoomChanged),
		Room:      room,
	}
}

// SelectionChangedEvent is emitted when the selected object changes.
type SelectionChangedEvent struct {
	baseEvent
	ObjectID   string // Empty when the selection was cleared
	ObjectType string
}

// NewSelectionChangedEvent creates a SelectionChangedEvent.
func NewSelectionChangedEvent(objectID, objectType string) SelectionChangedEvent {
	return SelectionChangedEvent{
		baseEvent:  newBaseEvent(TypeSelectionChanged),
		ObjectID:   objectID,
		ObjectType: objectType,
	}
}

// -----------------------------------------------------------------------------
// Failure Events
// -----------------------------------------------------------------------------

// SubscriberFailedEvent is emitted when a subscriber returned an error or panicked.
type SubscriberFailedEvent struct {
	baseEvent
	Signal string
	Index  int
	Err    error
}

// NewSubscriberFailedEvent creates a SubscriberFailedEvent.
func NewSubscriberFailedEvent(signal string, index int, err error) SubscriberFailedEvent {
	return SubscriberFailedEvent{
		baseEvent: newBaseEvent(TypeSubscriberFailed),
		Signal:    signal,
		Index:     index,
		Err:       err,
	}
}

// DerivationFailedEvent is emitted when a derived value could not be computed.
type DerivationFailedEvent struct {
	baseEvent
	What string
	Err  error
}

// NewDerivationFailedEvent creates a DerivationFailedEvent.
func NewDerivationFailedEvent(what string, err error) DerivationFailedEvent {
	return DerivationFailedEvent{
		baseEvent: newBaseEvent(TypeDerivationFailed),
		What:      what,
		Err:       err,
	}
}

// -----------------------------------------------------------------------------
// Lifecycle Events
// -----------------------------------------------------------------------------

// BridgeReadyEvent is emitted once the client framework was detected.
type BridgeReadyEvent struct {
	baseEvent
	Version string
	Waited  time.Duration
}

// NewBridgeReadyEvent creates a BridgeReadyEvent.
func NewBridgeReadyEvent(version string, waited time.Duration) BridgeReadyEvent {
	return BridgeReadyEvent{
		baseEvent: newBaseEvent(TypeBridgeReady),
		Version:   version,
		Waited:    waited,
	}
}

// BridgeInstalledEvent is emitted when a slot decides on an install.
type BridgeInstalledEvent struct {
	baseEvent
	Version  string // Version of the candidate
	Replaced string // Version that was replaced; empty for an empty slot
	Skipped  bool   // True when the installed bridge was kept
}

// NewBridgeInstalledEvent creates a BridgeInstalledEvent.
func NewBridgeInstalledEvent(version, replaced string, skipped bool) BridgeInstalledEvent {
	return BridgeInstalledEvent{
		baseEvent: newBaseEvent(TypeBridgeInstalled),
		Version:   version,
		Replaced:  replaced,
		Skipped:   skipped,
	}
}
