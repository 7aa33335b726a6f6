package bridge

import (
	"maps"

	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

// Version is the version of this bridge implementation.
const Version = "0.2"

// Signal kinds, as used in errors, logs and events.
const (
	SignalView      = "view"
	SignalHash      = "hash"
	SignalRoom      = "room"
	SignalSelection = "selection"
)

// ViewChange is delivered to view subscribers.
//
// A change into a view that has a legacy name is delivered twice to every
// subscriber: first with only Legacy set, then with Name and Previous.
type ViewChange struct {
	Name     string // Raw view, e.g. "top.game-room"; empty on legacy deliveries
	Previous string // Raw view before the change
	Legacy   string // Legacy event name, e.g. "roomEntered"
}

// IsLegacy reports whether this is the legacy delivery of a change.
func (v ViewChange) IsLegacy() bool {
	return v.Legacy != ""
}

// HashChange is delivered to hash subscribers.
type HashChange struct {
	Hash     string // New window.location.hash, e.g. "#!/room/shard3/W1N1"
	Previous string
}

// Selection is delivered to selection subscribers. Object is nil when the
// selection was cleared or the client left the room views.
type Selection struct {
	Object *scope.Object
}

// compatViews maps raw views to the names used by the old tutorial-based
// interception.
var compatViews = map[string]string{
	"top.game-room":             "roomEntered",
	"top.game-world-map":        "worldMapEntered",
	"top.game-lobby-world.list": "gameLobby",
	"top.game-lobby-power.list": "gameLobby",
	"top.sim-survival":          "survivalModeStarted",
	"top.sim-custom":            "customModeStarted",
}

// CompatViews returns a copy of the default legacy view mapping.
func CompatViews() map[string]string {
	return maps.Clone(compatViews)
}
