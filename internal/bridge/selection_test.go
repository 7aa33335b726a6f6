package bridge_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Iron-Ham/screeps-adapter/internal/bridge"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
	"github.com/Iron-Ham/screeps-adapter/internal/scope/scopetest"
	"github.com/Iron-Ham/screeps-adapter/internal/testutil"
)

var (
	harvester = &scope.Object{ID: "5bbcab", Type: "creep", Name: "Harvester1", X: 12, Y: 30}
	spawn     = &scope.Object{ID: "5bbcac", Type: "spawn", Name: "Spawn1", X: 25, Y: 25}
	flag      = &scope.Object{Type: "flag", Name: "Flag1", X: 3, Y: 4}
)

func objects(sel []bridge.Selection) []*scope.Object {
	out := make([]*scope.Object, len(sel))
	for i, s := range sel {
		out[i] = s.Object
	}
	return out
}

// inRoom returns a fake showing a mounted room with obj selected.
func inRoom(obj *scope.Object) *scopetest.Scope {
	fake := scopetest.NewReady("top.game-room")
	fake.MountRoom(true)
	fake.Select(obj)
	return fake
}

func TestBridge_SelectionChanges(t *testing.T) {
	fake := inRoom(harvester)
	b := newBridge(t, fake)

	var rec testutil.Recorder[bridge.Selection]
	b.OnSelectionChange(rec.Record)
	waitWatches(t, fake, 2)
	assert.True(t, b.SelectionWatched())

	fake.Flush()
	assert.Zero(t, rec.Len(), "initial selection is not a change")

	fake.Select(spawn)
	fake.Flush()
	// Same object with new coordinates keeps its identity.
	moved := *spawn
	moved.X++
	fake.Select(&moved)
	fake.Flush()
	fake.Select(flag)
	fake.Flush()
	fake.Select(nil)
	fake.Flush()

	assert.Equal(t, []*scope.Object{spawn, flag, nil}, objects(rec.Values()))
}

func TestBridge_SelectionTeardown(t *testing.T) {
	fake := inRoom(harvester)
	b := newBridge(t, fake)

	var rec testutil.Recorder[bridge.Selection]
	b.OnSelectionChange(rec.Record)
	waitWatches(t, fake, 2)
	fake.Flush()

	fake.SetRoute("top.game-world-map")
	fake.MountRoom(false)
	fake.Flush()

	assert.Equal(t, []*scope.Object{nil}, objects(rec.Values()))
	assert.Equal(t, 1, fake.Watches(), "only the view watch remains")
	assert.False(t, b.SelectionWatched())

	// Low-level changes outside room views produce nothing.
	fake.MountRoom(true)
	fake.Select(spawn)
	fake.Flush()
	fake.Select(flag)
	fake.Flush()
	assert.Equal(t, 1, rec.Len())
}

func TestBridge_SelectionEstablishedOnEnter(t *testing.T) {
	fake := scopetest.NewReady("top.game-world-map")
	b := newBridge(t, fake)

	var rec testutil.Recorder[bridge.Selection]
	b.OnSelectionChange(rec.Record)
	waitWatches(t, fake, 1)
	fake.Flush()

	// The room mounts a little after the route changes.
	fake.SetRoute("top.game-room")
	fake.Flush()
	testutil.Never(t, 10*time.Millisecond, func() bool { return fake.Watches() > 1 },
		"selection watched before the room was mounted")

	fake.MountRoom(true)
	fake.Select(harvester)
	waitWatches(t, fake, 2)
	fake.Flush()
	assert.Zero(t, rec.Len(), "leaving a non-room view delivers nothing")

	fake.Select(spawn)
	fake.Flush()
	assert.Equal(t, []*scope.Object{spawn}, objects(rec.Values()))
}

func TestBridge_SelectionEstablishCancelled(t *testing.T) {
	fake := scopetest.NewReady("top.game-world-map")
	b := newBridge(t, fake)

	var rec testutil.Recorder[bridge.Selection]
	b.OnSelectionChange(rec.Record)
	waitWatches(t, fake, 1)
	fake.Flush()

	fake.SetRoute("top.game-room")
	fake.Flush()
	// Leave before the room was ever mounted.
	fake.SetRoute("top.game-world-map")
	fake.Flush()

	fake.MountRoom(true)
	fake.Select(harvester)
	testutil.Never(t, 20*time.Millisecond, func() bool { return fake.Watches() > 1 },
		"cancelled establishment attached a watch")
	assert.False(t, b.SelectionWatched())
	assert.Equal(t, []*scope.Object{nil}, objects(rec.Values()))
}

func TestBridge_SelectionRoomToRoom(t *testing.T) {
	fake := inRoom(harvester)
	b := newBridge(t, fake)

	var rec testutil.Recorder[bridge.Selection]
	b.OnSelectionChange(rec.Record)
	waitWatches(t, fake, 2)
	fake.Flush()

	fake.SetRoute("top.sim-custom")
	fake.Flush()

	// The selection was cleared and a new watch is established for the new
	// room view.
	assert.Equal(t, []*scope.Object{nil}, objects(rec.Values()))
	waitWatches(t, fake, 2)
	assert.True(t, b.SelectionWatched())
	fake.Flush()

	fake.Select(spawn)
	fake.Flush()
	assert.Equal(t, []*scope.Object{nil, spawn}, objects(rec.Values()))
}

func TestBridge_SelectionWithViewSubscribers(t *testing.T) {
	fake := inRoom(harvester)
	b := newBridge(t, fake)

	var views testutil.Recorder[bridge.ViewChange]
	var sel testutil.Recorder[bridge.Selection]
	b.OnViewChange(views.Record)
	waitWatches(t, fake, 1)

	// The view watch is already attached when selection registers.
	b.OnSelectionChange(sel.Record)
	waitWatches(t, fake, 2)
	fake.Flush()

	fake.SetRoute("top.game-world-map")
	fake.Flush()

	require.Len(t, views.Values(), 2, "legacy and raw delivery")
	assert.Equal(t, []*scope.Object{nil}, objects(sel.Values()))
	assert.Equal(t, 1, fake.Watches())
}

func TestBridge_CloseRemovesSelectionWatch(t *testing.T) {
	fake := inRoom(harvester)
	b := newBridge(t, fake)

	b.OnSelectionChange(func(bridge.Selection) error { return nil })
	waitWatches(t, fake, 2)

	require.NoError(t, b.Close())
	assert.Zero(t, fake.Watches())
	assert.False(t, b.SelectionWatched())
}
