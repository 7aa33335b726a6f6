package bridge

import (
	"context"

	"github.com/Iron-Ham/screeps-adapter/internal/errors"
	"github.com/Iron-Ham/screeps-adapter/internal/event"
	"github.com/Iron-Ham/screeps-adapter/internal/poll"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

// OnRoomChange registers fn for room changes. The room is derived from the
// "room" route parameter on every hash change; fn is only called when the
// derived room differs from the last one, and with "" when the client leaves
// the room views.
func (b *Bridge) OnRoomChange(fn func(room string) error) {
	b.room.add(fn)
	if !b.room.start() {
		return
	}
	b.spawn(func() {
		params, err := poll.For(b.ctx, func(ctx context.Context) (scope.Params, bool, error) {
			p, err := b.scope.RouteParams(ctx)
			if err != nil {
				return nil, false, b.notYet(err)
			}
			return p, true, nil
		}, b.waitOptions("route params")...)
		if err != nil {
			b.attachFailed(SignalRoom, err)
			return
		}

		b.mu.Lock()
		b.lastRoom = params.Room()
		b.roomOn = true
		b.mu.Unlock()

		b.logger.Debug("room signal attached", "room", params.Room())
		b.ensureHash()
	})
}

// CurrentRoom returns the last derived room.
func (b *Bridge) CurrentRoom() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.lastRoom
}

// deriveRoom runs after every hash delivery while room subscribers exist.
func (b *Bridge) deriveRoom(ctx context.Context) {
	params, err := b.scope.RouteParams(ctx)
	if err != nil {
		b.derivationFailed(SignalRoom, err)
		return
	}
	room := params.Room()

	b.mu.Lock()
	if room == b.lastRoom {
		b.mu.Unlock()
		return
	}
	b.lastRoom = room
	b.mu.Unlock()

	deliver(b, b.room, room)
	b.publish(event.NewRoomChangedEvent(room))
}

func (b *Bridge) derivationFailed(what string, cause error) {
	err := errors.NewDerivationError(what, cause)
	b.logger.Warn("derivation failed", "what", what, "error", cause)
	b.publish(event.NewDerivationFailedEvent(what, err))
	b.reportError(err)
}
