package bridge

import (
	"context"

	"github.com/Iron-Ham/screeps-adapter/internal/event"
	"github.com/Iron-Ham/screeps-adapter/internal/poll"
	"github.com/Iron-Ham/screeps-adapter/internal/scope"
)

// selectionWatch is the single low-level watch on the selected object.
type selectionWatch struct {
	seq     uint64
	cancel  context.CancelFunc
	unwatch func()
}

// OnSelectionChange registers fn for selection changes in room views.
//
// Entering a room-like view waits for the room to be mounted and then watches
// its selected object. Leaving a room-like view delivers Selection{nil} once
// and removes the watch.
func (b *Bridge) OnSelectionChange(fn func(Selection) error) {
	b.selection.add(fn)
	if !b.selection.start() {
		return
	}

	b.mu.Lock()
	b.selOn = true
	known := b.viewKnown
	current := b.currentView
	seq := b.viewSeq
	b.mu.Unlock()

	if known {
		b.syncSelection(seq, current, "")
	}
	b.ensureView()
}

// SelectionWatched reports whether a low-level selection watch is established.
func (b *Bridge) SelectionWatched() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sel.unwatch != nil
}

// syncSelection reacts to the view transition previous -> name. seq orders
// transitions so a stale call can not re-establish a superseded watch.
func (b *Bridge) syncSelection(seq uint64, name, previous string) {
	b.mu.Lock()
	if b.closed || seq < b.sel.seq {
		b.mu.Unlock()
		return
	}
	b.disposeSelectionLocked()
	b.sel.seq = seq
	if b.IsRoomView(name) {
		ctx, cancel := context.WithCancel(b.ctx)
		b.sel.cancel = cancel
		b.wg.Go(func() {
			b.establishSelection(ctx, seq)
		})
	}
	b.mu.Unlock()

	if b.IsRoomView(previous) {
		// Let subscribers clear whatever depended on the old selection.
		b.notifySelection(nil)
	}
}

// establishSelection waits for the room to be mounted and attaches the watch,
// unless the view changed again in the meantime.
func (b *Bridge) establishSelection(ctx context.Context, seq uint64) {
	initial, err := poll.For(ctx, func(ctx context.Context) (*scope.Object, bool, error) {
		obj, err := b.scope.SelectedObject(ctx)
		if err != nil {
			return nil, false, b.notYet(err)
		}
		return obj, true, nil
	}, poll.WithInterval(b.pollInterval), poll.WithOperation("room view"))
	if err != nil {
		if ctx.Err() == nil {
			b.derivationFailed(SignalSelection, err)
		}
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if ctx.Err() != nil || b.sel.seq != seq {
		return
	}

	current := initial
	b.sel.unwatch = b.scope.Watch(b.getSelected, func(newValue, _ any) {
		obj, _ := newValue.(*scope.Object)
		if ctx.Err() != nil || obj.Equal(current) {
			return
		}
		current = obj
		b.notifySelection(obj)
	})
	b.logger.Debug("selection watch attached", "object", initial.Key())
}

func (b *Bridge) getSelected(ctx context.Context) (any, error) {
	return b.scope.SelectedObject(ctx)
}

func (b *Bridge) notifySelection(obj *scope.Object) {
	deliver(b, b.selection, Selection{Object: obj})
	if obj == nil {
		b.publish(event.NewSelectionChangedEvent("", ""))
		return
	}
	b.publish(event.NewSelectionChangedEvent(obj.Key(), obj.Type))
}

func (b *Bridge) disposeSelectionLocked() {
	if b.sel.cancel != nil {
		b.sel.cancel()
	}
	if b.sel.unwatch != nil {
		b.sel.unwatch()
	}
	b.sel.cancel = nil
	b.sel.unwatch = nil
}
