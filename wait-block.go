package winevent

import (
	"github.com/anacrolix/chansync"
	"github.com/anacrolix/chansync/events"
	"github.com/anacrolix/sync"
	list "github.com/bahlo/generic-list-go"
	"github.com/pkg/errors"
)

// waitBlock is the state of one blocked wait call. While the call is blocked it's linked into the
// waiter list of every event in its wait set, and it's unlinked before the call returns. A single
// cond is shared by all the events, so a signal on any one of them wakes the call.
type waitBlock struct {
	events  []*Event
	waitAll bool
	// Registration in each event's waiter list, by slot.
	elems []*list.Element[waitLink]

	mu   sync.Mutex
	cond chansync.BroadcastCond
	// Slots delivered by notify. For an auto-reset event this means the signal was consumed on
	// behalf of this call. Written holding mu and the slot's event lock, so reading is safe under
	// either.
	latched []bool
	// An any-mode call has a latched slot and will return. Auto-reset events pass it over.
	fired bool
}

func newWaitBlock(events []*Event, waitAll bool) *waitBlock {
	return &waitBlock{
		events:  events,
		waitAll: waitAll,
		elems:   make([]*list.Element[waitLink], len(events)),
		latched: make([]bool, len(events)),
	}
}

// Must hold every event lock.
func (me *waitBlock) register() {
	for i, e := range me.events {
		if me.elems[i] != nil {
			panic(errors.Errorf("wait block registered twice with %v", e))
		}
		me.elems[i] = e.register(me, i)
	}
}

// Must hold every event lock.
func (me *waitBlock) unregister() {
	for i, e := range me.events {
		e.unregister(me.elems[i])
		me.elems[i] = nil
	}
}

// Returns a channel closed by the next delivery. Obtain it before releasing the event locks, or
// a delivery in between is missed.
func (me *waitBlock) signaled() events.Signaled {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.cond.Signaled()
}

// Called by the event in slot while it holds its lock and is signaled. Returns whether the
// delivery was taken. Auto-reset events only deliver to a call that can still use the signal.
func (me *waitBlock) deliver(slot int, manualReset bool) bool {
	me.mu.Lock()
	defer me.mu.Unlock()
	if !manualReset && !me.canTake(slot) {
		return false
	}
	me.latched[slot] = true
	if !me.waitAll {
		me.fired = true
	}
	me.cond.Broadcast()
	return true
}

func (me *waitBlock) canTake(slot int) bool {
	if me.latched[slot] {
		return false
	}
	return me.waitAll || !me.fired
}
