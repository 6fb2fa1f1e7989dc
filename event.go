package winevent

import (
	"fmt"
	"sync/atomic"

	"github.com/anacrolix/sync"
	list "github.com/bahlo/generic-list-go"
	"github.com/pkg/errors"
)

var lastEventId atomic.Uint64

// Event is a Win32-style event object. A manual-reset event stays signaled until Reset, releasing
// every wait in the meantime. An auto-reset event releases one wait per Set and clears itself.
//
// The zero Event is an unsignaled auto-reset event. Any number of goroutines may Set, Reset and
// wait on an Event concurrently. Close it only once no wait can be blocked on it. An Event must
// not be copied after first use.
type Event struct {
	// Creation order, or first use for the zero Event. Wait sets are locked in ascending id.
	id          atomic.Uint64
	manualReset bool

	mu       sync.Mutex
	signaled bool
	closed   bool
	// Blocked waits in registration order.
	waiters list.List[waitLink]
}

// An entry in an Event's waiter list: the blocked call, and the event's position in its wait set.
type waitLink struct {
	block *waitBlock
	slot  int
}

func New(manualReset, initialState bool) *Event {
	me := &Event{
		manualReset: manualReset,
		signaled:    initialState,
	}
	me.id.Store(lastEventId.Add(1))
	me.waiters.Init()
	return me
}

func (me *Event) lockOrder() uint64 {
	if id := me.id.Load(); id != 0 {
		return id
	}
	// Racing first uses agree on whichever id is stored first.
	me.id.CompareAndSwap(0, lastEventId.Add(1))
	return me.id.Load()
}

func NewManualReset(initialState bool) *Event {
	return New(true, initialState)
}

func NewAutoReset(initialState bool) *Event {
	return New(false, initialState)
}

func (me *Event) ManualReset() bool {
	return me.manualReset
}

func (me *Event) String() string {
	mode := "auto"
	if me.manualReset {
		mode = "manual"
	}
	return fmt.Sprintf("event %d (%s-reset)", me.lockOrder(), mode)
}

// Set signals the event. Blocked waits are released in the order they started waiting. For an
// auto-reset event the first wait that can use the signal takes it, and the event is left
// unsignaled.
func (me *Event) Set() *Event {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.mustBeOpen("Set")
	me.signaled = true
	me.notify()
	return me
}

// Reset clears the signal. It never releases anyone.
func (me *Event) Reset() *Event {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.mustBeOpen("Reset")
	me.signaled = false
	return me
}

// Pulse releases the waits currently blocked on the event as Set would, then leaves the event
// unsignaled whether or not anyone was released.
func (me *Event) Pulse() *Event {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.mustBeOpen("Pulse")
	me.signaled = true
	me.notify()
	me.signaled = false
	return me
}

// Close ends the event's life. Closing an event that a wait is blocked on is a programming error
// and panics, as does any use of the event after Close.
func (me *Event) Close() {
	me.mu.Lock()
	defer me.mu.Unlock()
	me.mustBeOpen("Close")
	if n := me.waiters.Len(); n != 0 {
		panic(errors.Errorf("%v: closed with %d blocked waits", me, n))
	}
	me.closed = true
}

// Hands the signal to blocked waits from the front of the list. A manual-reset event reaches all
// of them. An auto-reset event stops at the first wait that takes the signal. Must hold me.mu.
func (me *Event) notify() {
	for el := me.waiters.Front(); el != nil && me.signaled; el = el.Next() {
		if el.Value.block.deliver(el.Value.slot, me.manualReset) && !me.manualReset {
			me.signaled = false
		}
	}
}

func (me *Event) register(b *waitBlock, slot int) *list.Element[waitLink] {
	return me.waiters.PushBack(waitLink{block: b, slot: slot})
}

func (me *Event) unregister(el *list.Element[waitLink]) {
	me.waiters.Remove(el)
}

func (me *Event) mustBeOpen(op string) {
	if me.closed {
		panic(errors.Errorf("%v: %s after Close", me, op))
	}
}

func (me *Event) numWaiters() int {
	me.mu.Lock()
	defer me.mu.Unlock()
	return me.waiters.Len()
}
