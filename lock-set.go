package winevent

import (
	"cmp"
	"slices"

	"github.com/pkg/errors"
)

// lockSet holds the locks of a wait set. They're taken in ascending event id, so wait calls over
// overlapping sets can't deadlock however their callers ordered the events.
type lockSet struct {
	events []*Event
	// Indices into events, by ascending id.
	order []int
}

// Fails with ErrDuplicateEvent if an event appears more than once. Nothing is locked.
func newLockSet(events []*Event) (ls lockSet, err error) {
	order := make([]int, len(events))
	ids := make([]uint64, len(events))
	for i, e := range events {
		order[i] = i
		ids[i] = e.lockOrder()
	}
	// Ids are unique per event, so any repeat of an event ends up next to itself.
	slices.SortFunc(order, func(a, b int) int {
		return cmp.Compare(ids[a], ids[b])
	})
	for i := 1; i < len(order); i++ {
		a, b := order[i-1], order[i]
		if events[a] == events[b] {
			err = errors.Wrapf(ErrDuplicateEvent, "%v at indices %d and %d", events[a], min(a, b), max(a, b))
			return
		}
	}
	ls = lockSet{events: events, order: order}
	return
}

func (me lockSet) Lock() {
	for _, i := range me.order {
		me.events[i].mu.Lock()
	}
}

func (me lockSet) Unlock() {
	for j := len(me.order) - 1; j >= 0; j-- {
		me.events[me.order[j]].mu.Unlock()
	}
}
