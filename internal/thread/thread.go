// Package thread provides joinable goroutines.
package thread

import (
	"fmt"

	"github.com/anacrolix/chansync"
	"github.com/anacrolix/chansync/events"
	g "github.com/anacrolix/generics"
)

// Handle is a goroutine that can be joined for its result.
type Handle[T any] struct {
	done   chansync.SetOnce
	result T
	// Recovered from the goroutine, rethrown by Join.
	panicked any
}

// Spawn runs f in a new goroutine.
func Spawn[T any](f func() T) *Handle[T] {
	h := new(Handle[T])
	go h.run(f)
	return h
}

func (h *Handle[T]) run(f func() T) {
	defer h.done.Set()
	defer func() {
		if r := recover(); r != nil {
			h.panicked = r
		}
	}()
	h.result = f()
}

// Done is closed when the goroutine returns.
func (h *Handle[T]) Done() events.Done {
	return h.done.Done()
}

// Join waits for the goroutine and returns its result. If it panicked, Join panics with the same
// value. Join can be called any number of times, including after TryJoin.
func (h *Handle[T]) Join() T {
	<-h.done.Done()
	return h.get()
}

// TryJoin returns the result if the goroutine has returned, without waiting.
func (h *Handle[T]) TryJoin() g.Option[T] {
	if !h.done.IsSet() {
		return g.None[T]()
	}
	return g.Some(h.get())
}

func (h *Handle[T]) get() T {
	if h.panicked != nil {
		panic(fmt.Sprintf("joined goroutine panicked: %v", h.panicked))
	}
	return h.result
}
