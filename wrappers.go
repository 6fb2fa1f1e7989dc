package winevent

import (
	"context"
	"sync"
	"time"
)

var defaultWaiter = sync.OnceValue(func() *Waiter {
	return NewWaiter(nil)
})

// DefaultWaiter is used by the package-level wait functions and Event.Wait.
func DefaultWaiter() *Waiter {
	return defaultWaiter()
}

func (me *Waiter) WaitOne(e *Event, timeout time.Duration) Result {
	return me.Wait(timeout, false, e)
}

func (me *Waiter) WaitAny(timeout time.Duration, events ...*Event) Result {
	return me.Wait(timeout, false, events...)
}

func (me *Waiter) WaitAll(timeout time.Duration, events ...*Event) Result {
	return me.Wait(timeout, true, events...)
}

// Wait blocks until the event is signaled or the timeout elapses. See Waiter.WaitContext.
func (me *Event) Wait(timeout time.Duration) Result {
	return DefaultWaiter().WaitOne(me, timeout)
}

func Wait(timeout time.Duration, waitAll bool, events ...*Event) Result {
	return DefaultWaiter().Wait(timeout, waitAll, events...)
}

func WaitContext(ctx context.Context, timeout time.Duration, waitAll bool, events ...*Event) (Result, error) {
	return DefaultWaiter().WaitContext(ctx, timeout, waitAll, events...)
}

// WaitAny returns when any one of the events is signaled, or on timeout.
func WaitAny(timeout time.Duration, events ...*Event) Result {
	return DefaultWaiter().WaitAny(timeout, events...)
}

// WaitAll returns when all the events are signaled at once, or on timeout.
func WaitAll(timeout time.Duration, events ...*Event) Result {
	return DefaultWaiter().WaitAll(timeout, events...)
}
