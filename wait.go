package winevent

import (
	"context"
	"time"

	"github.com/anacrolix/log"
	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
)

// Waiter performs waits on sets of events, the equivalent of WaitForMultipleObjects. It carries
// the clock, logging and metrics for the calls made through it. The same events can be waited on
// through different Waiters.
type Waiter struct {
	clock   clockwork.Clock
	logger  log.Logger
	metrics *Metrics
	stats   Stats
}

// NewWaiter creates a Waiter. A nil cfg uses NewDefaultWaiterConfig.
func NewWaiter(cfg *WaiterConfig) *Waiter {
	if cfg == nil {
		cfg = NewDefaultWaiterConfig()
	}
	cfg.setDefaults()
	return &Waiter{
		clock:   cfg.Clock,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
}

// Stats returns a snapshot of the Waiter's counters.
func (me *Waiter) Stats() Stats {
	return me.stats.snapshot()
}

// Wait is WaitContext without cancellation.
func (me *Waiter) Wait(timeout time.Duration, waitAll bool, events ...*Event) Result {
	res, _ := me.WaitContext(context.Background(), timeout, waitAll, events...)
	return res
}

// WaitContext blocks until the wait set is satisfied, the timeout elapses, or ctx is done.
//
// With waitAll false the wait is satisfied by any signaled event, and WaitObject0+i is returned
// for the lowest such index i. With waitAll true every event must be signaled, and WaitObject0 is
// returned. Auto-reset events consumed by the wait are exactly those it reports.
//
// WaitTimeout is returned once the timeout elapses, immediately if it's zero. WaitFailed is
// returned with an error for an invalid wait set or when ctx is done. Wait sets are limited to
// MaxWaitObjects events as on Windows, and larger ones fail with ErrTooManyEvents rather than
// being waited on. An empty wait set, or a nil or closed event, panics, and the call isn't
// counted in the Waiter's stats or metrics.
func (me *Waiter) WaitContext(
	ctx context.Context,
	timeout time.Duration,
	waitAll bool,
	events ...*Event,
) (res Result, err error) {
	if len(events) == 0 {
		panic(errors.New("wait on empty event set"))
	}
	for i, e := range events {
		if e == nil {
			panic(errors.Errorf("nil event at index %d of wait set", i))
		}
	}
	res, err = me.wait(ctx, timeout, waitAll, events)
	me.stats.Waits.Add(1)
	me.stats.record(res)
	me.metrics.observeResult(res)
	return
}

func (me *Waiter) wait(ctx context.Context, timeout time.Duration, waitAll bool, events []*Event) (Result, error) {
	if len(events) > MaxWaitObjects {
		err := errors.Wrapf(ErrTooManyEvents, "%d events", len(events))
		me.logger.Levelf(log.Warning, "rejected wait: %v", err)
		return WaitFailed, err
	}
	locks, err := newLockSet(events)
	if err != nil {
		me.logger.Levelf(log.Warning, "rejected wait: %v", err)
		return WaitFailed, err
	}
	locks.Lock()
	defer locks.Unlock()
	for _, e := range events {
		e.mustBeOpen("wait")
	}
	if i, ok := satisfied(events, nil, waitAll); ok {
		me.stats.FastPath.Add(1)
		consume(events, nil, waitAll, i)
		return WaitObject0 + Result(i), nil
	}
	if timeout == 0 {
		return WaitTimeout, nil
	}
	return me.block(ctx, locks, timeout, waitAll)
}

// Registers the call with every event and sleeps until it's satisfied, times out or is cancelled.
// Must hold every lock in locks, and does on return.
func (me *Waiter) block(ctx context.Context, locks lockSet, timeout time.Duration, waitAll bool) (Result, error) {
	var expired <-chan time.Time
	if timeout > 0 {
		// Armed once, so repeated wakeups don't push the deadline back.
		timer := me.clock.NewTimer(timeout)
		defer timer.Stop()
		expired = timer.Chan()
	}
	me.stats.Blocked.Add(1)
	me.metrics.blockStarted()
	started := me.clock.Now()
	defer func() {
		me.metrics.blockEnded(me.clock.Since(started))
	}()
	b := newWaitBlock(locks.events, waitAll)
	b.register()
	for {
		wake := b.signaled()
		locks.Unlock()
		var timedOut bool
		var ctxErr error
		select {
		case <-wake:
		case <-expired:
			timedOut = true
		case <-ctx.Done():
			ctxErr = ctx.Err()
		}
		locks.Lock()
		// A signal that arrived with the deadline still counts.
		if i, ok := satisfied(b.events, b.latched, waitAll); ok {
			b.unregister()
			consume(b.events, b.latched, waitAll, i)
			handBack(b, i)
			return WaitObject0 + Result(i), nil
		}
		if timedOut {
			b.unregister()
			handBack(b, -1)
			return WaitTimeout, nil
		}
		if ctxErr != nil {
			b.unregister()
			handBack(b, -1)
			me.logger.WithDefaultLevel(log.Debug).Printf("wait on %d events abandoned: %v", len(b.events), ctxErr)
			return WaitFailed, errors.Wrap(ctxErr, "waiting for events")
		}
	}
}

// Returns the index to report if the wait set satisfies the wait: the lowest signaled index for
// any-mode, 0 for all-mode. latched may be nil if the call hasn't blocked. Must hold every event
// lock.
func satisfied(events []*Event, latched []bool, waitAll bool) (int, bool) {
	for i, e := range events {
		ok := e.signaled || latched != nil && latched[i]
		if ok && !waitAll {
			return i, true
		}
		if !ok && waitAll {
			return -1, false
		}
	}
	return 0, waitAll
}

// Clears the auto-reset events a satisfied wait reports that notify hasn't already consumed for
// it. Must hold every event lock.
func consume(events []*Event, latched []bool, waitAll bool, index int) {
	for i, e := range events {
		if !waitAll && i != index {
			continue
		}
		if e.manualReset || latched != nil && latched[i] {
			continue
		}
		e.signaled = false
	}
}

// Re-signals auto-reset events that notify consumed for b but that the call isn't reporting, so
// the next waiter gets them. reported is the satisfied index, or -1 if the call failed. b must be
// unregistered already, and every event lock held.
func handBack(b *waitBlock, reported int) {
	if b.waitAll && reported >= 0 {
		return
	}
	for i, e := range b.events {
		if i == reported || e.manualReset || !b.latched[i] {
			continue
		}
		e.signaled = true
		e.notify()
	}
}
