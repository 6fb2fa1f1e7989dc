package winevent

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFakeClockWaiter() (*Waiter, *clockwork.FakeClock) {
	clock := clockwork.NewFakeClock()
	return NewWaiter(&WaiterConfig{Clock: clock}), clock
}

func TestAnyPrefersLowestIndex(t *testing.T) {
	a, b, c := NewManualReset(false), NewManualReset(true), NewManualReset(true)
	assert.Equal(t, WaitObject0+1, WaitAny(0, a, b, c))
	assert.Equal(t, WaitObject0+1, WaitAny(0, a, c, b))
	a.Set()
	assert.Equal(t, WaitObject0, WaitAny(0, a, b, c))
}

func TestAnyConsumesOnlyReportedEvent(t *testing.T) {
	a, b := NewAutoReset(true), NewAutoReset(true)
	assert.Equal(t, WaitObject0, WaitAny(0, a, b))
	assert.Equal(t, WaitTimeout, a.Wait(0))
	assert.Equal(t, WaitObject0, b.Wait(0))
}

func TestAllConsumesEveryAutoReset(t *testing.T) {
	a, m := NewAutoReset(true), NewManualReset(true)
	assert.Equal(t, WaitObject0, WaitAll(0, a, m))
	assert.Equal(t, WaitTimeout, a.Wait(0))
	assert.Equal(t, WaitObject0, m.Wait(0))
}

func TestAllNotSatisfiedConsumesNothing(t *testing.T) {
	a, b := NewAutoReset(true), NewAutoReset(false)
	assert.Equal(t, WaitTimeout, WaitAll(0, a, b))
	assert.Equal(t, WaitObject0, a.Wait(0))
}

func TestDuplicateEventFails(t *testing.T) {
	a, b := NewAutoReset(false), NewAutoReset(true)
	res, err := WaitContext(context.Background(), Infinite, false, a, b, a)
	assert.Equal(t, WaitFailed, res)
	assert.True(t, errors.Is(err, ErrDuplicateEvent), "%v", err)
	assert.Zero(t, a.numWaiters())
	// Nothing was consumed.
	assert.Equal(t, WaitObject0, b.Wait(0))
}

func TestTooManyEventsFails(t *testing.T) {
	events := make([]*Event, MaxWaitObjects+1)
	for i := range events {
		events[i] = NewManualReset(true)
	}
	res, err := WaitContext(context.Background(), 0, false, events...)
	assert.Equal(t, WaitFailed, res)
	assert.True(t, errors.Is(err, ErrTooManyEvents), "%v", err)
	assert.Equal(t, WaitObject0, Wait(0, true, events[:MaxWaitObjects]...))
}

func TestInvalidWaitSetPanics(t *testing.T) {
	assert.Panics(t, func() { Wait(0, false) })
	assert.Panics(t, func() { Wait(0, false, NewAutoReset(true), nil) })
}

func TestTimeoutUsesClock(t *testing.T) {
	w, clock := newFakeClockWaiter()
	e := NewAutoReset(false)
	done := make(chan Result, 1)
	go func() {
		done <- w.WaitOne(e, time.Minute)
	}()
	waitForWaiters(t, e, 1)
	clock.Advance(time.Minute - time.Second)
	select {
	case res := <-done:
		t.Fatalf("wait returned %v before its deadline", res)
	case <-time.After(30 * time.Millisecond):
	}
	clock.Advance(time.Second)
	assert.Equal(t, WaitTimeout, <-done)
	assert.Zero(t, e.numWaiters())
}

func TestTimeoutNeverEarly(t *testing.T) {
	const timeout = 40 * time.Millisecond
	e := NewAutoReset(false)
	started := time.Now()
	require.Equal(t, WaitTimeout, e.Wait(timeout))
	assert.GreaterOrEqual(t, time.Since(started), timeout)
}

func TestWakeupsDontExtendDeadline(t *testing.T) {
	w, clock := newFakeClockWaiter()
	a, b := NewAutoReset(false), NewAutoReset(false)
	done := make(chan Result, 1)
	go func() {
		done <- w.WaitAll(time.Minute, a, b)
	}()
	waitForWaiters(t, a, 1)
	clock.Advance(30 * time.Second)
	// Wakes the call without satisfying it.
	a.Set()
	clock.Advance(30 * time.Second)
	assert.Equal(t, WaitTimeout, <-done)
}

func TestAllWaitRechecksUnlatchedEvents(t *testing.T) {
	a, b := NewAutoReset(true), NewAutoReset(false)
	done := make(chan Result, 1)
	go func() {
		done <- WaitAll(Infinite, a, b)
	}()
	waitForWaiters(t, a, 1)
	// Someone else takes a while the all-wait is blocked.
	require.Equal(t, WaitObject0, a.Wait(0))
	b.Set()
	select {
	case res := <-done:
		t.Fatalf("all-wait returned %v with a unsignaled", res)
	case <-time.After(30 * time.Millisecond):
	}
	a.Set()
	assert.Equal(t, WaitObject0, <-done)
	assert.Equal(t, WaitTimeout, a.Wait(0))
	assert.Equal(t, WaitTimeout, b.Wait(0))
}

func TestUnreportedAutoResetIsHandedBack(t *testing.T) {
	// Created first so its lock is taken first, which lets the test hold the wait off.
	gate := NewAutoReset(false)
	m, a := NewManualReset(false), NewAutoReset(false)
	done := make(chan Result, 1)
	go func() {
		done <- WaitAny(Infinite, m, a, gate)
	}()
	waitForWaiters(t, a, 1)
	gate.mu.Lock()
	a.Set()
	m.Set()
	gate.mu.Unlock()
	assert.Equal(t, WaitObject0, <-done)
	// The call reported m, so the signal it took from a goes back.
	assert.Equal(t, WaitObject0, a.Wait(0))
}

func TestTimedOutAllWaitHandsBack(t *testing.T) {
	w, clock := newFakeClockWaiter()
	a, b := NewAutoReset(false), NewAutoReset(false)
	done := make(chan Result, 1)
	go func() {
		done <- w.WaitAll(time.Second, a, b)
	}()
	waitForWaiters(t, a, 1)
	a.Set()
	clock.Advance(time.Second)
	assert.Equal(t, WaitTimeout, <-done)
	assert.Equal(t, WaitObject0, a.Wait(0))
}

func TestHandBackGoesToNextWaiter(t *testing.T) {
	w, clock := newFakeClockWaiter()
	a, b := NewAutoReset(false), NewAutoReset(false)
	allDone := make(chan Result, 1)
	go func() {
		allDone <- w.WaitAll(time.Second, a, b)
	}()
	waitForWaiters(t, a, 1)
	oneDone := make(chan Result, 1)
	go func() {
		oneDone <- a.Wait(Infinite)
	}()
	waitForWaiters(t, a, 2)
	// The all-wait is first in line and takes it.
	a.Set()
	select {
	case res := <-oneDone:
		t.Fatalf("second waiter returned %v", res)
	case <-time.After(30 * time.Millisecond):
	}
	clock.Advance(time.Second)
	assert.Equal(t, WaitTimeout, <-allDone)
	assert.Equal(t, WaitObject0, <-oneDone)
	assert.Equal(t, WaitTimeout, a.Wait(0))
}

func TestContextCancel(t *testing.T) {
	e := NewManualReset(false)
	ctx, cancel := context.WithCancel(context.Background())
	type outcome struct {
		res Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := WaitContext(ctx, Infinite, false, e)
		done <- outcome{res, err}
	}()
	waitForWaiters(t, e, 1)
	cancel()
	out := <-done
	assert.Equal(t, WaitFailed, out.res)
	assert.True(t, errors.Is(out.err, context.Canceled), "%v", out.err)
	assert.Zero(t, e.numWaiters())
}

func TestOverlappingWaitSetsDontDeadlock(t *testing.T) {
	a, b, c := NewManualReset(true), NewManualReset(true), NewAutoReset(false)
	sets := [][]*Event{{a, b, c}, {c, b, a}, {b, c, a}}
	var wg sync.WaitGroup
	for i := range 6 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 500 {
				WaitAny(time.Millisecond, sets[i%len(sets)]...)
				WaitAll(0, sets[(i+1)%len(sets)]...)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 500 {
			c.Set()
			a.Reset().Set()
		}
	}()
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(30 * time.Second):
		t.Fatal("waits on overlapping sets deadlocked")
	}
}

func TestStatsAndMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	w := NewWaiter(&WaiterConfig{Metrics: metrics})
	a := NewAutoReset(true)
	assert.Equal(t, WaitObject0, w.WaitOne(a, 0))
	assert.Equal(t, WaitTimeout, w.WaitOne(a, 0))
	assert.Equal(t, WaitTimeout, w.WaitOne(a, time.Millisecond))
	assert.Equal(t, WaitFailed, w.Wait(0, false, a, a))

	stats := w.Stats()
	assert.EqualValues(t, 4, stats.Waits.Int64())
	assert.EqualValues(t, 1, stats.FastPath.Int64())
	assert.EqualValues(t, 1, stats.Blocked.Int64())
	assert.EqualValues(t, 1, stats.Signaled.Int64())
	assert.EqualValues(t, 2, stats.Timeouts.Int64())
	assert.EqualValues(t, 1, stats.Failures.Int64())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.results.WithLabelValues("signaled")))
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.results.WithLabelValues("timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.results.WithLabelValues("failed")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.blocked))
}

func TestResultString(t *testing.T) {
	for _, tc := range []struct {
		res  Result
		want string
	}{
		{WaitObject0, "signaled(0)"},
		{WaitObject0 + 3, "signaled(3)"},
		{WaitTimeout, "timeout"},
		{WaitFailed, "failed"},
		{WaitAbandoned, "abandoned"},
		{0x200, "Result(0x200)"},
	} {
		assert.Equal(t, tc.want, tc.res.String())
	}
	i, ok := (WaitObject0 + 5).Index()
	assert.True(t, ok)
	assert.Equal(t, 5, i)
	_, ok = WaitTimeout.Index()
	assert.False(t, ok)
	assert.EqualValues(t, 0x102, WaitTimeout)
	assert.EqualValues(t, -1, WaitFailed)
}

func TestZeroEventDuplicateFails(t *testing.T) {
	var x, y Event
	done := make(chan error, 1)
	go func() {
		res, err := WaitContext(context.Background(), 0, false, &x, &y, &x)
		assert.Equal(t, WaitFailed, res)
		done <- err
	}()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, ErrDuplicateEvent), "%v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("wait with a repeated zero event hung")
	}
}

func TestZeroEventsLockInOneOrder(t *testing.T) {
	var x, y Event
	require.NotEqual(t, x.lockOrder(), y.lockOrder())
	require.Equal(t, x.lockOrder(), x.lockOrder())
	var wg sync.WaitGroup
	for i := range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			set := []*Event{&x, &y}
			if i%2 == 1 {
				set = []*Event{&y, &x}
			}
			for range 500 {
				WaitAll(time.Millisecond, set...)
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 500 {
			x.Set()
			y.Set()
		}
	}()
	finished := make(chan struct{})
	go func() {
		wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-time.After(30 * time.Second):
		t.Fatal("waits on zero events in opposite orders deadlocked")
	}
}

func TestStatsJSON(t *testing.T) {
	w := NewWaiter(nil)
	e := NewAutoReset(true)
	w.WaitOne(e, 0)
	w.WaitOne(e, 0)
	stats := w.Stats()
	b, err := json.Marshal(&stats)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"waits":2,"fast_path":1,"blocked":0,"signaled":1,"timeouts":1,"failures":0}`,
		string(b))
}

func TestPanickingWaitNotCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	w := NewWaiter(&WaiterConfig{Metrics: metrics})
	e := NewManualReset(true)
	e.Close()
	require.Panics(t, func() { w.WaitOne(e, 0) })
	stats := w.Stats()
	assert.Zero(t, stats.Waits.Int64())
	assert.Zero(t, stats.Signaled.Int64())
	assert.Zero(t, stats.Failures.Int64())
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.results.WithLabelValues("signaled")))
}
