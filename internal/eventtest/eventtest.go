// Package eventtest checks that an event implementation behaves like Win32 events. Each
// implementation's tests call Run with an Impl adapting it.
package eventtest

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dannyzb/winevent"
)

// Settle is how long a test lets a goroutine get into a blocking wait before signaling. Waits
// that start late still pass, as the events are level-triggered.
const Settle = 30 * time.Millisecond

type Impl[E any] struct {
	Name  string
	New   func(t testing.TB, manualReset, initialState bool) E
	Set   func(E)
	Reset func(E)
	Wait  func(timeout time.Duration, waitAll bool, events ...E) winevent.Result
}

// Run runs the conformance tests against impl.
func Run[E any](t *testing.T, impl Impl[E]) {
	t.Run(impl.Name, func(t *testing.T) {
		t.Run("AlreadySignaled", func(t *testing.T) { testAlreadySignaled(t, impl) })
		t.Run("AutoResetBlocksUntilSet", func(t *testing.T) { testAutoResetBlocksUntilSet(t, impl) })
		t.Run("ManualResetReleasesAll", func(t *testing.T) { testManualResetReleasesAll(t, impl) })
		t.Run("Timeout", func(t *testing.T) { testTimeout(t, impl) })
		t.Run("AnyReportsIndex", func(t *testing.T) { testAnyReportsIndex(t, impl) })
		t.Run("AllWaitsForEvery", func(t *testing.T) { testAllWaitsForEvery(t, impl) })
		t.Run("AutoResetWakesOne", func(t *testing.T) { testAutoResetWakesOne(t, impl) })
	})
}

func testAlreadySignaled[E any](t *testing.T, impl Impl[E]) {
	auto := impl.New(t, false, true)
	start := time.Now()
	assert.Equal(t, winevent.WaitObject0, impl.Wait(winevent.Infinite, false, auto))
	assert.Less(t, time.Since(start), time.Second)
	// The signal was consumed.
	assert.Equal(t, winevent.WaitTimeout, impl.Wait(0, false, auto))

	manual := impl.New(t, true, true)
	for range 3 {
		assert.Equal(t, winevent.WaitObject0, impl.Wait(0, false, manual))
	}
	impl.Reset(manual)
	assert.Equal(t, winevent.WaitTimeout, impl.Wait(0, false, manual))
}

func testAutoResetBlocksUntilSet[E any](t *testing.T, impl Impl[E]) {
	for _, timeout := range []time.Duration{winevent.Infinite, 10 * time.Second} {
		e := impl.New(t, false, false)
		var returned atomic.Bool
		var eg errgroup.Group
		eg.Go(func() error {
			res := impl.Wait(timeout, false, e)
			returned.Store(true)
			assert.Equal(t, winevent.WaitObject0, res)
			return nil
		})
		time.Sleep(Settle)
		assert.False(t, returned.Load(), "wait returned before Set")
		impl.Set(e)
		require.NoError(t, eg.Wait())
		assert.Equal(t, winevent.WaitTimeout, impl.Wait(0, false, e), "auto-reset event still signaled")
	}
}

func testManualResetReleasesAll[E any](t *testing.T, impl Impl[E]) {
	const waiters = 4
	e := impl.New(t, true, false)
	var eg errgroup.Group
	for range waiters {
		eg.Go(func() error {
			assert.Equal(t, winevent.WaitObject0, impl.Wait(10*time.Second, false, e))
			return nil
		})
	}
	time.Sleep(Settle)
	impl.Set(e)
	require.NoError(t, eg.Wait())
	assert.Equal(t, winevent.WaitObject0, impl.Wait(0, false, e), "manual-reset event cleared itself")
	impl.Reset(e)
	assert.Equal(t, winevent.WaitTimeout, impl.Wait(0, false, e))
}

func testTimeout[E any](t *testing.T, impl Impl[E]) {
	const timeout = 50 * time.Millisecond
	e := impl.New(t, false, false)
	start := time.Now()
	assert.Equal(t, winevent.WaitTimeout, impl.Wait(timeout, false, e))
	elapsed := time.Since(start)
	// Native waits have millisecond granularity.
	assert.GreaterOrEqual(t, elapsed, timeout-time.Millisecond)
	assert.Less(t, elapsed, timeout+5*time.Second)
}

func testAnyReportsIndex[E any](t *testing.T, impl Impl[E]) {
	for _, which := range []int{0, 1} {
		events := []E{impl.New(t, false, false), impl.New(t, false, false)}
		var eg errgroup.Group
		eg.Go(func() error {
			assert.Equal(t, winevent.WaitObject0+winevent.Result(which), impl.Wait(10*time.Second, false, events...))
			return nil
		})
		time.Sleep(Settle)
		impl.Set(events[which])
		require.NoError(t, eg.Wait())
	}
}

func testAllWaitsForEvery[E any](t *testing.T, impl Impl[E]) {
	for _, modes := range [][2]bool{{true, true}, {false, true}, {true, false}, {false, false}} {
		events := []E{impl.New(t, modes[0], false), impl.New(t, modes[1], false)}
		var returned atomic.Bool
		var eg errgroup.Group
		eg.Go(func() error {
			res := impl.Wait(10*time.Second, true, events...)
			returned.Store(true)
			assert.Equal(t, winevent.WaitObject0, res)
			return nil
		})
		time.Sleep(Settle)
		impl.Set(events[0])
		time.Sleep(Settle)
		assert.False(t, returned.Load(), "all-wait returned with one event of %v signaled", modes)
		impl.Set(events[1])
		require.NoError(t, eg.Wait())
	}
}

func testAutoResetWakesOne[E any](t *testing.T, impl Impl[E]) {
	const waiters = 3
	e := impl.New(t, false, false)
	var woken atomic.Int32
	var eg errgroup.Group
	for range waiters {
		eg.Go(func() error {
			if impl.Wait(10*time.Second, false, e) == winevent.WaitObject0 {
				woken.Add(1)
			}
			return nil
		})
	}
	time.Sleep(Settle)
	for i := range waiters {
		impl.Set(e)
		require.Eventually(t, func() bool {
			return woken.Load() >= int32(i+1)
		}, 5*time.Second, time.Millisecond)
		// Nobody else wakes on the same signal.
		time.Sleep(Settle)
		assert.EqualValues(t, i+1, woken.Load(), "after %d sets", i+1)
	}
	require.NoError(t, eg.Wait())
}
