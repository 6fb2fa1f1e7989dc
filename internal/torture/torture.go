// Package torture runs event scenarios across many goroutines and checks the outcomes. The
// scenarios rely on timing only to decide when to signal, never for correctness: a waiter that
// starts late still sees a level-triggered event.
package torture

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/anacrolix/log"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/dannyzb/winevent"
	"github.com/dannyzb/winevent/internal/thread"
)

type Config struct {
	Waiter *winevent.Waiter
	Logger log.Logger
	// How long waiters are given to block before they're signaled.
	Settle time.Duration
	// Used by waits that are expected to succeed.
	Timeout time.Duration
	// Times each scenario runs.
	Rounds int
	// Limits how fast the mixed scenario signals its auto-reset events.
	SetRate rate.Limit
}

func NewDefaultConfig() *Config {
	return &Config{
		Waiter:  winevent.DefaultWaiter(),
		Logger:  log.Default.WithNames("torture"),
		Settle:  time.Second / 32,
		Timeout: time.Second / 4,
		Rounds:  1,
		SetRate: 1000,
	}
}

type Scenario struct {
	Name string
	Run  func(ctx context.Context, cfg *Config) error
}

var Scenarios = []Scenario{
	{"single", Single},
	{"pair", Pair},
	{"mixed", Mixed},
	{"overlap", Overlap},
}

// Lookup returns the scenarios with the given names, or all of them if names is empty.
func Lookup(names []string) (ret []Scenario, err error) {
	if len(names) == 0 {
		return Scenarios, nil
	}
	for _, name := range names {
		i := slices.IndexFunc(Scenarios, func(s Scenario) bool { return s.Name == name })
		if i < 0 {
			return nil, errors.Errorf("unknown scenario %q", name)
		}
		ret = append(ret, Scenarios[i])
	}
	return
}

// RunAll runs each scenario cfg.Rounds times, stopping at the first failure.
func RunAll(ctx context.Context, cfg *Config, scenarios []Scenario) error {
	for _, s := range scenarios {
		for round := range cfg.Rounds {
			started := time.Now()
			if err := s.Run(ctx, cfg); err != nil {
				return errors.Wrapf(err, "scenario %s, round %d", s.Name, round)
			}
			cfg.Logger.Levelf(log.Debug, "scenario %s round %d passed in %v", s.Name, round, time.Since(started))
		}
		cfg.Logger.Levelf(log.Info, "scenario %s passed %d rounds", s.Name, cfg.Rounds)
	}
	return nil
}

func expect(got, want winevent.Result, what string) error {
	if got != want {
		return fmt.Errorf("%s: got %v, want %v", what, got, want)
	}
	return nil
}

// Single waits on one auto-reset event in every combination of initial state and signaling
// before or after the waiter starts, with and without a timeout, then checks a wait times out.
func Single(ctx context.Context, cfg *Config) error {
	for _, timeout := range []time.Duration{winevent.Infinite, cfg.Timeout} {
		for _, c := range []struct {
			name         string
			initial      bool
			setBefore    bool
			setAfter     bool
			leftSignaled bool
		}{
			{name: "set after start", setAfter: true},
			{name: "set before start", setBefore: true},
			{name: "initially signaled, set after start", initial: true, setAfter: true, leftSignaled: true},
			{name: "initially signaled", initial: true},
		} {
			e := winevent.NewAutoReset(c.initial)
			if c.setBefore {
				e.Set()
			}
			h := thread.Spawn(func() winevent.Result {
				return cfg.Waiter.WaitOne(e, timeout)
			})
			if c.setAfter {
				sleep(ctx, cfg.Settle)
				e.Set()
			}
			if err := expect(h.Join(), winevent.WaitObject0, c.name); err != nil {
				return err
			}
			// A set after an initially signaled wait may land before or after the waiter, so
			// it's only checked when it can't have been consumed.
			if !c.leftSignaled {
				if err := expect(cfg.Waiter.WaitOne(e, 0), winevent.WaitTimeout, c.name+", afterwards"); err != nil {
					return err
				}
			}
			e.Close()
		}
	}
	e := winevent.NewAutoReset(false)
	defer e.Close()
	h := thread.Spawn(func() winevent.Result {
		return cfg.Waiter.WaitOne(e, cfg.Timeout/8)
	})
	return expect(h.Join(), winevent.WaitTimeout, "unsignaled with timeout")
}

// Pair waits on two auto-reset events, alternating between any and all modes.
func Pair(ctx context.Context, cfg *Config) error {
	for i := range 8 {
		all := i%2 == 0
		e, s := winevent.NewAutoReset(false), winevent.NewAutoReset(false)
		h := thread.Spawn(func() winevent.Result {
			return cfg.Waiter.Wait(cfg.Timeout, all, e, s)
		})
		sleep(ctx, cfg.Settle)
		want := winevent.WaitObject0
		switch {
		case all:
			e.Set()
			s.Set()
		case i%4 == 1:
			e.Set()
		default:
			s.Set()
			want++
		}
		if err := expect(h.Join(), want, fmt.Sprintf("iteration %d (all=%v)", i, all)); err != nil {
			return err
		}
		e.Close()
		s.Close()
	}
	return nil
}

// Mixed has several goroutines wait for all of a set of manual and auto-reset events, and keeps
// signaling the auto-reset ones until every waiter is through.
func Mixed(ctx context.Context, cfg *Config) error {
	manualUnsignaled := winevent.NewManualReset(false)
	manualSignaled := winevent.NewManualReset(true)
	autoSignaled := winevent.NewAutoReset(true)
	autoUnsignaled0 := winevent.NewAutoReset(false)
	autoUnsignaled1 := winevent.NewAutoReset(false)
	events := []*winevent.Event{manualUnsignaled, manualSignaled, autoSignaled, autoUnsignaled0, autoUnsignaled1}
	type result struct {
		res winevent.Result
		err error
	}
	var waiters []*thread.Handle[result]
	for range 3 {
		waiters = append(waiters, thread.Spawn(func() result {
			res, err := cfg.Waiter.WaitContext(ctx, winevent.Infinite, true, events...)
			return result{res, err}
		}))
	}
	sleep(ctx, cfg.Settle)
	manualUnsignaled.Set()
	limit := cfg.SetRate
	if limit <= 0 {
		limit = rate.Inf
	}
	limiter := rate.NewLimiter(limit, 1)
	for pending := slices.Clone(waiters); len(pending) != 0; {
		pending = slices.DeleteFunc(pending, func(h *thread.Handle[result]) bool {
			return h.TryJoin().Ok
		})
		if len(pending) == 0 {
			break
		}
		if err := limiter.Wait(ctx); err != nil {
			// The waiters see the same context and return.
			break
		}
		autoSignaled.Set()
		autoUnsignaled0.Set()
		autoUnsignaled1.Set()
	}
	for i, h := range waiters {
		r := h.Join()
		if r.err != nil {
			return errors.Wrapf(r.err, "waiter %d", i)
		}
		if err := expect(r.res, winevent.WaitObject0, fmt.Sprintf("waiter %d", i)); err != nil {
			return err
		}
	}
	for _, e := range events {
		e.Close()
	}
	return nil
}

// Overlap has goroutines wait on the same events listed in different orders while another
// signals them. Waiters run until the signaler is done.
func Overlap(ctx context.Context, cfg *Config) error {
	a, b, c := winevent.NewAutoReset(false), winevent.NewAutoReset(false), winevent.NewManualReset(false)
	orders := [][]*winevent.Event{{a, b, c}, {c, b, a}, {b, a, c}}
	const iterations = 200
	eg, ctx := errgroup.WithContext(ctx)
	signaling, stop := context.WithCancel(ctx)
	defer stop()
	for i := range 6 {
		eg.Go(func() error {
			set := orders[i%len(orders)]
			for {
				res, err := cfg.Waiter.WaitContext(signaling, cfg.Timeout, i%2 == 0, set...)
				if signaling.Err() != nil {
					return ctx.Err()
				}
				if err != nil {
					return err
				}
				if res == winevent.WaitFailed {
					return errors.New("wait failed")
				}
			}
		})
	}
	eg.Go(func() error {
		defer stop()
		for range iterations {
			a.Set()
			b.Set()
			c.Set().Reset()
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		return nil
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	for _, e := range []*winevent.Event{a, b, c} {
		e.Close()
	}
	return nil
}

func sleep(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
