// Runs the event torture scenarios and reports what the waits did.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/alexflint/go-arg"
	"github.com/anacrolix/envpprof"
	"github.com/anacrolix/log"
	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/dannyzb/winevent"
	"github.com/dannyzb/winevent/internal/torture"
	"github.com/dannyzb/winevent/version"
)

type args struct {
	Scenarios   []string      `arg:"positional" help:"scenarios to run: single, pair, mixed, overlap (default all)"`
	Rounds      int           `arg:"-n" default:"1" help:"times to run each scenario"`
	Settle      time.Duration `default:"31ms" help:"time given to waiters to block before signaling"`
	Timeout     time.Duration `default:"250ms" help:"timeout for waits expected to succeed"`
	SetRate     float64       `default:"1000" help:"auto-reset sets per second in the mixed scenario, 0 for unlimited"`
	MetricsAddr string        `help:"serve prometheus metrics on this address, and stay up after the run"`
	JSON        bool          `arg:"--json" help:"print the wait stats as JSON instead of a table"`
}

func (args) Version() string {
	return version.String()
}

func main() {
	defer envpprof.Stop()
	if err := mainErr(); err != nil {
		log.Default.Levelf(log.Error, "%v", err)
		os.Exit(1)
	}
}

func mainErr() error {
	var flags args
	arg.MustParse(&flags)
	logger := log.Default.WithNames("event-torture")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	reg := prometheus.NewRegistry()
	waiterConfig := winevent.NewDefaultWaiterConfig()
	waiterConfig.Logger = logger
	waiterConfig.Metrics = winevent.NewMetrics(reg)
	waiter := winevent.NewWaiter(waiterConfig)
	if flags.MetricsAddr != "" {
		http.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		go func() {
			err := http.ListenAndServe(flags.MetricsAddr, nil)
			logger.Levelf(log.Error, "serving metrics: %v", err)
		}()
	}

	scenarios, err := torture.Lookup(flags.Scenarios)
	if err != nil {
		return err
	}
	cfg := torture.NewDefaultConfig()
	cfg.Waiter = waiter
	cfg.Logger = logger
	cfg.Settle = flags.Settle
	cfg.Timeout = flags.Timeout
	cfg.Rounds = flags.Rounds
	cfg.SetRate = rate.Limit(flags.SetRate)
	if flags.SetRate == 0 {
		cfg.SetRate = rate.Inf
	}
	started := time.Now()
	err = torture.RunAll(ctx, cfg, scenarios)
	stats := waiter.Stats()
	if flags.JSON {
		if jsonErr := json.NewEncoder(os.Stdout).Encode(&stats); jsonErr != nil {
			return jsonErr
		}
	} else {
		report(&stats, time.Since(started))
	}
	if err != nil {
		return err
	}
	if flags.MetricsAddr != "" {
		logger.Levelf(log.Info, "serving metrics on %v until interrupted", flags.MetricsAddr)
		<-ctx.Done()
	}
	return nil
}

func report(stats *winevent.Stats, elapsed time.Duration) {
	fmt.Printf("%s waits in %v (%s/s)\n",
		humanize.Comma(stats.Waits.Int64()),
		elapsed.Round(time.Millisecond),
		humanize.Comma(int64(float64(stats.Waits.Int64())/elapsed.Seconds())),
	)
	for _, line := range []struct {
		name  string
		count *winevent.Count
	}{
		{"fast path", &stats.FastPath},
		{"blocked", &stats.Blocked},
		{"signaled", &stats.Signaled},
		{"timed out", &stats.Timeouts},
		{"failed", &stats.Failures},
	} {
		fmt.Printf("  %-10s %s\n", line.name, humanize.Comma(line.count.Int64()))
	}
}
