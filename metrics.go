package winevent

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exports wait outcomes to Prometheus. A nil *Metrics records nothing.
type Metrics struct {
	results  *prometheus.CounterVec
	blocked  prometheus.Gauge
	duration prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg, if it's not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	me := &Metrics{
		results: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "winevent",
			Name:      "wait_results_total",
			Help:      "Completed wait calls by result.",
		}, []string{"result"}),
		blocked: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "winevent",
			Name:      "blocked_waits",
			Help:      "Wait calls currently blocked.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "winevent",
			Name:      "blocked_wait_seconds",
			Help:      "Time spent blocked by wait calls that didn't return immediately.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(me.results, me.blocked, me.duration)
	}
	return me
}

func (me *Metrics) observeResult(res Result) {
	if me == nil {
		return
	}
	me.results.WithLabelValues(res.label()).Inc()
}

func (me *Metrics) blockStarted() {
	if me == nil {
		return
	}
	me.blocked.Inc()
}

func (me *Metrics) blockEnded(d time.Duration) {
	if me == nil {
		return
	}
	me.blocked.Dec()
	me.duration.Observe(d.Seconds())
}
