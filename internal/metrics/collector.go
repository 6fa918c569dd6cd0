// Package metrics exposes keep-alive counters to Prometheus and as a
// periodic log line.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"keepaliveagent/internal/keepalive"
)

const namespace = "keepalive"

// StatsSource is implemented by keepalive.Service.
type StatsSource interface {
	Stats() keepalive.Stats
}

// Collector reads a StatsSource on every scrape. The counters are owned by
// the Service, so nothing is duplicated here.
type Collector struct {
	src StatsSource

	running     *prometheus.Desc
	interval    *prometheus.Desc
	lastTick    *prometheus.Desc
	cycles      *prometheus.Desc
	ticks       *prometheus.Desc
	dispatched  *prometheus.Desc
	invocations *prometheus.Desc
	failures    *prometheus.Desc
	skipped     *prometheus.Desc
}

// NewCollector creates a Collector over src. agentID is attached as a constant label.
func NewCollector(src StatsSource, agentID string) *Collector {
	labels := prometheus.Labels{"agent_id": agentID}
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "", name), help, nil, labels)
	}
	return &Collector{
		src:         src,
		running:     desc("running", "1 while a keep-alive cycle is active."),
		interval:    desc("interval_seconds", "Configured tick interval."),
		lastTick:    desc("last_tick_timestamp_seconds", "Unix time of the most recent tick."),
		cycles:      desc("cycles_total", "Keep-alive cycles started."),
		ticks:       desc("ticks_total", "Ticks fired by the scheduler."),
		dispatched:  desc("dispatched_total", "Callback invocations handed to the executor."),
		invocations: desc("invocations_total", "Callback invocations that ran."),
		failures:    desc("failures_total", "Callback invocations that returned an error or panicked."),
		skipped:     desc("skipped_total", "Ticks skipped because the previous invocation was still pending."),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.running
	ch <- c.interval
	ch <- c.lastTick
	ch <- c.cycles
	ch <- c.ticks
	ch <- c.dispatched
	ch <- c.invocations
	ch <- c.failures
	ch <- c.skipped
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	st := c.src.Stats()

	running := 0.0
	if st.Running {
		running = 1
	}
	lastTick := 0.0
	if !st.LastTick.IsZero() {
		lastTick = float64(st.LastTick.UnixNano()) / 1e9
	}

	ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, running)
	ch <- prometheus.MustNewConstMetric(c.interval, prometheus.GaugeValue, st.Interval.Seconds())
	ch <- prometheus.MustNewConstMetric(c.lastTick, prometheus.GaugeValue, lastTick)
	ch <- prometheus.MustNewConstMetric(c.cycles, prometheus.CounterValue, float64(st.Cycles))
	ch <- prometheus.MustNewConstMetric(c.ticks, prometheus.CounterValue, float64(st.Ticks))
	ch <- prometheus.MustNewConstMetric(c.dispatched, prometheus.CounterValue, float64(st.Dispatched))
	ch <- prometheus.MustNewConstMetric(c.invocations, prometheus.CounterValue, float64(st.Invocations))
	ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue, float64(st.Failures))
	ch <- prometheus.MustNewConstMetric(c.skipped, prometheus.CounterValue, float64(st.Skipped))
}
