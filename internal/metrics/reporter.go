package metrics

import (
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"keepaliveagent/internal/keepalive"
	"keepaliveagent/internal/logger"
)

// Reporter logs a stats line on a cron schedule, with deltas since the
// previous report.
type Reporter struct {
	src      StatsSource
	schedule string

	mu   sync.Mutex
	cron *cron.Cron
	run  sync.Mutex // held while a report is in progress
	prev keepalive.Stats
}

// NewReporter creates a Reporter. Schedules use the standard five-field
// syntax or descriptors such as "@every 1m".
func NewReporter(src StatsSource, schedule string) *Reporter {
	return &Reporter{src: src, schedule: schedule}
}

// Start validates the schedule and begins reporting.
func (r *Reporter) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron != nil {
		return nil
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	c := cron.New(cron.WithParser(parser))
	if _, err := c.AddFunc(r.schedule, r.tryReport); err != nil {
		return fmt.Errorf("invalid stats report schedule %q: %w", r.schedule, err)
	}
	c.Start()
	r.cron = c

	log := logger.WithComponent("stats-report")
	log.Info().Str("schedule", r.schedule).Msg("Stats reporter started")
	return nil
}

// Stop halts the schedule and waits for an in-progress report.
func (r *Reporter) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron == nil {
		return
	}
	<-r.cron.Stop().Done()
	r.cron = nil
}

func (r *Reporter) tryReport() {
	// Skip if the previous report is still running.
	if !r.run.TryLock() {
		return
	}
	defer r.run.Unlock()
	r.report()
}

// Report logs the current stats and returns the deltas since the last report.
func (r *Reporter) Report() keepalive.Stats {
	r.run.Lock()
	defer r.run.Unlock()
	return r.report()
}

func (r *Reporter) report() keepalive.Stats {
	st := r.src.Stats()
	delta := keepalive.Stats{
		Running:     st.Running,
		Interval:    st.Interval,
		LastTick:    st.LastTick,
		Cycles:      st.Cycles - r.prev.Cycles,
		Ticks:       st.Ticks - r.prev.Ticks,
		Dispatched:  st.Dispatched - r.prev.Dispatched,
		Invocations: st.Invocations - r.prev.Invocations,
		Failures:    st.Failures - r.prev.Failures,
		Skipped:     st.Skipped - r.prev.Skipped,
	}
	r.prev = st

	log := logger.WithComponent("stats-report")
	log.Info().
		Bool("running", delta.Running).
		Dur("interval", delta.Interval).
		Uint64("ticks", delta.Ticks).
		Uint64("invocations", delta.Invocations).
		Uint64("failures", delta.Failures).
		Uint64("skipped", delta.Skipped).
		Uint64("ticks_total", st.Ticks).
		Msg("Keep-alive stats")
	return delta
}
