package keepalive

import (
	"sync/atomic"
	"time"
)

// Stats is a point-in-time view of a Service. Counters are monotonic for the
// lifetime of the Service and span all cycles.
type Stats struct {
	Running  bool
	Interval time.Duration
	LastTick time.Time

	Cycles      uint64 // cycles begun by Start or Reconfigure
	Ticks       uint64 // ticks fired by the loop
	Dispatched  uint64 // invocations handed to the executor
	Invocations uint64 // invocations that actually ran
	Failures    uint64 // invocations that returned an error or panicked, logged or throttled
	Skipped     uint64 // ticks dropped because the previous invocation was still pending
}

type counters struct {
	cycles      atomic.Uint64
	ticks       atomic.Uint64
	dispatched  atomic.Uint64
	invocations atomic.Uint64
	failures    atomic.Uint64
	skipped     atomic.Uint64
	lastTick    atomic.Int64
}

// Stats returns the current counters.
func (s *Service) Stats() Stats {
	st := Stats{
		Running:     s.running.Load(),
		Interval:    time.Duration(s.interval.Load()),
		Cycles:      s.stats.cycles.Load(),
		Ticks:       s.stats.ticks.Load(),
		Dispatched:  s.stats.dispatched.Load(),
		Invocations: s.stats.invocations.Load(),
		Failures:    s.stats.failures.Load(),
		Skipped:     s.stats.skipped.Load(),
	}
	if ns := s.stats.lastTick.Load(); ns != 0 {
		st.LastTick = time.Unix(0, ns)
	}
	return st
}
