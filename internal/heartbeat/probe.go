package heartbeat

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/shirou/gopsutil/v3/process"
)

// DefaultProbeInterval is how long a process sample is reused.
const DefaultProbeInterval = 5 * time.Second

// Sample is a resource snapshot of the agent's own process.
type Sample struct {
	PID        int32
	RSSBytes   uint64
	CPUPercent float64
	Taken      time.Time
}

// Probe samples the current process with gopsutil. A sample is cached for the
// probe interval so fast ticks do not read /proc on every beat.
type Probe struct {
	clock    clock.Clock
	interval time.Duration

	mu   sync.Mutex
	proc *process.Process
	last Sample
}

// NewProbe creates a probe for the current process. interval <= 0 disables caching.
func NewProbe(interval time.Duration, clk clock.Clock) (*Probe, error) {
	if clk == nil {
		clk = clock.New()
	}
	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("failed to open own process: %w", err)
	}
	return &Probe{clock: clk, interval: interval, proc: p}, nil
}

// Sample returns the cached sample, refreshing it once the interval has elapsed.
func (p *Probe) Sample(ctx context.Context) (Sample, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	if !p.last.Taken.IsZero() && p.interval > 0 && now.Sub(p.last.Taken) < p.interval {
		return p.last, nil
	}

	mem, err := p.proc.MemoryInfoWithContext(ctx)
	if err != nil {
		return p.last, fmt.Errorf("failed to read memory info: %w", err)
	}
	// Percent(0) reports usage since the previous call.
	cpu, err := p.proc.PercentWithContext(ctx, 0)
	if err != nil {
		return p.last, fmt.Errorf("failed to read cpu usage: %w", err)
	}

	p.last = Sample{
		PID:        p.proc.Pid,
		RSSBytes:   mem.RSS,
		CPUPercent: cpu,
		Taken:      now,
	}
	return p.last, nil
}
