package heartbeat

import (
	"context"
	"fmt"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"keepaliveagent/internal/logger"
)

// Publisher delivers beats. sink.Sink satisfies it.
type Publisher interface {
	Send(ctx context.Context, beat *Beat) error
}

// Emitter produces one Beat per call to Update and hands it to a Publisher.
// Update has the keepalive.UpdateFunc signature.
type Emitter struct {
	agentID  string
	hostname string
	started  time.Time
	clock    clock.Clock
	probe    *Probe
	pub      Publisher

	seq         atomic.Uint64
	probeFailed atomic.Bool
}

// NewEmitter creates an Emitter. probe may be nil, in which case beats carry
// no process metrics.
func NewEmitter(agentID, hostname string, probe *Probe, pub Publisher, clk clock.Clock) *Emitter {
	if clk == nil {
		clk = clock.New()
	}
	return &Emitter{
		agentID:  agentID,
		hostname: hostname,
		started:  clk.Now(),
		clock:    clk,
		probe:    probe,
		pub:      pub,
	}
}

// Update builds the next beat and publishes it.
func (e *Emitter) Update(ctx context.Context) error {
	now := e.clock.Now()
	beat := &Beat{
		Seq:        e.seq.Add(1),
		AgentID:    e.agentID,
		Hostname:   e.hostname,
		Timestamp:  now.UTC(),
		UptimeMs:   now.Sub(e.started).Milliseconds(),
		Goroutines: runtime.NumGoroutine(),
	}

	if e.probe != nil {
		s, err := e.probe.Sample(ctx)
		if err != nil {
			// Logged once per failure streak; the beat still goes out.
			if !e.probeFailed.Swap(true) {
				log := logger.WithComponent("heartbeat")
				log.Warn().Err(err).Msg("Process probe failed")
			}
		} else {
			e.probeFailed.Store(false)
		}
		beat.PID = s.PID
		beat.RSSBytes = s.RSSBytes
		beat.CPUPercent = s.CPUPercent
	}

	if err := e.pub.Send(ctx, beat); err != nil {
		return fmt.Errorf("failed to send heartbeat %d: %w", beat.Seq, err)
	}
	return nil
}

// Sent returns the number of beats built so far.
func (e *Emitter) Sent() uint64 {
	return e.seq.Load()
}
