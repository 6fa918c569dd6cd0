package sink

import (
	"context"
	"sync/atomic"

	"keepaliveagent/internal/heartbeat"
	"keepaliveagent/internal/logger"
)

// LogSink writes each beat as a debug line to the agent log.
type LogSink struct {
	closed atomic.Bool
}

// NewLogSink creates a LogSink.
func NewLogSink() *LogSink {
	return &LogSink{}
}

// Send logs beat.
func (s *LogSink) Send(_ context.Context, beat *heartbeat.Beat) error {
	if s.closed.Load() {
		return ErrClosed
	}
	log := logger.WithComponent("heartbeat")
	log.Debug().
		Uint64("seq", beat.Seq).
		Str("agent_id", beat.AgentID).
		Int64("uptime_ms", beat.UptimeMs).
		Uint64("rss_bytes", beat.RSSBytes).
		Float64("cpu_percent", beat.CPUPercent).
		Int("goroutines", beat.Goroutines).
		Msg("Heartbeat")
	return nil
}

// Close marks the sink closed.
func (s *LogSink) Close() error {
	s.closed.Store(true)
	return nil
}
