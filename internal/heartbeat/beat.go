// Package heartbeat builds the liveness beat published on every keep-alive tick.
package heartbeat

import "time"

// Beat is one heartbeat record.
type Beat struct {
	Seq        uint64    `json:"seq"`
	AgentID    string    `json:"agent_id"`
	Hostname   string    `json:"hostname"`
	Timestamp  time.Time `json:"timestamp"`
	UptimeMs   int64     `json:"uptime_ms"`
	PID        int32     `json:"pid"`
	RSSBytes   uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
	Goroutines int       `json:"goroutines"`
}
