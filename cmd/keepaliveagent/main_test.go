package main

import (
	"path/filepath"
	"testing"
	"time"

	"keepaliveagent/internal/config"
)

func TestBaseDir(t *testing.T) {
	base := filepath.Join(string(filepath.Separator), "opt", "keepaliveagent")
	cfgPath := filepath.Join(base, "conf", "KeepAliveAgent", "KeepAliveAgent.json")

	if got := baseDir(cfgPath); got != base {
		t.Errorf("baseDir(%q) = %q, want %q", cfgPath, got, base)
	}
}

func TestKeepaliveOptions(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.KeepAlive.IntervalMs = 250
	cfg.KeepAlive.OverlapAllowed = true

	opts := keepaliveOptions(cfg)
	if opts.Interval != 250*time.Millisecond || !opts.OverlapAllowed || opts.Name != "keepalive" {
		t.Errorf("unexpected options: %+v", opts)
	}
}

func TestRestartRequired(t *testing.T) {
	old := config.DefaultConfig()

	same := config.DefaultConfig()
	same.KeepAlive.IntervalMs = 500
	if sections := restartRequired(old, same); len(sections) != 0 {
		t.Errorf("KeepAlive changes are applied live, got %v", sections)
	}

	changed := config.DefaultConfig()
	changed.Sink.Kafka.Brokers = []string{"kafka-1:9092"}
	changed.Presence.Title = "Syncing"
	sections := restartRequired(old, changed)
	if len(sections) != 2 || sections[0] != "Presence" || sections[1] != "Sink" {
		t.Errorf("restartRequired = %v, want [Presence Sink]", sections)
	}
}
