// Package config provides configuration management for the KeepAliveAgent.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Sink types accepted in Sink.Type.
const (
	SinkLog   = "log"
	SinkFile  = "file"
	SinkRedis = "redis"
	SinkKafka = "kafka"
)

// Config is the root configuration structure (KeepAliveAgent.json).
type Config struct {
	Agent       AgentConfig       `json:"Agent"`
	KeepAlive   KeepAliveConfig   `json:"KeepAlive"`
	Presence    PresenceConfig    `json:"Presence"`
	Heartbeat   HeartbeatConfig   `json:"Heartbeat"`
	Sink        SinkConfig        `json:"Sink"`
	SOCKSProxy  SOCKSConfig       `json:"SocksProxy"`
	Metrics     MetricsConfig     `json:"Metrics"`
	StatsReport StatsReportConfig `json:"StatsReport"`
}

// AgentConfig identifies this agent in emitted heartbeats.
type AgentConfig struct {
	ID       string `json:"ID"`
	Hostname string `json:"Hostname"`
}

// KeepAliveConfig controls the tick loop.
type KeepAliveConfig struct {
	// IntervalMs trades update latency against CPU and battery cost.
	IntervalMs     int  `json:"IntervalMs"`
	OverlapAllowed bool `json:"OverlapAllowed"`
}

// Interval returns IntervalMs as a duration.
func (k KeepAliveConfig) Interval() time.Duration {
	return time.Duration(k.IntervalMs) * time.Millisecond
}

// PresenceConfig is the static content of the host-visible presence indicator.
type PresenceConfig struct {
	Disabled bool   `json:"Disabled"`
	Title    string `json:"Title"`
	Text     string `json:"Text"`
	// Action is a command line run when the host user activates the indicator.
	Action string `json:"Action"`
}

// HeartbeatConfig controls the beats produced by the default update callback.
type HeartbeatConfig struct {
	ProbeInterval time.Duration `json:"ProbeInterval"`
}

// SinkConfig selects where heartbeats are published.
type SinkConfig struct {
	Type  string          `json:"Type"`
	File  FileSinkConfig  `json:"File"`
	Redis RedisSinkConfig `json:"Redis"`
	Kafka KafkaConfig     `json:"Kafka"`
}

// FileSinkConfig contains settings for the file sink.
type FileSinkConfig struct {
	FilePath   string `json:"FilePath"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	Compress   bool   `json:"Compress"`
}

// RedisSinkConfig contains settings for the Redis sink.
type RedisSinkConfig struct {
	Address   string        `json:"Address"`
	Password  string        `json:"Password"`
	DB        int           `json:"DB"`
	KeyPrefix string        `json:"KeyPrefix"`
	Channel   string        `json:"Channel"`
	TTL       time.Duration `json:"TTL"`
}

// KafkaConfig contains Kafka producer settings for the Kafka sink.
type KafkaConfig struct {
	Brokers        []string      `json:"Brokers"`
	Topic          string        `json:"Topic"`
	Compression    string        `json:"Compression"`
	RequiredAcks   int           `json:"RequiredAcks"`
	MaxRetries     int           `json:"MaxRetries"`
	RetryBackoff   time.Duration `json:"RetryBackoff"`
	FlushFrequency time.Duration `json:"FlushFrequency"`
	FlushMessages  int           `json:"FlushMessages"`
	Timeout        time.Duration `json:"Timeout"`
	EnableTLS      bool          `json:"EnableTLS"`
	TLSCertFile    string        `json:"TLSCertFile"`
	TLSKeyFile     string        `json:"TLSKeyFile"`
	TLSCAFile      string        `json:"TLSCAFile"`
	SASLEnabled    bool          `json:"SASLEnabled"`
	SASLMechanism  string        `json:"SASLMechanism"`
	SASLUser       string        `json:"SASLUser"`
	SASLPassword   string        `json:"SASLPassword"`
}

// SOCKSConfig contains SOCKS5 proxy settings used by remote sinks.
type SOCKSConfig struct {
	Host string `json:"Host"`
	Port int    `json:"Port"`
}

// MetricsConfig enables the Prometheus endpoint when Address is set.
type MetricsConfig struct {
	Address string `json:"Address"`
}

// StatsReportConfig controls the periodic stats log line. An empty Schedule disables it.
type StatsReportConfig struct {
	Schedule string `json:"Schedule"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		KeepAlive: KeepAliveConfig{
			IntervalMs: 100,
		},
		Presence: PresenceConfig{
			Title: "Keep-alive running",
			Text:  "Select to return to the application",
		},
		Heartbeat: HeartbeatConfig{
			ProbeInterval: 5 * time.Second,
		},
		Sink: SinkConfig{
			Type: SinkLog,
			File: FileSinkConfig{
				FilePath:   "log/KeepAliveAgent/heartbeat.jsonl",
				MaxSizeMB:  50,
				MaxBackups: 3,
			},
			Redis: RedisSinkConfig{
				Address:   "localhost:6379",
				KeyPrefix: "KEEPALIVE:",
				TTL:       5 * time.Second,
			},
			Kafka: KafkaConfig{
				Brokers:        []string{"localhost:9092"},
				Topic:          "keepalive-heartbeat",
				Compression:    "snappy",
				RequiredAcks:   1,
				MaxRetries:     3,
				RetryBackoff:   100 * time.Millisecond,
				FlushFrequency: 500 * time.Millisecond,
				FlushMessages:  100,
				Timeout:        10 * time.Second,
			},
		},
		StatsReport: StatsReportConfig{
			Schedule: "@every 1m",
		},
	}
}

// Merge applies non-zero values from other to this config.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	if other.Agent.ID != "" {
		c.Agent.ID = other.Agent.ID
	}
	if other.Agent.Hostname != "" {
		c.Agent.Hostname = other.Agent.Hostname
	}

	if other.KeepAlive.IntervalMs != 0 {
		c.KeepAlive.IntervalMs = other.KeepAlive.IntervalMs
	}
	c.KeepAlive.OverlapAllowed = other.KeepAlive.OverlapAllowed

	c.Presence.Disabled = other.Presence.Disabled
	if other.Presence.Title != "" {
		c.Presence.Title = other.Presence.Title
	}
	if other.Presence.Text != "" {
		c.Presence.Text = other.Presence.Text
	}
	if other.Presence.Action != "" {
		c.Presence.Action = other.Presence.Action
	}

	if other.Heartbeat.ProbeInterval != 0 {
		c.Heartbeat.ProbeInterval = other.Heartbeat.ProbeInterval
	}

	c.Sink.merge(&other.Sink)

	if other.SOCKSProxy.Host != "" {
		c.SOCKSProxy.Host = other.SOCKSProxy.Host
	}
	if other.SOCKSProxy.Port != 0 {
		c.SOCKSProxy.Port = other.SOCKSProxy.Port
	}

	if other.Metrics.Address != "" {
		c.Metrics.Address = other.Metrics.Address
	}
	if other.StatsReport.Schedule != "" {
		c.StatsReport.Schedule = other.StatsReport.Schedule
	}
}

func (s *SinkConfig) merge(other *SinkConfig) {
	if other.Type != "" {
		s.Type = other.Type
	}

	if other.File.FilePath != "" {
		s.File.FilePath = other.File.FilePath
	}
	if other.File.MaxSizeMB != 0 {
		s.File.MaxSizeMB = other.File.MaxSizeMB
	}
	if other.File.MaxBackups != 0 {
		s.File.MaxBackups = other.File.MaxBackups
	}
	s.File.Compress = other.File.Compress

	if other.Redis.Address != "" {
		s.Redis.Address = other.Redis.Address
	}
	if other.Redis.Password != "" {
		s.Redis.Password = other.Redis.Password
	}
	if other.Redis.DB != 0 {
		s.Redis.DB = other.Redis.DB
	}
	if other.Redis.KeyPrefix != "" {
		s.Redis.KeyPrefix = other.Redis.KeyPrefix
	}
	if other.Redis.Channel != "" {
		s.Redis.Channel = other.Redis.Channel
	}
	if other.Redis.TTL != 0 {
		s.Redis.TTL = other.Redis.TTL
	}

	k, o := &s.Kafka, &other.Kafka
	if len(o.Brokers) > 0 {
		k.Brokers = o.Brokers
	}
	if o.Topic != "" {
		k.Topic = o.Topic
	}
	if o.Compression != "" {
		k.Compression = o.Compression
	}
	if o.RequiredAcks != 0 {
		k.RequiredAcks = o.RequiredAcks
	}
	if o.MaxRetries != 0 {
		k.MaxRetries = o.MaxRetries
	}
	if o.RetryBackoff != 0 {
		k.RetryBackoff = o.RetryBackoff
	}
	if o.FlushFrequency != 0 {
		k.FlushFrequency = o.FlushFrequency
	}
	if o.FlushMessages != 0 {
		k.FlushMessages = o.FlushMessages
	}
	if o.Timeout != 0 {
		k.Timeout = o.Timeout
	}
	k.EnableTLS = o.EnableTLS
	if o.TLSCertFile != "" {
		k.TLSCertFile = o.TLSCertFile
	}
	if o.TLSKeyFile != "" {
		k.TLSKeyFile = o.TLSKeyFile
	}
	if o.TLSCAFile != "" {
		k.TLSCAFile = o.TLSCAFile
	}
	k.SASLEnabled = o.SASLEnabled
	if o.SASLMechanism != "" {
		k.SASLMechanism = o.SASLMechanism
	}
	if o.SASLUser != "" {
		k.SASLUser = o.SASLUser
	}
	if o.SASLPassword != "" {
		k.SASLPassword = o.SASLPassword
	}
}

// Validate reports configuration values the agent cannot run with.
func (c *Config) Validate() error {
	if c.KeepAlive.IntervalMs <= 0 {
		return fmt.Errorf("KeepAlive.IntervalMs must be positive, got %d", c.KeepAlive.IntervalMs)
	}
	if c.Heartbeat.ProbeInterval < 0 {
		return fmt.Errorf("Heartbeat.ProbeInterval must not be negative, got %s", c.Heartbeat.ProbeInterval)
	}

	switch strings.ToLower(c.Sink.Type) {
	case SinkLog, SinkFile:
	case SinkRedis:
		if c.Sink.Redis.Address == "" {
			return fmt.Errorf("Sink.Type=%q requires Sink.Redis.Address", c.Sink.Type)
		}
	case SinkKafka:
		if len(c.Sink.Kafka.Brokers) == 0 || c.Sink.Kafka.Topic == "" {
			return fmt.Errorf("Sink.Type=%q requires Sink.Kafka.Brokers and Sink.Kafka.Topic", c.Sink.Type)
		}
	default:
		return fmt.Errorf("unknown sink type: %s (supported: log, file, redis, kafka)", c.Sink.Type)
	}
	return nil
}
