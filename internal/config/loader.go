package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"keepaliveagent/internal/logger"
)

// rawConfig mirrors Config with durations as strings ("250ms", "5s").
type rawConfig struct {
	Agent       AgentConfig       `json:"Agent"`
	KeepAlive   KeepAliveConfig   `json:"KeepAlive"`
	Presence    PresenceConfig    `json:"Presence"`
	Heartbeat   rawHeartbeat      `json:"Heartbeat"`
	Sink        rawSinkConfig     `json:"Sink"`
	SOCKSProxy  SOCKSConfig       `json:"SocksProxy"`
	Metrics     MetricsConfig     `json:"Metrics"`
	StatsReport StatsReportConfig `json:"StatsReport"`
}

type rawHeartbeat struct {
	ProbeInterval string `json:"ProbeInterval"`
}

type rawSinkConfig struct {
	Type  string         `json:"Type"`
	File  FileSinkConfig `json:"File"`
	Redis rawRedisSink   `json:"Redis"`
	Kafka rawKafkaConfig `json:"Kafka"`
}

type rawRedisSink struct {
	Address   string `json:"Address"`
	Password  string `json:"Password"`
	DB        int    `json:"DB"`
	KeyPrefix string `json:"KeyPrefix"`
	Channel   string `json:"Channel"`
	TTL       string `json:"TTL"`
}

type rawKafkaConfig struct {
	Brokers        []string `json:"Brokers"`
	Topic          string   `json:"Topic"`
	Compression    string   `json:"Compression"`
	RequiredAcks   int      `json:"RequiredAcks"`
	MaxRetries     int      `json:"MaxRetries"`
	RetryBackoff   string   `json:"RetryBackoff"`
	FlushFrequency string   `json:"FlushFrequency"`
	FlushMessages  int      `json:"FlushMessages"`
	Timeout        string   `json:"Timeout"`
	EnableTLS      bool     `json:"EnableTLS"`
	TLSCertFile    string   `json:"TLSCertFile"`
	TLSKeyFile     string   `json:"TLSKeyFile"`
	TLSCAFile      string   `json:"TLSCAFile"`
	SASLEnabled    bool     `json:"SASLEnabled"`
	SASLMechanism  string   `json:"SASLMechanism"`
	SASLUser       string   `json:"SASLUser"`
	SASLPassword   string   `json:"SASLPassword"`
}

type rawLoggingConfig struct {
	Level      string `json:"Level"`
	FilePath   string `json:"FilePath"`
	Format     string `json:"Format"`
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	MaxAgeDays int    `json:"MaxAgeDays"`
	Compress   bool   `json:"Compress"`
	Console    bool   `json:"Console"`
}

// Load reads configuration from the specified file path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse parses configuration from JSON bytes, applies defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	var raw rawConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	parsed, err := convertRawConfig(&raw)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	cfg.Merge(parsed)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func convertRawConfig(raw *rawConfig) (*Config, error) {
	cfg := &Config{
		Agent:       raw.Agent,
		KeepAlive:   raw.KeepAlive,
		Presence:    raw.Presence,
		SOCKSProxy:  raw.SOCKSProxy,
		Metrics:     raw.Metrics,
		StatsReport: raw.StatsReport,
	}

	var err error
	if cfg.Heartbeat.ProbeInterval, err = parseDuration("Heartbeat.ProbeInterval", raw.Heartbeat.ProbeInterval); err != nil {
		return nil, err
	}

	cfg.Sink.Type = raw.Sink.Type
	cfg.Sink.File = raw.Sink.File
	cfg.Sink.Redis = RedisSinkConfig{
		Address:   raw.Sink.Redis.Address,
		Password:  raw.Sink.Redis.Password,
		DB:        raw.Sink.Redis.DB,
		KeyPrefix: raw.Sink.Redis.KeyPrefix,
		Channel:   raw.Sink.Redis.Channel,
	}
	if cfg.Sink.Redis.TTL, err = parseDuration("Sink.Redis.TTL", raw.Sink.Redis.TTL); err != nil {
		return nil, err
	}

	kafka, err := convertRawKafka(&raw.Sink.Kafka)
	if err != nil {
		return nil, err
	}
	cfg.Sink.Kafka = *kafka

	return cfg, nil
}

func convertRawKafka(raw *rawKafkaConfig) (*KafkaConfig, error) {
	kafka := &KafkaConfig{
		Brokers:       raw.Brokers,
		Topic:         raw.Topic,
		Compression:   raw.Compression,
		RequiredAcks:  raw.RequiredAcks,
		MaxRetries:    raw.MaxRetries,
		FlushMessages: raw.FlushMessages,
		EnableTLS:     raw.EnableTLS,
		TLSCertFile:   raw.TLSCertFile,
		TLSKeyFile:    raw.TLSKeyFile,
		TLSCAFile:     raw.TLSCAFile,
		SASLEnabled:   raw.SASLEnabled,
		SASLMechanism: raw.SASLMechanism,
		SASLUser:      raw.SASLUser,
		SASLPassword:  raw.SASLPassword,
	}

	var err error
	if kafka.RetryBackoff, err = parseDuration("Sink.Kafka.RetryBackoff", raw.RetryBackoff); err != nil {
		return nil, err
	}
	if kafka.FlushFrequency, err = parseDuration("Sink.Kafka.FlushFrequency", raw.FlushFrequency); err != nil {
		return nil, err
	}
	if kafka.Timeout, err = parseDuration("Sink.Kafka.Timeout", raw.Timeout); err != nil {
		return nil, err
	}
	return kafka, nil
}

// parseDuration treats an empty string as "not set".
func parseDuration(field, s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid %s duration: %w", field, err)
	}
	return d, nil
}

// LoadLogging reads logging configuration from the specified file path.
func LoadLogging(path string) (*logger.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read logging config file: %w", err)
	}
	return ParseLogging(data)
}

// ParseLogging parses logging configuration from JSON bytes.
func ParseLogging(data []byte) (*logger.Config, error) {
	var raw rawLoggingConfig
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse logging config JSON: %w", err)
	}

	lc := logger.DefaultConfig()
	if raw.Level != "" {
		lc.Level = raw.Level
	}
	if raw.FilePath != "" {
		lc.FilePath = raw.FilePath
	}
	if raw.Format != "" {
		lc.Format = raw.Format
	}
	if raw.MaxSizeMB != 0 {
		lc.MaxSizeMB = raw.MaxSizeMB
	}
	if raw.MaxBackups != 0 {
		lc.MaxBackups = raw.MaxBackups
	}
	if raw.MaxAgeDays != 0 {
		lc.MaxAgeDays = raw.MaxAgeDays
	}
	lc.Compress = raw.Compress
	lc.Console = raw.Console

	return &lc, nil
}

// LoadSplit loads KeepAliveAgent.json and Logging.json.
func LoadSplit(configPath, loggingPath string) (*Config, *logger.Config, error) {
	cfg, err := Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	lc, err := LoadLogging(loggingPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load logging config: %w", err)
	}

	return cfg, lc, nil
}

// GetHostname returns the configured hostname or the system hostname.
func GetHostname(cfg *Config) string {
	if cfg.Agent.Hostname != "" {
		return cfg.Agent.Hostname
	}
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// GetAgentID returns Agent.ID, falling back to the hostname.
func GetAgentID(cfg *Config) string {
	if cfg.Agent.ID != "" {
		return cfg.Agent.ID
	}
	return GetHostname(cfg)
}
