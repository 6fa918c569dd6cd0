// Package sink publishes heartbeats to their destination.
package sink

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"keepaliveagent/internal/config"
	"keepaliveagent/internal/heartbeat"
	"keepaliveagent/internal/logger"
	"keepaliveagent/internal/network"
)

// ErrClosed is returned by Send after Close.
var ErrClosed = errors.New("sink is closed")

// Sink defines the interface for publishing heartbeats.
type Sink interface {
	// Send publishes a single beat.
	Send(ctx context.Context, beat *heartbeat.Beat) error

	// Close releases any resources held by the sink.
	Close() error
}

// New creates a Sink based on the configuration.
func New(cfg *config.Config) (Sink, error) {
	log := logger.WithComponent("sink-factory")

	sinkType := strings.ToLower(cfg.Sink.Type)
	if sinkType == "" {
		sinkType = config.SinkLog
	}

	log.Info().
		Str("sink_type", sinkType).
		Msg("Creating sink")

	switch sinkType {
	case config.SinkLog:
		return NewLogSink(), nil
	case config.SinkFile:
		return NewFileSink(cfg.Sink.File)
	case config.SinkRedis:
		dial, err := network.ContextDialer(cfg.SOCKSProxy.Host, cfg.SOCKSProxy.Port)
		if err != nil {
			return nil, err
		}
		return NewRedisSink(cfg.Sink.Redis, dial), nil
	case config.SinkKafka:
		return NewKafkaSink(cfg.Sink.Kafka, cfg.SOCKSProxy)
	default:
		return nil, fmt.Errorf("unknown sink type: %s (supported: log, file, redis, kafka)", sinkType)
	}
}
