package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"keepaliveagent/internal/config"
	"keepaliveagent/internal/heartbeat"
	"keepaliveagent/internal/logger"
	"keepaliveagent/internal/network"
)

// RedisSink stores the latest beat under <KeyPrefix><AgentID> with a TTL, so
// the key disappears when the agent stops beating. When Channel is set the
// beat is also published there.
type RedisSink struct {
	client    *redis.Client
	keyPrefix string
	channel   string
	ttl       time.Duration

	mu     sync.RWMutex
	closed bool
}

// NewRedisSink creates a Redis sink. dial may be nil for direct connections.
func NewRedisSink(cfg config.RedisSinkConfig, dial network.ContextDialFunc) *RedisSink {
	opts := &redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if dial != nil {
		opts.Dialer = dial
	}

	s := &RedisSink{
		client:    redis.NewClient(opts),
		keyPrefix: cfg.KeyPrefix,
		channel:   cfg.Channel,
		ttl:       cfg.TTL,
	}

	log := logger.WithComponent("redis-sink")
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := s.client.Ping(ctx).Err(); err != nil {
		// Not fatal: the client reconnects on the next Send.
		log.Warn().Err(err).Str("address", cfg.Address).Msg("Redis not reachable yet")
	}
	log.Info().
		Str("address", cfg.Address).
		Str("key_prefix", cfg.KeyPrefix).
		Str("channel", cfg.Channel).
		Dur("ttl", cfg.TTL).
		Msg("RedisSink initialized")

	return s
}

// Key returns the Redis key holding agentID's latest beat.
func (s *RedisSink) Key(agentID string) string {
	return s.keyPrefix + agentID
}

// Send stores beat and optionally publishes it in one pipeline round trip.
func (s *RedisSink) Send(ctx context.Context, beat *heartbeat.Beat) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}

	data, err := json.Marshal(beat)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.Key(beat.AgentID), data, s.ttl)
	if s.channel != "" {
		pipe.Publish(ctx, s.channel, data)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write heartbeat to redis: %w", err)
	}
	return nil
}

// Close closes the Redis client.
func (s *RedisSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.client.Close()
}
