package sink

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"keepaliveagent/internal/config"
	"keepaliveagent/internal/heartbeat"
	"keepaliveagent/internal/logger"
)

func init() {
	_ = logger.Init(logger.Config{Level: "disabled"})
}

func testBeat(seq uint64) *heartbeat.Beat {
	return &heartbeat.Beat{
		Seq:       seq,
		AgentID:   "EQP-01",
		Hostname:  "host-01",
		Timestamp: time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
		UptimeMs:  int64(seq) * 100,
		RSSBytes:  12 << 20,
	}
}

func TestNew_SelectsSinkByType(t *testing.T) {
	mr := miniredis.RunT(t)

	tests := []struct {
		name    string
		mutate  func(c *config.Config)
		want    string
		wantErr bool
	}{
		{"default is log", func(c *config.Config) { c.Sink.Type = "" }, "*sink.LogSink", false},
		{"log", func(c *config.Config) { c.Sink.Type = "LOG" }, "*sink.LogSink", false},
		{"file", func(c *config.Config) {
			c.Sink.Type = "file"
			c.Sink.File.FilePath = filepath.Join(t.TempDir(), "hb.jsonl")
		}, "*sink.FileSink", false},
		{"redis", func(c *config.Config) {
			c.Sink.Type = "redis"
			c.Sink.Redis.Address = mr.Addr()
		}, "*sink.RedisSink", false},
		{"unknown", func(c *config.Config) { c.Sink.Type = "mqtt" }, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.mutate(cfg)

			s, err := New(cfg)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			defer s.Close()

			if got := fmt.Sprintf("%T", s); got != tt.want {
				t.Errorf("sink type = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestLogSink_SendAndClose(t *testing.T) {
	s := NewLogSink()
	if err := s.Send(context.Background(), testBeat(1)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	s.Close()
	if err := s.Send(context.Background(), testBeat(2)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestFileSink_WritesJSONLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "heartbeat.jsonl")
	s, err := NewFileSink(config.FileSinkConfig{FilePath: path, MaxSizeMB: 1, MaxBackups: 1})
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	for i := uint64(1); i <= 3; i++ {
		if err := s.Send(context.Background(), testBeat(i)); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer f.Close()

	var seqs []uint64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var b heartbeat.Beat
		if err := json.Unmarshal(sc.Bytes(), &b); err != nil {
			t.Fatalf("line is not JSON: %q", sc.Text())
		}
		seqs = append(seqs, b.Seq)
	}
	if len(seqs) != 3 || seqs[0] != 1 || seqs[2] != 3 {
		t.Errorf("unexpected seqs: %v", seqs)
	}

	if err := s.Send(context.Background(), testBeat(4)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed after Close, got %v", err)
	}
}

func TestFileSink_RequiresPath(t *testing.T) {
	if _, err := NewFileSink(config.FileSinkConfig{}); err == nil {
		t.Fatal("expected error for empty FilePath")
	}
}

func TestRedisSink_SetsKeyWithTTL(t *testing.T) {
	mr := miniredis.RunT(t)

	s := NewRedisSink(config.RedisSinkConfig{
		Address:   mr.Addr(),
		DB:        3,
		KeyPrefix: "KEEPALIVE:",
		TTL:       5 * time.Second,
	}, nil)
	defer s.Close()

	if err := s.Send(context.Background(), testBeat(7)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	mr.Select(3)
	val, err := mr.Get("KEEPALIVE:EQP-01")
	if err != nil {
		t.Fatalf("expected KEEPALIVE:EQP-01 in Redis: %v", err)
	}
	var b heartbeat.Beat
	if err := json.Unmarshal([]byte(val), &b); err != nil {
		t.Fatalf("stored value is not JSON: %v", err)
	}
	if b.Seq != 7 {
		t.Errorf("stored seq = %d, want 7", b.Seq)
	}
	if ttl := mr.TTL("KEEPALIVE:EQP-01"); ttl != 5*time.Second {
		t.Errorf("TTL = %v, want 5s", ttl)
	}

	// Key expires once beats stop.
	mr.FastForward(6 * time.Second)
	if mr.Exists("KEEPALIVE:EQP-01") {
		t.Error("expected key to expire without further beats")
	}
}

func TestRedisSink_PublishesOnChannel(t *testing.T) {
	mr := miniredis.RunT(t)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	sub := client.Subscribe(context.Background(), "keepalive")
	defer sub.Close()
	if _, err := sub.Receive(context.Background()); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	s := NewRedisSink(config.RedisSinkConfig{
		Address:   mr.Addr(),
		KeyPrefix: "KEEPALIVE:",
		Channel:   "keepalive",
		TTL:       time.Second,
	}, nil)
	defer s.Close()

	if err := s.Send(context.Background(), testBeat(1)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	msg, err := sub.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("no published message: %v", err)
	}
	if !strings.Contains(msg.Payload, `"agent_id":"EQP-01"`) {
		t.Errorf("unexpected payload: %s", msg.Payload)
	}
}

func TestRedisSink_ServerDown(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	s := NewRedisSink(config.RedisSinkConfig{Address: addr, TTL: time.Second}, nil)
	defer s.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.Send(ctx, testBeat(1)); err == nil {
		t.Fatal("expected error when Redis is down")
	}
}

func TestKafkaSink_SendsKeyedMessage(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Errors = true
	producer := mocks.NewAsyncProducer(t, cfg)

	producer.ExpectInputWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, _ := msg.Key.Encode()
		if string(key) != "EQP-01" {
			return errors.New("unexpected key " + string(key))
		}
		if msg.Topic != "keepalive-heartbeat" {
			return errors.New("unexpected topic " + msg.Topic)
		}
		val, _ := msg.Value.Encode()
		var b heartbeat.Beat
		if err := json.Unmarshal(val, &b); err != nil {
			return err
		}
		if b.Seq != 1 {
			return errors.New("unexpected seq")
		}
		return nil
	})

	s := newKafkaSink(producer, "keepalive-heartbeat")
	if err := s.Send(context.Background(), testBeat(1)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if s.Failed() != 0 {
		t.Errorf("Failed() = %d, want 0", s.Failed())
	}
	if err := s.Send(context.Background(), testBeat(2)); !errors.Is(err, ErrClosed) {
		t.Errorf("expected ErrClosed, got %v", err)
	}
}

func TestKafkaSink_CountsDeliveryFailures(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Errors = true
	producer := mocks.NewAsyncProducer(t, cfg)
	producer.ExpectInputAndFail(sarama.ErrNotLeaderForPartition)
	producer.ExpectInputAndSucceed()

	s := newKafkaSink(producer, "keepalive-heartbeat")
	for i := uint64(1); i <= 2; i++ {
		if err := s.Send(context.Background(), testBeat(i)); err != nil {
			t.Fatalf("Send %d failed: %v", i, err)
		}
	}
	s.Close()

	if s.Failed() != 1 {
		t.Errorf("Failed() = %d, want 1", s.Failed())
	}
}

func TestNewSaramaConfig(t *testing.T) {
	base := config.DefaultConfig().Sink.Kafka

	t.Run("defaults", func(t *testing.T) {
		c, err := newSaramaConfig(base, config.SOCKSConfig{})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Producer.Compression != sarama.CompressionSnappy {
			t.Errorf("compression = %v, want snappy", c.Producer.Compression)
		}
		if !c.Producer.Return.Errors || c.Producer.Return.Successes {
			t.Error("expected errors returned and successes discarded")
		}
		if c.Net.Proxy.Enable {
			t.Error("proxy should be disabled without SOCKS settings")
		}
	})

	t.Run("scram and proxy", func(t *testing.T) {
		k := base
		k.SASLEnabled = true
		k.SASLMechanism = "scram-sha-512"
		k.SASLUser = "agent"
		k.RequiredAcks = -1
		k.Compression = "zstd"

		c, err := newSaramaConfig(k, config.SOCKSConfig{Host: "127.0.0.1", Port: 1080})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if c.Net.SASL.Mechanism != sarama.SASLTypeSCRAMSHA512 {
			t.Errorf("mechanism = %s", c.Net.SASL.Mechanism)
		}
		client := c.Net.SASL.SCRAMClientGeneratorFunc()
		if err := client.Begin("agent", "secret", ""); err != nil {
			t.Errorf("SCRAM Begin failed: %v", err)
		}
		if c.Producer.RequiredAcks != sarama.WaitForAll {
			t.Errorf("acks = %v, want WaitForAll", c.Producer.RequiredAcks)
		}
		if c.Producer.Compression != sarama.CompressionZSTD {
			t.Errorf("compression = %v, want zstd", c.Producer.Compression)
		}
		if !c.Net.Proxy.Enable || c.Net.Proxy.Dialer == nil {
			t.Error("expected SOCKS proxy dialer")
		}
	})

	t.Run("bad CA file", func(t *testing.T) {
		k := base
		k.EnableTLS = true
		k.TLSCAFile = filepath.Join(t.TempDir(), "missing-ca.pem")
		if _, err := newSaramaConfig(k, config.SOCKSConfig{}); err == nil {
			t.Fatal("expected error for missing CA file")
		}
	})

	t.Run("unparseable CA", func(t *testing.T) {
		ca := filepath.Join(t.TempDir(), "ca.pem")
		os.WriteFile(ca, []byte("not a certificate"), 0644)
		k := base
		k.EnableTLS = true
		k.TLSCAFile = ca
		if _, err := newSaramaConfig(k, config.SOCKSConfig{}); err == nil {
			t.Fatal("expected error for unparseable CA")
		}
	})
}
