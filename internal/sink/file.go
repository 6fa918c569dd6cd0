package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"keepaliveagent/internal/config"
	"keepaliveagent/internal/heartbeat"
	"keepaliveagent/internal/logger"
)

// FileSink appends beats as JSON lines to a rotated file.
type FileSink struct {
	filePath string
	writer   *lumberjack.Logger
	mu       sync.Mutex
	closed   bool
}

// NewFileSink creates a new FileSink with the given configuration.
func NewFileSink(cfg config.FileSinkConfig) (*FileSink, error) {
	if cfg.FilePath == "" {
		return nil, fmt.Errorf("file sink requires a FilePath")
	}

	dir := filepath.Dir(cfg.FilePath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create heartbeat directory: %w", err)
		}
	}

	writer := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		Compress:   cfg.Compress,
	}

	log := logger.WithComponent("file-sink")
	log.Info().
		Str("file_path", cfg.FilePath).
		Int("max_size_mb", cfg.MaxSizeMB).
		Msg("FileSink initialized")

	return &FileSink{filePath: cfg.FilePath, writer: writer}, nil
}

// Send appends beat as one JSON line.
func (s *FileSink) Send(_ context.Context, beat *heartbeat.Beat) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	data, err := json.Marshal(beat)
	if err != nil {
		return fmt.Errorf("failed to marshal heartbeat: %w", err)
	}
	if _, err := s.writer.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write to file: %w", err)
	}
	return nil
}

// Close releases resources held by the FileSink.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.writer.Close()
}
