// Package logger provides the agent's zerolog logger with rotated file output.
package logger

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

const consoleQueueLen = 1000

// Config holds the logger configuration.
type Config struct {
	Level      string `json:"Level"`
	FilePath   string `json:"FilePath"`
	Format     string `json:"Format"` // "json" (default) or "fixed"
	MaxSizeMB  int    `json:"MaxSizeMB"`
	MaxBackups int    `json:"MaxBackups"`
	MaxAgeDays int    `json:"MaxAgeDays"`
	Compress   bool   `json:"Compress"`
	Console    bool   `json:"Console"`
}

// DefaultConfig returns sensible defaults for logging.
func DefaultConfig() Config {
	return Config{
		Level:      "info",
		FilePath:   "log/KeepAliveAgent/agent.log",
		Format:     "json",
		MaxSizeMB:  10,
		MaxBackups: 5,
		MaxAgeDays: 30,
		Compress:   true,
		Console:    false,
	}
}

// outputs are the writers opened by one Init call.
type outputs struct {
	file    *lumberjack.Logger
	console *asyncWriter
}

func (o outputs) close() (consoleDropped uint64) {
	if o.file != nil {
		_ = o.file.Close()
	}
	if o.console != nil {
		o.console.Close()
		consoleDropped = o.console.Dropped()
	}
	return consoleDropped
}

var (
	mu           sync.Mutex
	globalLogger = zerolog.Nop()
	current      outputs
	serviceMode  atomic.Bool
)

// SetServiceMode suppresses console output. Under a service manager there is
// no attached terminal and stdout may be a dead handle.
func SetServiceMode(enabled bool) {
	serviceMode.Store(enabled)
}

// Init (re)initializes the global logger. Calling it again for hot reload
// closes the writers of the previous call.
func Init(cfg Config) error {
	mu.Lock()
	defer mu.Unlock()

	level, levelErr := zerolog.ParseLevel(cfg.Level)
	if levelErr != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339Nano

	dropped := current.close()
	current = outputs{}

	var writers []io.Writer
	if cfg.FilePath != "" {
		w, err := openFile(cfg)
		if err != nil {
			return err
		}
		writers = append(writers, w)
	}

	console := !serviceMode.Load()
	if cfg.Console && console {
		current.console = newAsyncWriter(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}, consoleQueueLen)
		writers = append(writers, current.console)
	} else if len(writers) == 0 && console {
		writers = append(writers, os.Stdout)
	}

	globalLogger = zerolog.New(combine(writers)).With().Timestamp().Caller().Logger()

	log := WithComponent("logger")
	if levelErr != nil {
		log.Warn().Str("level", cfg.Level).Msg("Unknown log level, using info")
	}
	if dropped > 0 {
		log.Warn().Uint64("dropped", dropped).Msg("Console output dropped lines")
	}
	return nil
}

// openFile opens the rotated log file, wrapped in the fixed-column formatter
// when Format is "fixed".
func openFile(cfg Config) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
		return nil, err
	}
	current.file = &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSizeMB,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAgeDays,
		Compress:   cfg.Compress,
	}
	if strings.EqualFold(cfg.Format, "fixed") {
		return NewFixedFormatWriter(current.file), nil
	}
	return current.file, nil
}

func combine(writers []io.Writer) io.Writer {
	switch len(writers) {
	case 0:
		return io.Discard
	case 1:
		return writers[0]
	default:
		return zerolog.MultiLevelWriter(writers...)
	}
}

// WithComponent returns a logger tagged with the component name.
func WithComponent(component string) zerolog.Logger {
	return globalLogger.With().Str("component", component).Logger()
}
