//go:build !windows

package service

import (
	"context"
	"os"
	"os/signal"
	"sync"
	"syscall"

	ks "github.com/kardianos/service"

	"keepaliveagent/internal/logger"
)

// UnixService runs the agent in the foreground and turns SIGINT/SIGTERM into
// context cancellation. A second signal abandons the graceful stop.
type UnixService struct {
	runFunc RunFunc
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
}

// NewService creates a new platform-specific service.
func NewService(runFunc RunFunc) Service {
	return &UnixService{
		runFunc: runFunc,
	}
}

// Run starts runFunc and waits for it or for a shutdown signal.
func (s *UnixService) Run(ctx context.Context) error {
	log := logger.WithComponent("unix-service")

	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	sigChan := make(chan os.Signal, 2)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	done := make(chan error, 1)
	go func() {
		done <- s.runFunc(ctx)
	}()

	log.Info().Bool("managed", s.IsService()).Msg("Service started")

	select {
	case sig := <-sigChan:
		log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		s.Stop()

		select {
		case err := <-done:
			return err
		case sig := <-sigChan:
			log.Warn().Str("signal", sig.String()).Msg("Received second signal, forcing exit")
			return nil
		}

	case err := <-done:
		return err
	}
}

// Stop requests the service to stop.
func (s *UnixService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil && !s.stopped {
		s.stopped = true
		s.cancel()
	}
	return nil
}

// IsService reports whether the process was started by systemd, launchd or
// another service manager rather than from a terminal.
func (s *UnixService) IsService() bool {
	return !ks.Interactive()
}
