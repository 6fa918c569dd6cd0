//go:build windows

package service

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sys/windows/svc"

	"keepaliveagent/internal/logger"
)

// stopTimeout bounds how long the SCM stop request waits for runFunc.
const stopTimeout = 30 * time.Second

// WindowsService implements svc.Handler around a RunFunc.
type WindowsService struct {
	runFunc RunFunc
	cancel  context.CancelFunc
	mu      sync.Mutex
	stopped bool
}

// NewService creates a new platform-specific service.
func NewService(runFunc RunFunc) Service {
	return &WindowsService{
		runFunc: runFunc,
	}
}

// Run dispatches to the SCM when started as a service, otherwise runs
// interactively until ctx is cancelled.
func (s *WindowsService) Run(ctx context.Context) error {
	if !s.IsService() {
		ctx, cancel := context.WithCancel(ctx)
		s.mu.Lock()
		s.cancel = cancel
		s.mu.Unlock()
		return s.runFunc(ctx)
	}
	return svc.Run(ServiceName, s)
}

// Stop requests the service to stop.
func (s *WindowsService) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancel != nil && !s.stopped {
		s.stopped = true
		s.cancel()
	}
	return nil
}

// IsService returns true if running as a Windows service.
func (s *WindowsService) IsService() bool {
	isService, err := svc.IsWindowsService()
	if err != nil {
		return false
	}
	return isService
}

// Execute implements the svc.Handler interface.
func (s *WindowsService) Execute(args []string, r <-chan svc.ChangeRequest, changes chan<- svc.Status) (svcSpecificEC bool, exitCode uint32) {
	log := logger.WithComponent("windows-service")

	const acceptedCommands = svc.AcceptStop | svc.AcceptShutdown

	changes <- svc.Status{State: svc.StartPending}

	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() {
		done <- s.runFunc(ctx)
	}()

	changes <- svc.Status{State: svc.Running, Accepts: acceptedCommands}
	log.Info().Msg("Windows service started")

	for {
		select {
		case c := <-r:
			switch c.Cmd {
			case svc.Interrogate:
				changes <- c.CurrentStatus
				// Respond twice as per documentation
				time.Sleep(100 * time.Millisecond)
				changes <- c.CurrentStatus

			case svc.Stop, svc.Shutdown:
				log.Info().Msg("Received stop request from service control manager")
				changes <- svc.Status{State: svc.StopPending}
				s.Stop()

				select {
				case <-done:
				case <-time.After(stopTimeout):
					log.Warn().Dur("timeout", stopTimeout).Msg("Timeout waiting for keep-alive to stop")
				}

				changes <- svc.Status{State: svc.Stopped}
				return false, 0

			default:
				log.Warn().Int("cmd", int(c.Cmd)).Msg("Unexpected service control command")
			}

		case err := <-done:
			changes <- svc.Status{State: svc.Stopped}
			if err != nil {
				// Non-zero exit makes the SCM apply the OnFailure=restart policy.
				log.Error().Err(err).Msg("Agent exited with error")
				return true, 1
			}
			return false, 0
		}
	}
}
