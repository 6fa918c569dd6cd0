//go:build !windows

package presence

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	"keepaliveagent/internal/logger"
)

// SystemdIndicator reports presence through sd_notify. When NOTIFY_SOCKET is
// unset (not started by systemd) every notification is a no-op.
//
// SIGUSR1 while shown runs the notice's action, so
// `systemctl kill -s USR1 KeepAliveAgent` acts like tapping the notification.
type SystemdIndicator struct {
	notice Notice

	mu       sync.Mutex
	shown    bool
	watchdog time.Duration
	lastPing time.Time
	sigCh    chan os.Signal
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New returns the platform indicator for notice.
func New(notice Notice) Indicator {
	return NewSystemdIndicator(notice)
}

// NewSystemdIndicator creates a hidden SystemdIndicator.
func NewSystemdIndicator(notice Notice) *SystemdIndicator {
	return &SystemdIndicator{notice: notice}
}

// Show sends READY and the status line, arms the watchdog and starts
// listening for the activation signal. Showing twice is a no-op.
func (s *SystemdIndicator) Show(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shown {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	sent, err := daemon.SdNotify(false, daemon.SdNotifyReady+"\nSTATUS="+s.notice.Status())
	if err != nil {
		return fmt.Errorf("failed to notify systemd: %w", err)
	}

	wd, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return fmt.Errorf("failed to read watchdog settings: %w", err)
	}
	s.watchdog = wd
	s.lastPing = time.Time{}

	s.sigCh = make(chan os.Signal, 1)
	s.stopCh = make(chan struct{})
	signal.Notify(s.sigCh, syscall.SIGUSR1)
	s.wg.Add(1)
	go s.listen(s.sigCh, s.stopCh)

	s.shown = true

	log := logger.WithComponent("presence")
	log.Info().
		Bool("systemd", sent).
		Dur("watchdog", wd).
		Str("status", s.notice.Status()).
		Msg("Presence indicator shown")
	return nil
}

// Pulse pings the systemd watchdog, at most once per half watchdog period.
func (s *SystemdIndicator) Pulse(now time.Time) {
	s.mu.Lock()
	if !s.shown || s.watchdog <= 0 || (!s.lastPing.IsZero() && now.Sub(s.lastPing) < s.watchdog/2) {
		s.mu.Unlock()
		return
	}
	s.lastPing = now
	s.mu.Unlock()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyWatchdog); err != nil {
		log := logger.WithComponent("presence")
		log.Warn().Err(err).Msg("Failed to ping watchdog")
	}
}

// Activate runs the notice's action.
func (s *SystemdIndicator) Activate(ctx context.Context) error {
	return runAction(ctx, s.notice.Action)
}

// Close sends STOPPING and stops the signal listener. It is idempotent.
func (s *SystemdIndicator) Close() error {
	s.mu.Lock()
	if !s.shown {
		s.mu.Unlock()
		return nil
	}
	s.shown = false
	signal.Stop(s.sigCh)
	close(s.stopCh)
	s.mu.Unlock()

	s.wg.Wait()

	if _, err := daemon.SdNotify(false, daemon.SdNotifyStopping); err != nil {
		return fmt.Errorf("failed to notify systemd: %w", err)
	}
	log := logger.WithComponent("presence")
	log.Info().Msg("Presence indicator closed")
	return nil
}

func (s *SystemdIndicator) listen(sigCh <-chan os.Signal, stopCh <-chan struct{}) {
	defer s.wg.Done()
	log := logger.WithComponent("presence")

	for {
		select {
		case <-stopCh:
			return
		case <-sigCh:
			log.Info().Str("action", s.notice.Action).Msg("Presence indicator activated")
			ctx, cancel := context.WithTimeout(context.Background(), activateTimeout)
			if err := s.Activate(ctx); err != nil {
				log.Error().Err(err).Msg("Activation action failed")
			}
			cancel()
		}
	}
}
