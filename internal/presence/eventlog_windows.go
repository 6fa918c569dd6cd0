//go:build windows

package presence

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sys/windows/svc/eventlog"

	"keepaliveagent/internal/logger"
)

const (
	eventShown  = 100
	eventClosed = 101
)

// EventLogIndicator records presence in the Windows Event Log under Source.
// The Service Control Manager already keeps the service visible; the entries
// give operators the status line in Event Viewer.
type EventLogIndicator struct {
	notice Notice
	source string

	mu    sync.Mutex
	elog  *eventlog.Log
	shown bool
}

// New returns the platform indicator for notice.
func New(notice Notice) Indicator {
	return NewEventLogIndicator(notice, "KeepAliveAgent")
}

// NewEventLogIndicator creates a hidden indicator writing under source.
func NewEventLogIndicator(notice Notice, source string) *EventLogIndicator {
	return &EventLogIndicator{notice: notice, source: source}
}

// Show opens the event source and writes the status line. Showing twice is a no-op.
func (e *EventLogIndicator) Show(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.shown {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Registration fails harmlessly when the source already exists.
	_ = eventlog.InstallAsEventCreate(e.source, eventlog.Error|eventlog.Warning|eventlog.Info)

	elog, err := eventlog.Open(e.source)
	if err != nil {
		return fmt.Errorf("failed to open event log %s: %w", e.source, err)
	}
	if err := elog.Info(eventShown, e.notice.Status()); err != nil {
		elog.Close()
		return fmt.Errorf("failed to write event log: %w", err)
	}

	e.elog = elog
	e.shown = true
	log := logger.WithComponent("presence")
	log.Info().Str("status", e.notice.Status()).Msg("Presence indicator shown")
	return nil
}

// Activate runs the notice's action.
func (e *EventLogIndicator) Activate(ctx context.Context) error {
	return runAction(ctx, e.notice.Action)
}

// Close writes the closing entry and releases the event source. It is idempotent.
func (e *EventLogIndicator) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.shown {
		return nil
	}
	e.shown = false

	_ = e.elog.Info(eventClosed, "Keep-alive stopped")
	err := e.elog.Close()
	e.elog = nil
	if err != nil {
		return fmt.Errorf("failed to close event log: %w", err)
	}
	log := logger.WithComponent("presence")
	log.Info().Msg("Presence indicator closed")
	return nil
}
