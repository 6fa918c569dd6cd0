package keepalive

import "errors"

var (
	// ErrPresence is returned by Start when the presence indicator cannot be shown.
	ErrPresence = errors.New("keepalive: presence indicator unavailable")
	// ErrExecutor is returned by Start when the foreground executor cannot be created.
	ErrExecutor = errors.New("keepalive: executor unavailable")
	// ErrInvalidInterval is returned by Start and Reconfigure for a non-positive interval.
	ErrInvalidInterval = errors.New("keepalive: interval must be positive")

	// ErrExecutorClosed is returned by Submit after Close.
	ErrExecutorClosed = errors.New("keepalive: executor closed")
	// ErrExecutorBusy is returned by Submit when the executor cannot accept more work.
	ErrExecutorBusy = errors.New("keepalive: executor busy")
)
