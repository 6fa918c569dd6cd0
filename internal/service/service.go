// Package service integrates the agent with the host service manager: running
// under systemd or the Windows SCM, and installing with a restart policy that
// brings the agent back when the host kills it.
package service

import "context"

// ServiceName is the name registered with the host service manager.
const ServiceName = "KeepAliveAgent"

// Service defines the interface for platform-specific service management.
type Service interface {
	// Run starts the service. It blocks until the service is stopped.
	Run(ctx context.Context) error

	// Stop requests the service to stop.
	Stop() error

	// IsService returns true if running under a service manager.
	IsService() bool
}

// RunFunc is the main function that runs the agent logic. Cancelling its
// context is the deactivation request.
type RunFunc func(ctx context.Context) error
