//go:build !windows

package service

// ReportStartupError is a no-op outside Windows; systemd captures stderr in the journal.
func ReportStartupError(serviceName string, err error) {}
