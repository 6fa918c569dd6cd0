//go:build windows

package service

import (
	"fmt"

	"golang.org/x/sys/windows/svc/eventlog"
)

const eventStartupFailed = 1

// ReportStartupError writes a startup error to the Windows Event Log so that
// "net start" and Event Viewer show it even before the logger is initialized.
func ReportStartupError(serviceName string, err error) {
	// Registration fails harmlessly when the source already exists.
	_ = eventlog.InstallAsEventCreate(serviceName, eventlog.Error|eventlog.Warning|eventlog.Info)

	elog, openErr := eventlog.Open(serviceName)
	if openErr != nil {
		return
	}
	defer elog.Close()

	elog.Error(eventStartupFailed, fmt.Sprintf("%s failed to start: %v", serviceName, err))
}
