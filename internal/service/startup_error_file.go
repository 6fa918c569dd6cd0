package service

import (
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// StartupErrorFile is the file name written by WriteStartupErrorFile.
const StartupErrorFile = "startup-error.log"

// WriteStartupErrorFile records err in logDir so a failed start is visible
// even when the logger never came up. Only the most recent error is kept.
// It returns the file path, or "" if the file could not be written.
func WriteStartupErrorFile(logDir string, err error) string {
	_ = os.MkdirAll(logDir, 0755)

	path := filepath.Join(logDir, StartupErrorFile)
	f, ferr := os.Create(path)
	if ferr != nil {
		return ""
	}
	defer f.Close()

	ts := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(f, "[%s] STARTUP ERROR\n%v\n", ts, err)
	return path
}
