// Package presence keeps the agent visible to the host service manager while
// a keep-alive cycle is running.
//
// On systemd hosts the indicator is the sd_notify status line plus the watchdog
// ping. On Windows it is an Event Log entry under the service's source.
package presence

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Notice is the static text shown while the agent is active.
type Notice struct {
	Title string
	Text  string
	// Action is the command run when the user activates the indicator,
	// typically one that brings the owning application to the foreground.
	Action string
}

// Status renders the one-line status reported to the host.
func (n Notice) Status() string {
	switch {
	case n.Title != "" && n.Text != "":
		return n.Title + ": " + n.Text
	case n.Title != "":
		return n.Title
	default:
		return n.Text
	}
}

// Indicator is a host-visible presence signal.
type Indicator interface {
	Show(ctx context.Context) error
	Close() error
	// Activate runs the notice's action.
	Activate(ctx context.Context) error
}

// activateTimeout bounds an action started by a host signal.
const activateTimeout = 30 * time.Second

// runAction executes action. An empty action does nothing.
func runAction(ctx context.Context, action string) error {
	fields := strings.Fields(action)
	if len(fields) == 0 {
		return nil
	}
	cmd := exec.CommandContext(ctx, fields[0], fields[1:]...)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("action %q failed: %w (output: %s)", fields[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
