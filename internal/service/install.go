package service

import (
	"fmt"
	"strings"

	ks "github.com/kardianos/service"

	"keepaliveagent/internal/logger"
)

// InstallConfig describes how the agent is registered with the host.
type InstallConfig struct {
	Name             string
	DisplayName      string
	Description      string
	Executable       string // defaults to the running binary
	Arguments        []string
	WorkingDirectory string
}

// DefaultInstallConfig returns the registration used by `-service install`.
func DefaultInstallConfig(args []string, workDir string) InstallConfig {
	return InstallConfig{
		Name:             ServiceName,
		DisplayName:      "KeepAlive Agent",
		Description:      "Keeps a periodic heartbeat running in the background.",
		Arguments:        args,
		WorkingDirectory: workDir,
	}
}

// InstallOptions returns the per-platform options that make the host restart
// the agent after it is killed or crashes.
func InstallOptions() ks.KeyValue {
	return ks.KeyValue{
		// systemd
		"Restart": "always",
		// Windows SCM recovery actions
		"OnFailure":              "restart",
		"OnFailureDelayDuration": "5s",
		"OnFailureResetPeriod":   60,
		"DelayedAutoStart":       false,
		// launchd
		"KeepAlive": true,
		"RunAtLoad": true,
	}
}

func (c InstallConfig) serviceConfig() *ks.Config {
	return &ks.Config{
		Name:             c.Name,
		DisplayName:      c.DisplayName,
		Description:      c.Description,
		Executable:       c.Executable,
		Arguments:        c.Arguments,
		WorkingDirectory: c.WorkingDirectory,
		Dependencies:     []string{"After=network-online.target", "Wants=network-online.target"},
		Option:           InstallOptions(),
	}
}

// controlOnly satisfies ks.Interface for install and control actions; the
// agent itself runs through NewService.
type controlOnly struct{}

func (controlOnly) Start(ks.Service) error { return nil }
func (controlOnly) Stop(ks.Service) error  { return nil }

// ValidAction reports whether action is accepted by Control.
func ValidAction(action string) bool {
	for _, a := range ks.ControlAction {
		if a == action {
			return true
		}
	}
	return false
}

// Control performs install, uninstall, start, stop or restart against the
// host service manager.
func Control(action string, cfg InstallConfig) error {
	action = strings.ToLower(strings.TrimSpace(action))
	if !ValidAction(action) {
		return fmt.Errorf("unknown service action %q (supported: %s)", action, strings.Join(ks.ControlAction[:], ", "))
	}

	s, err := ks.New(controlOnly{}, cfg.serviceConfig())
	if err != nil {
		return fmt.Errorf("failed to create service controller: %w", err)
	}
	if err := ks.Control(s, action); err != nil {
		return fmt.Errorf("service %s failed: %w", action, err)
	}

	log := logger.WithComponent("service")
	log.Info().
		Str("action", action).
		Str("name", cfg.Name).
		Str("platform", s.Platform()).
		Msg("Service control completed")
	return nil
}
