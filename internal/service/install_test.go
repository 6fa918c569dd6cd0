package service

import (
	"strings"
	"testing"
)

func TestInstallOptions_RestartPolicy(t *testing.T) {
	opts := InstallOptions()

	if opts["Restart"] != "always" {
		t.Errorf("systemd Restart = %v, want always", opts["Restart"])
	}
	if opts["OnFailure"] != "restart" {
		t.Errorf("windows OnFailure = %v, want restart", opts["OnFailure"])
	}
	if opts["KeepAlive"] != true {
		t.Errorf("launchd KeepAlive = %v, want true", opts["KeepAlive"])
	}
}

func TestInstallConfig_ServiceConfig(t *testing.T) {
	cfg := DefaultInstallConfig([]string{"-config", "conf/KeepAliveAgent/KeepAliveAgent.json"}, "/opt/keepaliveagent")
	sc := cfg.serviceConfig()

	if sc.Name != ServiceName {
		t.Errorf("Name = %q, want %q", sc.Name, ServiceName)
	}
	if sc.WorkingDirectory != "/opt/keepaliveagent" {
		t.Errorf("WorkingDirectory = %q", sc.WorkingDirectory)
	}
	if len(sc.Arguments) != 2 || sc.Arguments[0] != "-config" {
		t.Errorf("Arguments = %v", sc.Arguments)
	}
	if sc.Option["Restart"] != "always" {
		t.Error("install options not attached")
	}
}

func TestValidAction(t *testing.T) {
	for _, a := range []string{"install", "uninstall", "start", "stop", "restart"} {
		if !ValidAction(a) {
			t.Errorf("ValidAction(%q) = false", a)
		}
	}
	for _, a := range []string{"", "status", "reload"} {
		if ValidAction(a) {
			t.Errorf("ValidAction(%q) = true", a)
		}
	}
}

func TestControl_RejectsUnknownAction(t *testing.T) {
	err := Control("reload", DefaultInstallConfig(nil, ""))
	if err == nil {
		t.Fatal("expected error for unknown action")
	}
	if !strings.Contains(err.Error(), "unknown service action") {
		t.Errorf("unexpected error: %v", err)
	}
}
