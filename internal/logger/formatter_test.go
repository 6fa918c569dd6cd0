package logger

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func writeFixed(t *testing.T, fields map[string]interface{}) string {
	t.Helper()
	var buf bytes.Buffer
	w := NewFixedFormatWriter(&buf)
	data, _ := json.Marshal(fields)
	n, err := w.Write(data)
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if n != len(data) {
		t.Errorf("Write returned %d, want %d", n, len(data))
	}
	return buf.String()
}

func TestFixedFormatWriter_TickLine(t *testing.T) {
	line := writeFixed(t, map[string]interface{}{
		"level":     "info",
		"time":      "2026-10-19T09:00:00+09:00",
		"component": "keepalive",
		"message":   "Keep-alive cycle started",
		"interval":  "100ms",
		"caller":    "keepalive/keepalive.go:120",
	})

	if !strings.HasPrefix(line, "2026-10-19 09:00:00.000 [INF] [keepalive      ] Keep-alive cycle started") {
		t.Errorf("unexpected prefix: %q", line)
	}
	if !strings.Contains(line, "interval=100ms") {
		t.Errorf("extra field not found: %q", line)
	}
	if strings.Contains(line, "caller=") {
		t.Errorf("caller should be excluded: %q", line)
	}
	if !strings.HasSuffix(line, "\n") {
		t.Errorf("missing trailing newline: %q", line)
	}
}

func TestFixedFormatWriter_NoExtraFields(t *testing.T) {
	line := writeFixed(t, map[string]interface{}{
		"level":     "info",
		"time":      "2026-10-19T09:00:00Z",
		"component": "main",
		"message":   "KeepAliveAgent stopped",
	})

	if !strings.HasSuffix(line, "KeepAliveAgent stopped\n") {
		t.Errorf("expected line to end with message, got %q", line)
	}
}

func TestFixedFormatWriter_LongComponent(t *testing.T) {
	line := writeFixed(t, map[string]interface{}{
		"level":     "warn",
		"time":      "2026-10-19T09:00:00Z",
		"component": "systemd-presence-indicator",
		"message":   "truncated",
	})

	if !strings.Contains(line, "[systemd-presenc]") {
		t.Errorf("component not truncated: %q", line)
	}
}

func TestFixedFormatWriter_UnknownLevel(t *testing.T) {
	line := writeFixed(t, map[string]interface{}{
		"level":   "loud",
		"time":    "2026-10-19T09:00:00Z",
		"message": "x",
	})

	if !strings.Contains(line, "[???]") {
		t.Errorf("expected placeholder level, got %q", line)
	}
}

func TestFixedFormatWriter_InvalidJSONPassesThrough(t *testing.T) {
	var buf bytes.Buffer
	w := NewFixedFormatWriter(&buf)

	input := []byte("plain text line\n")
	if _, err := w.Write(input); err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if buf.String() != "plain text line\n" {
		t.Errorf("invalid JSON not passed through: %q", buf.String())
	}
}

func TestFormatTimestamp(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"zone offset", "2026-10-19T12:00:00+09:00", "2026-10-19 12:00:00.000"},
		{"utc", "2026-10-19T12:00:00Z", "2026-10-19 12:00:00.000"},
		{"millis", "2026-10-19T12:00:00.123+09:00", "2026-10-19 12:00:00.123"},
		{"nanos", "2026-10-19T12:00:00.123456789Z", "2026-10-19 12:00:00.123"},
		{"short fraction", "2026-10-19T12:00:00.1Z", "2026-10-19 12:00:00.100"},
		{"negative zone", "2026-10-19T12:00:00-05:00", "2026-10-19 12:00:00.000"},
		{"empty", "", "                       "},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := formatTimestamp(tt.input)
			if got != tt.want {
				t.Errorf("formatTimestamp(%q) = %q, want %q", tt.input, got, tt.want)
			}
			if len(got) != timestampWidth {
				t.Errorf("length = %d, want %d", len(got), timestampWidth)
			}
		})
	}
}

func TestFormatExtra(t *testing.T) {
	got := formatExtra(map[string]interface{}{
		"z": "last",
		"a": "first",
		"err": "sink closed by peer",
	})
	want := `a=first err="sink closed by peer" z=last`
	if got != want {
		t.Errorf("formatExtra = %q, want %q", got, want)
	}

	if got := formatExtra(map[string]interface{}{}); got != "" {
		t.Errorf("empty fields should render empty, got %q", got)
	}
}
