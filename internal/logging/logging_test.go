package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestNew_RedactsSecrets(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "info", "json")

	log.Info("configured", "api_key", "sk-very-secret", "model", "gpt-4o-mini")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log line, got %q: %v", buf.String(), err)
	}
	if entry["api_key"] != "[REDACTED]" {
		t.Errorf("expected api_key redacted, got %v", entry["api_key"])
	}
	if entry["model"] != "gpt-4o-mini" {
		t.Errorf("expected model kept, got %v", entry["model"])
	}
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "warn", "text")

	log.Info("hidden")
	log.Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info line should be filtered at warn level: %q", out)
	}
	if !strings.Contains(out, "shown") {
		t.Errorf("warn line missing: %q", out)
	}
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"verbose": slog.LevelInfo,
	}
	for in, want := range tests {
		if got := ParseLevel(in); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestMaskKey(t *testing.T) {
	if got := MaskKey("abcdefgh12345"); got != "abcdefgh..." {
		t.Errorf("unexpected mask %q", got)
	}
	if got := MaskKey("short"); got != "*****" {
		t.Errorf("unexpected mask %q", got)
	}
	if got := MaskKey(""); got != "(unset)" {
		t.Errorf("unexpected mask %q", got)
	}
}
