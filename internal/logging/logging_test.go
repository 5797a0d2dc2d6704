package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"WARN", slog.LevelWarn},
		{"error", slog.LevelError},
		{" error ", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestNewWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "info", "JSON")
	logger.Info("section started", "controller", "story", "chunk", 2)

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("output is not JSON: %v (%s)", err, buf.String())
	}
	if rec["msg"] != "section started" || rec["controller"] != "story" || rec["chunk"] != float64(2) {
		t.Errorf("record = %v", rec)
	}
}

func TestNewWriter_TextFallback(t *testing.T) {
	for _, format := range []string{"text", "logfmt", ""} {
		var buf bytes.Buffer
		NewWriter(&buf, "info", format).Info("hello", "reason", "audio-busy")

		out := buf.String()
		if !strings.Contains(out, "msg=hello") || !strings.Contains(out, "reason=audio-busy") {
			t.Errorf("format %q: output = %q", format, out)
		}
	}
}

func TestNewWriter_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWriter(&buf, "warn", "text")

	logger.Info("should not appear")
	logger.Warn("should appear")

	if strings.Contains(buf.String(), "should not appear") {
		t.Error("Info message should be filtered at warn level")
	}
	if !strings.Contains(buf.String(), "should appear") {
		t.Error("Warn message should appear at warn level")
	}
}

func TestNew(t *testing.T) {
	if New("debug", "json") == nil {
		t.Fatal("New() returned nil")
	}
}
