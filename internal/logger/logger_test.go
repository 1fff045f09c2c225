package logger

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSetupWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".supcut", "supcut.log")
	l, err := Setup(Options{Path: path, Level: "debug"})
	if err != nil {
		t.Fatalf("Setup error: %v", err)
	}
	t.Cleanup(func() { slog.SetDefault(Discard()) })

	l.Debug("run finished", "run_id", "abc")
	if err := l.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), "run finished") || !strings.Contains(string(data), "run_id=abc") {
		t.Fatalf("unexpected log content: %q", data)
	}
}

func TestSetupStderrAndLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := Setup(Options{Level: "warn", Stderr: &buf})
	if err != nil {
		t.Fatalf("Setup error: %v", err)
	}
	t.Cleanup(func() { slog.SetDefault(Discard()) })

	l.Info("hidden")
	slog.Warn("shown")
	got := buf.String()
	if strings.Contains(got, "hidden") {
		t.Errorf("info line logged at warn level: %q", got)
	}
	if !strings.Contains(got, "shown") {
		t.Errorf("default logger not installed: %q", got)
	}
	if err := l.Close(); err != nil {
		t.Errorf("Close without file: %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"DEBUG", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"unknown", slog.LevelInfo},
	}
	for _, tt := range tests {
		got := parseLevel(tt.input)
		if got != tt.want {
			t.Errorf("parseLevel(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
