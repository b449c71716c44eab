package logging

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesJSON(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}

	logger.Info("run started", "source", "feature", "target", "main")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "remerge.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	line := strings.TrimSpace(string(data))
	var entry map[string]any
	if err := json.Unmarshal([]byte(line), &entry); err != nil {
		t.Fatalf("log line is not valid JSON: %v\nline: %s", err, line)
	}

	if entry["msg"] != "run started" {
		t.Errorf("msg = %v, want 'run started'", entry["msg"])
	}
	if entry["source"] != "feature" {
		t.Errorf("source = %v, want 'feature'", entry["source"])
	}
}

func TestLoggerLevelFiltering(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelWarn)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}

	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "remerge.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	content := string(data)
	if strings.Contains(content, "debug message") || strings.Contains(content, "info message") {
		t.Error("messages below WARN should be filtered")
	}
	if !strings.Contains(content, "warn message") {
		t.Error("WARN message should be logged")
	}
}

func TestChildLoggersInheritAttributes(t *testing.T) {
	dir := t.TempDir()

	logger, err := NewLogger(dir, LevelDebug)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}

	child := logger.WithRun("run-1").WithStage("detecting_conflicts").WithFile("src/a.go")
	child.Info("conflict detected")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "remerge.log"))
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var entry map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(string(data))), &entry); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}

	if entry["run_id"] != "run-1" {
		t.Errorf("run_id = %v, want run-1", entry["run_id"])
	}
	if entry["stage"] != "detecting_conflicts" {
		t.Errorf("stage = %v, want detecting_conflicts", entry["stage"])
	}
	if entry["file"] != "src/a.go" {
		t.Errorf("file = %v, want src/a.go", entry["file"])
	}
}

func TestWithOddArguments(t *testing.T) {
	logger := NopLogger()
	// Must not panic with odd or non-string keys.
	child := logger.With("key1", "value1", 42, "ignored", "dangling")
	child.Info("still works")
}

func TestNopLogger(t *testing.T) {
	logger := NopLogger()
	logger.Info("discarded")
	if err := logger.Close(); err != nil {
		t.Errorf("Close() on NopLogger should be a no-op, got %v", err)
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"Warn", LevelWarn},
		{"error", LevelError},
		{"bogus", LevelInfo},
		{"", LevelInfo},
	}
	for _, tt := range tests {
		if got := ParseLevel(tt.input); got != tt.want {
			t.Errorf("ParseLevel(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
