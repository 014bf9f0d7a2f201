package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"marketplace/internal/models"
	"marketplace/internal/version"
)

var testVersion = version.Info{Version: "v0.0.1", GitCommit: "abc1234", InstanceID: "instance-1"}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		expected  slog.Level
		expectErr bool
	}{
		{name: "debug", input: "debug", expected: slog.LevelDebug},
		{name: "info", input: "info", expected: slog.LevelInfo},
		{name: "warn", input: "warn", expected: slog.LevelWarn},
		{name: "error", input: "error", expected: slog.LevelError},
		{name: "uppercase", input: "DEBUG", expected: slog.LevelDebug},
		{name: "invalid", input: "verbose", expectErr: true},
		{name: "empty", input: "", expectErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := parseLevel(tt.input)
			if tt.expectErr {
				if err == nil {
					t.Errorf("expected error for input %q, got nil", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error for input %q: %v", tt.input, err)
			}
			if level != tt.expected {
				t.Errorf("expected level %v, got %v", tt.expected, level)
			}
		})
	}
}

func TestSetupStdStreams(t *testing.T) {
	for _, output := range []string{"stdout", "stderr"} {
		t.Run(output, func(t *testing.T) {
			logger, closer, err := Setup(models.LoggingConfig{Level: "info", Format: "json", Output: output}, testVersion)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if closer != nil {
				t.Errorf("expected nil closer for %s", output)
			}
			if logger == nil {
				t.Fatal("expected non-nil logger")
			}
		})
	}
}

func TestSetupFileOutput(t *testing.T) {
	logFile := filepath.Join(t.TempDir(), "marketplace.log")

	logger, closer, err := Setup(models.LoggingConfig{
		Level:    "info",
		Format:   "json",
		Output:   "file",
		FilePath: logFile,
	}, testVersion)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if closer == nil {
		t.Fatal("expected non-nil closer for file output")
	}
	defer closer.Close()

	logger.Info("listing created", "listing_id", "l-1")

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("failed to read log file: %v", err)
	}

	var record map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if record["msg"] != "listing created" {
		t.Errorf("unexpected msg: %v", record["msg"])
	}
	if record["version"] != "v0.0.1" || record["instance_id"] != "instance-1" {
		t.Errorf("build metadata missing from record: %v", record)
	}
}

func TestSetupErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  models.LoggingConfig
	}{
		{name: "file without path", cfg: models.LoggingConfig{Level: "info", Format: "json", Output: "file"}},
		{name: "unwritable path", cfg: models.LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: "/nonexistent/dir/x.log"}},
		{name: "invalid level", cfg: models.LoggingConfig{Level: "loud", Format: "json", Output: "stdout"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := Setup(tt.cfg, testVersion); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestNewFormats(t *testing.T) {
	var buf bytes.Buffer
	New(&buf, "text", slog.LevelInfo).Info("hello", "k", "v")
	if !strings.Contains(buf.String(), "k=v") {
		t.Errorf("expected text output, got %q", buf.String())
	}

	buf.Reset()
	New(&buf, "json", slog.LevelInfo).Info("hello", "k", "v")
	if !strings.Contains(buf.String(), `"k":"v"`) {
		t.Errorf("expected json output, got %q", buf.String())
	}
}

func TestNewLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, "text", slog.LevelWarn)

	logger.Info("should not appear")
	logger.Warn("should appear")

	output := buf.String()
	if strings.Contains(output, "should not appear") {
		t.Error("info message should have been filtered by warn level")
	}
	if !strings.Contains(output, "should appear") {
		t.Error("warn message should have appeared")
	}
}
