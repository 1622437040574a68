package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/akatz-ai/stepgraph/internal/config"
)

func TestNewFromConfig_DefaultsToStderr(t *testing.T) {
	cfg := config.Default()

	logger, closer, err := NewFromConfig(cfg, "/tmp")
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if closer != nil {
		t.Error("Expected no closer when no file configured")
	}
	if logger == nil {
		t.Fatal("Expected logger to be non-nil")
	}
}

func TestNewFromConfig_WithFile(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Logging.File = "logs/app.log"

	logger, closer, err := NewFromConfig(cfg, dir)
	if err != nil {
		t.Fatalf("NewFromConfig failed: %v", err)
	}
	if closer == nil {
		t.Fatal("Expected closer when file configured")
	}
	logger.Info("file message")
	closer.Close()

	data, err := os.ReadFile(filepath.Join(dir, "logs", "app.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), "file message") {
		t.Errorf("Log file does not contain expected message: %s", data)
	}
}

func TestNewForRun(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Paths.LogsDir = filepath.Join(dir, "logs")
	cfg.Logging.Level = config.LogLevelDebug
	cfg.Logging.Format = config.LogFormatText

	logger, closer, err := NewForRun(cfg, dir, "run-123")
	if err != nil {
		t.Fatalf("NewForRun failed: %v", err)
	}
	defer closer.Close()

	logger.Debug("test message", "key", "value")

	data, err := os.ReadFile(filepath.Join(dir, "logs", "run-123.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}

	// Run logs are JSON regardless of the console format.
	var entry map[string]any
	if err := json.Unmarshal(bytes.TrimSpace(data), &entry); err != nil {
		t.Fatalf("run log is not JSON: %v (%s)", err, data)
	}
	if entry["msg"] != "test message" {
		t.Errorf("msg = %v, want test message", entry["msg"])
	}
	if entry["run_id"] != "run-123" {
		t.Errorf("run_id = %v, want run-123", entry["run_id"])
	}
}

func TestNewForRun_CreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	logsDir := filepath.Join(dir, "nested", "deep", "logs")
	cfg := config.Default()
	cfg.Paths.LogsDir = logsDir

	_, closer, err := NewForRun(cfg, dir, "run-456")
	if err != nil {
		t.Fatalf("NewForRun failed: %v", err)
	}
	closer.Close()

	info, err := os.Stat(logsDir)
	if err != nil {
		t.Fatalf("Directory not created: %v", err)
	}
	if !info.IsDir() {
		t.Error("Expected directory, got file")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input config.LogLevel
		want  slog.Level
	}{
		{config.LogLevelDebug, slog.LevelDebug},
		{config.LogLevelInfo, slog.LevelInfo},
		{config.LogLevelWarn, slog.LevelWarn},
		{config.LogLevelError, slog.LevelError},
		{"unknown", slog.LevelInfo}, // default
	}

	for _, tt := range tests {
		t.Run(string(tt.input), func(t *testing.T) {
			if got := parseLevel(tt.input); got != tt.want {
				t.Errorf("parseLevel(%s) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestNewHandler_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.LogFormatJSON, &buf, slog.LevelInfo))

	logger.Info("test", "key", "value")

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("JSON unmarshal failed: %v (output: %s)", err, buf.String())
	}
	if result["msg"] != "test" {
		t.Errorf("msg = %v, want test", result["msg"])
	}
	if result["key"] != "value" {
		t.Errorf("key = %v, want value", result["key"])
	}
}

func TestNewHandler_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(newHandler(config.LogFormatText, &buf, slog.LevelInfo))

	logger.Info("test", "key", "value")

	if !strings.Contains(buf.String(), "key=value") {
		t.Errorf("output should contain 'key=value': %s", buf.String())
	}
}

func TestTeeHandler_RespectsLevels(t *testing.T) {
	var quiet, loud bytes.Buffer
	logger := slog.New(&teeHandler{
		primary:   slog.NewJSONHandler(&quiet, &slog.HandlerOptions{Level: slog.LevelWarn}),
		secondary: slog.NewJSONHandler(&loud, &slog.HandlerOptions{Level: slog.LevelDebug}),
	}).With("step", "a")

	logger.Info("info only to loud")

	if quiet.Len() != 0 {
		t.Errorf("warn-level handler got output: %s", quiet.String())
	}
	if !strings.Contains(loud.String(), `"step":"a"`) {
		t.Errorf("debug-level handler missing attrs: %s", loud.String())
	}
}

func TestNewForTest(t *testing.T) {
	logger := NewForTest()
	if logger == nil {
		t.Fatal("Expected logger to be non-nil")
	}
	logger.Info("test message")
}

func TestContextHelpers(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithStep(WithRun(logger, "run-001", "review"), "draft", "writer").Info("test")

	var result map[string]any
	if err := json.Unmarshal(buf.Bytes(), &result); err != nil {
		t.Fatalf("JSON unmarshal failed: %v", err)
	}

	want := map[string]string{
		"run_id":   "run-001",
		"workflow": "review",
		"step":     "draft",
		"profile":  "writer",
	}
	for k, v := range want {
		if result[k] != v {
			t.Errorf("%s = %v, want %s", k, result[k], v)
		}
	}
}

func TestWithWorkflow(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	WithWorkflow(logger, "review").Info("test")

	if !strings.Contains(buf.String(), `"workflow":"review"`) {
		t.Errorf("output = %s, want workflow attr", buf.String())
	}
}
