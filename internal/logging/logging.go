// Package logging provides structured logging infrastructure for stepgraph.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/akatz-ai/stepgraph/internal/config"
)

// NewFromConfig creates a new slog.Logger based on configuration.
func NewFromConfig(cfg *config.Config, baseDir string) (*slog.Logger, io.Closer, error) {
	level := parseLevel(cfg.Logging.Level)

	if cfg.Logging.File == "" {
		return slog.New(newHandler(cfg.Logging.Format, os.Stderr, level)), nil, nil
	}

	file, err := openAppend(cfg.LogFile(baseDir))
	if err != nil {
		return nil, nil, err
	}
	handler := newHandler(cfg.Logging.Format, io.MultiWriter(os.Stderr, file), level)
	return slog.New(handler), file, nil
}

// NewForRun creates a logger that writes to stderr and to <logs_dir>/<run-id>.log.
// The run log is always JSON so it can be replayed by tooling.
func NewForRun(cfg *config.Config, baseDir, runID string) (*slog.Logger, io.Closer, error) {
	level := parseLevel(cfg.Logging.Level)

	file, err := openAppend(filepath.Join(cfg.LogsDir(baseDir), runID+".log"))
	if err != nil {
		return nil, nil, err
	}

	handler := &teeHandler{
		primary:   newHandler(cfg.Logging.Format, os.Stderr, level),
		secondary: slog.NewJSONHandler(file, &slog.HandlerOptions{Level: level}),
	}
	return slog.New(handler).With("run_id", runID), file, nil
}

func openAppend(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, err
	}
	return os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
}

// NewDefault creates a default logger writing to stderr.
func NewDefault() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// NewForTest creates a silent logger for tests.
func NewForTest() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

// NewWithLevel creates a logger with the specified level.
func NewWithLevel(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// parseLevel converts config log level to slog.Level.
func parseLevel(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelInfo:
		return slog.LevelInfo
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// newHandler creates a slog.Handler based on format.
func newHandler(format config.LogFormat, w io.Writer, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{
		Level: level,
	}

	switch format {
	case config.LogFormatText:
		return slog.NewTextHandler(w, opts)
	default:
		return slog.NewJSONHandler(w, opts)
	}
}

// WithWorkflow returns a logger with workflow context.
func WithWorkflow(logger *slog.Logger, workflow string) *slog.Logger {
	return logger.With("workflow", workflow)
}

// WithRun returns a logger with run context.
func WithRun(logger *slog.Logger, runID, workflow string) *slog.Logger {
	return logger.With("run_id", runID, "workflow", workflow)
}

// WithStep returns a logger with step context.
func WithStep(logger *slog.Logger, step, profile string) *slog.Logger {
	return logger.With("step", step, "profile", profile)
}
