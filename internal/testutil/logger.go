package testutil

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
)

// LogEntry is one captured log record with its accumulated attributes.
type LogEntry struct {
	Level   slog.Level
	Message string
	Attrs   map[string]any
}

// TestLogger records slog output for assertions.
type TestLogger struct {
	Logger *slog.Logger

	mu      sync.Mutex
	entries []LogEntry
}

// NewTestLogger returns a logger that captures every record at debug and above.
func NewTestLogger(t *testing.T) *TestLogger {
	t.Helper()
	tl := &TestLogger{}
	tl.Logger = slog.New(&captureHandler{sink: tl})
	return tl
}

// captureHandler stores bound attributes already qualified with the group
// that was open when they were bound.
type captureHandler struct {
	sink  *TestLogger
	attrs map[string]any
	group string
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	entry := LogEntry{Level: r.Level, Message: r.Message, Attrs: make(map[string]any, len(h.attrs)+r.NumAttrs())}
	for k, v := range h.attrs {
		entry.Attrs[k] = v
	}
	r.Attrs(func(a slog.Attr) bool {
		entry.Attrs[h.key(a.Key)] = a.Value.Any()
		return true
	})

	h.sink.mu.Lock()
	h.sink.entries = append(h.sink.entries, entry)
	h.sink.mu.Unlock()
	return nil
}

func (h *captureHandler) key(k string) string {
	if h.group == "" {
		return k
	}
	return h.group + "." + k
}

func (h *captureHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	bound := make(map[string]any, len(h.attrs)+len(attrs))
	for k, v := range h.attrs {
		bound[k] = v
	}
	for _, a := range attrs {
		bound[h.key(a.Key)] = a.Value.Any()
	}
	return &captureHandler{sink: h.sink, attrs: bound, group: h.group}
}

func (h *captureHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &captureHandler{sink: h.sink, attrs: h.attrs, group: h.key(name)}
}

// Entries returns a copy of the captured entries.
func (l *TestLogger) Entries() []LogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]LogEntry(nil), l.entries...)
}

// Containing returns entries whose message contains substr.
func (l *TestLogger) Containing(substr string) []LogEntry {
	var out []LogEntry
	for _, e := range l.Entries() {
		if strings.Contains(e.Message, substr) {
			out = append(out, e)
		}
	}
	return out
}

// WithAttrValue returns entries carrying key=value.
func (l *TestLogger) WithAttrValue(key string, value any) []LogEntry {
	var out []LogEntry
	for _, e := range l.Entries() {
		if v, ok := e.Attrs[key]; ok && v == value {
			out = append(out, e)
		}
	}
	return out
}

// CountLevel returns the number of entries at level.
func (l *TestLogger) CountLevel(level slog.Level) int {
	n := 0
	for _, e := range l.Entries() {
		if e.Level == level {
			n++
		}
	}
	return n
}

// AssertContains fails t unless some entry's message contains msg.
func (l *TestLogger) AssertContains(t *testing.T, msg string) {
	t.Helper()
	if len(l.Containing(msg)) == 0 {
		t.Errorf("expected log to contain message %q", msg)
	}
}

// AssertNoErrors fails t if any ERROR entry was captured.
func (l *TestLogger) AssertNoErrors(t *testing.T) {
	t.Helper()
	for _, e := range l.Entries() {
		if e.Level >= slog.LevelError {
			t.Errorf("unexpected error log: %s %v", e.Message, e.Attrs)
		}
	}
}
