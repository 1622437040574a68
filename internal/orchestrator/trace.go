package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// TraceEntry is one line of a run trace.
type TraceEntry struct {
	Timestamp time.Time       `json:"ts"`
	Action    types.EventType `json:"action"`
	RunID     string          `json:"run_id"`
	Workflow  string          `json:"workflow,omitempty"`
	Step      string          `json:"step,omitempty"`
	Layer     *int            `json:"layer,omitempty"`
	Details   map[string]any  `json:"details,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Tracer appends run events to a JSONL file, one file per run.
type Tracer struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// TracePath returns the trace file location for runID under dir.
func TracePath(dir, runID string) string {
	return filepath.Join(dir, runID+".trace.jsonl")
}

// NewTracer creates a tracer writing to <dir>/<runID>.trace.jsonl.
func NewTracer(dir, runID string) (*Tracer, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating trace directory: %w", err)
	}

	path := TracePath(dir, runID)
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("opening trace file: %w", err)
	}

	return &Tracer{file: file, path: path}, nil
}

// Close closes the trace file.
func (t *Tracer) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file != nil {
		err := t.file.Close()
		t.file = nil
		return err
	}
	return nil
}

// Path returns the trace file path.
func (t *Tracer) Path() string {
	return t.path
}

// Log writes a trace entry to the file.
func (t *Tracer) Log(entry TraceEntry) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.file == nil {
		return fmt.Errorf("trace file closed: %s", t.path)
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling trace entry: %w", err)
	}

	if _, err := t.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing trace entry: %w", err)
	}

	return nil
}

// Observe implements Observer. Write errors are dropped; the trace is
// best-effort and never affects the run.
func (t *Tracer) Observe(_ context.Context, ev types.Event) {
	_ = t.Log(traceEntry(ev))
}

func traceEntry(ev types.Event) TraceEntry {
	entry := TraceEntry{
		Timestamp: ev.Time,
		Action:    ev.Type,
		RunID:     ev.RunID,
		Workflow:  ev.Workflow,
		Step:      ev.Step,
	}

	switch ev.Type {
	case types.EventRunStarted:
		entry.Details = map[string]any{"steps": len(ev.Steps), "layers": ev.Layers}
	case types.EventLayerStarted:
		entry.Layer = &ev.Layer
		entry.Details = map[string]any{"steps": ev.Steps}
	case types.EventRunFinished:
		if r := ev.Result; r != nil {
			entry.Details = map[string]any{
				"status":           r.Status,
				"summary":          r.Summary(),
				"duration_seconds": r.DurationSeconds,
			}
			entry.Error = r.Error
		}
	default:
		entry.Layer = &ev.Layer
		if r := ev.StepResult; r != nil {
			entry.Details = map[string]any{"profile": r.Profile, "state": r.State}
			if r.State.IsTerminal() && r.StartedAt != nil {
				entry.Details["duration_seconds"] = r.DurationSeconds
			}
			if r.ErrorCode != "" {
				entry.Details["code"] = r.ErrorCode
			}
			entry.Error = r.Error
		}
	}
	return entry
}

var _ Observer = (*Tracer)(nil)
