package testutil

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/akatz-ai/stepgraph/internal/types"
)

func TestTestLogger_CapturesAttrs(t *testing.T) {
	tl := NewTestLogger(t)
	tl.Logger.With("run_id", "r1").WithGroup("step").Info("step started", "name", "a")
	tl.Logger.Error("boom")

	entries := tl.Entries()
	if len(entries) != 2 {
		t.Fatalf("got %d entries, want 2", len(entries))
	}
	if entries[0].Attrs["run_id"] != "r1" {
		t.Errorf("run_id = %v", entries[0].Attrs["run_id"])
	}
	if entries[0].Attrs["step.name"] != "a" {
		t.Errorf("step.name = %v", entries[0].Attrs["step.name"])
	}
	if tl.CountLevel(slog.LevelError) != 1 {
		t.Errorf("error count = %d", tl.CountLevel(slog.LevelError))
	}
	if len(tl.WithAttrValue("run_id", "r1")) != 1 {
		t.Error("WithAttrValue did not match")
	}
	tl.AssertContains(t, "started")
}

func TestTestLogger_GroupsQualifyOnlyLaterAttrs(t *testing.T) {
	tl := NewTestLogger(t)
	tl.Logger.
		With("run_id", "r1").
		WithGroup("step").
		With("name", "a").
		WithGroup("runner").
		Info("call", "exit", 0)

	attrs := tl.Entries()[0].Attrs
	want := map[string]any{
		"run_id":           "r1",
		"step.name":        "a",
		"step.runner.exit": int64(0),
	}
	if len(attrs) != len(want) {
		t.Errorf("attrs = %v, want %v", attrs, want)
	}
	for k, v := range want {
		if attrs[k] != v {
			t.Errorf("%s = %v (%T), want %v", k, attrs[k], attrs[k], v)
		}
	}
}

func TestFakeRunner_Scripts(t *testing.T) {
	f := NewFakeRunner().
		On("out", Script{Output: "42"}).
		On("err", Script{Err: errors.New("nope")}).
		On("fn", Script{Func: func(req types.RunRequest) (string, error) { return "got " + req.Prompt, nil }})

	ctx := context.Background()
	if out, _ := f.Run(ctx, types.RunRequest{Step: "out"}); out != "42" {
		t.Errorf("out = %q", out)
	}
	if _, err := f.Run(ctx, types.RunRequest{Step: "err"}); err == nil {
		t.Error("expected error")
	}
	if out, _ := f.Run(ctx, types.RunRequest{Step: "fn", Prompt: "x"}); out != "got x" {
		t.Errorf("fn = %q", out)
	}
	if out, _ := f.Run(ctx, types.RunRequest{Step: "other"}); out != "other done" {
		t.Errorf("default = %q", out)
	}

	if got := f.CalledSteps(); len(got) != 4 || got[0] != "out" || got[3] != "other" {
		t.Errorf("CalledSteps = %v", got)
	}
}

func TestFakeRunner_DelayHonoursContext(t *testing.T) {
	f := NewFakeRunner().On("slow", Script{Delay: time.Minute})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := f.Run(ctx, types.RunRequest{Step: "slow"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v", err)
	}
	if time.Since(start) > 5*time.Second {
		t.Error("runner did not return on cancellation")
	}
}

func TestFakeRunner_MaxConcurrent(t *testing.T) {
	f := NewFakeRunner()
	for _, s := range []string{"a", "b", "c"} {
		f.On(s, Script{Block: true})
	}

	var wg sync.WaitGroup
	for _, s := range []string{"a", "b", "c"} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = f.Run(context.Background(), types.RunRequest{Step: s})
		}()
	}
	for range 3 {
		<-f.Started()
	}
	f.Release()
	wg.Wait()

	if f.MaxConcurrent() != 3 {
		t.Errorf("MaxConcurrent = %d, want 3", f.MaxConcurrent())
	}
}
