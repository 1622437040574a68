package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// Script controls how FakeRunner answers one step.
type Script struct {
	Output string
	Err    error

	// Delay holds the call before answering. The call returns ctx.Err()
	// early when ctx ends, unless IgnoreCancel is set.
	Delay time.Duration

	// Block holds the call until Release (or ctx, unless IgnoreCancel).
	Block        bool
	IgnoreCancel bool

	// Func computes the answer from the request when set.
	Func func(req types.RunRequest) (string, error)

	// Panic makes the call panic with this value.
	Panic any
}

// FakeRunner is a scripted agent runner that records every call and the
// peak number of concurrent calls. Steps without a script succeed with
// "<step> done".
type FakeRunner struct {
	mu         sync.Mutex
	scripts    map[string]Script
	calls      []types.RunRequest
	running    int
	maxRunning int

	started     chan string
	release     chan struct{}
	releaseOnce sync.Once
}

// NewFakeRunner creates a FakeRunner with no scripts.
func NewFakeRunner() *FakeRunner {
	return &FakeRunner{
		scripts: make(map[string]Script),
		started: make(chan string, 256),
		release: make(chan struct{}),
	}
}

// On sets the script for step and returns f for chaining.
func (f *FakeRunner) On(step string, s Script) *FakeRunner {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scripts[step] = s
	return f
}

// Run implements the runner contract.
func (f *FakeRunner) Run(ctx context.Context, req types.RunRequest) (string, error) {
	s := f.begin(req)
	defer f.end()

	switch {
	case s.Block && s.IgnoreCancel:
		<-f.release
	case s.Block:
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-f.release:
		}
	case s.Delay > 0 && s.IgnoreCancel:
		time.Sleep(s.Delay)
	case s.Delay > 0:
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}

	if s.Panic != nil {
		panic(s.Panic)
	}
	if s.Func != nil {
		return s.Func(req)
	}
	if s.Err != nil {
		return "", s.Err
	}
	if s.Output != "" {
		return s.Output, nil
	}
	return req.Step + " done", nil
}

func (f *FakeRunner) begin(req types.RunRequest) Script {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.running++
	if f.running > f.maxRunning {
		f.maxRunning = f.running
	}
	s := f.scripts[req.Step]
	f.mu.Unlock()

	select {
	case f.started <- req.Step:
	default:
	}
	return s
}

func (f *FakeRunner) end() {
	f.mu.Lock()
	f.running--
	f.mu.Unlock()
}

// Release unblocks every Block script. It is safe to call more than once.
func (f *FakeRunner) Release() {
	f.releaseOnce.Do(func() { close(f.release) })
}

// Started yields step names as calls begin.
func (f *FakeRunner) Started() <-chan string { return f.started }

// Calls returns the recorded requests in call order.
func (f *FakeRunner) Calls() []types.RunRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]types.RunRequest(nil), f.calls...)
}

// Called returns the request recorded for step.
func (f *FakeRunner) Called(step string) (types.RunRequest, bool) {
	for _, c := range f.Calls() {
		if c.Step == step {
			return c, true
		}
	}
	return types.RunRequest{}, false
}

// CalledSteps returns the step names in call order.
func (f *FakeRunner) CalledSteps() []string {
	calls := f.Calls()
	out := make([]string, len(calls))
	for i, c := range calls {
		out[i] = c.Step
	}
	return out
}

// MaxConcurrent returns the peak number of simultaneous calls.
func (f *FakeRunner) MaxConcurrent() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.maxRunning
}
