package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/sync/errgroup"

	"github.com/akatz-ai/stepgraph/internal/config"
	"github.com/akatz-ai/stepgraph/internal/definition"
	serrors "github.com/akatz-ai/stepgraph/internal/errors"
	"github.com/akatz-ai/stepgraph/internal/graph"
	"github.com/akatz-ai/stepgraph/internal/logging"
	"github.com/akatz-ai/stepgraph/internal/template"
	"github.com/akatz-ai/stepgraph/internal/types"
)

const (
	// DefaultStepTimeout bounds steps that set no timeout_seconds.
	DefaultStepTimeout = 300 * time.Second

	// DefaultMaxConcurrency caps parallel steps within one layer.
	DefaultMaxConcurrency = 4

	skipCancelled = "run cancelled"
)

// Options configures an Engine.
type Options struct {
	// MaxConcurrency caps how many steps of a layer run at once. 0 means unbounded.
	MaxConcurrency int

	// DefaultTimeout applies to steps without timeout_seconds.
	DefaultTimeout time.Duration

	// DefaultProfile applies to steps without a profile.
	DefaultProfile string

	// StrictReferences rejects placeholders naming non-ancestors at validation time.
	StrictReferences bool

	// CancelGrace is how long a cancelled runner call may take to return
	// before the engine stops waiting for it. 0 abandons it immediately.
	CancelGrace time.Duration

	Observers Observers
	Tracer    trace.Tracer

	// Now and NewRunID are replaceable for tests.
	Now      func() time.Time
	NewRunID func() string
}

// DefaultOptions returns the options used when no configuration is loaded.
func DefaultOptions() Options {
	return Options{
		MaxConcurrency:   DefaultMaxConcurrency,
		DefaultTimeout:   DefaultStepTimeout,
		DefaultProfile:   types.DefaultProfile,
		StrictReferences: true,
	}
}

// OptionsFromConfig maps configuration onto engine options.
func OptionsFromConfig(cfg *config.Config) Options {
	opts := DefaultOptions()
	opts.MaxConcurrency = cfg.Orchestrator.MaxConcurrency
	opts.StrictReferences = cfg.Orchestrator.StrictReferences
	opts.CancelGrace = cfg.Orchestrator.CancelGrace
	if cfg.Defaults.StepTimeout > 0 {
		opts.DefaultTimeout = cfg.Defaults.StepTimeout
	}
	if cfg.Defaults.Profile != "" {
		opts.DefaultProfile = cfg.Defaults.Profile
	}
	return opts
}

// Engine validates workflow definitions and executes them layer by layer.
// An Engine holds no per-run state and may run several workflows at once.
type Engine struct {
	runner Runner
	logger *slog.Logger
	opts   Options
}

// NewEngine creates an Engine. A nil logger discards output.
func NewEngine(runner Runner, logger *slog.Logger, opts Options) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.MaxConcurrency < 0 {
		opts.MaxConcurrency = 0
	}
	if opts.DefaultTimeout <= 0 {
		opts.DefaultTimeout = DefaultStepTimeout
	}
	if opts.DefaultProfile == "" {
		opts.DefaultProfile = types.DefaultProfile
	}
	if opts.Tracer == nil {
		opts.Tracer = noop.NewTracerProvider().Tracer("")
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.NewRunID == nil {
		opts.NewRunID = NewRunID
	}
	return &Engine{runner: runner, logger: logger, opts: opts}
}

// Options returns the effective options.
func (e *Engine) Options() Options { return e.opts }

func (e *Engine) graphOptions() graph.Options {
	return graph.Options{StrictReferences: e.opts.StrictReferences}
}

// Validate checks def and returns its execution layers.
func (e *Engine) Validate(def *types.WorkflowDefinition) ([][]string, error) {
	return definition.Validate(def, e.graphOptions())
}

// Plan checks def and builds its execution plan.
func (e *Engine) Plan(def *types.WorkflowDefinition) (*graph.Plan, error) {
	if err := definition.Check(def); err != nil {
		return nil, err
	}
	return graph.Build(def, e.graphOptions())
}

// Run executes def under a fresh run ID.
func (e *Engine) Run(ctx context.Context, def *types.WorkflowDefinition) (*types.WorkflowResult, error) {
	return e.RunWithID(ctx, e.opts.NewRunID(), def)
}

// RunWithID executes def and returns its result.
//
// The error is non-nil only when def is invalid; the run then never starts
// and the returned result has status failed and no steps. Step failures,
// timeouts and cancellation are reported in the result, never as an error.
func (e *Engine) RunWithID(ctx context.Context, runID string, def *types.WorkflowDefinition) (*types.WorkflowResult, error) {
	result := &types.WorkflowResult{
		RunID:     runID,
		Status:    types.RunStatusRunning,
		Layers:    [][]string{},
		StartedAt: e.opts.Now(),
	}
	if def == nil {
		err := serrors.New(serrors.CodeDefInvalidField, "workflow definition is nil")
		e.reject(result, err)
		return result, err
	}
	result.Workflow = def.Name

	x := &execution{
		engine: e,
		runID:  runID,
		name:   def.Name,
		logger: logging.WithRun(e.logger, runID, def.Name),
	}

	plan, err := e.Plan(def)
	if err != nil {
		x.logger.Error("workflow definition invalid", "error", err)
		e.reject(result, err)
		x.emit(ctx, types.Event{Type: types.EventRunFinished, Result: result.Clone()})
		return result, err
	}
	x.plan = plan
	x.state = newRunState(plan, e.opts.DefaultProfile)
	result.Layers = plan.Layers()
	result.Steps = x.state.steps()

	ctx, span := e.opts.Tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.String("stepgraph.run_id", runID),
		attribute.String("stepgraph.workflow", def.Name),
		attribute.Int("stepgraph.steps", plan.Len()),
		attribute.Int("stepgraph.layers", len(result.Layers)),
	))
	defer span.End()

	x.logger.Info("run started", "steps", plan.Len(), "layers", len(result.Layers), "max_concurrency", e.opts.MaxConcurrency)
	x.emit(ctx, types.Event{
		Type:   types.EventRunStarted,
		Steps:  def.StepNames(),
		Layers: result.Layers,
		Result: result.Clone(),
	})

	for i, ids := range plan.LayerIDs() {
		x.runLayer(ctx, i, ids)
	}

	aggregate(result, x.state.steps(), e.opts.Now())

	span.SetAttributes(attribute.String("stepgraph.status", string(result.Status)))
	if result.Status == types.RunStatusFailed {
		span.SetStatus(codes.Error, fmt.Sprintf("%d failed, %d skipped", len(result.Failed()), len(result.Skipped())))
	} else {
		span.SetStatus(codes.Ok, "")
	}

	x.logger.Info("run finished",
		"status", result.Status,
		"succeeded", len(result.Succeeded()),
		"failed", len(result.Failed()),
		"skipped", len(result.Skipped()),
		"duration", time.Duration(result.DurationSeconds*float64(time.Second)),
	)
	x.emit(ctx, types.Event{Type: types.EventRunFinished, Result: result.Clone()})
	return result, nil
}

func (e *Engine) reject(result *types.WorkflowResult, err error) {
	now := e.opts.Now()
	result.Status = types.RunStatusFailed
	result.Error = err.Error()
	result.CompletedAt = &now
	result.DurationSeconds = now.Sub(result.StartedAt).Seconds()
}

// execution carries the state of one run.
type execution struct {
	engine *Engine
	runID  string
	name   string
	plan   *graph.Plan
	state  *runState
	logger *slog.Logger

	emitMu sync.Mutex
}

// emit delivers ev to the observers. Delivery is serialized and survives
// cancellation of the run context.
func (x *execution) emit(ctx context.Context, ev types.Event) {
	obs := x.engine.opts.Observers
	if len(obs) == 0 {
		return
	}
	ev.RunID = x.runID
	ev.Workflow = x.name
	ev.Time = x.engine.opts.Now()

	x.emitMu.Lock()
	defer x.emitMu.Unlock()
	obs.Observe(context.WithoutCancel(ctx), ev)
}

// runLayer dispatches every eligible step of the layer and waits for all of
// them to finish.
func (x *execution) runLayer(ctx context.Context, index int, ids []int) {
	names := make([]string, len(ids))
	for i, id := range ids {
		names[i] = x.plan.Spec(id).Name
	}
	x.logger.Info("layer started", "layer", index, "steps", names)
	x.emit(ctx, types.Event{Type: types.EventLayerStarted, Layer: index, Steps: names})

	var g errgroup.Group
	if x.engine.opts.MaxConcurrency > 0 {
		g.SetLimit(x.engine.opts.MaxConcurrency)
	}

	for _, id := range ids {
		if dep, state, blocked := x.state.blocker(id); blocked {
			verb := "failed"
			if state == types.StepSkipped {
				verb = "was skipped"
			}
			x.skip(ctx, id, fmt.Sprintf("skipped: dependency %q %s", dep, verb))
			continue
		}
		if ctx.Err() != nil {
			x.skip(ctx, id, skipCancelled)
			continue
		}
		x.transition(ctx, id, "", func(r *types.StepResult) error { return r.MarkReady() })

		g.Go(func() error {
			x.runStep(ctx, index, id)
			return nil
		})
	}

	_ = g.Wait()
}

func (x *execution) runStep(ctx context.Context, layer, id int) {
	spec := x.plan.Spec(id)
	if ctx.Err() != nil {
		x.skip(ctx, id, skipCancelled)
		return
	}

	profile := x.state.get(id).Profile
	logger := logging.WithStep(x.logger, spec.Name, profile)

	ctx, span := x.engine.opts.Tracer.Start(ctx, "workflow.step", trace.WithAttributes(
		attribute.String("stepgraph.step", spec.Name),
		attribute.String("stepgraph.profile", profile),
		attribute.Int("stepgraph.layer", layer),
	))
	defer span.End()

	prompt, err := template.Resolve(spec.Name, spec.Prompt, x.state.lookup(layer))
	if err != nil {
		x.fail(ctx, logger, span, id, err)
		return
	}

	timeout := spec.Timeout(x.engine.opts.DefaultTimeout)
	x.transition(ctx, id, types.EventStepStarted, func(r *types.StepResult) error {
		return r.Start(prompt, x.engine.opts.Now())
	})
	logger.Info("step started", "layer", layer, "timeout", timeout)

	out, err := x.engine.invoke(ctx, logger, types.RunRequest{
		RunID:    x.runID,
		Workflow: x.name,
		Step:     spec.Name,
		Profile:  profile,
		Prompt:   prompt,
		Timeout:  timeout,
	})
	if err != nil {
		x.fail(ctx, logger, span, id, err)
		return
	}

	res := x.transition(ctx, id, types.EventStepSucceeded, func(r *types.StepResult) error {
		return r.Succeed(out, x.engine.opts.Now())
	})
	span.SetStatus(codes.Ok, "")
	logger.Info("step succeeded", "duration", time.Duration(res.DurationSeconds*float64(time.Second)), "output_bytes", len(out))
}

func (x *execution) fail(ctx context.Context, logger *slog.Logger, span trace.Span, id int, err error) {
	code := serrors.Code(err)
	res := x.transition(ctx, id, types.EventStepFailed, func(r *types.StepResult) error {
		return r.Fail(err.Error(), code, x.engine.opts.Now())
	})

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	logger.Warn("step failed",
		"error", err,
		"code", code,
		"duration", time.Duration(res.DurationSeconds*float64(time.Second)),
		"dependents_skipped", x.plan.Descendants(res.Name),
	)
}

func (x *execution) skip(ctx context.Context, id int, reason string) {
	res := x.transition(ctx, id, types.EventStepSkipped, func(r *types.StepResult) error {
		return r.Skip(reason, x.engine.opts.Now())
	})
	x.logger.Info("step skipped", "step", res.Name, "reason", reason)
}

// transition applies fn to the step's record and emits typ when set.
func (x *execution) transition(ctx context.Context, id int, typ types.EventType, fn func(r *types.StepResult) error) types.StepResult {
	res, err := x.state.update(id, fn)
	if err != nil {
		x.logger.Error("invalid step transition", "step", res.Name, "error", err)
		return res
	}
	if typ != "" {
		ev := types.Event{Type: typ, Layer: res.Layer, Step: res.Name, StepResult: &res}
		x.emit(ctx, ev)
	}
	return res
}

type outcome struct {
	output string
	err    error
}

// invoke calls the runner under the step timeout. It returns once the runner
// returns or the timeout fires, whichever is first; a runner that ignores
// cancellation is left behind after the grace period. Once the step context
// has ended the step counts as timed out or cancelled, even when the runner
// also reported success: output delivered past the deadline is discarded.
func (e *Engine) invoke(ctx context.Context, logger *slog.Logger, req types.RunRequest) (string, error) {
	stepCtx, cancel := context.WithTimeout(ctx, req.Timeout)
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("runner panic: %v", r)}
			}
		}()
		out, err := e.runner.Run(stepCtx, req)
		done <- outcome{output: out, err: err}
	}()

	select {
	case o := <-done:
		if stepCtx.Err() != nil {
			return "", interrupted(ctx, req)
		}
		if o.err != nil {
			return "", serrors.RunnerFailed(req.Step, o.err)
		}
		return o.output, nil

	case <-stepCtx.Done():
		cancel()
		if e.opts.CancelGrace > 0 {
			timer := time.NewTimer(e.opts.CancelGrace)
			defer timer.Stop()
			select {
			case <-done:
			case <-timer.C:
				logger.Warn("runner did not acknowledge cancellation", "grace", e.opts.CancelGrace)
			}
		}
		err := interrupted(ctx, req)
		logger.Warn("step interrupted", "error", err)
		return "", err
	}
}

// interrupted classifies a step whose context ended: cancellation of the
// run context wins over the step deadline.
func interrupted(parent context.Context, req types.RunRequest) error {
	if parent.Err() != nil {
		return serrors.RunCancelled(req.Step)
	}
	return serrors.StepTimeout(req.Step, req.Timeout.Seconds())
}

// Validate checks def with default options and returns its layers.
func Validate(def *types.WorkflowDefinition) ([][]string, error) {
	return definition.Validate(def, graph.DefaultOptions())
}

// Run executes def with runner using default options.
func Run(ctx context.Context, def *types.WorkflowDefinition, runner Runner) (*types.WorkflowResult, error) {
	return NewEngine(runner, nil, DefaultOptions()).Run(ctx, def)
}
