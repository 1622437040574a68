package status

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/akatz-ai/stepgraph/internal/types"
)

// FormatOptions controls output formatting.
type FormatOptions struct {
	NoColor bool
	// AllSteps lists every step, not just failures and running steps.
	AllSteps bool
	Quiet    bool
	// Now anchors elapsed times; zero means time.Now.
	Now time.Time
}

func (o FormatOptions) now() time.Time {
	if o.Now.IsZero() {
		return time.Now()
	}
	return o.Now
}

// FormatRun formats a single run with full details.
func FormatRun(res *types.WorkflowResult, opts FormatOptions) string {
	summary := NewRunSummary(res, opts.now())

	var b strings.Builder

	// Header
	b.WriteString(formatHeader(summary, opts))
	b.WriteString("\n\n")

	if summary.Error != "" {
		b.WriteString(formatRunError(summary, opts))
		b.WriteString("\n")
		return b.String()
	}

	// Progress
	b.WriteString(formatProgress(summary, opts))
	b.WriteString("\n\n")

	if opts.AllSteps && len(res.Steps) > 0 {
		b.WriteString(formatSteps(res, opts))
		b.WriteString("\n")
	}

	if len(summary.RunningSteps) > 0 {
		b.WriteString(formatRunningSteps(summary, opts))
		b.WriteString("\n")
	}

	if len(summary.Errors) > 0 {
		b.WriteString(formatErrors(summary, opts))
		b.WriteString("\n")
	}

	if skipped := res.Skipped(); len(skipped) > 0 && !opts.AllSteps {
		b.WriteString(fmt.Sprintf("Skipped:  %s\n", strings.Join(skipped, ", ")))
	}

	return b.String()
}

// FormatRunList formats a list of runs, newest first.
func FormatRunList(runs []*types.WorkflowResult, opts FormatOptions) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Found %d run(s):\n\n", len(runs)))

	sorted := make([]*types.WorkflowResult, len(runs))
	copy(sorted, runs)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].StartedAt.After(sorted[j].StartedAt)
	})

	for i, res := range sorted {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(formatRunListItem(NewRunSummary(res, opts.now()), opts))
	}

	return b.String()
}

// FormatLayers renders an execution plan, one line per layer.
func FormatLayers(workflow string, layers [][]string) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Workflow %s: %d step(s) in %d layer(s)\n", workflow, countSteps(layers), len(layers)))
	for i, l := range layers {
		b.WriteString(fmt.Sprintf("  %d: %s\n", i, strings.Join(l, ", ")))
	}

	return b.String()
}

// FormatDefinition renders a workflow definition with its layer plan. layers
// may be nil when the definition does not validate.
func FormatDefinition(def *types.WorkflowDefinition, layers [][]string, opts FormatOptions) string {
	var b strings.Builder

	b.WriteString(fmt.Sprintf("Workflow: %s\n", def.Name))
	if def.Description != "" {
		b.WriteString(fmt.Sprintf("About:    %s\n", def.Description))
	}
	b.WriteString(fmt.Sprintf("Steps:    %d\n", len(def.Steps)))

	for _, step := range def.Steps {
		b.WriteString(fmt.Sprintf("\n  %s%s%s", getColor("cyan", opts.NoColor), step.Name, resetColor(opts.NoColor)))
		if step.Profile != "" {
			b.WriteString(fmt.Sprintf(" (profile: %s)", step.Profile))
		}
		if len(step.DependsOn) > 0 {
			b.WriteString(fmt.Sprintf("\n    after:   %s", strings.Join(step.DependsOn, ", ")))
		}
		if step.TimeoutSeconds > 0 {
			b.WriteString(fmt.Sprintf("\n    timeout: %s", formatDuration(time.Duration(step.TimeoutSeconds)*time.Second)))
		}
		if !opts.Quiet {
			b.WriteString(fmt.Sprintf("\n    prompt:  %s", truncate(oneLine(step.Prompt), 72)))
		}
	}
	b.WriteString("\n")

	if layers != nil {
		b.WriteString("\n")
		b.WriteString(FormatLayers(def.Name, layers))
	}

	return b.String()
}

// FormatEvent renders one progress line for a live run. It returns "" for
// events that carry nothing worth printing.
func FormatEvent(ev types.Event, opts FormatOptions) string {
	reset := resetColor(opts.NoColor)

	switch ev.Type {
	case types.EventRunStarted:
		return fmt.Sprintf("%s● run %s started%s (%s, %d steps in %d layers)",
			getColor("yellow", opts.NoColor), ev.RunID, reset, ev.Workflow, countSteps(ev.Layers), len(ev.Layers))
	case types.EventLayerStarted:
		if opts.Quiet {
			return ""
		}
		return fmt.Sprintf("  layer %d: %s", ev.Layer, strings.Join(ev.Steps, ", "))
	case types.EventStepStarted:
		if opts.Quiet {
			return ""
		}
		return fmt.Sprintf("    %s● %s%s", getColor("yellow", opts.NoColor), ev.Step, reset)
	case types.EventStepSucceeded:
		return fmt.Sprintf("    %s✓ %s%s%s", getColor("green", opts.NoColor), ev.Step, reset, stepDuration(ev.StepResult))
	case types.EventStepFailed:
		msg := ""
		if ev.StepResult != nil {
			msg = ": " + ev.StepResult.Error
		}
		return fmt.Sprintf("    %s✗ %s%s%s", getColor("red", opts.NoColor), ev.Step, reset, msg)
	case types.EventStepSkipped:
		msg := ""
		if ev.StepResult != nil {
			msg = " (" + ev.StepResult.Error + ")"
		}
		return fmt.Sprintf("    %s⊘ %s%s%s", getColor("gray", opts.NoColor), ev.Step, reset, msg)
	case types.EventRunFinished:
		if ev.Result == nil {
			return ""
		}
		return fmt.Sprintf("%s%s run %s %s%s",
			getStatusColor(ev.Result.Status, opts.NoColor), getStatusIcon(ev.Result.Status), ev.RunID, ev.Result.Status, reset)
	}
	return ""
}

func formatHeader(summary *RunSummary, opts FormatOptions) string {
	var b strings.Builder

	statusIcon := getStatusIcon(summary.Status)
	statusColor := getStatusColor(summary.Status, opts.NoColor)

	b.WriteString(fmt.Sprintf("Run:      %s\n", summary.RunID))
	b.WriteString(fmt.Sprintf("Workflow: %s\n", summary.Workflow))
	b.WriteString(fmt.Sprintf("Status:   %s%s %s%s\n",
		statusColor, statusIcon, summary.Status, resetColor(opts.NoColor)))
	b.WriteString(fmt.Sprintf("Started:  %s", formatTime(summary.StartedAt)))

	if summary.CompletedAt != nil {
		b.WriteString(fmt.Sprintf("\nCompleted: %s", formatTime(*summary.CompletedAt)))
		duration := summary.CompletedAt.Sub(summary.StartedAt)
		b.WriteString(fmt.Sprintf(" (took %s)", formatDuration(duration)))
	} else {
		elapsed := opts.now().Sub(summary.StartedAt)
		b.WriteString(fmt.Sprintf(" (%s ago)", formatDuration(elapsed)))
	}

	return b.String()
}

func formatRunError(summary *RunSummary, opts FormatOptions) string {
	return fmt.Sprintf("%sError:%s %s", getColor("red", opts.NoColor), resetColor(opts.NoColor), summary.Error)
}

func formatProgress(summary *RunSummary, opts FormatOptions) string {
	var b strings.Builder

	stats := summary.StepStats
	completed := stats.Finished()
	total := stats.Total

	var percentage int
	if total > 0 {
		percentage = (completed * 100) / total
	}

	// Progress bar (25 characters wide)
	barWidth := 25
	filled := (percentage * barWidth) / 100
	empty := barWidth - filled

	progressBar := strings.Repeat("█", filled) + strings.Repeat("░", empty)

	b.WriteString(fmt.Sprintf("Progress: %s %d%% (%d/%d steps, %d layers)\n",
		progressBar, percentage, completed, total, summary.Layers))

	b.WriteString("\nSteps:    ")

	parts := []string{}
	if stats.Succeeded > 0 {
		parts = append(parts, fmt.Sprintf("%s✓ %d succeeded%s",
			getColor("green", opts.NoColor), stats.Succeeded, resetColor(opts.NoColor)))
	}
	if stats.Running > 0 {
		parts = append(parts, fmt.Sprintf("%s● %d running%s",
			getColor("yellow", opts.NoColor), stats.Running, resetColor(opts.NoColor)))
	}
	if stats.Ready > 0 {
		parts = append(parts, fmt.Sprintf("%s◐ %d ready%s",
			getColor("cyan", opts.NoColor), stats.Ready, resetColor(opts.NoColor)))
	}
	if stats.Pending > 0 {
		parts = append(parts, fmt.Sprintf("%s○ %d pending%s",
			getColor("gray", opts.NoColor), stats.Pending, resetColor(opts.NoColor)))
	}
	if stats.Failed > 0 {
		parts = append(parts, fmt.Sprintf("%s✗ %d failed%s",
			getColor("red", opts.NoColor), stats.Failed, resetColor(opts.NoColor)))
	}
	if stats.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("%s⊘ %d skipped%s",
			getColor("gray", opts.NoColor), stats.Skipped, resetColor(opts.NoColor)))
	}
	if len(parts) == 0 {
		parts = append(parts, "none")
	}

	b.WriteString(strings.Join(parts, ", "))

	return b.String()
}

func formatSteps(res *types.WorkflowResult, opts FormatOptions) string {
	var b strings.Builder

	b.WriteString("Step Results:\n")
	for _, step := range res.Steps {
		b.WriteString(fmt.Sprintf("  %s%s %s%s [layer %d, %s]",
			getStateColor(step.State, opts.NoColor), getStateIcon(step.State), step.Name, resetColor(opts.NoColor),
			step.Layer, step.Profile))
		if step.State.IsTerminal() && step.StartedAt != nil {
			b.WriteString(fmt.Sprintf(" %s", formatDuration(time.Duration(step.DurationSeconds*float64(time.Second)))))
		}
		b.WriteString("\n")
		if !opts.Quiet && step.Output != "" {
			b.WriteString(fmt.Sprintf("      %s\n", truncate(oneLine(step.Output), 72)))
		}
	}

	return b.String()
}

func formatRunningSteps(summary *RunSummary, opts FormatOptions) string {
	var b strings.Builder

	b.WriteString("Running Steps:\n")

	steps := make([]RunningStep, len(summary.RunningSteps))
	copy(steps, summary.RunningSteps)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].StartedAt.Before(steps[j].StartedAt)
	})

	for _, step := range steps {
		b.WriteString(fmt.Sprintf("  - %s (profile: %s, %s)\n",
			step.Name, step.Profile, formatDuration(step.Duration)))
	}

	return b.String()
}

func formatErrors(summary *RunSummary, opts FormatOptions) string {
	var b strings.Builder

	errColor := getColor("red", opts.NoColor)
	reset := resetColor(opts.NoColor)

	b.WriteString(fmt.Sprintf("%sErrors:%s\n", errColor, reset))
	for _, err := range summary.Errors {
		if err.Code != "" {
			b.WriteString(fmt.Sprintf("  %s✗%s %s [%s]: %s\n", errColor, reset, err.Step, err.Code, err.Message))
		} else {
			b.WriteString(fmt.Sprintf("  %s✗%s %s: %s\n", errColor, reset, err.Step, err.Message))
		}
	}

	return b.String()
}

func formatRunListItem(summary *RunSummary, opts FormatOptions) string {
	var b strings.Builder

	statusIcon := getStatusIcon(summary.Status)
	statusColor := getStatusColor(summary.Status, opts.NoColor)

	b.WriteString(fmt.Sprintf("%s%s %s%s", statusColor, statusIcon, summary.RunID, resetColor(opts.NoColor)))

	if !opts.Quiet {
		b.WriteString(fmt.Sprintf("\n  Workflow: %s", summary.Workflow))
		b.WriteString(fmt.Sprintf("\n  Status:   %s%s%s", statusColor, summary.Status, resetColor(opts.NoColor)))
		b.WriteString(fmt.Sprintf("\n  Progress: %d/%d steps", summary.StepStats.Finished(), summary.StepStats.Total))

		if summary.CompletedAt != nil {
			duration := summary.CompletedAt.Sub(summary.StartedAt)
			b.WriteString(fmt.Sprintf("\n  Duration: %s", formatDuration(duration)))
		} else {
			elapsed := opts.now().Sub(summary.StartedAt)
			b.WriteString(fmt.Sprintf("\n  Running:  %s", formatDuration(elapsed)))
		}
	}

	return b.String()
}

// Formatting helpers

func getStatusIcon(status types.RunStatus) string {
	switch status {
	case types.RunStatusRunning:
		return "●"
	case types.RunStatusSucceeded:
		return "✓"
	case types.RunStatusFailed:
		return "✗"
	case types.RunStatusSkippedPartial:
		return "⊘"
	default:
		return "?"
	}
}

func getStatusColor(status types.RunStatus, noColor bool) string {
	switch status {
	case types.RunStatusRunning:
		return getColor("yellow", noColor)
	case types.RunStatusSucceeded:
		return getColor("green", noColor)
	case types.RunStatusFailed:
		return getColor("red", noColor)
	case types.RunStatusSkippedPartial:
		return getColor("gray", noColor)
	default:
		return ""
	}
}

func getStateIcon(state types.StepState) string {
	switch state {
	case types.StepSucceeded:
		return "✓"
	case types.StepRunning:
		return "●"
	case types.StepReady:
		return "◐"
	case types.StepPending:
		return "○"
	case types.StepFailed:
		return "✗"
	case types.StepSkipped:
		return "⊘"
	default:
		return "?"
	}
}

func getStateColor(state types.StepState, noColor bool) string {
	switch state {
	case types.StepSucceeded:
		return getColor("green", noColor)
	case types.StepRunning:
		return getColor("yellow", noColor)
	case types.StepReady:
		return getColor("cyan", noColor)
	case types.StepFailed:
		return getColor("red", noColor)
	default:
		return getColor("gray", noColor)
	}
}

func getColor(name string, noColor bool) string {
	if noColor {
		return ""
	}

	switch name {
	case "red":
		return "\033[31m"
	case "green":
		return "\033[32m"
	case "yellow":
		return "\033[33m"
	case "cyan":
		return "\033[36m"
	case "gray":
		return "\033[90m"
	default:
		return ""
	}
}

func resetColor(noColor bool) string {
	if noColor {
		return ""
	}
	return "\033[0m"
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05")
}

func formatDuration(d time.Duration) string {
	if d < time.Minute {
		return fmt.Sprintf("%ds", int(d.Seconds()))
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh%dm", int(d.Hours()), int(d.Minutes())%60)
}

func stepDuration(r *types.StepResult) string {
	if r == nil || r.StartedAt == nil {
		return ""
	}
	return fmt.Sprintf(" (%s)", formatDuration(time.Duration(r.DurationSeconds*float64(time.Second))))
}

func countSteps(layers [][]string) int {
	n := 0
	for _, l := range layers {
		n += len(l)
	}
	return n
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
