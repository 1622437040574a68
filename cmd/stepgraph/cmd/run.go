package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/akatz-ai/stepgraph/internal/cli"
	"github.com/akatz-ai/stepgraph/internal/events"
	"github.com/akatz-ai/stepgraph/internal/logging"
	"github.com/akatz-ai/stepgraph/internal/orchestrator"
	"github.com/akatz-ai/stepgraph/internal/runner"
	"github.com/akatz-ai/stepgraph/internal/runstore"
	"github.com/akatz-ai/stepgraph/internal/status"
	"github.com/akatz-ai/stepgraph/internal/telemetry"
	"github.com/akatz-ai/stepgraph/internal/types"
)

var runCmd = &cobra.Command{
	Use:   "run [name|file]",
	Short: "Run a workflow",
	Long: `Run a workflow layer by layer and record the result.

Each step's profile selects the command from [profiles.<name>] in the config.
Progress is printed as steps start and finish. The run record is saved in the
run store and a JSONL trace is written next to it.

Without an argument you are asked to pick one of the stored workflows.
The command exits non-zero unless every step succeeded.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRun,
}

var (
	runDryRun         bool
	runMaxConcurrency int
	runTimeout        time.Duration
	runJSON           bool
	runQuiet          bool
)

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "answer each step with its resolved prompt instead of calling agents")
	runCmd.Flags().IntVar(&runMaxConcurrency, "max-concurrency", 0, "steps of one layer running at once, 0 for unbounded (default from config)")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 0, "default step timeout (default from config)")
	runCmd.Flags().BoolVar(&runJSON, "json", false, "print the run result as JSON instead of progress")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "only print step outcomes")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	var ref string
	if len(args) == 1 {
		ref = args[0]
	} else {
		ref, err = pickWorkflow(cmd, p)
		if err != nil || ref == "" {
			return err
		}
	}

	def, err := p.resolveDefinition(ref)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runID := orchestrator.NewRunID()
	logger, logFile, err := logging.NewForRun(p.cfg, p.dir, runID)
	if err != nil {
		return fmt.Errorf("opening run log: %w", err)
	}
	defer logFile.Close()

	store, err := runstore.Open(ctx, p.cfg, p.dir)
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	defer store.Close()

	tracer, shutdownTracing, err := telemetry.Setup(ctx, p.cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}()

	trace, err := orchestrator.NewTracer(p.cfg.RunsDir(p.dir), runID)
	if err != nil {
		return fmt.Errorf("opening trace: %w", err)
	}
	defer trace.Close()

	bus := events.NewInMemoryBus(logger)
	defer bus.Close()
	if !runJSON {
		if err := subscribeProgress(bus, cmd, runQuiet); err != nil {
			return err
		}
	}

	opts := orchestrator.OptionsFromConfig(p.cfg)
	if cmd.Flags().Changed("max-concurrency") {
		opts.MaxConcurrency = runMaxConcurrency
	}
	if runTimeout > 0 {
		opts.DefaultTimeout = runTimeout
	}
	opts.Tracer = tracer
	opts.Observers = orchestrator.Observers{trace, runstore.NewRecorder(store, logger), bus}

	var r orchestrator.Runner = runner.NewCommandRunner(p.cfg)
	if runDryRun {
		r = runner.EchoRunner{}
	}

	res, err := orchestrator.NewEngine(r, logger, opts).RunWithID(ctx, runID, def)
	if err != nil {
		return err
	}

	if runJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else if !runQuiet {
		fmt.Fprintln(out)
		fmt.Fprint(out, status.FormatRun(res, status.FormatOptions{NoColor: noColor(cmd), AllSteps: verbose}))
		if verbose {
			fmt.Fprintf(out, "Trace: %s\n", trace.Path())
		}
	}

	if res.Status != types.RunStatusSucceeded {
		return fmt.Errorf("run %s finished with status %s", res.RunID, res.Status)
	}
	return nil
}

// subscribeProgress prints one line per event. The subscription outlives a
// cancelled run so the final events still print; it ends when the bus closes.
func subscribeProgress(bus *events.Bus, cmd *cobra.Command, quiet bool) error {
	out := cmd.OutOrStdout()
	opts := status.FormatOptions{NoColor: noColor(cmd), Quiet: quiet}
	return bus.Subscribe(context.Background(), func(_ context.Context, ev types.Event) error {
		if line := status.FormatEvent(ev, opts); line != "" {
			fmt.Fprintln(out, line)
		}
		return nil
	})
}

func pickWorkflow(cmd *cobra.Command, p *project) (string, error) {
	list, err := p.defs.List()
	if err != nil {
		return "", err
	}
	if len(list) == 0 {
		return "", fmt.Errorf("no workflows found in %s", p.defs.Dir())
	}

	options := make([]cli.SelectOption, len(list))
	for i, s := range list {
		label := fmt.Sprintf("%s (%d steps)", s.Name, s.Steps)
		if s.Description != "" {
			label += " - " + s.Description
		}
		options[i] = cli.SelectOption{Value: s.Name, Label: label}
	}

	prompter := cli.NewPrompter(cmd.InOrStdin(), cmd.OutOrStdout())
	return prompter.Select("Which workflow?", options)
}
