package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akatz-ai/stepgraph/internal/runstore"
	"github.com/akatz-ai/stepgraph/internal/status"
	"github.com/akatz-ai/stepgraph/internal/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect recorded runs",
}

var (
	runsWorkflow string
	runsStatus   string
	runsLimit    int
	runsStale    bool
	runsJSON     bool
	runsAll      bool
)

var runsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List recorded runs, newest first",
	Long: `List recorded runs, newest first.

Examples:
  stepgraph runs ls                     # every run
  stepgraph runs ls --workflow=hello    # runs of one workflow
  stepgraph runs ls --status=failed     # failed runs
  stepgraph runs ls --stale             # marked running but no process holds the lock`,
	Args: cobra.NoArgs,
	RunE: runRunsLs,
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show one run in detail",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func init() {
	runsLsCmd.Flags().StringVar(&runsWorkflow, "workflow", "", "filter by workflow name")
	runsLsCmd.Flags().StringVar(&runsStatus, "status", "", "filter by status (running, succeeded, failed, skipped_partial)")
	runsLsCmd.Flags().IntVarP(&runsLimit, "limit", "n", 0, "maximum runs to list (0 = all)")
	runsLsCmd.Flags().BoolVar(&runsStale, "stale", false, "only runs marked running whose process is gone (file store)")
	runsLsCmd.Flags().BoolVar(&runsJSON, "json", false, "output as JSON")

	runsShowCmd.Flags().BoolVar(&runsJSON, "json", false, "output as JSON")
	runsShowCmd.Flags().BoolVarP(&runsAll, "all", "a", false, "list every step with its output")

	runsCmd.AddCommand(runsLsCmd, runsShowCmd)
	rootCmd.AddCommand(runsCmd)
}

func runRunsLs(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	filter := runstore.Filter{
		Workflow: runsWorkflow,
		Status:   types.RunStatus(runsStatus),
		Limit:    runsLimit,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return fmt.Errorf("unknown status %q", runsStatus)
	}

	store, err := runstore.Open(ctx, p.cfg, p.dir)
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	defer store.Close()

	if runsStale {
		filter.Status = types.RunStatusRunning
	}
	runs, err := store.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing runs: %w", err)
	}

	if runsStale {
		yamlStore, ok := store.(*runstore.YAMLStore)
		if !ok {
			return fmt.Errorf("--stale needs the file store backend")
		}
		stale := runs[:0]
		for _, run := range runs {
			if !yamlStore.IsLocked(run.RunID) {
				stale = append(stale, run)
			}
		}
		runs = stale
	}

	if runsJSON {
		if runs == nil {
			runs = []*types.WorkflowResult{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(runs)
	}

	if len(runs) == 0 {
		fmt.Fprintln(out, "No runs found")
		return nil
	}
	fmt.Fprintln(out, status.FormatRunList(runs, status.FormatOptions{NoColor: noColor(cmd)}))
	return nil
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	store, err := runstore.Open(ctx, p.cfg, p.dir)
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	defer store.Close()

	run, err := store.Get(ctx, args[0])
	if err != nil {
		return err
	}

	if runsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Fprint(out, status.FormatRun(run, status.FormatOptions{NoColor: noColor(cmd), AllSteps: runsAll || verbose}))
	return nil
}
