package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/akatz-ai/stepgraph/internal/definition"
)

var lsJSON bool

var lsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List workflow definitions",
	Long: `List the workflow definitions stored in this project.

Files that fail to parse are left out; run 'stepgraph validate <file>' to see why.`,
	Args: cobra.NoArgs,
	RunE: runLs,
}

func init() {
	lsCmd.Flags().BoolVar(&lsJSON, "json", false, "output as JSON")
	rootCmd.AddCommand(lsCmd)
}

func runLs(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	list, err := p.defs.List()
	if err != nil {
		return fmt.Errorf("listing workflows: %w", err)
	}

	if lsJSON {
		if list == nil {
			list = []definition.Summary{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(list)
	}

	if len(list) == 0 {
		fmt.Fprintln(out, "No workflows found.")
		fmt.Fprintln(out)
		fmt.Fprintf(out, "Add a definition to %s or run 'stepgraph create <file>'.\n", p.defs.Dir())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tSTEPS\tDESCRIPTION")
	for _, s := range list {
		fmt.Fprintf(w, "%s\t%d\t%s\n", s.Name, s.Steps, s.Description)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(out, "\n(from %s)\n", p.defs.Dir())
	}
	return nil
}
