package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/akatz-ai/stepgraph/internal/definition"
	"github.com/akatz-ai/stepgraph/internal/status"
	"github.com/akatz-ai/stepgraph/internal/types"
)

var (
	showJSON  bool
	showQuiet bool
)

var showCmd = &cobra.Command{
	Use:   "show <name|file>",
	Short: "Show a workflow's steps and execution layers",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	showCmd.Flags().BoolVar(&showJSON, "json", false, "output as JSON")
	showCmd.Flags().BoolVarP(&showQuiet, "quiet", "q", false, "omit prompts")
	rootCmd.AddCommand(showCmd)
}

type showOutput struct {
	Definition *types.WorkflowDefinition `json:"definition"`
	Layers     [][]string                `json:"layers,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

func runShow(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	def, err := p.resolveDefinition(args[0])
	if err != nil {
		return err
	}

	// An invalid definition is still shown, without a plan.
	layers, verr := definition.Validate(def, p.graphOptions())

	if showJSON {
		res := showOutput{Definition: def, Layers: layers}
		if verr != nil {
			res.Error = verr.Error()
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}

	_, err = out.Write([]byte(status.FormatDefinition(def, layers, status.FormatOptions{NoColor: noColor(cmd), Quiet: showQuiet})))
	if err != nil {
		return err
	}
	return verr
}
