package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akatz-ai/stepgraph/internal/definition"
	serrors "github.com/akatz-ai/stepgraph/internal/errors"
	"github.com/akatz-ai/stepgraph/internal/status"
)

var validateCmd = &cobra.Command{
	Use:   "validate <name|file>",
	Short: "Check a workflow definition and print its layers",
	Long: `Validate a workflow definition without running it.

Reports every problem found: duplicate step names, dependencies on unknown
steps, cycles, and {{step.output}} references to steps that are not
dependencies. On success the execution layers are printed.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	def, err := p.resolveDefinition(args[0])
	if err != nil {
		return err
	}

	layers, err := definition.Validate(def, p.graphOptions())
	if err != nil {
		var verrs *serrors.ValidationErrors
		if errors.As(err, &verrs) && len(verrs.Errors) > 1 {
			fmt.Fprintf(out, "%s: %d problems\n", def.Name, len(verrs.Errors))
			for _, e := range verrs.Errors {
				fmt.Fprintf(out, "  ✗ %s\n", e.Error())
			}
			return fmt.Errorf("workflow %q is invalid", def.Name)
		}
		return err
	}

	fmt.Fprintf(out, "✓ %s is valid\n\n", def.Name)
	fmt.Fprint(out, status.FormatLayers(def.Name, layers))
	return nil
}
