package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/akatz-ai/stepgraph/internal/definition"
)

var createForce bool

var createCmd = &cobra.Command{
	Use:   "create <file>",
	Short: "Validate a definition file and add it to the project",
	Long: `Validate a definition file and store it in the project's workflows
directory as <name>.toml, where name is the workflow's name field.

An existing workflow with the same name is only replaced with --force.`,
	Args: cobra.ExactArgs(1),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().BoolVarP(&createForce, "force", "f", false, "replace an existing workflow")
	rootCmd.AddCommand(createCmd)
}

func runCreate(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	path := args[0]
	if !filepath.IsAbs(path) {
		path = filepath.Join(p.dir, path)
	}
	def, err := definition.ParseFile(path)
	if err != nil {
		return err
	}

	layers, err := definition.Validate(def, p.graphOptions())
	if err != nil {
		return err
	}

	if p.defs.Exists(def.Name) && !createForce {
		return fmt.Errorf("workflow %q already exists (use --force to replace it)", def.Name)
	}
	if err := p.defs.Save(def); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Created workflow %s (%d steps in %d layers)\n", def.Name, len(def.Steps), len(layers))
	return nil
}
