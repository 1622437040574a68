package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akatz-ai/stepgraph/internal/cli"
)

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a stored workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE:  runDelete,
}

func init() {
	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "do not ask for confirmation")
	rootCmd.AddCommand(deleteCmd)
}

func runDelete(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	name := args[0]

	if _, err := p.defs.Load(name); err != nil {
		return err
	}

	if !deleteYes {
		prompter := cli.NewPrompter(cmd.InOrStdin(), out)
		ok, err := prompter.Confirm(fmt.Sprintf("Delete workflow %s?", name), false)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(out, "Aborted.")
			return nil
		}
	}

	if err := p.defs.Delete(name); err != nil {
		return err
	}
	fmt.Fprintf(out, "Deleted workflow %s\n", name)
	return nil
}
