package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/akatz-ai/stepgraph/internal/config"
	"github.com/akatz-ai/stepgraph/internal/definition"
	"github.com/akatz-ai/stepgraph/internal/graph"
	"github.com/akatz-ai/stepgraph/internal/types"
)

var (
	// Version is set at build time via ldflags
	Version = "dev"

	// Global flags
	verbose bool
	workDir string
)

var rootCmd = &cobra.Command{
	Use:   "stepgraph",
	Short: "Run dependency-ordered agent workflows",
	Long: `stepgraph runs workflows of named agent steps.

Each step has a prompt, an agent profile and optional dependencies. Steps are
grouped into layers: every step in a layer runs concurrently once the previous
layer has finished. A prompt can quote an earlier step's output with
{{step.output}}. When a step fails, everything that depends on it is skipped.

Workflows live in .stepgraph/workflows/ as TOML, YAML or JSON files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		// No subcommand: list workflows, or show help outside a project.
		if checkWorkDir() != nil {
			return cmd.Help()
		}
		return runLs(cmd, args)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVarP(&workDir, "workdir", "C", "", "working directory (default: current)")

	rootCmd.Version = Version
	rootCmd.SetVersionTemplate("stepgraph {{.Version}}\n")
}

// getWorkDir returns the effective working directory.
func getWorkDir() (string, error) {
	if workDir != "" {
		return workDir, nil
	}
	return os.Getwd()
}

// checkWorkDir ensures we're in a stepgraph project directory.
func checkWorkDir() error {
	dir, err := getWorkDir()
	if err != nil {
		return fmt.Errorf("getting working directory: %w", err)
	}

	if _, err := os.Stat(filepath.Join(dir, config.ProjectDir)); os.IsNotExist(err) {
		return fmt.Errorf("not a stepgraph project (no %s directory).\n  Run 'stepgraph init' to create one", config.ProjectDir)
	}
	return nil
}

// project is the loaded state every command starts from.
type project struct {
	dir  string
	cfg  *config.Config
	defs *definition.FileStore
}

func loadProject() (*project, error) {
	if err := checkWorkDir(); err != nil {
		return nil, err
	}
	dir, err := getWorkDir()
	if err != nil {
		return nil, err
	}

	cfg, err := config.LoadFromDir(dir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	defs, err := definition.NewFileStore(cfg.WorkflowsDir(dir), graphOptionsFor(cfg))
	if err != nil {
		return nil, err
	}
	return &project{dir: dir, cfg: cfg, defs: defs}, nil
}

func graphOptionsFor(cfg *config.Config) graph.Options {
	return graph.Options{StrictReferences: cfg.Orchestrator.StrictReferences}
}

func (p *project) graphOptions() graph.Options {
	return graphOptionsFor(p.cfg)
}

// resolveDefinition loads ref as a file when it looks like a path to one,
// otherwise as a stored workflow name.
func (p *project) resolveDefinition(ref string) (*types.WorkflowDefinition, error) {
	if isDefinitionFile(ref) {
		path := ref
		if !filepath.IsAbs(path) {
			path = filepath.Join(p.dir, path)
		}
		return definition.ParseFile(path)
	}
	return p.defs.Load(ref)
}

func isDefinitionFile(ref string) bool {
	if strings.ContainsRune(ref, filepath.Separator) {
		return true
	}
	ext := strings.ToLower(filepath.Ext(ref))
	for _, known := range definition.Extensions {
		if ext == known {
			return true
		}
	}
	return false
}

// noColor reports whether output should be plain: NO_COLOR is set or the
// command is not writing to a terminal.
func noColor(cmd *cobra.Command) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return true
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	if !ok {
		return true
	}
	info, err := f.Stat()
	if err != nil {
		return true
	}
	return info.Mode()&os.ModeCharDevice == 0
}
