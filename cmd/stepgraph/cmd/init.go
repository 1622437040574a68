package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/akatz-ai/stepgraph/internal/config"
)

const defaultConfig = `# stepgraph configuration
version = "1"

[paths]
workflows_dir = ".stepgraph/workflows"
runs_dir = ".stepgraph/runs"
logs_dir = ".stepgraph/logs"

[defaults]
profile = "default"
step_timeout = "300s"

[orchestrator]
# Steps of one layer running at once. 0 means unbounded.
max_concurrency = 4
strict_references = true
cancel_grace = "5s"

[logging]
level = "info"
format = "text"

[store]
backend = "file"
# backend = "redis"
# redis_addr = "localhost:6379"

[tracing]
enabled = false
service_name = "stepgraph"

[server]
addr = ":8080"

# Each profile maps to a shell command. The resolved prompt arrives on stdin
# and in $STEPGRAPH_PROMPT; stdout becomes the step output.
[profiles.default]
command = "cat"
`

const sampleWorkflow = `name = "hello"
description = "Draft a greeting, then review it"

[[steps]]
name = "draft"
prompt = "Write a one-line greeting."

[[steps]]
name = "review"
prompt = "Review this greeting: {{draft.output}}"
depends_on = ["draft"]
`

const defaultGitignore = `runs/
logs/
`

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a stepgraph project",
	Long: `Initialize a new stepgraph project in the current directory.

Creates the following structure:

  .stepgraph/
  ├── config.toml      # Project configuration
  ├── workflows/       # Workflow definitions (hello.toml sample included)
  ├── runs/            # Run records (gitignored)
  └── logs/            # Per-run log files (gitignored)`,
	RunE: runInit,
}

var initSkipSample bool

func init() {
	initCmd.Flags().BoolVar(&initSkipSample, "skip-sample", false, "do not create the sample workflow")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := getWorkDir()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	projectDir := filepath.Join(dir, config.ProjectDir)
	if _, err := os.Stat(projectDir); err == nil {
		return fmt.Errorf("stepgraph project already initialized (found %s directory)", config.ProjectDir)
	}

	dirs := []string{
		filepath.Join(projectDir, "workflows"),
		filepath.Join(projectDir, "runs"),
		filepath.Join(projectDir, "logs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0755); err != nil {
			return fmt.Errorf("creating directory %s: %w", d, err)
		}
	}

	files := map[string]string{
		filepath.Join(projectDir, "config.toml"): defaultConfig,
		filepath.Join(projectDir, ".gitignore"):  defaultGitignore,
	}
	if !initSkipSample {
		files[filepath.Join(projectDir, "workflows", "hello.toml")] = sampleWorkflow
	}
	for path, content := range files {
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
		}
	}

	fmt.Fprintf(out, "Initialized stepgraph project in %s\n", projectDir)
	if !initSkipSample {
		fmt.Fprintln(out)
		fmt.Fprintln(out, "Try it:")
		fmt.Fprintln(out, "  stepgraph show hello")
		fmt.Fprintln(out, "  stepgraph run hello")
	}
	return nil
}
