// Package runner provides agent runners that execute a step's resolved prompt.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"github.com/akatz-ai/stepgraph/internal/config"
	serrors "github.com/akatz-ai/stepgraph/internal/errors"
	"github.com/akatz-ai/stepgraph/internal/types"
)

// Environment variables exported to profile commands.
const (
	EnvPrompt   = "STEPGRAPH_PROMPT"
	EnvWorkflow = "STEPGRAPH_WORKFLOW"
	EnvStep     = "STEPGRAPH_STEP"
	EnvProfile  = "STEPGRAPH_PROFILE"
	EnvSession  = "STEPGRAPH_SESSION"
	EnvRunID    = "STEPGRAPH_RUN_ID"
)

const (
	defaultShell = "/bin/sh"
	defaultGrace = 3 * time.Second
	stderrTail   = 512
)

// ExitError reports a profile command that exited non-zero.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return fmt.Sprintf("exit status %d: %s", e.Code, e.Stderr)
}

// CommandRunner maps each profile to a shell command. The resolved prompt is
// written to the command's stdin and exported in the environment; stdout is
// the step output.
type CommandRunner struct {
	Profiles       map[string]config.ProfileConfig
	DefaultProfile string

	// Shell runs the profile command with -c. Defaults to /bin/sh.
	Shell string

	// Grace is the wait between SIGTERM and SIGKILL on cancellation.
	Grace time.Duration
}

// NewCommandRunner builds a runner from the [profiles] configuration.
func NewCommandRunner(cfg *config.Config) *CommandRunner {
	return &CommandRunner{
		Profiles:       cfg.Profiles,
		DefaultProfile: cfg.Defaults.Profile,
		Shell:          defaultShell,
		Grace:          cfg.Orchestrator.CancelGrace,
	}
}

// profile returns the configuration for name, falling back to the default profile.
func (r *CommandRunner) profile(name string) (config.ProfileConfig, error) {
	if p, ok := r.Profiles[name]; ok {
		return p, nil
	}
	fallback := r.DefaultProfile
	if fallback == "" {
		fallback = types.DefaultProfile
	}
	if p, ok := r.Profiles[fallback]; ok {
		return p, nil
	}
	return config.ProfileConfig{}, serrors.UnknownProfile(name)
}

// Run executes the profile command for req.
//
// When ctx is cancelled the process group gets SIGTERM, then SIGKILL after
// the grace period, and ctx.Err() is returned.
func (r *CommandRunner) Run(ctx context.Context, req types.RunRequest) (string, error) {
	p, err := r.profile(req.Profile)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(p.Command) == "" {
		return "", serrors.ConfigInvalidValue("profiles."+req.Profile+".command", p.Command, "must not be empty")
	}

	shell := r.Shell
	if shell == "" {
		shell = defaultShell
	}

	// Not CommandContext: cancellation is handled below to allow SIGTERM first.
	cmd := exec.Command(shell, "-c", p.Command)
	if p.Workdir != "" {
		cmd.Dir = p.Workdir
	}
	cmd.Env = commandEnv(p, req)
	cmd.Stdin = strings.NewReader(req.Prompt)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	// Own process group so the whole tree can be signalled.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("starting profile %q command: %w", req.Profile, err)
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case <-ctx.Done():
		r.terminate(cmd, done)
		return "", ctx.Err()

	case err := <-done:
		if err != nil {
			if exitErr, ok := err.(*exec.ExitError); ok {
				return "", &ExitError{Code: exitErr.ExitCode(), Stderr: tail(stderr.String(), stderrTail)}
			}
			return "", err
		}
	}

	return strings.TrimSuffix(stdout.String(), "\n"), nil
}

func (r *CommandRunner) terminate(cmd *exec.Cmd, done <-chan error) {
	if cmd.Process == nil {
		return
	}
	grace := r.Grace
	if grace <= 0 {
		grace = defaultGrace
	}

	_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGTERM)

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-done:
	case <-timer.C:
		_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		<-done
	}
}

func commandEnv(p config.ProfileConfig, req types.RunRequest) []string {
	env := os.Environ()
	for k, v := range p.Env {
		env = append(env, k+"="+v)
	}
	return append(env,
		EnvPrompt+"="+req.Prompt,
		EnvWorkflow+"="+req.Workflow,
		EnvStep+"="+req.Step,
		EnvProfile+"="+req.Profile,
		EnvSession+"="+req.SessionKey(),
		EnvRunID+"="+req.RunID,
	)
}

// tail returns at most n trailing bytes of s, trimmed.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) > n {
		s = "..." + s[len(s)-n:]
	}
	return s
}
