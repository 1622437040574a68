package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/akatz-ai/stepgraph/internal/logging"
	"github.com/akatz-ai/stepgraph/internal/orchestrator"
	"github.com/akatz-ai/stepgraph/internal/runner"
	"github.com/akatz-ai/stepgraph/internal/runstore"
	"github.com/akatz-ai/stepgraph/internal/server"
	"github.com/akatz-ai/stepgraph/internal/telemetry"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: `Serve workflows and runs over HTTP.

Routes:
  GET    /workflows                 list definitions
  POST   /workflows                 store a definition (JSON, YAML or TOML body)
  GET    /workflows/:name           definition and layers
  DELETE /workflows/:name           delete a definition
  POST   /workflows/:name/validate  validate a stored definition
  POST   /workflows/:name/runs      start a run (202 Accepted)
  GET    /runs                      list runs
  GET    /runs/:id                  one run, live while in flight
  GET    /livez, /readyz, /health   health checks

On SIGINT or SIGTERM in-flight runs are cancelled and recorded before exit.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	p, err := loadProject()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, logFile, err := logging.NewFromConfig(p.cfg, p.dir)
	if err != nil {
		return fmt.Errorf("opening log: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}

	store, err := runstore.Open(ctx, p.cfg, p.dir)
	if err != nil {
		return fmt.Errorf("opening run store: %w", err)
	}
	defer store.Close()

	tracer, shutdownTracing, err := telemetry.Setup(ctx, p.cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}

	opts := orchestrator.OptionsFromConfig(p.cfg)
	opts.Tracer = tracer

	srv, err := server.New(server.Config{
		Definitions: p.defs,
		Runs:        store,
		Runner:      runner.NewCommandRunner(p.cfg),
		Options:     opts,
		Logger:      logger,
		AccessLog:   verbose,
	})
	if err != nil {
		return err
	}

	addr := p.cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return shutdownTracing(shutdownCtx)
}
