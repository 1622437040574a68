// Package server exposes workflow definitions and runs over HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/akatz-ai/stepgraph/internal/definition"
	"github.com/akatz-ai/stepgraph/internal/events"
	"github.com/akatz-ai/stepgraph/internal/orchestrator"
	"github.com/akatz-ai/stepgraph/internal/runstore"
)

// Config holds the server's collaborators.
type Config struct {
	Definitions *definition.FileStore
	Runs        runstore.Store
	Runner      orchestrator.Runner
	Options     orchestrator.Options
	Logger      *slog.Logger
	// AccessLog enables the request logging middleware.
	AccessLog bool
}

// Server runs workflows asynchronously on behalf of HTTP clients.
type Server struct {
	logger   *slog.Logger
	defs     *definition.FileStore
	runs     runstore.Store
	runner   orchestrator.Runner
	opts     orchestrator.Options
	bus      *events.Bus
	inflight *tracker
	validate *validator.Validate
	app      *fiber.App

	// ctx bounds every run started by the server.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New wires the event bus, run recorder and routes.
func New(cfg Config) (*Server, error) {
	if cfg.Definitions == nil || cfg.Runs == nil || cfg.Runner == nil {
		return nil, fmt.Errorf("server: definitions, runs and runner are required")
	}
	log := cfg.Logger
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	log = log.With("component", "server")

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		logger:   log,
		defs:     cfg.Definitions,
		runs:     cfg.Runs,
		runner:   cfg.Runner,
		bus:      events.NewInMemoryBus(log),
		inflight: newTracker(),
		validate: definition.Validator(),
		ctx:      ctx,
		cancel:   cancel,
	}

	opts := cfg.Options
	opts.Observers = append(append(orchestrator.Observers{}, opts.Observers...),
		runstore.NewRecorder(cfg.Runs, log),
		s.bus,
	)
	s.opts = opts

	if err := s.bus.Subscribe(ctx, s.inflight.handle); err != nil {
		cancel()
		return nil, err
	}

	s.app = s.routes(cfg.AccessLog)
	return s, nil
}

func (s *Server) routes(accessLog bool) *fiber.App {
	app := fiber.New(fiber.Config{AppName: "stepgraph"})
	app.Use(cors.New())
	if accessLog {
		app.Use(logger.New(logger.Config{
			DisableColors: true,
		}))
	}

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())
	app.Get("/health", s.Health)

	w := app.Group("/workflows")
	w.Get("/", s.ListWorkflows)
	w.Post("/", s.CreateWorkflow)
	w.Get("/:name", s.GetWorkflow)
	w.Delete("/:name", s.DeleteWorkflow)
	w.Post("/:name/validate", s.ValidateWorkflow)
	w.Post("/:name/runs", s.StartRun)

	r := app.Group("/runs")
	r.Get("/", s.ListRuns)
	r.Get("/:id", s.GetRun)

	return app
}

// App returns the fiber application.
func (s *Server) App() *fiber.App { return s.app }

// Listen serves HTTP on addr until Shutdown.
func (s *Server) Listen(addr string) error {
	s.logger.Info("listening", "addr", addr)
	return s.app.Listen(addr, fiber.ListenConfig{DisableStartupMessage: true})
}

// Shutdown cancels in-flight runs, waits for them to record their results
// and stops the HTTP listener.
func (s *Server) Shutdown(ctx context.Context) error {
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("runs still in flight at shutdown")
	}

	if err := s.bus.Close(); err != nil {
		s.logger.Warn("closing event bus", "error", err)
	}
	return s.app.ShutdownWithContext(ctx)
}

// Wait blocks until every run started so far has finished.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) now() time.Time {
	if s.opts.Now != nil {
		return s.opts.Now()
	}
	return time.Now()
}
