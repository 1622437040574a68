package server

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v3"

	"github.com/akatz-ai/stepgraph/internal/definition"
	serrors "github.com/akatz-ai/stepgraph/internal/errors"
	"github.com/akatz-ai/stepgraph/internal/graph"
	"github.com/akatz-ai/stepgraph/internal/orchestrator"
	"github.com/akatz-ai/stepgraph/internal/runner"
	"github.com/akatz-ai/stepgraph/internal/runstore"
	"github.com/akatz-ai/stepgraph/internal/types"
)

// Health reports whether the run store answers.
func (s *Server) Health(c fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), 2*time.Second)
	defer cancel()

	status := "healthy"
	httpStatus := http.StatusOK
	storeCheck := "ok"
	if _, err := s.runs.List(ctx, runstore.Filter{Limit: 1}); err != nil {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
		storeCheck = err.Error()
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status": status,
		"checkers": fiber.Map{
			"run_store": storeCheck,
		},
		"in_flight": len(s.inflight.list()),
		"timestamp": s.now().UTC(),
	})
}

func (s *Server) ListWorkflows(c fiber.Ctx) error {
	list, err := s.defs.List()
	if err != nil {
		return internalError(c, err)
	}
	if list == nil {
		list = []definition.Summary{}
	}
	return c.JSON(WorkflowListResponse{Workflows: list})
}

// CreateWorkflow stores the definition in the request body. The body format
// follows Content-Type (JSON, YAML or TOML). An existing workflow is only
// replaced with ?overwrite=true.
func (s *Server) CreateWorkflow(c fiber.Ctx) error {
	format, err := bodyFormat(c.Get(fiber.HeaderContentType))
	if err != nil {
		return badRequest(c, err.Error())
	}

	def, err := definition.Parse(c.Body(), format)
	if err != nil {
		return handleError(c, err)
	}

	layers, err := definition.Validate(def, s.graphOptions())
	if err != nil {
		return invalidDefinition(c, err)
	}

	overwrite, _ := strconv.ParseBool(c.Query("overwrite"))
	if s.defs.Exists(def.Name) && !overwrite {
		return conflict(c, "workflow "+strconv.Quote(def.Name)+" already exists")
	}

	if err := s.defs.Save(def); err != nil {
		return handleError(c, err)
	}

	s.logger.Info("workflow saved", "workflow", def.Name, "steps", len(def.Steps))
	c.Location("/workflows/" + def.Name)
	return c.Status(fiber.StatusCreated).JSON(WorkflowResponse{Definition: def, Layers: layers})
}

func (s *Server) GetWorkflow(c fiber.Ctx) error {
	def, err := s.defs.Load(c.Params("name"))
	if err != nil {
		return handleError(c, err)
	}

	resp := WorkflowResponse{Definition: def}
	if layers, err := definition.Validate(def, s.graphOptions()); err != nil {
		resp.Error = err.Error()
	} else {
		resp.Layers = layers
	}
	return c.JSON(resp)
}

func (s *Server) DeleteWorkflow(c fiber.Ctx) error {
	name := c.Params("name")
	if err := s.defs.Delete(name); err != nil {
		return handleError(c, err)
	}
	s.logger.Info("workflow deleted", "workflow", name)
	return c.SendStatus(fiber.StatusNoContent)
}

func (s *Server) ValidateWorkflow(c fiber.Ctx) error {
	def, err := s.defs.Load(c.Params("name"))
	if err != nil {
		return handleError(c, err)
	}

	layers, err := definition.Validate(def, s.graphOptions())
	if err != nil {
		return invalidDefinition(c, err)
	}
	return c.JSON(ValidateResponse{Valid: true, Layers: layers})
}

// StartRun validates the stored workflow and runs it in the background.
func (s *Server) StartRun(c fiber.Ctx) error {
	var req StartRunRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}
	if err := s.validate.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	def, err := s.defs.Load(c.Params("name"))
	if err != nil {
		return handleError(c, err)
	}

	engine := s.engineFor(req)
	layers, err := engine.Validate(def)
	if err != nil {
		return invalidDefinition(c, err)
	}

	runID := orchestrator.NewRunID()
	s.inflight.begin(runID, def.Name, layers, s.now())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		res, err := engine.RunWithID(s.ctx, runID, def)
		if err != nil {
			s.inflight.forget(runID)
			s.logger.Error("run rejected", "run_id", runID, "workflow", def.Name, "error", err)
			return
		}
		s.logger.Info("run completed", "run_id", runID, "workflow", def.Name, "status", res.Status)
	}()

	location := "/runs/" + runID
	c.Location(location)
	return c.Status(fiber.StatusAccepted).JSON(StartRunResponse{
		RunID:    runID,
		Workflow: def.Name,
		Layers:   layers,
		Location: location,
	})
}

// ListRuns merges in-flight runs with stored records.
// Query: workflow, status, limit.
func (s *Server) ListRuns(c fiber.Ctx) error {
	filter := runstore.Filter{
		Workflow: c.Query("workflow"),
		Status:   types.RunStatus(c.Query("status")),
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return badRequest(c, "unknown status "+strconv.Quote(string(filter.Status)))
	}
	if limitStr := c.Query("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 0 {
			return badRequest(c, "Invalid query parameters: limit must be a non-negative integer")
		}
		filter.Limit = limit
	}

	stored, err := s.runs.List(c.Context(), filter)
	if err != nil {
		return handleError(c, err)
	}

	runs := make([]*types.WorkflowResult, 0, len(stored))
	seen := make(map[string]bool)
	for _, snap := range s.inflight.list() {
		if filter.Match(snap) {
			runs = append(runs, snap)
			seen[snap.RunID] = true
		}
	}
	for _, run := range stored {
		if !seen[run.RunID] {
			runs = append(runs, run)
		}
	}
	if filter.Limit > 0 && len(runs) > filter.Limit {
		runs = runs[:filter.Limit]
	}

	return c.JSON(RunListResponse{Runs: runs})
}

// GetRun returns the live snapshot of an in-flight run, or the stored record.
func (s *Server) GetRun(c fiber.Ctx) error {
	id := c.Params("id")
	if !orchestrator.IsRunID(id) {
		return notFound(c, "run_not_found", serrors.RunNotFound(id))
	}

	if snap, ok := s.inflight.get(id); ok {
		return c.JSON(snap)
	}

	run, err := s.runs.Get(c.Context(), id)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(run)
}

func (s *Server) engineFor(req StartRunRequest) *orchestrator.Engine {
	opts := s.opts
	if req.MaxConcurrency != nil {
		opts.MaxConcurrency = *req.MaxConcurrency
	}
	if req.TimeoutSeconds > 0 {
		opts.DefaultTimeout = time.Duration(req.TimeoutSeconds) * time.Second
	}

	var r orchestrator.Runner = s.runner
	if req.DryRun {
		r = runner.EchoRunner{}
	}
	return orchestrator.NewEngine(r, s.logger, opts)
}

func (s *Server) graphOptions() graph.Options {
	return graph.Options{StrictReferences: s.opts.StrictReferences}
}

var errUnsupportedMedia = errors.New("unsupported Content-Type; use application/json, application/yaml or application/toml")

func bodyFormat(contentType string) (definition.Format, error) {
	if contentType == "" {
		return definition.FormatJSON, nil
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return "", errUnsupportedMedia
	}
	switch mediaType {
	case fiber.MIMEApplicationJSON:
		return definition.FormatJSON, nil
	case "application/yaml", "application/x-yaml", "text/yaml":
		return definition.FormatYAML, nil
	case "application/toml", "text/toml":
		return definition.FormatTOML, nil
	}
	return "", errUnsupportedMedia
}
