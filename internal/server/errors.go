package server

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"

	serrors "github.com/akatz-ai/stepgraph/internal/errors"
)

// ProblemContentType is the RFC 7807 media type.
const ProblemContentType = "application/problem+json"

// Problem is an RFC 7807 body with the coded errors behind it.
type Problem struct {
	*problems.DefaultProblem
	Code   string           `json:"code,omitempty"`
	Errors []*serrors.Error `json:"errors,omitempty"`
}

func sendProblem(c fiber.Ctx, p *Problem) error {
	return c.Status(p.Status).JSON(p, ProblemContentType)
}

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return sendProblem(c, &Problem{DefaultProblem: problem})
}

func notFound(c fiber.Ctx, typ string, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusNotFound).
		WithInstance(c.Path()).
		WithType(typ).
		WithDetail(err.Error())

	return sendProblem(c, &Problem{DefaultProblem: problem, Code: serrors.Code(err)})
}

func conflict(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusConflict).
		WithInstance(c.Path()).
		WithType("conflict").
		WithDetail(detail)

	return sendProblem(c, &Problem{DefaultProblem: problem})
}

func invalidDefinition(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusUnprocessableEntity).
		WithInstance(c.Path()).
		WithType("invalid_definition").
		WithDetail(err.Error())

	p := &Problem{DefaultProblem: problem, Code: serrors.Code(err)}

	var verrs *serrors.ValidationErrors
	var serr *serrors.Error
	switch {
	case errors.As(err, &verrs):
		p.Errors = verrs.Errors
	case errors.As(err, &serr):
		p.Errors = []*serrors.Error{serr}
	}
	return sendProblem(c, p)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return sendProblem(c, &Problem{DefaultProblem: problem, Code: serrors.Code(err)})
}

// handleError maps coded errors to problem responses.
func handleError(c fiber.Ctx, err error) error {
	var fieldErrs validator.ValidationErrors

	switch code := serrors.Code(err); {
	case code == serrors.CodeDefNotFound:
		return notFound(c, "workflow_not_found", err)
	case code == serrors.CodeRunNotFound:
		return notFound(c, "run_not_found", err)
	case errors.As(err, &fieldErrs):
		return badRequest(c, err.Error())
	case isDefinitionError(err):
		return invalidDefinition(c, err)
	default:
		return internalError(c, err)
	}
}

func isDefinitionError(err error) bool {
	for _, code := range []string{
		serrors.CodeDefDuplicateStep,
		serrors.CodeDefDanglingDependency,
		serrors.CodeDefCycleDetected,
		serrors.CodeDefUndeclaredRef,
		serrors.CodeDefUnknownRef,
		serrors.CodeDefInvalidField,
		serrors.CodeDefParseError,
	} {
		if serrors.AnyCode(err, code) {
			return true
		}
	}
	return false
}
