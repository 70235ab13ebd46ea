package web

import (
	"errors"

	"github.com/dukex/signflow/pkg/intake"
	"github.com/dukex/signflow/pkg/workflow"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func badRequest(c fiber.Ctx, detail string) error {
	problem := problems.NewStatusProblem(fiber.StatusBadRequest).
		WithInstance(c.Path()).
		WithType("validation_error").
		WithDetail(detail)

	return c.Status(fiber.StatusBadRequest).JSON(problem)
}

func internalError(c fiber.Ctx, err error) error {
	problem := problems.NewStatusProblem(fiber.StatusInternalServerError).
		WithInstance(c.Path()).
		WithType("internal_error").
		WithError(err)

	return c.Status(fiber.StatusInternalServerError).JSON(problem)
}

// problemType names a business rejection for the problem body.
func problemType(err error) (int, string) {
	switch {
	case workflow.IsNotFound(err):
		return fiber.StatusNotFound, "not_found"
	case errors.Is(err, workflow.ErrConcurrentModification):
		return fiber.StatusConflict, "concurrent_modification"
	case workflow.IsConflict(err):
		return fiber.StatusConflict, "conflict"
	case workflow.IsInvalidState(err):
		return fiber.StatusUnprocessableEntity, "invalid_state"
	case errors.Is(err, intake.ErrInvalidPayload):
		return fiber.StatusUnprocessableEntity, "invalid_payload"
	default:
		return fiber.StatusInternalServerError, "internal_error"
	}
}

// handleError maps engine and intake errors to problems. Unknown errors are internal.
func handleError(c fiber.Ctx, err error) error {
	status, kind := problemType(err)
	if status == fiber.StatusInternalServerError {
		return internalError(c, err)
	}

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(err.Error())

	return c.Status(status).JSON(problem)
}

// handleResult writes an accepted transition or the problem of a rejected one.
func handleResult(c fiber.Ctx, result *workflow.Result, err error) error {
	if err != nil {
		return handleError(c, err)
	}

	if result.Success {
		return c.JSON(toResultResponse(result))
	}

	status, kind := problemType(result.Reason)
	if status == fiber.StatusInternalServerError {
		status, kind = fiber.StatusUnprocessableEntity, "rejected"
	}

	problem := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(result.Message)

	return c.Status(status).JSON(problem)
}
