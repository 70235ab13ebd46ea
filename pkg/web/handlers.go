// Package web provides the HTTP handlers of the document validation API.
package web

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/dukex/signflow/pkg/intake"
	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Engine is the part of the workflow engine exposed over HTTP.
type Engine interface {
	CreateDocument(ctx context.Context, name, mimeType string, content []byte) (*models.Document, error)
	CreateWorkflow(ctx context.Context, input workflow.CreateWorkflowInput) (*models.Workflow, error)
	Workflow(ctx context.Context, id string) (*models.Workflow, error)
	Document(ctx context.Context, id string) (*models.Document, error)
	Activity(ctx context.Context, workflowID string) ([]*models.Activity, error)
	ProcessReturn(ctx context.Context, workflowID string, data models.ReturnFileData) (*workflow.Result, error)
	ProcessParallelReturn(ctx context.Context, workflowID string, data models.ReturnFileData, participantEmail string) (*workflow.Result, error)
	ResubmitStepAfterCorrection(ctx context.Context, workflowID string, stepIndex int, newContent []byte) (*workflow.Result, error)
	MarkStepAsSent(ctx context.Context, workflowID, stepID, packageID string) (*workflow.Result, error)
	SkipStep(ctx context.Context, workflowID, stepID string) (*workflow.Result, error)
	CancelWorkflow(ctx context.Context, workflowID, cancelledBy, reason string) (*workflow.Result, error)
	HealthCheck(ctx context.Context) (string, bool)
}

type APIHandlers struct {
	engine    Engine
	intake    *intake.Intake
	validator *validator.Validate
}

func NewAPIHandlers(engine Engine, intake *intake.Intake, validator *validator.Validate) *APIHandlers {
	return &APIHandlers{
		engine:    engine,
		intake:    intake,
		validator: validator,
	}
}

func (h *APIHandlers) CreateDocument(c fiber.Ctx) error {
	var req CreateDocumentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	document, err := h.engine.CreateDocument(c.Context(), req.Name, req.MimeType, req.Content)
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(document)
}

func (h *APIHandlers) GetDocument(c fiber.Ctx) error {
	document, err := h.engine.Document(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(document)
}

func (h *APIHandlers) CreateWorkflow(c fiber.Ctx) error {
	var req CreateWorkflowRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	created, err := h.engine.CreateWorkflow(c.Context(), workflow.CreateWorkflowInput{
		DocumentID: req.DocumentID,
		Name:       req.Name,
		Steps:      req.Steps,
		Owner:      req.Owner,
		Deadline:   req.Deadline,
	})
	if err != nil {
		return handleError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *APIHandlers) GetWorkflow(c fiber.Ctx) error {
	found, err := h.engine.Workflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	return c.JSON(found)
}

func (h *APIHandlers) GetActivity(c fiber.Ctx) error {
	activities, err := h.engine.Activity(c.Context(), c.Params("id"))
	if err != nil {
		return handleError(c, err)
	}

	if activities == nil {
		activities = []*models.Activity{}
	}

	return c.JSON(fiber.Map{
		"activities":  activities,
		"total_count": len(activities),
	})
}

// ProcessReturn applies a return file posted for the workflow of the path.
func (h *APIHandlers) ProcessReturn(c fiber.Ctx) error {
	id := c.Params("id")

	data, err := h.intake.Decode(c.Body())
	if err != nil {
		return handleError(c, err)
	}

	if data.WorkflowID != id {
		return badRequest(c, "Return file belongs to workflow "+data.WorkflowID)
	}

	result, err := h.engine.ProcessReturn(c.Context(), id, data)

	return handleResult(c, result, err)
}

func (h *APIHandlers) ProcessParallelReturn(c fiber.Ctx) error {
	id := c.Params("id")

	var req ParallelReturnRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	data, err := h.intake.Decode(req.Return)
	if err != nil {
		return handleError(c, err)
	}

	if data.WorkflowID != id {
		return badRequest(c, "Return file belongs to workflow "+data.WorkflowID)
	}

	result, err := h.engine.ProcessParallelReturn(c.Context(), id, data, req.ParticipantEmail)

	return handleResult(c, result, err)
}

func (h *APIHandlers) ResubmitStep(c fiber.Ctx) error {
	index, err := strconv.Atoi(c.Params("index"))
	if err != nil {
		return badRequest(c, "Step index must be an integer")
	}

	var req ResubmitRequest
	if len(c.Body()) > 0 {
		if err := c.Bind().JSON(&req); err != nil {
			return badRequest(c, "Invalid JSON format")
		}
	}

	result, err := h.engine.ResubmitStepAfterCorrection(c.Context(), c.Params("id"), index, req.Content)

	return handleResult(c, result, err)
}

func (h *APIHandlers) MarkStepAsSent(c fiber.Ctx) error {
	var req MarkSentRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.MarkStepAsSent(c.Context(), c.Params("id"), c.Params("stepId"), req.PackageID)

	return handleResult(c, result, err)
}

func (h *APIHandlers) SkipStep(c fiber.Ctx) error {
	result, err := h.engine.SkipStep(c.Context(), c.Params("id"), c.Params("stepId"))

	return handleResult(c, result, err)
}

func (h *APIHandlers) CancelWorkflow(c fiber.Ctx) error {
	var req CancelRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	result, err := h.engine.CancelWorkflow(c.Context(), c.Params("id"), req.CancelledBy, req.Reason)

	return handleResult(c, result, err)
}

// ImportReturn applies a return file to the workflow it names.
func (h *APIHandlers) ImportReturn(c fiber.Ctx) error {
	result, err := h.intake.Import(c.Context(), c.Body())

	return handleResult(c, result, err)
}

func (h *APIHandlers) HealthCheck(c fiber.Ctx) error {
	persistenceCheck, ok := h.engine.HealthCheck(c.Context())

	status := "unhealthy"
	message := "Signflow API is unhealthy"
	httpStatus := http.StatusInternalServerError

	if ok {
		status = "healthy"
		message = "Signflow API is healthy"
		httpStatus = http.StatusOK
	}

	return c.Status(httpStatus).JSON(fiber.Map{
		"status":  status,
		"message": message,
		"checkers": fiber.Map{
			"persistence": persistenceCheck,
		},
		"timestamp": time.Now().UTC(),
	})
}
