package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/otelhelper"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// StepConfig describes one step of a workflow to create.
type StepConfig struct {
	Participant  models.Participant `json:"participant"`
	Role         models.Role        `json:"role"`
	Instructions string             `json:"instructions,omitempty"`

	IsParallel           bool                 `json:"is_parallel,omitempty"`
	ParallelMode         models.ParallelMode  `json:"parallel_mode,omitempty"`
	ParallelParticipants []models.Participant `json:"parallel_participants,omitempty"`
}

// CreateWorkflowInput holds the parameters of CreateWorkflow.
type CreateWorkflowInput struct {
	DocumentID string             `json:"document_id"`
	Name       string             `json:"name"`
	Steps      []StepConfig       `json:"steps"`
	Owner      models.Participant `json:"owner"`
	Deadline   *time.Time         `json:"deadline,omitempty"`
}

// CreateDocument stores a new draft document ready to be attached to a workflow.
func (e *Engine) CreateDocument(ctx context.Context, name, mimeType string, content []byte) (*models.Document, error) {
	document := &models.Document{
		ID:       uuid.Must(uuid.NewV7()).String(),
		Name:     name,
		MimeType: mimeType,
		Status:   models.DocumentStatusDraft,
		Content:  content,
		Version:  1,
	}

	err := e.persistence.DocumentRepository().Save(ctx, document)
	if err != nil {
		return nil, fmt.Errorf("failed to create document: %w", err)
	}

	e.logger.InfoContext(ctx, "Document created", "document_id", document.ID, "name", name)

	return document, nil
}

// CreateWorkflow builds a workflow over an existing document and starts it on its first step.
// Participant emails are opaque identity keys and are not validated here.
func (e *Engine) CreateWorkflow(ctx context.Context, input CreateWorkflowInput) (*models.Workflow, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow.CreateWorkflow",
		attribute.String(otelhelper.DocumentIDKey, input.DocumentID))
	defer span.End()

	if len(input.Steps) == 0 {
		return nil, &Rejection{Op: "CreateWorkflow", Err: ErrNoSteps}
	}

	release, err := e.locker.Lock(ctx, "document:"+input.DocumentID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to lock document %s: %w", input.DocumentID, err)
	}
	defer release()

	document, err := e.persistence.DocumentRepository().GetByID(ctx, input.DocumentID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to load document %s: %w", input.DocumentID, err)
	}

	if document == nil {
		return nil, fmt.Errorf("document %s: %w", input.DocumentID, ErrDocumentNotFound)
	}

	if document.WorkflowID != "" {
		current, err := e.persistence.WorkflowRepository().GetByID(ctx, document.WorkflowID)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, fmt.Errorf("failed to load workflow %s: %w", document.WorkflowID, err)
		}

		if current != nil && !current.IsTerminal() {
			return nil, &Rejection{Op: "CreateWorkflow", WorkflowID: current.ID, Err: ErrDocumentHasActiveWorkflow}
		}
	}

	now := e.now()
	workflow := buildWorkflow(input, now)
	reattached := document.WorkflowID != ""

	err = e.registerParticipants(ctx, workflow, now)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, err
	}

	document.Status = models.DocumentStatusInProgress
	document.WorkflowID = workflow.ID

	err = e.persistence.CommitWorkflow(ctx, workflow, document)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to create workflow: %w", err)
	}

	span.SetAttributes(attribute.String(otelhelper.WorkflowIDKey, workflow.ID))

	e.recorder.Record(ctx, models.Activity{
		Type:        models.ActivityWorkflowCreated,
		Description: fmt.Sprintf("Workflow %s created with %d steps", workflow.Name, len(workflow.Steps)),
		DocumentID:  workflow.DocumentID,
		WorkflowID:  workflow.ID,
		Metadata: map[string]any{
			"steps": len(workflow.Steps),
			"owner": workflow.Owner.Email,
		},
		CreatedAt: now,
	})

	if reattached && e.retention != nil {
		err = e.retention.CancelRetention(ctx, document.ID)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to cancel retention", "document_id", document.ID, "error", err)
		}
	}

	if workflow.Deadline != nil && e.reminders != nil {
		err = e.reminders.GenerateWorkflowReminders(ctx, workflow)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to schedule reminders", "workflow_id", workflow.ID, "error", err)
		}
	}

	e.logger.InfoContext(ctx, "Workflow created", "workflow_id", workflow.ID, "document_id", workflow.DocumentID)

	e.triggerAdvance(ctx, workflow.ID)

	return workflow, nil
}

func buildWorkflow(input CreateWorkflowInput, now time.Time) *models.Workflow {
	steps := make([]*models.WorkflowStep, 0, len(input.Steps))

	for i, config := range input.Steps {
		step := &models.WorkflowStep{
			ID:           uuid.Must(uuid.NewV7()).String(),
			Order:        i + 1,
			Participant:  config.Participant,
			Role:         config.Role,
			Status:       models.StepStatusPending,
			Instructions: config.Instructions,
		}

		if config.IsParallel && len(config.ParallelParticipants) > 0 {
			step.IsParallel = true

			step.ParallelMode = config.ParallelMode
			if step.ParallelMode == "" {
				step.ParallelMode = models.ParallelModeAll
			}

			for _, participant := range config.ParallelParticipants {
				step.ParallelParticipants = append(step.ParallelParticipants, &models.ParallelParticipant{
					Participant: participant,
					Status:      models.StepStatusPending,
				})
			}

			if step.Participant.Email == "" {
				step.Participant = config.ParallelParticipants[0]
			}
		}

		steps = append(steps, step)
	}

	return &models.Workflow{
		ID:         uuid.Must(uuid.NewV7()).String(),
		DocumentID: input.DocumentID,
		Name:       input.Name,
		Status:     models.WorkflowStatusActive,
		Steps:      steps,
		Owner:      input.Owner,
		Deadline:   input.Deadline,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// registerParticipants upserts every participant of the workflow in the directory.
func (e *Engine) registerParticipants(ctx context.Context, workflow *models.Workflow, now time.Time) error {
	directory := e.persistence.ParticipantRepository()

	for _, sp := range workflow.Participants() {
		if sp.Participant.Email == "" {
			continue
		}

		record, err := directory.GetByEmail(ctx, sp.Participant.Email)
		if err != nil {
			return fmt.Errorf("failed to load participant %s: %w", sp.Participant.Email, err)
		}

		if record == nil {
			record = &models.ParticipantRecord{}
		}

		record.Touch(sp.Participant, sp.Role, now)

		err = directory.Save(ctx, record)
		if err != nil {
			return fmt.Errorf("failed to register participant %s: %w", sp.Participant.Email, err)
		}
	}

	return nil
}
