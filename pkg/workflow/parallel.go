package workflow

import (
	"context"
	"fmt"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// ProcessParallelReturn records the decision of one participant of a parallel step and closes
// the step once its aggregation rule is met.
func (e *Engine) ProcessParallelReturn(ctx context.Context, workflowID string, data models.ReturnFileData, participantEmail string) (*Result, error) {
	const op = "ProcessParallelReturn"

	return e.transition(ctx, op, workflowID, func(c *change) *Result {
		index, step, result := locateReturnStep(op, c.workflow, data)
		if result != nil {
			return result
		}

		if !step.IsParallel {
			return reject(stepRejection(op, c.workflow, step.ID, ErrNotParallelStep),
				"Step %d is not a parallel step", step.Order)
		}

		return c.applyParallelReturn(index, step, data, participantEmail)
	},
		attribute.String(otelhelper.StepIDKey, data.StepID),
		attribute.String(otelhelper.DecisionKey, string(data.Decision)),
		attribute.String(otelhelper.ParticipantKey, participantEmail),
	)
}

func (c *change) applyParallelReturn(index int, step *models.WorkflowStep, data models.ReturnFileData, email string) *Result {
	const op = "ProcessParallelReturn"

	if data.Decision == models.DecisionModificationRequested {
		return reject(stepRejection(op, c.workflow, step.ID, ErrInvalidDecision),
			"Parallel step %d does not accept correction requests", step.Order)
	}

	participant := step.ParallelParticipant(email)
	if participant == nil {
		return reject(stepRejection(op, c.workflow, step.ID, ErrParticipantNotFound),
			"%s is not a participant of step %d", email, step.Order)
	}

	if participant.Status != models.StepStatusPending {
		return reject(stepRejection(op, c.workflow, step.ID, ErrAlreadyResponded),
			"%s already responded to step %d", participant.Participant.Email, step.Order)
	}

	response := data.Response(c.now)
	if response.RespondedBy.Email == "" {
		response.RespondedBy = participant.Participant
	}

	respondedAt := c.now
	participant.CompletedAt = &respondedAt
	participant.Response = response

	participant.Status = models.StepStatusRejected
	if data.Decision.Positive() {
		participant.Status = models.StepStatusCompleted
	}

	responded, total := step.ParallelProgress()

	c.record(models.ActivityParallelResponseRecorded,
		fmt.Sprintf("%s responded %s on step %d (%d/%d)", participant.Participant.Name, data.Decision, step.Order, responded, total),
		map[string]any{
			"step_id":     step.ID,
			"participant": participant.Participant.Email,
			"decision":    string(data.Decision),
			"responded":   responded,
			"total":       total,
		})

	switch step.ParallelOutcome() {
	case models.StepStatusCompleted:
		if result := transitionStep(op, c.workflow, step, models.StepStatusCompleted); result != nil {
			return result
		}

		closeStep(step, canonicalResponse(step, response), c.now)
		c.record(models.ActivityStepCompleted, fmt.Sprintf("Parallel step %d completed (%s)", step.Order, step.ParallelMode), map[string]any{
			"step_id":   step.ID,
			"mode":      string(step.ParallelMode),
			"responded": responded,
			"total":     total,
		})

		progress := c.advanceFrom(index)

		return succeed("Parallel step %d completed, %s", step.Order, progress)

	case models.StepStatusRejected:
		if result := transitionStep(op, c.workflow, step, models.StepStatusRejected); result != nil {
			return result
		}

		closeStep(step, response, c.now)
		c.rejectWorkflow(step, data.Reason())

		return succeed("Parallel step %d rejected, workflow rejected", step.Order)

	default:
		return succeed("Response recorded for step %d (%d/%d responded)", step.Order, responded, total)
	}
}

// canonicalResponse picks the response recorded on a closed parallel step. In any mode it is the
// approval that closed the step; in all mode it is the last approval carrying every annotation.
func canonicalResponse(step *models.WorkflowStep, last *models.StepResponse) *models.StepResponse {
	if step.ParallelMode == models.ParallelModeAny {
		return last
	}

	merged := *last
	merged.Annotations = make([]models.Annotation, 0)

	for _, pp := range step.ParallelParticipants {
		if pp.Response != nil {
			merged.Annotations = append(merged.Annotations, pp.Response.Annotations...)
		}
	}

	return &merged
}
