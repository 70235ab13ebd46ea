package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// ProcessReturn applies a participant decision to the step data.StepID. A return for a parallel
// step is recorded for data.Participant.Email.
func (e *Engine) ProcessReturn(ctx context.Context, workflowID string, data models.ReturnFileData) (*Result, error) {
	return e.transition(ctx, "ProcessReturn", workflowID, func(c *change) *Result {
		index, step, result := locateReturnStep("ProcessReturn", c.workflow, data)
		if result != nil {
			return result
		}

		if step.IsParallel {
			return c.applyParallelReturn(index, step, data, data.Participant.Email)
		}

		return c.applySerialReturn(index, step, data)
	},
		attribute.String(otelhelper.StepIDKey, data.StepID),
		attribute.String(otelhelper.DecisionKey, string(data.Decision)),
	)
}

// locateReturnStep finds the step a return targets and checks the workflow can accept it.
func locateReturnStep(op string, workflow *models.Workflow, data models.ReturnFileData) (int, *models.WorkflowStep, *Result) {
	index, step := workflow.StepByID(data.StepID)
	if step == nil {
		return -1, nil, reject(stepRejection(op, workflow, data.StepID, ErrStepNotFound),
			"Step %s not found in workflow %s", data.StepID, workflow.ID)
	}

	if step.Status.IsTerminal() {
		return -1, nil, reject(stepRejection(op, workflow, step.ID, ErrAlreadyProcessed),
			"Step %d was already processed (%s)", step.Order, step.Status)
	}

	if workflow.IsTerminal() {
		return -1, nil, reject(stepRejection(op, workflow, step.ID, ErrAlreadyTerminal),
			"Workflow %s is already %s", workflow.Name, workflow.Status)
	}

	if workflow.AwaitingCorrection || step.Status == models.StepStatusCorrectionRequested {
		return -1, nil, reject(stepRejection(op, workflow, step.ID, ErrAwaitingCorrection),
			"Workflow %s is waiting for a corrected document", workflow.Name)
	}

	if !data.Decision.Valid() {
		return -1, nil, reject(stepRejection(op, workflow, step.ID, ErrInvalidDecision),
			"Unknown decision %q", data.Decision)
	}

	if index != workflow.CurrentStepIndex {
		return -1, nil, reject(stepRejection(op, workflow, step.ID, ErrStepNotCurrent),
			"Step %d is not the current step", step.Order)
	}

	return index, step, nil
}

func (c *change) applySerialReturn(index int, step *models.WorkflowStep, data models.ReturnFileData) *Result {
	const op = "ProcessReturn"

	response := data.Response(c.now)

	switch data.Decision {
	case models.DecisionRejected:
		if result := transitionStep(op, c.workflow, step, models.StepStatusRejected); result != nil {
			return result
		}

		closeStep(step, response, c.now)
		c.rejectWorkflow(step, data.Reason())

		return succeed("Step %d rejected by %s, workflow rejected", step.Order, step.Participant.Name)

	case models.DecisionModificationRequested:
		if result := transitionStep(op, c.workflow, step, models.StepStatusCorrectionRequested); result != nil {
			return result
		}

		closeStep(step, response, c.now)
		c.requestCorrection(index, step, data.Reason())

		return succeed("Step %d returned for correction by %s", step.Order, step.Participant.Name)

	default:
		if result := transitionStep(op, c.workflow, step, models.StepStatusCompleted); result != nil {
			return result
		}

		closeStep(step, response, c.now)
		c.record(models.ActivityStepCompleted, fmt.Sprintf("Step %d completed by %s", step.Order, step.Participant.Name), map[string]any{
			"step_id":  step.ID,
			"decision": string(data.Decision),
		})

		progress := c.advanceFrom(index)

		return succeed("Step %d %s, %s", step.Order, data.Decision, progress)
	}
}

func closeStep(step *models.WorkflowStep, response *models.StepResponse, at time.Time) {
	completedAt := at
	step.CompletedAt = &completedAt
	step.Response = response
}

// requestCorrection pauses the workflow on the step at index until it is resubmitted.
func (c *change) requestCorrection(index int, step *models.WorkflowStep, reason string) {
	step.CorrectionCount++
	step.CorrectionHistory = append(step.CorrectionHistory, models.CorrectionEntry{
		RequestedAt: c.now,
		RequestedBy: step.Participant,
		Reason:      reason,
	})

	requestedAt := c.now
	stepIndex := index

	c.workflow.AwaitingCorrection = true
	c.workflow.CorrectionRequestedAt = &requestedAt
	c.workflow.CorrectionStepIndex = &stepIndex

	c.record(models.ActivityStepReturnedForCorrection,
		fmt.Sprintf("Step %d returned for correction by %s", step.Order, step.Participant.Name), map[string]any{
			"step_id":          step.ID,
			"reason":           reason,
			"correction_count": step.CorrectionCount,
		})
}
