package workflow

import (
	"context"
	"fmt"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// MarkStepAsSent records that the package of a step reached its participants. Marking a step
// that is already sent succeeds without changing its timestamp.
func (e *Engine) MarkStepAsSent(ctx context.Context, workflowID, stepID, packageID string) (*Result, error) {
	const op = "MarkStepAsSent"

	return e.transition(ctx, op, workflowID, func(c *change) *Result {
		_, step, result := locateAdminStep(op, c.workflow, stepID)
		if result != nil {
			return result
		}

		if step.Status == models.StepStatusSent {
			known := len(c.workflow.StoragePackageIDs)
			c.workflow.AddPackage(packageID)
			c.unchanged = known == len(c.workflow.StoragePackageIDs)

			return succeed("Step %d was already sent", step.Order)
		}

		if c.workflow.AwaitingCorrection {
			return reject(stepRejection(op, c.workflow, step.ID, ErrAwaitingCorrection),
				"Workflow %s is waiting for a corrected document", c.workflow.Name)
		}

		if result := transitionStep(op, c.workflow, step, models.StepStatusSent); result != nil {
			return result
		}

		sentAt := c.now
		step.SentAt = &sentAt
		step.PackageID = packageID
		c.workflow.AddPackage(packageID)

		c.record(models.ActivityStepSent, fmt.Sprintf("Step %d sent to %s", step.Order, step.Participant.Name), map[string]any{
			"step_id":    step.ID,
			"package_id": packageID,
		})

		return succeed("Step %d marked as sent", step.Order)
	}, attribute.String(otelhelper.StepIDKey, stepID))
}

// SkipStep bypasses a pending step. Skipping the current step moves the cursor forward.
func (e *Engine) SkipStep(ctx context.Context, workflowID, stepID string) (*Result, error) {
	const op = "SkipStep"

	return e.transition(ctx, op, workflowID, func(c *change) *Result {
		index, step, result := locateAdminStep(op, c.workflow, stepID)
		if result != nil {
			return result
		}

		if step.Status != models.StepStatusPending {
			return reject(stepRejection(op, c.workflow, step.ID, ErrInvalidState),
				"Step %d is %s and cannot be skipped", step.Order, step.Status)
		}

		if c.workflow.AwaitingCorrection {
			return reject(stepRejection(op, c.workflow, step.ID, ErrAwaitingCorrection),
				"Workflow %s is waiting for a corrected document", c.workflow.Name)
		}

		if result := transitionStep(op, c.workflow, step, models.StepStatusSkipped); result != nil {
			return result
		}

		c.record(models.ActivityStepSkipped, fmt.Sprintf("Step %d skipped", step.Order), map[string]any{
			"step_id": step.ID,
		})

		if index != c.workflow.CurrentStepIndex {
			return succeed("Step %d skipped", step.Order)
		}

		progress := c.advanceFrom(index)

		return succeed("Step %d skipped, %s", step.Order, progress)
	}, attribute.String(otelhelper.StepIDKey, stepID))
}

func locateAdminStep(op string, workflow *models.Workflow, stepID string) (int, *models.WorkflowStep, *Result) {
	index, step := workflow.StepByID(stepID)
	if step == nil {
		return -1, nil, reject(stepRejection(op, workflow, stepID, ErrStepNotFound),
			"Step %s not found in workflow %s", stepID, workflow.ID)
	}

	if workflow.IsTerminal() {
		return -1, nil, reject(stepRejection(op, workflow, step.ID, ErrAlreadyTerminal),
			"Workflow %s is already %s", workflow.Name, workflow.Status)
	}

	if step.Status.IsTerminal() {
		return -1, nil, reject(stepRejection(op, workflow, step.ID, ErrAlreadyProcessed),
			"Step %d was already processed (%s)", step.Order, step.Status)
	}

	return index, step, nil
}
