package workflow

import (
	"context"
	"fmt"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/otelhelper"
	"go.opentelemetry.io/otel/attribute"
)

// ResubmitStepAfterCorrection resumes a workflow paused by a correction request on the step at
// stepIndex. A non-nil newContent replaces the document content as a new version.
func (e *Engine) ResubmitStepAfterCorrection(ctx context.Context, workflowID string, stepIndex int, newContent []byte) (*Result, error) {
	const op = "ResubmitStepAfterCorrection"

	return e.transition(ctx, op, workflowID, func(c *change) *Result {
		if stepIndex < 0 || stepIndex >= len(c.workflow.Steps) {
			return reject(&Rejection{Op: op, WorkflowID: workflowID, Err: ErrStepNotFound},
				"Workflow %s has no step at index %d", c.workflow.Name, stepIndex)
		}

		step := c.workflow.Steps[stepIndex]

		if c.workflow.IsTerminal() {
			return reject(stepRejection(op, c.workflow, step.ID, ErrAlreadyTerminal),
				"Workflow %s is already %s", c.workflow.Name, c.workflow.Status)
		}

		if step.Status != models.StepStatusCorrectionRequested {
			return reject(stepRejection(op, c.workflow, step.ID, ErrNotAwaitingCorrection),
				"Step %d is %s, not awaiting a correction", step.Order, step.Status)
		}

		if result := transitionStep(op, c.workflow, step, models.StepStatusPending); result != nil {
			return result
		}

		step.SentAt = nil
		step.CompletedAt = nil
		step.Response = nil

		if entry := step.LastCorrection(); entry != nil {
			correctedAt := c.now
			entry.CorrectedAt = &correctedAt
		}

		c.workflow.ClearCorrection()
		c.workflow.CurrentStepIndex = stepIndex
		c.advance = true

		metadata := map[string]any{
			"step_id":          step.ID,
			"correction_count": step.CorrectionCount,
		}

		if newContent != nil {
			c.replaceContent(newContent)
			metadata["content_replaced"] = true
		}

		c.record(models.ActivityWorkflowResumed,
			fmt.Sprintf("Workflow %s resumed on step %d after correction", c.workflow.Name, step.Order), metadata)

		return succeed("Step %d resubmitted after correction", step.Order)
	}, attribute.Int(otelhelper.StepIndexKey, stepIndex))
}
