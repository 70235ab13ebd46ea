package workflow

import (
	"context"
	"fmt"

	"github.com/dukex/signflow/pkg/models"
)

// CancelWorkflow stops a running workflow. Every step still waiting for a decision is rejected;
// completed and skipped steps keep their history. Content retention is not scheduled.
func (e *Engine) CancelWorkflow(ctx context.Context, workflowID, cancelledBy, reason string) (*Result, error) {
	const op = "CancelWorkflow"

	return e.transition(ctx, op, workflowID, func(c *change) *Result {
		if c.workflow.IsTerminal() {
			return reject(&Rejection{Op: op, WorkflowID: workflowID, Err: ErrAlreadyTerminal},
				"Workflow %s is already %s", c.workflow.Name, c.workflow.Status)
		}

		rejected := 0

		for _, step := range c.workflow.Steps {
			switch step.Status {
			case models.StepStatusPending, models.StepStatusSent, models.StepStatusCorrectionRequested:
				if result := transitionStep(op, c.workflow, step, models.StepStatusRejected); result != nil {
					return result
				}

				rejected++
			}
		}

		cancelledAt := c.now

		c.workflow.Terminate(models.WorkflowStatusCancelled, c.now)
		c.workflow.CancelledAt = &cancelledAt
		c.workflow.CancelledBy = cancelledBy
		c.workflow.CancellationReason = reason
		c.workflow.ClearCorrection()

		c.setDocumentStatus(models.DocumentStatusRejected)
		c.record(models.ActivityWorkflowCancelled, fmt.Sprintf("Workflow %s cancelled", c.workflow.Name), map[string]any{
			"cancelled_by":   cancelledBy,
			"reason":         reason,
			"steps_rejected": rejected,
		})

		return succeed("Workflow %s cancelled", c.workflow.Name)
	})
}
