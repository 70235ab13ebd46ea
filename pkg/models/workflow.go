package models

import (
	"slices"
	"time"
)

// WorkflowStatus represents the lifecycle state of a workflow.
type WorkflowStatus string

const (
	WorkflowStatusActive    WorkflowStatus = "active"
	WorkflowStatusCompleted WorkflowStatus = "completed"
	WorkflowStatusRejected  WorkflowStatus = "rejected"
	WorkflowStatusCancelled WorkflowStatus = "cancelled"
)

// Workflow is the validation circuit of one document.
//
// CompletedAt is set exactly once, on completion, rejection or cancellation.
// While the workflow is active Steps[CurrentStepIndex] is pending or sent.
// Revision increases by one on every committed change.
type Workflow struct {
	ID               string          `json:"id"`
	DocumentID       string          `json:"document_id"`
	Name             string          `json:"name"`
	Status           WorkflowStatus  `json:"status"`
	Steps            []*WorkflowStep `json:"steps"`
	CurrentStepIndex int             `json:"current_step_index"`
	Owner            Participant     `json:"owner"`
	Deadline         *time.Time      `json:"deadline,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`

	CancelledAt        *time.Time `json:"cancelled_at,omitempty"`
	CancelledBy        string     `json:"cancelled_by,omitempty"`
	CancellationReason string     `json:"cancellation_reason,omitempty"`

	AwaitingCorrection    bool       `json:"awaiting_correction"`
	CorrectionRequestedAt *time.Time `json:"correction_requested_at,omitempty"`
	CorrectionStepIndex   *int       `json:"correction_step_index,omitempty"`

	StoragePackageIDs []string `json:"storage_package_ids,omitempty"`
	Revision          int64    `json:"revision"`
}

// IsTerminal reports whether the workflow reached completion, rejection or cancellation.
func (w *Workflow) IsTerminal() bool {
	return w.CompletedAt != nil
}

// CurrentStep returns the step under the cursor, or nil when the cursor is out of range.
func (w *Workflow) CurrentStep() *WorkflowStep {
	if w.CurrentStepIndex < 0 || w.CurrentStepIndex >= len(w.Steps) {
		return nil
	}

	return w.Steps[w.CurrentStepIndex]
}

// StepByID returns the index and the step with the given id, or -1 and nil.
func (w *Workflow) StepByID(id string) (int, *WorkflowStep) {
	for i, step := range w.Steps {
		if step.ID == id {
			return i, step
		}
	}

	return -1, nil
}

// NextOpenStep returns the index of the first step after from that still needs a decision.
// Skipped steps are bypassed in one pass.
func (w *Workflow) NextOpenStep(from int) (int, bool) {
	for i := from + 1; i < len(w.Steps); i++ {
		if w.Steps[i].Status.IsOpen() {
			return i, true
		}
	}

	return -1, false
}

// AddPackage records a hosted package reference once.
func (w *Workflow) AddPackage(id string) {
	if id == "" || slices.Contains(w.StoragePackageIDs, id) {
		return
	}

	w.StoragePackageIDs = append(w.StoragePackageIDs, id)
}

// Terminate marks the workflow finished with the given status.
// It is a no-op on a workflow that is already terminal.
func (w *Workflow) Terminate(status WorkflowStatus, at time.Time) {
	if w.IsTerminal() {
		return
	}

	w.Status = status
	w.CompletedAt = &at
}

// ClearCorrection resets the workflow-level correction flags.
func (w *Workflow) ClearCorrection() {
	w.AwaitingCorrection = false
	w.CorrectionRequestedAt = nil
	w.CorrectionStepIndex = nil
}

// Participants returns every participant of the circuit with the role of its step.
func (w *Workflow) Participants() []StepParticipant {
	var out []StepParticipant

	for _, step := range w.Steps {
		if step.IsParallel {
			for _, pp := range step.ParallelParticipants {
				out = append(out, StepParticipant{Participant: pp.Participant, Role: step.Role})
			}

			continue
		}

		out = append(out, StepParticipant{Participant: step.Participant, Role: step.Role})
	}

	return out
}

// StepParticipant pairs a participant with the role it holds on a step.
type StepParticipant struct {
	Participant Participant
	Role        Role
}
