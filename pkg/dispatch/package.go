// Package dispatch sends the current step of a workflow to its participants once the step is
// reached: it builds the participant package, hosts it and emails a notice.
package dispatch

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/google/uuid"
)

const PackageContentType = "application/json"

// PackageDocument is the document snapshot shipped in a package.
type PackageDocument struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"mime_type"`
	Version  int    `json:"version"`
	Content  []byte `json:"content,omitempty"`
}

// Package is what a participant receives to act on a step. Returns quote its WorkflowID and StepID.
type Package struct {
	ID           string               `json:"id"`
	WorkflowID   string               `json:"workflow_id"`
	WorkflowName string               `json:"workflow_name"`
	StepID       string               `json:"step_id"`
	StepOrder    int                  `json:"step_order"`
	Role         models.Role          `json:"role"`
	Instructions string               `json:"instructions,omitempty"`
	Recipients   []models.Participant `json:"recipients"`
	Owner        models.Participant   `json:"owner"`
	Deadline     *time.Time           `json:"deadline,omitempty"`
	Parallel     bool                 `json:"parallel,omitempty"`
	Document     PackageDocument      `json:"document"`
	CreatedAt    time.Time            `json:"created_at"`
}

// NewPackage builds the package of step.
func NewPackage(workflow *models.Workflow, step *models.WorkflowStep, document *models.Document, now time.Time) *Package {
	return &Package{
		ID:           uuid.Must(uuid.NewV7()).String(),
		WorkflowID:   workflow.ID,
		WorkflowName: workflow.Name,
		StepID:       step.ID,
		StepOrder:    step.Order,
		Role:         step.Role,
		Instructions: step.Instructions,
		Recipients:   step.Recipients(),
		Owner:        workflow.Owner,
		Deadline:     workflow.Deadline,
		Parallel:     step.IsParallel,
		Document: PackageDocument{
			ID:       document.ID,
			Name:     document.Name,
			MimeType: document.MimeType,
			Version:  document.Version,
			Content:  document.Content,
		},
		CreatedAt: now,
	}
}

// Key is the storage key of the package.
func (p *Package) Key() string {
	return fmt.Sprintf("%s/%s.json", p.WorkflowID, p.ID)
}

func (p *Package) Marshal() ([]byte, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal package %s: %w", p.ID, err)
	}

	return data, nil
}
