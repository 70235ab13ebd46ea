package web

import (
	"encoding/json"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/workflow"
)

// CreateDocumentRequest represents the request body for registering a document. Content is base64 encoded.
type CreateDocumentRequest struct {
	Name     string `json:"name"      validate:"required"`
	MimeType string `json:"mime_type" validate:"required"`
	Content  []byte `json:"content"`
}

// CreateWorkflowRequest represents the request body for starting a circuit over a document.
type CreateWorkflowRequest struct {
	DocumentID string                `json:"document_id"        validate:"required"`
	Name       string                `json:"name"               validate:"required,min=3"`
	Steps      []workflow.StepConfig `json:"steps"`
	Owner      models.Participant    `json:"owner"`
	Deadline   *time.Time            `json:"deadline,omitempty"`
}

// ParallelReturnRequest carries the return of one participant of a parallel step.
type ParallelReturnRequest struct {
	ParticipantEmail string          `json:"participant_email" validate:"required,email"`
	Return           json.RawMessage `json:"return"            validate:"required"`
}

// ResubmitRequest carries the corrected content. A missing content keeps the current one.
type ResubmitRequest struct {
	Content []byte `json:"content,omitempty"`
}

// MarkSentRequest names the package sent to the participants of a step.
type MarkSentRequest struct {
	PackageID string `json:"package_id" validate:"required"`
}

// CancelRequest represents the request body for cancelling a circuit.
type CancelRequest struct {
	CancelledBy string `json:"cancelled_by" validate:"required"`
	Reason      string `json:"reason"`
}

// ResultResponse is the body returned by every accepted transition.
type ResultResponse struct {
	Success  bool             `json:"success"`
	Message  string           `json:"message"`
	Workflow *models.Workflow `json:"workflow,omitempty"`
}

func toResultResponse(result *workflow.Result) ResultResponse {
	return ResultResponse{
		Success:  result.Success,
		Message:  result.Message,
		Workflow: result.Workflow,
	}
}
