// Package persistence provides the data storage abstraction for workflows, documents and their audit trail.
package persistence

import (
	"context"
	"time"

	"github.com/dukex/signflow/pkg/models"
)

// Persistence gives access to every repository and to the atomic workflow commit.
type Persistence interface {
	WorkflowRepository() WorkflowRepository
	DocumentRepository() DocumentRepository
	ParticipantRepository() ParticipantRepository
	ActivityRepository() ActivityRepository
	RetentionRepository() RetentionRepository
	ReminderRepository() ReminderRepository

	// CommitWorkflow writes the whole workflow, and the document when it is not nil, in one unit.
	// workflow.Revision must hold the revision that was read (zero for a new workflow); the write
	// fails with ErrRevisionConflict when the stored revision differs. On success the revision is
	// incremented in place.
	CommitWorkflow(ctx context.Context, workflow *models.Workflow, document *models.Document) error

	// CommitTransition writes an existing workflow like CommitWorkflow and applies update, when it
	// is not nil, to the stored copy of the linked document in the same unit. It returns that copy,
	// or nil when the document does not exist.
	CommitTransition(ctx context.Context, workflow *models.Workflow, update DocumentUpdate) (*models.Document, error)

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository reads workflows. Writes go through Persistence.CommitWorkflow.
// GetByID returns nil without error when the workflow does not exist.
type WorkflowRepository interface {
	GetByID(ctx context.Context, id string) (*models.Workflow, error)
	GetAll(ctx context.Context) ([]*models.Workflow, error)
	FindByDocumentID(ctx context.Context, documentID string) ([]*models.Workflow, error)
	FindByStatus(ctx context.Context, status models.WorkflowStatus) ([]*models.Workflow, error)
}

// DocumentRepository stores documents. GetByID returns nil without error when not found.
type DocumentRepository interface {
	GetByID(ctx context.Context, id string) (*models.Document, error)
	GetAll(ctx context.Context) ([]*models.Document, error)
	FindByStatus(ctx context.Context, status models.DocumentStatus) ([]*models.Document, error)
	Save(ctx context.Context, document *models.Document) error
	// Update applies update to the stored document and writes it back in one unit. It returns the
	// stored document, or nil when it does not exist.
	Update(ctx context.Context, id string, update DocumentUpdate) (*models.Document, error)
}

// DocumentUpdate changes a stored document in place and reports whether it changed anything.
type DocumentUpdate func(document *models.Document) bool

// ParticipantRepository is the participant directory, keyed by normalized email.
type ParticipantRepository interface {
	GetByEmail(ctx context.Context, email string) (*models.ParticipantRecord, error)
	GetAll(ctx context.Context) ([]*models.ParticipantRecord, error)
	Save(ctx context.Context, record *models.ParticipantRecord) error
}

// ActivityRepository is the append-only audit trail. Listings are ordered oldest first.
type ActivityRepository interface {
	Append(ctx context.Context, activity *models.Activity) error
	FindByWorkflowID(ctx context.Context, workflowID string) ([]*models.Activity, error)
	FindByDocumentID(ctx context.Context, documentID string) ([]*models.Activity, error)
}

// RetentionRepository stores retention records, at most one per document.
type RetentionRepository interface {
	GetByDocumentID(ctx context.Context, documentID string) (*models.DocumentRetention, error)
	Save(ctx context.Context, retention *models.DocumentRetention) error
	FindDue(ctx context.Context, now time.Time) ([]*models.DocumentRetention, error)
}

// ReminderRepository stores deadline reminders.
type ReminderRepository interface {
	Save(ctx context.Context, reminder *models.Reminder) error
	FindByWorkflowID(ctx context.Context, workflowID string) ([]*models.Reminder, error)
	FindDue(ctx context.Context, now time.Time) ([]*models.Reminder, error)
}
