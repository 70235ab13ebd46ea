package file

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ persistence.Persistence = (*Persistence)(nil)

func newTestWorkflow(id, documentID string) *models.Workflow {
	return &models.Workflow{
		ID:         id,
		DocumentID: documentID,
		Name:       "Contract review",
		Status:     models.WorkflowStatusActive,
		Steps: []*models.WorkflowStep{
			{ID: "step-1", Order: 1, Status: models.StepStatusPending, Participant: models.Participant{Name: "Alice", Email: "alice@example.com"}},
		},
	}
}

func TestPersistence_CommitWorkflow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	document := &models.Document{ID: "doc-1", Name: "contract.pdf", Status: models.DocumentStatusDraft}
	require.NoError(t, p.DocumentRepository().Save(ctx, document))

	workflow := newTestWorkflow("wf-1", "doc-1")
	document.Status = models.DocumentStatusInProgress
	document.WorkflowID = workflow.ID

	require.NoError(t, p.CommitWorkflow(ctx, workflow, document))
	assert.Equal(t, int64(1), workflow.Revision)
	assert.False(t, workflow.CreatedAt.IsZero())

	stored, err := p.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, int64(1), stored.Revision)
	assert.Equal(t, "alice@example.com", stored.Steps[0].Participant.Email)

	storedDocument, err := p.DocumentRepository().GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusInProgress, storedDocument.Status)
	assert.Equal(t, "wf-1", storedDocument.WorkflowID)

	entries, err := os.ReadDir(filepath.Join(p.root, "workflows"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files are left behind")
}

func TestPersistence_CommitWorkflowRevisionConflict(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	workflow := newTestWorkflow("wf-1", "doc-1")
	require.NoError(t, p.CommitWorkflow(ctx, workflow, nil))

	first, err := p.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	second, err := p.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)

	first.Name = "first writer"
	require.NoError(t, p.CommitWorkflow(ctx, first, nil))

	second.Name = "second writer"
	err = p.CommitWorkflow(ctx, second, nil)
	require.ErrorIs(t, err, persistence.ErrRevisionConflict)
	assert.Equal(t, int64(1), second.Revision, "a failed commit leaves the revision untouched")

	duplicate := newTestWorkflow("wf-1", "doc-1")
	err = p.CommitWorkflow(ctx, duplicate, nil)
	require.ErrorIs(t, err, persistence.ErrWorkflowAlreadyExists)

	stored, err := p.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, "first writer", stored.Name)
	assert.Equal(t, int64(2), stored.Revision)
}

func TestPersistence_CommitUnknownWorkflow(t *testing.T) {
	t.Parallel()

	p := NewPersistence(t.TempDir())
	workflow := newTestWorkflow("wf-404", "doc-1")
	workflow.Revision = 3

	err := p.CommitWorkflow(context.Background(), workflow, nil)
	require.ErrorIs(t, err, persistence.ErrWorkflowNotFound)
}

func TestWorkflowRepository_Queries(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	missing, err := p.WorkflowRepository().GetByID(ctx, "nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = p.WorkflowRepository().GetByID(ctx, "../escape")
	require.ErrorIs(t, err, errInvalidID)

	a := newTestWorkflow("wf-a", "doc-1")
	b := newTestWorkflow("wf-b", "doc-2")
	b.Status = models.WorkflowStatusCompleted

	require.NoError(t, p.CommitWorkflow(ctx, a, nil))
	require.NoError(t, p.CommitWorkflow(ctx, b, nil))

	all, err := p.WorkflowRepository().GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	byDocument, err := p.WorkflowRepository().FindByDocumentID(ctx, "doc-2")
	require.NoError(t, err)
	require.Len(t, byDocument, 1)
	assert.Equal(t, "wf-b", byDocument[0].ID)

	active, err := p.WorkflowRepository().FindByStatus(ctx, models.WorkflowStatusActive)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "wf-a", active[0].ID)
}

func TestParticipantRepository(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).ParticipantRepository()

	record := &models.ParticipantRecord{}
	record.Touch(models.Participant{Name: "Alice", Email: "Alice@Example.com"}, models.RoleSigner, time.Now().UTC())
	require.NoError(t, repo.Save(ctx, record))

	found, err := repo.GetByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, 1, found.UsageCount)
	assert.Equal(t, []models.Role{models.RoleSigner}, found.Roles)

	all, err := repo.GetAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestActivityRepository_Order(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := NewPersistence(t.TempDir()).ActivityRepository()
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Append(ctx, &models.Activity{ID: "b", Type: models.ActivityStepCompleted, WorkflowID: "wf", CreatedAt: base.Add(time.Minute)}))
	require.NoError(t, repo.Append(ctx, &models.Activity{ID: "a", Type: models.ActivityWorkflowCreated, WorkflowID: "wf", DocumentID: "doc", CreatedAt: base}))
	require.NoError(t, repo.Append(ctx, &models.Activity{ID: "c", Type: models.ActivityWorkflowCreated, WorkflowID: "other", CreatedAt: base}))

	activities, err := repo.FindByWorkflowID(ctx, "wf")
	require.NoError(t, err)
	require.Len(t, activities, 2)
	assert.Equal(t, models.ActivityWorkflowCreated, activities[0].Type)
	assert.Equal(t, models.ActivityStepCompleted, activities[1].Type)

	byDocument, err := repo.FindByDocumentID(ctx, "doc")
	require.NoError(t, err)
	assert.Len(t, byDocument, 1)
}

func TestRetentionAndReminderRepositories_FindDue(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPersistence(t.TempDir())
	now := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, p.RetentionRepository().Save(ctx, &models.DocumentRetention{ID: "r1", DocumentID: "doc-1", Status: models.RetentionStatusScheduled, DeleteAt: now.Add(-time.Hour)}))
	require.NoError(t, p.RetentionRepository().Save(ctx, &models.DocumentRetention{ID: "r2", DocumentID: "doc-2", Status: models.RetentionStatusScheduled, DeleteAt: now.Add(time.Hour)}))

	due, err := p.RetentionRepository().FindDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "doc-1", due[0].DocumentID)

	require.NoError(t, p.ReminderRepository().Save(ctx, &models.Reminder{ID: "m1", WorkflowID: "wf", Status: models.ReminderStatusPending, DueAt: now}))
	require.NoError(t, p.ReminderRepository().Save(ctx, &models.Reminder{ID: "m2", WorkflowID: "wf", Status: models.ReminderStatusSent, DueAt: now}))
	require.NoError(t, p.ReminderRepository().Save(ctx, &models.Reminder{ID: "m3", WorkflowID: "wf", Status: models.ReminderStatusPending, DueAt: now.Add(time.Hour)}))

	dueReminders, err := p.ReminderRepository().FindDue(ctx, now)
	require.NoError(t, err)
	require.Len(t, dueReminders, 1)
	assert.Equal(t, "m1", dueReminders[0].ID)

	forWorkflow, err := p.ReminderRepository().FindByWorkflowID(ctx, "wf")
	require.NoError(t, err)
	assert.Len(t, forWorkflow, 3)
}

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	require.NoError(t, NewPersistence("file://"+root).HealthCheck(context.Background()))
	require.Error(t, NewPersistence(filepath.Join(root, "missing")).HealthCheck(context.Background()))
}

func TestPersistence_CommitTransitionAppliesToStoredDocument(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	document := &models.Document{ID: "doc-1", Name: "contract.pdf", Status: models.DocumentStatusInProgress, Content: []byte("%PDF"), WorkflowID: "wf-1"}
	workflow := newTestWorkflow("wf-1", "doc-1")
	require.NoError(t, p.CommitWorkflow(ctx, workflow, document))

	purgedAt := time.Date(2026, time.April, 1, 11, 0, 0, 0, time.UTC)
	_, err := p.DocumentRepository().Update(ctx, "doc-1", func(d *models.Document) bool {
		d.Content = nil
		d.ContentPurgedAt = &purgedAt

		return true
	})
	require.NoError(t, err)

	workflow.Status = models.WorkflowStatusCompleted
	committed, err := p.CommitTransition(ctx, workflow, func(d *models.Document) bool {
		d.Status = models.DocumentStatusCompleted

		return true
	})
	require.NoError(t, err)
	require.NotNil(t, committed)
	assert.Equal(t, int64(2), workflow.Revision)

	stored, err := p.DocumentRepository().GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, models.DocumentStatusCompleted, stored.Status)
	assert.Nil(t, stored.Content)
	require.NotNil(t, stored.ContentPurgedAt)
	assert.True(t, purgedAt.Equal(*stored.ContentPurgedAt))

	_, err = p.CommitTransition(ctx, newTestWorkflow("wf-1", "doc-1"), nil)
	require.ErrorIs(t, err, persistence.ErrWorkflowAlreadyExists)
}

func TestPersistence_CommitRestoresWorkflowWhenDocumentWriteFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	existing := newTestWorkflow("wf-1", "doc-1")
	require.NoError(t, p.CommitWorkflow(ctx, existing, nil))

	blocker := filepath.Join(p.root, "documents", "doc-1.json")
	require.NoError(t, os.MkdirAll(blocker, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(blocker, "keep"), []byte("x"), 0o600))

	document := &models.Document{ID: "doc-1", Status: models.DocumentStatusCompleted}

	existing.Name = "renamed"
	require.Error(t, p.CommitWorkflow(ctx, existing, document))
	assert.Equal(t, int64(1), existing.Revision)

	stored, err := p.WorkflowRepository().GetByID(ctx, "wf-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), stored.Revision)
	assert.Equal(t, "Contract review", stored.Name)

	require.Error(t, p.CommitWorkflow(ctx, newTestWorkflow("wf-2", "doc-1"), document))

	missing, err := p.WorkflowRepository().GetByID(ctx, "wf-2")
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDocumentRepository_Update(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := NewPersistence(t.TempDir())

	missing, err := p.DocumentRepository().Update(ctx, "doc-1", func(*models.Document) bool { return true })
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, p.DocumentRepository().Save(ctx, &models.Document{ID: "doc-1", Name: "contract.pdf", Version: 1}))

	unchanged, err := p.DocumentRepository().Update(ctx, "doc-1", func(*models.Document) bool { return false })
	require.NoError(t, err)
	assert.Equal(t, 1, unchanged.Version)

	updated, err := p.DocumentRepository().Update(ctx, "doc-1", func(d *models.Document) bool {
		d.Version++

		return true
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated.Version)

	stored, err := p.DocumentRepository().GetByID(ctx, "doc-1")
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version)
}
