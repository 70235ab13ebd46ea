package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence"
)

// WorkflowRepository handles workflow-related database reads.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := scanOneJSON[models.Workflow](ctx, r.db, "SELECT data FROM workflows WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", id, err)
	}

	return workflow, nil
}

// GetAll returns all workflows from the database, newest first.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.Workflow, error) {
	workflows, err := scanJSON[models.Workflow](ctx, r.logger, r.db, "SELECT data FROM workflows ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) FindByDocumentID(ctx context.Context, documentID string) ([]*models.Workflow, error) {
	workflows, err := scanJSON[models.Workflow](ctx, r.logger, r.db,
		"SELECT data FROM workflows WHERE document_id = $1 ORDER BY created_at DESC", documentID)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows of document %s: %w", documentID, err)
	}

	return workflows, nil
}

func (r *WorkflowRepository) FindByStatus(ctx context.Context, status models.WorkflowStatus) ([]*models.Workflow, error) {
	workflows, err := scanJSON[models.Workflow](ctx, r.logger, r.db,
		"SELECT data FROM workflows WHERE status = $1 ORDER BY created_at DESC", status)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s workflows: %w", status, err)
	}

	return workflows, nil
}

// DocumentRepository handles document rows.
type DocumentRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*models.Document, error) {
	document, err := scanOneJSON[models.Document](ctx, r.db, "SELECT data FROM documents WHERE id = $1", id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", id, err)
	}

	return document, nil
}

func (r *DocumentRepository) GetAll(ctx context.Context) ([]*models.Document, error) {
	documents, err := scanJSON[models.Document](ctx, r.logger, r.db, "SELECT data FROM documents ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	return documents, nil
}

func (r *DocumentRepository) FindByStatus(ctx context.Context, status models.DocumentStatus) ([]*models.Document, error) {
	documents, err := scanJSON[models.Document](ctx, r.logger, r.db,
		"SELECT data FROM documents WHERE status = $1 ORDER BY created_at DESC", status)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s documents: %w", status, err)
	}

	return documents, nil
}

func (r *DocumentRepository) Save(ctx context.Context, document *models.Document) error {
	touch(document)

	return saveDocument(ctx, r.db, document)
}

func (r *DocumentRepository) Update(ctx context.Context, id string, update persistence.DocumentUpdate) (*models.Document, error) {
	transaction, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := transaction.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			r.logger.ErrorContext(ctx, "failed to rollback transaction", "error", err)
		}
	}()

	document, err := scanOneJSON[models.Document](ctx, transaction, "SELECT data FROM documents WHERE id = $1 FOR UPDATE", id)
	if err != nil {
		return nil, fmt.Errorf("failed to lock document %s: %w", id, err)
	}

	if document == nil || !update(document) {
		return document, nil
	}

	touch(document)

	if err := saveDocument(ctx, transaction, document); err != nil {
		return nil, err
	}

	if err := transaction.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit document %s: %w", id, err)
	}

	return document, nil
}

func saveDocument(ctx context.Context, q querier, document *models.Document) error {
	data, err := json.Marshal(document)
	if err != nil {
		return fmt.Errorf("failed to marshal document %s: %w", document.ID, err)
	}

	var workflowID sql.NullString
	if document.WorkflowID != "" {
		workflowID = sql.NullString{String: document.WorkflowID, Valid: true}
	}

	_, err = q.ExecContext(ctx, `
		INSERT INTO documents (id, status, workflow_id, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			workflow_id = EXCLUDED.workflow_id,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at
	`, document.ID, document.Status, workflowID, data, document.CreatedAt, document.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to save document %s: %w", document.ID, err)
	}

	return nil
}
