// Package postgresql provides PostgreSQL persistence for workflows, documents and their audit trail.
package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence"
	"github.com/dukex/signflow/pkg/persistence/sqlbase"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Persistence implements the persistence layer for PostgreSQL.
type Persistence struct {
	db     *sql.DB
	logger *slog.Logger

	workflowRepo    *WorkflowRepository
	documentRepo    *DocumentRepository
	participantRepo *ParticipantRepository
	activityRepo    *ActivityRepository
	retentionRepo   *RetentionRepository
	reminderRepo    *ReminderRepository
}

// NewPersistence creates a new PostgreSQL persistence layer and runs pending migrations.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) (*Persistence, error) {
	database, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL database: %w", err)
	}

	err = database.PingContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger = logger.With("module", "postgresql")

	postgres := &Persistence{
		db:              database,
		logger:          logger,
		workflowRepo:    &WorkflowRepository{db: database, logger: logger},
		documentRepo:    &DocumentRepository{db: database, logger: logger},
		participantRepo: &ParticipantRepository{db: database, logger: logger},
		activityRepo:    &ActivityRepository{db: database, logger: logger},
		retentionRepo:   &RetentionRepository{db: database, logger: logger},
		reminderRepo:    &ReminderRepository{db: database, logger: logger},
	}

	// Run migrations on initialization
	err = sqlbase.NewMigrationManager(logger, database, migrations()).RunMigrations(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return postgres, nil
}

func (p *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return p.workflowRepo
}

func (p *Persistence) DocumentRepository() persistence.DocumentRepository {
	return p.documentRepo
}

func (p *Persistence) ParticipantRepository() persistence.ParticipantRepository {
	return p.participantRepo
}

func (p *Persistence) ActivityRepository() persistence.ActivityRepository {
	return p.activityRepo
}

func (p *Persistence) RetentionRepository() persistence.RetentionRepository {
	return p.retentionRepo
}

func (p *Persistence) ReminderRepository() persistence.ReminderRepository {
	return p.reminderRepo
}

// CommitWorkflow writes the workflow, guarded by its revision, and the optional document in one transaction.
func (p *Persistence) CommitWorkflow(ctx context.Context, workflow *models.Workflow, document *models.Document) error {
	return p.inTransaction(ctx, workflow.ID, func(transaction *sql.Tx, now time.Time) (func(), error) {
		next, err := writeWorkflow(ctx, transaction, workflow, now)
		if err != nil {
			return nil, err
		}

		var nextDocument models.Document

		if document != nil {
			nextDocument = *document
			if nextDocument.CreatedAt.IsZero() {
				nextDocument.CreatedAt = now
			}

			nextDocument.UpdatedAt = now

			if err := saveDocument(ctx, transaction, &nextDocument); err != nil {
				return nil, err
			}
		}

		return func() {
			*workflow = next

			if document != nil {
				*document = nextDocument
			}
		}, nil
	})
}

// CommitTransition locks the linked document row before applying update.
func (p *Persistence) CommitTransition(ctx context.Context, workflow *models.Workflow, update persistence.DocumentUpdate) (*models.Document, error) {
	var document *models.Document

	err := p.inTransaction(ctx, workflow.ID, func(transaction *sql.Tx, now time.Time) (func(), error) {
		next, err := writeWorkflow(ctx, transaction, workflow, now)
		if err != nil {
			return nil, err
		}

		if update != nil {
			document, err = scanOneJSON[models.Document](ctx, transaction,
				"SELECT data FROM documents WHERE id = $1 FOR UPDATE", workflow.DocumentID)
			if err != nil {
				return nil, fmt.Errorf("failed to lock document %s: %w", workflow.DocumentID, err)
			}

			if document != nil && update(document) {
				document.UpdatedAt = now

				if err := saveDocument(ctx, transaction, document); err != nil {
					return nil, err
				}
			}
		}

		return func() { *workflow = next }, nil
	})
	if err != nil {
		return nil, err
	}

	return document, nil
}

// inTransaction runs fn in a transaction and calls the function it returns once committed.
func (p *Persistence) inTransaction(ctx context.Context, workflowID string, fn func(*sql.Tx, time.Time) (func(), error)) error {
	transaction, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if err := transaction.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			p.logger.ErrorContext(ctx, "failed to rollback transaction", "error", err)
		}
	}()

	committed, err := fn(transaction, time.Now().UTC())
	if err != nil {
		return err
	}

	if err := transaction.Commit(); err != nil {
		return persistence.NewWorkflowError("Commit", workflowID, fmt.Errorf("failed to commit transaction: %w", err))
	}

	committed()

	return nil
}

func writeWorkflow(ctx context.Context, q querier, workflow *models.Workflow, now time.Time) (models.Workflow, error) {
	next := *workflow
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}

	next.UpdatedAt = now
	next.Revision = workflow.Revision + 1

	data, err := json.Marshal(&next)
	if err != nil {
		return next, persistence.NewWorkflowError("Commit", workflow.ID, fmt.Errorf("failed to marshal workflow: %w", err))
	}

	if workflow.Revision == 0 {
		err = insertWorkflow(ctx, q, &next, data)
	} else {
		err = updateWorkflow(ctx, q, &next, workflow.Revision, data)
	}

	if err != nil {
		return next, persistence.NewWorkflowError("Commit", workflow.ID, err)
	}

	return next, nil
}

func insertWorkflow(ctx context.Context, q querier, workflow *models.Workflow, data []byte) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO workflows (id, document_id, status, revision, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, workflow.ID, workflow.DocumentID, workflow.Status, workflow.Revision, data, workflow.CreatedAt, workflow.UpdatedAt)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.ErrWorkflowAlreadyExists
		}

		return fmt.Errorf("failed to insert workflow: %w", err)
	}

	return nil
}

func updateWorkflow(ctx context.Context, q querier, workflow *models.Workflow, expected int64, data []byte) error {
	result, err := q.ExecContext(ctx, `
		UPDATE workflows
		SET status = $3, revision = $4, data = $5, updated_at = $6
		WHERE id = $1 AND revision = $2
	`, workflow.ID, expected, workflow.Status, workflow.Revision, data, workflow.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to update workflow: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}

	if affected == 1 {
		return nil
	}

	var exists bool

	err = q.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM workflows WHERE id = $1)", workflow.ID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check workflow existence: %w", err)
	}

	if !exists {
		return persistence.ErrWorkflowNotFound
	}

	return persistence.ErrRevisionConflict
}

// Close closes the database connection.
func (p *Persistence) Close(_ context.Context) error {
	if p.db != nil {
		err := p.db.Close()
		if err != nil {
			return fmt.Errorf("failed to close database connection: %w", err)
		}
	}

	return nil
}

// HealthCheck verifies the database connection is healthy.
func (p *Persistence) HealthCheck(ctx context.Context) error {
	err := p.db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	return nil
}

func closeRows(ctx context.Context, logger *slog.Logger, rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		logger.ErrorContext(ctx, "failed to close rows", "error", err)
	}
}

// scanJSON reads rows holding a single JSONB column into values of T.
func scanJSON[T any](ctx context.Context, logger *slog.Logger, q querier, query string, args ...any) ([]*T, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query: %w", err)
	}

	defer closeRows(ctx, logger, rows)

	records := make([]*T, 0)

	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var record T
		if err := json.Unmarshal(data, &record); err != nil {
			return nil, fmt.Errorf("failed to unmarshal row: %w", err)
		}

		records = append(records, &record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return records, nil
}

// scanOneJSON returns nil without error when no row matches.
func scanOneJSON[T any](ctx context.Context, q querier, query string, args ...any) (*T, error) {
	var data []byte

	err := q.QueryRowContext(ctx, query, args...).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to query: %w", err)
	}

	var record T
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal row: %w", err)
	}

	return &record, nil
}
