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
)

func touch(document *models.Document) {
	now := time.Now().UTC()
	if document.CreatedAt.IsZero() {
		document.CreatedAt = now
	}

	document.UpdatedAt = now
}

// ParticipantRepository handles the participant directory.
type ParticipantRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ParticipantRepository) GetByEmail(ctx context.Context, email string) (*models.ParticipantRecord, error) {
	record, err := scanOneJSON[models.ParticipantRecord](ctx, r.db,
		"SELECT data FROM participants WHERE email = $1", models.NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("failed to fetch participant %s: %w", email, err)
	}

	return record, nil
}

func (r *ParticipantRepository) GetAll(ctx context.Context) ([]*models.ParticipantRecord, error) {
	records, err := scanJSON[models.ParticipantRecord](ctx, r.logger, r.db,
		"SELECT data FROM participants ORDER BY usage_count DESC")
	if err != nil {
		return nil, fmt.Errorf("failed to load participants: %w", err)
	}

	return records, nil
}

func (r *ParticipantRepository) Save(ctx context.Context, record *models.ParticipantRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal participant %s: %w", record.Email, err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO participants (email, data, usage_count, last_used_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE SET
			data = EXCLUDED.data,
			usage_count = EXCLUDED.usage_count,
			last_used_at = EXCLUDED.last_used_at
	`, models.NormalizeEmail(record.Email), data, record.UsageCount, record.LastUsedAt)
	if err != nil {
		return fmt.Errorf("failed to save participant %s: %w", record.Email, err)
	}

	return nil
}

// ActivityRepository handles the audit trail table.
type ActivityRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

func (r *ActivityRepository) Append(ctx context.Context, activity *models.Activity) error {
	metadata, err := json.Marshal(activity.Metadata)
	if err != nil {
		return fmt.Errorf("failed to marshal activity metadata: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, type, description, document_id, workflow_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, activity.ID, activity.Type, activity.Description, nullable(activity.DocumentID), nullable(activity.WorkflowID), metadata, activity.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to append activity %s: %w", activity.ID, err)
	}

	return nil
}

func (r *ActivityRepository) FindByWorkflowID(ctx context.Context, workflowID string) ([]*models.Activity, error) {
	return r.find(ctx, "workflow_id", workflowID)
}

func (r *ActivityRepository) FindByDocumentID(ctx context.Context, documentID string) ([]*models.Activity, error) {
	return r.find(ctx, "document_id", documentID)
}

// find filters on column, which is always one of the two constant column names above.
func (r *ActivityRepository) find(ctx context.Context, column, value string) ([]*models.Activity, error) {
	query := `
		SELECT id, type, description, COALESCE(document_id, ''), COALESCE(workflow_id, ''), metadata, created_at
		FROM activity_log
		WHERE ` + column + ` = $1
		ORDER BY created_at ASC, id ASC
	`

	rows, err := r.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query activity: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	activities := make([]*models.Activity, 0)

	for rows.Next() {
		var (
			activity models.Activity
			metadata []byte
		)

		err := rows.Scan(&activity.ID, &activity.Type, &activity.Description, &activity.DocumentID,
			&activity.WorkflowID, &metadata, &activity.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan activity: %w", err)
		}

		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &activity.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal activity metadata: %w", err)
			}
		}

		activities = append(activities, &activity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating activity: %w", err)
	}

	return activities, nil
}

// RetentionRepository handles retention records.
type RetentionRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const retentionColumns = "id, document_id, document_name, status, scheduled_at, delete_at, deleted_at"

func scanRetention(row interface{ Scan(dest ...any) error }) (*models.DocumentRetention, error) {
	var (
		retention models.DocumentRetention
		deletedAt sql.NullTime
	)

	err := row.Scan(&retention.ID, &retention.DocumentID, &retention.DocumentName, &retention.Status,
		&retention.ScheduledAt, &retention.DeleteAt, &deletedAt)
	if err != nil {
		return nil, err
	}

	if deletedAt.Valid {
		retention.DeletedAt = &deletedAt.Time
	}

	return &retention, nil
}

func (r *RetentionRepository) GetByDocumentID(ctx context.Context, documentID string) (*models.DocumentRetention, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+retentionColumns+" FROM document_retention WHERE document_id = $1", documentID)

	retention, err := scanRetention(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to fetch retention for document %s: %w", documentID, err)
	}

	return retention, nil
}

func (r *RetentionRepository) Save(ctx context.Context, retention *models.DocumentRetention) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO document_retention (`+retentionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (document_id) DO UPDATE SET
			document_name = EXCLUDED.document_name,
			status = EXCLUDED.status,
			scheduled_at = EXCLUDED.scheduled_at,
			delete_at = EXCLUDED.delete_at,
			deleted_at = EXCLUDED.deleted_at
	`, retention.ID, retention.DocumentID, retention.DocumentName, retention.Status,
		retention.ScheduledAt, retention.DeleteAt, retention.DeletedAt)
	if err != nil {
		return fmt.Errorf("failed to save retention for document %s: %w", retention.DocumentID, err)
	}

	return nil
}

func (r *RetentionRepository) FindDue(ctx context.Context, now time.Time) ([]*models.DocumentRetention, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT "+retentionColumns+
		" FROM document_retention WHERE status = $1 AND delete_at <= $2 ORDER BY delete_at ASC",
		models.RetentionStatusScheduled, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query due retention: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	due := make([]*models.DocumentRetention, 0)

	for rows.Next() {
		retention, err := scanRetention(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan retention: %w", err)
		}

		due = append(due, retention)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating retention: %w", err)
	}

	return due, nil
}

// ReminderRepository handles deadline reminders.
type ReminderRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

const reminderColumns = "id, workflow_id, document_id, kind, status, due_at, created_at, sent_at"

func (r *ReminderRepository) Save(ctx context.Context, reminder *models.Reminder) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO reminders (`+reminderColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			sent_at = EXCLUDED.sent_at
	`, reminder.ID, reminder.WorkflowID, reminder.DocumentID, reminder.Kind, reminder.Status,
		reminder.DueAt, reminder.CreatedAt, reminder.SentAt)
	if err != nil {
		return fmt.Errorf("failed to save reminder %s: %w", reminder.ID, err)
	}

	return nil
}

func (r *ReminderRepository) FindByWorkflowID(ctx context.Context, workflowID string) ([]*models.Reminder, error) {
	return r.query(ctx, "SELECT "+reminderColumns+" FROM reminders WHERE workflow_id = $1 ORDER BY due_at ASC", workflowID)
}

func (r *ReminderRepository) FindDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	return r.query(ctx, "SELECT "+reminderColumns+" FROM reminders WHERE status = $1 AND due_at <= $2 ORDER BY due_at ASC",
		models.ReminderStatusPending, now)
}

func (r *ReminderRepository) query(ctx context.Context, query string, args ...any) ([]*models.Reminder, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reminders: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	reminders := make([]*models.Reminder, 0)

	for rows.Next() {
		var (
			reminder models.Reminder
			sentAt   sql.NullTime
		)

		err := rows.Scan(&reminder.ID, &reminder.WorkflowID, &reminder.DocumentID, &reminder.Kind,
			&reminder.Status, &reminder.DueAt, &reminder.CreatedAt, &sentAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reminder: %w", err)
		}

		if sentAt.Valid {
			reminder.SentAt = &sentAt.Time
		}

		reminders = append(reminders, &reminder)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reminders: %w", err)
	}

	return reminders, nil
}

func nullable(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}
