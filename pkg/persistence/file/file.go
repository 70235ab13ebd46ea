// Package file provides file-based persistence, one JSON file per record.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence"
)

var errInvalidID = errors.New("invalid record id")

// Persistence implements the persistence.Persistence interface using the file system.
// Writes go to a temporary file renamed into place, so a reader never sees a partial record.
// Workflow commits and document writes share one mutex, so the compare-and-swap on workflow
// revisions holds within one process.
type Persistence struct {
	root string
	mu   sync.Mutex

	workflowRepo    *WorkflowRepository
	documentRepo    *DocumentRepository
	participantRepo *ParticipantRepository
	activityRepo    *ActivityRepository
	retentionRepo   *RetentionRepository
	reminderRepo    *ReminderRepository
}

// NewPersistence creates a new instance of Persistence with the specified root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.workflowRepo = &WorkflowRepository{dir: filepath.Join(cleanRoot, "workflows")}
	p.documentRepo = &DocumentRepository{dir: filepath.Join(cleanRoot, "documents"), mu: &p.mu}
	p.participantRepo = &ParticipantRepository{dir: filepath.Join(cleanRoot, "participants")}
	p.activityRepo = &ActivityRepository{dir: filepath.Join(cleanRoot, "activity")}
	p.retentionRepo = &RetentionRepository{dir: filepath.Join(cleanRoot, "retention")}
	p.reminderRepo = &ReminderRepository{dir: filepath.Join(cleanRoot, "reminders")}

	return p
}

func (fp *Persistence) WorkflowRepository() persistence.WorkflowRepository {
	return fp.workflowRepo
}

func (fp *Persistence) DocumentRepository() persistence.DocumentRepository {
	return fp.documentRepo
}

func (fp *Persistence) ParticipantRepository() persistence.ParticipantRepository {
	return fp.participantRepo
}

func (fp *Persistence) ActivityRepository() persistence.ActivityRepository {
	return fp.activityRepo
}

func (fp *Persistence) RetentionRepository() persistence.RetentionRepository {
	return fp.retentionRepo
}

func (fp *Persistence) ReminderRepository() persistence.ReminderRepository {
	return fp.reminderRepo
}

// CommitWorkflow writes the workflow and the optional document as one unit.
func (fp *Persistence) CommitWorkflow(_ context.Context, workflow *models.Workflow, document *models.Document) error {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	return fp.commit(workflow, document)
}

// CommitTransition re-reads the linked document under the store lock, so a concurrent document
// write is never replaced by a stale copy.
func (fp *Persistence) CommitTransition(_ context.Context, workflow *models.Workflow, update persistence.DocumentUpdate) (*models.Document, error) {
	fp.mu.Lock()
	defer fp.mu.Unlock()

	if update == nil {
		return nil, fp.commit(workflow, nil)
	}

	documentPath, err := recordPath(fp.documentRepo.dir, workflow.DocumentID)
	if err != nil {
		return nil, persistence.NewWorkflowError("Commit", workflow.ID, err)
	}

	document, err := readJSON[models.Document](documentPath)
	if err != nil {
		return nil, persistence.NewWorkflowError("Commit", workflow.ID, err)
	}

	changed := document
	if document == nil || !update(document) {
		changed = nil
	}

	if err := fp.commit(workflow, changed); err != nil {
		return nil, err
	}

	return document, nil
}

// commit must be called with fp.mu held. The workflow is renamed first; when the document
// rename fails the previous workflow file is put back.
func (fp *Persistence) commit(workflow *models.Workflow, document *models.Document) error {
	workflowPath, err := recordPath(fp.workflowRepo.dir, workflow.ID)
	if err != nil {
		return persistence.NewWorkflowError("Commit", workflow.ID, err)
	}

	existing, err := readJSON[models.Workflow](workflowPath)
	if err != nil {
		return persistence.NewWorkflowError("Commit", workflow.ID, err)
	}

	switch {
	case existing == nil && workflow.Revision != 0:
		return persistence.NewWorkflowError("Commit", workflow.ID, persistence.ErrWorkflowNotFound)
	case existing != nil && workflow.Revision == 0:
		return persistence.NewWorkflowError("Commit", workflow.ID, persistence.ErrWorkflowAlreadyExists)
	case existing != nil && existing.Revision != workflow.Revision:
		return persistence.NewWorkflowError("Commit", workflow.ID, persistence.ErrRevisionConflict)
	}

	now := time.Now().UTC()

	next := *workflow
	if next.CreatedAt.IsZero() {
		next.CreatedAt = now
	}

	next.UpdatedAt = now
	next.Revision++

	workflowFile, err := stageJSON(workflowPath, &next)
	if err != nil {
		return persistence.NewWorkflowError("Commit", workflow.ID, err)
	}

	var (
		documentFile *stagedFile
		nextDocument models.Document
	)

	if document != nil {
		documentPath, err := recordPath(fp.documentRepo.dir, document.ID)
		if err != nil {
			discard(workflowFile)

			return fmt.Errorf("failed to commit document %s: %w", document.ID, err)
		}

		nextDocument = *document
		touchDocument(&nextDocument, now)

		f, err := stageJSON(documentPath, &nextDocument)
		if err != nil {
			discard(workflowFile)

			return fmt.Errorf("failed to stage document %s: %w", document.ID, err)
		}

		documentFile = &f
	}

	if err := os.Rename(workflowFile.temp, workflowFile.target); err != nil {
		discard(workflowFile)

		if documentFile != nil {
			discard(*documentFile)
		}

		return persistence.NewWorkflowError("Commit", workflow.ID, err)
	}

	if documentFile != nil {
		if err := os.Rename(documentFile.temp, documentFile.target); err != nil {
			discard(*documentFile)

			return persistence.NewWorkflowError("Commit", workflow.ID, errors.Join(err, restore(workflowPath, existing)))
		}
	}

	*workflow = next

	if document != nil {
		*document = nextDocument
	}

	return nil
}

// restore puts back the workflow file that was replaced, or removes a new one.
func restore(path string, previous *models.Workflow) error {
	if previous == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", filepath.Base(path), err)
		}

		return nil
	}

	return writeJSON(path, previous)
}

// Close performs any necessary cleanup. For file-based persistence, there is nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck checks if the file persistence layer is healthy by verifying the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

type stagedFile struct {
	temp   string
	target string
}

func discard(files ...stagedFile) {
	for _, f := range files {
		_ = os.Remove(f.temp)
	}
}

func recordPath(dir, id string) (string, error) {
	if id == "" || id != filepath.Base(id) || strings.HasPrefix(id, ".") {
		return "", fmt.Errorf("%w: %q", errInvalidID, id)
	}

	return filepath.Join(dir, id+".json"), nil
}

func stageJSON(target string, value any) (stagedFile, error) {
	err := os.MkdirAll(filepath.Dir(target), 0750)
	if err != nil {
		return stagedFile{}, fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return stagedFile{}, fmt.Errorf("failed to marshal record: %w", err)
	}

	temp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*")
	if err != nil {
		return stagedFile{}, fmt.Errorf("failed to create temporary file: %w", err)
	}

	if _, err := temp.Write(data); err != nil {
		_ = temp.Close()
		_ = os.Remove(temp.Name())

		return stagedFile{}, fmt.Errorf("failed to write record: %w", err)
	}

	if err := temp.Close(); err != nil {
		_ = os.Remove(temp.Name())

		return stagedFile{}, fmt.Errorf("failed to close record: %w", err)
	}

	return stagedFile{temp: temp.Name(), target: target}, nil
}

func writeJSON(target string, value any) error {
	f, err := stageJSON(target, value)
	if err != nil {
		return err
	}

	if err := os.Rename(f.temp, f.target); err != nil {
		_ = os.Remove(f.temp)

		return fmt.Errorf("failed to replace %s: %w", filepath.Base(target), err)
	}

	return nil
}

func readJSON[T any](path string) (*T, error) {
	body, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read %s: %w", filepath.Base(path), err)
	}

	var record T

	if err := json.Unmarshal(body, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s: %w", filepath.Base(path), err)
	}

	return &record, nil
}

func readDir[T any](dir string) ([]*T, error) {
	files, err := fs.Glob(os.DirFS(dir), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}

	records := make([]*T, 0, len(files))

	for _, name := range files {
		record, err := readJSON[T](filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}

		if record != nil {
			records = append(records, record)
		}
	}

	return records, nil
}

func touchDocument(document *models.Document, now time.Time) {
	if document.CreatedAt.IsZero() {
		document.CreatedAt = now
	}

	document.UpdatedAt = now
}
