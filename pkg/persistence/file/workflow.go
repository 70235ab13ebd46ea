package file

import (
	"context"
	"fmt"
	"sort"

	"github.com/dukex/signflow/pkg/models"
)

// WorkflowRepository handles workflow-related file operations.
type WorkflowRepository struct {
	dir string
}

// GetByID retrieves a workflow by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, workflowID string) (*models.Workflow, error) {
	path, err := recordPath(wr.dir, workflowID)
	if err != nil {
		return nil, err
	}

	workflow, err := readJSON[models.Workflow](path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch workflow %s: %w", workflowID, err)
	}

	return workflow, nil
}

// GetAll returns every workflow, newest first.
func (wr *WorkflowRepository) GetAll(_ context.Context) ([]*models.Workflow, error) {
	workflows, err := readDir[models.Workflow](wr.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflows: %w", err)
	}

	sort.Slice(workflows, func(i, j int) bool {
		return workflows[i].CreatedAt.After(workflows[j].CreatedAt)
	})

	return workflows, nil
}

func (wr *WorkflowRepository) FindByDocumentID(ctx context.Context, documentID string) ([]*models.Workflow, error) {
	return wr.filter(ctx, func(w *models.Workflow) bool { return w.DocumentID == documentID })
}

func (wr *WorkflowRepository) FindByStatus(ctx context.Context, status models.WorkflowStatus) ([]*models.Workflow, error) {
	return wr.filter(ctx, func(w *models.Workflow) bool { return w.Status == status })
}

func (wr *WorkflowRepository) filter(ctx context.Context, keep func(*models.Workflow) bool) ([]*models.Workflow, error) {
	all, err := wr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0)

	for _, w := range all {
		if keep(w) {
			workflows = append(workflows, w)
		}
	}

	return workflows, nil
}
