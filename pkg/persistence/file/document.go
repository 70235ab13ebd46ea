package file

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/persistence"
)

// DocumentRepository handles document files. It shares the commit lock of the persistence,
// so a plain save never interleaves with a workflow commit.
type DocumentRepository struct {
	dir string
	mu  *sync.Mutex
}

func (dr *DocumentRepository) GetByID(_ context.Context, id string) (*models.Document, error) {
	path, err := recordPath(dr.dir, id)
	if err != nil {
		return nil, err
	}

	document, err := readJSON[models.Document](path)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch document %s: %w", id, err)
	}

	return document, nil
}

func (dr *DocumentRepository) GetAll(_ context.Context) ([]*models.Document, error) {
	documents, err := readDir[models.Document](dr.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to load documents: %w", err)
	}

	sort.Slice(documents, func(i, j int) bool {
		return documents[i].CreatedAt.After(documents[j].CreatedAt)
	})

	return documents, nil
}

func (dr *DocumentRepository) FindByStatus(ctx context.Context, status models.DocumentStatus) ([]*models.Document, error) {
	all, err := dr.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	documents := make([]*models.Document, 0)

	for _, d := range all {
		if d.Status == status {
			documents = append(documents, d)
		}
	}

	return documents, nil
}

func (dr *DocumentRepository) Save(_ context.Context, document *models.Document) error {
	path, err := recordPath(dr.dir, document.ID)
	if err != nil {
		return err
	}

	dr.mu.Lock()
	defer dr.mu.Unlock()

	touchDocument(document, time.Now().UTC())

	if err := writeJSON(path, document); err != nil {
		return fmt.Errorf("failed to save document %s: %w", document.ID, err)
	}

	return nil
}

func (dr *DocumentRepository) Update(_ context.Context, id string, update persistence.DocumentUpdate) (*models.Document, error) {
	path, err := recordPath(dr.dir, id)
	if err != nil {
		return nil, err
	}

	dr.mu.Lock()
	defer dr.mu.Unlock()

	document, err := readJSON[models.Document](path)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}

	if document == nil || !update(document) {
		return document, nil
	}

	touchDocument(document, time.Now().UTC())

	if err := writeJSON(path, document); err != nil {
		return nil, fmt.Errorf("failed to save document %s: %w", id, err)
	}

	return document, nil
}
