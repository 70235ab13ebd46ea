package mocks

import (
	"context"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/stretchr/testify/mock"
)

// MockActivityRepository is a mock implementation of persistence.ActivityRepository interface.
type MockActivityRepository struct {
	mock.Mock
}

func (m *MockActivityRepository) Append(ctx context.Context, activity *models.Activity) error {
	args := m.Called(ctx, activity)

	return args.Error(0)
}

func (m *MockActivityRepository) FindByWorkflowID(ctx context.Context, workflowID string) ([]*models.Activity, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Activity), args.Error(1)
}

func (m *MockActivityRepository) FindByDocumentID(ctx context.Context, documentID string) ([]*models.Activity, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Activity), args.Error(1)
}

// MockRetentionRepository is a mock implementation of persistence.RetentionRepository interface.
type MockRetentionRepository struct {
	mock.Mock
}

func (m *MockRetentionRepository) GetByDocumentID(ctx context.Context, documentID string) (*models.DocumentRetention, error) {
	args := m.Called(ctx, documentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).(*models.DocumentRetention), args.Error(1)
}

func (m *MockRetentionRepository) Save(ctx context.Context, retention *models.DocumentRetention) error {
	args := m.Called(ctx, retention)

	return args.Error(0)
}

func (m *MockRetentionRepository) FindDue(ctx context.Context, now time.Time) ([]*models.DocumentRetention, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.DocumentRetention), args.Error(1)
}

// MockReminderRepository is a mock implementation of persistence.ReminderRepository interface.
type MockReminderRepository struct {
	mock.Mock
}

func (m *MockReminderRepository) Save(ctx context.Context, reminder *models.Reminder) error {
	args := m.Called(ctx, reminder)

	return args.Error(0)
}

func (m *MockReminderRepository) FindByWorkflowID(ctx context.Context, workflowID string) ([]*models.Reminder, error) {
	args := m.Called(ctx, workflowID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Reminder), args.Error(1)
}

func (m *MockReminderRepository) FindDue(ctx context.Context, now time.Time) ([]*models.Reminder, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]*models.Reminder), args.Error(1)
}
