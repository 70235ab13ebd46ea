// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/google/uuid"
)

// CreateTestParticipant creates a participant whose email is derived from name.
func CreateTestParticipant(name string) models.Participant {
	return models.Participant{
		Name:         name,
		Email:        fmt.Sprintf("%s@example.com", name),
		Organization: "Example",
	}
}

// CreateTestDocument creates a draft document with default values that can be overridden.
func CreateTestDocument(overrides ...func(*models.Document)) *models.Document {
	document := &models.Document{
		ID:       uuid.New().String(),
		Name:     "contract.pdf",
		MimeType: "application/pdf",
		Status:   models.DocumentStatusDraft,
		Content:  []byte("%PDF-1.7 test"),
		Version:  1,
	}

	for _, override := range overrides {
		override(document)
	}

	return document
}

// CreateTestStep creates a pending serial step with default values that can be overridden.
func CreateTestStep(order int, overrides ...func(*models.WorkflowStep)) *models.WorkflowStep {
	step := &models.WorkflowStep{
		ID:          uuid.New().String(),
		Order:       order,
		Participant: CreateTestParticipant(fmt.Sprintf("participant%d", order)),
		Role:        models.RoleReviewer,
		Status:      models.StepStatusPending,
	}

	for _, override := range overrides {
		override(step)
	}

	return step
}

// WithStatus sets the step status.
func WithStatus(status models.StepStatus) func(*models.WorkflowStep) {
	return func(s *models.WorkflowStep) {
		s.Status = status
	}
}

// WithParallel turns the step into a parallel step with one sub-participant per name.
func WithParallel(mode models.ParallelMode, names ...string) func(*models.WorkflowStep) {
	return func(s *models.WorkflowStep) {
		s.IsParallel = true
		s.ParallelMode = mode
		s.ParallelParticipants = make([]*models.ParallelParticipant, 0, len(names))

		for _, name := range names {
			s.ParallelParticipants = append(s.ParallelParticipants, &models.ParallelParticipant{
				Participant: CreateTestParticipant(name),
				Status:      models.StepStatusPending,
			})
		}
	}
}

// CreateTestWorkflow creates an active workflow over the given steps.
func CreateTestWorkflow(documentID string, steps []*models.WorkflowStep, overrides ...func(*models.Workflow)) *models.Workflow {
	workflow := &models.Workflow{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Name:       "Test circuit",
		Status:     models.WorkflowStatusActive,
		Steps:      steps,
		Owner:      CreateTestParticipant("owner"),
	}

	for _, override := range overrides {
		override(workflow)
	}

	return workflow
}

// ActivitySink collects recorded activity in memory.
type ActivitySink struct {
	mu         sync.Mutex
	activities []models.Activity
}

func (s *ActivitySink) Record(_ context.Context, activity models.Activity) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now().UTC()
	}

	s.activities = append(s.activities, activity)
}

// Types returns the recorded activity types in order.
func (s *ActivitySink) Types() []models.ActivityType {
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]models.ActivityType, 0, len(s.activities))
	for _, activity := range s.activities {
		types = append(types, activity.Type)
	}

	return types
}

// Find returns the first activity of the given type.
func (s *ActivitySink) Find(activityType models.ActivityType) (models.Activity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, activity := range s.activities {
		if activity.Type == activityType {
			return activity, true
		}
	}

	return models.Activity{}, false
}

// Clock is a settable time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func NewClock(now time.Time) *Clock {
	return &Clock{now: now}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}
