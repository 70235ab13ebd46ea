// Package workflow implements the lifecycle of document validation circuits: creation, returns,
// parallel aggregation, corrections, cancellation and dispatch bookkeeping.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/dukex/signflow/pkg/locking"
	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/otelhelper"
	"github.com/dukex/signflow/pkg/persistence"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ActivityRecorder appends audit trail entries. It must not block the transition.
type ActivityRecorder interface {
	Record(ctx context.Context, activity models.Activity)
}

// RetentionScheduler schedules the deletion of a document's content. CancelRetention withdraws a
// pending deletion when the document is attached to a new workflow.
type RetentionScheduler interface {
	ScheduleRetention(ctx context.Context, documentID, documentName string) error
	CancelRetention(ctx context.Context, documentID string) error
}

// ReminderGenerator schedules the deadline reminders of a new workflow.
type ReminderGenerator interface {
	GenerateWorkflowReminders(ctx context.Context, workflow *models.Workflow) error
}

// Advancer dispatches the current step of a workflow to its participants.
type Advancer interface {
	Advance(ctx context.Context, workflowID string)
}

// Result is the outcome of a transition. A rejected transition has Success false and a Reason
// matching one of the package's Err values; the workflow is left unchanged.
type Result struct {
	Success  bool
	Message  string
	Reason   error
	Workflow *models.Workflow
}

func succeed(format string, args ...any) *Result {
	return &Result{Success: true, Message: fmt.Sprintf(format, args...)}
}

func reject(reason error, format string, args ...any) *Result {
	return &Result{Reason: reason, Message: fmt.Sprintf(format, args...)}
}

// Engine drives workflow transitions. Every transition reads the whole workflow, applies the
// change in memory and commits it with a revision check, under a per-workflow lock.
type Engine struct {
	persistence persistence.Persistence
	recorder    ActivityRecorder
	retention   RetentionScheduler
	reminders   ReminderGenerator
	locker      locking.Locker
	tracer      trace.Tracer
	logger      *slog.Logger
	now         func() time.Time

	autoAdvance    bool
	commitAttempts int

	advancerMu sync.RWMutex
	advancer   Advancer
	background sync.WaitGroup
}

func NewEngine(p persistence.Persistence, recorder ActivityRecorder, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		persistence:    p,
		recorder:       recorder,
		locker:         locking.NewMemory(),
		tracer:         otelhelper.NoopTracer(),
		logger:         logger.With("module", "workflow_engine"),
		now:            func() time.Time { return time.Now().UTC() },
		autoAdvance:    true,
		commitAttempts: defaultCommitAttempts,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// SetAdvancer installs the dispatcher invoked when the cursor lands on a pending step.
func (e *Engine) SetAdvancer(advancer Advancer) {
	e.advancerMu.Lock()
	defer e.advancerMu.Unlock()

	e.advancer = advancer
}

// Wait blocks until every background advance started so far has returned.
func (e *Engine) Wait() {
	e.background.Wait()
}

// change collects the mutation of one transition and its post-commit effects.
type change struct {
	workflow *models.Workflow
	now      time.Time

	documentStatus models.DocumentStatus
	content        []byte
	contentSet     bool

	activities []models.Activity
	retention  bool
	advance    bool
	unchanged  bool
}

func (c *change) record(activityType models.ActivityType, description string, metadata map[string]any) {
	c.activities = append(c.activities, models.Activity{
		Type:        activityType,
		Description: description,
		DocumentID:  c.workflow.DocumentID,
		WorkflowID:  c.workflow.ID,
		Metadata:    metadata,
		CreatedAt:   c.now,
	})
}

func (c *change) setDocumentStatus(status models.DocumentStatus) {
	c.documentStatus = status
}

func (c *change) replaceContent(content []byte) {
	c.content = content
	c.contentSet = true
}

func (c *change) touchesDocument() bool {
	return c.documentStatus != "" || c.contentSet
}

// advanceFrom moves the cursor past index to the next open step, bypassing skipped steps,
// or completes the workflow when none is left.
func (c *change) advanceFrom(index int) string {
	next, ok := c.workflow.NextOpenStep(index)
	if !ok {
		c.complete()

		return "workflow completed"
	}

	c.workflow.CurrentStepIndex = next
	c.advance = c.workflow.Steps[next].Status == models.StepStatusPending

	return fmt.Sprintf("advanced to step %d", next+1)
}

func (c *change) complete() {
	c.workflow.Terminate(models.WorkflowStatusCompleted, c.now)
	c.setDocumentStatus(models.DocumentStatusCompleted)
	c.retention = true
	c.record(models.ActivityWorkflowCompleted, fmt.Sprintf("Workflow %s completed", c.workflow.Name), nil)
}

func (c *change) rejectWorkflow(step *models.WorkflowStep, reason string) {
	c.workflow.Terminate(models.WorkflowStatusRejected, c.now)
	c.workflow.ClearCorrection()
	c.setDocumentStatus(models.DocumentStatusRejected)
	c.retention = true
	c.record(models.ActivityWorkflowRejected, fmt.Sprintf("Workflow %s rejected by %s", c.workflow.Name, step.Participant.Name), map[string]any{
		"step_id": step.ID,
		"reason":  reason,
	})
}

type mutation func(c *change) *Result

// transition runs fn on a fresh copy of the workflow and commits the result. fn returns a
// rejected Result to abort without writing anything.
func (e *Engine) transition(ctx context.Context, op, workflowID string, fn mutation, attrs ...attribute.KeyValue) (*Result, error) {
	ctx, span := otelhelper.StartSpan(ctx, e.tracer, "workflow."+op,
		append(attrs, attribute.String(otelhelper.WorkflowIDKey, workflowID))...)
	defer span.End()

	logger := e.logger.With("op", op, "workflow_id", workflowID)

	release, err := e.locker.Lock(ctx, workflowID)
	if err != nil {
		otelhelper.SetError(span, err)

		return nil, fmt.Errorf("failed to lock workflow %s: %w", workflowID, err)
	}
	defer release()

	for attempt := 1; attempt <= e.commitAttempts; attempt++ {
		result, c, err := e.apply(ctx, op, workflowID, fn)
		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		if !result.Success {
			logger.InfoContext(ctx, "Transition rejected", "reason", result.Reason)
			span.SetAttributes(attribute.String(otelhelper.OutcomeKey, "rejected"))

			return result, nil
		}

		if c.unchanged {
			result.Workflow = c.workflow

			return result, nil
		}

		document, err := e.commit(ctx, c)
		if persistence.IsRevisionConflict(err) {
			logger.WarnContext(ctx, "Revision conflict, retrying", "attempt", attempt)

			continue
		}

		if err != nil {
			otelhelper.SetError(span, err)

			return nil, err
		}

		e.afterCommit(ctx, c, document)

		span.SetAttributes(attribute.String(otelhelper.OutcomeKey, "committed"))
		result.Workflow = c.workflow

		return result, nil
	}

	err = fmt.Errorf("%w: %s after %d attempts", ErrConcurrentModification, workflowID, e.commitAttempts)
	otelhelper.SetError(span, err)

	return nil, err
}

func (e *Engine) apply(ctx context.Context, op, workflowID string, fn mutation) (*Result, *change, error) {
	workflow, err := e.persistence.WorkflowRepository().GetByID(ctx, workflowID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load workflow %s: %w", workflowID, err)
	}

	if workflow == nil {
		rejection := &Rejection{Op: op, WorkflowID: workflowID, Err: ErrWorkflowNotFound}

		return reject(rejection, "Workflow %s not found", workflowID), nil, nil
	}

	c := &change{workflow: workflow, now: e.now()}

	return fn(c), c, nil
}

// commit writes the workflow and, when the change touches it, the linked document together. The
// document change is applied to the stored copy inside the commit.
func (e *Engine) commit(ctx context.Context, c *change) (*models.Document, error) {
	var update persistence.DocumentUpdate

	if c.touchesDocument() {
		update = func(document *models.Document) bool {
			if c.documentStatus != "" {
				document.Status = c.documentStatus
			}

			if c.contentSet {
				document.Content = c.content
				document.ContentPurgedAt = nil
				document.Version++
			}

			return true
		}
	}

	document, err := e.persistence.CommitTransition(ctx, c.workflow, update)
	if err != nil {
		return nil, err
	}

	if update != nil && document == nil {
		e.logger.WarnContext(ctx, "Linked document is missing, committed workflow only",
			"workflow_id", c.workflow.ID, "document_id", c.workflow.DocumentID)
	}

	return document, nil
}

// afterCommit runs the effects of a durable transition. None of them can fail the transition.
func (e *Engine) afterCommit(ctx context.Context, c *change, document *models.Document) {
	for _, activity := range c.activities {
		e.recorder.Record(ctx, activity)
	}

	if c.retention && e.retention != nil {
		name := c.workflow.DocumentID
		if document != nil {
			name = document.Name
		}

		err := e.retention.ScheduleRetention(ctx, c.workflow.DocumentID, name)
		if err != nil {
			e.logger.ErrorContext(ctx, "Failed to schedule retention", "document_id", c.workflow.DocumentID, "error", err)
		}
	}

	if c.advance && !c.workflow.IsTerminal() && !c.workflow.AwaitingCorrection {
		e.triggerAdvance(ctx, c.workflow.ID)
	}
}

func (e *Engine) triggerAdvance(ctx context.Context, workflowID string) {
	if !e.autoAdvance {
		return
	}

	e.advancerMu.RLock()
	advancer := e.advancer
	e.advancerMu.RUnlock()

	if advancer == nil {
		return
	}

	e.background.Add(1)

	go func() {
		defer e.background.Done()

		advancer.Advance(context.WithoutCancel(ctx), workflowID)
	}()
}

// Workflow returns the workflow with the given id.
func (e *Engine) Workflow(ctx context.Context, id string) (*models.Workflow, error) {
	workflow, err := e.persistence.WorkflowRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load workflow %s: %w", id, err)
	}

	if workflow == nil {
		return nil, &Rejection{Op: "Workflow", WorkflowID: id, Err: ErrWorkflowNotFound}
	}

	return workflow, nil
}

// Document returns the document with the given id.
func (e *Engine) Document(ctx context.Context, id string) (*models.Document, error) {
	document, err := e.persistence.DocumentRepository().GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}

	if document == nil {
		return nil, fmt.Errorf("document %s: %w", id, ErrDocumentNotFound)
	}

	return document, nil
}

// Activity returns the audit trail of a workflow, oldest first.
func (e *Engine) Activity(ctx context.Context, workflowID string) ([]*models.Activity, error) {
	if _, err := e.Workflow(ctx, workflowID); err != nil {
		return nil, err
	}

	activities, err := e.persistence.ActivityRepository().FindByWorkflowID(ctx, workflowID)
	if err != nil {
		return nil, fmt.Errorf("failed to load activity of workflow %s: %w", workflowID, err)
	}

	return activities, nil
}

// HealthCheck reports whether the persistence layer is reachable.
func (e *Engine) HealthCheck(ctx context.Context) (string, bool) {
	err := e.persistence.HealthCheck(ctx)
	if err != nil {
		return "Persistence layer is unhealthy: " + err.Error(), false
	}

	return "Persistence layer is healthy", true
}

func stepRejection(op string, workflow *models.Workflow, stepID string, err error) *Rejection {
	return &Rejection{Op: op, WorkflowID: workflow.ID, StepID: stepID, Err: err}
}

// transitionStep applies a table-checked status change, reporting an impossible move as invalid state.
func transitionStep(op string, workflow *models.Workflow, step *models.WorkflowStep, to models.StepStatus) *Result {
	if err := step.Transition(to); err != nil {
		if errors.Is(err, models.ErrInvalidTransition) {
			return reject(stepRejection(op, workflow, step.ID, fmt.Errorf("%w: %w", ErrInvalidState, err)),
				"Step %d cannot move from %s to %s", step.Order, step.Status, to)
		}

		return reject(stepRejection(op, workflow, step.ID, err), "%v", err)
	}

	return nil
}
