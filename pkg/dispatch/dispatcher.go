package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/signflow/pkg/activity"
	"github.com/dukex/signflow/pkg/mailer"
	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/storage"
	"github.com/dukex/signflow/pkg/template"
	"github.com/dukex/signflow/pkg/workflow"
)

const (
	DefaultTimeout = 30 * time.Second

	DefaultSubject = `{{ .Package.WorkflowName }}: your {{ .Package.Role }} decision is requested`
	DefaultBody    = `Hello {{ .Participant.Name }}, step {{ .Package.StepOrder }} of ` +
		`{{ .Package.WorkflowName }} is waiting for you{{ if .Package.Deadline }} before {{ date .Package.Deadline }}{{ end }}. ` +
		`{{ .Package.Instructions }}`
)

// Engine is the part of the workflow engine the dispatcher drives.
type Engine interface {
	Workflow(ctx context.Context, id string) (*models.Workflow, error)
	Document(ctx context.Context, id string) (*models.Document, error)
	MarkStepAsSent(ctx context.Context, workflowID, stepID, packageID string) (*workflow.Result, error)
}

// Dispatcher implements workflow.Advancer. Every failure is recorded and swallowed: the
// transition that reached the step is already committed.
type Dispatcher struct {
	engine   Engine
	recorder workflow.ActivityRecorder
	storage  storage.System
	mailer   mailer.Mailer
	logger   *slog.Logger
	now      func() time.Time

	timeout time.Duration
	subject string
	body    string
}

type Option func(*Dispatcher)

// WithStorage hosts packages in system before they are announced.
func WithStorage(system storage.System) Option {
	return func(d *Dispatcher) {
		d.storage = system
	}
}

// WithMailer emails every recipient of the step.
func WithMailer(m mailer.Mailer) Option {
	return func(d *Dispatcher) {
		d.mailer = m
	}
}

// WithTimeout bounds each upload and each email.
func WithTimeout(timeout time.Duration) Option {
	return func(d *Dispatcher) {
		if timeout > 0 {
			d.timeout = timeout
		}
	}
}

// WithTemplates replaces the email subject and body templates. Empty values keep the defaults.
func WithTemplates(subject, body string) Option {
	return func(d *Dispatcher) {
		if subject != "" {
			d.subject = subject
		}

		if body != "" {
			d.body = body
		}
	}
}

func withClock(now func() time.Time) Option {
	return func(d *Dispatcher) {
		d.now = now
	}
}

func NewDispatcher(engine Engine, recorder workflow.ActivityRecorder, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		engine:   engine,
		recorder: recorder,
		logger:   logger.With("module", "dispatcher"),
		now:      func() time.Time { return time.Now().UTC() },
		timeout:  DefaultTimeout,
		subject:  DefaultSubject,
		body:     DefaultBody,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// notice is the data the email templates are rendered with.
type notice struct {
	Participant models.Participant
	Package     *Package
	URL         string
}

// Advance sends the current step of the workflow when it is still pending.
func (d *Dispatcher) Advance(ctx context.Context, workflowID string) {
	logger := d.logger.With("workflow_id", workflowID)

	var documentID string

	defer func() {
		if r := recover(); r != nil {
			logger.ErrorContext(ctx, "Auto-advance panicked", "panic", r)
			d.failed(ctx, workflowID, documentID, "panic", fmt.Errorf("panic: %v", r))
		}
	}()

	wf, err := d.engine.Workflow(ctx, workflowID)
	if err != nil {
		d.failed(ctx, workflowID, "", "load_workflow", err)

		return
	}

	documentID = wf.DocumentID

	step := wf.CurrentStep()

	if reason := skipReason(wf, step); reason != "" {
		logger.InfoContext(ctx, "Auto-advance skipped", "reason", reason)
		d.record(ctx, wf, models.ActivityAutoAdvanceSkipped, "Auto-advance skipped: "+reason, map[string]any{
			"reason": reason,
		})

		return
	}

	document, err := d.engine.Document(ctx, wf.DocumentID)
	if err != nil {
		d.failed(ctx, workflowID, documentID, "load_document", err)

		return
	}

	pkg := NewPackage(wf, step, document, d.now())

	data, err := pkg.Marshal()
	if err != nil {
		d.failed(ctx, workflowID, documentID, "generate_package", err)

		return
	}

	d.record(ctx, wf, models.ActivityPackageGenerated, fmt.Sprintf("Package generated for step %d", step.Order), map[string]any{
		"step_id":    step.ID,
		"package_id": pkg.ID,
		"size":       len(data),
	})

	reference, url := pkg.ID, ""

	if d.storage != nil {
		url, err = d.upload(ctx, pkg, data)
		if err != nil {
			logger.WarnContext(ctx, "Failed to upload package", "package_id", pkg.ID, "error", err)
			d.failed(ctx, workflowID, documentID, "upload_package", err)
		} else {
			reference = pkg.Key()
			d.record(ctx, wf, models.ActivityPackageUploaded, fmt.Sprintf("Package uploaded for step %d", step.Order), map[string]any{
				"step_id":    step.ID,
				"package_id": pkg.ID,
				"url":        url,
			})
		}
	}

	delivered := d.notify(ctx, wf, step, pkg, url)

	// without a mailer the generated package is the delivery
	if d.mailer != nil && delivered == 0 {
		logger.WarnContext(ctx, "No participant was notified, step stays pending", "step_id", step.ID)

		return
	}

	result, err := d.engine.MarkStepAsSent(ctx, wf.ID, step.ID, reference)
	if err != nil {
		d.failed(ctx, workflowID, documentID, "mark_sent", err)

		return
	}

	if !result.Success {
		logger.InfoContext(ctx, "Step not marked as sent", "step_id", step.ID, "reason", result.Reason)
	}
}

func skipReason(wf *models.Workflow, step *models.WorkflowStep) string {
	switch {
	case wf.IsTerminal():
		return "workflow is " + string(wf.Status)
	case wf.AwaitingCorrection:
		return "workflow is awaiting a correction"
	case step == nil:
		return "no current step"
	case step.Status != models.StepStatusPending:
		return fmt.Sprintf("step %d is %s", step.Order, step.Status)
	default:
		return ""
	}
}

func (d *Dispatcher) upload(ctx context.Context, pkg *Package, data []byte) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.storage.Upload(ctx, pkg.Key(), bytes.NewReader(data), PackageContentType)
}

// notify emails each recipient and returns how many emails were accepted.
func (d *Dispatcher) notify(ctx context.Context, wf *models.Workflow, step *models.WorkflowStep, pkg *Package, url string) int {
	if d.mailer == nil {
		d.record(ctx, wf, models.ActivityEmailSkipped, fmt.Sprintf("Email not configured for step %d", step.Order), map[string]any{
			"step_id": step.ID,
			"reason":  "mailer not configured",
		})

		return 0
	}

	delivered := 0

	for _, participant := range pkg.Recipients {
		metadata := map[string]any{
			"step_id": step.ID,
			"to":      participant.Email,
		}

		if participant.Email == "" {
			metadata["reason"] = "participant has no email"
			d.record(ctx, wf, models.ActivityEmailSkipped, fmt.Sprintf("No email for %s", participant.Name), metadata)

			continue
		}

		err := d.send(ctx, participant, pkg, url)
		if err != nil {
			metadata["error"] = err.Error()
			d.record(ctx, wf, models.ActivityEmailFailed, fmt.Sprintf("Email to %s failed", participant.Email), metadata)

			continue
		}

		delivered++

		d.record(ctx, wf, models.ActivityEmailSent, fmt.Sprintf("Email sent to %s", participant.Email), metadata)
	}

	return delivered
}

func (d *Dispatcher) send(ctx context.Context, participant models.Participant, pkg *Package, url string) error {
	data := notice{Participant: participant, Package: pkg, URL: url}

	subject, err := template.Render(d.subject, data)
	if err != nil {
		return err
	}

	body, err := template.Render(d.body, data)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	return d.mailer.Send(ctx, mailer.Message{
		ToName:     participant.Name,
		ToEmail:    participant.Email,
		Subject:    subject,
		Body:       body,
		PackageURL: url,
		Params: map[string]string{
			"workflow_id": pkg.WorkflowID,
			"step_id":     pkg.StepID,
			"package_id":  pkg.ID,
			"role":        string(pkg.Role),
		},
	})
}

func (d *Dispatcher) record(ctx context.Context, wf *models.Workflow, activityType models.ActivityType, description string, metadata map[string]any) {
	d.recorder.Record(ctx, activity.New(activityType, description, wf, metadata))
}

func (d *Dispatcher) failed(ctx context.Context, workflowID, documentID, stage string, err error) {
	d.logger.ErrorContext(ctx, "Auto-advance failed", "workflow_id", workflowID, "stage", stage, "error", err)

	d.recorder.Record(ctx, models.Activity{
		Type:        models.ActivityAutoAdvanceFailed,
		Description: fmt.Sprintf("Auto-advance failed at %s", stage),
		DocumentID:  documentID,
		WorkflowID:  workflowID,
		Metadata: map[string]any{
			"stage": stage,
			"error": err.Error(),
		},
	})
}
