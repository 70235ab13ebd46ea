// Package intake is the boundary for participant returns: it validates return files and hands
// them to the workflow engine, whether they are imported or pushed by a sync channel.
package intake

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukex/signflow/pkg/models"
	"github.com/dukex/signflow/pkg/workflow"
	"github.com/go-playground/validator/v10"
	"github.com/xeipuuv/gojsonschema"
)

//go:embed return.schema.json
var returnSchema string

// ErrInvalidPayload is the base error of every rejected return file.
var ErrInvalidPayload = errors.New("invalid return payload")

// ValidationError lists why a return file was rejected.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidPayload, strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidPayload
}

// Processor applies returns to workflows.
type Processor interface {
	ProcessReturn(ctx context.Context, workflowID string, data models.ReturnFileData) (*workflow.Result, error)
	ProcessParallelReturn(ctx context.Context, workflowID string, data models.ReturnFileData, participantEmail string) (*workflow.Result, error)
}

type Intake struct {
	processor Processor
	schema    *gojsonschema.Schema
	validate  *validator.Validate
	logger    *slog.Logger
}

func New(processor Processor, logger *slog.Logger) (*Intake, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(returnSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile return schema: %w", err)
	}

	return &Intake{
		processor: processor,
		schema:    schema,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		logger:    logger.With("module", "intake"),
	}, nil
}

// Decode validates raw against the return file schema and the model constraints.
// The raw bytes are kept on the result for the audit trail.
func (i *Intake) Decode(raw []byte) (models.ReturnFileData, error) {
	var data models.ReturnFileData

	if !json.Valid(raw) {
		return data, &ValidationError{Problems: []string{"payload is not valid JSON"}}
	}

	result, err := i.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return data, fmt.Errorf("failed to validate return payload: %w", err)
	}

	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}

		return data, &ValidationError{Problems: problems}
	}

	err = json.Unmarshal(raw, &data)
	if err != nil {
		return data, &ValidationError{Problems: []string{err.Error()}}
	}

	err = i.validate.Struct(data)
	if err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			problems := make([]string, 0, len(validationErrors))
			for _, fieldErr := range validationErrors {
				problems = append(problems, fmt.Sprintf("%s failed on %s", fieldErr.Namespace(), fieldErr.Tag()))
			}

			return data, &ValidationError{Problems: problems}
		}

		return data, fmt.Errorf("failed to validate return payload: %w", err)
	}

	data.Raw = json.RawMessage(raw)

	return data, nil
}

// Import validates raw and applies it to the workflow it names. The return of a parallel step is
// recorded for the participant of the payload.
func (i *Intake) Import(ctx context.Context, raw []byte) (*workflow.Result, error) {
	return i.ImportFor(ctx, raw, "")
}

// ImportFor is Import with the parallel participant given explicitly.
func (i *Intake) ImportFor(ctx context.Context, raw []byte, participantEmail string) (*workflow.Result, error) {
	data, err := i.Decode(raw)
	if err != nil {
		return nil, err
	}

	logger := i.logger.With("workflow_id", data.WorkflowID, "step_id", data.StepID, "decision", data.Decision)

	var result *workflow.Result

	if participantEmail != "" {
		result, err = i.processor.ProcessParallelReturn(ctx, data.WorkflowID, data, participantEmail)
	} else {
		result, err = i.processor.ProcessReturn(ctx, data.WorkflowID, data)
	}

	if err != nil {
		return nil, err
	}

	if result.Success {
		logger.InfoContext(ctx, "Return imported", "message", result.Message)
	} else {
		logger.WarnContext(ctx, "Return rejected", "reason", result.Reason)
	}

	return result, nil
}
