package intake

import (
	"context"
	"errors"
	"fmt"

	"github.com/dukex/signflow/pkg/eventbus"
	"github.com/dukex/signflow/pkg/events"
)

// Register makes the intake consume return.received events from the bus.
func (i *Intake) Register(bus eventbus.EventSubscriber) error {
	err := bus.Handle(events.ReturnReceivedEvent, i.HandleEvent)
	if err != nil {
		return fmt.Errorf("failed to register return handler: %w", err)
	}

	return nil
}

// HandleEvent applies a pushed return. Invalid payloads and rejected returns are acknowledged;
// only storage failures are returned so the message is redelivered.
func (i *Intake) HandleEvent(ctx context.Context, event any) error {
	received, ok := event.(*events.ReturnReceived)
	if !ok {
		i.logger.ErrorContext(ctx, "Unexpected event", "type", fmt.Sprintf("%T", event))

		return nil
	}

	logger := i.logger.With("event_id", received.ID, "workflow_id", received.WorkflowID)

	_, err := i.ImportFor(ctx, received.Payload, received.ParticipantEmail)
	if errors.Is(err, ErrInvalidPayload) {
		logger.WarnContext(ctx, "Dropping invalid pushed return", "error", err)

		return nil
	}

	if err != nil {
		logger.ErrorContext(ctx, "Failed to apply pushed return", "error", err)

		return err
	}

	return nil
}
