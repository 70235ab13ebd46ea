// Package events defines the messages exchanged over the event bus.
package events

import (
	"encoding/json"
	"time"

	"github.com/dukex/signflow/pkg/models"
	"github.com/google/uuid"
)

type EventType string

// Topic carries every signflow event; handlers are selected by the event type metadata.
const Topic = "signflow.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	// ActivityRecordedEvent mirrors every audit trail entry.
	ActivityRecordedEvent EventType = "activity.recorded"

	// ReturnReceivedEvent carries a participant return pushed by a sync channel.
	ReturnReceivedEvent EventType = "return.received"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func NewBaseEvent(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.New().String(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

type ActivityRecorded struct {
	BaseEvent

	Activity models.Activity `json:"activity"`
}

func (a ActivityRecorded) GetType() EventType {
	return ActivityRecordedEvent
}

// ReturnReceived holds the raw return file so the consumer can validate it as imported.
type ReturnReceived struct {
	BaseEvent

	// ParticipantEmail selects the parallel participant; empty for serial steps.
	ParticipantEmail string          `json:"participant_email,omitempty"`
	Payload          json.RawMessage `json:"payload"`
}

func (r ReturnReceived) GetType() EventType {
	return ReturnReceivedEvent
}
