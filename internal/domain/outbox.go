package domain

import (
	"time"

	"github.com/google/uuid"
)

// Aggregate type tags for outbox messages.
const (
	AggregateTask  = "Task"
	AggregateNote  = "Note"
	AggregateBlock = "Block"
	AggregateAsset = "Asset"
)

// OutboxMessage is one durable event row, co-committed with the entity
// write it describes. ProcessedAt is set by the external dispatcher, never
// by the core.
type OutboxMessage struct {
	ID             uuid.UUID
	AggregateID    uuid.UUID
	AggregateType  string
	MessageType    string // e.g. "Task.Created"
	Payload        []byte // opaque post-state snapshot, self-describing JSON
	UserID         uuid.UUID
	OriginDeviceID *uuid.UUID // nil when the mutation did not come from a device
	CreatedAt      time.Time
	ProcessedAt    *time.Time
	AttemptCount   int
}

// NewOutboxMessage builds an unprocessed event row.
func NewOutboxMessage(aggregateType string, aggregateID uuid.UUID, messageType string, payload []byte, userID uuid.UUID, originDeviceID *uuid.UUID, now time.Time) *OutboxMessage {
	return &OutboxMessage{
		ID:             uuid.New(),
		AggregateID:    aggregateID,
		AggregateType:  aggregateType,
		MessageType:    messageType,
		Payload:        payload,
		UserID:         userID,
		OriginDeviceID: originDeviceID,
		CreatedAt:      now.UTC(),
	}
}
