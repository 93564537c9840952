package syncservice

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/caine128/NotesApp-sub000/internal/domain"
)

// Event verbs. Combined with the aggregate type they form the outbox
// message type, e.g. "Task.Created".
const (
	EventCreated = "Created"
	EventUpdated = "Updated"
	EventDeleted = "Deleted"
)

// eventEnvelope is the outbox payload: the post-mutation snapshot plus the
// device the mutation came from (nil for CRUD-originated mutations).
// Consumers treat it as self-describing JSON.
type eventEnvelope struct {
	Entity         any        `json:"entity"`
	OriginDeviceID *uuid.UUID `json:"originDeviceId"`
}

func marshalEnvelope(aggregateType string, entity any, origin *uuid.UUID) ([]byte, error) {
	payload, err := json.Marshal(eventEnvelope{Entity: entity, OriginDeviceID: origin})
	if err != nil {
		return nil, fmt.Errorf("marshaling %s event payload: %w", aggregateType, err)
	}
	return payload, nil
}

// TaskEvent builds the outbox row for a task mutation.
func TaskEvent(t *domain.Task, verb string, origin *uuid.UUID, now time.Time) (*domain.OutboxMessage, error) {
	payload, err := marshalEnvelope(domain.AggregateTask, SnapshotTask(t), origin)
	if err != nil {
		return nil, err
	}
	return domain.NewOutboxMessage(domain.AggregateTask, t.ID, domain.AggregateTask+"."+verb, payload, t.UserID, origin, now), nil
}

// NoteEvent builds the outbox row for a note mutation.
func NoteEvent(n *domain.Note, verb string, origin *uuid.UUID, now time.Time) (*domain.OutboxMessage, error) {
	payload, err := marshalEnvelope(domain.AggregateNote, SnapshotNote(n), origin)
	if err != nil {
		return nil, err
	}
	return domain.NewOutboxMessage(domain.AggregateNote, n.ID, domain.AggregateNote+"."+verb, payload, n.UserID, origin, now), nil
}

// BlockEvent builds the outbox row for a block mutation.
func BlockEvent(b *domain.Block, verb string, origin *uuid.UUID, now time.Time) (*domain.OutboxMessage, error) {
	payload, err := marshalEnvelope(domain.AggregateBlock, SnapshotBlock(b), origin)
	if err != nil {
		return nil, err
	}
	return domain.NewOutboxMessage(domain.AggregateBlock, b.ID, domain.AggregateBlock+"."+verb, payload, b.UserID, origin, now), nil
}

// AssetEvent builds the outbox row for an asset mutation.
func AssetEvent(a *domain.Asset, verb string, origin *uuid.UUID, now time.Time) (*domain.OutboxMessage, error) {
	payload, err := marshalEnvelope(domain.AggregateAsset, SnapshotAsset(a), origin)
	if err != nil {
		return nil, err
	}
	return domain.NewOutboxMessage(domain.AggregateAsset, a.ID, domain.AggregateAsset+"."+verb, payload, a.UserID, origin, now), nil
}
