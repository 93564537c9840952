package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/caine128/NotesApp-sub000/internal/domain"
)

type outboxRepo struct {
	q querier
}

func (r outboxRepo) Append(ctx context.Context, m *domain.OutboxMessage) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO outbox_messages
			(id, aggregate_id, aggregate_type, message_type, payload,
			 user_id, origin_device_id, created_at, attempt_count)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		m.ID, m.AggregateID, m.AggregateType, m.MessageType, m.Payload,
		m.UserID, m.OriginDeviceID, m.CreatedAt, m.AttemptCount)
	return err
}

func (r outboxRepo) ListUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, aggregate_id, aggregate_type, message_type, payload,
		       user_id, origin_device_id, created_at, processed_at, attempt_count
		FROM outbox_messages
		WHERE processed_at IS NULL
		ORDER BY created_at, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.OutboxMessage
	for rows.Next() {
		var m domain.OutboxMessage
		if err := rows.Scan(&m.ID, &m.AggregateID, &m.AggregateType,
			&m.MessageType, &m.Payload, &m.UserID, &m.OriginDeviceID,
			&m.CreatedAt, &m.ProcessedAt, &m.AttemptCount); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (r outboxRepo) MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := r.q.Exec(ctx, `
		UPDATE outbox_messages
		SET processed_at = $2, attempt_count = attempt_count + 1
		WHERE id = ANY($1) AND processed_at IS NULL`, ids, at)
	return err
}
