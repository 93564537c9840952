package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/caine128/NotesApp-sub000/internal/domain"
	"github.com/caine128/NotesApp-sub000/internal/store"
)

type taskRepo struct {
	q querier
}

const taskColumns = `id, user_id, created_at, updated_at, is_deleted, version,
	date, title, description, start_time, end_time, location, travel_time_ms,
	reminder_at, reminder_acked_at, is_completed`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var meta domain.Meta
	var date time.Time
	var title string
	var description, location *string
	var start, end, reminderAt, reminderAcked *time.Time
	var travelMs *int64
	var completed bool

	err := row.Scan(&meta.ID, &meta.UserID, &meta.CreatedAt, &meta.UpdatedAt,
		&meta.IsDeleted, &meta.Version, &date, &title, &description,
		&start, &end, &location, &travelMs, &reminderAt, &reminderAcked, &completed)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var travel *time.Duration
	if travelMs != nil {
		d := time.Duration(*travelMs) * time.Millisecond
		travel = &d
	}
	return domain.RehydrateTask(meta, date, title, description, start, end, location, travel, reminderAt, reminderAcked, completed), nil
}

func travelMillis(t *domain.Task) *int64 {
	if t.TravelTime == nil {
		return nil
	}
	ms := t.TravelTime.Milliseconds()
	return &ms
}

func (r taskRepo) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error) {
	return scanTask(r.q.QueryRow(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r taskRepo) Insert(ctx context.Context, t *domain.Task) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO tasks (`+taskColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)`,
		t.ID, t.UserID, t.CreatedAt, t.UpdatedAt, t.IsDeleted, t.Version,
		t.Date, t.Title, t.Description, t.StartTime, t.EndTime, t.Location,
		travelMillis(t), t.ReminderAt, t.ReminderAcknowledged, t.IsCompleted)
	return err
}

func (r taskRepo) Update(ctx context.Context, t *domain.Task) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE tasks SET
			updated_at = $3, is_deleted = $4, version = $5, date = $6,
			title = $7, description = $8, start_time = $9, end_time = $10,
			location = $11, travel_time_ms = $12, reminder_at = $13,
			reminder_acked_at = $14, is_completed = $15
		WHERE id = $1 AND user_id = $2`,
		t.ID, t.UserID, t.UpdatedAt, t.IsDeleted, t.Version, t.Date,
		t.Title, t.Description, t.StartTime, t.EndTime, t.Location,
		travelMillis(t), t.ReminderAt, t.ReminderAcknowledged, t.IsCompleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r taskRepo) list(ctx context.Context, sql string, args ...any) ([]*domain.Task, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r taskRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = $1 AND NOT is_deleted
		ORDER BY updated_at, id`, userID)
}

func (r taskRepo) ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Task, error) {
	return r.list(ctx, `
		SELECT `+taskColumns+` FROM tasks
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at, id`, userID, since)
}
