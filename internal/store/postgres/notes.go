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

type noteRepo struct {
	q querier
}

const noteColumns = `id, user_id, created_at, updated_at, is_deleted, version,
	date, title, summary, tags`

func scanNote(row pgx.Row) (*domain.Note, error) {
	var meta domain.Meta
	var date time.Time
	var title string
	var summary *string
	var tags []string

	err := row.Scan(&meta.ID, &meta.UserID, &meta.CreatedAt, &meta.UpdatedAt,
		&meta.IsDeleted, &meta.Version, &date, &title, &summary, &tags)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return domain.RehydrateNote(meta, date, title, summary, tags), nil
}

func (r noteRepo) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Note, error) {
	return scanNote(r.q.QueryRow(ctx,
		`SELECT `+noteColumns+` FROM notes WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r noteRepo) Insert(ctx context.Context, n *domain.Note) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO notes (`+noteColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		n.ID, n.UserID, n.CreatedAt, n.UpdatedAt, n.IsDeleted, n.Version,
		n.Date, n.Title, n.Summary, n.Tags)
	return err
}

func (r noteRepo) Update(ctx context.Context, n *domain.Note) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE notes SET
			updated_at = $3, is_deleted = $4, version = $5, date = $6,
			title = $7, summary = $8, tags = $9
		WHERE id = $1 AND user_id = $2`,
		n.ID, n.UserID, n.UpdatedAt, n.IsDeleted, n.Version, n.Date,
		n.Title, n.Summary, n.Tags)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r noteRepo) list(ctx context.Context, sql string, args ...any) ([]*domain.Note, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Note
	for rows.Next() {
		n, err := scanNote(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (r noteRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Note, error) {
	return r.list(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE user_id = $1 AND NOT is_deleted
		ORDER BY updated_at, id`, userID)
}

func (r noteRepo) ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Note, error) {
	return r.list(ctx, `
		SELECT `+noteColumns+` FROM notes
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at, id`, userID, since)
}
