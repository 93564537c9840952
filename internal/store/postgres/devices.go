package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/caine128/NotesApp-sub000/internal/domain"
	"github.com/caine128/NotesApp-sub000/internal/store"
)

type deviceRepo struct {
	q querier
}

const deviceColumns = `id, user_id, created_at, updated_at, is_deleted, version,
	device_token, platform, display_name, is_active`

func scanDevice(row pgx.Row) (*domain.UserDevice, error) {
	var meta domain.Meta
	var token, platform, displayName string
	var isActive bool

	err := row.Scan(&meta.ID, &meta.UserID, &meta.CreatedAt, &meta.UpdatedAt,
		&meta.IsDeleted, &meta.Version, &token, &platform, &displayName, &isActive)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return domain.RehydrateUserDevice(meta, token, platform, displayName, isActive), nil
}

func (r deviceRepo) Get(ctx context.Context, userID, id uuid.UUID) (*domain.UserDevice, error) {
	return scanDevice(r.q.QueryRow(ctx,
		`SELECT `+deviceColumns+` FROM user_devices WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r deviceRepo) Insert(ctx context.Context, d *domain.UserDevice) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO user_devices (`+deviceColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		d.ID, d.UserID, d.CreatedAt, d.UpdatedAt, d.IsDeleted, d.Version,
		d.DeviceToken, d.Platform, d.DisplayName, d.IsActive)
	return err
}

func (r deviceRepo) Update(ctx context.Context, d *domain.UserDevice) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE user_devices SET
			updated_at = $3, is_deleted = $4, version = $5,
			device_token = $6, platform = $7, display_name = $8, is_active = $9
		WHERE id = $1 AND user_id = $2`,
		d.ID, d.UserID, d.UpdatedAt, d.IsDeleted, d.Version,
		d.DeviceToken, d.Platform, d.DisplayName, d.IsActive)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
