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

type assetRepo struct {
	q querier
}

const assetColumns = `id, user_id, block_id, file_name, content_type,
	size_bytes, blob_path, created_at, updated_at, is_deleted`

func scanAsset(row pgx.Row) (*domain.Asset, error) {
	var id, userID, blockID uuid.UUID
	var fileName, contentType, blobPath string
	var sizeBytes int64
	var createdAt, updatedAt time.Time
	var isDeleted bool

	err := row.Scan(&id, &userID, &blockID, &fileName, &contentType,
		&sizeBytes, &blobPath, &createdAt, &updatedAt, &isDeleted)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return domain.RehydrateAsset(id, userID, blockID, fileName, contentType,
		sizeBytes, blobPath, createdAt, updatedAt, isDeleted), nil
}

func (r assetRepo) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Asset, error) {
	return scanAsset(r.q.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r assetRepo) GetByBlock(ctx context.Context, userID, blockID uuid.UUID) (*domain.Asset, error) {
	return scanAsset(r.q.QueryRow(ctx,
		`SELECT `+assetColumns+` FROM assets WHERE block_id = $1 AND user_id = $2`, blockID, userID))
}

func (r assetRepo) Insert(ctx context.Context, a *domain.Asset) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO assets (`+assetColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		a.ID, a.UserID, a.BlockID, a.FileName, a.ContentType,
		a.SizeBytes, a.BlobPath, a.CreatedAt, a.UpdatedAt, a.IsDeleted)
	return err
}

func (r assetRepo) Update(ctx context.Context, a *domain.Asset) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE assets SET updated_at = $3, is_deleted = $4
		WHERE id = $1 AND user_id = $2`,
		a.ID, a.UserID, a.UpdatedAt, a.IsDeleted)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r assetRepo) list(ctx context.Context, sql string, args ...any) ([]*domain.Asset, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Asset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r assetRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Asset, error) {
	return r.list(ctx, `
		SELECT `+assetColumns+` FROM assets
		WHERE user_id = $1 AND NOT is_deleted
		ORDER BY updated_at, id`, userID)
}

func (r assetRepo) ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Asset, error) {
	return r.list(ctx, `
		SELECT `+assetColumns+` FROM assets
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at, id`, userID, since)
}
