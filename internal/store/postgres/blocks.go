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

type blockRepo struct {
	q querier
}

const blockColumns = `id, user_id, created_at, updated_at, is_deleted, version,
	parent_id, parent_type, block_type, position, text_content,
	asset_client_id, asset_file_name, asset_content_type, asset_size_bytes,
	asset_id, upload_status`

func scanBlock(row pgx.Row) (*domain.Block, error) {
	var meta domain.Meta
	var parentID uuid.UUID
	var parentType, blockType, position, textContent string
	var assetClientID uuid.UUID
	var assetFileName string
	var assetContentType *string
	var assetSizeBytes int64
	var assetID *uuid.UUID
	var uploadStatus *string

	err := row.Scan(&meta.ID, &meta.UserID, &meta.CreatedAt, &meta.UpdatedAt,
		&meta.IsDeleted, &meta.Version, &parentID, &parentType, &blockType,
		&position, &textContent, &assetClientID, &assetFileName,
		&assetContentType, &assetSizeBytes, &assetID, &uploadStatus)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	var status domain.UploadStatus
	if uploadStatus != nil {
		status = domain.UploadStatus(*uploadStatus)
	}
	return domain.RehydrateBlock(meta, parentID, domain.BlockParentType(parentType),
		domain.BlockType(blockType), position, textContent, assetClientID,
		assetFileName, assetContentType, assetSizeBytes, assetID, status), nil
}

func uploadStatusCol(b *domain.Block) *string {
	if b.UploadStatus == "" {
		return nil
	}
	s := string(b.UploadStatus)
	return &s
}

func (r blockRepo) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Block, error) {
	return scanBlock(r.q.QueryRow(ctx,
		`SELECT `+blockColumns+` FROM blocks WHERE id = $1 AND user_id = $2`, id, userID))
}

func (r blockRepo) Insert(ctx context.Context, b *domain.Block) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO blocks (`+blockColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
		b.ID, b.UserID, b.CreatedAt, b.UpdatedAt, b.IsDeleted, b.Version,
		b.ParentID, string(b.ParentType), string(b.Type), b.Position,
		b.TextContent, b.AssetClientID, b.AssetFileName, b.AssetContentType,
		b.AssetSizeBytes, b.AssetID, uploadStatusCol(b))
	return err
}

func (r blockRepo) Update(ctx context.Context, b *domain.Block) error {
	tag, err := r.q.Exec(ctx, `
		UPDATE blocks SET
			updated_at = $3, is_deleted = $4, version = $5, position = $6,
			text_content = $7, asset_id = $8, upload_status = $9
		WHERE id = $1 AND user_id = $2`,
		b.ID, b.UserID, b.UpdatedAt, b.IsDeleted, b.Version, b.Position,
		b.TextContent, b.AssetID, uploadStatusCol(b))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}

func (r blockRepo) list(ctx context.Context, sql string, args ...any) ([]*domain.Block, error) {
	rows, err := r.q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Block
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r blockRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Block, error) {
	return r.list(ctx, `
		SELECT `+blockColumns+` FROM blocks
		WHERE user_id = $1 AND NOT is_deleted
		ORDER BY updated_at, id`, userID)
}

func (r blockRepo) ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Block, error) {
	return r.list(ctx, `
		SELECT `+blockColumns+` FROM blocks
		WHERE user_id = $1 AND updated_at > $2
		ORDER BY updated_at, id`, userID, since)
}
