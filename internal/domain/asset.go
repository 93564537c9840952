package domain

import (
	"time"

	"github.com/google/uuid"
)

// Asset is the immutable descriptor of a stored binary, 1:1 with its block.
// Assets carry no Version: they are only ever created or soft-deleted.
type Asset struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	BlockID     uuid.UUID
	FileName    string
	ContentType string
	SizeBytes   int64
	BlobPath    string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	IsDeleted   bool
}

// NewAsset creates the descriptor after the blob has been stored.
func NewAsset(userID, blockID uuid.UUID, fileName, contentType string, sizeBytes int64, blobPath string, now time.Time) (*Asset, error) {
	var violations []string
	if blockID == uuid.Nil {
		violations = append(violations, "block id must not be empty")
	}
	if fileName == "" {
		violations = append(violations, "file name must not be empty")
	}
	if sizeBytes <= 0 {
		violations = append(violations, "size must be positive")
	}
	if blobPath == "" {
		violations = append(violations, "blob path must not be empty")
	}
	if len(violations) > 0 {
		return nil, validationErr(violations...)
	}
	now = now.UTC()
	return &Asset{
		ID:          uuid.New(),
		UserID:      userID,
		BlockID:     blockID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		BlobPath:    blobPath,
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// SoftDelete tombstones the asset. The blob itself is reclaimed by a
// background reaper, not here.
func (a *Asset) SoftDelete(now time.Time) error {
	if a.IsDeleted {
		return ErrDeleted
	}
	a.IsDeleted = true
	a.UpdatedAt = now.UTC()
	return nil
}

// RehydrateAsset rebuilds an asset from persisted state.
func RehydrateAsset(id, userID, blockID uuid.UUID, fileName, contentType string, sizeBytes int64, blobPath string, createdAt, updatedAt time.Time, isDeleted bool) *Asset {
	return &Asset{
		ID:          id,
		UserID:      userID,
		BlockID:     blockID,
		FileName:    fileName,
		ContentType: contentType,
		SizeBytes:   sizeBytes,
		BlobPath:    blobPath,
		CreatedAt:   createdAt,
		UpdatedAt:   updatedAt,
		IsDeleted:   isDeleted,
	}
}
