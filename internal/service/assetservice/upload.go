// Package assetservice orchestrates binary uploads: a multi-phase workflow
// crossing the blob store and the relational store, with the blob PUT as
// the point of no return.
package assetservice

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/caine128/NotesApp-sub000/internal/apperr"
	"github.com/caine128/NotesApp-sub000/internal/blob"
	"github.com/caine128/NotesApp-sub000/internal/domain"
	"github.com/caine128/NotesApp-sub000/internal/service/syncservice"
	"github.com/caine128/NotesApp-sub000/internal/store"
)

// UploadService runs the asset upload workflow against a pending asset
// block.
type UploadService struct {
	Store store.Store
	Blobs blob.Store
	// Signer may be nil; results then carry no download URL.
	Signer           syncservice.URLSigner
	Container        string
	MaxFileSizeBytes int64
	Now              func() time.Time
}

func NewUploadService(st store.Store, blobs blob.Store, signer syncservice.URLSigner, container string, maxSize int64) *UploadService {
	return &UploadService{
		Store:            st,
		Blobs:            blobs,
		Signer:           signer,
		Container:        container,
		MaxFileSizeBytes: maxSize,
		Now:              time.Now,
	}
}

// UploadRequest is one upload attempt against a pending asset block.
type UploadRequest struct {
	BlockID       uuid.UUID
	AssetClientID uuid.UUID
	FileName      string
	ContentType   string
	SizeBytes     int64
	Content       io.Reader
}

// UploadResult reports the committed asset. DownloadURL is nil when URL
// signing failed after the commit; the client re-fetches it later.
type UploadResult struct {
	AssetID     uuid.UUID `json:"assetId"`
	BlockID     uuid.UUID `json:"blockId"`
	DownloadURL *string   `json:"downloadUrl"`
}

// Upload runs the five-phase workflow:
//
//  1. input validation
//  2. block state validation (reads only), with an idempotent-retry
//     short-circuit when the asset already exists
//  3. blob PUT — the point of no return
//  4. entity assembly in memory; any failure here deletes the blob
//     best-effort and aborts
//  5. one transaction committing Asset + Block + both outbox rows, then
//     URL signing
//
// A blob failure in phase 3 transitions the block to Failed and persists
// that; the client retries with a fresh block.
func (s *UploadService) Upload(ctx context.Context, userID uuid.UUID, req UploadRequest) (*UploadResult, error) {
	logger := log.Ctx(ctx).With().
		Str("block_id", req.BlockID.String()).
		Str("user_id", userID.String()).
		Logger()

	// Phase 1: input validation.
	if req.Content == nil {
		return nil, apperr.New(apperr.CodeAssetSizeInvalid, "content stream is required")
	}
	if req.SizeBytes <= 0 {
		return nil, apperr.New(apperr.CodeAssetSizeInvalid, "size must be positive")
	}
	if req.SizeBytes > s.MaxFileSizeBytes {
		return nil, apperr.New(apperr.CodeAssetSizeTooLarge, "file exceeds the maximum allowed size")
	}

	// Phase 2: state validation, untracked reads.
	block, err := s.Store.Blocks().Get(ctx, userID, req.BlockID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.New(apperr.CodeBlockNotFound, "block not found")
	}
	if err != nil {
		return nil, err
	}
	if block.IsDeleted {
		return nil, apperr.New(apperr.CodeBlockNotFound, "block not found")
	}
	if !block.Type.IsAsset() {
		return nil, apperr.New(apperr.CodeBlockTypeInvalid, "block does not carry an asset")
	}
	if block.AssetClientID != req.AssetClientID {
		return nil, apperr.New(apperr.CodeAssetClientMismatch, "asset client id does not match the block")
	}

	// Idempotent retry: the previous attempt committed, so hand back the
	// existing asset instead of uploading again.
	existing, err := s.Store.Assets().GetByBlock(ctx, userID, req.BlockID)
	if err == nil {
		return &UploadResult{
			AssetID:     existing.ID,
			BlockID:     block.ID,
			DownloadURL: s.signURL(ctx, existing),
		}, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if block.UploadStatus != domain.UploadPending {
		return nil, apperr.New(apperr.CodeUploadInvalidStatus, "block upload status is not pending")
	}

	// Phase 3: blob PUT. Point of no return.
	path := blob.ObjectPath(s.Container, userID, block.ParentID, block.ID, req.FileName)
	if err := s.Blobs.Put(ctx, path, req.Content, req.SizeBytes, req.ContentType); err != nil {
		logger.Error().Err(err).Str("path", path).Msg("blob upload failed")
		s.markUploadFailed(ctx, userID, req.BlockID)
		return nil, apperr.New(apperr.CodeAssetUploadFailed, "storing the file failed")
	}

	// Phase 4: assemble everything in memory. From here on, any failure
	// must clean the blob up or leave it for the orphan reaper.
	now := s.Now().UTC()
	asset, err := domain.NewAsset(userID, block.ID, req.FileName, req.ContentType, req.SizeBytes, path, now)
	if err == nil {
		err = block.SetAssetUploaded(asset.ID, now)
	}
	var assetMsg, blockMsg *domain.OutboxMessage
	if err == nil {
		assetMsg, err = syncservice.AssetEvent(asset, syncservice.EventCreated, nil, now)
	}
	if err == nil {
		blockMsg, err = syncservice.BlockEvent(block, syncservice.EventUpdated, nil, now)
	}
	if err != nil {
		logger.Error().Err(err).Msg("asset assembly failed after blob upload")
		s.cleanupBlob(ctx, path)
		return nil, apperr.New(apperr.CodeAssetUploadFailed, "finalizing the upload failed")
	}

	// Phase 5: one commit for the asset, the block transition, and both
	// events.
	err = s.Store.RunInTx(ctx, func(tx store.Tx) error {
		if err := tx.Assets().Insert(ctx, asset); err != nil {
			return err
		}
		if err := tx.Blocks().Update(ctx, block); err != nil {
			return err
		}
		if err := tx.Outbox().Append(ctx, assetMsg); err != nil {
			return err
		}
		return tx.Outbox().Append(ctx, blockMsg)
	})
	if err != nil {
		logger.Error().Err(err).Msg("upload commit failed")
		s.cleanupBlob(ctx, path)
		return nil, apperr.New(apperr.CodeAssetUploadFailed, "committing the upload failed")
	}

	return &UploadResult{
		AssetID:     asset.ID,
		BlockID:     block.ID,
		DownloadURL: s.signURL(ctx, asset),
	}, nil
}

// markUploadFailed persists the Pending→Failed transition after a blob
// failure. The block's own failure is durable even though the upload is
// not.
func (s *UploadService) markUploadFailed(ctx context.Context, userID, blockID uuid.UUID) {
	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		b, err := tx.Blocks().Get(ctx, userID, blockID)
		if err != nil {
			return err
		}
		now := s.Now().UTC()
		if err := b.SetUploadFailed(now); err != nil {
			return err
		}
		if err := tx.Blocks().Update(ctx, b); err != nil {
			return err
		}
		msg, err := syncservice.BlockEvent(b, syncservice.EventUpdated, nil, now)
		if err != nil {
			return err
		}
		return tx.Outbox().Append(ctx, msg)
	})
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Str("block_id", blockID.String()).Msg("persisting failed upload status failed")
	}
}

// cleanupBlob best-effort deletes an orphaned blob with a short
// exponential backoff. If it still fails, the background reaper owns the
// orphan.
func (s *UploadService) cleanupBlob(ctx context.Context, path string) {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	err := backoff.Retry(func() error {
		err := s.Blobs.Delete(ctx, path)
		if errors.Is(err, blob.ErrNotFound) {
			return nil
		}
		return err
	}, policy)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("path", path).Msg("orphaned blob left for the reaper")
	}
}

func (s *UploadService) signURL(ctx context.Context, a *domain.Asset) *string {
	if s.Signer == nil {
		return nil
	}
	url, err := s.Signer.SignDownload(a.ID, a.BlobPath, a.ContentType, a.FileName)
	if err != nil {
		log.Ctx(ctx).Warn().Err(err).Str("asset_id", a.ID.String()).Msg("download URL signing failed")
		return nil
	}
	return &url
}
