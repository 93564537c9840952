package syncservice

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/caine128/NotesApp-sub000/internal/domain"
	"github.com/caine128/NotesApp-sub000/internal/store"
)

// URLSigner mints time-limited download URLs for pulled assets.
type URLSigner interface {
	SignDownload(assetID uuid.UUID, blobPath, contentType, fileName string) (string, error)
}

// PullService computes server→client deltas. It is read-only: no entity
// writes, no outbox rows.
type PullService struct {
	Store store.Store
	// Signer may be nil; pulled assets then carry no download URL.
	Signer          URLSigner
	MaxItemsDefault int
	Now             func() time.Time
}

func NewPullService(st store.Store, signer URLSigner, maxItemsDefault int) *PullService {
	return &PullService{Store: st, Signer: signer, MaxItemsDefault: maxItemsDefault, Now: time.Now}
}

// PullQuery is the client's cursor state.
type PullQuery struct {
	DeviceID          *uuid.UUID
	Since             *time.Time
	MaxItemsPerEntity *int
}

// Pull returns the delta since the cursor. With a nil Since (initial sync)
// every live entity lands in Created; incrementally, entities changed
// after Since are categorized into Created, Updated, or Deleted. Each
// bucket is ordered by UpdatedAt ascending, which puts parents before
// their blocks in the common case.
func (s *PullService) Pull(ctx context.Context, userID uuid.UUID, q PullQuery) (*PullResult, error) {
	serverTS := s.Now().UTC()

	limit := s.MaxItemsDefault
	if q.MaxItemsPerEntity != nil && *q.MaxItemsPerEntity > 0 {
		limit = *q.MaxItemsPerEntity
	}

	res := &PullResult{ServerTimestampUTC: serverTS}

	tasks, err := listDelta(ctx, userID, q.Since, s.Store.Tasks().ListActive, s.Store.Tasks().ListChangedSince)
	if err != nil {
		return nil, err
	}
	td, hasMore := categorize(tasks, q.Since, limit, SnapshotTask, taskMeta)
	res.Tasks = TaskDelta{Created: td.Created, Updated: td.Updated, Deleted: td.Deleted}
	res.HasMoreTasks = hasMore

	notes, err := listDelta(ctx, userID, q.Since, s.Store.Notes().ListActive, s.Store.Notes().ListChangedSince)
	if err != nil {
		return nil, err
	}
	nd, hasMore := categorize(notes, q.Since, limit, SnapshotNote, noteMeta)
	res.Notes = NoteDelta{Created: nd.Created, Updated: nd.Updated, Deleted: nd.Deleted}
	res.HasMoreNotes = hasMore

	blocks, err := listDelta(ctx, userID, q.Since, s.Store.Blocks().ListActive, s.Store.Blocks().ListChangedSince)
	if err != nil {
		return nil, err
	}
	bd, hasMore := categorize(blocks, q.Since, limit, SnapshotBlock, blockMeta)
	res.Blocks = BlockDelta{Created: bd.Created, Updated: bd.Updated, Deleted: bd.Deleted}
	res.HasMoreBlocks = hasMore

	assets, err := listDelta(ctx, userID, q.Since, s.Store.Assets().ListActive, s.Store.Assets().ListChangedSince)
	if err != nil {
		return nil, err
	}
	res.Assets = s.assetDelta(ctx, assets)

	return res, nil
}

func listDelta[E any](
	ctx context.Context,
	userID uuid.UUID,
	since *time.Time,
	listActive func(ctx context.Context, userID uuid.UUID) ([]E, error),
	listChanged func(ctx context.Context, userID uuid.UUID, since time.Time) ([]E, error),
) ([]E, error) {
	if since == nil {
		return listActive(ctx, userID)
	}
	return listChanged(ctx, userID, *since)
}

func taskMeta(t *domain.Task) domain.Meta   { return t.Meta }
func noteMeta(n *domain.Note) domain.Meta   { return n.Meta }
func blockMeta(b *domain.Block) domain.Meta { return b.Meta }

// delta is the categorized shape shared by the three entity types.
type delta[S any] struct {
	Created []S
	Updated []S
	Deleted []Tombstone
}

// categorize buckets entities and applies the per-type limit to the sum
// of all three buckets, consuming the budget Created first, then Updated,
// then Deleted. The second return is true iff the pre-truncation total
// exceeds the limit.
func categorize[E any, S any](
	entities []E,
	since *time.Time,
	limit int,
	snapshot func(E) S,
	meta func(E) domain.Meta,
) (delta[S], bool) {
	var d delta[S]
	for _, e := range entities {
		m := meta(e)
		switch {
		case m.IsDeleted:
			d.Deleted = append(d.Deleted, Tombstone{ID: m.ID, DeletedAt: m.UpdatedAt})
		case since == nil || m.CreatedAt.After(*since):
			d.Created = append(d.Created, snapshot(e))
		default:
			d.Updated = append(d.Updated, snapshot(e))
		}
	}

	total := len(d.Created) + len(d.Updated) + len(d.Deleted)
	hasMore := total > limit

	budget := limit
	if len(d.Created) > budget {
		d.Created = d.Created[:budget]
	}
	budget -= len(d.Created)
	if len(d.Updated) > budget {
		d.Updated = d.Updated[:budget]
	}
	budget -= len(d.Updated)
	if len(d.Deleted) > budget {
		d.Deleted = d.Deleted[:budget]
	}

	return d, hasMore
}

// assetDelta builds the asset portion. Assets are uncapped; each live one
// gets a signed download URL, or none when signing fails (the client
// re-requests URLs separately).
func (s *PullService) assetDelta(ctx context.Context, assets []*domain.Asset) AssetDelta {
	var d AssetDelta
	for _, a := range assets {
		if a.IsDeleted {
			d.Deleted = append(d.Deleted, Tombstone{ID: a.ID, DeletedAt: a.UpdatedAt})
			continue
		}
		snap := SnapshotAsset(a)
		if s.Signer != nil {
			url, err := s.Signer.SignDownload(a.ID, a.BlobPath, a.ContentType, a.FileName)
			if err != nil {
				log.Ctx(ctx).Warn().Err(err).Str("asset_id", a.ID.String()).Msg("download URL signing failed")
			} else {
				snap.DownloadURL = &url
			}
		}
		d.Created = append(d.Created, snap)
	}
	return d
}
