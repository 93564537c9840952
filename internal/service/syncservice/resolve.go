package syncservice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/caine128/NotesApp-sub000/internal/domain"
	"github.com/caine128/NotesApp-sub000/internal/store"
)

// ResolveService settles conflicts a prior push reported. It is a fallback
// path: the normal pull-merge-push loop handles most conflicts without it.
// All resolutions in one call commit as one transaction.
type ResolveService struct {
	Store store.Store
	Now   func() time.Time
}

func NewResolveService(st store.Store) *ResolveService {
	return &ResolveService{Store: st, Now: time.Now}
}

// Resolve applies the client-chosen resolutions. KeepServer touches
// nothing; KeepClient and Merge apply the carried data as an update with
// second-level concurrency on ExpectedVersion.
func (s *ResolveService) Resolve(ctx context.Context, userID uuid.UUID, items []ResolutionItem) ([]ResolutionResult, error) {
	results := make([]ResolutionResult, 0, len(items))

	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		now := s.Now().UTC()
		for _, item := range items {
			var r ResolutionResult
			var err error
			switch item.EntityType {
			case domain.AggregateTask:
				r, err = resolveTask(ctx, tx, userID, item, now)
			case domain.AggregateNote:
				r, err = resolveNote(ctx, tx, userID, item, now)
			case domain.AggregateBlock:
				r, err = resolveBlock(ctx, tx, userID, item, now)
			default:
				r = result(item, ResolutionInvalidEntityType)
			}
			if err != nil {
				return err
			}
			results = append(results, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

func result(item ResolutionItem, status ResolutionStatus, errs ...string) ResolutionResult {
	return ResolutionResult{EntityType: item.EntityType, EntityID: item.EntityID, Status: status, Errors: errs}
}

func updated(item ResolutionItem, version int) ResolutionResult {
	return ResolutionResult{EntityType: item.EntityType, EntityID: item.EntityID, Status: ResolutionUpdated, NewVersion: &version}
}

func keptServer(item ResolutionItem, version int) ResolutionResult {
	return ResolutionResult{EntityType: item.EntityType, EntityID: item.EntityID, Status: ResolutionKeptServer, NewVersion: &version}
}

// appendResolutionEvent follows the create/update outbox policy: a failed
// append is logged, never surfaced to the item.
func appendResolutionEvent(ctx context.Context, tx store.Tx, msg *domain.OutboxMessage, err error) {
	if err == nil {
		err = tx.Outbox().Append(ctx, msg)
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("outbox append failed for resolution")
	}
}

func resolveTask(ctx context.Context, tx store.Tx, userID uuid.UUID, item ResolutionItem, now time.Time) (ResolutionResult, error) {
	t, err := tx.Tasks().Get(ctx, userID, item.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		return result(item, ResolutionNotFound), nil
	}
	if err != nil {
		return ResolutionResult{}, err
	}
	if t.IsDeleted {
		return result(item, ResolutionDeletedOnServer), nil
	}
	if item.Choice == ChoiceKeepServer {
		return keptServer(item, t.Version), nil
	}
	if item.TaskData == nil {
		return result(item, ResolutionValidationFailed, "taskData is required"), nil
	}
	if t.Version != item.ExpectedVersion {
		return result(item, ResolutionConflict), nil
	}
	data := *item.TaskData
	if err := t.Update(data.Title, data.Date, data.Description, data.StartTime, data.EndTime,
		data.Location, data.Travel(), data.ReminderAt, data.IsCompleted, now); err != nil {
		violations, ok := domain.IsValidation(err)
		if !ok {
			return ResolutionResult{}, err
		}
		return result(item, ResolutionValidationFailed, violations...), nil
	}
	if err := tx.Tasks().Update(ctx, t); err != nil {
		return ResolutionResult{}, err
	}
	msg, err := TaskEvent(t, EventUpdated, nil, now)
	appendResolutionEvent(ctx, tx, msg, err)
	return updated(item, t.Version), nil
}

func resolveNote(ctx context.Context, tx store.Tx, userID uuid.UUID, item ResolutionItem, now time.Time) (ResolutionResult, error) {
	n, err := tx.Notes().Get(ctx, userID, item.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		return result(item, ResolutionNotFound), nil
	}
	if err != nil {
		return ResolutionResult{}, err
	}
	if n.IsDeleted {
		return result(item, ResolutionDeletedOnServer), nil
	}
	if item.Choice == ChoiceKeepServer {
		return keptServer(item, n.Version), nil
	}
	if item.NoteData == nil {
		return result(item, ResolutionValidationFailed, "noteData is required"), nil
	}
	if n.Version != item.ExpectedVersion {
		return result(item, ResolutionConflict), nil
	}
	data := *item.NoteData
	if err := n.Update(data.Title, data.Summary, data.Tags, data.Date, now); err != nil {
		violations, ok := domain.IsValidation(err)
		if !ok {
			return ResolutionResult{}, err
		}
		return result(item, ResolutionValidationFailed, violations...), nil
	}
	if err := tx.Notes().Update(ctx, n); err != nil {
		return ResolutionResult{}, err
	}
	msg, err := NoteEvent(n, EventUpdated, nil, now)
	appendResolutionEvent(ctx, tx, msg, err)
	return updated(item, n.Version), nil
}

func resolveBlock(ctx context.Context, tx store.Tx, userID uuid.UUID, item ResolutionItem, now time.Time) (ResolutionResult, error) {
	b, err := tx.Blocks().Get(ctx, userID, item.EntityID)
	if errors.Is(err, store.ErrNotFound) {
		return result(item, ResolutionNotFound), nil
	}
	if err != nil {
		return ResolutionResult{}, err
	}
	if b.IsDeleted {
		return result(item, ResolutionDeletedOnServer), nil
	}
	if item.Choice == ChoiceKeepServer {
		return keptServer(item, b.Version), nil
	}
	if item.BlockData == nil {
		return result(item, ResolutionValidationFailed, "blockData is required"), nil
	}
	if b.Version != item.ExpectedVersion {
		return result(item, ResolutionConflict), nil
	}

	// An orphaned block is meaningless: the parent must still be live
	// before the resolution is applied.
	parent, err := tx.Notes().Get(ctx, userID, b.ParentID)
	if errors.Is(err, store.ErrNotFound) {
		return result(item, ResolutionValidationFailed, "parent no longer exists"), nil
	}
	if err != nil {
		return ResolutionResult{}, err
	}
	if parent.IsDeleted {
		return result(item, ResolutionValidationFailed, "parent no longer exists"), nil
	}

	data := *item.BlockData
	if err := b.Update(data.Position, data.TextContent, now); err != nil {
		violations, ok := domain.IsValidation(err)
		if !ok {
			return ResolutionResult{}, err
		}
		return result(item, ResolutionValidationFailed, violations...), nil
	}
	if err := tx.Blocks().Update(ctx, b); err != nil {
		return ResolutionResult{}, err
	}
	msg, err := BlockEvent(b, EventUpdated, nil, now)
	appendResolutionEvent(ctx, tx, msg, err)
	return updated(item, b.Version), nil
}
