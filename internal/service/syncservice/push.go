package syncservice

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/caine128/NotesApp-sub000/internal/apperr"
	"github.com/caine128/NotesApp-sub000/internal/domain"
	"github.com/caine128/NotesApp-sub000/internal/store"
)

// PushService applies client→server batches. Each push commits as one
// transaction; per-item logical failures produce result entries and never
// abort the batch. Only the device gate and infrastructure failures fail
// the whole request.
type PushService struct {
	Store store.Store
	Now   func() time.Time
}

func NewPushService(st store.Store) *PushService {
	return &PushService{Store: st, Now: time.Now}
}

// Push validates the device, applies every item in the fixed order
// Task.C/U/D, Note.C/U/D, Block.C/U/D, and commits. The order is a
// contract: block creates resolve ParentClientId against the IDs assigned
// to notes earlier in the same batch.
func (s *PushService) Push(ctx context.Context, userID uuid.UUID, req *PushRequest) (*PushResult, error) {
	res := &PushResult{ServerTimestampUTC: s.Now().UTC()}

	err := s.Store.RunInTx(ctx, func(tx store.Tx) error {
		dev, err := tx.Devices().Get(ctx, userID, req.DeviceID)
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.CodeDeviceNotFound, "device is not a valid sync principal")
		}
		if err != nil {
			return err
		}
		if !dev.CanSync() {
			return apperr.New(apperr.CodeDeviceNotFound, "device is not a valid sync principal")
		}

		run := &pushRun{
			tx:       tx,
			userID:   userID,
			deviceID: req.DeviceID,
			now:      s.Now().UTC(),
			idMap:    make(map[uuid.UUID]uuid.UUID),
		}

		for _, item := range req.Tasks.Created {
			r, err := run.createTask(ctx, item)
			if err != nil {
				return err
			}
			res.Tasks.Created = append(res.Tasks.Created, r)
		}
		for _, item := range req.Tasks.Updated {
			r, err := run.updateTask(ctx, item)
			if err != nil {
				return err
			}
			res.Tasks.Updated = append(res.Tasks.Updated, r)
		}
		for _, item := range req.Tasks.Deleted {
			r, err := deleteItem(ctx, run, item, tx.Tasks().Get,
				func(t *domain.Task) error { return t.SoftDelete(run.now) },
				func(t *domain.Task) (*domain.OutboxMessage, error) {
					return TaskEvent(t, EventDeleted, run.origin(), run.now)
				},
				tx.Tasks().Update)
			if err != nil {
				return err
			}
			res.Tasks.Deleted = append(res.Tasks.Deleted, r)
		}

		for _, item := range req.Notes.Created {
			r, err := run.createNote(ctx, item)
			if err != nil {
				return err
			}
			res.Notes.Created = append(res.Notes.Created, r)
		}
		for _, item := range req.Notes.Updated {
			r, err := run.updateNote(ctx, item)
			if err != nil {
				return err
			}
			res.Notes.Updated = append(res.Notes.Updated, r)
		}
		for _, item := range req.Notes.Deleted {
			r, err := deleteItem(ctx, run, item, tx.Notes().Get,
				func(n *domain.Note) error { return n.SoftDelete(run.now) },
				func(n *domain.Note) (*domain.OutboxMessage, error) {
					return NoteEvent(n, EventDeleted, run.origin(), run.now)
				},
				tx.Notes().Update)
			if err != nil {
				return err
			}
			res.Notes.Deleted = append(res.Notes.Deleted, r)
		}

		for _, item := range req.Blocks.Created {
			r, err := run.createBlock(ctx, item)
			if err != nil {
				return err
			}
			res.Blocks.Created = append(res.Blocks.Created, r)
		}
		for _, item := range req.Blocks.Updated {
			r, err := run.updateBlock(ctx, item)
			if err != nil {
				return err
			}
			res.Blocks.Updated = append(res.Blocks.Updated, r)
		}
		for _, item := range req.Blocks.Deleted {
			r, err := deleteItem(ctx, run, item, tx.Blocks().Get,
				func(b *domain.Block) error { return b.SoftDelete(run.now) },
				func(b *domain.Block) (*domain.OutboxMessage, error) {
					return BlockEvent(b, EventDeleted, run.origin(), run.now)
				},
				tx.Blocks().Update)
			if err != nil {
				return err
			}
			res.Blocks.Deleted = append(res.Blocks.Deleted, r)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// pushRun carries the per-push state: the transaction, the caller, the
// shared timestamp, and the intra-batch ClientID→ServerID map.
type pushRun struct {
	tx       store.Tx
	userID   uuid.UUID
	deviceID uuid.UUID
	now      time.Time
	idMap    map[uuid.UUID]uuid.UUID
}

func (r *pushRun) origin() *uuid.UUID {
	d := r.deviceID
	return &d
}

// appendEvent appends an outbox row for an accepted create or update.
// Failures here are logged and do not fail the item: the mutation is
// already staged and the event loss is advisory.
func (r *pushRun) appendEvent(ctx context.Context, msg *domain.OutboxMessage, err error) {
	if err == nil {
		err = r.tx.Outbox().Append(ctx, msg)
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("user_id", r.userID.String()).
			Msg("outbox append failed for accepted mutation")
	}
}

func validationConflict(err error) (*Conflict, []string) {
	violations, ok := domain.IsValidation(err)
	if !ok {
		violations = []string{err.Error()}
	}
	return &Conflict{Type: ConflictValidationFailed}, violations
}

func versionConflict(clientV, serverV int) *Conflict {
	return &Conflict{Type: ConflictVersionMismatch, ClientVersion: &clientV, ServerVersion: &serverV}
}

func (r *pushRun) createTask(ctx context.Context, item TaskCreate) (CreateResult, error) {
	t, err := domain.NewTask(r.userID, item.Date, item.Title, item.Description,
		item.StartTime, item.EndTime, item.Location, item.Travel(), r.now)
	if err != nil {
		conflict, violations := validationConflict(err)
		return CreateResult{ClientID: item.ClientID, Status: StatusFailed, Conflict: conflict, Errors: violations}, nil
	}
	if item.IsCompleted {
		t.IsCompleted = true
	}
	if item.ReminderAt != nil {
		t.ReminderAt = item.ReminderAt
	}
	if err := r.tx.Tasks().Insert(ctx, t); err != nil {
		return CreateResult{}, err
	}
	msg, err := TaskEvent(t, EventCreated, r.origin(), r.now)
	r.appendEvent(ctx, msg, err)
	r.idMap[item.ClientID] = t.ID
	serverID, version := t.ID, t.Version
	return CreateResult{ClientID: item.ClientID, ServerID: &serverID, Version: &version, Status: StatusCreated}, nil
}

func (r *pushRun) updateTask(ctx context.Context, item TaskUpdate) (UpdateResult, error) {
	t, err := r.tx.Tasks().Get(ctx, r.userID, item.ID)
	if errors.Is(err, store.ErrNotFound) {
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: &Conflict{Type: ConflictNotFound}}, nil
	}
	if err != nil {
		return UpdateResult{}, err
	}
	if t.IsDeleted {
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: &Conflict{Type: ConflictDeletedOnServer}}, nil
	}
	if t.Version != item.ExpectedVersion {
		c := versionConflict(item.ExpectedVersion, t.Version)
		c.ServerTask = SnapshotTask(t)
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: c}, nil
	}
	if err := t.Update(item.Title, item.Date, item.Description, item.StartTime, item.EndTime,
		item.Location, item.Travel(), item.ReminderAt, item.IsCompleted, r.now); err != nil {
		conflict, violations := validationConflict(err)
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: conflict, Errors: violations}, nil
	}
	if err := r.tx.Tasks().Update(ctx, t); err != nil {
		return UpdateResult{}, err
	}
	msg, err := TaskEvent(t, EventUpdated, r.origin(), r.now)
	r.appendEvent(ctx, msg, err)
	version := t.Version
	return UpdateResult{ID: item.ID, Version: &version, Status: StatusUpdated}, nil
}

func (r *pushRun) createNote(ctx context.Context, item NoteCreate) (CreateResult, error) {
	n, err := domain.NewNote(r.userID, item.Date, item.Title, item.Summary, item.Tags, r.now)
	if err != nil {
		conflict, violations := validationConflict(err)
		return CreateResult{ClientID: item.ClientID, Status: StatusFailed, Conflict: conflict, Errors: violations}, nil
	}
	if err := r.tx.Notes().Insert(ctx, n); err != nil {
		return CreateResult{}, err
	}
	msg, err := NoteEvent(n, EventCreated, r.origin(), r.now)
	r.appendEvent(ctx, msg, err)
	r.idMap[item.ClientID] = n.ID
	serverID, version := n.ID, n.Version
	return CreateResult{ClientID: item.ClientID, ServerID: &serverID, Version: &version, Status: StatusCreated}, nil
}

func (r *pushRun) updateNote(ctx context.Context, item NoteUpdate) (UpdateResult, error) {
	n, err := r.tx.Notes().Get(ctx, r.userID, item.ID)
	if errors.Is(err, store.ErrNotFound) {
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: &Conflict{Type: ConflictNotFound}}, nil
	}
	if err != nil {
		return UpdateResult{}, err
	}
	if n.IsDeleted {
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: &Conflict{Type: ConflictDeletedOnServer}}, nil
	}
	if n.Version != item.ExpectedVersion {
		c := versionConflict(item.ExpectedVersion, n.Version)
		c.ServerNote = SnapshotNote(n)
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: c}, nil
	}
	if err := n.Update(item.Title, item.Summary, item.Tags, item.Date, r.now); err != nil {
		conflict, violations := validationConflict(err)
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: conflict, Errors: violations}, nil
	}
	if err := r.tx.Notes().Update(ctx, n); err != nil {
		return UpdateResult{}, err
	}
	msg, err := NoteEvent(n, EventUpdated, r.origin(), r.now)
	r.appendEvent(ctx, msg, err)
	version := n.Version
	return UpdateResult{ID: item.ID, Version: &version, Status: StatusUpdated}, nil
}

// resolveParent maps a block create to its parent note ID: ParentId when
// set, else ParentClientId through the intra-batch map.
func (r *pushRun) resolveParent(item BlockCreate) (uuid.UUID, bool) {
	if item.ParentID != nil && *item.ParentID != uuid.Nil {
		return *item.ParentID, true
	}
	if item.ParentClientID != nil && *item.ParentClientID != uuid.Nil {
		if serverID, ok := r.idMap[*item.ParentClientID]; ok {
			return serverID, true
		}
	}
	return uuid.Nil, false
}

func (r *pushRun) createBlock(ctx context.Context, item BlockCreate) (CreateResult, error) {
	parentType := domain.BlockParentType(item.ParentType)
	if parentType != domain.ParentNote {
		return CreateResult{
			ClientID: item.ClientID,
			Status:   StatusFailed,
			Conflict: &Conflict{Type: ConflictValidationFailed},
			Errors:   []string{"unsupported parent type"},
		}, nil
	}

	parentID, ok := r.resolveParent(item)
	if ok {
		parent, err := r.tx.Notes().Get(ctx, r.userID, parentID)
		if errors.Is(err, store.ErrNotFound) {
			ok = false
		} else if err != nil {
			return CreateResult{}, err
		} else if parent.IsDeleted {
			ok = false
		}
	}
	if !ok {
		return CreateResult{ClientID: item.ClientID, Status: StatusFailed, Conflict: &Conflict{Type: ConflictParentNotFound}}, nil
	}

	blockType := domain.BlockType(item.Type)
	var b *domain.Block
	var err error
	if blockType.IsAsset() {
		var assetClientID uuid.UUID
		if item.AssetClientID != nil {
			assetClientID = *item.AssetClientID
		}
		b, err = domain.NewAssetBlock(r.userID, parentID, parentType, blockType, item.Position,
			assetClientID, item.AssetFileName, item.AssetContentType, item.AssetSizeBytes, r.now)
	} else {
		b, err = domain.NewTextBlock(r.userID, parentID, parentType, blockType, item.Position, item.TextContent, r.now)
	}
	if err != nil {
		conflict, violations := validationConflict(err)
		return CreateResult{ClientID: item.ClientID, Status: StatusFailed, Conflict: conflict, Errors: violations}, nil
	}
	if err := r.tx.Blocks().Insert(ctx, b); err != nil {
		return CreateResult{}, err
	}
	msg, err := BlockEvent(b, EventCreated, r.origin(), r.now)
	r.appendEvent(ctx, msg, err)
	serverID, version := b.ID, b.Version
	return CreateResult{ClientID: item.ClientID, ServerID: &serverID, Version: &version, Status: StatusCreated}, nil
}

func (r *pushRun) updateBlock(ctx context.Context, item BlockUpdate) (UpdateResult, error) {
	b, err := r.tx.Blocks().Get(ctx, r.userID, item.ID)
	if errors.Is(err, store.ErrNotFound) {
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: &Conflict{Type: ConflictNotFound}}, nil
	}
	if err != nil {
		return UpdateResult{}, err
	}
	if b.IsDeleted {
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: &Conflict{Type: ConflictDeletedOnServer}}, nil
	}
	if b.Version != item.ExpectedVersion {
		c := versionConflict(item.ExpectedVersion, b.Version)
		c.ServerBlock = SnapshotBlock(b)
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: c}, nil
	}
	if err := b.Update(item.Position, item.TextContent, r.now); err != nil {
		conflict, violations := validationConflict(err)
		return UpdateResult{ID: item.ID, Status: StatusFailed, Conflict: conflict, Errors: violations}, nil
	}
	if err := r.tx.Blocks().Update(ctx, b); err != nil {
		return UpdateResult{}, err
	}
	msg, err := BlockEvent(b, EventUpdated, r.origin(), r.now)
	r.appendEvent(ctx, msg, err)
	version := b.Version
	return UpdateResult{ID: item.ID, Version: &version, Status: StatusUpdated}, nil
}

// deletable is the slice of entity state the generic delete path needs.
type deletable interface {
	*domain.Task | *domain.Note | *domain.Block
}

// deleteItem is the shared delete-wins path. Deletes are idempotent and
// unconditional once ownership is confirmed: no expected version. The
// outbox row is appended before the entity write; if the event cannot be
// produced, the delete is not applied and the item fails with
// OutboxFailed, keeping mutation and event atomic for deletes.
func deleteItem[E deletable](
	ctx context.Context,
	r *pushRun,
	item DeleteChange,
	get func(ctx context.Context, userID, id uuid.UUID) (E, error),
	softDelete func(E) error,
	event func(E) (*domain.OutboxMessage, error),
	update func(ctx context.Context, e E) error,
) (DeleteResult, error) {
	e, err := get(ctx, r.userID, item.ID)
	if errors.Is(err, store.ErrNotFound) {
		return DeleteResult{ID: item.ID, Status: StatusNotFound}, nil
	}
	if err != nil {
		return DeleteResult{}, err
	}
	if err := softDelete(e); err != nil {
		if errors.Is(err, domain.ErrDeleted) {
			return DeleteResult{ID: item.ID, Status: StatusAlreadyDeleted}, nil
		}
		return DeleteResult{}, err
	}
	msg, err := event(e)
	if err == nil {
		err = r.tx.Outbox().Append(ctx, msg)
	}
	if err != nil {
		log.Ctx(ctx).Error().Err(err).
			Str("user_id", r.userID.String()).
			Str("id", item.ID.String()).
			Msg("outbox append failed for delete")
		return DeleteResult{ID: item.ID, Status: StatusFailed, Conflict: &Conflict{Type: ConflictOutboxFailed}}, nil
	}
	if err := update(ctx, e); err != nil {
		return DeleteResult{}, err
	}
	return DeleteResult{ID: item.ID, Status: StatusDeleted}, nil
}
