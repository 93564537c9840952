// Package memory is an in-memory store.Store used by engine and handler
// tests. Reads hand out copies, writes replace rows wholesale, and RunInTx
// stages mutations on a cloned dataset that is swapped in only on success,
// so rollback behaves like the real thing.
package memory

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/caine128/NotesApp-sub000/internal/domain"
	"github.com/caine128/NotesApp-sub000/internal/store"
)

type dataset struct {
	tasks   map[uuid.UUID]*domain.Task
	notes   map[uuid.UUID]*domain.Note
	blocks  map[uuid.UUID]*domain.Block
	assets  map[uuid.UUID]*domain.Asset
	devices map[uuid.UUID]*domain.UserDevice
	outbox  []*domain.OutboxMessage
}

func newDataset() *dataset {
	return &dataset{
		tasks:   map[uuid.UUID]*domain.Task{},
		notes:   map[uuid.UUID]*domain.Note{},
		blocks:  map[uuid.UUID]*domain.Block{},
		assets:  map[uuid.UUID]*domain.Asset{},
		devices: map[uuid.UUID]*domain.UserDevice{},
	}
}

func (d *dataset) clone() *dataset {
	c := newDataset()
	for id, t := range d.tasks {
		c.tasks[id] = cloneTask(t)
	}
	for id, n := range d.notes {
		c.notes[id] = cloneNote(n)
	}
	for id, b := range d.blocks {
		c.blocks[id] = cloneBlock(b)
	}
	for id, a := range d.assets {
		c.assets[id] = cloneAsset(a)
	}
	for id, dev := range d.devices {
		c.devices[id] = cloneDevice(dev)
	}
	c.outbox = make([]*domain.OutboxMessage, len(d.outbox))
	for i, m := range d.outbox {
		c.outbox[i] = cloneOutbox(m)
	}
	return c
}

// Store implements store.Store over process memory.
type Store struct {
	mu   sync.Mutex
	data *dataset
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{data: newDataset()}
}

// RunInTx clones the dataset, runs fn against the clone, and swaps it in
// iff fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	s.mu.Lock()
	staged := s.data.clone()
	s.mu.Unlock()

	if err := fn(&txView{d: staged}); err != nil {
		return err
	}

	s.mu.Lock()
	s.data = staged
	s.mu.Unlock()
	return nil
}

func (s *Store) Tasks() store.TaskRepo     { return taskRepo{repoBase{s: s}} }
func (s *Store) Notes() store.NoteRepo     { return noteRepo{repoBase{s: s}} }
func (s *Store) Blocks() store.BlockRepo   { return blockRepo{repoBase{s: s}} }
func (s *Store) Assets() store.AssetRepo   { return assetRepo{repoBase{s: s}} }
func (s *Store) Devices() store.DeviceRepo { return deviceRepo{repoBase{s: s}} }
func (s *Store) Outbox() store.OutboxRepo  { return outboxRepo{repoBase{s: s}} }

// Messages returns a copy of every outbox row, processed or not. Test
// helper; the dispatcher surface is OutboxRepo.
func (s *Store) Messages() []*domain.OutboxMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*domain.OutboxMessage, len(s.data.outbox))
	for i, m := range s.data.outbox {
		out[i] = cloneOutbox(m)
	}
	return out
}

// txView exposes repos bound to an unlocked staged dataset. A transaction
// runs on one goroutine, so no locking inside.
type txView struct {
	d *dataset
}

func (t *txView) Tasks() store.TaskRepo     { return taskRepo{repoBase{d: t.d}} }
func (t *txView) Notes() store.NoteRepo     { return noteRepo{repoBase{d: t.d}} }
func (t *txView) Blocks() store.BlockRepo   { return blockRepo{repoBase{d: t.d}} }
func (t *txView) Assets() store.AssetRepo   { return assetRepo{repoBase{d: t.d}} }
func (t *txView) Devices() store.DeviceRepo { return deviceRepo{repoBase{d: t.d}} }
func (t *txView) Outbox() store.OutboxRepo  { return outboxRepo{repoBase{d: t.d}} }

// repoBase resolves whether a repo reads the live store (locked) or a
// staged transaction dataset.
type repoBase struct {
	s *Store
	d *dataset
}

func (r repoBase) with(fn func(d *dataset)) {
	if r.s != nil {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		fn(r.s.data)
		return
	}
	fn(r.d)
}

func olderFirst(aUpd time.Time, aID uuid.UUID, bUpd time.Time, bID uuid.UUID) bool {
	if !aUpd.Equal(bUpd) {
		return aUpd.Before(bUpd)
	}
	return bytes.Compare(aID[:], bID[:]) < 0
}

type taskRepo struct{ repoBase }

func (r taskRepo) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error) {
	var out *domain.Task
	r.with(func(d *dataset) {
		if t, ok := d.tasks[id]; ok && t.UserID == userID {
			out = cloneTask(t)
		}
	})
	if out == nil {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (r taskRepo) Insert(ctx context.Context, t *domain.Task) error {
	r.with(func(d *dataset) { d.tasks[t.ID] = cloneTask(t) })
	return nil
}

func (r taskRepo) Update(ctx context.Context, t *domain.Task) error {
	var found bool
	r.with(func(d *dataset) {
		if _, ok := d.tasks[t.ID]; ok {
			d.tasks[t.ID] = cloneTask(t)
			found = true
		}
	})
	if !found {
		return store.ErrNotFound
	}
	return nil
}

func (r taskRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error) {
	var out []*domain.Task
	r.with(func(d *dataset) {
		for _, t := range d.tasks {
			if t.UserID == userID && !t.IsDeleted {
				out = append(out, cloneTask(t))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return olderFirst(out[i].UpdatedAt, out[i].ID, out[j].UpdatedAt, out[j].ID)
	})
	return out, nil
}

func (r taskRepo) ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Task, error) {
	var out []*domain.Task
	r.with(func(d *dataset) {
		for _, t := range d.tasks {
			if t.UserID == userID && t.UpdatedAt.After(since) {
				out = append(out, cloneTask(t))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return olderFirst(out[i].UpdatedAt, out[i].ID, out[j].UpdatedAt, out[j].ID)
	})
	return out, nil
}

type noteRepo struct{ repoBase }

func (r noteRepo) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Note, error) {
	var out *domain.Note
	r.with(func(d *dataset) {
		if n, ok := d.notes[id]; ok && n.UserID == userID {
			out = cloneNote(n)
		}
	})
	if out == nil {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (r noteRepo) Insert(ctx context.Context, n *domain.Note) error {
	r.with(func(d *dataset) { d.notes[n.ID] = cloneNote(n) })
	return nil
}

func (r noteRepo) Update(ctx context.Context, n *domain.Note) error {
	var found bool
	r.with(func(d *dataset) {
		if _, ok := d.notes[n.ID]; ok {
			d.notes[n.ID] = cloneNote(n)
			found = true
		}
	})
	if !found {
		return store.ErrNotFound
	}
	return nil
}

func (r noteRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Note, error) {
	var out []*domain.Note
	r.with(func(d *dataset) {
		for _, n := range d.notes {
			if n.UserID == userID && !n.IsDeleted {
				out = append(out, cloneNote(n))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return olderFirst(out[i].UpdatedAt, out[i].ID, out[j].UpdatedAt, out[j].ID)
	})
	return out, nil
}

func (r noteRepo) ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Note, error) {
	var out []*domain.Note
	r.with(func(d *dataset) {
		for _, n := range d.notes {
			if n.UserID == userID && n.UpdatedAt.After(since) {
				out = append(out, cloneNote(n))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return olderFirst(out[i].UpdatedAt, out[i].ID, out[j].UpdatedAt, out[j].ID)
	})
	return out, nil
}

type blockRepo struct{ repoBase }

func (r blockRepo) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Block, error) {
	var out *domain.Block
	r.with(func(d *dataset) {
		if b, ok := d.blocks[id]; ok && b.UserID == userID {
			out = cloneBlock(b)
		}
	})
	if out == nil {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (r blockRepo) Insert(ctx context.Context, b *domain.Block) error {
	r.with(func(d *dataset) { d.blocks[b.ID] = cloneBlock(b) })
	return nil
}

func (r blockRepo) Update(ctx context.Context, b *domain.Block) error {
	var found bool
	r.with(func(d *dataset) {
		if _, ok := d.blocks[b.ID]; ok {
			d.blocks[b.ID] = cloneBlock(b)
			found = true
		}
	})
	if !found {
		return store.ErrNotFound
	}
	return nil
}

func (r blockRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Block, error) {
	var out []*domain.Block
	r.with(func(d *dataset) {
		for _, b := range d.blocks {
			if b.UserID == userID && !b.IsDeleted {
				out = append(out, cloneBlock(b))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return olderFirst(out[i].UpdatedAt, out[i].ID, out[j].UpdatedAt, out[j].ID)
	})
	return out, nil
}

func (r blockRepo) ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Block, error) {
	var out []*domain.Block
	r.with(func(d *dataset) {
		for _, b := range d.blocks {
			if b.UserID == userID && b.UpdatedAt.After(since) {
				out = append(out, cloneBlock(b))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return olderFirst(out[i].UpdatedAt, out[i].ID, out[j].UpdatedAt, out[j].ID)
	})
	return out, nil
}

type assetRepo struct{ repoBase }

func (r assetRepo) Get(ctx context.Context, userID, id uuid.UUID) (*domain.Asset, error) {
	var out *domain.Asset
	r.with(func(d *dataset) {
		if a, ok := d.assets[id]; ok && a.UserID == userID {
			out = cloneAsset(a)
		}
	})
	if out == nil {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (r assetRepo) GetByBlock(ctx context.Context, userID, blockID uuid.UUID) (*domain.Asset, error) {
	var out *domain.Asset
	r.with(func(d *dataset) {
		for _, a := range d.assets {
			if a.UserID == userID && a.BlockID == blockID {
				out = cloneAsset(a)
				return
			}
		}
	})
	if out == nil {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (r assetRepo) Insert(ctx context.Context, a *domain.Asset) error {
	r.with(func(d *dataset) { d.assets[a.ID] = cloneAsset(a) })
	return nil
}

func (r assetRepo) Update(ctx context.Context, a *domain.Asset) error {
	var found bool
	r.with(func(d *dataset) {
		if _, ok := d.assets[a.ID]; ok {
			d.assets[a.ID] = cloneAsset(a)
			found = true
		}
	})
	if !found {
		return store.ErrNotFound
	}
	return nil
}

func (r assetRepo) ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Asset, error) {
	var out []*domain.Asset
	r.with(func(d *dataset) {
		for _, a := range d.assets {
			if a.UserID == userID && !a.IsDeleted {
				out = append(out, cloneAsset(a))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return olderFirst(out[i].UpdatedAt, out[i].ID, out[j].UpdatedAt, out[j].ID)
	})
	return out, nil
}

func (r assetRepo) ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Asset, error) {
	var out []*domain.Asset
	r.with(func(d *dataset) {
		for _, a := range d.assets {
			if a.UserID == userID && a.UpdatedAt.After(since) {
				out = append(out, cloneAsset(a))
			}
		}
	})
	sort.Slice(out, func(i, j int) bool {
		return olderFirst(out[i].UpdatedAt, out[i].ID, out[j].UpdatedAt, out[j].ID)
	})
	return out, nil
}

type deviceRepo struct{ repoBase }

func (r deviceRepo) Get(ctx context.Context, userID, id uuid.UUID) (*domain.UserDevice, error) {
	var out *domain.UserDevice
	r.with(func(d *dataset) {
		if dev, ok := d.devices[id]; ok && dev.UserID == userID {
			out = cloneDevice(dev)
		}
	})
	if out == nil {
		return nil, store.ErrNotFound
	}
	return out, nil
}

func (r deviceRepo) Insert(ctx context.Context, dev *domain.UserDevice) error {
	r.with(func(d *dataset) { d.devices[dev.ID] = cloneDevice(dev) })
	return nil
}

func (r deviceRepo) Update(ctx context.Context, dev *domain.UserDevice) error {
	var found bool
	r.with(func(d *dataset) {
		if _, ok := d.devices[dev.ID]; ok {
			d.devices[dev.ID] = cloneDevice(dev)
			found = true
		}
	})
	if !found {
		return store.ErrNotFound
	}
	return nil
}

type outboxRepo struct{ repoBase }

func (r outboxRepo) Append(ctx context.Context, m *domain.OutboxMessage) error {
	r.with(func(d *dataset) { d.outbox = append(d.outbox, cloneOutbox(m)) })
	return nil
}

func (r outboxRepo) ListUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxMessage, error) {
	var out []*domain.OutboxMessage
	r.with(func(d *dataset) {
		for _, m := range d.outbox {
			if m.ProcessedAt == nil {
				out = append(out, cloneOutbox(m))
				if limit > 0 && len(out) >= limit {
					return
				}
			}
		}
	})
	return out, nil
}

func (r outboxRepo) MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time) error {
	idSet := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		idSet[id] = struct{}{}
	}
	at = at.UTC()
	r.with(func(d *dataset) {
		for _, m := range d.outbox {
			if _, ok := idSet[m.ID]; ok && m.ProcessedAt == nil {
				ts := at
				m.ProcessedAt = &ts
			}
		}
	})
	return nil
}
