// Package store defines the persistence capabilities the sync engines run
// against. All reads return detached copies (nothing is tracked); writes
// are explicit Insert/Update calls. RunInTx gives the engines the single
// transaction a push, resolve, or upload commits under.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/caine128/NotesApp-sub000/internal/domain"
)

// ErrNotFound covers both a missing row and a row owned by another user.
// The two are deliberately indistinguishable so IDs do not leak.
var ErrNotFound = errors.New("not found")

// TaskRepo persists tasks. Get returns soft-deleted rows; callers decide
// what a tombstone means. List methods order by UpdatedAt ascending, ID
// ascending as a tiebreaker.
type TaskRepo interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Task, error)
	Insert(ctx context.Context, t *domain.Task) error
	Update(ctx context.Context, t *domain.Task) error
	ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Task, error)
	ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Task, error)
}

// NoteRepo persists notes. Same conventions as TaskRepo.
type NoteRepo interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Note, error)
	Insert(ctx context.Context, n *domain.Note) error
	Update(ctx context.Context, n *domain.Note) error
	ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Note, error)
	ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Note, error)
}

// BlockRepo persists note blocks. Same conventions as TaskRepo.
type BlockRepo interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Block, error)
	Insert(ctx context.Context, b *domain.Block) error
	Update(ctx context.Context, b *domain.Block) error
	ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Block, error)
	ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Block, error)
}

// AssetRepo persists asset descriptors. GetByBlock resolves the 1:1
// block-asset link.
type AssetRepo interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.Asset, error)
	GetByBlock(ctx context.Context, userID, blockID uuid.UUID) (*domain.Asset, error)
	Insert(ctx context.Context, a *domain.Asset) error
	Update(ctx context.Context, a *domain.Asset) error
	ListActive(ctx context.Context, userID uuid.UUID) ([]*domain.Asset, error)
	ListChangedSince(ctx context.Context, userID uuid.UUID, since time.Time) ([]*domain.Asset, error)
}

// DeviceRepo persists user devices.
type DeviceRepo interface {
	Get(ctx context.Context, userID, id uuid.UUID) (*domain.UserDevice, error)
	Insert(ctx context.Context, d *domain.UserDevice) error
	Update(ctx context.Context, d *domain.UserDevice) error
}

// OutboxRepo persists event rows. Append is only meaningful inside a
// transaction; the list/mark surface is read by the external dispatcher.
type OutboxRepo interface {
	Append(ctx context.Context, m *domain.OutboxMessage) error
	ListUnprocessed(ctx context.Context, limit int) ([]*domain.OutboxMessage, error)
	MarkProcessed(ctx context.Context, ids []uuid.UUID, at time.Time) error
}

// Tx bundles the repositories bound to one transaction (or, on Store
// itself, to the pool for plain reads).
type Tx interface {
	Tasks() TaskRepo
	Notes() NoteRepo
	Blocks() BlockRepo
	Assets() AssetRepo
	Devices() DeviceRepo
	Outbox() OutboxRepo
}

// Store is the root capability. Repo accessors on the store serve
// untracked reads; RunInTx runs fn against transaction-bound repos and
// commits iff fn returns nil.
type Store interface {
	Tx
	RunInTx(ctx context.Context, fn func(tx Tx) error) error
}
