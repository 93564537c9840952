// Package postgres implements store.Store on pgx. Every repo works against
// a querier, which both the pool and a transaction satisfy, so the same
// SQL serves untracked reads and transactional writes.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"

	"github.com/caine128/NotesApp-sub000/internal/store"
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements store.Store over a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an open pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// RunInTx begins a transaction, runs fn against transaction-bound repos,
// and commits iff fn returns nil.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
			log.Error().Err(rbErr).Msg("tx rollback failed")
		}
	}()

	if err := fn(&txRepos{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (s *Store) Tasks() store.TaskRepo     { return taskRepo{q: s.pool} }
func (s *Store) Notes() store.NoteRepo     { return noteRepo{q: s.pool} }
func (s *Store) Blocks() store.BlockRepo   { return blockRepo{q: s.pool} }
func (s *Store) Assets() store.AssetRepo   { return assetRepo{q: s.pool} }
func (s *Store) Devices() store.DeviceRepo { return deviceRepo{q: s.pool} }
func (s *Store) Outbox() store.OutboxRepo  { return outboxRepo{q: s.pool} }

type txRepos struct {
	q pgx.Tx
}

func (t *txRepos) Tasks() store.TaskRepo     { return taskRepo{q: t.q} }
func (t *txRepos) Notes() store.NoteRepo     { return noteRepo{q: t.q} }
func (t *txRepos) Blocks() store.BlockRepo   { return blockRepo{q: t.q} }
func (t *txRepos) Assets() store.AssetRepo   { return assetRepo{q: t.q} }
func (t *txRepos) Devices() store.DeviceRepo { return deviceRepo{q: t.q} }
func (t *txRepos) Outbox() store.OutboxRepo  { return outboxRepo{q: t.q} }
