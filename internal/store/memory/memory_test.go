package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/caine128/NotesApp-sub000/internal/domain"
	"github.com/caine128/NotesApp-sub000/internal/store"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func seedTask(t *testing.T, s *Store, userID uuid.UUID, title string, updatedAt time.Time) *domain.Task {
	t.Helper()
	task, err := domain.NewTask(userID, testNow, title, nil, nil, nil, nil, nil, updatedAt)
	if err != nil {
		t.Fatalf("NewTask: %v", err)
	}
	if err := s.Tasks().Insert(context.Background(), task); err != nil {
		t.Fatalf("insert: %v", err)
	}
	return task
}

func TestRunInTxCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	userID := uuid.New()

	var id uuid.UUID
	err := s.RunInTx(ctx, func(tx store.Tx) error {
		task, err := domain.NewTask(userID, testNow, "committed", nil, nil, nil, nil, nil, testNow)
		if err != nil {
			return err
		}
		id = task.ID
		return tx.Tasks().Insert(ctx, task)
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}

	if _, err := s.Tasks().Get(ctx, userID, id); err != nil {
		t.Fatalf("committed task must be visible: %v", err)
	}
}

func TestRunInTxRollback(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	userID := uuid.New()
	existing := seedTask(t, s, userID, "before", testNow)

	boom := errors.New("boom")
	var staged uuid.UUID
	err := s.RunInTx(ctx, func(tx store.Tx) error {
		task, err := domain.NewTask(userID, testNow, "staged", nil, nil, nil, nil, nil, testNow)
		if err != nil {
			return err
		}
		staged = task.ID
		if err := tx.Tasks().Insert(ctx, task); err != nil {
			return err
		}

		mutated, err := tx.Tasks().Get(ctx, userID, existing.ID)
		if err != nil {
			return err
		}
		if err := mutated.SoftDelete(testNow.Add(time.Minute)); err != nil {
			return err
		}
		if err := tx.Tasks().Update(ctx, mutated); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected fn error, got %v", err)
	}

	if _, err := s.Tasks().Get(ctx, userID, staged); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("staged insert must be rolled back")
	}
	got, err := s.Tasks().Get(ctx, userID, existing.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.IsDeleted || got.Version != 1 {
		t.Fatalf("staged mutation must be rolled back: %+v", got)
	}
}

func TestGetIsolatesUsers(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	task := seedTask(t, s, uuid.New(), "mine", testNow)

	if _, err := s.Tasks().Get(ctx, uuid.New(), task.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("foreign user must see ErrNotFound, got %v", err)
	}
}

func TestListChangedSinceOrderingAndFilter(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	userID := uuid.New()

	since := testNow
	seedTask(t, s, userID, "old", since.Add(-time.Hour))
	newer := seedTask(t, s, userID, "newer", since.Add(2*time.Minute))
	older := seedTask(t, s, userID, "older", since.Add(time.Minute))

	// Soft-deleted rows still show up in the change feed.
	gone := seedTask(t, s, userID, "gone", since.Add(-time.Hour))
	g, _ := s.Tasks().Get(ctx, userID, gone.ID)
	if err := g.SoftDelete(since.Add(3 * time.Minute)); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := s.Tasks().Update(ctx, g); err != nil {
		t.Fatalf("update: %v", err)
	}

	tasks, err := s.Tasks().ListChangedSince(ctx, userID, since)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 changed tasks, got %d", len(tasks))
	}
	if tasks[0].ID != older.ID || tasks[1].ID != newer.ID || tasks[2].ID != gone.ID {
		t.Fatalf("expected UpdatedAt ascending order")
	}

	active, err := s.Tasks().ListActive(ctx, userID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	for _, task := range active {
		if task.IsDeleted {
			t.Fatalf("ListActive must exclude tombstones")
		}
	}
}

func TestOutboxDispatcherSurface(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	userID := uuid.New()

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		m := domain.NewOutboxMessage(domain.AggregateTask, uuid.New(), "Task.Created", []byte(`{}`), userID, nil, testNow)
		if err := s.Outbox().Append(ctx, m); err != nil {
			t.Fatalf("append: %v", err)
		}
		ids = append(ids, m.ID)
	}

	pending, err := s.Outbox().ListUnprocessed(ctx, 2)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("limit not honored: got %d", len(pending))
	}
	if pending[0].ID != ids[0] || pending[1].ID != ids[1] {
		t.Fatalf("expected append order")
	}

	if err := s.Outbox().MarkProcessed(ctx, ids[:2], testNow.Add(time.Minute)); err != nil {
		t.Fatalf("mark: %v", err)
	}
	pending, err = s.Outbox().ListUnprocessed(ctx, 0)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(pending) != 1 || pending[0].ID != ids[2] {
		t.Fatalf("expected only the unmarked row, got %d", len(pending))
	}
}
