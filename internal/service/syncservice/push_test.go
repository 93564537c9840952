package syncservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/caine128/NotesApp-sub000/internal/apperr"
	"github.com/caine128/NotesApp-sub000/internal/domain"
	"github.com/caine128/NotesApp-sub000/internal/store"
	"github.com/caine128/NotesApp-sub000/internal/store/memory"
)

var (
	fixedNow  = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	fixedDate = time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC)
)

func newPushService(st store.Store) *PushService {
	return &PushService{Store: st, Now: func() time.Time { return fixedNow }}
}

func seedDevice(t *testing.T, st store.Store, userID uuid.UUID) uuid.UUID {
	t.Helper()
	dev, err := domain.NewUserDevice(userID, "tok-"+uuid.NewString(), "ios", "Phone", fixedNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("NewUserDevice: %v", err)
	}
	if err := st.Devices().Insert(context.Background(), dev); err != nil {
		t.Fatalf("insert device: %v", err)
	}
	return dev.ID
}

func seedTaskAtVersion(t *testing.T, st store.Store, userID uuid.UUID, version int) *domain.Task {
	t.Helper()
	meta := domain.Meta{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: fixedNow.Add(-time.Hour),
		UpdatedAt: fixedNow.Add(-time.Minute),
		Version:   version,
	}
	task := domain.RehydrateTask(meta, fixedDate, "seeded", nil, nil, nil, nil, nil, nil, nil, false)
	if err := st.Tasks().Insert(context.Background(), task); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	return task
}

func seedNote(t *testing.T, st store.Store, userID uuid.UUID) *domain.Note {
	t.Helper()
	note, err := domain.NewNote(userID, fixedDate, "seeded note", nil, nil, fixedNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("NewNote: %v", err)
	}
	if err := st.Notes().Insert(context.Background(), note); err != nil {
		t.Fatalf("insert note: %v", err)
	}
	return note
}

func countMessages(ms []*domain.OutboxMessage, messageType string) int {
	n := 0
	for _, m := range ms {
		if m.MessageType == messageType {
			n++
		}
	}
	return n
}

func TestPushDeviceGate(t *testing.T) {
	ctx := context.Background()
	userID := uuid.New()

	tests := []struct {
		name   string
		device func(st *memory.Store) uuid.UUID
	}{
		{"unknown device", func(st *memory.Store) uuid.UUID { return uuid.New() }},
		{"foreign device", func(st *memory.Store) uuid.UUID { return seedDevice(t, st, uuid.New()) }},
		{"deactivated device", func(st *memory.Store) uuid.UUID {
			id := seedDevice(t, st, userID)
			dev, err := st.Devices().Get(ctx, userID, id)
			if err != nil {
				t.Fatalf("get device: %v", err)
			}
			if err := dev.Deactivate(fixedNow); err != nil {
				t.Fatalf("deactivate: %v", err)
			}
			if err := st.Devices().Update(ctx, dev); err != nil {
				t.Fatalf("update device: %v", err)
			}
			return id
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := memory.NewStore()
			deviceID := tt.device(st)

			req := &PushRequest{
				DeviceID: deviceID,
				Tasks: TaskChanges{Created: []TaskCreate{
					{ClientID: uuid.New(), TaskData: TaskData{Date: fixedDate, Title: "T"}},
				}},
			}
			_, err := newPushService(st).Push(ctx, userID, req)
			if apperr.CodeOf(err) != apperr.CodeDeviceNotFound {
				t.Fatalf("expected %s, got %v", apperr.CodeDeviceNotFound, err)
			}

			// The gate rejects the whole push: no entity, no outbox row.
			tasks, _ := st.Tasks().ListActive(ctx, userID)
			if len(tasks) != 0 {
				t.Fatalf("expected no tasks, got %d", len(tasks))
			}
			if len(st.Messages()) != 0 {
				t.Fatalf("expected no outbox rows, got %d", len(st.Messages()))
			}
		})
	}
}

func TestPushCreateTask(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()
	deviceID := seedDevice(t, st, userID)

	clientID := uuid.New()
	req := &PushRequest{
		DeviceID: deviceID,
		Tasks: TaskChanges{Created: []TaskCreate{
			{ClientID: clientID, TaskData: TaskData{Date: fixedDate, Title: "T"}},
		}},
	}

	res, err := newPushService(st).Push(ctx, userID, req)
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	if len(res.Tasks.Created) != 1 {
		t.Fatalf("expected 1 create result, got %d", len(res.Tasks.Created))
	}
	r := res.Tasks.Created[0]
	if r.Status != StatusCreated {
		t.Fatalf("expected Created, got %s", r.Status)
	}
	if r.ClientID != clientID {
		t.Fatalf("clientId mismatch")
	}
	if r.ServerID == nil || *r.ServerID == uuid.Nil {
		t.Fatalf("expected server id")
	}
	if r.Version == nil || *r.Version != 1 {
		t.Fatalf("expected version 1, got %v", r.Version)
	}
	if r.Conflict != nil {
		t.Fatalf("unexpected conflict: %+v", r.Conflict)
	}

	task, err := st.Tasks().Get(ctx, userID, *r.ServerID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if task.Title != "T" || task.Version != 1 {
		t.Fatalf("persisted task mismatch: %+v", task)
	}

	msgs := st.Messages()
	if countMessages(msgs, "Task.Created") != 1 {
		t.Fatalf("expected one Task.Created row, got %d", countMessages(msgs, "Task.Created"))
	}
	if msgs[0].OriginDeviceID == nil || *msgs[0].OriginDeviceID != deviceID {
		t.Fatalf("expected origin device on outbox row")
	}
}

func TestPushUpdateVersionMismatch(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()
	deviceID := seedDevice(t, st, userID)
	task := seedTaskAtVersion(t, st, userID, 5)

	req := &PushRequest{
		DeviceID: deviceID,
		Tasks: TaskChanges{Updated: []TaskUpdate{
			{ID: task.ID, ExpectedVersion: 1, TaskData: TaskData{Date: fixedDate, Title: "X"}},
		}},
	}
	res, err := newPushService(st).Push(ctx, userID, req)
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	r := res.Tasks.Updated[0]
	if r.Status != StatusFailed {
		t.Fatalf("expected Failed, got %s", r.Status)
	}
	if r.Conflict == nil || r.Conflict.Type != ConflictVersionMismatch {
		t.Fatalf("expected VersionMismatch conflict, got %+v", r.Conflict)
	}
	if *r.Conflict.ClientVersion != 1 || *r.Conflict.ServerVersion != 5 {
		t.Fatalf("conflict versions wrong: %+v", r.Conflict)
	}
	if r.Conflict.ServerTask == nil || r.Conflict.ServerTask.Version != 5 || r.Conflict.ServerTask.Title != "seeded" {
		t.Fatalf("expected server snapshot, got %+v", r.Conflict.ServerTask)
	}

	// No mutation and no outbox row.
	stored, _ := st.Tasks().Get(ctx, userID, task.ID)
	if stored.Version != 5 || stored.Title != "seeded" {
		t.Fatalf("task must be untouched: %+v", stored)
	}
	if len(st.Messages()) != 0 {
		t.Fatalf("expected no outbox rows")
	}
}

func TestPushUpdateSuccess(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()
	deviceID := seedDevice(t, st, userID)
	task := seedTaskAtVersion(t, st, userID, 3)

	req := &PushRequest{
		DeviceID: deviceID,
		Tasks: TaskChanges{Updated: []TaskUpdate{
			{ID: task.ID, ExpectedVersion: 3, TaskData: TaskData{Date: fixedDate, Title: "renamed", IsCompleted: true}},
		}},
	}
	res, err := newPushService(st).Push(ctx, userID, req)
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	r := res.Tasks.Updated[0]
	if r.Status != StatusUpdated || r.Version == nil || *r.Version != 4 {
		t.Fatalf("expected Updated v4, got %+v", r)
	}

	stored, _ := st.Tasks().Get(ctx, userID, task.ID)
	if stored.Title != "renamed" || !stored.IsCompleted || stored.Version != 4 {
		t.Fatalf("update not applied: %+v", stored)
	}
	if countMessages(st.Messages(), "Task.Updated") != 1 {
		t.Fatalf("expected one Task.Updated row")
	}
}

func TestPushUpdateFailures(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()
	deviceID := seedDevice(t, st, userID)

	deleted := seedTaskAtVersion(t, st, userID, 2)
	del, _ := st.Tasks().Get(ctx, userID, deleted.ID)
	if err := del.SoftDelete(fixedNow.Add(-time.Second)); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := st.Tasks().Update(ctx, del); err != nil {
		t.Fatalf("update: %v", err)
	}

	live := seedTaskAtVersion(t, st, userID, 1)

	req := &PushRequest{
		DeviceID: deviceID,
		Tasks: TaskChanges{Updated: []TaskUpdate{
			{ID: uuid.New(), ExpectedVersion: 1, TaskData: TaskData{Date: fixedDate, Title: "A"}},
			{ID: del.ID, ExpectedVersion: 3, TaskData: TaskData{Date: fixedDate, Title: "B"}},
			{ID: live.ID, ExpectedVersion: 1, TaskData: TaskData{Date: fixedDate, Title: ""}},
		}},
	}
	res, err := newPushService(st).Push(ctx, userID, req)
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	wantConflicts := []ConflictType{ConflictNotFound, ConflictDeletedOnServer, ConflictValidationFailed}
	for i, want := range wantConflicts {
		r := res.Tasks.Updated[i]
		if r.Status != StatusFailed || r.Conflict == nil || r.Conflict.Type != want {
			t.Fatalf("item %d: expected %s, got %+v", i, want, r)
		}
	}
	if len(res.Tasks.Updated[2].Errors) == 0 {
		t.Fatalf("validation failure must carry violations")
	}
	if len(st.Messages()) != 0 {
		t.Fatalf("expected no outbox rows")
	}
}

func TestPushDeleteIdempotent(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()
	deviceID := seedDevice(t, st, userID)
	task := seedTaskAtVersion(t, st, userID, 1)
	svc := newPushService(st)

	req := &PushRequest{
		DeviceID: deviceID,
		Tasks:    TaskChanges{Deleted: []DeleteChange{{ID: task.ID}}},
	}

	res, err := svc.Push(ctx, userID, req)
	if err != nil {
		t.Fatalf("first push: %v", err)
	}
	if res.Tasks.Deleted[0].Status != StatusDeleted {
		t.Fatalf("expected Deleted, got %s", res.Tasks.Deleted[0].Status)
	}

	res, err = svc.Push(ctx, userID, req)
	if err != nil {
		t.Fatalf("second push: %v", err)
	}
	if res.Tasks.Deleted[0].Status != StatusAlreadyDeleted {
		t.Fatalf("expected AlreadyDeleted, got %s", res.Tasks.Deleted[0].Status)
	}

	if n := countMessages(st.Messages(), "Task.Deleted"); n != 1 {
		t.Fatalf("expected exactly one Task.Deleted row, got %d", n)
	}

	stored, _ := st.Tasks().Get(ctx, userID, task.ID)
	if !stored.IsDeleted || stored.Version != 2 {
		t.Fatalf("tombstone wrong: %+v", stored)
	}
}

func TestPushDeleteNonexistent(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()
	deviceID := seedDevice(t, st, userID)

	req := &PushRequest{
		DeviceID: deviceID,
		Tasks:    TaskChanges{Deleted: []DeleteChange{{ID: uuid.New()}}},
	}
	res, err := newPushService(st).Push(ctx, userID, req)
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if res.Tasks.Deleted[0].Status != StatusNotFound {
		t.Fatalf("expected NotFound, got %s", res.Tasks.Deleted[0].Status)
	}
	if len(st.Messages()) != 0 {
		t.Fatalf("expected no outbox rows")
	}
}

func TestPushIntraBatchParent(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()
	deviceID := seedDevice(t, st, userID)

	noteClientID := uuid.New()
	blockClientID := uuid.New()
	req := &PushRequest{
		DeviceID: deviceID,
		Notes: NoteChanges{Created: []NoteCreate{
			{ClientID: noteClientID, NoteData: NoteData{Date: fixedDate, Title: "N"}},
		}},
		Blocks: BlockChanges{Created: []BlockCreate{
			{
				ClientID:       blockClientID,
				ParentClientID: &noteClientID,
				ParentType:     "Note",
				Type:           "Paragraph",
				Position:       "a0",
				TextContent:    "x",
			},
		}},
	}

	res, err := newPushService(st).Push(ctx, userID, req)
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	noteRes := res.Notes.Created[0]
	blockRes := res.Blocks.Created[0]
	if noteRes.Status != StatusCreated || blockRes.Status != StatusCreated {
		t.Fatalf("expected both Created: %+v / %+v", noteRes, blockRes)
	}

	block, err := st.Blocks().Get(ctx, userID, *blockRes.ServerID)
	if err != nil {
		t.Fatalf("get block: %v", err)
	}
	if block.ParentID != *noteRes.ServerID {
		t.Fatalf("block parent %s, want note server id %s", block.ParentID, *noteRes.ServerID)
	}
	if block.Position != "a0" || block.TextContent != "x" {
		t.Fatalf("block payload wrong: %+v", block)
	}
}

func TestPushBlockParentFailures(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()
	deviceID := seedDevice(t, st, userID)

	deletedNote := seedNote(t, st, userID)
	dn, _ := st.Notes().Get(ctx, userID, deletedNote.ID)
	if err := dn.SoftDelete(fixedNow.Add(-time.Second)); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if err := st.Notes().Update(ctx, dn); err != nil {
		t.Fatalf("update: %v", err)
	}

	unknownParent := uuid.New()
	unknownClientRef := uuid.New()

	tests := []struct {
		name string
		item BlockCreate
		want ConflictType
	}{
		{
			"no parent reference",
			BlockCreate{ClientID: uuid.New(), ParentType: "Note", Type: "Paragraph", Position: "a0"},
			ConflictParentNotFound,
		},
		{
			"unknown parent id",
			BlockCreate{ClientID: uuid.New(), ParentID: &unknownParent, ParentType: "Note", Type: "Paragraph", Position: "a0"},
			ConflictParentNotFound,
		},
		{
			"unknown parent client id",
			BlockCreate{ClientID: uuid.New(), ParentClientID: &unknownClientRef, ParentType: "Note", Type: "Paragraph", Position: "a0"},
			ConflictParentNotFound,
		},
		{
			"soft-deleted parent",
			BlockCreate{ClientID: uuid.New(), ParentID: &dn.ID, ParentType: "Note", Type: "Paragraph", Position: "a0"},
			ConflictParentNotFound,
		},
		{
			"task parent type",
			BlockCreate{ClientID: uuid.New(), ParentID: &unknownParent, ParentType: "Task", Type: "Paragraph", Position: "a0"},
			ConflictValidationFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := &PushRequest{DeviceID: deviceID, Blocks: BlockChanges{Created: []BlockCreate{tt.item}}}
			res, err := newPushService(st).Push(ctx, userID, req)
			if err != nil {
				t.Fatalf("push: %v", err)
			}
			r := res.Blocks.Created[0]
			if r.Status != StatusFailed || r.Conflict == nil || r.Conflict.Type != tt.want {
				t.Fatalf("expected %s, got %+v", tt.want, r)
			}
		})
	}
}

func TestPushEmpty(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()
	deviceID := seedDevice(t, st, userID)

	res, err := newPushService(st).Push(ctx, userID, &PushRequest{DeviceID: deviceID})
	if err != nil {
		t.Fatalf("push: %v", err)
	}
	if len(res.Tasks.Created)+len(res.Tasks.Updated)+len(res.Tasks.Deleted) != 0 {
		t.Fatalf("expected empty result")
	}
	if len(st.Messages()) != 0 {
		t.Fatalf("expected no outbox rows")
	}
}

func TestPushCrossUserIsNotFound(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	owner := uuid.New()
	attacker := uuid.New()
	deviceID := seedDevice(t, st, attacker)
	task := seedTaskAtVersion(t, st, owner, 1)

	req := &PushRequest{
		DeviceID: deviceID,
		Tasks: TaskChanges{
			Updated: []TaskUpdate{{ID: task.ID, ExpectedVersion: 1, TaskData: TaskData{Date: fixedDate, Title: "X"}}},
			Deleted: []DeleteChange{{ID: task.ID}},
		},
	}
	res, err := newPushService(st).Push(ctx, attacker, req)
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	if res.Tasks.Updated[0].Conflict == nil || res.Tasks.Updated[0].Conflict.Type != ConflictNotFound {
		t.Fatalf("cross-user update must be NotFound, got %+v", res.Tasks.Updated[0])
	}
	if res.Tasks.Deleted[0].Status != StatusNotFound {
		t.Fatalf("cross-user delete must be NotFound, got %+v", res.Tasks.Deleted[0])
	}

	stored, _ := st.Tasks().Get(ctx, owner, task.ID)
	if stored.IsDeleted || stored.Version != 1 {
		t.Fatalf("foreign task must be untouched: %+v", stored)
	}
}

// failingOutboxStore wraps the memory store so Append fails inside
// transactions.
type failingOutboxStore struct {
	*memory.Store
}

type failingOutboxTx struct {
	store.Tx
}

type failingOutboxRepo struct {
	store.OutboxRepo
}

var errAppend = errors.New("append failed")

func (failingOutboxRepo) Append(ctx context.Context, m *domain.OutboxMessage) error {
	return errAppend
}

func (t failingOutboxTx) Outbox() store.OutboxRepo {
	return failingOutboxRepo{t.Tx.Outbox()}
}

func (s failingOutboxStore) RunInTx(ctx context.Context, fn func(tx store.Tx) error) error {
	return s.Store.RunInTx(ctx, func(tx store.Tx) error {
		return fn(failingOutboxTx{tx})
	})
}

func TestPushOutboxFailure(t *testing.T) {
	ctx := context.Background()
	mem := memory.NewStore()
	st := failingOutboxStore{mem}
	userID := uuid.New()
	deviceID := seedDevice(t, mem, userID)
	task := seedTaskAtVersion(t, mem, userID, 1)

	req := &PushRequest{
		DeviceID: deviceID,
		Tasks: TaskChanges{
			Created: []TaskCreate{{ClientID: uuid.New(), TaskData: TaskData{Date: fixedDate, Title: "T"}}},
			Deleted: []DeleteChange{{ID: task.ID}},
		},
	}
	res, err := newPushService(st).Push(ctx, userID, req)
	if err != nil {
		t.Fatalf("push: %v", err)
	}

	// Create survives an outbox failure: the event loss is advisory.
	if res.Tasks.Created[0].Status != StatusCreated {
		t.Fatalf("create should still be accepted, got %+v", res.Tasks.Created[0])
	}

	// Delete does not: mutation and event stay atomic for deletes.
	r := res.Tasks.Deleted[0]
	if r.Status != StatusFailed || r.Conflict == nil || r.Conflict.Type != ConflictOutboxFailed {
		t.Fatalf("expected OutboxFailed, got %+v", r)
	}
	stored, _ := mem.Tasks().Get(ctx, userID, task.ID)
	if stored.IsDeleted {
		t.Fatalf("failed delete must not tombstone the task")
	}
}
