package syncservice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/caine128/NotesApp-sub000/internal/domain"
	"github.com/caine128/NotesApp-sub000/internal/store"
	"github.com/caine128/NotesApp-sub000/internal/store/memory"
)

type stubSigner struct {
	fail bool
}

func (s stubSigner) SignDownload(assetID uuid.UUID, blobPath, contentType, fileName string) (string, error) {
	if s.fail {
		return "", errors.New("signing broke")
	}
	return "https://example.test/v1/assets/" + assetID.String() + "/download?token=t", nil
}

func newPullService(st store.Store, signer URLSigner) *PullService {
	return &PullService{Store: st, Signer: signer, MaxItemsDefault: 500, Now: func() time.Time { return fixedNow }}
}

func seedTaskAt(t *testing.T, st store.Store, userID uuid.UUID, title string, createdAt, updatedAt time.Time, deleted bool) *domain.Task {
	t.Helper()
	version := 1
	if !updatedAt.Equal(createdAt) {
		version = 2
	}
	meta := domain.Meta{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
		IsDeleted: deleted,
		Version:   version,
	}
	task := domain.RehydrateTask(meta, fixedDate, title, nil, nil, nil, nil, nil, nil, nil, false)
	if err := st.Tasks().Insert(context.Background(), task); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	return task
}

func TestPullInitialSync(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()

	t1 := fixedNow.Add(-3 * time.Hour)
	t2 := fixedNow.Add(-2 * time.Hour)
	live1 := seedTaskAt(t, st, userID, "one", t1, t1, false)
	live2 := seedTaskAt(t, st, userID, "two", t2, t2, false)
	seedTaskAt(t, st, userID, "gone", t1, t2, true)
	seedTaskAt(t, st, uuid.New(), "foreign", t1, t1, false)

	res, err := newPullService(st, stubSigner{}).Pull(ctx, userID, PullQuery{})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	// Initial sync: live entities only, all in Created, UpdatedAt ascending.
	if len(res.Tasks.Created) != 2 || len(res.Tasks.Updated) != 0 || len(res.Tasks.Deleted) != 0 {
		t.Fatalf("unexpected buckets: %+v", res.Tasks)
	}
	if res.Tasks.Created[0].ID != live1.ID || res.Tasks.Created[1].ID != live2.ID {
		t.Fatalf("wrong order: got %s, %s", res.Tasks.Created[0].Title, res.Tasks.Created[1].Title)
	}
	if res.HasMoreTasks {
		t.Fatalf("unexpected HasMoreTasks")
	}
	if !res.ServerTimestampUTC.Equal(fixedNow) {
		t.Fatalf("server timestamp: got %v", res.ServerTimestampUTC)
	}
}

func TestPullIncrementalCategorization(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()

	since := fixedNow.Add(-time.Hour)
	before := since.Add(-time.Hour)
	after := since.Add(time.Minute)

	// Untouched since the cursor: not in the delta.
	seedTaskAt(t, st, userID, "stale", before, before, false)
	created := seedTaskAt(t, st, userID, "created", after, after, false)
	updated := seedTaskAt(t, st, userID, "updated", before, after, false)
	deleted := seedTaskAt(t, st, userID, "deleted", before, after.Add(time.Minute), true)

	res, err := newPullService(st, stubSigner{}).Pull(ctx, userID, PullQuery{Since: &since})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if len(res.Tasks.Created) != 1 || res.Tasks.Created[0].ID != created.ID {
		t.Fatalf("created bucket wrong: %+v", res.Tasks.Created)
	}
	if len(res.Tasks.Updated) != 1 || res.Tasks.Updated[0].ID != updated.ID {
		t.Fatalf("updated bucket wrong: %+v", res.Tasks.Updated)
	}
	if len(res.Tasks.Deleted) != 1 || res.Tasks.Deleted[0].ID != deleted.ID {
		t.Fatalf("deleted bucket wrong: %+v", res.Tasks.Deleted)
	}
	if !res.Tasks.Deleted[0].DeletedAt.Equal(deleted.UpdatedAt) {
		t.Fatalf("tombstone timestamp must be UpdatedAt")
	}
}

func TestPullTruncation(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()

	t1 := fixedNow.Add(-3 * time.Hour)
	t2 := fixedNow.Add(-2 * time.Hour)
	t3 := fixedNow.Add(-1 * time.Hour)
	first := seedTaskAt(t, st, userID, "t1", t1, t1, false)
	second := seedTaskAt(t, st, userID, "t2", t2, t2, false)
	seedTaskAt(t, st, userID, "t3", t3, t3, false)

	max := 2
	res, err := newPullService(st, stubSigner{}).Pull(ctx, userID, PullQuery{MaxItemsPerEntity: &max})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if len(res.Tasks.Created) != 2 {
		t.Fatalf("expected 2 tasks, got %d", len(res.Tasks.Created))
	}
	if res.Tasks.Created[0].ID != first.ID || res.Tasks.Created[1].ID != second.ID {
		t.Fatalf("truncation must keep the oldest entries")
	}
	if !res.HasMoreTasks {
		t.Fatalf("expected HasMoreTasks")
	}
	if res.HasMoreNotes || res.HasMoreBlocks {
		t.Fatalf("other types must not report more")
	}
}

func TestPullTruncationBudgetOrder(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()

	since := fixedNow.Add(-time.Hour)
	after := since.Add(time.Minute)

	// Two created, one updated, one deleted; budget of three consumes
	// Created fully, then Updated, and starves Deleted.
	seedTaskAt(t, st, userID, "c1", after, after, false)
	seedTaskAt(t, st, userID, "c2", after.Add(time.Second), after.Add(time.Second), false)
	seedTaskAt(t, st, userID, "u1", since.Add(-time.Hour), after, false)
	seedTaskAt(t, st, userID, "d1", since.Add(-time.Hour), after, true)

	max := 3
	res, err := newPullService(st, stubSigner{}).Pull(ctx, userID, PullQuery{Since: &since, MaxItemsPerEntity: &max})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if len(res.Tasks.Created) != 2 || len(res.Tasks.Updated) != 1 || len(res.Tasks.Deleted) != 0 {
		t.Fatalf("budget order wrong: created=%d updated=%d deleted=%d",
			len(res.Tasks.Created), len(res.Tasks.Updated), len(res.Tasks.Deleted))
	}
	if !res.HasMoreTasks {
		t.Fatalf("expected HasMoreTasks")
	}
}

func seedAsset(t *testing.T, st store.Store, userID uuid.UUID, deleted bool) *domain.Asset {
	t.Helper()
	a, err := domain.NewAsset(userID, uuid.New(), "p.jpg", "image/jpeg", 1024,
		"user-assets/u/p/b/p.jpg", fixedNow.Add(-time.Hour))
	if err != nil {
		t.Fatalf("NewAsset: %v", err)
	}
	if deleted {
		if err := a.SoftDelete(fixedNow.Add(-time.Minute)); err != nil {
			t.Fatalf("soft delete: %v", err)
		}
	}
	if err := st.Assets().Insert(context.Background(), a); err != nil {
		t.Fatalf("insert asset: %v", err)
	}
	return a
}

func TestPullAssets(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()

	live := seedAsset(t, st, userID, false)
	gone := seedAsset(t, st, userID, true)

	since := fixedNow.Add(-2 * time.Hour)
	res, err := newPullService(st, stubSigner{}).Pull(ctx, userID, PullQuery{Since: &since})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}

	if len(res.Assets.Created) != 1 || res.Assets.Created[0].ID != live.ID {
		t.Fatalf("asset created bucket wrong: %+v", res.Assets.Created)
	}
	if res.Assets.Created[0].DownloadURL == nil {
		t.Fatalf("expected signed URL")
	}
	if len(res.Assets.Deleted) != 1 || res.Assets.Deleted[0].ID != gone.ID {
		t.Fatalf("asset deleted bucket wrong: %+v", res.Assets.Deleted)
	}
}

func TestPullAssetSigningFailureIsNotFatal(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()
	seedAsset(t, st, userID, false)

	res, err := newPullService(st, stubSigner{fail: true}).Pull(ctx, userID, PullQuery{})
	if err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(res.Assets.Created) != 1 {
		t.Fatalf("asset must still be included")
	}
	if res.Assets.Created[0].DownloadURL != nil {
		t.Fatalf("URL must be null on signing failure")
	}
}

func TestPullWritesNothing(t *testing.T) {
	ctx := context.Background()
	st := memory.NewStore()
	userID := uuid.New()
	seedTaskAt(t, st, userID, "t", fixedNow.Add(-time.Hour), fixedNow.Add(-time.Hour), false)

	if _, err := newPullService(st, stubSigner{}).Pull(ctx, userID, PullQuery{}); err != nil {
		t.Fatalf("pull: %v", err)
	}
	if len(st.Messages()) != 0 {
		t.Fatalf("pull must not write outbox rows")
	}
}
