// Package syncservice implements the push, pull, and conflict-resolution
// engines that reconcile multi-device replicas against the server store.
package syncservice

import (
	"time"

	"github.com/google/uuid"

	"github.com/caine128/NotesApp-sub000/internal/domain"
)

// ItemStatus is the terminal outcome of one pushed item.
type ItemStatus string

const (
	StatusCreated        ItemStatus = "Created"
	StatusUpdated        ItemStatus = "Updated"
	StatusDeleted        ItemStatus = "Deleted"
	StatusAlreadyDeleted ItemStatus = "AlreadyDeleted"
	StatusNotFound       ItemStatus = "NotFound"
	StatusFailed         ItemStatus = "Failed"
)

// ConflictType classifies why an item failed.
type ConflictType string

const (
	ConflictVersionMismatch  ConflictType = "VersionMismatch"
	ConflictDeletedOnServer  ConflictType = "DeletedOnServer"
	ConflictNotFound         ConflictType = "NotFound"
	ConflictValidationFailed ConflictType = "ValidationFailed"
	ConflictParentNotFound   ConflictType = "ParentNotFound"
	ConflictOutboxFailed     ConflictType = "OutboxFailed"
)

// Conflict is attached to a failed item result. On a version mismatch the
// server snapshot of the losing entity rides along so the client can merge.
type Conflict struct {
	Type          ConflictType   `json:"conflictType"`
	ClientVersion *int           `json:"clientVersion,omitempty"`
	ServerVersion *int           `json:"serverVersion,omitempty"`
	ServerTask    *TaskSnapshot  `json:"serverTask,omitempty"`
	ServerNote    *NoteSnapshot  `json:"serverNote,omitempty"`
	ServerBlock   *BlockSnapshot `json:"serverBlock,omitempty"`
}

// TaskData is the writable attribute surface of a task, shared by create,
// update, and resolution payloads. TravelTimeMs is a duration in
// milliseconds.
type TaskData struct {
	Date         time.Time  `json:"date"`
	Title        string     `json:"title"`
	Description  *string    `json:"description"`
	StartTime    *time.Time `json:"startTime"`
	EndTime      *time.Time `json:"endTime"`
	Location     *string    `json:"location"`
	TravelTimeMs *int64     `json:"travelTimeMs"`
	ReminderAt   *time.Time `json:"reminderAtUtc"`
	IsCompleted  bool       `json:"isCompleted"`
}

// Travel converts the wire milliseconds into a duration.
func (d TaskData) Travel() *time.Duration {
	if d.TravelTimeMs == nil {
		return nil
	}
	t := time.Duration(*d.TravelTimeMs) * time.Millisecond
	return &t
}

// NoteData is the writable attribute surface of a note.
type NoteData struct {
	Date    time.Time `json:"date"`
	Title   string    `json:"title"`
	Summary *string   `json:"summary"`
	Tags    []string  `json:"tags"`
}

// BlockData is the writable attribute surface of an existing block: a new
// position, new text content, or both. Nil leaves the field untouched.
type BlockData struct {
	Position    *string `json:"position"`
	TextContent *string `json:"textContent"`
}

// TaskCreate is one client-created task. ClientID is the UUID the device
// minted; the result maps it to the server-assigned ID.
type TaskCreate struct {
	ClientID uuid.UUID `json:"clientId"`
	TaskData
}

// TaskUpdate is one optimistic-concurrency task update.
type TaskUpdate struct {
	ID              uuid.UUID `json:"id"`
	ExpectedVersion int       `json:"expectedVersion"`
	TaskData
}

// NoteCreate is one client-created note.
type NoteCreate struct {
	ClientID uuid.UUID `json:"clientId"`
	NoteData
}

// NoteUpdate is one optimistic-concurrency note update.
type NoteUpdate struct {
	ID              uuid.UUID `json:"id"`
	ExpectedVersion int       `json:"expectedVersion"`
	NoteData
}

// BlockCreate is one client-created block. The parent is addressed either
// by ParentID (a server ID) or ParentClientID (a note created earlier in
// the same push); ParentID wins when both are set.
type BlockCreate struct {
	ClientID       uuid.UUID  `json:"clientId"`
	ParentID       *uuid.UUID `json:"parentId"`
	ParentClientID *uuid.UUID `json:"parentClientId"`
	ParentType     string     `json:"parentType"`
	Type           string     `json:"type"`
	Position       string     `json:"position"`

	TextContent string `json:"textContent"`

	AssetClientID    *uuid.UUID `json:"assetClientId"`
	AssetFileName    string     `json:"assetFileName"`
	AssetContentType *string    `json:"assetContentType"`
	AssetSizeBytes   int64      `json:"assetSizeBytes"`
}

// BlockUpdate is one optimistic-concurrency block update.
type BlockUpdate struct {
	ID              uuid.UUID `json:"id"`
	ExpectedVersion int       `json:"expectedVersion"`
	BlockData
}

// DeleteChange is one idempotent delete. Deletes carry no expected version:
// delete wins.
type DeleteChange struct {
	ID uuid.UUID `json:"id"`
}

// TaskChanges groups the task operations of one push.
type TaskChanges struct {
	Created []TaskCreate   `json:"created"`
	Updated []TaskUpdate   `json:"updated"`
	Deleted []DeleteChange `json:"deleted"`
}

// NoteChanges groups the note operations of one push.
type NoteChanges struct {
	Created []NoteCreate   `json:"created"`
	Updated []NoteUpdate   `json:"updated"`
	Deleted []DeleteChange `json:"deleted"`
}

// BlockChanges groups the block operations of one push.
type BlockChanges struct {
	Created []BlockCreate  `json:"created"`
	Updated []BlockUpdate  `json:"updated"`
	Deleted []DeleteChange `json:"deleted"`
}

// PushRequest is one client→server batch.
type PushRequest struct {
	DeviceID               uuid.UUID    `json:"deviceId"`
	ClientSyncTimestampUTC time.Time    `json:"clientSyncTimestampUtc"`
	Tasks                  TaskChanges  `json:"tasks"`
	Notes                  NoteChanges  `json:"notes"`
	Blocks                 BlockChanges `json:"blocks"`
}

// CreateResult acknowledges one create item.
type CreateResult struct {
	ClientID uuid.UUID  `json:"clientId"`
	ServerID *uuid.UUID `json:"serverId,omitempty"`
	Version  *int       `json:"version,omitempty"`
	Status   ItemStatus `json:"status"`
	Conflict *Conflict  `json:"conflict,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// UpdateResult acknowledges one update item.
type UpdateResult struct {
	ID       uuid.UUID  `json:"id"`
	Version  *int       `json:"version,omitempty"`
	Status   ItemStatus `json:"status"`
	Conflict *Conflict  `json:"conflict,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// DeleteResult acknowledges one delete item.
type DeleteResult struct {
	ID       uuid.UUID  `json:"id"`
	Status   ItemStatus `json:"status"`
	Conflict *Conflict  `json:"conflict,omitempty"`
	Errors   []string   `json:"errors,omitempty"`
}

// TaskResults mirrors TaskChanges with per-item outcomes.
type TaskResults struct {
	Created []CreateResult `json:"created"`
	Updated []UpdateResult `json:"updated"`
	Deleted []DeleteResult `json:"deleted"`
}

// NoteResults mirrors NoteChanges with per-item outcomes.
type NoteResults struct {
	Created []CreateResult `json:"created"`
	Updated []UpdateResult `json:"updated"`
	Deleted []DeleteResult `json:"deleted"`
}

// BlockResults mirrors BlockChanges with per-item outcomes.
type BlockResults struct {
	Created []CreateResult `json:"created"`
	Updated []UpdateResult `json:"updated"`
	Deleted []DeleteResult `json:"deleted"`
}

// PushResult is the full per-item acknowledgement of one push.
type PushResult struct {
	ServerTimestampUTC time.Time    `json:"serverTimestampUtc"`
	Tasks              TaskResults  `json:"tasks"`
	Notes              NoteResults  `json:"notes"`
	Blocks             BlockResults `json:"blocks"`
}

// TaskSnapshot is the wire form of a task's full server state.
type TaskSnapshot struct {
	ID                   uuid.UUID  `json:"id"`
	Date                 time.Time  `json:"date"`
	Title                string     `json:"title"`
	Description          *string    `json:"description"`
	StartTime            *time.Time `json:"startTime"`
	EndTime              *time.Time `json:"endTime"`
	Location             *string    `json:"location"`
	TravelTimeMs         *int64     `json:"travelTimeMs"`
	ReminderAt           *time.Time `json:"reminderAtUtc"`
	ReminderAcknowledged *time.Time `json:"reminderAcknowledgedAtUtc"`
	IsCompleted          bool       `json:"isCompleted"`
	CreatedAt            time.Time  `json:"createdAtUtc"`
	UpdatedAt            time.Time  `json:"updatedAtUtc"`
	IsDeleted            bool       `json:"isDeleted"`
	Version              int        `json:"version"`
}

// NoteSnapshot is the wire form of a note's full server state.
type NoteSnapshot struct {
	ID        uuid.UUID `json:"id"`
	Date      time.Time `json:"date"`
	Title     string    `json:"title"`
	Summary   *string   `json:"summary"`
	Tags      []string  `json:"tags"`
	CreatedAt time.Time `json:"createdAtUtc"`
	UpdatedAt time.Time `json:"updatedAtUtc"`
	IsDeleted bool      `json:"isDeleted"`
	Version   int       `json:"version"`
}

// BlockSnapshot is the wire form of a block's full server state.
type BlockSnapshot struct {
	ID               uuid.UUID  `json:"id"`
	ParentID         uuid.UUID  `json:"parentId"`
	ParentType       string     `json:"parentType"`
	Type             string     `json:"type"`
	Position         string     `json:"position"`
	TextContent      string     `json:"textContent,omitempty"`
	AssetClientID    *uuid.UUID `json:"assetClientId,omitempty"`
	AssetFileName    string     `json:"assetFileName,omitempty"`
	AssetContentType *string    `json:"assetContentType,omitempty"`
	AssetSizeBytes   int64      `json:"assetSizeBytes,omitempty"`
	AssetID          *uuid.UUID `json:"assetId,omitempty"`
	UploadStatus     string     `json:"uploadStatus,omitempty"`
	CreatedAt        time.Time  `json:"createdAtUtc"`
	UpdatedAt        time.Time  `json:"updatedAtUtc"`
	IsDeleted        bool       `json:"isDeleted"`
	Version          int        `json:"version"`
}

// AssetSnapshot is the wire form of an asset descriptor. DownloadURL is
// minted per pull and nil when signing failed.
type AssetSnapshot struct {
	ID          uuid.UUID `json:"id"`
	BlockID     uuid.UUID `json:"blockId"`
	FileName    string    `json:"fileName"`
	ContentType string    `json:"contentType"`
	SizeBytes   int64     `json:"sizeBytes"`
	CreatedAt   time.Time `json:"createdAtUtc"`
	UpdatedAt   time.Time `json:"updatedAtUtc"`
	DownloadURL *string   `json:"downloadUrl"`
}

// Tombstone reports one deletion in a pull delta.
type Tombstone struct {
	ID        uuid.UUID `json:"id"`
	DeletedAt time.Time `json:"deletedAtUtc"`
}

// SnapshotTask builds the wire snapshot of a task.
func SnapshotTask(t *domain.Task) *TaskSnapshot {
	var travelMs *int64
	if t.TravelTime != nil {
		ms := t.TravelTime.Milliseconds()
		travelMs = &ms
	}
	return &TaskSnapshot{
		ID:                   t.ID,
		Date:                 t.Date,
		Title:                t.Title,
		Description:          t.Description,
		StartTime:            t.StartTime,
		EndTime:              t.EndTime,
		Location:             t.Location,
		TravelTimeMs:         travelMs,
		ReminderAt:           t.ReminderAt,
		ReminderAcknowledged: t.ReminderAcknowledged,
		IsCompleted:          t.IsCompleted,
		CreatedAt:            t.CreatedAt,
		UpdatedAt:            t.UpdatedAt,
		IsDeleted:            t.IsDeleted,
		Version:              t.Version,
	}
}

// SnapshotNote builds the wire snapshot of a note.
func SnapshotNote(n *domain.Note) *NoteSnapshot {
	return &NoteSnapshot{
		ID:        n.ID,
		Date:      n.Date,
		Title:     n.Title,
		Summary:   n.Summary,
		Tags:      n.Tags,
		CreatedAt: n.CreatedAt,
		UpdatedAt: n.UpdatedAt,
		IsDeleted: n.IsDeleted,
		Version:   n.Version,
	}
}

// SnapshotBlock builds the wire snapshot of a block.
func SnapshotBlock(b *domain.Block) *BlockSnapshot {
	s := &BlockSnapshot{
		ID:          b.ID,
		ParentID:    b.ParentID,
		ParentType:  string(b.ParentType),
		Type:        string(b.Type),
		Position:    b.Position,
		TextContent: b.TextContent,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
		IsDeleted:   b.IsDeleted,
		Version:     b.Version,
	}
	if b.Type.IsAsset() {
		clientID := b.AssetClientID
		s.AssetClientID = &clientID
		s.AssetFileName = b.AssetFileName
		s.AssetContentType = b.AssetContentType
		s.AssetSizeBytes = b.AssetSizeBytes
		s.AssetID = b.AssetID
		s.UploadStatus = string(b.UploadStatus)
	}
	return s
}

// SnapshotAsset builds the wire snapshot of an asset, URL unset.
func SnapshotAsset(a *domain.Asset) *AssetSnapshot {
	return &AssetSnapshot{
		ID:          a.ID,
		BlockID:     a.BlockID,
		FileName:    a.FileName,
		ContentType: a.ContentType,
		SizeBytes:   a.SizeBytes,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
}

// TaskDelta is the categorized task portion of a pull.
type TaskDelta struct {
	Created []*TaskSnapshot `json:"created"`
	Updated []*TaskSnapshot `json:"updated"`
	Deleted []Tombstone     `json:"deleted"`
}

// NoteDelta is the categorized note portion of a pull.
type NoteDelta struct {
	Created []*NoteSnapshot `json:"created"`
	Updated []*NoteSnapshot `json:"updated"`
	Deleted []Tombstone     `json:"deleted"`
}

// BlockDelta is the categorized block portion of a pull.
type BlockDelta struct {
	Created []*BlockSnapshot `json:"created"`
	Updated []*BlockSnapshot `json:"updated"`
	Deleted []Tombstone      `json:"deleted"`
}

// AssetDelta is the asset portion of a pull. Assets are only ever created
// or deleted, never updated.
type AssetDelta struct {
	Created []*AssetSnapshot `json:"created"`
	Deleted []Tombstone      `json:"deleted"`
}

// PullResult is one server→client delta. ServerTimestampUTC is the next
// cursor; the client passes it back as sinceUtc once all HasMore flags are
// false.
type PullResult struct {
	ServerTimestampUTC time.Time  `json:"serverTimestampUtc"`
	Tasks              TaskDelta  `json:"tasks"`
	Notes              NoteDelta  `json:"notes"`
	Blocks             BlockDelta `json:"blocks"`
	Assets             AssetDelta `json:"assets"`
	HasMoreTasks       bool       `json:"hasMoreTasks"`
	HasMoreNotes       bool       `json:"hasMoreNotes"`
	HasMoreBlocks      bool       `json:"hasMoreBlocks"`
}

// ResolutionChoice selects how a reported conflict is settled.
type ResolutionChoice string

const (
	ChoiceKeepServer ResolutionChoice = "KeepServer"
	ChoiceKeepClient ResolutionChoice = "KeepClient"
	ChoiceMerge      ResolutionChoice = "Merge"
)

// ResolutionStatus is the outcome of one resolution item.
type ResolutionStatus string

const (
	ResolutionKeptServer        ResolutionStatus = "KeptServer"
	ResolutionUpdated           ResolutionStatus = "Updated"
	ResolutionNotFound          ResolutionStatus = "NotFound"
	ResolutionDeletedOnServer   ResolutionStatus = "DeletedOnServer"
	ResolutionValidationFailed  ResolutionStatus = "ValidationFailed"
	ResolutionConflict          ResolutionStatus = "Conflict"
	ResolutionInvalidEntityType ResolutionStatus = "InvalidEntityType"
)

// ResolutionItem settles one conflict the client was told about. Data for
// the entity type must be present unless the choice is KeepServer.
type ResolutionItem struct {
	EntityType      string           `json:"entityType"`
	EntityID        uuid.UUID        `json:"entityId"`
	Choice          ResolutionChoice `json:"choice"`
	ExpectedVersion int              `json:"expectedVersion"`
	TaskData        *TaskData        `json:"taskData,omitempty"`
	NoteData        *NoteData        `json:"noteData,omitempty"`
	BlockData       *BlockData       `json:"blockData,omitempty"`
}

// ResolutionResult acknowledges one resolution item.
type ResolutionResult struct {
	EntityType string           `json:"entityType"`
	EntityID   uuid.UUID        `json:"entityId"`
	Status     ResolutionStatus `json:"status"`
	NewVersion *int             `json:"newVersion,omitempty"`
	Errors     []string         `json:"errors,omitempty"`
}
