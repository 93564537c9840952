package memory

import (
	"time"

	"github.com/google/uuid"

	"github.com/caine128/NotesApp-sub000/internal/domain"
)

func copyTimePtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

func copyStrPtr(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func copyDurPtr(d *time.Duration) *time.Duration {
	if d == nil {
		return nil
	}
	c := *d
	return &c
}

func copyUUIDPtr(u *uuid.UUID) *uuid.UUID {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}

func cloneTask(t *domain.Task) *domain.Task {
	c := *t
	c.Description = copyStrPtr(t.Description)
	c.StartTime = copyTimePtr(t.StartTime)
	c.EndTime = copyTimePtr(t.EndTime)
	c.Location = copyStrPtr(t.Location)
	c.TravelTime = copyDurPtr(t.TravelTime)
	c.ReminderAt = copyTimePtr(t.ReminderAt)
	c.ReminderAcknowledged = copyTimePtr(t.ReminderAcknowledged)
	return &c
}

func cloneNote(n *domain.Note) *domain.Note {
	c := *n
	c.Summary = copyStrPtr(n.Summary)
	if n.Tags != nil {
		c.Tags = append([]string(nil), n.Tags...)
	}
	return &c
}

func cloneBlock(b *domain.Block) *domain.Block {
	c := *b
	c.AssetContentType = copyStrPtr(b.AssetContentType)
	c.AssetID = copyUUIDPtr(b.AssetID)
	return &c
}

func cloneAsset(a *domain.Asset) *domain.Asset {
	c := *a
	return &c
}

func cloneDevice(d *domain.UserDevice) *domain.UserDevice {
	c := *d
	return &c
}

func cloneOutbox(m *domain.OutboxMessage) *domain.OutboxMessage {
	c := *m
	c.OriginDeviceID = copyUUIDPtr(m.OriginDeviceID)
	c.ProcessedAt = copyTimePtr(m.ProcessedAt)
	if m.Payload != nil {
		c.Payload = append([]byte(nil), m.Payload...)
	}
	return &c
}
