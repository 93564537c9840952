package domain

import (
	"time"

	"github.com/google/uuid"
)

// Task is a time-anchored to-do.
type Task struct {
	Meta
	Date                 time.Time // calendar date, time component ignored
	Title                string
	Description          *string
	StartTime            *time.Time
	EndTime              *time.Time
	Location             *string
	TravelTime           *time.Duration
	ReminderAt           *time.Time
	ReminderAcknowledged *time.Time
	IsCompleted          bool
}

const maxTitleLen = 500

func validateTaskAttrs(title string, start, end *time.Time) []string {
	var violations []string
	if title == "" {
		violations = append(violations, "title must not be empty")
	}
	if len(title) > maxTitleLen {
		violations = append(violations, "title too long")
	}
	if start != nil && end != nil && end.Before(*start) {
		violations = append(violations, "start time must not be after end time")
	}
	return violations
}

// NewTask creates a task owned by userID. Title must be non-empty and, when
// both are given, StartTime must not be after EndTime.
func NewTask(userID uuid.UUID, date time.Time, title string, description *string, start, end *time.Time, location *string, travel *time.Duration, now time.Time) (*Task, error) {
	if v := validateTaskAttrs(title, start, end); len(v) > 0 {
		return nil, validationErr(v...)
	}
	return &Task{
		Meta:        newMeta(userID, now),
		Date:        date,
		Title:       title,
		Description: description,
		StartTime:   start,
		EndTime:     end,
		Location:    location,
		TravelTime:  travel,
	}, nil
}

// Update replaces the task's attributes in a single mutation. Nil optional
// values clear the corresponding field; there is no field-level patching.
// ReminderAt and IsCompleted are included so a sync apply is one version
// bump, not several.
func (t *Task) Update(title string, date time.Time, description *string, start, end *time.Time, location *string, travel *time.Duration, reminderAt *time.Time, completed bool, now time.Time) error {
	if t.IsDeleted {
		return ErrDeleted
	}
	if v := validateTaskAttrs(title, start, end); len(v) > 0 {
		return validationErr(v...)
	}
	t.Title = title
	t.Date = date
	t.Description = description
	t.StartTime = start
	t.EndTime = end
	t.Location = location
	t.TravelTime = travel
	t.ReminderAt = reminderAt
	t.IsCompleted = completed
	t.touch(now)
	return nil
}

// SetReminder sets or, with a nil at, clears the reminder.
func (t *Task) SetReminder(at *time.Time, now time.Time) error {
	if t.IsDeleted {
		return ErrDeleted
	}
	t.ReminderAt = at
	if at == nil {
		t.ReminderAcknowledged = nil
	}
	t.touch(now)
	return nil
}

// AcknowledgeReminder records that the reminder fired and was seen.
func (t *Task) AcknowledgeReminder(at time.Time, now time.Time) error {
	if t.IsDeleted {
		return ErrDeleted
	}
	if t.ReminderAt == nil {
		return validationErr("no reminder set")
	}
	at = at.UTC()
	t.ReminderAcknowledged = &at
	t.touch(now)
	return nil
}

// MarkCompleted flags the task done.
func (t *Task) MarkCompleted(now time.Time) error {
	if t.IsDeleted {
		return ErrDeleted
	}
	t.IsCompleted = true
	t.touch(now)
	return nil
}

// SoftDelete tombstones the task. Terminal.
func (t *Task) SoftDelete(now time.Time) error {
	if t.IsDeleted {
		return ErrDeleted
	}
	t.Meta.softDelete(now)
	return nil
}

// RehydrateTask rebuilds a task from persisted state. Repositories and
// tests only; no validation runs.
func RehydrateTask(meta Meta, date time.Time, title string, description *string, start, end *time.Time, location *string, travel *time.Duration, reminderAt, reminderAcked *time.Time, completed bool) *Task {
	return &Task{
		Meta:                 meta,
		Date:                 date,
		Title:                title,
		Description:          description,
		StartTime:            start,
		EndTime:              end,
		Location:             location,
		TravelTime:           travel,
		ReminderAt:           reminderAt,
		ReminderAcknowledged: reminderAcked,
		IsCompleted:          completed,
	}
}
