package domain

import (
	"time"

	"github.com/google/uuid"
)

// Note is a dated text record. Its body is the ordered sequence of Blocks
// whose ParentID points here; the note itself carries only header fields.
type Note struct {
	Meta
	Date    time.Time
	Title   string
	Summary *string
	Tags    []string
}

func validateNoteAttrs(title string) []string {
	var violations []string
	if title == "" {
		violations = append(violations, "title must not be empty")
	}
	if len(title) > maxTitleLen {
		violations = append(violations, "title too long")
	}
	return violations
}

// NewNote creates a note owned by userID.
func NewNote(userID uuid.UUID, date time.Time, title string, summary *string, tags []string, now time.Time) (*Note, error) {
	if v := validateNoteAttrs(title); len(v) > 0 {
		return nil, validationErr(v...)
	}
	return &Note{
		Meta:    newMeta(userID, now),
		Date:    date,
		Title:   title,
		Summary: summary,
		Tags:    tags,
	}, nil
}

// Update replaces the note's header fields in a single mutation. Nil
// summary and tags clear the fields.
func (n *Note) Update(title string, summary *string, tags []string, date time.Time, now time.Time) error {
	if n.IsDeleted {
		return ErrDeleted
	}
	if v := validateNoteAttrs(title); len(v) > 0 {
		return validationErr(v...)
	}
	n.Title = title
	n.Summary = summary
	n.Tags = tags
	n.Date = date
	n.touch(now)
	return nil
}

// SoftDelete tombstones the note. Blocks under it are deleted separately by
// the client; the server does not cascade.
func (n *Note) SoftDelete(now time.Time) error {
	if n.IsDeleted {
		return ErrDeleted
	}
	n.Meta.softDelete(now)
	return nil
}

// RehydrateNote rebuilds a note from persisted state.
func RehydrateNote(meta Meta, date time.Time, title string, summary *string, tags []string) *Note {
	return &Note{Meta: meta, Date: date, Title: title, Summary: summary, Tags: tags}
}
