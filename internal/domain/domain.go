// Package domain holds the entities the sync core reconciles: tasks, notes,
// note blocks, binary assets, user devices, and the outbox messages emitted
// for every accepted mutation.
//
// All state changes go through entity methods. Each method validates its
// input, refuses to touch a soft-deleted entity, bumps Version by exactly
// one, and stamps UpdatedAt. Repositories persist whatever the methods
// produce; they never mutate state themselves.
package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrDeleted is returned by any mutating operation on a soft-deleted entity.
// Soft-delete is terminal.
var ErrDeleted = errors.New("entity is deleted")

// ValidationError carries one or more human-readable rule violations.
// It never wraps infrastructure failures.
type ValidationError struct {
	Violations []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Violations, "; ")
}

func validationErr(violations ...string) error {
	return &ValidationError{Violations: violations}
}

// IsValidation reports whether err is a domain validation failure and, if
// so, returns the individual violations.
func IsValidation(err error) ([]string, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Violations, true
	}
	return nil, false
}

// Meta is the bookkeeping every synced entity carries. Version starts at 1
// and increments on every accepted mutation, soft-delete included.
type Meta struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	CreatedAt time.Time
	UpdatedAt time.Time
	IsDeleted bool
	Version   int
}

func newMeta(userID uuid.UUID, now time.Time) Meta {
	now = now.UTC()
	return Meta{
		ID:        uuid.New(),
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
		Version:   1,
	}
}

// touch records an accepted mutation.
func (m *Meta) touch(now time.Time) {
	m.UpdatedAt = now.UTC()
	m.Version++
}

// softDelete flips the terminal deletion flag. Callers must have checked
// IsDeleted already; this is the shared tail of every SoftDelete method.
func (m *Meta) softDelete(now time.Time) {
	m.IsDeleted = true
	m.touch(now)
}
