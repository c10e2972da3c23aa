package store

import (
	"context"
	"errors"

	"noteboard/internal/models"
)

var (
	// ErrNotFound is returned when no note has the requested id.
	ErrNotFound = errors.New("note not found")

	// ErrOrderConflict is returned when a write would give two notes the
	// same order value. The write is not applied.
	ErrOrderConflict = errors.New("order value already in use")
)

// Store defines the persistence operations for notes.
//
// Implementations enforce order uniqueness themselves (a unique index or
// constraint) so that no committed state ever holds a duplicate.
type Store interface {
	// ListNotes returns every note sorted ascending by order.
	ListNotes(ctx context.Context) ([]models.Note, error)
	GetNote(ctx context.Context, id string) (models.Note, error)

	// AppendNote persists n with order = max(existing) + 1, or 1 when the
	// store is empty. n.Order is ignored. The stored note is returned.
	AppendNote(ctx context.Context, n models.Note) (models.Note, error)
	// CreateNote persists n with the order it carries.
	CreateNote(ctx context.Context, n models.Note) error
	// UpdateNote overwrites content, color and order of an existing note.
	UpdateNote(ctx context.Context, n models.Note) error
	DeleteNote(ctx context.Context, id string) error

	// ApplyOrders reassigns order values for several notes as one atomic
	// unit. Either every assignment is committed or none is. It returns
	// the number of notes written.
	ApplyOrders(ctx context.Context, assignments []models.OrderAssignment) (int, error)

	Close() error
}
