package notes

import (
	"errors"

	"noteboard/internal/models"
)

// Error sentinels. Callers match them with errors.Is; the wrapped message
// carries the detail.
var (
	// ErrValidation covers malformed input: empty content, unknown color,
	// malformed ids, or a reorder that would duplicate an order value.
	ErrValidation = errors.New("validation failed")

	ErrNotFound = errors.New("note not found")

	// ErrConflict is returned when a requested order value is held by
	// another note.
	ErrConflict = errors.New("order conflict")
)

// CreateParams contains parameters for creating a note
type CreateParams struct {
	Content string       `json:"content"`
	Color   models.Color `json:"color,omitempty"`
	// Order places the note explicitly; nil appends it after the last note.
	Order *int64 `json:"order,omitempty"`
}

// UpdateParams contains parameters for updating a note.
// All fields are optional (pointer to distinguish empty from omitted)
type UpdateParams struct {
	Content *string       `json:"content,omitempty"`
	Color   *models.Color `json:"color,omitempty"`
	Order   *int64        `json:"order,omitempty"`
}
