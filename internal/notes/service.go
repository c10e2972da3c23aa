package notes

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"noteboard/internal/metrics"
	"noteboard/internal/models"
	"noteboard/internal/store"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// appendAttempts bounds retries when a concurrent append takes the
// max+1 slot first.
const appendAttempts = 3

// Service owns the ordered sequence of notes. Every mutation keeps order
// values unique across the store.
type Service struct {
	store   store.Store
	logger  zerolog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Service)

func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// NewService creates a notes service on top of st. The caller keeps
// ownership of st and closes it.
func NewService(st store.Store, opts ...Option) *Service {
	s := &Service{
		store:  st,
		logger: zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListOrdered returns all notes ascending by order.
func (s *Service) ListOrdered(ctx context.Context) ([]models.Note, error) {
	notes, err := s.store.ListNotes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	slices.SortStableFunc(notes, func(a, b models.Note) int {
		return cmp.Compare(a.Order, b.Order)
	})
	return notes, nil
}

func (s *Service) Get(ctx context.Context, id string) (models.Note, error) {
	if err := validateID(id); err != nil {
		return models.Note{}, err
	}
	n, err := s.store.GetNote(ctx, id)
	if err != nil {
		return models.Note{}, translate(err, id)
	}
	return n, nil
}

// Append creates a note positioned after every existing note.
func (s *Service) Append(ctx context.Context, content string, color models.Color) (models.Note, error) {
	n, err := s.newNote(content, color)
	if err != nil {
		return models.Note{}, err
	}

	for attempt := 1; ; attempt++ {
		created, err := s.store.AppendNote(ctx, n)
		if err == nil {
			s.logger.Debug().Str("note_id", created.ID).Int64("order", created.Order).Msg("note appended")
			return created, nil
		}
		if !errors.Is(err, store.ErrOrderConflict) {
			return models.Note{}, translate(err, n.ID)
		}
		if attempt == appendAttempts {
			return models.Note{}, fmt.Errorf("%w: no free order after %d attempts: %v", ErrConflict, attempt, err)
		}
		s.logger.Warn().Int("attempt", attempt).Msg("append lost race for next order, retrying")
	}
}

// Create stores a note. Without an explicit order it behaves like Append;
// with one, a collision fails with ErrConflict.
func (s *Service) Create(ctx context.Context, params CreateParams) (models.Note, error) {
	if params.Order == nil {
		return s.Append(ctx, params.Content, params.Color)
	}

	if err := validateOrder(*params.Order); err != nil {
		return models.Note{}, err
	}
	n, err := s.newNote(params.Content, params.Color)
	if err != nil {
		return models.Note{}, err
	}
	n.Order = *params.Order
	if err := s.store.CreateNote(ctx, n); err != nil {
		return models.Note{}, translateOrder(err, n.ID, n.Order)
	}
	return n, nil
}

// Update applies a partial edit. Content and color changes leave the order
// untouched; an order change follows ReorderSingle semantics.
func (s *Service) Update(ctx context.Context, id string, params UpdateParams) (models.Note, error) {
	if err := validateID(id); err != nil {
		return models.Note{}, err
	}
	current, err := s.store.GetNote(ctx, id)
	if err != nil {
		return models.Note{}, translate(err, id)
	}

	next := current
	if params.Content != nil {
		content, err := normalizeContent(*params.Content)
		if err != nil {
			return models.Note{}, err
		}
		next.Content = content
	}
	if params.Color != nil {
		color, err := normalizeColor(*params.Color)
		if err != nil {
			return models.Note{}, err
		}
		next.Color = color
	}
	if params.Order != nil {
		if err := validateOrder(*params.Order); err != nil {
			return models.Note{}, err
		}
		next.Order = *params.Order
	}

	if next == current {
		return current, nil
	}
	if err := s.store.UpdateNote(ctx, next); err != nil {
		return models.Note{}, translateOrder(err, id, next.Order)
	}
	return next, nil
}

// ReorderSingle moves one note to newOrder. It is rejected with ErrConflict
// when another note already holds that value; nothing is shifted.
func (s *Service) ReorderSingle(ctx context.Context, id string, newOrder int64) (models.Note, error) {
	n, err := s.Update(ctx, id, UpdateParams{Order: &newOrder})
	s.observe("single", err)
	if err == nil {
		s.logger.Info().Str("note_id", id).Int64("order", newOrder).Msg("note reordered")
	}
	return n, err
}

// ReorderBulk reassigns several order values at once. The complete
// resulting assignment, including notes not named in pairs, must be free
// of duplicates; otherwise nothing is written. It returns the number of
// notes whose order actually changed.
func (s *Service) ReorderBulk(ctx context.Context, pairs []models.OrderAssignment) (int, error) {
	updated, err := s.reorderBulk(ctx, pairs)
	s.observe("bulk", err)
	return updated, err
}

func (s *Service) reorderBulk(ctx context.Context, pairs []models.OrderAssignment) (int, error) {
	if len(pairs) == 0 {
		return 0, nil
	}

	seen := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		if err := validateID(p.ID); err != nil {
			return 0, err
		}
		if err := validateOrder(p.Order); err != nil {
			return 0, err
		}
		if _, dup := seen[p.ID]; dup {
			return 0, fmt.Errorf("%w: note %s appears more than once", ErrValidation, p.ID)
		}
		seen[p.ID] = struct{}{}
	}

	current, err := s.store.ListNotes(ctx)
	if err != nil {
		return 0, fmt.Errorf("list notes: %w", err)
	}
	orders := make(map[string]int64, len(current))
	for _, n := range current {
		orders[n.ID] = n.Order
	}

	var changed []models.OrderAssignment
	for _, p := range pairs {
		old, ok := orders[p.ID]
		if !ok {
			return 0, fmt.Errorf("%w: %s", ErrNotFound, p.ID)
		}
		if old != p.Order {
			changed = append(changed, p)
		}
		orders[p.ID] = p.Order
	}

	holders := make(map[int64]string, len(orders))
	for id, order := range orders {
		if other, taken := holders[order]; taken {
			return 0, fmt.Errorf("%w: order %d would be shared by notes %s and %s", ErrValidation, order, other, id)
		}
		holders[order] = id
	}

	if len(changed) == 0 {
		return 0, nil
	}

	updated, err := s.store.ApplyOrders(ctx, changed)
	if err != nil {
		switch {
		case errors.Is(err, store.ErrNotFound):
			return 0, fmt.Errorf("%w: a note was deleted during reorder", ErrNotFound)
		case errors.Is(err, store.ErrOrderConflict):
			return 0, fmt.Errorf("%w: notes changed during reorder", ErrConflict)
		}
		return 0, fmt.Errorf("apply orders: %w", err)
	}

	if s.metrics != nil {
		s.metrics.NotesReordered.Add(float64(updated))
	}
	s.logger.Info().Int("requested", len(pairs)).Int("updated", updated).Msg("bulk reorder applied")
	return updated, nil
}

// Move places the note at position index of the ordered list, the way a
// drag and drop lands it. The order values already used by the span
// between the old and new position are redistributed, so notes outside
// the span keep their values.
func (s *Service) Move(ctx context.Context, id string, index int) ([]models.Note, error) {
	notes, err := s.move(ctx, id, index)
	s.observe("move", err)
	return notes, err
}

func (s *Service) move(ctx context.Context, id string, index int) ([]models.Note, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	notes, err := s.ListOrdered(ctx)
	if err != nil {
		return nil, err
	}

	from := slices.IndexFunc(notes, func(n models.Note) bool { return n.ID == id })
	if from < 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if index < 0 || index >= len(notes) {
		return nil, fmt.Errorf("%w: index %d out of range [0, %d)", ErrValidation, index, len(notes))
	}
	if from == index {
		return notes, nil
	}

	pairs := MovePairs(notes, from, index)
	if _, err := s.reorderBulk(ctx, pairs); err != nil {
		return nil, err
	}
	return s.ListOrdered(ctx)
}

// MovePairs computes the assignments that move notes[from] to position to.
// notes must be sorted ascending by order.
func MovePairs(notes []models.Note, from, to int) []models.OrderAssignment {
	lo, hi := min(from, to), max(from, to)

	span := make([]models.Note, 0, hi-lo+1)
	span = append(span, notes[lo:hi+1]...)
	moved := span[from-lo]
	span = slices.Delete(span, from-lo, from-lo+1)
	span = slices.Insert(span, to-lo, moved)

	var pairs []models.OrderAssignment
	for i, n := range span {
		slot := notes[lo+i].Order
		if n.Order != slot {
			pairs = append(pairs, models.OrderAssignment{ID: n.ID, Order: slot})
		}
	}
	return pairs
}

// Delete removes a note. Remaining notes keep their order values.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}
	if err := s.store.DeleteNote(ctx, id); err != nil {
		return translate(err, id)
	}
	s.logger.Debug().Str("note_id", id).Msg("note deleted")
	return nil
}

func (s *Service) newNote(content string, color models.Color) (models.Note, error) {
	content, err := normalizeContent(content)
	if err != nil {
		return models.Note{}, err
	}
	color, err = normalizeColor(color)
	if err != nil {
		return models.Note{}, err
	}
	return models.Note{
		ID:      uuid.NewString(),
		Content: content,
		Color:   color,
		// Millisecond precision survives every backend unchanged.
		CreatedAt: s.now().UTC().Truncate(time.Millisecond),
	}, nil
}

func (s *Service) observe(op string, err error) {
	if s.metrics == nil {
		return
	}
	s.metrics.ReorderOps.WithLabelValues(op, resultLabel(err)).Inc()
}

func resultLabel(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrValidation):
		return "invalid"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	default:
		return "error"
	}
}

func normalizeContent(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", fmt.Errorf("%w: content is required", ErrValidation)
	}
	return content, nil
}

func normalizeColor(color models.Color) (models.Color, error) {
	if color == "" {
		return models.ColorDefault, nil
	}
	if !color.Valid() {
		return "", fmt.Errorf("%w: unknown color %q", ErrValidation, color)
	}
	return color, nil
}

func validateID(id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: invalid note ID format %q", ErrValidation, id)
	}
	return nil
}

func validateOrder(order int64) error {
	if order < models.MinOrder || order > models.MaxOrder {
		return fmt.Errorf("%w: order %d outside [%d, %d]", ErrValidation, order, models.MinOrder, models.MaxOrder)
	}
	return nil
}

func translate(err error, id string) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return err
}

func translateOrder(err error, id string, order int64) error {
	if errors.Is(err, store.ErrOrderConflict) {
		return fmt.Errorf("%w: order %d is already used by another note", ErrConflict, order)
	}
	return translate(err, id)
}
