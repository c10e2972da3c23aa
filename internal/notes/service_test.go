package notes

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"

	"noteboard/internal/metrics"
	"noteboard/internal/models"
	"noteboard/internal/store"
	"noteboard/internal/store/sqlstore"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

// newTestService opens a fresh in-memory SQLite store. The returned func
// closes it.
func newTestService(t interface {
	Fatalf(format string, args ...any)
}, opts ...Option) (*Service, func()) {
	st, err := sqlstore.New("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return NewService(st, opts...), func() { st.Close() }
}

func seed(t require.TestingT, svc *Service, contents ...string) []models.Note {
	out := make([]models.Note, 0, len(contents))
	for _, c := range contents {
		n, err := svc.Append(context.Background(), c, "")
		require.NoError(t, err)
		out = append(out, n)
	}
	return out
}

func ids(notes []models.Note) []string {
	out := make([]string, len(notes))
	for i, n := range notes {
		out[i] = n.ID
	}
	return out
}

func orderOf(notes []models.Note) map[string]int64 {
	out := make(map[string]int64, len(notes))
	for _, n := range notes {
		out[n.ID] = n.Order
	}
	return out
}

// =============================================================================
// Append
// =============================================================================

func testAppend_StrictlyIncreasing(t *rapid.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	count := rapid.IntRange(1, 15).Draw(t, "count")
	var last int64
	for i := 0; i < count; i++ {
		n, err := svc.Append(ctx, fmt.Sprintf("note %d", i), "")
		require.NoError(t, err)
		require.Greater(t, n.Order, last, "append %d must land after every existing note", i)
		last = n.Order

		// Deleting a note mid-sequence leaves a gap but never lowers max.
		if rapid.Bool().Draw(t, "delete") {
			list, err := svc.ListOrdered(ctx)
			require.NoError(t, err)
			victim := rapid.SampledFrom(list).Draw(t, "victim")
			require.NoError(t, svc.Delete(ctx, victim.ID))
		}
	}

	list, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	for i := 1; i < len(list); i++ {
		require.Less(t, list[i-1].Order, list[i].Order)
	}
}

func TestAppend_StrictlyIncreasing_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testAppend_StrictlyIncreasing)
}

func TestAppend_FirstNoteGetsOrderOne(t *testing.T) {
	svc, done := newTestService(t)
	defer done()

	n, err := svc.Append(context.Background(), "first", models.ColorRed)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Order)
	assert.Equal(t, models.ColorRed, n.Color)
	assert.NotEmpty(t, n.ID)
	assert.False(t, n.CreatedAt.IsZero())
}

func TestAppend_TrimsContentAndDefaultsColor(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	n, err := svc.Append(ctx, "  buy milk \n", "")
	require.NoError(t, err)
	assert.Equal(t, "buy milk", n.Content)
	assert.Equal(t, models.ColorDefault, n.Color)

	stored, err := svc.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, n, stored)
}

func TestAppend_RejectsBlankContent(t *testing.T) {
	svc, done := newTestService(t)
	defer done()

	for _, content := range []string{"", "  ", "\t\n "} {
		_, err := svc.Append(context.Background(), content, "")
		assert.ErrorIs(t, err, ErrValidation, "content %q", content)
	}

	list, err := svc.ListOrdered(context.Background())
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAppend_RejectsUnknownColor(t *testing.T) {
	svc, done := newTestService(t)
	defer done()

	_, err := svc.Append(context.Background(), "hello", models.Color("green"))
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreate_ExplicitOrder(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	order := int64(10)
	n, err := svc.Create(ctx, CreateParams{Content: "pinned", Order: &order})
	require.NoError(t, err)
	assert.Equal(t, int64(10), n.Order)

	_, err = svc.Create(ctx, CreateParams{Content: "clash", Order: &order})
	assert.ErrorIs(t, err, ErrConflict)

	next, err := svc.Create(ctx, CreateParams{Content: "appended"})
	require.NoError(t, err)
	assert.Equal(t, int64(11), next.Order)
}

// racingStore makes the first conflicts AppendNote calls lose the race for
// the next order, the way a concurrent append would.
type racingStore struct {
	store.Store
	conflicts int
	calls     int
}

func (s *racingStore) AppendNote(ctx context.Context, n models.Note) (models.Note, error) {
	s.calls++
	if s.calls <= s.conflicts {
		return models.Note{}, fmt.Errorf("%w: taken by a concurrent append", store.ErrOrderConflict)
	}
	return s.Store.AppendNote(ctx, n)
}

func newRacingService(t *testing.T, conflicts int) (*Service, *racingStore) {
	t.Helper()
	st, err := sqlstore.New("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	racing := &racingStore{Store: st, conflicts: conflicts}
	return NewService(racing), racing
}

func TestAppend_RetriesAfterLostRace(t *testing.T) {
	svc, racing := newRacingService(t, 1)

	n, err := svc.Append(context.Background(), "retried", "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n.Order)
	assert.Equal(t, 2, racing.calls)
}

func TestAppend_GivesUpAfterBoundedRetries(t *testing.T) {
	svc, racing := newRacingService(t, appendAttempts)
	ctx := context.Background()

	_, err := svc.Append(ctx, "unlucky", "")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Equal(t, appendAttempts, racing.calls)

	list, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestAppend_ConcurrentOrdersAreUnique(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	const workers, perWorker = 8, 5
	errs := make(chan error, workers*perWorker)
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perWorker {
				_, err := svc.Append(ctx, fmt.Sprintf("worker %d note %d", w, i), "")
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	list, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, list, workers*perWorker)
	for i, n := range list {
		assert.Equal(t, int64(i+1), n.Order)
	}
}

// =============================================================================
// Order range
// =============================================================================

func TestOrderRange_RejectsOutOfBounds(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()
	seeded := seed(t, svc, "A")

	for _, order := range []int64{models.MaxOrder + 1, models.MinOrder - 1, 1<<63 - 1, -1 << 63} {
		_, err := svc.Create(ctx, CreateParams{Content: "far", Order: &order})
		assert.ErrorIs(t, err, ErrValidation, "create order %d", order)

		_, err = svc.ReorderSingle(ctx, seeded[0].ID, order)
		assert.ErrorIs(t, err, ErrValidation, "single order %d", order)

		_, err = svc.ReorderBulk(ctx, []models.OrderAssignment{{ID: seeded[0].ID, Order: order}})
		assert.ErrorIs(t, err, ErrValidation, "bulk order %d", order)
	}

	list, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, int64(1), list[0].Order)
}

func TestOrderRange_AppendAfterMaxOrderIsRejected(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	top := models.MaxOrder
	_, err := svc.Create(ctx, CreateParams{Content: "top", Order: &top})
	require.NoError(t, err)

	_, err = svc.Append(ctx, "next", "")
	assert.ErrorIs(t, err, ErrConflict)

	list, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, models.MaxOrder, list[0].Order)
}

func TestOrderRange_ReorderBetweenExtremes(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	lo, hi := models.MinOrder, models.MaxOrder
	low, err := svc.Create(ctx, CreateParams{Content: "low", Order: &lo})
	require.NoError(t, err)
	high, err := svc.Create(ctx, CreateParams{Content: "high", Order: &hi})
	require.NoError(t, err)

	updated, err := svc.ReorderBulk(ctx, []models.OrderAssignment{{ID: low.ID, Order: 5}})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)

	list, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{low.ID: 5, high.ID: models.MaxOrder}, orderOf(list))
}

// =============================================================================
// ReorderBulk
// =============================================================================

func TestReorderBulk_SwapEnds(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	seeded := seed(t, svc, "A", "B", "C")
	a, b, c := seeded[0], seeded[1], seeded[2]

	updated, err := svc.ReorderBulk(ctx, []models.OrderAssignment{
		{ID: a.ID, Order: 3},
		{ID: c.ID, Order: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	list, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{c.ID, b.ID, a.ID}, ids(list))
	assert.Equal(t, map[string]int64{a.ID: 3, b.ID: 2, c.ID: 1}, orderOf(list))
}

func TestReorderBulk_DuplicateTargetLeavesStoreUnchanged(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	seeded := seed(t, svc, "A", "B", "C")
	before, err := svc.ListOrdered(ctx)
	require.NoError(t, err)

	// A onto B's slot while B stays put.
	_, err = svc.ReorderBulk(ctx, []models.OrderAssignment{{ID: seeded[0].ID, Order: 2}})
	assert.ErrorIs(t, err, ErrValidation)

	// Two named notes onto the same slot.
	_, err = svc.ReorderBulk(ctx, []models.OrderAssignment{
		{ID: seeded[0].ID, Order: 7},
		{ID: seeded[1].ID, Order: 7},
	})
	assert.ErrorIs(t, err, ErrValidation)

	after, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReorderBulk_RejectsBadInput(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	seeded := seed(t, svc, "A", "B")

	updated, err := svc.ReorderBulk(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, updated)

	_, err = svc.ReorderBulk(ctx, []models.OrderAssignment{{ID: "not-a-uuid", Order: 5}})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = svc.ReorderBulk(ctx, []models.OrderAssignment{{ID: "5f0c8f7e-4f5e-4d0c-9f7a-3f1f6a8c2b11", Order: 5}})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ReorderBulk(ctx, []models.OrderAssignment{
		{ID: seeded[0].ID, Order: 5},
		{ID: seeded[0].ID, Order: 6},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestReorderBulk_UnchangedPairsAreNotCounted(t *testing.T) {
	svc, done := newTestService(t)
	defer done()

	seeded := seed(t, svc, "A", "B")
	updated, err := svc.ReorderBulk(context.Background(), []models.OrderAssignment{
		{ID: seeded[0].ID, Order: 1},
		{ID: seeded[1].ID, Order: 9},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated)
}

func testReorderBulk_Permutation(t *rapid.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	count := rapid.IntRange(1, 10).Draw(t, "count")
	contents := make([]string, count)
	for i := range contents {
		contents[i] = fmt.Sprintf("note %d", i)
	}
	seeded := seed(t, svc, contents...)

	orders := make([]int64, count)
	for i, n := range seeded {
		orders[i] = n.Order
	}
	shuffled := rapid.Permutation(orders).Draw(t, "orders")

	pairs := make([]models.OrderAssignment, count)
	want := make(map[string]int64, count)
	for i, n := range seeded {
		pairs[i] = models.OrderAssignment{ID: n.ID, Order: shuffled[i]}
		want[n.ID] = shuffled[i]
	}

	_, err := svc.ReorderBulk(ctx, pairs)
	require.NoError(t, err)

	list, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	require.Len(t, list, count)
	require.Equal(t, want, orderOf(list))
	for i := 1; i < len(list); i++ {
		require.Less(t, list[i-1].Order, list[i].Order)
	}
}

func TestReorderBulk_Permutation_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testReorderBulk_Permutation)
}

// =============================================================================
// ReorderSingle / Update
// =============================================================================

func TestReorderSingle_ConflictLeavesStoreUnchanged(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	seeded := seed(t, svc, "A", "B", "C")
	before, err := svc.ListOrdered(ctx)
	require.NoError(t, err)

	_, err = svc.ReorderSingle(ctx, seeded[1].ID, 3)
	assert.ErrorIs(t, err, ErrConflict)

	after, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestReorderSingle_FreeSlot(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	seeded := seed(t, svc, "A", "B", "C")
	n, err := svc.ReorderSingle(ctx, seeded[0].ID, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), n.Order)
	assert.Equal(t, "A", n.Content)

	list, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{seeded[1].ID, seeded[2].ID, seeded[0].ID}, ids(list))
}

func TestReorderSingle_NotFoundAndMalformed(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	_, err := svc.ReorderSingle(ctx, "5f0c8f7e-4f5e-4d0c-9f7a-3f1f6a8c2b11", 1)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.ReorderSingle(ctx, "abc", 1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestUpdate_EditKeepsOrder(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	seeded := seed(t, svc, "A", "B")
	content := "  B, edited  "
	color := models.ColorYellow

	n, err := svc.Update(ctx, seeded[1].ID, UpdateParams{Content: &content, Color: &color})
	require.NoError(t, err)
	assert.Equal(t, "B, edited", n.Content)
	assert.Equal(t, models.ColorYellow, n.Color)
	assert.Equal(t, seeded[1].Order, n.Order)
	assert.Equal(t, seeded[1].CreatedAt, n.CreatedAt)

	blank := " "
	_, err = svc.Update(ctx, seeded[1].ID, UpdateParams{Content: &blank})
	assert.ErrorIs(t, err, ErrValidation)
}

// =============================================================================
// Delete
// =============================================================================

func TestDelete_KeepsOtherOrders(t *testing.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	seeded := seed(t, svc, "A", "B", "C")
	require.NoError(t, svc.Delete(ctx, seeded[1].ID))

	list, err := svc.ListOrdered(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[string]int64{seeded[0].ID: 1, seeded[2].ID: 3}, orderOf(list))

	err = svc.Delete(ctx, seeded[1].ID)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = svc.Get(ctx, seeded[1].ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

// =============================================================================
// Move
// =============================================================================

func testMove_MatchesSliceMove(t *rapid.T) {
	svc, done := newTestService(t)
	defer done()
	ctx := context.Background()

	count := rapid.IntRange(1, 8).Draw(t, "count")
	contents := make([]string, count)
	for i := range contents {
		contents[i] = fmt.Sprintf("note %d", i)
	}
	seeded := seed(t, svc, contents...)

	// Punch a hole so order values are not just 1..n.
	if count > 2 && rapid.Bool().Draw(t, "gap") {
		require.NoError(t, svc.Delete(ctx, seeded[1].ID))
		seeded = slices.Delete(seeded, 1, 2)
	}

	from := rapid.IntRange(0, len(seeded)-1).Draw(t, "from")
	to := rapid.IntRange(0, len(seeded)-1).Draw(t, "to")

	want := ids(seeded)
	moved := want[from]
	want = slices.Delete(want, from, from+1)
	want = slices.Insert(want, to, moved)

	list, err := svc.Move(ctx, seeded[from].ID, to)
	require.NoError(t, err)
	require.Equal(t, want, ids(list))

	var before, after []int64
	for _, n := range seeded {
		before = append(before, n.Order)
	}
	for _, n := range list {
		after = append(after, n.Order)
	}
	require.Equal(t, before, after, "move reuses the same order values")
}

func TestMove_MatchesSliceMove_Properties(t *testing.T) {
	t.Parallel()
	rapid.Check(t, testMove_MatchesSliceMove)
}

func TestMove_IndexOutOfRange(t *testing.T) {
	svc, done := newTestService(t)
	defer done()

	seeded := seed(t, svc, "A", "B")
	_, err := svc.Move(context.Background(), seeded[0].ID, 2)
	assert.ErrorIs(t, err, ErrValidation)
	_, err = svc.Move(context.Background(), seeded[0].ID, -1)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMovePairs_OnlyTouchesSpan(t *testing.T) {
	notes := []models.Note{
		{ID: "a", Order: 1},
		{ID: "b", Order: 4},
		{ID: "c", Order: 5},
		{ID: "d", Order: 9},
	}

	pairs := MovePairs(notes, 2, 0)
	assert.Equal(t, []models.OrderAssignment{
		{ID: "c", Order: 1},
		{ID: "a", Order: 4},
		{ID: "b", Order: 5},
	}, pairs)
}

// =============================================================================
// Metrics
// =============================================================================

func TestReorderMetrics(t *testing.T) {
	m := metrics.New()
	svc, done := newTestService(t, WithMetrics(m))
	defer done()
	ctx := context.Background()

	seeded := seed(t, svc, "A", "B", "C")

	_, err := svc.ReorderSingle(ctx, seeded[0].ID, 3)
	require.ErrorIs(t, err, ErrConflict)
	_, err = svc.ReorderBulk(ctx, []models.OrderAssignment{
		{ID: seeded[0].ID, Order: 3},
		{ID: seeded[2].ID, Order: 1},
	})
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReorderOps.WithLabelValues("single", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReorderOps.WithLabelValues("bulk", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotesReordered))
}
