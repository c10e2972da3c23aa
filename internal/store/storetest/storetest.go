// Package storetest holds behavior checks shared by every store.Store
// implementation.
package storetest

import (
	"context"
	"fmt"
	"testing"
	"time"

	"noteboard/internal/models"
	"noteboard/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Run exercises st. newStore must return an empty store each call.
func Run(t *testing.T, newStore func(t *testing.T) store.Store) {
	t.Run("AppendAssignsMaxPlusOne", func(t *testing.T) { testAppend(t, newStore(t)) })
	t.Run("AppendStopsAtMaxOrder", func(t *testing.T) { testAppendAtMax(t, newStore(t)) })
	t.Run("ApplyOrdersFromMinOrder", func(t *testing.T) { testApplyFromMin(t, newStore(t)) })
	t.Run("CreateRejectsTakenOrder", func(t *testing.T) { testCreateConflict(t, newStore(t)) })
	t.Run("UpdateAndDelete", func(t *testing.T) { testUpdateDelete(t, newStore(t)) })
	t.Run("ApplyOrdersSwap", func(t *testing.T) { testApplySwap(t, newStore(t)) })
	t.Run("ApplyOrdersUnknownRollsBack", func(t *testing.T) { testApplyUnknown(t, newStore(t)) })
	t.Run("ApplyOrdersConflictRollsBack", func(t *testing.T) { testApplyConflict(t, newStore(t)) })
}

func note(content string) models.Note {
	return models.Note{
		ID:        uuid.NewString(),
		Content:   content,
		Color:     models.ColorDefault,
		CreatedAt: time.Now().UTC().Truncate(time.Millisecond),
	}
}

func appendN(t *testing.T, st store.Store, n int) []models.Note {
	t.Helper()
	out := make([]models.Note, 0, n)
	for i := range n {
		created, err := st.AppendNote(context.Background(), note(fmt.Sprintf("note %d", i)))
		require.NoError(t, err)
		out = append(out, created)
	}
	return out
}

func orders(t *testing.T, st store.Store) map[string]int64 {
	t.Helper()
	list, err := st.ListNotes(context.Background())
	require.NoError(t, err)
	m := make(map[string]int64, len(list))
	for _, n := range list {
		m[n.ID] = n.Order
	}
	return m
}

func testAppend(t *testing.T, st store.Store) {
	ctx := context.Background()
	created := appendN(t, st, 3)
	for i, n := range created {
		assert.Equal(t, int64(i+1), n.Order)
	}

	got, err := st.GetNote(ctx, created[1].ID)
	require.NoError(t, err)
	assert.Equal(t, created[1].Content, got.Content)
	assert.True(t, created[1].CreatedAt.Equal(got.CreatedAt))

	// A gap left by a delete at the end is not reused below the max.
	require.NoError(t, st.DeleteNote(ctx, created[1].ID))
	next, err := st.AppendNote(ctx, note("next"))
	require.NoError(t, err)
	assert.Equal(t, int64(4), next.Order)
}

func testAppendAtMax(t *testing.T, st store.Store) {
	ctx := context.Background()
	top := note("top")
	top.Order = models.MaxOrder
	require.NoError(t, st.CreateNote(ctx, top))

	_, err := st.AppendNote(ctx, note("next"))
	assert.ErrorIs(t, err, store.ErrOrderConflict)
	assert.Equal(t, map[string]int64{top.ID: models.MaxOrder}, orders(t, st))
}

func testApplyFromMin(t *testing.T, st store.Store) {
	ctx := context.Background()
	low, high := note("low"), note("high")
	low.Order, high.Order = models.MinOrder, models.MaxOrder
	require.NoError(t, st.CreateNote(ctx, low))
	require.NoError(t, st.CreateNote(ctx, high))

	updated, err := st.ApplyOrders(ctx, []models.OrderAssignment{
		{ID: low.ID, Order: 5},
		{ID: high.ID, Order: models.MinOrder},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, map[string]int64{low.ID: 5, high.ID: models.MinOrder}, orders(t, st))
}

func testCreateConflict(t *testing.T, st store.Store) {
	ctx := context.Background()
	n := note("explicit")
	n.Order = 10
	require.NoError(t, st.CreateNote(ctx, n))

	dup := note("dup")
	dup.Order = 10
	err := st.CreateNote(ctx, dup)
	assert.ErrorIs(t, err, store.ErrOrderConflict)

	_, err = st.GetNote(ctx, dup.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func testUpdateDelete(t *testing.T, st store.Store) {
	ctx := context.Background()
	created := appendN(t, st, 2)

	n := created[0]
	n.Content = "changed"
	n.Color = models.ColorRed
	require.NoError(t, st.UpdateNote(ctx, n))

	got, err := st.GetNote(ctx, n.ID)
	require.NoError(t, err)
	assert.Equal(t, "changed", got.Content)
	assert.Equal(t, models.ColorRed, got.Color)

	n.Order = created[1].Order
	assert.ErrorIs(t, st.UpdateNote(ctx, n), store.ErrOrderConflict)

	missing := note("missing")
	assert.ErrorIs(t, st.UpdateNote(ctx, missing), store.ErrNotFound)
	assert.ErrorIs(t, st.DeleteNote(ctx, missing.ID), store.ErrNotFound)

	require.NoError(t, st.DeleteNote(ctx, created[0].ID))
	assert.Equal(t, map[string]int64{created[1].ID: 2}, orders(t, st))
}

func testApplySwap(t *testing.T, st store.Store) {
	created := appendN(t, st, 3)

	updated, err := st.ApplyOrders(context.Background(), []models.OrderAssignment{
		{ID: created[0].ID, Order: 3},
		{ID: created[2].ID, Order: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)
	assert.Equal(t, map[string]int64{
		created[0].ID: 3,
		created[1].ID: 2,
		created[2].ID: 1,
	}, orders(t, st))
}

func testApplyUnknown(t *testing.T, st store.Store) {
	created := appendN(t, st, 2)
	before := orders(t, st)

	_, err := st.ApplyOrders(context.Background(), []models.OrderAssignment{
		{ID: created[0].ID, Order: 5},
		{ID: uuid.NewString(), Order: 6},
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Equal(t, before, orders(t, st))
}

func testApplyConflict(t *testing.T, st store.Store) {
	created := appendN(t, st, 3)
	before := orders(t, st)

	// Moves one note onto an untouched note's order.
	_, err := st.ApplyOrders(context.Background(), []models.OrderAssignment{
		{ID: created[0].ID, Order: 2},
	})
	assert.ErrorIs(t, err, store.ErrOrderConflict)
	assert.Equal(t, before, orders(t, st))
}
