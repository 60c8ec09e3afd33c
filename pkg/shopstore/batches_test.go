package shopstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedPowder(t *testing.T, db DBTX, color string, onHand float64) *Powder {
	t.Helper()
	p, err := CreatePowder(context.Background(), db, NewPowderParams{
		Color:    color,
		OnHandKg: onHand,
	}, testNow(t))
	require.NoError(t, err)
	return p
}

func seedBatch(t *testing.T, db DBTX, powderID int64, startWeight float64, startedAt time.Time) *Batch {
	t.Helper()
	b, err := CreateBatch(context.Background(), db, NewBatchParams{
		PowderID:      powderID,
		Operator:      "dana",
		StartWeightKg: startWeight,
		StartedAt:     startedAt,
	})
	require.NoError(t, err)
	return b
}

func TestCreateAndGetBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := testNow(t)

	powder := seedPowder(t, db, "Gloss Black", 12)
	created := seedBatch(t, db, powder.ID, 10.0, now)

	assert.NotZero(t, created.ID)
	assert.Equal(t, "primary", created.Role)
	assert.True(t, created.Open())

	got, err := GetBatch(ctx, db, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, powder.ID, got.PowderID)
	assert.Equal(t, 10.0, got.StartWeightKg)
	assert.True(t, got.StartedAt.Equal(now))
	assert.Nil(t, got.EndedAt)
	assert.Nil(t, got.UsedKg)
}

func TestGetBatchNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := GetBatch(context.Background(), db, 42)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListOpenAndRecentBatches(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := testNow(t)

	powder := seedPowder(t, db, "Matte White", 20)
	b1 := seedBatch(t, db, powder.ID, 10.0, now)
	b2 := seedBatch(t, db, powder.ID, 8.0, now.Add(time.Hour))

	open, err := ListOpenBatches(ctx, db)
	require.NoError(t, err)
	require.Len(t, open, 2)

	require.NoError(t, FinalizeBatch(ctx, db, b1.ID, now.Add(2*time.Hour), 7.5, 2.5, 120))

	open, err = ListOpenBatches(ctx, db)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, b2.ID, open[0].ID)

	recent, err := ListRecentBatches(ctx, db, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, b1.ID, recent[0].ID)
	require.NotNil(t, recent[0].UsedKg)
	assert.Equal(t, 2.5, *recent[0].UsedKg)
	assert.False(t, recent[0].Open())
}

func TestFinalizeBatch(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := testNow(t)

	powder := seedPowder(t, db, "Candy Red", 15)
	batch := seedBatch(t, db, powder.ID, 10.0, now)

	endedAt := now.Add(90 * time.Minute)
	require.NoError(t, FinalizeBatch(ctx, db, batch.ID, endedAt, 7.5, 2.5, 90))

	got, err := GetBatch(ctx, db, batch.ID)
	require.NoError(t, err)
	require.NotNil(t, got.EndedAt)
	assert.True(t, got.EndedAt.Equal(endedAt))
	require.NotNil(t, got.EndWeightKg)
	assert.Equal(t, 7.5, *got.EndWeightKg)
	require.NotNil(t, got.DurationMin)
	assert.Equal(t, 90.0, *got.DurationMin)

	t.Run("second finalize rejected", func(t *testing.T) {
		err := FinalizeBatch(ctx, db, batch.ID, endedAt.Add(time.Hour), 7.0, 3.0, 150)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})

	t.Run("missing batch rejected", func(t *testing.T) {
		err := FinalizeBatch(ctx, db, 999, endedAt, 7.5, 2.5, 90)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrNotFound))
	})
}
