package shopstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndGetJob(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := testNow(t)

	due := now.Add(72 * time.Hour)
	created, err := CreateJob(ctx, db, NewJobParams{
		Company:     "Acme Fab",
		Color:       "Gloss Black",
		Description: "16 railing panels",
		Priority:    "Rush",
		DueBy:       &due,
		OnScreen:    true,
	}, now)
	require.NoError(t, err)
	assert.NotZero(t, created.ID)
	assert.Equal(t, "Intake", created.Status, "status defaults to Intake")

	got, err := GetJob(ctx, db, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Acme Fab", got.Company)
	assert.Equal(t, "Rush", got.Priority)
	require.NotNil(t, got.DueBy)
	assert.True(t, got.DueBy.Equal(due))
	assert.True(t, got.OnScreen)
	assert.False(t, got.Archived)
	assert.Nil(t, got.CompletedAt)
}

func TestGetJobNotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := GetJob(context.Background(), db, 123)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListSprayableJobs(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := testNow(t)

	mk := func(company, priority string, onScreen bool) *Job {
		j, err := CreateJob(ctx, db, NewJobParams{
			Company:  company,
			Priority: priority,
			OnScreen: onScreen,
		}, now)
		require.NoError(t, err)
		return j
	}

	standard := mk("Standard Co", "Standard", true)
	emergency := mk("Emergency Co", "Emergency", true)
	rush := mk("Rush Co", "Rush", true)
	semiRush := mk("Semi Co", "Semi Rush", true)
	mk("Hidden Co", "Emergency", false)

	finished := mk("Finished Co", "Rush", true)
	require.NoError(t, MarkJobsFinished(ctx, db, []int64{finished.ID}, now))

	jobs, err := ListSprayableJobs(ctx, db)
	require.NoError(t, err)
	require.Len(t, jobs, 4)

	assert.Equal(t, emergency.ID, jobs[0].ID)
	assert.Equal(t, rush.ID, jobs[1].ID)
	assert.Equal(t, semiRush.ID, jobs[2].ID)
	assert.Equal(t, standard.ID, jobs[3].ID)
}

func TestListAttachCandidates(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := testNow(t)

	powder := seedPowder(t, db, "Gloss Black", 12)
	batch := seedBatch(t, db, powder.ID, 10.0, now)
	attached := seedJob(t, db, "Attached Co")
	free := seedJob(t, db, "Free Co")

	_, err := AttachJob(ctx, db, batch.ID, attached.ID)
	require.NoError(t, err)

	candidates, err := ListAttachCandidates(ctx, db, batch.ID)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, free.ID, candidates[0].ID)

	t.Run("other batches do not exclude", func(t *testing.T) {
		other := seedBatch(t, db, powder.ID, 5.0, now)
		_, err := AttachJob(ctx, db, other.ID, free.ID)
		require.NoError(t, err)

		// free is attached to other but still a candidate for batch.
		candidates, err := ListAttachCandidates(ctx, db, batch.ID)
		require.NoError(t, err)
		require.Len(t, candidates, 1)
		assert.Equal(t, free.ID, candidates[0].ID)
	})
}

func TestMarkJobsSprayed(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	jobA := seedJob(t, db, "Acme Fab")
	jobB := seedJob(t, db, "Borealis Inc")

	require.NoError(t, MarkJobsSprayed(ctx, db, []int64{jobA.ID}))

	got, err := GetJob(ctx, db, jobA.ID)
	require.NoError(t, err)
	assert.Equal(t, "Sprayed", got.Status)

	got, err = GetJob(ctx, db, jobB.ID)
	require.NoError(t, err)
	assert.Equal(t, "Intake", got.Status)

	t.Run("empty list is a no-op", func(t *testing.T) {
		require.NoError(t, MarkJobsSprayed(ctx, db, nil))
	})
}

func TestMarkJobsFinished(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	now := testNow(t)

	job := seedJob(t, db, "Acme Fab")
	require.True(t, job.OnScreen)

	require.NoError(t, MarkJobsFinished(ctx, db, []int64{job.ID}, now))

	got, err := GetJob(ctx, db, job.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CompletedAt)
	assert.True(t, got.CompletedAt.Equal(now))
	assert.False(t, got.OnScreen)

	t.Run("empty list is a no-op", func(t *testing.T) {
		require.NoError(t, MarkJobsFinished(ctx, db, nil, now))
	})
}
