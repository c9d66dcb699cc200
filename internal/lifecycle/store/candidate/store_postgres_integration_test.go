//go:build integration

package candidate

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disha/internal/lifecycle/models"
	id "disha/pkg/domain"
	"disha/pkg/platform/sentinel"
	"disha/pkg/testutil/containers"
)

func TestPostgresStoreRoundTrip(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.DB)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	cand := &models.Candidate{
		ID:        id.NewCandidateID(),
		Name:      "Asha Kumari",
		Phone:     "9800000001",
		District:  "Gaya",
		State:     models.NewLifecycleState(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Create(ctx, cand))

	found, err := store.FindByID(ctx, cand.ID)
	require.NoError(t, err)
	assert.Equal(t, cand.Name, found.Name)
	assert.Equal(t, models.StageMobilized, found.State.Pipeline)
	assert.True(t, found.BatchID.IsNil())
	assert.Equal(t, int64(1), found.Version)

	assert.ErrorIs(t, store.Create(ctx, cand), sentinel.ErrConflict)

	_, err = store.FindByID(ctx, id.NewCandidateID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestPostgresStoreUpdateCAS(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.DB)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Microsecond)
	cand := &models.Candidate{
		ID:        id.NewCandidateID(),
		Name:      "Ravi Prasad",
		Phone:     "9800000002",
		District:  "Patna",
		State:     models.NewLifecycleState(),
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, store.Create(ctx, cand))

	updated := *cand
	updated.BatchID = id.NewBatchID()
	updated.State = updated.State.WithValue(models.AxisCounselling, string(models.CounsellingStage1))
	updated.Version = 2
	updated.UpdatedAt = now.Add(time.Minute)
	require.NoError(t, store.Update(ctx, &updated, 1))

	// A writer still holding version 1 must lose.
	stale := *cand
	stale.Version = 2
	assert.ErrorIs(t, store.Update(ctx, &stale, 1), sentinel.ErrConflict)

	found, err := store.FindByID(ctx, cand.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), found.Version)
	assert.Equal(t, updated.BatchID, found.BatchID)
	assert.Equal(t, models.CounsellingStage1, found.State.Counselling)

	missing := updated
	missing.ID = id.NewCandidateID()
	assert.ErrorIs(t, store.Update(ctx, &missing, 2), sentinel.ErrNotFound)
}

func TestPostgresStoreListByBatch(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.DB)
	ctx := context.Background()

	batchID := id.NewBatchID()
	base := time.Now().UTC().Truncate(time.Microsecond)
	for i, name := range []string{"First", "Second"} {
		cand := &models.Candidate{
			ID:        id.NewCandidateID(),
			Name:      name,
			Phone:     "98000000",
			District:  "Gaya",
			BatchID:   batchID,
			State:     models.NewLifecycleState(),
			Version:   1,
			CreatedAt: base.Add(time.Duration(i) * time.Second),
			UpdatedAt: base.Add(time.Duration(i) * time.Second),
		}
		require.NoError(t, store.Create(ctx, cand))
	}

	listed, err := store.ListByBatch(ctx, batchID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "First", listed[0].Name)
	assert.Equal(t, "Second", listed[1].Name)

	empty, err := store.ListByBatch(ctx, id.NewBatchID())
	require.NoError(t, err)
	assert.Empty(t, empty)
}
