//go:build integration

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disha/internal/sos/models"
	id "disha/pkg/domain"
	"disha/pkg/platform/sentinel"
	"disha/pkg/testutil/containers"
)

func pgCase(candidateID id.CandidateID, priority models.Priority) *models.Case {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &models.Case{
		ID:          id.NewCaseID(),
		CandidateID: candidateID,
		Category:    "safety",
		Priority:    priority,
		Status:      models.StatusOpen,
		Description: "no contact since arrival",
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestPostgresStoreCaseRoundTrip(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.DB)
	ctx := context.Background()

	c := pgCase(id.NewCandidateID(), models.PriorityHigh)
	require.NoError(t, store.Create(ctx, c))
	assert.ErrorIs(t, store.Create(ctx, c), sentinel.ErrConflict)

	found, err := store.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.Category, found.Category)
	assert.Equal(t, models.StatusOpen, found.Status)
	assert.Nil(t, found.ResolvedAt)

	_, err = store.FindByID(ctx, id.NewCaseID())
	assert.ErrorIs(t, err, sentinel.ErrNotFound)

	byCandidate, err := store.ListByCandidate(ctx, c.CandidateID)
	require.NoError(t, err)
	assert.Len(t, byCandidate, 1)
}

func TestPostgresStoreCaseResolution(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.DB)
	ctx := context.Background()

	c := pgCase(id.NewCandidateID(), models.PriorityCritical)
	require.NoError(t, store.Create(ctx, c))

	resolvedAt := time.Now().UTC().Truncate(time.Microsecond)
	resolved := *c
	resolved.Status = models.StatusResolved
	resolved.ResolutionNote = "candidate reached by phone"
	resolved.ResolvedAt = &resolvedAt
	resolved.Version = 2
	resolved.UpdatedAt = resolvedAt
	require.NoError(t, store.Update(ctx, &resolved, 1))

	stale := *c
	stale.Version = 2
	assert.ErrorIs(t, store.Update(ctx, &stale, 1), sentinel.ErrConflict)

	found, err := store.FindByID(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusResolved, found.Status)
	require.NotNil(t, found.ResolvedAt)
	assert.Equal(t, resolvedAt, found.ResolvedAt.UTC())
}

func TestPostgresStoreListOpen(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresStore(pg.DB)
	ctx := context.Background()

	critical := pgCase(id.NewCandidateID(), models.PriorityCritical)
	low := pgCase(id.NewCandidateID(), models.PriorityLow)
	require.NoError(t, store.Create(ctx, critical))
	require.NoError(t, store.Create(ctx, low))

	resolvedAt := time.Now().UTC().Truncate(time.Microsecond)
	done := pgCase(id.NewCandidateID(), models.PriorityCritical)
	require.NoError(t, store.Create(ctx, done))
	closed := *done
	closed.Status = models.StatusResolved
	closed.ResolvedAt = &resolvedAt
	closed.Version = 2
	require.NoError(t, store.Update(ctx, &closed, 1))

	open, err := store.ListOpen(ctx, "")
	require.NoError(t, err)
	assert.Len(t, open, 2)

	criticalOnly, err := store.ListOpen(ctx, models.PriorityCritical)
	require.NoError(t, err)
	require.Len(t, criticalOnly, 1)
	assert.Equal(t, critical.ID, criticalOnly[0].ID)
}
