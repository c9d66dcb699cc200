//go:build integration

package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disha/pkg/platform/sentinel"
	"disha/pkg/testutil/containers"
)

func TestPostgresOutboxLifecycle(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	outbox := NewPostgresOutbox(pg.DB)
	ctx := context.Background()

	require.NoError(t, outbox.Enqueue(ctx, TopicTransitions, "cand-1", []byte(`{"n":1}`)))
	require.NoError(t, outbox.Enqueue(ctx, TopicTransitions, "cand-2", []byte(`{"n":2}`)))

	batch, err := outbox.NextBatch(ctx, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, batch, 2)
	assert.Equal(t, "cand-1", batch[0].Key)
	assert.Equal(t, TopicTransitions, batch[0].Topic)

	// Published entries leave the queue.
	require.NoError(t, outbox.MarkPublished(ctx, batch[0].ID))

	// Failed entries back off until their next attempt time.
	retryAt := time.Now().Add(time.Hour)
	require.NoError(t, outbox.MarkFailed(ctx, batch[1].ID, "broker unreachable", retryAt))

	due, err := outbox.NextBatch(ctx, time.Now().Add(time.Second), 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	later, err := outbox.NextBatch(ctx, retryAt.Add(time.Second), 10)
	require.NoError(t, err)
	require.Len(t, later, 1)
	assert.Equal(t, 1, later[0].Attempts)
	assert.Equal(t, "broker unreachable", later[0].LastError)
}

func TestPostgresOutboxDeadLetter(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	outbox := NewPostgresOutbox(pg.DB)
	ctx := context.Background()

	require.NoError(t, outbox.Enqueue(ctx, TopicTransitions, "cand-9", []byte(`{"n":9}`)))
	batch, err := outbox.NextBatch(ctx, time.Now().Add(time.Second), 1)
	require.NoError(t, err)
	require.Len(t, batch, 1)

	require.NoError(t, outbox.DeadLetter(ctx, batch[0].ID, "receiver gone"))

	remaining, err := outbox.NextBatch(ctx, time.Now().Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, remaining)

	dead, err := outbox.ListDeadLetters(ctx, 10)
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, "receiver gone", dead[0].Reason)
	assert.Equal(t, "cand-9", dead[0].Key)
	assert.Equal(t, 1, dead[0].Attempts, "the exhausting attempt itself is counted")
}

func TestPostgresSubscriberStore(t *testing.T) {
	pg := containers.NewPostgresContainer(t)
	store := NewPostgresSubscriberStore(pg.DB)
	ctx := context.Background()

	sub := Subscriber{
		ID:         uuid.New(),
		Name:       "placement-portal",
		URL:        "https://portal.example.com/hooks",
		SecretHash: "$2a$10$notarealhash",
		Active:     true,
		CreatedAt:  time.Now().UTC().Truncate(time.Microsecond),
	}
	require.NoError(t, store.Create(ctx, sub))
	assert.ErrorIs(t, store.Create(ctx, sub), sentinel.ErrConflict)

	found, err := store.FindByID(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, sub.URL, found.URL)
	assert.True(t, found.Active)

	active, err := store.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, store.Deactivate(ctx, sub.ID))
	active, err = store.ListActive(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	assert.ErrorIs(t, store.Deactivate(ctx, uuid.New()), sentinel.ErrNotFound)
}
