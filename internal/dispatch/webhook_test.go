package dispatch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disha/internal/platform/kafka/consumer"
)

func TestMemoryDeduperSeenOnlyAfterMark(t *testing.T) {
	ctx := context.Background()
	d := NewMemoryDeduper()

	// Checking is not claiming: an ID stays unseen until Mark records it.
	seen, err := d.Seen(ctx, "group-a", "corr-1")
	require.NoError(t, err)
	assert.False(t, seen)

	seen, err = d.Seen(ctx, "group-a", "corr-1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, d.Mark(ctx, "group-a", "corr-1"))

	seen, err = d.Seen(ctx, "group-a", "corr-1")
	require.NoError(t, err)
	assert.True(t, seen)

	// Other groups track their own progress.
	seen, err = d.Seen(ctx, "group-b", "corr-1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestSecretRoundTrip(t *testing.T) {
	secret, err := GenerateSecret()
	require.NoError(t, err)
	assert.Len(t, secret, 64)

	hash, err := HashSecret(secret)
	require.NoError(t, err)
	assert.NotEqual(t, secret, hash)

	assert.True(t, VerifySecret(hash, secret))
	assert.False(t, VerifySecret(hash, "wrong"))
}

func TestDelivererPostsToActiveSubscribers(t *testing.T) {
	ctx := context.Background()

	var hits atomic.Int32
	var gotCorrelation atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		gotCorrelation.Store(r.Header.Get("X-Disha-Correlation-Id"))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	store := NewMemorySubscriberStore()
	require.NoError(t, store.Create(ctx, Subscriber{ID: uuid.New(), Name: "mis-sync", URL: srv.URL, Active: true}))
	inactive := Subscriber{ID: uuid.New(), Name: "old", URL: srv.URL, Active: false}
	require.NoError(t, store.Create(ctx, inactive))

	deliverer := NewDeliverer(store, NewMemoryDeduper(), testLogger())

	event := Event{
		CorrelationID: uuid.New(),
		CandidateID:   uuid.NewString(),
		Axis:          "pipeline",
		FromState:     "mobilized",
		ToState:       "ready_for_migration",
		ActorRole:     "mobilizer",
		Timestamp:     time.Now().UTC(),
	}
	payload, err := event.Encode()
	require.NoError(t, err)
	msg := &consumer.Message{Topic: TopicTransitions, Value: payload}

	require.NoError(t, deliverer.Handle(ctx, msg))
	assert.Equal(t, int32(1), hits.Load(), "inactive subscribers must be skipped")
	assert.Equal(t, event.CorrelationID.String(), gotCorrelation.Load())

	// Redelivery of the same correlation id is a no-op.
	require.NoError(t, deliverer.Handle(ctx, msg))
	assert.Equal(t, int32(1), hits.Load())
}

func TestDelivererRetriesWhenEverySubscriberFails(t *testing.T) {
	ctx := context.Background()

	var hits atomic.Int32
	var healthy atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		if healthy.Load() {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := NewMemorySubscriberStore()
	require.NoError(t, store.Create(ctx, Subscriber{ID: uuid.New(), Name: "mis-sync", URL: srv.URL, Active: true}))

	deliverer := NewDeliverer(store, NewMemoryDeduper(), testLogger())

	event := Event{
		CorrelationID: uuid.New(),
		CandidateID:   uuid.NewString(),
		Axis:          "pipeline",
		FromState:     "mobilized",
		ToState:       "ready_for_migration",
		ActorRole:     "mobilizer",
		Timestamp:     time.Now().UTC(),
	}
	payload, err := event.Encode()
	require.NoError(t, err)
	msg := &consumer.Message{Topic: TopicTransitions, Value: payload}

	// Every post failing must surface as an error so the offset is not
	// committed and the broker redelivers.
	require.Error(t, deliverer.Handle(ctx, msg))
	assert.Equal(t, int32(1), hits.Load())

	// The redelivery finds the subscriber recovered and completes.
	healthy.Store(true)
	require.NoError(t, deliverer.Handle(ctx, msg))
	assert.Equal(t, int32(2), hits.Load())

	// Only now is the event marked: a further redelivery is a no-op.
	require.NoError(t, deliverer.Handle(ctx, msg))
	assert.Equal(t, int32(2), hits.Load())
}

func TestDelivererMarksWhenAnySubscriberSucceeds(t *testing.T) {
	ctx := context.Background()

	var goodHits, badHits atomic.Int32
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		goodHits.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		badHits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer bad.Close()

	store := NewMemorySubscriberStore()
	require.NoError(t, store.Create(ctx, Subscriber{ID: uuid.New(), Name: "good", URL: good.URL, Active: true}))
	require.NoError(t, store.Create(ctx, Subscriber{ID: uuid.New(), Name: "bad", URL: bad.URL, Active: true}))

	deliverer := NewDeliverer(store, NewMemoryDeduper(), testLogger())

	event := Event{
		CorrelationID: uuid.New(),
		CandidateID:   uuid.NewString(),
		Axis:          "pipeline",
		FromState:     "enrolled",
		ToState:       "in_training",
		ActorRole:     "center_manager",
		Timestamp:     time.Now().UTC(),
	}
	payload, err := event.Encode()
	require.NoError(t, err)
	msg := &consumer.Message{Topic: TopicTransitions, Value: payload}

	// A partial failure does not hold the event hostage: one acceptance is
	// enough to mark it delivered.
	require.NoError(t, deliverer.Handle(ctx, msg))
	assert.Equal(t, int32(1), goodHits.Load())
	assert.Equal(t, int32(1), badHits.Load())

	require.NoError(t, deliverer.Handle(ctx, msg))
	assert.Equal(t, int32(1), goodHits.Load(), "marked events are not re-posted")
	assert.Equal(t, int32(1), badHits.Load())
}

func TestDelivererDropsMalformedPayloads(t *testing.T) {
	deliverer := NewDeliverer(NewMemorySubscriberStore(), NewMemoryDeduper(), testLogger())
	msg := &consumer.Message{Topic: TopicTransitions, Value: []byte("not json")}
	assert.NoError(t, deliverer.Handle(context.Background(), msg))
}
