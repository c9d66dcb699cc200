package projection

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disha/internal/dispatch"
	lifecyclemodels "disha/internal/lifecycle/models"
	"disha/internal/platform/kafka/consumer"
	"disha/internal/sos"
	"disha/internal/travel"
)

func newTestBuilder(t *testing.T) (*Builder, *MemoryViewStore) {
	t.Helper()
	views := NewMemoryViewStore()
	b := NewBuilder(views, dispatch.NewMemoryDeduper(), slog.New(slog.DiscardHandler))
	return b, views
}

func encode(t *testing.T, topic string, event interface{ Encode() ([]byte, error) }) *consumer.Message {
	t.Helper()
	value, err := event.Encode()
	require.NoError(t, err)
	return &consumer.Message{Topic: topic, Value: value}
}

func snapshotEntries[T any](t *testing.T, views *MemoryViewStore, view string) ([]T, int64) {
	t.Helper()
	snap, err := views.Snapshot(t.Context(), view)
	require.NoError(t, err)
	out := make([]T, 0, len(snap.Entries))
	for _, raw := range snap.Entries {
		var entry T
		require.NoError(t, json.Unmarshal(raw, &entry))
		out = append(out, entry)
	}
	return out, snap.Version
}

func TestReadyForMigrationViewTracksArrivalsAndDepartures(t *testing.T) {
	b, views := newTestBuilder(t)
	candID := uuid.NewString()

	arrive := dispatch.Event{
		CorrelationID: uuid.New(),
		CandidateID:   candID,
		BatchID:       uuid.NewString(),
		Axis:          string(lifecyclemodels.AxisPipeline),
		FromState:     string(lifecyclemodels.StageMobilized),
		ToState:       string(lifecyclemodels.StageReadyForMigration),
		Timestamp:     time.Now().UTC(),
	}
	require.NoError(t, b.Handle(t.Context(), encode(t, dispatch.TopicTransitions, arrive)))

	entries, version := snapshotEntries[MigrationEntry](t, views, ViewReadyForMigration)
	require.Len(t, entries, 1)
	assert.Equal(t, candID, entries[0].CandidateID)
	assert.Equal(t, int64(1), version)

	depart := dispatch.Event{
		CorrelationID: uuid.New(),
		CandidateID:   candID,
		Axis:          string(lifecyclemodels.AxisPipeline),
		FromState:     string(lifecyclemodels.StageReadyForMigration),
		ToState:       string(lifecyclemodels.StageMigrated),
		Timestamp:     time.Now().UTC(),
	}
	require.NoError(t, b.Handle(t.Context(), encode(t, dispatch.TopicTransitions, depart)))

	entries, version = snapshotEntries[MigrationEntry](t, views, ViewReadyForMigration)
	assert.Empty(t, entries)
	assert.Equal(t, int64(2), version, "view version keeps increasing")
}

func TestDroppedCandidateLeavesMigrationView(t *testing.T) {
	b, views := newTestBuilder(t)
	candID := uuid.NewString()

	require.NoError(t, b.Handle(t.Context(), encode(t, dispatch.TopicTransitions, dispatch.Event{
		CorrelationID: uuid.New(),
		CandidateID:   candID,
		Axis:          string(lifecyclemodels.AxisPipeline),
		FromState:     string(lifecyclemodels.StageMobilized),
		ToState:       string(lifecyclemodels.StageReadyForMigration),
		Timestamp:     time.Now().UTC(),
	})))
	require.NoError(t, b.Handle(t.Context(), encode(t, dispatch.TopicTransitions, dispatch.Event{
		CorrelationID: uuid.New(),
		CandidateID:   candID,
		Axis:          string(lifecyclemodels.AxisPipeline),
		FromState:     string(lifecyclemodels.StageReadyForMigration),
		ToState:       string(lifecyclemodels.StageDropped),
		Timestamp:     time.Now().UTC(),
	})))

	entries, _ := snapshotEntries[MigrationEntry](t, views, ViewReadyForMigration)
	assert.Empty(t, entries)
}

func TestNonPipelineTransitionsAreIgnored(t *testing.T) {
	b, views := newTestBuilder(t)

	require.NoError(t, b.Handle(t.Context(), encode(t, dispatch.TopicTransitions, dispatch.Event{
		CorrelationID: uuid.New(),
		CandidateID:   uuid.NewString(),
		Axis:          string(lifecyclemodels.AxisCounselling),
		FromState:     string(lifecyclemodels.CounsellingStage2),
		ToState:       string(lifecyclemodels.CounsellingStage3),
		Timestamp:     time.Now().UTC(),
	})))

	entries, version := snapshotEntries[MigrationEntry](t, views, ViewReadyForMigration)
	assert.Empty(t, entries)
	assert.Zero(t, version)
}

func TestRedeliveryIsNotDoubleApplied(t *testing.T) {
	b, views := newTestBuilder(t)
	event := dispatch.Event{
		CorrelationID: uuid.New(),
		CandidateID:   uuid.NewString(),
		Axis:          string(lifecyclemodels.AxisPipeline),
		FromState:     string(lifecyclemodels.StageMobilized),
		ToState:       string(lifecyclemodels.StageReadyForMigration),
		Timestamp:     time.Now().UTC(),
	}
	require.NoError(t, b.Handle(t.Context(), encode(t, dispatch.TopicTransitions, event)))
	require.NoError(t, b.Handle(t.Context(), encode(t, dispatch.TopicTransitions, event)))

	entries, version := snapshotEntries[MigrationEntry](t, views, ViewReadyForMigration)
	assert.Len(t, entries, 1)
	assert.Equal(t, int64(1), version, "redelivery must not bump the version")
}

// flakySets fails its first n Set calls, then delegates.
type flakySets struct {
	*MemoryViewStore
	failures int
}

func (s *flakySets) Set(ctx context.Context, view, key string, value []byte) error {
	if s.failures > 0 {
		s.failures--
		return assert.AnError
	}
	return s.MemoryViewStore.Set(ctx, view, key, value)
}

func TestFailedApplyIsRetriedOnRedelivery(t *testing.T) {
	views := &flakySets{MemoryViewStore: NewMemoryViewStore(), failures: 1}
	b := NewBuilder(views, dispatch.NewMemoryDeduper(), slog.New(slog.DiscardHandler))
	candID := uuid.NewString()

	event := dispatch.Event{
		CorrelationID: uuid.New(),
		CandidateID:   candID,
		Axis:          string(lifecyclemodels.AxisPipeline),
		FromState:     string(lifecyclemodels.StageMobilized),
		ToState:       string(lifecyclemodels.StageReadyForMigration),
		Timestamp:     time.Now().UTC(),
	}
	msg := encode(t, dispatch.TopicTransitions, event)

	// The store fails on the first attempt; the handler must surface that so
	// the offset stays uncommitted.
	require.Error(t, b.Handle(t.Context(), msg))

	// The redelivery is not a duplicate: the failed apply never claimed the
	// correlation id, so the entry lands this time.
	require.NoError(t, b.Handle(t.Context(), msg))

	entries, _ := snapshotEntries[MigrationEntry](t, views.MemoryViewStore, ViewReadyForMigration)
	require.Len(t, entries, 1)
	assert.Equal(t, candID, entries[0].CandidateID)

	// And the successful apply did claim it.
	require.NoError(t, b.Handle(t.Context(), msg))
	entries, version := snapshotEntries[MigrationEntry](t, views.MemoryViewStore, ViewReadyForMigration)
	assert.Len(t, entries, 1)
	assert.Equal(t, int64(1), version)
}

func TestOpenCriticalSOSViewFollowsCaseLifecycle(t *testing.T) {
	b, views := newTestBuilder(t)
	caseID := uuid.NewString()

	raised := sos.Event{
		CorrelationID: uuid.New(),
		CaseID:        caseID,
		CandidateID:   uuid.NewString(),
		Priority:      "critical",
		Status:        "open",
		Timestamp:     time.Now().UTC(),
	}
	require.NoError(t, b.Handle(t.Context(), encode(t, sos.TopicCases, raised)))

	entries, _ := snapshotEntries[SOSEntry](t, views, ViewOpenCriticalSOS)
	require.Len(t, entries, 1)
	assert.Equal(t, caseID, entries[0].CaseID)

	resolved := raised
	resolved.CorrelationID = uuid.New()
	resolved.Status = "resolved"
	require.NoError(t, b.Handle(t.Context(), encode(t, sos.TopicCases, resolved)))

	entries, _ = snapshotEntries[SOSEntry](t, views, ViewOpenCriticalSOS)
	assert.Empty(t, entries)
}

func TestNonCriticalCasesNeverEnterTheView(t *testing.T) {
	b, views := newTestBuilder(t)

	require.NoError(t, b.Handle(t.Context(), encode(t, sos.TopicCases, sos.Event{
		CorrelationID: uuid.New(),
		CaseID:        uuid.NewString(),
		CandidateID:   uuid.NewString(),
		Priority:      "medium",
		Status:        "open",
		Timestamp:     time.Now().UTC(),
	})))

	entries, _ := snapshotEntries[SOSEntry](t, views, ViewOpenCriticalSOS)
	assert.Empty(t, entries)
}

func TestBatchTravelStatusViewTracksLatestStatus(t *testing.T) {
	b, views := newTestBuilder(t)
	batchID := uuid.NewString()
	letterID := uuid.NewString()

	require.NoError(t, b.Handle(t.Context(), encode(t, travel.TopicLetters, travel.Event{
		CorrelationID: uuid.New(),
		LetterID:      letterID,
		BatchID:       batchID,
		Status:        "not_requested",
		Timestamp:     time.Now().UTC(),
	})))
	require.NoError(t, b.Handle(t.Context(), encode(t, travel.TopicLetters, travel.Event{
		CorrelationID: uuid.New(),
		LetterID:      letterID,
		BatchID:       batchID,
		Status:        "requested",
		Timestamp:     time.Now().UTC(),
	})))

	entries, _ := snapshotEntries[TravelEntry](t, views, ViewBatchTravelStatus)
	require.Len(t, entries, 1, "one entry per batch")
	assert.Equal(t, "requested", entries[0].Status)
}

func TestMalformedEventsAreDroppedNotRetried(t *testing.T) {
	b, _ := newTestBuilder(t)
	msg := &consumer.Message{Topic: dispatch.TopicTransitions, Value: []byte("{broken")}
	require.NoError(t, b.Handle(t.Context(), msg))
}
