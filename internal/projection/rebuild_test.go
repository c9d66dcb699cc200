package projection

import (
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disha/internal/audit"
	lifecyclemodels "disha/internal/lifecycle/models"
	sosmodels "disha/internal/sos/models"
	sosstore "disha/internal/sos/store"
	travelmodels "disha/internal/travel/models"
	travelstore "disha/internal/travel/store"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
)

type rebuildFixture struct {
	rebuilder *Rebuilder
	log       *audit.MemoryLog
	cases     *sosstore.MemoryStore
	letters   *travelstore.MemoryStore
	views     *MemoryViewStore
}

func newRebuildFixture(t *testing.T) *rebuildFixture {
	t.Helper()
	f := &rebuildFixture{
		log:     audit.NewMemoryLog(),
		cases:   sosstore.NewMemoryStore(),
		letters: travelstore.NewMemoryStore(),
		views:   NewMemoryViewStore(),
	}
	f.rebuilder = NewRebuilder(f.log, f.cases, f.letters, f.views, slog.New(slog.DiscardHandler))
	return f
}

func (f *rebuildFixture) appendPipeline(t *testing.T, candID id.CandidateID, from, to lifecyclemodels.PipelineStage, payload lifecyclemodels.Payload) {
	t.Helper()
	rec := lifecyclemodels.TransitionRecord{
		ID:          uuid.New(),
		CandidateID: candID,
		Axis:        lifecyclemodels.AxisPipeline,
		FromState:   string(from),
		ToState:     string(to),
		ActorRole:   id.RoleCenterManager,
		ActorID:     "cm-1",
		Payload:     payload,
		Timestamp:   time.Now().UTC(),
	}
	require.NoError(t, f.log.Append(t.Context(), &rec))
}

func TestRebuildReadyForMigrationFoldsFullHistory(t *testing.T) {
	f := newRebuildFixture(t)

	waiting := id.NewCandidateID()
	batchID := id.NewBatchID()
	f.appendPipeline(t, waiting, "", lifecyclemodels.StageMobilized, nil)
	f.appendPipeline(t, waiting, lifecyclemodels.StageMobilized, lifecyclemodels.StageReadyForMigration,
		lifecyclemodels.Payload{lifecyclemodels.PayloadBatchID: batchID.String()})

	migrated := id.NewCandidateID()
	f.appendPipeline(t, migrated, "", lifecyclemodels.StageMobilized, nil)
	f.appendPipeline(t, migrated, lifecyclemodels.StageMobilized, lifecyclemodels.StageReadyForMigration, nil)
	f.appendPipeline(t, migrated, lifecyclemodels.StageReadyForMigration, lifecyclemodels.StageMigrated, nil)

	snap, err := f.rebuilder.Rebuild(t.Context(), ViewReadyForMigration)
	require.NoError(t, err)

	entries, _ := snapshotEntries[MigrationEntry](t, f.views, ViewReadyForMigration)
	require.Len(t, entries, 1, "only the candidate still waiting belongs in the view")
	assert.Equal(t, waiting.String(), entries[0].CandidateID)
	assert.Equal(t, batchID.String(), entries[0].BatchID)
	assert.Positive(t, snap.Version)
}

func TestRebuildKeepsVersionMonotonic(t *testing.T) {
	f := newRebuildFixture(t)
	candID := id.NewCandidateID()
	f.appendPipeline(t, candID, lifecyclemodels.StageMobilized, lifecyclemodels.StageReadyForMigration, nil)

	first, err := f.rebuilder.Rebuild(t.Context(), ViewReadyForMigration)
	require.NoError(t, err)
	second, err := f.rebuilder.Rebuild(t.Context(), ViewReadyForMigration)
	require.NoError(t, err)
	assert.Greater(t, second.Version, first.Version)
	assert.Len(t, second.Entries, 1)
}

func TestRebuildOpenCriticalSOSFromCaseStore(t *testing.T) {
	f := newRebuildFixture(t)

	critical := sosmodels.Case{
		ID:          id.NewCaseID(),
		CandidateID: id.NewCandidateID(),
		Category:    "safety",
		Priority:    sosmodels.PriorityCritical,
		Status:      sosmodels.StatusOpen,
		Version:     1,
		CreatedAt:   time.Now().UTC(),
	}
	require.NoError(t, f.cases.Create(t.Context(), &critical))

	resolved := critical
	resolved.ID = id.NewCaseID()
	resolved.Status = sosmodels.StatusResolved
	require.NoError(t, f.cases.Create(t.Context(), &resolved))

	low := critical
	low.ID = id.NewCaseID()
	low.Priority = sosmodels.PriorityLow
	require.NoError(t, f.cases.Create(t.Context(), &low))

	_, err := f.rebuilder.Rebuild(t.Context(), ViewOpenCriticalSOS)
	require.NoError(t, err)

	entries, _ := snapshotEntries[SOSEntry](t, f.views, ViewOpenCriticalSOS)
	require.Len(t, entries, 1)
	assert.Equal(t, critical.ID.String(), entries[0].CaseID)
}

func TestRebuildBatchTravelStatusFromLetterStore(t *testing.T) {
	f := newRebuildFixture(t)
	now := time.Now().UTC()

	for _, status := range []travelmodels.Status{travelmodels.StatusNotRequested, travelmodels.StatusAvailable} {
		req := travelmodels.Request{
			ID:        id.NewLetterID(),
			BatchID:   id.NewBatchID(),
			Status:    status,
			Version:   1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		require.NoError(t, f.letters.Create(t.Context(), &req))
	}

	_, err := f.rebuilder.Rebuild(t.Context(), ViewBatchTravelStatus)
	require.NoError(t, err)

	entries, _ := snapshotEntries[TravelEntry](t, f.views, ViewBatchTravelStatus)
	assert.Len(t, entries, 2)
}

func TestRebuildUnknownViewIsNotFound(t *testing.T) {
	f := newRebuildFixture(t)
	_, err := f.rebuilder.Rebuild(t.Context(), "everything")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}
