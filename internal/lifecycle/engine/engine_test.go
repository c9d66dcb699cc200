package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"disha/internal/audit"
	"disha/internal/dispatch"
	"disha/internal/lifecycle/models"
	"disha/internal/lifecycle/store/candidate"
	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
)

type fixture struct {
	engine *Engine
	store  *candidate.MemoryStore
	log    *audit.MemoryLog
	outbox *dispatch.MemoryOutbox
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := candidate.NewMemoryStore()
	log := audit.NewMemoryLog()
	outbox := dispatch.NewMemoryOutbox()
	return &fixture{
		engine: New(store, log, outbox),
		store:  store,
		log:    log,
		outbox: outbox,
	}
}

func (f *fixture) intake(t *testing.T) models.Candidate {
	t.Helper()
	cand, err := f.engine.Intake(context.Background(), IntakeInput{
		Name:      "Asha Kumari",
		Phone:     "+91-9830012345",
		District:  "Gaya",
		ActorRole: id.RoleMobilizer,
		ActorID:   "mob-17",
	})
	require.NoError(t, err)
	return cand
}

// step applies one transition using the candidate's current version and
// returns the updated aggregate.
func (f *fixture) step(t *testing.T, cand models.Candidate, axis models.Axis, to string, role id.Role, payload models.Payload) models.Candidate {
	t.Helper()
	updated, _, err := f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            axis,
		ToState:         to,
		ActorRole:       role,
		ActorID:         "actor-1",
		ExpectedVersion: cand.Version,
		Payload:         payload,
	})
	require.NoError(t, err, "%s -> %s on %s", cand.State.Value(axis), to, axis)
	return updated
}

func (f *fixture) outboxDepth(t *testing.T) int {
	t.Helper()
	due, err := f.outbox.NextBatch(context.Background(), time.Now().Add(time.Hour), 1000)
	require.NoError(t, err)
	return len(due)
}

func TestIntakeStartsAtVersionOne(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)

	assert.Equal(t, int64(1), cand.Version)
	assert.Equal(t, models.CounsellingNotStarted, cand.State.Counselling)
	assert.Equal(t, models.ConsentPending, cand.State.Consent)
	assert.Equal(t, models.DocumentsIncomplete, cand.State.Documents)
	assert.Equal(t, models.StageMobilized, cand.State.Pipeline)
	assert.True(t, cand.BatchID.IsNil())

	history, err := f.engine.History(context.Background(), cand.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 1, "intake is record one of the history")
	assert.Empty(t, history[0].FromState)
	assert.Equal(t, string(models.StageMobilized), history[0].ToState)

	assert.Equal(t, 1, f.outboxDepth(t), "intake emits one event")
}

func TestAcceptedTransitionCommitsStateAuditAndEvent(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)

	updated := f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage1), id.RoleCounsellor, nil)

	assert.Equal(t, models.CounsellingStage1, updated.State.Counselling)
	assert.Equal(t, int64(2), updated.Version)

	history, err := f.engine.History(context.Background(), cand.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	rec := history[1]
	assert.Equal(t, string(models.CounsellingNotStarted), rec.FromState)
	assert.Equal(t, string(models.CounsellingStage1), rec.ToState)
	assert.Equal(t, id.RoleCounsellor, rec.ActorRole)
	assert.Equal(t, models.CorrelationID(cand.ID, rec.ID), rec.CorrelationID)

	assert.Equal(t, 2, f.outboxDepth(t))
}

func TestUnknownTransitionRejectedWithoutSideEffects(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)

	_, _, err := f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            models.AxisCounselling,
		ToState:         string(models.CounsellingStage3),
		ActorRole:       id.RoleCounsellor,
		ExpectedVersion: cand.Version,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownTransition))

	current, getErr := f.engine.Candidate(context.Background(), cand.ID)
	require.NoError(t, getErr)
	assert.Equal(t, int64(1), current.Version, "rejection must not touch the aggregate")

	history, histErr := f.engine.History(context.Background(), cand.ID, 0, 0)
	require.NoError(t, histErr)
	assert.Len(t, history, 1, "rejection must not append to the audit log")
	assert.Equal(t, 1, f.outboxDepth(t), "rejection must not enqueue an event")
}

func TestRoleNotAllowedOnEdge(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)

	_, _, err := f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            models.AxisCounselling,
		ToState:         string(models.CounsellingStage1),
		ActorRole:       id.RoleCompanyHR,
		ExpectedVersion: cand.Version,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
}

func TestStaleVersionRejected(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)
	f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage1), id.RoleCounsellor, nil)

	// Retry with the pre-transition version: the classic double-submit.
	_, _, err := f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            models.AxisCounselling,
		ToState:         string(models.CounsellingStage1),
		ActorRole:       id.RoleCounsellor,
		ExpectedVersion: cand.Version,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeVersionConflict))

	current, getErr := f.engine.Candidate(context.Background(), cand.ID)
	require.NoError(t, getErr)
	assert.Equal(t, int64(2), current.Version, "the retry must not double-apply")
}

func TestGuardFailureReportsEveryUnmetPrecondition(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)

	_, _, err := f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            models.AxisPipeline,
		ToState:         string(models.StageReadyForMigration),
		ActorRole:       id.RoleMobilizer,
		ExpectedVersion: cand.Version,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeGuardFailed))

	var guardErr *GuardError
	require.True(t, errors.As(err, &guardErr))
	assert.ElementsMatch(t, []string{
		"counselling incomplete",
		"parent consent pending",
		"no batch assigned",
	}, guardErr.Reasons, "every failing guard must be reported, not just the first")
	assert.Len(t, guardErr.Results, 3)

	current, getErr := f.engine.Candidate(context.Background(), cand.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.StageMobilized, current.State.Pipeline)
	assert.Equal(t, int64(1), current.Version)
}

func TestBatchAssignmentThroughTransitionPayload(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)

	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage1), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage2), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage3), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingCompleted), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisConsent, string(models.ConsentObtained), id.RoleCounsellor, nil)

	batchID := id.NewBatchID()
	cand = f.step(t, cand, models.AxisPipeline, string(models.StageReadyForMigration), id.RoleMobilizer,
		models.Payload{models.PayloadBatchID: batchID.String()})

	assert.Equal(t, models.StageReadyForMigration, cand.State.Pipeline)
	assert.Equal(t, batchID, cand.BatchID)
}

func TestDropRequiresReasonAndIsTerminal(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)

	_, _, err := f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            models.AxisPipeline,
		ToState:         string(models.StageDropped),
		ActorRole:       id.RoleMobilizer,
		ExpectedVersion: cand.Version,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeGuardFailed))

	cand = f.step(t, cand, models.AxisPipeline, string(models.StageDropped), id.RoleMobilizer,
		models.Payload{models.PayloadReason: "family relocated"})
	assert.Equal(t, models.StageDropped, cand.State.Pipeline)

	// No pipeline edge leaves dropped.
	_, _, err = f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            models.AxisPipeline,
		ToState:         string(models.StageMobilized),
		ActorRole:       id.RolePPCAdmin,
		ExpectedVersion: cand.Version,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeUnknownTransition))

	// Counselling on a dropped candidate fails its activity guard.
	_, _, err = f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            models.AxisCounselling,
		ToState:         string(models.CounsellingStage1),
		ActorRole:       id.RoleCounsellor,
		ExpectedVersion: cand.Version,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeGuardFailed))
}

func TestConcurrentRequestsExactlyOneWinner(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			_, _, errs[n] = f.engine.RequestTransition(context.Background(), TransitionRequest{
				CandidateID:     cand.ID,
				Axis:            models.AxisCounselling,
				ToState:         string(models.CounsellingStage1),
				ActorRole:       id.RoleCounsellor,
				ExpectedVersion: 1,
			})
		}(i)
	}
	wg.Wait()

	var wins, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case dErrors.HasCode(err, dErrors.CodeVersionConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, workers-1, conflicts)

	current, err := f.engine.Candidate(context.Background(), cand.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), current.Version)

	history, err := f.engine.History(context.Background(), cand.ID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, history, 2, "losers must leave no audit trace")
}

// TestFullPlacementJourney walks one candidate from intake to post-placement
// and proves the audit log alone reconstructs the aggregate.
func TestFullPlacementJourney(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)

	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage1), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage2), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage3), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingCompleted), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisConsent, string(models.ConsentObtained), id.RoleMobilizer, nil)
	cand = f.step(t, cand, models.AxisDocuments, string(models.DocumentsComplete), id.RoleMIS, nil)

	batchID := id.NewBatchID()
	cand = f.step(t, cand, models.AxisPipeline, string(models.StageReadyForMigration), id.RoleMobilizer,
		models.Payload{models.PayloadBatchID: batchID.String()})
	cand = f.step(t, cand, models.AxisPipeline, string(models.StageMigrated), id.RoleMobilizer, nil)
	cand = f.step(t, cand, models.AxisPipeline, string(models.StageEnrolled), id.RoleCenterManager, nil)
	cand = f.step(t, cand, models.AxisPipeline, string(models.StageInTraining), id.RoleCenterManager, nil)
	cand = f.step(t, cand, models.AxisPipeline, string(models.StageTrained), id.RoleCenterManager, nil)
	cand = f.step(t, cand, models.AxisPipeline, string(models.StagePlaced), id.RoleCompanyHR, nil)
	cand = f.step(t, cand, models.AxisPipeline, string(models.StagePostPlacement), id.RolePOC, nil)

	assert.Equal(t, models.StagePostPlacement, cand.State.Pipeline)

	history, err := f.engine.History(context.Background(), cand.ID, 0, 1000)
	require.NoError(t, err)
	assert.Equal(t, cand.Version, int64(len(history)), "version equals the record count")
	for i := 1; i < len(history); i++ {
		assert.Greater(t, history[i].Seq, history[i-1].Seq, "history must be strictly ordered")
	}

	replayed, replayedVersion := audit.Replay(history)
	assert.Equal(t, cand.State, replayed, "replaying the audit log must reconstruct the state")
	assert.Equal(t, cand.Version, replayedVersion)

	state, version, err := f.engine.Rebuild(context.Background(), cand.ID)
	require.NoError(t, err)
	assert.Equal(t, cand.State, state)
	assert.Equal(t, cand.Version, version)

	assert.Equal(t, int(cand.Version), f.outboxDepth(t), "one event per accepted transition")
}

func TestAllowedTransitionsFiltersByRole(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)

	counsellor, err := f.engine.AllowedTransitions(context.Background(), cand.ID, id.RoleCounsellor)
	require.NoError(t, err)
	assert.Contains(t, counsellor[models.AxisCounselling], string(models.CounsellingStage1))
	assert.Contains(t, counsellor[models.AxisConsent], string(models.ConsentObtained))

	hr, err := f.engine.AllowedTransitions(context.Background(), cand.ID, id.RoleCompanyHR)
	require.NoError(t, err)
	assert.Empty(t, hr[models.AxisCounselling])
	// Dropping is open to every role; advancing the pipeline is not.
	assert.Equal(t, []string{string(models.StageDropped)}, hr[models.AxisPipeline])
}

func TestBatchTransitionOutcomesAreIndependent(t *testing.T) {
	f := newFixture(t)
	batchID := id.NewBatchID()

	ready := f.intake(t)
	ready = f.step(t, ready, models.AxisCounselling, string(models.CounsellingStage1), id.RoleCounsellor, nil)
	ready = f.step(t, ready, models.AxisCounselling, string(models.CounsellingStage2), id.RoleCounsellor, nil)
	ready = f.step(t, ready, models.AxisCounselling, string(models.CounsellingStage3), id.RoleCounsellor, nil)
	ready = f.step(t, ready, models.AxisCounselling, string(models.CounsellingCompleted), id.RoleCounsellor, nil)
	ready = f.step(t, ready, models.AxisConsent, string(models.ConsentObtained), id.RoleCounsellor, nil)
	ready = f.step(t, ready, models.AxisPipeline, string(models.StageReadyForMigration), id.RoleMobilizer,
		models.Payload{models.PayloadBatchID: batchID.String()})

	stuck := f.intake(t)
	stuck = f.step(t, stuck, models.AxisCounselling, string(models.CounsellingStage1), id.RoleCounsellor, nil)
	stuck = f.step(t, stuck, models.AxisCounselling, string(models.CounsellingStage2), id.RoleCounsellor, nil)
	stuck = f.step(t, stuck, models.AxisCounselling, string(models.CounsellingStage3), id.RoleCounsellor, nil)
	stuck = f.step(t, stuck, models.AxisCounselling, string(models.CounsellingCompleted), id.RoleCounsellor, nil)
	stuck = f.step(t, stuck, models.AxisConsent, string(models.ConsentObtained), id.RoleCounsellor, nil)
	stuck = f.step(t, stuck, models.AxisPipeline, string(models.StageReadyForMigration), id.RoleMobilizer,
		models.Payload{models.PayloadBatchID: batchID.String()})
	// stuck stays at ready_for_migration while ready moves ahead.
	ready = f.step(t, ready, models.AxisPipeline, string(models.StageMigrated), id.RoleMobilizer, nil)

	results, err := f.engine.RequestBatchTransition(context.Background(), batchID,
		models.AxisPipeline, string(models.StageMigrated), id.RoleMobilizer, "mob-17", "", nil)
	require.NoError(t, err)
	require.Len(t, results, 2)

	outcomes := map[id.CandidateID]error{}
	for _, res := range results {
		outcomes[res.CandidateID] = res.Err
	}
	assert.Error(t, outcomes[ready.ID], "already migrated, no self-edge")
	assert.True(t, dErrors.HasCode(outcomes[ready.ID], dErrors.CodeUnknownTransition))
	assert.NoError(t, outcomes[stuck.ID], "one candidate failing must not block the rest")

	moved, err := f.engine.Candidate(context.Background(), stuck.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StageMigrated, moved.State.Pipeline)
}

func TestConsentReversalRequiresReason(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)
	cand = f.step(t, cand, models.AxisConsent, string(models.ConsentObtained), id.RoleCounsellor, nil)

	_, _, err := f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            models.AxisConsent,
		ToState:         string(models.ConsentRefused),
		ActorRole:       id.RoleCounsellor,
		ExpectedVersion: cand.Version,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeGuardFailed))

	cand = f.step(t, cand, models.AxisConsent, string(models.ConsentRefused), id.RoleCounsellor,
		models.Payload{models.PayloadReason: "parents withdrew after home visit"})
	assert.Equal(t, models.ConsentRefused, cand.State.Consent)
}

// walkToEnrolled drives a fresh candidate through counselling, consent,
// documents and the pipeline up to enrolled.
func (f *fixture) walkToEnrolled(t *testing.T) models.Candidate {
	t.Helper()
	cand := f.intake(t)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage1), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage2), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage3), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingCompleted), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisConsent, string(models.ConsentObtained), id.RoleMobilizer, nil)
	cand = f.step(t, cand, models.AxisDocuments, string(models.DocumentsComplete), id.RoleMIS, nil)
	cand = f.step(t, cand, models.AxisPipeline, string(models.StageReadyForMigration), id.RoleMobilizer,
		models.Payload{models.PayloadBatchID: id.NewBatchID().String()})
	cand = f.step(t, cand, models.AxisPipeline, string(models.StageMigrated), id.RoleMobilizer, nil)
	return f.step(t, cand, models.AxisPipeline, string(models.StageEnrolled), id.RoleCenterManager, nil)
}

func TestDocumentsCannotBeReopenedAfterEnrollment(t *testing.T) {
	f := newFixture(t)
	cand := f.walkToEnrolled(t)

	// A reason alone is not enough once the candidate is enrolled: accepting
	// this would leave an enrolled candidate with incomplete documents.
	_, _, err := f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            models.AxisDocuments,
		ToState:         string(models.DocumentsIncomplete),
		ActorRole:       id.RoleMIS,
		ExpectedVersion: cand.Version,
		Payload:         models.Payload{models.PayloadReason: "certificate flagged during verification"},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeGuardFailed))

	var guardErr *GuardError
	require.True(t, errors.As(err, &guardErr))
	assert.Contains(t, guardErr.Reasons, "documents cannot be reopened after enrollment")

	current, getErr := f.engine.Candidate(context.Background(), cand.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.DocumentsComplete, current.State.Documents)
	assert.Equal(t, models.StageEnrolled, current.State.Pipeline)
	assert.Equal(t, cand.Version, current.Version, "a rejected transition must not advance the version")
}

func TestConsentCannotBeWithdrawnAfterMigration(t *testing.T) {
	f := newFixture(t)
	cand := f.walkToEnrolled(t)

	_, _, err := f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            models.AxisConsent,
		ToState:         string(models.ConsentRefused),
		ActorRole:       id.RoleCounsellor,
		ExpectedVersion: cand.Version,
		Payload:         models.Payload{models.PayloadReason: "parents changed their mind"},
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeGuardFailed))

	var guardErr *GuardError
	require.True(t, errors.As(err, &guardErr))
	assert.Contains(t, guardErr.Reasons, "consent cannot be withdrawn after migration")

	current, getErr := f.engine.Candidate(context.Background(), cand.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.ConsentObtained, current.State.Consent)
}

func TestMigrationBlockedWhenConsentWithdrawnInWaiting(t *testing.T) {
	f := newFixture(t)
	cand := f.intake(t)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage1), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage2), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingStage3), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisCounselling, string(models.CounsellingCompleted), id.RoleCounsellor, nil)
	cand = f.step(t, cand, models.AxisConsent, string(models.ConsentObtained), id.RoleMobilizer, nil)
	cand = f.step(t, cand, models.AxisPipeline, string(models.StageReadyForMigration), id.RoleMobilizer,
		models.Payload{models.PayloadBatchID: id.NewBatchID().String()})

	// Consent may still be withdrawn while the candidate waits for migration.
	cand = f.step(t, cand, models.AxisConsent, string(models.ConsentRefused), id.RoleCounsellor,
		models.Payload{models.PayloadReason: "parents withdrew before travel"})

	_, _, err := f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     cand.ID,
		Axis:            models.AxisPipeline,
		ToState:         string(models.StageMigrated),
		ActorRole:       id.RoleMobilizer,
		ExpectedVersion: cand.Version,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeGuardFailed))

	var guardErr *GuardError
	require.True(t, errors.As(err, &guardErr))
	assert.Contains(t, guardErr.Reasons, "parent consent refused")
}

func TestCandidateNotFound(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.engine.RequestTransition(context.Background(), TransitionRequest{
		CandidateID:     id.NewCandidateID(),
		Axis:            models.AxisCounselling,
		ToState:         string(models.CounsellingStage1),
		ActorRole:       id.RoleCounsellor,
		ExpectedVersion: 1,
	})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound))
}

func TestIntakeValidation(t *testing.T) {
	f := newFixture(t)
	_, err := f.engine.Intake(context.Background(), IntakeInput{Phone: "123", ActorRole: id.RoleMobilizer})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))

	_, err = f.engine.Intake(context.Background(), IntakeInput{Name: "A", Phone: "123", ActorRole: "auditor"})
	assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation))
}
