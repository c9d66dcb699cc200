// Package guard evaluates transition preconditions. Guards are pure
// functions over a read-only candidate snapshot plus the request payload:
// no I/O, no clocks, no external calls. Facts that originate elsewhere
// (document verification, consent) are already materialized on the snapshot
// by the time a guard runs, which keeps evaluation synchronous and bounded.
package guard

import (
	"fmt"

	"disha/internal/lifecycle/models"
	dErrors "disha/pkg/domain-errors"
)

// Guard names referenced by the state registry's transition table.
const (
	CounsellingCompleted = "counselling_completed"
	ConsentObtained      = "consent_obtained"
	DocumentsComplete    = "documents_complete"
	BatchAssigned        = "batch_assigned"
	CandidateActive      = "candidate_active"
	ReasonPresent        = "reason_present"
	DropReasonPresent    = "drop_reason_present"
	ConsentRevocable     = "consent_revocable"
	DocumentsRevocable   = "documents_revocable"
)

// pipelineRank orders the forward pipeline stages so revocability guards can
// compare progress. Dropped is deliberately absent: a dropped candidate is
// already blocked by candidate_active.
var pipelineRank = map[models.PipelineStage]int{
	models.StageMobilized:         0,
	models.StageReadyForMigration: 1,
	models.StageMigrated:          2,
	models.StageEnrolled:          3,
	models.StageInTraining:        4,
	models.StageTrained:           5,
	models.StagePlaced:            6,
	models.StagePostPlacement:     7,
}

// Func is a single guard predicate. A false verdict must carry a
// human-readable reason suitable for a role dashboard checklist.
type Func func(snap models.Snapshot) models.GuardResult

var guards = map[string]Func{
	CounsellingCompleted: counsellingCompleted,
	ConsentObtained:      consentObtained,
	DocumentsComplete:    documentsComplete,
	BatchAssigned:        batchAssigned,
	CandidateActive:      candidateActive,
	ReasonPresent:        reasonPresent,
	DropReasonPresent:    dropReasonPresent,
	ConsentRevocable:     consentRevocable,
	DocumentsRevocable:   documentsRevocable,
}

// Evaluate runs a single named guard against the snapshot.
func Evaluate(name string, snap models.Snapshot) (models.GuardResult, error) {
	fn, ok := guards[name]
	if !ok {
		return models.GuardResult{}, dErrors.Newf(dErrors.CodeInternal, "unknown guard %q in transition table", name)
	}
	return fn(snap), nil
}

// EvaluateAll runs every guard named on a transition edge and aggregates the
// verdicts. The transition fails if any guard fails; all failure reasons are
// collected so the caller can surface a complete checklist, not just the
// first miss.
func EvaluateAll(names []string, snap models.Snapshot) ([]models.GuardResult, []string, error) {
	results := make([]models.GuardResult, 0, len(names))
	var reasons []string
	for _, name := range names {
		res, err := Evaluate(name, snap)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, res)
		if !res.Pass {
			reasons = append(reasons, res.Reason)
		}
	}
	return results, reasons, nil
}

func counsellingCompleted(snap models.Snapshot) models.GuardResult {
	if snap.Candidate.State.Counselling == models.CounsellingCompleted {
		return pass(CounsellingCompleted)
	}
	return fail(CounsellingCompleted, "counselling incomplete")
}

func consentObtained(snap models.Snapshot) models.GuardResult {
	switch snap.Candidate.State.Consent {
	case models.ConsentObtained:
		return pass(ConsentObtained)
	case models.ConsentRefused:
		return fail(ConsentObtained, "parent consent refused")
	default:
		return fail(ConsentObtained, "parent consent pending")
	}
}

func documentsComplete(snap models.Snapshot) models.GuardResult {
	if snap.Candidate.State.Documents == models.DocumentsComplete {
		return pass(DocumentsComplete)
	}
	return fail(DocumentsComplete, "documents incomplete")
}

// batchAssigned passes when the candidate already belongs to a batch or the
// request payload assigns one.
func batchAssigned(snap models.Snapshot) models.GuardResult {
	if !snap.Candidate.BatchID.IsNil() || snap.Payload.Get(models.PayloadBatchID) != "" {
		return pass(BatchAssigned)
	}
	return fail(BatchAssigned, "no batch assigned")
}

func candidateActive(snap models.Snapshot) models.GuardResult {
	if snap.Candidate.State.Dropped() {
		return fail(CandidateActive, fmt.Sprintf("candidate %s has been dropped", snap.Candidate.ID))
	}
	return pass(CandidateActive)
}

func reasonPresent(snap models.Snapshot) models.GuardResult {
	if snap.Payload.Get(models.PayloadReason) != "" {
		return pass(ReasonPresent)
	}
	return fail(ReasonPresent, "reason required")
}

func dropReasonPresent(snap models.Snapshot) models.GuardResult {
	if snap.Payload.Get(models.PayloadReason) != "" {
		return pass(DropReasonPresent)
	}
	return fail(DropReasonPresent, "drop reason required")
}

// consentRevocable blocks consent withdrawal once the candidate has migrated.
// A migrated candidate is physically at a training center on the strength of
// that consent; withdrawal from there goes through a drop, not a flag flip.
func consentRevocable(snap models.Snapshot) models.GuardResult {
	rank, ok := pipelineRank[snap.Candidate.State.Pipeline]
	if ok && rank <= pipelineRank[models.StageReadyForMigration] {
		return pass(ConsentRevocable)
	}
	return fail(ConsentRevocable, "consent cannot be withdrawn after migration")
}

// documentsRevocable blocks compliance reversal once the candidate is
// enrolled, keeping an enrolled candidate's documents complete at all times.
func documentsRevocable(snap models.Snapshot) models.GuardResult {
	rank, ok := pipelineRank[snap.Candidate.State.Pipeline]
	if ok && rank < pipelineRank[models.StageEnrolled] {
		return pass(DocumentsRevocable)
	}
	return fail(DocumentsRevocable, "documents cannot be reopened after enrollment")
}

func pass(name string) models.GuardResult {
	return models.GuardResult{Name: name, Pass: true}
}

func fail(name, reason string) models.GuardResult {
	return models.GuardResult{Name: name, Pass: false, Reason: reason}
}
