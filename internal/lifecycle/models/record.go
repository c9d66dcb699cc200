package models

import (
	"time"

	"github.com/google/uuid"

	id "disha/pkg/domain"
)

// GuardResult captures one guard's verdict for a transition attempt. All
// evaluated guards appear on the audit record, passes included, so a
// rejected attempt can be rendered as a complete checklist.
type GuardResult struct {
	Name   string `json:"name"`
	Pass   bool   `json:"pass"`
	Reason string `json:"reason,omitempty"`
}

// TransitionRecord is the immutable audit entry for one accepted transition.
// Records are never updated or deleted; corrections are modeled as new
// compensating transitions.
type TransitionRecord struct {
	ID uuid.UUID
	// Seq is the commit sequence assigned by the audit log. History ordering
	// uses Seq, not Timestamp, so it stays correct under clock skew.
	Seq          int64
	CandidateID  id.CandidateID
	Axis         Axis
	FromState    string
	ToState      string
	ActorRole    id.Role
	ActorID      string
	Device       string
	GuardResults []GuardResult
	Payload      Payload
	Timestamp    time.Time
	// CorrelationID deterministically derives from (CandidateID, ID) and keys
	// side-effect deduplication downstream.
	CorrelationID uuid.UUID
}

// correlationNamespace anchors uuid v5 derivation for correlation IDs.
var correlationNamespace = uuid.MustParse("b1a4f3d2-7c55-4f2e-9a11-5f0de8c0a9b3")

// CorrelationID derives the deterministic side-effect key for a transition
// record. The same (candidate, record) pair always yields the same ID, which
// is what lets collaborators treat redeliveries as no-ops.
func CorrelationID(candidateID id.CandidateID, recordID uuid.UUID) uuid.UUID {
	return uuid.NewSHA1(correlationNamespace, []byte(candidateID.String()+":"+recordID.String()))
}
