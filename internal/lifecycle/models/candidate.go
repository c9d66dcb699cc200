package models

import (
	"time"

	id "disha/pkg/domain"
)

// Candidate is the aggregate owned by the transition engine. It is mutated
// only through accepted transitions; Version increments on every accepted
// transition and backs optimistic concurrency.
type Candidate struct {
	ID       id.CandidateID
	Name     string
	Phone    string
	District string
	// BatchID is nil until mobilization assigns the candidate to a
	// training-center batch.
	BatchID   id.BatchID
	State     LifecycleState
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot is the read-only view guards evaluate against. External facts a
// guard needs (document verification, consent flags) are materialized onto
// the candidate before the engine is entered, so guards stay synchronous.
type Snapshot struct {
	Candidate Candidate
	Payload   Payload
}

// Payload carries transition-scoped data: drop reasons, batch assignment,
// travel dates. Values are recorded verbatim on the audit record.
type Payload map[string]string

// Get returns the payload value for key, or "".
func (p Payload) Get(key string) string {
	if p == nil {
		return ""
	}
	return p[key]
}

// Payload keys with engine-level meaning. Anything else is passed through to
// the audit record untouched.
const (
	PayloadReason  = "reason"
	PayloadBatchID = "batch_id"
)
