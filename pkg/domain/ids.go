// Package domain holds shared domain primitives: typed identifiers and the
// actor role vocabulary. Construct values via the Parse helpers at trust
// boundaries; direct casting bypasses validation.
package domain

import (
	"github.com/google/uuid"

	dErrors "disha/pkg/domain-errors"
)

// CandidateID identifies a candidate across the placement pipeline.
type CandidateID uuid.UUID

// BatchID identifies a training-center batch. Candidates carry a nil BatchID
// until mobilization assigns one.
type BatchID uuid.UUID

// CaseID identifies an SOS case.
type CaseID uuid.UUID

// LetterID identifies a travel-letter request.
type LetterID uuid.UUID

// NewCandidateID returns a fresh random CandidateID.
func NewCandidateID() CandidateID { return CandidateID(uuid.New()) }

// NewBatchID returns a fresh random BatchID.
func NewBatchID() BatchID { return BatchID(uuid.New()) }

// NewCaseID returns a fresh random CaseID.
func NewCaseID() CaseID { return CaseID(uuid.New()) }

// NewLetterID returns a fresh random LetterID.
func NewLetterID() LetterID { return LetterID(uuid.New()) }

// ParseCandidateID validates external input as a CandidateID.
func ParseCandidateID(s string) (CandidateID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CandidateID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "invalid candidate id")
	}
	return CandidateID(u), nil
}

// ParseBatchID validates external input as a BatchID.
func ParseBatchID(s string) (BatchID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return BatchID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "invalid batch id")
	}
	return BatchID(u), nil
}

// ParseCaseID validates external input as a CaseID.
func ParseCaseID(s string) (CaseID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return CaseID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "invalid case id")
	}
	return CaseID(u), nil
}

// ParseLetterID validates external input as a LetterID.
func ParseLetterID(s string) (LetterID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return LetterID(uuid.Nil), dErrors.New(dErrors.CodeInvalidInput, "invalid travel letter id")
	}
	return LetterID(u), nil
}

func (id CandidateID) String() string { return uuid.UUID(id).String() }
func (id BatchID) String() string     { return uuid.UUID(id).String() }
func (id CaseID) String() string      { return uuid.UUID(id).String() }
func (id LetterID) String() string    { return uuid.UUID(id).String() }

func (id CandidateID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id BatchID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id CaseID) IsNil() bool      { return uuid.UUID(id) == uuid.Nil }
func (id LetterID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
