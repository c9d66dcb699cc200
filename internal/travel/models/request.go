// Package models defines the travel-letter request. One request exists per
// batch; it is created automatically when the batch's first candidate
// becomes ready for migration and then worked by the center manager and the
// PPC admin.
package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
)

// Status is the request's progression. not_requested is the created-but-idle
// state; available means the letter can be handed to candidates.
type Status string

const (
	StatusNotRequested    Status = "not_requested"
	StatusRequested       Status = "requested"
	StatusPendingApproval Status = "pending_approval"
	StatusAvailable       Status = "available"
)

// ParseStatus constructs a Status from external input.
//
// Errors: returns CodeInvalidInput when the value is unsupported.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusNotRequested, StatusRequested, StatusPendingApproval, StatusAvailable:
		return Status(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown travel letter status %q", s)
	}
}

// statusEdges is the allowed progression. Available is terminal; a lost
// letter is re-issued out of band, not re-worked through the pipeline.
var statusEdges = map[Status][]Status{
	StatusNotRequested:    {StatusRequested},
	StatusRequested:       {StatusPendingApproval},
	StatusPendingApproval: {StatusAvailable},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range statusEdges[from] {
		if next == to {
			return true
		}
	}
	return false
}

// correlationNamespace anchors uuid v5 derivation for travel letter event IDs.
var correlationNamespace = uuid.MustParse("9f4b1c6e-2a7d-4e31-b5c8-0e6a2d4f7b19")

// CorrelationID derives the deterministic dedupe key for one version of one
// request. Consumers treat redelivered IDs as no-ops.
func CorrelationID(letterID id.LetterID, version int64) uuid.UUID {
	return uuid.NewSHA1(correlationNamespace, []byte(letterID.String()+":"+strconv.FormatInt(version, 10)))
}

// Request is the travel-letter request aggregate.
type Request struct {
	ID          id.LetterID
	BatchID     id.BatchID
	Status      Status
	RequestedBy string
	ApprovedBy  string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
