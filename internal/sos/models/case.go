// Package models defines the SOS case entity. An SOS case overlays the
// placement pipeline: it references a candidate but is never gated by, and
// never gates, the candidate's lifecycle state.
package models

import (
	"strconv"
	"time"

	"github.com/google/uuid"

	id "disha/pkg/domain"
	dErrors "disha/pkg/domain-errors"
)

// Priority ranks how urgently a case needs attention.
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// ParsePriority constructs a Priority from external input.
//
// Errors: returns CodeInvalidInput when the value is unsupported.
func ParsePriority(s string) (Priority, error) {
	switch Priority(s) {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return Priority(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown priority %q", s)
	}
}

// Status is the case's own small state machine.
type Status string

const (
	StatusOpen       Status = "open"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// ParseStatus constructs a Status from external input.
//
// Errors: returns CodeInvalidInput when the value is unsupported.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusOpen, StatusInProgress, StatusResolved:
		return Status(s), nil
	default:
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown status %q", s)
	}
}

// statusEdges is the allowed status progression. Resolved is terminal; a
// recurring problem is a new case, not a reopened one.
var statusEdges = map[Status][]Status{
	StatusOpen:       {StatusInProgress, StatusResolved},
	StatusInProgress: {StatusResolved},
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

// Case is one SOS incident. Version backs optimistic concurrency the same
// way the candidate aggregate's does.
type Case struct {
	ID             id.CaseID
	CandidateID    id.CandidateID
	Category       string
	Priority       Priority
	Status         Status
	AssignedPOCID  string
	Description    string
	ResolutionNote string
	Escalated      bool
	Version        int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ResolvedAt     *time.Time
}

// Open reports whether the case still needs attention.
func (c Case) Open() bool { return c.Status != StatusResolved }

// correlationNamespace anchors uuid v5 derivation for SOS event IDs.
var correlationNamespace = uuid.MustParse("6c2d9a07-13be-44e7-8a02-d4c1f7a85e21")

// CorrelationID derives the deterministic dedupe key for one version of one
// case. Consumers treat redelivered IDs as no-ops.
func CorrelationID(caseID id.CaseID, version int64) uuid.UUID {
	return uuid.NewSHA1(correlationNamespace, []byte(caseID.String()+":"+strconv.FormatInt(version, 10)))
}
