// Package audit is the append-only, per-candidate ordered history of applied
// transitions. It is the source of truth for compliance and the input for
// rebuilding projections. Records are never updated or deleted.
package audit

import (
	"context"

	"disha/internal/lifecycle/models"
	id "disha/pkg/domain"
)

// Log is the append-only audit contract. Append assigns the commit sequence
// on the record; it fails only on storage unavailability, in which case the
// enclosing transition must be rejected before it is considered committed.
type Log interface {
	Append(ctx context.Context, record *models.TransitionRecord) error
	// History returns records for a candidate ordered by commit sequence,
	// strictly after afterSeq, at most limit entries. Restartable from any
	// offset.
	History(ctx context.Context, candidateID id.CandidateID, afterSeq int64, limit int) ([]models.TransitionRecord, error)
	// All returns every record in commit order, strictly after afterSeq.
	// Projections replay from here.
	All(ctx context.Context, afterSeq int64, limit int) ([]models.TransitionRecord, error)
}

// DefaultPageSize bounds History responses when the caller does not specify
// a limit.
const DefaultPageSize = 100
