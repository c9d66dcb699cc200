// Package store persists SOS cases.
package store

import (
	"context"

	"disha/internal/sos/models"
	id "disha/pkg/domain"
)

// Store is the SOS persistence contract. Implementations return sentinel
// errors for infrastructure facts:
//   - FindByID: sentinel.ErrNotFound when the case does not exist
//   - Create: sentinel.ErrConflict when the id is already taken
//   - Update: sentinel.ErrConflict when the stored version does not match
//     expectedVersion
type Store interface {
	Create(ctx context.Context, c *models.Case) error
	FindByID(ctx context.Context, caseID id.CaseID) (models.Case, error)
	ListByCandidate(ctx context.Context, candidateID id.CandidateID) ([]models.Case, error)
	// ListOpen returns unresolved cases, optionally narrowed to one priority.
	ListOpen(ctx context.Context, priority models.Priority) ([]models.Case, error)
	Update(ctx context.Context, c *models.Case, expectedVersion int64) error
}
