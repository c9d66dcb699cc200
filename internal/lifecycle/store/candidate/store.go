// Package candidate persists the candidate aggregate. Stores are
// interface-driven so the engine can run against in-memory state in tests
// and PostgreSQL in production without rewiring.
package candidate

import (
	"context"

	"disha/internal/lifecycle/models"
	id "disha/pkg/domain"
)

// Store is the candidate persistence contract. Implementations return
// sentinel errors for infrastructure facts:
//   - FindByID: sentinel.ErrNotFound when the candidate does not exist
//   - Create: sentinel.ErrConflict when the id is already taken
//   - Update: sentinel.ErrConflict when the stored version does not match
//     expectedVersion (optimistic concurrency CAS)
type Store interface {
	Create(ctx context.Context, cand *models.Candidate) error
	FindByID(ctx context.Context, candidateID id.CandidateID) (models.Candidate, error)
	ListByBatch(ctx context.Context, batchID id.BatchID) ([]models.Candidate, error)
	// Update writes cand (which already carries the incremented version)
	// only if the stored row still holds expectedVersion.
	Update(ctx context.Context, cand *models.Candidate, expectedVersion int64) error
}
