// Package store persists travel-letter requests.
package store

import (
	"context"

	"disha/internal/travel/models"
	id "disha/pkg/domain"
)

// Store is the travel-letter persistence contract. One request per batch is
// enforced here:
//   - Create: sentinel.ErrConflict when the batch already has a request
//   - FindByID / FindByBatch: sentinel.ErrNotFound when absent
//   - Update: sentinel.ErrConflict when the stored version does not match
//     expectedVersion
type Store interface {
	Create(ctx context.Context, req *models.Request) error
	FindByID(ctx context.Context, letterID id.LetterID) (models.Request, error)
	FindByBatch(ctx context.Context, batchID id.BatchID) (models.Request, error)
	// List returns requests, optionally narrowed to one status, oldest first.
	List(ctx context.Context, status models.Status) ([]models.Request, error)
	Update(ctx context.Context, req *models.Request, expectedVersion int64) error
}
