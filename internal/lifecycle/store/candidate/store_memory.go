package candidate

import (
	"context"
	"sync"

	"disha/internal/lifecycle/models"
	id "disha/pkg/domain"
	"disha/pkg/platform/sentinel"
)

// MemoryStore keeps candidates in a map. The version CAS in Update mirrors
// the postgres implementation so engine behavior is identical across
// backends.
type MemoryStore struct {
	mu         sync.RWMutex
	candidates map[id.CandidateID]models.Candidate
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{candidates: make(map[id.CandidateID]models.Candidate)}
}

func (s *MemoryStore) Create(_ context.Context, cand *models.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.candidates[cand.ID]; exists {
		return sentinel.ErrConflict
	}
	s.candidates[cand.ID] = *cand
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, candidateID id.CandidateID) (models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cand, ok := s.candidates[candidateID]
	if !ok {
		return models.Candidate{}, sentinel.ErrNotFound
	}
	return cand, nil
}

func (s *MemoryStore) ListByBatch(_ context.Context, batchID id.BatchID) ([]models.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Candidate
	for _, cand := range s.candidates {
		if cand.BatchID == batchID {
			out = append(out, cand)
		}
	}
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, cand *models.Candidate, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.candidates[cand.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	s.candidates[cand.ID] = *cand
	return nil
}
