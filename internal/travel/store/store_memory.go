package store

import (
	"context"
	"sort"
	"sync"

	"disha/internal/travel/models"
	id "disha/pkg/domain"
	"disha/pkg/platform/sentinel"
)

// MemoryStore backs unit tests and single-node development.
type MemoryStore struct {
	mu      sync.RWMutex
	byID    map[id.LetterID]models.Request
	byBatch map[id.BatchID]id.LetterID
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byID:    make(map[id.LetterID]models.Request),
		byBatch: make(map[id.BatchID]id.LetterID),
	}
}

func (s *MemoryStore) Create(_ context.Context, req *models.Request) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byBatch[req.BatchID]; ok {
		return sentinel.ErrConflict
	}
	if _, ok := s.byID[req.ID]; ok {
		return sentinel.ErrConflict
	}
	s.byID[req.ID] = *req
	s.byBatch[req.BatchID] = req.ID
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, letterID id.LetterID) (models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.byID[letterID]
	if !ok {
		return models.Request{}, sentinel.ErrNotFound
	}
	return req, nil
}

func (s *MemoryStore) FindByBatch(_ context.Context, batchID id.BatchID) (models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	letterID, ok := s.byBatch[batchID]
	if !ok {
		return models.Request{}, sentinel.ErrNotFound
	}
	return s.byID[letterID], nil
}

func (s *MemoryStore) List(_ context.Context, status models.Status) ([]models.Request, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Request
	for _, req := range s.byID {
		if status != "" && req.Status != status {
			continue
		}
		out = append(out, req)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, req *models.Request, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.byID[req.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	s.byID[req.ID] = *req
	return nil
}
