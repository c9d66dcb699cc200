package store

import (
	"context"
	"sort"
	"sync"

	"disha/internal/sos/models"
	id "disha/pkg/domain"
	"disha/pkg/platform/sentinel"
)

// MemoryStore backs unit tests and single-node development.
type MemoryStore struct {
	mu    sync.RWMutex
	cases map[id.CaseID]models.Case
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{cases: make(map[id.CaseID]models.Case)}
}

func (s *MemoryStore) Create(_ context.Context, c *models.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.ID]; ok {
		return sentinel.ErrConflict
	}
	s.cases[c.ID] = *c
	return nil
}

func (s *MemoryStore) FindByID(_ context.Context, caseID id.CaseID) (models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.cases[caseID]
	if !ok {
		return models.Case{}, sentinel.ErrNotFound
	}
	return c, nil
}

func (s *MemoryStore) ListByCandidate(_ context.Context, candidateID id.CandidateID) ([]models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Case
	for _, c := range s.cases {
		if c.CandidateID == candidateID {
			out = append(out, c)
		}
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) ListOpen(_ context.Context, priority models.Priority) ([]models.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Case
	for _, c := range s.cases {
		if !c.Open() {
			continue
		}
		if priority != "" && c.Priority != priority {
			continue
		}
		out = append(out, c)
	}
	sortByCreated(out)
	return out, nil
}

func (s *MemoryStore) Update(_ context.Context, c *models.Case, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.cases[c.ID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if stored.Version != expectedVersion {
		return sentinel.ErrConflict
	}
	s.cases[c.ID] = *c
	return nil
}

func sortByCreated(cases []models.Case) {
	sort.Slice(cases, func(i, j int) bool { return cases[i].CreatedAt.Before(cases[j].CreatedAt) })
}
