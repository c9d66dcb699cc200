package audit

import (
	"context"
	"sort"
	"sync"

	"disha/internal/lifecycle/models"
	id "disha/pkg/domain"
)

// MemoryLog is the in-memory Log used by unit tests and single-node
// development. Commit sequence is a process-wide counter, so ordering
// matches what the postgres BIGSERIAL would produce.
type MemoryLog struct {
	mu      sync.RWMutex
	nextSeq int64
	byCand  map[id.CandidateID][]models.TransitionRecord
	all     []models.TransitionRecord
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{byCand: make(map[id.CandidateID][]models.TransitionRecord)}
}

func (l *MemoryLog) Append(_ context.Context, record *models.TransitionRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextSeq++
	record.Seq = l.nextSeq
	stored := *record
	l.byCand[record.CandidateID] = append(l.byCand[record.CandidateID], stored)
	l.all = append(l.all, stored)
	return nil
}

func (l *MemoryLog) History(_ context.Context, candidateID id.CandidateID, afterSeq int64, limit int) ([]models.TransitionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return page(l.byCand[candidateID], afterSeq, limit), nil
}

func (l *MemoryLog) All(_ context.Context, afterSeq int64, limit int) ([]models.TransitionRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return page(l.all, afterSeq, limit), nil
}

func page(records []models.TransitionRecord, afterSeq int64, limit int) []models.TransitionRecord {
	if limit <= 0 {
		limit = DefaultPageSize
	}
	// Records are appended in seq order already; find the restart point.
	start := sort.Search(len(records), func(i int) bool {
		return records[i].Seq > afterSeq
	})
	end := start + limit
	if end > len(records) {
		end = len(records)
	}
	out := make([]models.TransitionRecord, end-start)
	copy(out, records[start:end])
	return out
}
