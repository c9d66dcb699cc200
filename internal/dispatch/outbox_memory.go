package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"disha/pkg/platform/sentinel"
)

// MemoryOutbox backs unit tests and single-node development.
type MemoryOutbox struct {
	mu      sync.Mutex
	entries map[uuid.UUID]*Entry
	dead    []DeadLetter
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{entries: make(map[uuid.UUID]*Entry)}
}

func (o *MemoryOutbox) Enqueue(_ context.Context, topic, key string, payload []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry := &Entry{
		ID:        uuid.New(),
		Topic:     topic,
		Key:       key,
		Payload:   append([]byte(nil), payload...),
		CreatedAt: time.Now(),
	}
	o.entries[entry.ID] = entry
	return nil
}

func (o *MemoryOutbox) NextBatch(_ context.Context, now time.Time, limit int) ([]Entry, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var due []Entry
	for _, e := range o.entries {
		if !e.NextAttemptAt.After(now) {
			due = append(due, *e)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].CreatedAt.Before(due[j].CreatedAt) })
	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (o *MemoryOutbox) MarkPublished(_ context.Context, entryID uuid.UUID) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.entries[entryID]; !ok {
		return sentinel.ErrNotFound
	}
	delete(o.entries, entryID)
	return nil
}

func (o *MemoryOutbox) MarkFailed(_ context.Context, entryID uuid.UUID, lastError string, nextAttemptAt time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.entries[entryID]
	if !ok {
		return sentinel.ErrNotFound
	}
	entry.Attempts++
	entry.LastError = lastError
	entry.NextAttemptAt = nextAttemptAt
	return nil
}

func (o *MemoryOutbox) DeadLetter(_ context.Context, entryID uuid.UUID, reason string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	entry, ok := o.entries[entryID]
	if !ok {
		return sentinel.ErrNotFound
	}
	delete(o.entries, entryID)
	o.dead = append(o.dead, DeadLetter{
		ID:      entry.ID,
		Topic:   entry.Topic,
		Key:     entry.Key,
		Payload: entry.Payload,
		// The attempt that exhausted the entry counts too.
		Attempts:  entry.Attempts + 1,
		Reason:    reason,
		CreatedAt: entry.CreatedAt,
		DeadAt:    time.Now(),
	})
	return nil
}

func (o *MemoryOutbox) ListDeadLetters(_ context.Context, limit int) ([]DeadLetter, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := append([]DeadLetter(nil), o.dead...)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
