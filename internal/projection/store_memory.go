package projection

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
)

// MemoryViewStore backs unit tests and single-node development.
type MemoryViewStore struct {
	mu       sync.RWMutex
	entries  map[string]map[string][]byte
	versions map[string]int64
}

func NewMemoryViewStore() *MemoryViewStore {
	return &MemoryViewStore{
		entries:  make(map[string]map[string][]byte),
		versions: make(map[string]int64),
	}
}

func (s *MemoryViewStore) Set(_ context.Context, view, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entries[view] == nil {
		s.entries[view] = make(map[string][]byte)
	}
	s.entries[view][key] = value
	s.versions[view]++
	return nil
}

func (s *MemoryViewStore) Delete(_ context.Context, view, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries[view], key)
	s.versions[view]++
	return nil
}

func (s *MemoryViewStore) Snapshot(_ context.Context, view string) (Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	keys := make([]string, 0, len(s.entries[view]))
	for key := range s.entries[view] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	snap := Snapshot{
		View:    view,
		Version: s.versions[view],
		Entries: make([]json.RawMessage, 0, len(keys)),
	}
	for _, key := range keys {
		snap.Entries = append(snap.Entries, json.RawMessage(s.entries[view][key]))
	}
	return snap, nil
}

func (s *MemoryViewStore) Reset(_ context.Context, view string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[view] = make(map[string][]byte)
	s.versions[view]++
	return nil
}
