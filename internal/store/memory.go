package store

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore keeps values in process memory. Intended for tests and single-node development.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string][]byte
}

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string][]byte)}
}

func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	if err := validateKey(key); err != nil {
		return nil, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	value, ok := s.values[key]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), value...), true, nil
}

func (s *MemoryStore) Put(_ context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	s.values[key] = append([]byte(nil), value...)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.values, key)
	s.mu.Unlock()
	return nil
}

// List pages through keys in lexical order; the cursor is the last key of the previous page.
func (s *MemoryStore) List(_ context.Context, options ListOptions) (ListPage, error) {
	s.mu.RLock()
	matching := make([]string, 0, len(s.values))
	for key := range s.values {
		if strings.HasPrefix(key, options.Prefix) && key > options.Cursor {
			matching = append(matching, key)
		}
	}
	s.mu.RUnlock()

	sort.Strings(matching)
	limit := options.limit()
	if len(matching) <= limit {
		return ListPage{Keys: matching, Complete: true}, nil
	}
	keys := matching[:limit]
	return ListPage{Keys: keys, Cursor: keys[len(keys)-1]}, nil
}
