package inmemory

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/dvloznov/finance-migrator/internal/storage"
)

// Store is an in-memory implementation of RecordStore.
// It is safe for concurrent use. Data is lost on process exit - intended
// for tests and local dry runs only.
type Store struct {
	mu      sync.RWMutex
	records map[string][]byte
}

// NewStore creates a new in-memory record store.
func NewStore() *Store {
	return &Store{
		records: make(map[string][]byte),
	}
}

// Put implements the RecordStore interface.
func (s *Store) Put(ctx context.Context, key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Copy to avoid external modifications
	buf := make([]byte, len(value))
	copy(buf, value)
	s.records[key] = buf

	return nil
}

// Get implements the RecordStore interface.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, exists := s.records[key]
	if !exists {
		return nil, storage.ErrNotFound
	}

	buf := make([]byte, len(value))
	copy(buf, value)
	return buf, nil
}

// Delete implements the RecordStore interface.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.records, key)
	return nil
}

// Exists implements the RecordStore interface.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, exists := s.records[key]
	return exists, nil
}

// Keys implements the RecordStore interface.
func (s *Store) Keys(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for k := range s.records {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Close implements the RecordStore interface.
func (s *Store) Close() error {
	return nil
}

// Ensure Store implements the RecordStore interface.
var _ storage.RecordStore = (*Store)(nil)
