package profilestore

import (
	"context"
	"errors"
	"sync"

	"github.com/dvloznov/finance-migrator/internal/domain"
)

// ErrProfileNotFound is returned by Fetch when no profile exists for the id.
var ErrProfileNotFound = errors.New("profile not found")

// ProfileStore is the cloud profile store collaborator. Only the small
// non-financial UserProfile ever goes through it; the financial ledger
// stays in the local record store.
// This abstraction allows for different implementations (GCS, in-memory).
type ProfileStore interface {
	// Save writes the profile, overwriting any existing version.
	Save(ctx context.Context, profile *domain.UserProfile) error

	// Fetch retrieves a profile by id.
	// Returns ErrProfileNotFound if no profile exists.
	Fetch(ctx context.Context, profileID string) (*domain.UserProfile, error)

	// Close releases client resources.
	Close() error
}

// MemoryStore is an in-memory ProfileStore for tests and local dry runs.
// It is safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	profiles map[string]domain.UserProfile
}

// NewMemoryStore creates a new in-memory profile store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles: make(map[string]domain.UserProfile),
	}
}

// Save implements the ProfileStore interface.
func (s *MemoryStore) Save(ctx context.Context, profile *domain.UserProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.profiles[profile.ID] = *profile
	return nil
}

// Fetch implements the ProfileStore interface.
func (s *MemoryStore) Fetch(ctx context.Context, profileID string) (*domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profile, exists := s.profiles[profileID]
	if !exists {
		return nil, ErrProfileNotFound
	}
	clone := profile
	return &clone, nil
}

// Close implements the ProfileStore interface.
func (s *MemoryStore) Close() error {
	return nil
}

// Ensure MemoryStore implements the ProfileStore interface.
var _ ProfileStore = (*MemoryStore)(nil)
