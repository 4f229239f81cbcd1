package profilestore

import (
	"context"
	"errors"
	"testing"

	"github.com/dvloznov/finance-migrator/internal/domain"
)

func TestMemoryStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	profile := &domain.UserProfile{
		ID:    "user-1",
		Name:  "Dana",
		Email: "dana@example.com",
	}
	if err := s.Save(ctx, profile); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	fetched, err := s.Fetch(ctx, "user-1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fetched.Email != profile.Email {
		t.Errorf("fetched email = %q, want %q", fetched.Email, profile.Email)
	}

	// The store must hand out copies, not aliases.
	fetched.Email = "changed@example.com"
	again, err := s.Fetch(ctx, "user-1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if again.Email != profile.Email {
		t.Error("mutating a fetched profile must not affect the store")
	}
}

func TestMemoryStoreFetchMissing(t *testing.T) {
	s := NewMemoryStore()

	_, err := s.Fetch(context.Background(), "missing")
	if !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("Fetch error = %v, want ErrProfileNotFound", err)
	}
}

func TestMemoryStoreOverwrite(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	if err := s.Save(ctx, &domain.UserProfile{ID: "user-1", Name: "Dana"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := s.Save(ctx, &domain.UserProfile{ID: "user-1", Name: "Dana Updated"}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	fetched, err := s.Fetch(ctx, "user-1")
	if err != nil {
		t.Fatalf("Fetch failed: %v", err)
	}
	if fetched.Name != "Dana Updated" {
		t.Errorf("name = %q, want overwrite to win", fetched.Name)
	}
}
