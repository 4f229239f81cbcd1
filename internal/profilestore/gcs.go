package profilestore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/dvloznov/finance-migrator/internal/domain"
	"google.golang.org/api/option"
)

const profilePrefix = "profiles"

// GCSStore is a Google Cloud Storage implementation of ProfileStore.
// Each profile is one JSON object under profiles/<id>.json in the bucket.
// It assumes Application Default Credentials are configured unless client
// options are provided.
type GCSStore struct {
	client *storage.Client
	bucket string
}

// NewGCSStore creates a profile store backed by the given bucket.
func NewGCSStore(ctx context.Context, bucket string, opts ...option.ClientOption) (*GCSStore, error) {
	if bucket == "" {
		return nil, fmt.Errorf("profilestore: bucket is required")
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("profilestore: create storage client: %w", err)
	}

	return &GCSStore{
		client: client,
		bucket: bucket,
	}, nil
}

// objectName returns the object path for a profile id.
func objectName(profileID string) string {
	return path.Join(profilePrefix, profileID+".json")
}

// Save implements the ProfileStore interface.
func (s *GCSStore) Save(ctx context.Context, profile *domain.UserProfile) error {
	if profile == nil || profile.ID == "" {
		return fmt.Errorf("profilestore: profile id is required")
	}

	data, err := json.Marshal(profile)
	if err != nil {
		return fmt.Errorf("profilestore: encoding profile %s: %w", profile.ID, err)
	}

	ctx, cancel := context.WithTimeout(ctx, 2*time.Minute)
	defer cancel()

	obj := s.client.Bucket(s.bucket).Object(objectName(profile.ID))
	w := obj.NewWriter(ctx)
	w.ContentType = "application/json"

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return fmt.Errorf("profilestore: writing profile %s: %w", profile.ID, err)
	}

	// Close finalizes the upload
	if err := w.Close(); err != nil {
		return fmt.Errorf("profilestore: finalize upload of %s: %w", profile.ID, err)
	}

	return nil
}

// Fetch implements the ProfileStore interface.
func (s *GCSStore) Fetch(ctx context.Context, profileID string) (*domain.UserProfile, error) {
	rc, err := s.client.Bucket(s.bucket).Object(objectName(profileID)).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("profilestore: reading profile %s: %w", profileID, err)
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("profilestore: reading bytes for %s: %w", profileID, err)
	}

	var profile domain.UserProfile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("profilestore: decoding profile %s: %w", profileID, err)
	}

	return &profile, nil
}

// Close implements the ProfileStore interface.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Ensure GCSStore implements the ProfileStore interface.
var _ ProfileStore = (*GCSStore)(nil)
