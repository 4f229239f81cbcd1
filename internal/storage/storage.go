package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no record exists under the given key.
var ErrNotFound = errors.New("record not found")

// RecordStore is the string-keyed byte-blob store holding the legacy record,
// the migrated records and the migration markers.
// This abstraction allows for different implementations (Badger on device,
// in-memory for tests).
type RecordStore interface {
	// Put stores value under key, overwriting any existing record.
	Put(ctx context.Context, key string, value []byte) error

	// Get retrieves the record stored under key.
	// Returns ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes the record under key. Deleting a missing key is a no-op.
	Delete(ctx context.Context, key string) error

	// Exists reports whether a record is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Keys lists all keys with the given prefix. An empty prefix lists
	// every key.
	Keys(ctx context.Context, prefix string) ([]string, error)

	// Close releases store resources.
	Close() error
}
