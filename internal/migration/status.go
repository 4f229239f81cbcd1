package migration

import (
	"context"
	"errors"
	"fmt"

	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/dvloznov/finance-migrator/internal/storage"
)

// Status is the migration state machine:
// notStarted -> inProgress -> {completed, failed}; failed -> rolledBack.
// completed, failed and rolledBack are terminal until reset returns the
// machine to notStarted.
type Status string

const (
	StatusNotStarted Status = "notStarted"
	StatusInProgress Status = "inProgress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRolledBack Status = "rolledBack"
)

// Terminal reports whether the status requires a reset before a new run.
// A rollback failure leaves the machine at failed, which is just as
// terminal as completed or rolledBack until an operator intervenes.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusRolledBack
}

// loadStatus reads the persisted status marker; a missing marker means
// notStarted.
func loadStatus(ctx context.Context, store storage.RecordStore) (Status, error) {
	data, err := store.Get(ctx, domain.KeyMigrationStatus)
	if errors.Is(err, storage.ErrNotFound) {
		return StatusNotStarted, nil
	}
	if err != nil {
		return "", fmt.Errorf("reading migration status: %w", err)
	}

	status := Status(data)
	switch status {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusFailed, StatusRolledBack:
		return status, nil
	default:
		return "", fmt.Errorf("unknown persisted migration status %q", data)
	}
}

// saveStatus persists the status marker so interrupted runs are detectable
// on next launch.
func saveStatus(ctx context.Context, store storage.RecordStore, status Status) error {
	if status == StatusNotStarted {
		if err := store.Delete(ctx, domain.KeyMigrationStatus); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("clearing migration status: %w", err)
		}
		return nil
	}
	if err := store.Put(ctx, domain.KeyMigrationStatus, []byte(status)); err != nil {
		return fmt.Errorf("persisting migration status: %w", err)
	}
	return nil
}
