package migration

import (
	"errors"
	"fmt"
)

// ErrNoLegacyData is returned when there is no legacy record to migrate.
var ErrNoLegacyData = errors.New("no legacy data found")

// ErrMigrationInProgress is returned when execute is called re-entrantly.
// Concurrent runs are rejected, never queued.
var ErrMigrationInProgress = errors.New("migration already in progress")

// InvalidDataError reports legacy data that fails critical pre-migration
// validation.
type InvalidDataError struct {
	Detail string
}

func (e *InvalidDataError) Error() string {
	return fmt.Sprintf("invalid legacy data: %s", e.Detail)
}

// BackupFailedError reports a failure to take the pre-migration backup.
type BackupFailedError struct {
	Detail string
}

func (e *BackupFailedError) Error() string {
	return fmt.Sprintf("backup failed: %s", e.Detail)
}

// ValidationFailedError reports a persistence or post-migration validation
// failure after the transform has run.
type ValidationFailedError struct {
	Detail string
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("validation failed: %s", e.Detail)
}

// RollbackFailedError reports a rollback that could not restore the
// pre-migration state. The system is left in a failed terminal state that
// requires a manual reset.
type RollbackFailedError struct {
	Detail string
}

func (e *RollbackFailedError) Error() string {
	return fmt.Sprintf("rollback failed: %s", e.Detail)
}
