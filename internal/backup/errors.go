package backup

import (
	"fmt"
	"strings"
)

// CheckpointCorruptedError is returned when a checkpoint's stored hash does
// not match the recomputed hash of its payload. Restoring from a corrupted
// checkpoint is refused, never attempted.
type CheckpointCorruptedError struct {
	Name string
}

func (e *CheckpointCorruptedError) Error() string {
	return fmt.Sprintf("checkpoint %q is corrupted: payload hash mismatch", e.Name)
}

// RestorationVerificationFailedError is returned when one or more components
// of a backup fail hash or size verification during restore.
type RestorationVerificationFailedError struct {
	BackupID string
	Details  []string
}

func (e *RestorationVerificationFailedError) Error() string {
	return fmt.Sprintf("restoration verification failed for backup %s: %s",
		e.BackupID, strings.Join(e.Details, "; "))
}
