package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Checkpoint is a lightweight named snapshot taken at an arbitrary point
// during migration. It is persisted immediately on creation and verified by
// hash before any restore.
type Checkpoint struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	Payload     []byte    `json:"payload"`
	ContentHash string    `json:"content_hash"`
}

const checkpointExt = ".json"

// CreateCheckpoint persists a named payload with its sha256 digest and
// returns the checkpoint id. If the stored count exceeds the configured
// maximum, the oldest checkpoints are evicted.
func (m *Manager) CreateCheckpoint(ctx context.Context, name string, payload []byte) (string, error) {
	if name == "" {
		return "", fmt.Errorf("backup: checkpoint name is required")
	}

	cp := Checkpoint{
		ID:          uuid.NewString(),
		Name:        name,
		CreatedAt:   time.Now().UTC(),
		Payload:     payload,
		ContentHash: hashBytes(payload),
	}

	err := m.queue.do(ctx, func() error {
		data, err := json.Marshal(&cp)
		if err != nil {
			return fmt.Errorf("backup: encoding checkpoint %q: %w", name, err)
		}
		path := filepath.Join(m.cfg.CheckpointDir, cp.ID+checkpointExt)
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("backup: writing checkpoint %q: %w", name, err)
		}

		return m.evictCheckpointsLocked()
	})
	if err != nil {
		return "", err
	}

	m.log.Info().Str("checkpoint_id", cp.ID).Str("name", name).Msg("Checkpoint created")
	return cp.ID, nil
}

// ReadCheckpoint loads a checkpoint by id without verifying it.
func (m *Manager) ReadCheckpoint(checkpointID string) (*Checkpoint, error) {
	data, err := os.ReadFile(filepath.Join(m.cfg.CheckpointDir, checkpointID+checkpointExt))
	if err != nil {
		return nil, fmt.Errorf("backup: reading checkpoint %s: %w", checkpointID, err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(data, &cp); err != nil {
		return nil, fmt.Errorf("backup: decoding checkpoint %s: %w", checkpointID, err)
	}
	return &cp, nil
}

// RollbackToCheckpoint returns the payload of the given checkpoint after
// recomputing its hash. A hash mismatch is a hard precondition failure: the
// payload is never returned from a corrupted checkpoint.
func (m *Manager) RollbackToCheckpoint(ctx context.Context, checkpointID string) ([]byte, error) {
	cp, err := m.ReadCheckpoint(checkpointID)
	if err != nil {
		return nil, err
	}

	if hashBytes(cp.Payload) != cp.ContentHash {
		return nil, &CheckpointCorruptedError{Name: cp.Name}
	}

	m.log.Info().Str("checkpoint_id", checkpointID).Str("name", cp.Name).Msg("Checkpoint restored")
	return cp.Payload, nil
}

// ListCheckpoints returns all stored checkpoints, oldest first.
func (m *Manager) ListCheckpoints(ctx context.Context) ([]*Checkpoint, error) {
	entries, err := os.ReadDir(m.cfg.CheckpointDir)
	if err != nil {
		return nil, fmt.Errorf("backup: reading checkpoint dir: %w", err)
	}

	var cps []*Checkpoint
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), checkpointExt) {
			continue
		}
		cp, err := m.ReadCheckpoint(strings.TrimSuffix(entry.Name(), checkpointExt))
		if err != nil {
			m.log.Warn().Err(err).Str("file", entry.Name()).Msg("Skipping unreadable checkpoint")
			continue
		}
		cps = append(cps, cp)
	}

	sort.Slice(cps, func(i, j int) bool {
		return cps[i].CreatedAt.Before(cps[j].CreatedAt)
	})
	return cps, nil
}

// evictCheckpointsLocked removes the oldest checkpoints beyond the configured
// maximum. Must run on the write queue.
func (m *Manager) evictCheckpointsLocked() error {
	if m.cfg.MaxCheckpoints <= 0 {
		return nil
	}

	cps, err := m.ListCheckpoints(context.Background())
	if err != nil {
		return err
	}

	for len(cps) > m.cfg.MaxCheckpoints {
		oldest := cps[0]
		if err := os.Remove(filepath.Join(m.cfg.CheckpointDir, oldest.ID+checkpointExt)); err != nil {
			return fmt.Errorf("backup: evicting checkpoint %s: %w", oldest.ID, err)
		}
		m.log.Debug().Str("checkpoint_id", oldest.ID).Msg("Evicted oldest checkpoint")
		cps = cps[1:]
	}
	return nil
}

// pruneCheckpointsLocked removes checkpoints older than cutoff and enforces
// the count cap. Must run on the write queue.
func (m *Manager) pruneCheckpointsLocked(cutoff time.Time) (int, error) {
	cps, err := m.ListCheckpoints(context.Background())
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, cp := range cps {
		if m.cfg.RetentionWindow > 0 && cp.CreatedAt.Before(cutoff) {
			if err := os.Remove(filepath.Join(m.cfg.CheckpointDir, cp.ID+checkpointExt)); err != nil {
				return removed, fmt.Errorf("backup: pruning checkpoint %s: %w", cp.ID, err)
			}
			removed++
		}
	}

	if err := m.evictCheckpointsLocked(); err != nil {
		return removed, err
	}
	return removed, nil
}
