package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/dvloznov/finance-migrator/internal/events"
	"github.com/rs/zerolog"
)

// backupIDFormat names backup directories by their creation timestamp.
const backupIDFormat = "20060102T150405.000000000Z"

// Config holds configuration for the backup manager.
type Config struct {
	// Root is the directory holding one subdirectory per backup.
	Root string

	// CheckpointDir is the sibling directory holding one file per checkpoint.
	CheckpointDir string

	// MaxBackupVersions is the number of backups housekeeping retains.
	MaxBackupVersions int

	// RetentionWindow is the maximum backup age housekeeping retains.
	RetentionWindow time.Duration

	// MaxCheckpoints caps stored checkpoints; oldest are evicted on overflow.
	MaxCheckpoints int

	// QueueSize is the write queue buffer size.
	QueueSize int
}

// DefaultConfig returns the standard layout under baseDir: backups/ and
// checkpoints/ side by side.
func DefaultConfig(baseDir string) Config {
	return Config{
		Root:              filepath.Join(baseDir, "backups"),
		CheckpointDir:     filepath.Join(baseDir, "checkpoints"),
		MaxBackupVersions: 5,
		RetentionWindow:   30 * 24 * time.Hour,
		MaxCheckpoints:    10,
		QueueSize:         16,
	}
}

// BackupResult reports one successful backup.
type BackupResult struct {
	BackupID  string
	Dir       string
	CreatedAt time.Time
	Manifest  Manifest
}

// ComponentCheck is the verification outcome for one component.
type ComponentCheck struct {
	Type   ComponentType
	OK     bool
	Detail string
}

// VerificationResult reports per-component verification of one backup.
type VerificationResult struct {
	BackupID   string
	OK         bool
	Components []ComponentCheck
}

// HousekeepingResult reports what the pruning pass removed.
type HousekeepingResult struct {
	RemovedBackups     int
	RemovedCheckpoints int
}

// Manager is the consolidated backup module: full three-component backups,
// verification, restore, checkpoints and housekeeping. Both the migration
// orchestrator and the safety subsystem go through it, so the two backup
// paths cannot diverge.
type Manager struct {
	cfg   Config
	log   zerolog.Logger
	rec   events.Recorder
	queue *writeQueue
}

// NewManager creates the manager, its directories and the write queue.
func NewManager(cfg Config, log zerolog.Logger, rec events.Recorder) (*Manager, error) {
	if cfg.Root == "" || cfg.CheckpointDir == "" {
		return nil, fmt.Errorf("backup: root and checkpoint directories are required")
	}
	if rec == nil {
		rec = events.NopRecorder{}
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 16
	}

	if err := os.MkdirAll(cfg.Root, 0o755); err != nil {
		return nil, fmt.Errorf("backup: creating root %s: %w", cfg.Root, err)
	}
	if err := os.MkdirAll(cfg.CheckpointDir, 0o755); err != nil {
		return nil, fmt.Errorf("backup: creating checkpoint dir %s: %w", cfg.CheckpointDir, err)
	}

	return &Manager{
		cfg:   cfg,
		log:   log,
		rec:   rec,
		queue: newWriteQueue(cfg.QueueSize),
	}, nil
}

// Root returns the backup root directory.
func (m *Manager) Root() string {
	return m.cfg.Root
}

// Close stops the write queue. In-flight writes complete first.
func (m *Manager) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return m.queue.stop(ctx)
}

// CreateBackup writes the snapshot's three components to a fresh timestamped
// directory, then the manifest describing them. The manifest is written last:
// a directory without one is an incomplete backup and is ignored by listing.
func (m *Manager) CreateBackup(ctx context.Context, snap Snapshot) (*BackupResult, error) {
	if len(snap.LegacyData) == 0 {
		return nil, fmt.Errorf("backup: no legacy data to back up")
	}

	var result *BackupResult
	err := m.queue.do(ctx, func() error {
		createdAt := time.Now().UTC()
		backupID := createdAt.Format(backupIDFormat)
		dir := filepath.Join(m.cfg.Root, backupID)

		if err := os.Mkdir(dir, 0o755); err != nil {
			return fmt.Errorf("backup: creating directory %s: %w", dir, err)
		}

		manifest := Manifest{
			BackupID:  backupID,
			CreatedAt: createdAt,
		}

		for _, t := range allComponentTypes {
			data := snap.componentData(t)
			filename, err := componentFilename(t)
			if err != nil {
				return err
			}
			if err := os.WriteFile(filepath.Join(dir, filename), data, 0o644); err != nil {
				return fmt.Errorf("backup: writing component %s: %w", t, err)
			}
			manifest.Components = append(manifest.Components, BackupComponent{
				Type:        t,
				ByteSize:    int64(len(data)),
				ContentHash: hashBytes(data),
			})
		}

		manifestData, err := json.MarshalIndent(&manifest, "", "  ")
		if err != nil {
			return fmt.Errorf("backup: encoding manifest: %w", err)
		}
		if err := os.WriteFile(filepath.Join(dir, manifestFilename), manifestData, 0o644); err != nil {
			return fmt.Errorf("backup: writing manifest: %w", err)
		}

		result = &BackupResult{
			BackupID:  backupID,
			Dir:       dir,
			CreatedAt: createdAt,
			Manifest:  manifest,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info().Str("backup_id", result.BackupID).Msg("Backup created")
	m.record(ctx, events.EventBackupCreated, result.BackupID, true)

	return result, nil
}

// ReadManifest loads the manifest of the given backup.
func (m *Manager) ReadManifest(backupID string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(m.cfg.Root, backupID, manifestFilename))
	if err != nil {
		return nil, fmt.Errorf("backup: reading manifest of %s: %w", backupID, err)
	}
	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, fmt.Errorf("backup: decoding manifest of %s: %w", backupID, err)
	}
	return &manifest, nil
}

// VerifyBackup re-reads each component, recomputes its hash and size and
// reports per-component pass/fail. It never mutates the backup and can be
// re-run at any time.
func (m *Manager) VerifyBackup(ctx context.Context, backupID string) (*VerificationResult, error) {
	manifest, err := m.ReadManifest(backupID)
	if err != nil {
		return nil, err
	}

	result := &VerificationResult{
		BackupID: backupID,
		OK:       true,
	}

	dir := filepath.Join(m.cfg.Root, backupID)
	for _, comp := range manifest.Components {
		check := ComponentCheck{Type: comp.Type, OK: true}

		filename, err := componentFilename(comp.Type)
		if err != nil {
			check.OK = false
			check.Detail = err.Error()
			result.OK = false
			result.Components = append(result.Components, check)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, filename))
		if err != nil {
			check.OK = false
			check.Detail = fmt.Sprintf("unreadable: %v", err)
			result.OK = false
			result.Components = append(result.Components, check)
			continue
		}

		if int64(len(data)) != comp.ByteSize {
			check.OK = false
			check.Detail = fmt.Sprintf("size mismatch: have %d, manifest says %d", len(data), comp.ByteSize)
			result.OK = false
		} else if hashBytes(data) != comp.ContentHash {
			check.OK = false
			check.Detail = "content hash mismatch"
			result.OK = false
		}

		result.Components = append(result.Components, check)
	}

	m.record(ctx, events.EventBackupVerified, backupID, result.OK)

	return result, nil
}

// Restore reads back all components of the given backup, verifying each
// against the manifest. Any mismatch aborts the whole restore with a
// RestorationVerificationFailedError; a partially trusted snapshot is never
// returned.
func (m *Manager) Restore(ctx context.Context, backupID string) (*Snapshot, error) {
	manifest, err := m.ReadManifest(backupID)
	if err != nil {
		return nil, err
	}

	dir := filepath.Join(m.cfg.Root, backupID)
	snap := &Snapshot{}
	var details []string

	for _, comp := range manifest.Components {
		filename, ferr := componentFilename(comp.Type)
		if ferr != nil {
			details = append(details, ferr.Error())
			continue
		}

		data, rerr := os.ReadFile(filepath.Join(dir, filename))
		if rerr != nil {
			details = append(details, fmt.Sprintf("%s: unreadable: %v", comp.Type, rerr))
			continue
		}
		if hashBytes(data) != comp.ContentHash {
			details = append(details, fmt.Sprintf("%s: content hash mismatch", comp.Type))
			continue
		}

		switch comp.Type {
		case ComponentLegacyData:
			snap.LegacyData = data
		case ComponentAppState:
			snap.AppState = data
		case ComponentUserPreferences:
			snap.UserPreferences = data
		}
	}

	if len(details) > 0 {
		return nil, &RestorationVerificationFailedError{BackupID: backupID, Details: details}
	}

	return snap, nil
}

// List returns the ids of all complete backups, newest first.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(m.cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("backup: reading root %s: %w", m.cfg.Root, err)
	}

	var ids []string
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// Incomplete backups have no manifest and are skipped.
		if _, err := os.Stat(filepath.Join(m.cfg.Root, entry.Name(), manifestFilename)); err != nil {
			continue
		}
		ids = append(ids, entry.Name())
	}

	// Directory names are timestamps, so lexical order is creation order.
	sort.Sort(sort.Reverse(sort.StringSlice(ids)))
	return ids, nil
}

// Latest returns the most recent complete backup id.
func (m *Manager) Latest(ctx context.Context) (string, error) {
	ids, err := m.List(ctx)
	if err != nil {
		return "", err
	}
	if len(ids) == 0 {
		return "", fmt.Errorf("backup: no backups available")
	}
	return ids[0], nil
}

// LatestVerified returns the most recent backup that passes full
// verification, walking backwards through history until one does.
func (m *Manager) LatestVerified(ctx context.Context) (string, error) {
	ids, err := m.List(ctx)
	if err != nil {
		return "", err
	}

	for _, id := range ids {
		verification, err := m.VerifyBackup(ctx, id)
		if err != nil {
			m.log.Warn().Err(err).Str("backup_id", id).Msg("Skipping unverifiable backup")
			continue
		}
		if verification.OK {
			return id, nil
		}
		m.log.Warn().Str("backup_id", id).Msg("Backup failed verification, trying older one")
	}

	return "", fmt.Errorf("backup: no verified backup available")
}

// Housekeeping prunes backups beyond the configured version count or older
// than the retention window, and checkpoints beyond count or retention. The
// newest backup is always kept.
func (m *Manager) Housekeeping(ctx context.Context) (*HousekeepingResult, error) {
	result := &HousekeepingResult{}

	err := m.queue.do(ctx, func() error {
		ids, err := m.List(ctx)
		if err != nil {
			return err
		}

		cutoff := time.Now().UTC().Add(-m.cfg.RetentionWindow)
		for i, id := range ids {
			if i == 0 {
				continue
			}
			tooMany := m.cfg.MaxBackupVersions > 0 && i >= m.cfg.MaxBackupVersions
			tooOld := false
			if createdAt, perr := time.Parse(backupIDFormat, id); perr == nil {
				tooOld = m.cfg.RetentionWindow > 0 && createdAt.Before(cutoff)
			}
			if !tooMany && !tooOld {
				continue
			}
			if err := os.RemoveAll(filepath.Join(m.cfg.Root, id)); err != nil {
				return fmt.Errorf("backup: pruning %s: %w", id, err)
			}
			result.RemovedBackups++
		}

		removed, err := m.pruneCheckpointsLocked(cutoff)
		if err != nil {
			return err
		}
		result.RemovedCheckpoints = removed
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info().
		Int("removed_backups", result.RemovedBackups).
		Int("removed_checkpoints", result.RemovedCheckpoints).
		Msg("Housekeeping completed")

	return result, nil
}

// record emits a lifecycle event; failures are logged, never propagated.
func (m *Manager) record(ctx context.Context, t events.EventType, backupID string, success bool) {
	event := events.New(t)
	event.Detail = backupID
	event.Success = success
	if err := m.rec.Record(ctx, event); err != nil {
		m.log.Warn().Err(err).Str("event_type", string(t)).Msg("Failed to record event")
	}
}
