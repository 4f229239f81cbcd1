package safety

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dvloznov/finance-migrator/internal/backup"
	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/dvloznov/finance-migrator/internal/events"
	"github.com/dvloznov/finance-migrator/internal/storage"
	"github.com/dvloznov/finance-migrator/internal/validation"
	"github.com/rs/zerolog"
)

// Config tunes the supervisor's pre-flight thresholds.
type Config struct {
	// MinFreeBytes is the storage headroom the arming gate requires.
	MinFreeBytes uint64

	// LowStorageBytes is the monitor's warning threshold; below
	// MinFreeBytes the monitor escalates to critical.
	LowStorageBytes uint64
}

// DefaultConfig requires 50 MiB to arm and warns below 200 MiB.
func DefaultConfig() Config {
	return Config{
		MinFreeBytes:    50 << 20,
		LowStorageBytes: 200 << 20,
	}
}

// MigrationActivity reports whether a migration is executing right now.
// This abstraction allows the supervisor to consult the orchestrator
// without depending on the migration package.
type MigrationActivity interface {
	Running() bool
}

// Supervisor is the safety subsystem: the arming gate, emergency rollback
// and recovery guidance. Backup and checkpoint mechanics live in the backup
// manager; the supervisor decides when the system is safe to proceed and how
// to get back to a known-good state.
type Supervisor struct {
	cfg     Config
	store   storage.RecordStore
	backups *backup.Manager
	engine  *validation.Engine
	rec     events.Recorder
	log     zerolog.Logger

	mu       sync.Mutex
	status   Status
	activity MigrationActivity
}

// NewSupervisor wires the supervisor to its collaborators.
func NewSupervisor(cfg Config, store storage.RecordStore, backups *backup.Manager, engine *validation.Engine, rec events.Recorder, log zerolog.Logger) *Supervisor {
	if rec == nil {
		rec = events.NopRecorder{}
	}
	return &Supervisor{
		cfg:     cfg,
		store:   store,
		backups: backups,
		engine:  engine,
		rec:     rec,
		log:     log,
		status:  StatusNormal,
	}
}

// SetMigrationActivity registers the in-flight migration check. It is
// optional; without one the supervisor assumes no migration is running.
// A setter rather than a constructor argument because the orchestrator is
// built after the supervisor it depends on.
func (s *Supervisor) SetMigrationActivity(a MigrationActivity) {
	s.mu.Lock()
	s.activity = a
	s.mu.Unlock()
}

func (s *Supervisor) migrationRunning() bool {
	s.mu.Lock()
	activity := s.activity
	s.mu.Unlock()
	return activity != nil && activity.Running()
}

// Status returns the subsystem's current health state.
func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// ClearCritical returns the subsystem to normal after manual intervention.
func (s *Supervisor) ClearCritical() {
	s.mu.Lock()
	s.status = StatusNormal
	s.mu.Unlock()
	s.log.Info().Msg("Safety status cleared to normal")
}

func (s *Supervisor) escalate(reason string) {
	s.mu.Lock()
	s.status = StatusCritical
	s.mu.Unlock()
	s.log.Error().Str("reason", reason).Msg("Safety status escalated to critical")
}

// ArmSafetyChecks runs the five independent pre-flight checks and reports
// armed only if every one passes. Each failing check carries a remediation
// hint for the operator.
func (s *Supervisor) ArmSafetyChecks(ctx context.Context) (*ArmingResult, error) {
	result := &ArmingResult{Armed: true}

	add := func(c ArmingCheck) {
		if !c.Passed {
			result.Armed = false
		}
		result.Checks = append(result.Checks, c)
	}

	add(s.checkStorageSpace())
	add(s.checkBackupWritable())
	add(s.checkRollbackPlan(ctx))
	add(s.checkBaselineIntegrity(ctx))
	add(s.checkRecoveryMechanisms())

	event := "Safety checks armed"
	if !result.Armed {
		event = "Safety checks not armed"
	}
	s.log.Info().Bool("armed", result.Armed).Int("checks", len(result.Checks)).Msg(event)

	return result, nil
}

func (s *Supervisor) checkStorageSpace() ArmingCheck {
	check := ArmingCheck{Name: "storage_space", Passed: true}

	free, err := diskFree(s.backups.Root())
	if err != nil {
		check.Passed = false
		check.Detail = fmt.Sprintf("cannot determine free space: %v", err)
		check.Remediation = "verify the backup volume is mounted and readable"
		return check
	}
	if free < s.cfg.MinFreeBytes {
		check.Passed = false
		check.Detail = fmt.Sprintf("%d bytes free, need %d", free, s.cfg.MinFreeBytes)
		check.Remediation = "free up storage space before migrating"
	}
	return check
}

func (s *Supervisor) checkBackupWritable() ArmingCheck {
	check := ArmingCheck{Name: "backup_location_writable", Passed: true}

	probe := filepath.Join(s.backups.Root(), ".write_probe")
	if err := os.WriteFile(probe, []byte("probe"), 0o644); err != nil {
		check.Passed = false
		check.Detail = err.Error()
		check.Remediation = "fix permissions on the backup directory"
		return check
	}
	if err := os.Remove(probe); err != nil {
		check.Passed = false
		check.Detail = fmt.Sprintf("probe cleanup failed: %v", err)
		check.Remediation = "fix permissions on the backup directory"
	}
	return check
}

// checkRollbackPlan passes if a restorable backup already exists or a fresh
// one can be taken (legacy data is present).
func (s *Supervisor) checkRollbackPlan(ctx context.Context) ArmingCheck {
	check := ArmingCheck{Name: "rollback_plan", Passed: true}

	if ids, err := s.backups.List(ctx); err == nil && len(ids) > 0 {
		return check
	}

	exists, err := s.store.Exists(ctx, domain.KeyLegacyData)
	if err != nil {
		check.Passed = false
		check.Detail = fmt.Sprintf("cannot probe legacy data: %v", err)
		check.Remediation = "verify the record store is reachable"
		return check
	}
	if !exists {
		check.Passed = false
		check.Detail = "no existing backup and no legacy data to back up"
		check.Remediation = "nothing to migrate; do not run the migration"
	}
	return check
}

// checkBaselineIntegrity parses the legacy blob and runs the pre-migration
// checks; critical findings mean migrating now would bake corruption in.
func (s *Supervisor) checkBaselineIntegrity(ctx context.Context) ArmingCheck {
	check := ArmingCheck{Name: "baseline_integrity", Passed: true}

	data, err := s.store.Get(ctx, domain.KeyLegacyData)
	if errors.Is(err, storage.ErrNotFound) {
		check.Detail = "no legacy data present"
		return check
	}
	if err != nil {
		check.Passed = false
		check.Detail = fmt.Sprintf("cannot read legacy data: %v", err)
		check.Remediation = "verify the record store is reachable"
		return check
	}

	var legacy domain.LegacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		check.Passed = false
		check.Detail = fmt.Sprintf("legacy data is not decodable: %v", err)
		check.Remediation = "restore legacy data from a backup before migrating"
		return check
	}

	issues := s.engine.ValidatePreMigration(ctx, &legacy)
	if validation.HasCritical(issues) {
		check.Passed = false
		check.Detail = fmt.Sprintf("legacy data fails baseline checks: %v", validation.CriticalMessages(issues))
		check.Remediation = "repair the legacy record before migrating"
	}
	return check
}

func (s *Supervisor) checkRecoveryMechanisms() ArmingCheck {
	check := ArmingCheck{Name: "recovery_mechanisms", Passed: true}

	if s.backups == nil {
		check.Passed = false
		check.Detail = "no backup manager configured"
		check.Remediation = "wire a backup manager before migrating"
		return check
	}
	if s.Status() == StatusCritical {
		check.Passed = false
		check.Detail = "safety status is critical from a previous failure"
		check.Remediation = "investigate the previous failure and clear critical state"
	}
	return check
}

// EmergencyRollback restores every component from the most recent verified
// backup, re-validates the restored state and only then clears migration
// state back to pre-migration. Partial restoration is never reported as
// success; verification failures escalate the safety status to critical.
func (s *Supervisor) EmergencyRollback(ctx context.Context) *EmergencyRollbackResult {
	startedAt := time.Now().UTC()
	result := &EmergencyRollbackResult{StartedAt: startedAt}

	fail := func(msg string, escalateCritical bool) *EmergencyRollbackResult {
		if escalateCritical {
			s.escalate(msg)
		}
		result.Success = false
		result.Message = msg
		result.Status = s.Status()
		result.Duration = time.Since(startedAt)
		s.log.Error().Str("backup_id", result.BackupID).Msg(msg)
		s.record(ctx, false, msg)
		return result
	}

	// Restoring while the orchestrator is mid-run would race its stage
	// writes; the orchestrator's own failure path rolls that run back.
	if s.migrationRunning() {
		return fail("emergency rollback: migration in flight; retry after it settles", false)
	}

	backupID, err := s.backups.LatestVerified(ctx)
	if err != nil {
		return fail(fmt.Sprintf("emergency rollback: no verified backup available: %v", err), true)
	}
	result.BackupID = backupID

	snap, err := s.backups.Restore(ctx, backupID)
	if err != nil {
		var verr *backup.RestorationVerificationFailedError
		if errors.As(err, &verr) {
			return fail(fmt.Sprintf("emergency rollback: restoration verification failed: %v", verr), true)
		}
		return fail(fmt.Sprintf("emergency rollback: restore failed: %v", err), true)
	}

	var legacy domain.LegacyRecord
	if err := json.Unmarshal(snap.LegacyData, &legacy); err != nil {
		return fail(fmt.Sprintf("emergency rollback: restored legacy data is not decodable: %v", err), true)
	}
	if issues := s.engine.ValidatePreMigration(ctx, &legacy); validation.HasCritical(issues) {
		return fail(fmt.Sprintf("emergency rollback: restored state fails validation: %v",
			validation.CriticalMessages(issues)), true)
	}

	if err := s.store.Put(ctx, domain.KeyLegacyData, snap.LegacyData); err != nil {
		return fail(fmt.Sprintf("emergency rollback: writing legacy data back: %v", err), true)
	}
	if len(snap.AppState) > 0 {
		if err := s.store.Put(ctx, domain.KeyAppState, snap.AppState); err != nil {
			return fail(fmt.Sprintf("emergency rollback: writing app state back: %v", err), true)
		}
	}
	if len(snap.UserPreferences) > 0 {
		if err := s.store.Put(ctx, domain.KeyUserPreferences, snap.UserPreferences); err != nil {
			return fail(fmt.Sprintf("emergency rollback: writing preferences back: %v", err), true)
		}
	}

	// Components are restored and validated; only now clear migration state.
	for _, key := range []string{domain.KeyMigrationStatus, domain.KeyMigrationVersion, domain.KeyMigrationBackup} {
		if err := s.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fail(fmt.Sprintf("emergency rollback: clearing migration state %s: %v", key, err), true)
		}
	}

	result.Success = true
	result.Message = fmt.Sprintf("emergency rollback completed from backup %s", backupID)
	result.Status = s.Status()
	result.Duration = time.Since(startedAt)

	s.log.Info().Str("backup_id", backupID).Dur("duration", result.Duration).Msg("Emergency rollback completed")
	s.record(ctx, true, backupID)

	return result
}

// RecoveryRecommendations derives operator guidance from the backup store
// and the safety status.
func (s *Supervisor) RecoveryRecommendations(ctx context.Context) []RecoveryRecommendation {
	var recs []RecoveryRecommendation

	if s.Status() == StatusCritical {
		recs = append(recs, RecoveryRecommendation{
			Priority: "high",
			Action:   "investigate the failed restoration before any further migration attempt",
			Reason:   "safety status is critical; automated recovery is suspended",
		})
	}

	ids, err := s.backups.List(ctx)
	switch {
	case err != nil:
		recs = append(recs, RecoveryRecommendation{
			Priority: "high",
			Action:   "verify the backup directory is reachable",
			Reason:   fmt.Sprintf("cannot list backups: %v", err),
		})
	case len(ids) == 0:
		recs = append(recs, RecoveryRecommendation{
			Priority: "high",
			Action:   "create a backup before attempting migration",
			Reason:   "no backups exist; there is no rollback plan",
		})
	default:
		if _, err := s.backups.LatestVerified(ctx); err != nil {
			recs = append(recs, RecoveryRecommendation{
				Priority: "high",
				Action:   "create a fresh backup; all existing ones fail verification",
				Reason:   err.Error(),
			})
		}
	}

	if free, err := diskFree(s.backups.Root()); err == nil && free < s.cfg.LowStorageBytes {
		recs = append(recs, RecoveryRecommendation{
			Priority: "medium",
			Action:   "free up storage space",
			Reason:   fmt.Sprintf("%d bytes free, below the %d byte comfort threshold", free, s.cfg.LowStorageBytes),
		})
	}

	if len(recs) == 0 {
		recs = append(recs, RecoveryRecommendation{
			Priority: "low",
			Action:   "no action needed",
			Reason:   "backups verify and storage headroom is sufficient",
		})
	}
	return recs
}

func (s *Supervisor) record(ctx context.Context, success bool, detail string) {
	event := events.New(events.EventEmergencyRollback)
	event.Success = success
	event.Detail = detail
	if err := s.rec.Record(ctx, event); err != nil {
		s.log.Warn().Err(err).Msg("Failed to record event")
	}
}
