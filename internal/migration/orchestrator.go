package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dvloznov/finance-migrator/internal/backup"
	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/dvloznov/finance-migrator/internal/events"
	"github.com/dvloznov/finance-migrator/internal/profilestore"
	"github.com/dvloznov/finance-migrator/internal/storage"
	"github.com/dvloznov/finance-migrator/internal/validation"
	"github.com/rs/zerolog"
)

// dataModelVersion marks the split data model written by this migration.
const dataModelVersion = "2"

// Progress is one progress report: a monotonically increasing fraction in
// [0,1] plus the label of the stage just completed.
type Progress struct {
	Fraction float64 `json:"fraction"`
	Step     string  `json:"step"`
}

// ProgressFunc observes progress updates. Called synchronously between
// stages; implementations must be fast and must not call back into the
// orchestrator.
type ProgressFunc func(Progress)

// Outcome is the caller-facing result of execute or rollback: a boolean
// plus a human-readable message. No failure is silently swallowed.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Status  Status `json:"status"`
}

// Orchestrator drives the staged one-time migration from the legacy
// single-blob record to the split data model. Only one migration may run at
// a time; re-entrant calls are rejected, not queued.
type Orchestrator struct {
	store      storage.RecordStore
	profiles   profilestore.ProfileStore
	backups    *backup.Manager
	engine     *validation.Engine
	rec        events.Recorder
	log        zerolog.Logger
	onProgress ProgressFunc

	mu      sync.Mutex
	running bool
}

// NewOrchestrator wires the orchestrator to its collaborators. onProgress
// and rec may be nil.
func NewOrchestrator(store storage.RecordStore, profiles profilestore.ProfileStore, backups *backup.Manager, engine *validation.Engine, rec events.Recorder, log zerolog.Logger, onProgress ProgressFunc) *Orchestrator {
	if rec == nil {
		rec = events.NopRecorder{}
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}
	return &Orchestrator{
		store:      store,
		profiles:   profiles,
		backups:    backups,
		engine:     engine,
		rec:        rec,
		log:        log,
		onProgress: onProgress,
	}
}

// steps returns the eight pipeline stages in execution order.
func (o *Orchestrator) steps() []migrationStep {
	return []migrationStep{
		&backupStep{o},
		&loadStep{o},
		&preValidateStep{o},
		&buildProfileStep{o},
		&buildFinancialStep{o},
		&persistStep{o},
		&postValidateStep{o},
		&finalizeStep{o},
	}
}

// Execute runs the full migration pipeline. Calling it when the migration
// is already completed is a success no-op; calling it while one is running
// is rejected with ErrMigrationInProgress; calling it from failed or
// rolledBack is rejected until Reset returns the machine to notStarted.
// A failure at any stage after the backup automatically rolls back before
// the outcome is surfaced.
func (o *Orchestrator) Execute(ctx context.Context) *Outcome {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return &Outcome{Success: false, Message: ErrMigrationInProgress.Error(), Status: StatusInProgress}
	}

	status, err := loadStatus(ctx, o.store)
	if err != nil {
		o.mu.Unlock()
		return &Outcome{Success: false, Message: err.Error(), Status: StatusNotStarted}
	}
	switch {
	case status == StatusCompleted:
		o.mu.Unlock()
		return &Outcome{Success: true, Message: "migration already completed", Status: StatusCompleted}
	case status == StatusInProgress:
		o.mu.Unlock()
		return &Outcome{Success: false, Message: ErrMigrationInProgress.Error(), Status: StatusInProgress}
	case status.Terminal():
		// failed and rolledBack stay terminal until an explicit reset.
		o.mu.Unlock()
		return &Outcome{
			Success: false,
			Message: fmt.Sprintf("migration status is %s; run reset before migrating again", status),
			Status:  status,
		}
	}

	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	if err := saveStatus(ctx, o.store, StatusInProgress); err != nil {
		return &Outcome{Success: false, Message: err.Error(), Status: status}
	}

	o.log.Info().Msg("Migration started")
	o.record(ctx, events.EventMigrationStarted, "", true)

	state := &migrationState{startedAt: time.Now().UTC()}
	for i, step := range o.steps() {
		if err := step.Execute(ctx, state); err != nil {
			return o.failExecute(ctx, state, i+1, step.Label(), err)
		}
		o.onProgress(Progress{Fraction: step.Progress(), Step: step.Label()})
		o.log.Info().
			Int("stage", i+1).
			Float64("progress", step.Progress()).
			Msg(step.Label())
		o.record(ctx, events.EventStageCompleted, step.Label(), true)

		// The transform is complete and verified locally before persisting;
		// keep a lightweight restore point alongside the full backup.
		if _, ok := step.(*buildFinancialStep); ok {
			o.checkpoint(ctx, state)
		}
	}

	if err := saveStatus(ctx, o.store, StatusCompleted); err != nil {
		return &Outcome{Success: false, Message: err.Error(), Status: StatusInProgress}
	}

	o.log.Info().Msg("Migration completed")
	o.record(ctx, events.EventMigrationCompleted, "", true)

	return &Outcome{Success: true, Message: "migration completed", Status: StatusCompleted}
}

// failExecute handles a stage failure: mark failed, auto-rollback for
// stages after the backup, and build the combined caller-facing message.
func (o *Orchestrator) failExecute(ctx context.Context, state *migrationState, stage int, label string, stageErr error) *Outcome {
	o.log.Error().Err(stageErr).Int("stage", stage).Str("step", label).Msg("Migration stage failed")
	o.record(ctx, events.EventMigrationFailed, label, false)

	if err := saveStatus(ctx, o.store, StatusFailed); err != nil {
		o.log.Error().Err(err).Msg("Failed to persist failed status")
	}

	// Stage 1 failed before anything was mutated; there is nothing to roll
	// back.
	if stage == 1 {
		return &Outcome{Success: false, Message: stageErr.Error(), Status: StatusFailed}
	}

	rollbackErr := o.rollbackFrom(ctx, state.backupID, state.profile)
	if rollbackErr != nil {
		o.record(ctx, events.EventRollbackFailed, rollbackErr.Error(), false)
		return &Outcome{
			Success: false,
			Message: fmt.Sprintf("migration failed, rollback also failed (migration: %v; rollback: %v)", stageErr, rollbackErr),
			Status:  StatusFailed,
		}
	}

	if err := saveStatus(ctx, o.store, StatusRolledBack); err != nil {
		o.log.Error().Err(err).Msg("Failed to persist rolled back status")
	}
	o.record(ctx, events.EventRollbackSucceeded, "", true)

	return &Outcome{
		Success: false,
		Message: fmt.Sprintf("migration failed, rollback succeeded (original error: %v)", stageErr),
		Status:  StatusRolledBack,
	}
}

// Rollback explicitly restores the pre-migration state from the backup
// taken at the start of the most recent run.
func (o *Orchestrator) Rollback(ctx context.Context) *Outcome {
	o.mu.Lock()
	if o.running {
		o.mu.Unlock()
		return &Outcome{Success: false, Message: ErrMigrationInProgress.Error(), Status: StatusInProgress}
	}
	o.running = true
	o.mu.Unlock()
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	backupID, profile := o.lastRunArtifacts(ctx)
	if err := o.rollbackFrom(ctx, backupID, profile); err != nil {
		o.record(ctx, events.EventRollbackFailed, err.Error(), false)
		return &Outcome{Success: false, Message: err.Error(), Status: StatusFailed}
	}

	if err := saveStatus(ctx, o.store, StatusRolledBack); err != nil {
		return &Outcome{Success: false, Message: err.Error(), Status: StatusFailed}
	}
	o.record(ctx, events.EventRollbackSucceeded, "", true)

	return &Outcome{Success: true, Message: "rollback completed", Status: StatusRolledBack}
}

// rollbackFrom restores the legacy blob from the given backup and removes
// any migrated records written during the failed run.
func (o *Orchestrator) rollbackFrom(ctx context.Context, backupID string, profile *domain.UserProfile) error {
	if backupID == "" {
		return &RollbackFailedError{Detail: "no backup recorded for the current run"}
	}

	snap, err := o.backups.Restore(ctx, backupID)
	if err != nil {
		return &RollbackFailedError{Detail: fmt.Sprintf("restoring backup %s: %v", backupID, err)}
	}
	if err := o.store.Put(ctx, domain.KeyLegacyData, snap.LegacyData); err != nil {
		return &RollbackFailedError{Detail: fmt.Sprintf("writing legacy data back: %v", err)}
	}

	cleanup := []string{domain.KeyMigrationVersion, domain.KeyLegacyArchived}
	if profile != nil {
		cleanup = append(cleanup, domain.ProfileKey(profile.ID), domain.FinancialDataKey(profile.ID))
	}
	for _, key := range cleanup {
		if err := o.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return &RollbackFailedError{Detail: fmt.Sprintf("removing %s: %v", key, err)}
		}
	}

	o.log.Info().Str("backup_id", backupID).Msg("Rollback completed")
	return nil
}

// lastRunArtifacts recovers the backup id and migrated profile of the most
// recent run from the store, for rollbacks requested after the fact.
func (o *Orchestrator) lastRunArtifacts(ctx context.Context) (string, *domain.UserProfile) {
	var backupID string
	if data, err := o.store.Get(ctx, domain.KeyMigrationBackup); err == nil {
		backupID = string(data)
	}

	var profile *domain.UserProfile
	if keys, err := o.store.Keys(ctx, "UserProfile_"); err == nil && len(keys) > 0 {
		if data, err := o.store.Get(ctx, keys[0]); err == nil {
			var p domain.UserProfile
			if json.Unmarshal(data, &p) == nil {
				profile = &p
			}
		}
	}
	return backupID, profile
}

// Reset returns the state machine to notStarted. Allowed only from a
// terminal state or before the first run; never while running.
func (o *Orchestrator) Reset(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running {
		return ErrMigrationInProgress
	}

	status, err := loadStatus(ctx, o.store)
	if err != nil {
		return err
	}
	if status == StatusInProgress {
		return ErrMigrationInProgress
	}

	for _, key := range []string{domain.KeyMigrationStatus, domain.KeyMigrationBackup} {
		if err := o.store.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("resetting migration state: %w", err)
		}
	}

	o.log.Info().Str("previous_status", string(status)).Msg("Migration state reset")
	return nil
}

// Status returns the persisted migration status.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	return loadStatus(ctx, o.store)
}

// Running reports whether a migration or rollback is executing in this
// process right now. The safety supervisor consults this before an
// emergency rollback so it never restores state out from under a live run.
func (o *Orchestrator) Running() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.running
}

// DetectInterrupted reports whether a previous run was interrupted
// mid-flight (persisted status still inProgress with no live run). Callers
// are expected to roll back and restart the migration from scratch; stages
// are not individually resumable.
func (o *Orchestrator) DetectInterrupted(ctx context.Context) (bool, error) {
	o.mu.Lock()
	running := o.running
	o.mu.Unlock()
	if running {
		return false, nil
	}

	status, err := loadStatus(ctx, o.store)
	if err != nil {
		return false, err
	}
	return status == StatusInProgress, nil
}

// checkpoint persists a lightweight restore point; failures are logged and
// never abort the run.
func (o *Orchestrator) checkpoint(ctx context.Context, state *migrationState) {
	payload, err := json.Marshal(state.financial)
	if err != nil {
		o.log.Warn().Err(err).Msg("Skipping checkpoint, financial data not encodable")
		return
	}
	if _, err := o.backups.CreateCheckpoint(ctx, "pre-persist", payload); err != nil {
		o.log.Warn().Err(err).Msg("Failed to create checkpoint")
	}
}

// readOrDefault reads a key, falling back to def when the key is absent.
func (o *Orchestrator) readOrDefault(ctx context.Context, key string, def []byte) []byte {
	data, err := o.store.Get(ctx, key)
	if err != nil {
		return def
	}
	return data
}

func (o *Orchestrator) record(ctx context.Context, t events.EventType, detail string, success bool) {
	event := events.New(t)
	event.Detail = detail
	event.Success = success
	if err := o.rec.Record(ctx, event); err != nil {
		o.log.Warn().Err(err).Str("event_type", string(t)).Msg("Failed to record event")
	}
}
