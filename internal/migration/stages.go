package migration

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dvloznov/finance-migrator/internal/backup"
	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/dvloznov/finance-migrator/internal/storage"
	"github.com/dvloznov/finance-migrator/internal/validation"
)

// migrationStep is a single stage of the migration pipeline.
type migrationStep interface {
	// Label is the human-readable step name surfaced through progress.
	Label() string

	// Progress is the cumulative fraction reported after the step completes.
	Progress() float64

	Execute(ctx context.Context, state *migrationState) error
}

// migrationState holds the shared state across all pipeline stages.
type migrationState struct {
	legacyRaw []byte
	legacy    *domain.LegacyRecord
	profile   *domain.UserProfile
	financial *domain.LocalFinancialData
	backupID  string
	startedAt time.Time
}

// Stage 1: backupStep snapshots the current state before anything mutates.
type backupStep struct {
	o *Orchestrator
}

func (s *backupStep) Label() string     { return "Backing up current state" }
func (s *backupStep) Progress() float64 { return 0.05 }

func (s *backupStep) Execute(ctx context.Context, state *migrationState) error {
	data, err := s.o.store.Get(ctx, domain.KeyLegacyData)
	if errors.Is(err, storage.ErrNotFound) {
		return &BackupFailedError{Detail: "no legacy data to back up"}
	}
	if err != nil {
		return &BackupFailedError{Detail: err.Error()}
	}
	state.legacyRaw = data

	snap := backup.Snapshot{
		LegacyData:      data,
		AppState:        s.o.readOrDefault(ctx, domain.KeyAppState, []byte(`{}`)),
		UserPreferences: s.o.readOrDefault(ctx, domain.KeyUserPreferences, []byte(`{}`)),
	}
	result, err := s.o.backups.CreateBackup(ctx, snap)
	if err != nil {
		return &BackupFailedError{Detail: err.Error()}
	}
	state.backupID = result.BackupID

	if err := s.o.store.Put(ctx, domain.KeyMigrationBackup, []byte(result.BackupID)); err != nil {
		return &BackupFailedError{Detail: fmt.Sprintf("recording backup id: %v", err)}
	}
	return nil
}

// Stage 2: loadStep decodes the legacy record.
type loadStep struct {
	o *Orchestrator
}

func (s *loadStep) Label() string     { return "Loading legacy record" }
func (s *loadStep) Progress() float64 { return 0.15 }

func (s *loadStep) Execute(ctx context.Context, state *migrationState) error {
	if len(state.legacyRaw) == 0 {
		return ErrNoLegacyData
	}
	var legacy domain.LegacyRecord
	if err := json.Unmarshal(state.legacyRaw, &legacy); err != nil {
		return fmt.Errorf("%w: decoding legacy record: %v", ErrNoLegacyData, err)
	}
	state.legacy = &legacy
	return nil
}

// Stage 3: preValidateStep gates the transform on critical issues only.
type preValidateStep struct {
	o *Orchestrator
}

func (s *preValidateStep) Label() string     { return "Validating legacy data" }
func (s *preValidateStep) Progress() float64 { return 0.25 }

func (s *preValidateStep) Execute(ctx context.Context, state *migrationState) error {
	issues := s.o.engine.ValidatePreMigration(ctx, state.legacy)
	if validation.HasCritical(issues) {
		return &InvalidDataError{Detail: fmt.Sprintf("%v", validation.CriticalMessages(issues))}
	}
	for _, issue := range issues {
		s.o.log.Warn().
			Str("category", string(issue.Category)).
			Str("field", issue.FieldPath).
			Msg(issue.Message)
	}
	return nil
}

// Stage 4: buildProfileStep constructs the cloud profile.
type buildProfileStep struct {
	o *Orchestrator
}

func (s *buildProfileStep) Label() string     { return "Building user profile" }
func (s *buildProfileStep) Progress() float64 { return 0.35 }

func (s *buildProfileStep) Execute(ctx context.Context, state *migrationState) error {
	state.profile = buildUserProfile(state.legacy, state.startedAt)
	return nil
}

// Stage 5: buildFinancialStep constructs the local-only ledger.
type buildFinancialStep struct {
	o *Orchestrator
}

func (s *buildFinancialStep) Label() string     { return "Building financial data" }
func (s *buildFinancialStep) Progress() float64 { return 0.60 }

func (s *buildFinancialStep) Execute(ctx context.Context, state *migrationState) error {
	financial, err := buildFinancialData(state.legacy, state.profile.ID, state.startedAt)
	if err != nil {
		return &InvalidDataError{Detail: err.Error()}
	}
	state.financial = financial
	return nil
}

// Stage 6: persistStep writes both new records. Both writes are attempted
// before success is reported; partial persistence surfaces as a validation
// failure and is never silently retried.
type persistStep struct {
	o *Orchestrator
}

func (s *persistStep) Label() string     { return "Persisting migrated records" }
func (s *persistStep) Progress() float64 { return 0.80 }

func (s *persistStep) Execute(ctx context.Context, state *migrationState) error {
	profileJSON, err := json.Marshal(state.profile)
	if err != nil {
		return &ValidationFailedError{Detail: fmt.Sprintf("encoding profile: %v", err)}
	}
	financialJSON, err := json.Marshal(state.financial)
	if err != nil {
		return &ValidationFailedError{Detail: fmt.Sprintf("encoding financial data: %v", err)}
	}

	var details []string
	if err := s.o.store.Put(ctx, domain.ProfileKey(state.profile.ID), profileJSON); err != nil {
		details = append(details, fmt.Sprintf("persisting profile: %v", err))
	}
	if err := s.o.store.Put(ctx, domain.FinancialDataKey(state.profile.ID), financialJSON); err != nil {
		details = append(details, fmt.Sprintf("persisting financial data: %v", err))
	}
	if err := s.o.profiles.Save(ctx, state.profile); err != nil {
		details = append(details, fmt.Sprintf("saving cloud profile: %v", err))
	}
	if len(details) > 0 {
		return &ValidationFailedError{Detail: fmt.Sprintf("partial persistence: %v", details)}
	}
	return nil
}

// Stage 7: postValidateStep checks conservation between legacy and migrated
// data. Any mismatch is critical and aborts.
type postValidateStep struct {
	o *Orchestrator
}

func (s *postValidateStep) Label() string     { return "Validating migrated data" }
func (s *postValidateStep) Progress() float64 { return 0.90 }

func (s *postValidateStep) Execute(ctx context.Context, state *migrationState) error {
	issues := s.o.engine.ValidatePostMigration(ctx, state.legacy, state.profile, state.financial)
	if validation.HasCritical(issues) {
		return &ValidationFailedError{Detail: fmt.Sprintf("%v", validation.CriticalMessages(issues))}
	}
	for _, issue := range issues {
		s.o.log.Warn().
			Str("category", string(issue.Category)).
			Str("field", issue.FieldPath).
			Msg(issue.Message)
	}
	return nil
}

// Stage 8: finalizeStep writes the version marker and archives the legacy
// blob. The legacy record is moved, never deleted, so a manual recovery
// path always exists.
type finalizeStep struct {
	o *Orchestrator
}

func (s *finalizeStep) Label() string     { return "Finalizing migration" }
func (s *finalizeStep) Progress() float64 { return 1.00 }

func (s *finalizeStep) Execute(ctx context.Context, state *migrationState) error {
	if err := s.o.store.Put(ctx, domain.KeyMigrationVersion, []byte(dataModelVersion)); err != nil {
		return fmt.Errorf("writing version marker: %w", err)
	}
	if err := s.o.store.Put(ctx, domain.KeyLegacyArchived, state.legacyRaw); err != nil {
		return fmt.Errorf("archiving legacy data: %w", err)
	}
	if err := s.o.store.Delete(ctx, domain.KeyLegacyData); err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("removing live legacy key: %w", err)
	}
	return nil
}
