package safety

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dvloznov/finance-migrator/internal/backup"
	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/dvloznov/finance-migrator/internal/storage"
	"github.com/dvloznov/finance-migrator/internal/storage/inmemory"
	"github.com/dvloznov/finance-migrator/internal/validation"
	"github.com/rs/zerolog"
)

func testLegacyJSON(t *testing.T) []byte {
	t.Helper()
	legacy := domain.LegacyRecord{
		ID:        "user-1",
		Name:      "Dana",
		Email:     "dana@example.com",
		CreatedAt: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		Transactions: []domain.LegacyTransaction{
			{Amount: 12.50, Category: "groceries", Date: time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC), WalletID: "acct-1"},
		},
		Accounts: []domain.LegacyAccount{{ID: "acct-1", Name: "Main"}},
	}
	data, err := json.Marshal(&legacy)
	if err != nil {
		t.Fatalf("encoding legacy record: %v", err)
	}
	return data
}

func newTestSupervisor(t *testing.T) (*Supervisor, *inmemory.Store, *backup.Manager) {
	t.Helper()

	store := inmemory.NewStore()
	backups, err := backup.NewManager(backup.DefaultConfig(t.TempDir()), zerolog.Nop(), nil)
	if err != nil {
		t.Fatalf("NewManager failed: %v", err)
	}
	t.Cleanup(func() { _ = backups.Close() })

	cfg := DefaultConfig()
	cfg.MinFreeBytes = 1
	cfg.LowStorageBytes = 1

	engine := validation.NewEngine(zerolog.Nop())
	sup := NewSupervisor(cfg, store, backups, engine, nil, zerolog.Nop())
	return sup, store, backups
}

func seedLegacy(t *testing.T, store storage.RecordStore, data []byte) {
	t.Helper()
	if err := store.Put(context.Background(), domain.KeyLegacyData, data); err != nil {
		t.Fatalf("seeding legacy data: %v", err)
	}
}

func TestArmSafetyChecksAllPass(t *testing.T) {
	ctx := context.Background()
	sup, store, _ := newTestSupervisor(t)
	seedLegacy(t, store, testLegacyJSON(t))

	result, err := sup.ArmSafetyChecks(ctx)
	if err != nil {
		t.Fatalf("ArmSafetyChecks failed: %v", err)
	}
	if !result.Armed {
		t.Errorf("not armed, failed checks: %+v", result.FailedChecks())
	}
	if len(result.Checks) != 5 {
		t.Errorf("ran %d checks, want 5", len(result.Checks))
	}
}

func TestArmSafetyChecksNoRollbackPlan(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)

	result, err := sup.ArmSafetyChecks(context.Background())
	if err != nil {
		t.Fatalf("ArmSafetyChecks failed: %v", err)
	}
	if result.Armed {
		t.Error("expected arming to fail with no backup and no legacy data")
	}

	var found bool
	for _, c := range result.FailedChecks() {
		if c.Name == "rollback_plan" {
			found = true
			if c.Remediation == "" {
				t.Error("failing check should carry a remediation hint")
			}
		}
	}
	if !found {
		t.Errorf("rollback_plan should be among failed checks: %+v", result.FailedChecks())
	}
}

func TestArmSafetyChecksCorruptLegacyData(t *testing.T) {
	sup, store, _ := newTestSupervisor(t)
	seedLegacy(t, store, []byte("not json at all"))

	result, err := sup.ArmSafetyChecks(context.Background())
	if err != nil {
		t.Fatalf("ArmSafetyChecks failed: %v", err)
	}
	if result.Armed {
		t.Error("expected arming to fail with undecodable legacy data")
	}
	var found bool
	for _, c := range result.FailedChecks() {
		if c.Name == "baseline_integrity" {
			found = true
		}
	}
	if !found {
		t.Errorf("baseline_integrity should be among failed checks: %+v", result.FailedChecks())
	}
}

func TestArmSafetyChecksCriticalStatusBlocks(t *testing.T) {
	sup, store, _ := newTestSupervisor(t)
	seedLegacy(t, store, testLegacyJSON(t))
	sup.escalate("test")

	result, err := sup.ArmSafetyChecks(context.Background())
	if err != nil {
		t.Fatalf("ArmSafetyChecks failed: %v", err)
	}
	if result.Armed {
		t.Error("expected arming to fail while safety status is critical")
	}

	sup.ClearCritical()
	result, err = sup.ArmSafetyChecks(context.Background())
	if err != nil {
		t.Fatalf("ArmSafetyChecks failed: %v", err)
	}
	if !result.Armed {
		t.Errorf("expected arming after clearing critical, failed checks: %+v", result.FailedChecks())
	}
}

func TestEmergencyRollbackRestoresState(t *testing.T) {
	ctx := context.Background()
	sup, store, backups := newTestSupervisor(t)

	legacyJSON := testLegacyJSON(t)
	if _, err := backups.CreateBackup(ctx, backup.Snapshot{
		LegacyData:      legacyJSON,
		AppState:        []byte(`{"status":"notStarted"}`),
		UserPreferences: []byte(`{"currency":"USD"}`),
	}); err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	// Simulate a half-finished migration: corrupted legacy data plus
	// leftover migration state markers.
	seedLegacy(t, store, []byte("corrupted"))
	_ = store.Put(ctx, domain.KeyMigrationStatus, []byte("inProgress"))
	_ = store.Put(ctx, domain.KeyMigrationBackup, []byte("some-id"))

	result := sup.EmergencyRollback(ctx)
	if !result.Success {
		t.Fatalf("EmergencyRollback failed: %s", result.Message)
	}

	restored, err := store.Get(ctx, domain.KeyLegacyData)
	if err != nil {
		t.Fatalf("reading restored legacy data: %v", err)
	}
	if string(restored) != string(legacyJSON) {
		t.Error("legacy data was not restored from the backup")
	}

	for _, key := range []string{domain.KeyMigrationStatus, domain.KeyMigrationBackup} {
		if exists, _ := store.Exists(ctx, key); exists {
			t.Errorf("migration state key %s should have been cleared", key)
		}
	}
	if sup.Status() != StatusNormal {
		t.Errorf("status = %q, want %q", sup.Status(), StatusNormal)
	}
}

func TestEmergencyRollbackWithoutBackupsEscalates(t *testing.T) {
	sup, _, _ := newTestSupervisor(t)

	result := sup.EmergencyRollback(context.Background())
	if result.Success {
		t.Fatal("EmergencyRollback should fail with no backups")
	}
	if sup.Status() != StatusCritical {
		t.Errorf("status = %q, want %q after failed rollback", sup.Status(), StatusCritical)
	}
	if result.Status != StatusCritical {
		t.Errorf("result status = %q, want %q", result.Status, StatusCritical)
	}
}

func TestEmergencyRollbackRefusesTamperedBackup(t *testing.T) {
	ctx := context.Background()
	sup, _, backups := newTestSupervisor(t)

	res, err := backups.CreateBackup(ctx, backup.Snapshot{
		LegacyData:      testLegacyJSON(t),
		AppState:        []byte(`{}`),
		UserPreferences: []byte(`{}`),
	})
	if err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	tampered := filepath.Join(res.Dir, "legacy_data.backup")
	if err := os.WriteFile(tampered, []byte("tampered"), 0o644); err != nil {
		t.Fatalf("tampering failed: %v", err)
	}

	result := sup.EmergencyRollback(ctx)
	if result.Success {
		t.Fatal("EmergencyRollback must not succeed from a tampered backup")
	}
	if sup.Status() != StatusCritical {
		t.Errorf("status = %q, want %q", sup.Status(), StatusCritical)
	}
}

type stubActivity struct{ running bool }

func (a *stubActivity) Running() bool { return a.running }

func TestEmergencyRollbackRefusesWhileMigrationRunning(t *testing.T) {
	ctx := context.Background()
	sup, store, backups := newTestSupervisor(t)

	legacyJSON := testLegacyJSON(t)
	if _, err := backups.CreateBackup(ctx, backup.Snapshot{
		LegacyData:      legacyJSON,
		AppState:        []byte(`{}`),
		UserPreferences: []byte(`{}`),
	}); err != nil {
		t.Fatalf("CreateBackup failed: %v", err)
	}

	// Mid-run state: scratch legacy data and a live status marker.
	seedLegacy(t, store, []byte("mid-run scratch"))
	_ = store.Put(ctx, domain.KeyMigrationStatus, []byte("inProgress"))

	activity := &stubActivity{running: true}
	sup.SetMigrationActivity(activity)

	result := sup.EmergencyRollback(ctx)
	if result.Success {
		t.Fatal("EmergencyRollback must not restore under a live migration")
	}
	if sup.Status() != StatusNormal {
		t.Errorf("status = %q, want %q; a refusal is not a backup failure", sup.Status(), StatusNormal)
	}
	if data, err := store.Get(ctx, domain.KeyLegacyData); err != nil || string(data) == string(legacyJSON) {
		t.Error("legacy data must be left untouched while the migration runs")
	}
	if exists, _ := store.Exists(ctx, domain.KeyMigrationStatus); !exists {
		t.Error("migration status must be left in place while the migration runs")
	}

	// Once the run settles the rollback goes through.
	activity.running = false
	result = sup.EmergencyRollback(ctx)
	if !result.Success {
		t.Fatalf("EmergencyRollback failed after the run settled: %s", result.Message)
	}
}

func TestRecoveryRecommendations(t *testing.T) {
	ctx := context.Background()

	t.Run("no backups recommends creating one", func(t *testing.T) {
		sup, _, _ := newTestSupervisor(t)
		recs := sup.RecoveryRecommendations(ctx)
		var found bool
		for _, r := range recs {
			if r.Priority == "high" {
				found = true
			}
		}
		if !found {
			t.Errorf("expected a high-priority recommendation, got %+v", recs)
		}
	})

	t.Run("healthy state reports no action needed", func(t *testing.T) {
		sup, _, backups := newTestSupervisor(t)
		if _, err := backups.CreateBackup(ctx, backup.Snapshot{
			LegacyData:      testLegacyJSON(t),
			AppState:        []byte(`{}`),
			UserPreferences: []byte(`{}`),
		}); err != nil {
			t.Fatalf("CreateBackup failed: %v", err)
		}

		recs := sup.RecoveryRecommendations(ctx)
		if len(recs) != 1 || recs[0].Priority != "low" {
			t.Errorf("expected a single low-priority recommendation, got %+v", recs)
		}
	})
}
