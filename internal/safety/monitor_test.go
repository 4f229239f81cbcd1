package safety

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/finance-migrator/internal/backup"
	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/rs/zerolog"
)

func TestCheckOnceCleanState(t *testing.T) {
	ctx := context.Background()
	sup, store, _ := newTestSupervisor(t)
	seedLegacy(t, store, testLegacyJSON(t))

	m := NewMonitor(sup, time.Minute, nil, zerolog.Nop())
	alerts := m.CheckOnce(ctx)
	if len(alerts) != 0 {
		t.Errorf("expected no alerts, got %+v", alerts)
	}
}

func TestCheckOnceDetectsCorruption(t *testing.T) {
	ctx := context.Background()
	sup, store, _ := newTestSupervisor(t)
	seedLegacy(t, store, []byte("corrupted"))

	m := NewMonitor(sup, time.Minute, nil, zerolog.Nop())
	alerts := m.CheckOnce(ctx)

	var found bool
	for _, a := range alerts {
		if a.Category == AlertDataCorruption && a.Severity == AlertCritical {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a critical data-corruption alert, got %+v", alerts)
	}
}

func TestCorruptionAlertTriggersEmergencyRollback(t *testing.T) {
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
	seedLegacy(t, store, []byte("corrupted"))

	var received []Alert
	m := NewMonitor(sup, time.Minute, func(a Alert) { received = append(received, a) }, zerolog.Nop())
	m.runPass(ctx)

	if len(received) == 0 {
		t.Fatal("alert callback was not invoked")
	}

	restored, err := store.Get(ctx, domain.KeyLegacyData)
	if err != nil {
		t.Fatalf("reading legacy data after auto-rollback: %v", err)
	}
	if string(restored) != string(legacyJSON) {
		t.Error("auto-triggered rollback did not restore the legacy data")
	}
}

func TestMonitorStartStop(t *testing.T) {
	sup, store, _ := newTestSupervisor(t)
	seedLegacy(t, store, testLegacyJSON(t))

	m := NewMonitor(sup, 5*time.Millisecond, nil, zerolog.Nop())

	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := m.Start(context.Background()); err == nil {
		t.Error("second Start should fail while running")
	}

	time.Sleep(25 * time.Millisecond)
	m.Stop()

	// Stopping twice must be safe.
	m.Stop()
}
