package syncservice

import (
	"context"
	"testing"
	"time"

	"github.com/dvloznov/finance-migrator/internal/domain"
)

func TestDormantServiceStaysDisabled(t *testing.T) {
	s := NewDormantService()

	profile := &domain.UserProfile{ID: "user-1"}
	data := &domain.LocalFinancialData{UserID: "user-1"}

	if s.Enabled(profile, data) {
		t.Error("service must be disabled by default")
	}

	// Only profile opt-in: still disabled.
	profile.EnableCloudBackup = true
	if s.Enabled(profile, data) {
		t.Error("profile opt-in alone must not enable sync")
	}

	// Both flags set: enabled.
	data.SyncSettings.Enabled = true
	if !s.Enabled(profile, data) {
		t.Error("both opt-ins set should enable sync")
	}
}

func TestPlanOrdersByPriorityThenRecency(t *testing.T) {
	s := NewDormantService()
	now := time.Now().UTC()

	data := &domain.LocalFinancialData{
		UserID: "user-1",
		Transactions: []domain.Transaction{
			{ID: "low", Sync: domain.SyncMetadata{Status: domain.SyncStatusLocalOnly, Priority: domain.SyncPriorityLow, LastModified: now}},
			{ID: "synced", Sync: domain.SyncMetadata{Status: domain.SyncStatusSynced, Priority: domain.SyncPriorityHigh, LastModified: now}},
			{ID: "high-old", Sync: domain.SyncMetadata{Status: domain.SyncStatusLocalOnly, Priority: domain.SyncPriorityHigh, LastModified: now.Add(-time.Hour)}},
			{ID: "high-new", Sync: domain.SyncMetadata{Status: domain.SyncStatusPending, Priority: domain.SyncPriorityHigh, LastModified: now}},
		},
	}

	items, err := s.Plan(context.Background(), nil, data)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}

	want := []string{"high-new", "high-old", "low"}
	if len(items) != len(want) {
		t.Fatalf("planned %d items, want %d", len(items), len(want))
	}
	for i, id := range want {
		if items[i].TransactionID != id {
			t.Errorf("item %d = %q, want %q", i, items[i].TransactionID, id)
		}
	}
}
