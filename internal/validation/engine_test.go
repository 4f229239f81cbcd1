package validation

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/rs/zerolog"
)

func validLegacy() *domain.LegacyRecord {
	return &domain.LegacyRecord{
		ID:        "user-1",
		Name:      "Dana",
		Email:     "dana@example.com",
		CreatedAt: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		Transactions: []domain.LegacyTransaction{
			{Amount: 12.50, Category: "groceries", Date: time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC), WalletID: "acct-1"},
			{Amount: -4.20, Category: "coffee", Date: time.Date(2023, 6, 3, 0, 0, 0, 0, time.UTC), WalletID: "acct-1"},
		},
		Accounts: []domain.LegacyAccount{{ID: "acct-1", Name: "Main"}},
	}
}

func TestValidateAllCleanInput(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	summary := e.ValidateAll(context.Background(), Input{
		Profile:   validProfile(),
		Financial: validFinancial(t),
	})

	if summary.Status != StatusPassed {
		t.Errorf("summary status = %q, want %q", summary.Status, StatusPassed)
	}
	if summary.Failed != 0 || summary.Warnings != 0 {
		t.Errorf("failed = %d, warnings = %d, want 0 and 0", summary.Failed, summary.Warnings)
	}
	// One result per validator on clean input.
	if len(summary.Results) != 8 {
		t.Errorf("got %d results, want 8", len(summary.Results))
	}
	if summary.SuccessRate != 1.0 {
		t.Errorf("success rate = %v, want 1.0", summary.SuccessRate)
	}
	if len(summary.Recommendations) != 0 {
		t.Errorf("unexpected recommendations: %v", summary.Recommendations)
	}
}

func TestValidateAllAggregation(t *testing.T) {
	e := NewEngine(zerolog.Nop())

	p := validProfile()
	p.Name = ""
	d := validFinancial(t)
	d.Transactions[0].Category = ""

	summary := e.ValidateAll(context.Background(), Input{Profile: p, Financial: d})

	if summary.Status != StatusFailed {
		t.Errorf("summary status = %q, want %q", summary.Status, StatusFailed)
	}
	if summary.Failed == 0 {
		t.Error("expected at least one failed result")
	}
	if summary.Warnings == 0 {
		t.Error("expected at least one warning result")
	}
	if len(summary.Recommendations) == 0 {
		t.Error("expected recommendations for a failing run")
	}
	if summary.SuccessRate >= 1.0 {
		t.Errorf("success rate = %v, want < 1.0", summary.SuccessRate)
	}
}

func TestValidatePreMigration(t *testing.T) {
	tests := []struct {
		name         string
		mutate       func(*domain.LegacyRecord)
		wantCritical bool
		wantIssues   bool
	}{
		{"clean record", func(r *domain.LegacyRecord) {}, false, false},
		{"missing name", func(r *domain.LegacyRecord) { r.Name = "" }, true, true},
		{"missing email", func(r *domain.LegacyRecord) { r.Email = " " }, true, true},
		{"NaN amount", func(r *domain.LegacyRecord) { r.Transactions[0].Amount = math.NaN() }, true, true},
		{"infinite amount", func(r *domain.LegacyRecord) { r.Transactions[1].Amount = math.Inf(-1) }, true, true},
		{"empty category", func(r *domain.LegacyRecord) { r.Transactions[0].Category = "" }, false, true},
		{"orphaned wallet reference", func(r *domain.LegacyRecord) { r.Transactions[0].WalletID = "gone" }, false, true},
	}

	e := NewEngine(zerolog.Nop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := validLegacy()
			tt.mutate(r)

			issues := e.ValidatePreMigration(context.Background(), r)
			if got := HasCritical(issues); got != tt.wantCritical {
				t.Errorf("HasCritical = %v, want %v (issues: %+v)", got, tt.wantCritical, issues)
			}
			if tt.wantIssues && len(issues) == 0 {
				t.Error("expected issues, got none")
			}
			if !tt.wantIssues && len(issues) != 0 {
				t.Errorf("expected no issues, got %+v", issues)
			}
		})
	}
}

func TestValidatePreMigrationNilRecord(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	issues := e.ValidatePreMigration(context.Background(), nil)
	if !HasCritical(issues) {
		t.Error("nil legacy record should produce a critical issue")
	}
}

func TestValidatePostMigrationConservation(t *testing.T) {
	e := NewEngine(zerolog.Nop())
	legacy := validLegacy()
	profile := validProfile()
	financial := validFinancial(t)
	// Mirror the legacy ledger exactly.
	financial.Transactions = []domain.Transaction{
		{ID: "tx-1", Amount: 12.50, Category: "groceries", WalletID: "acct-1"},
		{ID: "tx-2", Amount: -4.20, Category: "coffee", WalletID: "acct-1"},
	}

	t.Run("conserved migration passes", func(t *testing.T) {
		issues := e.ValidatePostMigration(context.Background(), legacy, profile, financial)
		if HasCritical(issues) {
			t.Errorf("unexpected critical issues: %v", CriticalMessages(issues))
		}
	})

	t.Run("name drift is critical", func(t *testing.T) {
		p := validProfile()
		p.Name = "Someone Else"
		issues := e.ValidatePostMigration(context.Background(), legacy, p, financial)
		if !HasCritical(issues) {
			t.Error("expected critical issue for name mismatch")
		}
	})

	t.Run("dropped transaction is critical", func(t *testing.T) {
		short := *financial
		short.Transactions = financial.Transactions[:1]
		issues := e.ValidatePostMigration(context.Background(), legacy, profile, &short)
		if !HasCritical(issues) {
			t.Error("expected critical issue for missing transaction")
		}
	})

	t.Run("amount drift beyond epsilon is critical", func(t *testing.T) {
		drifted := *financial
		drifted.Transactions = append([]domain.Transaction(nil), financial.Transactions...)
		drifted.Transactions[0].Amount += 0.02
		issues := e.ValidatePostMigration(context.Background(), legacy, profile, &drifted)
		if !HasCritical(issues) {
			t.Error("expected critical issue for sum drift")
		}
	})

	t.Run("sub-epsilon drift is tolerated", func(t *testing.T) {
		drifted := *financial
		drifted.Transactions = append([]domain.Transaction(nil), financial.Transactions...)
		drifted.Transactions[0].Amount += 0.005
		issues := e.ValidatePostMigration(context.Background(), legacy, profile, &drifted)
		if HasCritical(issues) {
			t.Errorf("unexpected critical issues: %v", CriticalMessages(issues))
		}
	})
}
