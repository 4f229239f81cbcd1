package validation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// amountEpsilon is the tolerated difference between the legacy and migrated
// transaction sums.
var amountEpsilon = decimal.NewFromFloat(0.01)

// Engine runs validators over data snapshots. It holds no mutable state
// beyond its validator list and is safe for concurrent use.
type Engine struct {
	validators []Validator
	log        zerolog.Logger
}

// NewEngine creates an engine with the full ordered validator set.
func NewEngine(log zerolog.Logger) *Engine {
	return &Engine{
		validators: []Validator{
			ProfileValidator{},
			FinancialDataValidator{},
			TransactionValidator{},
			AccountValidator{},
			SyncInfrastructureValidator{},
			PrivacyComplianceValidator{},
			DataIntegrityValidator{},
			CrossModelValidator{},
		},
		log: log,
	}
}

// ValidateAll runs every registered validator and aggregates the results
// into a summary.
func (e *Engine) ValidateAll(ctx context.Context, in Input) Summary {
	started := time.Now()

	var results []ValidationResult
	for _, v := range e.validators {
		vr := v.Validate(ctx, in)
		results = append(results, vr...)
		for _, r := range vr {
			if r.Status != StatusPassed {
				e.log.Debug().
					Str("validator", r.Validator).
					Str("status", string(r.Status)).
					Msg(r.Message)
			}
		}
	}

	summary := Summary{
		Status:   aggregateStatus(results),
		Results:  results,
		Duration: time.Since(started),
	}
	for _, r := range results {
		switch r.Status {
		case StatusPassed:
			summary.Passed++
		case StatusWarning:
			summary.Warnings++
		case StatusFailed:
			summary.Failed++
		}
	}
	if len(results) > 0 {
		summary.SuccessRate = float64(summary.Passed) / float64(len(results))
	}
	summary.Recommendations = recommendations(results)

	return summary
}

// recommendations derives operator guidance from non-passing results.
func recommendations(results []ValidationResult) []string {
	var recs []string
	seen := make(map[string]bool)
	for _, r := range results {
		if r.Status == StatusPassed || seen[r.Validator] {
			continue
		}
		seen[r.Validator] = true
		switch r.Status {
		case StatusFailed:
			recs = append(recs, fmt.Sprintf("resolve %s failures before migrating", r.Validator))
		case StatusWarning:
			recs = append(recs, fmt.Sprintf("review %s warnings", r.Validator))
		}
	}
	return recs
}

// ValidatePreMigration runs the fixed pre-flight checks over the legacy
// record. Critical issues block migration; warnings are recorded only.
func (e *Engine) ValidatePreMigration(ctx context.Context, legacy *domain.LegacyRecord) []ValidationIssue {
	if legacy == nil {
		return []ValidationIssue{{
			Severity:    SeverityCritical,
			Category:    CategoryIntegrity,
			Message:     "no legacy record to validate",
			Remediation: "nothing to migrate",
		}}
	}

	var issues []ValidationIssue

	if strings.TrimSpace(legacy.Name) == "" {
		issues = append(issues, ValidationIssue{
			Severity:    SeverityCritical,
			Category:    CategoryProfile,
			Message:     "legacy record has no display name",
			FieldPath:   "name",
			Remediation: "repair the legacy record before migrating",
		})
	}
	if strings.TrimSpace(legacy.Email) == "" {
		issues = append(issues, ValidationIssue{
			Severity:    SeverityCritical,
			Category:    CategoryProfile,
			Message:     "legacy record has no email",
			FieldPath:   "email",
			Remediation: "repair the legacy record before migrating",
		})
	}

	accounts := make(map[string]bool, len(legacy.Accounts))
	for _, acct := range legacy.Accounts {
		accounts[acct.ID] = true
	}

	for i, tx := range legacy.Transactions {
		if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
			issues = append(issues, ValidationIssue{
				Severity:  SeverityCritical,
				Category:  CategoryFinancial,
				Message:   fmt.Sprintf("legacy transaction %d has non-finite amount", i),
				FieldPath: fmt.Sprintf("transactions[%d].amount", i),
			})
		}
		if strings.TrimSpace(tx.Category) == "" {
			issues = append(issues, ValidationIssue{
				Severity:  SeverityWarning,
				Category:  CategoryFinancial,
				Message:   fmt.Sprintf("legacy transaction %d has empty category", i),
				FieldPath: fmt.Sprintf("transactions[%d].category", i),
			})
		}
		if tx.WalletID != "" && !accounts[tx.WalletID] {
			issues = append(issues, ValidationIssue{
				Severity:  SeverityWarning,
				Category:  CategoryCross,
				Message:   fmt.Sprintf("legacy transaction %d references missing account %q", i, tx.WalletID),
				FieldPath: fmt.Sprintf("transactions[%d].wallet_id", i),
			})
		}
	}

	return issues
}

// ValidatePostMigration runs the fixed conservation checks between the
// legacy record and the migrated pair. Any mismatch is critical.
func (e *Engine) ValidatePostMigration(ctx context.Context, legacy *domain.LegacyRecord, profile *domain.UserProfile, financial *domain.LocalFinancialData) []ValidationIssue {
	var issues []ValidationIssue

	if legacy == nil || profile == nil || financial == nil {
		return []ValidationIssue{{
			Severity: SeverityCritical,
			Category: CategoryIntegrity,
			Message:  "post-migration validation needs legacy, profile and financial records",
		}}
	}

	if profile.Name != legacy.Name {
		issues = append(issues, ValidationIssue{
			Severity:  SeverityCritical,
			Category:  CategoryProfile,
			Message:   fmt.Sprintf("profile name %q does not match legacy name %q", profile.Name, legacy.Name),
			FieldPath: "name",
		})
	}
	if profile.Email != legacy.Email {
		issues = append(issues, ValidationIssue{
			Severity:  SeverityCritical,
			Category:  CategoryProfile,
			Message:   fmt.Sprintf("profile email %q does not match legacy email %q", profile.Email, legacy.Email),
			FieldPath: "email",
		})
	}

	if len(financial.Transactions) != len(legacy.Transactions) {
		issues = append(issues, ValidationIssue{
			Severity: SeverityCritical,
			Category: CategoryFinancial,
			Message: fmt.Sprintf("migrated %d transactions, legacy has %d",
				len(financial.Transactions), len(legacy.Transactions)),
		})
	}
	if len(financial.Accounts) != len(legacy.Accounts) {
		issues = append(issues, ValidationIssue{
			Severity: SeverityCritical,
			Category: CategoryFinancial,
			Message: fmt.Sprintf("migrated %d accounts, legacy has %d",
				len(financial.Accounts), len(legacy.Accounts)),
		})
	}

	legacySum := decimal.Zero
	for _, tx := range legacy.Transactions {
		legacySum = legacySum.Add(decimal.NewFromFloat(tx.Amount))
	}
	migratedSum := decimal.Zero
	for _, tx := range financial.Transactions {
		migratedSum = migratedSum.Add(decimal.NewFromFloat(tx.Amount))
	}
	if diff := legacySum.Sub(migratedSum).Abs(); diff.GreaterThan(amountEpsilon) {
		issues = append(issues, ValidationIssue{
			Severity: SeverityCritical,
			Category: CategoryFinancial,
			Message: fmt.Sprintf("transaction sums differ by %s (legacy %s, migrated %s)",
				diff.String(), legacySum.String(), migratedSum.String()),
		})
	}

	accounts := financial.AccountIndex()
	for i, tx := range financial.Transactions {
		if tx.WalletID != "" && !accounts[tx.WalletID] {
			issues = append(issues, ValidationIssue{
				Severity:  SeverityWarning,
				Category:  CategoryCross,
				Message:   fmt.Sprintf("migrated transaction %d references missing account %q", i, tx.WalletID),
				FieldPath: fmt.Sprintf("transactions[%d].wallet_id", i),
			})
		}
	}

	return issues
}
