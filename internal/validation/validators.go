package validation

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/dvloznov/finance-migrator/internal/domain"
)

// Validator is the capability every rule evaluator implements. Validators
// are stateless and must never mutate their inputs.
type Validator interface {
	// Name returns the validator's stable identifier.
	Name() string

	// Validate inspects the input and returns zero or more results.
	// A validator that needs an entity the input does not carry reports a
	// single passed result noting the skip.
	Validate(ctx context.Context, in Input) []ValidationResult
}

// result builds a timestamped ValidationResult.
func result(name string, status Status, format string, args ...interface{}) ValidationResult {
	return ValidationResult{
		Validator: name,
		Status:    status,
		Message:   fmt.Sprintf(format, args...),
		Timestamp: time.Now().UTC(),
	}
}

// skipped is the uniform result for a validator whose entity is not loaded.
func skipped(name, entity string) []ValidationResult {
	return []ValidationResult{result(name, StatusPassed, "skipped: no %s loaded", entity)}
}

// ProfileValidator checks the cloud-synced profile record.
type ProfileValidator struct{}

func (ProfileValidator) Name() string { return "profile" }

func (v ProfileValidator) Validate(ctx context.Context, in Input) []ValidationResult {
	if in.Profile == nil {
		return skipped(v.Name(), "profile")
	}

	var results []ValidationResult
	p := in.Profile

	if strings.TrimSpace(p.Name) == "" {
		results = append(results, result(v.Name(), StatusFailed, "profile name is empty"))
	}
	if strings.TrimSpace(p.Email) == "" {
		results = append(results, result(v.Name(), StatusFailed, "profile email is empty"))
	} else if !strings.Contains(p.Email, "@") {
		results = append(results, result(v.Name(), StatusWarning, "profile email %q has no @", p.Email))
	}
	if p.CreatedAt.IsZero() {
		results = append(results, result(v.Name(), StatusWarning, "profile created_at is unset"))
	}
	if p.SubscriptionTier != domain.TierFree && p.SubscriptionTier != domain.TierPremium {
		results = append(results, result(v.Name(), StatusFailed, "unknown subscription tier %q", p.SubscriptionTier))
	}

	if len(results) == 0 {
		results = append(results, result(v.Name(), StatusPassed, "profile is valid"))
	}
	return results
}

// FinancialDataValidator checks the local ledger's top-level structure.
type FinancialDataValidator struct{}

func (FinancialDataValidator) Name() string { return "financial_data" }

func (v FinancialDataValidator) Validate(ctx context.Context, in Input) []ValidationResult {
	if in.Financial == nil {
		return skipped(v.Name(), "financial data")
	}

	var results []ValidationResult
	d := in.Financial

	if strings.TrimSpace(d.UserID) == "" {
		results = append(results, result(v.Name(), StatusFailed, "financial data has no owning user id"))
	}
	if len(d.Accounts) == 0 {
		results = append(results, result(v.Name(), StatusWarning, "financial data has no accounts"))
	}
	if d.Classification == "" {
		results = append(results, result(v.Name(), StatusWarning, "financial data has no classification tag"))
	}

	if len(results) == 0 {
		results = append(results, result(v.Name(), StatusPassed, "financial data structure is valid"))
	}
	return results
}

// TransactionValidator checks every ledger transaction.
type TransactionValidator struct{}

func (TransactionValidator) Name() string { return "transactions" }

func (v TransactionValidator) Validate(ctx context.Context, in Input) []ValidationResult {
	if in.Financial == nil {
		return skipped(v.Name(), "financial data")
	}

	var results []ValidationResult
	for i, tx := range in.Financial.Transactions {
		if math.IsNaN(tx.Amount) || math.IsInf(tx.Amount, 0) {
			results = append(results, result(v.Name(), StatusFailed,
				"transaction %d has non-finite amount", i))
		}
		if strings.TrimSpace(tx.Category) == "" {
			results = append(results, result(v.Name(), StatusWarning,
				"transaction %d has empty category", i))
		}
		if tx.Date.IsZero() {
			results = append(results, result(v.Name(), StatusWarning,
				"transaction %d has no date", i))
		}
	}

	if len(results) == 0 {
		results = append(results, result(v.Name(), StatusPassed,
			"all %d transactions are valid", len(in.Financial.Transactions)))
	}
	return results
}

// AccountValidator checks ledger accounts, including the single-default
// invariant.
type AccountValidator struct{}

func (AccountValidator) Name() string { return "accounts" }

func (v AccountValidator) Validate(ctx context.Context, in Input) []ValidationResult {
	if in.Financial == nil {
		return skipped(v.Name(), "financial data")
	}

	var results []ValidationResult
	defaults := 0
	for i, acct := range in.Financial.Accounts {
		if acct.IsDefault {
			defaults++
		}
		if strings.TrimSpace(acct.Name) == "" {
			results = append(results, result(v.Name(), StatusWarning, "account %d has empty name", i))
		}
	}
	if len(in.Financial.Accounts) > 0 && defaults != 1 {
		results = append(results, result(v.Name(), StatusFailed,
			"expected exactly one default account, found %d", defaults))
	}

	if len(results) == 0 {
		results = append(results, result(v.Name(), StatusPassed,
			"all %d accounts are valid", len(in.Financial.Accounts)))
	}
	return results
}

// SyncInfrastructureValidator checks per-transaction sync metadata
// consistency.
type SyncInfrastructureValidator struct{}

func (SyncInfrastructureValidator) Name() string { return "sync_infrastructure" }

func (v SyncInfrastructureValidator) Validate(ctx context.Context, in Input) []ValidationResult {
	if in.Financial == nil {
		return skipped(v.Name(), "financial data")
	}

	var results []ValidationResult
	for i, tx := range in.Financial.Transactions {
		switch tx.Sync.Status {
		case domain.SyncStatusLocalOnly, domain.SyncStatusPending, domain.SyncStatusSynced:
		default:
			results = append(results, result(v.Name(), StatusFailed,
				"transaction %d has unknown sync status %q", i, tx.Sync.Status))
		}
		if tx.Sync.IsLocalOnly && tx.Sync.Status == domain.SyncStatusSynced {
			results = append(results, result(v.Name(), StatusFailed,
				"transaction %d is local-only but marked synced", i))
		}
		if tx.Sync.LastModified.IsZero() {
			results = append(results, result(v.Name(), StatusWarning,
				"transaction %d has no sync last-modified timestamp", i))
		}
	}

	if len(results) == 0 {
		results = append(results, result(v.Name(), StatusPassed, "sync metadata is consistent"))
	}
	return results
}

// PrivacyComplianceValidator enforces the privacy-first defaults of the
// split data model.
type PrivacyComplianceValidator struct{}

func (PrivacyComplianceValidator) Name() string { return "privacy_compliance" }

func (v PrivacyComplianceValidator) Validate(ctx context.Context, in Input) []ValidationResult {
	var results []ValidationResult

	if in.Profile != nil && in.Profile.EnableCloudBackup {
		results = append(results, result(v.Name(), StatusWarning,
			"cloud backup is enabled; expected off unless the user opted in"))
	}
	if in.Financial != nil {
		if in.Financial.Classification != domain.ClassificationSensitiveFinancial {
			results = append(results, result(v.Name(), StatusWarning,
				"financial data classification is %q, expected %q",
				in.Financial.Classification, domain.ClassificationSensitiveFinancial))
		}
		if in.Financial.SyncSettings.Enabled && in.Profile != nil && !in.Profile.EnableCloudBackup {
			results = append(results, result(v.Name(), StatusFailed,
				"sync is enabled but the profile never opted into cloud backup"))
		}
	}

	if in.Profile == nil && in.Financial == nil {
		return skipped(v.Name(), "profile or financial data")
	}
	if len(results) == 0 {
		results = append(results, result(v.Name(), StatusPassed, "privacy defaults are intact"))
	}
	return results
}

// DataIntegrityValidator recomputes the ledger's integrity hash.
type DataIntegrityValidator struct{}

func (DataIntegrityValidator) Name() string { return "data_integrity" }

func (v DataIntegrityValidator) Validate(ctx context.Context, in Input) []ValidationResult {
	if in.Financial == nil {
		return skipped(v.Name(), "financial data")
	}

	if in.Financial.IntegrityHash == "" {
		return []ValidationResult{result(v.Name(), StatusWarning, "financial data has no integrity hash")}
	}

	computed, err := in.Financial.ComputeIntegrityHash()
	if err != nil {
		return []ValidationResult{result(v.Name(), StatusFailed, "cannot compute integrity hash: %v", err)}
	}
	if computed != in.Financial.IntegrityHash {
		return []ValidationResult{result(v.Name(), StatusFailed, "integrity hash mismatch")}
	}
	return []ValidationResult{result(v.Name(), StatusPassed, "integrity hash verified")}
}

// CrossModelValidator checks consistency between the profile and the ledger.
type CrossModelValidator struct{}

func (CrossModelValidator) Name() string { return "cross_model" }

func (v CrossModelValidator) Validate(ctx context.Context, in Input) []ValidationResult {
	if in.Profile == nil || in.Financial == nil {
		return skipped(v.Name(), "profile and financial data pair")
	}

	var results []ValidationResult

	if in.Profile.ID != in.Financial.UserID {
		results = append(results, result(v.Name(), StatusFailed,
			"financial data belongs to %q but profile id is %q", in.Financial.UserID, in.Profile.ID))
	}

	accounts := in.Financial.AccountIndex()
	for i, tx := range in.Financial.Transactions {
		if tx.WalletID != "" && !accounts[tx.WalletID] {
			results = append(results, result(v.Name(), StatusWarning,
				"transaction %d references missing account %q", i, tx.WalletID))
		}
	}

	if len(results) == 0 {
		results = append(results, result(v.Name(), StatusPassed, "profile and ledger are consistent"))
	}
	return results
}
