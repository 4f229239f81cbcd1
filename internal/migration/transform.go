package migration

import (
	"fmt"
	"time"

	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/google/uuid"
)

// defaultCurrency is assumed for legacy amounts; the legacy blob never
// recorded a currency.
const defaultCurrency = "USD"

// buildUserProfile constructs the cloud-synced profile from the legacy
// record. Privacy-first defaults are applied here: cloud backup is forced
// off and the tier is forced to free, regardless of any legacy flag.
func buildUserProfile(legacy *domain.LegacyRecord, now time.Time) *domain.UserProfile {
	id := legacy.ID
	if id == "" {
		id = uuid.NewString()
	}

	return &domain.UserProfile{
		ID:                id,
		ExternalAuthID:    legacy.ID,
		Name:              legacy.Name,
		Email:             legacy.Email,
		CreatedAt:         legacy.CreatedAt,
		UpdatedAt:         now,
		PreferredCurrency: defaultCurrency,
		EnableCloudBackup: false,
		SubscriptionTier:  domain.TierFree,
	}
}

// buildFinancialData constructs the local-only ledger from the legacy
// record. The transform is a 1:1 order-preserving map: no transaction is
// dropped and none is invented. Every migrated transaction is tagged
// local-only with high sync priority and fresh sync metadata.
func buildFinancialData(legacy *domain.LegacyRecord, profileID string, now time.Time) (*domain.LocalFinancialData, error) {
	data := &domain.LocalFinancialData{
		UserID:         profileID,
		Transactions:   make([]domain.Transaction, 0, len(legacy.Transactions)),
		Accounts:       make([]domain.Account, 0, len(legacy.Accounts)),
		Classification: domain.ClassificationSensitiveFinancial,
		BackupEnabled:  false,
		SyncSettings:   domain.SyncSettings{Enabled: false},
	}

	for i, acct := range legacy.Accounts {
		data.Accounts = append(data.Accounts, domain.Account{
			ID:        acct.ID,
			Name:      acct.Name,
			Type:      "checking",
			Currency:  defaultCurrency,
			IsDefault: i == 0,
		})
	}

	for _, tx := range legacy.Transactions {
		amount := domain.CurrencyAmount{
			Code:         defaultCurrency,
			Amount:       tx.Amount,
			ExchangeRate: 1,
		}
		data.Transactions = append(data.Transactions, domain.Transaction{
			ID:        uuid.NewString(),
			Amount:    tx.Amount,
			Category:  tx.Category,
			Date:      tx.Date,
			CreatedAt: now,
			Merchant:  tx.ReceiptMerchant,
			WalletID:  tx.WalletID,
			Currency: domain.CurrencyTriple{
				Original: amount,
				Primary:  amount,
			},
			Sync: domain.SyncMetadata{
				LastModified: now,
				Status:       domain.SyncStatusLocalOnly,
				IsLocalOnly:  true,
				Priority:     domain.SyncPriorityHigh,
			},
		})
	}

	hash, err := data.ComputeIntegrityHash()
	if err != nil {
		return nil, fmt.Errorf("hashing financial data: %w", err)
	}
	data.IntegrityHash = hash

	return data, nil
}
