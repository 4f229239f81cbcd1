package domain

import (
	"time"
)

// LegacyRecord is the pre-migration single-blob representation of a user's
// data. It is immutable input to the migration: the orchestrator never
// mutates it, only reads it and finally archives it under a separate key.
type LegacyRecord struct {
	ID           string              `json:"id"`
	Name         string              `json:"name"`
	Email        string              `json:"email"`
	CreatedAt    time.Time           `json:"created_at"`
	Transactions []LegacyTransaction `json:"transactions"`
	Accounts     []LegacyAccount     `json:"accounts"`

	// EnableCloudBackup is whatever the legacy app recorded. The migration
	// ignores it: migrated profiles always start with cloud backup off.
	EnableCloudBackup bool `json:"enable_cloud_backup,omitempty"`
}

// LegacyTransaction is a single transaction inside the legacy blob.
type LegacyTransaction struct {
	Amount   float64   `json:"amount"`
	Category string    `json:"category"`
	Date     time.Time `json:"date"`

	// WalletID references a LegacyAccount.ID. May be empty; a dangling
	// reference is a warning, not a migration blocker.
	WalletID string `json:"wallet_id,omitempty"`

	// Receipt metadata captured by the legacy app, carried over verbatim.
	ReceiptPath     string `json:"receipt_path,omitempty"`
	ReceiptMerchant string `json:"receipt_merchant,omitempty"`
}

// LegacyAccount is a wallet/account inside the legacy blob.
type LegacyAccount struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TransactionSum returns the sum of all legacy transaction amounts.
func (r *LegacyRecord) TransactionSum() float64 {
	var sum float64
	for _, tx := range r.Transactions {
		sum += tx.Amount
	}
	return sum
}
