package domain

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// SyncStatus tracks where a transaction stands relative to the (dormant)
// multi-device sync layer.
type SyncStatus string

const (
	SyncStatusLocalOnly SyncStatus = "local_only"
	SyncStatusPending   SyncStatus = "pending"
	SyncStatusSynced    SyncStatus = "synced"
)

// SyncPriority orders transactions for a future sync pass.
type SyncPriority string

const (
	SyncPriorityHigh   SyncPriority = "high"
	SyncPriorityNormal SyncPriority = "normal"
	SyncPriorityLow    SyncPriority = "low"
)

// DataClassification tags the sensitivity of a local data set.
type DataClassification string

const (
	// ClassificationSensitiveFinancial marks data that must never leave the
	// device without explicit opt-in.
	ClassificationSensitiveFinancial DataClassification = "sensitive_financial"
)

// SyncMetadata is per-transaction bookkeeping preparing a record for the
// currently-dormant sync layer.
type SyncMetadata struct {
	LastModified time.Time    `json:"last_modified"`
	Status       SyncStatus   `json:"status"`
	IsLocalOnly  bool         `json:"is_local_only"`
	Priority     SyncPriority `json:"priority"`
}

// CurrencyAmount is one leg of a transaction's currency triple.
type CurrencyAmount struct {
	Code         string  `json:"code"`
	Amount       float64 `json:"amount"`
	ExchangeRate float64 `json:"exchange_rate"`
}

// CurrencyTriple carries the original amount plus its primary and secondary
// currency conversions with the rates used.
type CurrencyTriple struct {
	Original  CurrencyAmount `json:"original"`
	Primary   CurrencyAmount `json:"primary"`
	Secondary CurrencyAmount `json:"secondary,omitempty"`
}

// LineItem is one receipt line attached to a transaction.
type LineItem struct {
	Description string  `json:"description"`
	Amount      float64 `json:"amount"`
	Quantity    int     `json:"quantity,omitempty"`
}

// PaymentMetadata describes how a transaction was paid.
type PaymentMetadata struct {
	Method    string `json:"method,omitempty"`
	Reference string `json:"reference,omitempty"`
}

// Transaction is one entry in the local-only financial ledger.
type Transaction struct {
	ID         string    `json:"id"`
	Amount     float64   `json:"amount"`
	Category   string    `json:"category"`
	CategoryID string    `json:"category_id,omitempty"`
	Date       time.Time `json:"date"`
	CreatedAt  time.Time `json:"created_at"`
	Merchant   string    `json:"merchant,omitempty"`

	// WalletID references an Account.ID. May be empty; a dangling
	// reference is reported as a warning by validation, never a failure.
	WalletID string `json:"wallet_id,omitempty"`

	Payment   PaymentMetadata `json:"payment,omitempty"`
	LineItems []LineItem      `json:"line_items,omitempty"`
	Currency  CurrencyTriple  `json:"currency"`

	Sync SyncMetadata `json:"sync"`
}

// Account is a wallet/account in the local ledger. Exactly one account in a
// LocalFinancialData must have IsDefault set.
type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	Currency  string `json:"currency"`
	IsDefault bool   `json:"is_default"`
}

// SyncSettings configures the dormant sync layer. Disabled by default.
type SyncSettings struct {
	Enabled      bool          `json:"enabled"`
	SyncInterval time.Duration `json:"sync_interval,omitempty"`
}

// LocalFinancialData is the larger local-only half of the split data model:
// the full financial ledger that never leaves the device unless the user
// opts in.
type LocalFinancialData struct {
	UserID         string             `json:"user_id"`
	Transactions   []Transaction      `json:"transactions"`
	Accounts       []Account          `json:"accounts"`
	Classification DataClassification `json:"classification"`
	IntegrityHash  string             `json:"integrity_hash,omitempty"`
	BackupEnabled  bool               `json:"backup_enabled"`
	SyncSettings   SyncSettings       `json:"sync_settings"`
}

// TransactionSum returns the sum of all ledger transaction amounts.
func (d *LocalFinancialData) TransactionSum() float64 {
	var sum float64
	for _, tx := range d.Transactions {
		sum += tx.Amount
	}
	return sum
}

// DefaultAccount returns the account flagged as default, or nil if the
// invariant is broken.
func (d *LocalFinancialData) DefaultAccount() *Account {
	for i := range d.Accounts {
		if d.Accounts[i].IsDefault {
			return &d.Accounts[i]
		}
	}
	return nil
}

// ComputeIntegrityHash returns the hex sha256 digest of the ledger content,
// excluding the hash field itself. Stored on write, recomputed on
// validation to detect silent corruption.
func (d *LocalFinancialData) ComputeIntegrityHash() (string, error) {
	clone := *d
	clone.IntegrityHash = ""
	data, err := json.Marshal(&clone)
	if err != nil {
		return "", fmt.Errorf("computing integrity hash: %w", err)
	}
	return fmt.Sprintf("%x", sha256.Sum256(data)), nil
}

// AccountIndex returns a lookup of account IDs for orphan detection.
func (d *LocalFinancialData) AccountIndex() map[string]bool {
	idx := make(map[string]bool, len(d.Accounts))
	for _, a := range d.Accounts {
		idx[a.ID] = true
	}
	return idx
}
