package migration

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dvloznov/finance-migrator/internal/domain"
	"github.com/dvloznov/finance-migrator/internal/storage"
)

// Duration model coefficients, tuned against observed migrations on
// mid-range devices.
const (
	assessBaseDuration    = 2 * time.Second
	assessPerTransaction  = 5 * time.Millisecond
	assessPerAccount      = 20 * time.Millisecond
	assessPayloadOverhead = 512
)

// Assessment is the dry-run report. Producing it never mutates anything.
type Assessment struct {
	Possible          bool          `json:"possible"`
	Reason            string        `json:"reason"`
	EstimatedDuration time.Duration `json:"estimated_duration"`
	EstimatedBytes    int64         `json:"estimated_bytes"`
	TransactionCount  int           `json:"transaction_count"`
	AccountCount      int           `json:"account_count"`
	Status            Status        `json:"status"`
}

// Assess reads the legacy record without mutation and reports whether a
// migration is possible, with duration and payload estimates. Callable any
// number of times.
func (o *Orchestrator) Assess(ctx context.Context) (*Assessment, error) {
	status, err := loadStatus(ctx, o.store)
	if err != nil {
		return nil, err
	}

	assessment := &Assessment{Status: status}

	switch status {
	case StatusCompleted:
		assessment.Reason = "migration already completed"
		return assessment, nil
	case StatusInProgress:
		assessment.Reason = "migration currently in progress"
		return assessment, nil
	}

	data, err := o.store.Get(ctx, domain.KeyLegacyData)
	if errors.Is(err, storage.ErrNotFound) {
		assessment.Reason = "no legacy data found"
		return assessment, nil
	}
	if err != nil {
		return nil, err
	}

	var legacy domain.LegacyRecord
	if err := json.Unmarshal(data, &legacy); err != nil {
		assessment.Reason = "legacy data is not decodable"
		return assessment, nil
	}

	assessment.Possible = true
	assessment.Reason = "legacy data found, migration possible"
	assessment.TransactionCount = len(legacy.Transactions)
	assessment.AccountCount = len(legacy.Accounts)
	assessment.EstimatedDuration = assessBaseDuration +
		time.Duration(len(legacy.Transactions))*assessPerTransaction +
		time.Duration(len(legacy.Accounts))*assessPerAccount
	assessment.EstimatedBytes = int64(len(data)) + assessPayloadOverhead

	return assessment, nil
}
