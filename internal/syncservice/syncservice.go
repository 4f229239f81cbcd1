package syncservice

import (
	"context"
	"sort"
	"time"

	"github.com/dvloznov/finance-migrator/internal/domain"
)

// Item is one transaction queued for a future sync pass.
type Item struct {
	TransactionID string
	Priority      domain.SyncPriority
	LastModified  time.Time
}

// Service is the multi-device sync layer. It is dormant in the current
// release: migrated data is prepared for it (per-transaction sync metadata)
// but nothing transmits until the user opts in and a real implementation is
// wired.
// This abstraction allows for different implementations (nop, cloud relay).
type Service interface {
	// Plan returns the transactions that would be synced, ordered by
	// priority then recency. It never transmits anything.
	Plan(ctx context.Context, profile *domain.UserProfile, data *domain.LocalFinancialData) ([]Item, error)

	// Enabled reports whether the service would actually transmit.
	Enabled(profile *domain.UserProfile, data *domain.LocalFinancialData) bool
}

// priorityRank orders high before normal before low.
var priorityRank = map[domain.SyncPriority]int{
	domain.SyncPriorityHigh:   0,
	domain.SyncPriorityNormal: 1,
	domain.SyncPriorityLow:    2,
}

// DormantService plans but never transmits. It is the only implementation
// shipped today.
type DormantService struct{}

// NewDormantService creates the no-transmit sync service.
func NewDormantService() *DormantService {
	return &DormantService{}
}

// Enabled implements the Service interface. Both the profile opt-in and the
// ledger's sync settings must agree before anything would transmit.
func (s *DormantService) Enabled(profile *domain.UserProfile, data *domain.LocalFinancialData) bool {
	if profile == nil || data == nil {
		return false
	}
	return profile.EnableCloudBackup && data.SyncSettings.Enabled
}

// Plan implements the Service interface.
func (s *DormantService) Plan(ctx context.Context, profile *domain.UserProfile, data *domain.LocalFinancialData) ([]Item, error) {
	if data == nil {
		return nil, nil
	}

	var items []Item
	for _, tx := range data.Transactions {
		if tx.Sync.Status == domain.SyncStatusSynced {
			continue
		}
		items = append(items, Item{
			TransactionID: tx.ID,
			Priority:      tx.Sync.Priority,
			LastModified:  tx.Sync.LastModified,
		})
	}

	sort.SliceStable(items, func(i, j int) bool {
		ri, rj := priorityRank[items[i].Priority], priorityRank[items[j].Priority]
		if ri != rj {
			return ri < rj
		}
		return items[i].LastModified.After(items[j].LastModified)
	})

	return items, nil
}

// Ensure DormantService implements the Service interface.
var _ Service = (*DormantService)(nil)
