package domain

import (
	"time"
)

// SubscriptionTier is the entitlement tier stored on the profile.
type SubscriptionTier string

const (
	TierFree    SubscriptionTier = "free"
	TierPremium SubscriptionTier = "premium"
)

// UserProfile is the small cloud-synced, non-financial half of the split
// data model. The orchestrator owns it only during construction; afterwards
// ownership moves to the external profile store.
type UserProfile struct {
	ID             string    `json:"id"`
	ExternalAuthID string    `json:"external_auth_id"`
	Name           string    `json:"name"`
	Email          string    `json:"email"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	PreferredCurrency string `json:"preferred_currency"`

	// EnableCloudBackup defaults to false. Migration forces it false
	// regardless of any legacy flag (privacy-first).
	EnableCloudBackup bool `json:"enable_cloud_backup"`

	SubscriptionTier SubscriptionTier `json:"subscription_tier"`

	RegisteredDevices []DeviceRegistration `json:"registered_devices,omitempty"`
	StorageQuota      StorageQuota         `json:"storage_quota"`
}

// DeviceRegistration records one device registered against the profile.
type DeviceRegistration struct {
	DeviceID     string    `json:"device_id"`
	Name         string    `json:"name"`
	RegisteredAt time.Time `json:"registered_at"`
}

// StorageQuota tracks cloud storage usage counters for the profile.
type StorageQuota struct {
	UsedBytes  int64 `json:"used_bytes"`
	LimitBytes int64 `json:"limit_bytes"`
}
