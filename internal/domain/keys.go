package domain

import "fmt"

// Storage keys used in the string-keyed record store. Key naming is part of
// the on-device compatibility contract: the legacy blob is archived, never
// deleted, so a manual recovery path always exists.
const (
	// KeyLegacyData holds the pre-migration single-blob record.
	KeyLegacyData = "UserData"

	// KeyLegacyArchived holds the legacy blob after a verified migration.
	KeyLegacyArchived = "UserData_Archived"

	// KeyMigrationVersion marks which data-model version the store holds.
	KeyMigrationVersion = "MigrationVersion"

	// KeyMigrationStatus persists the migration state machine so an
	// interrupted run is detectable on next launch.
	KeyMigrationStatus = "MigrationStatus"

	// KeyMigrationBackup records the identifier of the backup taken at the
	// start of the most recent migration run.
	KeyMigrationBackup = "MigrationBackup"

	// KeyAppState holds the serialized app-state record captured into the
	// second backup component and written back on emergency rollback.
	KeyAppState = "AppState"

	// KeyUserPreferences holds the serialized preferences record captured
	// into the third backup component.
	KeyUserPreferences = "UserPreferences"
)

// ProfileKey returns the store key for a migrated user profile.
func ProfileKey(userID string) string {
	return fmt.Sprintf("UserProfile_%s", userID)
}

// FinancialDataKey returns the store key for a migrated local ledger.
func FinancialDataKey(userID string) string {
	return fmt.Sprintf("LocalFinancialData_%s", userID)
}
