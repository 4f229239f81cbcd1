package backup

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// ComponentType identifies one of the three independently hashed components
// written per backup.
type ComponentType string

const (
	ComponentLegacyData      ComponentType = "legacyData"
	ComponentAppState        ComponentType = "appState"
	ComponentUserPreferences ComponentType = "userPreferences"
)

// Component filenames inside a backup directory.
const (
	legacyDataFilename      = "legacy_data.backup"
	appStateFilename        = "app_state.backup"
	userPreferencesFilename = "user_preferences.backup"
	manifestFilename        = "backup_manifest.json"
)

// componentFilename maps a component type to its on-disk filename.
func componentFilename(t ComponentType) (string, error) {
	switch t {
	case ComponentLegacyData:
		return legacyDataFilename, nil
	case ComponentAppState:
		return appStateFilename, nil
	case ComponentUserPreferences:
		return userPreferencesFilename, nil
	default:
		return "", fmt.Errorf("unknown backup component type %q", t)
	}
}

// BackupComponent describes one hashed component inside a manifest.
type BackupComponent struct {
	Type        ComponentType `json:"type"`
	ByteSize    int64         `json:"byte_size"`
	ContentHash string        `json:"content_hash"`
}

// Manifest is the hashed inventory of one backup attempt. It is written once
// after all components and never mutated; both restore and verification are
// driven by it.
type Manifest struct {
	BackupID   string            `json:"backup_id"`
	CreatedAt  time.Time         `json:"created_at"`
	Components []BackupComponent `json:"components"`
}

// Component returns the manifest entry for the given type, or nil.
func (m *Manifest) Component(t ComponentType) *BackupComponent {
	for i := range m.Components {
		if m.Components[i].Type == t {
			return &m.Components[i]
		}
	}
	return nil
}

// Snapshot is the in-memory state captured into one backup: the raw legacy
// blob, a serialized app-state record and a serialized preferences record.
type Snapshot struct {
	LegacyData      []byte
	AppState        []byte
	UserPreferences []byte
}

// componentData returns the snapshot's payload for a component type.
func (s *Snapshot) componentData(t ComponentType) []byte {
	switch t {
	case ComponentLegacyData:
		return s.LegacyData
	case ComponentAppState:
		return s.AppState
	case ComponentUserPreferences:
		return s.UserPreferences
	default:
		return nil
	}
}

// allComponentTypes is the fixed write/restore order.
var allComponentTypes = []ComponentType{
	ComponentLegacyData,
	ComponentAppState,
	ComponentUserPreferences,
}

// hashBytes returns the hex sha256 digest of b. A real content digest is
// required for the tamper-detection guarantees to hold.
func hashBytes(b []byte) string {
	return fmt.Sprintf("%x", sha256.Sum256(b))
}
