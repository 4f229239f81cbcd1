package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// EventType identifies a migration lifecycle event.
type EventType string

const (
	EventMigrationStarted   EventType = "migration_started"
	EventStageCompleted     EventType = "stage_completed"
	EventMigrationCompleted EventType = "migration_completed"
	EventMigrationFailed    EventType = "migration_failed"
	EventRollbackSucceeded  EventType = "rollback_succeeded"
	EventRollbackFailed     EventType = "rollback_failed"
	EventBackupCreated      EventType = "backup_created"
	EventBackupVerified     EventType = "backup_verified"
	EventEmergencyRollback  EventType = "emergency_rollback"
)

// Event is one analytics record emitted by the migration core. Events carry
// no financial data - only lifecycle metadata.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	UserID     string    `json:"user_id,omitempty"`
	Stage      string    `json:"stage,omitempty"`
	Detail     string    `json:"detail,omitempty"`
	Success    bool      `json:"success"`
}

// New builds an event with a fresh id and timestamp.
func New(t EventType) Event {
	return Event{
		EventID:    uuid.NewString(),
		Type:       t,
		OccurredAt: time.Now().UTC(),
	}
}

// Recorder is the analytics/event sink collaborator. Recording failures must
// never fail a migration; callers log and continue.
// This abstraction allows for different sink implementations (BigQuery, nop).
type Recorder interface {
	// Record submits a single event.
	Record(ctx context.Context, event Event) error

	// Close flushes and releases sink resources.
	Close() error
}

// NopRecorder discards all events. Used when analytics is disabled.
type NopRecorder struct{}

// Record implements the Recorder interface.
func (NopRecorder) Record(ctx context.Context, event Event) error { return nil }

// Close implements the Recorder interface.
func (NopRecorder) Close() error { return nil }

// Ensure NopRecorder implements the Recorder interface.
var _ Recorder = NopRecorder{}
