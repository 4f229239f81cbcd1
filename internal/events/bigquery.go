package events

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/option"
)

const defaultEventsTable = "migration_events"

// eventRow maps an Event onto the analytics table schema.
type eventRow struct {
	EventID    string    `bigquery:"event_id"`
	EventType  string    `bigquery:"event_type"`
	OccurredTS time.Time `bigquery:"occurred_ts"`
	UserID     string    `bigquery:"user_id"`
	Stage      string    `bigquery:"stage"`
	Detail     string    `bigquery:"detail"`
	Success    bool      `bigquery:"success"`
}

// BigQueryRecorder streams migration lifecycle events into a BigQuery table.
// It holds a shared client to avoid creating a new connection per event.
type BigQueryRecorder struct {
	client  *bigquery.Client
	dataset string
	table   string
}

// NewBigQueryRecorder creates a recorder writing to <dataset>.migration_events
// in the given project.
func NewBigQueryRecorder(ctx context.Context, projectID, dataset string, opts ...option.ClientOption) (*BigQueryRecorder, error) {
	if projectID == "" || dataset == "" {
		return nil, fmt.Errorf("events: project and dataset are required")
	}

	client, err := bigquery.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("events: creating bigquery client: %w", err)
	}

	return &BigQueryRecorder{
		client:  client,
		dataset: dataset,
		table:   defaultEventsTable,
	}, nil
}

// Record implements the Recorder interface.
func (r *BigQueryRecorder) Record(ctx context.Context, event Event) error {
	row := &eventRow{
		EventID:    event.EventID,
		EventType:  string(event.Type),
		OccurredTS: event.OccurredAt,
		UserID:     event.UserID,
		Stage:      event.Stage,
		Detail:     event.Detail,
		Success:    event.Success,
	}

	inserter := r.client.Dataset(r.dataset).Table(r.table).Inserter()
	if err := inserter.Put(ctx, row); err != nil {
		return fmt.Errorf("events: inserting row: %w", err)
	}

	return nil
}

// Close implements the Recorder interface.
func (r *BigQueryRecorder) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Ensure BigQueryRecorder implements the Recorder interface.
var _ Recorder = (*BigQueryRecorder)(nil)
