package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/source"
)

// EventsTable holds raw events as published by the API
const EventsTable = "events"

// Repository implements the event and session repositories for ClickHouse
type Repository struct {
	client *Client
	log    *zap.Logger
}

// NewRepository creates a new ClickHouse repository
func NewRepository(client *Client, log *zap.Logger) *Repository {
	return &Repository{
		client: client,
		log:    log,
	}
}

// InitSchema creates the raw events table. Session tables are created on
// first write since their name comes from the session definition.
func (r *Repository) InitSchema(ctx context.Context) error {
	query := `
	CREATE TABLE IF NOT EXISTS events (
		event_id Int64,
		event_timestamp Int64,
		event_name LowCardinality(String),
		user_pseudo_id String,
		user_id Nullable(String),
		event_params String,
		user_properties String,
		columns String,
		processed_at DateTime64(3) DEFAULT now64(3),
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PRIMARY KEY (event_id)
	ORDER BY (event_id)
	PARTITION BY toYYYYMM(toDateTime(intDiv(event_timestamp, 1000000)))
	SETTINGS index_granularity = 8192
	`

	if err := r.client.Conn().Exec(ctx, query); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	r.log.Info("ClickHouse schema initialized successfully")
	return nil
}

// InsertBatch inserts a batch of events into ClickHouse. Rows sharing an
// event_id collapse to the highest version on merge.
func (r *Repository) InsertBatch(ctx context.Context, events []*domain.Event) (int, error) {
	if len(events) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO events")
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	insertedCount := 0
	for _, event := range events {
		if event.Version == 0 {
			event.Version = uint64(time.Now().UnixNano())
		}
		if event.ProcessedAt.IsZero() {
			event.ProcessedAt = time.Now().UTC()
		}

		cols, err := encodeEventColumns(event)
		if err != nil {
			r.log.Warn("Skipping event with unencodable columns",
				zap.Int64("event_id", event.EventID), zap.Error(err))
			continue
		}

		err = batch.Append(
			event.EventID,
			event.Timestamp,
			event.EventName,
			event.UserPseudoID,
			event.UserID,
			cols.params,
			cols.userProperties,
			cols.columns,
			event.ProcessedAt,
			event.Version,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to append event to batch: %w", err)
		}
		insertedCount++
	}

	if insertedCount == 0 {
		return 0, fmt.Errorf("no events could be appended to batch")
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	return insertedCount, nil
}

// ReadEvents implements source.EventSource over the events table. Only the
// partition predicate is used: raw events are not split by dataset.
func (r *Repository) ReadEvents(ctx context.Context, p source.Partition) ([]domain.Event, error) {
	query := `
		SELECT
			event_id, event_timestamp, event_name, user_pseudo_id, user_id,
			event_params, user_properties, columns
		FROM events FINAL`
	if p.Where != "" {
		query += " WHERE " + p.Where
	}
	query += " ORDER BY event_timestamp"

	rows, err := r.client.Conn().Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query events: %w", err)
	}
	defer func(rows driver.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error("Failed to close event rows", zap.Error(err))
		}
	}(rows)

	var events []domain.Event
	for rows.Next() {
		var stored storedEvent
		if err := rows.Scan(
			&stored.EventID,
			&stored.Timestamp,
			&stored.EventName,
			&stored.UserPseudoID,
			&stored.UserID,
			&stored.Params,
			&stored.UserProperties,
			&stored.Columns,
		); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}
		e, err := stored.decode()
		if err != nil {
			return nil, fmt.Errorf("failed to decode event %d: %w", stored.EventID, err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating event rows: %w", err)
	}

	r.log.Info("Events loaded from ClickHouse", zap.Int("events", len(events)))
	return events, nil
}

// Ping checks if the ClickHouse connection is alive
func (r *Repository) Ping(ctx context.Context) error {
	return r.client.Conn().Ping(ctx)
}

// Close closes the ClickHouse connection
func (r *Repository) Close() error {
	return r.client.Close()
}

type encodedColumns struct {
	params         string
	userProperties string
	columns        string
}

func encodeEventColumns(e *domain.Event) (encodedColumns, error) {
	var out encodedColumns
	var err error
	if out.params, err = encodeJSON(e.Params, "[]"); err != nil {
		return out, err
	}
	if out.userProperties, err = encodeJSON(e.UserProperties, "[]"); err != nil {
		return out, err
	}
	if out.columns, err = encodeJSON(e.Columns, "{}"); err != nil {
		return out, err
	}
	return out, nil
}

func encodeJSON[T any](v T, empty string) (string, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(b) == "null" {
		return empty, nil
	}
	return string(b), nil
}

// storedEvent is one scanned row of the events table
type storedEvent struct {
	EventID        int64
	Timestamp      int64
	EventName      string
	UserPseudoID   string
	UserID         *string
	Params         string
	UserProperties string
	Columns        string
}

// decode rebuilds the export row and runs it through the event decoder so
// stored columns get the same number handling as ingested ones.
func (s storedEvent) decode() (domain.Event, error) {
	row := map[string]any{
		"event_id":        s.EventID,
		"event_timestamp": s.Timestamp,
		"event_name":      s.EventName,
		"user_pseudo_id":  s.UserPseudoID,
		"user_id":         s.UserID,
		"event_params":    json.RawMessage(orEmpty(s.Params, "[]")),
		"user_properties": json.RawMessage(orEmpty(s.UserProperties, "[]")),
		"columns":         json.RawMessage(orEmpty(s.Columns, "{}")),
	}
	b, err := json.Marshal(row)
	if err != nil {
		return domain.Event{}, err
	}
	var e domain.Event
	if err := json.Unmarshal(b, &e); err != nil {
		return domain.Event{}, err
	}
	return e, nil
}

func orEmpty(s, empty string) string {
	if s == "" {
		return empty
	}
	return s
}
