package repository

import (
	"context"
	"time"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/sessions"
	"github.com/Dminor7/ga4bigquery/internal/source"
)

// ChannelQuery represents channel report parameters. From and To are
// inclusive session dates.
type ChannelQuery struct {
	Schema  string
	Table   string
	From    time.Time
	To      time.Time
	GroupBy string
}

// ChannelGroupResult represents the sessions of one channel, optionally split by a second dimension
type ChannelGroupResult struct {
	Channel    string
	GroupValue string
	Sessions   uint64
	Engaged    uint64
}

// ChannelReport represents the result of a channel query
type ChannelReport struct {
	TotalSessions uint64
	UniqueUsers   uint64
	Groups        []ChannelGroupResult
}

// EventRepository defines the interface for raw event storage operations
type EventRepository interface {
	source.EventSource

	// InsertBatch inserts a batch of events into the storage
	InsertBatch(ctx context.Context, events []*domain.Event) (int, error)

	// InitSchema initializes the database schema (creates tables if they don't exist)
	InitSchema(ctx context.Context) error

	// Ping checks if the database connection is alive
	Ping(ctx context.Context) error

	// Close closes the repository and releases resources
	Close() error
}

// SessionRepository defines the interface for session table operations
type SessionRepository interface {
	sessions.Sink

	// ChannelReport aggregates stored sessions by channel
	ChannelReport(ctx context.Context, query ChannelQuery) (*ChannelReport, error)
}
