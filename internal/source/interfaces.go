// Package source defines how the session builder reads raw events.
package source

import (
	"context"

	"github.com/Dminor7/ga4bigquery/internal/domain"
)

// Partition addresses one table of raw events and an optional predicate
type Partition struct {
	Database string
	Dataset  string
	Table    string
	// Where is a backend specific predicate applied before events are returned.
	Where string
}

// EventSource reads raw events from a partition
type EventSource interface {
	ReadEvents(ctx context.Context, p Partition) ([]domain.Event, error)
}
