package consumer

import (
	"context"

	"github.com/Dminor7/ga4bigquery/internal/domain"
)

// MessageParser defines the interface for parsing raw message bytes into events
type MessageParser interface {
	Parse(body []byte) (*domain.Event, error)
}

// EventWriter is the storage the batch writer flushes into
type EventWriter interface {
	InsertBatch(ctx context.Context, events []*domain.Event) (int, error)
}
