package consumer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/metrics"
)

// BatchWriterConfig configures the batch writer
type BatchWriterConfig struct {
	MaxBatchSize int
	FlushTimeout time.Duration
}

// BatchWriter handles batching and writing events to storage
type BatchWriter struct {
	writer EventWriter
	config BatchWriterConfig
	log    *zap.Logger
}

// NewBatchWriter creates a new batch writer
func NewBatchWriter(writer EventWriter, config BatchWriterConfig, log *zap.Logger) *BatchWriter {
	return &BatchWriter{
		writer: writer,
		config: config,
		log:    log,
	}
}

// Start begins processing envelopes, batching, and writing to storage
func (w *BatchWriter) Start(ctx context.Context, in <-chan *Envelope) {
	ticker := time.NewTicker(w.config.FlushTimeout)
	defer ticker.Stop()

	batch := make([]*Envelope, 0, w.config.MaxBatchSize)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("Batch writer shutting down")
			w.flushFinal(batch)
			return

		case envelope, ok := <-in:
			if !ok {
				w.log.Info("Batch writer input channel closed")
				w.flushFinal(batch)
				return
			}

			batch = append(batch, envelope)

			if len(batch) >= w.config.MaxBatchSize {
				w.log.Debug("Batch size threshold reached", zap.Int("batch_size", len(batch)))
				w.processBatch(ctx, batch)
				batch = make([]*Envelope, 0, w.config.MaxBatchSize)
				ticker.Reset(w.config.FlushTimeout)
			}

		case <-ticker.C:
			if len(batch) > 0 {
				w.log.Debug("Batch timeout reached", zap.Int("envelope_count", len(batch)))
				w.processBatch(ctx, batch)
				batch = make([]*Envelope, 0, w.config.MaxBatchSize)
			}
		}
	}
}

// flushFinal writes what is left with a fresh context, the run context may
// already be cancelled.
func (w *BatchWriter) flushFinal(batch []*Envelope) {
	if len(batch) == 0 {
		return
	}
	w.log.Info("Flushing final batch", zap.Int("envelope_count", len(batch)))
	ctx, cancel := context.WithTimeout(context.Background(), w.config.FlushTimeout)
	defer cancel()
	w.processBatch(ctx, batch)
}

// processBatch inserts the batch and then acks or nacks every envelope.
// Redelivered copies of one event are inserted once.
func (w *BatchWriter) processBatch(ctx context.Context, envelopes []*Envelope) {
	if len(envelopes) == 0 {
		return
	}

	events := uniqueEvents(envelopes)

	insertedCount, err := w.writer.InsertBatch(ctx, events)
	if err != nil {
		w.log.Error("Failed to insert batch",
			zap.Error(err),
			zap.Int("event_count", len(events)))
		w.nackAll(ctx, envelopes)
		return
	}

	if insertedCount != len(events) {
		w.log.Warn("Partial insert success",
			zap.Int("inserted", insertedCount),
			zap.Int("expected", len(events)))
		w.nackAll(ctx, envelopes)
		return
	}

	metrics.EventsInserted.Add(float64(insertedCount))
	w.log.Info("Successfully inserted events",
		zap.Int("count", insertedCount),
		zap.Int("duplicates", len(envelopes)-len(events)))
	w.ackAll(ctx, envelopes)
}

func uniqueEvents(envelopes []*Envelope) []*domain.Event {
	seen := make(map[int64]struct{}, len(envelopes))
	events := make([]*domain.Event, 0, len(envelopes))
	for _, env := range envelopes {
		if _, dup := seen[env.Event.EventID]; dup {
			continue
		}
		seen[env.Event.EventID] = struct{}{}
		events = append(events, env.Event)
	}
	return events
}

// ackAll acknowledges all envelopes (deletes from SQS)
func (w *BatchWriter) ackAll(ctx context.Context, envelopes []*Envelope) {
	for _, env := range envelopes {
		if err := env.Ack(ctx); err != nil {
			w.log.Error("Failed to ack envelope", zap.String("message_id", env.MessageID), zap.Error(err))
		}
	}
}

// nackAll releases all envelopes for redelivery
func (w *BatchWriter) nackAll(ctx context.Context, envelopes []*Envelope) {
	for _, env := range envelopes {
		if err := env.Nack(ctx); err != nil {
			w.log.Error("Failed to nack envelope", zap.String("message_id", env.MessageID), zap.Error(err))
		}
	}
}
