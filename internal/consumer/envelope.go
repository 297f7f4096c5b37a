package consumer

import (
	"context"
	"sync/atomic"

	"github.com/Dminor7/ga4bigquery/internal/domain"
)

// settleFunc acknowledges or releases the queue message behind an envelope
type settleFunc func(context.Context) error

// Envelope carries a parsed event together with the queue message it came
// from. It is settled once: the first Ack or Nack wins, later calls are no-ops.
type Envelope struct {
	Event     *domain.Event
	MessageID string

	ack     settleFunc
	nack    settleFunc
	settled atomic.Bool
}

// NewEnvelope wraps event. ack deletes the message, nack makes it visible again.
func NewEnvelope(event *domain.Event, messageID string, ack, nack settleFunc) *Envelope {
	return &Envelope{Event: event, MessageID: messageID, ack: ack, nack: nack}
}

// Ack marks the event as stored
func (e *Envelope) Ack(ctx context.Context) error {
	return e.settle(ctx, e.ack)
}

// Nack hands the message back for redelivery
func (e *Envelope) Nack(ctx context.Context) error {
	return e.settle(ctx, e.nack)
}

// Settled reports whether Ack or Nack has been called
func (e *Envelope) Settled() bool {
	return e.settled.Load()
}

func (e *Envelope) settle(ctx context.Context, fn settleFunc) error {
	if !e.settled.CompareAndSwap(false, true) || fn == nil {
		return nil
	}
	return fn(ctx)
}
