package consumer

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awssqs "github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/metrics"
	"github.com/Dminor7/ga4bigquery/internal/queue"
)

// DefaultRetryDelaySeconds is how long a nacked message stays invisible
const DefaultRetryDelaySeconds int32 = 5

// ParserStage handles parsing SQS messages into domain envelopes
type ParserStage struct {
	consumer   queue.QueueConsumer
	parser     MessageParser
	retryDelay int32
	log        *zap.Logger
}

// NewParserStage creates a new parser stage
func NewParserStage(consumer queue.QueueConsumer, parser MessageParser, log *zap.Logger) *ParserStage {
	return &ParserStage{
		consumer:   consumer,
		parser:     parser,
		retryDelay: DefaultRetryDelaySeconds,
		log:        log,
	}
}

// Start begins parsing messages and outputs envelopes
func (p *ParserStage) Start(ctx context.Context, in <-chan types.Message, out chan<- *Envelope) {
	defer close(out)

	for {
		select {
		case <-ctx.Done():
			p.log.Info("Parser stage shutting down")
			return
		case msg, ok := <-in:
			if !ok {
				p.log.Info("Parser stage input channel closed")
				return
			}

			envelope := p.parseMessage(ctx, msg)
			if envelope == nil {
				continue
			}

			select {
			case <-ctx.Done():
				return
			case out <- envelope:
			}
		}
	}
}

// parseMessage parses a single SQS message into an envelope. Messages that
// cannot be parsed are deleted since a retry would fail the same way.
func (p *ParserStage) parseMessage(ctx context.Context, msg types.Message) *Envelope {
	event, err := p.parser.Parse([]byte(aws.ToString(msg.Body)))
	if err != nil {
		p.log.Warn("Failed to parse message",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.Error(err))
		if err := p.deleteMessage(ctx, msg); err == nil {
			metrics.MessagesDropped.Inc()
			p.log.Info("Deleted malformed message from SQS",
				zap.String("message_id", aws.ToString(msg.MessageId)))
		}
		return nil
	}

	ack := func(ctx context.Context) error {
		return p.deleteMessage(ctx, msg)
	}

	nack := func(ctx context.Context) error {
		return p.releaseMessage(ctx, msg)
	}

	return NewEnvelope(event, aws.ToString(msg.MessageId), ack, nack)
}

// deleteMessage deletes a message from SQS
func (p *ParserStage) deleteMessage(ctx context.Context, msg types.Message) error {
	_, err := p.consumer.DeleteMessage(ctx, &awssqs.DeleteMessageInput{
		QueueUrl:      aws.String(p.consumer.QueueURL()),
		ReceiptHandle: msg.ReceiptHandle,
	})
	if err != nil {
		p.log.Error("Failed to delete message",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.Error(err))
		return err
	}
	return nil
}

// releaseMessage shortens the visibility timeout so a failed message is
// redelivered after the retry delay instead of the queue default.
func (p *ParserStage) releaseMessage(ctx context.Context, msg types.Message) error {
	_, err := p.consumer.ChangeMessageVisibility(ctx, &awssqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(p.consumer.QueueURL()),
		ReceiptHandle:     msg.ReceiptHandle,
		VisibilityTimeout: p.retryDelay,
	})
	if err != nil {
		p.log.Error("Failed to release message",
			zap.String("message_id", aws.ToString(msg.MessageId)),
			zap.Error(err))
		return err
	}
	return nil
}
