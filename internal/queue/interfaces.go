// Package queue describes the transport between the collection API and the
// event consumer. Implementations live in subpackages.
package queue

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/Dminor7/ga4bigquery/internal/domain"
)

// QueuePublisher enqueues raw GA4 events. The event must already carry its
// event_id so the consumer can deduplicate redeliveries.
type QueuePublisher interface {
	PublishEvent(ctx context.Context, event *domain.Event) error
}

// QueueConsumer is the receiving side. Messages are deleted once stored and
// made visible again with ChangeMessageVisibility when a write fails.
type QueueConsumer interface {
	ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, input *sqs.ChangeMessageVisibilityInput) (*sqs.ChangeMessageVisibilityOutput, error)
	QueueURL() string
}
