package sqs

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	envConfig "github.com/Dminor7/ga4bigquery/internal/config"
	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/identity"
	"github.com/Dminor7/ga4bigquery/internal/queue"
)

var (
	_ queue.QueuePublisher = (*Client)(nil)
	_ queue.QueueConsumer  = (*Client)(nil)
)

// API is the part of the SQS service client used by Client
type API interface {
	SendMessage(ctx context.Context, input *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, input *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, input *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

// Client publishes raw GA4 events and serves the consumer side of the queue
type Client struct {
	client API
	config envConfig.SQS
	log    *zap.Logger
}

// NewClient creates a new SQS client
func NewClient(ctx context.Context, sqsConfig envConfig.SQS, log *zap.Logger) (*Client, error) {
	configOpts := []func(*config.LoadOptions) error{
		config.WithRegion(sqsConfig.Region),
	}

	var clientOpts []func(*sqs.Options)

	// ElasticMQ or LocalStack
	if sqsConfig.Endpoint != "" {
		log.Info("Configuring SQS for local development",
			zap.String("endpoint", sqsConfig.Endpoint))
		configOpts = append(configOpts,
			config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))

		clientOpts = append(clientOpts, func(o *sqs.Options) {
			o.BaseEndpoint = aws.String(sqsConfig.Endpoint)
		})
	}

	cfg, err := config.LoadDefaultConfig(ctx, configOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	log.Info("SQS client created",
		zap.String("region", sqsConfig.Region),
		zap.String("queue_url", sqsConfig.QueueURL))

	return NewClientWithAPI(sqs.NewFromConfig(cfg, clientOpts...), sqsConfig, log), nil
}

// NewClientWithAPI wraps an existing service client
func NewClientWithAPI(api API, sqsConfig envConfig.SQS, log *zap.Logger) *Client {
	return &Client{
		client: api,
		config: sqsConfig,
		log:    log,
	}
}

// ReceiveMessages receives messages from SQS
func (c *Client) ReceiveMessages(ctx context.Context, input *sqs.ReceiveMessageInput) (*sqs.ReceiveMessageOutput, error) {
	return c.client.ReceiveMessage(ctx, input)
}

// DeleteMessage deletes a message from SQS
func (c *Client) DeleteMessage(ctx context.Context, input *sqs.DeleteMessageInput) (*sqs.DeleteMessageOutput, error) {
	return c.client.DeleteMessage(ctx, input)
}

// ChangeMessageVisibility changes when a received message becomes visible again
func (c *Client) ChangeMessageVisibility(ctx context.Context, input *sqs.ChangeMessageVisibilityInput) (*sqs.ChangeMessageVisibilityOutput, error) {
	return c.client.ChangeMessageVisibility(ctx, input)
}

// QueueURL returns the configured queue URL
func (c *Client) QueueURL() string {
	return c.config.QueueURL
}

// PublishEvent publishes a raw event to SQS. The body is the event in GA4
// export form, including its event_id.
func (c *Client) PublishEvent(ctx context.Context, event *domain.Event) error {
	eventID := strconv.FormatInt(event.EventID, 10)

	bodyJSON, err := json.Marshal(event)
	if err != nil {
		c.log.Error("Failed to marshal event",
			zap.String("event_id", eventID),
			zap.String("event_name", event.EventName),
			zap.Error(err))
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	_, err = c.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:          aws.String(c.config.QueueURL),
		MessageBody:       aws.String(string(bodyJSON)),
		MessageAttributes: messageAttributes(event, eventID),
	})
	if err != nil {
		c.log.Error("Failed to send message to SQS",
			zap.String("event_id", eventID),
			zap.String("event_name", event.EventName),
			zap.Error(err))
		return fmt.Errorf("failed to send message to SQS: %w", err)
	}

	c.log.Debug("Event published to SQS",
		zap.String("event_id", eventID),
		zap.String("event_name", event.EventName))

	return nil
}

// messageAttributes lets queue subscribers filter without decoding the body.
// SessionID is omitted for events without a session scope.
func messageAttributes(event *domain.Event, eventID string) map[string]types.MessageAttributeValue {
	attrs := map[string]types.MessageAttributeValue{
		"EventName": {
			DataType:    aws.String("String"),
			StringValue: aws.String(event.EventName),
		},
		"EventID": {
			DataType:    aws.String("Number"),
			StringValue: aws.String(eventID),
		},
	}
	if sessionID, ok := identity.SessionID(event); ok {
		attrs["SessionID"] = types.MessageAttributeValue{
			DataType:    aws.String("Number"),
			StringValue: aws.String(strconv.FormatInt(sessionID, 10)),
		}
	}
	return attrs
}
