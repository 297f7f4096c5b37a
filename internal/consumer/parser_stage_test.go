package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/domain"
)

const testTimestamp int64 = 1766702552000000

// MockMessageParser is a mock implementation of MessageParser
type MockMessageParser struct {
	mock.Mock
}

func (m *MockMessageParser) Parse(body []byte) (*domain.Event, error) {
	args := m.Called(body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Event), args.Error(1)
}

func testEvent(id int64) *domain.Event {
	return &domain.Event{
		EventID:      id,
		EventName:    "page_view",
		UserPseudoID: "pseudo-1",
		Timestamp:    testTimestamp,
	}
}

func testMessage(id, body string) types.Message {
	return types.Message{
		MessageId:     aws.String(id),
		Body:          aws.String(body),
		ReceiptHandle: aws.String("receipt-" + id),
	}
}

// drain collects envelopes until out is closed
func drain(t *testing.T, out <-chan *Envelope) []*Envelope {
	t.Helper()
	var envelopes []*Envelope
	timeout := time.After(time.Second)
	for {
		select {
		case env, ok := <-out:
			if !ok {
				return envelopes
			}
			envelopes = append(envelopes, env)
		case <-timeout:
			t.Fatal("parser stage did not close its output")
			return nil
		}
	}
}

func TestParserStage_Start_Success(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	mockParser := new(MockMessageParser)
	stage := NewParserStage(mockConsumer, mockParser, zap.NewNop())

	mockParser.On("Parse", []byte(`{"event_name":"page_view"}`)).Return(testEvent(42), nil)

	in := make(chan types.Message, 1)
	out := make(chan *Envelope, 1)
	go stage.Start(context.Background(), in, out)

	in <- testMessage("msg-1", `{"event_name":"page_view"}`)
	close(in)

	envelopes := drain(t, out)
	require.Len(t, envelopes, 1)
	assert.Equal(t, int64(42), envelopes[0].Event.EventID)
	assert.Equal(t, "msg-1", envelopes[0].MessageID)
	assert.Equal(t, "page_view", envelopes[0].Event.EventName)
	mockParser.AssertExpectations(t)
}

func TestParserStage_Start_MalformedMessageIsDeleted(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	mockParser := new(MockMessageParser)
	stage := NewParserStage(mockConsumer, mockParser, zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(input *sqs.DeleteMessageInput) bool {
		return aws.ToString(input.ReceiptHandle) == "receipt-msg-1"
	})).Return(&sqs.DeleteMessageOutput{}, nil)
	mockParser.On("Parse", []byte(`{invalid json}`)).Return(nil, errors.New("invalid JSON format"))

	in := make(chan types.Message, 1)
	out := make(chan *Envelope, 1)
	go stage.Start(context.Background(), in, out)

	in <- testMessage("msg-1", `{invalid json}`)
	close(in)

	assert.Empty(t, drain(t, out))
	mockConsumer.AssertExpectations(t)
}

func TestParserStage_Start_DeleteFailureDropsMessage(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	mockParser := new(MockMessageParser)
	stage := NewParserStage(mockConsumer, mockParser, zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("DeleteMessage", mock.Anything, mock.Anything).Return(nil, errors.New("access denied"))
	mockParser.On("Parse", mock.Anything).Return(nil, ErrIncompleteEvent)

	in := make(chan types.Message, 1)
	out := make(chan *Envelope, 1)
	go stage.Start(context.Background(), in, out)

	in <- testMessage("msg-1", `{}`)
	close(in)

	assert.Empty(t, drain(t, out))
	mockConsumer.AssertCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestParserStage_EnvelopeAckDeletesMessage(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	mockParser := new(MockMessageParser)
	stage := NewParserStage(mockConsumer, mockParser, zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("DeleteMessage", mock.Anything, mock.MatchedBy(func(input *sqs.DeleteMessageInput) bool {
		return aws.ToString(input.QueueUrl) == testQueueURL && aws.ToString(input.ReceiptHandle) == "receipt-msg-1"
	})).Return(&sqs.DeleteMessageOutput{}, nil)
	mockParser.On("Parse", mock.Anything).Return(testEvent(1), nil)

	env := stage.parseMessage(context.Background(), testMessage("msg-1", `{}`))
	require.NotNil(t, env)

	require.NoError(t, env.Ack(context.Background()))
	mockConsumer.AssertExpectations(t)
}

func TestParserStage_EnvelopeNackReleasesMessage(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	mockParser := new(MockMessageParser)
	stage := NewParserStage(mockConsumer, mockParser, zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("ChangeMessageVisibility", mock.Anything, mock.MatchedBy(func(input *sqs.ChangeMessageVisibilityInput) bool {
		return aws.ToString(input.ReceiptHandle) == "receipt-msg-1" && input.VisibilityTimeout == DefaultRetryDelaySeconds
	})).Return(&sqs.ChangeMessageVisibilityOutput{}, nil)
	mockParser.On("Parse", mock.Anything).Return(testEvent(1), nil)

	env := stage.parseMessage(context.Background(), testMessage("msg-1", `{}`))
	require.NotNil(t, env)

	require.NoError(t, env.Nack(context.Background()))
	mockConsumer.AssertExpectations(t)
	mockConsumer.AssertNotCalled(t, "DeleteMessage", mock.Anything, mock.Anything)
}

func TestParserStage_EnvelopeNackFailure(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	mockParser := new(MockMessageParser)
	stage := NewParserStage(mockConsumer, mockParser, zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("ChangeMessageVisibility", mock.Anything, mock.Anything).Return(nil, errors.New("receipt expired"))
	mockParser.On("Parse", mock.Anything).Return(testEvent(1), nil)

	env := stage.parseMessage(context.Background(), testMessage("msg-1", `{}`))
	require.NotNil(t, env)

	assert.EqualError(t, env.Nack(context.Background()), "receipt expired")
}

func TestParserStage_Start_ContextCancellation(t *testing.T) {
	stage := NewParserStage(new(MockQueueConsumer), new(MockMessageParser), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan types.Message)
	out := make(chan *Envelope)

	done := make(chan struct{})
	go func() {
		stage.Start(ctx, in, out)
		close(done)
	}()

	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("parser stage did not stop after cancellation")
	}
}

func TestParserStage_Start_MultipleMessages(t *testing.T) {
	mockConsumer := new(MockQueueConsumer)
	mockParser := new(MockMessageParser)
	stage := NewParserStage(mockConsumer, mockParser, zap.NewNop())

	mockConsumer.On("QueueURL").Return(testQueueURL)
	mockConsumer.On("DeleteMessage", mock.Anything, mock.Anything).Return(&sqs.DeleteMessageOutput{}, nil)
	mockParser.On("Parse", []byte(`1`)).Return(testEvent(1), nil)
	mockParser.On("Parse", []byte(`bad`)).Return(nil, errors.New("invalid"))
	mockParser.On("Parse", []byte(`3`)).Return(testEvent(3), nil)

	in := make(chan types.Message, 3)
	out := make(chan *Envelope, 3)
	go stage.Start(context.Background(), in, out)

	in <- testMessage("msg-1", `1`)
	in <- testMessage("msg-2", `bad`)
	in <- testMessage("msg-3", `3`)
	close(in)

	envelopes := drain(t, out)
	require.Len(t, envelopes, 2)
	assert.Equal(t, int64(1), envelopes[0].Event.EventID)
	assert.Equal(t, int64(3), envelopes[1].Event.EventID)
	mockConsumer.AssertNumberOfCalls(t, "DeleteMessage", 1)
}
