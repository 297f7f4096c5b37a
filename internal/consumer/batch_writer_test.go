package consumer

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/domain"
)

// MockEventWriter is a mock implementation of EventWriter
type MockEventWriter struct {
	mock.Mock
}

func (m *MockEventWriter) InsertBatch(ctx context.Context, events []*domain.Event) (int, error) {
	args := m.Called(ctx, events)
	return args.Int(0), args.Error(1)
}

// ackCounter records how envelopes were settled
type ackCounter struct {
	acked  atomic.Int32
	nacked atomic.Int32
}

func (c *ackCounter) envelope(eventID int64) *Envelope {
	return NewEnvelope(testEvent(eventID), fmt.Sprintf("msg-%d", eventID),
		func(context.Context) error { c.acked.Add(1); return nil },
		func(context.Context) error { c.nacked.Add(1); return nil },
	)
}

func batchOf(n int) any {
	return mock.MatchedBy(func(events []*domain.Event) bool { return len(events) == n })
}

func TestBatchWriter_Start_BatchSizeThreshold(t *testing.T) {
	mockWriter := new(MockEventWriter)
	counter := &ackCounter{}
	writer := NewBatchWriter(mockWriter, BatchWriterConfig{MaxBatchSize: 3, FlushTimeout: 10 * time.Second}, zap.NewNop())

	mockWriter.On("InsertBatch", mock.Anything, batchOf(3)).Return(3, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 5)
	go writer.Start(ctx, in)

	in <- counter.envelope(1)
	in <- counter.envelope(2)
	in <- counter.envelope(3)

	assert.Eventually(t, func() bool { return counter.acked.Load() == 3 }, time.Second, 10*time.Millisecond)
	mockWriter.AssertExpectations(t)
}

func TestBatchWriter_Start_TimeoutFlush(t *testing.T) {
	mockWriter := new(MockEventWriter)
	counter := &ackCounter{}
	writer := NewBatchWriter(mockWriter, BatchWriterConfig{MaxBatchSize: 10, FlushTimeout: 50 * time.Millisecond}, zap.NewNop())

	mockWriter.On("InsertBatch", mock.Anything, batchOf(2)).Return(2, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 5)
	go writer.Start(ctx, in)

	in <- counter.envelope(1)
	in <- counter.envelope(2)

	assert.Eventually(t, func() bool { return counter.acked.Load() == 2 }, time.Second, 10*time.Millisecond)
	mockWriter.AssertExpectations(t)
}

func TestBatchWriter_Start_InsertFailureNacks(t *testing.T) {
	mockWriter := new(MockEventWriter)
	counter := &ackCounter{}
	writer := NewBatchWriter(mockWriter, BatchWriterConfig{MaxBatchSize: 2, FlushTimeout: 10 * time.Second}, zap.NewNop())

	mockWriter.On("InsertBatch", mock.Anything, batchOf(2)).Return(0, errors.New("clickhouse unavailable"))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 2)
	go writer.Start(ctx, in)

	in <- counter.envelope(1)
	in <- counter.envelope(2)

	assert.Eventually(t, func() bool { return counter.nacked.Load() == 2 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), counter.acked.Load())
}

func TestBatchWriter_Start_PartialInsertNacks(t *testing.T) {
	mockWriter := new(MockEventWriter)
	counter := &ackCounter{}
	writer := NewBatchWriter(mockWriter, BatchWriterConfig{MaxBatchSize: 3, FlushTimeout: 10 * time.Second}, zap.NewNop())

	mockWriter.On("InsertBatch", mock.Anything, batchOf(3)).Return(2, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 3)
	go writer.Start(ctx, in)

	in <- counter.envelope(1)
	in <- counter.envelope(2)
	in <- counter.envelope(3)

	assert.Eventually(t, func() bool { return counter.nacked.Load() == 3 }, time.Second, 10*time.Millisecond)
	assert.Equal(t, int32(0), counter.acked.Load())
}

func TestBatchWriter_Start_DuplicatesInsertedOnceAndAcked(t *testing.T) {
	mockWriter := new(MockEventWriter)
	counter := &ackCounter{}
	writer := NewBatchWriter(mockWriter, BatchWriterConfig{MaxBatchSize: 3, FlushTimeout: 10 * time.Second}, zap.NewNop())

	mockWriter.On("InsertBatch", mock.Anything, mock.MatchedBy(func(events []*domain.Event) bool {
		return len(events) == 2 && events[0].EventID == 1 && events[1].EventID == 2
	})).Return(2, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 3)
	go writer.Start(ctx, in)

	in <- counter.envelope(1)
	in <- counter.envelope(2)
	in <- counter.envelope(1)

	assert.Eventually(t, func() bool { return counter.acked.Load() == 3 }, time.Second, 10*time.Millisecond)
	mockWriter.AssertExpectations(t)
}

func TestBatchWriter_Start_GracefulShutdownFlushes(t *testing.T) {
	mockWriter := new(MockEventWriter)
	counter := &ackCounter{}
	writer := NewBatchWriter(mockWriter, BatchWriterConfig{MaxBatchSize: 10, FlushTimeout: 10 * time.Second}, zap.NewNop())

	mockWriter.On("InsertBatch", mock.Anything, batchOf(2)).Return(2, nil).Once()

	ctx, cancel := context.WithCancel(context.Background())
	in := make(chan *Envelope, 2)

	done := make(chan struct{})
	go func() {
		writer.Start(ctx, in)
		close(done)
	}()

	in <- counter.envelope(1)
	in <- counter.envelope(2)
	assert.Eventually(t, func() bool { return len(in) == 0 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("batch writer did not stop")
	}

	assert.Equal(t, int32(2), counter.acked.Load())
	mockWriter.AssertExpectations(t)
}

func TestBatchWriter_Start_InputChannelClosedFlushes(t *testing.T) {
	mockWriter := new(MockEventWriter)
	counter := &ackCounter{}
	writer := NewBatchWriter(mockWriter, BatchWriterConfig{MaxBatchSize: 10, FlushTimeout: 10 * time.Second}, zap.NewNop())

	mockWriter.On("InsertBatch", mock.Anything, batchOf(1)).Return(1, nil).Once()

	in := make(chan *Envelope, 1)
	in <- counter.envelope(1)
	close(in)

	writer.Start(context.Background(), in)

	assert.Equal(t, int32(1), counter.acked.Load())
	mockWriter.AssertExpectations(t)
}

func TestBatchWriter_Start_EmptyBatchNotFlushed(t *testing.T) {
	mockWriter := new(MockEventWriter)
	writer := NewBatchWriter(mockWriter, BatchWriterConfig{MaxBatchSize: 10, FlushTimeout: 20 * time.Millisecond}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	writer.Start(ctx, make(chan *Envelope))

	mockWriter.AssertNotCalled(t, "InsertBatch", mock.Anything, mock.Anything)
}

func TestBatchWriter_Start_MultipleBatches(t *testing.T) {
	mockWriter := new(MockEventWriter)
	counter := &ackCounter{}
	writer := NewBatchWriter(mockWriter, BatchWriterConfig{MaxBatchSize: 2, FlushTimeout: 10 * time.Second}, zap.NewNop())

	mockWriter.On("InsertBatch", mock.Anything, batchOf(2)).Return(2, nil).Twice()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	in := make(chan *Envelope, 4)
	go writer.Start(ctx, in)

	for i := int64(1); i <= 4; i++ {
		in <- counter.envelope(i)
	}

	assert.Eventually(t, func() bool { return counter.acked.Load() == 4 }, time.Second, 10*time.Millisecond)
	mockWriter.AssertNumberOfCalls(t, "InsertBatch", 2)
}
