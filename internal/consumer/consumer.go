package consumer

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Dminor7/ga4bigquery/internal/config"
	"github.com/Dminor7/ga4bigquery/internal/queue"
)

const defaultStageBufferSize = 100

// Consumer moves raw GA4 events from the queue into the event store.
// Receive, parse and batch-write run as connected stages; closing a stage's
// output channel is what tells the next stage to drain and stop.
type Consumer struct {
	receiver    *Receiver
	parser      *ParserStage
	batchWriter *BatchWriter
	bufferSize  int
	log         *zap.Logger
}

// NewConsumer wires the stages from the consumer configuration
func NewConsumer(cfg config.Consumer, queueConsumer queue.QueueConsumer, writer EventWriter, log *zap.Logger) *Consumer {
	receiverConfig := ReceiverConfig{
		MaxMessages:     cfg.ReceiveMaxMessages,
		WaitTimeSeconds: cfg.ReceiveWaitSeconds,
	}
	if receiverConfig.MaxMessages <= 0 || receiverConfig.MaxMessages > 10 {
		receiverConfig.MaxMessages = 10
	}
	if receiverConfig.WaitTimeSeconds < 0 || receiverConfig.WaitTimeSeconds > 20 {
		receiverConfig.WaitTimeSeconds = 20
	}

	bufferSize := cfg.StageBufferSize
	if bufferSize <= 0 {
		bufferSize = defaultStageBufferSize
	}

	return &Consumer{
		receiver: NewReceiver(queueConsumer, receiverConfig, log),
		parser:   NewParserStage(queueConsumer, NewGA4EventParser(cfg.EventIDTimestampParam), log),
		batchWriter: NewBatchWriter(writer, BatchWriterConfig{
			MaxBatchSize: cfg.BatchSizeMax,
			FlushTimeout: time.Duration(cfg.BatchTimeoutSec) * time.Second,
		}, log),
		bufferSize: bufferSize,
		log:        log,
	}
}

// Start blocks until ctx is done and every stage has drained. Messages still
// buffered when ctx ends are flushed by the batch writer before it returns.
func (c *Consumer) Start(ctx context.Context) error {
	messageChan := make(chan types.Message, c.bufferSize)
	envelopeChan := make(chan *Envelope, c.bufferSize)

	var g errgroup.Group
	c.runStage(&g, "receiver", func() { c.receiver.Start(ctx, messageChan) })
	c.runStage(&g, "parser", func() { c.parser.Start(ctx, messageChan, envelopeChan) })
	c.runStage(&g, "batch_writer", func() { c.batchWriter.Start(ctx, envelopeChan) })

	return g.Wait()
}

func (c *Consumer) runStage(g *errgroup.Group, name string, run func()) {
	g.Go(func() error {
		c.log.Debug("Stage started", zap.String("stage", name))
		run()
		c.log.Debug("Stage stopped", zap.String("stage", name))
		return nil
	})
}
