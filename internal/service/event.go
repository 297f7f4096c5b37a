package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/dto"
	"github.com/Dminor7/ga4bigquery/internal/identity"
	"github.com/Dminor7/ga4bigquery/internal/metrics"
	"github.com/Dminor7/ga4bigquery/internal/queue"
)

// ErrInvalidEvent marks an event rejected before publishing
var ErrInvalidEvent = errors.New("invalid event")

// clockSkew is how far in the future an event timestamp may be
const clockSkew = time.Second

// EventService represents event service
type EventService struct {
	publisher queue.QueuePublisher
	now       func() time.Time
	log       *zap.Logger
}

// NewEventService creates a new event service
func NewEventService(publisher queue.QueuePublisher, log *zap.Logger) *EventService {
	return &EventService{
		publisher: publisher,
		now:       time.Now,
		log:       log,
	}
}

// ProcessEvent validates a raw event, derives its identity and publishes it
func (s *EventService) ProcessEvent(ctx context.Context, req *dto.PublishEventRequest) (*dto.PublishEventResponse, error) {
	limit := s.now().Add(clockSkew).UnixMicro()
	if req.EventTimestamp > limit {
		s.log.Warn("Timestamp validation failed: future timestamp",
			zap.Int64("event_timestamp", req.EventTimestamp),
			zap.Int64("limit", limit),
			zap.String("event_name", req.EventName))
		metrics.EventsPublished.WithLabelValues("rejected").Inc()
		return nil, fmt.Errorf("%w: event_timestamp cannot be in the future: %d > %d", ErrInvalidEvent, req.EventTimestamp, limit)
	}

	event := req.ToEvent()
	event.EventID = identity.EventID(event)

	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		metrics.EventsPublished.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to publish event to queue: %w", err)
	}
	metrics.EventsPublished.WithLabelValues("accepted").Inc()

	resp := &dto.PublishEventResponse{
		EventID: strconv.FormatInt(event.EventID, 10),
		Status:  "accepted",
	}
	if sessionID, ok := identity.SessionID(event); ok {
		resp.SessionID = strconv.FormatInt(sessionID, 10)
	}
	return resp, nil
}

// ProcessBulkEvents validates and processes multiple events. Rejected events
// are reported by index and do not fail the batch.
func (s *EventService) ProcessBulkEvents(ctx context.Context, events []dto.PublishEventRequest) ([]string, []string, error) {
	var eventIDs []string
	var errs []string

	for i := range events {
		resp, err := s.ProcessEvent(ctx, &events[i])
		if err != nil {
			errs = append(errs, fmt.Sprintf("event %d: %s", i, err.Error()))
			s.log.Warn("Failed to process event in bulk",
				zap.Int("index", i),
				zap.Error(err),
				zap.String("event_name", events[i].EventName))
			continue
		}
		eventIDs = append(eventIDs, resp.EventID)
	}

	return eventIDs, errs, nil
}
