package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/identity"
)

// ErrIncompleteEvent marks a message missing a field every event needs
var ErrIncompleteEvent = errors.New("incomplete event")

// GA4EventParser implements MessageParser for events in GA4 export JSON
type GA4EventParser struct {
	timestampParam string
	now            func() time.Time
}

// NewGA4EventParser creates a parser. When timestampParam is set the event
// identity uses that integer parameter as the timestamp.
func NewGA4EventParser(timestampParam string) *GA4EventParser {
	return &GA4EventParser{timestampParam: timestampParam, now: time.Now}
}

// Parse decodes a message body and stamps the event identity. A carried
// event_id is replaced so stored ids always match the derived ones.
func (p *GA4EventParser) Parse(body []byte) (*domain.Event, error) {
	var event domain.Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}

	switch {
	case event.EventName == "":
		return nil, fmt.Errorf("%w: event_name is required", ErrIncompleteEvent)
	case event.UserPseudoID == "":
		return nil, fmt.Errorf("%w: user_pseudo_id is required", ErrIncompleteEvent)
	case event.Timestamp <= 0:
		return nil, fmt.Errorf("%w: event_timestamp is required", ErrIncompleteEvent)
	}

	if p.timestampParam != "" {
		event.EventID = identity.EventIDWithTimestampParam(&event, p.timestampParam)
	} else {
		event.EventID = identity.EventID(&event)
	}

	now := p.now()
	event.ProcessedAt = now
	event.Version = uint64(now.UnixNano())

	return &event, nil
}
