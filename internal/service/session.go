package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/channel"
	"github.com/Dminor7/ga4bigquery/internal/dto"
	"github.com/Dminor7/ga4bigquery/internal/repository"
	"github.com/Dminor7/ga4bigquery/internal/sessions"
	"github.com/Dminor7/ga4bigquery/internal/source"
)

const (
	dateLayout     = "2006-01-02"
	maxReportRange = 400 * 24 * time.Hour
)

var (
	// ErrRunInProgress is returned when a session run is requested while one is active
	ErrRunInProgress = errors.New("a session run is already in progress")
	// ErrInvalidReport marks a channel report request that cannot be answered
	ErrInvalidReport = errors.New("invalid report request")
)

// SessionService runs the session builder and serves channel reports
type SessionService struct {
	session     *sessions.Session
	source      source.EventSource
	sink        sessions.Sink
	reports     repository.SessionRepository
	classifier  *channel.Classifier
	incremental bool
	running     sync.Mutex
	log         *zap.Logger
}

// NewSessionService creates a new session service. reports may be nil when
// no ClickHouse session table is available.
func NewSessionService(session *sessions.Session, src source.EventSource, sink sessions.Sink,
	reports repository.SessionRepository, incremental bool, log *zap.Logger) *SessionService {
	return &SessionService{
		session:     session,
		source:      src,
		sink:        sink,
		reports:     reports,
		classifier:  channel.Default(),
		incremental: incremental,
		log:         log,
	}
}

// Classify returns the source category and channel of a source/medium pair
func (s *SessionService) Classify(req *dto.ClassifyRequest) *dto.ClassifyResponse {
	category, ch := s.classifier.ClassifySource(req.Source, req.Medium)
	resp := &dto.ClassifyResponse{
		Source:  req.Source,
		Medium:  req.Medium,
		Channel: string(ch),
	}
	if category != channel.CategoryNone {
		c := string(category)
		resp.SourceCategory = &c
	}
	return resp
}

// RunSessions builds and publishes sessions. Only one run executes at a time.
func (s *SessionService) RunSessions(ctx context.Context, req *dto.RunSessionsRequest) (*dto.RunSessionsResponse, error) {
	if !s.running.TryLock() {
		return nil, ErrRunInProgress
	}
	defer s.running.Unlock()

	incremental := s.incremental
	if req != nil && req.Incremental != nil {
		incremental = *req.Incremental
	}

	result, err := s.session.Publish(ctx, s.source, s.sink, sessions.PublishOptions{
		RunID:       uuid.NewString(),
		Incremental: incremental,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to run sessions: %w", err)
	}

	return &dto.RunSessionsResponse{
		RunID:      result.RunID,
		Table:      result.Table.Schema + "." + result.Table.Name,
		Events:     result.Events,
		Sessions:   result.Sessions,
		Written:    result.Written,
		DurationMs: result.Duration.Milliseconds(),
	}, nil
}

// GetChannelReport aggregates the stored session table by channel
func (s *SessionService) GetChannelReport(ctx context.Context, req *dto.GetChannelsRequest) (*dto.ChannelReportResponse, error) {
	if s.reports == nil {
		return nil, errors.New("channel reports require the clickhouse session store")
	}

	from, err := time.Parse(dateLayout, req.From)
	if err != nil {
		return nil, fmt.Errorf("%w: from must be YYYY-MM-DD: %v", ErrInvalidReport, err)
	}
	to, err := time.Parse(dateLayout, req.To)
	if err != nil {
		return nil, fmt.Errorf("%w: to must be YYYY-MM-DD: %v", ErrInvalidReport, err)
	}
	if from.After(to) {
		s.log.Warn("Invalid date range for channel report",
			zap.String("from", req.From),
			zap.String("to", req.To))
		return nil, fmt.Errorf("%w: from must be less than or equal to to", ErrInvalidReport)
	}
	if to.Sub(from) > maxReportRange {
		return nil, fmt.Errorf("%w: date range too large (max %d days)", ErrInvalidReport, int(maxReportRange.Hours()/24))
	}

	switch req.GroupBy {
	case "", "channel", "day", "source_medium", "source_category":
	default:
		s.log.Warn("Invalid group_by value", zap.String("group_by", req.GroupBy))
		return nil, fmt.Errorf("%w: invalid group_by value: %s (supported: channel, day, source_medium, source_category)", ErrInvalidReport, req.GroupBy)
	}

	target := s.session.Target()
	query := repository.ChannelQuery{
		Schema:  target.Schema,
		Table:   target.TableName,
		From:    from,
		To:      to,
		GroupBy: req.GroupBy,
	}

	s.log.Info("Querying channel report",
		zap.String("table", target.Schema+"."+target.TableName),
		zap.String("from", req.From),
		zap.String("to", req.To),
		zap.String("group_by", req.GroupBy))

	result, err := s.reports.ChannelReport(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get channel report from repository: %w", err)
	}

	response := &dto.ChannelReportResponse{
		From:          req.From,
		To:            req.To,
		TotalSessions: result.TotalSessions,
		UniqueUsers:   result.UniqueUsers,
		GroupBy:       req.GroupBy,
		Groups:        make([]dto.ChannelGroupData, 0, len(result.Groups)),
	}
	for _, group := range result.Groups {
		response.Groups = append(response.Groups, dto.ChannelGroupData{
			Channel:         group.Channel,
			GroupValue:      group.GroupValue,
			Sessions:        group.Sessions,
			EngagedSessions: group.Engaged,
		})
	}

	return response, nil
}
