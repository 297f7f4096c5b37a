package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/dto"
	"github.com/Dminor7/ga4bigquery/internal/pipeline"
	"github.com/Dminor7/ga4bigquery/internal/repository"
	"github.com/Dminor7/ga4bigquery/internal/sessions"
	"github.com/Dminor7/ga4bigquery/internal/source"
)

// MockEventSource is a mock implementation of source.EventSource
type MockEventSource struct {
	mock.Mock
}

func (m *MockEventSource) ReadEvents(ctx context.Context, p source.Partition) ([]domain.Event, error) {
	args := m.Called(ctx, p)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.Event), args.Error(1)
}

// MockSessionRepository is a mock implementation of repository.SessionRepository
type MockSessionRepository struct {
	mock.Mock
}

func (m *MockSessionRepository) WriteSessions(ctx context.Context, table sessions.Table, rel pipeline.Relation) (int, error) {
	args := m.Called(ctx, table, rel)
	return args.Int(0), args.Error(1)
}

func (m *MockSessionRepository) ChannelReport(ctx context.Context, query repository.ChannelQuery) (*repository.ChannelReport, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.ChannelReport), args.Error(1)
}

func newSessionService(t *testing.T, src source.EventSource, repo *MockSessionRepository) *SessionService {
	t.Helper()
	s, err := sessions.NewSession(sessions.SourceConfig{
		Database:             "proj",
		Dataset:              "analytics_1",
		IncrementalTableName: "events_intraday_*",
	}, sessions.TargetConfig{}, zap.NewNop())
	require.NoError(t, err)
	return NewSessionService(s, src, repo, repo, true, zap.NewNop())
}

func paidSearchEvents() []domain.Event {
	at := time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)
	return []domain.Event{{
		Timestamp:    at.UnixMicro(),
		EventName:    "page_view",
		UserPseudoID: "u1",
		Params: []domain.Param{
			{Key: domain.ParamSessionID, Value: domain.IntValue(100)},
			{Key: "page_location", Value: domain.StringValue("https://example.com/?gclid=abc&utm_campaign=spring")},
		},
	}}
}

func TestSessionService_Classify(t *testing.T) {
	svc := newSessionService(t, new(MockEventSource), new(MockSessionRepository))

	resp := svc.Classify(&dto.ClassifyRequest{Source: "google", Medium: "cpc"})
	assert.Equal(t, "Paid Search", resp.Channel)
	require.NotNil(t, resp.SourceCategory)
	assert.Equal(t, "SOURCE_CATEGORY_SEARCH", *resp.SourceCategory)

	resp = svc.Classify(&dto.ClassifyRequest{Source: "(direct)", Medium: "(none)"})
	assert.Equal(t, "Direct", resp.Channel)
	assert.Nil(t, resp.SourceCategory)
}

func TestSessionService_RunSessions(t *testing.T) {
	src := new(MockEventSource)
	repo := new(MockSessionRepository)
	svc := newSessionService(t, src, repo)

	src.On("ReadEvents", mock.Anything, source.Partition{Database: "proj", Dataset: "analytics_1", Table: "events_intraday_*"}).
		Return(paidSearchEvents(), nil)

	var written pipeline.Relation
	repo.On("WriteSessions", mock.Anything, mock.MatchedBy(func(table sessions.Table) bool {
		return table.Schema == sessions.DefaultSchema && table.Name == sessions.DefaultTableName
	}), mock.Anything).
		Run(func(args mock.Arguments) { written = args.Get(2).(pipeline.Relation) }).
		Return(1, nil)

	resp, err := svc.RunSessions(context.Background(), &dto.RunSessionsRequest{})

	require.NoError(t, err)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, "dataform_staging.sessions", resp.Table)
	assert.Equal(t, 1, resp.Events)
	assert.Equal(t, 1, resp.Sessions)
	assert.Equal(t, 1, resp.Written)
	require.Len(t, written, 1)
	assert.Equal(t, "Paid Search", written[0][domain.ColChannel])
	assert.Equal(t, "spring", written[0][domain.ColCampaign])
	src.AssertExpectations(t)
	repo.AssertExpectations(t)
}

func TestSessionService_RunSessions_NonIncremental(t *testing.T) {
	src := new(MockEventSource)
	repo := new(MockSessionRepository)
	svc := newSessionService(t, src, repo)

	src.On("ReadEvents", mock.Anything, mock.MatchedBy(func(p source.Partition) bool {
		return p.Table == sessions.DefaultNonIncrementalTableName
	})).Return(nil, errors.New("quota exceeded"))

	incremental := false
	resp, err := svc.RunSessions(context.Background(), &dto.RunSessionsRequest{Incremental: &incremental})

	assert.Nil(t, resp)
	assert.ErrorContains(t, err, "quota exceeded")
	repo.AssertNotCalled(t, "WriteSessions", mock.Anything, mock.Anything, mock.Anything)
}

func TestSessionService_RunSessions_InProgress(t *testing.T) {
	svc := newSessionService(t, new(MockEventSource), new(MockSessionRepository))
	svc.running.Lock()
	defer svc.running.Unlock()

	_, err := svc.RunSessions(context.Background(), nil)
	assert.ErrorIs(t, err, ErrRunInProgress)
}

func TestSessionService_GetChannelReport(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := newSessionService(t, new(MockEventSource), repo)

	repo.On("ChannelReport", mock.Anything, repository.ChannelQuery{
		Schema:  sessions.DefaultSchema,
		Table:   sessions.DefaultTableName,
		From:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		To:      time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC),
		GroupBy: "source_medium",
	}).Return(&repository.ChannelReport{
		TotalSessions: 10,
		UniqueUsers:   4,
		Groups: []repository.ChannelGroupResult{
			{Channel: "Organic Search", GroupValue: "google / organic", Sessions: 6, Engaged: 3},
			{Channel: "Direct", GroupValue: "(direct) / (none)", Sessions: 4, Engaged: 1},
		},
	}, nil)

	resp, err := svc.GetChannelReport(context.Background(), &dto.GetChannelsRequest{
		From: "2024-03-01", To: "2024-03-31", GroupBy: "source_medium",
	})

	require.NoError(t, err)
	assert.Equal(t, uint64(10), resp.TotalSessions)
	assert.Equal(t, uint64(4), resp.UniqueUsers)
	require.Len(t, resp.Groups, 2)
	assert.Equal(t, "Organic Search", resp.Groups[0].Channel)
	assert.Equal(t, uint64(3), resp.Groups[0].EngagedSessions)
	repo.AssertExpectations(t)
}

func TestSessionService_GetChannelReport_Invalid(t *testing.T) {
	repo := new(MockSessionRepository)
	svc := newSessionService(t, new(MockEventSource), repo)

	tests := []struct {
		name string
		req  dto.GetChannelsRequest
	}{
		{"bad from", dto.GetChannelsRequest{From: "03/01/2024", To: "2024-03-31"}},
		{"bad to", dto.GetChannelsRequest{From: "2024-03-01", To: "tomorrow"}},
		{"reversed", dto.GetChannelsRequest{From: "2024-03-31", To: "2024-03-01"}},
		{"too long", dto.GetChannelsRequest{From: "2020-01-01", To: "2024-03-01"}},
		{"group by", dto.GetChannelsRequest{From: "2024-03-01", To: "2024-03-31", GroupBy: "hour"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.GetChannelReport(context.Background(), &tt.req)
			assert.ErrorIs(t, err, ErrInvalidReport)
		})
	}
	repo.AssertNotCalled(t, "ChannelReport", mock.Anything, mock.Anything)
}

func TestSessionService_GetChannelReport_NoStore(t *testing.T) {
	s, err := sessions.NewSession(sessions.SourceConfig{Dataset: "analytics_1"}, sessions.TargetConfig{}, zap.NewNop())
	require.NoError(t, err)
	svc := NewSessionService(s, new(MockEventSource), new(MockSessionRepository), nil, true, zap.NewNop())

	_, err = svc.GetChannelReport(context.Background(), &dto.GetChannelsRequest{From: "2024-03-01", To: "2024-03-02"})
	assert.Error(t, err)
}
