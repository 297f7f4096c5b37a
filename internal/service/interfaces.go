package service

import (
	"context"

	"github.com/Dminor7/ga4bigquery/internal/dto"
)

// EventServicer defines the interface for raw event ingestion
type EventServicer interface {
	ProcessEvent(ctx context.Context, event *dto.PublishEventRequest) (*dto.PublishEventResponse, error)
	ProcessBulkEvents(ctx context.Context, events []dto.PublishEventRequest) ([]string, []string, error)
}

// SessionServicer defines the interface for session runs and reports
type SessionServicer interface {
	Classify(req *dto.ClassifyRequest) *dto.ClassifyResponse
	RunSessions(ctx context.Context, req *dto.RunSessionsRequest) (*dto.RunSessionsResponse, error)
	GetChannelReport(ctx context.Context, req *dto.GetChannelsRequest) (*dto.ChannelReportResponse, error)
}
