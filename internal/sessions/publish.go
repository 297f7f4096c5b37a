package sessions

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/errs"
	"github.com/Dminor7/ga4bigquery/internal/pipeline"
	"github.com/Dminor7/ga4bigquery/internal/source"
)

// Table is the destination handed to a sink
type Table struct {
	Schema string
	Name   string
	Config TableConfig
}

// Sink materializes a session relation, upserting on the table's unique key
type Sink interface {
	WriteSessions(ctx context.Context, table Table, sessions pipeline.Relation) (int, error)
}

// PublishOptions controls one run
type PublishOptions struct {
	RunID       string
	Incremental bool
}

// RunResult summarizes a published run
type RunResult struct {
	RunID     string
	Table     Table
	Partition source.Partition
	Events    int
	Sessions  int
	Written   int
	Duration  time.Duration
}

// OutputTable returns the configured destination. It fails with a missing
// target error when no table name is set.
func (s *Session) OutputTable() (Table, error) {
	if s.target.TableName == "" {
		return Table{}, errs.MissingTarget("missing_table_name",
			fmt.Errorf("table name is required, please set target.tableName"))
	}
	return Table{Schema: s.target.Schema, Name: s.target.TableName, Config: s.TableConfig()}, nil
}

// Publish reads the configured partition from src, builds sessions and
// writes them to sink. Nothing is written unless the whole build succeeds.
func (s *Session) Publish(ctx context.Context, src source.EventSource, sink Sink, opts PublishOptions) (*RunResult, error) {
	table, err := s.OutputTable()
	if err != nil {
		return nil, err
	}
	if sink == nil {
		return nil, errs.MissingTarget("missing_sink", fmt.Errorf("no sink configured for table %s.%s", table.Schema, table.Name))
	}
	if src == nil {
		return nil, errs.Configuration("missing_source", fmt.Errorf("no event source configured"))
	}
	partition := s.Partition(opts.Incremental)
	if partition.Table == "" {
		return nil, errs.Configuration("missing_source_table",
			fmt.Errorf("source table is required for incremental=%t runs", opts.Incremental))
	}

	log := s.log.With(zap.String("run_id", opts.RunID))
	log.Info("Starting session run",
		zap.String("table", table.Schema+"."+table.Name),
		zap.String("source", partition.Dataset+"."+partition.Table),
		zap.Bool("incremental", opts.Incremental),
		zap.Strings("steps", s.Steps()))
	start := time.Now()

	events, err := src.ReadEvents(ctx, partition)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}

	rel, err := s.Build(ctx, events)
	if err != nil {
		return nil, fmt.Errorf("failed to build sessions: %w", err)
	}

	written, err := sink.WriteSessions(ctx, table, rel)
	if err != nil {
		return nil, fmt.Errorf("failed to write sessions: %w", err)
	}

	res := &RunResult{
		RunID:     opts.RunID,
		Table:     table,
		Partition: partition,
		Events:    len(events),
		Sessions:  len(rel),
		Written:   written,
		Duration:  time.Since(start),
	}
	log.Info("Session run completed",
		zap.Int("events", res.Events),
		zap.Int("sessions", res.Sessions),
		zap.Int("written", res.Written),
		zap.Duration("duration", res.Duration))
	return res, nil
}
