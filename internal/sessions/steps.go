package sessions

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/attribution"
	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/lookback"
	"github.com/Dminor7/ga4bigquery/internal/metrics"
	"github.com/Dminor7/ga4bigquery/internal/pipeline"
)

const (
	StepSourceMedium  = "sessions_with_source_medium_and_lp"
	StepChannel       = "sessions_with_channel"
	StepLastNonDirect = "sessions_with_last_non_direct"
)

// DefaultSteps returns the standard chain: source/medium, channel, last
// non-direct lookback.
func DefaultSteps() []pipeline.Step[*Session] {
	return []pipeline.Step[*Session]{
		{Name: StepSourceMedium, Run: runSourceMedium},
		{Name: StepChannel, DependsOn: []string{StepSourceMedium}, Run: runChannel},
		{Name: StepLastNonDirect, DependsOn: []string{StepSourceMedium, StepChannel}, Run: runLastNonDirect},
	}
}

// event level columns that have no meaning on a session
var eventOnlyColumns = map[string]bool{
	domain.ColEventID:        true,
	domain.ColEventName:      true,
	domain.ColEventTimestamp: true,
	domain.ColSessionEngaged: true,
}

func runSourceMedium(_ context.Context, s *Session, in pipeline.Relation, _ pipeline.Outputs) (pipeline.Relation, error) {
	groups := make(map[int64][]pipeline.Row)
	var order []int64
	for _, row := range in {
		id, ok := row.Int(domain.ColSessionID)
		if !ok {
			continue
		}
		if _, seen := groups[id]; !seen {
			order = append(order, id)
		}
		groups[id] = append(groups[id], row)
	}

	out := make(pipeline.Relation, 0, len(order))
	for _, id := range order {
		row := aggregateSession(groups[id])
		triple := s.engine.Classify(attribution.Fields(row))
		row[domain.ColSource] = triple.Source
		row[domain.ColMedium] = triple.Medium
		row[domain.ColCampaign] = triple.Campaign
		out = append(out, row)
	}
	if skipped := len(in) - countRows(groups); skipped > 0 {
		s.log.Debug("Events without session scope skipped", zap.Int("count", skipped))
	}
	return out, nil
}

func countRows(groups map[int64][]pipeline.Row) int {
	n := 0
	for _, g := range groups {
		n += len(g)
	}
	return n
}

// aggregateSession collapses one session's events. Every column takes its
// first non-null value by event timestamp.
func aggregateSession(events []pipeline.Row) pipeline.Row {
	sort.SliceStable(events, func(i, j int) bool {
		ti, _ := events[i].Time(domain.ColEventTimestamp)
		tj, _ := events[j].Time(domain.ColEventTimestamp)
		return ti.Before(tj)
	})

	first := events[0]
	row := pipeline.Row{
		domain.ColSessionID: first[domain.ColSessionID],
		domain.ColDate:      first[domain.ColDate],
	}
	if start, ok := first.Time(domain.ColEventTimestamp); ok {
		row[domain.ColSessionStart] = start
	}

	var engaged any
	for _, ev := range events {
		for col, v := range ev {
			if v == nil || eventOnlyColumns[col] {
				continue
			}
			if cur, ok := row[col]; !ok || cur == nil {
				row[col] = v
			}
		}
		if e, ok := ev.Int(domain.ColSessionEngaged); ok {
			if cur, ok := engaged.(int64); !ok || e > cur {
				engaged = e
			}
		}
	}
	row[domain.ColSessionEngaged] = engaged
	row[domain.ColLandingPage] = row[domain.ColPageLocation]
	return row
}

func runChannel(_ context.Context, s *Session, in pipeline.Relation, _ pipeline.Outputs) (pipeline.Relation, error) {
	out := make(pipeline.Relation, len(in))
	for i, row := range in {
		src, _ := row.String(domain.ColSource)
		medium, _ := row.String(domain.ColMedium)
		category, ch := s.classifier.ClassifySource(src, medium)

		r := row.Clone()
		if category == "" {
			r[domain.ColSourceCategory] = nil
		} else {
			r[domain.ColSourceCategory] = string(category)
		}
		r[domain.ColChannel] = string(ch)
		out[i] = r
	}
	return out, nil
}

func runLastNonDirect(ctx context.Context, s *Session, in pipeline.Relation, _ pipeline.Outputs) (pipeline.Relation, error) {
	start := time.Now()
	res, err := lookback.Resolve(ctx, in, lookback.Options{
		WindowDays:  s.lookbackWindow,
		Parallelism: s.parallelism,
	})
	if err != nil {
		return nil, err
	}
	metrics.LookbackReattributed.Add(float64(res.Reattributed))
	s.log.Debug("Last non-direct attribution resolved",
		zap.Int("sessions", len(res.Sessions)),
		zap.Int("reattributed", res.Reattributed),
		zap.Int("window_days", s.lookbackWindow),
		zap.Duration("duration", time.Since(start)))
	return res.Sessions, nil
}
