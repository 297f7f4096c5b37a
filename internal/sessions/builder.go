package sessions

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/identity"
	"github.com/Dminor7/ga4bigquery/internal/metrics"
	"github.com/Dminor7/ga4bigquery/internal/params"
	"github.com/Dminor7/ga4bigquery/internal/pipeline"
)

// Build turns raw events into the final session relation: events are
// extracted and de-duplicated, the processing steps run in order, then
// post-processing drops configured columns and rows are made unique on
// (date, session_id).
func (s *Session) Build(ctx context.Context, events []domain.Event) (pipeline.Relation, error) {
	extracted := s.Extract(events)

	out, _, err := s.steps.Execute(ctx, s, extracted)
	if err != nil {
		return nil, err
	}
	out = unique(out.Drop(s.postProcessing.Delete...))

	for _, row := range out {
		if ch, ok := row.String(domain.ColChannel); ok {
			metrics.SessionsBuilt.WithLabelValues(ch).Inc()
		}
	}
	return out, nil
}

// Extract builds the events relation, keeping the first event per event id.
func (s *Session) Extract(events []domain.Event) pipeline.Relation {
	seen := make(map[int64]struct{}, len(events))
	rel := make(pipeline.Relation, 0, len(events))
	for i := range events {
		row := s.extractEvent(&events[i])
		id := row[domain.ColEventID].(int64)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		rel = append(rel, row)
	}
	return rel
}

func (s *Session) extractEvent(e *domain.Event) pipeline.Row {
	var eventID int64
	if s.eventIDParam != "" {
		eventID = identity.EventIDWithTimestampParam(e, s.eventIDParam)
	} else {
		eventID = identity.EventID(e)
	}

	var sessionID any
	if id, ok := identity.SessionID(e); ok {
		sessionID = id
	}

	var userID any
	if e.UserID != nil {
		userID = *e.UserID
	}

	pageLocation := params.Get(e.Params, domain.ColPageLocation, params.TypeString)
	pageReferrer := params.Get(e.Params, domain.ColPageReferrer, params.TypeString)
	ignoreReferrer := params.Get(e.Params, domain.ColIgnoreReferrer, params.TypeString)

	gclid := s.queries.Extract(pageLocation, "gclid")

	row := pipeline.Row{
		domain.ColSessionID:      sessionID,
		domain.ColEventID:        eventID,
		domain.ColDate:           civilDate(e.Time(), s.location),
		domain.ColEventTimestamp: e.Time().UTC(),
		domain.ColEventName:      e.EventName,
		domain.ColUserID:         userID,
		domain.ColUserPseudoID:   e.UserPseudoID,
		domain.ColSessionEngaged: sessionEngaged(e),
		domain.ColPageLocation:   pageLocation,
		domain.ColPageReferrer:   pageReferrer,
		domain.ColIgnoreReferrer: ignoreReferrer,
		domain.ColSource:         params.Get(e.Params, domain.ColSource, params.TypeString),
		domain.ColMedium:         params.Get(e.Params, domain.ColMedium, params.TypeString),
		domain.ColCampaign:       params.Get(e.Params, domain.ColCampaign, params.TypeString),
		domain.ColGclid:          params.Get(e.Params, domain.ColGclid, params.TypeString),
		domain.ColUTMSource:      s.queries.Extract(pageLocation, "utm_source"),
		domain.ColUTMMedium:      s.queries.Extract(pageLocation, "utm_medium"),
		domain.ColUTMCampaign:    s.queries.Extract(pageLocation, "utm_campaign"),
		domain.ColUTMGclid:       gclid,
		domain.ColReferrerHost:   referrerHost(pageReferrer, ignoreReferrer),
	}

	for _, d := range s.columns {
		row[d.OutputName()] = e.Columns[d.Name]
	}
	for _, d := range s.eventParams {
		row[d.OutputName()] = params.Get(e.Params, d.Name, d.ParamType())
	}
	for _, d := range s.userProperties {
		row[d.OutputName()] = params.Get(e.UserProperties, d.Name, d.ParamType())
	}
	for _, d := range s.queryParameters {
		row[d.OutputName()] = s.queries.Extract(pageLocation, d.Name)
	}
	return row
}

// sessionEngaged reads the flag as an int, or a "1" string as 1.
func sessionEngaged(e *domain.Event) any {
	if v := params.Get(e.Params, domain.ParamSessionEngaged, params.TypeInt); v != nil {
		return v
	}
	if v, ok := params.Get(e.Params, domain.ParamSessionEngaged, params.TypeString).(string); ok && v == "1" {
		return int64(1)
	}
	return nil
}

// referrerHost is null when the referrer is absent, unparseable or flagged
// with ignore_referrer.
func referrerHost(referrer, ignore any) any {
	if flag, ok := ignore.(string); ok && flag == "true" {
		return nil
	}
	raw, ok := referrer.(string)
	if !ok || raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return nil
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}

// civilDate is the calendar date of t in loc, as midnight UTC.
func civilDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// unique keeps the first row per (date, session_id).
func unique(rel pipeline.Relation) pipeline.Relation {
	type key struct {
		date    string
		session string
	}
	seen := make(map[key]struct{}, len(rel))
	out := make(pipeline.Relation, 0, len(rel))
	for _, row := range rel {
		k := key{date: fmt.Sprint(row[domain.ColDate]), session: fmt.Sprint(row[domain.ColSessionID])}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out
}
