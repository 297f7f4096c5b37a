package parquet

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/pipeline"
)

// Record is one session as written to Parquet. Declared columns without a
// field of their own are kept as a JSON object in Properties.
type Record struct {
	Date           int32     `parquet:"date,date"`
	SessionID      int64     `parquet:"session_id"`
	UserPseudoID   string    `parquet:"user_pseudo_id,dict"`
	UserID         *string   `parquet:"user_id,optional"`
	SessionStart   time.Time `parquet:"session_start"`
	SessionEngaged *int64    `parquet:"session_engaged,optional"`
	LandingPage    *string   `parquet:"landing_page,optional"`
	Source         *string   `parquet:"source,optional,dict"`
	Medium         *string   `parquet:"medium,optional,dict"`
	Campaign       *string   `parquet:"campaign,optional,dict"`
	SourceCategory *string   `parquet:"source_category,optional,dict"`
	Channel        string    `parquet:"channel,dict"`
	Properties     string    `parquet:"properties"`
}

var recordColumns = map[string]bool{
	domain.ColDate:           true,
	domain.ColSessionID:      true,
	domain.ColUserPseudoID:   true,
	domain.ColUserID:         true,
	domain.ColSessionStart:   true,
	domain.ColSessionEngaged: true,
	domain.ColLandingPage:    true,
	domain.ColSource:         true,
	domain.ColMedium:         true,
	domain.ColCampaign:       true,
	domain.ColSourceCategory: true,
	domain.ColChannel:        true,
}

// Day returns the civil date of the record
func (r *Record) Day() time.Time {
	return time.Unix(int64(r.Date)*86400, 0).UTC()
}

// NewRecord converts a session row. date and session_id are required.
func NewRecord(row pipeline.Row) (*Record, error) {
	date, ok := row.Time(domain.ColDate)
	if !ok {
		return nil, fmt.Errorf("missing %s", domain.ColDate)
	}
	id, ok := row.Int(domain.ColSessionID)
	if !ok {
		return nil, fmt.Errorf("missing %s", domain.ColSessionID)
	}

	rec := &Record{
		Date:           int32(date.Unix() / 86400),
		SessionID:      id,
		UserID:         optionalString(row, domain.ColUserID),
		LandingPage:    optionalString(row, domain.ColLandingPage),
		Source:         optionalString(row, domain.ColSource),
		Medium:         optionalString(row, domain.ColMedium),
		Campaign:       optionalString(row, domain.ColCampaign),
		SourceCategory: optionalString(row, domain.ColSourceCategory),
	}
	rec.UserPseudoID, _ = row.String(domain.ColUserPseudoID)
	rec.Channel, _ = row.String(domain.ColChannel)
	if start, ok := row.Time(domain.ColSessionStart); ok {
		rec.SessionStart = start.UTC()
	}
	if v, ok := row.Int(domain.ColSessionEngaged); ok {
		rec.SessionEngaged = &v
	}

	extra := make(map[string]any)
	for k, v := range row {
		if !recordColumns[k] {
			extra[k] = v
		}
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return nil, fmt.Errorf("failed to encode properties: %w", err)
	}
	rec.Properties = string(b)
	return rec, nil
}

func optionalString(row pipeline.Row, col string) *string {
	if v, ok := row.String(col); ok {
		return &v
	}
	return nil
}
