package sessions

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/domain"
)

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := NewSession(SourceConfig{Dataset: "analytics_123", IncrementalTableName: "events_intraday_*"}, TargetConfig{}, zap.NewNop())
	require.NoError(t, err)
	return s
}

type eventOpt func(*domain.Event)

func withParam(key string, v domain.ParamValue) eventOpt {
	return func(e *domain.Event) {
		e.Params = append(e.Params, domain.Param{Key: key, Value: v})
	}
}

func withString(key, v string) eventOpt {
	return withParam(key, domain.StringValue(v))
}

func withUserProperty(key string, v domain.ParamValue) eventOpt {
	return func(e *domain.Event) {
		e.UserProperties = append(e.UserProperties, domain.Param{Key: key, Value: v})
	}
}

func withColumn(key string, v any) eventOpt {
	return func(e *domain.Event) {
		if e.Columns == nil {
			e.Columns = map[string]any{}
		}
		e.Columns[key] = v
	}
}

func newEvent(user string, session int64, at time.Time, name string, opts ...eventOpt) domain.Event {
	e := domain.Event{
		Timestamp:    at.UnixMicro(),
		EventName:    name,
		UserPseudoID: user,
		Params:       []domain.Param{{Key: domain.ParamSessionID, Value: domain.IntValue(session)}},
	}
	for _, opt := range opts {
		opt(&e)
	}
	return e
}

func utc(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return t
}

func civil(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
