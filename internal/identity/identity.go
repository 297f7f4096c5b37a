// Package identity derives the deterministic event and session fingerprints
// used as dedup and grouping keys. Values match BigQuery's FARM_FINGERPRINT
// over the string concatenation of the same inputs.
package identity

import (
	"strconv"
	"strings"

	farm "github.com/dgryski/go-farm"

	"github.com/Dminor7/ga4bigquery/internal/domain"
)

// Fingerprint returns the signed FarmHash fingerprint of the concatenated parts.
func Fingerprint(parts ...string) int64 {
	return int64(farm.Fingerprint64([]byte(strings.Join(parts, ""))))
}

// EventID fingerprints timestamp, event name, user pseudo id and engagement time.
// A missing engagement_time_msec counts as 0.
func EventID(e *domain.Event) int64 {
	return eventID(e.Timestamp, e)
}

// EventIDWithTimestampParam is EventID with the timestamp taken from the integer
// event parameter named param, falling back to the event timestamp when absent.
func EventIDWithTimestampParam(e *domain.Event, param string) int64 {
	ts := e.Timestamp
	if v, ok := intParam(e, param); ok {
		ts = v
	}
	return eventID(ts, e)
}

func eventID(ts int64, e *domain.Event) int64 {
	engagement, _ := intParam(e, domain.ParamEngagementTime)
	return Fingerprint(
		strconv.FormatInt(ts, 10),
		e.EventName,
		e.UserPseudoID,
		strconv.FormatInt(engagement, 10),
	)
}

// SessionID fingerprints ga_session_id and user pseudo id. The second return
// value is false when the event carries no session scope.
func SessionID(e *domain.Event) (int64, bool) {
	return SessionIDWithParam(e, domain.ParamSessionID)
}

// SessionIDWithParam is SessionID scoped by an arbitrary integer parameter.
func SessionIDWithParam(e *domain.Event, param string) (int64, bool) {
	scope, ok := intParam(e, param)
	if !ok {
		return 0, false
	}
	return SessionIDFrom(scope, e.UserPseudoID), true
}

// SessionIDFrom fingerprints an already extracted session scope.
func SessionIDFrom(scope int64, userPseudoID string) int64 {
	return Fingerprint(strconv.FormatInt(scope, 10), userPseudoID)
}

func intParam(e *domain.Event, name string) (int64, bool) {
	v, ok := e.Param(name)
	if !ok || v.IntValue == nil {
		return 0, false
	}
	return *v.IntValue, true
}
