package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dminor7/ga4bigquery/internal/domain"
)

const testTimestamp int64 = 1723475612000000

func newEvent() *domain.Event {
	return &domain.Event{
		Timestamp:    testTimestamp,
		EventName:    "page_view",
		UserPseudoID: "123.456",
		Params: []domain.Param{
			{Key: domain.ParamSessionID, Value: domain.IntValue(1723475600)},
			{Key: domain.ParamEngagementTime, Value: domain.IntValue(1500)},
		},
	}
}

func TestEventID_Deterministic(t *testing.T) {
	a, b := newEvent(), newEvent()

	assert.Equal(t, EventID(a), EventID(b))
}

func TestEventID_ChangesWithEachInput(t *testing.T) {
	base := EventID(newEvent())

	e := newEvent()
	e.Timestamp++
	assert.NotEqual(t, base, EventID(e))

	e = newEvent()
	e.EventName = "scroll"
	assert.NotEqual(t, base, EventID(e))

	e = newEvent()
	e.UserPseudoID = "999.456"
	assert.NotEqual(t, base, EventID(e))

	e = newEvent()
	e.Params[1].Value = domain.IntValue(1501)
	assert.NotEqual(t, base, EventID(e))
}

func TestEventID_MissingEngagementDefaultsToZero(t *testing.T) {
	missing := newEvent()
	missing.Params = missing.Params[:1]

	zero := newEvent()
	zero.Params[1].Value = domain.IntValue(0)

	assert.Equal(t, EventID(zero), EventID(missing))
}

func TestEventID_MatchesFingerprintOfConcatenation(t *testing.T) {
	e := newEvent()

	assert.Equal(t, Fingerprint("1723475612000000", "page_view", "123.456", "1500"), EventID(e))
}

func TestEventIDWithTimestampParam(t *testing.T) {
	e := newEvent()
	assert.Equal(t, EventID(e), EventIDWithTimestampParam(e, "client_ts"), "falls back to event timestamp")

	e.Params = append(e.Params, domain.Param{Key: "client_ts", Value: domain.IntValue(testTimestamp - 10)})
	assert.NotEqual(t, EventID(e), EventIDWithTimestampParam(e, "client_ts"))

	shifted := newEvent()
	shifted.Timestamp = testTimestamp - 10
	assert.Equal(t, EventID(shifted), EventIDWithTimestampParam(e, "client_ts"))
}

func TestSessionID(t *testing.T) {
	a, b := newEvent(), newEvent()
	b.EventName = "scroll"
	b.Timestamp += 5_000_000

	idA, ok := SessionID(a)
	require.True(t, ok)
	idB, ok := SessionID(b)
	require.True(t, ok)

	assert.Equal(t, idA, idB, "events of one session share the identity")
	assert.Equal(t, SessionIDFrom(1723475600, "123.456"), idA)
}

func TestSessionID_DiffersPerUser(t *testing.T) {
	a, b := newEvent(), newEvent()
	b.UserPseudoID = "other"

	idA, _ := SessionID(a)
	idB, _ := SessionID(b)
	assert.NotEqual(t, idA, idB)
}

func TestSessionID_MissingScope(t *testing.T) {
	e := newEvent()
	e.Params = nil

	_, ok := SessionID(e)
	assert.False(t, ok)
}

func TestSessionIDWithParam_StringValueIsIgnored(t *testing.T) {
	e := newEvent()
	e.Params = []domain.Param{{Key: "custom_session", Value: domain.StringValue("42")}}

	_, ok := SessionIDWithParam(e, "custom_session")
	assert.False(t, ok)
}
