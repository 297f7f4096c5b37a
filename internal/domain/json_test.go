package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const exportRow = `{
  "event_date": "20240301",
  "event_timestamp": "1709316000000000",
  "event_name": "page_view",
  "user_pseudo_id": "123.456",
  "user_id": null,
  "event_params": [
    {"key": "ga_session_id", "value": {"string_value": null, "int_value": "1709315990", "float_value": null, "double_value": null}},
    {"key": "page_location", "value": {"string_value": "https://example.com/"}},
    {"key": "value", "value": {"double_value": 12.5}}
  ],
  "user_properties": [
    {"key": "plan", "value": {"string_value": "pro", "set_timestamp_micros": "1709316000000000"}}
  ],
  "device": {"category": "mobile", "web_info": {"browser": "Chrome"}},
  "geo": {"country": "Germany"},
  "stream_id": "4411",
  "batch_event_index": 3
}`

func TestEvent_UnmarshalExportRow(t *testing.T) {
	var e Event
	require.NoError(t, json.Unmarshal([]byte(exportRow), &e))

	assert.Equal(t, int64(1709316000000000), e.Timestamp)
	assert.Equal(t, "page_view", e.EventName)
	assert.Equal(t, "123.456", e.UserPseudoID)
	assert.Nil(t, e.UserID)

	sid, ok := e.Param("ga_session_id")
	require.True(t, ok)
	require.NotNil(t, sid.IntValue)
	assert.Equal(t, int64(1709315990), *sid.IntValue)
	assert.Nil(t, sid.StringValue)

	value, ok := e.Param("value")
	require.True(t, ok)
	assert.Equal(t, 12.5, *value.DoubleValue)

	plan, ok := e.UserProperty("plan")
	require.True(t, ok)
	assert.Equal(t, "pro", *plan.StringValue)

	assert.Equal(t, "mobile", e.Columns["device.category"])
	assert.Equal(t, "Chrome", e.Columns["device.web_info.browser"])
	assert.Equal(t, "Germany", e.Columns["geo.country"])
	assert.Equal(t, "20240301", e.Columns["event_date"])
	assert.Equal(t, int64(3), e.Columns["batch_event_index"])
}

func TestEvent_RoundTrip(t *testing.T) {
	uid := "user-1"
	in := Event{
		EventID:      42,
		Timestamp:    1709316000000000,
		EventName:    "purchase",
		UserPseudoID: "abc",
		UserID:       &uid,
		Params:       []Param{{Key: "value", Value: DoubleValue(9.5)}, {Key: "n", Value: IntValue(2)}},
		Columns:      map[string]any{"geo.country": "France"},
	}

	data, err := json.Marshal(in)
	require.NoError(t, err)

	var out Event
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestEvent_UnmarshalRejectsBadTimestamp(t *testing.T) {
	var e Event
	err := json.Unmarshal([]byte(`{"event_timestamp": "soon"}`), &e)
	assert.Error(t, err)
}
