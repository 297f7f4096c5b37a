package domain

import "time"

// Event represents one raw interaction record as exported by GA4
type Event struct {
	EventID        int64          `json:"event_id,omitempty"`
	Timestamp      int64          `json:"event_timestamp"`
	EventName      string         `json:"event_name"`
	UserPseudoID   string         `json:"user_pseudo_id"`
	UserID         *string        `json:"user_id,omitempty"`
	Params         []Param        `json:"event_params,omitempty"`
	UserProperties []Param        `json:"user_properties,omitempty"`
	Columns        map[string]any `json:"columns,omitempty"`
	ProcessedAt    time.Time      `json:"-"`
	Version        uint64         `json:"-"`
}

// Param is one key/value entry of a parameter bag
type Param struct {
	Key   string     `json:"key"`
	Value ParamValue `json:"value"`
}

// ParamValue is the tagged value of a parameter. At most one field is normally set.
type ParamValue struct {
	StringValue *string  `json:"string_value,omitempty"`
	IntValue    *int64   `json:"int_value,omitempty"`
	FloatValue  *float64 `json:"float_value,omitempty"`
	DoubleValue *float64 `json:"double_value,omitempty"`
}

func StringValue(v string) ParamValue {
	return ParamValue{StringValue: &v}
}

func IntValue(v int64) ParamValue {
	return ParamValue{IntValue: &v}
}

func FloatValue(v float64) ParamValue {
	return ParamValue{FloatValue: &v}
}

func DoubleValue(v float64) ParamValue {
	return ParamValue{DoubleValue: &v}
}

// Param returns the first event parameter named key.
func (e *Event) Param(key string) (ParamValue, bool) {
	return lookup(e.Params, key)
}

// UserProperty returns the first user property named key.
func (e *Event) UserProperty(key string) (ParamValue, bool) {
	return lookup(e.UserProperties, key)
}

// Time returns the event timestamp as a time.Time
func (e *Event) Time() time.Time {
	return time.UnixMicro(e.Timestamp)
}

func lookup(bag []Param, key string) (ParamValue, bool) {
	for _, p := range bag {
		if p.Key == key {
			return p.Value, true
		}
	}
	return ParamValue{}, false
}
