package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// UnmarshalJSON accepts GA4 export rows. Integers may be encoded as JSON
// strings, and every field outside the event core is flattened into Columns
// with dotted keys, e.g. device.category.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var out Event
	for key, value := range raw {
		var err error
		switch key {
		case "event_id":
			err = decodeInt(value, &out.EventID)
		case "event_timestamp":
			err = decodeInt(value, &out.Timestamp)
		case "event_name":
			err = decodeNullable(value, &out.EventName)
		case "user_pseudo_id":
			err = decodeNullable(value, &out.UserPseudoID)
		case "user_id":
			err = json.Unmarshal(value, &out.UserID)
		case "event_params":
			err = json.Unmarshal(value, &out.Params)
		case "user_properties":
			err = json.Unmarshal(value, &out.UserProperties)
		case "columns":
			var cols map[string]json.RawMessage
			if err = json.Unmarshal(value, &cols); err == nil {
				for k, v := range cols {
					if err = flattenInto(&out.Columns, k, v); err != nil {
						break
					}
				}
			}
		default:
			err = flattenInto(&out.Columns, key, value)
		}
		if err != nil {
			return fmt.Errorf("failed to decode %s: %w", key, err)
		}
	}
	*e = out
	return nil
}

// UnmarshalJSON accepts int_value as a number or a quoted number.
func (v *ParamValue) UnmarshalJSON(data []byte) error {
	var raw struct {
		StringValue *string         `json:"string_value"`
		IntValue    json.RawMessage `json:"int_value"`
		FloatValue  json.RawMessage `json:"float_value"`
		DoubleValue json.RawMessage `json:"double_value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := ParamValue{StringValue: raw.StringValue}
	var err error
	if out.IntValue, err = optionalInt(raw.IntValue); err != nil {
		return fmt.Errorf("int_value: %w", err)
	}
	if out.FloatValue, err = optionalFloat(raw.FloatValue); err != nil {
		return fmt.Errorf("float_value: %w", err)
	}
	if out.DoubleValue, err = optionalFloat(raw.DoubleValue); err != nil {
		return fmt.Errorf("double_value: %w", err)
	}
	*v = out
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeNullable(raw json.RawMessage, dst *string) error {
	if isNull(raw) {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

func decodeInt(raw json.RawMessage, dst *int64) error {
	v, err := optionalInt(raw)
	if err != nil || v == nil {
		return err
	}
	*dst = *v
	return nil
}

func optionalInt(raw json.RawMessage) (*int64, error) {
	if isNull(raw) {
		return nil, nil
	}
	s := string(bytes.Trim(raw, `"`))
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func optionalFloat(raw json.RawMessage) (*float64, error) {
	if isNull(raw) {
		return nil, nil
	}
	s := string(bytes.Trim(raw, `"`))
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

func flattenInto(dst *map[string]any, prefix string, raw json.RawMessage) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return err
	}
	if *dst == nil {
		*dst = make(map[string]any)
	}
	flatten(*dst, prefix, v)
	return nil
}

// Flatten writes nested objects of v into dst under dotted keys.
func Flatten(dst map[string]any, prefix string, v any) {
	flatten(dst, prefix, v)
}

func flatten(dst map[string]any, prefix string, v any) {
	switch t := v.(type) {
	case map[string]any:
		for k, child := range t {
			flatten(dst, prefix+"."+k, child)
		}
	case json.Number:
		if i, err := t.Int64(); err == nil {
			dst[prefix] = i
		} else if f, err := t.Float64(); err == nil {
			dst[prefix] = f
		} else {
			dst[prefix] = t.String()
		}
	default:
		dst[prefix] = v
	}
}
