package dto

import "github.com/Dminor7/ga4bigquery/internal/domain"

// ParamRequest is one key/value entry of event_params or user_properties
type ParamRequest struct {
	Key         string   `json:"key" binding:"required" example:"ga_session_id"`
	StringValue *string  `json:"string_value,omitempty" example:"https://example.com/?utm_source=newsletter"`
	IntValue    *int64   `json:"int_value,omitempty" example:"1709316000"`
	FloatValue  *float64 `json:"float_value,omitempty"`
	DoubleValue *float64 `json:"double_value,omitempty"`
}

// PublishEventRequest represents a raw GA4 event. event_timestamp is in microseconds.
type PublishEventRequest struct {
	EventName      string         `json:"event_name" binding:"required" example:"page_view"`
	EventTimestamp int64          `json:"event_timestamp" binding:"required,gt=0" example:"1709316000000000"`
	UserPseudoID   string         `json:"user_pseudo_id" binding:"required" example:"1234567.1709316000"`
	UserID         *string        `json:"user_id,omitempty" example:"member_42"`
	EventParams    []ParamRequest `json:"event_params" binding:"dive"`
	UserProperties []ParamRequest `json:"user_properties" binding:"dive"`
	Columns        map[string]any `json:"columns,omitempty"`
}

// ToEvent converts the request into a domain event without an identity
func (r *PublishEventRequest) ToEvent() *domain.Event {
	e := &domain.Event{
		Timestamp:      r.EventTimestamp,
		EventName:      r.EventName,
		UserPseudoID:   r.UserPseudoID,
		UserID:         r.UserID,
		Params:         toParams(r.EventParams),
		UserProperties: toParams(r.UserProperties),
	}
	if len(r.Columns) > 0 {
		e.Columns = make(map[string]any, len(r.Columns))
		for k, v := range r.Columns {
			domain.Flatten(e.Columns, k, v)
		}
	}
	return e
}

func toParams(in []ParamRequest) []domain.Param {
	if len(in) == 0 {
		return nil
	}
	out := make([]domain.Param, len(in))
	for i, p := range in {
		out[i] = domain.Param{Key: p.Key, Value: domain.ParamValue{
			StringValue: p.StringValue,
			IntValue:    p.IntValue,
			FloatValue:  p.FloatValue,
			DoubleValue: p.DoubleValue,
		}}
	}
	return out
}

// PublishEventsBulkRequest represents a publish bulk event request
type PublishEventsBulkRequest struct {
	Events []PublishEventRequest `json:"events" binding:"required,min=1,max=1000,dive"`
}

// ClassifyRequest asks for the channel of a source/medium pair
type ClassifyRequest struct {
	Source string `json:"source" example:"google"`
	Medium string `json:"medium" example:"cpc"`
}

// RunSessionsRequest starts a session build. Incremental defaults to the service setting.
type RunSessionsRequest struct {
	Incremental *bool `json:"incremental,omitempty" example:"true"`
}

// GetChannelsRequest represents a channel report query. Dates are YYYY-MM-DD and inclusive.
type GetChannelsRequest struct {
	From    string `form:"from" binding:"required" example:"2024-03-01"`
	To      string `form:"to" binding:"required" example:"2024-03-31"`
	GroupBy string `form:"group_by" example:"source_medium"`
}
