package dto

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"validation_error"`
	Message string `json:"message,omitempty" example:"event_name is required"`
}

// PublishEventResponse represents an accepted event. Identities are decimal
// strings since they do not fit a JSON number.
type PublishEventResponse struct {
	EventID   string `json:"event_id" example:"-4611686018427387904"`
	SessionID string `json:"session_id,omitempty" example:"8070450532247928832"`
	Status    string `json:"status" example:"accepted"`
}

// PublishBulkEventsResponse represents a successful bulk event ingestion response
type PublishBulkEventsResponse struct {
	Accepted int      `json:"accepted" example:"5"`
	Rejected int      `json:"rejected" example:"0"`
	EventIDs []string `json:"event_ids,omitempty"`
	Errors   []string `json:"errors,omitempty" example:"event 3: event_timestamp is in the future"`
}

// ClassifyResponse is the channel of a source/medium pair
type ClassifyResponse struct {
	Source         string  `json:"source" example:"google"`
	Medium         string  `json:"medium" example:"cpc"`
	SourceCategory *string `json:"source_category" example:"SOURCE_CATEGORY_SEARCH"`
	Channel        string  `json:"channel" example:"Paid Search"`
}

// RunSessionsResponse summarizes a session run
type RunSessionsResponse struct {
	RunID      string `json:"run_id" example:"0b7e6c1e-3c1b-4f43-9a54-5f0f4f3c1a2b"`
	Table      string `json:"table" example:"dataform_staging.sessions"`
	Events     int    `json:"events" example:"1200"`
	Sessions   int    `json:"sessions" example:"310"`
	Written    int    `json:"written" example:"310"`
	DurationMs int64  `json:"duration_ms" example:"420"`
}

// ChannelGroupData represents the sessions of one channel group
type ChannelGroupData struct {
	Channel         string `json:"channel" example:"Organic Search"`
	GroupValue      string `json:"group_value,omitempty" example:"google / organic"`
	Sessions        uint64 `json:"sessions" example:"1500"`
	EngagedSessions uint64 `json:"engaged_sessions" example:"900"`
}

// ChannelReportResponse represents the channel report
type ChannelReportResponse struct {
	From          string             `json:"from" example:"2024-03-01"`
	To            string             `json:"to" example:"2024-03-31"`
	TotalSessions uint64             `json:"total_sessions" example:"5000"`
	UniqueUsers   uint64             `json:"unique_users" example:"2500"`
	GroupBy       string             `json:"group_by,omitempty" example:"source_medium"`
	Groups        []ChannelGroupData `json:"groups"`
}
