package domain

// Column names produced by extraction and the default processing steps.
const (
	ColDate           = "date"
	ColSessionID      = "session_id"
	ColEventID        = "event_id"
	ColEventTimestamp = "event_timestamp"
	ColEventName      = "event_name"
	ColUserID         = "user_id"
	ColUserPseudoID   = "user_pseudo_id"
	ColSessionEngaged = "session_engaged"
	ColPageLocation   = "page_location"
	ColPageReferrer   = "page_referrer"
	ColIgnoreReferrer = "ignore_referrer"
	ColReferrerHost   = "referrer_host"
	ColSource         = "source"
	ColMedium         = "medium"
	ColCampaign       = "campaign"
	ColGclid          = "gclid"
	ColUTMSource      = "utm_source"
	ColUTMMedium      = "utm_medium"
	ColUTMCampaign    = "utm_campaign"
	ColUTMGclid       = "utm_gclid"
	ColSessionStart   = "session_start"
	ColLandingPage    = "landing_page"
	ColSourceCategory = "source_category"
	ColChannel        = "channel"
)

// Well known GA4 parameter names.
const (
	ParamSessionID      = "ga_session_id"
	ParamEngagementTime = "engagement_time_msec"
	ParamSessionEngaged = "session_engaged"
)
