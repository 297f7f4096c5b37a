package attribution

import "github.com/Dminor7/ga4bigquery/internal/domain"

// SearchEngine is a referrer host pattern attributed as organic search
type SearchEngine struct {
	Source  string
	Pattern string
}

// SearchEngines returns the referrers recognized by DefaultRules, in match order.
func SearchEngines() []SearchEngine {
	return []SearchEngine{
		{Source: "google", Pattern: `(^|\.)google\.`},
		{Source: "bing", Pattern: `(^|\.)bing\.com$`},
		{Source: "yahoo", Pattern: `(^|\.)search\.yahoo\.`},
		{Source: "duckduckgo", Pattern: `(^|\.)duckduckgo\.com$`},
		{Source: "baidu", Pattern: `(^|\.)baidu\.com$`},
		{Source: "yandex", Pattern: `(^|\.)yandex\.`},
		{Source: "ecosia", Pattern: `(^|\.)ecosia\.org$`},
		{Source: "naver", Pattern: `(^|\.)search\.naver\.com$`},
		{Source: "seznam", Pattern: `(^|\.)seznam\.cz$`},
	}
}

// DefaultRules returns a fresh copy of the standard rule table: click ids,
// then explicit source parameters, then search engine referrers, then any
// other referrer.
func DefaultRules() []Rule {
	campaign := Field(domain.ColCampaign, domain.ColUTMCampaign)

	rules := []Rule{
		{
			ConditionType: NotNull,
			Columns:       []string{domain.ColGclid, domain.ColUTMGclid},
			Result:        Result{Source: Literal("google"), Medium: Literal("cpc"), Campaign: campaign},
		},
		{
			ConditionType: NotNull,
			Columns:       []string{domain.ColSource, domain.ColUTMSource},
			Result: Result{
				Source:   Field(domain.ColSource, domain.ColUTMSource),
				Medium:   Field(domain.ColMedium, domain.ColUTMMedium),
				Campaign: campaign,
			},
		},
	}
	for _, engine := range SearchEngines() {
		rules = append(rules, Rule{
			ConditionType:  RegexpContains,
			Columns:        []string{domain.ColReferrerHost},
			ConditionValue: engine.Pattern,
			Result:         Result{Source: Literal(engine.Source), Medium: Literal("organic")},
		})
	}
	rules = append(rules, Rule{
		ConditionType: NotNull,
		Columns:       []string{domain.ColReferrerHost},
		Result:        Result{Source: Field(domain.ColReferrerHost), Medium: Literal("referral")},
	})
	return rules
}
