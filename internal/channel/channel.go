// Package channel classifies a resolved source and medium into a default
// channel group.
package channel

import (
	"regexp"
	"strings"
)

// Channel is a default channel group label
type Channel string

const (
	Direct            Channel = "Direct"
	PaidSocial        Channel = "Paid Social"
	OrganicSocial     Channel = "Organic Social"
	Email             Channel = "Email"
	Affiliates        Channel = "Affiliates"
	PaidShopping      Channel = "Paid Shopping"
	PaidVideo         Channel = "Paid Video"
	Display           Channel = "Display"
	PaidSearch        Channel = "Paid Search"
	OtherAdvertising  Channel = "Other Advertising"
	OrganicSearch     Channel = "Organic Search"
	OrganicVideo      Channel = "Organic Video"
	OrganicShopping   Channel = "Organic Shopping"
	Referral          Channel = "Referral"
	Audio             Channel = "Audio"
	SMS               Channel = "SMS"
	PushNotifications Channel = "Push Notifications"
	Other             Channel = "(Other)"
)

const (
	DisplayAdSource = "dv360_display"
	VideoAdSource   = "dv360_video"
)

var (
	paidMedium     = regexp.MustCompile(`^(.*cp.*|ppc|retargeting|paid.*)$`)
	socialSource   = regexp.MustCompile(`^(facebook|instagram|pinterest|reddit|twitter|linkedin)`)
	emailIndicator = regexp.MustCompile(`email|e-mail|e_mail|e mail`)
	affiliate      = regexp.MustCompile(`^affiliates?$`)
	displayMedium  = regexp.MustCompile(`^(display|cpm|banner)$`)
	otherAdMedium  = regexp.MustCompile(`^(cpv|cpa|cpp|content-text)$`)
	videoMedium    = regexp.MustCompile(`^(.*video.*)$`)
	pushMedium     = regexp.MustCompile(`(mobile|notification|push)$`)
)

var socialMedia = map[string]bool{
	"social":         true,
	"social-network": true,
	"social-media":   true,
	"sm":             true,
	"social network": true,
	"social media":   true,
}

// Input is one classification request. Empty source or medium is null.
type Input struct {
	Source   string
	Medium   string
	Category SourceCategory
}

func (in Input) normalized() Input {
	in.Source = normalizeSource(in.Source)
	in.Medium = strings.ToLower(strings.TrimSpace(in.Medium))
	return in
}

// Rule is one row of the channel decision table
type Rule struct {
	Channel Channel
	Match   func(in Input) bool
}

func matches(re *regexp.Regexp, s string) bool {
	return s != "" && re.MatchString(s)
}

func isSocial(in Input) bool {
	return matches(socialSource, in.Source) || in.Category == CategorySocial
}

func isPaid(in Input) bool {
	return matches(paidMedium, in.Medium)
}

// Rules returns the decision table in precedence order. Later rows are
// broader than earlier ones and must not be reordered.
func Rules() []Rule {
	return []Rule{
		{Direct, func(in Input) bool {
			return (in.Source == "" && in.Medium == "") ||
				(in.Source == "(direct)" && (in.Medium == "(none)" || in.Medium == "(not set)"))
		}},
		{PaidSocial, func(in Input) bool {
			return isSocial(in) && isPaid(in)
		}},
		{OrganicSocial, func(in Input) bool {
			return isSocial(in) || socialMedia[in.Medium]
		}},
		{Email, func(in Input) bool {
			return matches(emailIndicator, in.Source) || matches(emailIndicator, in.Medium)
		}},
		{Affiliates, func(in Input) bool {
			return matches(affiliate, in.Medium)
		}},
		{PaidShopping, func(in Input) bool {
			return in.Category == CategoryShopping && isPaid(in)
		}},
		{PaidVideo, func(in Input) bool {
			return (in.Category == CategoryVideo && isPaid(in)) || in.Source == VideoAdSource
		}},
		{Display, func(in Input) bool {
			return matches(displayMedium, in.Medium) || in.Source == DisplayAdSource
		}},
		{PaidSearch, func(in Input) bool {
			return in.Category == CategorySearch && isPaid(in)
		}},
		{OtherAdvertising, func(in Input) bool {
			return matches(otherAdMedium, in.Medium)
		}},
		{OrganicSearch, func(in Input) bool {
			return in.Medium == "organic" || in.Category == CategorySearch
		}},
		{OrganicVideo, func(in Input) bool {
			return in.Category == CategoryVideo || matches(videoMedium, in.Medium)
		}},
		{OrganicShopping, func(in Input) bool {
			return in.Category == CategoryShopping
		}},
		{Referral, func(in Input) bool {
			return in.Medium == "referral" || in.Medium == "app" || in.Medium == "link"
		}},
		{Audio, func(in Input) bool {
			return in.Medium == "audio"
		}},
		{SMS, func(in Input) bool {
			return in.Medium == "sms" || in.Source == "sms"
		}},
		{PushNotifications, func(in Input) bool {
			return matches(pushMedium, in.Medium) || in.Source == "firebase"
		}},
	}
}

// Classifier evaluates a channel decision table
type Classifier struct {
	rules   []Rule
	catalog Catalog
}

// NewClassifier creates a classifier over rules and catalog
func NewClassifier(rules []Rule, catalog Catalog) *Classifier {
	return &Classifier{rules: rules, catalog: catalog}
}

// Default returns a classifier over the standard table and catalog.
func Default() *Classifier {
	return NewClassifier(Rules(), DefaultCatalog())
}

// Category looks the source up in the classifier's catalog.
func (c *Classifier) Category(source string) SourceCategory {
	return c.catalog.Category(source)
}

// Classify returns the channel of the first matching rule, or Other.
// Source and medium are compared case-insensitively.
func (c *Classifier) Classify(in Input) Channel {
	in = in.normalized()
	for _, rule := range c.rules {
		if rule.Match(in) {
			return rule.Channel
		}
	}
	return Other
}

// ClassifySource resolves the source category from the catalog, then classifies.
func (c *Classifier) ClassifySource(source, medium string) (SourceCategory, Channel) {
	category := c.Category(source)
	return category, c.Classify(Input{Source: source, Medium: medium, Category: category})
}

// Classify evaluates the standard decision table.
func Classify(source, medium string, category SourceCategory) Channel {
	return NewClassifier(Rules(), nil).Classify(Input{Source: source, Medium: medium, Category: category})
}
