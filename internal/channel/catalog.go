package channel

import "strings"

// SourceCategory groups known sources for channel classification
type SourceCategory string

const (
	CategoryNone     SourceCategory = ""
	CategorySocial   SourceCategory = "SOURCE_CATEGORY_SOCIAL"
	CategorySearch   SourceCategory = "SOURCE_CATEGORY_SEARCH"
	CategoryShopping SourceCategory = "SOURCE_CATEGORY_SHOPPING"
	CategoryVideo    SourceCategory = "SOURCE_CATEGORY_VIDEO"
)

// Catalog maps exact source values to a category
type Catalog map[string]SourceCategory

// Category returns the category of source, or CategoryNone when unknown.
// Lookups ignore case and a leading "www.".
func (c Catalog) Category(source string) SourceCategory {
	if c == nil || source == "" {
		return CategoryNone
	}
	return c[normalizeSource(source)]
}

func normalizeSource(source string) string {
	return strings.TrimPrefix(strings.ToLower(strings.TrimSpace(source)), "www.")
}

// DefaultCatalog returns a fresh copy of the built-in source categories.
func DefaultCatalog() Catalog {
	c := make(Catalog, 256)
	add := func(category SourceCategory, sources ...string) {
		for _, s := range sources {
			c[s] = category
		}
	}

	add(CategorySearch,
		"google", "bing", "yahoo", "baidu", "duckduckgo", "yandex", "ecosia", "naver", "seznam",
		"ask", "aol", "qwant", "startpage", "sogou", "so.com", "daum", "onet", "yandex.ru",
		"search.yahoo.com", "bing.com", "duckduckgo.com", "ecosia.org", "search.brave.com",
		"google-play", "m.baidu.com", "cn.bing.com", "search.aol.com", "msn", "msn.com",
		"lens.google.com", "news.google.com", "startsiden", "rambler", "mail.rambler.ru",
		"websearch.rakuten.co.jp", "search-results", "avg", "incredimail", "alice", "biglobe",
		"coccoc", "najdi", "lycos", "naver.com", "seznam.cz",
	)
	add(CategorySocial,
		"facebook", "facebook.com", "m.facebook.com", "l.facebook.com", "lm.facebook.com", "fb",
		"instagram", "instagram.com", "l.instagram.com", "pinterest", "pinterest.com",
		"reddit", "reddit.com", "twitter", "twitter.com", "t.co", "x.com", "linkedin",
		"linkedin.com", "lnkd.in", "tiktok", "tiktok.com", "snapchat", "quora", "quora.com",
		"tumblr", "tumblr.com", "vk.com", "weibo", "wechat", "line", "messenger",
		"whatsapp", "discord", "discord.com", "telegram", "threads.net", "medium.com",
		"ok.ru", "xing", "yelp", "yelp.com", "meetup", "flickr", "slack", "mastodon",
		"stackoverflow", "stackoverflow.com", "news.ycombinator.com", "producthunt",
	)
	add(CategoryShopping,
		"amazon", "amazon.com", "ebay", "ebay.com", "etsy", "etsy.com", "walmart",
		"walmart.com", "shopify", "shopify.com", "alibaba", "alibaba.com", "aliexpress",
		"aliexpress.com", "shopping.google.com", "google shopping", "igshopping",
		"shopzilla", "pricegrabber", "bestbuy", "target.com", "stripe", "mercadolibre",
		"rakuten", "zalando", "wish",
	)
	add(CategoryVideo,
		"youtube", "youtube.com", "m.youtube.com", "vimeo", "vimeo.com", "twitch",
		"twitch.tv", "dailymotion", "dailymotion.com", "netflix", "netflix.com",
		"hulu", "disneyplus", "wistia", "ted", "crackle", "iqiyi", "youku",
		"blog.twitch.tv", "veoh",
	)
	return c
}
