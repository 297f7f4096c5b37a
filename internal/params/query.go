package params

import (
	"fmt"
	"regexp"

	lru "github.com/hashicorp/golang-lru/v2"
)

const defaultPatternCacheSize = 256

// QueryExtractor pulls query parameter values out of URLs. Compiled patterns
// are cached per parameter name.
type QueryExtractor struct {
	patterns *lru.Cache[string, *regexp.Regexp]
}

// NewQueryExtractor creates an extractor caching up to size patterns
func NewQueryExtractor(size int) (*QueryExtractor, error) {
	if size <= 0 {
		size = defaultPatternCacheSize
	}
	cache, err := lru.New[string, *regexp.Regexp](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create pattern cache: %w", err)
	}
	return &QueryExtractor{patterns: cache}, nil
}

// Extract returns the raw value of the ?, & or # delimited parameter name in
// url, matching the key case-insensitively. It returns nil when url is nil or
// the parameter is absent.
func (q *QueryExtractor) Extract(url any, name string) any {
	s, ok := url.(string)
	if !ok || s == "" {
		return nil
	}
	m := q.pattern(name).FindStringSubmatch(s)
	if m == nil {
		return nil
	}
	return m[1]
}

func (q *QueryExtractor) pattern(name string) *regexp.Regexp {
	if re, ok := q.patterns.Get(name); ok {
		return re
	}
	re := regexp.MustCompile(`(?i)[?&#]` + regexp.QuoteMeta(name) + `=([^&#]*)`)
	q.patterns.Add(name, re)
	return re
}
