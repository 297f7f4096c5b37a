// Package attribution maps raw source, medium and campaign candidates to a
// normalized triple using an ordered, first-match-wins rule table.
package attribution

import (
	"fmt"
	"regexp"
	"strconv"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/Dminor7/ga4bigquery/internal/errs"
)

// ConditionType selects how a rule tests its coalesced column value
type ConditionType string

const (
	NotNull        ConditionType = "NOT_NULL"
	RegexpContains ConditionType = "REGEXP_CONTAINS"
)

const (
	DefaultSource   = "(direct)"
	DefaultMedium   = "(none)"
	DefaultCampaign = "(not set)"
)

// Triple is a resolved source, medium and campaign
type Triple struct {
	Source   string `json:"source"`
	Medium   string `json:"medium"`
	Campaign string `json:"campaign"`
}

// DefaultTriple is returned when no rule matches.
func DefaultTriple() Triple {
	return Triple{Source: DefaultSource, Medium: DefaultMedium, Campaign: DefaultCampaign}
}

// Value is one element of a rule result: either a literal or a coalesced list
// of field references. The zero Value resolves to the position default.
type Value struct {
	Literal *string
	Fields  []string
}

// Literal returns a constant result value.
func Literal(s string) Value {
	return Value{Literal: &s}
}

// Field returns a result value read from the first non-null of names.
func Field(names ...string) Value {
	return Value{Fields: names}
}

// UnmarshalYAML accepts a scalar literal, a {field: name} mapping, a
// {fields: [..]} mapping or a sequence of field names.
func (v *Value) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		s := node.Value
		v.Literal = &s
		return nil
	case yaml.SequenceNode:
		return node.Decode(&v.Fields)
	case yaml.MappingNode:
		var ref struct {
			Field  string   `yaml:"field"`
			Fields []string `yaml:"fields"`
			Value  *string  `yaml:"value"`
		}
		if err := node.Decode(&ref); err != nil {
			return err
		}
		switch {
		case ref.Value != nil:
			v.Literal = ref.Value
		case ref.Field != "":
			v.Fields = []string{ref.Field}
		default:
			v.Fields = ref.Fields
		}
		return nil
	}
	return fmt.Errorf("line %d: unsupported rule value", node.Line)
}

// Result is the triple a rule produces on match
type Result struct {
	Source   Value `yaml:"source"`
	Medium   Value `yaml:"medium"`
	Campaign Value `yaml:"campaign"`
}

// Rule is one entry of the source/medium rule table
type Rule struct {
	ConditionType  ConditionType `yaml:"conditionType"`
	Columns        []string      `yaml:"columns"`
	ConditionValue string        `yaml:"conditionValue,omitempty"`
	Result         Result        `yaml:"result"`
}

// Fields is the candidate record a rule table is evaluated against. A nil
// value is null.
type Fields map[string]any

func (f Fields) coalesce(names []string) any {
	for _, name := range names {
		if v, ok := f[name]; ok && v != nil {
			return v
		}
	}
	return nil
}

type compiledRule struct {
	Rule
	pattern *regexp.Regexp
}

// Engine evaluates a validated rule table. It is immutable and safe for
// concurrent use.
type Engine struct {
	rules []compiledRule
}

// NewEngine validates and compiles rules. Every invalid rule is reported.
func NewEngine(rules []Rule) (*Engine, error) {
	compiled := make([]compiledRule, 0, len(rules))
	var errList error
	for i, rule := range rules {
		c, err := compile(rule)
		if err != nil {
			errList = multierr.Append(errList, fmt.Errorf("rule %d: %w", i, err))
			continue
		}
		compiled = append(compiled, c)
	}
	if errList != nil {
		return nil, errs.Configuration("invalid_rule", errList)
	}
	return &Engine{rules: compiled}, nil
}

// Validate reports whether rules would compile.
func Validate(rules []Rule) error {
	_, err := NewEngine(rules)
	return err
}

func compile(rule Rule) (compiledRule, error) {
	if len(rule.Columns) == 0 {
		return compiledRule{}, fmt.Errorf("%w: no columns", errs.ErrInvalidRule)
	}
	c := compiledRule{Rule: rule}
	switch rule.ConditionType {
	case NotNull:
	case RegexpContains:
		if rule.ConditionValue == "" {
			return compiledRule{}, fmt.Errorf("%w: %s requires conditionValue", errs.ErrInvalidRule, rule.ConditionType)
		}
		re, err := regexp.Compile(rule.ConditionValue)
		if err != nil {
			return compiledRule{}, fmt.Errorf("%w: bad pattern %q: %v", errs.ErrInvalidRule, rule.ConditionValue, err)
		}
		c.pattern = re
	default:
		return compiledRule{}, fmt.Errorf("%w: unsupported condition type %q", errs.ErrInvalidRule, rule.ConditionType)
	}
	return c, nil
}

// Len returns the number of rules in the table.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Classify returns the result of the first matching rule, or the default
// triple when none match.
func (e *Engine) Classify(fields Fields) Triple {
	for _, rule := range e.rules {
		if rule.matches(fields) {
			return Triple{
				Source:   resolve(rule.Result.Source, fields, DefaultSource),
				Medium:   resolve(rule.Result.Medium, fields, DefaultMedium),
				Campaign: resolve(rule.Result.Campaign, fields, DefaultCampaign),
			}
		}
	}
	return DefaultTriple()
}

func (r compiledRule) matches(fields Fields) bool {
	v := fields.coalesce(r.Columns)
	if v == nil {
		return false
	}
	switch r.ConditionType {
	case NotNull:
		return true
	case RegexpContains:
		return r.pattern.MatchString(toString(v))
	}
	return false
}

func resolve(v Value, fields Fields, fallback string) string {
	if v.Literal != nil {
		return *v.Literal
	}
	if raw := fields.coalesce(v.Fields); raw != nil {
		return toString(raw)
	}
	return fallback
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		return strconv.FormatFloat(t, 'g', -1, 64)
	case fmt.Stringer:
		return t.String()
	}
	return fmt.Sprint(v)
}
