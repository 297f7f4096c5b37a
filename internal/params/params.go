// Package params extracts typed values from GA4 parameter bags and query
// parameters from URL-bearing fields.
package params

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/errs"
)

// Type is the declared type of an extracted parameter
type Type string

const (
	TypeString        Type = "string"
	TypeInt           Type = "int"
	TypeDouble        Type = "double"
	TypeFloat         Type = "float"
	TypeCoalesce      Type = "coalesce"
	TypeCoalesceFloat Type = "coalesce_float"
)

// Types lists every supported declaration type.
var Types = []Type{TypeString, TypeInt, TypeDouble, TypeFloat, TypeCoalesce, TypeCoalesceFloat}

// ParseType normalizes a declared type. An empty value means string.
func ParseType(s string) (Type, error) {
	if s == "" {
		return TypeString, nil
	}
	t := Type(strings.ToLower(s))
	for _, valid := range Types {
		if t == valid {
			return t, nil
		}
	}
	return "", errs.Configuration("invalid_param_type",
		fmt.Errorf("unsupported type %q, expected one of: %s", s, joinTypes()))
}

func joinTypes() string {
	names := make([]string, len(Types))
	for i, t := range Types {
		names[i] = string(t)
	}
	return strings.Join(names, ", ")
}

// Get returns the value of the first parameter named name converted to t,
// or nil when the key is absent or holds no value of that type.
//
// Returned Go types: string for string and coalesce, int64 for int,
// float64 for double, float and coalesce_float.
func Get(bag []domain.Param, name string, t Type) any {
	for _, p := range bag {
		if p.Key == name {
			return convert(p.Value, t)
		}
	}
	return nil
}

func convert(v domain.ParamValue, t Type) any {
	switch t {
	case TypeString, "":
		if v.StringValue != nil {
			return *v.StringValue
		}
	case TypeInt:
		if v.IntValue != nil {
			return *v.IntValue
		}
	case TypeDouble:
		if v.DoubleValue != nil {
			return *v.DoubleValue
		}
	case TypeFloat:
		if v.FloatValue != nil {
			return *v.FloatValue
		}
	case TypeCoalesce:
		switch {
		case v.StringValue != nil:
			return *v.StringValue
		case v.IntValue != nil:
			return strconv.FormatInt(*v.IntValue, 10)
		case v.FloatValue != nil:
			return strconv.FormatFloat(*v.FloatValue, 'g', -1, 64)
		case v.DoubleValue != nil:
			return strconv.FormatFloat(*v.DoubleValue, 'g', -1, 64)
		}
	case TypeCoalesceFloat:
		if v.StringValue != nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(*v.StringValue), 64); err == nil {
				return f
			}
		}
		switch {
		case v.IntValue != nil:
			return float64(*v.IntValue)
		case v.FloatValue != nil:
			return *v.FloatValue
		case v.DoubleValue != nil:
			return *v.DoubleValue
		}
	}
	return nil
}
