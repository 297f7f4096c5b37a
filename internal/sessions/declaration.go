package sessions

import (
	"fmt"
	"strings"

	"go.uber.org/multierr"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/errs"
	"github.com/Dminor7/ga4bigquery/internal/params"
)

// Declaration selects one column, parameter or user property into the
// session output.
type Declaration struct {
	Name       string `yaml:"name" json:"name"`
	ColumnName string `yaml:"columnName,omitempty" json:"columnName,omitempty"`
	Type       string `yaml:"type,omitempty" json:"type,omitempty"`
}

// OutputName is the column the declaration produces.
func (d Declaration) OutputName() string {
	if d.ColumnName != "" {
		return d.ColumnName
	}
	return d.Name
}

// ParamType returns the normalized declared type. Call only on validated
// declarations.
func (d Declaration) ParamType() params.Type {
	t, err := params.ParseType(d.Type)
	if err != nil {
		return params.TypeString
	}
	return t
}

// ValidateDeclarations checks every declaration of field and reports all
// problems at once.
func ValidateDeclarations(field string, decls []Declaration) error {
	var errList error
	for i, d := range decls {
		if strings.TrimSpace(d.Name) == "" {
			errList = multierr.Append(errList,
				fmt.Errorf("%s[%d]: a non-empty 'name' is required", field, i))
		}
		if _, err := params.ParseType(d.Type); err != nil {
			errList = multierr.Append(errList, fmt.Errorf("%s[%d]: %w", field, i, err))
		}
	}
	return errs.Configuration("invalid_declaration", errList)
}

// reservedNames are produced by the builder itself and can't be redeclared.
var reservedNames = map[string]bool{
	domain.ColDate:           true,
	domain.ColSessionID:      true,
	domain.ColEventID:        true,
	domain.ColEventTimestamp: true,
	domain.ColEventName:      true,
	domain.ColUserID:         true,
	domain.ColUserPseudoID:   true,
	domain.ColSessionEngaged: true,
	domain.ColPageLocation:   true,
	domain.ColPageReferrer:   true,
	domain.ColIgnoreReferrer: true,
	domain.ColReferrerHost:   true,
	domain.ColSource:         true,
	domain.ColMedium:         true,
	domain.ColCampaign:       true,
	domain.ColGclid:          true,
	domain.ColUTMSource:      true,
	domain.ColUTMMedium:      true,
	domain.ColUTMCampaign:    true,
	domain.ColUTMGclid:       true,
	domain.ColSessionStart:   true,
	domain.ColLandingPage:    true,
	domain.ColSourceCategory: true,
	domain.ColChannel:        true,
}

// IsReserved reports whether name is a builder-owned session column.
func IsReserved(name string) bool {
	return reservedNames[name]
}

// withoutReserved drops declarations whose output collides with a builder column.
func withoutReserved(decls []Declaration) []Declaration {
	out := make([]Declaration, 0, len(decls))
	for _, d := range decls {
		if IsReserved(d.OutputName()) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// merge replaces declarations with a matching name in place and appends the rest.
func merge(current, added []Declaration) []Declaration {
	out := append([]Declaration(nil), current...)
	for _, d := range withoutReserved(added) {
		replaced := false
		for i := range out {
			if out[i].Name == d.Name {
				out[i] = d
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, d)
		}
	}
	return out
}
