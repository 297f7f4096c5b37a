package sessions

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Dminor7/ga4bigquery/internal/errs"
)

const (
	PresetStandard = "standard"
	PresetNone     = "none"
)

// Preset is a named starting set of declarations
type Preset struct {
	Columns        []Declaration
	EventParams    []Declaration
	UserProperties []Declaration
}

// Presets returns the built-in presets by name.
func Presets() map[string]Preset {
	return map[string]Preset{
		PresetStandard: {
			Columns: []Declaration{
				{Name: "device.category", ColumnName: "device_category"},
				{Name: "device.mobile_brand_name", ColumnName: "device_mobile_brand_name"},
				{Name: "device.operating_system", ColumnName: "device_operating_system"},
				{Name: "device.web_info.browser", ColumnName: "device_browser"},
				{Name: "device.language", ColumnName: "device_language"},
				{Name: "geo.country", ColumnName: "geo_country"},
				{Name: "geo.region", ColumnName: "geo_region"},
				{Name: "geo.city", ColumnName: "geo_city"},
				{Name: "platform"},
				{Name: "stream_id"},
			},
			EventParams: []Declaration{
				{Name: "page_title", ColumnName: "landing_page_title"},
			},
		},
		PresetNone: {},
	}
}

// PresetNames returns the sorted built-in preset names.
func PresetNames() []string {
	names := make([]string, 0, 2)
	for name := range Presets() {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ApplyPreset replaces columns, event params and user properties with the
// named preset.
func (s *Session) ApplyPreset(name string) error {
	preset, ok := Presets()[name]
	if !ok {
		return errs.Configuration("invalid_preset",
			fmt.Errorf("invalid preset %q, possible names are: %s", name, strings.Join(PresetNames(), ", ")))
	}
	s.columns = withoutReserved(preset.Columns)
	s.eventParams = withoutReserved(preset.EventParams)
	s.userProperties = withoutReserved(preset.UserProperties)
	return nil
}
