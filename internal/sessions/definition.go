package sessions

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"

	"github.com/kaptinlin/jsonschema"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/Dminor7/ga4bigquery/internal/attribution"
	"github.com/Dminor7/ga4bigquery/internal/errs"
)

//go:embed definition.schema.json
var definitionSchema []byte

// Definition is the YAML document describing a session table
type Definition struct {
	Source                      SourceConfig       `yaml:"source"`
	Target                      TargetConfig       `yaml:"target"`
	Preset                      string             `yaml:"preset"`
	Timezone                    string             `yaml:"timezone"`
	LastNonDirectLookBackWindow int                `yaml:"lastNonDirectLookBackWindow"`
	EventIDTimestampParam       string             `yaml:"eventIdTimestampParam"`
	Tags                        any                `yaml:"tags"`
	Columns                     []Declaration      `yaml:"columns"`
	EventParams                 []Declaration      `yaml:"eventParams"`
	UserProperties              []Declaration      `yaml:"userProperties"`
	QueryParameters             []Declaration      `yaml:"queryParameters"`
	ItemColumns                 []Declaration      `yaml:"itemColumns"`
	ItemParams                  []Declaration      `yaml:"itemParams"`
	SourceMediumRules           []attribution.Rule `yaml:"sourceMediumRules"`
	PostProcessing              *PostProcessing    `yaml:"postProcessing"`
	SkipSteps                   []string           `yaml:"skipSteps"`
	TableOptions                `yaml:",inline"`
}

// LoadFile reads and applies a session definition file.
func LoadFile(path string, log *zap.Logger) (*Session, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session definition: %w", err)
	}
	return Load(data, log)
}

// Load validates a YAML session definition against the embedded schema and
// applies it to a new session.
func Load(data []byte, log *zap.Logger) (*Session, error) {
	if err := ValidateDefinition(data); err != nil {
		return nil, err
	}
	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, errs.Configuration("invalid_definition", fmt.Errorf("failed to decode session definition: %w", err))
	}
	return def.Build(log)
}

// ValidateDefinition checks a YAML document against the definition schema.
func ValidateDefinition(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return errs.Configuration("invalid_definition", fmt.Errorf("failed to parse session definition: %w", err))
	}
	if doc == nil {
		doc = map[string]any{}
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return errs.Configuration("invalid_definition", fmt.Errorf("failed to convert session definition: %w", err))
	}

	compiler := jsonschema.NewCompiler()
	schema, err := compiler.Compile(definitionSchema)
	if err != nil {
		return fmt.Errorf("failed to compile definition schema: %w", err)
	}
	result := schema.ValidateJSON(raw)
	if result.IsValid() {
		return nil
	}
	return errs.Configuration("invalid_definition", fmt.Errorf("schema validation failed: %v", result.Errors))
}

// Build creates a session and applies every setting of the definition.
func (d Definition) Build(log *zap.Logger) (*Session, error) {
	s, err := NewSession(d.Source, d.Target, log)
	if err != nil {
		return nil, err
	}
	if d.Preset != "" {
		if err := s.ApplyPreset(d.Preset); err != nil {
			return nil, err
		}
	}
	if err := s.SetTimezone(d.Timezone); err != nil {
		return nil, err
	}
	s.SetLookbackWindow(d.LastNonDirectLookBackWindow)
	s.SetEventIDTimestampParam(d.EventIDTimestampParam)
	s.SetOptions(d.TableOptions)

	if d.Tags != nil {
		if err := s.AddTags(d.Tags); err != nil {
			return nil, err
		}
	}

	adders := []struct {
		decls []Declaration
		add   func([]Declaration) error
	}{
		{d.Columns, s.AddColumns},
		{d.EventParams, s.AddEventParams},
		{d.UserProperties, s.AddUserProperties},
		{d.QueryParameters, s.AddQueryParameters},
		{d.ItemColumns, s.AddItemColumns},
		{d.ItemParams, s.AddItemParams},
	}
	for _, a := range adders {
		if len(a.decls) == 0 {
			continue
		}
		if err := a.add(a.decls); err != nil {
			return nil, err
		}
	}

	if len(d.SourceMediumRules) > 0 {
		if err := s.SetSourceMediumRules(d.SourceMediumRules); err != nil {
			return nil, err
		}
	}
	if d.PostProcessing != nil {
		s.SetPostProcessing(*d.PostProcessing)
	}
	for _, name := range d.SkipSteps {
		if err := s.RemoveStep(name); err != nil {
			return nil, err
		}
	}
	return s, nil
}
