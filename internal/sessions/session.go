// Package sessions builds attributed sessions from raw GA4 events: it
// extracts event fields, derives identities, runs the processing steps and
// materializes the result.
package sessions

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/attribution"
	"github.com/Dminor7/ga4bigquery/internal/channel"
	"github.com/Dminor7/ga4bigquery/internal/errs"
	"github.com/Dminor7/ga4bigquery/internal/lookback"
	"github.com/Dminor7/ga4bigquery/internal/params"
	"github.com/Dminor7/ga4bigquery/internal/pipeline"
	"github.com/Dminor7/ga4bigquery/internal/source"
)

const (
	DefaultTimezone                = "America/Los_Angeles"
	DefaultSchema                  = "dataform_staging"
	DefaultTableName               = "sessions"
	DefaultNonIncrementalTableName = "events_*"
)

// SourceConfig locates the raw events
type SourceConfig struct {
	Database                          string `yaml:"database,omitempty"`
	Dataset                           string `yaml:"dataset"`
	IncrementalTableName              string `yaml:"incrementalTableName,omitempty"`
	IncrementalTableEventStepWhere    string `yaml:"incrementalTableEventStepWhere,omitempty"`
	NonIncrementalTableName           string `yaml:"nonIncrementalTableName,omitempty"`
	NonIncrementalTableEventStepWhere string `yaml:"nonIncrementalTableEventStepWhere,omitempty"`
}

// TargetConfig names the output table
type TargetConfig struct {
	Schema    string `yaml:"schema,omitempty"`
	TableName string `yaml:"tableName,omitempty"`
}

// PostProcessing is applied to the final relation
type PostProcessing struct {
	Delete []string `yaml:"delete,omitempty"`
}

// DefaultPostProcessing drops the helper columns that only matter per event.
func DefaultPostProcessing() PostProcessing {
	return PostProcessing{Delete: []string{"ignore_referrer"}}
}

// TableOptions are optional materialization settings
type TableOptions struct {
	ClusterBy               []string          `yaml:"clusterBy,omitempty" json:"clusterBy,omitempty"`
	UpdatePartitionFilter   string            `yaml:"updatePartitionFilter,omitempty" json:"updatePartitionFilter,omitempty"`
	AdditionalOptions       map[string]string `yaml:"additionalOptions,omitempty" json:"additionalOptions,omitempty"`
	PartitionExpirationDays int               `yaml:"partitionExpirationDays,omitempty" json:"partitionExpirationDays,omitempty"`
	RequirePartitionFilter  bool              `yaml:"requirePartitionFilter,omitempty" json:"requirePartitionFilter,omitempty"`
}

// Session is the configuration of one session table and the pipeline that
// builds it. Configure it before running; it is not safe for concurrent
// mutation.
type Session struct {
	source         SourceConfig
	target         TargetConfig
	timezone       string
	location       *time.Location
	tags           []string
	partitionBy    string
	uniqueKey      []string
	options        TableOptions
	lookbackWindow int
	rules          []attribution.Rule
	engine         *attribution.Engine
	classifier     *channel.Classifier
	postProcessing PostProcessing
	eventIDParam   string
	parallelism    int

	columns         []Declaration
	eventParams     []Declaration
	userProperties  []Declaration
	queryParameters []Declaration
	itemColumns     []Declaration
	itemParams      []Declaration

	steps   *pipeline.Pipeline[*Session]
	queries *params.QueryExtractor
	log     *zap.Logger
}

// NewSession creates a session with the default rules, steps and the
// standard preset.
func NewSession(src SourceConfig, target TargetConfig, log *zap.Logger) (*Session, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if src.NonIncrementalTableName == "" {
		src.NonIncrementalTableName = DefaultNonIncrementalTableName
	}
	if target.Schema == "" {
		target.Schema = DefaultSchema
	}
	if target.TableName == "" {
		target.TableName = DefaultTableName
	}

	queries, err := params.NewQueryExtractor(0)
	if err != nil {
		return nil, err
	}
	engine, err := attribution.NewEngine(attribution.DefaultRules())
	if err != nil {
		return nil, fmt.Errorf("failed to compile default rules: %w", err)
	}
	steps, err := pipeline.New(log, DefaultSteps()...)
	if err != nil {
		return nil, fmt.Errorf("failed to build default steps: %w", err)
	}

	s := &Session{
		source:         src,
		target:         target,
		partitionBy:    "date",
		uniqueKey:      []string{"date", "session_id"},
		lookbackWindow: lookback.DefaultWindowDays,
		rules:          attribution.DefaultRules(),
		engine:         engine,
		classifier:     channel.Default(),
		postProcessing: DefaultPostProcessing(),
		steps:          steps,
		queries:        queries,
		log:            log,
	}
	if src.Dataset != "" {
		s.tags = append(s.tags, src.Dataset)
	}
	if err := s.SetTimezone(DefaultTimezone); err != nil {
		return nil, err
	}
	if err := s.ApplyPreset(PresetStandard); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Session) Source() SourceConfig {
	return s.source
}

func (s *Session) Target() TargetConfig {
	return s.target
}

// SetTarget replaces the target. An empty schema falls back to the default;
// an empty table name is kept and rejected at publish time.
func (s *Session) SetTarget(target TargetConfig) {
	if target.Schema == "" {
		target.Schema = DefaultSchema
	}
	s.target = target
}

func (s *Session) Timezone() string {
	return s.timezone
}

// SetTimezone sets the IANA zone used to derive session dates. Empty means
// the default zone.
func (s *Session) SetTimezone(tz string) error {
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return errs.Configuration("invalid_timezone", fmt.Errorf("invalid timezone %q: %w", tz, err))
	}
	s.timezone = tz
	s.location = loc
	return nil
}

func (s *Session) Location() *time.Location {
	return s.location
}

func (s *Session) LookbackWindow() int {
	return s.lookbackWindow
}

// SetLookbackWindow sets the last non-direct window in days. Values <= 0
// restore the default.
func (s *Session) SetLookbackWindow(days int) {
	if days <= 0 {
		days = lookback.DefaultWindowDays
	}
	s.lookbackWindow = days
}

// SetParallelism caps the number of users resolved concurrently by the
// lookback step. Values <= 0 use GOMAXPROCS.
func (s *Session) SetParallelism(n int) {
	s.parallelism = n
}

func (s *Session) SourceMediumRules() []attribution.Rule {
	return append([]attribution.Rule(nil), s.rules...)
}

// SetSourceMediumRules validates and installs a rule table. On error the
// current table is kept.
func (s *Session) SetSourceMediumRules(rules []attribution.Rule) error {
	engine, err := attribution.NewEngine(rules)
	if err != nil {
		return err
	}
	s.rules = append([]attribution.Rule(nil), rules...)
	s.engine = engine
	return nil
}

// SetClassifier replaces the channel classifier.
func (s *Session) SetClassifier(c *channel.Classifier) {
	s.classifier = c
}

func (s *Session) PostProcessing() PostProcessing {
	return s.postProcessing
}

func (s *Session) SetPostProcessing(pp PostProcessing) {
	s.postProcessing = pp
}

// SetEventIDTimestampParam makes event ids use the timestamp carried in the
// named integer event parameter when present. Empty restores the default.
func (s *Session) SetEventIDTimestampParam(name string) {
	s.eventIDParam = name
}

func (s *Session) Tags() []string {
	return append([]string{}, s.tags...)
}

// AddTags appends a tag or a list of tags.
func (s *Session) AddTags(value any) error {
	switch v := value.(type) {
	case string:
		s.tags = append(s.tags, v)
	case []string:
		s.tags = append(s.tags, v...)
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			tag, ok := item.(string)
			if !ok {
				return errs.Configuration("invalid_tag", fmt.Errorf("tags should be an array of strings, got %T", item))
			}
			tags = append(tags, tag)
		}
		s.tags = append(s.tags, tags...)
	default:
		return errs.Configuration("invalid_tag", fmt.Errorf("tags should be an array or a string, got %T", value))
	}
	return nil
}

func (s *Session) Options() TableOptions {
	return s.options
}

func (s *Session) SetOptions(opts TableOptions) {
	s.options = opts
}

// Partition returns the raw events partition to read for a run.
func (s *Session) Partition(incremental bool) source.Partition {
	p := source.Partition{Database: s.source.Database, Dataset: s.source.Dataset}
	if incremental {
		p.Table = s.source.IncrementalTableName
		p.Where = s.source.IncrementalTableEventStepWhere
	} else {
		p.Table = s.source.NonIncrementalTableName
		p.Where = s.source.NonIncrementalTableEventStepWhere
	}
	return p
}

func (s *Session) Columns() []Declaration         { return s.columns }
func (s *Session) EventParams() []Declaration     { return s.eventParams }
func (s *Session) UserProperties() []Declaration  { return s.userProperties }
func (s *Session) QueryParameters() []Declaration { return s.queryParameters }
func (s *Session) ItemColumns() []Declaration     { return s.itemColumns }
func (s *Session) ItemParams() []Declaration      { return s.itemParams }

func (s *Session) SetColumns(d []Declaration) error {
	return setDeclarations("columns", &s.columns, d)
}

func (s *Session) AddColumns(d []Declaration) error {
	return addDeclarations("columns", &s.columns, d)
}

func (s *Session) SetEventParams(d []Declaration) error {
	return setDeclarations("eventParams", &s.eventParams, d)
}

func (s *Session) AddEventParams(d []Declaration) error {
	return addDeclarations("eventParams", &s.eventParams, d)
}

func (s *Session) SetUserProperties(d []Declaration) error {
	return setDeclarations("userProperties", &s.userProperties, d)
}

func (s *Session) AddUserProperties(d []Declaration) error {
	return addDeclarations("userProperties", &s.userProperties, d)
}

func (s *Session) SetQueryParameters(d []Declaration) error {
	return setDeclarations("queryParameters", &s.queryParameters, d)
}

func (s *Session) AddQueryParameters(d []Declaration) error {
	return addDeclarations("queryParameters", &s.queryParameters, d)
}

func (s *Session) SetItemColumns(d []Declaration) error {
	return setDeclarations("itemColumns", &s.itemColumns, d)
}

func (s *Session) AddItemColumns(d []Declaration) error {
	return addDeclarations("itemColumns", &s.itemColumns, d)
}

func (s *Session) SetItemParams(d []Declaration) error {
	return setDeclarations("itemParams", &s.itemParams, d)
}

func (s *Session) AddItemParams(d []Declaration) error {
	return addDeclarations("itemParams", &s.itemParams, d)
}

func setDeclarations(field string, dst *[]Declaration, d []Declaration) error {
	if err := ValidateDeclarations(field, d); err != nil {
		return err
	}
	*dst = withoutReserved(d)
	return nil
}

func addDeclarations(field string, dst *[]Declaration, d []Declaration) error {
	if err := ValidateDeclarations(field, d); err != nil {
		return err
	}
	*dst = merge(*dst, d)
	return nil
}

// Steps returns the processing step names in execution order.
func (s *Session) Steps() []string {
	return s.steps.Names()
}

// RemoveStep removes a processing step unless a later step depends on it.
func (s *Session) RemoveStep(name string) error {
	return s.steps.Remove(name)
}

// AddStep appends a custom processing step after the existing ones.
func (s *Session) AddStep(step pipeline.Step[*Session]) error {
	return s.steps.Add(step)
}

func (s *Session) SkipLastNonDirectStep() error {
	return s.steps.Remove(StepLastNonDirect)
}

func (s *Session) SkipChannelStep() error {
	return s.steps.Remove(StepChannel)
}

func (s *Session) SkipSourceMediumStep() error {
	return s.steps.Remove(StepSourceMedium)
}

// TableConfig describes the materialized table
type TableConfig struct {
	Type      string        `json:"type"`
	UniqueKey []string      `json:"uniqueKey"`
	Schema    string        `json:"schema"`
	Tags      []string      `json:"tags"`
	Table     TableSettings `json:"bigquery"`
}

// TableSettings are the partitioning and optional table options. Unset
// options are omitted.
type TableSettings struct {
	PartitionBy string `json:"partitionBy"`
	TableOptions
}

// TableConfig returns the materialization descriptor of the session table.
func (s *Session) TableConfig() TableConfig {
	return TableConfig{
		Type:      "incremental",
		UniqueKey: append([]string(nil), s.uniqueKey...),
		Schema:    s.target.Schema,
		Tags:      s.Tags(),
		Table: TableSettings{
			PartitionBy:  s.partitionBy,
			TableOptions: s.options,
		},
	}
}
