// Package bigquery reads raw events from a GA4 BigQuery export.
package bigquery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"cloud.google.com/go/bigquery"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"github.com/Dminor7/ga4bigquery/internal/config"
	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/source"
)

// Source queries an export dataset
type Source struct {
	client  *bigquery.Client
	project string
	log     *zap.Logger
}

// NewSource creates a BigQuery client for the configured project
func NewSource(ctx context.Context, cfg config.BigQuery, log *zap.Logger) (*Source, error) {
	var opts []option.ClientOption
	if cfg.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	}
	if cfg.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(cfg.Endpoint), option.WithoutAuthentication())
	}

	log.Info("Connecting to BigQuery", zap.String("project", cfg.ProjectID))
	client, err := bigquery.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery client: %w", err)
	}
	if cfg.Location != "" {
		client.Location = cfg.Location
	}
	return &Source{client: client, project: cfg.ProjectID, log: log}, nil
}

// Close releases the client
func (s *Source) Close() error {
	return s.client.Close()
}

// ReadEvents implements source.EventSource. The partition predicate is
// appended verbatim as a WHERE clause.
func (s *Source) ReadEvents(ctx context.Context, p source.Partition) ([]domain.Event, error) {
	if p.Database == "" {
		p.Database = s.project
	}
	sql, err := BuildQuery(p)
	if err != nil {
		return nil, err
	}
	s.log.Info("Querying GA4 export", zap.String("query", sql))

	it, err := s.client.Query(sql).Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to run export query: %w", err)
	}

	var events []domain.Event
	for {
		var row map[string]bigquery.Value
		err := it.Next(&row)
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read export row: %w", err)
		}
		e, err := DecodeRow(row)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	s.log.Info("Events loaded from BigQuery", zap.Int("events", len(events)))
	return events, nil
}

// BuildQuery renders the export query of a partition.
func BuildQuery(p source.Partition) (string, error) {
	for _, ident := range []string{p.Database, p.Dataset, p.Table} {
		if ident == "" || strings.ContainsAny(ident, "`;\n") {
			return "", fmt.Errorf("invalid table reference %q", ident)
		}
	}
	sql := fmt.Sprintf("SELECT * FROM `%s.%s.%s`", p.Database, p.Dataset, p.Table)
	if p.Where != "" {
		sql += " WHERE " + p.Where
	}
	return sql, nil
}

// DecodeRow converts one export row. Nested records outside the event core
// are flattened into Columns.
func DecodeRow(row map[string]bigquery.Value) (domain.Event, error) {
	var e domain.Event
	for key, value := range row {
		switch key {
		case "event_timestamp":
			ts, ok := value.(int64)
			if !ok {
				return domain.Event{}, fmt.Errorf("event_timestamp: unexpected %T", value)
			}
			e.Timestamp = ts
		case "event_name":
			e.EventName, _ = value.(string)
		case "user_pseudo_id":
			e.UserPseudoID, _ = value.(string)
		case "user_id":
			if s, ok := value.(string); ok {
				e.UserID = &s
			}
		case "event_params":
			e.Params = decodeParams(value)
		case "user_properties":
			e.UserProperties = decodeParams(value)
		default:
			if e.Columns == nil {
				e.Columns = make(map[string]any)
			}
			flatten(e.Columns, key, value)
		}
	}
	return e, nil
}

func flatten(dst map[string]any, prefix string, v bigquery.Value) {
	if record, ok := v.(map[string]bigquery.Value); ok {
		for k, child := range record {
			flatten(dst, prefix+"."+k, child)
		}
		return
	}
	dst[prefix] = v
}

func decodeParams(v bigquery.Value) []domain.Param {
	list, ok := v.([]bigquery.Value)
	if !ok {
		return nil
	}
	out := make([]domain.Param, 0, len(list))
	for _, item := range list {
		record, ok := item.(map[string]bigquery.Value)
		if !ok {
			continue
		}
		key, _ := record["key"].(string)
		value, _ := record["value"].(map[string]bigquery.Value)
		out = append(out, domain.Param{Key: key, Value: decodeValue(value)})
	}
	return out
}

func decodeValue(record map[string]bigquery.Value) domain.ParamValue {
	var v domain.ParamValue
	if s, ok := record["string_value"].(string); ok {
		v.StringValue = &s
	}
	if i, ok := record["int_value"].(int64); ok {
		v.IntValue = &i
	}
	if f, ok := record["float_value"].(float64); ok {
		v.FloatValue = &f
	}
	if d, ok := record["double_value"].(float64); ok {
		v.DoubleValue = &d
	}
	return v
}
