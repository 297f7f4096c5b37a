package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/metrics"
	"github.com/Dminor7/ga4bigquery/internal/pipeline"
	"github.com/Dminor7/ga4bigquery/internal/repository"
	"github.com/Dminor7/ga4bigquery/internal/sessions"
)

const sinkName = "clickhouse"

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// sessionColumns are stored as typed columns, in insert order. Every other
// session column goes to the properties JSON.
var sessionColumns = []string{
	domain.ColDate,
	domain.ColSessionID,
	domain.ColUserPseudoID,
	domain.ColUserID,
	domain.ColSessionStart,
	domain.ColSessionEngaged,
	domain.ColLandingPage,
	domain.ColSource,
	domain.ColMedium,
	domain.ColCampaign,
	domain.ColSourceCategory,
	domain.ColChannel,
}

// tableName returns the quoted, database qualified name of a session table
func tableName(schema, name string) (string, error) {
	if !identifierPattern.MatchString(name) {
		return "", fmt.Errorf("invalid table name %q", name)
	}
	if schema == "" {
		return fmt.Sprintf("`%s`", name), nil
	}
	if !identifierPattern.MatchString(schema) {
		return "", fmt.Errorf("invalid schema name %q", schema)
	}
	return fmt.Sprintf("`%s`.`%s`", schema, name), nil
}

// createSessionsTable renders the DDL of a session table. The ORDER BY key is
// the unique key so ReplacingMergeTree keeps one row per (date, session_id).
func createSessionsTable(qualified string, opts sessions.TableOptions) string {
	ttl := ""
	if opts.PartitionExpirationDays > 0 {
		ttl = fmt.Sprintf("\n\tTTL date + INTERVAL %d DAY", opts.PartitionExpirationDays)
	}
	return fmt.Sprintf(`
	CREATE TABLE IF NOT EXISTS %s (
		date Date,
		session_id Int64,
		user_pseudo_id String,
		user_id Nullable(String),
		session_start DateTime64(6, 'UTC'),
		session_engaged Nullable(Int64),
		landing_page Nullable(String),
		source Nullable(String),
		medium Nullable(String),
		campaign Nullable(String),
		source_category LowCardinality(Nullable(String)),
		channel LowCardinality(String),
		properties String,
		version UInt64
	) ENGINE = ReplacingMergeTree(version)
	PARTITION BY toYYYYMM(date)
	ORDER BY (date, session_id)%s
	SETTINGS index_granularity = 8192
	`, qualified, ttl)
}

// EnsureSessionsTable creates the session table and its database when missing
func (r *Repository) EnsureSessionsTable(ctx context.Context, table sessions.Table) (string, error) {
	qualified, err := tableName(table.Schema, table.Name)
	if err != nil {
		return "", err
	}
	if table.Schema != "" {
		if err := r.client.Conn().Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", table.Schema)); err != nil {
			return "", fmt.Errorf("failed to create database %s: %w", table.Schema, err)
		}
	}
	if err := r.client.Conn().Exec(ctx, createSessionsTable(qualified, table.Config.Table.TableOptions)); err != nil {
		return "", fmt.Errorf("failed to create sessions table: %w", err)
	}
	return qualified, nil
}

// WriteSessions implements sessions.Sink. Rows are inserted with a fresh
// version so a rerun replaces earlier rows of the same session.
func (r *Repository) WriteSessions(ctx context.Context, table sessions.Table, rel pipeline.Relation) (int, error) {
	qualified, err := r.EnsureSessionsTable(ctx, table)
	if err != nil {
		return 0, err
	}
	if len(rel) == 0 {
		return 0, nil
	}

	batch, err := r.client.Conn().PrepareBatch(ctx, "INSERT INTO "+qualified)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare batch: %w", err)
	}

	version := uint64(time.Now().UnixNano())
	written := 0
	for _, row := range rel {
		values, err := sessionValues(row, version)
		if err != nil {
			r.log.Warn("Skipping session row", zap.Any("session_id", row[domain.ColSessionID]), zap.Error(err))
			continue
		}
		if err := batch.Append(values...); err != nil {
			return 0, fmt.Errorf("failed to append session to batch: %w", err)
		}
		written++
	}

	if written == 0 {
		return 0, fmt.Errorf("no sessions could be appended to batch")
	}

	if err := batch.Send(); err != nil {
		return 0, fmt.Errorf("failed to send batch: %w", err)
	}

	metrics.SessionsWritten.WithLabelValues(sinkName).Add(float64(written))
	r.log.Info("Sessions written to ClickHouse",
		zap.String("table", qualified),
		zap.Int("sessions", written))
	return written, nil
}

// sessionValues maps one session row onto the typed columns
func sessionValues(row pipeline.Row, version uint64) ([]any, error) {
	date, ok := row.Time(domain.ColDate)
	if !ok {
		return nil, fmt.Errorf("missing %s", domain.ColDate)
	}
	id, ok := row.Int(domain.ColSessionID)
	if !ok {
		return nil, fmt.Errorf("missing %s", domain.ColSessionID)
	}
	start, _ := row.Time(domain.ColSessionStart)
	pseudo, _ := row.String(domain.ColUserPseudoID)
	channel, _ := row.String(domain.ColChannel)

	var engaged *int64
	if v, ok := row.Int(domain.ColSessionEngaged); ok {
		engaged = &v
	}

	props, err := properties(row)
	if err != nil {
		return nil, err
	}

	return []any{
		date,
		id,
		pseudo,
		nullableString(row, domain.ColUserID),
		start.UTC(),
		engaged,
		nullableString(row, domain.ColLandingPage),
		nullableString(row, domain.ColSource),
		nullableString(row, domain.ColMedium),
		nullableString(row, domain.ColCampaign),
		nullableString(row, domain.ColSourceCategory),
		channel,
		props,
		version,
	}, nil
}

func nullableString(row pipeline.Row, col string) *string {
	if v, ok := row.String(col); ok {
		return &v
	}
	return nil
}

// properties encodes the declared columns that have no typed column
func properties(row pipeline.Row) (string, error) {
	typed := make(map[string]bool, len(sessionColumns))
	for _, c := range sessionColumns {
		typed[c] = true
	}
	extra := make(map[string]any)
	for k, v := range row {
		if !typed[k] {
			extra[k] = v
		}
	}
	b, err := json.Marshal(extra)
	if err != nil {
		return "", fmt.Errorf("failed to encode properties: %w", err)
	}
	return string(b), nil
}

// ChannelReport aggregates stored sessions by channel between two dates
func (r *Repository) ChannelReport(ctx context.Context, query repository.ChannelQuery) (*repository.ChannelReport, error) {
	qualified, err := tableName(query.Schema, query.Table)
	if err != nil {
		return nil, err
	}

	result := &repository.ChannelReport{
		Groups: []repository.ChannelGroupResult{},
	}

	whereClause := "WHERE date >= ? AND date <= ?"
	args := []interface{}{query.From, query.To}

	overallQuery := fmt.Sprintf(`
		SELECT
			count() as total_sessions,
			uniq(user_pseudo_id) as unique_users
		FROM %s FINAL
		%s
	`, qualified, whereClause)

	row := r.client.Conn().QueryRow(ctx, overallQuery, args...)
	if err := row.Scan(&result.TotalSessions, &result.UniqueUsers); err != nil {
		return nil, fmt.Errorf("failed to query channel totals: %w", err)
	}

	groupField, err := groupExpression(query.GroupBy)
	if err != nil {
		return nil, err
	}

	groupedQuery := fmt.Sprintf(`
		SELECT
			channel,
			%s as group_value,
			count() as sessions,
			countIf(session_engaged = 1) as engaged
		FROM %s FINAL
		%s
		GROUP BY channel, group_value
		ORDER BY sessions DESC, channel ASC, group_value ASC
	`, groupField, qualified, whereClause)

	rows, err := r.client.Conn().Query(ctx, groupedQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query channel groups: %w", err)
	}
	defer func(rows driver.Rows) {
		if err := rows.Close(); err != nil {
			r.log.Error("Failed to close channel report rows", zap.Error(err))
		}
	}(rows)

	for rows.Next() {
		var group repository.ChannelGroupResult
		if err := rows.Scan(&group.Channel, &group.GroupValue, &group.Sessions, &group.Engaged); err != nil {
			return nil, fmt.Errorf("failed to scan channel report row: %w", err)
		}
		result.Groups = append(result.Groups, group)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating channel report rows: %w", err)
	}

	return result, nil
}

// groupExpression maps a report dimension to its SQL expression
func groupExpression(groupBy string) (string, error) {
	switch strings.ToLower(groupBy) {
	case "", "channel":
		return "''", nil
	case "day":
		return "formatDateTime(date, '%Y-%m-%d')", nil
	case "source_medium":
		return "concat(ifNull(source, '(null)'), ' / ', ifNull(medium, '(null)'))", nil
	case "source_category":
		return "ifNull(source_category, '')", nil
	}
	return "", fmt.Errorf("unsupported group_by value: %s (supported: channel, day, source_medium, source_category)", groupBy)
}
