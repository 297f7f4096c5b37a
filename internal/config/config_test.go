package config

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Setenv("SERVICE_ENVIRONMENT", "test")
	t.Setenv("SQS_QUEUE_URL", "http://localhost:4566/000000000000/events")
	t.Setenv("SQS_REGION", "us-east-1")
	t.Setenv("CLICKHOUSE_HOST", "localhost")
	t.Setenv("CLICKHOUSE_PORT", "9000")
	t.Setenv("CLICKHOUSE_DB", "analytics")
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.Service.Environment)
	assert.Equal(t, "8080", cfg.Service.APIPort)
	assert.Equal(t, "analytics", cfg.ClickHouse.Database)
	assert.Equal(t, 5, cfg.ClickHouse.MaxOpenConns)
	assert.Equal(t, 2000, cfg.Consumer.BatchSizeMax)
	assert.Equal(t, int32(10), cfg.Consumer.ReceiveMaxMessages)
	assert.Equal(t, int32(20), cfg.Consumer.ReceiveWaitSeconds)
	assert.Equal(t, "./sessions", cfg.Parquet.Dir)
	assert.Equal(t, 10000, cfg.Parquet.BufferRows)
	assert.Equal(t, "clickhouse", cfg.Sessions.Source)
	assert.True(t, cfg.Sessions.Incremental)
}

func TestLoad_Overrides(t *testing.T) {
	setRequired(t)
	t.Setenv("SESSIONS_SINK", "parquet")
	t.Setenv("PARQUET_S3_BUCKET", "exports")
	t.Setenv("BIGQUERY_PROJECT_ID", "my-project")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "parquet", cfg.Sessions.Sink)
	assert.Equal(t, "exports", cfg.Parquet.Bucket)
	assert.Equal(t, "my-project", cfg.BigQuery.ProjectID)
}

func TestLoad_MissingRequired(t *testing.T) {
	setRequired(t)
	require.NoError(t, os.Unsetenv("CLICKHOUSE_HOST"))

	_, err := Load()
	assert.Error(t, err)
}

func TestProcess_SectionsOnly(t *testing.T) {
	require.NoError(t, os.Unsetenv("SQS_QUEUE_URL"))
	t.Setenv("SESSIONS_SOURCE", "file")
	t.Setenv("PARQUET_DIR", "/tmp/out")

	var cfg Config
	require.NoError(t, Process(&cfg.Sessions, &cfg.Parquet))

	assert.Equal(t, "file", cfg.Sessions.Source)
	assert.Equal(t, "/tmp/out", cfg.Parquet.Dir)
	assert.Empty(t, cfg.SQS.QueueURL)
}

func TestProcess_RequiredInSection(t *testing.T) {
	require.NoError(t, os.Unsetenv("CLICKHOUSE_HOST"))

	var cfg Config
	assert.Error(t, Process(&cfg.ClickHouse))
}
