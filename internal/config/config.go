package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" required:"true"`
	APIPort     string `envconfig:"SERVICE_API_PORT" default:"8080"`
	LogLevel    string `envconfig:"SERVICE_LOG_LEVEL"`
}

// ClickHouse holds the event store connection. Host may list several
// comma separated replicas that share Port.
type ClickHouse struct {
	Host            string `envconfig:"CLICKHOUSE_HOST" required:"true"`
	Port            string `envconfig:"CLICKHOUSE_PORT" required:"true"`
	Database        string `envconfig:"CLICKHOUSE_DB" required:"true"`
	User            string `envconfig:"CLICKHOUSE_USER" default:""`
	Password        string `envconfig:"CLICKHOUSE_PASSWORD" default:""`
	UseTLS          bool   `envconfig:"CLICKHOUSE_USE_TLS" default:"false"`
	MaxOpenConns    int    `envconfig:"CLICKHOUSE_MAX_OPEN_CONNS" default:"5"`
	MaxIdleConns    int    `envconfig:"CLICKHOUSE_MAX_IDLE_CONNS" default:"2"`
	ConnMaxLifetime int    `envconfig:"CLICKHOUSE_CONN_MAX_LIFETIME_SEC" default:"3600"`
	MaxExecutionSec int    `envconfig:"CLICKHOUSE_MAX_EXECUTION_SEC" default:"300"`
}

type SQS struct {
	Endpoint string `envconfig:"SQS_ENDPOINT"`
	QueueURL string `envconfig:"SQS_QUEUE_URL" required:"true"`
	Region   string `envconfig:"SQS_REGION" required:"true"`
}

type Consumer struct {
	BatchSizeMax          int    `envconfig:"CONSUMER_BATCH_SIZE_MAX" default:"2000"`
	BatchTimeoutSec       int    `envconfig:"CONSUMER_BATCH_TIMEOUT_SEC" default:"10"`
	HealthCheckPort       string `envconfig:"CONSUMER_HEALTH_CHECK_PORT" default:"8081"`
	EventIDTimestampParam string `envconfig:"CONSUMER_EVENT_ID_TIMESTAMP_PARAM"`
	// SQS caps a receive at 10 messages and a long poll at 20 seconds.
	ReceiveMaxMessages int32 `envconfig:"CONSUMER_RECEIVE_MAX_MESSAGES" default:"10"`
	ReceiveWaitSeconds int32 `envconfig:"CONSUMER_RECEIVE_WAIT_SECONDS" default:"20"`
	StageBufferSize    int   `envconfig:"CONSUMER_STAGE_BUFFER_SIZE" default:"100"`
}

// BigQuery points at the GA4 export project. Endpoint is only set for emulators.
type BigQuery struct {
	ProjectID       string `envconfig:"BIGQUERY_PROJECT_ID"`
	Location        string `envconfig:"BIGQUERY_LOCATION"`
	CredentialsFile string `envconfig:"BIGQUERY_CREDENTIALS_FILE"`
	Endpoint        string `envconfig:"BIGQUERY_ENDPOINT"`
}

// Parquet configures the session export. Files go to Bucket when set, to Dir otherwise.
type Parquet struct {
	Dir        string `envconfig:"PARQUET_DIR" default:"./sessions"`
	Bucket     string `envconfig:"PARQUET_S3_BUCKET"`
	Prefix     string `envconfig:"PARQUET_S3_PREFIX" default:"sessions"`
	Region     string `envconfig:"PARQUET_S3_REGION" default:"us-east-1"`
	Endpoint   string `envconfig:"PARQUET_S3_ENDPOINT"`
	BufferRows int    `envconfig:"PARQUET_SORT_BUFFER_ROWS" default:"10000"`
}

type Sessions struct {
	DefinitionFile string `envconfig:"SESSIONS_DEFINITION_FILE" default:"sessions.yaml"`
	Source         string `envconfig:"SESSIONS_SOURCE" default:"clickhouse"`
	Sink           string `envconfig:"SESSIONS_SINK" default:"clickhouse"`
	FileSourceDir  string `envconfig:"SESSIONS_FILE_SOURCE_DIR" default:"./events"`
	Incremental    bool   `envconfig:"SESSIONS_INCREMENTAL" default:"true"`
}

type Config struct {
	Service    Service
	ClickHouse ClickHouse
	SQS        SQS
	Consumer   Consumer
	BigQuery   BigQuery
	Parquet    Parquet
	Sessions   Sessions
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

// Process fills only the given sections, e.g. &cfg.Sessions, so a tool
// using one backend does not need the required settings of the others.
func Process(sections ...any) error {
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return fmt.Errorf("failed to process config: %w", err)
		}
	}
	return nil
}
