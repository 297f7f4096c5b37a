package clickhouse

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/config"
)

// Client owns the ClickHouse connection shared by the event and session
// repositories
type Client struct {
	connection driver.Conn
	database   string
	log        *zap.Logger
}

// NewClient opens and verifies a ClickHouse connection
func NewClient(ctx context.Context, cfg config.ClickHouse, log *zap.Logger) (*Client, error) {
	opts := connectOptions(cfg)

	log.Info("Connecting to ClickHouse",
		zap.Strings("addrs", opts.Addr),
		zap.String("database", cfg.Database),
		zap.Bool("useTLS", cfg.UseTLS))

	connection, err := clickhouse.Open(opts)
	if err != nil {
		log.Error("Failed to connect to ClickHouse", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	if err := connection.Ping(ctx); err != nil {
		log.Error("Failed to ping ClickHouse", zap.Error(err))
		_ = connection.Close()
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	log.Info("ClickHouse connection established successfully")

	return &Client{connection: connection, database: cfg.Database, log: log}, nil
}

// connectOptions maps the environment configuration onto driver options.
// Replicas are tried in the listed order.
func connectOptions(cfg config.ClickHouse) *clickhouse.Options {
	var addrs []string
	for _, host := range strings.Split(cfg.Host, ",") {
		if host = strings.TrimSpace(host); host != "" {
			addrs = append(addrs, net.JoinHostPort(host, cfg.Port))
		}
	}

	var tlsConfig *tls.Config
	if cfg.UseTLS {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	settings := clickhouse.Settings{}
	if cfg.MaxExecutionSec > 0 {
		settings["max_execution_time"] = cfg.MaxExecutionSec
	}

	return &clickhouse.Options{
		Addr: addrs,
		Auth: clickhouse.Auth{
			Database: cfg.Database,
			Username: cfg.User,
			Password: cfg.Password,
		},
		Settings: settings,
		Compression: &clickhouse.Compression{
			Method: clickhouse.CompressionLZ4,
		},
		TLS:              tlsConfig,
		DialTimeout:      5 * time.Second,
		MaxOpenConns:     cfg.MaxOpenConns,
		MaxIdleConns:     cfg.MaxIdleConns,
		ConnMaxLifetime:  time.Duration(cfg.ConnMaxLifetime) * time.Second,
		ConnOpenStrategy: clickhouse.ConnOpenInOrder,
		BlockBufferSize:  10,
	}
}

// Conn returns the underlying ClickHouse connection
func (c *Client) Conn() driver.Conn {
	return c.connection
}

// Database is the default database of the connection
func (c *Client) Database() string {
	return c.database
}

// Close closes the ClickHouse connection
func (c *Client) Close() error {
	c.log.Info("Closing ClickHouse connection")
	if err := c.connection.Close(); err != nil {
		c.log.Error("Error closing ClickHouse connection", zap.Error(err))
		return err
	}
	return nil
}
