// Package backend opens the event source and session sink selected by
// configuration.
package backend

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/config"
	"github.com/Dminor7/ga4bigquery/internal/errs"
	"github.com/Dminor7/ga4bigquery/internal/repository/clickhouse"
	"github.com/Dminor7/ga4bigquery/internal/sessions"
	"github.com/Dminor7/ga4bigquery/internal/sink/parquet"
	"github.com/Dminor7/ga4bigquery/internal/source"
	"github.com/Dminor7/ga4bigquery/internal/source/bigquery"
	"github.com/Dminor7/ga4bigquery/internal/source/file"
)

const (
	KindFile       = "file"
	KindBigQuery   = "bigquery"
	KindClickHouse = "clickhouse"
	KindParquet    = "parquet"
)

// Options selects the backends. Repo is reused when set, otherwise a
// ClickHouse connection is opened only if one of the kinds needs it.
type Options struct {
	Source string
	Sink   string
	Repo   *clickhouse.Repository
}

// Backends holds the opened source and sink
type Backends struct {
	Source source.EventSource
	Sink   sessions.Sink
	// Repo is the ClickHouse repository, nil when nothing needed one.
	Repo    *clickhouse.Repository
	closers []func() error
}

// Open creates the configured backends. On error everything opened so far
// is closed again.
func Open(ctx context.Context, cfg *config.Config, opts Options, log *zap.Logger) (b *Backends, err error) {
	b = &Backends{Repo: opts.Repo}
	defer func() {
		if err != nil {
			err = multierr.Append(err, b.Close())
			b = nil
		}
	}()

	if err = checkKind("source", opts.Source, KindFile, KindBigQuery, KindClickHouse); err != nil {
		return b, err
	}
	if err = checkKind("sink", opts.Sink, KindClickHouse, KindParquet); err != nil {
		return b, err
	}

	if b.Repo == nil && (opts.Source == KindClickHouse || opts.Sink == KindClickHouse) {
		client, err := clickhouse.NewClient(ctx, cfg.ClickHouse, log)
		if err != nil {
			return b, fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.Repo = clickhouse.NewRepository(client, log)
	}

	switch opts.Source {
	case KindFile:
		b.Source = file.NewSource(cfg.Sessions.FileSourceDir, log)
	case KindBigQuery:
		src, err := bigquery.NewSource(ctx, cfg.BigQuery, log)
		if err != nil {
			return b, err
		}
		b.closers = append(b.closers, src.Close)
		b.Source = src
	case KindClickHouse:
		b.Source = b.Repo
	}

	switch opts.Sink {
	case KindParquet:
		sink, err := parquet.NewSink(ctx, cfg.Parquet, log)
		if err != nil {
			return b, err
		}
		b.Sink = sink
	case KindClickHouse:
		b.Sink = b.Repo
	}

	log.Info("Backends ready", zap.String("source", opts.Source), zap.String("sink", opts.Sink))
	return b, nil
}

// Close releases what Open created. A repository passed in Options is left open.
func (b *Backends) Close() error {
	var err error
	for i := len(b.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, b.closers[i]())
	}
	b.closers = nil
	return err
}

func checkKind(what, kind string, valid ...string) error {
	for _, v := range valid {
		if kind == v {
			return nil
		}
	}
	return errs.Configuration("unknown_"+what,
		fmt.Errorf("unknown %s %q, valid values are %v", what, kind, valid))
}
