package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/backend"
	"github.com/Dminor7/ga4bigquery/internal/channel"
	"github.com/Dminor7/ga4bigquery/internal/config"
	"github.com/Dminor7/ga4bigquery/internal/logger"
	"github.com/Dminor7/ga4bigquery/internal/sessions"
)

func newRootCommand() *cobra.Command {
	var logLevel string

	root := &cobra.Command{
		Use:          "sessionizer",
		Short:        "Build GA4 sessions with channel attribution",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level, e.g. debug")

	newLogger := func() (*zap.Logger, error) {
		return logger.New("development", logLevel)
	}

	root.AddCommand(
		newRunCommand(newLogger),
		newValidateCommand(newLogger),
		newClassifyCommand(),
	)
	return root
}

func newRunCommand(newLogger func() (*zap.Logger, error)) *cobra.Command {
	var (
		definitionFile string
		sourceKind     string
		sinkKind       string
		incremental    bool
	)

	command := &cobra.Command{
		Use:   "run",
		Short: "Build sessions from raw events and write them to a sink",
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			cfg := &config.Config{}
			if err := config.Process(&cfg.Sessions, &cfg.Parquet, &cfg.BigQuery); err != nil {
				return err
			}
			if !cmd.Flags().Changed("config") {
				definitionFile = cfg.Sessions.DefinitionFile
			}
			if !cmd.Flags().Changed("source") {
				sourceKind = cfg.Sessions.Source
			}
			if !cmd.Flags().Changed("sink") {
				sinkKind = cfg.Sessions.Sink
			}
			if !cmd.Flags().Changed("incremental") {
				incremental = cfg.Sessions.Incremental
			}
			if sourceKind == backend.KindClickHouse || sinkKind == backend.KindClickHouse {
				if err := config.Process(&cfg.ClickHouse); err != nil {
					return err
				}
			}

			session, err := sessions.LoadFile(definitionFile, log)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			backends, err := backend.Open(ctx, cfg, backend.Options{Source: sourceKind, Sink: sinkKind}, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := backends.Close(); err != nil {
					log.Error("Failed to close backends", zap.Error(err))
				}
			}()

			if sinkKind == backend.KindClickHouse {
				if err := backends.Repo.InitSchema(ctx); err != nil {
					return err
				}
			}

			result, err := session.Publish(ctx, backends.Source, backends.Sink, sessions.PublishOptions{
				RunID:       uuid.NewString(),
				Incremental: incremental,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d events, %d sessions, %d written to %s.%s in %s\n",
				result.RunID, result.Events, result.Sessions, result.Written,
				result.Table.Schema, result.Table.Name, result.Duration)
			return err
		},
	}
	command.Flags().StringVar(&definitionFile, "config", "", "Session definition file (default $SESSIONS_DEFINITION_FILE)")
	command.Flags().StringVar(&sourceKind, "source", "", "Event source: file, bigquery or clickhouse (default $SESSIONS_SOURCE)")
	command.Flags().StringVar(&sinkKind, "sink", "", "Session sink: clickhouse or parquet (default $SESSIONS_SINK)")
	command.Flags().BoolVar(&incremental, "incremental", false, "Read the incremental table (default $SESSIONS_INCREMENTAL)")
	return command
}

// definitionSummary is what validate prints for a loaded definition
type definitionSummary struct {
	Source         sessions.SourceConfig `json:"source"`
	Steps          []string              `json:"steps"`
	Timezone       string                `json:"timezone"`
	LookbackWindow int                   `json:"lastNonDirectLookBackWindow"`
	Table          sessions.TableConfig  `json:"table"`
}

func newValidateCommand(newLogger func() (*zap.Logger, error)) *cobra.Command {
	var definitionFile string

	command := &cobra.Command{
		Use:   "validate",
		Short: "Validate a session definition and print the resolved configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			if definitionFile == "" {
				return fmt.Errorf("--config is required")
			}
			log, err := newLogger()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			session, err := sessions.LoadFile(definitionFile, log)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(definitionSummary{
				Source:         session.Source(),
				Steps:          session.Steps(),
				Timezone:       session.Timezone(),
				LookbackWindow: session.LookbackWindow(),
				Table:          session.TableConfig(),
			})
		},
	}
	command.Flags().StringVar(&definitionFile, "config", "", "Session definition file")
	return command
}

func newClassifyCommand() *cobra.Command {
	var src, medium string

	command := &cobra.Command{
		Use:   "classify",
		Short: "Print the source category and default channel of a source/medium pair",
		RunE: func(cmd *cobra.Command, args []string) error {
			category, ch := channel.Default().ClassifySource(src, medium)
			if category == channel.CategoryNone {
				category = "(none)"
			}
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "source_category: %s\nchannel: %s\n", category, ch)
			return err
		},
	}
	command.Flags().StringVar(&src, "source", "", "Traffic source, e.g. google")
	command.Flags().StringVar(&medium, "medium", "", "Traffic medium, e.g. cpc")
	return command
}
