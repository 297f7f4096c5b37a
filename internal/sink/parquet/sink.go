// Package parquet materializes sessions as Parquet files, one file per
// session date, on a local directory or an S3 bucket.
package parquet

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/snappy"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/config"
	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/metrics"
	"github.com/Dminor7/ga4bigquery/internal/pipeline"
	"github.com/Dminor7/ga4bigquery/internal/sessions"
)

const (
	sinkName          = "parquet"
	defaultBufferRows = 10000
	fileName          = "sessions.parquet"
)

// ObjectPutter is the part of the S3 client the sink uses
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Sink implements sessions.Sink. Every write replaces the files of the
// dates it contains, so a rerun over the same dates is an upsert.
type Sink struct {
	dir        string
	bucket     string
	prefix     string
	s3         ObjectPutter
	bufferRows int
	log        *zap.Logger
}

// NewSink returns an S3 backed sink when a bucket is configured and a local
// one otherwise.
func NewSink(ctx context.Context, cfg config.Parquet, log *zap.Logger) (*Sink, error) {
	if cfg.Bucket == "" {
		return NewLocalSink(cfg.Dir, cfg.BufferRows, log), nil
	}

	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		log.Info("Configuring S3 for local development", zap.String("endpoint", cfg.Endpoint))
		opts = append(opts,
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("dummy", "dummy", "")))
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		})
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return NewS3Sink(s3.NewFromConfig(awsCfg, s3Opts...), cfg.Bucket, cfg.Prefix, cfg.BufferRows, log), nil
}

// NewLocalSink writes below dir
func NewLocalSink(dir string, bufferRows int, log *zap.Logger) *Sink {
	return &Sink{dir: dir, bufferRows: orDefault(bufferRows), log: log}
}

// NewS3Sink uploads objects below prefix in bucket
func NewS3Sink(client ObjectPutter, bucket, prefix string, bufferRows int, log *zap.Logger) *Sink {
	return &Sink{
		bucket:     bucket,
		prefix:     strings.Trim(prefix, "/"),
		s3:         client,
		bufferRows: orDefault(bufferRows),
		log:        log,
	}
}

func orDefault(n int) int {
	if n <= 0 {
		return defaultBufferRows
	}
	return n
}

// WriteSessions implements sessions.Sink
func (s *Sink) WriteSessions(ctx context.Context, table sessions.Table, rel pipeline.Relation) (int, error) {
	if err := checkName(table.Schema, true); err != nil {
		return 0, err
	}
	if err := checkName(table.Name, false); err != nil {
		return 0, err
	}

	byDate := make(map[int32][]*Record)
	for _, row := range rel {
		rec, err := NewRecord(row)
		if err != nil {
			s.log.Warn("Skipping session row", zap.Any("session_id", row[domain.ColSessionID]), zap.Error(err))
			continue
		}
		byDate[rec.Date] = append(byDate[rec.Date], rec)
	}

	dates := make([]int32, 0, len(byDate))
	for d := range byDate {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })

	sortBy := SortColumns(table.Config.Table.ClusterBy)
	written := 0
	for _, d := range dates {
		records := byDate[d]
		var buf bytes.Buffer
		if err := Encode(&buf, records, sortBy, s.bufferRows); err != nil {
			return written, err
		}
		key := objectKey(table, records[0].Day().Format("2006-01-02"))
		if err := s.put(ctx, key, &buf); err != nil {
			return written, err
		}
		written += len(records)
	}

	metrics.SessionsWritten.WithLabelValues(sinkName).Add(float64(written))
	s.log.Info("Sessions written to Parquet",
		zap.String("table", table.Schema+"."+table.Name),
		zap.Int("files", len(dates)),
		zap.Int("sessions", written))
	return written, nil
}

func (s *Sink) put(ctx context.Context, key string, body *bytes.Buffer) error {
	if s.s3 != nil {
		if s.prefix != "" {
			key = s.prefix + "/" + key
		}
		_, err := s.s3.PutObject(ctx, &s3.PutObjectInput{
			Bucket:      aws.String(s.bucket),
			Key:         aws.String(key),
			Body:        bytes.NewReader(body.Bytes()),
			ContentType: aws.String("application/vnd.apache.parquet"),
		})
		if err != nil {
			return fmt.Errorf("failed to upload s3://%s/%s: %w", s.bucket, key, err)
		}
		return nil
	}

	target := filepath.Join(s.dir, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, body.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("failed to replace %s: %w", target, err)
	}
	return nil
}

// objectKey is schema/table/date=YYYY-MM-DD/sessions.parquet
func objectKey(table sessions.Table, day string) string {
	parts := []string{table.Name, "date=" + day, fileName}
	if table.Schema != "" {
		parts = append([]string{table.Schema}, parts...)
	}
	return path.Join(parts...)
}

func checkName(name string, allowEmpty bool) error {
	if name == "" && allowEmpty {
		return nil
	}
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, `/\`) {
		return fmt.Errorf("invalid table path element %q", name)
	}
	return nil
}

// SortColumns returns the row order of a file: the cluster columns that
// exist on Record, then date and session_id.
func SortColumns(clusterBy []string) []string {
	var cols []string
	seen := make(map[string]bool)
	for _, c := range append(append([]string(nil), clusterBy...), domain.ColDate, domain.ColSessionID) {
		if recordColumns[c] && !seen[c] {
			seen[c] = true
			cols = append(cols, c)
		}
	}
	return cols
}

// Encode writes records as one Parquet file sorted by sortBy
func Encode(w io.Writer, records []*Record, sortBy []string, bufferRows int) error {
	sorting := make([]parquet.SortingColumn, len(sortBy))
	for i, c := range sortBy {
		sorting[i] = parquet.Ascending(c)
	}
	sw := parquet.NewSortingWriter[*Record](w, int64(orDefault(bufferRows)),
		parquet.Compression(&snappy.Codec{}),
		parquet.SortingWriterConfig(
			parquet.SortingColumns(sorting...),
		),
	)
	if _, err := sw.Write(records); err != nil {
		return fmt.Errorf("failed to write parquet rows: %w", err)
	}
	if err := sw.Close(); err != nil {
		return fmt.Errorf("failed to close parquet writer: %w", err)
	}
	return nil
}
