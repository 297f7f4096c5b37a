package parquet

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/pipeline"
	"github.com/Dminor7/ga4bigquery/internal/sessions"
)

type MockObjectPutter struct {
	mock.Mock
	bodies map[string][]byte
}

func (m *MockObjectPutter) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	body, _ := io.ReadAll(params.Body)
	if m.bodies == nil {
		m.bodies = make(map[string][]byte)
	}
	m.bodies[*params.Key] = body
	args := m.Called(*params.Bucket, *params.Key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*s3.PutObjectOutput), args.Error(1)
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sessionRow(date time.Time, id int64, channel string) pipeline.Row {
	return pipeline.Row{
		domain.ColDate:           date,
		domain.ColSessionID:      id,
		domain.ColUserPseudoID:   "u1",
		domain.ColSessionStart:   date.Add(10 * time.Hour),
		domain.ColSessionEngaged: int64(1),
		domain.ColSource:         "google",
		domain.ColMedium:         "organic",
		domain.ColCampaign:       nil,
		domain.ColChannel:        channel,
		"device_category":        "mobile",
	}
}

func readRecords(t *testing.T, b []byte) []Record {
	t.Helper()
	rows, err := parquet.Read[Record](bytes.NewReader(b), int64(len(b)))
	require.NoError(t, err)
	return rows
}

func TestNewRecord(t *testing.T) {
	rec, err := NewRecord(sessionRow(day(2024, 3, 1), 7, "Organic Search"))
	require.NoError(t, err)

	assert.Equal(t, day(2024, 3, 1), rec.Day())
	assert.Equal(t, int64(7), rec.SessionID)
	assert.Equal(t, "google", *rec.Source)
	assert.Nil(t, rec.Campaign)
	assert.Nil(t, rec.UserID)
	assert.Equal(t, int64(1), *rec.SessionEngaged)
	assert.Equal(t, "Organic Search", rec.Channel)
	assert.JSONEq(t, `{"device_category":"mobile"}`, rec.Properties)

	_, err = NewRecord(pipeline.Row{domain.ColSessionID: int64(1)})
	assert.Error(t, err)
}

func TestSortColumns(t *testing.T) {
	assert.Equal(t, []string{"date", "session_id"}, SortColumns(nil))
	assert.Equal(t, []string{"channel", "date", "session_id"}, SortColumns([]string{"channel", "unknown", "channel"}))
	assert.Equal(t, []string{"session_id", "date"}, SortColumns([]string{"session_id"}))
}

func TestSink_Local(t *testing.T) {
	dir := t.TempDir()
	sink := NewLocalSink(dir, 0, zap.NewNop())
	table := sessions.Table{Schema: "staging", Name: "sessions"}

	rel := pipeline.Relation{
		sessionRow(day(2024, 3, 2), 3, "Direct"),
		sessionRow(day(2024, 3, 1), 2, "Paid Search"),
		sessionRow(day(2024, 3, 1), 1, "Organic Search"),
		{domain.ColSessionID: int64(9)},
	}

	written, err := sink.WriteSessions(context.Background(), table, rel)
	require.NoError(t, err)
	assert.Equal(t, 3, written)

	b, err := os.ReadFile(filepath.Join(dir, "staging", "sessions", "date=2024-03-01", "sessions.parquet"))
	require.NoError(t, err)
	records := readRecords(t, b)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].SessionID)
	assert.Equal(t, int64(2), records[1].SessionID)
	assert.Equal(t, "Paid Search", records[1].Channel)

	_, err = os.Stat(filepath.Join(dir, "staging", "sessions", "date=2024-03-02", "sessions.parquet"))
	assert.NoError(t, err)

	// a rerun replaces the partition
	written, err = sink.WriteSessions(context.Background(), table, pipeline.Relation{sessionRow(day(2024, 3, 1), 5, "Referral")})
	require.NoError(t, err)
	assert.Equal(t, 1, written)
	b, err = os.ReadFile(filepath.Join(dir, "staging", "sessions", "date=2024-03-01", "sessions.parquet"))
	require.NoError(t, err)
	records = readRecords(t, b)
	require.Len(t, records, 1)
	assert.Equal(t, int64(5), records[0].SessionID)
}

func TestSink_S3(t *testing.T) {
	putter := new(MockObjectPutter)
	putter.On("PutObject", "exports", "ga4/staging/sessions/date=2024-03-01/sessions.parquet").
		Return(&s3.PutObjectOutput{}, nil)

	sink := NewS3Sink(putter, "exports", "/ga4/", 100, zap.NewNop())
	written, err := sink.WriteSessions(context.Background(),
		sessions.Table{Schema: "staging", Name: "sessions"},
		pipeline.Relation{sessionRow(day(2024, 3, 1), 1, "Direct")})

	require.NoError(t, err)
	assert.Equal(t, 1, written)
	putter.AssertExpectations(t)

	records := readRecords(t, putter.bodies["ga4/staging/sessions/date=2024-03-01/sessions.parquet"])
	require.Len(t, records, 1)
	assert.Equal(t, "Direct", records[0].Channel)
}

func TestSink_InvalidTable(t *testing.T) {
	sink := NewLocalSink(t.TempDir(), 0, zap.NewNop())
	_, err := sink.WriteSessions(context.Background(), sessions.Table{Name: "../escape"}, nil)
	assert.Error(t, err)
}
