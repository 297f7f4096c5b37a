package lookback

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Dminor7/ga4bigquery/internal/pipeline"
)

var day0 = time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC)

func session(user string, id int64, day int, source, medium, ch string) pipeline.Row {
	date := day0.AddDate(0, 0, day-1)
	return pipeline.Row{
		"user_pseudo_id": user,
		"session_id":     id,
		"date":           date,
		"session_start":  date.Add(9 * time.Hour),
		"source":         source,
		"medium":         medium,
		"campaign":       "(not set)",
		"channel":        ch,
	}
}

func direct(user string, id int64, day int) pipeline.Row {
	return session(user, id, day, "(direct)", "(none)", "Direct")
}

func TestResolve_WindowAndOriginalChannelPolicy(t *testing.T) {
	sessions := pipeline.Relation{
		session("u", 1, 1, "google", "organic", "Organic Search"),
		direct("u", 2, 10),
		direct("u", 3, 50),
	}

	res, err := Resolve(context.Background(), sessions, Options{WindowDays: 30})
	require.NoError(t, err)
	out := res.Sessions

	assert.Equal(t, "Organic Search", out[1]["channel"])
	assert.Equal(t, "google", out[1]["source"])
	assert.Equal(t, "organic", out[1]["medium"])
	assert.Equal(t, int64(2), out[1]["session_id"], "identity is preserved")
	assert.Equal(t, day0.AddDate(0, 0, 9), out[1]["date"], "timing is preserved")

	// day 1 is out of range and day 10 was originally Direct
	assert.Equal(t, "Direct", out[2]["channel"])
	assert.Equal(t, "(direct)", out[2]["source"])
	assert.Equal(t, 1, res.Reattributed)
}

func TestResolve_ChainOfDirectSessionsUsesOriginalTouch(t *testing.T) {
	sessions := pipeline.Relation{
		session("u", 1, 1, "newsletter", "email", "Email"),
		direct("u", 2, 10),
		direct("u", 3, 35),
	}

	res, err := Resolve(context.Background(), sessions, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Email", res.Sessions[1]["channel"])
	assert.Equal(t, "Direct", res.Sessions[2]["channel"], "day 35 is 34 days after the only real touch")
}

func TestResolve_WindowBoundaryIsInclusive(t *testing.T) {
	sessions := pipeline.Relation{
		session("u", 1, 1, "bing", "organic", "Organic Search"),
		direct("u", 2, 31),
		direct("u", 3, 32),
	}

	res, err := Resolve(context.Background(), sessions, Options{WindowDays: 30})
	require.NoError(t, err)

	assert.Equal(t, "Organic Search", res.Sessions[1]["channel"])
	assert.Equal(t, "Direct", res.Sessions[2]["channel"])
}

func TestResolve_PicksMostRecentTouch(t *testing.T) {
	sessions := pipeline.Relation{
		direct("u", 4, 6),
		session("u", 2, 5, "facebook", "cpc", "Paid Social"),
		session("u", 1, 1, "google", "organic", "Organic Search"),
	}

	res, err := Resolve(context.Background(), sessions, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Paid Social", res.Sessions[0]["channel"])
	assert.Equal(t, "cpc", res.Sessions[0]["medium"])
}

func TestResolve_SameStartBreaksBySessionID(t *testing.T) {
	a := session("u", 10, 1, "google", "organic", "Organic Search")
	b := session("u", 20, 1, "facebook", "referral", "Organic Social")
	c := direct("u", 30, 1)

	res, err := Resolve(context.Background(), pipeline.Relation{c, b, a}, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Organic Social", res.Sessions[0]["channel"])
}

func TestResolve_UsersAreIndependent(t *testing.T) {
	sessions := pipeline.Relation{
		session("a", 1, 1, "google", "organic", "Organic Search"),
		direct("b", 2, 2),
		direct("a", 3, 3),
	}

	res, err := Resolve(context.Background(), sessions, Options{Parallelism: 2})
	require.NoError(t, err)

	assert.Equal(t, "Direct", res.Sessions[1]["channel"])
	assert.Equal(t, "Organic Search", res.Sessions[2]["channel"])
	assert.Equal(t, "b", res.Sessions[1]["user_pseudo_id"], "output order matches input")
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	sessions := pipeline.Relation{
		session("u", 1, 1, "google", "organic", "Organic Search"),
		direct("u", 2, 2),
	}

	_, err := Resolve(context.Background(), sessions, Options{})
	require.NoError(t, err)

	assert.Equal(t, "Direct", sessions[1]["channel"])
}

func TestResolve_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Resolve(ctx, pipeline.Relation{direct("u", 1, 1)}, Options{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsDirect(t *testing.T) {
	assert.True(t, IsDirect(direct("u", 1, 1)))
	assert.True(t, IsDirect(pipeline.Row{"source": "(direct)", "medium": "(not set)"}))
	assert.False(t, IsDirect(session("u", 1, 1, "google", "organic", "Organic Search")))
	assert.False(t, IsDirect(pipeline.Row{}))
}
