// Package lookback re-attributes Direct sessions to the user's most recent
// non-direct session within a trailing day window.
package lookback

import (
	"context"
	"runtime"
	"sort"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Dminor7/ga4bigquery/internal/attribution"
	"github.com/Dminor7/ga4bigquery/internal/channel"
	"github.com/Dminor7/ga4bigquery/internal/domain"
	"github.com/Dminor7/ga4bigquery/internal/pipeline"
)

const DefaultWindowDays = 30

// Columns copied from the selected touch onto a Direct session
var attributionColumns = []string{
	domain.ColSource,
	domain.ColMedium,
	domain.ColCampaign,
	domain.ColChannel,
}

// Options tunes a resolution
type Options struct {
	// WindowDays bounds how many calendar days back a candidate may be.
	// Values <= 0 use DefaultWindowDays.
	WindowDays int
	// Parallelism caps concurrently processed users. Values <= 0 use GOMAXPROCS.
	Parallelism int
}

// Result is the resolved relation plus the number of re-attributed sessions
type Result struct {
	Sessions     pipeline.Relation
	Reattributed int
}

// Resolve returns a copy of sessions where every Direct session takes the
// source, medium, campaign and channel of the same user's latest earlier
// non-direct session whose date is at most WindowDays before its own.
//
// Candidates are judged by their original attribution, so a Direct session
// that was itself re-attributed never serves as a touch for a later one.
// Sessions are ordered per user by session_start then session_id; output
// order matches input order.
func Resolve(ctx context.Context, sessions pipeline.Relation, opts Options) (*Result, error) {
	window := opts.WindowDays
	if window <= 0 {
		window = DefaultWindowDays
	}
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.GOMAXPROCS(0)
	}

	out := make(pipeline.Relation, len(sessions))
	var reattributed atomic.Int64

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	for _, shard := range shardByUser(sessions) {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			reattributed.Add(int64(resolveUser(sessions, shard, window, out)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return &Result{Sessions: out, Reattributed: int(reattributed.Load())}, nil
}

// shardByUser groups row indexes by user_pseudo_id in first-seen order.
func shardByUser(sessions pipeline.Relation) [][]int {
	byUser := make(map[string]int)
	var shards [][]int
	for i, row := range sessions {
		user, _ := row.String(domain.ColUserPseudoID)
		idx, ok := byUser[user]
		if !ok {
			idx = len(shards)
			byUser[user] = idx
			shards = append(shards, nil)
		}
		shards[idx] = append(shards[idx], i)
	}
	return shards
}

// resolveUser writes the resolved rows of one user into out at their input
// positions. Shards never share indexes.
func resolveUser(sessions pipeline.Relation, idx []int, window int, out pipeline.Relation) int {
	sort.SliceStable(idx, func(a, b int) bool {
		return before(sessions[idx[a]], sessions[idx[b]])
	})

	count := 0
	lastTouch := -1
	for _, i := range idx {
		row := sessions[i]
		if !IsDirect(row) {
			out[i] = row
			lastTouch = i
			continue
		}
		if lastTouch >= 0 && withinWindow(sessions[lastTouch], row, window) {
			resolved := row.Clone()
			for _, col := range attributionColumns {
				resolved[col] = sessions[lastTouch][col]
			}
			out[i] = resolved
			count++
			continue
		}
		out[i] = row
	}
	return count
}

// IsDirect reports whether the session's channel is Direct or its
// attribution is the direct default.
func IsDirect(row pipeline.Row) bool {
	if ch, ok := row.String(domain.ColChannel); ok && ch == string(channel.Direct) {
		return true
	}
	source, _ := row.String(domain.ColSource)
	medium, _ := row.String(domain.ColMedium)
	return source == attribution.DefaultSource &&
		(medium == attribution.DefaultMedium || medium == "(not set)")
}

func before(a, b pipeline.Row) bool {
	ta, tb := startOf(a), startOf(b)
	if !ta.Equal(tb) {
		return ta.Before(tb)
	}
	ia, _ := a.Int(domain.ColSessionID)
	ib, _ := b.Int(domain.ColSessionID)
	return ia < ib
}

func startOf(row pipeline.Row) time.Time {
	if t, ok := row.Time(domain.ColSessionStart); ok {
		return t
	}
	t, _ := row.Time(domain.ColDate)
	return t
}

// withinWindow compares civil dates, not elapsed hours.
func withinWindow(touch, current pipeline.Row, window int) bool {
	td, ok := touch.Time(domain.ColDate)
	if !ok {
		return false
	}
	cd, ok := current.Time(domain.ColDate)
	if !ok {
		return false
	}
	days := civilDays(cd) - civilDays(td)
	return days >= 0 && days <= window
}

func civilDays(t time.Time) int {
	y, m, d := t.Date()
	return int(time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Unix() / 86400)
}
