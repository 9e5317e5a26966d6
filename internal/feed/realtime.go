package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/feedstream-backend/internal/aggregate"
	"github.com/yungbote/feedstream-backend/internal/logger"
	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/store"
	"github.com/yungbote/feedstream-backend/internal/types"
)

const (
	DefaultPrefetchRatio    = 3
	DefaultMaxReadAttempts  = 3
	DefaultRealtimeReadSize = 100
)

type RealtimeConfig struct {
	Log        *logger.Logger
	Source     *FlatFeed
	Aggregator aggregate.Aggregator

	PrefetchRatio    int
	MaxReadAttempts  int
	DefaultReadLimit int
}

// RealtimeAggregatedFeed aggregates a flat source feed at read time and
// never persists aggregated state. It is read-only by construction:
// the type simply has no write operations.
type RealtimeAggregatedFeed struct {
	log    *logger.Logger
	source *FlatFeed
	agg    aggregate.Aggregator

	prefetchRatio    int
	maxReadAttempts  int
	defaultReadLimit int
}

func NewRealtimeAggregatedFeed(cfg RealtimeConfig) (*RealtimeAggregatedFeed, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("%w: source feed required", pkgerrors.ErrInvalidArgument)
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewNop()
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = aggregate.NewRecentVerb()
	}
	if cfg.PrefetchRatio <= 0 {
		cfg.PrefetchRatio = DefaultPrefetchRatio
	}
	if cfg.MaxReadAttempts <= 0 {
		cfg.MaxReadAttempts = DefaultMaxReadAttempts
	}
	if cfg.DefaultReadLimit <= 0 {
		cfg.DefaultReadLimit = DefaultRealtimeReadSize
	}
	return &RealtimeAggregatedFeed{
		log:              cfg.Log.With("feed", cfg.Source.Key()).With("mode", "realtime"),
		source:           cfg.Source,
		agg:              cfg.Aggregator,
		prefetchRatio:    cfg.PrefetchRatio,
		maxReadAttempts:  cfg.MaxReadAttempts,
		defaultReadLimit: cfg.DefaultReadLimit,
	}, nil
}

// Filter returns a clone whose source feed additionally applies pred.
func (f *RealtimeAggregatedFeed) Filter(pred func(*types.Activity) bool) *RealtimeAggregatedFeed {
	clone := *f
	clone.source = f.source.WithFilter(pred)
	return &clone
}

// GetActivitySlice aggregates the most recent source activities into at
// most `stop` groups. Only start 0 is supported: an aggregated offset is
// undefined when group membership depends on how far the source was
// read. stop may be End.
//
// The read window widens geometrically (prefetch ratio) until enough
// groups accumulated, the source is exhausted or the attempt cap is hit.
// A short read is treated as source exhaustion; near the end of a
// filtered source this can under-fetch. Known approximation, kept.
func (f *RealtimeAggregatedFeed) GetActivitySlice(ctx context.Context, start, stop int) ([]*types.AggregatedActivity, error) {
	if start != 0 {
		return nil, fmt.Errorf("%w: realtime feeds do not support offset slicing (start %d)", pkgerrors.ErrInvalidArgument, start)
	}
	if err := store.ValidateRange(start, stop); err != nil {
		return nil, err
	}
	requestSize := f.defaultReadLimit
	if stop != store.End {
		requestSize = stop
	}
	if requestSize == 0 {
		return nil, nil
	}

	prefetchSize := requestSize * f.prefetchRatio
	pStart, pStop := 0, requestSize

	var (
		results   []*types.AggregatedActivity
		exhausted bool
		oldest    time.Time
	)
	for attempts := 0; attempts < f.maxReadAttempts && len(results) < requestSize; attempts++ {
		pStop += prefetchSize
		window, err := f.source.GetActivitySlice(ctx, pStart, pStop)
		if err != nil {
			return nil, err
		}
		if len(window) > 0 {
			last := window[len(window)-1].Time
			if oldest.IsZero() || last.Before(oldest) {
				oldest = last
			}
		}
		groups, err := f.agg.Aggregate(window)
		if err != nil {
			return nil, err
		}
		merged, err := f.agg.Merge(results, groups)
		if err != nil {
			return nil, err
		}
		results = applyMerge(results, merged)
		if len(window) < pStop-pStart {
			exhausted = true
			break
		}
		pStart = pStop
	}

	aggregate.Rank(results)
	selected := results
	var excluded []*types.AggregatedActivity
	if len(results) > requestSize {
		selected = results[:requestSize]
		excluded = results[requestSize:]
	}
	return fixAggregationSlice(selected, excluded, exhausted, oldest), nil
}

// applyMerge folds a merge diff back into the accumulated result set.
func applyMerge(results []*types.AggregatedActivity, res aggregate.MergeResult) []*types.AggregatedActivity {
	replaced := make(map[string]*types.AggregatedActivity, len(res.Changed))
	for _, c := range res.Changed {
		replaced[c.New.Group] = c.New
	}
	for i, g := range results {
		if next, ok := replaced[g.Group]; ok {
			results[i] = next
		}
	}
	return append(results, res.Added...)
}

// fixAggregationSlice corrects the window boundary: a selected group may
// contain members older than activities that were cut off, which would
// present a partially aggregated group as complete. Members older than
// the newest excluded activity are stripped; a group losing all members
// is dropped.
func fixAggregationSlice(selected, excluded []*types.AggregatedActivity, exhausted bool, oldestFetched time.Time) []*types.AggregatedActivity {
	var boundary time.Time
	switch {
	case len(excluded) > 0:
		// excluded groups are ranked below the selection; the newest
		// activity among them is the first one's recency
		boundary = excluded[0].UpdatedAt
	case !exhausted && !oldestFetched.IsZero():
		// attempt cap hit: everything below the oldest fetched activity
		// is unknown territory
		boundary = oldestFetched
	default:
		return selected
	}

	out := make([]*types.AggregatedActivity, 0, len(selected))
	for _, g := range selected {
		var stale []string
		for _, member := range g.Activities {
			if member.Time.Before(boundary) {
				stale = append(stale, member.SerializationID())
			}
		}
		if len(stale) == 0 {
			out = append(out, g)
			continue
		}
		if len(stale) == len(g.Activities) {
			// the whole group sits below the boundary; showing it would
			// present a partial aggregation as complete
			continue
		}
		kept := g.Clone()
		for _, id := range stale {
			_ = kept.Remove(id)
		}
		// the stripped members are not gone, just unaccounted; the count
		// must not claim them
		kept.MinimizedCount = 0
		out = append(out, kept)
	}
	return out
}
