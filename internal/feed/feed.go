// Package feed orchestrates the aggregator, the ranked timeline store
// and the activity payload store into user facing feeds. One feed type
// serves every backend; backend selection is composition at wiring time.
package feed

import (
	"context"
	"errors"
	"fmt"

	"github.com/yungbote/feedstream-backend/internal/aggregate"
	"github.com/yungbote/feedstream-backend/internal/codec"
	"github.com/yungbote/feedstream-backend/internal/logger"
	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/store"
	"github.com/yungbote/feedstream-backend/internal/types"
)

const (
	// DefaultMaxLength is the hard trim bound for aggregated feeds.
	DefaultMaxLength = 100
	// DefaultMergeMaxLength bounds how much stored state every merge
	// re-examines.
	DefaultMergeMaxLength = 20
)

// End re-exports the unbounded slice stop for callers of GetResults.
const End = store.End

type Config struct {
	Log           *logger.Logger
	Key           string
	Timeline      store.TimelineStore
	Activities    store.ActivityStore
	Aggregator    aggregate.Aggregator
	Codec         codec.TimelineCodec
	ActivityCodec codec.ActivityCodec

	MaxLength      int
	MergeMaxLength int
}

// AggregatedFeed keeps incrementally merged aggregated activities in a
// ranked timeline, dehydrated; member payloads live in the shared
// activity store and are attached on read.
type AggregatedFeed struct {
	log           *logger.Logger
	key           string
	timeline      store.TimelineStore
	activities    store.ActivityStore
	agg           aggregate.Aggregator
	codec         codec.TimelineCodec
	activityCodec codec.ActivityCodec

	maxLength      int
	mergeMaxLength int
}

func NewAggregatedFeed(cfg Config) (*AggregatedFeed, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("%w: feed key required", pkgerrors.ErrInvalidArgument)
	}
	if cfg.Timeline == nil || cfg.Activities == nil {
		return nil, fmt.Errorf("%w: timeline and activity stores required", pkgerrors.ErrInvalidArgument)
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewNop()
	}
	if cfg.Aggregator == nil {
		cfg.Aggregator = aggregate.NewRecentVerb()
	}
	if cfg.Codec == nil {
		cfg.Codec = codec.JSONAggregatedCodec{}
	}
	if cfg.ActivityCodec == nil {
		cfg.ActivityCodec = codec.JSONActivityCodec{}
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultMaxLength
	}
	if cfg.MergeMaxLength <= 0 {
		cfg.MergeMaxLength = DefaultMergeMaxLength
	}
	return &AggregatedFeed{
		log:            cfg.Log.With("feed", cfg.Key),
		key:            cfg.Key,
		timeline:       cfg.Timeline,
		activities:     cfg.Activities,
		agg:            cfg.Aggregator,
		codec:          cfg.Codec,
		activityCodec:  cfg.ActivityCodec,
		maxLength:      cfg.MaxLength,
		mergeMaxLength: cfg.MergeMaxLength,
	}, nil
}

func (f *AggregatedFeed) Key() string    { return f.key }
func (f *AggregatedFeed) MaxLength() int { return f.maxLength }

// AddMany aggregates the activities, merges them against the stored
// window and writes the diff back: removals first, then additions, then
// a trim. Returns the post-merge representation of every touched group.
func (f *AggregatedFeed) AddMany(ctx context.Context, activities []*types.Activity) ([]*types.AggregatedActivity, error) {
	if len(activities) == 0 {
		return nil, nil
	}
	for _, a := range activities {
		if err := a.Validate(); err != nil {
			return nil, err
		}
	}
	if err := f.InsertActivities(ctx, activities); err != nil {
		return nil, err
	}

	groups, err := f.agg.Aggregate(activities)
	if err != nil {
		return nil, err
	}
	current, err := f.GetResults(ctx, 0, f.mergeMaxLength)
	if err != nil {
		return nil, err
	}
	res, err := f.agg.Merge(current, groups)
	if err != nil {
		return nil, err
	}
	if err := f.updateFromDiff(ctx, res); err != nil {
		return nil, err
	}
	if err := f.timeline.Trim(ctx, f.key, f.maxLength); err != nil {
		return nil, err
	}
	return res.News(), nil
}

// RemoveMany strips the given activities from whatever stored groups
// hold them. Groups left without members are deleted from the timeline;
// their payloads stay in the activity store, other feeds may still
// reference them.
func (f *AggregatedFeed) RemoveMany(ctx context.Context, serializationIDs []string) ([]*types.AggregatedActivity, error) {
	if len(serializationIDs) == 0 {
		return nil, nil
	}
	if err := f.timeline.Trim(ctx, f.key, f.maxLength); err != nil {
		return nil, err
	}
	current, err := f.GetResults(ctx, 0, f.maxLength)
	if err != nil {
		return nil, err
	}

	remove := make(map[string]struct{}, len(serializationIDs))
	for _, id := range serializationIDs {
		remove[id] = struct{}{}
	}

	var res aggregate.MergeResult
	for _, g := range current {
		var hits []string
		for _, id := range g.MemberIDs() {
			if _, ok := remove[id]; ok {
				hits = append(hits, id)
			}
		}
		if len(hits) == 0 {
			continue
		}
		if len(hits) == len(g.MemberIDs()) {
			res.Deleted = append(res.Deleted, g)
			continue
		}
		next := g.Clone()
		for _, id := range hits {
			if err := next.Remove(id); err != nil && !errors.Is(err, pkgerrors.ErrActivityNotFound) {
				return nil, err
			}
		}
		res.Changed = append(res.Changed, aggregate.Change{Old: g, New: next})
	}

	if err := f.updateFromDiff(ctx, res); err != nil {
		return nil, err
	}
	return res.News(), nil
}

// GetResults returns the [start, stop) window of aggregated activities,
// hydrated. stop may be End. Negative bounds are rejected.
func (f *AggregatedFeed) GetResults(ctx context.Context, start, stop int) ([]*types.AggregatedActivity, error) {
	if err := store.ValidateRange(start, stop); err != nil {
		return nil, err
	}
	entries, err := f.timeline.GetSlice(ctx, f.key, start, stop)
	if err != nil {
		return nil, err
	}
	groups := make([]*types.AggregatedActivity, 0, len(entries))
	for _, e := range entries {
		g, err := f.codec.UnmarshalAggregated(e.Member)
		if err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	if err := f.hydrate(ctx, groups); err != nil {
		return nil, err
	}
	return groups, nil
}

// Contains reports whether an activity with the same verb, actor,
// object and target tuple is a member of any stored group.
func (f *AggregatedFeed) Contains(ctx context.Context, a *types.Activity) (bool, error) {
	groups, err := f.GetResults(ctx, 0, f.maxLength)
	if err != nil {
		return false, err
	}
	for _, g := range groups {
		for _, member := range g.Activities {
			if member.VerbID == a.VerbID &&
				member.ActorID == a.ActorID &&
				member.ObjectID == a.ObjectID &&
				member.TargetID == a.TargetID {
				return true, nil
			}
		}
	}
	return false, nil
}

func (f *AggregatedFeed) Count(ctx context.Context) (int, error) {
	return f.timeline.Count(ctx, f.key)
}

func (f *AggregatedFeed) Trim(ctx context.Context) error {
	return f.timeline.Trim(ctx, f.key, f.maxLength)
}

func (f *AggregatedFeed) Delete(ctx context.Context) error {
	return f.timeline.Delete(ctx, f.key)
}

// IndexOf returns the rank of the group's stored representation, or a
// wrapped ErrNotFound.
func (f *AggregatedFeed) IndexOf(ctx context.Context, g *types.AggregatedActivity) (int, error) {
	member, err := f.memberBytes(g)
	if err != nil {
		return 0, err
	}
	return f.timeline.IndexOf(ctx, f.key, member)
}

// InsertActivities stores the member payloads. Payloads are shared
// across feeds and never garbage collected here.
func (f *AggregatedFeed) InsertActivities(ctx context.Context, activities []*types.Activity) error {
	payloads := make(map[string][]byte, len(activities))
	for _, a := range activities {
		raw, err := f.activityCodec.Marshal(a)
		if err != nil {
			return err
		}
		payloads[a.SerializationID()] = raw
	}
	return f.activities.AddMany(ctx, payloads)
}

// updateFromDiff turns a merge diff into timeline writes. Removals go
// first so a concurrent reader never sees two representations of the
// same logical group for longer than necessary.
func (f *AggregatedFeed) updateFromDiff(ctx context.Context, res aggregate.MergeResult) error {
	var toRemove [][]byte
	for _, c := range res.Changed {
		member, err := f.memberBytes(c.Old)
		if err != nil {
			return err
		}
		toRemove = append(toRemove, member)
	}
	for _, g := range res.Deleted {
		member, err := f.memberBytes(g)
		if err != nil {
			return err
		}
		toRemove = append(toRemove, member)
	}

	toAdd := make([]store.ScoredEntry, 0, len(res.Added)+len(res.Changed))
	for _, g := range res.Added {
		entry, err := f.entryFor(g)
		if err != nil {
			return err
		}
		toAdd = append(toAdd, entry)
	}
	for _, c := range res.Changed {
		entry, err := f.entryFor(c.New)
		if err != nil {
			return err
		}
		toAdd = append(toAdd, entry)
	}

	if len(toRemove) > 0 {
		if err := f.timeline.RemoveMany(ctx, f.key, toRemove); err != nil {
			return err
		}
	}
	if len(toAdd) > 0 {
		if err := f.timeline.AddMany(ctx, f.key, toAdd); err != nil {
			return err
		}
	}
	f.log.Debug("updated from diff",
		"added", len(res.Added), "changed", len(res.Changed), "deleted", len(res.Deleted))
	return nil
}

// memberBytes prefers the representation a group was loaded with, so
// removals always target the exact persisted bytes.
func (f *AggregatedFeed) memberBytes(g *types.AggregatedActivity) ([]byte, error) {
	if raw := g.Raw(); raw != nil {
		return raw, nil
	}
	return f.codec.MarshalAggregated(g)
}

func (f *AggregatedFeed) entryFor(g *types.AggregatedActivity) (store.ScoredEntry, error) {
	member, err := f.codec.MarshalAggregated(g)
	if err != nil {
		return store.ScoredEntry{}, err
	}
	return store.ScoredEntry{Score: g.Score(), Member: member}, nil
}

func (f *AggregatedFeed) hydrate(ctx context.Context, groups []*types.AggregatedActivity) error {
	idSet := make(map[string]struct{})
	var ids []string
	for _, g := range groups {
		if !g.Dehydrated {
			continue
		}
		for _, id := range g.ActivityIDs {
			if _, ok := idSet[id]; !ok {
				idSet[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}
	payloads, err := f.activities.GetMany(ctx, ids)
	if err != nil {
		return err
	}
	lookup := make(map[string]*types.Activity, len(payloads))
	for id, raw := range payloads {
		a, err := f.activityCodec.Unmarshal(raw)
		if err != nil {
			return err
		}
		lookup[id] = a
	}
	// ids absent from the store are silently omitted; the hydrated
	// member count may drop below ActivityCount
	for _, g := range groups {
		g.Hydrate(lookup)
	}
	return nil
}
