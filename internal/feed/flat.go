package feed

import (
	"context"
	"fmt"

	"github.com/yungbote/feedstream-backend/internal/codec"
	"github.com/yungbote/feedstream-backend/internal/logger"
	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/store"
	"github.com/yungbote/feedstream-backend/internal/types"
)

// DefaultFlatMaxLength is deliberately large: flat feeds are the raw
// per-user archives aggregated views read from.
const DefaultFlatMaxLength = 1000

type FlatConfig struct {
	Log           *logger.Logger
	Key           string
	Timeline      store.TimelineStore
	Activities    store.ActivityStore
	ActivityCodec codec.ActivityCodec
	MaxLength     int
}

// FlatFeed is a sparse, non-aggregated feed: each timeline entry is just
// an activity reference ranked by recency. It is both the fan-out write
// target and the realtime aggregated feed's source.
type FlatFeed struct {
	log           *logger.Logger
	key           string
	timeline      store.TimelineStore
	activities    store.ActivityStore
	activityCodec codec.ActivityCodec
	maxLength     int

	// filter is an additive read predicate; nil passes everything.
	filter func(*types.Activity) bool
}

func NewFlatFeed(cfg FlatConfig) (*FlatFeed, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("%w: feed key required", pkgerrors.ErrInvalidArgument)
	}
	if cfg.Timeline == nil || cfg.Activities == nil {
		return nil, fmt.Errorf("%w: timeline and activity stores required", pkgerrors.ErrInvalidArgument)
	}
	if cfg.Log == nil {
		cfg.Log = logger.NewNop()
	}
	if cfg.ActivityCodec == nil {
		cfg.ActivityCodec = codec.JSONActivityCodec{}
	}
	if cfg.MaxLength <= 0 {
		cfg.MaxLength = DefaultFlatMaxLength
	}
	return &FlatFeed{
		log:           cfg.Log.With("feed", cfg.Key),
		key:           cfg.Key,
		timeline:      cfg.Timeline,
		activities:    cfg.Activities,
		activityCodec: cfg.ActivityCodec,
		maxLength:     cfg.MaxLength,
	}, nil
}

func (f *FlatFeed) Key() string { return f.key }

// WithFilter returns a clone whose reads additionally pass pred.
// Filters stack: the clone keeps whatever predicate was already set.
func (f *FlatFeed) WithFilter(pred func(*types.Activity) bool) *FlatFeed {
	clone := *f
	if existing := f.filter; existing != nil && pred != nil {
		clone.filter = func(a *types.Activity) bool {
			return existing(a) && pred(a)
		}
	} else if pred != nil {
		clone.filter = pred
	}
	return &clone
}

func (f *FlatFeed) AddMany(ctx context.Context, activities []*types.Activity) error {
	if len(activities) == 0 {
		return nil
	}
	payloads := make(map[string][]byte, len(activities))
	entries := make([]store.ScoredEntry, 0, len(activities))
	for _, a := range activities {
		if err := a.Validate(); err != nil {
			return err
		}
		raw, err := f.activityCodec.Marshal(a)
		if err != nil {
			return err
		}
		id := a.SerializationID()
		payloads[id] = raw
		entries = append(entries, store.ScoredEntry{Score: a.Score(), Member: codec.MemberID(id)})
	}
	if err := f.activities.AddMany(ctx, payloads); err != nil {
		return err
	}
	if err := f.timeline.AddMany(ctx, f.key, entries); err != nil {
		return err
	}
	return f.timeline.Trim(ctx, f.key, f.maxLength)
}

func (f *FlatFeed) RemoveMany(ctx context.Context, serializationIDs []string) error {
	if len(serializationIDs) == 0 {
		return nil
	}
	members := make([][]byte, 0, len(serializationIDs))
	for _, id := range serializationIDs {
		members = append(members, codec.MemberID(id))
	}
	return f.timeline.RemoveMany(ctx, f.key, members)
}

// GetActivitySlice returns the [start, stop) window of activities,
// hydrated and filtered. References whose payload has been lost are
// skipped.
func (f *FlatFeed) GetActivitySlice(ctx context.Context, start, stop int) ([]*types.Activity, error) {
	if err := store.ValidateRange(start, stop); err != nil {
		return nil, err
	}
	entries, err := f.timeline.GetSlice(ctx, f.key, start, stop)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, codec.DecodeMemberID(e.Member))
	}
	payloads, err := f.activities.GetMany(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]*types.Activity, 0, len(entries))
	for _, id := range ids {
		raw, ok := payloads[id]
		if !ok {
			continue
		}
		a, err := f.activityCodec.Unmarshal(raw)
		if err != nil {
			return nil, err
		}
		if f.filter != nil && !f.filter(a) {
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

func (f *FlatFeed) Count(ctx context.Context) (int, error) {
	return f.timeline.Count(ctx, f.key)
}

func (f *FlatFeed) Delete(ctx context.Context) error {
	return f.timeline.Delete(ctx, f.key)
}
