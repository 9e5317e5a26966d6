package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/feedstream-backend/internal/aggregate"
	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/realtime"
	"github.com/yungbote/feedstream-backend/internal/realtime/bus"
	"github.com/yungbote/feedstream-backend/internal/store"
	"github.com/yungbote/feedstream-backend/internal/types"
)

const (
	// DefaultNotificationMaxLength keeps notification feeds small; the
	// denormalized count rescans this window on every write.
	DefaultNotificationMaxLength = 99
	// DefaultLockTTL bounds the write lock held across add-and-recount.
	DefaultLockTTL = 2 * time.Second
	// DefaultMarkLockTTL bounds the lock held across a full mark pass.
	DefaultMarkLockTTL = 10 * time.Second
)

type NotificationConfig struct {
	Feed Config

	OwnerID string
	Locker  store.Locker
	Counts  store.CountStore
	Bus     bus.Bus

	LockTTL     time.Duration
	MarkLockTTL time.Duration

	// ReadImpliesSeen, when set, makes marking a group read also mark it
	// seen. The stored shape allows read-without-seen; whether that is a
	// defect is the caller's call, so it stays a policy knob.
	ReadImpliesSeen bool
}

// NotificationFeed is an aggregated feed that additionally tracks a
// denormalized unseen count, guards its read-modify-write cycles with a
// per-feed lock and publishes count changes on a pub/sub channel.
//
// Readers never take the lock; they may observe the previous or the new
// representation of a changed group, bounded by the next write.
type NotificationFeed struct {
	*AggregatedFeed

	ownerID string
	locker  store.Locker
	counts  store.CountStore
	bus     bus.Bus

	lockTTL         time.Duration
	markLockTTL     time.Duration
	readImpliesSeen bool

	countKey string
	lockKey  string
}

func NewNotificationFeed(cfg NotificationConfig) (*NotificationFeed, error) {
	if cfg.Locker == nil || cfg.Counts == nil {
		return nil, fmt.Errorf("%w: locker and count store required", pkgerrors.ErrInvalidArgument)
	}
	if cfg.Feed.Aggregator == nil {
		cfg.Feed.Aggregator = aggregate.NewNotification()
	}
	if cfg.Feed.MaxLength <= 0 {
		cfg.Feed.MaxLength = DefaultNotificationMaxLength
	}
	inner, err := NewAggregatedFeed(cfg.Feed)
	if err != nil {
		return nil, err
	}
	if cfg.Bus == nil {
		cfg.Bus = bus.NopBus{}
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.MarkLockTTL <= 0 {
		cfg.MarkLockTTL = DefaultMarkLockTTL
	}
	if cfg.OwnerID == "" {
		cfg.OwnerID = cfg.Feed.Key
	}
	return &NotificationFeed{
		AggregatedFeed:  inner,
		ownerID:         cfg.OwnerID,
		locker:          cfg.Locker,
		counts:          cfg.Counts,
		bus:             cfg.Bus,
		lockTTL:         cfg.LockTTL,
		markLockTTL:     cfg.MarkLockTTL,
		readImpliesSeen: cfg.ReadImpliesSeen,
		countKey:        cfg.Feed.Key + ":count",
		lockKey:         cfg.Feed.Key + ":lock",
	}, nil
}

// AddMany is Feed.AddMany plus a recount of the denormalized unseen
// value, all inside the per-feed lock.
func (f *NotificationFeed) AddMany(ctx context.Context, activities []*types.Activity) ([]*types.AggregatedActivity, error) {
	release, err := f.locker.Acquire(ctx, f.lockKey, f.lockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	result, err := f.AggregatedFeed.AddMany(ctx, activities)
	if err != nil {
		return nil, err
	}
	if err := f.denormalizeCounts(ctx); err != nil {
		return nil, err
	}
	return result, nil
}

// MarkAll moves every stored group into the requested seen/read state,
// rewriting changed groups with the usual remove-then-add pattern, then
// recounts. Already-converged groups are untouched.
func (f *NotificationFeed) MarkAll(ctx context.Context, seen, read bool) ([]*types.AggregatedActivity, error) {
	release, err := f.locker.Acquire(ctx, f.lockKey, f.markLockTTL)
	if err != nil {
		return nil, err
	}
	defer release()

	groups, err := f.GetResults(ctx, 0, f.maxLength)
	if err != nil {
		return nil, err
	}

	var res aggregate.MergeResult
	out := make([]*types.AggregatedActivity, 0, len(groups))
	for _, g := range groups {
		next, changed := f.markGroup(g, seen, read)
		out = append(out, next)
		if changed {
			res.Changed = append(res.Changed, aggregate.Change{Old: g, New: next})
		}
	}
	if err := f.updateFromDiff(ctx, res); err != nil {
		return nil, err
	}
	if err := f.denormalizeCounts(ctx); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkActivity marks the single group identified by its group key.
func (f *NotificationFeed) MarkActivity(ctx context.Context, groupKey string, seen, read bool) error {
	release, err := f.locker.Acquire(ctx, f.lockKey, f.lockTTL)
	if err != nil {
		return err
	}
	defer release()

	groups, err := f.GetResults(ctx, 0, f.maxLength)
	if err != nil {
		return err
	}
	var res aggregate.MergeResult
	for _, g := range groups {
		if g.Group != groupKey {
			continue
		}
		next, changed := f.markGroup(g, seen, read)
		if changed {
			res.Changed = append(res.Changed, aggregate.Change{Old: g, New: next})
		}
		break
	}
	if err := f.updateFromDiff(ctx, res); err != nil {
		return err
	}
	return f.denormalizeCounts(ctx)
}

func (f *NotificationFeed) markGroup(g *types.AggregatedActivity, seen, read bool) (*types.AggregatedActivity, bool) {
	next := g.Clone()
	changed := false
	if seen && !next.IsSeen() {
		next.MarkSeen()
		changed = true
	}
	if read && !next.IsRead() {
		next.MarkRead()
		if f.readImpliesSeen && !next.IsSeen() {
			next.MarkSeen()
		}
		changed = true
	}
	return next, changed
}

// CountUnseen scans the stored window; the denormalized value exists so
// callers normally do not have to.
func (f *NotificationFeed) CountUnseen(ctx context.Context) (int, error) {
	unseen, _, err := f.scanCounts(ctx)
	return unseen, err
}

func (f *NotificationFeed) CountUnread(ctx context.Context) (int, error) {
	_, unread, err := f.scanCounts(ctx)
	return unread, err
}

// DenormalizedCount returns the stored unseen counter without scanning.
func (f *NotificationFeed) DenormalizedCount(ctx context.Context) (int, error) {
	return f.counts.Get(ctx, f.countKey)
}

func (f *NotificationFeed) scanCounts(ctx context.Context) (unseen, unread int, err error) {
	groups, err := f.GetResults(ctx, 0, f.maxLength)
	if err != nil {
		return 0, 0, err
	}
	for _, g := range groups {
		if !g.IsSeen() {
			unseen++
		}
		if !g.IsRead() {
			unread++
		}
	}
	return unseen, unread, nil
}

// denormalizeCounts persists the fresh unseen count and publishes a
// change event, but only when the count actually moved. Publish
// failures are logged, not propagated: the channel is best-effort.
func (f *NotificationFeed) denormalizeCounts(ctx context.Context) error {
	unseen, unread, err := f.scanCounts(ctx)
	if err != nil {
		return err
	}
	stored, err := f.counts.Get(ctx, f.countKey)
	if err != nil {
		return err
	}
	if stored == unseen {
		return nil
	}
	if err := f.counts.Set(ctx, f.countKey, unseen); err != nil {
		return err
	}
	msg := realtime.NotificationMessage{
		Target:      f.ownerID,
		UnreadCount: unread,
		UnseenCount: unseen,
	}
	if err := f.bus.Publish(ctx, msg); err != nil {
		f.log.Warn("notification publish failed", "error", err)
	}
	return nil
}
