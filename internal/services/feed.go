package services

import (
	"context"
	"fmt"
	"time"

	"github.com/yungbote/feedstream-backend/internal/feed"
	"github.com/yungbote/feedstream-backend/internal/logger"
	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/realtime/bus"
	"github.com/yungbote/feedstream-backend/internal/store"
	"github.com/yungbote/feedstream-backend/internal/types"
)

// ActivityInput is the transport level shape of a new activity.
type ActivityInput struct {
	ActorID  int64             `json:"actor_id"`
	VerbID   int               `json:"verb_id"`
	ObjectID int64             `json:"object_id"`
	TargetID int64             `json:"target_id"`
	Time     time.Time         `json:"time"`
	Extra    map[string]string `json:"extra,omitempty"`
}

type NotificationCounts struct {
	Unseen       int `json:"unseen"`
	Unread       int `json:"unread"`
	Denormalized int `json:"denormalized"`
}

// Stores bundles the backend implementations a FeedService composes
// feeds from. Backend selection happens once, in main.
type Stores struct {
	Timeline   store.TimelineStore
	Activities store.ActivityStore
	Counts     store.CountStore
	Locker     store.Locker
	Bus        bus.Bus
}

type FeedService interface {
	// PublishActivities writes to the user's flat archive and merges
	// into their aggregated feed. Returns the touched groups.
	PublishActivities(ctx context.Context, userID string, inputs []ActivityInput) ([]*types.AggregatedActivity, error)
	RemoveActivities(ctx context.Context, userID string, serializationIDs []string) error
	GetAggregatedFeed(ctx context.Context, userID string, start, stop int) ([]*types.AggregatedActivity, error)
	GetRealtimeFeed(ctx context.Context, userID string, limit int) ([]*types.AggregatedActivity, error)

	AddNotifications(ctx context.Context, userID string, inputs []ActivityInput) ([]*types.AggregatedActivity, error)
	GetNotifications(ctx context.Context, userID string, start, stop int) ([]*types.AggregatedActivity, error)
	MarkNotifications(ctx context.Context, userID string, seen, read bool) error
	MarkNotificationGroup(ctx context.Context, userID, groupKey string, seen, read bool) error
	GetNotificationCounts(ctx context.Context, userID string) (NotificationCounts, error)
}

type feedService struct {
	log    *logger.Logger
	stores Stores

	readImpliesSeen bool
}

func NewFeedService(log *logger.Logger, stores Stores, readImpliesSeen bool) (FeedService, error) {
	if stores.Timeline == nil || stores.Activities == nil || stores.Counts == nil || stores.Locker == nil {
		return nil, fmt.Errorf("%w: incomplete store set", pkgerrors.ErrInvalidArgument)
	}
	if stores.Bus == nil {
		stores.Bus = bus.NopBus{}
	}
	return &feedService{
		log:             log.With("service", "FeedService"),
		stores:          stores,
		readImpliesSeen: readImpliesSeen,
	}, nil
}

func (s *feedService) flatFeed(userID string) (*feed.FlatFeed, error) {
	return feed.NewFlatFeed(feed.FlatConfig{
		Log:        s.log,
		Key:        "user:" + userID,
		Timeline:   s.stores.Timeline,
		Activities: s.stores.Activities,
	})
}

func (s *feedService) aggregatedFeed(userID string) (*feed.AggregatedFeed, error) {
	return feed.NewAggregatedFeed(feed.Config{
		Log:        s.log,
		Key:        "aggregated:" + userID,
		Timeline:   s.stores.Timeline,
		Activities: s.stores.Activities,
	})
}

func (s *feedService) notificationFeed(userID string) (*feed.NotificationFeed, error) {
	return feed.NewNotificationFeed(feed.NotificationConfig{
		Feed: feed.Config{
			Log:        s.log,
			Key:        "notification:" + userID,
			Timeline:   s.stores.Timeline,
			Activities: s.stores.Activities,
		},
		OwnerID:         userID,
		Locker:          s.stores.Locker,
		Counts:          s.stores.Counts,
		Bus:             s.stores.Bus,
		ReadImpliesSeen: s.readImpliesSeen,
	})
}

func (s *feedService) realtimeFeed(userID string) (*feed.RealtimeAggregatedFeed, error) {
	source, err := s.flatFeed(userID)
	if err != nil {
		return nil, err
	}
	return feed.NewRealtimeAggregatedFeed(feed.RealtimeConfig{
		Log:    s.log,
		Source: source,
	})
}

func buildActivities(inputs []ActivityInput) ([]*types.Activity, error) {
	out := make([]*types.Activity, 0, len(inputs))
	for _, in := range inputs {
		a, err := types.NewActivity(in.ActorID, in.VerbID, in.ObjectID, in.TargetID, in.Time, in.Extra)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (s *feedService) PublishActivities(ctx context.Context, userID string, inputs []ActivityInput) ([]*types.AggregatedActivity, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", pkgerrors.ErrInvalidArgument)
	}
	activities, err := buildActivities(inputs)
	if err != nil {
		return nil, err
	}

	flat, err := s.flatFeed(userID)
	if err != nil {
		return nil, err
	}
	if err := flat.AddMany(ctx, activities); err != nil {
		return nil, err
	}

	agg, err := s.aggregatedFeed(userID)
	if err != nil {
		return nil, err
	}
	touched, err := agg.AddMany(ctx, activities)
	if err != nil {
		return nil, err
	}
	s.log.Info("published activities", "user_id", userID,
		"activities", len(activities), "touched_groups", len(touched))
	return touched, nil
}

func (s *feedService) RemoveActivities(ctx context.Context, userID string, serializationIDs []string) error {
	if userID == "" {
		return fmt.Errorf("%w: user id required", pkgerrors.ErrInvalidArgument)
	}
	flat, err := s.flatFeed(userID)
	if err != nil {
		return err
	}
	if err := flat.RemoveMany(ctx, serializationIDs); err != nil {
		return err
	}
	agg, err := s.aggregatedFeed(userID)
	if err != nil {
		return err
	}
	_, err = agg.RemoveMany(ctx, serializationIDs)
	return err
}

func (s *feedService) GetAggregatedFeed(ctx context.Context, userID string, start, stop int) ([]*types.AggregatedActivity, error) {
	agg, err := s.aggregatedFeed(userID)
	if err != nil {
		return nil, err
	}
	return agg.GetResults(ctx, start, stop)
}

func (s *feedService) GetRealtimeFeed(ctx context.Context, userID string, limit int) ([]*types.AggregatedActivity, error) {
	rt, err := s.realtimeFeed(userID)
	if err != nil {
		return nil, err
	}
	stop := feed.End
	if limit > 0 {
		stop = limit
	}
	return rt.GetActivitySlice(ctx, 0, stop)
}

func (s *feedService) AddNotifications(ctx context.Context, userID string, inputs []ActivityInput) ([]*types.AggregatedActivity, error) {
	activities, err := buildActivities(inputs)
	if err != nil {
		return nil, err
	}
	nf, err := s.notificationFeed(userID)
	if err != nil {
		return nil, err
	}
	return nf.AddMany(ctx, activities)
}

func (s *feedService) GetNotifications(ctx context.Context, userID string, start, stop int) ([]*types.AggregatedActivity, error) {
	nf, err := s.notificationFeed(userID)
	if err != nil {
		return nil, err
	}
	return nf.GetResults(ctx, start, stop)
}

func (s *feedService) MarkNotifications(ctx context.Context, userID string, seen, read bool) error {
	nf, err := s.notificationFeed(userID)
	if err != nil {
		return err
	}
	_, err = nf.MarkAll(ctx, seen, read)
	return err
}

func (s *feedService) MarkNotificationGroup(ctx context.Context, userID, groupKey string, seen, read bool) error {
	nf, err := s.notificationFeed(userID)
	if err != nil {
		return err
	}
	return nf.MarkActivity(ctx, groupKey, seen, read)
}

func (s *feedService) GetNotificationCounts(ctx context.Context, userID string) (NotificationCounts, error) {
	nf, err := s.notificationFeed(userID)
	if err != nil {
		return NotificationCounts{}, err
	}
	unseen, err := nf.CountUnseen(ctx)
	if err != nil {
		return NotificationCounts{}, err
	}
	unread, err := nf.CountUnread(ctx)
	if err != nil {
		return NotificationCounts{}, err
	}
	stored, err := nf.DenormalizedCount(ctx)
	if err != nil {
		return NotificationCounts{}, err
	}
	return NotificationCounts{Unseen: unseen, Unread: unread, Denormalized: stored}, nil
}
