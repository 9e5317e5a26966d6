// Package redisstore implements the storage contracts on redis: sorted
// sets for ranked timelines, a hash for activity payloads, SET NX locks
// and plain keys for denormalized counters.
package redisstore

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/feedstream-backend/internal/logger"
	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/store"
)

type TimelineStore struct {
	rdb       *goredis.Client
	log       *logger.Logger
	ascending bool
}

func NewTimelineStore(rdb *goredis.Client, baseLog *logger.Logger) *TimelineStore {
	return &TimelineStore{rdb: rdb, log: baseLog.With("store", "RedisTimeline")}
}

func (s *TimelineStore) Ascending() *TimelineStore {
	return &TimelineStore{rdb: s.rdb, log: s.log, ascending: true}
}

func (s *TimelineStore) AddMany(ctx context.Context, key string, entries []store.ScoredEntry) error {
	if len(entries) == 0 {
		return nil
	}
	members := make([]goredis.Z, 0, len(entries))
	for _, e := range entries {
		if err := store.ValidateScore(e.Score); err != nil {
			return err
		}
		members = append(members, goredis.Z{Score: e.Score, Member: string(e.Member)})
	}
	// one ZADD; member identity dedups natively, a re-add refreshes the
	// score without duplicating
	if err := s.rdb.ZAdd(ctx, key, members...).Err(); err != nil {
		return fmt.Errorf("zadd %s: %w", key, err)
	}
	return nil
}

func (s *TimelineStore) RemoveMany(ctx context.Context, key string, members [][]byte) error {
	if len(members) == 0 {
		return nil
	}
	args := make([]interface{}, 0, len(members))
	for _, m := range members {
		args = append(args, string(m))
	}
	if err := s.rdb.ZRem(ctx, key, args...).Err(); err != nil {
		return fmt.Errorf("zrem %s: %w", key, err)
	}
	return nil
}

func (s *TimelineStore) GetSlice(ctx context.Context, key string, start, stop int) ([]store.ScoredEntry, error) {
	if err := store.ValidateRange(start, stop); err != nil {
		return nil, err
	}
	redisStop := int64(-1)
	if stop != store.End {
		if stop == start {
			return nil, nil
		}
		redisStop = int64(stop - 1)
	}
	var (
		zs  []goredis.Z
		err error
	)
	if s.ascending {
		zs, err = s.rdb.ZRangeWithScores(ctx, key, int64(start), redisStop).Result()
	} else {
		zs, err = s.rdb.ZRevRangeWithScores(ctx, key, int64(start), redisStop).Result()
	}
	if err != nil {
		return nil, fmt.Errorf("zrange %s: %w", key, err)
	}
	out := make([]store.ScoredEntry, 0, len(zs))
	for _, z := range zs {
		member, ok := z.Member.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected member type %T in %s", z.Member, key)
		}
		out = append(out, store.ScoredEntry{Score: z.Score, Member: []byte(member)})
	}
	return out, nil
}

func (s *TimelineStore) Trim(ctx context.Context, key string, length int) error {
	if length < 0 {
		return fmt.Errorf("%w: negative trim length %d", pkgerrors.ErrInvalidArgument, length)
	}
	// retain the `length` highest scored members
	if err := s.rdb.ZRemRangeByRank(ctx, key, 0, int64(-length-1)).Err(); err != nil {
		return fmt.Errorf("zremrangebyrank %s: %w", key, err)
	}
	return nil
}

func (s *TimelineStore) IndexOf(ctx context.Context, key string, member []byte) (int, error) {
	var rank int64
	var err error
	if s.ascending {
		rank, err = s.rdb.ZRank(ctx, key, string(member)).Result()
	} else {
		rank, err = s.rdb.ZRevRank(ctx, key, string(member)).Result()
	}
	if errors.Is(err, goredis.Nil) {
		return 0, fmt.Errorf("member not in timeline %q: %w", key, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("zrank %s: %w", key, err)
	}
	return int(rank), nil
}

func (s *TimelineStore) Count(ctx context.Context, key string) (int, error) {
	n, err := s.rdb.ZCard(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard %s: %w", key, err)
	}
	return int(n), nil
}

func (s *TimelineStore) Delete(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}
