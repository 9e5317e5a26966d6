package redisstore

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/feedstream-backend/internal/logger"
)

const defaultActivityHashKey = "global:activities"

// ActivityStore keeps activity payloads in a single redis hash keyed by
// serialization id.
type ActivityStore struct {
	rdb     *goredis.Client
	log     *logger.Logger
	hashKey string
}

func NewActivityStore(rdb *goredis.Client, baseLog *logger.Logger) *ActivityStore {
	return &ActivityStore{
		rdb:     rdb,
		log:     baseLog.With("store", "RedisActivity"),
		hashKey: defaultActivityHashKey,
	}
}

func (s *ActivityStore) AddMany(ctx context.Context, payloads map[string][]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	fields := make([]interface{}, 0, len(payloads)*2)
	for id, payload := range payloads {
		fields = append(fields, id, string(payload))
	}
	if err := s.rdb.HSet(ctx, s.hashKey, fields...).Err(); err != nil {
		return fmt.Errorf("hset %s: %w", s.hashKey, err)
	}
	return nil
}

func (s *ActivityStore) GetMany(ctx context.Context, ids []string) (map[string][]byte, error) {
	if len(ids) == 0 {
		return map[string][]byte{}, nil
	}
	values, err := s.rdb.HMGet(ctx, s.hashKey, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("hmget %s: %w", s.hashKey, err)
	}
	out := make(map[string][]byte, len(ids))
	for i, v := range values {
		if v == nil {
			continue
		}
		raw, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected payload type %T for %s", v, ids[i])
		}
		out[ids[i]] = []byte(raw)
	}
	return out, nil
}

func (s *ActivityStore) RemoveMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	if err := s.rdb.HDel(ctx, s.hashKey, ids...).Err(); err != nil {
		return fmt.Errorf("hdel %s: %w", s.hashKey, err)
	}
	return nil
}
