package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/feedstream-backend/internal/logger"
)

type CountStore struct {
	rdb *goredis.Client
	log *logger.Logger
}

func NewCountStore(rdb *goredis.Client, baseLog *logger.Logger) *CountStore {
	return &CountStore{rdb: rdb, log: baseLog.With("store", "RedisCounts")}
}

func (s *CountStore) Get(ctx context.Context, key string) (int, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("get %s: %w", key, err)
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("parse count %s: %w", key, err)
	}
	return n, nil
}

func (s *CountStore) Set(ctx context.Context, key string, value int) error {
	if err := s.rdb.Set(ctx, key, value, 0).Err(); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}
