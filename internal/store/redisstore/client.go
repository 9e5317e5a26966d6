package redisstore

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/feedstream-backend/internal/logger"
	"github.com/yungbote/feedstream-backend/internal/utils"
)

// NewClient connects to redis using REDIS_ADDR and verifies the
// connection with a ping. Reconnect/retry policy stays with go-redis;
// the stores above never retry on their own.
func NewClient(log *logger.Logger) (*goredis.Client, error) {
	addr := utils.GetEnv("REDIS_ADDR", "", log)
	if addr == "" {
		return nil, fmt.Errorf("missing REDIS_ADDR")
	}
	password := utils.GetEnv("REDIS_PASSWORD", "", log)
	db := utils.GetEnvAsInt("REDIS_DB", 0, log)

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        addr,
		Password:    password,
		DB:          db,
		DialTimeout: 5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}
