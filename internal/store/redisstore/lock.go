package redisstore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/feedstream-backend/internal/logger"
	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
)

// releaseScript deletes the lock only if this holder still owns it; an
// expired-and-reacquired lock stays with the new holder.
const releaseScript = `
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0`

const lockPollInterval = 50 * time.Millisecond

// Locker implements store.Locker with SET NX PX. The key self-expires
// after ttl, so a preempted holder cannot wedge the feed.
type Locker struct {
	rdb *goredis.Client
	log *logger.Logger
}

func NewLocker(rdb *goredis.Client, baseLog *logger.Logger) *Locker {
	return &Locker{rdb: rdb, log: baseLog.With("store", "RedisLocker")}
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	deadline := time.Now().Add(ttl)
	for {
		ok, err := l.rdb.SetNX(ctx, key, token, ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("setnx %s: %w", key, err)
		}
		if ok {
			return func() {
				releaseCtx, cancel := context.WithTimeout(context.Background(), time.Second)
				defer cancel()
				if err := l.rdb.Eval(releaseCtx, releaseScript, []string{key}, token).Err(); err != nil {
					l.log.Warn("lock release failed", "key", key, "error", err)
				}
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %q: %w", key, pkgerrors.ErrLockContention)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}
