package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
)

// Locker is a process-local store.Locker. Holders that outlive the ttl
// lose the lock: a second writer may then acquire it and the stale
// release becomes a no-op.
type Locker struct {
	mu    sync.Mutex
	locks map[string]uint64
	next  uint64
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]uint64)}
}

func (l *Locker) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	deadline := time.Now().Add(ttl)
	for {
		l.mu.Lock()
		if _, held := l.locks[key]; !held {
			l.next++
			token := l.next
			l.locks[key] = token
			l.mu.Unlock()

			expire := time.AfterFunc(ttl, func() { l.releaseToken(key, token) })
			return func() {
				expire.Stop()
				l.releaseToken(key, token)
			}, nil
		}
		l.mu.Unlock()

		if time.Now().After(deadline) {
			return nil, fmt.Errorf("lock %q: %w", key, pkgerrors.ErrLockContention)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func (l *Locker) releaseToken(key string, token uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.locks[key] == token {
		delete(l.locks, key)
	}
}
