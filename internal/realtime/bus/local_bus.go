package bus

import (
	"context"
	"sync"

	"github.com/yungbote/feedstream-backend/internal/realtime"
)

// LocalBus loops published messages back to in-process forwarders.
// Suitable for single replica deployments; multi-replica setups need
// the redis bus so every replica sees every event.
type LocalBus struct {
	mu        sync.RWMutex
	closed    bool
	listeners []func(m realtime.NotificationMessage)
}

func NewLocalBus() *LocalBus {
	return &LocalBus{}
}

func (b *LocalBus) Publish(ctx context.Context, msg realtime.NotificationMessage) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil
	}
	for _, onMsg := range b.listeners {
		onMsg(msg)
	}
	return nil
}

func (b *LocalBus) StartForwarder(ctx context.Context, onMsg func(m realtime.NotificationMessage)) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = append(b.listeners, onMsg)
	return nil
}

func (b *LocalBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	b.listeners = nil
	return nil
}
