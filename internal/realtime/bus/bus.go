package bus

import (
	"context"

	"github.com/yungbote/feedstream-backend/internal/realtime"
)

// Bus delivers notification count change events to interested clients.
// Delivery is at-most-once; feeds treat publish failures as non-fatal.
type Bus interface {
	Publish(ctx context.Context, msg realtime.NotificationMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.NotificationMessage)) error
	Close() error
}

// NopBus drops every message, for deployments without a pub/sub channel.
type NopBus struct{}

func (NopBus) Publish(ctx context.Context, msg realtime.NotificationMessage) error { return nil }

func (NopBus) StartForwarder(ctx context.Context, onMsg func(m realtime.NotificationMessage)) error {
	return nil
}

func (NopBus) Close() error { return nil }
