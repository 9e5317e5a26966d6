package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/realtime"
	"github.com/yungbote/feedstream-backend/internal/store/memory"
	"github.com/yungbote/feedstream-backend/internal/types"
)

type recordingBus struct {
	mu       sync.Mutex
	messages []realtime.NotificationMessage
}

func (b *recordingBus) Publish(ctx context.Context, msg realtime.NotificationMessage) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.messages = append(b.messages, msg)
	return nil
}

func (b *recordingBus) StartForwarder(ctx context.Context, onMsg func(m realtime.NotificationMessage)) error {
	return nil
}

func (b *recordingBus) Close() error { return nil }

func (b *recordingBus) published() []realtime.NotificationMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]realtime.NotificationMessage(nil), b.messages...)
}

type notificationFixture struct {
	*fixture
	locker *memory.Locker
	counts *memory.CountStore
	bus    *recordingBus
}

func newNotificationFixture() *notificationFixture {
	return &notificationFixture{
		fixture: newFixture(),
		locker:  memory.NewLocker(),
		counts:  memory.NewCountStore(),
		bus:     &recordingBus{},
	}
}

func (fx *notificationFixture) feed(t *testing.T, cfg NotificationConfig) *NotificationFeed {
	t.Helper()
	if cfg.Feed.Key == "" {
		cfg.Feed.Key = "notification:1"
	}
	cfg.Feed.Timeline = fx.timeline
	cfg.Feed.Activities = fx.activities
	cfg.Locker = fx.locker
	cfg.Counts = fx.counts
	cfg.Bus = fx.bus
	f, err := NewNotificationFeed(cfg)
	if err != nil {
		t.Fatalf("NewNotificationFeed: %v", err)
	}
	return f
}

func TestNotificationAddDenormalizesAndPublishes(t *testing.T) {
	ctx := context.Background()
	fx := newNotificationFixture()
	f := fx.feed(t, NotificationConfig{})

	if _, err := f.AddMany(ctx, []*types.Activity{
		makeActivity(t, 1, 10, 0),
		makeActivity(t, 2, 11, time.Minute),
	}); err != nil {
		t.Fatalf("AddMany: %v", err)
	}

	stored, err := f.DenormalizedCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 2 {
		t.Fatalf("denormalized unseen = %d, want 2", stored)
	}

	msgs := fx.bus.published()
	if len(msgs) != 1 {
		t.Fatalf("published %d messages, want 1", len(msgs))
	}
	if msgs[0].UnseenCount != 2 || msgs[0].UnreadCount != 2 {
		t.Fatalf("published counts = %d/%d, want 2/2", msgs[0].UnseenCount, msgs[0].UnreadCount)
	}
	if msgs[0].Target != "notification:1" {
		t.Fatalf("published target = %q", msgs[0].Target)
	}
}

func TestNotificationMarkAllClearsUnseen(t *testing.T) {
	ctx := context.Background()
	fx := newNotificationFixture()
	f := fx.feed(t, NotificationConfig{})

	if _, err := f.AddMany(ctx, []*types.Activity{
		makeActivity(t, 1, 10, 0),
		makeActivity(t, 2, 11, time.Minute),
	}); err != nil {
		t.Fatal(err)
	}

	groups, err := f.MarkAll(ctx, true, true)
	if err != nil {
		t.Fatalf("MarkAll: %v", err)
	}
	for _, g := range groups {
		if !g.IsSeen() || !g.IsRead() {
			t.Fatalf("group %q not marked", g.Group)
		}
	}

	unseen, err := f.CountUnseen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	unread, err := f.CountUnread(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if unseen != 0 || unread != 0 {
		t.Fatalf("unseen/unread after MarkAll = %d/%d, want 0/0", unseen, unread)
	}
	stored, err := f.DenormalizedCount(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if stored != 0 {
		t.Fatalf("denormalized unseen after MarkAll = %d, want 0", stored)
	}

	// the mark survives a fresh read from storage
	persisted, err := f.GetResults(ctx, 0, End)
	if err != nil {
		t.Fatal(err)
	}
	for _, g := range persisted {
		if !g.IsSeen() || !g.IsRead() {
			t.Fatalf("stored group %q lost its mark", g.Group)
		}
	}
}

func TestNotificationMarkAllTwicePublishesOnce(t *testing.T) {
	ctx := context.Background()
	fx := newNotificationFixture()
	f := fx.feed(t, NotificationConfig{})

	if _, err := f.AddMany(ctx, []*types.Activity{makeActivity(t, 1, 10, 0)}); err != nil {
		t.Fatal(err)
	}
	before := len(fx.bus.published())

	if _, err := f.MarkAll(ctx, true, false); err != nil {
		t.Fatal(err)
	}
	if _, err := f.MarkAll(ctx, true, false); err != nil {
		t.Fatal(err)
	}

	after := len(fx.bus.published())
	if after-before != 1 {
		t.Fatalf("published %d messages across two MarkAll calls, want 1", after-before)
	}
}

func TestNotificationMarkActivity(t *testing.T) {
	ctx := context.Background()
	fx := newNotificationFixture()
	f := fx.feed(t, NotificationConfig{})

	if _, err := f.AddMany(ctx, []*types.Activity{
		makeActivity(t, 1, 10, 0),
		makeActivity(t, 2, 11, time.Minute),
	}); err != nil {
		t.Fatal(err)
	}
	groups, err := f.GetResults(ctx, 0, End)
	if err != nil {
		t.Fatal(err)
	}

	if err := f.MarkActivity(ctx, groups[0].Group, true, false); err != nil {
		t.Fatalf("MarkActivity: %v", err)
	}
	unseen, err := f.CountUnseen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if unseen != 1 {
		t.Fatalf("unseen after marking one of two groups = %d, want 1", unseen)
	}
}

func TestNotificationNewActivityResetsSeen(t *testing.T) {
	ctx := context.Background()
	fx := newNotificationFixture()
	f := fx.feed(t, NotificationConfig{})

	if _, err := f.AddMany(ctx, []*types.Activity{makeActivity(t, 1, 10, 0)}); err != nil {
		t.Fatal(err)
	}
	if _, err := f.MarkAll(ctx, true, true); err != nil {
		t.Fatal(err)
	}

	// a fresh activity opens a new unseen group
	if _, err := f.AddMany(ctx, []*types.Activity{makeActivity(t, 1, 10, 48*time.Hour)}); err != nil {
		t.Fatal(err)
	}
	unseen, err := f.CountUnseen(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if unseen != 1 {
		t.Fatalf("unseen after new activity = %d, want 1", unseen)
	}
}

func TestNotificationReadImpliesSeenPolicy(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name       string
		implies    bool
		wantUnseen int
	}{
		{name: "read does not imply seen", implies: false, wantUnseen: 1},
		{name: "read implies seen", implies: true, wantUnseen: 0},
	} {
		t.Run(tc.name, func(t *testing.T) {
			fx := newNotificationFixture()
			f := fx.feed(t, NotificationConfig{ReadImpliesSeen: tc.implies})

			if _, err := f.AddMany(ctx, []*types.Activity{makeActivity(t, 1, 10, 0)}); err != nil {
				t.Fatal(err)
			}
			if _, err := f.MarkAll(ctx, false, true); err != nil {
				t.Fatal(err)
			}
			unseen, err := f.CountUnseen(ctx)
			if err != nil {
				t.Fatal(err)
			}
			if unseen != tc.wantUnseen {
				t.Fatalf("unseen = %d, want %d", unseen, tc.wantUnseen)
			}
		})
	}
}

func TestNotificationLockContention(t *testing.T) {
	ctx := context.Background()
	fx := newNotificationFixture()
	f := fx.feed(t, NotificationConfig{LockTTL: 40 * time.Millisecond})

	release, err := fx.locker.Acquire(ctx, "notification:1:lock", time.Second)
	if err != nil {
		t.Fatal(err)
	}
	defer release()

	_, err = f.AddMany(ctx, []*types.Activity{makeActivity(t, 1, 10, 0)})
	if !errors.Is(err, pkgerrors.ErrLockContention) {
		t.Fatalf("AddMany under held lock: got %v, want ErrLockContention", err)
	}
}
