package redisstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/feedstream-backend/internal/logger"
	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/store"
)

// integration tests; they need a reachable redis and are skipped
// without REDIS_TEST_ADDR.
func testClient(t *testing.T) *goredis.Client {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	rdb := goredis.NewClient(&goredis.Options{Addr: addr, DB: 9})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		t.Skipf("redis at %s unreachable: %v", addr, err)
	}
	t.Cleanup(func() {
		rdb.FlushDB(context.Background())
		rdb.Close()
	})
	return rdb
}

func testKey(t *testing.T) string {
	return fmt.Sprintf("test:%s:%d", t.Name(), time.Now().UnixNano())
}

func TestRedisTimelineRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewTimelineStore(testClient(t), logger.NewNop())
	key := testKey(t)

	err := s.AddMany(ctx, key, []store.ScoredEntry{
		{Score: 1, Member: []byte("a")},
		{Score: 3, Member: []byte("c")},
		{Score: 2, Member: []byte("b")},
	})
	if err != nil {
		t.Fatalf("AddMany: %v", err)
	}

	got, err := s.GetSlice(ctx, key, 0, store.End)
	if err != nil {
		t.Fatalf("GetSlice: %v", err)
	}
	want := []string{"c", "b", "a"}
	for i, e := range got {
		if string(e.Member) != want[i] {
			t.Fatalf("position %d = %q, want %q", i, e.Member, want[i])
		}
	}

	rank, err := s.IndexOf(ctx, key, []byte("b"))
	if err != nil {
		t.Fatalf("IndexOf: %v", err)
	}
	if rank != 1 {
		t.Fatalf("rank = %d, want 1", rank)
	}
	if _, err := s.IndexOf(ctx, key, []byte("missing")); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("absent member: got %v, want ErrNotFound", err)
	}

	if err := s.Trim(ctx, key, 2); err != nil {
		t.Fatalf("Trim: %v", err)
	}
	n, err := s.Count(ctx, key)
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 2 {
		t.Fatalf("count after trim = %d, want 2", n)
	}
	got, err = s.GetSlice(ctx, key, 0, store.End)
	if err != nil {
		t.Fatal(err)
	}
	if string(got[len(got)-1].Member) != "b" {
		t.Fatalf("trim kept the wrong members: lowest = %q", got[len(got)-1].Member)
	}
}

func TestRedisActivityStoreOmitsMissing(t *testing.T) {
	ctx := context.Background()
	s := NewActivityStore(testClient(t), logger.NewNop())

	if err := s.AddMany(ctx, map[string][]byte{"id-1": []byte("one")}); err != nil {
		t.Fatalf("AddMany: %v", err)
	}
	got, err := s.GetMany(ctx, []string{"id-1", "id-2"})
	if err != nil {
		t.Fatalf("GetMany: %v", err)
	}
	if len(got) != 1 || string(got["id-1"]) != "one" {
		t.Fatalf("got %v, want only id-1", got)
	}
}

func TestRedisLocker(t *testing.T) {
	ctx := context.Background()
	l := NewLocker(testClient(t), logger.NewNop())
	key := testKey(t)

	release, err := l.Acquire(ctx, key, time.Second)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if _, err := l.Acquire(ctx, key, 100*time.Millisecond); !errors.Is(err, pkgerrors.ErrLockContention) {
		t.Fatalf("second acquire: got %v, want ErrLockContention", err)
	}
	release()
	release2, err := l.Acquire(ctx, key, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

func TestRedisCountStore(t *testing.T) {
	ctx := context.Background()
	s := NewCountStore(testClient(t), logger.NewNop())
	key := testKey(t)

	n, err := s.Get(ctx, key)
	if err != nil {
		t.Fatalf("Get absent: %v", err)
	}
	if n != 0 {
		t.Fatalf("absent count = %d, want 0", n)
	}
	if err := s.Set(ctx, key, 7); err != nil {
		t.Fatalf("Set: %v", err)
	}
	n, err = s.Get(ctx, key)
	if err != nil {
		t.Fatal(err)
	}
	if n != 7 {
		t.Fatalf("count = %d, want 7", n)
	}
}
