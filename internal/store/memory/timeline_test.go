package memory

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/yungbote/feedstream-backend/internal/logger"
	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/store"
)

func newTestTimeline(t *testing.T) *TimelineStore {
	t.Helper()
	return NewTimelineStore(NewRegistry(), logger.NewNop())
}

func entry(score float64, member string) store.ScoredEntry {
	return store.ScoredEntry{Score: score, Member: []byte(member)}
}

func TestTimelineOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestTimeline(t)

	err := s.AddMany(ctx, "f", []store.ScoredEntry{
		entry(2, "b"), entry(1, "a"), entry(3, "c"),
	})
	if err != nil {
		t.Fatalf("AddMany: %v", err)
	}

	got, err := s.GetSlice(ctx, "f", 0, store.End)
	if err != nil {
		t.Fatalf("GetSlice: %v", err)
	}
	want := []string{"c", "b", "a"}
	if len(got) != len(want) {
		t.Fatalf("slice length = %d, want %d", len(got), len(want))
	}
	for i, e := range got {
		if string(e.Member) != want[i] {
			t.Fatalf("position %d = %q, want %q", i, e.Member, want[i])
		}
	}
}

func TestTimelineAddIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestTimeline(t)

	for i := 0; i < 3; i++ {
		if err := s.AddMany(ctx, "f", []store.ScoredEntry{entry(1, "a")}); err != nil {
			t.Fatalf("AddMany: %v", err)
		}
	}
	n, err := s.Count(ctx, "f")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 1 {
		t.Fatalf("count = %d, want 1", n)
	}
}

func TestTimelineRejectsNonFiniteScores(t *testing.T) {
	ctx := context.Background()
	s := newTestTimeline(t)

	for _, score := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		err := s.AddMany(ctx, "f", []store.ScoredEntry{entry(score, "a")})
		if !errors.Is(err, pkgerrors.ErrInvalidArgument) {
			t.Fatalf("score %f: got %v, want ErrInvalidArgument", score, err)
		}
	}
}

func TestTimelineTrim(t *testing.T) {
	ctx := context.Background()
	s := newTestTimeline(t)

	var entries []store.ScoredEntry
	for i := 0; i < 10; i++ {
		entries = append(entries, entry(float64(i), string(rune('a'+i))))
	}
	if err := s.AddMany(ctx, "f", entries); err != nil {
		t.Fatalf("AddMany: %v", err)
	}
	if err := s.Trim(ctx, "f", 5); err != nil {
		t.Fatalf("Trim: %v", err)
	}

	n, err := s.Count(ctx, "f")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if n != 5 {
		t.Fatalf("count after trim = %d, want 5", n)
	}

	// the survivors are the highest scored entries
	got, err := s.GetSlice(ctx, "f", 0, store.End)
	if err != nil {
		t.Fatalf("GetSlice: %v", err)
	}
	if string(got[len(got)-1].Member) != "f" {
		t.Fatalf("lowest survivor = %q, want %q", got[len(got)-1].Member, "f")
	}
}

func TestTimelineRemoveAbsentIsNoOp(t *testing.T) {
	ctx := context.Background()
	s := newTestTimeline(t)

	if err := s.AddMany(ctx, "f", []store.ScoredEntry{entry(1, "a")}); err != nil {
		t.Fatalf("AddMany: %v", err)
	}
	if err := s.RemoveMany(ctx, "f", [][]byte{[]byte("missing"), []byte("a")}); err != nil {
		t.Fatalf("RemoveMany: %v", err)
	}
	n, _ := s.Count(ctx, "f")
	if n != 0 {
		t.Fatalf("count = %d, want 0", n)
	}
}

func TestTimelineIndexOf(t *testing.T) {
	ctx := context.Background()
	s := newTestTimeline(t)

	if err := s.AddMany(ctx, "f", []store.ScoredEntry{
		entry(1, "a"), entry(2, "b"), entry(3, "c"),
	}); err != nil {
		t.Fatalf("AddMany: %v", err)
	}

	rank, err := s.IndexOf(ctx, "f", []byte("b"))
	if err != nil {
		t.Fatalf("IndexOf: %v", err)
	}
	if rank != 1 {
		t.Fatalf("rank = %d, want 1", rank)
	}

	if _, err := s.IndexOf(ctx, "f", []byte("missing")); !errors.Is(err, pkgerrors.ErrNotFound) {
		t.Fatalf("absent member: got %v, want ErrNotFound", err)
	}

	rank, err = s.Ascending().IndexOf(ctx, "f", []byte("b"))
	if err != nil {
		t.Fatalf("ascending IndexOf: %v", err)
	}
	if rank != 1 {
		t.Fatalf("ascending rank = %d, want 1", rank)
	}
}

func TestTimelineNegativeRangeRejected(t *testing.T) {
	ctx := context.Background()
	s := newTestTimeline(t)

	if _, err := s.GetSlice(ctx, "f", -1, 5); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("negative start: got %v, want ErrInvalidArgument", err)
	}
	if _, err := s.GetSlice(ctx, "f", 0, -5); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("negative stop: got %v, want ErrInvalidArgument", err)
	}
}

func TestLockerBlocksSecondHolder(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()

	release, err := l.Acquire(ctx, "k", 500*time.Millisecond)
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	if _, err := l.Acquire(ctx, "k", 30*time.Millisecond); !errors.Is(err, pkgerrors.ErrLockContention) {
		t.Fatalf("second acquire: got %v, want ErrLockContention", err)
	}

	release()
	release2, err := l.Acquire(ctx, "k", 30*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire after release: %v", err)
	}
	release2()
}

func TestLockerExpiresStaleHolder(t *testing.T) {
	ctx := context.Background()
	l := NewLocker()

	if _, err := l.Acquire(ctx, "k", 20*time.Millisecond); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	// never released; the ttl expiry must free it
	release, err := l.Acquire(ctx, "k", 200*time.Millisecond)
	if err != nil {
		t.Fatalf("acquire after expiry: %v", err)
	}
	release()
}
