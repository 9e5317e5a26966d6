// Package store defines the narrow storage contracts the feed layer is
// built on: a ranked timeline mapping and a content-addressed activity
// payload mapping. Backend selection happens by composition at wiring
// time, never by subclassing feeds per backend.
package store

import (
	"context"
	"fmt"
	"math"
	"time"

	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
)

// End marks an unbounded slice stop ("to the end of available data").
const End = -1

// ScoredEntry is one ranked timeline element. Member bytes are the codec
// produced encoding of either an activity reference or a dehydrated
// aggregated activity; member identity (not score) is the dedup key.
type ScoredEntry struct {
	Score  float64
	Member []byte
}

// TimelineStore is a ranked mapping from a feed key to an ordered
// (score, member) sequence, highest score first unless the backend was
// built ascending.
//
// AddMany must not duplicate an already present member. RemoveMany
// treats absent members as a no-op. IndexOf fails with ErrNotFound for
// absent members, never a sentinel rank.
type TimelineStore interface {
	AddMany(ctx context.Context, key string, entries []ScoredEntry) error
	RemoveMany(ctx context.Context, key string, members [][]byte) error
	GetSlice(ctx context.Context, key string, start, stop int) ([]ScoredEntry, error)
	Trim(ctx context.Context, key string, length int) error
	IndexOf(ctx context.Context, key string, member []byte) (int, error)
	Count(ctx context.Context, key string) (int, error)
	Delete(ctx context.Context, key string) error
}

// ActivityStore is a content-addressed mapping from activity
// serialization id to payload. GetMany returns only the present subset;
// missing ids are omitted, never an error.
type ActivityStore interface {
	AddMany(ctx context.Context, payloads map[string][]byte) error
	GetMany(ctx context.Context, ids []string) (map[string][]byte, error)
	RemoveMany(ctx context.Context, ids []string) error
}

// CountStore persists small denormalized integers (unseen counters).
// Get returns zero for absent keys.
type CountStore interface {
	Get(ctx context.Context, key string) (int, error)
	Set(ctx context.Context, key string, value int) error
}

// Locker provides per-key mutual exclusion with a bounded wait. Acquire
// returns a release func on success and ErrLockContention once ttl has
// elapsed without the lock becoming free. The lock also self-expires
// after ttl, trading strict correctness for liveness.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}

// ValidateScore rejects non-finite scores before any backend call.
func ValidateScore(score float64) error {
	if math.IsNaN(score) || math.IsInf(score, 0) {
		return fmt.Errorf("%w: score must be a finite number, got %f", pkgerrors.ErrInvalidArgument, score)
	}
	return nil
}

// ValidateRange rejects negative slice bounds. stop may be End.
func ValidateRange(start, stop int) error {
	if start < 0 {
		return fmt.Errorf("%w: negative slice start %d", pkgerrors.ErrInvalidArgument, start)
	}
	if stop != End && stop < 0 {
		return fmt.Errorf("%w: negative slice stop %d", pkgerrors.ErrInvalidArgument, stop)
	}
	if stop != End && stop < start {
		return fmt.Errorf("%w: slice stop %d before start %d", pkgerrors.ErrInvalidArgument, stop, start)
	}
	return nil
}
