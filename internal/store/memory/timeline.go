package memory

import (
	"bytes"
	"context"
	"fmt"
	"sort"

	"github.com/yungbote/feedstream-backend/internal/logger"
	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/store"
)

type TimelineStore struct {
	reg       *Registry
	log       *logger.Logger
	ascending bool
}

func NewTimelineStore(reg *Registry, baseLog *logger.Logger) *TimelineStore {
	return &TimelineStore{reg: reg, log: baseLog.With("store", "MemoryTimeline")}
}

// Ascending returns a view over the same registry that slices lowest
// score first.
func (s *TimelineStore) Ascending() *TimelineStore {
	return &TimelineStore{reg: s.reg, log: s.log, ascending: true}
}

// entries are kept sorted highest score first, ties broken by descending
// member bytes, so inserts are O(log n) + copy and slices are O(1).
func entryLess(a, b store.ScoredEntry) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return bytes.Compare(a.Member, b.Member) > 0
}

func (s *TimelineStore) AddMany(ctx context.Context, key string, entries []store.ScoredEntry) error {
	for _, e := range entries {
		if err := store.ValidateScore(e.Score); err != nil {
			return err
		}
	}
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	timeline := s.reg.timelines[key]
	for _, e := range entries {
		if containsMember(timeline, e.Member) {
			continue
		}
		pos := sort.Search(len(timeline), func(i int) bool {
			return entryLess(e, timeline[i])
		})
		timeline = append(timeline, store.ScoredEntry{})
		copy(timeline[pos+1:], timeline[pos:])
		timeline[pos] = store.ScoredEntry{Score: e.Score, Member: append([]byte(nil), e.Member...)}
	}
	s.reg.timelines[key] = timeline
	return nil
}

func (s *TimelineStore) RemoveMany(ctx context.Context, key string, members [][]byte) error {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	timeline := s.reg.timelines[key]
	for _, m := range members {
		for i, e := range timeline {
			if bytes.Equal(e.Member, m) {
				timeline = append(timeline[:i], timeline[i+1:]...)
				break
			}
		}
	}
	s.reg.timelines[key] = timeline
	return nil
}

func (s *TimelineStore) GetSlice(ctx context.Context, key string, start, stop int) ([]store.ScoredEntry, error) {
	if err := store.ValidateRange(start, stop); err != nil {
		return nil, err
	}
	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()
	timeline := s.reg.timelines[key]
	if s.ascending {
		reversed := make([]store.ScoredEntry, len(timeline))
		for i, e := range timeline {
			reversed[len(timeline)-1-i] = e
		}
		timeline = reversed
	}
	if start >= len(timeline) {
		return nil, nil
	}
	end := len(timeline)
	if stop != store.End && stop < end {
		end = stop
	}
	out := make([]store.ScoredEntry, end-start)
	copy(out, timeline[start:end])
	return out, nil
}

func (s *TimelineStore) Trim(ctx context.Context, key string, length int) error {
	if length < 0 {
		return fmt.Errorf("%w: negative trim length %d", pkgerrors.ErrInvalidArgument, length)
	}
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	timeline := s.reg.timelines[key]
	if len(timeline) > length {
		s.reg.timelines[key] = append([]store.ScoredEntry(nil), timeline[:length]...)
	}
	return nil
}

func (s *TimelineStore) IndexOf(ctx context.Context, key string, member []byte) (int, error) {
	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()
	timeline := s.reg.timelines[key]
	for i, e := range timeline {
		if bytes.Equal(e.Member, member) {
			if s.ascending {
				return len(timeline) - 1 - i, nil
			}
			return i, nil
		}
	}
	return 0, fmt.Errorf("member not in timeline %q: %w", key, pkgerrors.ErrNotFound)
}

func (s *TimelineStore) Count(ctx context.Context, key string) (int, error) {
	s.reg.mu.RLock()
	defer s.reg.mu.RUnlock()
	return len(s.reg.timelines[key]), nil
}

func (s *TimelineStore) Delete(ctx context.Context, key string) error {
	s.reg.mu.Lock()
	defer s.reg.mu.Unlock()
	delete(s.reg.timelines, key)
	return nil
}

func containsMember(timeline []store.ScoredEntry, member []byte) bool {
	for _, e := range timeline {
		if bytes.Equal(e.Member, member) {
			return true
		}
	}
	return false
}
