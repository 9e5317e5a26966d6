package sqlstore

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/feedstream-backend/internal/logger"
	pkgerrors "github.com/yungbote/feedstream-backend/internal/pkg/errors"
	"github.com/yungbote/feedstream-backend/internal/store"
)

// pageSize bounds each cursor page while emulating offset reads.
const pageSize = 100

// TimelineStore is the wide-row adapter. The layout has no native
// offset or rank query: reaching the nth entry means walking score
// ordered pages and counting rows, an O(n) cost every offset lookup.
// This is a real limitation of the row shape, kept visible on purpose;
// bolting on a rank index would change the storage shape and belongs to
// a different design.
type TimelineStore struct {
	db        *gorm.DB
	log       *logger.Logger
	ascending bool
}

func NewTimelineStore(db *gorm.DB, baseLog *logger.Logger) *TimelineStore {
	return &TimelineStore{db: db, log: baseLog.With("store", "SQLTimeline")}
}

func (s *TimelineStore) Ascending() *TimelineStore {
	return &TimelineStore{db: s.db, log: s.log, ascending: true}
}

func (s *TimelineStore) order() string {
	if s.ascending {
		return "score ASC, member ASC"
	}
	return "score DESC, member DESC"
}

func (s *TimelineStore) afterCond(e TimelineEntry) (string, []interface{}) {
	if s.ascending {
		return "(score > ? OR (score = ? AND member > ?))", []interface{}{e.Score, e.Score, e.Member}
	}
	return "(score < ? OR (score = ? AND member < ?))", []interface{}{e.Score, e.Score, e.Member}
}

func (s *TimelineStore) AddMany(ctx context.Context, key string, entries []store.ScoredEntry) error {
	if len(entries) == 0 {
		return nil
	}
	rows := make([]TimelineEntry, 0, len(entries))
	for _, e := range entries {
		if err := store.ValidateScore(e.Score); err != nil {
			return err
		}
		rows = append(rows, TimelineEntry{FeedKey: key, Member: e.Member, Score: e.Score})
	}
	// member identity dedups; a re-add refreshes the score
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "feed_key"}, {Name: "member"}},
		DoUpdates: clause.AssignmentColumns([]string{"score"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("insert timeline rows %s: %w", key, err)
	}
	return nil
}

func (s *TimelineStore) RemoveMany(ctx context.Context, key string, members [][]byte) error {
	if len(members) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("feed_key = ? AND member IN ?", key, members).
		Delete(&TimelineEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete timeline rows %s: %w", key, err)
	}
	return nil
}

func (s *TimelineStore) GetSlice(ctx context.Context, key string, start, stop int) ([]store.ScoredEntry, error) {
	if err := store.ValidateRange(start, stop); err != nil {
		return nil, err
	}
	if stop != store.End && stop == start {
		return nil, nil
	}

	var (
		out     []store.ScoredEntry
		skipped int
		cursor  *TimelineEntry
	)
	for {
		q := s.db.WithContext(ctx).
			Where("feed_key = ?", key).
			Order(s.order()).
			Limit(pageSize)
		if cursor != nil {
			cond, args := s.afterCond(*cursor)
			q = q.Where(cond, args...)
		}
		var page []TimelineEntry
		if err := q.Find(&page).Error; err != nil {
			return nil, fmt.Errorf("page timeline %s: %w", key, err)
		}
		if len(page) == 0 {
			return out, nil
		}
		for i := range page {
			if skipped < start {
				skipped++
				continue
			}
			out = append(out, store.ScoredEntry{Score: page[i].Score, Member: page[i].Member})
			if stop != store.End && start+len(out) >= stop {
				return out, nil
			}
		}
		cursor = &page[len(page)-1]
		if len(page) < pageSize {
			return out, nil
		}
	}
}

// getNth walks the ordering to the nth entry, counting rows page by
// page. O(n) per call; the wide-row shape has nothing better to offer.
func (s *TimelineStore) getNth(ctx context.Context, key string, n int) (*TimelineEntry, error) {
	entries, err := s.GetSlice(ctx, key, n, n+1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return &TimelineEntry{FeedKey: key, Member: entries[0].Member, Score: entries[0].Score}, nil
}

func (s *TimelineStore) Trim(ctx context.Context, key string, length int) error {
	if length < 0 {
		return fmt.Errorf("%w: negative trim length %d", pkgerrors.ErrInvalidArgument, length)
	}
	if length == 0 {
		return s.Delete(ctx, key)
	}
	boundary, err := s.getNth(ctx, key, length-1)
	if err != nil {
		return err
	}
	if boundary == nil {
		// fewer than length entries, nothing to discard
		return nil
	}
	cond, args := s.afterCond(*boundary)
	err = s.db.WithContext(ctx).
		Where("feed_key = ?", key).
		Where(cond, args...).
		Delete(&TimelineEntry{}).Error
	if err != nil {
		return fmt.Errorf("trim timeline %s: %w", key, err)
	}
	return nil
}

func (s *TimelineStore) IndexOf(ctx context.Context, key string, member []byte) (int, error) {
	var row TimelineEntry
	err := s.db.WithContext(ctx).
		Where("feed_key = ? AND member = ?", key, member).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, fmt.Errorf("member not in timeline %q: %w", key, pkgerrors.ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup timeline member %s: %w", key, err)
	}
	var before int64
	cond, args := s.beforeCond(row)
	err = s.db.WithContext(ctx).
		Model(&TimelineEntry{}).
		Where("feed_key = ?", key).
		Where(cond, args...).
		Count(&before).Error
	if err != nil {
		return 0, fmt.Errorf("rank timeline member %s: %w", key, err)
	}
	return int(before), nil
}

func (s *TimelineStore) beforeCond(e TimelineEntry) (string, []interface{}) {
	if s.ascending {
		return "(score < ? OR (score = ? AND member < ?))", []interface{}{e.Score, e.Score, e.Member}
	}
	return "(score > ? OR (score = ? AND member > ?))", []interface{}{e.Score, e.Score, e.Member}
}

func (s *TimelineStore) Count(ctx context.Context, key string) (int, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&TimelineEntry{}).
		Where("feed_key = ?", key).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("count timeline %s: %w", key, err)
	}
	return int(n), nil
}

func (s *TimelineStore) Delete(ctx context.Context, key string) error {
	err := s.db.WithContext(ctx).
		Where("feed_key = ?", key).
		Delete(&TimelineEntry{}).Error
	if err != nil {
		return fmt.Errorf("delete timeline %s: %w", key, err)
	}
	return nil
}
