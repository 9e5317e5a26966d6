package sqlstore

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/yungbote/feedstream-backend/internal/logger"
)

type ActivityStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewActivityStore(db *gorm.DB, baseLog *logger.Logger) *ActivityStore {
	return &ActivityStore{db: db, log: baseLog.With("store", "SQLActivity")}
}

func (s *ActivityStore) AddMany(ctx context.Context, payloads map[string][]byte) error {
	if len(payloads) == 0 {
		return nil
	}
	rows := make([]ActivityRecord, 0, len(payloads))
	for id, payload := range payloads {
		rows = append(rows, ActivityRecord{ID: id, Payload: payload})
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload"}),
	}).Create(&rows).Error
	if err != nil {
		return fmt.Errorf("insert activities: %w", err)
	}
	return nil
}

func (s *ActivityStore) GetMany(ctx context.Context, ids []string) (map[string][]byte, error) {
	out := make(map[string][]byte, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []ActivityRecord
	err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load activities: %w", err)
	}
	for i := range rows {
		out[rows[i].ID] = rows[i].Payload
	}
	return out, nil
}

func (s *ActivityStore) RemoveMany(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).
		Where("id IN ?", ids).
		Delete(&ActivityRecord{}).Error
	if err != nil {
		return fmt.Errorf("delete activities: %w", err)
	}
	return nil
}
