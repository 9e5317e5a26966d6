// Package sqlstore implements the storage contracts on a relational
// wide-row layout via gorm. One row per (feed key, member); rank is a
// property of the score ordering, not a stored column.
package sqlstore

import "gorm.io/gorm"

type TimelineEntry struct {
	FeedKey string  `gorm:"primaryKey;size:255;column:feed_key"`
	Member  []byte  `gorm:"primaryKey;column:member"`
	Score   float64 `gorm:"not null;index:idx_timeline_rank;column:score"`
}

func (TimelineEntry) TableName() string {
	return "feed_timeline"
}

type ActivityRecord struct {
	ID      string `gorm:"primaryKey;size:26;column:id"`
	Payload []byte `gorm:"not null;column:payload"`
}

func (ActivityRecord) TableName() string {
	return "feed_activity"
}

// AutoMigrate creates the storage tables.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&TimelineEntry{}, &ActivityRecord{})
}
