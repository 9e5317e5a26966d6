package db

import (
	"fmt"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/yungbote/feedstream-backend/internal/logger"
	"github.com/yungbote/feedstream-backend/internal/store/sqlstore"
	"github.com/yungbote/feedstream-backend/internal/utils"
)

// SQLiteService backs the SQL stores with a local file, for embedded and
// single node deployments.
type SQLiteService struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSQLiteService(log *logger.Logger) (*SQLiteService, error) {
	serviceLog := log.With("service", "SQLiteService")
	path := utils.GetEnv("SQLITE_PATH", "feedstream.db", log)

	serviceLog.Info("Opening SQLite database...", "path", path)
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		serviceLog.Error("Failed to open SQLite database", "error", err)
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	return &SQLiteService{db: gdb, log: serviceLog}, nil
}

func (s *SQLiteService) AutoMigrateAll() error {
	s.log.Info("Auto migrating sqlite tables...")
	if err := sqlstore.AutoMigrate(s.db); err != nil {
		s.log.Error("Auto migration failed for sqlite tables", "error", err)
		return err
	}
	return nil
}

func (s *SQLiteService) DB() *gorm.DB {
	return s.db
}
