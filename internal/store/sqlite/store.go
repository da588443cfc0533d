package sqlite

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"hooktrader/internal/store"
	"hooktrader/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// SqliteStore 基于 gorm + sqlite 保存交易历史。
type SqliteStore struct {
	db       *gorm.DB
	capacity int
	mu       sync.Mutex
}

func NewSqliteStore(path string, capacity int) (*SqliteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("database path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	return NewSqliteStoreFromDB(db, capacity)
}

func NewSqliteStoreFromDB(db *gorm.DB, capacity int) (*SqliteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("gorm db 不能为空")
	}
	if err := db.AutoMigrate(&model.TradeRecord{}); err != nil {
		return nil, fmt.Errorf("migrate trade_history: %w", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(2)
		sqlDB.SetMaxIdleConns(2)
	}
	if capacity <= 0 {
		capacity = store.DefaultCapacity
	}
	return &SqliteStore{db: db, capacity: capacity}, nil
}

// Append 在同一事务内插入并淘汰超出容量的最旧记录。
func (s *SqliteStore) Append(ctx context.Context, rec *model.TradeRecord) error {
	if rec == nil {
		return fmt.Errorf("trade record cannot be nil")
	}
	store.Prepare(rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(rec).Error; err != nil {
			return fmt.Errorf("insert trade record: %w", err)
		}
		evict := tx.Exec(
			"DELETE FROM trade_history WHERE seq NOT IN (SELECT seq FROM trade_history ORDER BY seq DESC LIMIT ?)",
			s.capacity,
		)
		if evict.Error != nil {
			return fmt.Errorf("evict trade records: %w", evict.Error)
		}
		return nil
	})
}

func (s *SqliteStore) List(ctx context.Context, f store.Filter) ([]model.TradeRecord, error) {
	f = f.Normalize()
	q := s.db.WithContext(ctx).Model(&model.TradeRecord{})
	if f.Side != "" {
		q = q.Where("side = ?", f.Side)
	}
	if f.Symbol != "" {
		q = q.Where("symbol = ?", f.Symbol)
	}
	var rows []model.TradeRecord
	if f.Limit > 0 {
		if err := q.Order("seq DESC").Limit(f.Limit).Find(&rows).Error; err != nil {
			return nil, err
		}
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
		return rows, nil
	}
	if err := q.Order("seq ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (s *SqliteStore) Count(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).Model(&model.TradeRecord{}).Count(&n).Error
	return n, err
}

func (s *SqliteStore) Close() error {
	if s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
