// 文件: pkg/store/mysql_repo.go
package store

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"optlab.com/pkg/quote"
)

// ErrNotFound 记录不存在
var ErrNotFound = errors.New("valuation not found")

// Open 打开 MySQL 连接
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	return db, nil
}

// AutoMigrate 建表
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&ValuationRecord{}, &SnapshotRecord{})
}

type MySQLValuationRepository struct {
	db *gorm.DB
}

func NewMySQLValuationRepository(db *gorm.DB) *MySQLValuationRepository {
	return &MySQLValuationRepository{db: db}
}

// BatchCreate 批量写入，valuation_id 冲突的记录跳过 (消息重投时幂等)
func (r *MySQLValuationRepository) BatchCreate(ctx context.Context, vs []*quote.Valuation) error {
	if len(vs) == 0 {
		return nil
	}
	records := make([]*ValuationRecord, 0, len(vs))
	for _, v := range vs {
		records = append(records, FromValuation(v))
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		CreateInBatches(records, 200).Error
}

func (r *MySQLValuationRepository) GetByID(ctx context.Context, valuationID int64) (*quote.Valuation, error) {
	var record ValuationRecord
	err := r.db.WithContext(ctx).Where("valuation_id = ?", valuationID).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return record.ToValuation()
}

func (r *MySQLValuationRepository) ListBySymbol(ctx context.Context, symbol string, limit int) ([]*quote.Valuation, error) {
	var records []*ValuationRecord
	err := r.db.WithContext(ctx).
		Where("symbol = ?", symbol).
		Order("created_at DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make([]*quote.Valuation, 0, len(records))
	for _, rec := range records {
		v, err := rec.ToValuation()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
