// 文件: pkg/store/snapshot.go
// 期权合约逐日收盘行情，供持仓盈亏跟踪使用

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"optlab.com/pkg/pnl"
)

// SnapshotRecord 收盘行情 (表 option_snapshots)
// (call_symbol, put_symbol, date) 唯一，重复写入覆盖
type SnapshotRecord struct {
	ID         uint64 `gorm:"primaryKey;autoIncrement"`
	CallSymbol string `gorm:"size:64;uniqueIndex:uk_contract_date,priority:1;not null"`
	PutSymbol  string `gorm:"size:64;uniqueIndex:uk_contract_date,priority:2;not null"`
	Date       string `gorm:"size:10;uniqueIndex:uk_contract_date,priority:3;not null"` // YYYY-MM-DD

	CallLast decimal.Decimal `gorm:"type:decimal(24,8)"`
	CallBid  decimal.Decimal `gorm:"type:decimal(24,8)"`
	CallAsk  decimal.Decimal `gorm:"type:decimal(24,8)"`
	PutLast  decimal.Decimal `gorm:"type:decimal(24,8)"`
	PutBid   decimal.Decimal `gorm:"type:decimal(24,8)"`
	PutAsk   decimal.Decimal `gorm:"type:decimal(24,8)"`
	Stock    decimal.Decimal `gorm:"type:decimal(24,8)"`

	UpdatedAt time.Time
}

func (SnapshotRecord) TableName() string {
	return "option_snapshots"
}

func FromSnapshot(s pnl.Snapshot) *SnapshotRecord {
	return &SnapshotRecord{
		CallSymbol: s.CallSymbol,
		PutSymbol:  s.PutSymbol,
		Date:       s.Date,
		CallLast:   decimal.NewFromFloat(s.CallLast),
		CallBid:    decimal.NewFromFloat(s.CallBid),
		CallAsk:    decimal.NewFromFloat(s.CallAsk),
		PutLast:    decimal.NewFromFloat(s.PutLast),
		PutBid:     decimal.NewFromFloat(s.PutBid),
		PutAsk:     decimal.NewFromFloat(s.PutAsk),
		Stock:      decimal.NewFromFloat(s.Stock),
	}
}

func (r *SnapshotRecord) ToSnapshot() pnl.Snapshot {
	return pnl.Snapshot{
		Date:       r.Date,
		CallSymbol: r.CallSymbol,
		PutSymbol:  r.PutSymbol,
		CallLast:   r.CallLast.InexactFloat64(),
		CallBid:    r.CallBid.InexactFloat64(),
		CallAsk:    r.CallAsk.InexactFloat64(),
		PutLast:    r.PutLast.InexactFloat64(),
		PutBid:     r.PutBid.InexactFloat64(),
		PutAsk:     r.PutAsk.InexactFloat64(),
		Stock:      r.Stock.InexactFloat64(),
	}
}

// MySQLSnapshotRepository 实现 pnl.SnapshotStore
type MySQLSnapshotRepository struct {
	db *gorm.DB
}

func NewMySQLSnapshotRepository(db *gorm.DB) *MySQLSnapshotRepository {
	return &MySQLSnapshotRepository{db: db}
}

// UpsertSnapshots 按 (call_symbol, put_symbol, date) 覆盖写入
func (r *MySQLSnapshotRepository) UpsertSnapshots(ctx context.Context, snaps []pnl.Snapshot) error {
	if len(snaps) == 0 {
		return nil
	}
	records := make([]*SnapshotRecord, 0, len(snaps))
	for _, s := range snaps {
		records = append(records, FromSnapshot(s))
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "call_symbol"}, {Name: "put_symbol"}, {Name: "date"}},
			UpdateAll: true,
		}).
		CreateInBatches(records, 200).Error
	if err != nil {
		return fmt.Errorf("upsert snapshots: %w", err)
	}
	return nil
}

// ListSnapshots 按日期升序返回 [from, to] 内的行情
func (r *MySQLSnapshotRepository) ListSnapshots(ctx context.Context, callSymbol, putSymbol, from, to string) ([]pnl.Snapshot, error) {
	var records []*SnapshotRecord
	err := r.db.WithContext(ctx).
		Where("call_symbol = ? AND put_symbol = ?", callSymbol, putSymbol).
		Where("date BETWEEN ? AND ?", from, to).
		Order("date ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	out := make([]pnl.Snapshot, 0, len(records))
	for _, rec := range records {
		out = append(out, rec.ToSnapshot())
	}
	return out, nil
}
