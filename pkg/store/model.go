// 文件: pkg/store/model.go
// 估值历史表

package store

import (
	"time"

	"github.com/shopspring/decimal"

	"optlab.com/pkg/options"
	"optlab.com/pkg/quote"
)

// ValuationRecord 估值记录 (表 option_valuations)
// 价格类字段用 decimal 落库，避免 float 在 MySQL DOUBLE 上的展示误差
type ValuationRecord struct {
	ID          uint64 `gorm:"primaryKey;autoIncrement"`
	ValuationID int64  `gorm:"uniqueIndex;not null"` // 雪花 ID，幂等键
	Symbol      string `gorm:"size:64;index:idx_symbol_created,priority:1;not null"`
	Underlying  string `gorm:"size:32;index;not null"`
	Kind        string `gorm:"size:8;not null"` // call / put

	Spot       decimal.Decimal `gorm:"type:decimal(24,8)"`
	Strike     decimal.Decimal `gorm:"type:decimal(24,8)"`
	Expiry     float64
	Rate       float64
	Volatility float64
	Mark       decimal.Decimal `gorm:"type:decimal(24,8)"`
	Bid        decimal.Decimal `gorm:"type:decimal(24,8)"`
	Ask        decimal.Decimal `gorm:"type:decimal(24,8)"`

	TheoPrice decimal.Decimal `gorm:"type:decimal(24,10)"`
	Delta     float64

	HasIV        bool
	ImpliedVol   float64
	IVConverged  bool
	IVIterations int
	IVResidual   float64

	Signal    string    `gorm:"size:8"`
	QuoteTs   int64     // 报价时间 (毫秒)
	CreatedAt time.Time `gorm:"index:idx_symbol_created,priority:2"`
}

// TableName 表名
func (ValuationRecord) TableName() string {
	return "option_valuations"
}

// FromValuation 领域对象 -> 表记录
func FromValuation(v *quote.Valuation) *ValuationRecord {
	return &ValuationRecord{
		ValuationID:  v.ID,
		Symbol:       v.Symbol,
		Underlying:   v.Underlying,
		Kind:         v.Kind.String(),
		Spot:         decimal.NewFromFloat(v.Spot),
		Strike:       decimal.NewFromFloat(v.Strike),
		Expiry:       v.Expiry,
		Rate:         v.Rate,
		Volatility:   v.Volatility,
		Mark:         decimal.NewFromFloat(v.Mark),
		Bid:          decimal.NewFromFloat(v.Bid),
		Ask:          decimal.NewFromFloat(v.Ask),
		TheoPrice:    decimal.NewFromFloat(v.TheoPrice).Round(10),
		Delta:        v.Delta,
		HasIV:        v.HasIV,
		ImpliedVol:   v.ImpliedVol,
		IVConverged:  v.IVConverged,
		IVIterations: v.IVIterations,
		IVResidual:   v.IVResidual,
		Signal:       string(v.Signal),
		QuoteTs:      v.QuoteTs,
		CreatedAt:    v.CreatedAt,
	}
}

// ToValuation 表记录 -> 领域对象
func (r *ValuationRecord) ToValuation() (*quote.Valuation, error) {
	kind, err := options.ParseKind(r.Kind)
	if err != nil {
		return nil, err
	}
	return &quote.Valuation{
		ID:           r.ValuationID,
		Symbol:       r.Symbol,
		Underlying:   r.Underlying,
		Kind:         kind,
		Spot:         r.Spot.InexactFloat64(),
		Strike:       r.Strike.InexactFloat64(),
		Expiry:       r.Expiry,
		Rate:         r.Rate,
		Volatility:   r.Volatility,
		Mark:         r.Mark.InexactFloat64(),
		Bid:          r.Bid.InexactFloat64(),
		Ask:          r.Ask.InexactFloat64(),
		TheoPrice:    r.TheoPrice.InexactFloat64(),
		Delta:        r.Delta,
		HasIV:        r.HasIV,
		ImpliedVol:   r.ImpliedVol,
		IVConverged:  r.IVConverged,
		IVIterations: r.IVIterations,
		IVResidual:   r.IVResidual,
		Signal:       quote.Signal(r.Signal),
		QuoteTs:      r.QuoteTs,
		CreatedAt:    r.CreatedAt,
	}, nil
}
