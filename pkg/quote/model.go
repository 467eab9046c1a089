// 文件: pkg/quote/model.go
// 期权报价与估值结果
//
// Quote 来自行情源 (NATS / Kafka / CSV / HTTP)
// Valuation 是 Quote 经过 Black-Scholes 内核计算后的结果

package quote

import (
	"errors"
	"fmt"
	"time"

	"optlab.com/pkg/options"
)

// =============================================================================
// 常量定义
// =============================================================================

// Kafka Topic
const (
	TopicQuotes     = "option_quotes"     // 期权报价
	TopicValuations = "option_valuations" // 估值结果
)

// NATS Subject
const (
	SubjectQuotes     = "options.quotes"
	SubjectValuations = "options.valuations"
	SubjectDelist     = "options.delist" // 合约下市通知，载荷为 Delist
)

var ErrInvalidQuote = errors.New("invalid quote")

// Signal 模型价相对盘口的信号
type Signal string

const (
	SignalNone  Signal = "none"  // 没有盘口
	SignalCheap Signal = "cheap" // 模型价 > 卖一价，市场报价偏便宜
	SignalRich  Signal = "rich"  // 模型价 < 买一价，市场报价偏贵
	SignalFair  Signal = "fair"  // 模型价落在盘口内
)

// =============================================================================
// Quote 期权报价
// =============================================================================

// Quote 一条期权报价
// 所有数值参数都已年化，Expiry 以年为单位 (不做日历/计息日换算)
type Quote struct {
	Symbol     string       `json:"symbol"`     // 合约代码，如 AAPL240920C230
	Underlying string       `json:"underlying"` // 标的，如 AAPL
	Kind       options.Kind `json:"kind"`

	Spot       float64 `json:"spot"`       // 标的现价
	Strike     float64 `json:"strike"`     // 执行价
	Expiry     float64 `json:"expiry"`     // 剩余期限 (年)
	Rate       float64 `json:"rate"`       // 无风险利率
	Volatility float64 `json:"volatility"` // 定价用波动率

	// 盘口，0 表示缺失
	Mark float64 `json:"mark"` // 最新成交价，用于反推隐含波动率
	Bid  float64 `json:"bid"`
	Ask  float64 `json:"ask"`

	Ts int64 `json:"ts"` // 报价时间 (毫秒)
}

// Validate 检查标识字段，数值合法性交给定价内核
func (q *Quote) Validate() error {
	if q.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidQuote)
	}
	if q.Underlying == "" {
		return fmt.Errorf("%w: empty underlying for %s", ErrInvalidQuote, q.Symbol)
	}
	if !q.Kind.Valid() {
		return fmt.Errorf("%w: %s", options.ErrInvalidKind, q.Symbol)
	}
	return nil
}

// Delist 合约下市通知
type Delist struct {
	Symbol string `json:"symbol"`
}

// =============================================================================
// Valuation 估值结果
// =============================================================================

// Valuation 单条报价的估值
type Valuation struct {
	ID         int64        `json:"id"`
	Symbol     string       `json:"symbol"`
	Underlying string       `json:"underlying"`
	Kind       options.Kind `json:"kind"`

	// ===== 输入快照 =====
	Spot       float64 `json:"spot"`
	Strike     float64 `json:"strike"`
	Expiry     float64 `json:"expiry"`
	Rate       float64 `json:"rate"`
	Volatility float64 `json:"volatility"`
	Mark       float64 `json:"mark"`
	Bid        float64 `json:"bid"`
	Ask        float64 `json:"ask"`

	// ===== 模型输出 =====
	TheoPrice float64 `json:"theo_price"`
	Delta     float64 `json:"delta"`

	// ===== 隐含波动率 =====
	HasIV        bool    `json:"has_iv"` // 有成交价才计算
	ImpliedVol   float64 `json:"implied_vol"`
	IVConverged  bool    `json:"iv_converged"`
	IVIterations int     `json:"iv_iterations"`
	IVResidual   float64 `json:"iv_residual"`

	Signal    Signal    `json:"signal"`
	QuoteTs   int64     `json:"quote_ts"`
	CreatedAt time.Time `json:"created_at"`
}
