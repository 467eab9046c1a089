// 文件: pkg/pnl/position.go
// 期权组合持仓: 一条看涨腿 + 一条看跌腿 (同执行价同到期) + 股票对冲

package pnl

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"
)

// Multiplier 每张合约对应的股数
const Multiplier = 100

// DateLayout 日期格式
const DateLayout = "2006-01-02"

var (
	ErrInvalidPosition = errors.New("invalid position")
	ErrInvalidSnapshot = errors.New("invalid snapshot")
)

// Side 买卖方向，零值非法
type Side uint8

const (
	Buy Side = iota + 1
	Sell
)

func ParseSide(s string) (Side, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "buy", "b", "long":
		return Buy, nil
	case "sell", "s", "short":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: side %q", ErrInvalidPosition, s)
	}
}

func (s Side) String() string {
	switch s {
	case Buy:
		return "buy"
	case Sell:
		return "sell"
	default:
		return "unknown"
	}
}

// Sign 多头 +1，空头 -1
func (s Side) Sign() float64 {
	if s == Sell {
		return -1
	}
	return 1
}

func (s Side) MarshalText() ([]byte, error) {
	if s != Buy && s != Sell {
		return nil, fmt.Errorf("%w: side %d", ErrInvalidPosition, uint8(s))
	}
	return []byte(s.String()), nil
}

func (s *Side) UnmarshalText(text []byte) error {
	parsed, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Leg 单条期权腿，Contracts 为 0 表示没有这条腿
type Leg struct {
	Side       Side    `json:"side"`
	Contracts  int     `json:"contracts"`
	TradePrice float64 `json:"trade_price"` // 每股权利金
}

func (l Leg) active() bool {
	return l.Contracts > 0
}

func (l Leg) validate(name string) error {
	if l.Contracts < 0 {
		return fmt.Errorf("%w: %s contracts=%d", ErrInvalidPosition, name, l.Contracts)
	}
	if !l.active() {
		return nil
	}
	if l.Side != Buy && l.Side != Sell {
		return fmt.Errorf("%w: %s side missing", ErrInvalidPosition, name)
	}
	if !(l.TradePrice >= 0) || math.IsInf(l.TradePrice, 0) {
		return fmt.Errorf("%w: %s trade price=%v", ErrInvalidPosition, name, l.TradePrice)
	}
	return nil
}

// Position 组合持仓
type Position struct {
	Underlying string  `json:"underlying"`
	Strike     float64 `json:"strike"`
	Expiration string  `json:"expiration"` // YYYY-MM-DD
	TradeDate  string  `json:"trade_date"` // 开仓日 YYYY-MM-DD

	// 股票对冲: 股数 = EffectiveDelta × Multiplier，正数为多头
	StockTradePrice float64 `json:"stock_trade_price"`
	EffectiveDelta  float64 `json:"effective_delta"`

	Call Leg `json:"call"`
	Put  Leg `json:"put"`
}

// Validate 检查持仓参数
func (p *Position) Validate() error {
	if p.Underlying == "" {
		return fmt.Errorf("%w: empty underlying", ErrInvalidPosition)
	}
	if !(p.Strike > 0) || math.IsInf(p.Strike, 0) {
		return fmt.Errorf("%w: strike=%v", ErrInvalidPosition, p.Strike)
	}
	if _, err := time.Parse(DateLayout, p.Expiration); err != nil {
		return fmt.Errorf("%w: expiration %q", ErrInvalidPosition, p.Expiration)
	}
	if _, err := time.Parse(DateLayout, p.TradeDate); err != nil {
		return fmt.Errorf("%w: trade date %q", ErrInvalidPosition, p.TradeDate)
	}
	if err := p.Call.validate("call"); err != nil {
		return err
	}
	if err := p.Put.validate("put"); err != nil {
		return err
	}
	if !p.Call.active() && !p.Put.active() {
		return fmt.Errorf("%w: no option legs", ErrInvalidPosition)
	}
	if math.IsNaN(p.EffectiveDelta) || math.IsInf(p.EffectiveDelta, 0) {
		return fmt.Errorf("%w: effective delta=%v", ErrInvalidPosition, p.EffectiveDelta)
	}
	if p.EffectiveDelta != 0 && (!(p.StockTradePrice > 0) || math.IsInf(p.StockTradePrice, 0)) {
		return fmt.Errorf("%w: stock trade price=%v", ErrInvalidPosition, p.StockTradePrice)
	}
	return nil
}

// Investment 投入的权利金总额 (买卖两个方向都按绝对值计)
func (p *Position) Investment() float64 {
	return (float64(p.Call.Contracts)*p.Call.TradePrice + float64(p.Put.Contracts)*p.Put.TradePrice) * Multiplier
}

// ContractSymbols 行情源的合约代码
// 格式: 标的 + 年(2位) + 日(2位) + 月份字母 + 执行价整数
// 月份字母看涨 A-L，看跌 M-X，如 AAPL 2024-09-20 230 -> AAPL2420I230 / AAPL2420U230
func ContractSymbols(underlying string, strike float64, expiration string) (call, put string, err error) {
	exp, err := time.Parse(DateLayout, expiration)
	if err != nil {
		return "", "", fmt.Errorf("%w: expiration %q", ErrInvalidPosition, expiration)
	}
	month := int(exp.Month()) - 1
	prefix := fmt.Sprintf("%s%02d%02d", underlying, exp.Year()%100, exp.Day())
	k := int64(strike)
	call = fmt.Sprintf("%s%c%d", prefix, 'A'+month, k)
	put = fmt.Sprintf("%s%c%d", prefix, 'M'+month, k)
	return call, put, nil
}
