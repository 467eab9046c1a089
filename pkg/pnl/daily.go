// 文件: pkg/pnl/daily.go
// 逐日盯市盈亏
//
// 多头腿按买一价平仓、空头腿按卖一价平仓，盘口缺失时退回最新成交价
// PnL    = Σ sign × (平仓价 − 开仓价) × 张数 × 100 + 对冲股数 × (收盘价 − 买入价)
// Change = PnL / 投入权利金 × 100 (%)

package pnl

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot 某日收盘时的合约行情
type Snapshot struct {
	Date       string  `json:"date"`
	CallSymbol string  `json:"call_symbol"`
	PutSymbol  string  `json:"put_symbol"`
	CallLast   float64 `json:"call_last"`
	CallBid    float64 `json:"call_bid"`
	CallAsk    float64 `json:"call_ask"`
	PutLast    float64 `json:"put_last"`
	PutBid     float64 `json:"put_bid"`
	PutAsk     float64 `json:"put_ask"`
	Stock      float64 `json:"stock"` // 标的收盘价
}

// Validate 检查日期和合约代码
func (s *Snapshot) Validate() error {
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return fmt.Errorf("%w: date %q", ErrInvalidSnapshot, s.Date)
	}
	if s.CallSymbol == "" || s.PutSymbol == "" {
		return fmt.Errorf("%w: missing contract symbol on %s", ErrInvalidSnapshot, s.Date)
	}
	return nil
}

// DailyPnL 单日盈亏
type DailyPnL struct {
	Date       string  `json:"date"`
	StockClose float64 `json:"stock_close"`
	CallClose  float64 `json:"call_close"`
	PutClose   float64 `json:"put_close"`
	PnL        float64 `json:"pnl"`
	Change     float64 `json:"change"` // 百分比
}

// exitPrice 平仓价
func exitPrice(side Side, last, bid, ask float64) float64 {
	p := bid
	if side == Sell {
		p = ask
	}
	if p > 0 {
		return p
	}
	return last
}

// Compute 计算 [TradeDate, to] 内每个交易日的盈亏，to 为空表示不限
// 合约代码与持仓不符的行情被忽略；有仓位的腿缺价格的日期跳过
func Compute(pos Position, snaps []Snapshot, to string) ([]DailyPnL, error) {
	if err := pos.Validate(); err != nil {
		return nil, err
	}
	callSym, putSym, err := ContractSymbols(pos.Underlying, pos.Strike, pos.Expiration)
	if err != nil {
		return nil, err
	}

	rows := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		if s.Date < pos.TradeDate || (to != "" && s.Date > to) {
			continue
		}
		if (s.CallSymbol != "" && s.CallSymbol != callSym) || (s.PutSymbol != "" && s.PutSymbol != putSym) {
			continue
		}
		rows = append(rows, s)
	}
	sort.SliceStable(rows, func(i, j int) bool { return rows[i].Date < rows[j].Date })

	investment := pos.Investment()
	hedgeShares := pos.EffectiveDelta * Multiplier

	out := make([]DailyPnL, 0, len(rows))
	for _, s := range rows {
		d := DailyPnL{Date: s.Date, StockClose: s.Stock}
		total := 0.0

		if pos.Call.active() {
			d.CallClose = exitPrice(pos.Call.Side, s.CallLast, s.CallBid, s.CallAsk)
			if d.CallClose <= 0 {
				continue
			}
			total += pos.Call.Side.Sign() * (d.CallClose - pos.Call.TradePrice) * float64(pos.Call.Contracts) * Multiplier
		}
		if pos.Put.active() {
			d.PutClose = exitPrice(pos.Put.Side, s.PutLast, s.PutBid, s.PutAsk)
			if d.PutClose <= 0 {
				continue
			}
			total += pos.Put.Side.Sign() * (d.PutClose - pos.Put.TradePrice) * float64(pos.Put.Contracts) * Multiplier
		}
		if hedgeShares != 0 {
			if s.Stock <= 0 {
				continue
			}
			total += hedgeShares * (s.Stock - pos.StockTradePrice)
		}

		d.PnL = round2(total)
		if investment > 0 {
			d.Change = round2(d.PnL / investment * 100)
		}
		out = append(out, d)
	}
	return out, nil
}

func round2(x float64) float64 {
	return decimal.NewFromFloat(x).Round(2).InexactFloat64()
}
