// 文件: pkg/report/csv.go
// 报价 CSV 读取 / 估值 CSV 报表
//
// 输入列: symbol,underlying,kind,spot,strike,expiry,rate,volatility,mark,bid,ask,ts
// kind 取 c/call/p/put，缺失的盘口留空或填 0

package report

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"
	"github.com/shopspring/decimal"

	"optlab.com/pkg/options"
	"optlab.com/pkg/quote"
)

// quoteRow CSV 输入行
type quoteRow struct {
	Symbol     string  `csv:"symbol"`
	Underlying string  `csv:"underlying"`
	Kind       string  `csv:"kind"`
	Spot       float64 `csv:"spot"`
	Strike     float64 `csv:"strike"`
	Expiry     float64 `csv:"expiry"`
	Rate       float64 `csv:"rate"`
	Volatility float64 `csv:"volatility"`
	Mark       float64 `csv:"mark,omitempty"`
	Bid        float64 `csv:"bid,omitempty"`
	Ask        float64 `csv:"ask,omitempty"`
	Ts         int64   `csv:"ts,omitempty"`
}

// valuationRow CSV 输出行，数值统一定点格式
type valuationRow struct {
	ID          int64  `csv:"id"`
	Symbol      string `csv:"symbol"`
	Underlying  string `csv:"underlying"`
	Kind        string `csv:"kind"`
	Spot        string `csv:"spot"`
	Strike      string `csv:"strike"`
	Expiry      string `csv:"expiry"`
	Volatility  string `csv:"volatility"`
	TheoPrice   string `csv:"theo_price"`
	Delta       string `csv:"delta"`
	Mark        string `csv:"mark"`
	Bid         string `csv:"bid"`
	Ask         string `csv:"ask"`
	ImpliedVol  string `csv:"implied_vol"`
	IVConverged string `csv:"iv_converged"`
	Signal      string `csv:"signal"`
}

// ReadQuotes 读取报价 CSV
func ReadQuotes(r io.Reader) ([]quote.Quote, error) {
	var rows []*quoteRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read quotes csv: %w", err)
	}

	quotes := make([]quote.Quote, 0, len(rows))
	for i, row := range rows {
		kind, err := options.ParseKind(row.Kind)
		if err != nil {
			// 表头占一行，数据行从第 2 行开始
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		quotes = append(quotes, quote.Quote{
			Symbol:     row.Symbol,
			Underlying: row.Underlying,
			Kind:       kind,
			Spot:       row.Spot,
			Strike:     row.Strike,
			Expiry:     row.Expiry,
			Rate:       row.Rate,
			Volatility: row.Volatility,
			Mark:       row.Mark,
			Bid:        row.Bid,
			Ask:        row.Ask,
			Ts:         row.Ts,
		})
	}
	return quotes, nil
}

// WriteValuations 写出估值报表
func WriteValuations(w io.Writer, vs []*quote.Valuation) error {
	rows := make([]*valuationRow, 0, len(vs))
	for _, v := range vs {
		row := &valuationRow{
			ID:         v.ID,
			Symbol:     v.Symbol,
			Underlying: v.Underlying,
			Kind:       v.Kind.String(),
			Spot:       fixed(v.Spot, 4),
			Strike:     fixed(v.Strike, 4),
			Expiry:     fixed(v.Expiry, 6),
			Volatility: fixed(v.Volatility, 4),
			TheoPrice:  fixed(v.TheoPrice, 4),
			Delta:      fixed(v.Delta, 4),
			Mark:       fixed(v.Mark, 4),
			Bid:        fixed(v.Bid, 4),
			Ask:        fixed(v.Ask, 4),
			Signal:     string(v.Signal),
		}
		if v.HasIV {
			row.ImpliedVol = fixed(v.ImpliedVol, 6)
			row.IVConverged = fmt.Sprintf("%t", v.IVConverged)
		}
		rows = append(rows, row)
	}
	return gocsv.Marshal(&rows, w)
}

func fixed(x float64, places int32) string {
	return decimal.NewFromFloat(x).StringFixed(places)
}
