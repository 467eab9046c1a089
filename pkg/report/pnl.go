// 文件: pkg/report/pnl.go
// 收盘行情 CSV 读取 / 逐日盈亏 CSV 报表
//
// 输入列: date,call_symbol,put_symbol,call_last,call_bid,call_ask,put_last,put_bid,put_ask,stock
// 缺失的价格留空或填 0

package report

import (
	"fmt"
	"io"

	"github.com/gocarina/gocsv"

	"optlab.com/pkg/pnl"
)

type snapshotRow struct {
	Date       string  `csv:"date"`
	CallSymbol string  `csv:"call_symbol"`
	PutSymbol  string  `csv:"put_symbol"`
	CallLast   float64 `csv:"call_last,omitempty"`
	CallBid    float64 `csv:"call_bid,omitempty"`
	CallAsk    float64 `csv:"call_ask,omitempty"`
	PutLast    float64 `csv:"put_last,omitempty"`
	PutBid     float64 `csv:"put_bid,omitempty"`
	PutAsk     float64 `csv:"put_ask,omitempty"`
	Stock      float64 `csv:"stock,omitempty"`
}

type dailyPnLRow struct {
	Date       string `csv:"date"`
	StockClose string `csv:"stock_close"`
	CallClose  string `csv:"call_close"`
	PutClose   string `csv:"put_close"`
	PnL        string `csv:"pnl"`
	Change     string `csv:"change_pct"`
}

// ReadSnapshots 读取收盘行情 CSV
func ReadSnapshots(r io.Reader) ([]pnl.Snapshot, error) {
	var rows []*snapshotRow
	if err := gocsv.Unmarshal(r, &rows); err != nil {
		return nil, fmt.Errorf("read snapshots csv: %w", err)
	}

	snaps := make([]pnl.Snapshot, 0, len(rows))
	for i, row := range rows {
		s := pnl.Snapshot{
			Date:       row.Date,
			CallSymbol: row.CallSymbol,
			PutSymbol:  row.PutSymbol,
			CallLast:   row.CallLast,
			CallBid:    row.CallBid,
			CallAsk:    row.CallAsk,
			PutLast:    row.PutLast,
			PutBid:     row.PutBid,
			PutAsk:     row.PutAsk,
			Stock:      row.Stock,
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("line %d: %w", i+2, err)
		}
		snaps = append(snaps, s)
	}
	return snaps, nil
}

// WriteDailyPnL 写出逐日盈亏
func WriteDailyPnL(w io.Writer, rows []pnl.DailyPnL) error {
	out := make([]*dailyPnLRow, 0, len(rows))
	for _, d := range rows {
		out = append(out, &dailyPnLRow{
			Date:       d.Date,
			StockClose: fixed(d.StockClose, 2),
			CallClose:  fixed(d.CallClose, 2),
			PutClose:   fixed(d.PutClose, 2),
			PnL:        fixed(d.PnL, 2),
			Change:     fixed(d.Change, 2),
		})
	}
	return gocsv.Marshal(&out, w)
}
