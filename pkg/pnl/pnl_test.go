package pnl

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func longCallPosition() Position {
	return Position{
		Underlying:      "AAPL",
		Strike:          230,
		Expiration:      "2024-09-20",
		TradeDate:       "2024-08-20",
		StockTradePrice: 222,
		EffectiveDelta:  0.02,
		Call:            Leg{Side: Buy, Contracts: 3, TradePrice: 2.79},
	}
}

func TestContractSymbols(t *testing.T) {
	call, put, err := ContractSymbols("AAPL", 230, "2024-09-20")
	require.NoError(t, err)
	assert.Equal(t, "AAPL2420I230", call)
	assert.Equal(t, "AAPL2420U230", put)

	call, put, err = ContractSymbols("SPY", 500, "2025-01-03")
	require.NoError(t, err)
	assert.Equal(t, "SPY2503A500", call)
	assert.Equal(t, "SPY2503M500", put)

	_, _, err = ContractSymbols("AAPL", 230, "20240920")
	require.ErrorIs(t, err, ErrInvalidPosition)
}

func TestParseSide(t *testing.T) {
	s, err := ParseSide(" BUY ")
	require.NoError(t, err)
	assert.Equal(t, Buy, s)

	s, err = ParseSide("sell")
	require.NoError(t, err)
	assert.Equal(t, Sell, s)

	_, err = ParseSide("hold")
	require.ErrorIs(t, err, ErrInvalidPosition)

	var leg Leg
	require.NoError(t, json.Unmarshal([]byte(`{"side":"sell","contracts":2,"trade_price":1.5}`), &leg))
	assert.Equal(t, Sell, leg.Side)
}

func TestPosition_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(p *Position)
	}{
		{"empty underlying", func(p *Position) { p.Underlying = "" }},
		{"zero strike", func(p *Position) { p.Strike = 0 }},
		{"bad expiration", func(p *Position) { p.Expiration = "09/20/2024" }},
		{"bad trade date", func(p *Position) { p.TradeDate = "" }},
		{"no legs", func(p *Position) { p.Call.Contracts = 0 }},
		{"negative contracts", func(p *Position) { p.Put.Contracts = -1 }},
		{"missing side", func(p *Position) { p.Call.Side = 0 }},
		{"hedge without stock price", func(p *Position) { p.StockTradePrice = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := longCallPosition()
			tt.mutate(&p)
			require.ErrorIs(t, p.Validate(), ErrInvalidPosition)
		})
	}

	p := longCallPosition()
	require.NoError(t, p.Validate())
	assert.InDelta(t, 837.0, p.Investment(), 1e-9)
}

func TestCompute_LongCallWithHedge(t *testing.T) {
	snaps := []Snapshot{
		{Date: "2024-08-21", CallSymbol: "AAPL2420I230", PutSymbol: "AAPL2420U230", CallLast: 3.10, Stock: 224},
		{Date: "2024-08-19", CallSymbol: "AAPL2420I230", PutSymbol: "AAPL2420U230", CallLast: 2.5, CallBid: 2.4, CallAsk: 2.6, Stock: 220},
		{Date: "2024-08-20", CallSymbol: "AAPL2420I230", PutSymbol: "AAPL2420U230", CallLast: 2.75, CallBid: 2.70, CallAsk: 2.80, Stock: 222.5},
		{Date: "2024-08-22", CallSymbol: "AAPL2420I235", PutSymbol: "AAPL2420U235", CallLast: 9, Stock: 224},
		{Date: "2024-08-23", CallSymbol: "AAPL2420I230", PutSymbol: "AAPL2420U230", Stock: 225},
	}

	rows, err := Compute(longCallPosition(), snaps, "")
	require.NoError(t, err)
	require.Len(t, rows, 2)

	// 多头按买一价平仓: (2.70-2.79)*300 + 2*(222.5-222)
	assert.Equal(t, "2024-08-20", rows[0].Date)
	assert.Equal(t, 2.70, rows[0].CallClose)
	assert.Equal(t, -26.0, rows[0].PnL)
	assert.Equal(t, -3.11, rows[0].Change)

	// 没有买一价时用最新成交价
	assert.Equal(t, "2024-08-21", rows[1].Date)
	assert.Equal(t, 3.10, rows[1].CallClose)
	assert.Equal(t, 97.0, rows[1].PnL)
	assert.Equal(t, 11.59, rows[1].Change)
}

func TestCompute_ShortPutUsesAsk(t *testing.T) {
	pos := Position{
		Underlying: "AAPL",
		Strike:     230,
		Expiration: "2024-09-20",
		TradeDate:  "2024-08-20",
		Put:        Leg{Side: Sell, Contracts: 2, TradePrice: 1.50},
	}
	snaps := []Snapshot{
		{Date: "2024-08-20", PutLast: 1.2, PutBid: 1.1, PutAsk: 1.25},
		{Date: "2024-08-21", PutLast: 2.0, PutBid: 1.9, PutAsk: 2.1},
	}

	rows, err := Compute(pos, snaps, "2024-08-20")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 1.25, rows[0].PutClose)
	assert.Equal(t, 50.0, rows[0].PnL)
	assert.Equal(t, 16.67, rows[0].Change)
	assert.Zero(t, rows[0].CallClose)
}

func TestCompute_InvalidPosition(t *testing.T) {
	pos := longCallPosition()
	pos.Strike = -1
	_, err := Compute(pos, nil, "")
	require.ErrorIs(t, err, ErrInvalidPosition)
}

func TestTracker_RecordAndTrack(t *testing.T) {
	ctx := context.Background()
	tracker := NewTracker(NewMemoryStore())

	require.NoError(t, tracker.Record(ctx, []Snapshot{
		{Date: "2024-08-20", CallSymbol: "AAPL2420I230", PutSymbol: "AAPL2420U230", CallBid: 2.0, Stock: 222},
		{Date: "2024-08-21", CallSymbol: "AAPL2420I230", PutSymbol: "AAPL2420U230", CallBid: 3.0, Stock: 222},
	}))
	// 同一日期再写一次覆盖旧值
	require.NoError(t, tracker.Record(ctx, []Snapshot{
		{Date: "2024-08-20", CallSymbol: "AAPL2420I230", PutSymbol: "AAPL2420U230", CallBid: 2.79, Stock: 222},
	}))

	rows, err := tracker.Track(ctx, longCallPosition(), "2024-08-21")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 0.0, rows[0].PnL)
	assert.Equal(t, 63.0, rows[1].PnL)
}

func TestTracker_RecordRejectsInvalidSnapshot(t *testing.T) {
	tracker := NewTracker(NewMemoryStore())
	err := tracker.Record(context.Background(), []Snapshot{{Date: "2024-13-01", CallSymbol: "X", PutSymbol: "Y"}})
	require.ErrorIs(t, err, ErrInvalidSnapshot)

	err = tracker.Record(context.Background(), []Snapshot{{Date: "2024-08-20"}})
	require.ErrorIs(t, err, ErrInvalidSnapshot)
}
