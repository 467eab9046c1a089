package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"optlab.com/pkg/cache"
	"optlab.com/pkg/options"
	"optlab.com/pkg/pnl"
	"optlab.com/pkg/pricer"
	"optlab.com/pkg/quote"
	"optlab.com/pkg/store"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// memBackend 内存版缓存 + 历史
type memBackend struct {
	latest  map[string]*quote.Valuation
	history []*quote.Valuation
}

func (r *memBackend) Latest(_ context.Context, symbol string) (*quote.Valuation, error) {
	v, ok := r.latest[symbol]
	if !ok {
		return nil, cache.ErrMiss
	}
	return v, nil
}

func (r *memBackend) Smile(_ context.Context, underlying string, kind options.Kind) ([]*quote.Valuation, error) {
	var out []*quote.Valuation
	for _, v := range r.latest {
		if v.Underlying == underlying && v.Kind == kind {
			out = append(out, v)
		}
	}
	return out, nil
}

func (r *memBackend) Remove(_ context.Context, symbol string) error {
	delete(r.latest, symbol)
	return nil
}

func (r *memBackend) GetByID(_ context.Context, id int64) (*quote.Valuation, error) {
	for _, v := range r.history {
		if v.ID == id {
			return v, nil
		}
	}
	return nil, store.ErrNotFound
}

func (r *memBackend) ListBySymbol(_ context.Context, symbol string, limit int) ([]*quote.Valuation, error) {
	var out []*quote.Valuation
	for i := len(r.history) - 1; i >= 0 && len(out) < limit; i-- {
		if r.history[i].Symbol == symbol {
			out = append(out, r.history[i])
		}
	}
	return out, nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func setupRouter(t *testing.T) (*gin.Engine, *memBackend) {
	t.Helper()
	backend := &memBackend{latest: make(map[string]*quote.Valuation)}
	svc := pricer.NewService(quote.DefaultEvaluator(), pricer.SinkFunc(func(_ context.Context, v *quote.Valuation) error {
		backend.latest[v.Symbol] = v
		backend.history = append(backend.history, v)
		return nil
	}))
	t.Cleanup(svc.Close)
	tracker := pnl.NewTracker(pnl.NewMemoryStore())
	return NewRouter(NewHandler(svc, backend, backend, tracker, 0)), backend
}

func evaluateCall(t *testing.T, router *gin.Engine, symbol string, strike float64) {
	t.Helper()
	code, _ := do(t, router, http.MethodPost, "/v1/evaluate", quote.Quote{
		Symbol:     symbol,
		Underlying: "AAPL",
		Kind:       options.Call,
		Spot:       100,
		Strike:     strike,
		Expiry:     0.5,
		Rate:       0.03,
		Volatility: 0.25,
	})
	require.Equal(t, http.StatusOK, code)
}

func do(t *testing.T, router *gin.Engine, method, path string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w.Code, env
}

func TestHealth(t *testing.T) {
	router, _ := setupRouter(t)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestPriceAndDelta(t *testing.T) {
	router, _ := setupRouter(t)
	body := map[string]any{"kind": "call", "spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "volatility": 0.2}

	code, env := do(t, router, http.MethodPost, "/v1/price", body)
	require.Equal(t, http.StatusOK, code)
	var price struct{ Price float64 }
	require.NoError(t, json.Unmarshal(env.Data, &price))
	assert.InDelta(t, 10.450583572185565, price.Price, 1e-9)

	body["kind"] = "p"
	code, env = do(t, router, http.MethodPost, "/v1/delta", body)
	require.Equal(t, http.StatusOK, code)
	var delta struct{ Delta float64 }
	require.NoError(t, json.Unmarshal(env.Data, &delta))
	assert.InDelta(t, 0.6368306511756191-1, delta.Delta, 1e-9)
}

func TestPrice_InvalidInputs(t *testing.T) {
	router, _ := setupRouter(t)

	tests := []struct {
		name string
		body map[string]any
	}{
		{"zero spot", map[string]any{"kind": "call", "spot": 0, "strike": 100, "expiry": 1, "rate": 0.05, "volatility": 0.2}},
		{"missing kind", map[string]any{"spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "volatility": 0.2}},
		{"unknown kind", map[string]any{"kind": "straddle", "spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "volatility": 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, env := do(t, router, http.MethodPost, "/v1/price", tt.body)
			assert.Equal(t, http.StatusBadRequest, code)
			assert.NotEmpty(t, env.Message)
		})
	}
}

func TestImpliedVol(t *testing.T) {
	router, _ := setupRouter(t)

	code, env := do(t, router, http.MethodPost, "/v1/implied-vol", map[string]any{
		"kind": "call", "spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "price": 10.450583572185565,
	})
	require.Equal(t, http.StatusOK, code)
	var res IVResponse
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.True(t, res.Converged)
	assert.InDelta(t, 0.2, res.Volatility, 1e-5)

	// 超出区间: 不是错误，converged=false
	code, env = do(t, router, http.MethodPost, "/v1/implied-vol", map[string]any{
		"kind": "call", "spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "price": 99.9,
	})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.False(t, res.Converged)

	code, _ = do(t, router, http.MethodPost, "/v1/implied-vol", map[string]any{
		"kind": "call", "spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "price": -1,
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEvaluateThenLatestAndSmile(t *testing.T) {
	router, _ := setupRouter(t)

	for _, strike := range []float64{110, 90, 100} {
		evaluateCall(t, router, fmt.Sprintf("AAPL-C-%.0f", strike), strike)
	}

	code, env := do(t, router, http.MethodGet, "/v1/valuations/AAPL-C-90", nil)
	require.Equal(t, http.StatusOK, code)
	var v quote.Valuation
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, 90.0, v.Strike)
	assert.Greater(t, v.TheoPrice, 10.0)

	code, env = do(t, router, http.MethodGet, "/v1/smile/AAPL?kind=c", nil)
	require.Equal(t, http.StatusOK, code)
	var smile []quote.Valuation
	require.NoError(t, json.Unmarshal(env.Data, &smile))
	assert.Len(t, smile, 3)

	code, env = do(t, router, http.MethodGet, "/v1/smile/AAPL?kind=put", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))
}

func TestLatest_Miss(t *testing.T) {
	router, _ := setupRouter(t)
	code, _ := do(t, router, http.MethodGet, "/v1/valuations/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestSmile_BadKind(t *testing.T) {
	router, _ := setupRouter(t)
	code, _ := do(t, router, http.MethodGet, "/v1/smile/AAPL?kind=x", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestEvaluate_InvalidQuote(t *testing.T) {
	router, _ := setupRouter(t)
	code, _ := do(t, router, http.MethodPost, "/v1/evaluate", map[string]any{
		"symbol": "", "underlying": "AAPL", "kind": "call", "spot": 100, "strike": 100, "expiry": 1, "volatility": 0.2,
	})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCacheDisabled(t *testing.T) {
	svc := pricer.NewService(quote.DefaultEvaluator())
	defer svc.Close()
	router := NewRouter(NewHandler(svc, nil, nil, nil, 0))

	paths := []struct{ method, path string }{
		{http.MethodGet, "/v1/valuations/AAPL-C-90"},
		{http.MethodDelete, "/v1/valuations/AAPL-C-90"},
		{http.MethodGet, "/v1/valuations/AAPL-C-90/history"},
		{http.MethodGet, "/v1/records/1"},
		{http.MethodPost, "/v1/pnl/track"},
	}
	for _, p := range paths {
		code, _ := do(t, router, p.method, p.path, nil)
		assert.Equal(t, http.StatusServiceUnavailable, code, p.path)
	}
}

func TestImpliedVol_MaxIterationsCap(t *testing.T) {
	router, _ := setupRouter(t)
	body := map[string]any{
		"kind": "call", "spot": 100, "strike": 100, "expiry": 1, "rate": 0.05, "price": 10.450583572185565,
	}

	// 默认上限 DefaultMaxIterations × 10
	body["max_iterations"] = options.DefaultMaxIterations*10 + 1
	code, env := do(t, router, http.MethodPost, "/v1/implied-vol", body)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, env.Message, "max_iterations")

	body["max_iterations"] = options.DefaultMaxIterations * 10
	code, _ = do(t, router, http.MethodPost, "/v1/implied-vol", body)
	assert.Equal(t, http.StatusOK, code)

	// 自定义上限
	svc := pricer.NewService(quote.DefaultEvaluator())
	defer svc.Close()
	capped := NewRouter(NewHandler(svc, nil, nil, nil, 50))
	body["max_iterations"] = 51
	code, _ = do(t, capped, http.MethodPost, "/v1/implied-vol", body)
	assert.Equal(t, http.StatusBadRequest, code)
	body["max_iterations"] = 50
	code, _ = do(t, capped, http.MethodPost, "/v1/implied-vol", body)
	assert.Equal(t, http.StatusOK, code)
}

func TestHistoryAndRecord(t *testing.T) {
	router, backend := setupRouter(t)
	for i := 0; i < 3; i++ {
		evaluateCall(t, router, "AAPL-C-100", 100)
	}
	evaluateCall(t, router, "AAPL-C-110", 110)

	code, env := do(t, router, http.MethodGet, "/v1/valuations/AAPL-C-100/history?limit=2", nil)
	require.Equal(t, http.StatusOK, code)
	var list []quote.Valuation
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 2)
	assert.Equal(t, backend.history[2].ID, list[0].ID)

	code, env = do(t, router, http.MethodGet, "/v1/valuations/AAPL-C-100/history", nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 3)

	code, env = do(t, router, http.MethodGet, "/v1/valuations/NOPE/history", nil)
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `[]`, string(env.Data))

	for _, bad := range []string{"0", "-1", "501", "abc"} {
		code, _ = do(t, router, http.MethodGet, "/v1/valuations/AAPL-C-100/history?limit="+bad, nil)
		assert.Equal(t, http.StatusBadRequest, code, bad)
	}

	id := backend.history[3].ID
	code, env = do(t, router, http.MethodGet, fmt.Sprintf("/v1/records/%d", id), nil)
	require.Equal(t, http.StatusOK, code)
	var v quote.Valuation
	require.NoError(t, json.Unmarshal(env.Data, &v))
	assert.Equal(t, "AAPL-C-110", v.Symbol)

	code, _ = do(t, router, http.MethodGet, "/v1/records/12345", nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, router, http.MethodGet, "/v1/records/x", nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestDelist(t *testing.T) {
	router, _ := setupRouter(t)
	evaluateCall(t, router, "AAPL-C-100", 100)

	code, _ := do(t, router, http.MethodGet, "/v1/valuations/AAPL-C-100", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, router, http.MethodDelete, "/v1/valuations/AAPL-C-100", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = do(t, router, http.MethodGet, "/v1/valuations/AAPL-C-100", nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestPnL_RecordAndTrack(t *testing.T) {
	router, _ := setupRouter(t)

	code, env := do(t, router, http.MethodPost, "/v1/pnl/snapshots", []pnl.Snapshot{
		{Date: "2024-08-20", CallSymbol: "AAPL2420I230", PutSymbol: "AAPL2420U230", CallBid: 2.70, CallAsk: 2.80, Stock: 222.5},
		{Date: "2024-08-21", CallSymbol: "AAPL2420I230", PutSymbol: "AAPL2420U230", CallLast: 3.10, Stock: 224},
	})
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"count":2}`, string(env.Data))

	code, env = do(t, router, http.MethodPost, "/v1/pnl/track", map[string]any{
		"position": map[string]any{
			"underlying":        "AAPL",
			"strike":            230,
			"expiration":        "2024-09-20",
			"trade_date":        "2024-08-20",
			"stock_trade_price": 222,
			"effective_delta":   0.02,
			"call":              map[string]any{"side": "buy", "contracts": 3, "trade_price": 2.79},
		},
		"to": "2024-08-31",
	})
	require.Equal(t, http.StatusOK, code)
	var rows []pnl.DailyPnL
	require.NoError(t, json.Unmarshal(env.Data, &rows))
	require.Len(t, rows, 2)
	assert.Equal(t, -26.0, rows[0].PnL)
	assert.Equal(t, 97.0, rows[1].PnL)
	assert.Equal(t, 11.59, rows[1].Change)
}

func TestPnL_InvalidInput(t *testing.T) {
	router, _ := setupRouter(t)

	code, _ := do(t, router, http.MethodPost, "/v1/pnl/snapshots", []pnl.Snapshot{{Date: "bad", CallSymbol: "A", PutSymbol: "B"}})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, http.MethodPost, "/v1/pnl/track", map[string]any{
		"position": map[string]any{"underlying": "AAPL", "strike": 230, "expiration": "2024-09-20", "trade_date": "2024-08-20"},
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = do(t, router, http.MethodPost, "/v1/pnl/track", map[string]any{
		"position": map[string]any{"call": map[string]any{"side": "hold"}},
	})
	assert.Equal(t, http.StatusBadRequest, code)
}
