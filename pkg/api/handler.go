// 文件: pkg/api/handler.go
// 定价 HTTP 接口 (gin)
//
//   GET  /health
//   POST /v1/price          理论价
//   POST /v1/delta          Delta
//   POST /v1/implied-vol    隐含波动率
//   POST /v1/evaluate       完整估值 (走 pricer.Service，结果同样进入下游)
//   GET    /v1/valuations/:symbol                 缓存中的最新估值
//   DELETE /v1/valuations/:symbol                 合约下市，清除缓存
//   GET    /v1/valuations/:symbol/history?limit=  落库的历史估值 (新的在前)
//   GET    /v1/records/:id                        按估值 ID 查询
//   GET    /v1/smile/:underlying?kind=call        同一标的的隐含波动率微笑
//   POST   /v1/pnl/snapshots                      写入合约收盘行情
//   POST   /v1/pnl/track                          持仓逐日盈亏

package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"optlab.com/pkg/cache"
	"optlab.com/pkg/options"
	"optlab.com/pkg/pnl"
	"optlab.com/pkg/quote"
	"optlab.com/pkg/store"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// QuoteEvaluator 报价估值入口，由 pricer.Service 实现
type QuoteEvaluator interface {
	HandleQuote(ctx context.Context, q quote.Quote) (*quote.Valuation, error)
}

// ValuationCache 估值缓存，由 cache.RedisValuationCache 实现
type ValuationCache interface {
	Latest(ctx context.Context, symbol string) (*quote.Valuation, error)
	Smile(ctx context.Context, underlying string, kind options.Kind) ([]*quote.Valuation, error)
	Remove(ctx context.Context, symbol string) error
}

// ValuationHistory 估值历史，由 store.MySQLValuationRepository 实现
type ValuationHistory interface {
	GetByID(ctx context.Context, valuationID int64) (*quote.Valuation, error)
	ListBySymbol(ctx context.Context, symbol string, limit int) ([]*quote.Valuation, error)
}

// MarketRequest 定价参数
type MarketRequest struct {
	Kind       options.Kind `json:"kind"`
	Spot       float64      `json:"spot"`
	Strike     float64      `json:"strike"`
	Expiry     float64      `json:"expiry"`
	Rate       float64      `json:"rate"`
	Volatility float64      `json:"volatility"`
}

// IVRequest 隐含波动率参数
type IVRequest struct {
	Kind          options.Kind `json:"kind"`
	Spot          float64      `json:"spot"`
	Strike        float64      `json:"strike"`
	Expiry        float64      `json:"expiry"`
	Rate          float64      `json:"rate"`
	Price         float64      `json:"price"`
	InitialGuess  float64      `json:"initial_guess"`
	Tolerance     float64      `json:"tolerance"`
	MaxIterations int          `json:"max_iterations"`
}

// IVResponse 隐含波动率结果
type IVResponse struct {
	Volatility float64 `json:"volatility"`
	Converged  bool    `json:"converged"`
	Iterations int     `json:"iterations"`
	Residual   float64 `json:"residual"`
}

// Handler cache / history / tracker 都可为 nil，对应接口返回 503
type Handler struct {
	evaluator QuoteEvaluator
	cache     ValuationCache
	history   ValuationHistory
	tracker   PnLTracker

	maxIVIterations int // 请求可指定的迭代次数上限
}

// NewHandler maxIVIterations <= 0 时取 options.DefaultMaxIterations × 10
func NewHandler(evaluator QuoteEvaluator, valCache ValuationCache, history ValuationHistory, tracker PnLTracker, maxIVIterations int) *Handler {
	if maxIVIterations <= 0 {
		maxIVIterations = options.DefaultMaxIterations * 10
	}
	return &Handler{
		evaluator:       evaluator,
		cache:           valCache,
		history:         history,
		tracker:         tracker,
		maxIVIterations: maxIVIterations,
	}
}

// NewRouter 创建 gin 引擎并注册路由
func NewRouter(h *Handler) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	h.RegisterRoutes(router)
	return router
}

// RegisterRoutes 注册路由
func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.GET("/health", h.Health)

	v1 := router.Group("/v1")
	{
		v1.POST("/price", h.Price)
		v1.POST("/delta", h.Delta)
		v1.POST("/implied-vol", h.ImpliedVol)
		v1.POST("/evaluate", h.Evaluate)
		v1.GET("/valuations/:symbol", h.Latest)
		v1.DELETE("/valuations/:symbol", h.Delist)
		v1.GET("/valuations/:symbol/history", h.History)
		v1.GET("/records/:id", h.Record)
		v1.GET("/smile/:underlying", h.Smile)

		v1.POST("/pnl/snapshots", h.RecordSnapshots)
		v1.POST("/pnl/track", h.TrackPnL)
	}
}

func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Price 理论价
func (h *Handler) Price(c *gin.Context) {
	var req MarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}

	price, err := options.Price(req.Kind, req.Spot, req.Strike, req.Expiry, req.Rate, req.Volatility)
	if err != nil {
		errorWithStatus(c, statusOf(err), err.Error())
		return
	}
	success(c, gin.H{"price": price})
}

// Delta 一阶价格敏感度
func (h *Handler) Delta(c *gin.Context) {
	var req MarketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}

	delta, err := options.Delta(req.Kind, req.Spot, req.Strike, req.Expiry, req.Rate, req.Volatility)
	if err != nil {
		errorWithStatus(c, statusOf(err), err.Error())
		return
	}
	success(c, gin.H{"delta": delta})
}

// ImpliedVol 隐含波动率，未收敛不算错误，由 converged 字段表达
func (h *Handler) ImpliedVol(c *gin.Context) {
	var req IVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}
	if req.MaxIterations > h.maxIVIterations {
		errorWithStatus(c, http.StatusBadRequest,
			fmt.Sprintf("max_iterations %d exceeds limit %d", req.MaxIterations, h.maxIVIterations))
		return
	}

	res, err := options.SolveImpliedVolatility(options.IVRequest{
		Kind:          req.Kind,
		Spot:          req.Spot,
		Strike:        req.Strike,
		Expiry:        req.Expiry,
		Rate:          req.Rate,
		ObservedPrice: req.Price,
		InitialGuess:  req.InitialGuess,
		Tolerance:     req.Tolerance,
		MaxIterations: req.MaxIterations,
	})
	if err != nil {
		errorWithStatus(c, statusOf(err), err.Error())
		return
	}
	success(c, IVResponse{
		Volatility: res.Volatility,
		Converged:  res.Converged,
		Iterations: res.Iterations,
		Residual:   res.Residual,
	})
}

// Evaluate 完整估值
func (h *Handler) Evaluate(c *gin.Context) {
	var q quote.Quote
	if err := c.ShouldBindJSON(&q); err != nil {
		errorWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}

	v, err := h.evaluator.HandleQuote(c.Request.Context(), q)
	if err != nil {
		errorWithStatus(c, statusOf(err), err.Error())
		return
	}
	success(c, v)
}

// Latest 最新估值
func (h *Handler) Latest(c *gin.Context) {
	if h.cache == nil {
		errorWithStatus(c, http.StatusServiceUnavailable, "valuation cache disabled")
		return
	}

	symbol := c.Param("symbol")
	v, err := h.cache.Latest(c.Request.Context(), symbol)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			log.Printf("[API] latest %s failed: %v", symbol, err)
		}
		errorWithStatus(c, statusOf(err), err.Error())
		return
	}
	success(c, v)
}

// Smile 按执行价排序的最新估值
func (h *Handler) Smile(c *gin.Context) {
	if h.cache == nil {
		errorWithStatus(c, http.StatusServiceUnavailable, "valuation cache disabled")
		return
	}

	kind, err := options.ParseKind(c.DefaultQuery("kind", "call"))
	if err != nil {
		errorWithStatus(c, http.StatusBadRequest, err.Error())
		return
	}

	underlying := c.Param("underlying")
	vs, err := h.cache.Smile(c.Request.Context(), underlying, kind)
	if err != nil {
		log.Printf("[API] smile %s/%s failed: %v", underlying, kind, err)
		errorWithStatus(c, statusOf(err), err.Error())
		return
	}
	if vs == nil {
		vs = []*quote.Valuation{}
	}
	success(c, vs)
}

// Delist 合约下市，清除最新估值和微笑索引
func (h *Handler) Delist(c *gin.Context) {
	if h.cache == nil {
		errorWithStatus(c, http.StatusServiceUnavailable, "valuation cache disabled")
		return
	}

	symbol := c.Param("symbol")
	if err := h.cache.Remove(c.Request.Context(), symbol); err != nil {
		log.Printf("[API] delist %s failed: %v", symbol, err)
		errorWithStatus(c, statusOf(err), err.Error())
		return
	}
	log.Printf("[API] delisted %s", symbol)
	success(c, gin.H{"symbol": symbol})
}

// History 历史估值，limit 默认 50，最大 500
func (h *Handler) History(c *gin.Context) {
	if h.history == nil {
		errorWithStatus(c, http.StatusServiceUnavailable, "valuation history disabled")
		return
	}

	limit := defaultHistoryLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > maxHistoryLimit {
			errorWithStatus(c, http.StatusBadRequest, fmt.Sprintf("limit must be in [1, %d]", maxHistoryLimit))
			return
		}
		limit = n
	}

	symbol := c.Param("symbol")
	vs, err := h.history.ListBySymbol(c.Request.Context(), symbol, limit)
	if err != nil {
		log.Printf("[API] history %s failed: %v", symbol, err)
		errorWithStatus(c, statusOf(err), err.Error())
		return
	}
	if vs == nil {
		vs = []*quote.Valuation{}
	}
	success(c, vs)
}

// Record 按估值 ID 查询落库记录
func (h *Handler) Record(c *gin.Context) {
	if h.history == nil {
		errorWithStatus(c, http.StatusServiceUnavailable, "valuation history disabled")
		return
	}

	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		errorWithStatus(c, http.StatusBadRequest, "invalid valuation id")
		return
	}

	v, err := h.history.GetByID(c.Request.Context(), id)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[API] record %d failed: %v", id, err)
		}
		errorWithStatus(c, statusOf(err), err.Error())
		return
	}
	success(c, v)
}

// statusOf 错误 -> HTTP 状态码
func statusOf(err error) int {
	switch {
	case errors.Is(err, options.ErrInvalidInputs),
		errors.Is(err, options.ErrInvalidKind),
		errors.Is(err, quote.ErrInvalidQuote),
		errors.Is(err, pnl.ErrInvalidPosition),
		errors.Is(err, pnl.ErrInvalidSnapshot):
		return http.StatusBadRequest
	case errors.Is(err, cache.ErrMiss),
		errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
