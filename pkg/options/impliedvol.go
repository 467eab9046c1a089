package options

import (
	"fmt"
	"math"
)

// 隐含波动率搜索参数
const (
	DefaultTolerance     = 1e-6 // 价格误差阈值
	DefaultMaxIterations = 100  // 最大迭代次数

	// 固定搜索区间 [0, 500%]
	volLow  = 0.0
	volHigh = 5.0
)

// IVRequest 隐含波动率求解请求
// Tolerance / MaxIterations 为零时使用默认值
type IVRequest struct {
	Kind          Kind
	Spot          float64
	Strike        float64
	Expiry        float64
	Rate          float64
	ObservedPrice float64

	// InitialGuess 只为兼容旧接口保留，二分搜索不使用它
	InitialGuess float64

	Tolerance     float64
	MaxIterations int
}

// IVResult 隐含波动率求解结果
type IVResult struct {
	Volatility float64 // 估计的波动率
	Converged  bool    // 是否在 Tolerance 内命中观测价
	Iterations int     // 实际定价次数
	Residual   float64 // |Price(Volatility) − ObservedPrice|
}

// ImpliedVolatility 通过期权市场价格反推隐含波动率 (二分法)
//
// initialGuess 被忽略；tolerance 传 0 使用 1e-6，maxIterations 传 0 使用 100。
// 不收敛不算错误：返回最后区间的中点，调用方需要自行检查残差，
// 结果贴近 0 或 5 通常意味着观测价超出了 [0, 5] 区间能给出的价格范围 (或存在套利)。
func ImpliedVolatility(kind Kind, S, X, T, r, observed, initialGuess, tolerance float64, maxIterations int) (float64, error) {
	res, err := SolveImpliedVolatility(IVRequest{
		Kind:          kind,
		Spot:          S,
		Strike:        X,
		Expiry:        T,
		Rate:          r,
		ObservedPrice: observed,
		InitialGuess:  initialGuess,
		Tolerance:     tolerance,
		MaxIterations: maxIterations,
	})
	if err != nil {
		return 0, err
	}
	return res.Volatility, nil
}

// SolveImpliedVolatility 二分法求解隐含波动率，同时给出是否收敛和残差
//
// 二分的前提: 价格对波动率单调递增 (call / put 都成立)。
// price > C 说明波动率偏高，收缩上界；否则收缩下界。
func SolveImpliedVolatility(req IVRequest) (IVResult, error) {
	if err := req.validate(); err != nil {
		return IVResult{}, err
	}

	tol := req.Tolerance
	if tol == 0 {
		tol = DefaultTolerance
	}
	maxIter := req.MaxIterations
	if maxIter == 0 {
		maxIter = DefaultMaxIterations
	}

	low, high := volLow, volHigh
	iterations := 0
	for i := 0; i < maxIter; i++ {
		mid := (low + high) / 2
		if mid == 0 {
			break
		}
		iterations++
		p := price(req.Kind, req.Spot, req.Strike, req.Expiry, req.Rate, mid)
		diff := math.Abs(p - req.ObservedPrice)

		// 提前命中
		if diff < tol {
			return IVResult{Volatility: mid, Converged: true, Iterations: iterations, Residual: diff}, nil
		}

		if p > req.ObservedPrice {
			high = mid
		} else {
			low = mid
		}
	}

	// 用尽迭代次数，返回最终区间中点
	vol := (low + high) / 2
	res := IVResult{Volatility: vol, Iterations: iterations}
	var p float64
	if vol > 0 {
		p = price(req.Kind, req.Spot, req.Strike, req.Expiry, req.Rate, vol)
	} else {
		// 区间下溢到 0，用 v→0 的极限价格
		p = zeroVolPrice(req.Kind, req.Spot, req.Strike, req.Expiry, req.Rate)
	}
	res.Residual = math.Abs(p - req.ObservedPrice)
	res.Converged = res.Residual < tol
	return res, nil
}

// zeroVolPrice v→0 时的价格极限 (贴现内在价值)
func zeroVolPrice(kind Kind, S, X, T, r float64) float64 {
	forward := S - X*math.Exp(-r*T)
	if kind == Call {
		return math.Max(forward, 0)
	}
	return math.Max(-forward, 0)
}

func (req IVRequest) validate() error {
	if !req.Kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, uint8(req.Kind))
	}
	if err := validateMarket(req.Spot, req.Strike, req.Expiry, req.Rate); err != nil {
		return err
	}
	// 观测价必须非负且有限
	if !(req.ObservedPrice >= 0) || math.IsInf(req.ObservedPrice, 0) {
		return fmt.Errorf("%w: observed price=%v", ErrInvalidInputs, req.ObservedPrice)
	}
	if !(req.Tolerance >= 0) || math.IsInf(req.Tolerance, 0) {
		return fmt.Errorf("%w: tolerance=%v", ErrInvalidInputs, req.Tolerance)
	}
	if req.MaxIterations < 0 {
		return fmt.Errorf("%w: max iterations=%d", ErrInvalidInputs, req.MaxIterations)
	}
	return nil
}
