// 文件: pkg/quote/evaluate.go
// 报价估值: 理论价 + Delta + 隐含波动率 + 盘口信号

package quote

import (
	"time"

	"optlab.com/pkg/options"
)

// Evaluator 估值器 (无状态，可并发使用)
type Evaluator struct {
	Tolerance     float64 // 隐含波动率价格误差
	MaxIterations int     // 隐含波动率最大迭代次数
}

// DefaultEvaluator 默认配置
func DefaultEvaluator() Evaluator {
	return Evaluator{
		Tolerance:     options.DefaultTolerance,
		MaxIterations: options.DefaultMaxIterations,
	}
}

// Evaluate 计算单条报价的估值
// 参数非法时返回内核的 ErrInvalidInputs / ErrInvalidKind
func (e Evaluator) Evaluate(q Quote) (*Valuation, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	theo, err := options.Price(q.Kind, q.Spot, q.Strike, q.Expiry, q.Rate, q.Volatility)
	if err != nil {
		return nil, err
	}
	delta, err := options.Delta(q.Kind, q.Spot, q.Strike, q.Expiry, q.Rate, q.Volatility)
	if err != nil {
		return nil, err
	}

	v := &Valuation{
		ID:         NextID(),
		Symbol:     q.Symbol,
		Underlying: q.Underlying,
		Kind:       q.Kind,
		Spot:       q.Spot,
		Strike:     q.Strike,
		Expiry:     q.Expiry,
		Rate:       q.Rate,
		Volatility: q.Volatility,
		Mark:       q.Mark,
		Bid:        q.Bid,
		Ask:        q.Ask,
		TheoPrice:  theo,
		Delta:      delta,
		Signal:     Classify(theo, q.Bid, q.Ask),
		QuoteTs:    q.Ts,
		CreatedAt:  time.Now(),
	}

	// 有成交价才反推隐含波动率
	if q.Mark > 0 {
		res, err := options.SolveImpliedVolatility(options.IVRequest{
			Kind:          q.Kind,
			Spot:          q.Spot,
			Strike:        q.Strike,
			Expiry:        q.Expiry,
			Rate:          q.Rate,
			ObservedPrice: q.Mark,
			InitialGuess:  q.Volatility,
			Tolerance:     e.Tolerance,
			MaxIterations: e.MaxIterations,
		})
		if err != nil {
			return nil, err
		}
		v.HasIV = true
		v.ImpliedVol = res.Volatility
		v.IVConverged = res.Converged
		v.IVIterations = res.Iterations
		v.IVResidual = res.Residual
	}

	return v, nil
}

// Classify 比较模型价与盘口
// bid / ask 为 0 表示该侧缺失
func Classify(theo, bid, ask float64) Signal {
	if bid <= 0 && ask <= 0 {
		return SignalNone
	}
	if ask > 0 && theo > ask {
		return SignalCheap
	}
	if bid > 0 && theo < bid {
		return SignalRich
	}
	return SignalFair
}
