package options

import (
	"errors"
	"fmt"
	"math"
)

var (
	// 错误信息，针对无效输入
	ErrInvalidInputs = errors.New("invalid inputs")
	// 期权类型非法
	ErrInvalidKind = errors.New("invalid option kind")
)

/*
Black-Scholes 欧式期权定价 (无分红)

	d1 = (ln(S/X) + (r + 0.5·v²)·T) / (v·√T)
	d2 = d1 − v·√T
	Call = S·N(d1) − X·e^(−rT)·N(d2)
	Put  = X·e^(−rT)·N(−d2) − S·N(−d1)

参数统一为已年化的浮点数:
S: 标的现价  X: 执行价  T: 剩余期限 (年)  r: 无风险利率 (连续复利)  v: 波动率

T <= 0 或 v <= 0 时公式本身无定义 (除零 / NaN)，这里直接返回 ErrInvalidInputs，
不做内在价值兜底，否则会掩盖上游的标定错误。
*/

// Price 计算欧式期权的 Black-Scholes 价格
func Price(kind Kind, S, X, T, r, v float64) (float64, error) {
	if err := validate(kind, S, X, T, r, v); err != nil {
		return 0, err
	}
	return price(kind, S, X, T, r, v), nil
}

// Delta 计算欧式期权的 Delta (闭式解，不是对 Price 做差分)
// Call: N(d1)   Put: N(d1) − 1
func Delta(kind Kind, S, X, T, r, v float64) (float64, error) {
	if err := validate(kind, S, X, T, r, v); err != nil {
		return 0, err
	}
	d1 := calcD1(S, X, T, r, v)
	if kind == Call {
		return StandardNormalCDF(d1), nil
	}
	return StandardNormalCDF(d1) - 1, nil
}

// price 不做校验的定价，调用方保证参数合法 (隐含波动率的二分循环里复用)
func price(kind Kind, S, X, T, r, v float64) float64 {
	d1 := calcD1(S, X, T, r, v)
	d2 := d1 - v*math.Sqrt(T)
	discount := X * math.Exp(-r*T)

	if kind == Call {
		return S*StandardNormalCDF(d1) - discount*StandardNormalCDF(d2)
	}
	return discount*StandardNormalCDF(-d2) - S*StandardNormalCDF(-d1)
}

// calcD1 计算 Black-Scholes 公式中的 d1
func calcD1(S, X, T, r, v float64) float64 {
	return (math.Log(S/X) + (r+0.5*v*v)*T) / (v * math.Sqrt(T))
}

// validate 检查 Black-Scholes 输入的有效性
func validate(kind Kind, S, X, T, r, v float64) error {
	if !kind.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidKind, uint8(kind))
	}
	if err := validateMarket(S, X, T, r); err != nil {
		return err
	}
	// 波动率必须大于零且有限
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%w: volatility=%v", ErrInvalidInputs, v)
	}
	return nil
}

// validateMarket 校验与波动率无关的市场参数
func validateMarket(S, X, T, r float64) error {
	// 标的价格和执行价必须大于零
	if !(S > 0) || math.IsInf(S, 0) {
		return fmt.Errorf("%w: spot=%v", ErrInvalidInputs, S)
	}
	if !(X > 0) || math.IsInf(X, 0) {
		return fmt.Errorf("%w: strike=%v", ErrInvalidInputs, X)
	}
	// 到期时间必须大于零
	if !(T > 0) || math.IsInf(T, 0) {
		return fmt.Errorf("%w: expiry=%v", ErrInvalidInputs, T)
	}
	// 利率没有符号限制，只要求是有限值
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return fmt.Errorf("%w: rate=%v", ErrInvalidInputs, r)
	}
	return nil
}
