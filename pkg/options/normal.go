package options

import "gonum.org/v1/gonum/stat/distuv"

// StandardNormalCDF 标准正态分布的累积分布函数 Φ(x)
// gonum 的实现是 0.5 * erfc(-x/√2)，尾部不会出现 1 - erf 那样的相消误差
// Φ(-Inf) = 0, Φ(+Inf) = 1
func StandardNormalCDF(x float64) float64 {
	return distuv.UnitNormal.CDF(x)
}
