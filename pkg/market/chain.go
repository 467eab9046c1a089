// 文件: pkg/market/chain.go
// 期权链报价模拟
//
// 给定标的价格，按执行价网格生成看涨/看跌报价:
//   真实波动率 = BaseVol + Skew * ln(K/S)^2 (微笑)
//   Mark = BS(真实波动率) * (1 + 噪声)，Bid/Ask 围绕 Mark 对称展开
// 下游用 BaseVol 定价、用 Mark 反推 IV，就能看到微笑和 cheap/rich 信号

package market

import (
	"fmt"
	"math"
	"math/rand"
	"time"

	"optlab.com/pkg/options"
	"optlab.com/pkg/quote"
)

// ChainConfig 期权链参数
type ChainConfig struct {
	Underlying string
	Strikes    []float64
	Expiry     float64 // 年
	Rate       float64
	BaseVol    float64 // 平值波动率，也是下游定价用的波动率
	Skew       float64 // 微笑曲率
	Spread     float64 // 买卖价差，相对 Mark 的比例
	Noise      float64 // Mark 噪声幅度，相对比例
}

// DefaultChainConfig 围绕 spot 生成 ±20% 的 9 档执行价
func DefaultChainConfig(underlying string, spot float64) ChainConfig {
	strikes := make([]float64, 0, 9)
	for i := -4; i <= 4; i++ {
		strikes = append(strikes, math.Round(spot*(1+0.05*float64(i))))
	}
	return ChainConfig{
		Underlying: underlying,
		Strikes:    strikes,
		Expiry:     30.0 / 365,
		Rate:       0.03,
		BaseVol:    0.5,
		Skew:       1.5,
		Spread:     0.02,
		Noise:      0.01,
	}
}

// Chain 期权链生成器 (非并发安全)
type Chain struct {
	cfg ChainConfig
	rng *rand.Rand
}

func NewChain(cfg ChainConfig, seed int64) *Chain {
	return &Chain{cfg: cfg, rng: rand.New(rand.NewSource(seed))}
}

// Symbol 合约代码，如 ETH-C-2100
func Symbol(underlying string, kind options.Kind, strike float64) string {
	k := "C"
	if kind == options.Put {
		k = "P"
	}
	return fmt.Sprintf("%s-%s-%.0f", underlying, k, strike)
}

// TrueVol 执行价对应的"真实"波动率
func (c *Chain) TrueVol(spot, strike float64) float64 {
	m := math.Log(strike / spot)
	return c.cfg.BaseVol + c.cfg.Skew*m*m
}

// Quotes 生成一轮报价
func (c *Chain) Quotes(spot float64, ts time.Time) ([]quote.Quote, error) {
	out := make([]quote.Quote, 0, 2*len(c.cfg.Strikes))
	for _, strike := range c.cfg.Strikes {
		vol := c.TrueVol(spot, strike)
		for _, kind := range []options.Kind{options.Call, options.Put} {
			fair, err := options.Price(kind, spot, strike, c.cfg.Expiry, c.cfg.Rate, vol)
			if err != nil {
				return nil, err
			}
			mark := fair * (1 + c.cfg.Noise*(2*c.rng.Float64()-1))
			half := mark * c.cfg.Spread / 2

			out = append(out, quote.Quote{
				Symbol:     Symbol(c.cfg.Underlying, kind, strike),
				Underlying: c.cfg.Underlying,
				Kind:       kind,
				Spot:       spot,
				Strike:     strike,
				Expiry:     c.cfg.Expiry,
				Rate:       c.cfg.Rate,
				Volatility: c.cfg.BaseVol,
				Mark:       mark,
				Bid:        mark - half,
				Ask:        mark + half,
				Ts:         ts.UnixMilli(),
			})
		}
	}
	return out, nil
}
