package market

import (
	"math"
	"math/rand"
	"time"
)

// SpotTick 标的价格快照
type SpotTick struct {
	Underlying string
	Price      float64
	Ts         time.Time
}

// Ticker 标的价格模拟器
// 价格按几何布朗运动 (无漂移) 演化，保证为正
type Ticker struct {
	Underlying string
	Price      float64
	Interval   time.Duration
	Volatility float64 // 年化波动率

	stopChan    chan struct{}
	outChan     chan SpotTick
	lastUpdated time.Time
	rng         *rand.Rand
}

// NewTicker 创建模拟器，默认 50% 年化波动率
func NewTicker(underlying string, startPrice float64, interval time.Duration) *Ticker {
	return &Ticker{
		Underlying:  underlying,
		Price:       startPrice,
		Interval:    interval,
		Volatility:  0.5,
		stopChan:    make(chan struct{}),
		outChan:     make(chan SpotTick, 100),
		lastUpdated: time.Now(),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Start 启动，返回只读通道；Stop 后通道关闭
func (t *Ticker) Start() <-chan SpotTick {
	go t.loop()
	return t.outChan
}

func (t *Ticker) Stop() {
	close(t.stopChan)
}

// Step 推进 dt 年，返回新价格
func (t *Ticker) Step(dt float64) float64 {
	if dt <= 0 {
		dt = 1e-9
	}
	sigma := t.Volatility
	z := t.rng.NormFloat64()
	t.Price *= math.Exp(-0.5*sigma*sigma*dt + sigma*math.Sqrt(dt)*z)
	return t.Price
}

func (t *Ticker) loop() {
	ticker := time.NewTicker(t.Interval)
	defer ticker.Stop()
	defer close(t.outChan)

	for {
		select {
		case <-t.stopChan:
			return
		case now := <-ticker.C:
			dt := now.Sub(t.lastUpdated).Hours() / 24 / 365
			t.lastUpdated = now

			tick := SpotTick{
				Underlying: t.Underlying,
				Price:      t.Step(dt),
				Ts:         now,
			}

			// 下游慢时丢弃，旧价格没有意义
			select {
			case t.outChan <- tick:
			default:
			}
		}
	}
}
