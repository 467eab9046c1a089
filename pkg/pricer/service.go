// 文件: pkg/pricer/service.go
// 报价估值服务
//
// 报价 (NATS / Kafka / HTTP / CSV) -> Evaluator -> Sinks + Broadcaster

package pricer

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"optlab.com/pkg/nats"
	"optlab.com/pkg/quote"
)

// ServiceStats 服务统计
type ServiceStats struct {
	Received   int64 // 收到的报价
	Evaluated  int64 // 成功估值
	Rejected   int64 // 解码或参数非法
	Unresolved int64 // 隐含波动率未收敛
	SinkErrors int64 // 下游失败次数
	Dropped    int64 // 广播丢弃次数
}

// Service 报价估值服务
type Service struct {
	evaluator   quote.Evaluator
	sinks       []Sink
	broadcaster *Broadcaster

	received   atomic.Int64
	evaluated  atomic.Int64
	rejected   atomic.Int64
	unresolved atomic.Int64
	sinkErrors atomic.Int64
	dropped    atomic.Int64
}

// NewService 创建服务
func NewService(evaluator quote.Evaluator, sinks ...Sink) *Service {
	return &Service{
		evaluator:   evaluator,
		sinks:       sinks,
		broadcaster: NewBroadcaster(1024),
	}
}

// Subscribe 订阅估值流
func (s *Service) Subscribe() <-chan *quote.Valuation {
	return s.broadcaster.Subscribe()
}

// HandleQuote 估值并分发
// 参数非法直接返回错误；下游失败只记日志和计数，不影响返回
func (s *Service) HandleQuote(ctx context.Context, q quote.Quote) (*quote.Valuation, error) {
	s.received.Add(1)

	v, err := s.evaluator.Evaluate(q)
	if err != nil {
		s.rejected.Add(1)
		return nil, fmt.Errorf("evaluate %s: %w", q.Symbol, err)
	}
	s.evaluated.Add(1)
	if v.HasIV && !v.IVConverged {
		s.unresolved.Add(1)
		log.Printf("[Pricer] implied vol not converged: symbol=%s mark=%.4f iv=%.4f residual=%.6f",
			v.Symbol, v.Mark, v.ImpliedVol, v.IVResidual)
	}

	for _, sink := range s.sinks {
		if err := sink.Accept(ctx, v); err != nil {
			s.sinkErrors.Add(1)
			log.Printf("[Pricer] sink error: symbol=%s, err=%v", v.Symbol, err)
		}
	}

	if n := s.broadcaster.Broadcast(v); n > 0 {
		s.dropped.Add(int64(n))
	}
	return v, nil
}

// HandleMessage 处理 JSON 报价消息 (nats.MessageHandler 签名)
func (s *Service) HandleMessage(subject string, data []byte) error {
	q, err := nats.UnmarshalJSON[quote.Quote](data)
	if err != nil {
		s.received.Add(1)
		s.rejected.Add(1)
		return fmt.Errorf("decode quote from %s: %w", subject, err)
	}
	_, err = s.HandleQuote(context.Background(), *q)
	return err
}

// HandleKafka 处理 Kafka 报价消息 (kafka.MessageHandler 签名)
func (s *Service) HandleKafka(topic string, _ []byte, value []byte) error {
	return s.HandleMessage(topic, value)
}

// Stats 获取统计
func (s *Service) Stats() ServiceStats {
	return ServiceStats{
		Received:   s.received.Load(),
		Evaluated:  s.evaluated.Load(),
		Rejected:   s.rejected.Load(),
		Unresolved: s.unresolved.Load(),
		SinkErrors: s.sinkErrors.Load(),
		Dropped:    s.dropped.Load(),
	}
}

// Close 关闭广播通道
func (s *Service) Close() {
	s.broadcaster.Close()
}
