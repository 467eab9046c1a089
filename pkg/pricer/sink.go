// 文件: pkg/pricer/sink.go
// 估值输出端: NATS / Kafka / Redis / 批量落库

package pricer

import (
	"context"

	"optlab.com/pkg/kafka"
	"optlab.com/pkg/quote"
)

// Sink 估值结果的下游
type Sink interface {
	Accept(ctx context.Context, v *quote.Valuation) error
}

// SinkFunc 函数适配
type SinkFunc func(ctx context.Context, v *quote.Valuation) error

func (f SinkFunc) Accept(ctx context.Context, v *quote.Valuation) error {
	return f(ctx, v)
}

// subjectPublisher 对应 nats.Publisher
type subjectPublisher interface {
	Publish(subject string, data any) error
}

// messageSender 对应 kafka.Producer
type messageSender interface {
	Send(msg kafka.Message) error
}

// valuationCache 对应 cache.RedisValuationCache
type valuationCache interface {
	Put(ctx context.Context, v *quote.Valuation) error
}

// NatsSink 发布到 options.valuations
func NatsSink(p subjectPublisher) Sink {
	return SinkFunc(func(_ context.Context, v *quote.Valuation) error {
		return p.Publish(quote.SubjectValuations, v)
	})
}

// KafkaSink 发送到 option_valuations
func KafkaSink(s messageSender) Sink {
	return SinkFunc(func(_ context.Context, v *quote.Valuation) error {
		return s.Send(v)
	})
}

// CacheSink 写入最新估值缓存
func CacheSink(c valuationCache) Sink {
	return SinkFunc(c.Put)
}
