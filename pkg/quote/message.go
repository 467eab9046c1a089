// 文件: pkg/quote/message.go
// Quote / Valuation 实现 kafka.Message 接口

package quote

import "encoding/json"

// =============================================================================
// Quote 实现 kafka.Message 接口
// =============================================================================

// Topic 返回 Kafka topic
func (q *Quote) Topic() string {
	return TopicQuotes
}

// Key 返回分区 key (按合约分区保证同一合约的报价有序)
func (q *Quote) Key() string {
	return q.Symbol
}

// Value 返回序列化后的消息体
func (q *Quote) Value() ([]byte, error) {
	return json.Marshal(q)
}

// =============================================================================
// Valuation 实现 kafka.Message 接口
// =============================================================================

// Topic 返回 Kafka topic
func (v *Valuation) Topic() string {
	return TopicValuations
}

// Key 返回分区 key
func (v *Valuation) Key() string {
	return v.Symbol
}

// Value 返回序列化后的消息体
func (v *Valuation) Value() ([]byte, error) {
	return json.Marshal(v)
}
