// 文件: pkg/nats/publisher.go
// NATS 消息发布者
// 轻量级替代 Kafka，本地开发 / 单机部署时估值事件走这里

package nats

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// connect 统一的连接参数: 断线无限重连
func connect(url, name string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats %s: %w", url, err)
	}
	return conn, nil
}

// Publisher NATS 发布者
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher 创建发布者
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url, "optlab-publisher")
	if err != nil {
		return nil, err
	}
	return &Publisher{conn: conn}, nil
}

// Publish 以 JSON 发布消息
func (p *Publisher) Publish(subject string, data any) error {
	bytes, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	return p.conn.Publish(subject, bytes)
}

// Flush 等待服务端确认已发送的消息
func (p *Publisher) Flush() error {
	return p.conn.Flush()
}

// Close 关闭连接 (先 Drain，保证缓冲区消息发出)
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
	}
}
