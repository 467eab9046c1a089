package pricer

import (
	"sync"

	"optlab.com/pkg/quote"
)

// Broadcaster 估值广播器 (Fan-out)
//
//	   Service (生产者)
//	         |
//	   [Broadcaster]
//	    /    |    \
//	 日志   监控   推送
//
// 慢订阅者不能拖慢热路径：通道满了直接丢弃该条估值
type Broadcaster struct {
	// 订阅少、广播多，读写锁
	mu          sync.RWMutex
	subscribers []chan *quote.Valuation
	bufSize     int
}

func NewBroadcaster(bufSize int) *Broadcaster {
	if bufSize <= 0 {
		bufSize = 1024
	}
	return &Broadcaster{bufSize: bufSize}
}

// Subscribe 注册订阅者
func (b *Broadcaster) Subscribe() <-chan *quote.Valuation {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan *quote.Valuation, b.bufSize)
	b.subscribers = append(b.subscribers, ch)
	return ch
}

// Broadcast 非阻塞分发，返回被丢弃的次数
func (b *Broadcaster) Broadcast(v *quote.Valuation) int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	dropped := 0
	for _, ch := range b.subscribers {
		select {
		case ch <- v:
		default:
			dropped++
		}
	}
	return dropped
}

// Close 关闭所有订阅通道
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, ch := range b.subscribers {
		close(ch)
	}
	b.subscribers = nil
}
