// 文件: pkg/pricer/writer.go
// 估值批量落库
//
// - 攒批写入提高吞吐
// - 按数量或时间间隔刷新
// - Stop 时把缓冲区剩余数据写完

package pricer

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"optlab.com/pkg/quote"
	"optlab.com/pkg/store"
)

// ErrWriterStopped 写入器已停止
var ErrWriterStopped = errors.New("batch writer stopped")

// BatchWriterConfig 配置
type BatchWriterConfig struct {
	BatchSize     int           // 批量大小
	FlushInterval time.Duration // 刷新间隔
	WriteTimeout  time.Duration // 单批写入超时
}

// DefaultBatchWriterConfig 默认配置
func DefaultBatchWriterConfig() BatchWriterConfig {
	return BatchWriterConfig{
		BatchSize:     100,
		FlushInterval: 500 * time.Millisecond,
		WriteTimeout:  10 * time.Second,
	}
}

// BatchWriterStats 写入统计
type BatchWriterStats struct {
	ReceivedCount int64 // 接收数量
	WrittenCount  int64 // 写入数量
	ErrorCount    int64 // 失败批次
	BatchCount    int64 // 成功批次
}

// BatchWriter 估值批量写入器
type BatchWriter struct {
	repo store.ValuationRepository
	cfg  BatchWriterConfig

	bufferMu sync.Mutex
	buffer   []*quote.Valuation
	flushCh  chan struct{}

	received atomic.Int64
	written  atomic.Int64
	failures atomic.Int64
	batches  atomic.Int64

	stopped bool // bufferMu 保护
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewBatchWriter 创建写入器
func NewBatchWriter(cfg BatchWriterConfig, repo store.ValuationRepository) *BatchWriter {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchWriterConfig().BatchSize
	}
	if cfg.FlushInterval <= 0 {
		cfg.FlushInterval = DefaultBatchWriterConfig().FlushInterval
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultBatchWriterConfig().WriteTimeout
	}
	return &BatchWriter{
		repo:    repo,
		cfg:     cfg,
		buffer:  make([]*quote.Valuation, 0, cfg.BatchSize),
		flushCh: make(chan struct{}, 1),
	}
}

// Accept 加入缓冲 (实现 Sink)
func (w *BatchWriter) Accept(_ context.Context, v *quote.Valuation) error {
	w.bufferMu.Lock()
	// stopped 在锁内检查，保证 Stop 的最后一次 flush 能看到所有已接收的数据
	if w.stopped {
		w.bufferMu.Unlock()
		return ErrWriterStopped
	}
	w.received.Add(1)
	w.buffer = append(w.buffer, v)
	shouldFlush := len(w.buffer) >= w.cfg.BatchSize
	w.bufferMu.Unlock()

	if shouldFlush {
		select {
		case w.flushCh <- struct{}{}:
		default:
		}
	}
	return nil
}

// Start 启动后台刷新
func (w *BatchWriter) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		ticker := time.NewTicker(w.cfg.FlushInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				w.flush()
				return
			case <-ticker.C:
				w.flush()
			case <-w.flushCh:
				w.flush()
			}
		}
	}()
}

// Stop 停止并写完剩余数据
func (w *BatchWriter) Stop() {
	w.bufferMu.Lock()
	already := w.stopped
	w.stopped = true
	w.bufferMu.Unlock()
	if already {
		return
	}
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	// 未 Start 或停止期间新进的数据
	w.flush()
}

// flush 刷新缓冲写入数据库
func (w *BatchWriter) flush() {
	w.bufferMu.Lock()
	batch := w.buffer
	w.buffer = make([]*quote.Valuation, 0, w.cfg.BatchSize)
	w.bufferMu.Unlock()

	if len(batch) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), w.cfg.WriteTimeout)
	defer cancel()

	if err := w.repo.BatchCreate(ctx, batch); err != nil {
		w.failures.Add(1)
		log.Printf("[Writer] batch insert error: size=%d, err=%v", len(batch), err)
		return
	}
	w.written.Add(int64(len(batch)))
	w.batches.Add(1)
}

// Stats 获取统计
func (w *BatchWriter) Stats() BatchWriterStats {
	return BatchWriterStats{
		ReceivedCount: w.received.Load(),
		WrittenCount:  w.written.Load(),
		ErrorCount:    w.failures.Load(),
		BatchCount:    w.batches.Load(),
	}
}
