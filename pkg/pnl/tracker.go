package pnl

import (
	"context"
	"sort"
	"sync"
	"time"
)

// SnapshotStore 行情历史存储
// 同一合约同一日期只保留一条，重复写入覆盖
type SnapshotStore interface {
	UpsertSnapshots(ctx context.Context, snaps []Snapshot) error
	ListSnapshots(ctx context.Context, callSymbol, putSymbol, from, to string) ([]Snapshot, error)
}

// Tracker 持仓盈亏跟踪
type Tracker struct {
	store SnapshotStore
}

func NewTracker(store SnapshotStore) *Tracker {
	return &Tracker{store: store}
}

// Record 保存行情历史
func (t *Tracker) Record(ctx context.Context, snaps []Snapshot) error {
	for i := range snaps {
		if err := snaps[i].Validate(); err != nil {
			return err
		}
	}
	if len(snaps) == 0 {
		return nil
	}
	return t.store.UpsertSnapshots(ctx, snaps)
}

// Track 计算持仓从开仓日到 to (空为今天) 的逐日盈亏
func (t *Tracker) Track(ctx context.Context, pos Position, to string) ([]DailyPnL, error) {
	if err := pos.Validate(); err != nil {
		return nil, err
	}
	if to == "" {
		to = time.Now().Format(DateLayout)
	}
	callSym, putSym, err := ContractSymbols(pos.Underlying, pos.Strike, pos.Expiration)
	if err != nil {
		return nil, err
	}
	snaps, err := t.store.ListSnapshots(ctx, callSym, putSym, pos.TradeDate, to)
	if err != nil {
		return nil, err
	}
	return Compute(pos, snaps, to)
}

// =============================================================================
// MemoryStore 内存实现 (未配置数据库 / 离线回放)
// =============================================================================

type snapshotKey struct {
	call, put, date string
}

type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[snapshotKey]Snapshot
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{snaps: make(map[snapshotKey]Snapshot)}
}

func (m *MemoryStore) UpsertSnapshots(_ context.Context, snaps []Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range snaps {
		m.snaps[snapshotKey{s.CallSymbol, s.PutSymbol, s.Date}] = s
	}
	return nil
}

func (m *MemoryStore) ListSnapshots(_ context.Context, callSymbol, putSymbol, from, to string) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0)
	for k, s := range m.snaps {
		if k.call == callSymbol && k.put == putSymbol && k.date >= from && k.date <= to {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out, nil
}
