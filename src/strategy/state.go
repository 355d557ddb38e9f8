package strategy

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// ExecutionState 卖出策略在一个持仓上的执行状态
type ExecutionState struct {
	TriggeredLevels []int           `json:"triggered_levels"`
	HighestPrice    decimal.Decimal `json:"highest_price"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// NewExecutionState 开仓时的初始状态，最高价取开仓价
func NewExecutionState(entryPrice decimal.Decimal, at time.Time) ExecutionState {
	return ExecutionState{HighestPrice: entryPrice, UpdatedAt: at}
}

// Observe 记录新价格，返回最高价是否被抬高
func (s *ExecutionState) Observe(price decimal.Decimal) bool {
	if price.GreaterThan(s.HighestPrice) {
		s.HighestPrice = price
		return true
	}
	return false
}

// Triggered 分批档位是否已触发
func (s ExecutionState) Triggered(level int) bool {
	for _, l := range s.TriggeredLevels {
		if l == level {
			return true
		}
	}
	return false
}

// Trigger 标记档位已触发，重复标记返回 false
func (s *ExecutionState) Trigger(level int) bool {
	if s.Triggered(level) {
		return false
	}
	s.TriggeredLevels = append(s.TriggeredLevels, level)
	return true
}

// Clone 深拷贝
func (s ExecutionState) Clone() ExecutionState {
	out := s
	if s.TriggeredLevels != nil {
		out.TriggeredLevels = append([]int(nil), s.TriggeredLevels...)
	}
	return out
}

// StateKey 执行状态的键
type StateKey struct {
	InstanceID int64
	PositionID string
}

func (k StateKey) String() string {
	return fmt.Sprintf("%d:%s", k.InstanceID, k.PositionID)
}

// StateStore 执行状态存储，由调用方持有
type StateStore interface {
	LoadState(ctx context.Context, key StateKey) (ExecutionState, bool, error)
	SaveState(ctx context.Context, key StateKey, state ExecutionState) error
	DeleteState(ctx context.Context, key StateKey) error
}

// MemoryStateStore 进程内状态存储
type MemoryStateStore struct {
	mu     sync.RWMutex
	states map[StateKey]ExecutionState
}

// NewMemoryStateStore 创建进程内状态存储
func NewMemoryStateStore() *MemoryStateStore {
	return &MemoryStateStore{states: make(map[StateKey]ExecutionState)}
}

func (m *MemoryStateStore) LoadState(ctx context.Context, key StateKey) (ExecutionState, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.states[key]
	if !ok {
		return ExecutionState{}, false, nil
	}
	return s.Clone(), true, nil
}

func (m *MemoryStateStore) SaveState(ctx context.Context, key StateKey, state ExecutionState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.states[key] = state.Clone()
	return nil
}

func (m *MemoryStateStore) DeleteState(ctx context.Context, key StateKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, key)
	return nil
}

// Len 当前保存的状态数
func (m *MemoryStateStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}
