package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"signalengine/src/market"
	"signalengine/src/strategy"
)

var errTest = errors.New("test error")

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// mockProvider 返回预设K线，可注入错误
type mockProvider struct {
	mu        sync.Mutex
	candles   []market.Candle
	err       error
	calls     int
	lastLimit int
}

func (m *mockProvider) GetName() string { return "mock" }

func (m *mockProvider) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	m.lastLimit = limit
	if m.err != nil {
		return nil, m.err
	}
	return m.candles, nil
}

func (m *mockProvider) set(candles []market.Candle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.candles = candles
}

// series 按收盘价生成小时K线
func series(closes ...float64) []market.Candle {
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		p := decimal.NewFromFloat(c)
		out[i] = market.Candle{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    decimal.NewFromInt(1000),
		}
	}
	return out
}

func flat(n int, price float64) []market.Candle {
	closes := make([]float64, n)
	for i := range closes {
		closes[i] = price
	}
	return series(closes...)
}

// staticStore 固定的策略定义来源
type staticStore struct {
	defs []strategy.Definition
	err  error
}

func (s staticStore) LoadDefinitions(ctx context.Context) ([]strategy.Definition, error) {
	return s.defs, s.err
}

// recordingStore 记录状态与参数写回
type recordingStore struct {
	statuses map[int64]strategy.Status
	saved    []strategy.Definition
}

func newRecordingStore() *recordingStore {
	return &recordingStore{statuses: map[int64]strategy.Status{}}
}

func (r *recordingStore) SaveDefinition(ctx context.Context, def strategy.Definition) (int64, error) {
	r.saved = append(r.saved, def)
	return def.ID, nil
}

func (r *recordingStore) UpdateStatus(ctx context.Context, id int64, status strategy.Status) error {
	r.statuses[id] = status
	return nil
}

// collector 收集分发出来的信号
type collector struct {
	mu      sync.Mutex
	records []strategy.SignalRecord
}

func (c *collector) HandleSignal(ctx context.Context, rec strategy.SignalRecord) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.records = append(c.records, rec)
	return nil
}

func (c *collector) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.records)
}
