package database

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/xpwu/go-log/log"

	"signalengine/src/market"
)

// CandleManager 优先读数据库，不足或有缺口时从上游补充并回写
type CandleManager struct {
	db     *PostgresDB
	source market.Provider
}

// NewCandleManager 创建K线数据管理器
func NewCandleManager(db *PostgresDB, source market.Provider) *CandleManager {
	return &CandleManager{db: db, source: source}
}

// GetName 数据源名称
func (m *CandleManager) GetName() string {
	return CachedName(m.source)
}

// CachedName 缓存数据源的名称
func CachedName(source market.Provider) string {
	return "cached:" + source.GetName()
}

// GetCandles 智能获取K线数据（优先数据库，缺失时从上游补充）
func (m *CandleManager) GetCandles(ctx context.Context, symbol, timeframe string, limit int) ([]market.Candle, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("CandleManager")

	logger.Debug("尝试从数据库获取K线数据", "symbol", symbol, "timeframe", timeframe, "limit", limit)
	stored, err := m.db.GetCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		logger.Error("从数据库获取K线数据失败", "error", err)
		return m.source.GetCandles(ctx, symbol, timeframe, limit)
	}

	gaps := FindGaps(stored, timeframe)
	if len(stored) >= limit && len(gaps) == 0 {
		return stored, nil
	}
	logger.Info("数据库数据不足，从上游补充", "db_count", len(stored), "required", limit, "gaps", len(gaps))

	fetched, err := m.source.GetCandles(ctx, symbol, timeframe, limit)
	if err != nil {
		logger.Error("从上游获取K线数据失败", "error", err)
		if len(stored) == 0 {
			return nil, fmt.Errorf("failed to get candles from %s: %w", m.source.GetName(), err)
		}
		return stored, nil
	}

	if err := m.db.SaveCandlesBatch(ctx, symbol, timeframe, fetched); err != nil {
		logger.Error("保存K线数据到数据库失败", "error", err)
	} else {
		logger.Info("保存K线数据到数据库", "count", len(fetched))
	}

	merged := MergeCandles(stored, fetched)
	if len(merged) > limit {
		merged = merged[len(merged)-limit:]
	}
	return merged, nil
}

// MergeCandles 按时间去重合并，后者覆盖前者，结果升序
func MergeCandles(older, newer []market.Candle) []market.Candle {
	byTime := make(map[int64]market.Candle, len(older)+len(newer))
	for _, c := range older {
		byTime[c.Timestamp.UnixMilli()] = c
	}
	for _, c := range newer {
		byTime[c.Timestamp.UnixMilli()] = c
	}

	out := make([]market.Candle, 0, len(byTime))
	for _, c := range byTime {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// TimeRange 时间范围
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// FindGaps 查找相邻K线之间缺失的时间段，未知周期不检查
func FindGaps(candles []market.Candle, timeframe string) []TimeRange {
	interval := time.Duration(candleInterval(timeframe)) * time.Millisecond
	if interval == 0 {
		return nil
	}

	var gaps []TimeRange
	for i := 0; i+1 < len(candles); i++ {
		expected := candles[i].Timestamp.Add(interval)
		actual := candles[i+1].Timestamp
		if actual.After(expected) {
			gaps = append(gaps, TimeRange{Start: expected, End: actual.Add(-interval)})
		}
	}
	return gaps
}
