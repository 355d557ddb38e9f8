package engine

import (
	"context"
	"time"

	"signalengine/src/market"
)

// DataFeed K线窗口来源，每次返回截至当前的K线窗口
type DataFeed interface {
	// Next 下一个窗口，返回nil表示数据流结束
	Next(ctx context.Context) ([]market.Candle, error)

	// Stop 停止数据流
	Stop()
}

// ReplayFeed 在历史K线上逐根前进，窗口长度最多为 window
type ReplayFeed struct {
	candles []market.Candle
	window  int
	next    int
}

// NewReplayFeed 从第 start 根开始回放
func NewReplayFeed(candles []market.Candle, window, start int) *ReplayFeed {
	if start < 1 {
		start = 1
	}
	return &ReplayFeed{candles: candles, window: window, next: start}
}

func (f *ReplayFeed) Next(ctx context.Context) ([]market.Candle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.next > len(f.candles) {
		return nil, nil // 数据流结束
	}

	end := f.next
	f.next++
	begin := 0
	if f.window > 0 && end > f.window {
		begin = end - f.window
	}
	return f.candles[begin:end], nil
}

func (f *ReplayFeed) Stop() {
	f.next = len(f.candles) + 1
}

// PollingFeed 定时拉取最新K线，只在出现新K线时返回窗口
type PollingFeed struct {
	provider  market.Provider
	symbol    string
	timeframe string
	limit     int
	ticker    *time.Ticker
	stopChan  chan struct{}
	last      time.Time
}

// NewPollingFeed 创建轮询数据流
func NewPollingFeed(provider market.Provider, symbol, timeframe string, limit int, every time.Duration) *PollingFeed {
	return &PollingFeed{
		provider:  provider,
		symbol:    symbol,
		timeframe: timeframe,
		limit:     limit,
		ticker:    time.NewTicker(every),
		stopChan:  make(chan struct{}),
	}
}

func (f *PollingFeed) Next(ctx context.Context) ([]market.Candle, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-f.stopChan:
			return nil, nil // 数据流结束
		case <-f.ticker.C:
		}

		candles, err := f.provider.GetCandles(ctx, f.symbol, f.timeframe, f.limit)
		if err != nil {
			return nil, err
		}
		if len(candles) == 0 {
			continue
		}
		latest := candles[len(candles)-1].Timestamp
		if !latest.After(f.last) {
			continue
		}
		f.last = latest
		return candles, nil
	}
}

func (f *PollingFeed) Stop() {
	// 安全地关闭channel，防止重复关闭
	select {
	case <-f.stopChan:
	default:
		close(f.stopChan)
	}
	f.ticker.Stop()
}
