package engine

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalengine/src/strategy"
)

func TestReplayFeed(t *testing.T) {
	candles := series(1, 2, 3, 4, 5)
	ctx := context.Background()

	tests := []struct {
		name    string
		window  int
		start   int
		lengths []int
		lasts   []int64
	}{
		{"不限窗口", 0, 1, []int{1, 2, 3, 4, 5}, []int64{1, 2, 3, 4, 5}},
		{"窗口为2", 2, 1, []int{1, 2, 2, 2, 2}, []int64{1, 2, 3, 4, 5}},
		{"从第3根开始", 0, 3, []int{3, 4, 5}, []int64{3, 4, 5}},
		{"起点小于1按1处理", 3, -4, []int{1, 2, 3, 3, 3}, []int64{1, 2, 3, 4, 5}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			feed := NewReplayFeed(candles, tt.window, tt.start)
			var (
				lengths []int
				lasts   []int64
			)
			for {
				w, err := feed.Next(ctx)
				require.NoError(t, err)
				if w == nil {
					break
				}
				lengths = append(lengths, len(w))
				lasts = append(lasts, w[len(w)-1].Close.IntPart())
			}
			assert.Equal(t, tt.lengths, lengths)
			assert.Equal(t, tt.lasts, lasts)
		})
	}
}

func TestReplayFeedStop(t *testing.T) {
	feed := NewReplayFeed(series(1, 2, 3), 0, 1)
	_, err := feed.Next(context.Background())
	require.NoError(t, err)

	feed.Stop()
	w, err := feed.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, w)
}

func TestPollingFeed(t *testing.T) {
	provider := &mockProvider{candles: series(1, 2)}
	feed := NewPollingFeed(provider, "BTCUSDT", "1h", 10, time.Millisecond)
	defer feed.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	w, err := feed.Next(ctx)
	require.NoError(t, err)
	require.Len(t, w, 2)

	// 最新K线未变化时不返回，出现新K线后返回
	done := make(chan []int64, 1)
	go func() {
		w, err := feed.Next(ctx)
		if err != nil {
			done <- nil
			return
		}
		closes := make([]int64, len(w))
		for i, c := range w {
			closes[i] = c.Close.IntPart()
		}
		done <- closes
	}()
	time.Sleep(10 * time.Millisecond)
	provider.set(series(1, 2, 3))

	select {
	case closes := <-done:
		assert.Equal(t, []int64{1, 2, 3}, closes)
	case <-ctx.Done():
		t.Fatal("polling feed did not deliver the new candle")
	}
	assert.Greater(t, provider.calls, 2)
	assert.Equal(t, 10, provider.lastLimit)
}

func TestPollingFeedStopAndErrors(t *testing.T) {
	t.Run("停止后返回nil", func(t *testing.T) {
		feed := NewPollingFeed(&mockProvider{}, "BTCUSDT", "1h", 10, time.Hour)
		feed.Stop()
		feed.Stop()
		w, err := feed.Next(context.Background())
		require.NoError(t, err)
		assert.Nil(t, w)
	})

	t.Run("行情错误直接返回", func(t *testing.T) {
		feed := NewPollingFeed(&mockProvider{err: errTest}, "BTCUSDT", "1h", 10, time.Millisecond)
		defer feed.Stop()
		_, err := feed.Next(context.Background())
		assert.ErrorIs(t, err, errTest)
	})

	t.Run("上下文取消", func(t *testing.T) {
		feed := NewPollingFeed(&mockProvider{candles: series(1)}, "BTCUSDT", "1h", 10, time.Hour)
		defer feed.Stop()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := feed.Next(ctx)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestSignalHandlerRegistry(t *testing.T) {
	reg := NewSignalHandlerRegistry()
	sells := &collector{}
	reg.RegisterHandler("SELL", sells)
	reg.RegisterAll(LogSignalHandler{})
	reg.RegisterHandler("BUY", SignalHandlerFunc(func(ctx context.Context, rec strategy.SignalRecord) error {
		return errTest
	}))

	ctx := context.Background()
	require.NoError(t, reg.HandleSignal(ctx, strategy.SignalRecord{Signal: "SELL", Confidence: decimal.NewFromFloat(0.9)}))
	assert.Equal(t, 1, sells.len())
	assert.ErrorIs(t, reg.HandleSignal(ctx, strategy.SignalRecord{Signal: "BUY"}), errTest)
}

type fakeJournal struct {
	saved []strategy.SignalRecord
	err   error
}

func (f *fakeJournal) SaveSignal(ctx context.Context, rec strategy.SignalRecord) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, rec)
	return nil
}

func TestJournalSignalHandler(t *testing.T) {
	ctx := context.Background()
	journal := &fakeJournal{}
	h := NewJournalSignalHandler(journal)
	require.NoError(t, h.HandleSignal(ctx, strategy.SignalRecord{StrategyID: 7, Signal: strategy.SignalBuy}))
	require.Len(t, journal.saved, 1)
	assert.Equal(t, int64(7), journal.saved[0].StrategyID)

	journal.err = errTest
	err := h.HandleSignal(ctx, strategy.SignalRecord{Signal: strategy.SignalBuy})
	assert.ErrorIs(t, err, errTest)
}
