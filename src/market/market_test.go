package market

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockProvider 实现 Provider 接口用于测试
type mockProvider struct {
	name string
}

func (m *mockProvider) GetName() string {
	return m.name
}

func (m *mockProvider) GetCandles(ctx context.Context, symbol string, timeframe string, limit int) ([]Candle, error) {
	return makeCandles(limit), nil
}

func makeCandles(n int) []Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]Candle, n)
	for i := 0; i < n; i++ {
		price := decimal.NewFromInt(int64(100 + i))
		out[i] = Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      price,
			High:      price.Add(decimal.NewFromInt(1)),
			Low:       price.Sub(decimal.NewFromInt(1)),
			Close:     price,
			Volume:    decimal.NewFromInt(int64(10 * (i + 1))),
		}
	}
	return out
}

func TestSeriesExtraction(t *testing.T) {
	candles := makeCandles(3)

	assert.Equal(t, []decimal.Decimal{
		decimal.NewFromInt(100), decimal.NewFromInt(101), decimal.NewFromInt(102),
	}, Closes(candles))
	assert.True(t, Highs(candles)[2].Equal(decimal.NewFromInt(103)))
	assert.True(t, Lows(candles)[0].Equal(decimal.NewFromInt(99)))
	assert.True(t, Volumes(candles)[1].Equal(decimal.NewFromInt(20)))

	last, err := Last(candles)
	require.NoError(t, err)
	assert.True(t, last.Close.Equal(decimal.NewFromInt(102)))

	_, err = Last(nil)
	assert.ErrorIs(t, err, ErrEmptySeries)
}

func TestValidateSeries(t *testing.T) {
	t.Run("ordered", func(t *testing.T) {
		assert.NoError(t, ValidateSeries(makeCandles(5)))
	})

	t.Run("empty", func(t *testing.T) {
		assert.ErrorIs(t, ValidateSeries(nil), ErrEmptySeries)
	})

	t.Run("duplicate timestamp", func(t *testing.T) {
		candles := makeCandles(3)
		candles[2].Timestamp = candles[1].Timestamp
		assert.Error(t, ValidateSeries(candles))
	})
}

func TestProviderRegistry(t *testing.T) {
	registry := NewProviderRegistry()
	registry.Register(&mockProvider{name: "postgres"})
	registry.Register(&mockProvider{name: "binance"})

	assert.Equal(t, []string{"binance", "postgres"}, registry.Names())

	p, err := registry.Get("binance")
	require.NoError(t, err)
	candles, err := p.GetCandles(context.Background(), "BTCUSDT", "1h", 4)
	require.NoError(t, err)
	assert.Len(t, candles, 4)

	_, err = registry.Get("okx")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported candle source")
}
