package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMovingAverages(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		values []decimal.Decimal
		period int
		want   []float64
	}{
		{name: "sma warm-up uses prefix", kind: "SMA", values: decs(1, 2, 3), period: 2, want: []float64{1, 1.5, 2.5}},
		{name: "sma full window", kind: "SMA", values: decs(2, 4, 6, 8), period: 4, want: []float64{2, 3, 4, 5}},
		{name: "ema seeded with first value", kind: "EMA", values: decs(1, 2, 3), period: 3, want: []float64{1, 1.5, 2.25}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MovingAverage(tt.kind, tt.values, tt.period)
			require.NoError(t, err)
			require.Len(t, got, len(tt.want))
			for i, w := range tt.want {
				near(t, w, got[i], 0.0001)
			}
		})
	}

	t.Run("invalid period", func(t *testing.T) {
		_, err := SMA(decs(1, 2), 0)
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	})

	t.Run("empty input", func(t *testing.T) {
		_, err := EMA(nil, 3)
		assert.ErrorIs(t, err, ErrEmptyPrices)
	})
}

func TestHighestLowest(t *testing.T) {
	values := decs(5, 9, 1, 4, 3)

	high, err := Highest(values, 3)
	require.NoError(t, err)
	assert.True(t, high.Equal(decimal.NewFromInt(4)))

	low, err := Lowest(values, 10)
	require.NoError(t, err)
	assert.True(t, low.Equal(decimal.NewFromInt(1)))
}

func TestRSI(t *testing.T) {
	t.Run("only gains", func(t *testing.T) {
		out, err := RSI(decs(1, 2, 3, 4, 5), 14)
		require.NoError(t, err)
		near(t, 50, out[0], 0.0001)
		near(t, 100, out[len(out)-1], 0.0001)
	})

	t.Run("only losses", func(t *testing.T) {
		out, err := RSI(decs(5, 4, 3, 2, 1), 14)
		require.NoError(t, err)
		near(t, 0, out[len(out)-1], 0.0001)
	})

	t.Run("flat", func(t *testing.T) {
		out, err := RSI(decs(3, 3, 3, 3), 14)
		require.NoError(t, err)
		near(t, 50, out[len(out)-1], 0.0001)
	})

	t.Run("bounded", func(t *testing.T) {
		out, err := RSI(decs(10, 12, 11, 13, 9, 14, 8, 15), 3)
		require.NoError(t, err)
		for _, v := range out {
			assert.True(t, v.GreaterThanOrEqual(decimal.Zero) && v.LessThanOrEqual(hundred))
		}
	})
}

func TestMACD(t *testing.T) {
	t.Run("flat series", func(t *testing.T) {
		result, err := MACD(decs(10, 10, 10, 10, 10), 12, 26, 9)
		require.NoError(t, err)
		latest := result.Latest()
		assert.True(t, latest.MACD.IsZero())
		assert.True(t, latest.Signal.IsZero())
		assert.True(t, latest.Histogram.IsZero())
	})

	t.Run("rising series has positive line", func(t *testing.T) {
		values := make([]decimal.Decimal, 40)
		for i := range values {
			values[i] = decimal.NewFromInt(int64(100 + i))
		}
		result, err := MACD(values, 12, 26, 9)
		require.NoError(t, err)
		assert.True(t, result.Latest().MACD.IsPositive())
		assert.True(t, result.Previous().MACD.LessThan(result.Latest().MACD))
	})

	t.Run("single value previous equals latest", func(t *testing.T) {
		result, err := MACD(decs(10), 12, 26, 9)
		require.NoError(t, err)
		assert.Equal(t, result.Latest(), result.Previous())
	})

	t.Run("invalid period", func(t *testing.T) {
		_, err := MACD(decs(1, 2), 0, 26, 9)
		assert.ErrorIs(t, err, ErrInvalidPeriod)
	})
}

func TestStochastic(t *testing.T) {
	t.Run("flat range gives 50", func(t *testing.T) {
		flat := decs(10, 10, 10, 10)
		result, err := Stochastic(flat, flat, flat, 14, 3, 3)
		require.NoError(t, err)
		k, d := result.Latest()
		near(t, 50, k, 0.0001)
		near(t, 50, d, 0.0001)
	})

	t.Run("close at high", func(t *testing.T) {
		highs := decs(11, 12, 13)
		lows := decs(9, 10, 11)
		closes := decs(11, 12, 13)
		result, err := Stochastic(highs, lows, closes, 3, 1, 1)
		require.NoError(t, err)
		k, _ := result.Latest()
		near(t, 100, k, 0.0001)
	})

	t.Run("length mismatch", func(t *testing.T) {
		_, err := Stochastic(decs(1, 2), decs(1), decs(1, 2), 14, 3, 3)
		assert.ErrorIs(t, err, ErrLengthMismatch)
	})
}

func TestATR(t *testing.T) {
	highs := decs(101, 102, 103, 104)
	lows := decs(99, 100, 101, 102)
	closes := decs(100, 101, 102, 103)

	tr, err := TrueRange(highs, lows, closes)
	require.NoError(t, err)
	for _, v := range tr {
		near(t, 2, v, 0.0001)
	}

	atr, err := ATR(highs, lows, closes, 14)
	require.NoError(t, err)
	near(t, 2, atr, 0.0001)

	// 跳空时真实波幅取与前收盘价的距离
	tr, err = TrueRange(decs(101, 111), decs(99, 109), decs(100, 110))
	require.NoError(t, err)
	near(t, 11, tr[1], 0.0001)
}

func TestVolumeRatio(t *testing.T) {
	ratio, err := VolumeRatio(decs(10, 10, 10, 30), 4)
	require.NoError(t, err)
	near(t, 2, ratio, 0.0001)

	_, err = VolumeRatio(decs(0, 0, 0), 20)
	assert.ErrorIs(t, err, ErrZeroRange)

	avg, err := AverageVolume(decs(10, 20), 20)
	require.NoError(t, err)
	near(t, 15, avg, 0.0001)
}
