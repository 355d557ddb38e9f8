package indicators

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decs(values ...float64) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.NewFromFloat(v)
	}
	return out
}

func near(t *testing.T, expected float64, actual decimal.Decimal, tolerance float64) {
	t.Helper()
	diff := actual.Sub(decimal.NewFromFloat(expected)).Abs()
	assert.True(t, diff.LessThan(decimal.NewFromFloat(tolerance)), "expected %v, got %s", expected, actual)
}

func TestBollingerBands_Validate(t *testing.T) {
	tests := []struct {
		name       string
		period     int
		multiplier float64
		wantErr    error
	}{
		{name: "valid parameters", period: 20, multiplier: 2.0},
		{name: "zero period", period: 0, multiplier: 2.0, wantErr: ErrInvalidPeriod},
		{name: "zero multiplier", period: 20, multiplier: 0, wantErr: ErrInvalidMultiplier},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewBollingerBands(tt.period, tt.multiplier).Validate()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestBollingerBands_Calculate(t *testing.T) {
	t.Run("known values", func(t *testing.T) {
		result, err := NewBollingerBands(4, 2.0).Calculate(decs(10, 12, 14, 16))
		require.NoError(t, err)

		// 均值13，总体标准差 sqrt(5)
		near(t, 13, result.MiddleBand, 0.01)
		near(t, 17.472, result.UpperBand, 0.01)
		near(t, 8.528, result.LowerBand, 0.01)
		assert.True(t, result.Price.Equal(decimal.NewFromInt(16)))
	})

	t.Run("uses last period values", func(t *testing.T) {
		result, err := NewBollingerBands(3, 2.0).Calculate(decs(90, 95, 100, 102, 98))
		require.NoError(t, err)
		near(t, 100, result.MiddleBand, 0.01)
	})

	t.Run("shorter than period", func(t *testing.T) {
		result, err := NewBollingerBands(20, 2.0).Calculate(decs(100, 102))
		require.NoError(t, err)
		near(t, 101, result.MiddleBand, 0.01)
	})

	t.Run("flat prices collapse bands", func(t *testing.T) {
		result, err := NewBollingerBands(3, 2.0).Calculate(decs(100, 100, 100))
		require.NoError(t, err)
		assert.True(t, result.UpperBand.Equal(result.MiddleBand))
		assert.True(t, result.LowerBand.Equal(result.MiddleBand))
		assert.True(t, result.GetPercentB().IsZero())
		assert.True(t, result.GetBandWidth().IsZero())
	})

	t.Run("empty", func(t *testing.T) {
		_, err := NewBollingerBands(3, 2.0).Calculate(nil)
		assert.ErrorIs(t, err, ErrEmptyPrices)
	})
}

func TestBollingerBandsResult_Helpers(t *testing.T) {
	result := &BollingerBandsResult{
		UpperBand:  decimal.NewFromInt(110),
		MiddleBand: decimal.NewFromInt(100),
		LowerBand:  decimal.NewFromInt(90),
		Price:      decimal.NewFromInt(90),
	}

	assert.True(t, result.IsLowerBreakout())
	assert.False(t, result.IsUpperBreakout())
	near(t, 0.2, result.GetBandWidth(), 0.0001)
	assert.True(t, result.GetPercentB().IsZero())
}

func TestStdDev(t *testing.T) {
	// sqrt(8/3)
	near(t, 1.633, StdDev(decs(100, 102, 98), decimal.NewFromInt(100)), 0.01)
	assert.True(t, StdDev(nil, decimal.Zero).IsZero())
}

func BenchmarkBollingerBands_Calculate(b *testing.B) {
	bb := NewBollingerBands(20, 2.0)

	prices := make([]decimal.Decimal, 100)
	for i := 0; i < 100; i++ {
		prices[i] = decimal.NewFromFloat(100 + float64(i%10))
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		bb.Calculate(prices)
	}
}
