package timeframes

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTimeframe_GetDuration(t *testing.T) {
	tests := []struct {
		name      string
		timeframe Timeframe
		expected  time.Duration
		wantErr   bool
	}{
		{"1m", Timeframe1m, time.Minute, false},
		{"15m", Timeframe15m, 15 * time.Minute, false},
		{"1h", Timeframe1h, time.Hour, false},
		{"4h", Timeframe4h, 4 * time.Hour, false},
		{"1d", Timeframe1d, 24 * time.Hour, false},
		{"1w", Timeframe1w, 7 * 24 * time.Hour, false},
		{"invalid", Timeframe("7x"), 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := tt.timeframe.GetDuration()
			if tt.wantErr {
				assert.Error(t, err)
				assert.Equal(t, time.Duration(0), result)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestTimeframe_Hours(t *testing.T) {
	assert.InDelta(t, 1.0/60, Timeframe1m.Hours(), 1e-9)
	assert.Equal(t, 4.0, Timeframe4h.Hours())
	assert.Equal(t, 168.0, Timeframe1w.Hours())
	// 未知周期按1小时
	assert.Equal(t, 1.0, Timeframe("bogus").Hours())
}

func TestParseTimeframe(t *testing.T) {
	t.Run("empty uses default", func(t *testing.T) {
		tf, err := ParseTimeframe("")
		require.NoError(t, err)
		assert.Equal(t, Default, tf)
	})

	t.Run("valid", func(t *testing.T) {
		for _, tf := range All() {
			parsed, err := ParseTimeframe(tf.String())
			require.NoError(t, err)
			assert.Equal(t, tf, parsed)
			assert.Equal(t, tf.String(), parsed.GetBinanceInterval())
		}
	})

	t.Run("invalid", func(t *testing.T) {
		_, err := ParseTimeframe("2w")
		assert.Error(t, err)
	})
}
