package entry

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalengine/src/market"
	"signalengine/src/strategy"
)

func series(closes []float64, volume float64) []market.Candle {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	out := make([]market.Candle, len(closes))
	for i, c := range closes {
		p := decimal.NewFromFloat(c)
		out[i] = market.Candle{
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      p,
			High:      p.Add(decimal.NewFromInt(1)),
			Low:       p.Sub(decimal.NewFromInt(1)),
			Close:     p,
			Volume:    decimal.NewFromFloat(volume),
		}
	}
	return out
}

func declining(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = float64(200 - i)
	}
	return out
}

func ind(kv map[string]float64) strategy.Indicators {
	out := strategy.Indicators{}
	for k, v := range kv {
		out[k] = d(v)
	}
	return out
}

func assertConf(t *testing.T, expected float64, actual decimal.Decimal) {
	t.Helper()
	assert.InDelta(t, expected, actual.InexactFloat64(), 0.0001, "got %s", actual)
}

func TestRSI_CheckEntryCondition(t *testing.T) {
	rule, err := NewRSI(nil)
	require.NoError(t, err)
	assert.Empty(t, rule.Violations())
	assert.Equal(t, 30, rule.MinimumDataPoints())

	t.Run("rsi 22 rising with volume spike buys", func(t *testing.T) {
		met, base := rule.CheckEntryCondition(nil, ind(map[string]float64{"rsi": 22, "rsi_previous": 21}))
		require.True(t, met)
		assertConf(t, 8.0/30*1.1, base)

		final := strategy.CalculateConfidence(base, strategy.One, strategy.One)
		assertConf(t, 0.6467, final)
		assert.True(t, final.GreaterThanOrEqual(rule.EntryOptions().MinConfidence))
	})

	t.Run("rsi 28 scores lower and holds", func(t *testing.T) {
		met, base := rule.CheckEntryCondition(nil, ind(map[string]float64{"rsi": 28, "rsi_previous": 27}))
		require.True(t, met)
		final := strategy.CalculateConfidence(base, strategy.One, strategy.One)
		assert.True(t, final.LessThan(rule.EntryOptions().MinConfidence))
	})

	t.Run("extreme oversold boost", func(t *testing.T) {
		met, base := rule.CheckEntryCondition(nil, ind(map[string]float64{"rsi": 15, "rsi_previous": 16}))
		require.True(t, met)
		assertConf(t, 0.5*1.2, base)
	})

	t.Run("not oversold", func(t *testing.T) {
		met, _ := rule.CheckEntryCondition(nil, ind(map[string]float64{"rsi": 30, "rsi_previous": 29}))
		assert.False(t, met)
	})
}

func TestRSI_Violations(t *testing.T) {
	rule, err := NewRSI(strategy.Params{"rsi_period": 1, "extreme_oversold": 35})
	require.NoError(t, err)
	assert.Len(t, rule.Violations(), 2)
}

func TestRSI_Analyze(t *testing.T) {
	e, err := strategy.NewEntry(strategy.Definition{ID: 1, Name: "rsi", Type: strategy.TypeRSIEntry},
		func(p strategy.Params) (strategy.EntryRule, error) { return NewRSI(p) })
	require.NoError(t, err)

	rec, err := e.Analyze(context.Background(), "BTCUSDT", series(declining(40), 10))
	require.NoError(t, err)
	assert.Equal(t, strategy.SignalBuy, rec.Signal)
	assertConf(t, 0.9, rec.Confidence)
	assert.Contains(t, rec.Indicators, "rsi")

	_, err = e.Analyze(context.Background(), "BTCUSDT", series(declining(10), 10))
	assert.ErrorIs(t, err, strategy.ErrInsufficientData)
}

func TestMACD_CheckEntryCondition(t *testing.T) {
	rule, err := NewMACD(nil)
	require.NoError(t, err)
	assert.Equal(t, 45, rule.MinimumDataPoints())

	tests := []struct {
		name string
		ind  map[string]float64
		met  bool
		conf float64
	}{
		{
			name: "cross and histogram turn",
			ind:  map[string]float64{"prev_macd": 1, "prev_signal": 2, "macd": 3, "signal": 2, "histogram": 1, "prev_histogram": -1},
			met:  true,
			conf: 0.5 + 0.2 + 0.15 + 0.001 + 0.001,
		},
		{
			name: "histogram turn only",
			ind:  map[string]float64{"prev_macd": 3, "prev_signal": 2, "macd": 3, "signal": 2.5, "histogram": 0.5, "prev_histogram": 0},
			met:  true,
			conf: 0.5 + 0.15 + 0.0005 + 0.0005,
		},
		{
			name: "neither",
			ind:  map[string]float64{"prev_macd": 1, "prev_signal": 2, "macd": 1, "signal": 2, "histogram": -1, "prev_histogram": -1},
			conf: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met, conf := rule.CheckEntryCondition(nil, ind(tt.ind))
			assert.Equal(t, tt.met, met)
			assertConf(t, tt.conf, conf)
		})
	}

	bad, err := NewMACD(strategy.Params{"fast_period": 30})
	require.NoError(t, err)
	assert.Len(t, bad.Violations(), 1)
}

func TestBollinger_CheckEntryCondition(t *testing.T) {
	touch, err := NewBollinger(nil)
	require.NoError(t, err)
	breakout, err := NewBollinger(strategy.Params{"signal_mode": "breakout"})
	require.NoError(t, err)
	assert.Equal(t, 40, touch.MinimumDataPoints())

	bands := map[string]float64{"bb_lower": 100, "bb_middle": 110, "bb_upper": 120, "bb_width": 0.2}
	with := func(extra map[string]float64) strategy.Indicators {
		out := ind(bands)
		for k, v := range extra {
			out[k] = d(v)
		}
		return out
	}

	met, conf := touch.CheckEntryCondition(nil, with(map[string]float64{"price": 101, "low": 100.5, "price_prev": 103}))
	require.True(t, met)
	assertConf(t, 0.6*1.1*1.05, conf)

	met, _ = touch.CheckEntryCondition(nil, with(map[string]float64{"price": 105, "low": 104, "price_prev": 106}))
	assert.False(t, met)

	met, conf = breakout.CheckEntryCondition(nil, with(map[string]float64{"price": 102, "low": 101, "price_prev": 99}))
	require.True(t, met)
	assertConf(t, (0.8-0.06)*1.1*1.05, conf)

	met, _ = breakout.CheckEntryCondition(nil, with(map[string]float64{"price": 102, "low": 101, "price_prev": 101}))
	assert.False(t, met)

	bad, err := NewBollinger(strategy.Params{"signal_mode": "squeeze", "period": 1})
	require.NoError(t, err)
	assert.Len(t, bad.Violations(), 2)
}

func TestBollinger_CalculateIndicators(t *testing.T) {
	rule, err := NewBollinger(nil)
	require.NoError(t, err)

	got, err := rule.CalculateIndicators(context.Background(), series(declining(40), 10))
	require.NoError(t, err)
	for _, name := range []string{"bb_upper", "bb_middle", "bb_lower", "bb_width", "price", "low", "price_prev"} {
		assert.Contains(t, got, name)
	}
	assert.True(t, got["bb_lower"].LessThan(got["bb_middle"]))
}

func TestMACross_CheckEntryCondition(t *testing.T) {
	rule, err := NewMACross(nil)
	require.NoError(t, err)
	assert.Equal(t, 80, rule.MinimumDataPoints())

	tests := []struct {
		name string
		ind  map[string]float64
		met  bool
		conf float64
	}{
		{name: "fresh golden cross", ind: map[string]float64{"ma_short_prev": 99, "ma_long_prev": 100, "ma_short": 101, "ma_long": 100, "price": 102}, met: true, conf: 0.8 * 1.1},
		{name: "recent cross within gap", ind: map[string]float64{"ma_short_prev": 102, "ma_long_prev": 100, "ma_short": 102, "ma_long": 100, "price": 101}, met: true, conf: 0.9},
		{name: "gap too wide", ind: map[string]float64{"ma_short_prev": 110, "ma_long_prev": 100, "ma_short": 110, "ma_long": 100, "price": 111}},
		{name: "below long", ind: map[string]float64{"ma_short_prev": 98, "ma_long_prev": 100, "ma_short": 99, "ma_long": 100, "price": 99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met, conf := rule.CheckEntryCondition(nil, ind(tt.ind))
			assert.Equal(t, tt.met, met)
			if tt.met {
				assertConf(t, tt.conf, conf)
			}
		})
	}

	bad, err := NewMACross(strategy.Params{"short_period": 60, "long_period": 20, "ma_type": "WMA"})
	require.NoError(t, err)
	assert.Len(t, bad.Violations(), 2)
}

func TestStochastic_CheckEntryCondition(t *testing.T) {
	rule, err := NewStochastic(nil)
	require.NoError(t, err)
	assert.Equal(t, 30, rule.MinimumDataPoints())

	met, conf := rule.CheckEntryCondition(nil, ind(map[string]float64{"k": 15, "d": 12, "prev_k": 10, "prev_d": 11}))
	require.True(t, met)
	assertConf(t, 1, conf)

	met, conf = rule.CheckEntryCondition(nil, ind(map[string]float64{"k": 16, "d": 17, "prev_k": 14, "prev_d": 18}))
	require.True(t, met)
	// 超卖回升但未金叉: 0.5 + 4/20*0.2 + 0.15
	assertConf(t, 0.5+0.04+0.15, conf)

	met, conf = rule.CheckEntryCondition(nil, ind(map[string]float64{"k": 25, "d": 22, "prev_k": 20, "prev_d": 21}))
	assert.False(t, met)
	assertConf(t, 0.5, conf)

	bad, err := NewStochastic(strategy.Params{"oversold": 60})
	require.NoError(t, err)
	assert.Len(t, bad.Violations(), 1)
}

func TestMultiIndicator_CheckEntryCondition(t *testing.T) {
	all := map[string]float64{
		"rsi":  20,
		"macd": 2, "macd_signal": 1, "macd_histogram": 1, "prev_macd": 0, "prev_macd_signal": 1,
		"bb_lower": 100, "bb_middle": 110, "bb_upper": 120, "current_price": 100,
		"volume_ratio": 2,
	}

	and, err := NewMultiIndicator(nil)
	require.NoError(t, err)
	assert.Equal(t, 45, and.MinimumDataPoints())

	met, conf := and.CheckEntryCondition(nil, ind(all))
	require.True(t, met)
	assertConf(t, (0.8+0.75+0.9+0.9)/4, conf)

	weak := ind(all)
	weak["rsi"] = d(40)
	met, _ = and.CheckEntryCondition(nil, weak)
	assert.False(t, met)

	or, err := NewMultiIndicator(strategy.Params{"combination_mode": "OR"})
	require.NoError(t, err)
	met, conf = or.CheckEntryCondition(nil, weak)
	require.True(t, met)
	assertConf(t, (0.75+0.9+0.9)/3, conf)

	bad, err := NewMultiIndicator(strategy.Params{
		"combination_mode": "XOR", "use_rsi": false, "use_macd": false, "use_bollinger": false, "use_volume": false,
	})
	require.NoError(t, err)
	assert.Len(t, bad.Violations(), 2)
}

func TestMultiIndicator_CalculateIndicators(t *testing.T) {
	rule, err := NewMultiIndicator(strategy.Params{"use_bollinger": false})
	require.NoError(t, err)

	got, err := rule.CalculateIndicators(context.Background(), series(declining(50), 0))
	require.NoError(t, err)
	assert.NotContains(t, got, "bb_lower")
	// 均量为0时成交量比按1处理
	assert.True(t, got["volume_ratio"].Equal(strategy.One))
}

func TestHybrid(t *testing.T) {
	rule, err := NewHybrid(nil)
	require.NoError(t, err)
	assert.Empty(t, rule.Violations())
	assert.Equal(t, 45, rule.MinimumDataPoints())

	var _ strategy.Ensemble = rule

	t.Run("scored path meets threshold exactly", func(t *testing.T) {
		// macd、随机指标不触发加分(0.5)，RSI 7.5 得0.875，量比2.25得1.0
		// 0.35*0.5+0.30*0.5+0.20*0.875+0.15*1.0 = 0.65
		base := map[string]float64{"macd_ok": 1, "stochastic_ok": 1, "volume_ratio": 2.25}
		tests := []struct {
			name string
			rsi  float64
			met  bool
		}{
			{"恰好0.65买入", 7.5, true},
			{"略低于阈值持有", 7.6, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				kv := map[string]float64{"rsi_value": tt.rsi}
				for k, v := range base {
					kv[k] = v
				}
				met, score := rule.CheckEntryCondition(nil, ind(kv))
				assert.Equal(t, tt.met, met, "score %s", score)
				if tt.met {
					assert.True(t, score.Equal(d(0.65)), "got %s", score)
				}
			})
		}
	})

	t.Run("macd and stochastic score full marks", func(t *testing.T) {
		// 金叉且柱为正: 0.5+0.3+0.2；K上穿D且K=0: 0.5+0.25+0.25
		scores := rule.Scores(ind(map[string]float64{
			"macd_ok": 1, "macd_macd": 1.2, "macd_signal": 1.0, "macd_prev_macd": 0.8, "macd_prev_signal": 1.0, "macd_histogram": 0.2,
			"stochastic_ok": 1, "stochastic_k": 0, "stochastic_d": -1, "stochastic_prev_k": -2, "stochastic_prev_d": -1,
		}))
		require.Len(t, scores, 2)
		assert.True(t, scores[ComponentMACD].Equal(strategy.One), "got %s", scores[ComponentMACD])
		assert.True(t, scores[ComponentStochastic].Equal(strategy.One), "got %s", scores[ComponentStochastic])

		// RSI、成交量得分下限为0.5，0分只能直接给出
		scores[ComponentRSI], scores[ComponentVolume] = strategy.Zero, strategy.Zero
		score := strategy.Aggregate(scores, rule.Weights())
		assert.True(t, score.Equal(d(0.65)))
		assert.True(t, strategy.Decide(score, rule.Threshold()))
	})

	t.Run("weights validated at construction", func(t *testing.T) {
		tests := []struct {
			name    string
			weights map[string]any
		}{
			{"总和0.80", map[string]any{"macd": 0.4, "rsi": 0.4}},
			{"全部为0", map[string]any{"macd": 0, "rsi": 0}},
			{"单项超过1", map[string]any{"macd": 1.5, "rsi": -0.5}},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				bad, err := NewHybrid(strategy.Params{"strategy_weights": tt.weights})
				var verr *strategy.ValidationError
				require.ErrorAs(t, err, &verr)
				assert.Nil(t, bad)
				assert.NotEmpty(t, verr.Violations)
			})
		}

		good, err := NewHybrid(strategy.Params{"strategy_weights": map[string]any{"macd": 0.5, "rsi": 0.5}})
		require.NoError(t, err)
		assert.Empty(t, good.Violations())
		assert.Len(t, good.Weights(), 2)
	})

	t.Run("no contributing component holds at 0.5", func(t *testing.T) {
		partial, err := NewHybrid(strategy.Params{"strategy_weights": map[string]any{"macd": 0.5, "rsi": 0.5}})
		require.NoError(t, err)
		met, score := partial.CheckEntryCondition(nil, ind(map[string]float64{"volume_ratio": 3, "stochastic_ok": 1}))
		assert.False(t, met)
		assert.True(t, score.Equal(strategy.Half))
	})

	t.Run("failing component degrades to 0.5", func(t *testing.T) {
		degraded, err := NewHybrid(strategy.Params{"macd_fast": 0})
		require.NoError(t, err)
		assert.NotEmpty(t, degraded.Violations())

		got, err := degraded.CalculateIndicators(context.Background(), series(declining(60), 10))
		require.NoError(t, err)
		assert.False(t, got.Flag("macd_ok"))
		assert.True(t, degraded.Scores(got)[ComponentMACD].Equal(strategy.Half))
	})

	t.Run("details", func(t *testing.T) {
		details := rule.Details()
		assert.Equal(t, 0.65, details["buy_threshold"])
		assert.Len(t, details["sub_strategies"], 2)
		assert.Equal(t, []string{ComponentMACD, ComponentRSI, ComponentStochastic, ComponentVolume}, rule.Components())
	})
}

func TestHybrid_Analyze(t *testing.T) {
	e, err := strategy.NewEntry(strategy.Definition{ID: 9, Name: "hybrid", Type: strategy.TypeHybridEntry},
		func(p strategy.Params) (strategy.EntryRule, error) { return NewHybrid(p) })
	require.NoError(t, err)

	rec, err := e.Analyze(context.Background(), "BTCUSDT", series(declining(60), 10))
	require.NoError(t, err)
	assert.NotEqual(t, strategy.SignalSell, rec.Signal)
	assert.True(t, rec.Confidence.GreaterThanOrEqual(strategy.Zero))
	assert.True(t, rec.Confidence.LessThanOrEqual(strategy.One))
}
