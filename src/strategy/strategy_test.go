package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"signalengine/src/market"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func flatCandles(n int, price, volume float64) []market.Candle {
	out := make([]market.Candle, n)
	for i := range out {
		p := decimal.NewFromFloat(price)
		out[i] = market.Candle{
			Timestamp: t0.Add(time.Duration(i) * time.Hour),
			Open:      p,
			High:      p,
			Low:       p,
			Close:     p,
			Volume:    decimal.NewFromFloat(volume),
		}
	}
	return out
}

type fakeParams struct {
	Met           bool            `json:"met"`
	Base          decimal.Decimal `json:"base"`
	MinConfidence decimal.Decimal `json:"min_confidence"`
	MinProfitPct  decimal.Decimal `json:"min_profit_pct"`
	MaxLossPct    decimal.Decimal `json:"max_loss_pct"`
	Period        int             `json:"period"`
	Ensemble      bool            `json:"ensemble"`
	Weight        decimal.Decimal `json:"weight"`
	Fail          string          `json:"fail"`
}

func defaultFakeParams() fakeParams {
	return fakeParams{
		Met:           true,
		Base:          D(1),
		MinConfidence: D(0.6),
		MaxLossPct:    D(-100),
		Period:        10,
		Weight:        D(1),
	}
}

type fakeRule struct {
	p fakeParams
}

func (f *fakeRule) MinimumDataPoints() int { return f.p.Period }

func (f *fakeRule) Violations() []string {
	var v []string
	if f.p.Period < 1 {
		v = append(v, "period must be >= 1")
	}
	if f.p.Base.GreaterThan(One) {
		v = append(v, "base must be <= 1")
	}
	return v
}

func (f *fakeRule) CalculateIndicators(ctx context.Context, candles []market.Candle) (Indicators, error) {
	switch f.p.Fail {
	case "error":
		return nil, errors.New("unexpected storage hiccup")
	case "panic":
		var m map[string]int
		m["boom"] = 1
	}
	ind := Indicators{}
	ind.Set("last", candles[len(candles)-1].Close)
	return ind, nil
}

func (f *fakeRule) CheckEntryCondition(candles []market.Candle, ind Indicators) (bool, decimal.Decimal) {
	return f.p.Met, f.p.Base
}

func (f *fakeRule) EntryOptions() EntryOptions {
	return EntryOptions{MinConfidence: f.p.MinConfidence, VolumeCheck: true, TrendCheck: true, VolumeThreshold: D(0.8)}
}

func (f *fakeRule) CheckExitCondition(ctx context.Context, in *ExitInput) ExitDecision {
	if f.p.Fail == "panic_exit" {
		var m map[string]int
		m["boom"] = 1
	}
	in.State.Trigger(0)
	return ExitDecision{Met: f.p.Met, Confidence: f.p.Base, Reason: "fake exit"}
}

func (f *fakeRule) ExitOptions() ExitOptions {
	return ExitOptions{MinConfidence: f.p.MinConfidence, MinProfitPct: f.p.MinProfitPct, MaxLossPct: f.p.MaxLossPct}
}

func (f *fakeRule) UsesExecutionState() {}

type fakeEnsemble struct {
	fakeRule
}

func (f *fakeEnsemble) Threshold() decimal.Decimal { return D(0.65) }

func (f *fakeEnsemble) Weights() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{"a": f.p.Weight}
}

func (f *fakeEnsemble) CheckEntryCondition(candles []market.Candle, ind Indicators) (bool, decimal.Decimal) {
	return Decide(f.p.Base, f.Threshold()), f.p.Base
}

func buildFake(params Params) (*fakeRule, error) {
	p := defaultFakeParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &fakeRule{p: p}, nil
}

func buildFakeEntry(params Params) (EntryRule, error) {
	r, err := buildFake(params)
	if err != nil {
		return nil, err
	}
	if r.p.Ensemble {
		return &fakeEnsemble{fakeRule: *r}, nil
	}
	return r, nil
}

func buildFakeExit(params Params) (ExitRule, error) {
	return buildFake(params)
}

func newFakeEntry(t *testing.T, params Params) *Entry {
	t.Helper()
	e, err := NewEntry(Definition{ID: 1, Name: "fake-entry", Type: TypeRSIEntry, Parameters: params}, buildFakeEntry)
	require.NoError(t, err)
	return e
}

func newFakeExit(t *testing.T, params Params) *Exit {
	t.Helper()
	x, err := NewExit(Definition{ID: 2, Name: "fake-exit", Type: TypeLadderExit, Parameters: params}, buildFakeExit)
	require.NoError(t, err)
	return x
}

func TestLifecycle(t *testing.T) {
	ctx := context.Background()
	e := newFakeEntry(t, nil)

	assert.Equal(t, StatusInactive, e.Status())
	assert.ErrorIs(t, e.Pause(ctx), ErrInvalidTransition)

	require.NoError(t, e.Activate(ctx))
	assert.True(t, e.IsActive())

	require.NoError(t, e.Pause(ctx))
	assert.Equal(t, StatusPaused, e.Status())

	require.NoError(t, e.Activate(ctx))
	e.Deactivate(ctx)
	assert.Equal(t, StatusInactive, e.Status())

	e.Deactivate(ctx)
	assert.Equal(t, StatusInactive, e.Status())
}

func TestActivateReportsEveryViolation(t *testing.T) {
	e := newFakeEntry(t, Params{"period": 0, "base": 2})

	err := e.Activate(context.Background())
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Violations, 2)
	assert.Equal(t, StatusInactive, e.Status())
}

func TestNewEntryRejectsExitType(t *testing.T) {
	_, err := NewEntry(Definition{Name: "x", Type: TypeFixedTargetExit}, buildFakeEntry)
	assert.ErrorIs(t, err, ErrFamilyMismatch)
}

func TestEntryAnalyze(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		params     Params
		candles    []market.Candle
		signal     Signal
		confidence float64
		reason     string
	}{
		{
			name:       "condition not met",
			params:     Params{"met": false},
			candles:    flatCandles(30, 100, 10),
			signal:     SignalHold,
			confidence: 0.5,
			reason:     "entry condition not met",
		},
		{
			name:       "blended confidence above minimum",
			candles:    flatCandles(30, 100, 10),
			signal:     SignalBuy,
			confidence: 0.9, // 0.5*1 + 0.3*1 + 0.2*0.5
		},
		{
			name:       "blended confidence below minimum",
			params:     Params{"base": 0.2},
			candles:    flatCandles(30, 100, 10),
			signal:     SignalHold,
			confidence: 0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newFakeEntry(t, tt.params)
			rec, err := e.Analyze(ctx, "BTCUSDT", tt.candles)
			require.NoError(t, err)
			assert.Equal(t, tt.signal, rec.Signal)
			assert.True(t, rec.Confidence.Equal(D(tt.confidence)), "got %s", rec.Confidence)
			if tt.reason != "" {
				assert.Equal(t, tt.reason, rec.Reason())
			}
			assert.Equal(t, 1, e.Statistics().Total)
		})
	}
}

func TestEntryShortfallAndGates(t *testing.T) {
	ctx := context.Background()

	t.Run("shortfall recorded", func(t *testing.T) {
		e := newFakeEntry(t, Params{"base": 0.2})
		rec, err := e.Analyze(ctx, "BTCUSDT", flatCandles(30, 100, 10))
		require.NoError(t, err)
		assert.InDelta(t, 0.1, rec.Metadata["shortfall"], 1e-9)
	})

	t.Run("volume gate", func(t *testing.T) {
		candles := flatCandles(30, 100, 10)
		candles[29].Volume = decimal.NewFromInt(1)
		rec, err := newFakeEntry(t, nil).Analyze(ctx, "BTCUSDT", candles)
		require.NoError(t, err)
		assert.Equal(t, SignalHold, rec.Signal)
		assert.Equal(t, "insufficient volume", rec.Reason())
	})

	t.Run("below trend dampens confidence", func(t *testing.T) {
		candles := flatCandles(30, 100, 10)
		candles[29].Close = decimal.NewFromInt(90)
		rec, err := newFakeEntry(t, nil).Analyze(ctx, "BTCUSDT", candles)
		require.NoError(t, err)
		// 0.5*0.8 + 0.3*0.7 + 0.2*0.5
		assert.True(t, rec.Confidence.Equal(D(0.71)), "got %s", rec.Confidence)
		assert.Equal(t, false, rec.Metadata["trend_ok"])
	})

	t.Run("candles untouched", func(t *testing.T) {
		candles := flatCandles(30, 100, 10)
		snapshot := append([]market.Candle(nil), candles...)
		_, err := newFakeEntry(t, nil).Analyze(ctx, "BTCUSDT", candles)
		require.NoError(t, err)
		assert.Equal(t, snapshot, candles)
	})
}

func TestEntryInsufficientData(t *testing.T) {
	e := newFakeEntry(t, nil)
	_, err := e.Analyze(context.Background(), "BTCUSDT", flatCandles(5, 100, 10))
	assert.ErrorIs(t, err, ErrInsufficientData)

	var ierr *InsufficientDataError
	require.True(t, errors.As(err, &ierr))
	assert.Equal(t, 10, ierr.Required)
	assert.Equal(t, 5, ierr.Provided)
	assert.Equal(t, 0, e.Statistics().Total)
}

func TestEnsembleEntry(t *testing.T) {
	ctx := context.Background()

	rec, err := newFakeEntry(t, Params{"ensemble": true, "base": 0.65}).Analyze(ctx, "BTCUSDT", flatCandles(30, 100, 10))
	require.NoError(t, err)
	assert.Equal(t, SignalBuy, rec.Signal)
	assert.True(t, rec.Confidence.Equal(D(0.65)))

	rec, err = newFakeEntry(t, Params{"ensemble": true, "base": 0.5}).Analyze(ctx, "BTCUSDT", flatCandles(30, 100, 10))
	require.NoError(t, err)
	assert.Equal(t, SignalHold, rec.Signal)
	assert.True(t, rec.Confidence.Equal(D(0.5)))
}

func TestEnsembleWeightsValidatedAtConstruction(t *testing.T) {
	tests := []struct {
		name   string
		weight float64
		ok     bool
	}{
		{"总和为1", 1, true},
		{"容差之内", 1.009, true},
		{"总和0.80", 0.8, false},
		{"总和1.02", 1.02, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := Definition{ID: 1, Name: "fake-ensemble", Type: TypeHybridEntry,
				Parameters: Params{"ensemble": true, "weight": tt.weight}}
			e, err := NewEntry(def, buildFakeEntry)
			if tt.ok {
				require.NoError(t, err)
				assert.NotNil(t, e)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, "fake-ensemble", verr.Strategy)
			assert.Nil(t, e)
		})
	}

	t.Run("更新参数同样校验", func(t *testing.T) {
		e := newFakeEntry(t, Params{"ensemble": true})
		err := e.UpdateParameters(context.Background(), Params{"weight": 0.8})
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.NotContains(t, e.Definition().Parameters, "weight")
	})
}

func TestRuleFailuresBecomeExecutionErrors(t *testing.T) {
	ctx := context.Background()
	candles := flatCandles(30, 100, 10)
	pos := Position{ID: "p1", Symbol: "BTCUSDT", EntryPrice: D(100), EntryTime: t0}

	t.Run("普通错误", func(t *testing.T) {
		_, err := newFakeEntry(t, Params{"fail": "error"}).Analyze(ctx, "BTCUSDT", candles)
		var eerr *ExecutionError
		require.ErrorAs(t, err, &eerr)
		assert.Equal(t, "fake-entry", eerr.Strategy)
		assert.Contains(t, err.Error(), "unexpected storage hiccup")

		var calc *CalculationError
		assert.False(t, errors.As(err, &calc))
	})

	t.Run("计算错误保持原类型", func(t *testing.T) {
		r := &calcFailRule{fakeRule: fakeRule{p: defaultFakeParams()}}
		e, err := NewEntry(Definition{ID: 1, Name: "calc", Type: TypeRSIEntry},
			func(Params) (EntryRule, error) { return r, nil })
		require.NoError(t, err)
		_, err = e.Analyze(ctx, "BTCUSDT", candles)
		var calc *CalculationError
		require.ErrorAs(t, err, &calc)
		assert.Equal(t, "calc", calc.Strategy)
		assert.Equal(t, "rsi", calc.Indicator)
	})

	t.Run("买入规则panic", func(t *testing.T) {
		e := newFakeEntry(t, Params{"fail": "panic"})
		rec, err := e.Analyze(ctx, "BTCUSDT", candles)
		var eerr *ExecutionError
		require.ErrorAs(t, err, &eerr)
		assert.Contains(t, err.Error(), "panic")
		assert.Equal(t, SignalRecord{}, rec)
		assert.Equal(t, 0, e.Statistics().Total)

		// 锁已释放，实例仍可用
		require.NoError(t, e.UpdateParameters(ctx, Params{"fail": ""}))
		rec, err = e.Analyze(ctx, "BTCUSDT", candles)
		require.NoError(t, err)
		assert.Equal(t, SignalBuy, rec.Signal)
	})

	t.Run("卖出规则panic", func(t *testing.T) {
		x := newFakeExit(t, Params{"fail": "panic_exit"})
		state := ExecutionState{HighestPrice: D(120)}
		_, next, err := x.EvaluateExit(ctx, "BTCUSDT", pos, candles, state)
		var eerr *ExecutionError
		require.ErrorAs(t, err, &eerr)
		assert.Equal(t, "fake-exit", eerr.Strategy)
		assert.True(t, next.HighestPrice.Equal(D(120)))
		assert.Empty(t, next.TriggeredLevels)
	})
}

type calcFailRule struct {
	fakeRule
}

func (c *calcFailRule) CalculateIndicators(ctx context.Context, candles []market.Candle) (Indicators, error) {
	return nil, Calc("rsi", errors.New("nan"))
}

func TestStatistics(t *testing.T) {
	ctx := context.Background()
	e := newFakeEntry(t, nil)

	for i := 0; i < 3; i++ {
		_, err := e.Analyze(ctx, "BTCUSDT", flatCandles(30, 100, 10))
		require.NoError(t, err)
	}
	require.NoError(t, e.UpdateParameters(ctx, Params{"met": false}))
	_, err := e.Analyze(ctx, "BTCUSDT", flatCandles(30, 100, 10))
	require.NoError(t, err)

	stats := e.Statistics()
	assert.Equal(t, 4, stats.Total)
	assert.Equal(t, 3, stats.Buy)
	assert.Equal(t, 1, stats.Hold)
	assert.InDelta(t, 75.0, stats.BuyRatio, 1e-9)
	assert.InDelta(t, 0.0, stats.SellRatio, 1e-9)

	e.ResetStatistics()
	assert.Equal(t, Statistics{Name: "fake-entry", Status: StatusInactive}, e.Statistics())
}

func TestUpdateParametersRejected(t *testing.T) {
	ctx := context.Background()
	e := newFakeEntry(t, Params{"period": 12})

	err := e.UpdateParameters(ctx, Params{"period": 0})
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, 12, e.MinimumDataPoints())
	assert.Equal(t, 12, e.Definition().Parameters["period"])
}

func TestExitPreCheck(t *testing.T) {
	ctx := context.Background()
	pos := Position{ID: "p1", EntryPrice: decimal.NewFromInt(100), EntryTime: t0}

	tests := []struct {
		name   string
		params Params
		price  float64
		signal Signal
		conf   float64
	}{
		{name: "minimum profit", params: Params{"min_profit_pct": 2, "met": false}, price: 103, signal: SignalSell, conf: 0.95},
		{name: "max loss", params: Params{"max_loss_pct": -5, "met": false}, price: 94, signal: SignalSell, conf: 0.95},
		{name: "not met", params: Params{"met": false}, price: 101, signal: SignalHold, conf: 0.5},
		{name: "below minimum", params: Params{"base": 0.5}, price: 101, signal: SignalHold, conf: 0.5},
		{name: "met", params: Params{"base": 0.8}, price: 101, signal: SignalSell, conf: 0.8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x := newFakeExit(t, tt.params)
			rec, _, err := x.EvaluateExit(ctx, "BTCUSDT", pos, flatCandles(10, tt.price, 10), NewExecutionState(pos.EntryPrice, t0))
			require.NoError(t, err)
			assert.Equal(t, tt.signal, rec.Signal)
			assert.True(t, rec.Confidence.Equal(D(tt.conf)), "got %s", rec.Confidence)
			assert.Contains(t, rec.Indicators, "profit_loss_pct")
		})
	}
}

func TestExitStateIsReturnedNotMutated(t *testing.T) {
	ctx := context.Background()
	x := newFakeExit(t, nil)
	pos := Position{ID: "p1", EntryPrice: decimal.NewFromInt(100), EntryTime: t0}

	in := ExecutionState{}
	_, out, err := x.EvaluateExit(ctx, "BTCUSDT", pos, flatCandles(10, 104, 10), in)
	require.NoError(t, err)

	assert.Empty(t, in.TriggeredLevels)
	assert.True(t, in.HighestPrice.IsZero())
	assert.True(t, out.Triggered(0))
	assert.True(t, out.HighestPrice.Equal(decimal.NewFromInt(104)))

	assert.True(t, x.Stateful())
	reset := x.ResetExecutionState(out)
	assert.Empty(t, reset.TriggeredLevels)
	assert.True(t, reset.HighestPrice.IsZero())
}

func TestExecutionState(t *testing.T) {
	s := NewExecutionState(decimal.NewFromInt(100), t0)

	assert.False(t, s.Observe(decimal.NewFromInt(95)))
	assert.True(t, s.Observe(decimal.NewFromInt(110)))
	assert.False(t, s.Observe(decimal.NewFromInt(105)))
	assert.True(t, s.HighestPrice.Equal(decimal.NewFromInt(110)))

	assert.True(t, s.Trigger(1))
	assert.False(t, s.Trigger(1))

	clone := s.Clone()
	clone.Trigger(2)
	assert.False(t, s.Triggered(2))
	assert.True(t, clone.Triggered(2))
}

func TestMemoryStateStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStateStore()
	key := StateKey{InstanceID: 7, PositionID: "abc"}

	_, ok, err := store.LoadState(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	state := NewExecutionState(decimal.NewFromInt(100), t0)
	state.Trigger(0)
	require.NoError(t, store.SaveState(ctx, key, state))

	loaded, ok, err := store.LoadState(ctx, key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, state, loaded)
	assert.Equal(t, "7:abc", key.String())

	require.NoError(t, store.DeleteState(ctx, key))
	assert.Equal(t, 0, store.Len())
}

func TestAggregate(t *testing.T) {
	weights := map[string]decimal.Decimal{"macd": D(0.35), "stochastic": D(0.30), "rsi": D(0.20), "volume": D(0.15)}

	t.Run("weighted average", func(t *testing.T) {
		scores := map[string]decimal.Decimal{"macd": D(1), "stochastic": D(1), "rsi": D(0), "volume": D(0)}
		score := Aggregate(scores, weights)
		assert.True(t, score.Equal(D(0.65)))
		assert.True(t, Decide(score, D(0.65)))
	})

	t.Run("zero weight", func(t *testing.T) {
		score := Aggregate(map[string]decimal.Decimal{"a": D(1)}, map[string]decimal.Decimal{"a": Zero})
		assert.True(t, score.Equal(Half))
		assert.False(t, Decide(score, D(0.65)))
	})
}

func TestWeightViolations(t *testing.T) {
	tests := []struct {
		name    string
		weights map[string]decimal.Decimal
		valid   bool
	}{
		{name: "sum 1.00", weights: map[string]decimal.Decimal{"a": D(0.6), "b": D(0.4)}, valid: true},
		{name: "sum 1.009", weights: map[string]decimal.Decimal{"a": D(0.609), "b": D(0.4)}, valid: true},
		{name: "sum 0.80", weights: map[string]decimal.Decimal{"a": D(0.4), "b": D(0.4)}},
		{name: "negative", weights: map[string]decimal.Decimal{"a": D(1.2), "b": D(-0.2)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, len(WeightViolations(tt.weights)) == 0)
		})
	}
}

func TestParamsDecode(t *testing.T) {
	p := defaultFakeParams()
	require.NoError(t, Params{"period": 21, "base": "0.4"}.Decode(&p))
	assert.Equal(t, 21, p.Period)
	assert.True(t, p.Base.Equal(D(0.4)))
	assert.True(t, p.MinConfidence.Equal(D(0.6)))

	assert.Error(t, Params{"period": "x"}.Decode(&p))

	merged := Params{"a": 1, "b": 2}.Merge(Params{"b": 3})
	assert.Equal(t, Params{"a": 1, "b": 3}, merged)
}

func TestIndicatorsPrefix(t *testing.T) {
	ind := Indicators{}
	ind.Merge("macd", Indicators{"histogram": D(1.5)})
	ind.SetFlag("macd_golden_cross", true)

	sub := ind.Sub("macd")
	assert.True(t, sub["histogram"].Equal(D(1.5)))
	assert.True(t, sub.Flag("golden_cross"))
	assert.False(t, sub.Flag("missing"))
	assert.Equal(t, []string{"macd_golden_cross", "macd_histogram"}, ind.Names())
}

func TestHelpers(t *testing.T) {
	entry := decimal.NewFromInt(100)

	assert.True(t, ProfitLossPct(entry, decimal.NewFromInt(112)).Equal(D(12)))
	assert.True(t, ProfitLossPct(Zero, decimal.NewFromInt(112)).IsZero())
	assert.True(t, TakeProfitPrice(entry, D(10)).Equal(D(110)))
	assert.True(t, StopLossPrice(entry, D(-5)).Equal(D(95)))
	assert.True(t, PositionSize(decimal.NewFromInt(1000), decimal.NewFromInt(50), DefaultRiskPerTrade).Equal(D(0.4)))
	assert.True(t, PositionSize(decimal.NewFromInt(1000), Zero, DefaultRiskPerTrade).IsZero())
	assert.True(t, Clamp01(D(1.3)).Equal(One))
	assert.True(t, Clamp01(D(-0.3)).IsZero())
	assert.True(t, CalculateConfidence(D(1), D(1), D(1)).Equal(One))

	candles := flatCandles(25, 100, 10)
	candles[24].Close = decimal.NewFromInt(110)
	assert.True(t, PriceChangeRate(candles, 1).Equal(D(10)))
	assert.True(t, VolumeStrength(flatCandles(5, 100, 10)).Equal(Half))
	assert.Equal(t, 5, HoldingPeriods(candles, candles[19].Timestamp))
}
