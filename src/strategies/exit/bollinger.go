package exit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// 布林带信号模式
const (
	ModeTouch    = "touch"
	ModeBreakout = "breakout"
)

// BollingerParams 布林带上轨卖出参数
type BollingerParams struct {
	Common
	Period         int             `json:"period"`
	StdDev         decimal.Decimal `json:"std_dev"`
	SignalMode     string          `json:"signal_mode"`
	TouchThreshold decimal.Decimal `json:"touch_threshold"` // 上轨的倍数，0.98 即上轨下方2%以内
}

func DefaultBollingerParams() BollingerParams {
	c := DefaultCommon()
	c.MinProfitPct = d(2)
	c.MaxLossPct = d(-5)
	return BollingerParams{
		Common:         c,
		Period:         20,
		StdDev:         d(2),
		SignalMode:     ModeTouch,
		TouchThreshold: d(0.98),
	}
}

// Bollinger 触及上轨或突破后回落到上轨内时卖出
type Bollinger struct {
	p BollingerParams
}

func NewBollinger(params strategy.Params) (*Bollinger, error) {
	p := DefaultBollingerParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &Bollinger{p: p}, nil
}

func (s *Bollinger) Params() BollingerParams { return s.p }

func (s *Bollinger) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *Bollinger) MinimumDataPoints() int {
	return maxInt(s.p.Period+20, 40)
}

func (s *Bollinger) Violations() []string {
	v := s.p.violations()
	if s.p.Period < 2 {
		v = append(v, fmt.Sprintf("period must be >= 2, got %d", s.p.Period))
	}
	if !s.p.StdDev.IsPositive() {
		v = append(v, fmt.Sprintf("std_dev must be > 0, got %s", s.p.StdDev))
	}
	if s.p.SignalMode != ModeTouch && s.p.SignalMode != ModeBreakout {
		v = append(v, fmt.Sprintf("signal_mode must be touch or breakout, got %q", s.p.SignalMode))
	}
	return v
}

func (s *Bollinger) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	bb := &indicators.BollingerBands{Period: s.p.Period, Multiplier: s.p.StdDev}
	closes := market.Closes(candles)
	result, err := bb.Calculate(closes)
	if err != nil {
		return nil, strategy.Calc("bollinger_bands", err)
	}
	last := candles[len(candles)-1]
	_, prev := latestPair(closes)
	return strategy.Indicators{
		"bb_upper":   result.UpperBand,
		"bb_middle":  result.MiddleBand,
		"bb_lower":   result.LowerBand,
		"bb_width":   result.GetBandWidth(),
		"price":      last.Close,
		"high":       last.High,
		"price_prev": prev,
	}, nil
}

func (s *Bollinger) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	ind := in.Indicators
	upper, middle := ind["bb_upper"], ind["bb_middle"]
	price, high, prev := ind["price"], ind["high"], ind["price_prev"]
	if !upper.IsPositive() {
		return notMet("upper band unavailable")
	}

	var conf decimal.Decimal
	if s.p.SignalMode == ModeTouch {
		touch := upper.Mul(s.p.TouchThreshold)
		if high.LessThan(touch) && price.LessThan(touch) {
			return notMet("upper band not touched")
		}
		distance := upper.Sub(price).Abs().Div(upper)
		conf = d(0.75).Add(decimal.Min(strategy.One.Sub(distance).Mul(d(0.2)), d(0.2)))
	} else {
		if !(prev.GreaterThan(upper) && price.LessThanOrEqual(upper)) {
			return notMet("price has not re-entered below the upper band")
		}
		strength := strategy.Zero
		if span := upper.Sub(middle); span.IsPositive() {
			strength = upper.Sub(price).Div(span)
		}
		conf = d(0.85).Add(decimal.Min(strength.Mul(d(0.15)), d(0.15)))
	}

	if ind["bb_width"].GreaterThan(d(0.03)) {
		conf = conf.Mul(d(1.1))
	}
	if price.GreaterThan(middle) {
		conf = conf.Mul(d(1.05))
	}
	conf = applyTiers(conf, in.ProfitPct, bandTiers, d(-3), d(0.9))
	return sell(strategy.Cap1(conf), "upper band %s (price=%s, upper=%s)", s.p.SignalMode, price.StringFixed(2), upper.StringFixed(2))
}
