package entry

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

// BollingerParams 布林带下轨买入参数
type BollingerParams struct {
	Common
	Period         int             `json:"period"`
	StdDev         decimal.Decimal `json:"std_dev"`
	SignalMode     string          `json:"signal_mode"`
	TouchThreshold decimal.Decimal `json:"touch_threshold"` // 下轨的倍数，1.02 即下轨上方2%以内
}

func DefaultBollingerParams() BollingerParams {
	c := DefaultCommon()
	c.TrendCheck = false
	return BollingerParams{
		Common:         c,
		Period:         20,
		StdDev:         d(2),
		SignalMode:     ModeTouch,
		TouchThreshold: d(1.02),
	}
}

// Bollinger 触及下轨或跌破后重回下轨时买入
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

func (s *Bollinger) EntryOptions() strategy.EntryOptions { return s.p.options() }

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
	if result.MiddleBand.IsZero() {
		return nil, strategy.Calc("bollinger_bands", indicators.ErrZeroRange)
	}

	last := candles[len(candles)-1]
	_, prev := latestPair(closes)
	return strategy.Indicators{
		"bb_upper":   result.UpperBand,
		"bb_middle":  result.MiddleBand,
		"bb_lower":   result.LowerBand,
		"bb_width":   result.GetBandWidth(),
		"price":      last.Close,
		"low":        last.Low,
		"price_prev": prev,
	}, nil
}

func (s *Bollinger) CheckEntryCondition(candles []market.Candle, ind strategy.Indicators) (bool, decimal.Decimal) {
	lower, middle := ind["bb_lower"], ind["bb_middle"]
	price, low, prev := ind["price"], ind["low"], ind["price_prev"]
	if !lower.IsPositive() {
		return false, strategy.Zero
	}

	var base decimal.Decimal
	if s.p.SignalMode == ModeTouch {
		touch := lower.Mul(s.p.TouchThreshold)
		if low.GreaterThan(touch) && price.GreaterThan(touch) {
			return false, strategy.Zero
		}
		distance := price.Sub(lower).Abs().Div(lower)
		base = d(0.7).Sub(decimal.Min(distance.Mul(decimal.NewFromInt(10)), d(0.2)))
	} else {
		if !(prev.LessThan(lower) && price.GreaterThanOrEqual(lower)) {
			return false, strategy.Zero
		}
		span := middle.Sub(lower)
		strength := strategy.Zero
		if span.IsPositive() {
			strength = price.Sub(lower).Div(span)
		}
		base = d(0.8).Sub(decimal.Min(strength.Mul(d(0.3)), d(0.2)))
	}

	if ind["bb_width"].GreaterThan(d(0.03)) {
		base = base.Mul(d(1.1))
	}
	if price.LessThan(middle) {
		base = base.Mul(d(1.05))
	}
	return true, strategy.Cap1(base)
}
