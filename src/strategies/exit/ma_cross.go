package exit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// 均线类型
const (
	MATypeSMA = "SMA"
	MATypeEMA = "EMA"
)

// 短期均线在长期均线下方且间距不超过该比例时，视为刚发生死叉
var recentCrossGap = d(0.03)

// MACrossParams 均线死叉卖出参数
type MACrossParams struct {
	Common
	ShortPeriod   int    `json:"short_period"`
	LongPeriod    int    `json:"long_period"`
	MAType        string `json:"ma_type"`
	CrossLookback int    `json:"cross_lookback"`
}

func DefaultMACrossParams() MACrossParams {
	c := DefaultCommon()
	c.MinProfitPct = d(3)
	c.MaxLossPct = d(-5)
	return MACrossParams{
		Common:        c,
		ShortPeriod:   20,
		LongPeriod:    60,
		MAType:        MATypeEMA,
		CrossLookback: 3,
	}
}

// MACross 短期均线下穿长期均线时卖出
type MACross struct {
	p MACrossParams
}

func NewMACross(params strategy.Params) (*MACross, error) {
	p := DefaultMACrossParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &MACross{p: p}, nil
}

func (s *MACross) Params() MACrossParams { return s.p }

func (s *MACross) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *MACross) MinimumDataPoints() int {
	return maxInt(s.p.LongPeriod+20, 80)
}

func (s *MACross) Violations() []string {
	v := s.p.violations()
	if s.p.ShortPeriod < 2 {
		v = append(v, fmt.Sprintf("short_period must be >= 2, got %d", s.p.ShortPeriod))
	}
	if s.p.LongPeriod <= s.p.ShortPeriod {
		v = append(v, fmt.Sprintf("long_period must be > short_period, got %d/%d", s.p.LongPeriod, s.p.ShortPeriod))
	}
	if s.p.MAType != MATypeSMA && s.p.MAType != MATypeEMA {
		v = append(v, fmt.Sprintf("ma_type must be SMA or EMA, got %q", s.p.MAType))
	}
	return v
}

func (s *MACross) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	closes := market.Closes(candles)
	shortMA, err := indicators.MovingAverage(s.p.MAType, closes, s.p.ShortPeriod)
	if err != nil {
		return nil, strategy.Calc("ma_short", err)
	}
	longMA, err := indicators.MovingAverage(s.p.MAType, closes, s.p.LongPeriod)
	if err != nil {
		return nil, strategy.Calc("ma_long", err)
	}
	short, shortPrev := latestPair(shortMA)
	long, longPrev := latestPair(longMA)
	return strategy.Indicators{
		"ma_short":      short,
		"ma_long":       long,
		"ma_short_prev": shortPrev,
		"ma_long_prev":  longPrev,
		"price":         closes[len(closes)-1],
	}, nil
}

func (s *MACross) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	ind := in.Indicators
	short, long := ind["ma_short"], ind["ma_long"]
	shortPrev, longPrev := ind["ma_short_prev"], ind["ma_long_prev"]
	if !long.IsPositive() {
		return notMet("long moving average unavailable")
	}

	dead := shortPrev.GreaterThan(longPrev) && short.LessThanOrEqual(long)
	if !dead && (!short.LessThan(long) || long.Sub(short).Div(long).Abs().GreaterThan(recentCrossGap)) {
		return notMet("no dead cross")
	}

	diff := long.Sub(short).Div(long).Mul(strategy.Hundred)
	conf := d(0.6)
	if diff.IsPositive() {
		conf = d(0.7).Add(decimal.Min(diff.Div(d(5)), d(0.2)))
	}
	if price := ind["price"]; price.LessThan(short) && price.LessThan(long) {
		conf = conf.Mul(d(1.1))
	}
	conf = applyTiers(conf, in.ProfitPct, crossTiers, d(-5), d(1.2))
	return sell(strategy.Cap1(conf), "dead cross (short=%s, long=%s)", short.StringFixed(2), long.StringFixed(2))
}
