package entry

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

// 短期均线在长期均线上方且间距不超过该比例时，视为刚发生交叉
var recentCrossGap = d(0.03)

// MACrossParams 均线金叉买入参数
type MACrossParams struct {
	Common
	ShortPeriod   int    `json:"short_period"`
	LongPeriod    int    `json:"long_period"`
	MAType        string `json:"ma_type"`
	CrossLookback int    `json:"cross_lookback"`
}

func DefaultMACrossParams() MACrossParams {
	return MACrossParams{
		Common:        DefaultCommon(),
		ShortPeriod:   20,
		LongPeriod:    60,
		MAType:        MATypeEMA,
		CrossLookback: 3,
	}
}

// MACross 短期均线上穿长期均线时买入
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

func (s *MACross) EntryOptions() strategy.EntryOptions { return s.p.options() }

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
	return maCrossIndicators(candles, s.p.MAType, s.p.ShortPeriod, s.p.LongPeriod)
}

func maCrossIndicators(candles []market.Candle, maType string, short, long int) (strategy.Indicators, error) {
	closes := market.Closes(candles)
	shortMA, err := indicators.MovingAverage(maType, closes, short)
	if err != nil {
		return nil, strategy.Calc("ma_short", err)
	}
	longMA, err := indicators.MovingAverage(maType, closes, long)
	if err != nil {
		return nil, strategy.Calc("ma_long", err)
	}
	s, sp := latestPair(shortMA)
	l, lp := latestPair(longMA)
	return strategy.Indicators{
		"ma_short":      s,
		"ma_long":       l,
		"ma_short_prev": sp,
		"ma_long_prev":  lp,
		"price":         closes[len(closes)-1],
	}, nil
}

func (s *MACross) CheckEntryCondition(candles []market.Candle, ind strategy.Indicators) (bool, decimal.Decimal) {
	short, long := ind["ma_short"], ind["ma_long"]
	shortPrev, longPrev := ind["ma_short_prev"], ind["ma_long_prev"]
	if !long.IsPositive() {
		return false, strategy.Zero
	}

	golden := shortPrev.LessThan(longPrev) && short.GreaterThanOrEqual(long)
	if !golden {
		if !short.GreaterThan(long) || short.Sub(long).Div(long).Abs().GreaterThan(recentCrossGap) {
			return false, strategy.Zero
		}
	}

	diff := short.Sub(long).Div(long).Mul(strategy.Hundred)
	base := strategy.Half
	if diff.IsPositive() {
		base = d(0.6).Add(decimal.Min(diff.Div(decimal.NewFromInt(5)), d(0.3)))
	}
	if price := ind["price"]; price.GreaterThan(short) && price.GreaterThan(long) {
		base = base.Mul(d(1.1))
	}
	return true, strategy.Cap1(base)
}
