package exit

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// MACD 交叉模式
const (
	CrossSignal = "signal"
	CrossZero   = "zero"
	CrossBoth   = "both"
)

// MACDParams MACD死叉卖出参数
type MACDParams struct {
	Common
	FastPeriod   int    `json:"fast_period"`
	SlowPeriod   int    `json:"slow_period"`
	SignalPeriod int    `json:"signal_period"`
	CrossMode    string `json:"cross_mode"`
}

func DefaultMACDParams() MACDParams {
	c := DefaultCommon()
	c.MinProfitPct = d(2)
	c.MaxLossPct = d(-5)
	return MACDParams{
		Common:       c,
		FastPeriod:   12,
		SlowPeriod:   26,
		SignalPeriod: 9,
		CrossMode:    CrossSignal,
	}
}

// MACD 信号线死叉、零轴下穿或两者之一时卖出
type MACD struct {
	p MACDParams
}

func NewMACD(params strategy.Params) (*MACD, error) {
	p := DefaultMACDParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &MACD{p: p}, nil
}

func (s *MACD) Params() MACDParams { return s.p }

func (s *MACD) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *MACD) MinimumDataPoints() int {
	return maxInt(s.p.SlowPeriod+s.p.SignalPeriod+20, 50)
}

func (s *MACD) Violations() []string {
	v := s.p.violations()
	if s.p.FastPeriod < 2 {
		v = append(v, fmt.Sprintf("fast_period must be >= 2, got %d", s.p.FastPeriod))
	}
	if s.p.SlowPeriod <= s.p.FastPeriod {
		v = append(v, fmt.Sprintf("slow_period must be > fast_period, got %d/%d", s.p.SlowPeriod, s.p.FastPeriod))
	}
	if s.p.SignalPeriod < 2 {
		v = append(v, fmt.Sprintf("signal_period must be >= 2, got %d", s.p.SignalPeriod))
	}
	switch s.p.CrossMode {
	case CrossSignal, CrossZero, CrossBoth:
	default:
		v = append(v, fmt.Sprintf("cross_mode must be signal, zero or both, got %q", s.p.CrossMode))
	}
	return v
}

func (s *MACD) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	result, err := indicators.MACD(market.Closes(candles), s.p.FastPeriod, s.p.SlowPeriod, s.p.SignalPeriod)
	if err != nil {
		return nil, strategy.Calc("macd", err)
	}
	cur, prev := result.Latest(), result.Previous()
	return strategy.Indicators{
		"macd":           cur.MACD,
		"signal":         cur.Signal,
		"histogram":      cur.Histogram,
		"prev_macd":      prev.MACD,
		"prev_signal":    prev.Signal,
		"prev_histogram": prev.Histogram,
		"price":          lastClose(candles),
	}, nil
}

func (s *MACD) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	ind := in.Indicators
	macd, signal, hist := ind["macd"], ind["signal"], ind["histogram"]
	pm, ps, ph := ind.Value("prev_macd", macd), ind.Value("prev_signal", signal), ind.Value("prev_histogram", hist)

	deadCross := pm.GreaterThan(ps) && macd.LessThanOrEqual(signal)
	zeroCross := pm.IsPositive() && !macd.IsPositive()
	histNegative := ph.IsPositive() && !hist.IsPositive()

	var base decimal.Decimal
	switch s.p.CrossMode {
	case CrossSignal:
		if !deadCross {
			return notMet("no macd dead cross")
		}
		base = d(0.75)
	case CrossZero:
		if !zeroCross {
			return notMet("macd has not crossed below zero")
		}
		base = d(0.8)
	default:
		if !deadCross && !zeroCross {
			return notMet("neither macd dead cross nor zero cross")
		}
		base = d(0.75)
		if deadCross && zeroCross {
			base = d(0.9)
		}
	}

	if histNegative {
		base = base.Mul(d(1.1))
	}
	if macd.IsNegative() {
		base = base.Mul(d(1.05))
	}
	base = applyTiers(base, in.ProfitPct, crossTiers, d(-5), d(1.2))

	var conditions []string
	if deadCross {
		conditions = append(conditions, "dead cross")
	}
	if zeroCross {
		conditions = append(conditions, "zero cross")
	}
	if histNegative {
		conditions = append(conditions, "histogram turned negative")
	}
	return sell(strategy.Cap1(base), "macd %s (macd=%s, signal=%s)",
		strings.Join(conditions, ", "), macd.StringFixed(2), signal.StringFixed(2))
}
