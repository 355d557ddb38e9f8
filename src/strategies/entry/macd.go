package entry

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// MACDParams MACD金叉买入参数
type MACDParams struct {
	Common
	FastPeriod         int             `json:"fast_period"`
	SlowPeriod         int             `json:"slow_period"`
	SignalPeriod       int             `json:"signal_period"`
	HistogramThreshold decimal.Decimal `json:"histogram_threshold"`
}

func DefaultMACDParams() MACDParams {
	c := DefaultCommon()
	c.MinConfidence = d(0.65)
	return MACDParams{
		Common:             c,
		FastPeriod:         12,
		SlowPeriod:         26,
		SignalPeriod:       9,
		HistogramThreshold: strategy.Zero,
	}
}

// MACD 金叉或柱状图上穿阈值时买入
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

func (s *MACD) EntryOptions() strategy.EntryOptions { return s.p.options() }

func (s *MACD) MinimumDataPoints() int {
	return s.p.SlowPeriod + s.p.SignalPeriod + 10
}

func (s *MACD) Violations() []string {
	v := s.p.violations()
	if s.p.FastPeriod <= 0 || s.p.SlowPeriod <= 0 || s.p.SignalPeriod <= 0 {
		v = append(v, fmt.Sprintf("macd periods must be > 0, got %d/%d/%d", s.p.FastPeriod, s.p.SlowPeriod, s.p.SignalPeriod))
	}
	if s.p.FastPeriod >= s.p.SlowPeriod {
		v = append(v, fmt.Sprintf("fast_period must be < slow_period, got %d/%d", s.p.FastPeriod, s.p.SlowPeriod))
	}
	return v
}

func (s *MACD) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	return macdIndicators(candles, s.p.FastPeriod, s.p.SlowPeriod, s.p.SignalPeriod)
}

func macdIndicators(candles []market.Candle, fast, slow, signal int) (strategy.Indicators, error) {
	result, err := indicators.MACD(market.Closes(candles), fast, slow, signal)
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
	}, nil
}

func (s *MACD) CheckEntryCondition(candles []market.Candle, ind strategy.Indicators) (bool, decimal.Decimal) {
	macd, signal, hist := ind["macd"], ind["signal"], ind["histogram"]
	prevMACD := ind.Value("prev_macd", macd)
	prevSignal := ind.Value("prev_signal", signal)
	prevHist := ind.Value("prev_histogram", hist)

	goldenCross := prevMACD.LessThanOrEqual(prevSignal) && macd.GreaterThan(signal)
	histTurned := prevHist.LessThanOrEqual(s.p.HistogramThreshold) && hist.GreaterThan(s.p.HistogramThreshold)
	if !goldenCross && !histTurned {
		return false, strategy.Half
	}

	conf := strategy.Half
	if goldenCross {
		conf = conf.Add(d(0.2))
	}
	if histTurned {
		conf = conf.Add(d(0.15))
	}
	thousand := decimal.NewFromInt(1000)
	conf = conf.Add(decimal.Min(hist.Abs().Div(thousand), d(0.2)))
	conf = conf.Add(decimal.Min(macd.Sub(signal).Abs().Div(thousand), d(0.15)))
	return true, strategy.Clamp01(conf)
}
