package exit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// RSIParams RSI超买卖出参数
type RSIParams struct {
	Common
	Period            int             `json:"rsi_period"`
	Overbought        decimal.Decimal `json:"overbought"`
	ExtremeOverbought decimal.Decimal `json:"extreme_overbought"`
}

func DefaultRSIParams() RSIParams {
	c := DefaultCommon()
	c.MinProfitPct = d(2)
	c.MaxLossPct = d(-5)
	return RSIParams{
		Common:            c,
		Period:            14,
		Overbought:        d(70),
		ExtremeOverbought: d(80),
	}
}

// RSI RSI进入超买区时卖出
type RSI struct {
	p RSIParams
}

func NewRSI(params strategy.Params) (*RSI, error) {
	p := DefaultRSIParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &RSI{p: p}, nil
}

func (s *RSI) Params() RSIParams { return s.p }

func (s *RSI) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *RSI) MinimumDataPoints() int {
	return maxInt(2*s.p.Period, 30)
}

func (s *RSI) Violations() []string {
	v := s.p.violations()
	if s.p.Period < 2 {
		v = append(v, fmt.Sprintf("rsi_period must be >= 2, got %d", s.p.Period))
	}
	if !s.p.Overbought.IsPositive() ||
		s.p.Overbought.GreaterThanOrEqual(s.p.ExtremeOverbought) ||
		s.p.ExtremeOverbought.GreaterThan(strategy.Hundred) {
		v = append(v, fmt.Sprintf("thresholds must satisfy 0 < overbought < extreme_overbought <= 100, got %s/%s",
			s.p.Overbought, s.p.ExtremeOverbought))
	}
	return v
}

func (s *RSI) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	values, err := indicators.RSI(market.Closes(candles), s.p.Period)
	if err != nil {
		return nil, strategy.Calc("rsi", err)
	}
	cur, prev := latestPair(values)
	return strategy.Indicators{"rsi": cur, "rsi_previous": prev, "price": lastClose(candles)}, nil
}

func (s *RSI) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	rsi := in.Indicators["rsi"]
	prev := in.Indicators.Value("rsi_previous", rsi)
	if rsi.LessThanOrEqual(s.p.Overbought) {
		return notMet("rsi %s not above %s", pct(rsi), pct(s.p.Overbought))
	}

	conf := rsi.Sub(s.p.Overbought).Div(strategy.Hundred.Sub(s.p.Overbought))
	if rsi.GreaterThanOrEqual(s.p.ExtremeOverbought) {
		conf = conf.Mul(d(1.2))
	}
	// 已从高位回落
	if rsi.LessThan(prev) {
		conf = conf.Mul(d(1.15))
	}
	switch pnl := in.ProfitPct; {
	case pnl.IsPositive():
		conf = conf.Mul(d(1.1))
	case pnl.LessThan(d(-2)):
		conf = conf.Mul(d(0.9))
	}
	return sell(strategy.Cap1(conf), "rsi overbought (%s > %s)", pct(rsi), pct(s.p.Overbought))
}
