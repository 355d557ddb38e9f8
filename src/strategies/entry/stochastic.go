package entry

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// StochasticParams 随机指标超卖反转买入参数
type StochasticParams struct {
	Common
	KPeriod    int             `json:"k_period"`
	DPeriod    int             `json:"d_period"`
	Smooth     int             `json:"smooth"`
	Oversold   decimal.Decimal `json:"oversold"`
	Overbought decimal.Decimal `json:"overbought"`
}

func DefaultStochasticParams() StochasticParams {
	c := DefaultCommon()
	c.MinConfidence = d(0.65)
	c.TrendCheck = false
	return StochasticParams{
		Common:     c,
		KPeriod:    14,
		DPeriod:    3,
		Smooth:     3,
		Oversold:   d(20),
		Overbought: d(80),
	}
}

// Stochastic 超卖区金叉或超卖区回升时买入
type Stochastic struct {
	p StochasticParams
}

func NewStochastic(params strategy.Params) (*Stochastic, error) {
	p := DefaultStochasticParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &Stochastic{p: p}, nil
}

func (s *Stochastic) Params() StochasticParams { return s.p }

func (s *Stochastic) EntryOptions() strategy.EntryOptions { return s.p.options() }

func (s *Stochastic) MinimumDataPoints() int {
	return s.p.KPeriod + s.p.Smooth + s.p.DPeriod + 10
}

func (s *Stochastic) Violations() []string {
	v := s.p.violations()
	if s.p.KPeriod <= 0 || s.p.DPeriod <= 0 || s.p.Smooth <= 0 {
		v = append(v, fmt.Sprintf("k_period, d_period and smooth must be > 0, got %d/%d/%d", s.p.KPeriod, s.p.DPeriod, s.p.Smooth))
	}
	fifty := decimal.NewFromInt(50)
	if !s.p.Oversold.IsPositive() || s.p.Oversold.GreaterThanOrEqual(fifty) ||
		s.p.Overbought.LessThanOrEqual(fifty) || s.p.Overbought.GreaterThanOrEqual(strategy.Hundred) {
		v = append(v, fmt.Sprintf("thresholds must satisfy 0 < oversold < 50 < overbought < 100, got %s/%s",
			s.p.Oversold, s.p.Overbought))
	}
	return v
}

func (s *Stochastic) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	return stochasticIndicators(candles, s.p.KPeriod, s.p.DPeriod, s.p.Smooth)
}

func stochasticIndicators(candles []market.Candle, kPeriod, dPeriod, smooth int) (strategy.Indicators, error) {
	result, err := indicators.Stochastic(market.Highs(candles), market.Lows(candles), market.Closes(candles), kPeriod, dPeriod, smooth)
	if err != nil {
		return nil, strategy.Calc("stochastic", err)
	}
	k, dv := result.Latest()
	pk, pd := result.Previous()
	return strategy.Indicators{"k": k, "d": dv, "prev_k": pk, "prev_d": pd}, nil
}

func (s *Stochastic) CheckEntryCondition(candles []market.Candle, ind strategy.Indicators) (bool, decimal.Decimal) {
	k, dv := ind["k"], ind["d"]
	pk, pd := ind.Value("prev_k", k), ind.Value("prev_d", dv)

	cross := pk.LessThanOrEqual(pd) && k.GreaterThan(dv)
	oversold := k.LessThan(s.p.Oversold)
	reversal := oversold && k.GreaterThan(pk)
	if !(cross && oversold) && !reversal {
		return false, strategy.Half
	}

	ten := decimal.NewFromInt(10)
	conf := strategy.Half
	if cross {
		conf = conf.Add(d(0.25))
	}
	if oversold {
		conf = conf.Add(s.p.Oversold.Sub(k).Div(s.p.Oversold).Mul(d(0.2)))
	}
	if reversal {
		conf = conf.Add(decimal.Min(k.Sub(pk).Div(ten), d(0.15)))
	}
	if k.GreaterThan(dv) {
		conf = conf.Add(decimal.Min(k.Sub(dv).Div(ten), d(0.1)))
	}
	return true, strategy.Clamp01(conf)
}
