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

// StochasticParams 随机指标超买卖出参数
type StochasticParams struct {
	Common
	KPeriod           int             `json:"k_period"`
	DPeriod           int             `json:"d_period"`
	Smooth            int             `json:"smooth"`
	Overbought        decimal.Decimal `json:"overbought"`
	ExtremeOverbought decimal.Decimal `json:"extreme_overbought"`
	CrossRequired     bool            `json:"cross_required"`
}

func DefaultStochasticParams() StochasticParams {
	c := DefaultCommon()
	c.MinProfitPct = d(2)
	c.MaxLossPct = d(-5)
	return StochasticParams{
		Common:            c,
		KPeriod:           14,
		DPeriod:           3,
		Smooth:            3,
		Overbought:        d(80),
		ExtremeOverbought: d(90),
	}
}

// Stochastic %K进入超买区时卖出，可要求同时出现死叉
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

func (s *Stochastic) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *Stochastic) MinimumDataPoints() int {
	return maxInt(s.p.KPeriod+s.p.Smooth+10, 30)
}

func (s *Stochastic) Violations() []string {
	v := s.p.violations()
	if s.p.KPeriod < 2 {
		v = append(v, fmt.Sprintf("k_period must be >= 2, got %d", s.p.KPeriod))
	}
	if s.p.DPeriod < 1 || s.p.Smooth < 1 {
		v = append(v, fmt.Sprintf("d_period and smooth must be >= 1, got %d/%d", s.p.DPeriod, s.p.Smooth))
	}
	if !s.p.Overbought.IsPositive() ||
		s.p.Overbought.GreaterThanOrEqual(s.p.ExtremeOverbought) ||
		s.p.ExtremeOverbought.GreaterThan(strategy.Hundred) {
		v = append(v, fmt.Sprintf("thresholds must satisfy 0 < overbought < extreme_overbought <= 100, got %s/%s",
			s.p.Overbought, s.p.ExtremeOverbought))
	}
	return v
}

func (s *Stochastic) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	result, err := indicators.Stochastic(market.Highs(candles), market.Lows(candles), market.Closes(candles),
		s.p.KPeriod, s.p.DPeriod, s.p.Smooth)
	if err != nil {
		return nil, strategy.Calc("stochastic", err)
	}
	k, dv := result.Latest()
	pk, pd := result.Previous()
	return strategy.Indicators{"k": k, "d": dv, "prev_k": pk, "prev_d": pd, "price": lastClose(candles)}, nil
}

func (s *Stochastic) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	ind := in.Indicators
	k, dv := ind["k"], ind["d"]
	pk, pd := ind.Value("prev_k", k), ind.Value("prev_d", dv)

	if k.LessThan(s.p.Overbought) {
		return notMet("%%K %s below overbought %s", pct(k), pct(s.p.Overbought))
	}
	deadCross := pk.GreaterThan(pd) && k.LessThanOrEqual(dv)
	if s.p.CrossRequired && !deadCross {
		return notMet("dead cross required")
	}

	extreme := k.GreaterThanOrEqual(s.p.ExtremeOverbought)
	falling := k.LessThan(pk)

	strength := k.Sub(s.p.Overbought).Div(strategy.Hundred.Sub(s.p.Overbought))
	conf := d(0.7).Add(decimal.Min(strength.Mul(d(0.2)), d(0.2)))
	if extreme {
		conf = conf.Mul(d(1.2))
	}
	if deadCross {
		conf = conf.Mul(d(1.15))
	}
	if falling {
		conf = conf.Mul(d(1.05))
	}
	conf = applyTiers(conf, in.ProfitPct, bandTiers, d(-3), d(0.9))

	conditions := []string{fmt.Sprintf("overbought (%%K=%s)", pct(k))}
	if extreme {
		conditions[0] = fmt.Sprintf("extreme overbought (%%K=%s)", pct(k))
	}
	if deadCross {
		conditions = append(conditions, "dead cross")
	}
	if falling {
		conditions = append(conditions, "turning down")
	}
	return sell(strategy.Cap1(conf), "stochastic %s", strings.Join(conditions, ", "))
}
