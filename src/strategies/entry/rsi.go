package entry

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// RSIParams RSI超卖买入参数
type RSIParams struct {
	Common
	Period          int             `json:"rsi_period"`
	Oversold        decimal.Decimal `json:"oversold"`
	ExtremeOversold decimal.Decimal `json:"extreme_oversold"`
}

// DefaultRSIParams 默认参数，逆势策略不检查趋势
func DefaultRSIParams() RSIParams {
	c := DefaultCommon()
	c.TrendCheck = false
	return RSIParams{
		Common:          c,
		Period:          14,
		Oversold:        d(30),
		ExtremeOversold: d(20),
	}
}

// RSI RSI低于超卖线时买入
type RSI struct {
	p RSIParams
}

// NewRSI 以默认参数为基础覆盖 params
func NewRSI(params strategy.Params) (*RSI, error) {
	p := DefaultRSIParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &RSI{p: p}, nil
}

func (s *RSI) Params() RSIParams { return s.p }

func (s *RSI) EntryOptions() strategy.EntryOptions { return s.p.options() }

func (s *RSI) MinimumDataPoints() int {
	return maxInt(2*s.p.Period, 30)
}

func (s *RSI) Violations() []string {
	v := s.p.violations()
	if s.p.Period < 2 {
		v = append(v, fmt.Sprintf("rsi_period must be >= 2, got %d", s.p.Period))
	}
	if !s.p.ExtremeOversold.IsPositive() ||
		s.p.ExtremeOversold.GreaterThanOrEqual(s.p.Oversold) ||
		s.p.Oversold.GreaterThanOrEqual(strategy.Hundred) {
		v = append(v, fmt.Sprintf("thresholds must satisfy 0 < extreme_oversold < oversold < 100, got %s/%s",
			s.p.ExtremeOversold, s.p.Oversold))
	}
	return v
}

func (s *RSI) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	values, err := indicators.RSI(market.Closes(candles), s.p.Period)
	if err != nil {
		return nil, strategy.Calc("rsi", err)
	}
	cur, prev := latestPair(values)
	return strategy.Indicators{"rsi": cur, "rsi_previous": prev}, nil
}

func (s *RSI) CheckEntryCondition(candles []market.Candle, ind strategy.Indicators) (bool, decimal.Decimal) {
	rsi := ind["rsi"]
	prev := ind.Value("rsi_previous", rsi)

	if rsi.GreaterThanOrEqual(s.p.Oversold) {
		return false, strategy.Zero
	}

	// 越深入超卖区信心越高
	base := s.p.Oversold.Sub(rsi).Div(s.p.Oversold)
	if rsi.LessThan(s.p.ExtremeOversold) {
		base = base.Mul(d(1.2))
	}
	// 已开始回升
	if rsi.GreaterThan(prev) {
		base = base.Mul(d(1.1))
	}
	return true, strategy.Cap1(base)
}
