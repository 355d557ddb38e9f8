package exit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// MultiConditionParams 多条件(任一满足)卖出参数
type MultiConditionParams struct {
	Common

	UseProfitTarget bool            `json:"use_profit_target"`
	TargetProfitPct decimal.Decimal `json:"target_profit_pct"`
	UseStopLoss     bool            `json:"use_stop_loss"`
	StopLossPct     decimal.Decimal `json:"stop_loss_pct"`

	UseRSI        bool            `json:"use_rsi"`
	RSIPeriod     int             `json:"rsi_period"`
	RSIOverbought decimal.Decimal `json:"rsi_overbought"`

	UseTimeBased      bool `json:"use_time_based"`
	MaxHoldingPeriods int  `json:"max_holding_periods"`

	UseMACross    bool `json:"use_ma_cross"`
	MAShortPeriod int  `json:"ma_short_period"`
	MALongPeriod  int  `json:"ma_long_period"`
}

func DefaultMultiConditionParams() MultiConditionParams {
	c := DefaultCommon()
	c.MinConfidence = d(0.75)
	return MultiConditionParams{
		Common:            c,
		UseProfitTarget:   true,
		TargetProfitPct:   d(10),
		UseStopLoss:       true,
		StopLossPct:       d(-5),
		UseRSI:            true,
		RSIPeriod:         14,
		RSIOverbought:     d(75),
		UseTimeBased:      true,
		MaxHoldingPeriods: 48,
		UseMACross:        true,
		MAShortPeriod:     20,
		MALongPeriod:      60,
	}
}

// MultiCondition 依次检查止盈、止损、RSI超买、持仓超时、均线死叉，任一满足即卖出
type MultiCondition struct {
	p MultiConditionParams
}

func NewMultiCondition(params strategy.Params) (*MultiCondition, error) {
	p := DefaultMultiConditionParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &MultiCondition{p: p}, nil
}

func (s *MultiCondition) Params() MultiConditionParams { return s.p }

func (s *MultiCondition) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *MultiCondition) MinimumDataPoints() int {
	n := 1
	if s.p.UseRSI {
		n = maxInt(n, s.p.RSIPeriod+10)
	}
	if s.p.UseMACross {
		n = maxInt(n, s.p.MALongPeriod+10)
	}
	return n
}

func (s *MultiCondition) Violations() []string {
	v := s.p.violations()
	if !s.p.UseProfitTarget && !s.p.UseStopLoss && !s.p.UseRSI && !s.p.UseTimeBased && !s.p.UseMACross {
		v = append(v, "at least one condition must be enabled")
	}
	if s.p.UseProfitTarget && !s.p.TargetProfitPct.IsPositive() {
		v = append(v, fmt.Sprintf("target_profit_pct must be > 0, got %s", s.p.TargetProfitPct))
	}
	if s.p.UseStopLoss && !s.p.StopLossPct.IsNegative() {
		v = append(v, fmt.Sprintf("stop_loss_pct must be < 0, got %s", s.p.StopLossPct))
	}
	if s.p.UseRSI {
		if s.p.RSIPeriod <= 0 {
			v = append(v, fmt.Sprintf("rsi_period must be > 0, got %d", s.p.RSIPeriod))
		}
		if s.p.RSIOverbought.LessThanOrEqual(d(50)) || s.p.RSIOverbought.GreaterThan(strategy.Hundred) {
			v = append(v, fmt.Sprintf("rsi_overbought must be within (50, 100], got %s", s.p.RSIOverbought))
		}
	}
	if s.p.UseTimeBased && s.p.MaxHoldingPeriods <= 0 {
		v = append(v, fmt.Sprintf("max_holding_periods must be > 0, got %d", s.p.MaxHoldingPeriods))
	}
	if s.p.UseMACross {
		if s.p.MAShortPeriod <= 0 || s.p.MALongPeriod <= 0 {
			v = append(v, fmt.Sprintf("ma periods must be > 0, got %d/%d", s.p.MAShortPeriod, s.p.MALongPeriod))
		}
		if s.p.MAShortPeriod >= s.p.MALongPeriod {
			v = append(v, fmt.Sprintf("ma_short_period must be < ma_long_period, got %d/%d", s.p.MAShortPeriod, s.p.MALongPeriod))
		}
	}
	return v
}

func (s *MultiCondition) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	closes := market.Closes(candles)
	ind := strategy.Indicators{"current_price": closes[len(closes)-1]}

	if s.p.UseRSI && len(closes) >= s.p.RSIPeriod {
		rsi, err := indicators.RSI(closes, s.p.RSIPeriod)
		if err != nil {
			return nil, strategy.Calc("rsi", err)
		}
		ind["rsi"] = rsi[len(rsi)-1]
	}

	if s.p.UseMACross && len(closes) >= s.p.MALongPeriod {
		short, err := indicators.EMA(closes, s.p.MAShortPeriod)
		if err != nil {
			return nil, strategy.Calc("ma_short", err)
		}
		long, err := indicators.EMA(closes, s.p.MALongPeriod)
		if err != nil {
			return nil, strategy.Calc("ma_long", err)
		}
		ind["ma_short"], ind["prev_ma_short"] = latestPair(short)
		ind["ma_long"], ind["prev_ma_long"] = latestPair(long)
	}
	return ind, nil
}

func (s *MultiCondition) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	pnl := in.ProfitPct
	ind := in.Indicators

	if s.p.UseProfitTarget && pnl.GreaterThanOrEqual(s.p.TargetProfitPct) {
		return s.fired("profit_target", d(0.95), "target reached (%s%%)", pct(pnl))
	}
	if s.p.UseStopLoss && pnl.LessThanOrEqual(s.p.StopLossPct) {
		return s.fired("stop_loss", d(0.98), "stop loss hit (%s%%)", pct(pnl))
	}
	if rsi, ok := ind["rsi"]; s.p.UseRSI && ok && rsi.GreaterThanOrEqual(s.p.RSIOverbought) {
		return s.fired("rsi", d(0.8), "rsi overbought (%s >= %s)", pct(rsi), pct(s.p.RSIOverbought))
	}
	if holding := in.Position.HoldingPeriod; s.p.UseTimeBased && holding >= s.p.MaxHoldingPeriods {
		conf := d(0.85)
		if pnl.IsPositive() {
			conf = d(0.7)
		}
		return s.fired("time_based", conf, "holding period exceeded (%d >= %d, profit %s%%)", holding, s.p.MaxHoldingPeriods, pct(pnl))
	}
	if short, ok := ind["ma_short"]; s.p.UseMACross && ok {
		long := ind["ma_long"]
		if ind["prev_ma_short"].GreaterThanOrEqual(ind["prev_ma_long"]) && short.LessThan(long) {
			return s.fired("ma_cross", d(0.85), "ma dead cross")
		}
	}
	return notMet("no condition met")
}

func (s *MultiCondition) fired(condition string, conf decimal.Decimal, reason string, args ...any) strategy.ExitDecision {
	dec := sell(conf, reason, args...)
	dec.Metadata["condition"] = condition
	return dec
}
