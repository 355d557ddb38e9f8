package exit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/market"
	"signalengine/src/strategy"
)

// FixedTargetParams 固定止盈止损参数
type FixedTargetParams struct {
	Common
	TargetProfitPct decimal.Decimal `json:"target_profit_pct"`
	StopLossPct     decimal.Decimal `json:"stop_loss_pct"`
}

func DefaultFixedTargetParams() FixedTargetParams {
	c := DefaultCommon()
	c.MinConfidence = d(0.9)
	return FixedTargetParams{
		Common:          c,
		TargetProfitPct: d(10),
		StopLossPct:     d(-5),
	}
}

// FixedTarget 达到目标收益或止损线时卖出
type FixedTarget struct {
	p FixedTargetParams
}

func NewFixedTarget(params strategy.Params) (*FixedTarget, error) {
	p := DefaultFixedTargetParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &FixedTarget{p: p}, nil
}

func (s *FixedTarget) Params() FixedTargetParams { return s.p }

func (s *FixedTarget) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *FixedTarget) MinimumDataPoints() int { return 1 }

func (s *FixedTarget) Violations() []string {
	v := s.p.violations()
	if !s.p.TargetProfitPct.IsPositive() {
		v = append(v, fmt.Sprintf("target_profit_pct must be > 0, got %s", s.p.TargetProfitPct))
	}
	if !s.p.StopLossPct.IsNegative() {
		v = append(v, fmt.Sprintf("stop_loss_pct must be < 0, got %s", s.p.StopLossPct))
	}
	return v
}

func (s *FixedTarget) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	return strategy.Indicators{
		"current_price":     lastClose(candles),
		"target_profit_pct": s.p.TargetProfitPct,
		"stop_loss_pct":     s.p.StopLossPct,
	}, nil
}

func (s *FixedTarget) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	pnl := in.ProfitPct
	if pnl.GreaterThanOrEqual(s.p.TargetProfitPct) {
		return sell(d(0.95), "target reached (%s%% >= %s%%)", pct(pnl), pct(s.p.TargetProfitPct))
	}
	if pnl.LessThanOrEqual(s.p.StopLossPct) {
		return sell(d(0.98), "stop loss hit (%s%% <= %s%%)", pct(pnl), pct(s.p.StopLossPct))
	}
	return notMet("profit %s%% between stop %s%% and target %s%%", pct(pnl), pct(s.p.StopLossPct), pct(s.p.TargetProfitPct))
}

// TakeProfitPrice 止盈价
func (s *FixedTarget) TakeProfitPrice(entry decimal.Decimal) decimal.Decimal {
	return strategy.TakeProfitPrice(entry, s.p.TargetProfitPct)
}

// StopLossPrice 止损价
func (s *FixedTarget) StopLossPrice(entry decimal.Decimal) decimal.Decimal {
	return strategy.StopLossPrice(entry, s.p.StopLossPct)
}
