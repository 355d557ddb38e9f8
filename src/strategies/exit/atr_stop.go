package exit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// ATRStopParams ATR波动止损参数
type ATRStopParams struct {
	Common
	ATRPeriod       int             `json:"atr_period"`
	ATRMultiplier   decimal.Decimal `json:"atr_multiplier"`
	TargetProfitPct decimal.Decimal `json:"target_profit_pct"`
	MinStopLossPct  decimal.Decimal `json:"min_stop_loss_pct"` // 止损幅度下限，如 -3
	MaxStopLossPct  decimal.Decimal `json:"max_stop_loss_pct"` // 止损幅度上限，如 -10
}

func DefaultATRStopParams() ATRStopParams {
	c := DefaultCommon()
	c.MinConfidence = d(0.85)
	return ATRStopParams{
		Common:          c,
		ATRPeriod:       14,
		ATRMultiplier:   d(2),
		TargetProfitPct: d(15),
		MinStopLossPct:  d(-3),
		MaxStopLossPct:  d(-10),
	}
}

// ATRStop 止损线随 ATR 调整，限制在 [max_stop_loss_pct, min_stop_loss_pct] 内
type ATRStop struct {
	p ATRStopParams
}

func NewATRStop(params strategy.Params) (*ATRStop, error) {
	p := DefaultATRStopParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &ATRStop{p: p}, nil
}

func (s *ATRStop) Params() ATRStopParams { return s.p }

func (s *ATRStop) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *ATRStop) MinimumDataPoints() int {
	return s.p.ATRPeriod + 10
}

func (s *ATRStop) Violations() []string {
	v := s.p.violations()
	if s.p.ATRPeriod <= 0 {
		v = append(v, fmt.Sprintf("atr_period must be > 0, got %d", s.p.ATRPeriod))
	}
	if !s.p.ATRMultiplier.IsPositive() {
		v = append(v, fmt.Sprintf("atr_multiplier must be > 0, got %s", s.p.ATRMultiplier))
	}
	if !s.p.TargetProfitPct.IsPositive() {
		v = append(v, fmt.Sprintf("target_profit_pct must be > 0, got %s", s.p.TargetProfitPct))
	}
	if !s.p.MinStopLossPct.IsNegative() || !s.p.MaxStopLossPct.IsNegative() {
		v = append(v, fmt.Sprintf("stop loss bounds must be < 0, got %s/%s", s.p.MinStopLossPct, s.p.MaxStopLossPct))
	}
	if s.p.MinStopLossPct.LessThan(s.p.MaxStopLossPct) {
		v = append(v, fmt.Sprintf("min_stop_loss_pct must be >= max_stop_loss_pct, got %s/%s", s.p.MinStopLossPct, s.p.MaxStopLossPct))
	}
	return v
}

func (s *ATRStop) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	atr, err := indicators.ATR(market.Highs(candles), market.Lows(candles), market.Closes(candles), s.p.ATRPeriod)
	if err != nil {
		return nil, strategy.Calc("atr", err)
	}
	return strategy.Indicators{
		"atr":            atr,
		"current_price":  lastClose(candles),
		"atr_multiplier": s.p.ATRMultiplier,
	}, nil
}

func (s *ATRStop) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	pnl := in.ProfitPct
	if pnl.GreaterThanOrEqual(s.p.TargetProfitPct) {
		return sell(d(0.95), "target reached (%s%%)", pct(pnl))
	}

	atr := in.Indicators["atr"]
	stopPct := s.StopLossPct(in.Position.EntryPrice, atr)
	if pnl.LessThanOrEqual(stopPct) {
		dec := sell(d(0.9), "atr stop (%s%% <= %s%%, atr %s)", pct(pnl), pct(stopPct), atr.StringFixed(2))
		dec.Metadata["stop_price"] = s.StopPrice(in.Position.EntryPrice, atr).InexactFloat64()
		return dec
	}
	return notMet("profit %s%% above atr stop %s%%", pct(pnl), pct(stopPct))
}

// StopLossPct ATR止损百分比，已限制在止损区间内
func (s *ATRStop) StopLossPct(entry, atr decimal.Decimal) decimal.Decimal {
	if !entry.IsPositive() {
		return s.p.MinStopLossPct
	}
	raw := atr.Mul(s.p.ATRMultiplier).Div(entry).Mul(strategy.Hundred).Neg()
	return decimal.Max(s.p.MaxStopLossPct, decimal.Min(s.p.MinStopLossPct, raw))
}

// StopPrice ATR止损价
func (s *ATRStop) StopPrice(entry, atr decimal.Decimal) decimal.Decimal {
	return strategy.StopLossPrice(entry, s.StopLossPct(entry, atr))
}
