package exit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/market"
	"signalengine/src/strategy"
)

// recent_high 只看最近的K线数
const recentHighWindow = 20

// TrailingStopParams 移动止损参数
type TrailingStopParams struct {
	Common
	TrailingPct      decimal.Decimal `json:"trailing_pct"`
	ActivationProfit decimal.Decimal `json:"activation_profit"`
	StopLossPct      decimal.Decimal `json:"stop_loss_pct"`
}

func DefaultTrailingStopParams() TrailingStopParams {
	c := DefaultCommon()
	c.MinConfidence = d(0.9)
	return TrailingStopParams{
		Common:           c,
		TrailingPct:      d(3),
		ActivationProfit: d(2),
		StopLossPct:      d(-5),
	}
}

// TrailingStop 收益达到激活线后，价格从持仓最高价回落 trailing_pct 时卖出
//
// 最高价保存在 ExecutionState.HighestPrice，开仓时为开仓价，只增不减。
type TrailingStop struct {
	p TrailingStopParams
}

func NewTrailingStop(params strategy.Params) (*TrailingStop, error) {
	p := DefaultTrailingStopParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &TrailingStop{p: p}, nil
}

func (s *TrailingStop) Params() TrailingStopParams { return s.p }

func (s *TrailingStop) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *TrailingStop) UsesExecutionState() {}

func (s *TrailingStop) MinimumDataPoints() int { return 1 }

func (s *TrailingStop) Violations() []string {
	v := s.p.violations()
	if !s.p.TrailingPct.IsPositive() || s.p.TrailingPct.GreaterThan(d(50)) {
		v = append(v, fmt.Sprintf("trailing_pct must be within (0, 50], got %s", s.p.TrailingPct))
	}
	if s.p.ActivationProfit.IsNegative() {
		v = append(v, fmt.Sprintf("activation_profit must be >= 0, got %s", s.p.ActivationProfit))
	}
	if !s.p.StopLossPct.IsNegative() {
		v = append(v, fmt.Sprintf("stop_loss_pct must be < 0, got %s", s.p.StopLossPct))
	}
	return v
}

func (s *TrailingStop) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	highs := market.Highs(candles)
	if len(highs) > recentHighWindow {
		highs = highs[len(highs)-recentHighWindow:]
	}
	recent := highs[0]
	for _, h := range highs[1:] {
		if h.GreaterThan(recent) {
			recent = h
		}
	}
	return strategy.Indicators{
		"current_price":     lastClose(candles),
		"recent_high":       recent,
		"trailing_pct":      s.p.TrailingPct,
		"activation_profit": s.p.ActivationProfit,
	}, nil
}

func (s *TrailingStop) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	pnl := in.ProfitPct
	if pnl.LessThanOrEqual(s.p.StopLossPct) {
		return sell(d(0.98), "initial stop loss (%s%%)", pct(pnl))
	}
	if pnl.LessThan(s.p.ActivationProfit) {
		return notMet("trailing not active (%s%% < %s%%)", pct(pnl), pct(s.p.ActivationProfit))
	}

	high := in.State.HighestPrice
	if !high.IsPositive() {
		return notMet("no highest price recorded")
	}
	drawdown := in.CurrentPrice.Sub(high).Div(high).Mul(strategy.Hundred)
	if drawdown.LessThanOrEqual(s.p.TrailingPct.Neg()) {
		dec := sell(d(0.95), "trailing stop (%s%% <= -%s%%)", pct(drawdown), pct(s.p.TrailingPct))
		dec.Metadata["highest_price"] = high.InexactFloat64()
		dec.Metadata["stop_price"] = s.StopPrice(*in.State).InexactFloat64()
		return dec
	}
	return notMet("drawdown %s%% above -%s%%", pct(drawdown), pct(s.p.TrailingPct))
}

// StopPrice 当前移动止损价，未记录最高价时为0
func (s *TrailingStop) StopPrice(state strategy.ExecutionState) decimal.Decimal {
	if !state.HighestPrice.IsPositive() {
		return strategy.Zero
	}
	return state.HighestPrice.Mul(strategy.One.Sub(s.p.TrailingPct.Div(strategy.Hundred)))
}
