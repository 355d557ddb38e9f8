package exit

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/market"
	"signalengine/src/strategy"
)

// 卖出比例之和允许的误差
var ratioTolerance = d(0.05)

// Level 分批止盈的一档
type Level struct {
	ProfitPct decimal.Decimal `json:"profit_pct"`
	SellRatio decimal.Decimal `json:"sell_ratio"`
}

// LadderParams 分批止盈参数
type LadderParams struct {
	Common
	ProfitLevels []Level        `json:"profit_levels"`
	StopLossPct  decimal.Decimal `json:"stop_loss_pct"`
}

func DefaultLadderParams() LadderParams {
	c := DefaultCommon()
	c.MinConfidence = d(0.85)
	return LadderParams{
		Common: c,
		ProfitLevels: []Level{
			{ProfitPct: d(5), SellRatio: d(0.33)},
			{ProfitPct: d(10), SellRatio: d(0.33)},
			{ProfitPct: d(20), SellRatio: d(0.34)},
		},
		StopLossPct: d(-5),
	}
}

// Ladder 按收益档位分批卖出，每档在一个持仓内只触发一次
//
// 已触发的档位记录在 ExecutionState.TriggeredLevels。
type Ladder struct {
	p LadderParams
}

func NewLadder(params strategy.Params) (*Ladder, error) {
	p := DefaultLadderParams()
	if _, ok := params["profit_levels"]; ok {
		p.ProfitLevels = nil
	}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &Ladder{p: p}, nil
}

func (s *Ladder) Params() LadderParams { return s.p }

func (s *Ladder) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *Ladder) UsesExecutionState() {}

func (s *Ladder) MinimumDataPoints() int { return 1 }

func (s *Ladder) Violations() []string {
	v := s.p.violations()
	if len(s.p.ProfitLevels) == 0 {
		v = append(v, "profit_levels must not be empty")
	}

	prev := strategy.Zero
	total := strategy.Zero
	for i, lvl := range s.p.ProfitLevels {
		if !lvl.ProfitPct.GreaterThan(prev) {
			v = append(v, fmt.Sprintf("profit_levels[%d].profit_pct must be > %s, got %s", i, prev, lvl.ProfitPct))
		}
		if !lvl.SellRatio.IsPositive() || lvl.SellRatio.GreaterThan(strategy.One) {
			v = append(v, fmt.Sprintf("profit_levels[%d].sell_ratio must be within (0, 1], got %s", i, lvl.SellRatio))
		}
		prev = lvl.ProfitPct
		total = total.Add(lvl.SellRatio)
	}
	if len(s.p.ProfitLevels) > 0 && total.Sub(strategy.One).Abs().GreaterThan(ratioTolerance) {
		v = append(v, fmt.Sprintf("sell ratios must sum to 1, got %s", total))
	}
	if !s.p.StopLossPct.IsNegative() {
		v = append(v, fmt.Sprintf("stop_loss_pct must be < 0, got %s", s.p.StopLossPct))
	}
	return v
}

func (s *Ladder) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	return strategy.Indicators{
		"current_price": lastClose(candles),
		"stop_loss_pct": s.p.StopLossPct,
		"levels":        decimal.NewFromInt(int64(len(s.p.ProfitLevels))),
	}, nil
}

func (s *Ladder) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	pnl := in.ProfitPct
	if pnl.LessThanOrEqual(s.p.StopLossPct) {
		return sell(d(0.98), "stop loss hit (%s%%)", pct(pnl))
	}

	for i, lvl := range s.p.ProfitLevels {
		if in.State.Triggered(i) || pnl.LessThan(lvl.ProfitPct) {
			continue
		}
		in.State.Trigger(i)
		dec := sell(d(0.9), "profit level %d reached (%s%% >= %s%%, sell %s%%)",
			i+1, pct(pnl), pct(lvl.ProfitPct), lvl.SellRatio.Mul(strategy.Hundred).StringFixed(0))
		dec.Metadata["level"] = i
		dec.Metadata["sell_ratio"] = lvl.SellRatio.InexactFloat64()
		dec.Metadata["triggered_levels"] = append([]int(nil), in.State.TriggeredLevels...)
		return dec
	}
	return notMet("no untriggered profit level reached (%s%%)", pct(pnl))
}

// CurrentSellRatio 当前收益下将要触发的档位卖出比例，没有时为0
func (s *Ladder) CurrentSellRatio(state strategy.ExecutionState, pnl decimal.Decimal) decimal.Decimal {
	for i, lvl := range s.p.ProfitLevels {
		if !state.Triggered(i) && pnl.GreaterThanOrEqual(lvl.ProfitPct) {
			return lvl.SellRatio
		}
	}
	return strategy.Zero
}
