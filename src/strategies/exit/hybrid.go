package exit

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// 组合卖出策略的组件名
const (
	ComponentFixedTarget  = "fixed_target"
	ComponentTrailingStop = "trailing_stop"
	ComponentRSI          = "rsi"
	ComponentTimeBased    = "time_based"
)

// HybridParams 组合卖出参数
type HybridParams struct {
	Common
	StrategyWeights map[string]decimal.Decimal `json:"strategy_weights"`

	TargetProfitPct  decimal.Decimal `json:"target_profit_pct"`
	StopLossPct      decimal.Decimal `json:"stop_loss_pct"`
	TrailingPct      decimal.Decimal `json:"trailing_pct"`
	ActivationProfit decimal.Decimal `json:"activation_profit"`

	RSIPeriod     int             `json:"rsi_period"`
	RSIOverbought decimal.Decimal `json:"rsi_overbought"`

	MaxHoldingPeriods int `json:"max_holding_periods"`

	SellThreshold decimal.Decimal `json:"sell_threshold"`
}

func DefaultHybridParams() HybridParams {
	c := DefaultCommon()
	c.MinConfidence = d(0.75)
	return HybridParams{
		Common: c,
		StrategyWeights: map[string]decimal.Decimal{
			ComponentFixedTarget:  d(0.40),
			ComponentTrailingStop: d(0.35),
			ComponentRSI:          d(0.15),
			ComponentTimeBased:    d(0.10),
		},
		TargetProfitPct:   d(15),
		StopLossPct:       d(-5),
		TrailingPct:       d(3),
		ActivationProfit:  d(3),
		RSIPeriod:         14,
		RSIOverbought:     d(75),
		MaxHoldingPeriods: 72,
		SellThreshold:     d(0.75),
	}
}

// Hybrid 固定止盈、移动止损、RSI、持仓时间加权打分，得分达到阈值即卖出
//
// 移动止损组件读取 ExecutionState.HighestPrice。
type Hybrid struct {
	p        HybridParams
	fixed    *FixedTarget
	trailing *TrailingStop
}

func NewHybrid(params strategy.Params) (*Hybrid, error) {
	p := DefaultHybridParams()
	if _, ok := params["strategy_weights"]; ok {
		p.StrategyWeights = nil
	}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	if err := strategy.NewValidationError(string(strategy.TypeHybridExit), strategy.WeightViolations(p.StrategyWeights)); err != nil {
		return nil, err
	}

	fixed := DefaultFixedTargetParams()
	fixed.TargetProfitPct, fixed.StopLossPct = p.TargetProfitPct, p.StopLossPct
	fixed.MinConfidence = strategy.Half

	trailing := DefaultTrailingStopParams()
	trailing.TrailingPct, trailing.ActivationProfit, trailing.StopLossPct = p.TrailingPct, p.ActivationProfit, p.StopLossPct
	trailing.MinConfidence = strategy.Half

	return &Hybrid{
		p:        p,
		fixed:    &FixedTarget{p: fixed},
		trailing: &TrailingStop{p: trailing},
	}, nil
}

func (s *Hybrid) Params() HybridParams { return s.p }

func (s *Hybrid) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *Hybrid) UsesExecutionState() {}

func (s *Hybrid) Threshold() decimal.Decimal { return s.p.SellThreshold }

func (s *Hybrid) Weights() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.p.StrategyWeights))
	for k, v := range s.p.StrategyWeights {
		out[k] = v
	}
	return out
}

func (s *Hybrid) MinimumDataPoints() int { return 30 }

func (s *Hybrid) Violations() []string {
	v := s.p.violations()
	v = append(v, strategy.WeightViolations(s.p.StrategyWeights)...)
	if !s.p.SellThreshold.IsPositive() || s.p.SellThreshold.GreaterThan(strategy.One) {
		v = append(v, fmt.Sprintf("sell_threshold must be within (0, 1], got %s", s.p.SellThreshold))
	}
	if s.weighted(ComponentFixedTarget) {
		for _, sub := range s.fixed.Violations() {
			v = append(v, ComponentFixedTarget+": "+sub)
		}
	}
	if s.weighted(ComponentTrailingStop) {
		for _, sub := range s.trailing.Violations() {
			v = append(v, ComponentTrailingStop+": "+sub)
		}
	}
	if s.weighted(ComponentRSI) {
		if s.p.RSIPeriod < 2 {
			v = append(v, fmt.Sprintf("rsi_period must be >= 2, got %d", s.p.RSIPeriod))
		}
		if !s.p.RSIOverbought.IsPositive() || s.p.RSIOverbought.GreaterThanOrEqual(strategy.Hundred) {
			v = append(v, fmt.Sprintf("rsi_overbought must be within (0, 100), got %s", s.p.RSIOverbought))
		}
	}
	if s.weighted(ComponentTimeBased) && s.p.MaxHoldingPeriods <= 0 {
		v = append(v, fmt.Sprintf("max_holding_periods must be > 0, got %d", s.p.MaxHoldingPeriods))
	}
	return v
}

func (s *Hybrid) weighted(component string) bool {
	_, ok := s.p.StrategyWeights[component]
	return ok
}

// CalculateIndicators 子策略失败时记录日志，该组件按空指标处理
func (s *Hybrid) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("HybridExit")

	ind := strategy.Indicators{}
	subs := []struct {
		name string
		rule strategy.Strategy
	}{
		{ComponentFixedTarget, s.fixed},
		{ComponentTrailingStop, s.trailing},
	}
	for _, sub := range subs {
		if !s.weighted(sub.name) {
			continue
		}
		values, err := sub.rule.CalculateIndicators(ctx, candles)
		if err != nil {
			logger.Error("子策略指标计算失败", "component", sub.name, "error", err)
			values = nil
		}
		ind.SetFlag(sub.name+"_ok", err == nil)
		ind.Merge(sub.name, values)
	}

	if s.weighted(ComponentRSI) {
		rsi, err := indicators.RSI(market.Closes(candles), s.p.RSIPeriod)
		if err != nil {
			return nil, strategy.Calc("rsi", err)
		}
		ind["rsi_value"] = rsi[len(rsi)-1]
	}
	return ind, nil
}

// Scores 各组件得分
func (s *Hybrid) Scores(in *strategy.ExitInput) map[string]decimal.Decimal {
	scores := map[string]decimal.Decimal{}
	if s.weighted(ComponentFixedTarget) {
		scores[ComponentFixedTarget] = s.fixedScore(in.ProfitPct)
	}
	if s.weighted(ComponentTrailingStop) {
		scores[ComponentTrailingStop] = s.trailingScore(in)
	}
	if rsi, ok := in.Indicators["rsi_value"]; ok && s.weighted(ComponentRSI) {
		scores[ComponentRSI] = s.rsiScore(rsi)
	}
	if s.weighted(ComponentTimeBased) {
		scores[ComponentTimeBased] = s.timeScore(in.Position.HoldingPeriod, in.ProfitPct)
	}
	return scores
}

func (s *Hybrid) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	scores := s.Scores(in)
	final := strategy.Clamp01(strategy.Aggregate(scores, s.p.StrategyWeights))

	names := make([]string, 0, len(scores))
	for name := range scores {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	meta := make(map[string]any, len(names)+1)
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s=%s", name, scores[name].StringFixed(2)))
		meta["score_"+name] = scores[name].InexactFloat64()
	}
	meta["hybrid_score"] = final.InexactFloat64()

	reason := fmt.Sprintf("hybrid score %s (%s)", final.StringFixed(2), strings.Join(parts, ", "))
	if !strategy.Decide(final, s.p.SellThreshold) {
		reason = fmt.Sprintf("hybrid score %s below threshold %s (%s)",
			final.StringFixed(2), s.p.SellThreshold.StringFixed(2), strings.Join(parts, ", "))
		return strategy.ExitDecision{Confidence: final, Reason: reason, Metadata: meta}
	}
	return strategy.ExitDecision{Met: true, Confidence: final, Reason: reason, Metadata: meta}
}

func (s *Hybrid) fixedScore(pnl decimal.Decimal) decimal.Decimal {
	target, stop := s.p.TargetProfitPct, s.p.StopLossPct
	switch {
	case pnl.GreaterThanOrEqual(target), pnl.LessThanOrEqual(stop):
		return strategy.One
	case pnl.IsPositive():
		return strategy.Half.Add(pnl.Div(target).Mul(d(0.3)))
	default:
		return strategy.Half.Add(pnl.Div(stop).Mul(d(0.3)))
	}
}

func (s *Hybrid) trailingScore(in *strategy.ExitInput) decimal.Decimal {
	if in.ProfitPct.LessThan(s.p.ActivationProfit) {
		return d(0.3)
	}
	high := in.State.HighestPrice
	if !high.IsPositive() {
		return strategy.Half
	}
	drawdown := in.CurrentPrice.Sub(high).Div(high).Mul(strategy.Hundred)
	if drawdown.LessThanOrEqual(s.p.TrailingPct.Neg()) {
		return strategy.One
	}
	return d(0.4)
}

func (s *Hybrid) rsiScore(rsi decimal.Decimal) decimal.Decimal {
	ob := s.p.RSIOverbought
	if rsi.GreaterThanOrEqual(ob) && ob.LessThan(strategy.Hundred) {
		return strategy.Cap1(d(0.7).Add(rsi.Sub(ob).Div(strategy.Hundred.Sub(ob)).Mul(d(0.3))))
	}
	return d(0.3)
}

func (s *Hybrid) timeScore(holding int, pnl decimal.Decimal) decimal.Decimal {
	if s.p.MaxHoldingPeriods <= 0 {
		return strategy.Half
	}
	if holding >= s.p.MaxHoldingPeriods {
		if pnl.IsPositive() {
			return d(0.9)
		}
		return d(0.7)
	}
	ratio := decimal.NewFromInt(int64(holding)).Div(decimal.NewFromInt(int64(s.p.MaxHoldingPeriods)))
	return d(0.3).Add(ratio.Mul(d(0.4)))
}
