package strategy

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"

	"signalengine/src/market"
)

// 触发前置止盈止损时的信心度
var preCheckConfidence = D(0.95)

// ExitBuilder 根据参数构造卖出规则
type ExitBuilder func(params Params) (ExitRule, error)

// Exit 卖出策略实例
type Exit struct {
	*instance
	rule  ExitRule
	build ExitBuilder
}

// NewExit 创建卖出策略实例，初始状态为 INACTIVE
func NewExit(def Definition, build ExitBuilder) (*Exit, error) {
	if def.Type.Family() != FamilyExit {
		return nil, fmt.Errorf("%w: %s is not an exit type", ErrFamilyMismatch, def.Type)
	}
	rule, err := build(def.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", def.Type, err)
	}
	if err := checkEnsemble(def.Name, rule); err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", def.Type, err)
	}
	return &Exit{instance: newInstance(def, rule), rule: rule, build: build}, nil
}

// Rule 当前规则
func (x *Exit) Rule() ExitRule {
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.rule
}

// Stateful 规则是否读写执行状态
func (x *Exit) Stateful() bool {
	_, ok := x.Rule().(StatefulExit)
	return ok
}

// UpdateParameters 合并参数并重新校验，失败时实例保持不变
func (x *Exit) UpdateParameters(ctx context.Context, params Params) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Strategy")

	x.mu.Lock()
	defer x.mu.Unlock()

	merged := x.def.Parameters.Merge(params)
	rule, err := x.build(merged)
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", x.def.Type, err)
	}
	if err := NewValidationError(x.def.Name, rule.Violations()); err != nil {
		logger.Error("参数更新被拒绝", "strategy", x.def.Name, "error", err)
		return err
	}
	if err := checkEnsemble(x.def.Name, rule); err != nil {
		logger.Error("参数更新被拒绝", "strategy", x.def.Name, "error", err)
		return err
	}

	x.def.Parameters = merged
	x.rule = rule
	x.instance.rule = rule
	logger.Info("参数更新完成", "strategy", x.def.Name)
	return nil
}

// ResetExecutionState 清空分批档位与最高价；无状态规则原样返回
func (x *Exit) ResetExecutionState(state ExecutionState) ExecutionState {
	if !x.Stateful() {
		return state
	}
	return ExecutionState{UpdatedAt: state.UpdatedAt}
}

// EvaluateExit 评估卖出信号，返回新的执行状态，入参 state 不被修改
func (x *Exit) EvaluateExit(ctx context.Context, symbol string, pos Position, candles []market.Candle,
	state ExecutionState) (rec SignalRecord, next ExecutionState, err error) {

	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Strategy")

	defer func() {
		if r := recover(); r != nil {
			logger.Error("规则执行异常", "strategy", x.def.Name, "panic", r)
			rec, next, err = SignalRecord{}, state, recovered(x.def.Name, r)
		}
	}()

	x.mu.Lock()
	defer x.mu.Unlock()

	ind, err := x.prepare(ctx, candles)
	if err != nil {
		return SignalRecord{}, state, err
	}

	last := candles[len(candles)-1]
	next = state.Clone()
	if next.HighestPrice.IsZero() {
		logger.Info("执行状态未初始化，以开仓价作为最高价", "strategy", x.def.Name, "position", pos.ID)
		next.HighestPrice = pos.EntryPrice
	}
	next.Observe(last.Close)
	next.UpdatedAt = last.Timestamp

	pnl := ProfitLossPct(pos.EntryPrice, last.Close)
	ind.Set("profit_loss_pct", pnl)

	rec = x.newRecord(symbol, candles, ind)
	rec.Metadata["entry_price"] = pos.EntryPrice.InexactFloat64()
	rec.Metadata["profit_loss_pct"] = pnl.InexactFloat64()

	opts := x.rule.ExitOptions()
	if reason, ok := preCheck(opts, pnl); ok {
		rec.Signal = SignalSell
		rec.Confidence = preCheckConfidence
		rec.Metadata["reason"] = reason
		x.record(rec.Signal)
		logger.Debug("前置止盈止损触发", "strategy", x.def.Name, "symbol", symbol, "reason", reason)
		return rec, next, nil
	}

	in := &ExitInput{
		Position:     pos,
		Candles:      candles,
		Indicators:   ind,
		CurrentPrice: last.Close,
		ProfitPct:    pnl,
		Now:          last.Timestamp,
		Timeframe:    x.def.Timeframe,
		State:        &next,
	}
	dec := x.rule.CheckExitCondition(ctx, in)
	for k, v := range dec.Metadata {
		rec.Metadata[k] = v
	}

	_, ensemble := x.rule.(Ensemble)
	switch {
	case !dec.Met && ensemble:
		hold(&rec, dec.Confidence, dec.Reason)
	case !dec.Met:
		hold(&rec, Half, "exit condition not met")
		if dec.Reason != "" {
			rec.Metadata["detail"] = dec.Reason
		}
	case !ensemble && dec.Confidence.LessThan(opts.MinConfidence):
		hold(&rec, dec.Confidence, fmt.Sprintf("confidence below minimum (%s%%)", dec.Confidence.Mul(Hundred).StringFixed(2)))
		rec.Metadata["shortfall"] = opts.MinConfidence.Sub(dec.Confidence).InexactFloat64()
	default:
		rec.Signal = SignalSell
		rec.Confidence = Clamp01(dec.Confidence)
		rec.Metadata["reason"] = dec.Reason
		rec.Metadata["strategy"] = x.def.Name
		rec.Metadata["holding_period"] = pos.HoldingPeriod
	}

	x.record(rec.Signal)
	logger.Debug("生成信号", "strategy", x.def.Name, "symbol", symbol,
		"signal", rec.Signal, "confidence", rec.Confidence.StringFixed(4))
	return rec, next, nil
}

func preCheck(opts ExitOptions, pnl decimal.Decimal) (string, bool) {
	if opts.MinProfitPct.IsPositive() && pnl.GreaterThanOrEqual(opts.MinProfitPct) {
		return fmt.Sprintf("minimum profit reached (%s%%)", pnl.StringFixed(2)), true
	}
	if pnl.LessThanOrEqual(opts.MaxLossPct) {
		return fmt.Sprintf("stop loss (%s%%)", pnl.StringFixed(2)), true
	}
	return "", false
}
