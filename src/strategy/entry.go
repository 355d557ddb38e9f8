package strategy

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"

	"signalengine/src/market"
)

// EntryBuilder 根据参数构造买入规则
type EntryBuilder func(params Params) (EntryRule, error)

// Entry 买入策略实例
type Entry struct {
	*instance
	rule  EntryRule
	build EntryBuilder
}

// NewEntry 创建买入策略实例，初始状态为 INACTIVE
func NewEntry(def Definition, build EntryBuilder) (*Entry, error) {
	if def.Type.Family() != FamilyEntry {
		return nil, fmt.Errorf("%w: %s is not an entry type", ErrFamilyMismatch, def.Type)
	}
	rule, err := build(def.Parameters)
	if err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", def.Type, err)
	}
	if err := checkEnsemble(def.Name, rule); err != nil {
		return nil, fmt.Errorf("failed to build %s: %w", def.Type, err)
	}
	return &Entry{instance: newInstance(def, rule), rule: rule, build: build}, nil
}

// Rule 当前规则
func (e *Entry) Rule() EntryRule {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.rule
}

// UpdateParameters 合并参数并重新校验，失败时实例保持不变
func (e *Entry) UpdateParameters(ctx context.Context, params Params) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Strategy")

	e.mu.Lock()
	defer e.mu.Unlock()

	merged := e.def.Parameters.Merge(params)
	rule, err := e.build(merged)
	if err != nil {
		return fmt.Errorf("failed to build %s: %w", e.def.Type, err)
	}
	if err := NewValidationError(e.def.Name, rule.Violations()); err != nil {
		logger.Error("参数更新被拒绝", "strategy", e.def.Name, "error", err)
		return err
	}
	if err := checkEnsemble(e.def.Name, rule); err != nil {
		logger.Error("参数更新被拒绝", "strategy", e.def.Name, "error", err)
		return err
	}

	e.def.Parameters = merged
	e.rule = rule
	e.instance.rule = rule
	logger.Info("参数更新完成", "strategy", e.def.Name)
	return nil
}

// Analyze 评估买入信号
func (e *Entry) Analyze(ctx context.Context, symbol string, candles []market.Candle) (rec SignalRecord, err error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Strategy")

	defer func() {
		if r := recover(); r != nil {
			logger.Error("规则执行异常", "strategy", e.def.Name, "panic", r)
			rec, err = SignalRecord{}, recovered(e.def.Name, r)
		}
	}()

	e.mu.Lock()
	defer e.mu.Unlock()

	ind, err := e.prepare(ctx, candles)
	if err != nil {
		return SignalRecord{}, err
	}

	rec = e.newRecord(symbol, candles, ind)
	if _, ok := e.rule.(Ensemble); ok {
		e.decideEnsemble(&rec, candles, ind)
	} else {
		e.decide(&rec, candles, ind)
	}

	e.record(rec.Signal)
	logger.Debug("生成信号", "strategy", e.def.Name, "symbol", symbol,
		"signal", rec.Signal, "confidence", rec.Confidence.StringFixed(4))
	return rec, nil
}

func (e *Entry) decide(rec *SignalRecord, candles []market.Candle, ind Indicators) {
	met, base := e.rule.CheckEntryCondition(candles, ind)
	if !met {
		hold(rec, Half, "entry condition not met")
		return
	}

	opts := e.rule.EntryOptions()
	if opts.VolumeCheck && !VolumeOK(candles, opts.VolumeThreshold) {
		hold(rec, Half, "insufficient volume")
		return
	}

	trendOK := !opts.TrendCheck || AboveTrend(candles)
	trend := One
	if !trendOK {
		base = base.Mul(D(0.8))
		trend = D(0.7)
	}

	final := CalculateConfidence(base, trend, VolumeStrength(candles))
	if final.LessThan(opts.MinConfidence) {
		hold(rec, final, fmt.Sprintf("confidence below minimum (%s%%)", final.Mul(Hundred).StringFixed(2)))
		rec.Metadata["shortfall"] = opts.MinConfidence.Sub(final).InexactFloat64()
		return
	}

	rec.Signal = SignalBuy
	rec.Confidence = final
	rec.Metadata["strategy"] = e.def.Name
	rec.Metadata["timeframe"] = string(e.def.Timeframe)
	rec.Metadata["volume_ok"] = true
	rec.Metadata["trend_ok"] = trendOK
}

// decideEnsemble 组合策略的得分即信心度，达到阈值即买入
func (e *Entry) decideEnsemble(rec *SignalRecord, candles []market.Candle, ind Indicators) {
	met, score := e.rule.CheckEntryCondition(candles, ind)
	score = Clamp01(score)
	if !met {
		hold(rec, score, "ensemble score below threshold")
		return
	}
	rec.Signal = SignalBuy
	rec.Confidence = score
	rec.Metadata["strategy"] = e.def.Name
	rec.Metadata["timeframe"] = string(e.def.Timeframe)
	rec.Metadata["score"] = score.InexactFloat64()
}

func hold(rec *SignalRecord, confidence decimal.Decimal, reason string) {
	rec.Signal = SignalHold
	rec.Confidence = Clamp01(confidence)
	rec.Metadata["reason"] = reason
}
