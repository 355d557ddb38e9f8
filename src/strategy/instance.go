package strategy

import (
	"context"
	"errors"
	"sync"

	"github.com/xpwu/go-log/log"

	"signalengine/src/market"
	"signalengine/src/timeframes"
)

// Statistics 信号统计
type Statistics struct {
	Name      string  `json:"name"`
	Status    Status  `json:"status"`
	Total     int     `json:"total_signals"`
	Buy       int     `json:"buy_signals"`
	Sell      int     `json:"sell_signals"`
	Hold      int     `json:"hold_signals"`
	BuyRatio  float64 `json:"buy_ratio"`  // 百分比
	SellRatio float64 `json:"sell_ratio"` // 百分比
}

// instance 买入/卖出实例共用的生命周期与统计
type instance struct {
	mu   sync.Mutex
	def  Definition
	rule Strategy

	total, buy, sell, hold int
}

func newInstance(def Definition, rule Strategy) *instance {
	if def.Status == "" {
		def.Status = StatusInactive
	}
	if def.Timeframe == "" {
		def.Timeframe = timeframes.Default
	}
	def.Parameters = def.Parameters.Clone()
	return &instance{def: def, rule: rule}
}

// ID 实例ID
func (i *instance) ID() int64 {
	return i.def.ID
}

// Name 实例名称
func (i *instance) Name() string {
	return i.def.Name
}

// Definition 当前定义的拷贝
func (i *instance) Definition() Definition {
	i.mu.Lock()
	defer i.mu.Unlock()
	def := i.def
	def.Parameters = def.Parameters.Clone()
	return def
}

// Status 当前状态
func (i *instance) Status() Status {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.def.Status
}

// IsActive 是否处于 ACTIVE
func (i *instance) IsActive() bool {
	return i.Status() == StatusActive
}

// MinimumDataPoints 所需最少K线数
func (i *instance) MinimumDataPoints() int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.rule.MinimumDataPoints()
}

// Validate 校验参数，返回包含全部违规项的 ValidationError
func (i *instance) Validate() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.validateLocked()
}

func (i *instance) validateLocked() error {
	var violations []string
	if !i.def.Timeframe.IsValid() {
		violations = append(violations, "unsupported timeframe: "+string(i.def.Timeframe))
	}
	violations = append(violations, i.rule.Violations()...)
	return NewValidationError(i.def.Name, violations)
}

// Activate 校验通过后进入 ACTIVE
func (i *instance) Activate(ctx context.Context) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Strategy")

	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.validateLocked(); err != nil {
		logger.Error("策略激活失败", "strategy", i.def.Name, "error", err)
		return err
	}
	i.def.Status = StatusActive
	logger.Info("策略已激活", "strategy", i.def.Name)
	return nil
}

// Pause 仅 ACTIVE 可暂停
func (i *instance) Pause(ctx context.Context) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Strategy")

	i.mu.Lock()
	defer i.mu.Unlock()
	if i.def.Status != StatusActive {
		return ErrInvalidTransition
	}
	i.def.Status = StatusPaused
	logger.Info("策略已暂停", "strategy", i.def.Name)
	return nil
}

// Deactivate 任意状态均可停用
func (i *instance) Deactivate(ctx context.Context) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Strategy")

	i.mu.Lock()
	defer i.mu.Unlock()
	i.def.Status = StatusInactive
	logger.Info("策略已停用", "strategy", i.def.Name)
}

// Statistics 信号统计
func (i *instance) Statistics() Statistics {
	i.mu.Lock()
	defer i.mu.Unlock()

	s := Statistics{
		Name:   i.def.Name,
		Status: i.def.Status,
		Total:  i.total,
		Buy:    i.buy,
		Sell:   i.sell,
		Hold:   i.hold,
	}
	if i.total > 0 {
		s.BuyRatio = float64(i.buy) / float64(i.total) * 100
		s.SellRatio = float64(i.sell) / float64(i.total) * 100
	}
	return s
}

// ResetStatistics 清零统计
func (i *instance) ResetStatistics() {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.total, i.buy, i.sell, i.hold = 0, 0, 0, 0
}

func (i *instance) record(signal Signal) {
	i.total++
	switch signal {
	case SignalBuy:
		i.buy++
	case SignalSell:
		i.sell++
	default:
		i.hold++
	}
}

// prepare 检查数据量并计算指标
func (i *instance) prepare(ctx context.Context, candles []market.Candle) (Indicators, error) {
	required := i.rule.MinimumDataPoints()
	if len(candles) < required {
		return nil, &InsufficientDataError{Strategy: i.def.Name, Required: required, Provided: len(candles)}
	}

	ind, err := i.rule.CalculateIndicators(ctx, candles)
	if err != nil {
		var calc *CalculationError
		if errors.As(err, &calc) {
			if calc.Strategy == "" {
				calc.Strategy = i.def.Name
			}
			return nil, calc
		}
		return nil, &ExecutionError{Strategy: i.def.Name, Err: err}
	}
	if ind == nil {
		ind = Indicators{}
	}
	return ind, nil
}

func (i *instance) newRecord(symbol string, candles []market.Candle, ind Indicators) SignalRecord {
	last := candles[len(candles)-1]
	return SignalRecord{
		StrategyID: i.def.ID,
		Strategy:   i.def.Name,
		Symbol:     symbol,
		Price:      last.Close,
		Timestamp:  last.Timestamp,
		Indicators: ind,
		Metadata:   map[string]any{},
	}
}
