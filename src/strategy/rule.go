package strategy

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"signalengine/src/market"
	"signalengine/src/timeframes"
)

// Strategy 所有策略规则的公共能力
type Strategy interface {
	// MinimumDataPoints 评估所需的最少K线数
	MinimumDataPoints() int

	// Violations 参数违规项，为空表示参数合法
	Violations() []string

	// CalculateIndicators 计算指标快照，不得修改 candles
	CalculateIndicators(ctx context.Context, candles []market.Candle) (Indicators, error)
}

// EntryOptions 买入包装流程使用的公共参数
type EntryOptions struct {
	MinConfidence   decimal.Decimal
	VolumeCheck     bool
	TrendCheck      bool
	VolumeThreshold decimal.Decimal
}

// EntryRule 买入规则
type EntryRule interface {
	Strategy

	// CheckEntryCondition 返回是否满足条件及基础信心度
	CheckEntryCondition(candles []market.Candle, ind Indicators) (bool, decimal.Decimal)

	EntryOptions() EntryOptions
}

// ExitOptions 卖出包装流程使用的公共参数
type ExitOptions struct {
	MinConfidence decimal.Decimal
	MinProfitPct  decimal.Decimal // 大于0时启用
	MaxLossPct    decimal.Decimal
}

// ExitInput 卖出规则的输入
type ExitInput struct {
	Position     Position
	Candles      []market.Candle
	Indicators   Indicators
	CurrentPrice decimal.Decimal
	ProfitPct    decimal.Decimal
	Now          time.Time // 最新K线时间
	Timeframe    timeframes.Timeframe

	// State 由规则读写，评估结束后返回给调用方
	State *ExecutionState
}

// ExitDecision 卖出规则的判断结果
type ExitDecision struct {
	Met        bool
	Confidence decimal.Decimal
	Reason     string
	Metadata   map[string]any
}

// ExitRule 卖出规则
type ExitRule interface {
	Strategy

	CheckExitCondition(ctx context.Context, in *ExitInput) ExitDecision

	ExitOptions() ExitOptions
}

// Ensemble 组合策略，直接以加权得分对比阈值决策
type Ensemble interface {
	Threshold() decimal.Decimal
	Weights() map[string]decimal.Decimal
}

// StatefulExit 读写 ExecutionState 的卖出规则
type StatefulExit interface {
	ExitRule
	UsesExecutionState()
}
