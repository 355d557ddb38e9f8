package strategy

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signalengine/src/timeframes"
)

// Signal 交易信号
type Signal string

const (
	SignalBuy  Signal = "BUY"
	SignalSell Signal = "SELL"
	SignalHold Signal = "HOLD"
)

// Status 策略实例状态
type Status string

const (
	StatusInactive Status = "INACTIVE"
	StatusActive   Status = "ACTIVE"
	StatusPaused   Status = "PAUSED"
)

// IsValid 状态是否合法
func (s Status) IsValid() bool {
	switch s {
	case StatusInactive, StatusActive, StatusPaused:
		return true
	}
	return false
}

// Family 策略族：买入或卖出
type Family string

const (
	FamilyEntry Family = "entry"
	FamilyExit  Family = "exit"
)

// Type 策略类型，集合封闭
type Type string

const (
	TypeRSIEntry            Type = "rsi_entry"
	TypeMACDEntry           Type = "macd_entry"
	TypeBollingerEntry      Type = "bollinger_entry"
	TypeMACrossEntry        Type = "ma_cross_entry"
	TypeStochasticEntry     Type = "stochastic_entry"
	TypeMultiIndicatorEntry Type = "multi_indicator_entry"
	TypeHybridEntry         Type = "hybrid_entry"

	TypeFixedTargetExit    Type = "fixed_target_exit"
	TypeLadderExit         Type = "ladder_exit"
	TypeTrailingStopExit   Type = "trailing_stop_exit"
	TypeRSIExit            Type = "rsi_exit"
	TypeMACDExit           Type = "macd_exit"
	TypeMACrossExit        Type = "ma_cross_exit"
	TypeStochasticExit     Type = "stochastic_exit"
	TypeBollingerExit      Type = "bollinger_exit"
	TypeATRStopExit        Type = "atr_stop_exit"
	TypeTimeBasedExit      Type = "time_based_exit"
	TypeMultiConditionExit Type = "multi_condition_exit"
	TypeHybridExit         Type = "hybrid_exit"
)

var entryTypes = []Type{
	TypeRSIEntry, TypeMACDEntry, TypeBollingerEntry, TypeMACrossEntry,
	TypeStochasticEntry, TypeMultiIndicatorEntry, TypeHybridEntry,
}

var exitTypes = []Type{
	TypeFixedTargetExit, TypeLadderExit, TypeTrailingStopExit, TypeRSIExit,
	TypeMACDExit, TypeMACrossExit, TypeStochasticExit, TypeBollingerExit,
	TypeATRStopExit, TypeTimeBasedExit, TypeMultiConditionExit, TypeHybridExit,
}

// EntryTypes 所有买入策略类型
func EntryTypes() []Type {
	return append([]Type(nil), entryTypes...)
}

// ExitTypes 所有卖出策略类型
func ExitTypes() []Type {
	return append([]Type(nil), exitTypes...)
}

// Family 类型所属的策略族，未知类型返回空
func (t Type) Family() Family {
	for _, e := range entryTypes {
		if e == t {
			return FamilyEntry
		}
	}
	for _, e := range exitTypes {
		if e == t {
			return FamilyExit
		}
	}
	return ""
}

// IsValid 是否为已知类型
func (t Type) IsValid() bool {
	return t.Family() != ""
}

// ParseType 解析策略类型
func ParseType(s string) (Type, error) {
	t := Type(s)
	if !t.IsValid() {
		return "", fmt.Errorf("unsupported strategy type: %s", s)
	}
	return t, nil
}

// Definition 策略实例的持久化描述
type Definition struct {
	ID          int64                `json:"id" yaml:"id"`
	Name        string               `json:"name" yaml:"name"`
	Description string               `json:"description" yaml:"description"`
	Type        Type                 `json:"type" yaml:"type"`
	Timeframe   timeframes.Timeframe `json:"timeframe" yaml:"timeframe"`
	Parameters  Params               `json:"parameters" yaml:"parameters"`
	Status      Status               `json:"status" yaml:"status"`
}

// Position 持仓信息，由调用方提供
type Position struct {
	ID            string          `json:"id"`
	Symbol        string          `json:"symbol"`
	EntryPrice    decimal.Decimal `json:"entry_price"`
	EntryTime     time.Time       `json:"entry_time"`
	HoldingPeriod int             `json:"holding_period"` // 持有的K线根数
}

// SignalRecord 一次评估的结果
type SignalRecord struct {
	StrategyID int64           `json:"strategy_id"`
	Strategy   string          `json:"strategy"`
	Symbol     string          `json:"symbol"`
	Signal     Signal          `json:"signal"`
	Confidence decimal.Decimal `json:"confidence"`
	Price      decimal.Decimal `json:"price"`
	Timestamp  time.Time       `json:"timestamp"`
	Indicators Indicators      `json:"indicators"`
	Metadata   map[string]any  `json:"metadata"`
}

// Reason 元数据中的原因说明
func (r SignalRecord) Reason() string {
	if s, ok := r.Metadata["reason"].(string); ok {
		return s
	}
	return ""
}
