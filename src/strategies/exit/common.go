package exit

import (
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/market"
	"signalengine/src/strategy"
)

var d = strategy.D

// Common 所有卖出策略共用的参数
type Common struct {
	MinConfidence decimal.Decimal `json:"min_confidence"`
	MinProfitPct  decimal.Decimal `json:"min_profit_pct"` // 大于0时启用前置止盈
	MaxLossPct    decimal.Decimal `json:"max_loss_pct"`   // 前置止损
}

// DefaultCommon 默认：最低信心度0.7，不启用前置止盈，前置止损-100%
func DefaultCommon() Common {
	return Common{
		MinConfidence: d(0.7),
		MinProfitPct:  strategy.Zero,
		MaxLossPct:    d(-100),
	}
}

func (c Common) options() strategy.ExitOptions {
	return strategy.ExitOptions{
		MinConfidence: c.MinConfidence,
		MinProfitPct:  c.MinProfitPct,
		MaxLossPct:    c.MaxLossPct,
	}
}

func (c Common) violations() []string {
	var v []string
	if c.MinConfidence.LessThan(strategy.Zero) || c.MinConfidence.GreaterThan(strategy.One) {
		v = append(v, fmt.Sprintf("min_confidence must be within [0, 1], got %s", c.MinConfidence))
	}
	if c.MinProfitPct.IsNegative() {
		v = append(v, fmt.Sprintf("min_profit_pct must be >= 0, got %s", c.MinProfitPct))
	}
	if c.MaxLossPct.IsPositive() {
		v = append(v, fmt.Sprintf("max_loss_pct must be <= 0, got %s", c.MaxLossPct))
	}
	return v
}

func sell(confidence decimal.Decimal, reason string, args ...any) strategy.ExitDecision {
	return strategy.ExitDecision{
		Met:        true,
		Confidence: strategy.Clamp01(confidence),
		Reason:     fmt.Sprintf(reason, args...),
		Metadata:   map[string]any{},
	}
}

func notMet(reason string, args ...any) strategy.ExitDecision {
	return strategy.ExitDecision{
		Confidence: strategy.Zero,
		Reason:     fmt.Sprintf(reason, args...),
	}
}

// profitTier 盈利超过 above 时信心度乘以 factor，按阈值从高到低排列
type profitTier struct {
	above  decimal.Decimal
	factor decimal.Decimal
}

func applyTiers(conf, pnl decimal.Decimal, gains []profitTier, lossBelow, lossFactor decimal.Decimal) decimal.Decimal {
	for _, t := range gains {
		if pnl.GreaterThan(t.above) {
			return conf.Mul(t.factor)
		}
	}
	if pnl.LessThan(lossBelow) {
		return conf.Mul(lossFactor)
	}
	return conf
}

// 盈亏分档：>5% x1.15，>0 x1.05，<-5% x1.2
var crossTiers = []profitTier{{d(5), d(1.15)}, {strategy.Zero, d(1.05)}}

// 盈亏分档：>10% x1.2，>5% x1.1，>0 x1.05，<-3% x0.9
var bandTiers = []profitTier{{d(10), d(1.2)}, {d(5), d(1.1)}, {strategy.Zero, d(1.05)}}

func pct(v decimal.Decimal) string {
	return v.StringFixed(2)
}

func latestPair(values []decimal.Decimal) (cur, prev decimal.Decimal) {
	cur = values[len(values)-1]
	prev = cur
	if len(values) > 1 {
		prev = values[len(values)-2]
	}
	return cur, prev
}

func lastClose(candles []market.Candle) decimal.Decimal {
	return candles[len(candles)-1].Close
}

func maxInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
