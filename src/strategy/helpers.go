package strategy

import (
	"time"

	"github.com/shopspring/decimal"

	"signalengine/src/market"
)

var (
	Zero    = decimal.Zero
	One     = decimal.NewFromInt(1)
	Hundred = decimal.NewFromInt(100)
	Half    = decimal.NewFromFloat(0.5)

	// DefaultRiskPerTrade 仓位计算的默认单笔风险
	DefaultRiskPerTrade = decimal.NewFromFloat(0.02)

	weightSignal = decimal.NewFromFloat(0.5)
	weightTrend  = decimal.NewFromFloat(0.3)
	weightVolume = decimal.NewFromFloat(0.2)
)

// trendWindow 趋势与成交量判断使用的K线数
const trendWindow = 20

// D 由 float64 构造 decimal，仅用于常量
func D(f float64) decimal.Decimal {
	return decimal.NewFromFloat(f)
}

// Clamp01 限制在 [0,1]
func Clamp01(v decimal.Decimal) decimal.Decimal {
	if v.LessThan(Zero) {
		return Zero
	}
	if v.GreaterThan(One) {
		return One
	}
	return v
}

// Cap1 上限为1
func Cap1(v decimal.Decimal) decimal.Decimal {
	return decimal.Min(v, One)
}

// CalculateConfidence 0.5*信号 + 0.3*趋势 + 0.2*成交量，限制在 [0,1]
func CalculateConfidence(signal, trend, volume decimal.Decimal) decimal.Decimal {
	c := signal.Mul(weightSignal).Add(trend.Mul(weightTrend)).Add(volume.Mul(weightVolume))
	return Clamp01(c)
}

// ProfitLossPct 盈亏百分比，开仓价非正时为0
func ProfitLossPct(entry, current decimal.Decimal) decimal.Decimal {
	if !entry.IsPositive() {
		return Zero
	}
	return current.Sub(entry).Div(entry).Mul(Hundred)
}

// TakeProfitPrice 止盈价
func TakeProfitPrice(entry, profitPct decimal.Decimal) decimal.Decimal {
	return entry.Mul(One.Add(profitPct.Div(Hundred)))
}

// StopLossPrice 止损价，lossPct 为负数
func StopLossPrice(entry, lossPct decimal.Decimal) decimal.Decimal {
	return entry.Mul(One.Add(lossPct.Div(Hundred)))
}

// PriceChangeRate 最近 periods 根的涨跌幅(%)
func PriceChangeRate(candles []market.Candle, periods int) decimal.Decimal {
	if periods < 1 || len(candles) < periods+1 {
		return Zero
	}
	current := candles[len(candles)-1].Close
	previous := candles[len(candles)-1-periods].Close
	if previous.IsZero() {
		return Zero
	}
	return current.Sub(previous).Div(previous).Mul(Hundred)
}

// PositionSize 按风险比例计算买入数量
func PositionSize(balance, entryPrice, riskPerTrade decimal.Decimal) decimal.Decimal {
	if !entryPrice.IsPositive() {
		return Zero
	}
	return balance.Mul(riskPerTrade).Div(entryPrice)
}

// EntryPrice 默认以最新收盘价作为入场价
func EntryPrice(candles []market.Candle) decimal.Decimal {
	if len(candles) == 0 {
		return Zero
	}
	return candles[len(candles)-1].Close
}

func recentAverage(candles []market.Candle, field func(market.Candle) decimal.Decimal) decimal.Decimal {
	sum := Zero
	for _, c := range candles[len(candles)-trendWindow:] {
		sum = sum.Add(field(c))
	}
	return sum.Div(decimal.NewFromInt(trendWindow))
}

func volumeOf(c market.Candle) decimal.Decimal { return c.Volume }
func closeOf(c market.Candle) decimal.Decimal  { return c.Close }

// VolumeStrength 最新成交量相对20根均量的强度 min(ratio/2, 1)
//
// 不足20根或均量为0时为0.5。
func VolumeStrength(candles []market.Candle) decimal.Decimal {
	if len(candles) < trendWindow {
		return Half
	}
	avg := recentAverage(candles, volumeOf)
	if avg.IsZero() {
		return Half
	}
	ratio := candles[len(candles)-1].Volume.Div(avg)
	return decimal.Min(ratio.Div(decimal.NewFromInt(2)), One)
}

// VolumeOK 最新成交量不低于 threshold*20根均量；不足20根时视为满足
func VolumeOK(candles []market.Candle, threshold decimal.Decimal) bool {
	if len(candles) < trendWindow {
		return true
	}
	avg := recentAverage(candles, volumeOf)
	return candles[len(candles)-1].Volume.GreaterThanOrEqual(avg.Mul(threshold))
}

// AboveTrend 收盘价不低于20根SMA；不足20根时视为满足
func AboveTrend(candles []market.Candle) bool {
	if len(candles) < trendWindow {
		return true
	}
	return candles[len(candles)-1].Close.GreaterThanOrEqual(recentAverage(candles, closeOf))
}

// HoldingPeriods 开仓之后收盘的K线根数
func HoldingPeriods(candles []market.Candle, entryTime time.Time) int {
	n := 0
	for i := len(candles) - 1; i >= 0; i-- {
		if !candles[i].Timestamp.After(entryTime) {
			break
		}
		n++
	}
	return n
}
