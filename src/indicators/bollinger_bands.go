package indicators

import (
	"math"

	"github.com/shopspring/decimal"
)

// BollingerBands 布林带参数
type BollingerBands struct {
	Period     int             // 计算周期，通常为20
	Multiplier decimal.Decimal // 标准差倍数，通常为2
}

// BollingerBandsResult 布林带最新一根的取值
type BollingerBandsResult struct {
	UpperBand  decimal.Decimal // 上轨
	MiddleBand decimal.Decimal // 中轨（移动平均线）
	LowerBand  decimal.Decimal // 下轨
	Price      decimal.Decimal // 当前价格
}

// NewBollingerBands 创建布林带指标
func NewBollingerBands(period int, multiplier float64) *BollingerBands {
	return &BollingerBands{
		Period:     period,
		Multiplier: decimal.NewFromFloat(multiplier),
	}
}

// Validate 校验参数
func (bb *BollingerBands) Validate() error {
	if bb.Period <= 0 {
		return ErrInvalidPeriod
	}
	if !bb.Multiplier.IsPositive() {
		return ErrInvalidMultiplier
	}
	return nil
}

// Calculate 计算最新一根的布林带
//
// 数据不足 Period 时用已有数据计算，标准差为总体标准差。
func (bb *BollingerBands) Calculate(prices []decimal.Decimal) (*BollingerBandsResult, error) {
	if err := bb.Validate(); err != nil {
		return nil, err
	}
	if len(prices) == 0 {
		return nil, ErrEmptyPrices
	}

	recent := window(prices, len(prices)-1, bb.Period)
	sma := mean(recent)
	std := StdDev(recent, sma)
	offset := bb.Multiplier.Mul(std)

	return &BollingerBandsResult{
		UpperBand:  sma.Add(offset),
		MiddleBand: sma,
		LowerBand:  sma.Sub(offset),
		Price:      prices[len(prices)-1],
	}, nil
}

// StdDev 总体标准差
func StdDev(values []decimal.Decimal, avg decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return decimal.Zero
	}
	sum := decimal.Zero
	for _, v := range values {
		diff := v.Sub(avg)
		sum = sum.Add(diff.Mul(diff))
	}
	variance, _ := sum.Div(decimal.NewFromInt(int64(len(values)))).Float64()
	// decimal 没有 sqrt
	return decimal.NewFromFloat(math.Sqrt(variance))
}

// IsUpperBreakout 价格是否达到上轨
func (result *BollingerBandsResult) IsUpperBreakout() bool {
	return result.Price.GreaterThanOrEqual(result.UpperBand)
}

// IsLowerBreakout 价格是否达到下轨
func (result *BollingerBandsResult) IsLowerBreakout() bool {
	return result.Price.LessThanOrEqual(result.LowerBand)
}

// GetBandWidth 带宽 (上轨-下轨)/中轨，中轨为0时返回0
func (result *BollingerBandsResult) GetBandWidth() decimal.Decimal {
	if result.MiddleBand.IsZero() {
		return decimal.Zero
	}
	return result.UpperBand.Sub(result.LowerBand).Div(result.MiddleBand)
}

// GetPercentB %B指标 (价格-下轨)/(上轨-下轨)
func (result *BollingerBandsResult) GetPercentB() decimal.Decimal {
	denominator := result.UpperBand.Sub(result.LowerBand)
	if denominator.IsZero() {
		return decimal.Zero
	}
	return result.Price.Sub(result.LowerBand).Div(denominator)
}
