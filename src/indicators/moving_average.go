package indicators

import (
	"github.com/shopspring/decimal"
)

var (
	one     = decimal.NewFromInt(1)
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)
	fifty   = decimal.NewFromInt(50)
)

func validate(values []decimal.Decimal, period int) error {
	if period <= 0 {
		return ErrInvalidPeriod
	}
	if len(values) == 0 {
		return ErrEmptyPrices
	}
	return nil
}

// mean 序列均值，调用方保证非空
func mean(values []decimal.Decimal) decimal.Decimal {
	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}

// window 以 end(含)结尾、最长 period 的窗口；不足时取已有前缀
func window(values []decimal.Decimal, end, period int) []decimal.Decimal {
	start := end - period + 1
	if start < 0 {
		start = 0
	}
	return values[start : end+1]
}

// SMA 简单移动平均，与输入等长；预热阶段用已有数据的均值
func SMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if err := validate(values, period); err != nil {
		return nil, err
	}

	out := make([]decimal.Decimal, len(values))
	sum := decimal.Zero
	for i, v := range values {
		sum = sum.Add(v)
		if i >= period {
			sum = sum.Sub(values[i-period])
		}
		n := i + 1
		if n > period {
			n = period
		}
		out[i] = sum.Div(decimal.NewFromInt(int64(n)))
	}
	return out, nil
}

// EMA 指数移动平均，alpha = 2/(period+1)，以首个值作为种子
func EMA(values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if err := validate(values, period); err != nil {
		return nil, err
	}

	alpha := two.Div(decimal.NewFromInt(int64(period + 1)))
	keep := one.Sub(alpha)

	out := make([]decimal.Decimal, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i].Mul(alpha).Add(out[i-1].Mul(keep))
	}
	return out, nil
}

// MovingAverage 按类型选择 SMA 或 EMA
func MovingAverage(kind string, values []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if kind == "SMA" {
		return SMA(values, period)
	}
	return EMA(values, period)
}

// Highest 最近 period 个值中的最大值
func Highest(values []decimal.Decimal, period int) (decimal.Decimal, error) {
	if err := validate(values, period); err != nil {
		return decimal.Zero, err
	}
	w := window(values, len(values)-1, period)
	max := w[0]
	for _, v := range w[1:] {
		if v.GreaterThan(max) {
			max = v
		}
	}
	return max, nil
}

// Lowest 最近 period 个值中的最小值
func Lowest(values []decimal.Decimal, period int) (decimal.Decimal, error) {
	if err := validate(values, period); err != nil {
		return decimal.Zero, err
	}
	w := window(values, len(values)-1, period)
	min := w[0]
	for _, v := range w[1:] {
		if v.LessThan(min) {
			min = v
		}
	}
	return min, nil
}
