package indicators

import (
	"github.com/shopspring/decimal"
)

// AverageVolume 最近 period 根（含最新一根）的平均成交量，不足时取全部
func AverageVolume(volumes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if err := validate(volumes, period); err != nil {
		return decimal.Zero, err
	}
	return mean(window(volumes, len(volumes)-1, period)), nil
}

// VolumeRatio 最新成交量 / 平均成交量
func VolumeRatio(volumes []decimal.Decimal, period int) (decimal.Decimal, error) {
	avg, err := AverageVolume(volumes, period)
	if err != nil {
		return decimal.Zero, err
	}
	if avg.IsZero() {
		return decimal.Zero, ErrZeroRange
	}
	return volumes[len(volumes)-1].Div(avg), nil
}
