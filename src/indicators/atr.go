package indicators

import (
	"github.com/shopspring/decimal"
)

// TrueRange 真实波幅序列，首根为最高-最低
func TrueRange(highs, lows, closes []decimal.Decimal) ([]decimal.Decimal, error) {
	if len(closes) == 0 {
		return nil, ErrEmptyPrices
	}
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, ErrLengthMismatch
	}

	out := make([]decimal.Decimal, len(closes))
	out[0] = highs[0].Sub(lows[0])
	for i := 1; i < len(closes); i++ {
		tr := highs[i].Sub(lows[i])
		if up := highs[i].Sub(closes[i-1]).Abs(); up.GreaterThan(tr) {
			tr = up
		}
		if down := lows[i].Sub(closes[i-1]).Abs(); down.GreaterThan(tr) {
			tr = down
		}
		out[i] = tr
	}
	return out, nil
}

// ATR 最近 period 个真实波幅的均值，不足时取全部
func ATR(highs, lows, closes []decimal.Decimal, period int) (decimal.Decimal, error) {
	if period <= 0 {
		return decimal.Zero, ErrInvalidPeriod
	}
	tr, err := TrueRange(highs, lows, closes)
	if err != nil {
		return decimal.Zero, err
	}
	return mean(window(tr, len(tr)-1, period)), nil
}
