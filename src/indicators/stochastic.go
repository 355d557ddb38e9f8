package indicators

import (
	"github.com/shopspring/decimal"
)

// StochasticResult 随机指标结果，序列与输入等长
type StochasticResult struct {
	K []decimal.Decimal // 平滑后的 %K
	D []decimal.Decimal // %K 的 SMA
}

// Stochastic 计算随机指标
//
// 原始 %K = (收盘-最低)/(最高-最低)*100，区间为0时取50。
// 原始 %K 经 smooth 周期 SMA 平滑，%D 为平滑 %K 的 dPeriod 周期 SMA。
func Stochastic(highs, lows, closes []decimal.Decimal, kPeriod, dPeriod, smooth int) (*StochasticResult, error) {
	if kPeriod <= 0 || dPeriod <= 0 || smooth <= 0 {
		return nil, ErrInvalidPeriod
	}
	if len(closes) == 0 {
		return nil, ErrEmptyPrices
	}
	if len(highs) != len(closes) || len(lows) != len(closes) {
		return nil, ErrLengthMismatch
	}

	raw := make([]decimal.Decimal, len(closes))
	for i := range closes {
		hh, _ := Highest(highs[:i+1], kPeriod)
		ll, _ := Lowest(lows[:i+1], kPeriod)
		rng := hh.Sub(ll)
		if rng.IsZero() {
			raw[i] = fifty
			continue
		}
		raw[i] = closes[i].Sub(ll).Div(rng).Mul(hundred)
	}

	k, err := SMA(raw, smooth)
	if err != nil {
		return nil, err
	}
	d, err := SMA(k, dPeriod)
	if err != nil {
		return nil, err
	}
	return &StochasticResult{K: k, D: d}, nil
}

// Latest 最新的 %K 与 %D
func (r *StochasticResult) Latest() (k, d decimal.Decimal) {
	i := len(r.K) - 1
	return r.K[i], r.D[i]
}

// Previous 前一根的 %K 与 %D；只有一根时返回最新值
func (r *StochasticResult) Previous() (k, d decimal.Decimal) {
	if len(r.K) < 2 {
		return r.Latest()
	}
	i := len(r.K) - 2
	return r.K[i], r.D[i]
}
