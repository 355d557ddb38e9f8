package indicators

import (
	"github.com/shopspring/decimal"
)

// RSI 相对强弱指数(0-100)，涨跌幅用 EMA 平滑
//
// 没有下跌时为100，完全横盘时为50。首个值没有前值，记为50。
func RSI(closes []decimal.Decimal, period int) ([]decimal.Decimal, error) {
	if err := validate(closes, period); err != nil {
		return nil, err
	}

	gains := make([]decimal.Decimal, len(closes))
	losses := make([]decimal.Decimal, len(closes))
	for i := 1; i < len(closes); i++ {
		delta := closes[i].Sub(closes[i-1])
		if delta.IsPositive() {
			gains[i] = delta
		} else {
			losses[i] = delta.Neg()
		}
	}

	avgGain, err := EMA(gains, period)
	if err != nil {
		return nil, err
	}
	avgLoss, err := EMA(losses, period)
	if err != nil {
		return nil, err
	}

	out := make([]decimal.Decimal, len(closes))
	for i := range closes {
		out[i] = rsiValue(avgGain[i], avgLoss[i])
	}
	return out, nil
}

func rsiValue(avgGain, avgLoss decimal.Decimal) decimal.Decimal {
	if avgLoss.IsZero() {
		if avgGain.IsZero() {
			return fifty
		}
		return hundred
	}
	rs := avgGain.Div(avgLoss)
	return hundred.Sub(hundred.Div(one.Add(rs)))
}
