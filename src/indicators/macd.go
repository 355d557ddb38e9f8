package indicators

import (
	"github.com/shopspring/decimal"
)

// MACDResult MACD计算结果，三条序列与输入等长
type MACDResult struct {
	MACD      []decimal.Decimal // 快线 - 慢线
	Signal    []decimal.Decimal // MACD 的 EMA
	Histogram []decimal.Decimal // MACD - Signal
}

// MACDPoint 某一根K线上的 MACD 取值
type MACDPoint struct {
	MACD      decimal.Decimal
	Signal    decimal.Decimal
	Histogram decimal.Decimal
}

// MACD 计算 MACD 指标
func MACD(closes []decimal.Decimal, fast, slow, signal int) (*MACDResult, error) {
	if fast <= 0 || slow <= 0 || signal <= 0 {
		return nil, ErrInvalidPeriod
	}

	fastEMA, err := EMA(closes, fast)
	if err != nil {
		return nil, err
	}
	slowEMA, err := EMA(closes, slow)
	if err != nil {
		return nil, err
	}

	line := make([]decimal.Decimal, len(closes))
	for i := range closes {
		line[i] = fastEMA[i].Sub(slowEMA[i])
	}

	signalLine, err := EMA(line, signal)
	if err != nil {
		return nil, err
	}

	hist := make([]decimal.Decimal, len(closes))
	for i := range closes {
		hist[i] = line[i].Sub(signalLine[i])
	}

	return &MACDResult{MACD: line, Signal: signalLine, Histogram: hist}, nil
}

// Latest 最新一根
func (r *MACDResult) Latest() MACDPoint {
	return r.at(len(r.MACD) - 1)
}

// Previous 前一根；只有一根时返回最新值
func (r *MACDResult) Previous() MACDPoint {
	if len(r.MACD) < 2 {
		return r.Latest()
	}
	return r.at(len(r.MACD) - 2)
}

func (r *MACDResult) at(i int) MACDPoint {
	return MACDPoint{MACD: r.MACD[i], Signal: r.Signal[i], Histogram: r.Histogram[i]}
}
