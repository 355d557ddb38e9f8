package market

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Candle 标准化的K线(OHLCV)
type Candle struct {
	Timestamp time.Time       `json:"timestamp"` // 开盘时间
	Open      decimal.Decimal `json:"open"`
	High      decimal.Decimal `json:"high"`
	Low       decimal.Decimal `json:"low"`
	Close     decimal.Decimal `json:"close"`
	Volume    decimal.Decimal `json:"volume"`
}

// ErrEmptySeries 空K线序列
var ErrEmptySeries = errors.New("empty candle series")

// Closes 收盘价序列
func Closes(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Highs 最高价序列
func Highs(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.High
	}
	return out
}

// Lows 最低价序列
func Lows(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Low
	}
	return out
}

// Volumes 成交量序列
func Volumes(candles []Candle) []decimal.Decimal {
	out := make([]decimal.Decimal, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// Last 最新一根K线
func Last(candles []Candle) (Candle, error) {
	if len(candles) == 0 {
		return Candle{}, ErrEmptySeries
	}
	return candles[len(candles)-1], nil
}

// ValidateSeries 检查序列按时间升序且没有重复时间戳
func ValidateSeries(candles []Candle) error {
	if len(candles) == 0 {
		return ErrEmptySeries
	}
	for i := 1; i < len(candles); i++ {
		if !candles[i].Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("candle %d at %s is not after %s",
				i, candles[i].Timestamp.Format(time.RFC3339), candles[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
