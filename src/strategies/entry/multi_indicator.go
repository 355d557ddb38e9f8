package entry

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// 组合模式
const (
	CombineAND = "AND"
	CombineOR  = "OR"
)

const volumeWindow = 20

// MultiIndicatorParams 多指标组合买入参数
type MultiIndicatorParams struct {
	Common

	UseRSI       bool            `json:"use_rsi"`
	RSIPeriod    int             `json:"rsi_period"`
	RSIOversold  decimal.Decimal `json:"rsi_oversold"`
	UseMACD      bool            `json:"use_macd"`
	MACDFast     int             `json:"macd_fast"`
	MACDSlow     int             `json:"macd_slow"`
	MACDSignal   int             `json:"macd_signal"`
	UseBollinger bool            `json:"use_bollinger"`
	BBPeriod     int             `json:"bb_period"`
	BBStd        decimal.Decimal `json:"bb_std"`
	UseVolume    bool            `json:"use_volume"`

	CombinationMode string `json:"combination_mode"`
	MinIndicators   int    `json:"min_indicators"` // OR 模式下至少满足的指标数
}

func DefaultMultiIndicatorParams() MultiIndicatorParams {
	c := DefaultCommon()
	c.MinConfidence = d(0.7)
	c.VolumeCheck = false
	c.VolumeThreshold = d(1.5)
	return MultiIndicatorParams{
		Common:          c,
		UseRSI:          true,
		RSIPeriod:       14,
		RSIOversold:     d(30),
		UseMACD:         true,
		MACDFast:        12,
		MACDSlow:        26,
		MACDSignal:      9,
		UseBollinger:    true,
		BBPeriod:        20,
		BBStd:           d(2),
		UseVolume:       true,
		CombinationMode: CombineAND,
		MinIndicators:   2,
	}
}

// MultiIndicator RSI/MACD/布林带/成交量按 AND 或 OR 组合
type MultiIndicator struct {
	p MultiIndicatorParams
}

func NewMultiIndicator(params strategy.Params) (*MultiIndicator, error) {
	p := DefaultMultiIndicatorParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &MultiIndicator{p: p}, nil
}

func (s *MultiIndicator) Params() MultiIndicatorParams { return s.p }

func (s *MultiIndicator) EntryOptions() strategy.EntryOptions { return s.p.options() }

func (s *MultiIndicator) MinimumDataPoints() int {
	return maxInt(s.p.RSIPeriod, s.p.MACDSlow+s.p.MACDSignal, s.p.BBPeriod, volumeWindow) + 10
}

func (s *MultiIndicator) Violations() []string {
	v := s.p.violations()
	if s.p.CombinationMode != CombineAND && s.p.CombinationMode != CombineOR {
		v = append(v, fmt.Sprintf("combination_mode must be AND or OR, got %q", s.p.CombinationMode))
	}
	if s.p.CombinationMode == CombineOR && s.p.MinIndicators < 1 {
		v = append(v, fmt.Sprintf("min_indicators must be >= 1 in OR mode, got %d", s.p.MinIndicators))
	}
	if !s.p.UseRSI && !s.p.UseMACD && !s.p.UseBollinger && !s.p.UseVolume {
		v = append(v, "at least one indicator must be enabled")
	}
	return v
}

func (s *MultiIndicator) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	closes := market.Closes(candles)
	ind := strategy.Indicators{"current_price": closes[len(closes)-1]}

	if s.p.UseRSI {
		rsi, err := indicators.RSI(closes, s.p.RSIPeriod)
		if err != nil {
			return nil, strategy.Calc("rsi", err)
		}
		ind["rsi"] = rsi[len(rsi)-1]
	}

	if s.p.UseMACD {
		result, err := indicators.MACD(closes, s.p.MACDFast, s.p.MACDSlow, s.p.MACDSignal)
		if err != nil {
			return nil, strategy.Calc("macd", err)
		}
		cur, prev := result.Latest(), result.Previous()
		ind["macd"] = cur.MACD
		ind["macd_signal"] = cur.Signal
		ind["macd_histogram"] = cur.Histogram
		ind["prev_macd"] = prev.MACD
		ind["prev_macd_signal"] = prev.Signal
	}

	if s.p.UseBollinger {
		bb := &indicators.BollingerBands{Period: s.p.BBPeriod, Multiplier: s.p.BBStd}
		result, err := bb.Calculate(closes)
		if err != nil {
			return nil, strategy.Calc("bollinger_bands", err)
		}
		ind["bb_upper"] = result.UpperBand
		ind["bb_middle"] = result.MiddleBand
		ind["bb_lower"] = result.LowerBand
	}

	if s.p.UseVolume {
		ratio, err := indicators.VolumeRatio(market.Volumes(candles), volumeWindow)
		switch {
		case errors.Is(err, indicators.ErrZeroRange):
			ratio = strategy.One
		case err != nil:
			return nil, strategy.Calc("volume_ratio", err)
		}
		ind["volume_ratio"] = ratio
	}
	return ind, nil
}

type vote struct {
	signal bool
	conf   decimal.Decimal
}

func (s *MultiIndicator) CheckEntryCondition(candles []market.Candle, ind strategy.Indicators) (bool, decimal.Decimal) {
	var votes []vote
	if _, ok := ind["rsi"]; ok && s.p.UseRSI {
		votes = append(votes, s.rsiVote(ind))
	}
	if _, ok := ind["macd"]; ok && s.p.UseMACD {
		votes = append(votes, macdVote(ind))
	}
	if _, ok := ind["bb_lower"]; ok && s.p.UseBollinger {
		votes = append(votes, bollingerVote(ind))
	}
	if _, ok := ind["volume_ratio"]; ok && s.p.UseVolume {
		votes = append(votes, s.volumeVote(ind))
	}

	if s.p.CombinationMode == CombineAND {
		met := true
		all := make([]decimal.Decimal, 0, len(votes))
		for _, v := range votes {
			met = met && v.signal
			all = append(all, v.conf)
		}
		return met, average(all)
	}

	var active []decimal.Decimal
	for _, v := range votes {
		if v.signal {
			active = append(active, v.conf)
		}
	}
	return len(active) >= s.p.MinIndicators, average(active)
}

func (s *MultiIndicator) rsiVote(ind strategy.Indicators) vote {
	rsi := ind["rsi"]
	if rsi.LessThan(s.p.RSIOversold) {
		return vote{true, d(0.7).Add(s.p.RSIOversold.Sub(rsi).Div(s.p.RSIOversold).Mul(d(0.3)))}
	}
	return vote{false, d(0.3)}
}

func macdVote(ind strategy.Indicators) vote {
	golden := ind["prev_macd"].LessThanOrEqual(ind["prev_macd_signal"]) && ind["macd"].GreaterThan(ind["macd_signal"])
	positive := ind["macd_histogram"].IsPositive()
	switch {
	case golden:
		return vote{true, d(0.75)}
	case positive:
		return vote{true, d(0.65)}
	}
	return vote{false, d(0.4)}
}

func bollingerVote(ind strategy.Indicators) vote {
	lower, middle := ind["bb_lower"], ind["bb_middle"]
	distance := strategy.One
	if !middle.Equal(lower) {
		distance = ind["current_price"].Sub(lower).Div(middle.Sub(lower))
	}
	if distance.LessThan(d(0.2)) {
		return vote{true, d(0.7).Add(d(0.2).Sub(distance))}
	}
	return vote{false, d(0.4)}
}

func (s *MultiIndicator) volumeVote(ind strategy.Indicators) vote {
	ratio := ind["volume_ratio"]
	if ratio.GreaterThanOrEqual(s.p.VolumeThreshold) {
		return vote{true, decimal.Min(strategy.Half.Add(ratio.Mul(d(0.2))), d(0.9))}
	}
	return vote{false, d(0.3)}
}

// average 空集合返回0.5
func average(values []decimal.Decimal) decimal.Decimal {
	if len(values) == 0 {
		return strategy.Half
	}
	sum := strategy.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return sum.Div(decimal.NewFromInt(int64(len(values))))
}
