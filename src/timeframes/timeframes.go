package timeframes

import (
	"fmt"
	"time"
)

// Timeframe K线周期
type Timeframe string

const (
	Timeframe1m  Timeframe = "1m"
	Timeframe3m  Timeframe = "3m"
	Timeframe5m  Timeframe = "5m"
	Timeframe15m Timeframe = "15m"
	Timeframe30m Timeframe = "30m"
	Timeframe1h  Timeframe = "1h"
	Timeframe2h  Timeframe = "2h"
	Timeframe4h  Timeframe = "4h"
	Timeframe6h  Timeframe = "6h"
	Timeframe12h Timeframe = "12h"
	Timeframe1d  Timeframe = "1d"
	Timeframe1w  Timeframe = "1w"
	Timeframe1M  Timeframe = "1M"
)

// Default 策略未指定周期时使用
const Default = Timeframe1h

var durations = map[Timeframe]time.Duration{
	Timeframe1m:  time.Minute,
	Timeframe3m:  3 * time.Minute,
	Timeframe5m:  5 * time.Minute,
	Timeframe15m: 15 * time.Minute,
	Timeframe30m: 30 * time.Minute,
	Timeframe1h:  time.Hour,
	Timeframe2h:  2 * time.Hour,
	Timeframe4h:  4 * time.Hour,
	Timeframe6h:  6 * time.Hour,
	Timeframe12h: 12 * time.Hour,
	Timeframe1d:  24 * time.Hour,
	Timeframe1w:  7 * 24 * time.Hour,
	Timeframe1M:  30 * 24 * time.Hour, // 近似1个月
}

// GetDuration 获取周期长度
func (tf Timeframe) GetDuration() (time.Duration, error) {
	d, ok := durations[tf]
	if !ok {
		return 0, fmt.Errorf("unsupported timeframe: %s", tf)
	}
	return d, nil
}

// Hours 周期对应的小时数，未知周期按1小时计
func (tf Timeframe) Hours() float64 {
	d, ok := durations[tf]
	if !ok {
		return 1
	}
	return d.Hours()
}

// IsValid 检查周期是否受支持
func (tf Timeframe) IsValid() bool {
	_, ok := durations[tf]
	return ok
}

func (tf Timeframe) String() string {
	return string(tf)
}

// GetBinanceInterval 币安K线接口使用的周期字符串
func (tf Timeframe) GetBinanceInterval() string {
	return string(tf)
}

// All 按从短到长的顺序返回所有周期
func All() []Timeframe {
	return []Timeframe{
		Timeframe1m, Timeframe3m, Timeframe5m, Timeframe15m, Timeframe30m,
		Timeframe1h, Timeframe2h, Timeframe4h, Timeframe6h, Timeframe12h,
		Timeframe1d, Timeframe1w, Timeframe1M,
	}
}

// ParseTimeframe 解析周期字符串，空字符串返回默认周期
func ParseTimeframe(s string) (Timeframe, error) {
	if s == "" {
		return Default, nil
	}
	tf := Timeframe(s)
	if !tf.IsValid() {
		return "", fmt.Errorf("invalid timeframe: %s", s)
	}
	return tf, nil
}
