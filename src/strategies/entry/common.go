package entry

import (
	"fmt"

	"github.com/shopspring/decimal"

	"signalengine/src/strategy"
)

var d = strategy.D

// Common 所有买入策略共用的参数
type Common struct {
	MinConfidence   decimal.Decimal `json:"min_confidence"`
	VolumeCheck     bool            `json:"volume_check"`
	TrendCheck      bool            `json:"trend_check"`
	VolumeThreshold decimal.Decimal `json:"volume_threshold"` // 最新成交量相对20根均量的最低倍数
}

// DefaultCommon 默认：最低信心度0.6，开启成交量与趋势检查
func DefaultCommon() Common {
	return Common{
		MinConfidence:   d(0.6),
		VolumeCheck:     true,
		TrendCheck:      true,
		VolumeThreshold: d(0.8),
	}
}

func (c Common) options() strategy.EntryOptions {
	return strategy.EntryOptions{
		MinConfidence:   c.MinConfidence,
		VolumeCheck:     c.VolumeCheck,
		TrendCheck:      c.TrendCheck,
		VolumeThreshold: c.VolumeThreshold,
	}
}

func (c Common) violations() []string {
	var v []string
	if c.MinConfidence.LessThan(strategy.Zero) || c.MinConfidence.GreaterThan(strategy.One) {
		v = append(v, fmt.Sprintf("min_confidence must be within [0, 1], got %s", c.MinConfidence))
	}
	if c.VolumeThreshold.IsNegative() {
		v = append(v, fmt.Sprintf("volume_threshold must be >= 0, got %s", c.VolumeThreshold))
	}
	return v
}

// latestPair 最新值与前一值；只有一个值时二者相同
func latestPair(values []decimal.Decimal) (cur, prev decimal.Decimal) {
	cur = values[len(values)-1]
	prev = cur
	if len(values) > 1 {
		prev = values[len(values)-2]
	}
	return cur, prev
}

func maxInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v > m {
			m = v
		}
	}
	return m
}
