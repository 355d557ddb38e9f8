package strategy

import (
	"sort"

	"github.com/shopspring/decimal"
)

// Indicators 指标快照，名称到数值
//
// 布尔型指标以 1/0 存储。
type Indicators map[string]decimal.Decimal

// Set 写入指标
func (ind Indicators) Set(name string, v decimal.Decimal) {
	ind[name] = v
}

// SetFlag 写入布尔型指标
func (ind Indicators) SetFlag(name string, v bool) {
	if v {
		ind[name] = decimal.NewFromInt(1)
		return
	}
	ind[name] = decimal.Zero
}

// Get 读取指标
func (ind Indicators) Get(name string) (decimal.Decimal, bool) {
	v, ok := ind[name]
	return v, ok
}

// Value 读取指标，不存在时返回 fallback
func (ind Indicators) Value(name string, fallback decimal.Decimal) decimal.Decimal {
	if v, ok := ind[name]; ok {
		return v
	}
	return fallback
}

// Flag 读取布尔型指标
func (ind Indicators) Flag(name string) bool {
	v, ok := ind[name]
	return ok && !v.IsZero()
}

// Merge 以 prefix_ 为前缀合并子策略的指标
func (ind Indicators) Merge(prefix string, other Indicators) {
	for k, v := range other {
		if prefix == "" {
			ind[k] = v
			continue
		}
		ind[prefix+"_"+k] = v
	}
}

// Sub 取出 prefix_ 开头的指标并去掉前缀
func (ind Indicators) Sub(prefix string) Indicators {
	out := Indicators{}
	p := prefix + "_"
	for k, v := range ind {
		if len(k) > len(p) && k[:len(p)] == p {
			out[k[len(p):]] = v
		}
	}
	return out
}

// Clone 拷贝
func (ind Indicators) Clone() Indicators {
	out := make(Indicators, len(ind))
	for k, v := range ind {
		out[k] = v
	}
	return out
}

// Names 排序后的指标名
func (ind Indicators) Names() []string {
	names := make([]string, 0, len(ind))
	for k := range ind {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}
