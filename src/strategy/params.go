package strategy

import (
	"encoding/json"
	"fmt"
)

// Params 策略参数
type Params map[string]any

// Decode 将参数覆盖到 into 上，into 应已填好默认值
//
// 字段按 json tag 匹配，未出现的键保留默认值。
func (p Params) Decode(into any) error {
	if len(p) == 0 {
		return nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("failed to encode parameters: %w", err)
	}
	if err := json.Unmarshal(raw, into); err != nil {
		return fmt.Errorf("failed to decode parameters: %w", err)
	}
	return nil
}

// Merge 返回合并后的新参数，other 覆盖 p
func (p Params) Merge(other Params) Params {
	out := make(Params, len(p)+len(other))
	for k, v := range p {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// Clone 浅拷贝
func (p Params) Clone() Params {
	return p.Merge(nil)
}

// ParamsOf 将参数结构体转换为 Params
func ParamsOf(v any) (Params, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to encode parameters: %w", err)
	}
	var out Params
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to decode parameters: %w", err)
	}
	return out, nil
}
