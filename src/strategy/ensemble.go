package strategy

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

var (
	weightSumMin = D(0.99)
	weightSumMax = D(1.01)
)

// Aggregate 加权平均 Σ(score*w)/Σw，只计入 scores 中存在的组件
//
// Σw 为0时返回0.5。
func Aggregate(scores, weights map[string]decimal.Decimal) decimal.Decimal {
	total := Zero
	weightSum := Zero
	for name, score := range scores {
		w, ok := weights[name]
		if !ok {
			continue
		}
		total = total.Add(score.Mul(w))
		weightSum = weightSum.Add(w)
	}
	if weightSum.IsZero() {
		return Half
	}
	return total.Div(weightSum)
}

// Decide 得分达到阈值(含)即发出信号
func Decide(score, threshold decimal.Decimal) bool {
	return score.GreaterThanOrEqual(threshold)
}

// WeightViolations 校验权重：每项在 [0,1]，总和在 1±0.01
func WeightViolations(weights map[string]decimal.Decimal) []string {
	var out []string
	names := make([]string, 0, len(weights))
	for name := range weights {
		names = append(names, name)
	}
	sort.Strings(names)

	sum := Zero
	for _, name := range names {
		w := weights[name]
		if w.LessThan(Zero) || w.GreaterThan(One) {
			out = append(out, fmt.Sprintf("weight %s must be within [0, 1], got %s", name, w))
		}
		sum = sum.Add(w)
	}
	if sum.LessThan(weightSumMin) || sum.GreaterThan(weightSumMax) {
		out = append(out, fmt.Sprintf("weights must sum to 1.0 (±0.01), got %s", sum))
	}
	return out
}

// checkEnsemble 组合规则的权重在构造时即须合法
func checkEnsemble(name string, rule Strategy) error {
	e, ok := rule.(Ensemble)
	if !ok {
		return nil
	}
	return NewValidationError(name, WeightViolations(e.Weights()))
}

// recovered 把规则中的 panic 转为执行错误
func recovered(name string, r interface{}) error {
	return &ExecutionError{Strategy: name, Err: fmt.Errorf("panic: %v", r)}
}
