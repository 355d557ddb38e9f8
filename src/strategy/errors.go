package strategy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInsufficientData K线数量不足
	ErrInsufficientData = errors.New("insufficient data")

	// ErrInvalidTransition 状态迁移不合法
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrFamilyMismatch 策略类型与实例族不符
	ErrFamilyMismatch = errors.New("strategy family mismatch")
)

// InsufficientDataError 数据不足，errors.Is 可匹配 ErrInsufficientData
type InsufficientDataError struct {
	Strategy string
	Required int
	Provided int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: insufficient data: need %d candles, got %d", e.Strategy, e.Required, e.Provided)
}

func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

// CalculationError 指标计算失败
type CalculationError struct {
	Strategy  string
	Indicator string
	Err       error
}

func (e *CalculationError) Error() string {
	return fmt.Sprintf("%s: failed to calculate %s: %v", e.Strategy, e.Indicator, e.Err)
}

func (e *CalculationError) Unwrap() error {
	return e.Err
}

// ValidationError 参数校验失败，列出全部违规项
type ValidationError struct {
	Strategy   string
	Violations []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid parameters: %s", e.Strategy, strings.Join(e.Violations, "; "))
}

// ExecutionError 评估过程失败
type ExecutionError struct {
	Strategy string
	Err      error
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("%s: execution failed: %v", e.Strategy, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

// NewValidationError 无违规项时返回 nil
func NewValidationError(name string, violations []string) error {
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Strategy: name, Violations: violations}
}

// Calc 包装指标计算错误
func Calc(indicator string, err error) error {
	if err == nil {
		return nil
	}
	return &CalculationError{Indicator: indicator, Err: err}
}
