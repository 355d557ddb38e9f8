package strategies

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"signalengine/src/strategies/entry"
	"signalengine/src/strategies/exit"
	"signalengine/src/strategy"
)

var ErrUnsupportedType = errors.New("unsupported strategy type")

// Instance 买入/卖出实例的公共能力
type Instance interface {
	ID() int64
	Name() string
	Definition() strategy.Definition
	Status() strategy.Status
	IsActive() bool
	MinimumDataPoints() int
	Validate() error
	Activate(ctx context.Context) error
	Pause(ctx context.Context) error
	Deactivate(ctx context.Context)
	UpdateParameters(ctx context.Context, params strategy.Params) error
	Statistics() strategy.Statistics
	ResetStatistics()
}

// builder 某个类型的构造方式与默认参数
type builder struct {
	entry    strategy.EntryBuilder
	exit     strategy.ExitBuilder
	defaults func() any
}

func entryOf[R strategy.EntryRule](f func(strategy.Params) (R, error)) strategy.EntryBuilder {
	return func(p strategy.Params) (strategy.EntryRule, error) {
		r, err := f(p)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

func exitOf[R strategy.ExitRule](f func(strategy.Params) (R, error)) strategy.ExitBuilder {
	return func(p strategy.Params) (strategy.ExitRule, error) {
		r, err := f(p)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

func builderOf(typ strategy.Type) (builder, error) {
	switch typ {
	case strategy.TypeRSIEntry:
		return builder{entry: entryOf(entry.NewRSI), defaults: func() any { return entry.DefaultRSIParams() }}, nil
	case strategy.TypeMACDEntry:
		return builder{entry: entryOf(entry.NewMACD), defaults: func() any { return entry.DefaultMACDParams() }}, nil
	case strategy.TypeBollingerEntry:
		return builder{entry: entryOf(entry.NewBollinger), defaults: func() any { return entry.DefaultBollingerParams() }}, nil
	case strategy.TypeMACrossEntry:
		return builder{entry: entryOf(entry.NewMACross), defaults: func() any { return entry.DefaultMACrossParams() }}, nil
	case strategy.TypeStochasticEntry:
		return builder{entry: entryOf(entry.NewStochastic), defaults: func() any { return entry.DefaultStochasticParams() }}, nil
	case strategy.TypeMultiIndicatorEntry:
		return builder{entry: entryOf(entry.NewMultiIndicator), defaults: func() any { return entry.DefaultMultiIndicatorParams() }}, nil
	case strategy.TypeHybridEntry:
		return builder{entry: entryOf(entry.NewHybrid), defaults: func() any { return entry.DefaultHybridParams() }}, nil

	case strategy.TypeFixedTargetExit:
		return builder{exit: exitOf(exit.NewFixedTarget), defaults: func() any { return exit.DefaultFixedTargetParams() }}, nil
	case strategy.TypeLadderExit:
		return builder{exit: exitOf(exit.NewLadder), defaults: func() any { return exit.DefaultLadderParams() }}, nil
	case strategy.TypeTrailingStopExit:
		return builder{exit: exitOf(exit.NewTrailingStop), defaults: func() any { return exit.DefaultTrailingStopParams() }}, nil
	case strategy.TypeRSIExit:
		return builder{exit: exitOf(exit.NewRSI), defaults: func() any { return exit.DefaultRSIParams() }}, nil
	case strategy.TypeMACDExit:
		return builder{exit: exitOf(exit.NewMACD), defaults: func() any { return exit.DefaultMACDParams() }}, nil
	case strategy.TypeMACrossExit:
		return builder{exit: exitOf(exit.NewMACross), defaults: func() any { return exit.DefaultMACrossParams() }}, nil
	case strategy.TypeStochasticExit:
		return builder{exit: exitOf(exit.NewStochastic), defaults: func() any { return exit.DefaultStochasticParams() }}, nil
	case strategy.TypeBollingerExit:
		return builder{exit: exitOf(exit.NewBollinger), defaults: func() any { return exit.DefaultBollingerParams() }}, nil
	case strategy.TypeATRStopExit:
		return builder{exit: exitOf(exit.NewATRStop), defaults: func() any { return exit.DefaultATRStopParams() }}, nil
	case strategy.TypeTimeBasedExit:
		return builder{exit: exitOf(exit.NewTimeBased), defaults: func() any { return exit.DefaultTimeBasedParams() }}, nil
	case strategy.TypeMultiConditionExit:
		return builder{exit: exitOf(exit.NewMultiCondition), defaults: func() any { return exit.DefaultMultiConditionParams() }}, nil
	case strategy.TypeHybridExit:
		return builder{exit: exitOf(exit.NewHybrid), defaults: func() any { return exit.DefaultHybridParams() }}, nil
	}
	return builder{}, fmt.Errorf("%w: %s", ErrUnsupportedType, typ)
}

// Build 按类型创建策略实例，返回 *strategy.Entry 或 *strategy.Exit
func Build(def strategy.Definition) (Instance, error) {
	b, err := builderOf(def.Type)
	if err != nil {
		return nil, err
	}
	if b.entry != nil {
		e, err := strategy.NewEntry(def, b.entry)
		if err != nil {
			return nil, err
		}
		return e, nil
	}
	x, err := strategy.NewExit(def, b.exit)
	if err != nil {
		return nil, err
	}
	return x, nil
}

// BuildEntry 创建买入实例，类型必须属于买入族
func BuildEntry(def strategy.Definition) (*strategy.Entry, error) {
	b, err := builderOf(def.Type)
	if err != nil {
		return nil, err
	}
	if b.entry == nil {
		return nil, fmt.Errorf("%w: %s is not an entry type", strategy.ErrFamilyMismatch, def.Type)
	}
	return strategy.NewEntry(def, b.entry)
}

// BuildExit 创建卖出实例，类型必须属于卖出族
func BuildExit(def strategy.Definition) (*strategy.Exit, error) {
	b, err := builderOf(def.Type)
	if err != nil {
		return nil, err
	}
	if b.exit == nil {
		return nil, fmt.Errorf("%w: %s is not an exit type", strategy.ErrFamilyMismatch, def.Type)
	}
	return strategy.NewExit(def, b.exit)
}

// SupportedTypes 支持的策略类型，买入在前
func SupportedTypes() []strategy.Type {
	return append(strategy.EntryTypes(), strategy.ExitTypes()...)
}

// DefaultParameters 某类型的默认参数
func DefaultParameters(typ strategy.Type) (strategy.Params, error) {
	b, err := builderOf(typ)
	if err != nil {
		return nil, err
	}
	return strategy.ParamsOf(b.defaults())
}

// ParameterNames 默认参数的键，按字母序
func ParameterNames(typ strategy.Type) ([]string, error) {
	params, err := DefaultParameters(typ)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(params))
	for k := range params {
		names = append(names, k)
	}
	sort.Strings(names)
	return names, nil
}
