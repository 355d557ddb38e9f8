package exit

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"signalengine/src/market"
	"signalengine/src/strategy"
)

// 日期时间约束模式
const (
	DatetimeAbsolute = "absolute"
	DatetimeRelative = "relative"
)

// TimeBasedParams 持仓时间卖出参数
type TimeBasedParams struct {
	Common
	HoldingPeriods int              `json:"holding_periods"`
	HoldingHours   *decimal.Decimal `json:"holding_hours"` // 设置时优先于 holding_periods
	ForceExit      bool             `json:"force_exit"`    // 亏损时也卖出

	UseDatetimeConstraint bool            `json:"use_datetime_constraint"`
	DatetimeMode          string          `json:"datetime_mode"`
	AbsoluteExitDatetime  *time.Time      `json:"absolute_exit_datetime"`
	RelativeExitDays      decimal.Decimal `json:"relative_exit_days"`
	RelativeExitHours     decimal.Decimal `json:"relative_exit_hours"`
}

func DefaultTimeBasedParams() TimeBasedParams {
	c := DefaultCommon()
	c.MinConfidence = d(0.6)
	c.MaxLossPct = d(-10)
	return TimeBasedParams{
		Common:         c,
		HoldingPeriods: 24,
		DatetimeMode:   DatetimeRelative,
	}
}

// TimeBased 持仓达到指定K线数、小时数或日期时间后卖出
type TimeBased struct {
	p TimeBasedParams
}

func NewTimeBased(params strategy.Params) (*TimeBased, error) {
	p := DefaultTimeBasedParams()
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	return &TimeBased{p: p}, nil
}

func (s *TimeBased) Params() TimeBasedParams { return s.p }

func (s *TimeBased) ExitOptions() strategy.ExitOptions { return s.p.options() }

func (s *TimeBased) MinimumDataPoints() int { return 1 }

func (s *TimeBased) Violations() []string {
	v := s.p.violations()
	if s.p.HoldingPeriods < 1 {
		v = append(v, fmt.Sprintf("holding_periods must be >= 1, got %d", s.p.HoldingPeriods))
	}
	if s.p.HoldingHours != nil && s.p.HoldingHours.LessThan(d(0.1)) {
		v = append(v, fmt.Sprintf("holding_hours must be >= 0.1, got %s", s.p.HoldingHours))
	}
	if !s.p.UseDatetimeConstraint {
		return v
	}

	switch s.p.DatetimeMode {
	case DatetimeAbsolute:
		if s.p.AbsoluteExitDatetime == nil {
			v = append(v, "absolute_exit_datetime is required in absolute mode")
		}
	case DatetimeRelative:
		if s.p.RelativeExitDays.IsNegative() || s.p.RelativeExitHours.IsNegative() {
			v = append(v, "relative_exit_days and relative_exit_hours must be >= 0")
		}
		if !s.p.RelativeExitDays.IsPositive() && !s.p.RelativeExitHours.IsPositive() {
			v = append(v, "relative mode requires relative_exit_days or relative_exit_hours > 0")
		}
	default:
		v = append(v, fmt.Sprintf("datetime_mode must be absolute or relative, got %q", s.p.DatetimeMode))
	}
	return v
}

func (s *TimeBased) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	return strategy.Indicators{"current_price": lastClose(candles)}, nil
}

func (s *TimeBased) CheckExitCondition(ctx context.Context, in *strategy.ExitInput) strategy.ExitDecision {
	var base decimal.Decimal
	var reason string

	if s.p.UseDatetimeConstraint {
		if in.Position.EntryTime.IsZero() {
			return notMet("entry time required for datetime constraint")
		}
		target := s.ExitTime(in.Position.EntryTime)
		if in.Now.Before(target) {
			return notMet("exit time not reached (%s remaining)", target.Sub(in.Now).Round(time.Minute))
		}
		base = d(0.85)
		reason = fmt.Sprintf("exit time reached (%s)", target.Format(time.RFC3339))
	} else {
		holding := in.Position.HoldingPeriod
		required := s.p.HoldingPeriods
		divisor := decimal.NewFromInt(int64(required))
		if s.p.HoldingHours != nil {
			required = int(s.p.HoldingHours.IntPart())
			divisor = *s.p.HoldingHours
		}
		if holding < required {
			return notMet("holding period not reached (%d/%d)", holding, required)
		}
		ratio := decimal.NewFromInt(int64(holding)).Div(divisor)
		base = decimal.Min(d(0.7).Add(ratio.Sub(strategy.One).Mul(d(0.1))), d(0.95))
		reason = fmt.Sprintf("holding period exceeded (%d candles, %.1f hours)",
			holding, float64(holding)*in.Timeframe.Hours())
	}

	pnl := in.ProfitPct
	if !s.p.ForceExit && pnl.LessThan(s.p.MinProfitPct) {
		return notMet("profit %s%% below minimum %s%%", pct(pnl), pct(s.p.MinProfitPct))
	}

	switch {
	case pnl.IsPositive():
		base = base.Mul(d(1.1))
	case pnl.LessThan(d(-5)):
		base = base.Mul(d(1.2))
	default:
		base = base.Mul(d(0.9))
	}
	return sell(strategy.Cap1(base), "%s, profit %s%%", reason, pct(pnl))
}

// ExitTime 日期时间约束下的卖出时间
func (s *TimeBased) ExitTime(entry time.Time) time.Time {
	if s.p.DatetimeMode == DatetimeAbsolute && s.p.AbsoluteExitDatetime != nil {
		return *s.p.AbsoluteExitDatetime
	}
	hours := s.p.RelativeExitDays.Mul(decimal.NewFromInt(24)).Add(s.p.RelativeExitHours)
	return entry.Add(time.Duration(hours.Mul(decimal.NewFromInt(int64(time.Hour))).IntPart()))
}
