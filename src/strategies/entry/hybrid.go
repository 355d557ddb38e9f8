package entry

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"

	"signalengine/src/indicators"
	"signalengine/src/market"
	"signalengine/src/strategy"
)

// 组合策略的组件名
const (
	ComponentMACD       = "macd"
	ComponentStochastic = "stochastic"
	ComponentRSI        = "rsi"
	ComponentVolume     = "volume"
)

// HybridParams 组合买入参数
type HybridParams struct {
	Common
	StrategyWeights map[string]decimal.Decimal `json:"strategy_weights"`

	MACDFast   int `json:"macd_fast"`
	MACDSlow   int `json:"macd_slow"`
	MACDSignal int `json:"macd_signal"`

	StochK        int             `json:"stoch_k"`
	StochD        int             `json:"stoch_d"`
	StochSmooth   int             `json:"stoch_smooth"`
	StochOversold decimal.Decimal `json:"stoch_oversold"`

	RSIPeriod   int             `json:"rsi_period"`
	RSIOversold decimal.Decimal `json:"rsi_oversold"`

	BuyThreshold decimal.Decimal `json:"buy_threshold"`
}

func DefaultHybridParams() HybridParams {
	c := DefaultCommon()
	c.MinConfidence = d(0.7)
	c.VolumeCheck = false
	c.VolumeThreshold = d(1.5)
	return HybridParams{
		Common: c,
		StrategyWeights: map[string]decimal.Decimal{
			ComponentMACD:       d(0.35),
			ComponentStochastic: d(0.30),
			ComponentRSI:        d(0.20),
			ComponentVolume:     d(0.15),
		},
		MACDFast:      12,
		MACDSlow:      26,
		MACDSignal:    9,
		StochK:        14,
		StochD:        3,
		StochSmooth:   3,
		StochOversold: d(20),
		RSIPeriod:     14,
		RSIOversold:   d(30),
		BuyThreshold:  d(0.65),
	}
}

// Hybrid MACD、随机指标、RSI、成交量加权打分，得分达到阈值即买入
type Hybrid struct {
	p     HybridParams
	macd  *MACD
	stoch *Stochastic
}

func NewHybrid(params strategy.Params) (*Hybrid, error) {
	p := DefaultHybridParams()
	// 权重整体替换而不是逐项合并
	if _, ok := params["strategy_weights"]; ok {
		p.StrategyWeights = nil
	}
	if err := params.Decode(&p); err != nil {
		return nil, err
	}
	if err := strategy.NewValidationError(string(strategy.TypeHybridEntry), strategy.WeightViolations(p.StrategyWeights)); err != nil {
		return nil, err
	}

	macdParams := DefaultMACDParams()
	macdParams.FastPeriod, macdParams.SlowPeriod, macdParams.SignalPeriod = p.MACDFast, p.MACDSlow, p.MACDSignal
	macdParams.MinConfidence = strategy.Half

	stochParams := DefaultStochasticParams()
	stochParams.KPeriod, stochParams.DPeriod, stochParams.Smooth = p.StochK, p.StochD, p.StochSmooth
	stochParams.Oversold = p.StochOversold
	stochParams.MinConfidence = strategy.Half

	return &Hybrid{
		p:     p,
		macd:  &MACD{p: macdParams},
		stoch: &Stochastic{p: stochParams},
	}, nil
}

func (s *Hybrid) Params() HybridParams { return s.p }

func (s *Hybrid) EntryOptions() strategy.EntryOptions { return s.p.options() }

func (s *Hybrid) Threshold() decimal.Decimal { return s.p.BuyThreshold }

func (s *Hybrid) Weights() map[string]decimal.Decimal {
	out := make(map[string]decimal.Decimal, len(s.p.StrategyWeights))
	for k, v := range s.p.StrategyWeights {
		out[k] = v
	}
	return out
}

// Components 参与打分的组件，按字母序
func (s *Hybrid) Components() []string {
	names := make([]string, 0, len(s.p.StrategyWeights))
	for name := range s.p.StrategyWeights {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Details 权重、阈值与子策略
func (s *Hybrid) Details() map[string]any {
	weights := make(map[string]float64, len(s.p.StrategyWeights))
	for k, v := range s.p.StrategyWeights {
		weights[k] = v.InexactFloat64()
	}
	return map[string]any{
		"weights":        weights,
		"buy_threshold":  s.p.BuyThreshold.InexactFloat64(),
		"sub_strategies": []string{"hybrid_macd_entry", "hybrid_stochastic_entry"},
	}
}

func (s *Hybrid) MinimumDataPoints() int {
	return maxInt(30, s.macd.MinimumDataPoints(), s.stoch.MinimumDataPoints())
}

func (s *Hybrid) Violations() []string {
	v := s.p.violations()
	v = append(v, strategy.WeightViolations(s.p.StrategyWeights)...)
	if !s.p.BuyThreshold.IsPositive() || s.p.BuyThreshold.GreaterThanOrEqual(strategy.One) {
		v = append(v, fmt.Sprintf("buy_threshold must be within (0, 1), got %s", s.p.BuyThreshold))
	}
	for _, sub := range s.macd.Violations() {
		v = append(v, "macd: "+sub)
	}
	for _, sub := range s.stoch.Violations() {
		v = append(v, "stochastic: "+sub)
	}
	return v
}

// CalculateIndicators 子策略失败时记录日志，该组件按空指标处理
func (s *Hybrid) CalculateIndicators(ctx context.Context, candles []market.Candle) (strategy.Indicators, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("HybridEntry")

	ind := strategy.Indicators{}
	if s.weighted(ComponentMACD) {
		sub, err := s.macd.CalculateIndicators(ctx, candles)
		if err != nil {
			logger.Error("子策略指标计算失败", "component", ComponentMACD, "error", err)
			sub = nil
		}
		ind.SetFlag(ComponentMACD+"_ok", err == nil)
		ind.Merge(ComponentMACD, sub)
	}
	if s.weighted(ComponentStochastic) {
		sub, err := s.stoch.CalculateIndicators(ctx, candles)
		if err != nil {
			logger.Error("子策略指标计算失败", "component", ComponentStochastic, "error", err)
			sub = nil
		}
		ind.SetFlag(ComponentStochastic+"_ok", err == nil)
		ind.Merge(ComponentStochastic, sub)
	}
	if s.weighted(ComponentRSI) {
		rsi, err := indicators.RSI(market.Closes(candles), s.p.RSIPeriod)
		if err != nil {
			return nil, strategy.Calc("rsi", err)
		}
		ind["rsi_value"] = rsi[len(rsi)-1]
	}
	if s.weighted(ComponentVolume) {
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

func (s *Hybrid) weighted(component string) bool {
	_, ok := s.p.StrategyWeights[component]
	return ok
}

// Scores 各组件得分，只包含已计算的组件
func (s *Hybrid) Scores(ind strategy.Indicators) map[string]decimal.Decimal {
	scores := map[string]decimal.Decimal{}
	if _, ok := ind[ComponentMACD+"_ok"]; ok {
		scores[ComponentMACD] = macdScore(ind.Sub(ComponentMACD))
	}
	if _, ok := ind[ComponentStochastic+"_ok"]; ok {
		scores[ComponentStochastic] = stochasticScore(ind.Sub(ComponentStochastic))
	}
	if rsi, ok := ind["rsi_value"]; ok {
		scores[ComponentRSI] = s.rsiScore(rsi)
	}
	if ratio, ok := ind["volume_ratio"]; ok {
		scores[ComponentVolume] = s.volumeScore(ratio)
	}
	return scores
}

func (s *Hybrid) CheckEntryCondition(candles []market.Candle, ind strategy.Indicators) (bool, decimal.Decimal) {
	final := strategy.Aggregate(s.Scores(ind), s.p.StrategyWeights)
	return strategy.Decide(final, s.p.BuyThreshold), final
}

func macdScore(ind strategy.Indicators) decimal.Decimal {
	macd, ok := ind["macd"]
	if !ok {
		return strategy.Half
	}
	signal := ind["signal"]
	score := strategy.Half
	if ind.Value("prev_macd", macd).LessThanOrEqual(ind.Value("prev_signal", signal)) && macd.GreaterThan(signal) {
		score = score.Add(d(0.3))
	}
	if ind["histogram"].IsPositive() {
		score = score.Add(d(0.2))
	}
	return strategy.Cap1(score)
}

func stochasticScore(ind strategy.Indicators) decimal.Decimal {
	k, ok := ind["k"]
	if !ok {
		return strategy.Half
	}
	dv := ind["d"]
	twenty := decimal.NewFromInt(20)
	score := strategy.Half
	if ind.Value("prev_k", k).LessThanOrEqual(ind.Value("prev_d", dv)) && k.GreaterThan(dv) {
		score = score.Add(d(0.25))
	}
	if k.LessThan(twenty) {
		score = score.Add(twenty.Sub(k).Div(twenty).Mul(d(0.25)))
	}
	return strategy.Cap1(score)
}

func (s *Hybrid) rsiScore(rsi decimal.Decimal) decimal.Decimal {
	score := strategy.Half
	if rsi.LessThan(s.p.RSIOversold) {
		score = score.Add(s.p.RSIOversold.Sub(rsi).Div(s.p.RSIOversold).Mul(strategy.Half))
	}
	return strategy.Cap1(score)
}

func (s *Hybrid) volumeScore(ratio decimal.Decimal) decimal.Decimal {
	score := strategy.Half
	t := s.p.VolumeThreshold
	if t.IsPositive() && ratio.GreaterThanOrEqual(t) {
		score = score.Add(decimal.Min(ratio.Sub(t).Div(t), strategy.Half))
	}
	return strategy.Cap1(score)
}
