package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"

	"signalengine/src/market"
	"signalengine/src/metrics"
	"signalengine/src/strategies"
	"signalengine/src/strategy"
)

var ErrNotActive = errors.New("strategy instance is not active")

// ParameterStore 策略定义来源
type ParameterStore interface {
	LoadDefinitions(ctx context.Context) ([]strategy.Definition, error)
}

// DefinitionStore 策略定义的持久化，可选
type DefinitionStore interface {
	SaveDefinition(ctx context.Context, def strategy.Definition) (int64, error)
	UpdateStatus(ctx context.Context, id int64, status strategy.Status) error
}

// Service 持有策略实例、行情来源与执行状态存储
type Service struct {
	registry    *strategies.Registry
	provider    market.Provider
	states      strategy.StateStore
	definitions DefinitionStore
	handlers    *SignalHandlerRegistry
	metrics     *metrics.Metrics
	candleLimit int
	locks       *keyedMutex
}

// Option 服务选项
type Option func(*Service)

// WithMetrics 记录评估指标
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithHandlers 评估后分发信号
func WithHandlers(h *SignalHandlerRegistry) Option {
	return func(s *Service) { s.handlers = h }
}

// WithDefinitionStore 状态与参数变更写回存储
func WithDefinitionStore(d DefinitionStore) Option {
	return func(s *Service) { s.definitions = d }
}

// WithCandleLimit 每次评估至少拉取的K线数
func WithCandleLimit(n int) Option {
	return func(s *Service) { s.candleLimit = n }
}

// NewService 创建服务
func NewService(registry *strategies.Registry, provider market.Provider, states strategy.StateStore, opts ...Option) *Service {
	s := &Service{
		registry:    registry,
		provider:    provider,
		states:      states,
		handlers:    NewSignalHandlerRegistry(),
		candleLimit: 200,
		locks:       newKeyedMutex(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry 实例注册表
func (s *Service) Registry() *strategies.Registry {
	return s.registry
}

// LoadInstances 构建并注册全部定义，按定义中的状态激活或暂停
//
// 单条定义失败不影响其余定义，全部失败原因合并返回。
func (s *Service) LoadInstances(ctx context.Context, store ParameterStore) (int, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Engine")

	defs, err := store.LoadDefinitions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to load strategy definitions: %w", err)
	}

	var (
		loaded int
		errs   []error
	)
	for _, def := range defs {
		want := def.Status
		def.Status = strategy.StatusInactive
		inst, err := strategies.Build(def)
		if err != nil {
			logger.Error("策略构建失败", "id", def.ID, "type", def.Type, "error", err)
			errs = append(errs, fmt.Errorf("strategy %d: %w", def.ID, err))
			continue
		}
		if err := restoreStatus(ctx, inst, want); err != nil {
			logger.Error("策略状态恢复失败", "id", def.ID, "status", want, "error", err)
			errs = append(errs, fmt.Errorf("strategy %d: %w", def.ID, err))
		}
		s.registry.Put(inst)
		loaded++
	}

	s.refreshActive()
	logger.Info("策略实例加载完成", "loaded", loaded, "failed", len(errs))
	return loaded, errors.Join(errs...)
}

// restoreStatus 恢复持久化的状态，PAUSED 需先通过激活校验
func restoreStatus(ctx context.Context, inst strategies.Instance, status strategy.Status) error {
	switch status {
	case strategy.StatusActive:
		return inst.Activate(ctx)
	case strategy.StatusPaused:
		if err := inst.Activate(ctx); err != nil {
			return err
		}
		return inst.Pause(ctx)
	case strategy.StatusInactive, "":
		return nil
	}
	return fmt.Errorf("invalid strategy status: %s", status)
}

// transition 运行期的状态迁移
func transition(ctx context.Context, inst strategies.Instance, status strategy.Status) error {
	switch status {
	case strategy.StatusActive:
		return inst.Activate(ctx)
	case strategy.StatusPaused:
		return inst.Pause(ctx)
	case strategy.StatusInactive:
		inst.Deactivate(ctx)
		return nil
	}
	return fmt.Errorf("invalid strategy status: %s", status)
}

// SetStatus 迁移实例状态并写回存储
func (s *Service) SetStatus(ctx context.Context, id int64, status strategy.Status) error {
	inst, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	if err := transition(ctx, inst, status); err != nil {
		return err
	}
	s.refreshActive()
	if s.definitions != nil {
		return s.definitions.UpdateStatus(ctx, id, inst.Status())
	}
	return nil
}

// UpdateParameters 更新实例参数并写回存储
func (s *Service) UpdateParameters(ctx context.Context, id int64, params strategy.Params) error {
	inst, err := s.registry.Get(id)
	if err != nil {
		return err
	}
	if err := inst.UpdateParameters(ctx, params); err != nil {
		return err
	}
	if s.definitions != nil {
		if _, err := s.definitions.SaveDefinition(ctx, inst.Definition()); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) refreshActive() {
	n := 0
	for _, id := range s.registry.IDs() {
		if inst, err := s.registry.Get(id); err == nil && inst.IsActive() {
			n++
		}
	}
	s.metrics.SetActiveStrategies(n)
}

func (s *Service) candles(ctx context.Context, inst strategies.Instance, symbol string) ([]market.Candle, error) {
	limit := s.candleLimit
	if need := inst.MinimumDataPoints(); need > limit {
		limit = need
	}
	def := inst.Definition()
	candles, err := s.provider.GetCandles(ctx, symbol, string(def.Timeframe), limit)
	if err != nil {
		return nil, &strategy.ExecutionError{Strategy: def.Name, Err: fmt.Errorf("failed to load candles: %w", err)}
	}
	return candles, nil
}

// Analyze 用最新K线评估一个买入实例
func (s *Service) Analyze(ctx context.Context, id int64, symbol string) (strategy.SignalRecord, error) {
	e, err := s.registry.Entry(id)
	if err != nil {
		return strategy.SignalRecord{}, err
	}
	if !e.IsActive() {
		return strategy.SignalRecord{}, fmt.Errorf("%w: %s", ErrNotActive, e.Name())
	}

	start := time.Now()
	candles, err := s.candles(ctx, e, symbol)
	if err != nil {
		s.metrics.ObserveError(e.Name(), metrics.KindData)
		return strategy.SignalRecord{}, err
	}
	rec, err := s.analyze(ctx, e, symbol, candles)
	s.metrics.ObserveDuration(string(strategy.FamilyEntry), start)
	return rec, err
}

func (s *Service) analyze(ctx context.Context, e *strategy.Entry, symbol string, candles []market.Candle) (strategy.SignalRecord, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Engine")

	rec, err := e.Analyze(ctx, symbol, candles)
	if err != nil {
		s.metrics.ObserveError(e.Name(), errorKind(err))
		return rec, err
	}
	s.dispatch(ctx, e.Definition().Type, rec)
	logger.Debug("买入评估完成", "strategy", e.Name(), "symbol", symbol,
		"signal", rec.Signal, "confidence", rec.Confidence.StringFixed(4))
	return rec, nil
}

// AnalyzeAll 评估全部 ACTIVE 买入实例，单个失败不中断其余实例
func (s *Service) AnalyzeAll(ctx context.Context, symbol string) ([]strategy.SignalRecord, error) {
	var (
		records []strategy.SignalRecord
		errs    []error
	)
	for _, e := range s.registry.ActiveEntries() {
		rec, err := s.Analyze(ctx, e.ID(), symbol)
		if err != nil {
			errs = append(errs, fmt.Errorf("strategy %d: %w", e.ID(), err))
			continue
		}
		records = append(records, rec)
	}
	return records, errors.Join(errs...)
}

// Run 在数据流的每个窗口上评估全部 ACTIVE 买入实例，直到数据流结束
//
// 数据不足的窗口跳过，其余错误记录日志后继续。
func (s *Service) Run(ctx context.Context, symbol string, feed DataFeed) (int, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Engine")
	defer feed.Stop()

	evaluated := 0
	for {
		window, err := feed.Next(ctx)
		if err != nil {
			return evaluated, err
		}
		if window == nil {
			return evaluated, nil
		}
		for _, e := range s.registry.ActiveEntries() {
			if len(window) < e.MinimumDataPoints() {
				continue
			}
			if _, err := s.analyze(ctx, e, symbol, window); err != nil {
				logger.Error("评估失败", "strategy", e.Name(), "error", err)
				continue
			}
			evaluated++
		}
	}
}

// OpenPosition 为卖出实例登记新持仓并初始化执行状态
func (s *Service) OpenPosition(ctx context.Context, id int64, symbol string, entryPrice decimal.Decimal, entryTime time.Time) (strategy.Position, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Engine")

	x, err := s.registry.Exit(id)
	if err != nil {
		return strategy.Position{}, err
	}
	if !entryPrice.IsPositive() {
		return strategy.Position{}, fmt.Errorf("entry price must be > 0, got %s", entryPrice)
	}

	pos := strategy.Position{
		ID:         uuid.NewString(),
		Symbol:     symbol,
		EntryPrice: entryPrice,
		EntryTime:  entryTime,
	}
	key := strategy.StateKey{InstanceID: id, PositionID: pos.ID}
	if err := s.states.SaveState(ctx, key, strategy.NewExecutionState(entryPrice, entryTime)); err != nil {
		s.metrics.ObserveError(x.Name(), metrics.KindState)
		return strategy.Position{}, err
	}

	s.metrics.PositionOpened()
	logger.Info("持仓已登记", "strategy", x.Name(), "position", pos.ID, "symbol", symbol, "entry_price", entryPrice.String())
	return pos, nil
}

// EvaluateExit 读取执行状态、评估、写回新状态；同一持仓的评估串行执行
func (s *Service) EvaluateExit(ctx context.Context, id int64, pos strategy.Position) (strategy.SignalRecord, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Engine")

	x, err := s.registry.Exit(id)
	if err != nil {
		return strategy.SignalRecord{}, err
	}
	if !x.IsActive() {
		return strategy.SignalRecord{}, fmt.Errorf("%w: %s", ErrNotActive, x.Name())
	}

	key := strategy.StateKey{InstanceID: id, PositionID: pos.ID}
	unlock := s.locks.Lock(key)
	defer unlock()

	start := time.Now()
	defer s.metrics.ObserveDuration(string(strategy.FamilyExit), start)

	state, _, err := s.states.LoadState(ctx, key)
	if err != nil {
		s.metrics.ObserveError(x.Name(), metrics.KindState)
		return strategy.SignalRecord{}, err
	}

	candles, err := s.candles(ctx, x, pos.Symbol)
	if err != nil {
		s.metrics.ObserveError(x.Name(), metrics.KindData)
		return strategy.SignalRecord{}, err
	}
	if !pos.EntryTime.IsZero() {
		pos.HoldingPeriod = strategy.HoldingPeriods(candles, pos.EntryTime)
	}

	rec, next, err := x.EvaluateExit(ctx, pos.Symbol, pos, candles, state)
	if err != nil {
		s.metrics.ObserveError(x.Name(), errorKind(err))
		return rec, err
	}
	if err := s.states.SaveState(ctx, key, next); err != nil {
		s.metrics.ObserveError(x.Name(), metrics.KindState)
		return rec, err
	}

	s.dispatch(ctx, x.Definition().Type, rec)
	logger.Debug("卖出评估完成", "strategy", x.Name(), "position", pos.ID,
		"signal", rec.Signal, "confidence", rec.Confidence.StringFixed(4))
	return rec, nil
}

// ResetExecutionState 清空持仓的分批档位与最高价
func (s *Service) ResetExecutionState(ctx context.Context, id int64, positionID string) error {
	x, err := s.registry.Exit(id)
	if err != nil {
		return err
	}
	key := strategy.StateKey{InstanceID: id, PositionID: positionID}
	unlock := s.locks.Lock(key)
	defer unlock()

	state, ok, err := s.states.LoadState(ctx, key)
	if err != nil || !ok {
		return err
	}
	return s.states.SaveState(ctx, key, x.ResetExecutionState(state))
}

// ClosePosition 删除持仓的执行状态
func (s *Service) ClosePosition(ctx context.Context, id int64, positionID string) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Engine")

	key := strategy.StateKey{InstanceID: id, PositionID: positionID}
	unlock := s.locks.Lock(key)
	defer unlock()

	if err := s.states.DeleteState(ctx, key); err != nil {
		return err
	}
	s.metrics.PositionClosed()
	logger.Info("持仓已关闭", "instance", id, "position", positionID)
	return nil
}

// Statistics 全部实例的信号统计，按ID升序
func (s *Service) Statistics() []strategy.Statistics {
	var out []strategy.Statistics
	for _, id := range s.registry.IDs() {
		if inst, err := s.registry.Get(id); err == nil {
			out = append(out, inst.Statistics())
		}
	}
	return out
}

func (s *Service) dispatch(ctx context.Context, typ strategy.Type, rec strategy.SignalRecord) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Engine")

	s.metrics.ObserveSignal(rec.Strategy, string(typ), string(rec.Signal))
	if s.handlers == nil {
		return
	}
	if err := s.handlers.HandleSignal(ctx, rec); err != nil {
		logger.Error("信号处理失败", "strategy", rec.Strategy, "signal", rec.Signal, "error", err)
	}
}

func errorKind(err error) string {
	var (
		calc       *strategy.CalculationError
		validation *strategy.ValidationError
	)
	switch {
	case errors.Is(err, strategy.ErrInsufficientData):
		return metrics.KindInsufficientData
	case errors.As(err, &calc):
		return metrics.KindCalculation
	case errors.As(err, &validation):
		return metrics.KindValidation
	}
	return metrics.KindData
}
