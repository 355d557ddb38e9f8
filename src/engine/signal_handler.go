package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/xpwu/go-log/log"

	"signalengine/src/strategy"
)

// SignalHandler 信号处理器接口
type SignalHandler interface {
	// HandleSignal 处理一次评估结果
	HandleSignal(ctx context.Context, rec strategy.SignalRecord) error
}

// SignalHandlerFunc 函数形式的处理器
type SignalHandlerFunc func(ctx context.Context, rec strategy.SignalRecord) error

func (f SignalHandlerFunc) HandleSignal(ctx context.Context, rec strategy.SignalRecord) error {
	return f(ctx, rec)
}

// SignalHandlerRegistry 信号处理器注册表，同一信号可挂多个处理器
type SignalHandlerRegistry struct {
	handlers map[strategy.Signal][]SignalHandler
}

// NewSignalHandlerRegistry 创建信号处理器注册表
func NewSignalHandlerRegistry() *SignalHandlerRegistry {
	return &SignalHandlerRegistry{
		handlers: make(map[strategy.Signal][]SignalHandler),
	}
}

// RegisterHandler 注册信号处理器
func (r *SignalHandlerRegistry) RegisterHandler(signal strategy.Signal, handler SignalHandler) {
	r.handlers[signal] = append(r.handlers[signal], handler)
}

// RegisterAll 为全部信号注册同一个处理器
func (r *SignalHandlerRegistry) RegisterAll(handler SignalHandler) {
	for _, s := range []strategy.Signal{strategy.SignalBuy, strategy.SignalSell, strategy.SignalHold} {
		r.RegisterHandler(s, handler)
	}
}

// HandleSignal 依次调用处理器，返回所有失败
func (r *SignalHandlerRegistry) HandleSignal(ctx context.Context, rec strategy.SignalRecord) error {
	var errs []error
	for _, h := range r.handlers[rec.Signal] {
		if err := h.HandleSignal(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// LogSignalHandler 记录买卖信号
type LogSignalHandler struct{}

func (LogSignalHandler) HandleSignal(ctx context.Context, rec strategy.SignalRecord) error {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Signal")

	logger.Info("策略信号",
		"strategy", rec.Strategy,
		"symbol", rec.Symbol,
		"signal", rec.Signal,
		"confidence", rec.Confidence.StringFixed(4),
		"price", rec.Price.String(),
		"reason", rec.Reason())
	return nil
}

// SignalJournal 信号流水存储
type SignalJournal interface {
	SaveSignal(ctx context.Context, rec strategy.SignalRecord) error
}

// JournalSignalHandler 将信号写入流水
type JournalSignalHandler struct {
	journal SignalJournal
}

// NewJournalSignalHandler 创建流水处理器
func NewJournalSignalHandler(journal SignalJournal) *JournalSignalHandler {
	return &JournalSignalHandler{journal: journal}
}

func (h *JournalSignalHandler) HandleSignal(ctx context.Context, rec strategy.SignalRecord) error {
	if err := h.journal.SaveSignal(ctx, rec); err != nil {
		return fmt.Errorf("failed to journal signal: %w", err)
	}
	return nil
}
