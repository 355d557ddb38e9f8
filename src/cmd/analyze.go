package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
	"github.com/xpwu/go-log/log"

	"signalengine/src/config"
	"signalengine/src/engine"
	"signalengine/src/strategy"
)

// RegisterAnalyzeCmd 注册买入评估命令
func RegisterAnalyzeCmd() {
	var symbol string
	var id int
	var verbose bool

	cmd.RegisterCmd("analyze", "evaluate ACTIVE entry strategies against the latest candles", func(args *arg.Arg) {
		args.String(&symbol, "s", "trading symbol (default: first configured symbol)")
		args.Int(&id, "id", "evaluate one strategy instance only")
		args.Bool(&verbose, "v", "print indicator values")
		args.Parse()

		if symbol == "" {
			symbol = defaultSymbol()
		}
		if err := runAnalyze(strings.ToUpper(symbol), int64(id), verbose); err != nil {
			fmt.Printf("❌ 评估失败: %v\n", err)
		}
	})
}

func runAnalyze(symbol string, id int64, verbose bool) error {
	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	var records []strategy.SignalRecord
	if id > 0 {
		rec, err := rt.service.Analyze(ctx, id, symbol)
		if err != nil {
			return err
		}
		records = append(records, rec)
	} else {
		records, err = rt.service.AnalyzeAll(ctx, symbol)
		if err != nil {
			// 单个实例失败时仍打印其余结果
			fmt.Printf("⚠️ %v\n", err)
		}
	}

	fmt.Printf("📊 %s 买入评估 (%d 个实例)\n", symbol, len(records))
	fmt.Println("================================")
	for _, rec := range records {
		printRecord(rec, verbose)
	}
	return nil
}

// RegisterRunCmd 注册持续评估命令
func RegisterRunCmd() {
	var symbol string

	cmd.RegisterCmd("run", "poll candles and evaluate ACTIVE entry strategies on every new candle", func(args *arg.Arg) {
		args.String(&symbol, "s", "trading symbol (default: first configured symbol)")
		args.Parse()

		if symbol == "" {
			symbol = defaultSymbol()
		}
		if err := runLoop(strings.ToUpper(symbol)); err != nil {
			fmt.Printf("❌ 运行失败: %v\n", err)
		}
	})
}

func runLoop(symbol string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Run")

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-signalChan
		fmt.Println("\n🔄 Shutting down...")
		cancel()
	}()

	cfg := config.AppConfig
	feed := engine.NewPollingFeed(rt.exchange, symbol, cfg.Engine.Timeframe, cfg.Engine.CandleLimit, cfg.PollInterval())
	logger.Info("开始轮询", "symbol", symbol, "timeframe", cfg.Engine.Timeframe, "interval", cfg.PollInterval().String())

	n, err := rt.service.Run(ctx, symbol, feed)
	logger.Info("轮询结束", "evaluations", n)
	if err != nil && ctx.Err() == nil {
		return err
	}
	return nil
}

func defaultSymbol() string {
	if symbols := config.AppConfig.Engine.Symbols; len(symbols) > 0 {
		return symbols[0]
	}
	return "BTCUSDT"
}

func printRecord(rec strategy.SignalRecord, verbose bool) {
	icon := "➡️"
	switch rec.Signal {
	case strategy.SignalBuy:
		icon = "📈"
	case strategy.SignalSell:
		icon = "📉"
	}
	fmt.Printf("%s [%d] %-20s %-4s 信心 %s%% 价格 %s\n", icon, rec.StrategyID, rec.Strategy, rec.Signal,
		rec.Confidence.Shift(2).StringFixed(1), formatPrice(rec.Price))
	if reason := rec.Reason(); reason != "" {
		fmt.Printf("   └─ %s\n", reason)
	}
	if !verbose {
		return
	}
	names := make([]string, 0, len(rec.Indicators))
	for name := range rec.Indicators {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Printf("      %-24s %s\n", name, rec.Indicators[name].StringFixed(4))
	}
}
