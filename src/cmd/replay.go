package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"
	"github.com/xpwu/go-log/log"

	"signalengine/src/config"
	"signalengine/src/engine"
	"signalengine/src/strategy"
)

// RegisterReplayCmd 注册历史回放命令
func RegisterReplayCmd() {
	var symbol string
	var startDate string
	var endDate string
	var window int

	cmd.RegisterCmd("replay", "replay historical candles through ACTIVE entry strategies", func(args *arg.Arg) {
		args.String(&symbol, "s", "trading symbol (default: first configured symbol)")
		args.String(&startDate, "start", "range start (YYYY-MM-DD HH:MM:SS or YYYY-MM-DD), default: 7 days before end")
		args.String(&endDate, "end", "range end (default: now)")
		args.Int(&window, "w", "candles per evaluation (default: engine candle_limit)")
		args.Parse()

		if symbol == "" {
			symbol = defaultSymbol()
		}
		if err := runReplay(strings.ToUpper(symbol), startDate, endDate, window); err != nil {
			fmt.Printf("❌ 回放失败: %v\n", err)
		}
	})
}

func runReplay(symbol, startDate, endDate string, window int) error {
	end, err := parseTime(endDate, time.Now().UTC())
	if err != nil {
		return err
	}
	start, err := parseTime(startDate, end.AddDate(0, 0, -7))
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("start %s must be before end %s", startDate, end.Format("2006-01-02 15:04:05"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Replay")

	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	cfg := config.AppConfig
	candles, err := rt.exchange.GetCandlesInRange(ctx, symbol, cfg.Engine.Timeframe, start, end)
	if err != nil {
		return err
	}
	if len(candles) == 0 {
		fmt.Println("⚠️ 区间内没有K线")
		return nil
	}

	window = replayWindow(window, cfg.Engine.CandleLimit)
	logger.Info("开始回放", "symbol", symbol, "candles", len(candles), "window", window)

	n, err := rt.service.Run(ctx, symbol, engine.NewReplayFeed(candles, window, 1))
	if err != nil {
		return err
	}

	fmt.Printf("📊 %s 回放 %s ~ %s (%d 根K线, %d 次评估)\n", symbol,
		formatTime(candles[0].Timestamp), formatTime(candles[len(candles)-1].Timestamp), len(candles), n)
	fmt.Println("================================")
	stats := rt.service.Statistics()
	buy, hold := replaySummary(stats)
	for _, st := range stats {
		if st.Total == 0 {
			continue
		}
		fmt.Printf("├─ %-20s 买入 %d / 持有 %d (买入率 %.1f%%)\n", st.Name, st.Buy, st.Hold, st.BuyRatio)
	}
	fmt.Printf("└─ 合计: 买入 %d / 持有 %d\n", buy, hold)
	return nil
}

// replayWindow 未指定时沿用引擎的K线数量
func replayWindow(window, candleLimit int) int {
	if window > 0 {
		return window
	}
	return candleLimit
}

func replaySummary(stats []strategy.Statistics) (buy, hold int) {
	for _, st := range stats {
		buy += st.Buy
		hold += st.Hold
	}
	return buy, hold
}
