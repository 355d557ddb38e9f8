package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"

	"signalengine/src/market/binance"
)

// RegisterPingCmd 注册ping测试命令
func RegisterPingCmd() {
	var timeout int

	cmd.RegisterCmd("ping", "test connectivity to the exchange candle source", func(args *arg.Arg) {
		args.Int(&timeout, "t", "timeout in seconds (default: 10)")
		args.Parse()

		if timeout <= 0 {
			timeout = 10
		}

		latency, err := runPing(time.Duration(timeout) * time.Second)
		if err != nil {
			fmt.Printf("❌ Ping test failed: %v\n", err)
			return
		}
		fmt.Printf("✅ Ping test successful! 响应延迟 %v, 网络质量: %s\n", latency, latencyGrade(latency))
	})
}

func runPing(timeout time.Duration) (time.Duration, error) {
	provider := binance.NewProvider(binance.ConfigValue)

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	start := time.Now()
	err := provider.Ping(ctx)
	return time.Since(start), err
}

func latencyGrade(latency time.Duration) string {
	switch {
	case latency < 100*time.Millisecond:
		return "优秀"
	case latency < 300*time.Millisecond:
		return "良好"
	case latency < time.Second:
		return "一般"
	}
	return "较差"
}
