package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"

	"signalengine/src/config"
	"signalengine/src/database"
	"signalengine/src/market"
	"signalengine/src/market/binance"
)

// RegisterKlineCmd 注册K线数据查看命令
func RegisterKlineCmd() {
	var symbol string
	var interval string
	var limit int
	var verbose bool
	var startDate string
	var endDate string

	cmd.RegisterCmd("kline", "fetch candles from the configured candle source", func(args *arg.Arg) {
		args.String(&symbol, "s", "trading symbol (default: first configured symbol)")
		args.String(&interval, "i", "kline interval (default: 1h)")
		args.Int(&limit, "l", "number of klines (default: 10, max: 1000)")
		args.Bool(&verbose, "v", "verbose output with detailed information")
		args.String(&startDate, "start", "range start (YYYY-MM-DD HH:MM:SS or YYYY-MM-DD), fetched from the exchange")
		args.String(&endDate, "end", "range end (default: now)")
		args.Parse()

		// 设置默认值
		if symbol == "" {
			symbol = defaultSymbol()
		}
		if interval == "" {
			interval = "1h"
		}
		if limit <= 0 {
			limit = 10
		}
		if limit > 1000 {
			limit = 1000
		}

		symbol = strings.ToUpper(symbol)
		var err error
		if startDate != "" {
			err = runKlineRange(symbol, interval, startDate, endDate, verbose)
		} else {
			err = runKline(symbol, interval, limit, verbose)
		}
		if err != nil {
			fmt.Printf("❌ K线数据获取失败: %v\n", err)
		}
	})
}

func runKline(symbol, interval string, limit int, verbose bool) error {
	exchange := binance.NewProvider(binance.ConfigValue)
	var db *database.PostgresDB
	if config.AppConfig.Engine.CandleSource == config.CandleSourceCached {
		var err error
		if db, err = database.NewPostgresDB(database.GlobalDatabaseConfig); err != nil {
			return err
		}
		defer db.Close()
	}
	provider, err := candleSources(exchange, db).Get(sourceName(exchange))
	if err != nil {
		return err
	}

	fmt.Printf("📊 K线数据获取\n")
	fmt.Printf("================================\n")
	fmt.Printf("🔸 交易对: %s\n", symbol)
	fmt.Printf("🔸 时间周期: %s\n", interval)
	fmt.Printf("🔸 数据条数: %d\n", limit)
	fmt.Printf("🔸 数据源: %s\n", provider.GetName())
	fmt.Println()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	fmt.Print("🔄 正在获取K线数据...")
	startTime := time.Now()
	candles, err := provider.GetCandles(ctx, symbol, interval, limit)
	if err != nil {
		fmt.Println()
		return err
	}
	fmt.Printf(" 完成! (耗时: %v)\n", time.Since(startTime))
	return printCandles(symbol, candles, verbose)
}

// runKlineRange 按时间范围分页拉取
func runKlineRange(symbol, interval, startDate, endDate string, verbose bool) error {
	end, err := parseTime(endDate, time.Now().UTC())
	if err != nil {
		return err
	}
	start, err := parseTime(startDate, end)
	if err != nil {
		return err
	}
	if !start.Before(end) {
		return fmt.Errorf("start %s must be before end %s", startDate, end.Format("2006-01-02 15:04:05"))
	}

	fmt.Printf("📊 K线数据获取 %s ~ %s\n", start.Format("2006-01-02 15:04"), end.Format("2006-01-02 15:04"))
	fmt.Printf("================================\n")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	startTime := time.Now()
	candles, err := binance.NewProvider(binance.ConfigValue).GetCandlesInRange(ctx, symbol, interval, start, end)
	if err != nil {
		return err
	}
	fmt.Printf("🔄 完成! (耗时: %v)\n", time.Since(startTime))
	return printCandles(symbol, candles, verbose)
}

func printCandles(symbol string, candles []market.Candle, verbose bool) error {
	if len(candles) == 0 {
		fmt.Println("⚠️ 未获取到数据")
		return nil
	}
	fmt.Printf("✅ 成功获取 %d 条K线数据\n\n", len(candles))

	latest := candles[len(candles)-1]
	fmt.Println("📈 数据概览:")
	fmt.Printf("├─ 最新时间: %s\n", formatTime(latest.Timestamp))
	fmt.Printf("├─ 最早时间: %s\n", formatTime(candles[0].Timestamp))
	fmt.Printf("├─ 最新价格: %s\n", latest.Close.String())
	fmt.Printf("└─ 最新成交量: %s %s\n", latest.Volume.String(), baseCurrency(symbol))
	fmt.Println()

	if !verbose {
		return nil
	}

	fmt.Println("📋 详细K线数据 (最近5条):")
	fmt.Println("时间         | 开盘价    | 最高价    | 最低价    | 收盘价    | 成交量")
	fmt.Println("-------------|----------|----------|----------|----------|----------")
	from := len(candles) - 5
	if from < 0 {
		from = 0
	}
	for _, c := range candles[from:] {
		fmt.Printf("%s | %8s | %8s | %8s | %8s | %8s\n",
			formatTime(c.Timestamp), formatPrice(c.Open), formatPrice(c.High),
			formatPrice(c.Low), formatPrice(c.Close), formatVolume(c.Volume))
	}
	fmt.Println()

	if len(candles) >= 2 {
		change, pct := priceChange(candles[len(candles)-2].Close, latest.Close)
		fmt.Println("📊 价格变化:")
		fmt.Printf("├─ 价格变化: %s\n", change.String())
		fmt.Printf("└─ 变化幅度: %s%%\n", pct.StringFixed(2))
	}
	return nil
}

// priceChange 涨跌额与涨跌幅(百分比)
func priceChange(previous, latest decimal.Decimal) (decimal.Decimal, decimal.Decimal) {
	change := latest.Sub(previous)
	if previous.IsZero() {
		return change, decimal.Zero
	}
	return change, change.Div(previous).Mul(decimal.NewFromInt(100))
}

func formatTime(t time.Time) string {
	return t.UTC().Format("01-02 15:04")
}

func formatPrice(price decimal.Decimal) string {
	return price.StringFixed(2)
}

func formatVolume(volume decimal.Decimal) string {
	if volume.GreaterThan(decimal.NewFromInt(1000)) {
		return volume.Div(decimal.NewFromInt(1000)).StringFixed(1) + "K"
	}
	return volume.StringFixed(2)
}

// baseCurrency 按常见计价货币后缀拆出基础货币
func baseCurrency(symbol string) string {
	for _, quote := range []string{"USDT", "USDC", "BTC", "ETH"} {
		if len(symbol) > len(quote) && strings.HasSuffix(symbol, quote) {
			return strings.TrimSuffix(symbol, quote)
		}
	}
	return symbol
}
