package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xpwu/go-cmd/arg"
	"github.com/xpwu/go-cmd/cmd"

	"signalengine/src/strategy"
)

// RegisterExitCmd 注册卖出评估命令
func RegisterExitCmd() {
	var id int
	var symbol string
	var positionID string
	var entryPrice float64
	var entryTime string
	var closePosition bool
	var reset bool
	var verbose bool

	cmd.RegisterCmd("exit", "open a position or evaluate it against an exit strategy, persisting execution state", func(args *arg.Arg) {
		args.Int(&id, "id", "exit strategy instance id (required)")
		args.String(&symbol, "s", "trading symbol (default: first configured symbol)")
		args.String(&positionID, "pos", "position id; empty opens a new position")
		args.Float64(&entryPrice, "price", "entry price (required)")
		args.String(&entryTime, "entry", "entry time (YYYY-MM-DD HH:MM:SS or YYYY-MM-DD, default: now)")
		args.Bool(&closePosition, "close", "close the position and drop its execution state")
		args.Bool(&reset, "reset", "reset triggered levels and highest price of the position")
		args.Bool(&verbose, "v", "print indicator values")
		args.Parse()

		if id <= 0 {
			fmt.Println("❌ Error: -id is required")
			return
		}
		if symbol == "" {
			symbol = defaultSymbol()
		}

		req := exitRequest{
			id:         int64(id),
			symbol:     strings.ToUpper(symbol),
			positionID: positionID,
			close:      closePosition,
			reset:      reset,
			verbose:    verbose,
		}
		var err error
		if req.entryPrice = decimal.NewFromFloat(entryPrice); !req.close && !req.reset && !req.entryPrice.IsPositive() {
			fmt.Println("❌ Error: -price must be positive")
			return
		}
		if req.entryTime, err = parseTime(entryTime, time.Now().UTC()); err != nil {
			fmt.Printf("❌ Error: %v\n", err)
			return
		}
		if err := runExit(req); err != nil {
			fmt.Printf("❌ 卖出评估失败: %v\n", err)
		}
	})
}

type exitRequest struct {
	id         int64
	symbol     string
	positionID string
	entryPrice decimal.Decimal
	entryTime  time.Time
	close      bool
	reset      bool
	verbose    bool
}

func runExit(req exitRequest) error {
	ctx := context.Background()
	rt, err := newRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	svc := rt.service
	switch {
	case req.close:
		if err := svc.ClosePosition(ctx, req.id, req.positionID); err != nil {
			return err
		}
		fmt.Printf("✅ 持仓 %s 已关闭\n", req.positionID)
		return nil
	case req.reset:
		if err := svc.ResetExecutionState(ctx, req.id, req.positionID); err != nil {
			return err
		}
		fmt.Printf("✅ 持仓 %s 执行状态已重置\n", req.positionID)
		return nil
	}

	pos := strategy.Position{
		ID:         req.positionID,
		Symbol:     req.symbol,
		EntryPrice: req.entryPrice,
		EntryTime:  req.entryTime,
	}
	if pos.ID == "" {
		if pos, err = svc.OpenPosition(ctx, req.id, req.symbol, req.entryPrice, req.entryTime); err != nil {
			return err
		}
		fmt.Printf("🆕 新持仓: %s (后续评估请使用 -pos %s)\n", pos.ID, pos.ID)
	}

	rec, err := svc.EvaluateExit(ctx, req.id, pos)
	if err != nil {
		return err
	}
	fmt.Printf("📊 %s 卖出评估 (开仓价 %s)\n", req.symbol, formatPrice(req.entryPrice))
	fmt.Println("================================")
	printRecord(rec, req.verbose)
	return nil
}

// parseTime 支持日期或日期时间，空串返回 def
func parseTime(s string, def time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	for _, layout := range []string{"2006-01-02 15:04:05", "2006-01-02"} {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time format: %s", s)
}
