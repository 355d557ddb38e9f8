package binance

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"github.com/xpwu/go-log/log"
	"golang.org/x/time/rate"

	"signalengine/src/market"
	"signalengine/src/timeframes"
)

// maxLimit 单次请求的最大K线数
const maxLimit = 1000

// Provider 币安K线数据源
type Provider struct {
	client  *binance.Client
	limiter *rate.Limiter
}

var _ market.Provider = (*Provider)(nil)

// NewProvider 创建币安数据源
func NewProvider(cfg Config) *Provider {
	client := binance.NewClient(cfg.APIKey, cfg.SecretKey)
	if cfg.BaseURL != "" {
		client.BaseURL = cfg.BaseURL
	}
	if cfg.Timeout > 0 {
		client.HTTPClient = &http.Client{Timeout: time.Duration(cfg.Timeout) * time.Second}
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	return &Provider{client: client, limiter: rate.NewLimiter(limit, burst)}
}

// GetName 数据源名称
func (p *Provider) GetName() string {
	return "binance"
}

// Ping 检查连通性
func (p *Provider) Ping(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := p.client.NewPingService().Do(ctx); err != nil {
		return fmt.Errorf("failed to ping Binance: %w", err)
	}
	return nil
}

// GetCandles 获取最近 limit 根K线
func (p *Provider) GetCandles(ctx context.Context, symbol string, timeframe string, limit int) ([]market.Candle, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Binance")

	interval, err := intervalOf(timeframe)
	if err != nil {
		return nil, err
	}
	if limit <= 0 || limit > maxLimit {
		limit = maxLimit
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	klines, err := p.client.NewKlinesService().
		Symbol(symbol).
		Interval(interval).
		Limit(limit).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get klines from Binance: %w", err)
	}

	logger.Debug("获取K线数据", "symbol", symbol, "timeframe", timeframe, "count", len(klines))
	return convertKlines(klines)
}

// GetCandlesInRange 分页获取时间范围内的K线
func (p *Provider) GetCandlesInRange(ctx context.Context, symbol, timeframe string, start, end time.Time) ([]market.Candle, error) {
	interval, err := intervalOf(timeframe)
	if err != nil {
		return nil, err
	}

	var all []market.Candle
	current := start
	for current.Before(end) {
		if err := p.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		klines, err := p.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			StartTime(current.UnixMilli()).
			EndTime(end.UnixMilli()).
			Limit(maxLimit).
			Do(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to get klines from Binance: %w", err)
		}
		if len(klines) == 0 {
			break
		}

		candles, err := convertKlines(klines)
		if err != nil {
			return nil, err
		}
		all = append(all, candles...)

		// 返回少于上限说明已取完
		if len(klines) < maxLimit {
			break
		}
		current = time.UnixMilli(klines[len(klines)-1].CloseTime + 1)
	}
	return all, nil
}

func intervalOf(timeframe string) (string, error) {
	tf, err := timeframes.ParseTimeframe(timeframe)
	if err != nil {
		return "", err
	}
	return tf.GetBinanceInterval(), nil
}

func convertKlines(klines []*binance.Kline) ([]market.Candle, error) {
	out := make([]market.Candle, 0, len(klines))
	for _, k := range klines {
		c, err := convertKline(k)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// convertKline 转换Binance K线数据为标准格式
func convertKline(k *binance.Kline) (market.Candle, error) {
	fields := []struct {
		name string
		raw  string
	}{
		{"open", k.Open}, {"high", k.High}, {"low", k.Low}, {"close", k.Close}, {"volume", k.Volume},
	}
	values := make([]decimal.Decimal, len(fields))
	for i, f := range fields {
		v, err := decimal.NewFromString(f.raw)
		if err != nil {
			return market.Candle{}, fmt.Errorf("invalid %s %q in kline %d: %w", f.name, f.raw, k.OpenTime, err)
		}
		values[i] = v
	}

	return market.Candle{
		Timestamp: time.UnixMilli(k.OpenTime).UTC(),
		Open:      values[0],
		High:      values[1],
		Low:       values[2],
		Close:     values[3],
		Volume:    values[4],
	}, nil
}
