package config

import (
	"fmt"
	"time"

	"github.com/xpwu/go-config/configs"

	"signalengine/src/timeframes"
)

// K线来源
const (
	CandleSourceBinance = "binance"  // 直接请求交易所
	CandleSourceCached  = "postgres" // 先读数据库，缺失时回源交易所并写回
)

// 执行状态存储
const (
	StateBackendMemory   = "memory"
	StateBackendPostgres = "postgres"
	StateBackendRedis    = "redis"
)

// 策略定义来源
const (
	DefinitionSourceFile     = "file"
	DefinitionSourcePostgres = "postgres"
)

// Config 主配置结构
type Config struct {
	Engine EngineConfig `conf:"engine,信号引擎配置"`
}

// EngineConfig 信号引擎配置
type EngineConfig struct {
	CandleSource     string   `conf:"candle_source,K线来源 - binance=交易所,postgres=数据库缓存+交易所回源"`
	StateBackend     string   `conf:"state_backend,执行状态存储 - memory,postgres,redis"`
	DefinitionSource string   `conf:"definition_source,策略定义来源 - file=YAML文件,postgres=strategy_instances表"`
	StrategiesFile   string   `conf:"strategies_file,策略定义YAML文件路径"`
	CandleLimit      int      `conf:"candle_limit,每次评估至少拉取的K线数 - 默认200，最大1000"`
	Symbols          []string `conf:"symbols,默认评估的交易对列表"`
	Timeframe        string   `conf:"timeframe,数据流轮询使用的K线周期"`
	PollSeconds      int      `conf:"poll_seconds,run命令轮询间隔(秒)"`
	Migrate          bool     `conf:"migrate,启动时自动建表"`
}

// AppConfig 全局配置实例
var AppConfig = &Config{
	Engine: EngineConfig{
		CandleSource:     CandleSourceBinance,
		StateBackend:     StateBackendMemory,
		DefinitionSource: DefinitionSourceFile,
		StrategiesFile:   "strategies.yaml",
		CandleLimit:      200,
		Symbols:          []string{"BTCUSDT", "ETHUSDT"},
		Timeframe:        "1h",
		PollSeconds:      60,
		Migrate:          false,
	},
}

func init() {
	configs.Unmarshal(AppConfig)
}

// Validate 验证配置
func (c *Config) Validate() error {
	e := c.Engine

	switch e.CandleSource {
	case CandleSourceBinance, CandleSourceCached:
	default:
		return fmt.Errorf("invalid candle source: %s", e.CandleSource)
	}

	switch e.StateBackend {
	case StateBackendMemory, StateBackendPostgres, StateBackendRedis:
	default:
		return fmt.Errorf("invalid state backend: %s", e.StateBackend)
	}

	switch e.DefinitionSource {
	case DefinitionSourcePostgres:
	case DefinitionSourceFile:
		if e.StrategiesFile == "" {
			return fmt.Errorf("strategies file cannot be empty when definition source is file")
		}
	default:
		return fmt.Errorf("invalid definition source: %s", e.DefinitionSource)
	}

	if e.CandleLimit <= 0 || e.CandleLimit > 1000 {
		return fmt.Errorf("candle limit must be within (0, 1000], got %d", e.CandleLimit)
	}

	if _, err := timeframes.ParseTimeframe(e.Timeframe); err != nil {
		return fmt.Errorf("invalid timeframe: %w", err)
	}

	if e.PollSeconds <= 0 {
		return fmt.Errorf("poll seconds must be positive")
	}
	return nil
}

// NeedsDatabase 是否需要连接 Postgres
func (c *Config) NeedsDatabase() bool {
	e := c.Engine
	return e.CandleSource == CandleSourceCached ||
		e.StateBackend == StateBackendPostgres ||
		e.DefinitionSource == DefinitionSourcePostgres
}

// PollInterval 轮询间隔
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Engine.PollSeconds) * time.Second
}

// GetTimeframe 获取时间周期
func (c *Config) GetTimeframe() (timeframes.Timeframe, error) {
	return timeframes.ParseTimeframe(c.Engine.Timeframe)
}
