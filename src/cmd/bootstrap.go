package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/xpwu/go-cmd/exe"
	"github.com/xpwu/go-log/log"

	"signalengine/src/cache"
	"signalengine/src/config"
	"signalengine/src/database"
	"signalengine/src/engine"
	"signalengine/src/market"
	"signalengine/src/market/binance"
	"signalengine/src/metrics"
	"signalengine/src/strategies"
	"signalengine/src/strategy"
)

// runtime 一次命令执行所需的全部组件
type runtime struct {
	service  *engine.Service
	exchange *binance.Provider
	db       *database.PostgresDB
	server   *http.Server
}

// newRuntime 按配置装配行情来源、状态存储与策略实例
func newRuntime(ctx context.Context) (*runtime, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Bootstrap")

	cfg := config.AppConfig
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("配置验证失败: %w", err)
	}

	rt := &runtime{exchange: binance.NewProvider(binance.ConfigValue)}

	if cfg.NeedsDatabase() {
		db, err := database.NewPostgresDB(database.GlobalDatabaseConfig)
		if err != nil {
			return nil, err
		}
		rt.db = db
		if cfg.Engine.Migrate {
			if err := db.Migrate(ctx); err != nil {
				rt.Close()
				return nil, err
			}
		}
	}

	provider, err := candleSources(rt.exchange, rt.db).Get(sourceName(rt.exchange))
	if err != nil {
		rt.Close()
		return nil, err
	}

	states, err := rt.stateStore(ctx)
	if err != nil {
		rt.Close()
		return nil, err
	}

	handlers := engine.NewSignalHandlerRegistry()
	handlers.RegisterHandler(strategy.SignalBuy, engine.LogSignalHandler{})
	handlers.RegisterHandler(strategy.SignalSell, engine.LogSignalHandler{})
	if rt.db != nil {
		handlers.RegisterAll(engine.NewJournalSignalHandler(rt.db))
	}

	opts := []engine.Option{
		engine.WithHandlers(handlers),
		engine.WithCandleLimit(cfg.Engine.CandleLimit),
	}
	if rt.db != nil {
		opts = append(opts, engine.WithDefinitionStore(rt.db))
	}
	if mc := metrics.GlobalMetricsConfig; mc.Enabled {
		reg := prometheus.NewRegistry()
		opts = append(opts, engine.WithMetrics(metrics.NewMetrics(mc.Namespace, reg)))
		if mc.Listen != "" {
			rt.server = metrics.Serve(mc.Listen, reg)
			logger.Info("指标端点已启动", "listen", mc.Listen)
		}
	}

	rt.service = engine.NewService(strategies.NewRegistry(), provider, states, opts...)

	if _, err := rt.service.LoadInstances(ctx, rt.parameterStore()); err != nil {
		// 部分定义失败时其余实例仍可用
		logger.Error("部分策略加载失败", "error", err)
	}
	logger.Info("运行环境就绪", "provider", provider.GetName(), "state", cfg.Engine.StateBackend,
		"instances", rt.service.Registry().Len())
	return rt, nil
}

// candleSources 交易所数据源，有数据库时再加一层缓存数据源
func candleSources(exchange market.Provider, db *database.PostgresDB) *market.ProviderRegistry {
	sources := market.NewProviderRegistry()
	sources.Register(exchange)
	if db != nil {
		sources.Register(database.NewCandleManager(db, exchange))
	}
	return sources
}

// sourceName 配置的K线来源对应的数据源名称
func sourceName(exchange market.Provider) string {
	if config.AppConfig.Engine.CandleSource == config.CandleSourceCached {
		return database.CachedName(exchange)
	}
	return exchange.GetName()
}

func (rt *runtime) stateStore(ctx context.Context) (strategy.StateStore, error) {
	switch config.AppConfig.Engine.StateBackend {
	case config.StateBackendPostgres:
		return rt.db, nil
	case config.StateBackendRedis:
		store, err := cache.NewRedisStateStore(ctx, cache.GlobalRedisConfig)
		if err != nil {
			return nil, err
		}
		return store, nil
	}
	return strategy.NewMemoryStateStore(), nil
}

func (rt *runtime) parameterStore() engine.ParameterStore {
	if config.AppConfig.Engine.DefinitionSource == config.DefinitionSourcePostgres {
		return rt.db
	}
	return database.NewFileParameterStore(strategiesFile(config.AppConfig.Engine.StrategiesFile))
}

// Close 释放数据库与指标端点
func (rt *runtime) Close() {
	var errs []error
	if rt.server != nil {
		errs = append(errs, rt.server.Close())
	}
	if rt.db != nil {
		errs = append(errs, rt.db.Close())
	}
	if err := errors.Join(errs...); err != nil {
		_, logger := log.WithCtx(context.Background())
		logger.Error("资源释放失败", "error", err)
	}
}

// strategiesFile 相对路径先查当前目录，再查可执行文件目录
func strategiesFile(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return filepath.Join(exe.Exe.AbsDir, path)
}
