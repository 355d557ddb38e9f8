package main

import (
	"context"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/xpwu/go-cmd/cmd"
	"github.com/xpwu/go-config/configs"
	"github.com/xpwu/go-log/log"

	enginecmd "signalengine/src/cmd"
	"signalengine/src/cache"
	"signalengine/src/config"
	"signalengine/src/database"
	"signalengine/src/market/binance"
)

func main() {
	// 设置 JSON 配置格式
	configs.SetConfigurator(&configs.JsonConfig{})

	// 智能查找配置文件
	setupConfigPath()

	// 读取配置文件
	err := configs.ReadWithErr()
	if err != nil {
		// 如果读取失败，生成默认配置文件
		printErr := configs.Print()
		if printErr != nil {
			panic("生成默认配置文件失败: " + printErr.Error())
		}
		panic("请修改 config.json 配置文件后重新运行")
	}

	// .env 中的密钥覆盖配置文件
	applyEnv()

	if err := config.AppConfig.Validate(); err != nil {
		panic("配置验证失败: " + err.Error())
	}

	ctx := context.Background()
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("SignalEngine")
	logger.Info("信号引擎启动")

	enginecmd.RegisterAllCommands()

	cmd.Run()
}

// setupConfigPath 智能设置配置文件路径
// 优先级: 1. bin/config.json 2. config.json 3. 生成默认配置
func setupConfigPath() {
	execPath, err := os.Executable()
	if err != nil {
		return
	}

	execDir := filepath.Dir(execPath)
	if _, err := os.Stat(filepath.Join(execDir, "config.json")); err == nil {
		// 如果存在，切换工作目录到可执行文件目录
		_ = os.Chdir(execDir)
	}
}

// applyEnv 读取 .env 后用环境变量覆盖密钥，文件不存在时只读进程环境
func applyEnv() {
	_ = godotenv.Load()

	overrides := []struct {
		key    string
		target *string
	}{
		{"BINANCE_API_KEY", &binance.ConfigValue.APIKey},
		{"BINANCE_SECRET_KEY", &binance.ConfigValue.SecretKey},
		{"DATABASE_PASSWORD", &database.GlobalDatabaseConfig.Password},
		{"REDIS_PASSWORD", &cache.GlobalRedisConfig.Password},
	}
	for _, o := range overrides {
		if v, ok := os.LookupEnv(o.key); ok && v != "" {
			*o.target = v
		}
	}
}
