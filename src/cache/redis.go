package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/xpwu/go-config/configs"
	"github.com/xpwu/go-log/log"

	"signalengine/src/strategy"
)

// RedisConfig Redis配置
type RedisConfig struct {
	Addr      string `json:"addr"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	TTL       int    `json:"ttl"`        // 执行状态过期秒数，0 表示不过期
	KeyPrefix string `json:"key_prefix"` // 键前缀
}

// GlobalRedisConfig 全局Redis配置
var GlobalRedisConfig = RedisConfig{
	Addr:      "localhost:6379",
	DB:        0,
	TTL:       7 * 24 * 3600,
	KeyPrefix: "signalengine:state:",
}

func init() {
	configs.Unmarshal(&GlobalRedisConfig)
}

// client 用到的 go-redis 命令
type client interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *goredis.StatusCmd
	Del(ctx context.Context, keys ...string) *goredis.IntCmd
}

// RedisStateStore 以 JSON 保存执行状态，多个进程可共享
type RedisStateStore struct {
	client client
	ttl    time.Duration
	prefix string
}

var _ strategy.StateStore = (*RedisStateStore)(nil)

// NewRedisStateStore 连接 Redis 并检查连通性
func NewRedisStateStore(ctx context.Context, cfg RedisConfig) (*RedisStateStore, error) {
	ctx, logger := log.WithCtx(ctx)
	logger.PushPrefix("Redis")

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	logger.Info("Redis已连接", "addr", cfg.Addr)
	return newStateStore(rdb, cfg), nil
}

func newStateStore(c client, cfg RedisConfig) *RedisStateStore {
	return &RedisStateStore{
		client: c,
		ttl:    time.Duration(cfg.TTL) * time.Second,
		prefix: cfg.KeyPrefix,
	}
}

func (s *RedisStateStore) key(k strategy.StateKey) string {
	return s.prefix + k.String()
}

// LoadState 读取执行状态，键不存在时 ok 为 false
func (s *RedisStateStore) LoadState(ctx context.Context, key strategy.StateKey) (strategy.ExecutionState, bool, error) {
	raw, err := s.client.Get(ctx, s.key(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return strategy.ExecutionState{}, false, nil
	}
	if err != nil {
		return strategy.ExecutionState{}, false, fmt.Errorf("failed to load execution state %s: %w", key, err)
	}

	var state strategy.ExecutionState
	if err := json.Unmarshal(raw, &state); err != nil {
		return strategy.ExecutionState{}, false, fmt.Errorf("failed to decode execution state %s: %w", key, err)
	}
	return state, true, nil
}

// SaveState 写入执行状态并刷新过期时间
func (s *RedisStateStore) SaveState(ctx context.Context, key strategy.StateKey, state strategy.ExecutionState) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode execution state %s: %w", key, err)
	}
	if err := s.client.Set(ctx, s.key(key), raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save execution state %s: %w", key, err)
	}
	return nil
}

// DeleteState 删除执行状态
func (s *RedisStateStore) DeleteState(ctx context.Context, key strategy.StateKey) error {
	if err := s.client.Del(ctx, s.key(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete execution state %s: %w", key, err)
	}
	return nil
}
