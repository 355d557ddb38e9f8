package market

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Provider K线数据来源
type Provider interface {
	// GetName 数据源名称
	GetName() string

	// GetCandles 获取最近limit根K线，按时间升序
	GetCandles(ctx context.Context, symbol string, timeframe string, limit int) ([]Candle, error)
}

// ProviderRegistry 数据源注册表，由调用方创建并持有
type ProviderRegistry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewProviderRegistry 创建数据源注册表
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		providers: make(map[string]Provider),
	}
}

// Register 注册数据源，同名覆盖
func (r *ProviderRegistry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.GetName()] = p
}

// Get 按名称获取数据源
func (r *ProviderRegistry) Get(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("unsupported candle source: %s", name)
	}
	return p, nil
}

// Names 已注册的数据源名称
func (r *ProviderRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
