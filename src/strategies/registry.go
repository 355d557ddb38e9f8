package strategies

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"signalengine/src/strategy"
)

var (
	ErrNotFound  = errors.New("strategy instance not found")
	ErrDuplicate = errors.New("strategy instance already registered")
)

// Registry 策略实例注册表，按实例ID索引，由调用方持有
type Registry struct {
	mu        sync.RWMutex
	instances map[int64]Instance
}

// NewRegistry 创建空注册表
func NewRegistry() *Registry {
	return &Registry{instances: make(map[int64]Instance)}
}

// Register 注册实例，ID 重复时报错
func (r *Registry) Register(inst Instance) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.instances[inst.ID()]; ok {
		return fmt.Errorf("%w: %d", ErrDuplicate, inst.ID())
	}
	r.instances[inst.ID()] = inst
	return nil
}

// Put 注册或替换实例
func (r *Registry) Put(inst Instance) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.instances[inst.ID()] = inst
}

// Get 按ID获取实例
func (r *Registry) Get(id int64) (Instance, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	inst, ok := r.instances[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	return inst, nil
}

// Entry 按ID获取买入实例
func (r *Registry) Entry(id int64) (*strategy.Entry, error) {
	inst, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	e, ok := inst.(*strategy.Entry)
	if !ok {
		return nil, fmt.Errorf("%w: instance %d is not an entry strategy", strategy.ErrFamilyMismatch, id)
	}
	return e, nil
}

// Exit 按ID获取卖出实例
func (r *Registry) Exit(id int64) (*strategy.Exit, error) {
	inst, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	x, ok := inst.(*strategy.Exit)
	if !ok {
		return nil, fmt.Errorf("%w: instance %d is not an exit strategy", strategy.ErrFamilyMismatch, id)
	}
	return x, nil
}

// Remove 移除实例，返回是否存在
func (r *Registry) Remove(id int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.instances[id]
	delete(r.instances, id)
	return ok
}

// IDs 所有实例ID，升序
func (r *Registry) IDs() []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]int64, 0, len(r.instances))
	for id := range r.instances {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Len 实例数量
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.instances)
}

// Entries 所有买入实例，按ID升序
func (r *Registry) Entries() []*strategy.Entry {
	var out []*strategy.Entry
	for _, id := range r.IDs() {
		if e, err := r.Entry(id); err == nil {
			out = append(out, e)
		}
	}
	return out
}

// Exits 所有卖出实例，按ID升序
func (r *Registry) Exits() []*strategy.Exit {
	var out []*strategy.Exit
	for _, id := range r.IDs() {
		if x, err := r.Exit(id); err == nil {
			out = append(out, x)
		}
	}
	return out
}

// ActiveEntries 处于 ACTIVE 的买入实例
func (r *Registry) ActiveEntries() []*strategy.Entry {
	var out []*strategy.Entry
	for _, e := range r.Entries() {
		if e.IsActive() {
			out = append(out, e)
		}
	}
	return out
}
