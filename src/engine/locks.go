package engine

import (
	"sync"

	"signalengine/src/strategy"
)

// keyedMutex 按 (实例, 持仓) 串行化卖出评估
type keyedMutex struct {
	mu    sync.Mutex
	locks map[strategy.StateKey]*keyedLock
}

type keyedLock struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[strategy.StateKey]*keyedLock)}
}

// Lock 加锁并返回解锁函数，无人等待时释放条目
func (k *keyedMutex) Lock(key strategy.StateKey) func() {
	k.mu.Lock()
	l, ok := k.locks[key]
	if !ok {
		l = &keyedLock{}
		k.locks[key] = l
	}
	l.refs++
	k.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		k.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

func (k *keyedMutex) size() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.locks)
}
