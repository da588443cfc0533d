package reconcile

import (
	"context"
	"strings"
	"sync"
)

// Locks 为每个 symbol 提供互斥锁，覆盖 读持仓 -> 下单 -> 记录 的完整区间。
type Locks struct {
	mu    sync.Mutex
	slots map[string]chan struct{}
}

func NewLocks() *Locks {
	return &Locks{slots: make(map[string]chan struct{})}
}

func (l *Locks) slot(symbol string) chan struct{} {
	key := strings.ToUpper(strings.TrimSpace(symbol))
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.slots[key]
	if !ok {
		ch = make(chan struct{}, 1)
		l.slots[key] = ch
	}
	return ch
}

// Acquire 阻塞直到获得锁或 ctx 结束；返回的 release 只能调用一次。
func (l *Locks) Acquire(ctx context.Context, symbol string) (func(), error) {
	ch := l.slot(symbol)
	select {
	case ch <- struct{}{}:
		var once sync.Once
		return func() { once.Do(func() { <-ch }) }, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
