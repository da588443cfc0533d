package notifier

import (
	"errors"
	"sync"

	"hooktrader/internal/logger"
)

// Multi 依次推送到所有通道，单个通道失败不影响其它通道。
type Multi []Notifier

func (m Multi) Notify(msg StructuredMessage) error {
	var all []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Notify(msg); err != nil {
			all = append(all, err)
		}
	}
	return errors.Join(all...)
}

// Async 在后台 goroutine 中推送，调用方不等待结果；错误只记日志。
type Async struct {
	inner Notifier
	wg    sync.WaitGroup
	mu    sync.Mutex
	done  bool
	// OnError 可选，用于计数等旁路处理。
	OnError func(error)
}

func NewAsync(inner Notifier) *Async {
	if inner == nil {
		inner = Nop{}
	}
	return &Async{inner: inner}
}

func (a *Async) Notify(msg StructuredMessage) error {
	a.mu.Lock()
	if a.done {
		a.mu.Unlock()
		return errors.New("notifier closed")
	}
	a.wg.Add(1)
	a.mu.Unlock()
	go func() {
		defer a.wg.Done()
		if err := a.inner.Notify(msg); err != nil {
			logger.Warnf("[notify] 推送失败: %v", err)
			if a.OnError != nil {
				a.OnError(err)
			}
		}
	}()
	return nil
}

// Close 拒绝新消息并等待在途推送完成。
func (a *Async) Close() error {
	a.mu.Lock()
	a.done = true
	a.mu.Unlock()
	a.wg.Wait()
	return nil
}
