package notifier

import (
	"fmt"
	"time"

	"hooktrader/internal/pkg/circuit"
)

// Guarded 为单个通道加熔断，通道持续故障时不再拖慢其它通道。
type Guarded struct {
	name    string
	inner   Notifier
	breaker *circuit.Breaker
}

func NewGuarded(name string, inner Notifier, threshold int, cooldown time.Duration) *Guarded {
	return &Guarded{name: name, inner: inner, breaker: circuit.NewBreaker("notify."+name, threshold, cooldown)}
}

func (g *Guarded) Notify(msg StructuredMessage) error {
	err := g.breaker.Do(func() error { return g.inner.Notify(msg) })
	if err != nil {
		return fmt.Errorf("%s: %w", g.name, err)
	}
	return nil
}
