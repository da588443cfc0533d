// Package exchangetest 提供基于 testify/mock 的交易所替身。
package exchangetest

import (
	"context"
	"sync"

	"hooktrader/internal/gateway/exchange"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

// MockClient 同时实现 exchange.Client 与 exchange.Admin，并按顺序记录调用。
type MockClient struct {
	mock.Mock

	mu    sync.Mutex
	trail []string
}

func (m *MockClient) record(name string) {
	m.mu.Lock()
	m.trail = append(m.trail, name)
	m.mu.Unlock()
}

// Trail 返回调用顺序，如 ["AccountSnapshot", "ClosePosition", "PlaceMarketOrder"]。
func (m *MockClient) Trail() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.trail...)
}

// OrderCalls 统计下单类调用次数。
func (m *MockClient) OrderCalls() int {
	n := 0
	for _, name := range m.Trail() {
		if name == "PlaceMarketOrder" || name == "ClosePosition" {
			n++
		}
	}
	return n
}

func (m *MockClient) AccountSnapshot(ctx context.Context, symbol string) (exchange.AccountSnapshot, error) {
	m.record("AccountSnapshot")
	args := m.Called(ctx, symbol)
	return args.Get(0).(exchange.AccountSnapshot), args.Error(1)
}

func (m *MockClient) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.Side, qty decimal.Decimal) (exchange.OrderResult, error) {
	m.record("PlaceMarketOrder")
	args := m.Called(ctx, symbol, side, qty)
	return args.Get(0).(exchange.OrderResult), args.Error(1)
}

func (m *MockClient) ClosePosition(ctx context.Context, symbol string, side exchange.Side, qty decimal.Decimal) (exchange.OrderResult, error) {
	m.record("ClosePosition")
	args := m.Called(ctx, symbol, side, qty)
	return args.Get(0).(exchange.OrderResult), args.Error(1)
}

func (m *MockClient) Ping(ctx context.Context) error {
	m.record("Ping")
	return m.Called(ctx).Error(0)
}

func (m *MockClient) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	m.record("SetLeverage")
	return m.Called(ctx, symbol, leverage).Error(0)
}

// Qty 生成匹配指定数量的参数断言（decimal 需按值比较）。
func Qty(s string) any {
	want := decimal.RequireFromString(s)
	return mock.MatchedBy(func(got decimal.Decimal) bool { return got.Equal(want) })
}

// Snapshot 构造测试用账户快照。
func Snapshot(available string, side exchange.Side, qty string) exchange.AccountSnapshot {
	pos := exchange.Position{Symbol: "BTCUSDT", Side: side, Quantity: decimal.Zero}
	if qty != "" {
		pos.Quantity = decimal.RequireFromString(qty)
	}
	return exchange.AccountSnapshot{
		Asset:              "USDT",
		AvailableBalance:   decimal.RequireFromString(available),
		TotalWalletBalance: decimal.RequireFromString(available),
		Position:           pos,
	}
}
