// Package storetest 提供各 TradeStore 实现共用的行为测试。
package storetest

import (
	"context"
	"testing"

	"hooktrader/internal/store"
	"hooktrader/internal/store/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// SymbolFilter 写入非交易所写法的 symbol，断言按任意写法过滤都能查到同一条记录。
func SymbolFilter(t *testing.T, s store.TradeStore) {
	t.Helper()
	ctx := context.Background()
	for _, sym := range []string{"sh600519", "BINANCE:ETHUSDT.P", "BTC/USDT"} {
		require.NoError(t, s.Append(ctx, &model.TradeRecord{
			Symbol: sym, Side: "LONG", Quantity: decimal.NewFromInt(1),
			Entry: decimal.NewFromInt(100), Stop: decimal.NewFromInt(90),
			Status: model.TradeStatusJournal, Mode: "testnet",
		}))
	}

	cases := []struct {
		filter string
		want   string
	}{
		{"sh600519", "SH600519"},
		{"SH600519", "SH600519"},
		{"ETHUSDT", "ETHUSDT"},
		{"binance:ethusdt.p", "ETHUSDT"},
		{"btcusdt", "BTCUSDT"},
		{"BTC/USDT", "BTCUSDT"},
	}
	for _, tc := range cases {
		got, err := s.List(ctx, store.Filter{Symbol: tc.filter})
		require.NoError(t, err)
		if assert.Len(t, got, 1, "filter %q", tc.filter) {
			assert.Equal(t, tc.want, got[0].Symbol)
		}
	}

	none, err := s.List(ctx, store.Filter{Symbol: "SOLUSDT"})
	require.NoError(t, err)
	assert.Empty(t, none)
}
