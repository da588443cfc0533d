package jsonfile

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"hooktrader/internal/store"
	"hooktrader/internal/store/model"
	"hooktrader/internal/store/storetest"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestStore_AppendListAndFormat(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "logs", "trade_history.json")
	s, err := New(path, 10)
	require.NoError(t, err)

	require.NoError(t, s.Append(ctx, &model.TradeRecord{
		Symbol: "BTCUSDT", Side: "LONG", Quantity: decimal.RequireFromString("0.03"),
		Entry: decimal.NewFromInt(50000), Stop: decimal.NewFromInt(49000),
		OrderID: "123456789", Status: model.TradeStatusOpened, Mode: "testnet",
	}))
	require.NoError(t, s.Append(ctx, &model.TradeRecord{
		Symbol: "600519", Side: "LONG", Quantity: decimal.NewFromInt(100),
		Entry: decimal.RequireFromString("1500.5"), Stop: decimal.NewFromInt(1450),
		Status: model.TradeStatusJournal, Mode: "testnet",
	}))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := gjson.ParseBytes(raw)
	require.True(t, doc.IsArray())
	assert.Equal(t, gjson.Number, doc.Get("0.order_id").Type)
	assert.Equal(t, gjson.Number, doc.Get("0.qty").Type)
	assert.Equal(t, 0.03, doc.Get("0.qty").Float())
	assert.Equal(t, gjson.Null, doc.Get("1.order_id").Type)

	all, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "123456789", all[0].OrderID)
	assert.Equal(t, "", all[1].OrderID)
	assert.True(t, all[1].Entry.Equal(decimal.RequireFromString("1500.5")))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestStore_FIFOEviction(t *testing.T) {
	ctx := context.Background()
	s, err := New(filepath.Join(t.TempDir(), "h.json"), 3)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.Append(ctx, &model.TradeRecord{
			Symbol: "BTCUSDT", Side: "SHORT", Quantity: decimal.NewFromInt(int64(i + 1)),
			Entry: decimal.NewFromInt(2), Stop: decimal.NewFromInt(3),
		}))
	}
	all, err := s.List(ctx, store.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "3", all[0].Quantity.String())
	assert.Equal(t, "5", all[2].Quantity.String())
}

func TestStore_ReadsLegacyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_history.json")
	legacy := `[
  {"timestamp": "2024-05-01T10:00:00.123456", "side": "LONG", "qty": 0.03, "entry": 50000.0, "stop": 49000.0, "order_id": 4021, "symbol": "BTCUSDT", "mode": "testnet"},
  {"timestamp": "2024-05-02T11:00:00", "side": "SHORT", "qty": 0.05, "entry": 51000, "stop": 52000, "order_id": null, "symbol": "BTCUSDT", "mode": "main", "message": "manual"}
]`
	require.NoError(t, os.WriteFile(path, []byte(legacy), 0o644))
	s, err := New(path, 0)
	require.NoError(t, err)

	all, err := s.List(context.Background(), store.Filter{Side: "short"})
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "manual", all[0].Message)
	assert.Equal(t, model.TradeStatusOpened, all[0].Status)
	assert.Equal(t, 2024, all[0].Timestamp.Year())

	longs, err := s.List(context.Background(), store.Filter{Side: "LONG"})
	require.NoError(t, err)
	require.Len(t, longs, 1)
	assert.Equal(t, "4021", longs[0].OrderID)
}

func TestStore_CorruptFileIsAnError(t *testing.T) {
	path := filepath.Join(t.TempDir(), "trade_history.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"not":"an array"`), 0o644))
	s, err := New(path, 10)
	require.NoError(t, err)

	err = s.Append(context.Background(), &model.TradeRecord{Side: "LONG"})
	assert.Error(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"not":"an array"`, string(raw), "corrupt history must not be overwritten")
}

func TestStore_SymbolFilter(t *testing.T) {
	s, err := New(filepath.Join(t.TempDir(), "h.json"), 10)
	require.NoError(t, err)
	storetest.SymbolFilter(t, s)
}
