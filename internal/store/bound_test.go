package store

import (
	"fmt"
	"testing"

	"hooktrader/internal/store/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func records(n int) []model.TradeRecord {
	out := make([]model.TradeRecord, n)
	for i := range out {
		side := "LONG"
		if i%2 == 1 {
			side = "SHORT"
		}
		out[i] = model.TradeRecord{ID: fmt.Sprintf("r%04d", i), Side: side, Symbol: "BTCUSDT"}
	}
	return out
}

func TestBound_KeepsMostRecentInOrder(t *testing.T) {
	in := records(DefaultCapacity + 5)

	out := Bound(in, DefaultCapacity)
	require.Len(t, out, DefaultCapacity)
	assert.Equal(t, "r0005", out[0].ID)
	assert.Equal(t, fmt.Sprintf("r%04d", DefaultCapacity+4), out[len(out)-1].ID)
	for i := 1; i < len(out); i++ {
		assert.Less(t, out[i-1].ID, out[i].ID)
	}
}

func TestBound_UnderCapacityUntouched(t *testing.T) {
	in := records(3)
	assert.Equal(t, in, Bound(in, 10))
	assert.Len(t, Bound(records(1500), 0), DefaultCapacity)
}

func TestSelect(t *testing.T) {
	in := records(10)
	in[9].Symbol = "ETH/USDT"

	longs := Select(in, Filter{Side: "long"})
	assert.Len(t, longs, 5)

	last := Select(in, Filter{Side: "short", Limit: 2})
	require.Len(t, last, 2)
	assert.Equal(t, "r0007", last[0].ID)
	assert.Equal(t, "r0009", last[1].ID)

	eth := Select(in, Filter{Symbol: "ethusdt"})
	require.Len(t, eth, 1)
	assert.Equal(t, "r0009", eth[0].ID)

	assert.Len(t, Select(in, Filter{Limit: 0}), 10)
}

func TestPrepare_NormalizesSymbol(t *testing.T) {
	cases := map[string]string{
		"BINANCE:ETHUSDT.P": "ETHUSDT",
		"btc/usdt":          "BTCUSDT",
		" sh600519 ":        "SH600519",
		"":                  "",
	}
	for in, want := range cases {
		rec := model.TradeRecord{Symbol: in}
		Prepare(&rec)
		assert.Equal(t, want, rec.Symbol, in)
		assert.NotEmpty(t, rec.ID)
		assert.False(t, rec.Timestamp.IsZero())
	}
}
