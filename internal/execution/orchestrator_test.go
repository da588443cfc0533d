package execution

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hooktrader/internal/gateway/exchange"
	"hooktrader/internal/gateway/exchange/exchangetest"
	"hooktrader/internal/gateway/notifier"
	"hooktrader/internal/pkg/errs"
	"hooktrader/internal/signal"
	"hooktrader/internal/sizing"
	"hooktrader/internal/store"
	"hooktrader/internal/store/jsonfile"
	"hooktrader/internal/store/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

const secret = "s3cret"

type memStore struct {
	mu      sync.Mutex
	records []model.TradeRecord
	err     error
}

func (m *memStore) Append(_ context.Context, rec *model.TradeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	store.Prepare(rec)
	m.records = store.Bound(append(m.records, *rec), store.DefaultCapacity)
	return nil
}

func (m *memStore) List(_ context.Context, f store.Filter) ([]model.TradeRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return store.Select(m.records, f), nil
}

func (m *memStore) Count(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.records)), nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) all() []model.TradeRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.TradeRecord(nil), m.records...)
}

type captureNotifier struct {
	mu   sync.Mutex
	msgs []notifier.StructuredMessage
}

func (c *captureNotifier) Notify(msg notifier.StructuredMessage) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *captureNotifier) titles() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.msgs))
	for _, m := range c.msgs {
		out = append(out, m.Title)
	}
	return out
}

func newOrchestrator(t *testing.T, client exchange.Client, st store.TradeStore, n notifier.Notifier) *Orchestrator {
	t.Helper()
	v, err := signal.NewValidator(secret)
	require.NoError(t, err)
	s, err := sizing.NewSizer(sizing.Params{RiskPct: decimal.RequireFromString("0.01"), Leverage: 3, QtyPrecision: 3})
	require.NoError(t, err)
	return NewOrchestrator(v, s, client, st, n, Options{Symbol: "BTCUSDT", Mode: "testnet", OrderTimeout: time.Second})
}

func payload(side string) []byte {
	return []byte(fmt.Sprintf(`{"secret":%q,"side":%q,"entry":50000,"stop":49000}`, secret, side))
}

func TestHandle_OpenFromFlat(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("AccountSnapshot", mock.Anything, "BTCUSDT").Return(exchangetest.Snapshot("1000", exchange.SideNone, ""), nil).Once()
	client.On("PlaceMarketOrder", mock.Anything, "BTCUSDT", exchange.SideLong, exchangetest.Qty("0.03")).
		Return(exchange.OrderResult{OrderID: "9001"}, nil).Once()
	st := &memStore{}
	n := &captureNotifier{}
	o := newOrchestrator(t, client, st, n)

	res, err := o.Handle(context.Background(), payload("LONG"), "")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "0.03", res.Quantity.String())
	assert.Equal(t, "9001", res.OrderID)
	assert.NotEmpty(t, res.RecordID)

	recs := st.all()
	require.Len(t, recs, 1)
	assert.Equal(t, model.TradeStatusOpened, recs[0].Status)
	assert.Equal(t, "LONG", recs[0].Side)
	assert.Equal(t, "testnet", recs[0].Mode)
	assert.Equal(t, []string{"开仓 BTCUSDT LONG"}, n.titles())
	client.AssertExpectations(t)
}

func TestHandle_SameSideTwiceSkips(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("AccountSnapshot", mock.Anything, "BTCUSDT").Return(exchangetest.Snapshot("1000", exchange.SideLong, "0.03"), nil).Twice()
	st := &memStore{}
	o := newOrchestrator(t, client, st, nil)

	for i := 0; i < 2; i++ {
		res, err := o.Handle(context.Background(), payload("long"), "")
		require.NoError(t, err)
		assert.Equal(t, StatusSkip, res.Status)
		assert.NotEmpty(t, res.Reason)
	}
	assert.Equal(t, 0, client.OrderCalls())
	assert.Empty(t, st.all())
}

func TestHandle_FlipClosesBeforeOpening(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("AccountSnapshot", mock.Anything, "BTCUSDT").Return(exchangetest.Snapshot("1000", exchange.SideLong, "0.03"), nil).Once()
	client.On("ClosePosition", mock.Anything, "BTCUSDT", exchange.SideLong, exchangetest.Qty("0.03")).
		Return(exchange.OrderResult{OrderID: "c1"}, nil).Once()
	client.On("PlaceMarketOrder", mock.Anything, "BTCUSDT", exchange.SideShort, exchangetest.Qty("0.03")).
		Return(exchange.OrderResult{OrderID: "o1"}, nil).Once()
	st := &memStore{}
	o := newOrchestrator(t, client, st, nil)

	res, err := o.Handle(context.Background(), []byte(`{"side":"SHORT","entry":"49000","stop":"50000"}`), secret)
	require.NoError(t, err)
	assert.Equal(t, []string{"AccountSnapshot", "ClosePosition", "PlaceMarketOrder"}, client.Trail())
	assert.Equal(t, "o1", res.OrderID)
	assert.Equal(t, "c1", res.CloseOrderID)

	recs := st.all()
	require.Len(t, recs, 1)
	assert.Equal(t, model.TradeStatusFlipped, recs[0].Status)
	assert.Equal(t, "c1", recs[0].CloseOrderID)
}

func TestHandle_CloseFailureLeavesNoRecord(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("AccountSnapshot", mock.Anything, "BTCUSDT").Return(exchangetest.Snapshot("1000", exchange.SideShort, "1"), nil).Once()
	client.On("ClosePosition", mock.Anything, "BTCUSDT", exchange.SideShort, exchangetest.Qty("1")).
		Return(exchange.OrderResult{}, errors.New("rejected")).Once()
	st := &memStore{}
	n := &captureNotifier{}
	o := newOrchestrator(t, client, st, n)

	_, err := o.Handle(context.Background(), payload("LONG"), "")
	require.Error(t, err)
	assert.Equal(t, errs.KindExecution, errs.KindOf(err))
	assert.Empty(t, st.all())
	client.AssertNotCalled(t, "PlaceMarketOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	assert.Len(t, n.titles(), 1)
}

func TestHandle_OpenFailureAfterCloseIsDegraded(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("AccountSnapshot", mock.Anything, "BTCUSDT").Return(exchangetest.Snapshot("1000", exchange.SideLong, "0.03"), nil).Once()
	client.On("ClosePosition", mock.Anything, "BTCUSDT", exchange.SideLong, exchangetest.Qty("0.03")).
		Return(exchange.OrderResult{OrderID: "c9"}, nil).Once()
	client.On("PlaceMarketOrder", mock.Anything, "BTCUSDT", exchange.SideShort, mock.Anything).
		Return(exchange.OrderResult{}, errors.New("margin")).Once()
	st := &memStore{}
	o := newOrchestrator(t, client, st, nil)

	_, err := o.Handle(context.Background(), payload("SHORT"), "")
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.True(t, e.Degraded)
	assert.Equal(t, "c9", e.CloseOrderID)
	assert.Empty(t, st.all())
}

func TestHandle_RejectionsMakeNoExchangeCalls(t *testing.T) {
	cases := []struct {
		name string
		body string
		kind errs.Kind
	}{
		{"wrong secret", `{"secret":"nope","side":"LONG","entry":1,"stop":2}`, errs.KindAuth},
		{"missing secret", `{"side":"LONG","entry":1,"stop":2}`, errs.KindAuth},
		{"bad side", `{"secret":"s3cret","side":"UP","entry":1,"stop":2}`, errs.KindValidation},
		{"equal prices", `{"secret":"s3cret","side":"LONG","entry":1,"stop":1}`, errs.KindValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := new(exchangetest.MockClient)
			o := newOrchestrator(t, client, &memStore{}, nil)
			_, err := o.Handle(context.Background(), []byte(tc.body), "")
			assert.Equal(t, tc.kind, errs.KindOf(err))
			assert.Empty(t, client.Trail())
		})
	}
}

func TestHandle_SizingErrorPlacesNoOrders(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("AccountSnapshot", mock.Anything, "BTCUSDT").Return(exchangetest.Snapshot("0", exchange.SideNone, ""), nil).Once()
	st := &memStore{}
	o := newOrchestrator(t, client, st, nil)

	_, err := o.Handle(context.Background(), payload("LONG"), "")
	assert.Equal(t, errs.KindSizing, errs.KindOf(err))
	assert.Equal(t, 0, client.OrderCalls())
	assert.Empty(t, st.all())
}

func TestHandle_SnapshotFailureIsExecutionError(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("AccountSnapshot", mock.Anything, "BTCUSDT").Return(exchange.AccountSnapshot{}, errors.New("timeout")).Once()
	o := newOrchestrator(t, client, &memStore{}, nil)

	_, err := o.Handle(context.Background(), payload("LONG"), "")
	assert.Equal(t, errs.KindExecution, errs.KindOf(err))
	assert.Equal(t, 0, client.OrderCalls())
}

func TestHandle_PersistenceFailureStillSucceeds(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("AccountSnapshot", mock.Anything, "BTCUSDT").Return(exchangetest.Snapshot("1000", exchange.SideNone, ""), nil).Once()
	client.On("PlaceMarketOrder", mock.Anything, "BTCUSDT", exchange.SideLong, mock.Anything).
		Return(exchange.OrderResult{OrderID: "77"}, nil).Once()
	n := &captureNotifier{}
	o := newOrchestrator(t, client, &memStore{err: errors.New("disk full")}, n)

	res, err := o.Handle(context.Background(), payload("LONG"), "")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "77", res.OrderID)
	assert.Empty(t, res.RecordID)
	assert.Len(t, n.titles(), 2)
}

func TestHandle_CancelledRequestStillCompletesOrders(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("AccountSnapshot", mock.Anything, "BTCUSDT").Return(exchangetest.Snapshot("1000", exchange.SideNone, ""), nil).Once()
	client.On("PlaceMarketOrder", mock.MatchedBy(func(ctx context.Context) bool { return ctx.Err() == nil }), "BTCUSDT", exchange.SideLong, mock.Anything).
		Return(exchange.OrderResult{OrderID: "1"}, nil).Once()
	st := &memStore{}
	o := newOrchestrator(t, client, st, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// 锁空闲时 Acquire 立即成功，之后的交易所调用使用脱离请求的 context
	res, err := o.Handle(ctx, payload("LONG"), "")
	if err != nil {
		// select 可能先选中已关闭的 Done
		assert.ErrorIs(t, err, context.Canceled)
		assert.Empty(t, client.Trail())
		return
	}
	assert.Equal(t, "1", res.OrderID)
	assert.Len(t, st.all(), 1)
}

// fakeExchange 维护真实的持仓状态，用于并发场景。
type fakeExchange struct {
	mu     sync.Mutex
	pos    exchange.Position
	orders int
}

func (f *fakeExchange) AccountSnapshot(context.Context, string) (exchange.AccountSnapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return exchange.AccountSnapshot{AvailableBalance: decimal.NewFromInt(1000), Position: f.pos}, nil
}

func (f *fakeExchange) PlaceMarketOrder(_ context.Context, symbol string, side exchange.Side, qty decimal.Decimal) (exchange.OrderResult, error) {
	time.Sleep(5 * time.Millisecond)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders++
	f.pos = exchange.Position{Symbol: symbol, Side: side, Quantity: qty}
	return exchange.OrderResult{OrderID: fmt.Sprint(f.orders)}, nil
}

func (f *fakeExchange) ClosePosition(context.Context, string, exchange.Side, decimal.Decimal) (exchange.OrderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.orders++
	f.pos = exchange.Position{}
	return exchange.OrderResult{OrderID: fmt.Sprint(f.orders)}, nil
}

func TestHandle_ConcurrentSameSideOpensOnce(t *testing.T) {
	ex := &fakeExchange{}
	st := &memStore{}
	o := newOrchestrator(t, ex, st, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := o.Handle(context.Background(), payload("LONG"), "")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, ex.orders)
	assert.Len(t, st.all(), 1)
}

func TestRecord_Journal(t *testing.T) {
	client := new(exchangetest.MockClient)
	st, err := jsonfile.New(filepath.Join(t.TempDir(), "history.json"), 10)
	require.NoError(t, err)
	n := &captureNotifier{}
	o := newOrchestrator(t, client, st, n)

	res, err := o.Record(context.Background(), []byte(`{"secret":"s3cret","symbol":"600519","side":"LONG","qty":100,"entry":1500,"stop":1450,"tp1":1600}`), "")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)

	recs, err := st.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.TradeStatusJournal, recs[0].Status)
	assert.Equal(t, "600519", recs[0].Symbol)
	assert.Equal(t, "1600", gjson.GetBytes(recs[0].Extra, "tp1").String())
	assert.Empty(t, client.Trail())
	assert.Equal(t, []string{"入场信号 600519 LONG"}, n.titles())

	res, err = o.Record(context.Background(), []byte(`{"secret":"s3cret","action":"EXIT"}`), "")
	require.NoError(t, err)
	assert.Equal(t, StatusIgnored, res.Status)
}

// latentExchange 持有 LONG 仓位，平仓与开仓各自耗时但都短于单笔超时。
type latentExchange struct {
	fakeExchange
	closeDelay time.Duration
	openDelay  time.Duration
}

func (l *latentExchange) delay(ctx context.Context, d time.Duration) error {
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *latentExchange) ClosePosition(ctx context.Context, symbol string, side exchange.Side, qty decimal.Decimal) (exchange.OrderResult, error) {
	if err := l.delay(ctx, l.closeDelay); err != nil {
		return exchange.OrderResult{}, err
	}
	return l.fakeExchange.ClosePosition(ctx, symbol, side, qty)
}

func (l *latentExchange) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.Side, qty decimal.Decimal) (exchange.OrderResult, error) {
	if err := l.delay(ctx, l.openDelay); err != nil {
		return exchange.OrderResult{}, err
	}
	return l.fakeExchange.PlaceMarketOrder(ctx, symbol, side, qty)
}

func TestHandle_SlowCloseDoesNotStarveOpen(t *testing.T) {
	ex := &latentExchange{closeDelay: 120 * time.Millisecond, openDelay: 100 * time.Millisecond}
	ex.pos = exchange.Position{Symbol: "BTCUSDT", Side: exchange.SideLong, Quantity: decimal.RequireFromString("0.03")}
	v, err := signal.NewValidator(secret)
	require.NoError(t, err)
	s, err := sizing.NewSizer(sizing.Params{RiskPct: decimal.RequireFromString("0.01"), Leverage: 3, QtyPrecision: 3})
	require.NoError(t, err)
	st := &memStore{}
	o := NewOrchestrator(v, s, ex, st, nil, Options{Symbol: "BTCUSDT", Mode: "testnet", OrderTimeout: 200 * time.Millisecond})

	res, err := o.Handle(context.Background(), payload("SHORT"), "")
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.NotEmpty(t, res.CloseOrderID)
	assert.NotEmpty(t, res.OrderID)
	assert.Equal(t, exchange.SideShort, ex.pos.Side)
	assert.Len(t, st.all(), 1)
}
