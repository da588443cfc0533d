package reconcile

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"hooktrader/internal/gateway/exchange"
	"hooktrader/internal/gateway/exchange/exchangetest"
	"hooktrader/internal/pkg/errs"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func q(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func position(side exchange.Side, qty string) exchange.Position {
	return exchange.Position{Symbol: "BTCUSDT", Side: side, Quantity: q(qty)}
}

func TestPlanFor_TransitionTable(t *testing.T) {
	cases := []struct {
		name    string
		current exchange.Position
		desired exchange.Side
		action  Action
		close   *OrderIntent
	}{
		{"flat to long", position(exchange.SideNone, "0"), exchange.SideLong, ActionOpen, nil},
		{"flat to short", position(exchange.SideNone, "0"), exchange.SideShort, ActionOpen, nil},
		{"long to long", position(exchange.SideLong, "0.03"), exchange.SideLong, ActionSkip, nil},
		{"short to short", position(exchange.SideShort, "1"), exchange.SideShort, ActionSkip, nil},
		{"long to short", position(exchange.SideLong, "0.03"), exchange.SideShort, ActionFlip,
			&OrderIntent{Side: exchange.SideLong, Quantity: q("0.03"), Closing: true}},
		{"short to long", position(exchange.SideShort, "2.5"), exchange.SideLong, ActionFlip,
			&OrderIntent{Side: exchange.SideShort, Quantity: q("2.5"), Closing: true}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			plan := PlanFor(tc.current, tc.desired, q("0.05"))
			assert.Equal(t, tc.action, plan.Action)
			switch tc.action {
			case ActionSkip:
				assert.Nil(t, plan.Open)
				assert.Nil(t, plan.Close)
				assert.NotEmpty(t, plan.Reason)
			case ActionOpen:
				require.NotNil(t, plan.Open)
				assert.Nil(t, plan.Close)
				assert.Equal(t, tc.desired, plan.Open.Side)
			case ActionFlip:
				require.NotNil(t, plan.Close)
				require.NotNil(t, plan.Open)
				assert.Equal(t, tc.close.Side, plan.Close.Side)
				assert.True(t, tc.close.Quantity.Equal(plan.Close.Quantity))
				assert.True(t, plan.Close.Closing)
				assert.Equal(t, tc.desired, plan.Open.Side)
				assert.True(t, plan.Open.Quantity.Equal(q("0.05")))
			}
		})
	}
}

func TestExecute_SkipMakesNoCalls(t *testing.T) {
	client := new(exchangetest.MockClient)
	r := NewReconciler(client, "BTCUSDT", 0)

	out, err := r.Execute(context.Background(), PlanFor(position(exchange.SideLong, "0.03"), exchange.SideLong, q("0.03")))
	require.NoError(t, err)
	assert.Nil(t, out.Open)
	assert.Equal(t, 0, client.OrderCalls())
	client.AssertExpectations(t)
}

func TestExecute_FlipClosesThenOpens(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("ClosePosition", mock.Anything, "BTCUSDT", exchange.SideLong, exchangetest.Qty("0.03")).
		Return(exchange.OrderResult{OrderID: "101"}, nil).Once()
	client.On("PlaceMarketOrder", mock.Anything, "BTCUSDT", exchange.SideShort, exchangetest.Qty("0.04")).
		Return(exchange.OrderResult{OrderID: "102"}, nil).Once()
	r := NewReconciler(client, "BTCUSDT", 0)

	out, err := r.Execute(context.Background(), PlanFor(position(exchange.SideLong, "0.03"), exchange.SideShort, q("0.04")))
	require.NoError(t, err)
	assert.Equal(t, []string{"ClosePosition", "PlaceMarketOrder"}, client.Trail())
	require.NotNil(t, out.Close)
	require.NotNil(t, out.Open)
	assert.Equal(t, "101", out.Close.OrderID)
	assert.Equal(t, "102", out.Open.OrderID)
	client.AssertExpectations(t)
}

func TestExecute_CloseFailureAbortsOpen(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("ClosePosition", mock.Anything, "BTCUSDT", exchange.SideShort, exchangetest.Qty("1")).
		Return(exchange.OrderResult{}, errors.New("reduce only rejected")).Once()
	r := NewReconciler(client, "BTCUSDT", 0)

	out, err := r.Execute(context.Background(), PlanFor(position(exchange.SideShort, "1"), exchange.SideLong, q("0.5")))
	require.Error(t, err)
	assert.Equal(t, errs.KindExecution, errs.KindOf(err))
	assert.Nil(t, out.Open)
	assert.Equal(t, []string{"ClosePosition"}, client.Trail())
	client.AssertNotCalled(t, "PlaceMarketOrder", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestExecute_OpenFailureAfterCloseIsDegraded(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("ClosePosition", mock.Anything, "BTCUSDT", exchange.SideLong, exchangetest.Qty("0.03")).
		Return(exchange.OrderResult{OrderID: "201"}, nil).Once()
	client.On("PlaceMarketOrder", mock.Anything, "BTCUSDT", exchange.SideShort, exchangetest.Qty("0.03")).
		Return(exchange.OrderResult{}, errors.New("insufficient margin")).Once()
	r := NewReconciler(client, "BTCUSDT", 0)

	_, err := r.Execute(context.Background(), PlanFor(position(exchange.SideLong, "0.03"), exchange.SideShort, q("0.03")))
	require.Error(t, err)
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errs.KindExecution, e.Kind)
	assert.True(t, e.Degraded)
	assert.Equal(t, "201", e.CloseOrderID)
}

func TestExecute_OpenFailureFromFlatIsNotDegraded(t *testing.T) {
	client := new(exchangetest.MockClient)
	client.On("PlaceMarketOrder", mock.Anything, "BTCUSDT", exchange.SideLong, exchangetest.Qty("0.03")).
		Return(exchange.OrderResult{}, errors.New("timeout")).Once()
	r := NewReconciler(client, "BTCUSDT", 0)

	_, err := r.Execute(context.Background(), PlanFor(position(exchange.SideNone, "0"), exchange.SideLong, q("0.03")))
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.False(t, e.Degraded)
}

func TestLocks_SerializeSameSymbol(t *testing.T) {
	locks := NewLocks()
	var active, peak int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locks.Acquire(context.Background(), "btcusdt")
			if !assert.NoError(t, err) {
				return
			}
			defer release()
			n := atomic.AddInt32(&active, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			atomic.AddInt32(&active, -1)
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), peak)
}

func TestLocks_AcquireHonoursContext(t *testing.T) {
	locks := NewLocks()
	release, err := locks.Acquire(context.Background(), "BTCUSDT")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = locks.Acquire(ctx, "BTCUSDT")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	other, err := locks.Acquire(context.Background(), "ETHUSDT")
	require.NoError(t, err)
	other()

	release()
	release()
	again, err := locks.Acquire(context.Background(), "BTCUSDT")
	require.NoError(t, err)
	again()
}

// slowClient 按配置延迟返回，超过 ctx deadline 时返回 ctx.Err()。
type slowClient struct {
	closeDelay, openDelay time.Duration
	deadlines             []bool
}

func (c *slowClient) wait(ctx context.Context, d time.Duration) error {
	_, ok := ctx.Deadline()
	c.deadlines = append(c.deadlines, ok)
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *slowClient) AccountSnapshot(context.Context, string) (exchange.AccountSnapshot, error) {
	return exchange.AccountSnapshot{}, nil
}

func (c *slowClient) PlaceMarketOrder(ctx context.Context, _ string, _ exchange.Side, _ decimal.Decimal) (exchange.OrderResult, error) {
	if err := c.wait(ctx, c.openDelay); err != nil {
		return exchange.OrderResult{}, err
	}
	return exchange.OrderResult{OrderID: "open"}, nil
}

func (c *slowClient) ClosePosition(ctx context.Context, _ string, _ exchange.Side, _ decimal.Decimal) (exchange.OrderResult, error) {
	if err := c.wait(ctx, c.closeDelay); err != nil {
		return exchange.OrderResult{}, err
	}
	return exchange.OrderResult{OrderID: "close"}, nil
}

func TestExecute_EachOrderGetsItsOwnTimeout(t *testing.T) {
	client := &slowClient{closeDelay: 120 * time.Millisecond, openDelay: 100 * time.Millisecond}
	r := NewReconciler(client, "BTCUSDT", 200*time.Millisecond)

	out, err := r.Execute(context.Background(), PlanFor(position(exchange.SideLong, "0.03"), exchange.SideShort, q("0.03")))
	require.NoError(t, err)
	require.NotNil(t, out.Close)
	require.NotNil(t, out.Open)
	assert.Equal(t, "open", out.Open.OrderID)
	assert.Equal(t, []bool{true, true}, client.deadlines)
}

func TestExecute_SlowOpenTimesOutAsDegraded(t *testing.T) {
	client := &slowClient{openDelay: time.Second}
	r := NewReconciler(client, "BTCUSDT", 50*time.Millisecond)

	_, err := r.Execute(context.Background(), PlanFor(position(exchange.SideLong, "0.03"), exchange.SideShort, q("0.03")))
	var e *errs.Error
	require.ErrorAs(t, err, &e)
	assert.True(t, e.Degraded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
