// Package reconcile 根据当前持仓决定开仓、跳过或反手，并按顺序提交订单。
package reconcile

import (
	"context"
	"fmt"
	"time"

	"hooktrader/internal/gateway/exchange"
	"hooktrader/internal/logger"
	"hooktrader/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

type Action string

const (
	ActionOpen Action = "open"
	ActionSkip Action = "skip"
	ActionFlip Action = "flip"
)

// OrderIntent 是一笔待提交的市价单。
type OrderIntent struct {
	Side     exchange.Side
	Quantity decimal.Decimal
	Closing  bool // 只减仓
}

func (o OrderIntent) String() string {
	kind := "open"
	if o.Closing {
		kind = "close"
	}
	return fmt.Sprintf("%s %s %s", kind, o.Side, o.Quantity.String())
}

// Plan 是持仓状态机一次迁移的结果。
type Plan struct {
	Action Action
	Close  *OrderIntent
	Open   *OrderIntent
	Reason string
}

// PlanFor 纯函数：
//
//	NONE     + LONG/SHORT -> 开仓
//	同向持仓               -> 跳过（不产生任何订单）
//	反向持仓               -> 先平掉现有方向的全部数量，再开新方向
func PlanFor(current exchange.Position, desired exchange.Side, qty decimal.Decimal) Plan {
	open := &OrderIntent{Side: desired, Quantity: qty}
	if current.IsFlat() {
		return Plan{Action: ActionOpen, Open: open}
	}
	if current.Side == desired {
		return Plan{
			Action: ActionSkip,
			Reason: fmt.Sprintf("already in %s position (qty=%s)", current.Side, current.Quantity.String()),
		}
	}
	return Plan{
		Action: ActionFlip,
		Close:  &OrderIntent{Side: current.Side, Quantity: current.Quantity, Closing: true},
		Open:   open,
	}
}

// Outcome 记录已提交订单的交易所回执。
type Outcome struct {
	Plan  Plan
	Close *exchange.OrderResult
	Open  *exchange.OrderResult
}

type Reconciler struct {
	client      exchange.Client
	symbol      string
	callTimeout time.Duration
}

// NewReconciler 创建执行器；callTimeout > 0 时每笔订单各自独立计时。
func NewReconciler(client exchange.Client, symbol string, callTimeout time.Duration) *Reconciler {
	return &Reconciler{client: client, symbol: symbol, callTimeout: callTimeout}
}

func (r *Reconciler) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.callTimeout)
}

// Execute 顺序提交计划中的订单，不做重试；ctx 不应带请求级 deadline。
// 平仓失败直接返回，不会尝试开仓；平仓成功但开仓失败时返回 Degraded 错误。
func (r *Reconciler) Execute(ctx context.Context, plan Plan) (Outcome, error) {
	out := Outcome{Plan: plan}
	if plan.Action == ActionSkip {
		return out, nil
	}
	if plan.Close != nil {
		callCtx, cancel := r.callContext(ctx)
		res, err := r.client.ClosePosition(callCtx, r.symbol, plan.Close.Side, plan.Close.Quantity)
		cancel()
		if err != nil {
			logger.Errorf("[reconcile] close %s %s failed: %v", r.symbol, plan.Close, err)
			return out, &errs.Error{Kind: errs.KindExecution, Op: "close position", Err: err}
		}
		logger.Infof("[reconcile] closed %s %s order=%s", r.symbol, plan.Close, res.OrderID)
		out.Close = &res
	}
	if plan.Open == nil {
		return out, nil
	}
	callCtx, cancel := r.callContext(ctx)
	res, err := r.client.PlaceMarketOrder(callCtx, r.symbol, plan.Open.Side, plan.Open.Quantity)
	cancel()
	if err != nil {
		logger.Errorf("[reconcile] open %s %s failed: %v", r.symbol, plan.Open, err)
		e := &errs.Error{Kind: errs.KindExecution, Op: "open position", Err: err}
		if out.Close != nil {
			e.Degraded = true
			e.CloseOrderID = out.Close.OrderID
			e.Msg = "position closed but new entry failed, account is flat"
		}
		return out, e
	}
	logger.Infof("[reconcile] opened %s %s order=%s", r.symbol, plan.Open, res.OrderID)
	out.Open = &res
	return out, nil
}
