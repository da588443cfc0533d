// Package execution 串联 校验 -> 定仓 -> 对账下单 -> 记录 -> 通知 的完整链路。
package execution

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"hooktrader/internal/gateway/exchange"
	"hooktrader/internal/gateway/notifier"
	"hooktrader/internal/logger"
	"hooktrader/internal/metrics"
	"hooktrader/internal/pkg/errs"
	"hooktrader/internal/reconcile"
	"hooktrader/internal/signal"
	"hooktrader/internal/sizing"
	"hooktrader/internal/store"
	"hooktrader/internal/store/model"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusOK      Status = "ok"
	StatusSkip    Status = "skip"
	StatusIgnored Status = "ignored"
)

// Result 是一次信号处理对调用方可见的结果。
type Result struct {
	Status       Status
	Side         exchange.Side
	Quantity     decimal.Decimal
	OrderID      string
	CloseOrderID string
	Reason       string
	RecordID     string
}

type Options struct {
	Symbol       string
	Mode         string
	OrderTimeout time.Duration
}

type Orchestrator struct {
	validator  *signal.Validator
	sizer      *sizing.Sizer
	client     exchange.Client
	reconciler *reconcile.Reconciler
	locks      *reconcile.Locks
	store      store.TradeStore
	notify     notifier.Notifier
	opts       Options
}

func NewOrchestrator(v *signal.Validator, s *sizing.Sizer, client exchange.Client, st store.TradeStore, n notifier.Notifier, opts Options) *Orchestrator {
	if n == nil {
		n = notifier.Nop{}
	}
	if opts.OrderTimeout <= 0 {
		opts.OrderTimeout = 10 * time.Second
	}
	return &Orchestrator{
		validator:  v,
		sizer:      s,
		client:     client,
		reconciler: reconcile.NewReconciler(client, opts.Symbol, opts.OrderTimeout),
		locks:      reconcile.NewLocks(),
		store:      st,
		notify:     n,
		opts:       opts,
	}
}

// Handle 处理一条交易信号。鉴权、校验与定仓失败时不会产生任何交易所调用；
// 同一 symbol 的 读持仓 -> 下单 -> 记录 区间串行执行。
func (o *Orchestrator) Handle(ctx context.Context, raw []byte, querySecret string) (res Result, err error) {
	start := time.Now()
	defer func() {
		metrics.HandleLatency.Observe(time.Since(start).Seconds())
		metrics.Signals.WithLabelValues(outcomeLabel(res, err)).Inc()
	}()

	sig, err := o.validator.Validate(raw, querySecret)
	if err != nil {
		logger.Warnf("[webhook] 信号被拒绝: %v", err)
		return Result{}, err
	}
	logger.Infof("[webhook] 收到信号 %s", sig)

	release, err := o.locks.Acquire(ctx, o.opts.Symbol)
	if err != nil {
		return Result{}, errs.Wrap(errs.KindExecution, "acquire symbol lock", err)
	}
	defer release()

	// 订单提交不随请求取消而中断，避免反手做到一半
	detached := context.WithoutCancel(ctx)

	snapCtx, cancel := context.WithTimeout(detached, o.opts.OrderTimeout)
	snap, err := o.client.AccountSnapshot(snapCtx, o.opts.Symbol)
	cancel()
	if err != nil {
		logger.Errorf("[webhook] 获取账户失败: %v", err)
		return Result{}, errs.Wrap(errs.KindExecution, "fetch account", err)
	}

	qty, bd, err := o.sizer.Size(snap.AvailableBalance, sig.Entry, sig.Stop)
	if err != nil {
		logger.Warnf("[webhook] 仓位计算失败 %s: %v", bd, err)
		return Result{}, err
	}
	logger.Infof("[webhook] sizing %s", bd)

	plan := reconcile.PlanFor(snap.Position, sig.Side, qty)
	if plan.Action == reconcile.ActionSkip {
		logger.Infof("[webhook] skip: %s", plan.Reason)
		return Result{Status: StatusSkip, Side: sig.Side, Reason: plan.Reason}, nil
	}

	out, err := o.reconciler.Execute(detached, plan)
	countOrders(plan, out, err)
	if err != nil {
		o.notifyFailure(sig, plan, err)
		return Result{}, err
	}

	rec := o.tradeRecord(sig, plan, out, bd)
	res = Result{Status: StatusOK, Side: sig.Side, Quantity: qty, OrderID: rec.OrderID, CloseOrderID: rec.CloseOrderID}
	if err := o.store.Append(detached, &rec); err != nil {
		o.persistenceFailed(rec, err)
	} else {
		res.RecordID = rec.ID
	}
	o.publish(tradeMessage(o.opts.Mode, rec))
	return res, nil
}

// Record 处理仅记录的 journal 信号：鉴权、校验、写历史、通知，不调用交易所。
func (o *Orchestrator) Record(ctx context.Context, raw []byte, querySecret string) (res Result, err error) {
	defer func() {
		metrics.Signals.WithLabelValues(outcomeLabel(res, err)).Inc()
	}()
	entry, ignored, err := o.validator.ValidateJournal(raw, querySecret)
	if err != nil {
		logger.Warnf("[journal] 信号被拒绝: %v", err)
		return Result{}, err
	}
	if ignored {
		logger.Infof("[journal] 忽略 action=%s", entry.Action)
		return Result{Status: StatusIgnored, Reason: fmt.Sprintf("action %s ignored", entry.Action)}, nil
	}
	extra := map[string]any{}
	if entry.TP1.Valid {
		extra["tp1"] = entry.TP1.Decimal.String()
	}
	if entry.TP2.Valid {
		extra["tp2"] = entry.TP2.Decimal.String()
	}
	if entry.Score != "" {
		extra["score"] = entry.Score
	}
	rec := model.TradeRecord{
		Symbol:   entry.Symbol,
		Side:     string(entry.Side),
		Quantity: entry.Qty,
		Entry:    entry.Entry,
		Stop:     entry.Stop,
		Status:   model.TradeStatusJournal,
		Mode:     o.opts.Mode,
		Extra:    encodeExtra(extra),
	}
	store.Prepare(&rec)
	res = Result{Status: StatusOK, Side: entry.Side, Quantity: entry.Qty}
	if err := o.store.Append(context.WithoutCancel(ctx), &rec); err != nil {
		o.persistenceFailed(rec, err)
	} else {
		res.RecordID = rec.ID
	}
	o.publish(journalMessage(entry, rec.Timestamp))
	return res, nil
}

func (o *Orchestrator) tradeRecord(sig signal.Signal, plan reconcile.Plan, out reconcile.Outcome, bd sizing.Breakdown) model.TradeRecord {
	rec := model.TradeRecord{
		Symbol:   o.opts.Symbol,
		Side:     string(sig.Side),
		Quantity: plan.Open.Quantity,
		Entry:    sig.Entry,
		Stop:     sig.Stop,
		Status:   model.TradeStatusOpened,
		Mode:     o.opts.Mode,
		Message:  sig.Message,
	}
	if out.Open != nil {
		rec.OrderID = out.Open.OrderID
	}
	if out.Close != nil {
		rec.Status = model.TradeStatusFlipped
		rec.CloseOrderID = out.Close.OrderID
	}
	extra := map[string]any{
		"available":     bd.Available.String(),
		"risk_amount":   bd.RiskAmount.String(),
		"stop_distance": bd.StopDistance.String(),
	}
	if sig.Symbol != "" && sig.Symbol != o.opts.Symbol {
		extra["signal_symbol"] = sig.Symbol
	}
	if plan.Close != nil {
		extra["closed_qty"] = plan.Close.Quantity.String()
		extra["closed_side"] = string(plan.Close.Side)
	}
	rec.Extra = encodeExtra(extra)
	store.Prepare(&rec)
	return rec
}

func encodeExtra(m map[string]any) datatypes.JSON {
	if len(m) == 0 {
		return nil
	}
	raw, err := json.Marshal(m)
	if err != nil {
		return nil
	}
	return datatypes.JSON(raw)
}

func (o *Orchestrator) persistenceFailed(rec model.TradeRecord, err error) {
	metrics.PersistenceFailures.Inc()
	perr := errs.Wrap(errs.KindPersistence, "append trade history", err)
	logger.Errorf("[history] 写入失败 side=%s qty=%s order=%s: %v", rec.Side, rec.Quantity, rec.OrderID, perr)
	o.publish(persistenceMessage(rec, perr))
}

func (o *Orchestrator) notifyFailure(sig signal.Signal, plan reconcile.Plan, err error) {
	o.publish(failureMessage(o.opts.Mode, o.opts.Symbol, sig, plan, err))
}

func (o *Orchestrator) publish(msg notifier.StructuredMessage) {
	if err := o.notify.Notify(msg); err != nil {
		metrics.NotifyFailures.Inc()
		logger.Warnf("[notify] 推送失败: %v", err)
	}
}

func countOrders(plan reconcile.Plan, out reconcile.Outcome, err error) {
	result := func(ok bool) string {
		if ok {
			return "ok"
		}
		return "error"
	}
	if plan.Close != nil {
		metrics.Orders.WithLabelValues("close", string(plan.Close.Side), result(out.Close != nil)).Inc()
		if out.Close == nil {
			return
		}
	}
	if plan.Open != nil {
		metrics.Orders.WithLabelValues("open", string(plan.Open.Side), result(err == nil && out.Open != nil)).Inc()
	}
}

func outcomeLabel(res Result, err error) string {
	if err == nil {
		return string(res.Status)
	}
	var e *errs.Error
	if errors.As(err, &e) && e.Degraded {
		return "degraded"
	}
	return errs.KindOf(err).String()
}
