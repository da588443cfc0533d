package execution

import (
	"errors"
	"time"

	"hooktrader/internal/gateway/notifier"
	"hooktrader/internal/pkg/errs"
	"hooktrader/internal/reconcile"
	"hooktrader/internal/signal"
	"hooktrader/internal/store/model"
)

func tradeMessage(mode string, rec model.TradeRecord) notifier.StructuredMessage {
	title := "开仓 " + rec.Symbol + " " + rec.Side
	if rec.Status == model.TradeStatusFlipped {
		title = "反手 " + rec.Symbol + " " + rec.Side
	}
	order := notifier.MessageSection{Title: "订单"}
	order.Add("mode", mode)
	order.Add("qty", rec.Quantity.String())
	order.Add("entry", rec.Entry.String())
	order.Add("stop", rec.Stop.String())
	order.Add("order_id", rec.OrderID)
	order.Add("close_order_id", rec.CloseOrderID)
	return notifier.StructuredMessage{
		Icon:      "✅",
		Title:     title,
		Sections:  []notifier.MessageSection{order},
		Footer:    rec.Message,
		Timestamp: rec.Timestamp,
	}
}

func failureMessage(mode, symbol string, sig signal.Signal, plan reconcile.Plan, err error) notifier.StructuredMessage {
	sec := notifier.MessageSection{Title: "失败"}
	sec.Add("mode", mode)
	sec.Add("action", string(plan.Action))
	sec.Add("entry", sig.Entry.String())
	sec.Add("stop", sig.Stop.String())
	sec.Add("error", err.Error())
	title := "下单失败 " + symbol + " " + string(sig.Side)
	var e *errs.Error
	if errors.As(err, &e) && e.Degraded {
		title = "反手未完成 " + symbol + "，当前空仓"
		sec.Add("close_order_id", e.CloseOrderID)
	}
	return notifier.StructuredMessage{
		Icon:      "❌",
		Title:     title,
		Sections:  []notifier.MessageSection{sec},
		Timestamp: time.Now(),
	}
}

func persistenceMessage(rec model.TradeRecord, err error) notifier.StructuredMessage {
	sec := notifier.MessageSection{Title: "历史记录写入失败"}
	sec.Add("side", rec.Side)
	sec.Add("qty", rec.Quantity.String())
	sec.Add("order_id", rec.OrderID)
	sec.Add("error", err.Error())
	return notifier.StructuredMessage{
		Icon:      "⚠️",
		Title:     "交易已执行，记录未保存 " + rec.Symbol,
		Sections:  []notifier.MessageSection{sec},
		Timestamp: time.Now(),
	}
}

func journalMessage(entry signal.JournalEntry, ts time.Time) notifier.StructuredMessage {
	sec := notifier.MessageSection{Title: "计划"}
	sec.Add("qty", entry.Qty.String())
	sec.Add("entry", entry.Entry.String())
	sec.Add("stop", entry.Stop.String())
	if entry.TP1.Valid {
		sec.Add("tp1", entry.TP1.Decimal.String())
	}
	if entry.TP2.Valid {
		sec.Add("tp2", entry.TP2.Decimal.String())
	}
	sec.Add("score", entry.Score)
	return notifier.StructuredMessage{
		Icon:      "📈",
		Title:     "入场信号 " + entry.Symbol + " " + string(entry.Side),
		Sections:  []notifier.MessageSection{sec},
		Timestamp: ts,
	}
}
