// Package metrics 注册 webhook 处理链路的 Prometheus 指标，由 /metrics 暴露。
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// outcome: ok|skip|auth|validation|sizing|execution|degraded|journal|ignored
	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hooktrader_signals_total",
			Help: "Webhook signals processed, by outcome.",
		},
		[]string{"outcome"},
	)

	// kind: open|close; result: ok|error
	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hooktrader_orders_total",
			Help: "Orders submitted to the exchange.",
		},
		[]string{"kind", "side", "result"},
	)

	PersistenceFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hooktrader_persistence_failures_total",
			Help: "Trade records that could not be written to history.",
		},
	)

	NotifyFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "hooktrader_notify_failures_total",
			Help: "Notifications that failed on every retry.",
		},
	)

	HandleLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "hooktrader_handle_seconds",
			Help:    "Latency of the validate-size-reconcile-record pipeline.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(Signals, Orders, PersistenceFailures, NotifyFailures, HandleLatency)
}
