package livehttp

import (
	"context"
	"time"

	"hooktrader/internal/execution"

	"github.com/shopspring/decimal"
)

// SignalHandler 由 execution.Orchestrator 实现。
type SignalHandler interface {
	Handle(ctx context.Context, raw []byte, querySecret string) (execution.Result, error)
	Record(ctx context.Context, raw []byte, querySecret string) (execution.Result, error)
}

// StatusInfo 是 /status 与 /health 对外暴露的静态配置。
type StatusInfo struct {
	Mode         string
	Symbol       string
	Leverage     int
	RiskPct      decimal.Decimal
	QtyPrecision int32
	StartedAt    time.Time
}

type balanceView struct {
	Asset              string `json:"asset"`
	Available          string `json:"available"`
	TotalWalletBalance string `json:"total_wallet_balance"`
}

type positionView struct {
	Side          string `json:"side"`
	Quantity      string `json:"quantity"`
	EntryPrice    string `json:"entry_price"`
	MarkPrice     string `json:"mark_price"`
	UnrealizedPnL string `json:"unrealized_pnl"`
	Leverage      int    `json:"leverage"`
}

type configView struct {
	Leverage     int    `json:"leverage"`
	RiskPct      string `json:"risk_pct"`
	QtyPrecision int32  `json:"qty_precision"`
}
