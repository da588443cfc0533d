package exchange

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Side 同时用于信号方向与持仓方向。
type Side string

const (
	SideNone  Side = "NONE"
	SideLong  Side = "LONG"
	SideShort Side = "SHORT"
)

// ParseSide 大小写不敏感解析 LONG/SHORT，其余返回 false。
func ParseSide(raw string) (Side, bool) {
	switch Side(strings.ToUpper(strings.TrimSpace(raw))) {
	case SideLong:
		return SideLong, true
	case SideShort:
		return SideShort, true
	default:
		return SideNone, false
	}
}

func (s Side) Opposite() Side {
	switch s {
	case SideLong:
		return SideShort
	case SideShort:
		return SideLong
	default:
		return SideNone
	}
}

// Position 单一 symbol 的净持仓，Quantity 恒为非负。
type Position struct {
	Symbol        string
	Side          Side
	Quantity      decimal.Decimal
	EntryPrice    decimal.Decimal
	MarkPrice     decimal.Decimal
	UnrealizedPnL decimal.Decimal
	Leverage      int
}

func (p Position) IsFlat() bool {
	return p.Side == SideNone || p.Side == "" || !p.Quantity.IsPositive()
}

// PositionFromSigned 由交易所带符号的持仓量推导方向与绝对数量。
func PositionFromSigned(symbol string, amount decimal.Decimal) Position {
	pos := Position{Symbol: symbol, Side: SideNone, Quantity: decimal.Zero}
	switch amount.Sign() {
	case 1:
		pos.Side = SideLong
		pos.Quantity = amount
	case -1:
		pos.Side = SideShort
		pos.Quantity = amount.Abs()
	}
	return pos
}

// AccountSnapshot 某一时刻的账户状态。
type AccountSnapshot struct {
	Asset              string          // 保证金币种，通常为 USDT
	AvailableBalance   decimal.Decimal // 可用于开仓的余额
	TotalWalletBalance decimal.Decimal // 钱包总余额
	Position           Position
	FetchedAt          time.Time
}

// OrderResult 交易所对一次下单请求的确认。
type OrderResult struct {
	OrderID       string
	ClientOrderID string
	Status        string
	ExecutedQty   decimal.Decimal
	AvgPrice      decimal.Decimal
}
