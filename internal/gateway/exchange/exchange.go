package exchange

import (
	"context"

	"github.com/shopspring/decimal"
)

// Client 是信号执行链路对交易所账户的最小依赖。
type Client interface {
	// AccountSnapshot 返回可用余额与 symbol 当前持仓（无持仓时 Side=NONE）。
	AccountSnapshot(ctx context.Context, symbol string) (AccountSnapshot, error)

	// PlaceMarketOrder 以市价开仓，LONG 买入、SHORT 卖出。
	PlaceMarketOrder(ctx context.Context, symbol string, side Side, qty decimal.Decimal) (OrderResult, error)

	// ClosePosition 以只减仓市价单平掉 side 方向 qty 数量的持仓。
	ClosePosition(ctx context.Context, symbol string, side Side, qty decimal.Decimal) (OrderResult, error)
}

// Admin 提供启动与健康检查时使用的账户维护操作。
type Admin interface {
	Ping(ctx context.Context) error
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}
