package binance

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hooktrader/internal/gateway/exchange"
	"hooktrader/internal/logger"
	"hooktrader/internal/pkg/id"

	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
	"github.com/shopspring/decimal"
)

const marginAsset = "USDT"

// Client 基于 go-binance SDK 实现 U 本位合约的 exchange.Client 与 exchange.Admin。
type Client struct {
	cfg    Config
	client *futures.Client
}

var (
	_ exchange.Client = (*Client)(nil)
	_ exchange.Admin  = (*Client)(nil)
)

func New(cfg Config) (*Client, error) {
	final := cfg.withDefaults()
	if strings.TrimSpace(final.APIKey) == "" || strings.TrimSpace(final.APISecret) == "" {
		return nil, fmt.Errorf("binance api key/secret required")
	}
	client := futures.NewClient(final.APIKey, final.APISecret)
	client.BaseURL = final.RESTBaseURL
	httpClient := &http.Client{Timeout: final.HTTPTimeout}
	if final.ProxyURL != "" {
		proxyURL, err := url.Parse(final.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid REST proxy url: %w", err)
		}
		baseTransport, ok := http.DefaultTransport.(*http.Transport)
		if !ok || baseTransport == nil {
			return nil, fmt.Errorf("http DefaultTransport is not *http.Transport")
		}
		transport := baseTransport.Clone()
		transport.Proxy = http.ProxyURL(proxyURL)
		httpClient.Transport = transport
	}
	client.HTTPClient = httpClient
	return &Client{cfg: final, client: client}, nil
}

// BaseURL 返回当前连接的 REST 入口。
func (c *Client) BaseURL() string { return c.cfg.RESTBaseURL }

func (c *Client) Ping(ctx context.Context) error {
	if err := c.client.NewPingService().Do(ctx); err != nil {
		return wrapAPIError("ping", err)
	}
	return nil
}

func (c *Client) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	res, err := c.client.NewChangeLeverageService().Symbol(symbol).Leverage(leverage).Do(ctx)
	if err != nil {
		return wrapAPIError("change leverage", err)
	}
	logger.Infof("[exchange] leverage set symbol=%s leverage=%d max_notional=%s", res.Symbol, res.Leverage, res.MaxNotionalValue)
	return nil
}

func (c *Client) AccountSnapshot(ctx context.Context, symbol string) (exchange.AccountSnapshot, error) {
	acct, err := c.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return exchange.AccountSnapshot{}, wrapAPIError("get account", err)
	}
	snap := exchange.AccountSnapshot{Asset: marginAsset, FetchedAt: time.Now()}
	snap.AvailableBalance, snap.TotalWalletBalance = balancesFromAccount(acct)

	risks, err := c.client.NewGetPositionRiskService().Symbol(symbol).Do(ctx)
	if err != nil {
		return exchange.AccountSnapshot{}, wrapAPIError("get position risk", err)
	}
	snap.Position = positionFromRisk(symbol, risks)
	return snap, nil
}

// balancesFromAccount 优先取 USDT 资产行，缺失时退回账户汇总字段。
func balancesFromAccount(acct *futures.Account) (available, total decimal.Decimal) {
	if acct == nil {
		return decimal.Zero, decimal.Zero
	}
	for _, asset := range acct.Assets {
		if asset != nil && strings.EqualFold(asset.Asset, marginAsset) {
			return parseDecimal(asset.AvailableBalance), parseDecimal(asset.WalletBalance)
		}
	}
	return parseDecimal(acct.AvailableBalance), parseDecimal(acct.TotalWalletBalance)
}

// positionFromRisk 单向持仓模式下每个 symbol 只有一条 BOTH 记录，取第一条非零持仓。
func positionFromRisk(symbol string, risks []*futures.PositionRisk) exchange.Position {
	for _, r := range risks {
		if r == nil || (r.Symbol != "" && !strings.EqualFold(r.Symbol, symbol)) {
			continue
		}
		amt := parseDecimal(r.PositionAmt)
		if amt.IsZero() {
			continue
		}
		pos := exchange.PositionFromSigned(symbol, amt)
		pos.EntryPrice = parseDecimal(r.EntryPrice)
		pos.MarkPrice = parseDecimal(r.MarkPrice)
		pos.UnrealizedPnL = parseDecimal(r.UnRealizedProfit)
		pos.Leverage, _ = strconv.Atoi(r.Leverage)
		return pos
	}
	return exchange.PositionFromSigned(symbol, decimal.Zero)
}

func (c *Client) PlaceMarketOrder(ctx context.Context, symbol string, side exchange.Side, qty decimal.Decimal) (exchange.OrderResult, error) {
	orderSide, err := openSide(side)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	return c.submit(ctx, symbol, orderSide, qty, FormatQuantity(qty, c.cfg.QtyPrecision), false)
}

func (c *Client) ClosePosition(ctx context.Context, symbol string, side exchange.Side, qty decimal.Decimal) (exchange.OrderResult, error) {
	orderSide, err := closeSide(side)
	if err != nil {
		return exchange.OrderResult{}, err
	}
	return c.submit(ctx, symbol, orderSide, qty, FormatCloseQuantity(qty, c.cfg.QtyPrecision), true)
}

func (c *Client) submit(ctx context.Context, symbol string, side futures.SideType, qty decimal.Decimal, qtyStr string, reduceOnly bool) (exchange.OrderResult, error) {
	if !qty.IsPositive() {
		return exchange.OrderResult{}, fmt.Errorf("order quantity must be > 0, got %s", qty.String())
	}
	clientID := id.ClientOrderID(c.cfg.ClientOrderPrefix)
	svc := c.client.NewCreateOrderService().
		Symbol(symbol).
		Side(side).
		Type(futures.OrderTypeMarket).
		Quantity(qtyStr).
		NewClientOrderID(clientID)
	if reduceOnly {
		svc = svc.ReduceOnly(true)
	}
	logger.Infof("[exchange] submit %s %s qty=%s reduce_only=%t client_id=%s", symbol, side, qtyStr, reduceOnly, clientID)
	res, err := svc.Do(ctx)
	if err != nil {
		return exchange.OrderResult{}, wrapAPIError("create order", err)
	}
	return exchange.OrderResult{
		OrderID:       strconv.FormatInt(res.OrderID, 10),
		ClientOrderID: res.ClientOrderID,
		Status:        string(res.Status),
		ExecutedQty:   parseDecimal(res.ExecutedQuantity),
		AvgPrice:      parseDecimal(res.AvgPrice),
	}, nil
}

func openSide(side exchange.Side) (futures.SideType, error) {
	switch side {
	case exchange.SideLong:
		return futures.SideTypeBuy, nil
	case exchange.SideShort:
		return futures.SideTypeSell, nil
	default:
		return "", fmt.Errorf("cannot open position with side %q", side)
	}
}

// closeSide 平多卖出、平空买入。
func closeSide(side exchange.Side) (futures.SideType, error) {
	switch side {
	case exchange.SideLong:
		return futures.SideTypeSell, nil
	case exchange.SideShort:
		return futures.SideTypeBuy, nil
	default:
		return "", fmt.Errorf("cannot close position with side %q", side)
	}
}

// FormatQuantity 按固定小数位输出数量字符串（截断，不进位）。
func FormatQuantity(qty decimal.Decimal, precision int32) string {
	return qty.Truncate(precision).StringFixed(precision)
}

// FormatCloseQuantity 平仓数量来自交易所持仓，保留其自身精度，避免截断后残留零头。
func FormatCloseQuantity(qty decimal.Decimal, precision int32) string {
	if exp := -qty.Exponent(); exp > precision {
		precision = exp
	}
	return FormatQuantity(qty, precision)
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func wrapAPIError(op string, err error) error {
	var apiErr *common.APIError
	if errors.As(err, &apiErr) {
		return fmt.Errorf("binance %s failed: code=%d msg=%s: %w", op, apiErr.Code, apiErr.Message, err)
	}
	return fmt.Errorf("binance %s failed: %w", op, err)
}
