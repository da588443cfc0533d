package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"hooktrader/internal/config"
	"hooktrader/internal/execution"
	"hooktrader/internal/gateway/binance"
	"hooktrader/internal/gateway/exchange"
	"hooktrader/internal/gateway/notifier"
	"hooktrader/internal/logger"
	"hooktrader/internal/metrics"
	"hooktrader/internal/pkg/symbol"
	"hooktrader/internal/signal"
	"hooktrader/internal/sizing"
	"hooktrader/internal/store"
	"hooktrader/internal/store/jsonfile"
	"hooktrader/internal/store/postgres"
	"hooktrader/internal/store/sqlite"
	livehttp "hooktrader/internal/transport/http/live"

	"github.com/shopspring/decimal"
)

const (
	startupTimeout = 15 * time.Second

	notifyBreakerThreshold = 5
	notifyBreakerCooldown  = time.Minute
)

// ExchangeClient 是运行时所需的全部交易所能力。
type ExchangeClient interface {
	exchange.Client
	exchange.Admin
}

type AppBuilder struct {
	cfg *config.Config

	storeFn    func(context.Context, config.StorageConfig) (store.TradeStore, error)
	exchangeFn func(config.ExchangeConfig, config.TradingConfig) (ExchangeClient, error)
	notifierFn func(config.NotifyConfig) (notifier.Notifier, []string)
	liveHTTPFn func(livehttp.ServerConfig) (*livehttp.Server, error)
}

type AppBuilderOption func(*AppBuilder)

// WithExchange 替换交易所客户端（测试或 dry-run 场景）。
func WithExchange(client ExchangeClient) AppBuilderOption {
	return func(b *AppBuilder) {
		b.exchangeFn = func(config.ExchangeConfig, config.TradingConfig) (ExchangeClient, error) { return client, nil }
	}
}

func WithStore(st store.TradeStore) AppBuilderOption {
	return func(b *AppBuilder) {
		b.storeFn = func(context.Context, config.StorageConfig) (store.TradeStore, error) { return st, nil }
	}
}

func WithNotifier(n notifier.Notifier) AppBuilderOption {
	return func(b *AppBuilder) {
		b.notifierFn = func(config.NotifyConfig) (notifier.Notifier, []string) { return n, []string{"custom"} }
	}
}

func NewAppBuilder(cfg *config.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		storeFn:    OpenStore,
		exchangeFn: NewExchangeClient,
		notifierFn: buildNotifier,
		liveHTTPFn: livehttp.NewServer,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func (b *AppBuilder) Build(ctx context.Context) (app *App, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	var closers []io.Closer
	defer func() {
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				_ = closers[i].Close()
			}
		}
	}()

	tradeStore, err := b.storeFn(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("open trade history: %w", err)
	}
	closers = append(closers, tradeStore)
	records, err := tradeStore.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count trade history: %w", err)
	}
	logger.Infof("✓ 历史记录已加载 driver=%s records=%d", cfg.Storage.Driver, records)

	client, err := b.exchangeFn(cfg.Exchange, cfg.Trading)
	if err != nil {
		return nil, err
	}
	tradingSymbol := symbol.Normalize(cfg.Trading.Symbol)
	exSummary, err := prepareExchange(ctx, client, cfg, tradingSymbol)
	if err != nil {
		return nil, err
	}

	validator, err := signal.NewValidator(cfg.Webhook.Secret)
	if err != nil {
		return nil, err
	}
	if !validator.AuthEnabled() {
		logger.Warnf("⚠️ webhook secret 未配置，鉴权已关闭")
	}
	riskPct := decimal.NewFromFloat(cfg.Trading.RiskPct)
	sizer, err := sizing.NewSizer(sizing.Params{
		RiskPct:      riskPct,
		Leverage:     cfg.Trading.Leverage,
		QtyPrecision: int32(cfg.Trading.QtyPrecision),
	})
	if err != nil {
		return nil, err
	}

	channels, names := b.notifierFn(cfg.Notify)
	async := notifier.NewAsync(channels)
	async.OnError = func(error) { metrics.NotifyFailures.Inc() }
	closers = append(closers, async)

	orch := execution.NewOrchestrator(validator, sizer, client, tradeStore, async, execution.Options{
		Symbol:       tradingSymbol,
		Mode:         cfg.Exchange.Mode,
		OrderTimeout: cfg.Trading.OrderTimeout(),
	})

	server, err := b.liveHTTPFn(livehttp.ServerConfig{
		Addr:         cfg.App.HTTPAddr,
		Handler:      orch,
		Exchange:     client,
		Store:        tradeStore,
		MaxBodyBytes: cfg.Webhook.MaxBodyBytes,
		Info: livehttp.StatusInfo{
			Mode:         cfg.Exchange.Mode,
			Symbol:       tradingSymbol,
			Leverage:     cfg.Trading.Leverage,
			RiskPct:      riskPct,
			QtyPrecision: int32(cfg.Trading.QtyPrecision),
			StartedAt:    time.Now(),
		},
	})
	if err != nil {
		return nil, err
	}

	summary := &StartupSummary{
		Exchange: exSummary,
		Trading: TradingSummary{
			Symbol:       tradingSymbol,
			Leverage:     cfg.Trading.Leverage,
			RiskPct:      riskPct.String(),
			QtyPrecision: cfg.Trading.QtyPrecision,
		},
		Webhook:  WebhookSummary{AuthEnabled: validator.AuthEnabled(), MaxBodyBytes: cfg.Webhook.MaxBodyBytes},
		Storage:  StorageSummary{Driver: cfg.Storage.Driver, Location: storageLocation(cfg.Storage), Capacity: cfg.Storage.Capacity, Records: records},
		Channels: names,
		HTTPAddr: cfg.App.HTTPAddr,
	}
	return &App{cfg: cfg, liveHTTP: server, closers: closers, Summary: summary}, nil
}

// prepareExchange 连通性检查失败视为致命；杠杆设置失败只告警，沿用账户现有杠杆。
func prepareExchange(ctx context.Context, client ExchangeClient, cfg *config.Config, tradingSymbol string) (ExchangeSummary, error) {
	summary := ExchangeSummary{Mode: cfg.Exchange.Mode, BaseURL: cfg.Exchange.BaseURL()}
	pingCtx, cancel := context.WithTimeout(ctx, startupTimeout)
	defer cancel()
	if err := client.Ping(pingCtx); err != nil {
		return summary, fmt.Errorf("binance %s unreachable: %w", cfg.Exchange.Mode, err)
	}
	logger.Infof("✓ Binance %s 连接正常 %s", cfg.Exchange.Mode, summary.BaseURL)

	if cfg.Trading.SkipLeverageSetup {
		summary.LeverageNote = "skip_leverage_setup"
		return summary, nil
	}
	if err := client.SetLeverage(pingCtx, tradingSymbol, cfg.Trading.Leverage); err != nil {
		logger.Warnf("⚠️ 设置杠杆失败 symbol=%s leverage=%d: %v", tradingSymbol, cfg.Trading.Leverage, err)
		summary.LeverageNote = err.Error()
		return summary, nil
	}
	summary.LeverageSet = true
	return summary, nil
}

// NewExchangeClient 按 mode 选择凭证与 REST 入口。
func NewExchangeClient(ex config.ExchangeConfig, trading config.TradingConfig) (ExchangeClient, error) {
	creds, err := ex.ActiveCredentials()
	if err != nil {
		return nil, err
	}
	client, err := binance.New(binance.Config{
		APIKey:       creds.APIKey,
		APISecret:    creds.APISecret,
		RESTBaseURL:  ex.BaseURL(),
		HTTPTimeout:  ex.Timeout(),
		ProxyURL:     ex.ProxyURL,
		QtyPrecision: int32(trading.QtyPrecision),
	})
	if err != nil {
		return nil, err
	}
	return client, nil
}

// OpenStore 按 driver 打开交易历史存储。
func OpenStore(ctx context.Context, cfg config.StorageConfig) (store.TradeStore, error) {
	var (
		st  store.TradeStore
		err error
	)
	switch cfg.Driver {
	case config.StorageFile:
		st, err = jsonfile.New(cfg.Path, cfg.Capacity)
	case config.StoragePostgres:
		st, err = postgres.New(ctx, cfg.DSN, cfg.Capacity)
	case config.StorageSQLite, "":
		st, err = sqlite.NewSqliteStore(cfg.Path, cfg.Capacity)
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

func storageLocation(cfg config.StorageConfig) string {
	if cfg.Driver == config.StoragePostgres {
		return "(dsn)"
	}
	return cfg.Path
}

func buildNotifier(cfg config.NotifyConfig) (notifier.Notifier, []string) {
	var (
		channels notifier.Multi
		names    []string
	)
	if cfg.Telegram.Enabled {
		tg := notifier.NewTelegram(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Timeout())
		channels = append(channels, notifier.NewGuarded("telegram", tg, notifyBreakerThreshold, notifyBreakerCooldown))
		names = append(names, "telegram")
	}
	if cfg.Feishu.Enabled {
		fs := notifier.NewFeishu(cfg.Feishu.WebhookURL, cfg.Timeout())
		channels = append(channels, notifier.NewGuarded("feishu", fs, notifyBreakerThreshold, notifyBreakerCooldown))
		names = append(names, "feishu")
	}
	if len(channels) == 0 {
		return notifier.Nop{}, nil
	}
	return channels, names
}
