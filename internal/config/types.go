package config

import (
	"fmt"
	"strings"
	"time"
)

// Config 是 hooktrader 的主配置载体，加载完成后只读。
type Config struct {
	App      AppConfig      `toml:"app"`
	Exchange ExchangeConfig `toml:"exchange"`
	Trading  TradingConfig  `toml:"trading"`
	Webhook  WebhookConfig  `toml:"webhook"`
	Storage  StorageConfig  `toml:"storage"`
	Notify   NotifyConfig   `toml:"notify"`
}

type AppConfig struct {
	Env           string `toml:"env"`
	LogLevel      string `toml:"log_level"`
	HTTPAddr      string `toml:"http_addr"`
	LogPath       string `toml:"log_path"`
	LogMaxSizeMB  int    `toml:"log_max_size_mb"`
	LogMaxBackups int    `toml:"log_max_backups"`
}

const (
	ModeTestnet = "testnet"
	ModeMain    = "main"
)

// ExchangeConfig 描述 Binance U 本位合约账户的接入方式。
type ExchangeConfig struct {
	Mode           string      `toml:"mode"` // testnet | main
	Testnet        Credentials `toml:"testnet"`
	Main           Credentials `toml:"main"`
	RESTBaseURL    string      `toml:"rest_base_url"` // 为空时按 mode 选择
	TimeoutSeconds int         `toml:"timeout_seconds"`
	ProxyURL       string      `toml:"proxy_url"`
}

type Credentials struct {
	APIKey    string `toml:"api_key"`
	APISecret string `toml:"api_secret"`
}

const (
	TestnetBaseURL = "https://testnet.binancefuture.com"
	MainBaseURL    = "https://fapi.binance.com"
)

// ActiveCredentials 返回当前 mode 对应的 API 凭证。
func (e ExchangeConfig) ActiveCredentials() (Credentials, error) {
	creds := e.Testnet
	if e.Mode == ModeMain {
		creds = e.Main
	}
	if strings.TrimSpace(creds.APIKey) == "" || strings.TrimSpace(creds.APISecret) == "" {
		return Credentials{}, fmt.Errorf("exchange.%s api_key/api_secret not configured", e.Mode)
	}
	return creds, nil
}

// BaseURL 返回 REST 入口；显式配置优先。
func (e ExchangeConfig) BaseURL() string {
	if u := strings.TrimSpace(e.RESTBaseURL); u != "" {
		return u
	}
	if e.Mode == ModeMain {
		return MainBaseURL
	}
	return TestnetBaseURL
}

func (e ExchangeConfig) Timeout() time.Duration {
	return time.Duration(e.TimeoutSeconds) * time.Second
}

// TradingConfig 即风控参数：单币种、固定杠杆、按余额比例承担风险。
type TradingConfig struct {
	Symbol              string  `toml:"symbol"`
	Leverage            int     `toml:"leverage"`      // 1~125
	RiskPct             float64 `toml:"risk_pct"`      // 单笔风险占可用余额比例 (0,1]
	QtyPrecision        int     `toml:"qty_precision"` // 下单数量小数位 0~8
	SkipLeverageSetup   bool    `toml:"skip_leverage_setup"`
	OrderTimeoutSeconds int     `toml:"order_timeout_seconds"`
}

func (t TradingConfig) OrderTimeout() time.Duration {
	return time.Duration(t.OrderTimeoutSeconds) * time.Second
}

type WebhookConfig struct {
	Secret       string `toml:"secret"`
	MaxBodyBytes int64  `toml:"max_body_bytes"`
}

// AuthEnabled 未配置 secret 时不做鉴权。
func (w WebhookConfig) AuthEnabled() bool {
	return w.Secret != ""
}

const (
	StorageSQLite   = "sqlite"
	StorageFile     = "file"
	StoragePostgres = "postgres"
)

type StorageConfig struct {
	Driver   string `toml:"driver"`
	Path     string `toml:"path"`
	DSN      string `toml:"dsn"`
	Capacity int    `toml:"capacity"`
}

type NotifyConfig struct {
	TimeoutSeconds int            `toml:"timeout_seconds"`
	Telegram       TelegramConfig `toml:"telegram"`
	Feishu         FeishuConfig   `toml:"feishu"`
}

func (n NotifyConfig) Timeout() time.Duration {
	return time.Duration(n.TimeoutSeconds) * time.Second
}

type TelegramConfig struct {
	Enabled  bool   `toml:"enabled"`
	BotToken string `toml:"bot_token"`
	ChatID   string `toml:"chat_id"`
}

type FeishuConfig struct {
	Enabled    bool   `toml:"enabled"`
	WebhookURL string `toml:"webhook_url"`
}

type keySet map[string]struct{}

func (k keySet) mark(path string) {
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return
	}
	k[path] = struct{}{}
}

func (k keySet) isSet(path string) bool {
	if len(k) == 0 {
		return false
	}
	path = strings.ToLower(strings.TrimSpace(path))
	if path == "" {
		return false
	}
	_, ok := k[path]
	return ok
}

type fieldDefault struct {
	key   string
	need  func() bool
	apply func()
}
