package binance

import (
	"strings"
	"time"
)

type Config struct {
	APIKey      string
	APISecret   string
	RESTBaseURL string
	HTTPTimeout time.Duration
	ProxyURL    string

	// QtyPrecision 决定下单数量字符串的小数位数。
	QtyPrecision int32
	// ClientOrderPrefix 写入 newClientOrderId，便于在交易所侧识别来源。
	ClientOrderPrefix string
}

func (c *Config) withDefaults() Config {
	out := *c
	out.RESTBaseURL = strings.TrimRight(strings.TrimSpace(out.RESTBaseURL), "/")
	if out.RESTBaseURL == "" {
		out.RESTBaseURL = "https://testnet.binancefuture.com"
	}
	if out.HTTPTimeout <= 0 {
		out.HTTPTimeout = 15 * time.Second
	}
	out.ProxyURL = strings.TrimSpace(out.ProxyURL)
	if out.ClientOrderPrefix == "" {
		out.ClientOrderPrefix = "hk"
	}
	return out
}
