package config

import "strings"

// 默认值常量
const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":80"
	defaultAppLogPath        = "logs/app.log"
	defaultAppLogMaxSizeMB   = 50
	defaultAppLogMaxBackups  = 5
	defaultExchangeMode      = ModeTestnet
	defaultExchangeTimeout   = 15
	defaultTradingSymbol     = "BTCUSDT"
	defaultTradingLeverage   = 3
	defaultTradingRiskPct    = 0.01
	defaultTradingPrecision  = 3
	defaultOrderTimeout      = 10
	defaultWebhookMaxBody    = 64 << 10
	defaultStorageDriver     = StorageSQLite
	defaultStorageSQLitePath = "logs/trade_history.db"
	defaultStorageFilePath   = "logs/trade_history.json"
	defaultStorageCapacity   = 1000
	defaultNotifyTimeout     = 5
)

// applyDefaults 为所有子配置应用默认值；显式写入的 key 不会被覆盖。
func (c *Config) applyDefaults(keys keySet) {
	c.App.applyDefaults(keys)
	c.Exchange.applyDefaults(keys)
	c.Trading.applyDefaults(keys)
	c.Webhook.applyDefaults(keys)
	c.Storage.applyDefaults(keys)
	c.Notify.applyDefaults(keys)
}

func (a *AppConfig) applyDefaults(keys keySet) {
	if a == nil {
		return
	}
	applyFieldDefaults(keys,
		stringFieldDefault("app.env", &a.Env, defaultAppEnv),
		stringFieldDefault("app.log_level", &a.LogLevel, defaultAppLogLevel),
		stringFieldDefault("app.http_addr", &a.HTTPAddr, defaultAppHTTPAddr),
		stringFieldDefault("app.log_path", &a.LogPath, defaultAppLogPath),
		intFieldDefault("app.log_max_size_mb", &a.LogMaxSizeMB, defaultAppLogMaxSizeMB),
		intFieldDefault("app.log_max_backups", &a.LogMaxBackups, defaultAppLogMaxBackups),
	)
}

func (e *ExchangeConfig) applyDefaults(keys keySet) {
	if e == nil {
		return
	}
	e.Mode = strings.ToLower(strings.TrimSpace(e.Mode))
	applyFieldDefaults(keys,
		stringFieldDefault("exchange.mode", &e.Mode, defaultExchangeMode),
		intFieldDefault("exchange.timeout_seconds", &e.TimeoutSeconds, defaultExchangeTimeout),
	)
}

func (t *TradingConfig) applyDefaults(keys keySet) {
	if t == nil {
		return
	}
	t.Symbol = strings.ToUpper(strings.TrimSpace(t.Symbol))
	applyFieldDefaults(keys,
		stringFieldDefault("trading.symbol", &t.Symbol, defaultTradingSymbol),
		intFieldDefault("trading.leverage", &t.Leverage, defaultTradingLeverage),
		fieldDefault{
			key:   "trading.risk_pct",
			need:  func() bool { return t.RiskPct == 0 },
			apply: func() { t.RiskPct = defaultTradingRiskPct },
		},
		// qty_precision=0 是合法值，只在未显式配置时补默认
		fieldDefault{
			key:   "trading.qty_precision",
			need:  func() bool { return t.QtyPrecision == 0 },
			apply: func() { t.QtyPrecision = defaultTradingPrecision },
		},
		intFieldDefault("trading.order_timeout_seconds", &t.OrderTimeoutSeconds, defaultOrderTimeout),
	)
}

func (w *WebhookConfig) applyDefaults(keys keySet) {
	if w == nil {
		return
	}
	applyFieldDefaults(keys,
		fieldDefault{
			key:   "webhook.max_body_bytes",
			need:  func() bool { return w.MaxBodyBytes <= 0 },
			apply: func() { w.MaxBodyBytes = defaultWebhookMaxBody },
		},
	)
}

func (s *StorageConfig) applyDefaults(keys keySet) {
	if s == nil {
		return
	}
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	applyFieldDefaults(keys,
		stringFieldDefault("storage.driver", &s.Driver, defaultStorageDriver),
		intFieldDefault("storage.capacity", &s.Capacity, defaultStorageCapacity),
	)
	if strings.TrimSpace(s.Path) == "" {
		switch s.Driver {
		case StorageSQLite:
			s.Path = defaultStorageSQLitePath
		case StorageFile:
			s.Path = defaultStorageFilePath
		}
	}
}

func (n *NotifyConfig) applyDefaults(keys keySet) {
	if n == nil {
		return
	}
	applyFieldDefaults(keys,
		intFieldDefault("notify.timeout_seconds", &n.TimeoutSeconds, defaultNotifyTimeout),
	)
	// 只配置了 webhook 地址视为启用（兼容 FEISHU_WEBHOOK 环境变量）
	if !keys.isSet("notify.feishu.enabled") && strings.TrimSpace(n.Feishu.WebhookURL) != "" {
		n.Feishu.Enabled = true
	}
	if !keys.isSet("notify.telegram.enabled") && n.Telegram.BotToken != "" && n.Telegram.ChatID != "" {
		n.Telegram.Enabled = true
	}
}

// Helper functions

func applyFieldDefaults(keys keySet, defs ...fieldDefault) {
	for _, def := range defs {
		if def.apply == nil {
			continue
		}
		if def.key != "" && keys.isSet(def.key) {
			continue
		}
		if def.need != nil && !def.need() {
			continue
		}
		def.apply()
	}
}

func stringFieldDefault(key string, target *string, def string) fieldDefault {
	return fieldDefault{
		key: key,
		need: func() bool {
			return target != nil && strings.TrimSpace(*target) == ""
		},
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}

func intFieldDefault(key string, target *int, def int) fieldDefault {
	return fieldDefault{
		key:  key,
		need: func() bool { return target != nil && *target <= 0 },
		apply: func() {
			if target != nil {
				*target = def
			}
		},
	}
}
