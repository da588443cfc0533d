package config

import (
	"fmt"
	"strings"
)

// validate 对配置进行基础校验。
func validate(c *Config) error {
	if err := c.Exchange.validate(); err != nil {
		return err
	}
	if err := c.Trading.validate(); err != nil {
		return err
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Notify.validate(); err != nil {
		return err
	}
	return nil
}

func (e *ExchangeConfig) validate() error {
	if e.Mode != ModeTestnet && e.Mode != ModeMain {
		return fmt.Errorf("exchange.mode must be %q or %q, got %q", ModeTestnet, ModeMain, e.Mode)
	}
	if e.TimeoutSeconds <= 0 {
		return fmt.Errorf("exchange.timeout_seconds must be > 0")
	}
	return nil
}

func (t *TradingConfig) validate() error {
	if strings.TrimSpace(t.Symbol) == "" {
		return fmt.Errorf("trading.symbol cannot be empty")
	}
	if t.Leverage < 1 || t.Leverage > 125 {
		return fmt.Errorf("trading.leverage must be in [1, 125], got %d", t.Leverage)
	}
	if t.RiskPct <= 0 || t.RiskPct > 1 {
		return fmt.Errorf("trading.risk_pct must be in (0, 1], got %v", t.RiskPct)
	}
	if t.QtyPrecision < 0 || t.QtyPrecision > 8 {
		return fmt.Errorf("trading.qty_precision must be in [0, 8], got %d", t.QtyPrecision)
	}
	if t.OrderTimeoutSeconds <= 0 {
		return fmt.Errorf("trading.order_timeout_seconds must be > 0")
	}
	return nil
}

func (s *StorageConfig) validate() error {
	switch s.Driver {
	case StorageSQLite, StorageFile:
		if strings.TrimSpace(s.Path) == "" {
			return fmt.Errorf("storage.path cannot be empty for driver %s", s.Driver)
		}
	case StoragePostgres:
		if strings.TrimSpace(s.DSN) == "" {
			return fmt.Errorf("storage.dsn cannot be empty for driver postgres")
		}
	default:
		return fmt.Errorf("storage.driver only supports sqlite|file|postgres, got %s", s.Driver)
	}
	if s.Capacity <= 0 {
		return fmt.Errorf("storage.capacity must be > 0")
	}
	return nil
}

func (n *NotifyConfig) validate() error {
	if n.Telegram.Enabled {
		if n.Telegram.BotToken == "" || n.Telegram.ChatID == "" {
			return fmt.Errorf("telegram notification enabled but missing bot_token or chat_id")
		}
	}
	if n.Feishu.Enabled && strings.TrimSpace(n.Feishu.WebhookURL) == "" {
		return fmt.Errorf("feishu notification enabled but missing webhook_url")
	}
	return nil
}
