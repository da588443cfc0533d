package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// envBindings 将历史部署使用的环境变量映射到配置 key，环境变量优先于文件。
var envBindings = map[string]string{
	"BINANCE_MODE":             "exchange.mode",
	"BINANCE_TEST_API_KEY":     "exchange.testnet.api_key",
	"BINANCE_TEST_API_SECRET":  "exchange.testnet.api_secret",
	"BINANCE_MAIN_API_KEY":     "exchange.main.api_key",
	"BINANCE_MAIN_API_SECRET":  "exchange.main.api_secret",
	"BINANCE_REST_BASE_URL":    "exchange.rest_base_url",
	"SYMBOL":                   "trading.symbol",
	"LEVERAGE":                 "trading.leverage",
	"RISK_PCT":                 "trading.risk_pct",
	"QTY_PRECISION":            "trading.qty_precision",
	"SKIP_LEVERAGE_SETUP":      "trading.skip_leverage_setup",
	"WEBHOOK_SECRET":           "webhook.secret",
	"FEISHU_WEBHOOK":           "notify.feishu.webhook_url",
	"TELEGRAM_BOT_TOKEN":       "notify.telegram.bot_token",
	"TELEGRAM_CHAT_ID":         "notify.telegram.chat_id",
	"HOOKTRADER_LOG_LEVEL":     "app.log_level",
	"HOOKTRADER_LOG_PATH":      "app.log_path",
	"HOOKTRADER_STORAGE":       "storage.driver",
	"HOOKTRADER_STORAGE_PATH":  "storage.path",
	"HOOKTRADER_DATABASE_URL":  "storage.dsn",
	"HOOKTRADER_HTTP_ADDR":     "app.http_addr",
	"HOOKTRADER_ORDER_TIMEOUT": "trading.order_timeout_seconds",
}

// Load 读取 YAML 配置（文件可缺省），叠加 .env 与环境变量，补默认值并校验。
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	files, err := resolveConfigIncludes(path)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if err := mergeConfigFile(v, file); err != nil {
			return nil, fmt.Errorf("reading config file failed (%s): %w", file, err)
		}
	}
	if err := loadDotEnv(dotEnvPath()); err != nil {
		return nil, fmt.Errorf("reading .env failed: %w", err)
	}
	applyEnvOverrides(v)

	var cfg Config
	if err := v.Unmarshal(&cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "toml"
		dc.WeaklyTypedInput = true
	}); err != nil {
		return nil, fmt.Errorf("parsing config failed: %w", err)
	}
	setKeys := make(keySet)
	collectSettingsKeys(v.AllSettings(), setKeys)
	cfg.applyDefaults(setKeys)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyEnvOverrides(v *viper.Viper) {
	for env, key := range envBindings {
		if val, ok := os.LookupEnv(env); ok && strings.TrimSpace(val) != "" {
			v.Set(key, strings.TrimSpace(val))
		}
	}
	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		v.Set("app.http_addr", ":"+strings.TrimPrefix(port, ":"))
	}
}

func dotEnvPath() string {
	if p := strings.TrimSpace(os.Getenv("HOOKTRADER_ENV_FILE")); p != "" {
		return p
	}
	return ".env"
}

// loadDotEnv 读取 KEY=VALUE 文件写入进程环境，已存在的环境变量不覆盖。
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	env := viper.New()
	env.SetConfigFile(path)
	env.SetConfigType("env")
	if err := env.ReadInConfig(); err != nil {
		return err
	}
	for _, key := range env.AllKeys() {
		name := strings.ToUpper(key)
		if _, exists := os.LookupEnv(name); exists {
			continue
		}
		if err := os.Setenv(name, env.GetString(key)); err != nil {
			return err
		}
	}
	return nil
}

func mergeConfigFile(v *viper.Viper, path string) error {
	tmp := viper.New()
	tmp.SetConfigFile(path)
	if err := tmp.ReadInConfig(); err != nil {
		return err
	}
	return v.MergeConfigMap(tmp.AllSettings())
}

func resolveConfigIncludes(path string) ([]string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	return collectConfigFiles(abs, make(map[string]bool), make(map[string]bool))
}

func collectConfigFiles(path string, seen, stack map[string]bool) ([]string, error) {
	path = filepath.Clean(path)
	if stack[path] {
		return nil, fmt.Errorf("include cycle detected: %s", path)
	}
	if seen[path] {
		return nil, nil
	}
	stack[path] = true
	includes, err := parseIncludeList(path)
	if err != nil {
		return nil, fmt.Errorf("parsing include failed (%s): %w", path, err)
	}
	var ordered []string
	for _, inc := range includes {
		if !filepath.IsAbs(inc) {
			inc = filepath.Join(filepath.Dir(path), inc)
		}
		sub, err := collectConfigFiles(inc, seen, stack)
		if err != nil {
			return nil, err
		}
		ordered = append(ordered, sub...)
	}
	delete(stack, path)
	seen[path] = true
	return append(ordered, path), nil
}

func parseIncludeList(path string) ([]string, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}
	raw := v.Get("include")
	if raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("include must be a string array")
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		str, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("include only supports strings")
		}
		if str = strings.TrimSpace(str); str != "" {
			out = append(out, str)
		}
	}
	return out, nil
}

func collectSettingsKeys(settings map[string]any, dest keySet) {
	if dest == nil || len(settings) == 0 {
		return
	}
	flattenConfigKeys("", settings, dest)
}

func flattenConfigKeys(prefix string, node any, dest keySet) {
	switch val := node.(type) {
	case map[string]any:
		for k, v := range val {
			next := strings.ToLower(strings.TrimSpace(k))
			if next == "" {
				continue
			}
			if prefix != "" {
				next = prefix + "." + next
			}
			flattenConfigKeys(next, v, dest)
		}
	default:
		if prefix != "" {
			dest.mark(prefix)
		}
	}
}
