// Package cli 定义 hooktrader 的命令行入口。
package cli

import (
	"os"
	"strings"

	"hooktrader/internal/config"
	"hooktrader/internal/logger"

	"github.com/spf13/cobra"
)

const defaultConfigPath = "configs/config.yaml"

// RootOptions 在各子命令间共享。
type RootOptions struct {
	ConfigPath string
	LogLevel   string
}

func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}
	cmd := &cobra.Command{
		Use:           "hooktrader",
		Short:         "TradingView webhook -> Binance futures executor",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", envOr("HOOKTRADER_CONFIG", defaultConfigPath), "config file path")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override app.log_level")

	cmd.AddCommand(
		newServeCmd(opts),
		newAccountCmd(opts),
		newHistoryCmd(opts),
	)
	return cmd
}

func (o *RootOptions) load() (*config.Config, error) {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return nil, err
	}
	if lvl := strings.TrimSpace(o.LogLevel); lvl != "" {
		cfg.App.LogLevel = lvl
	}
	logger.SetLevel(cfg.App.LogLevel)
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
