package cli

import (
	"fmt"
	"os/signal"
	"syscall"

	"hooktrader/internal/app"
	"hooktrader/internal/logger"

	"github.com/spf13/cobra"
)

func newServeCmd(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the webhook HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
}

func runServe(cmd *cobra.Command, opts *RootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return fmt.Errorf("读取配置失败: %w", err)
	}
	logFile, err := logger.SetupFile(logger.FileOptions{
		Path:       cfg.App.LogPath,
		MaxSizeMB:  cfg.App.LogMaxSizeMB,
		MaxBackups: cfg.App.LogMaxBackups,
		Compress:   true,
	})
	if err != nil {
		return fmt.Errorf("初始化日志文件失败: %w", err)
	}
	if logFile != nil {
		defer logFile.Close()
	}
	logger.Infof("✓ 配置加载成功（环境=%s，模式=%s，交易对=%s）", cfg.App.Env, cfg.Exchange.Mode, cfg.Trading.Symbol)

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	application, err := app.NewApp(ctx, cfg)
	if err != nil {
		return fmt.Errorf("初始化应用失败: %w", err)
	}
	if err := application.Run(ctx); err != nil && ctx.Err() == nil {
		return fmt.Errorf("运行失败: %w", err)
	}
	logger.Infof("hooktrader stopped")
	return nil
}

