package app

import (
	"context"
	"fmt"
	"io"

	"hooktrader/internal/config"
	"hooktrader/internal/logger"
	livehttp "hooktrader/internal/transport/http/live"

	"golang.org/x/sync/errgroup"
)

// App 负责应用级编排：加载配置 -> 初始化依赖 -> 启动 HTTP 服务。
type App struct {
	cfg      *config.Config
	liveHTTP *livehttp.Server
	closers  []io.Closer
	Summary  *StartupSummary
}

// NewApp 根据配置构建应用对象（不启动）。
func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(ctx, cfg)
}

// Run 阻塞直到 ctx 取消或 HTTP 服务出错，退出前按逆序释放资源。
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.liveHTTP == nil {
		return fmt.Errorf("http server not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	defer a.Close()

	group, ctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := a.liveHTTP.Start(ctx); err != nil {
			return fmt.Errorf("http server error: %w", err)
		}
		return nil
	})
	return group.Wait()
}

// Close 先排空异步通知，再关闭存储。
func (a *App) Close() error {
	if a == nil {
		return nil
	}
	var firstErr error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			logger.Warnf("[app] close failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	a.closers = nil
	return firstErr
}

// HTTPServer 暴露底层 HTTP 服务（测试用）。
func (a *App) HTTPServer() *livehttp.Server {
	if a == nil {
		return nil
	}
	return a.liveHTTP
}
