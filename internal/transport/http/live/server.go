package livehttp

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"net/http"
	"time"

	"hooktrader/internal/gateway/exchange"
	"hooktrader/internal/logger"
	"hooktrader/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

//go:embed templates/*.html
var templatesFS embed.FS

const defaultMaxBodyBytes = 64 << 10

// Server 对外提供 webhook、状态查询与历史看板。
type Server struct {
	addr   string
	router *gin.Engine
}

// ServerConfig 描述 HTTP 服务依赖。
type ServerConfig struct {
	Addr         string
	Handler      SignalHandler
	Exchange     exchange.Client
	Store        store.TradeStore
	Info         StatusInfo
	MaxBodyBytes int64
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Handler == nil {
		return nil, errors.New("http server requires a signal handler")
	}
	if cfg.Store == nil {
		return nil, errors.New("http server requires a trade store")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":80"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.Info.StartedAt.IsZero() {
		cfg.Info.StartedAt = time.Now()
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	tmpl, err := template.New("dashboard").Funcs(dashboardFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	router.SetHTMLTemplate(tmpl)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	NewRouter(cfg).Register(router)
	return &Server{addr: cfg.Addr, router: router}, nil
}

// requestLogger 记录每个请求的耗时与状态码；不记录 query，避免 secret 落入日志。
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			c.Request.Method, c.Request.URL.Path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}

// Handler 暴露底层 http.Handler，便于测试。
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start 启动 HTTP 服务，直到 ctx 取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("[http] listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
