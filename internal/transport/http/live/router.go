package livehttp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"hooktrader/internal/execution"
	"hooktrader/internal/gateway/exchange"
	"hooktrader/internal/logger"
	"hooktrader/internal/pkg/errs"
	"hooktrader/internal/store"
	"hooktrader/internal/store/model"

	"github.com/gin-gonic/gin"
	"github.com/tidwall/gjson"
)

const (
	defaultHistoryLimit  = 100
	recentTradesOnStatus = 10
	statusTimeout        = 10 * time.Second
)

// Router 持有各路由的依赖。
type Router struct {
	handler  SignalHandler
	exchange exchange.Client
	store    store.TradeStore
	info     StatusInfo
	maxBody  int64
}

func NewRouter(cfg ServerConfig) *Router {
	return &Router{
		handler:  cfg.Handler,
		exchange: cfg.Exchange,
		store:    cfg.Store,
		info:     cfg.Info,
		maxBody:  cfg.MaxBodyBytes,
	}
}

func (r *Router) Register(engine *gin.Engine) {
	engine.POST("/webhook", r.handleWebhook)
	engine.POST("/webhook/journal", r.handleJournal)
	engine.GET("/status", r.handleStatus)
	engine.GET("/health", r.handleHealth)
	engine.GET("/api/history", r.handleHistoryAPI)
	engine.GET("/history", r.handleHistoryPage)
}

func (r *Router) handleWebhook(c *gin.Context) {
	raw, ok := r.readBody(c)
	if !ok {
		return
	}
	res, err := r.handler.Handle(c.Request.Context(), raw, c.Query("secret"))
	if err != nil {
		writeError(c, err)
		return
	}
	if res.Status == execution.StatusSkip {
		c.JSON(http.StatusOK, gin.H{"status": res.Status, "reason": res.Reason})
		return
	}
	body := gin.H{
		"status":   res.Status,
		"qty":      json.Number(res.Quantity.String()),
		"side":     res.Side,
		"order_id": res.OrderID,
	}
	if res.CloseOrderID != "" {
		body["close_order_id"] = res.CloseOrderID
	}
	c.JSON(http.StatusOK, body)
}

func (r *Router) handleJournal(c *gin.Context) {
	raw, ok := r.readBody(c)
	if !ok {
		return
	}
	res, err := r.handler.Record(c.Request.Context(), raw, c.Query("secret"))
	if err != nil {
		writeError(c, err)
		return
	}
	if res.Status == execution.StatusIgnored {
		c.JSON(http.StatusOK, gin.H{"status": res.Status, "reason": res.Reason})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": res.Status, "id": res.RecordID})
}

// readBody 读取限长请求体；表单提交时转换为等价的 JSON 对象。
func (r *Router) readBody(c *gin.Context) ([]byte, bool) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, r.maxBody)
	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"status": "error", "error": "payload too large"})
			return nil, false
		}
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "cannot read body"})
		return nil, false
	}
	if c.ContentType() == "application/x-www-form-urlencoded" && !gjson.ValidBytes(raw) {
		if converted, ok := formToJSON(raw); ok {
			raw = converted
		}
	}
	return raw, true
}

func formToJSON(raw []byte) ([]byte, bool) {
	values, err := url.ParseQuery(string(raw))
	if err != nil || len(values) == 0 {
		return nil, false
	}
	obj := make(map[string]string, len(values))
	for k := range values {
		obj[k] = values.Get(k)
	}
	out, err := json.Marshal(obj)
	if err != nil {
		return nil, false
	}
	return out, true
}

func writeError(c *gin.Context, err error) {
	kind := errs.KindOf(err)
	body := gin.H{"status": "error", "error": errs.Public(err), "kind": kind.String()}
	var e *errs.Error
	if errors.As(err, &e) && e.Degraded {
		body["degraded"] = true
		body["close_order_id"] = e.CloseOrderID
	}
	c.JSON(kind.HTTPStatus(), body)
}

func (r *Router) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "healthy",
		"mode":       r.info.Mode,
		"symbol":     r.info.Symbol,
		"uptime_sec": int64(time.Since(r.info.StartedAt).Seconds()),
	})
}

func (r *Router) handleStatus(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), statusTimeout)
	defer cancel()

	body := gin.H{
		"mode":   r.info.Mode,
		"symbol": r.info.Symbol,
		"config": configView{
			Leverage:     r.info.Leverage,
			RiskPct:      r.info.RiskPct.String(),
			QtyPrecision: r.info.QtyPrecision,
		},
	}
	if recent, err := r.store.List(ctx, store.Filter{Limit: recentTradesOnStatus}); err != nil {
		logger.Warnf("[api] status history failed: %v", err)
		body["recent_trades"] = []model.TradeRecord{}
	} else {
		body["recent_trades"] = nonNil(recent)
	}
	if count, err := r.store.Count(ctx); err == nil {
		body["trade_history_count"] = count
	}

	if r.exchange == nil {
		body["status"] = "error"
		body["error"] = "exchange client not configured"
		c.JSON(http.StatusBadGateway, body)
		return
	}
	snap, err := r.exchange.AccountSnapshot(ctx, r.info.Symbol)
	if err != nil {
		logger.Errorf("[api] status account failed: %v", err)
		body["status"] = "error"
		body["error"] = err.Error()
		c.JSON(http.StatusBadGateway, body)
		return
	}
	body["status"] = "ok"
	body["balance"] = balanceView{
		Asset:              snap.Asset,
		Available:          snap.AvailableBalance.String(),
		TotalWalletBalance: snap.TotalWalletBalance.String(),
	}
	pos := snap.Position
	side := string(pos.Side)
	if pos.IsFlat() {
		side = string(exchange.SideNone)
	}
	body["position"] = positionView{
		Side:          side,
		Quantity:      pos.Quantity.String(),
		EntryPrice:    pos.EntryPrice.String(),
		MarkPrice:     pos.MarkPrice.String(),
		UnrealizedPnL: pos.UnrealizedPnL.String(),
		Leverage:      pos.Leverage,
	}
	c.JSON(http.StatusOK, body)
}

func (r *Router) handleHistoryAPI(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	records, err := r.store.List(c.Request.Context(), filter)
	if err != nil {
		logger.Errorf("[api] history list failed ip=%s err=%v", c.ClientIP(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "history unavailable"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "history": nonNil(records), "count": len(records)})
}

func (r *Router) handleHistoryPage(c *gin.Context) {
	filter, ok := parseFilter(c)
	if !ok {
		return
	}
	records, err := r.store.List(c.Request.Context(), filter)
	if err != nil {
		logger.Errorf("[api] history page failed ip=%s err=%v", c.ClientIP(), err)
		c.String(http.StatusInternalServerError, "history unavailable")
		return
	}
	c.HTML(http.StatusOK, "history.html", newHistoryPage(r.info, filter, records))
}

// parseFilter 解析 limit/side/symbol；limit=0 表示全部。
func parseFilter(c *gin.Context) (store.Filter, bool) {
	f := store.Filter{
		Side:   c.Query("side"),
		Symbol: c.Query("symbol"),
		Limit:  defaultHistoryLimit,
	}
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "limit must be a non-negative integer"})
			return store.Filter{}, false
		}
		f.Limit = n
	}
	f = f.Normalize()
	if f.Side != "" && f.Side != string(exchange.SideLong) && f.Side != string(exchange.SideShort) {
		c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "side must be LONG or SHORT"})
		return store.Filter{}, false
	}
	return f, true
}

func nonNil(records []model.TradeRecord) []model.TradeRecord {
	if records == nil {
		return []model.TradeRecord{}
	}
	return records
}
