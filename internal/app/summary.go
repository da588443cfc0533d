package app

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"hooktrader/internal/logger"
)

// StartupSummary 启动时打印一次的配置摘要，不包含任何密钥。
type StartupSummary struct {
	Exchange ExchangeSummary
	Trading  TradingSummary
	Webhook  WebhookSummary
	Storage  StorageSummary
	Channels []string
	HTTPAddr string
}

type ExchangeSummary struct {
	Mode         string
	BaseURL      string
	LeverageSet  bool
	LeverageNote string
}

type TradingSummary struct {
	Symbol       string
	Leverage     int
	RiskPct      string
	QtyPrecision int
}

type WebhookSummary struct {
	AuthEnabled  bool
	MaxBodyBytes int64
}

type StorageSummary struct {
	Driver   string
	Location string
	Capacity int
	Records  int64
}

// Print 通过日志输出，使摘要同时进入滚动日志文件。
func (s *StartupSummary) Print() {
	var buf bytes.Buffer
	s.Fprint(&buf)
	logger.InfoBlock(buf.String())
}

func (s *StartupSummary) Fprint(w io.Writer) {
	line := strings.Repeat("=", 80)
	title := "启动配置摘要 (STARTUP SUMMARY)"
	fmt.Fprintln(w, line)
	fmt.Fprintf(w, "%*s\n", 40+len(title)/2, title)
	fmt.Fprintln(w, line)

	fmt.Fprintln(w, "[交易所 (EXCHANGE)]")
	fmt.Fprintf(w, "  模式: %s\n", s.Exchange.Mode)
	fmt.Fprintf(w, "  REST: %s\n", s.Exchange.BaseURL)
	leverage := "已设置"
	if !s.Exchange.LeverageSet {
		leverage = "未设置"
	}
	if s.Exchange.LeverageNote != "" {
		leverage += " (" + s.Exchange.LeverageNote + ")"
	}
	fmt.Fprintf(w, "  杠杆同步: %s\n", leverage)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[风控 (RISK)]")
	fmt.Fprintf(w, "  交易对: %s\n", s.Trading.Symbol)
	fmt.Fprintf(w, "  杠杆: %dx\n", s.Trading.Leverage)
	fmt.Fprintf(w, "  单笔风险: %s\n", s.Trading.RiskPct)
	fmt.Fprintf(w, "  数量精度: %d\n", s.Trading.QtyPrecision)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[Webhook]")
	if s.Webhook.AuthEnabled {
		fmt.Fprintln(w, "  鉴权: 已启用")
	} else {
		fmt.Fprintln(w, "  鉴权: 未配置 secret，所有请求都会被接受")
	}
	fmt.Fprintf(w, "  最大请求体: %d bytes\n", s.Webhook.MaxBodyBytes)
	fmt.Fprintf(w, "  监听: %s\n", s.HTTPAddr)
	fmt.Fprintln(w)

	fmt.Fprintln(w, "[历史记录 (HISTORY)]")
	fmt.Fprintf(w, "  存储: %s %s\n", s.Storage.Driver, s.Storage.Location)
	fmt.Fprintf(w, "  容量: %d (当前 %d 条)\n", s.Storage.Capacity, s.Storage.Records)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "[通知 (NOTIFY)] %s\n", formatList(s.Channels))
	fmt.Fprintln(w, line)
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
