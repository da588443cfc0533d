package livehttp

import (
	"html/template"
	"strings"
	"time"

	"hooktrader/internal/store"
	"hooktrader/internal/store/model"

	"github.com/shopspring/decimal"
)

var dashboardFuncs = template.FuncMap{
	"formatTime": func(t time.Time) string {
		if t.IsZero() {
			return "-"
		}
		return t.Local().Format("01-02 15:04:05")
	},
	"formatDecimal": func(d decimal.Decimal) string {
		if d.IsZero() {
			return "-"
		}
		return d.String()
	},
	"sideClass": func(side string) string {
		switch strings.ToUpper(side) {
		case "LONG":
			return "side-long"
		case "SHORT":
			return "side-short"
		default:
			return "side-other"
		}
	},
	"statusLabel": func(s model.TradeStatus) string {
		switch s {
		case model.TradeStatusFlipped:
			return "反手"
		case model.TradeStatusJournal:
			return "记录"
		default:
			return "开仓"
		}
	},
	"orDash": func(s string) string {
		if strings.TrimSpace(s) == "" {
			return "-"
		}
		return s
	},
}

type historyPage struct {
	Mode    string
	Symbol  string
	Filter  store.Filter
	Records []model.TradeRecord
	Total   int
	Longs   int
	Shorts  int
	Flips   int
}

// newHistoryPage 最新记录排在最前。
func newHistoryPage(info StatusInfo, f store.Filter, records []model.TradeRecord) historyPage {
	page := historyPage{Mode: info.Mode, Symbol: info.Symbol, Filter: f, Total: len(records)}
	page.Records = make([]model.TradeRecord, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		page.Records = append(page.Records, rec)
		switch strings.ToUpper(rec.Side) {
		case "LONG":
			page.Longs++
		case "SHORT":
			page.Shorts++
		}
		if rec.Status == model.TradeStatusFlipped {
			page.Flips++
		}
	}
	return page
}
