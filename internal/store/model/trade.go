package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type TradeStatus string

const (
	TradeStatusOpened  TradeStatus = "opened"  // 空仓开仓
	TradeStatusFlipped TradeStatus = "flipped" // 反手：平旧仓后开新仓
	TradeStatusJournal TradeStatus = "journal" // 仅记录，未下单
)

// TradeRecord 是一次成功执行（或记录）的交易，写入后不再修改。
type TradeRecord struct {
	Seq          int64           `gorm:"column:seq;primaryKey;autoIncrement" json:"-"`
	ID           string          `gorm:"column:id;size:32;uniqueIndex" json:"id"`
	Timestamp    time.Time       `gorm:"column:timestamp;index" json:"timestamp"`
	Symbol       string          `gorm:"column:symbol;size:32;index" json:"symbol"`
	Side         string          `gorm:"column:side;size:8;index" json:"side"`
	Quantity     decimal.Decimal `gorm:"column:qty;type:text" json:"qty"`
	Entry        decimal.Decimal `gorm:"column:entry;type:text" json:"entry"`
	Stop         decimal.Decimal `gorm:"column:stop;type:text" json:"stop"`
	OrderID      string          `gorm:"column:order_id;size:64" json:"order_id,omitempty"`
	CloseOrderID string          `gorm:"column:close_order_id;size:64" json:"close_order_id,omitempty"`
	Status       TradeStatus     `gorm:"column:status;size:16" json:"status"`
	Mode         string          `gorm:"column:mode;size:16" json:"mode"`
	Message      string          `gorm:"column:message" json:"message,omitempty"`
	Extra        datatypes.JSON  `gorm:"column:extra" json:"extra,omitempty"`
}

func (TradeRecord) TableName() string {
	return "trade_history"
}
