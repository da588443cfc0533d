package signal

import (
	"strings"

	"hooktrader/internal/gateway/exchange"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// JournalEntry 仅记录与通知、不下单的信号（如 A 股等非本账户品种）。
type JournalEntry struct {
	Action string
	Symbol string
	Side   exchange.Side
	Qty    decimal.Decimal
	Entry  decimal.Decimal
	Stop   decimal.Decimal
	TP1    decimal.NullDecimal
	TP2    decimal.NullDecimal
	Score  string
}

const journalActionEntry = "ENTRY"

// ValidateJournal 鉴权规则与 Validate 相同；action 不是 ENTRY 时 ignored=true 且不返回错误。
func (v *Validator) ValidateJournal(raw []byte, querySecret string) (entry JournalEntry, ignored bool, err error) {
	if err := v.Authenticate(raw, querySecret); err != nil {
		return JournalEntry{}, false, err
	}
	if gjson.ValidBytes(raw) {
		action := strings.ToUpper(strings.TrimSpace(gjson.GetBytes(raw, "action").String()))
		if action != "" && action != journalActionEntry {
			return JournalEntry{Action: action}, true, nil
		}
	}
	doc, err := v.parseObject(raw, v.journal)
	if err != nil {
		return JournalEntry{}, false, err
	}
	side, ok := exchange.ParseSide(doc.Get("side").String())
	if !ok || side != exchange.SideLong {
		return JournalEntry{}, false, invalid("journal signals only support LONG, got %q", doc.Get("side").String())
	}
	symbol := strings.TrimSpace(doc.Get("symbol").String())
	if symbol == "" {
		return JournalEntry{}, false, invalid("symbol cannot be empty")
	}
	entry = JournalEntry{Action: journalActionEntry, Symbol: symbol, Side: side}
	if entry.Qty, err = positiveDecimal(doc, "qty"); err != nil {
		return JournalEntry{}, false, err
	}
	if entry.Entry, err = positiveDecimal(doc, "entry"); err != nil {
		return JournalEntry{}, false, err
	}
	if entry.Stop, err = positiveDecimal(doc, "stop"); err != nil {
		return JournalEntry{}, false, err
	}
	if entry.TP1, err = optionalDecimal(doc, "tp1"); err != nil {
		return JournalEntry{}, false, err
	}
	if entry.TP2, err = optionalDecimal(doc, "tp2"); err != nil {
		return JournalEntry{}, false, err
	}
	if score := doc.Get("score"); score.Exists() && score.Type != gjson.Null {
		entry.Score = strings.TrimSpace(score.String())
	}
	return entry, false, nil
}

func optionalDecimal(doc gjson.Result, field string) (decimal.NullDecimal, error) {
	res := doc.Get(field)
	if !res.Exists() || res.Type == gjson.Null || (res.Type == gjson.String && strings.TrimSpace(res.Str) == "") {
		return decimal.NullDecimal{}, nil
	}
	d, err := decimalField(doc, field)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return decimal.NewNullDecimal(d), nil
}
