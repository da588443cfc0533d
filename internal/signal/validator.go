// Package signal 校验 webhook 负载并转换为可执行的交易信号。
package signal

import (
	"bytes"
	"crypto/subtle"
	"fmt"
	"strings"

	"hooktrader/internal/gateway/exchange"
	"hooktrader/internal/pkg/errs"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// Signal 是通过鉴权与字段校验后的交易指令。
type Signal struct {
	Side  exchange.Side
	Entry decimal.Decimal
	Stop  decimal.Decimal

	// 以下字段仅用于日志与通知
	Symbol  string
	Message string
}

// StopDistance 返回 |entry - stop|。
func (s Signal) StopDistance() decimal.Decimal {
	return s.Entry.Sub(s.Stop).Abs()
}

// Validator 无副作用，可被多个请求并发使用。
type Validator struct {
	secret  []byte
	trade   *jsonschema.Schema
	journal *jsonschema.Schema
}

func NewValidator(secret string) (*Validator, error) {
	trade, err := compileSchema("trade_signal.json", tradeSchemaJSON)
	if err != nil {
		return nil, err
	}
	journal, err := compileSchema("journal_signal.json", journalSchemaJSON)
	if err != nil {
		return nil, err
	}
	return &Validator{secret: []byte(secret), trade: trade, journal: journal}, nil
}

// AuthEnabled 未配置 secret 时所有请求视为已授权。
func (v *Validator) AuthEnabled() bool {
	return len(v.secret) > 0
}

// Authenticate 校验共享密钥：body 中存在 secret 字段时以其为准，否则使用 query 参数。
// 该检查先于任何交易字段解析，负载无效也不影响鉴权结果。
func (v *Validator) Authenticate(raw []byte, querySecret string) error {
	if !v.AuthEnabled() {
		return nil
	}
	provided, ok := querySecret, querySecret != ""
	if gjson.ValidBytes(raw) {
		if field := gjson.GetBytes(raw, "secret"); field.Exists() {
			provided, ok = field.String(), true
		}
	}
	if !ok {
		return errs.New(errs.KindAuth, "authenticate", "secret missing")
	}
	if subtle.ConstantTimeCompare([]byte(provided), v.secret) != 1 {
		return errs.New(errs.KindAuth, "authenticate", "secret mismatch")
	}
	return nil
}

// Validate 执行鉴权与字段校验，成功时返回标准化后的 Signal。
func (v *Validator) Validate(raw []byte, querySecret string) (Signal, error) {
	if err := v.Authenticate(raw, querySecret); err != nil {
		return Signal{}, err
	}
	doc, err := v.parseObject(raw, v.trade)
	if err != nil {
		return Signal{}, err
	}
	side, ok := exchange.ParseSide(doc.Get("side").String())
	if !ok {
		return Signal{}, invalid("side must be LONG or SHORT, got %q", doc.Get("side").String())
	}
	entry, err := positiveDecimal(doc, "entry")
	if err != nil {
		return Signal{}, err
	}
	stop, err := positiveDecimal(doc, "stop")
	if err != nil {
		return Signal{}, err
	}
	if entry.Equal(stop) {
		return Signal{}, invalid("entry and stop must differ, both are %s", entry.String())
	}
	sig := Signal{
		Side:    side,
		Entry:   entry,
		Stop:    stop,
		Message: strings.TrimSpace(doc.Get("message").String()),
	}
	sig.Symbol = strings.TrimSpace(doc.Get("symbol").String())
	if sig.Symbol == "" {
		sig.Symbol = strings.TrimSpace(doc.Get("ticker").String())
	}
	return sig, nil
}

func (v *Validator) parseObject(raw []byte, schema *jsonschema.Schema) (gjson.Result, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return gjson.Result{}, invalid("empty payload")
	}
	if !gjson.ValidBytes(raw) {
		return gjson.Result{}, invalid("payload is not valid JSON")
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsObject() {
		return gjson.Result{}, invalid("payload must be a JSON object")
	}
	if err := schema.Validate(doc.Value()); err != nil {
		return gjson.Result{}, invalid("%s", schemaViolations(err))
	}
	return doc, nil
}

// positiveDecimal 读取数字或数字字符串；数字直接取原文，避免 float 精度损失。
func positiveDecimal(doc gjson.Result, field string) (decimal.Decimal, error) {
	d, err := decimalField(doc, field)
	if err != nil {
		return decimal.Zero, err
	}
	if !d.IsPositive() {
		return decimal.Zero, invalid("%s must be > 0, got %s", field, d.String())
	}
	return d, nil
}

func decimalField(doc gjson.Result, field string) (decimal.Decimal, error) {
	res := doc.Get(field)
	var text string
	switch res.Type {
	case gjson.Number:
		text = res.Raw
	case gjson.String:
		text = strings.TrimSpace(res.Str)
	default:
		return decimal.Zero, invalid("%s must be a number", field)
	}
	d, err := decimal.NewFromString(text)
	if err != nil {
		return decimal.Zero, invalid("%s is not a valid number: %q", field, text)
	}
	return d, nil
}

func invalid(format string, args ...any) error {
	return errs.New(errs.KindValidation, "validate signal", format, args...)
}

func (s Signal) String() string {
	return fmt.Sprintf("%s entry=%s stop=%s", s.Side, s.Entry.String(), s.Stop.String())
}
