// Package jsonfile 以单个 JSON 数组文件保存交易历史，兼容旧版 logs/trade_history.json。
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"hooktrader/internal/store"
	"hooktrader/internal/store/model"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
	"gorm.io/datatypes"
)

type Store struct {
	path     string
	capacity int
	mu       sync.Mutex
}

func New(path string, capacity int) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("history file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	if capacity <= 0 {
		capacity = store.DefaultCapacity
	}
	return &Store{path: path, capacity: capacity}, nil
}

// Append 读-改-写整个文件，临时文件 + rename 保证不会留下半截内容。
func (s *Store) Append(ctx context.Context, rec *model.TradeRecord) error {
	if rec == nil {
		return fmt.Errorf("trade record cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	store.Prepare(rec)
	s.mu.Lock()
	defer s.mu.Unlock()
	records, err := s.load()
	if err != nil {
		return err
	}
	records = store.Bound(append(records, *rec), s.capacity)
	return s.write(records)
}

func (s *Store) List(ctx context.Context, f store.Filter) ([]model.TradeRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	records, err := s.load()
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return store.Select(records, f), nil
}

func (s *Store) Count(ctx context.Context) (int64, error) {
	records, err := s.List(ctx, store.Filter{})
	return int64(len(records)), err
}

func (s *Store) Close() error { return nil }

func (s *Store) load() ([]model.TradeRecord, error) {
	raw, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history file: %w", err)
	}
	if len(strings.TrimSpace(string(raw))) == 0 {
		return nil, nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, fmt.Errorf("history file %s is not valid JSON", s.path)
	}
	doc := gjson.ParseBytes(raw)
	if !doc.IsArray() {
		return nil, fmt.Errorf("history file %s must contain a JSON array", s.path)
	}
	var out []model.TradeRecord
	doc.ForEach(func(_, item gjson.Result) bool {
		out = append(out, decodeRecord(item))
		return true
	})
	return out, nil
}

// decodeRecord 容忍旧格式：order_id 为数字、数量价格为 float、缺少 id/status。
func decodeRecord(item gjson.Result) model.TradeRecord {
	rec := model.TradeRecord{
		ID:           item.Get("id").String(),
		Symbol:       item.Get("symbol").String(),
		Side:         strings.ToUpper(item.Get("side").String()),
		Quantity:     decimalOf(item.Get("qty")),
		Entry:        decimalOf(item.Get("entry")),
		Stop:         decimalOf(item.Get("stop")),
		OrderID:      item.Get("order_id").String(),
		CloseOrderID: item.Get("close_order_id").String(),
		Status:       model.TradeStatus(item.Get("status").String()),
		Mode:         item.Get("mode").String(),
		Message:      item.Get("message").String(),
	}
	if ts := item.Get("timestamp").String(); ts != "" {
		rec.Timestamp = parseTimestamp(ts)
	}
	if extra := item.Get("extra"); extra.IsObject() {
		rec.Extra = datatypes.JSON(extra.Raw)
	}
	if rec.Status == "" {
		rec.Status = model.TradeStatusOpened
	}
	return rec
}

func decimalOf(res gjson.Result) decimal.Decimal {
	text := res.Raw
	if res.Type == gjson.String {
		text = res.Str
	}
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func parseTimestamp(ts string) time.Time {
	layouts := []string{time.RFC3339Nano, "2006-01-02T15:04:05.999999", "2006-01-02T15:04:05", "2006-01-02 15:04:05"}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, ts, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

type fileRecord struct {
	ID           string          `json:"id"`
	Timestamp    string          `json:"timestamp"`
	Side         string          `json:"side"`
	Qty          json.Number     `json:"qty"`
	Entry        json.Number     `json:"entry"`
	Stop         json.Number     `json:"stop"`
	OrderID      any             `json:"order_id"`
	CloseOrderID string          `json:"close_order_id,omitempty"`
	Symbol       string          `json:"symbol"`
	Mode         string          `json:"mode"`
	Status       string          `json:"status"`
	Message      string          `json:"message,omitempty"`
	Extra        json.RawMessage `json:"extra,omitempty"`
}

func encodeRecord(rec model.TradeRecord) fileRecord {
	out := fileRecord{
		ID:           rec.ID,
		Timestamp:    rec.Timestamp.Format(time.RFC3339Nano),
		Side:         rec.Side,
		Qty:          json.Number(rec.Quantity.String()),
		Entry:        json.Number(rec.Entry.String()),
		Stop:         json.Number(rec.Stop.String()),
		CloseOrderID: rec.CloseOrderID,
		Symbol:       rec.Symbol,
		Mode:         rec.Mode,
		Status:       string(rec.Status),
		Message:      rec.Message,
	}
	// 数字型订单号按数字写出，与旧文件保持一致
	switch {
	case rec.OrderID == "":
		out.OrderID = nil
	case gjson.Valid(rec.OrderID) && gjson.Parse(rec.OrderID).Type == gjson.Number:
		out.OrderID = json.Number(rec.OrderID)
	default:
		out.OrderID = rec.OrderID
	}
	if len(rec.Extra) > 0 {
		out.Extra = json.RawMessage(rec.Extra)
	}
	return out
}

func (s *Store) write(records []model.TradeRecord) error {
	out := make([]fileRecord, len(records))
	for i, rec := range records {
		out[i] = encodeRecord(rec)
	}
	body, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".trade_history-*.json")
	if err != nil {
		return fmt.Errorf("create temp history file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(body); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp history file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp history file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace history file: %w", err)
	}
	return nil
}
