package store

import (
	"context"
	"strings"
	"time"

	"hooktrader/internal/pkg/id"
	"hooktrader/internal/pkg/symbol"
	"hooktrader/internal/store/model"
)

// DefaultCapacity is the number of trade records kept before FIFO eviction.
const DefaultCapacity = 1000

// TradeStore persists the bounded trade history.
type TradeStore interface {
	// Append adds a record and evicts the oldest beyond capacity, atomically.
	Append(ctx context.Context, rec *model.TradeRecord) error
	// List returns records oldest-first; Limit keeps only the most recent N.
	List(ctx context.Context, f Filter) ([]model.TradeRecord, error)
	// Count returns the number of stored records.
	Count(ctx context.Context) (int64, error)
	// Close releases the underlying resources.
	Close() error
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	Side   string
	Symbol string
	Limit  int
}

// Normalize upper-cases side and converts symbol to exchange form.
func (f Filter) Normalize() Filter {
	f.Side = strings.ToUpper(strings.TrimSpace(f.Side))
	if strings.TrimSpace(f.Symbol) != "" {
		f.Symbol = symbol.Normalize(f.Symbol)
	}
	if f.Limit < 0 {
		f.Limit = 0
	}
	return f
}

// Match reports whether rec passes the (normalized) filter.
func (f Filter) Match(rec model.TradeRecord) bool {
	if f.Side != "" && !strings.EqualFold(rec.Side, f.Side) {
		return false
	}
	if f.Symbol != "" && symbol.Normalize(rec.Symbol) != f.Symbol {
		return false
	}
	return true
}

// Prepare fills ID and Timestamp when the caller left them empty and stores
// the symbol in exchange form so equality filters match Filter.Normalize.
func Prepare(rec *model.TradeRecord) {
	if strings.TrimSpace(rec.Symbol) != "" {
		rec.Symbol = symbol.Normalize(rec.Symbol)
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	if rec.ID == "" {
		rec.ID = id.NewAt(rec.Timestamp)
	}
}
