package store

import "hooktrader/internal/store/model"

// Bound keeps the newest capacity records, preserving append order.
func Bound(records []model.TradeRecord, capacity int) []model.TradeRecord {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	if len(records) <= capacity {
		return records
	}
	out := make([]model.TradeRecord, capacity)
	copy(out, records[len(records)-capacity:])
	return out
}

// Select applies f to records (oldest-first) and trims to the most recent Limit.
func Select(records []model.TradeRecord, f Filter) []model.TradeRecord {
	f = f.Normalize()
	out := make([]model.TradeRecord, 0, len(records))
	for _, rec := range records {
		if f.Match(rec) {
			out = append(out, rec)
		}
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[len(out)-f.Limit:]
	}
	return out
}
