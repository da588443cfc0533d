// Package sizing 按固定风险比例计算下单数量。
package sizing

import (
	"fmt"

	"hooktrader/internal/pkg/errs"

	"github.com/shopspring/decimal"
)

// Params 是计算仓位所需的风控参数。
type Params struct {
	RiskPct      decimal.Decimal // (0,1]
	Leverage     int
	QtyPrecision int32
}

// Breakdown 记录一次计算的中间量，便于日志追踪。
type Breakdown struct {
	Available    decimal.Decimal
	RiskAmount   decimal.Decimal
	StopDistance decimal.Decimal
	RawQuantity  decimal.Decimal
	Quantity     decimal.Decimal
}

func (b Breakdown) String() string {
	return fmt.Sprintf("available=%s risk=%s dist=%s raw=%s qty=%s",
		b.Available.String(), b.RiskAmount.String(), b.StopDistance.String(), b.RawQuantity.String(), b.Quantity.String())
}

type Sizer struct {
	params Params
}

func NewSizer(p Params) (*Sizer, error) {
	if !p.RiskPct.IsPositive() || p.RiskPct.GreaterThan(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("risk pct must be in (0, 1], got %s", p.RiskPct.String())
	}
	if p.Leverage < 1 {
		return nil, fmt.Errorf("leverage must be >= 1, got %d", p.Leverage)
	}
	if p.QtyPrecision < 0 || p.QtyPrecision > 8 {
		return nil, fmt.Errorf("qty precision must be in [0, 8], got %d", p.QtyPrecision)
	}
	return &Sizer{params: p}, nil
}

func (s *Sizer) Params() Params { return s.params }

// Size 计算下单数量：
//
//	risk = available * riskPct
//	qty  = trunc(risk * leverage / |entry - stop|, precision)
//
// 结果向零截断到 QtyPrecision 位，不会向上取整。
func (s *Sizer) Size(available, entry, stop decimal.Decimal) (decimal.Decimal, Breakdown, error) {
	bd := Breakdown{Available: available}
	if !available.IsPositive() {
		return decimal.Zero, bd, errs.New(errs.KindSizing, "size position", "available balance must be > 0, got %s", available.String())
	}
	bd.StopDistance = entry.Sub(stop).Abs()
	if bd.StopDistance.IsZero() {
		return decimal.Zero, bd, errs.New(errs.KindSizing, "size position", "stop distance is zero")
	}
	bd.RiskAmount = available.Mul(s.params.RiskPct)
	notional := bd.RiskAmount.Mul(decimal.NewFromInt(int64(s.params.Leverage)))
	bd.RawQuantity = notional.DivRound(bd.StopDistance, 16)
	// QuoRem 的商按精度向零截断，不经过中间舍入
	bd.Quantity, _ = notional.QuoRem(bd.StopDistance, s.params.QtyPrecision)
	if !bd.Quantity.IsPositive() {
		return decimal.Zero, bd, errs.New(errs.KindSizing, "size position",
			"quantity %s rounds to zero at precision %d", bd.RawQuantity.String(), s.params.QtyPrecision)
	}
	return bd.Quantity, bd, nil
}
