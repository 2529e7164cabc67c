// Package fixedpoint converts between size, price and notional amounts that
// are stored as int64 integers scaled by a fixed precision factor.
//
// Intermediates are computed with exact decimals so that products such as
// size*price never overflow int64 and never pass through float64.
package fixedpoint

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

var (
	one     = decimal.NewFromInt(1)
	two     = decimal.NewFromInt(2)
	hundred = decimal.NewFromInt(100)

	minInt64 = decimal.NewFromInt(math.MinInt64)
	maxInt64 = decimal.NewFromInt(math.MaxInt64)
)

// Converter performs fixed-point conversions at a single scale.
type Converter struct {
	scale decimal.Decimal
	raw   int64
}

// New returns a Converter for the given scale. A non-positive scale falls
// back to domain.Precision.
func New(scale int64) Converter {
	if scale <= 0 {
		scale = domain.Precision
	}
	return Converter{scale: decimal.NewFromInt(scale), raw: scale}
}

// Default returns a Converter at domain.Precision.
func Default() Converter { return New(domain.Precision) }

// Scale returns the precision factor.
func (c Converter) Scale() int64 { return c.raw }

// SizeFromNotional returns floor(notional*scale/price). It returns 0 when the
// price is zero or negative.
func (c Converter) SizeFromNotional(notional, price int64) int64 {
	if price <= 0 {
		return 0
	}
	num := decimal.NewFromInt(notional).Mul(c.scale)
	return FloorDiv(num, decimal.NewFromInt(price))
}

// NotionalFromSize returns floor(size*price/scale).
func (c Converter) NotionalFromSize(size, price int64) int64 {
	num := decimal.NewFromInt(size).Mul(decimal.NewFromInt(price))
	return FloorDiv(num, c.scale)
}

// PercentageOfMax returns min(100, round(notional*100/max)) as a whole
// percentage. It returns 0 when max is not positive or notional is negative.
func PercentageOfMax(notional, max int64) int64 {
	if max <= 0 || notional <= 0 {
		return 0
	}
	num := decimal.NewFromInt(notional).Mul(hundred)
	q, r := num.QuoRem(decimal.NewFromInt(max), 0)
	// half up
	if r.Mul(two).GreaterThanOrEqual(decimal.NewFromInt(max)) {
		q = q.Add(one)
	}
	pct := Saturate(q)
	if pct > 100 {
		return 100
	}
	return pct
}

// AmountFromPercentage returns max*pct/100 floored. pct is clamped to
// [0, 100] and the result at 100 is exactly max.
func AmountFromPercentage(pct, max int64) int64 {
	switch {
	case max <= 0 || pct <= 0:
		return 0
	case pct >= 100:
		return max
	}
	num := decimal.NewFromInt(max).Mul(decimal.NewFromInt(pct))
	return FloorDiv(num, hundred)
}

// ClampSize bounds size to [0, max]. A non-positive max disables the upper
// bound.
func ClampSize(size, max int64) int64 {
	if size < 0 {
		return 0
	}
	if max > 0 && size > max {
		return max
	}
	return size
}

// FromDecimal converts a human amount (e.g. 97.5) to its fixed-point value,
// truncating digits beyond the scale.
func (c Converter) FromDecimal(d decimal.Decimal) int64 {
	return Saturate(d.Mul(c.scale).Truncate(0))
}

// ToDecimal converts a fixed-point value back to a human amount.
func (c Converter) ToDecimal(v int64) decimal.Decimal {
	return decimal.NewFromInt(v).Div(c.scale)
}

// Parse reads a decimal string such as "96.25" into fixed-point.
func (c Converter) Parse(s string) (int64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, err
	}
	return c.FromDecimal(d), nil
}

// Format renders a fixed-point value as a decimal string.
func (c Converter) Format(v int64) string {
	return c.ToDecimal(v).String()
}

// FloorDiv returns floor(num/den) for den > 0.
func FloorDiv(num, den decimal.Decimal) int64 {
	q, r := num.QuoRem(den, 0)
	if r.IsNegative() {
		q = q.Sub(one)
	}
	return Saturate(q)
}

// TruncDiv returns num/den truncated toward zero.
func TruncDiv(num, den decimal.Decimal) int64 {
	q, _ := num.QuoRem(den, 0)
	return Saturate(q)
}

// Saturate returns the integer part of d clamped to the int64 range.
func Saturate(d decimal.Decimal) int64 {
	switch {
	case d.GreaterThan(maxInt64):
		return math.MaxInt64
	case d.LessThan(minInt64):
		return math.MinInt64
	}
	return d.IntPart()
}
