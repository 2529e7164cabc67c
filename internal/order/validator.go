// Package order turns a user's trading intent into the concrete, ordered list
// of orders handed to the execution venue: single orders, scale ladders and
// their dependent take-profit / stop-loss exits.
package order

import (
	"fmt"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// Limits are the venue-side bounds enforced on every generated set.
type Limits struct {
	MaxScaleOrders int   // upper bound on OrderCount; 0 disables the check
	MinOrderSize   int64 // smallest acceptable leg size, fixed-point
}

// Validator applies the guard rules shared by the allocator and the bundler.
type Validator struct {
	limits Limits
}

// NewValidator returns a Validator enforcing the given limits.
func NewValidator(limits Limits) Validator {
	return Validator{limits: limits}
}

// Limits returns the configured limits.
func (v Validator) Limits() Limits { return v.limits }

// ValidateIntent checks a single-order intent.
func (v Validator) ValidateIntent(in domain.OrderIntent) error {
	if err := v.validateCommon(in); err != nil {
		return err
	}
	if err := checkPrices(in); err != nil {
		return err
	}
	if v.limits.MinOrderSize > 0 && in.Size < v.limits.MinOrderSize {
		return fmt.Errorf("order: size %d below minimum %d: %w", in.Size, v.limits.MinOrderSize, domain.ErrLegBelowMinimum)
	}
	return nil
}

// checkPrices enforces the price fields each order kind requires.
func checkPrices(in domain.OrderIntent) error {
	if in.Kind.NeedsPrice() && !positive(in.Price) {
		return fmt.Errorf("order: %s order requires a limit price: %w", in.Kind, domain.ErrMissingPrice)
	}
	if in.Kind.NeedsTrigger() {
		if !positive(in.TriggerPrice) {
			return fmt.Errorf("order: %s order requires a trigger price: %w", in.Kind, domain.ErrMissingPrice)
		}
		if in.TriggerCondition == nil {
			return fmt.Errorf("order: %s order: %w", in.Kind, domain.ErrMissingTriggerCondition)
		}
		if c := *in.TriggerCondition; c != domain.TriggerAbove && c != domain.TriggerBelow {
			return fmt.Errorf("order: unknown trigger condition %q: %w", c, domain.ErrInvalidOrder)
		}
	}
	if in.Kind == domain.OrderKindOracle && in.OraclePriceOffset == nil {
		return fmt.Errorf("order: oracle order requires a price offset: %w", domain.ErrMissingPrice)
	}
	return nil
}

// ValidateScale checks a scale spec before any leg is generated. The intent's
// own Price is ignored; the band supplies every leg price.
func (v Validator) ValidateScale(spec domain.ScaleOrderSpec) error {
	if err := v.validateCommon(spec.Intent); err != nil {
		return err
	}
	if spec.Intent.Kind != domain.OrderKindLimit {
		return fmt.Errorf("order: scale orders must be limit, got %s: %w", spec.Intent.Kind, domain.ErrInvalidScaleSpec)
	}
	if spec.OrderCount < 1 {
		return fmt.Errorf("order: order count %d: %w", spec.OrderCount, domain.ErrInvalidScaleSpec)
	}
	if v.limits.MaxScaleOrders > 0 && spec.OrderCount > v.limits.MaxScaleOrders {
		return fmt.Errorf("order: order count %d exceeds %d: %w", spec.OrderCount, v.limits.MaxScaleOrders, domain.ErrInvalidScaleSpec)
	}
	if spec.MinPrice <= 0 || spec.MinPrice >= spec.MaxPrice {
		return fmt.Errorf("order: price band [%d, %d]: %w", spec.MinPrice, spec.MaxPrice, domain.ErrInvalidScaleSpec)
	}
	if !spec.Distribution.Valid() {
		return fmt.Errorf("order: distribution %q: %w", spec.Distribution, domain.ErrInvalidScaleSpec)
	}
	return nil
}

// ValidateLegs rejects a generated ladder whose smallest leg is below the
// minimum order size. Every leg must be at least one fixed-point unit.
func (v Validator) ValidateLegs(legs []domain.GeneratedOrder) error {
	min := v.limits.MinOrderSize
	if min < 1 {
		min = 1
	}
	for _, l := range legs {
		if l.Size < min {
			return fmt.Errorf("order: %s size %d below minimum %d: %w", l.Tag, l.Size, min, domain.ErrLegBelowMinimum)
		}
	}
	return nil
}

func (v Validator) validateCommon(in domain.OrderIntent) error {
	if !in.Direction.Valid() {
		return fmt.Errorf("order: direction %q: %w", in.Direction, domain.ErrInvalidOrder)
	}
	if !in.Kind.Valid() {
		return fmt.Errorf("order: kind %q: %w", in.Kind, domain.ErrInvalidOrder)
	}
	if in.MarketIndex < 0 {
		return fmt.Errorf("order: market index %d: %w", in.MarketIndex, domain.ErrInvalidOrder)
	}
	if in.Size <= 0 {
		return fmt.Errorf("order: size %d: %w", in.Size, domain.ErrZeroSize)
	}
	return nil
}

func positive(p *int64) bool {
	return p != nil && *p > 0
}
