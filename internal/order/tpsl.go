package order

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/fixedpoint"
)

// DefaultSuggestPercent is the distance of suggested TP/SL prices from the
// primary price.
const DefaultSuggestPercent int64 = 10

// TPSLSpec describes one requested exit. TriggerPrice is required. A nil
// LimitPrice makes the exit a trigger-market order; a nil Size inherits the
// primary's size.
type TPSLSpec struct {
	TriggerPrice int64  `json:"trigger_price"`
	LimitPrice   *int64 `json:"limit_price,omitempty"`
	Size         *int64 `json:"size,omitempty"`
}

// Bundle builds the primary single order of intent together with any
// requested take-profit and stop-loss. Nil specs are skipped. A primary
// missing the price its kind requires fails with domain.ErrMissingPrice.
func Bundle(primary domain.OrderIntent, tp, sl *TPSLSpec) (domain.TPSLBundle, error) {
	if err := checkPrices(primary); err != nil {
		return domain.TPSLBundle{}, err
	}
	leg := Single(primary)
	return attachExits(primary, []domain.GeneratedOrder{leg}, tp, sl)
}

// Single converts an intent into its primary GeneratedOrder. It performs no
// validation.
func Single(in domain.OrderIntent) domain.GeneratedOrder {
	return domain.GeneratedOrder{
		MarketIndex:       in.MarketIndex,
		Direction:         in.Direction,
		Kind:              in.Kind,
		Size:              in.Size,
		Price:             copyPtr(in.Price),
		TriggerPrice:      copyPtr(in.TriggerPrice),
		TriggerCondition:  copyPtr(in.TriggerCondition),
		OraclePriceOffset: copyPtr(in.OraclePriceOffset),
		ReduceOnly:        in.ReduceOnly,
		Tag:               domain.LegTagPrimary,
	}
}

// TakeProfit builds the take-profit exit for primary.
func TakeProfit(primary domain.OrderIntent, spec TPSLSpec) (domain.GeneratedOrder, error) {
	return exit(primary, spec, TakeProfitCondition(primary.Direction), domain.LegTagTakeProfit)
}

// StopLoss builds the stop-loss exit for primary.
func StopLoss(primary domain.OrderIntent, spec TPSLSpec) (domain.GeneratedOrder, error) {
	return exit(primary, spec, StopLossCondition(primary.Direction), domain.LegTagStopLoss)
}

// TakeProfitCondition: a long takes profit when price rises above the target,
// a short when it falls below.
func TakeProfitCondition(d domain.Direction) domain.TriggerCondition {
	if d == domain.DirectionLong {
		return domain.TriggerAbove
	}
	return domain.TriggerBelow
}

// StopLossCondition is the mirror of TakeProfitCondition.
func StopLossCondition(d domain.Direction) domain.TriggerCondition {
	if d == domain.DirectionLong {
		return domain.TriggerBelow
	}
	return domain.TriggerAbove
}

// SuggestTakeProfit returns price moved pct percent in the profitable
// direction: up for a long, down for a short.
func SuggestTakeProfit(d domain.Direction, price, pct int64) int64 {
	if d == domain.DirectionLong {
		return shiftPercent(price, pct)
	}
	return shiftPercent(price, -pct)
}

// SuggestStopLoss returns price moved pct percent against the position.
func SuggestStopLoss(d domain.Direction, price, pct int64) int64 {
	if d == domain.DirectionLong {
		return shiftPercent(price, -pct)
	}
	return shiftPercent(price, pct)
}

func shiftPercent(price, pct int64) int64 {
	num := decimal.NewFromInt(price).Mul(decimal.NewFromInt(100 + pct))
	return fixedpoint.FloorDiv(num, decimal.NewFromInt(100))
}

func attachExits(primary domain.OrderIntent, legs []domain.GeneratedOrder, tp, sl *TPSLSpec) (domain.TPSLBundle, error) {
	b := domain.TPSLBundle{Primary: legs}
	if tp != nil {
		o, err := TakeProfit(primary, *tp)
		if err != nil {
			return domain.TPSLBundle{}, err
		}
		b.TakeProfit = &o
	}
	if sl != nil {
		o, err := StopLoss(primary, *sl)
		if err != nil {
			return domain.TPSLBundle{}, err
		}
		b.StopLoss = &o
	}
	return b, nil
}

func exit(primary domain.OrderIntent, spec TPSLSpec, cond domain.TriggerCondition, tag domain.LegTag) (domain.GeneratedOrder, error) {
	if spec.TriggerPrice <= 0 {
		return domain.GeneratedOrder{}, fmt.Errorf("order: %s trigger price: %w", tag, domain.ErrMissingPrice)
	}
	size := primary.Size
	if spec.Size != nil {
		size = *spec.Size
	}
	if size <= 0 {
		return domain.GeneratedOrder{}, fmt.Errorf("order: %s: %w", tag, domain.ErrZeroSize)
	}

	kind := domain.OrderKindTriggerMarket
	if spec.LimitPrice != nil {
		if *spec.LimitPrice <= 0 {
			return domain.GeneratedOrder{}, fmt.Errorf("order: %s limit price: %w", tag, domain.ErrMissingPrice)
		}
		kind = domain.OrderKindTriggerLimit
	}

	trigger := spec.TriggerPrice
	return domain.GeneratedOrder{
		MarketIndex:      primary.MarketIndex,
		Direction:        primary.Direction.Opposite(),
		Kind:             kind,
		Size:             size,
		Price:            copyPtr(spec.LimitPrice),
		TriggerPrice:     &trigger,
		TriggerCondition: &cond,
		ReduceOnly:       true,
		Tag:              tag,
	}, nil
}

func copyPtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
