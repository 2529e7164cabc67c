package order

import (
	"fmt"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// ScaleParams turns a limit intent into a scale ladder.
type ScaleParams struct {
	MinPrice     int64               `json:"min_price"`
	MaxPrice     int64               `json:"max_price"`
	OrderCount   int                 `json:"order_count"`
	Distribution domain.Distribution `json:"distribution"`
}

// Request is everything needed to build one order set.
type Request struct {
	Intent     domain.OrderIntent `json:"intent"`
	Scale      *ScaleParams       `json:"scale,omitempty"`
	TakeProfit *TPSLSpec          `json:"take_profit,omitempty"`
	StopLoss   *TPSLSpec          `json:"stop_loss,omitempty"`
}

// Builder validates a Request and assembles its orders.
type Builder struct {
	validator Validator
	alloc     *Allocator
}

// NewBuilder returns a Builder.
func NewBuilder(v Validator, a *Allocator) *Builder {
	if a == nil {
		a = NewAllocator()
	}
	return &Builder{validator: v, alloc: a}
}

// Build returns the bundle for req: the primary single order or scale legs,
// then the optional take-profit and stop-loss.
func (b *Builder) Build(req Request) (domain.TPSLBundle, error) {
	if req.Scale == nil {
		if err := b.validator.ValidateIntent(req.Intent); err != nil {
			return domain.TPSLBundle{}, err
		}
		return Bundle(req.Intent, req.TakeProfit, req.StopLoss)
	}

	spec := domain.ScaleOrderSpec{
		Intent:       req.Intent,
		MinPrice:     req.Scale.MinPrice,
		MaxPrice:     req.Scale.MaxPrice,
		OrderCount:   req.Scale.OrderCount,
		Distribution: req.Scale.Distribution,
	}
	if err := b.validator.ValidateScale(spec); err != nil {
		return domain.TPSLBundle{}, err
	}
	legs, err := b.alloc.Allocate(spec)
	if err != nil {
		return domain.TPSLBundle{}, err
	}
	if err := b.validator.ValidateLegs(legs); err != nil {
		return domain.TPSLBundle{}, err
	}
	return attachExits(req.Intent, legs, req.TakeProfit, req.StopLoss)
}

// BuildSet is Build flattened into submission order.
func (b *Builder) BuildSet(req Request) ([]domain.GeneratedOrder, error) {
	bundle, err := b.Build(req)
	if err != nil {
		return nil, fmt.Errorf("order: build set: %w", err)
	}
	return bundle.Orders(), nil
}
