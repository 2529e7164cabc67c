package service

import (
	"context"
	"fmt"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/fixedpoint"
)

// SizeQuote keeps size, notional and percentage-of-max consistent for one
// order form.
type SizeQuote struct {
	Size        int64 `json:"size"`
	Price       int64 `json:"price"`
	Notional    int64 `json:"notional"`
	Percentage  int64 `json:"percentage"`
	MaxNotional int64 `json:"max_notional"`
	Clamped     bool  `json:"clamped"`
}

// MaxQuery identifies the max-size ceiling a percentage refers to. A zero
// Price falls back to the cached oracle price.
type MaxQuery struct {
	Wallet      string           `json:"wallet"`
	MarketIndex int              `json:"market_index"`
	Direction   domain.Direction `json:"direction"`
	Price       int64            `json:"price"`
}

// ConvertRequest converts between size and notional at a price. Exactly one
// of Size and Notional must be set.
type ConvertRequest struct {
	Size     *int64 `json:"size,omitempty"`
	Notional *int64 `json:"notional,omitempty"`
	Price    int64  `json:"price"`
}

// SizingService backs the size slider and the max button of the order form.
type SizingService struct {
	sizer  domain.MaxTradeSizer
	prices domain.PriceCache
	conv   fixedpoint.Converter
}

// NewSizingService creates a SizingService. prices may be nil when callers
// always send a price.
func NewSizingService(sizer domain.MaxTradeSizer, prices domain.PriceCache, conv fixedpoint.Converter) *SizingService {
	return &SizingService{sizer: sizer, prices: prices, conv: conv}
}

// Convert derives the missing side of a size/notional pair. A zero price
// yields a zero size rather than an error.
func (s *SizingService) Convert(req ConvertRequest) (SizeQuote, error) {
	if (req.Size == nil) == (req.Notional == nil) {
		return SizeQuote{}, fmt.Errorf("sizing_service: convert: exactly one of size and notional: %w", domain.ErrInvalidOrder)
	}
	if req.Price < 0 {
		return SizeQuote{}, fmt.Errorf("sizing_service: convert: negative price: %w", domain.ErrInvalidOrder)
	}
	q := SizeQuote{Price: req.Price}
	if req.Size != nil {
		q.Size = *req.Size
		q.Notional = s.conv.NotionalFromSize(q.Size, req.Price)
	} else {
		q.Notional = *req.Notional
		q.Size = s.conv.SizeFromNotional(q.Notional, req.Price)
	}
	return q, nil
}

// SizeForPercentage sizes an order at pct of the wallet's max notional.
func (s *SizingService) SizeForPercentage(ctx context.Context, mq MaxQuery, pct int64) (SizeQuote, error) {
	max, price, err := s.ceiling(ctx, mq)
	if err != nil {
		return SizeQuote{}, err
	}
	notional := fixedpoint.AmountFromPercentage(pct, max)
	return SizeQuote{
		Size:        s.conv.SizeFromNotional(notional, price),
		Price:       price,
		Notional:    notional,
		Percentage:  fixedpoint.PercentageOfMax(notional, max),
		MaxNotional: max,
	}, nil
}

// PercentageForSize reports where size sits against the max notional and
// clamps it to the max.
func (s *SizingService) PercentageForSize(ctx context.Context, mq MaxQuery, size int64) (SizeQuote, error) {
	max, price, err := s.ceiling(ctx, mq)
	if err != nil {
		return SizeQuote{}, err
	}
	q := SizeQuote{Price: price, MaxNotional: max}
	maxSize := s.conv.SizeFromNotional(max, price)
	q.Size = fixedpoint.ClampSize(size, maxSize)
	q.Clamped = q.Size != size
	if q.Size == maxSize && maxSize > 0 {
		q.Notional = max
	} else {
		q.Notional = s.conv.NotionalFromSize(q.Size, price)
	}
	q.Percentage = fixedpoint.PercentageOfMax(q.Notional, max)
	return q, nil
}

func (s *SizingService) ceiling(ctx context.Context, mq MaxQuery) (max, price int64, err error) {
	if !mq.Direction.Valid() {
		return 0, 0, fmt.Errorf("sizing_service: direction %q: %w", mq.Direction, domain.ErrInvalidOrder)
	}
	price = mq.Price
	if price <= 0 && s.prices != nil {
		p, err := s.prices.GetPrice(ctx, mq.MarketIndex)
		if err != nil {
			return 0, 0, fmt.Errorf("sizing_service: oracle price market %d: %w (%v)", mq.MarketIndex, domain.ErrMissingPrice, err)
		}
		price = p.Price
	}
	if price <= 0 {
		return 0, 0, fmt.Errorf("sizing_service: market %d: %w", mq.MarketIndex, domain.ErrMissingPrice)
	}
	max, err = s.sizer.MaxTradeSize(ctx, mq.Wallet, mq.MarketIndex, mq.Direction)
	if err != nil {
		return 0, 0, fmt.Errorf("sizing_service: max trade size: %w", err)
	}
	return max, price, nil
}
