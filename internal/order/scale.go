package order

import (
	"fmt"
	"math/rand/v2"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/fixedpoint"
)

// DefaultScaleTolerance is the largest acceptable gap between the summed leg
// sizes and the requested total before every leg is rescaled (0.001 units).
const DefaultScaleTolerance int64 = domain.Precision / 1000

// randomWeightSpan bounds the integer weights drawn by the random policy.
const randomWeightSpan int64 = 1_000_000

// RandSource draws the weights of the random distribution.
// *math/rand/v2.Rand satisfies it.
type RandSource interface {
	Int64N(n int64) int64
}

type globalRand struct{}

func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

// Allocator expands a ScaleOrderSpec into limit order legs.
type Allocator struct {
	tolerance int64
	rnd       RandSource
}

// AllocatorOption configures an Allocator.
type AllocatorOption func(*Allocator)

// WithTolerance overrides DefaultScaleTolerance.
func WithTolerance(raw int64) AllocatorOption {
	return func(a *Allocator) {
		if raw >= 0 {
			a.tolerance = raw
		}
	}
}

// WithRandSource injects the random source used by the random policy.
func WithRandSource(r RandSource) AllocatorOption {
	return func(a *Allocator) {
		if r != nil {
			a.rnd = r
		}
	}
}

// NewAllocator returns an Allocator. Without options it uses the default
// tolerance and the process-wide unseeded random source.
func NewAllocator(opts ...AllocatorOption) *Allocator {
	a := &Allocator{tolerance: DefaultScaleTolerance, rnd: globalRand{}}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Allocate spreads spec.Intent.Size over spec.OrderCount limit orders priced
// across [MinPrice, MaxPrice]. The returned sizes always sum to the requested
// total. On error no orders are returned.
func (a *Allocator) Allocate(spec domain.ScaleOrderSpec) ([]domain.GeneratedOrder, error) {
	n := spec.OrderCount
	if n < 1 {
		return nil, fmt.Errorf("order: allocate: order count %d: %w", n, domain.ErrInvalidScaleSpec)
	}
	if spec.MinPrice >= spec.MaxPrice {
		return nil, fmt.Errorf("order: allocate: min price %d >= max price %d: %w", spec.MinPrice, spec.MaxPrice, domain.ErrInvalidScaleSpec)
	}
	if spec.Intent.Size <= 0 {
		return nil, fmt.Errorf("order: allocate: %w", domain.ErrZeroSize)
	}

	prices := LadderPrices(spec.MinPrice, spec.MaxPrice, n, spec.Distribution == domain.DistributionDescending)
	weights, err := a.weights(spec.Distribution, n)
	if err != nil {
		return nil, err
	}
	sizes := distribute(spec.Intent.Size, weights, a.tolerance)

	legs := make([]domain.GeneratedOrder, n)
	for i := range legs {
		price := prices[i]
		legs[i] = domain.GeneratedOrder{
			MarketIndex: spec.Intent.MarketIndex,
			Direction:   spec.Intent.Direction,
			Kind:        domain.OrderKindLimit,
			Size:        sizes[i],
			Price:       &price,
			ReduceOnly:  spec.Intent.ReduceOnly,
			Tag:         domain.ScaleLegTag(i),
		}
	}
	return legs, nil
}

// LadderPrices returns n prices from min to max inclusive, evenly spaced.
// Leg i sits at min + (max-min)*i/max(n-1, 1), floored to a whole unit, so
// the last leg lands exactly on max. When descending is set the ladder runs
// from max down to min.
func LadderPrices(min, max int64, n int, descending bool) []int64 {
	if n < 1 {
		return nil
	}
	span := decimal.NewFromInt(max - min)
	steps := decimal.NewFromInt(int64(maxInt(n-1, 1)))
	out := make([]int64, n)
	for i := range out {
		offset := fixedpoint.FloorDiv(span.Mul(decimal.NewFromInt(int64(i))), steps)
		if descending {
			out[i] = max - offset
		} else {
			out[i] = min + offset
		}
	}
	return out
}

func (a *Allocator) weights(d domain.Distribution, n int) ([]int64, error) {
	w := make([]int64, n)
	switch d {
	case domain.DistributionAscending:
		for i := range w {
			w[i] = int64(i + 1)
		}
	case domain.DistributionDescending:
		for i := range w {
			w[i] = int64(n - i)
		}
	case domain.DistributionFlat:
		for i := range w {
			w[i] = 1
		}
	case domain.DistributionRandom:
		for i := range w {
			w[i] = a.rnd.Int64N(randomWeightSpan) + 1
		}
	default:
		return nil, fmt.Errorf("order: allocate: distribution %q: %w", d, domain.ErrInvalidScaleSpec)
	}
	return w, nil
}

// distribute splits total proportionally to weights. The first pass floors
// every share. When the floored sum misses total by more than tolerance each
// share is rescaled by total/sum. Whatever dust remains is then added to the
// largest share so the result sums to total exactly.
func distribute(total int64, weights []int64, tolerance int64) []int64 {
	var wsum int64
	for _, w := range weights {
		wsum += w
	}
	dTotal := decimal.NewFromInt(total)
	dWsum := decimal.NewFromInt(wsum)

	sizes := make([]int64, len(weights))
	var sum int64
	for i, w := range weights {
		sizes[i] = fixedpoint.FloorDiv(dTotal.Mul(decimal.NewFromInt(w)), dWsum)
		sum += sizes[i]
	}

	if dev := total - sum; sum > 0 && (dev > tolerance || -dev > tolerance) {
		dSum := decimal.NewFromInt(sum)
		sum = 0
		for i := range sizes {
			sizes[i] = fixedpoint.FloorDiv(decimal.NewFromInt(sizes[i]).Mul(dTotal), dSum)
			sum += sizes[i]
		}
	}

	if residual := total - sum; residual != 0 {
		heaviest := 0
		for i := range sizes {
			if sizes[i] > sizes[heaviest] {
				heaviest = i
			}
		}
		sizes[heaviest] += residual
	}
	return sizes
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
