package order

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

const unit = domain.Precision

func scaleSpec(total, min, max int64, n int, d domain.Distribution) domain.ScaleOrderSpec {
	return domain.ScaleOrderSpec{
		Intent: domain.OrderIntent{
			MarketIndex: 1,
			Direction:   domain.DirectionLong,
			Kind:        domain.OrderKindLimit,
			Size:        total,
		},
		MinPrice:     min,
		MaxPrice:     max,
		OrderCount:   n,
		Distribution: d,
	}
}

func sumSizes(legs []domain.GeneratedOrder) int64 {
	var s int64
	for _, l := range legs {
		s += l.Size
	}
	return s
}

func TestAllocateAscendingExample(t *testing.T) {
	a := NewAllocator()
	legs, err := a.Allocate(scaleSpec(10*unit, 95*unit, 100*unit, 5, domain.DistributionAscending))
	require.NoError(t, err)
	require.Len(t, legs, 5)

	wantPrices := []int64{95_000_000, 96_250_000, 97_500_000, 98_750_000, 100_000_000}
	wantSizes := []float64{0.667, 1.333, 2.0, 2.667, 3.333}
	for i, l := range legs {
		assert.Equal(t, wantPrices[i], l.PriceValue(), "leg %d price", i)
		assert.InDelta(t, wantSizes[i], float64(l.Size)/float64(unit), 0.001, "leg %d size", i)
		assert.Equal(t, domain.OrderKindLimit, l.Kind)
		assert.Equal(t, domain.DirectionLong, l.Direction)
		assert.Equal(t, domain.ScaleLegTag(i), l.Tag)
	}
	assert.Equal(t, int64(10*unit), sumSizes(legs))
}

func TestAllocateSumInvariantForEveryPolicy(t *testing.T) {
	policies := []domain.Distribution{
		domain.DistributionAscending,
		domain.DistributionDescending,
		domain.DistributionFlat,
		domain.DistributionRandom,
	}
	totals := []int64{1, 7, unit, 10 * unit, 123_456_789, 1_000_000 * unit}
	counts := []int{1, 2, 3, 7, 20, 50}

	a := NewAllocator(WithRandSource(rand.New(rand.NewPCG(1, 2))))
	for _, p := range policies {
		for _, total := range totals {
			for _, n := range counts {
				legs, err := a.Allocate(scaleSpec(total, 10*unit, 20*unit, n, p))
				require.NoError(t, err)
				require.Len(t, legs, n)
				assert.Equal(t, total, sumSizes(legs), "policy=%s total=%d n=%d", p, total, n)
			}
		}
	}
}

func TestAllocatePriceMonotonicity(t *testing.T) {
	a := NewAllocator(WithRandSource(rand.New(rand.NewPCG(3, 4))))

	for _, p := range []domain.Distribution{domain.DistributionAscending, domain.DistributionFlat, domain.DistributionRandom} {
		legs, err := a.Allocate(scaleSpec(10*unit, 95*unit, 100*unit, 9, p))
		require.NoError(t, err)
		assert.Equal(t, int64(95*unit), legs[0].PriceValue())
		assert.Equal(t, int64(100*unit), legs[len(legs)-1].PriceValue())
		for i := 1; i < len(legs); i++ {
			assert.LessOrEqual(t, legs[i-1].PriceValue(), legs[i].PriceValue(), "policy=%s leg %d", p, i)
		}
	}

	legs, err := a.Allocate(scaleSpec(10*unit, 95*unit, 100*unit, 9, domain.DistributionDescending))
	require.NoError(t, err)
	assert.Equal(t, int64(100*unit), legs[0].PriceValue())
	assert.Equal(t, int64(95*unit), legs[len(legs)-1].PriceValue())
	for i := 1; i < len(legs); i++ {
		assert.GreaterOrEqual(t, legs[i-1].PriceValue(), legs[i].PriceValue())
	}
}

func TestAllocateWeights(t *testing.T) {
	a := NewAllocator()

	desc, err := a.Allocate(scaleSpec(15*unit, 10*unit, 20*unit, 5, domain.DistributionDescending))
	require.NoError(t, err)
	want := []int64{5 * unit, 4 * unit, 3 * unit, 2 * unit, 1 * unit}
	for i, l := range desc {
		assert.Equal(t, want[i], l.Size)
	}

	flat, err := a.Allocate(scaleSpec(12*unit, 10*unit, 20*unit, 4, domain.DistributionFlat))
	require.NoError(t, err)
	for _, l := range flat {
		assert.Equal(t, int64(3*unit), l.Size)
	}
}

func TestAllocateRandomIsReproducibleWithSeed(t *testing.T) {
	spec := scaleSpec(10*unit, 95*unit, 100*unit, 6, domain.DistributionRandom)

	first, err := NewAllocator(WithRandSource(rand.New(rand.NewPCG(42, 42)))).Allocate(spec)
	require.NoError(t, err)
	second, err := NewAllocator(WithRandSource(rand.New(rand.NewPCG(42, 42)))).Allocate(spec)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestAllocateSingleLeg(t *testing.T) {
	legs, err := NewAllocator().Allocate(scaleSpec(5*unit, 95*unit, 100*unit, 1, domain.DistributionAscending))
	require.NoError(t, err)
	require.Len(t, legs, 1)
	assert.Equal(t, int64(5*unit), legs[0].Size)
	assert.Equal(t, int64(95*unit), legs[0].PriceValue())
}

func TestAllocateRejectsInvalidSpec(t *testing.T) {
	a := NewAllocator()

	tests := []struct {
		name string
		spec domain.ScaleOrderSpec
		want error
	}{
		{"zero count", scaleSpec(unit, 95*unit, 100*unit, 0, domain.DistributionFlat), domain.ErrInvalidScaleSpec},
		{"min equals max", scaleSpec(unit, 100*unit, 100*unit, 3, domain.DistributionFlat), domain.ErrInvalidScaleSpec},
		{"min above max", scaleSpec(unit, 101*unit, 100*unit, 3, domain.DistributionFlat), domain.ErrInvalidScaleSpec},
		{"unknown policy", scaleSpec(unit, 95*unit, 100*unit, 3, "zigzag"), domain.ErrInvalidScaleSpec},
		{"zero size", scaleSpec(0, 95*unit, 100*unit, 3, domain.DistributionFlat), domain.ErrZeroSize},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			legs, err := a.Allocate(tt.spec)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, legs)
		})
	}
}

func TestAllocateCopiesReduceOnly(t *testing.T) {
	spec := scaleSpec(unit, 95*unit, 100*unit, 3, domain.DistributionFlat)
	spec.Intent.ReduceOnly = true

	legs, err := NewAllocator().Allocate(spec)
	require.NoError(t, err)
	for _, l := range legs {
		assert.True(t, l.ReduceOnly)
	}
}

func TestDistributeRescalesBeyondTolerance(t *testing.T) {
	// 100 / 3 floors to 33 each; with zero tolerance the rescale runs and the
	// dust lands on one leg.
	sizes := distribute(100, []int64{1, 1, 1}, 0)
	assert.Equal(t, int64(100), sizes[0]+sizes[1]+sizes[2])
	assert.ElementsMatch(t, []int64{34, 33, 33}, sizes)
}

func TestDistributeTinyTotal(t *testing.T) {
	sizes := distribute(1, []int64{1, 2, 3, 4, 5}, DefaultScaleTolerance)
	assert.Equal(t, []int64{1, 0, 0, 0, 0}, sizes)
}

func TestLadderPrices(t *testing.T) {
	assert.Equal(t, []int64{10, 13, 16, 20}, LadderPrices(10, 20, 4, false))
	assert.Equal(t, []int64{20, 17, 14, 10}, LadderPrices(10, 20, 4, true))
	assert.Nil(t, LadderPrices(10, 20, 0, false))
}
