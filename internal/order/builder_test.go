package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

func newTestBuilder() *Builder {
	return NewBuilder(NewValidator(Limits{MaxScaleOrders: 20, MinOrderSize: 1000}), NewAllocator())
}

func TestBuildSetScaleWithExits(t *testing.T) {
	b := newTestBuilder()

	orders, err := b.BuildSet(Request{
		Intent: domain.OrderIntent{
			MarketIndex: 0,
			Direction:   domain.DirectionLong,
			Kind:        domain.OrderKindLimit,
			Size:        10 * unit,
		},
		Scale: &ScaleParams{
			MinPrice:     95 * unit,
			MaxPrice:     100 * unit,
			OrderCount:   5,
			Distribution: domain.DistributionAscending,
		},
		TakeProfit: &TPSLSpec{TriggerPrice: 110 * unit},
		StopLoss:   &TPSLSpec{TriggerPrice: 90 * unit},
	})
	require.NoError(t, err)
	require.Len(t, orders, 7)

	for i := 0; i < 5; i++ {
		assert.Equal(t, domain.ScaleLegTag(i), orders[i].Tag)
	}
	assert.Equal(t, domain.LegTagTakeProfit, orders[5].Tag)
	assert.Equal(t, domain.LegTagStopLoss, orders[6].Tag)
	// exits close the full scaled size
	assert.Equal(t, int64(10*unit), orders[5].Size)
	assert.Equal(t, int64(10*unit), orders[6].Size)
}

func TestBuildSingleMarket(t *testing.T) {
	b := newTestBuilder()

	bundle, err := b.Build(Request{Intent: domain.OrderIntent{
		Direction: domain.DirectionShort,
		Kind:      domain.OrderKindMarket,
		Size:      unit,
	}})
	require.NoError(t, err)
	require.Len(t, bundle.Primary, 1)
	assert.Nil(t, bundle.TakeProfit)
	assert.Nil(t, bundle.StopLoss)
}

func TestBuildRejects(t *testing.T) {
	b := newTestBuilder()
	below := domain.TriggerBelow

	tests := []struct {
		name string
		req  Request
		want error
	}{
		{
			name: "limit without price",
			req:  Request{Intent: domain.OrderIntent{Direction: domain.DirectionLong, Kind: domain.OrderKindLimit, Size: unit}},
			want: domain.ErrMissingPrice,
		},
		{
			name: "zero size",
			req:  Request{Intent: domain.OrderIntent{Direction: domain.DirectionLong, Kind: domain.OrderKindMarket}},
			want: domain.ErrZeroSize,
		},
		{
			name: "trigger without condition",
			req: Request{Intent: domain.OrderIntent{
				Direction: domain.DirectionLong, Kind: domain.OrderKindTriggerMarket, Size: unit,
				TriggerPrice: ptr(int64(unit)),
			}},
			want: domain.ErrMissingTriggerCondition,
		},
		{
			name: "trigger limit without limit price",
			req: Request{Intent: domain.OrderIntent{
				Direction: domain.DirectionLong, Kind: domain.OrderKindTriggerLimit, Size: unit,
				TriggerPrice: ptr(int64(unit)), TriggerCondition: &below,
			}},
			want: domain.ErrMissingPrice,
		},
		{
			name: "oracle without offset",
			req:  Request{Intent: domain.OrderIntent{Direction: domain.DirectionLong, Kind: domain.OrderKindOracle, Size: unit}},
			want: domain.ErrMissingPrice,
		},
		{
			name: "unknown direction",
			req:  Request{Intent: domain.OrderIntent{Direction: "up", Kind: domain.OrderKindMarket, Size: unit}},
			want: domain.ErrInvalidOrder,
		},
		{
			name: "scale on market order",
			req: Request{
				Intent: domain.OrderIntent{Direction: domain.DirectionLong, Kind: domain.OrderKindMarket, Size: unit},
				Scale:  &ScaleParams{MinPrice: unit, MaxPrice: 2 * unit, OrderCount: 2, Distribution: domain.DistributionFlat},
			},
			want: domain.ErrInvalidScaleSpec,
		},
		{
			name: "too many legs",
			req: Request{
				Intent: domain.OrderIntent{Direction: domain.DirectionLong, Kind: domain.OrderKindLimit, Size: unit},
				Scale:  &ScaleParams{MinPrice: unit, MaxPrice: 2 * unit, OrderCount: 21, Distribution: domain.DistributionFlat},
			},
			want: domain.ErrInvalidScaleSpec,
		},
		{
			name: "leg below minimum",
			req: Request{
				Intent: domain.OrderIntent{Direction: domain.DirectionLong, Kind: domain.OrderKindLimit, Size: 5000},
				Scale:  &ScaleParams{MinPrice: unit, MaxPrice: 2 * unit, OrderCount: 10, Distribution: domain.DistributionFlat},
			},
			want: domain.ErrLegBelowMinimum,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orders, err := b.BuildSet(tt.req)
			require.ErrorIs(t, err, tt.want)
			assert.Nil(t, orders)
		})
	}
}

func TestBuildOracleOrder(t *testing.T) {
	b := newTestBuilder()

	orders, err := b.BuildSet(Request{Intent: domain.OrderIntent{
		Direction:         domain.DirectionLong,
		Kind:              domain.OrderKindOracle,
		Size:              unit,
		OraclePriceOffset: ptr(int64(-50_000)),
	}})
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, int64(-50_000), *orders[0].OraclePriceOffset)
}
