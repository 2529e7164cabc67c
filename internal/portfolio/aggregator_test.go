package portfolio

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

const unit = domain.Precision

func lookup(prices map[int]int64) domain.OracleLookup {
	return func(m int) (int64, bool) {
		p, ok := prices[m]
		return p, ok
	}
}

func TestAggregateWorkedExample(t *testing.T) {
	acc := domain.RawAccount{
		ID:            0,
		Name:          "Main",
		TotalDeposits: 1000 * unit,
		Positions: []domain.Position{
			// 1 unit long at entry 100, oracle 150
			{MarketIndex: 1, BaseAssetAmount: unit, QuoteAssetAmount: -100 * unit, QuoteEntryAmount: -100 * unit},
			// no oracle price for market 9
			{MarketIndex: 9, BaseAssetAmount: 2 * unit, QuoteAssetAmount: -40 * unit, QuoteEntryAmount: -40 * unit},
		},
	}

	p := New(0).Aggregate([]domain.RawAccount{acc}, lookup(map[int]int64{1: 150 * unit}))

	require.Len(t, p.Subaccounts, 1)
	sub := p.Subaccounts[0]
	require.Len(t, sub.Positions, 2)

	require.NotNil(t, sub.Positions[0].UnsettledPnl)
	assert.Equal(t, int64(50*unit), *sub.Positions[0].UnsettledPnl)
	assert.Equal(t, int64(150*unit), *sub.Positions[0].OraclePrice)

	assert.Nil(t, sub.Positions[1].UnsettledPnl)
	assert.Nil(t, sub.Positions[1].OraclePrice)

	assert.Equal(t, int64(50*unit), sub.NetUnsettledPnl)
	assert.Equal(t, int64(1050*unit), sub.NetTotal)
	assert.Equal(t, domain.PortfolioTotals{
		DepositAmount: 1000 * unit,
		UnsettledPnl:  50 * unit,
		NetTotal:      1050 * unit,
	}, p.Totals)
}

func TestShortPositionPnl(t *testing.T) {
	// 2 short at entry 100 credits 200 of quote; oracle 90 => +20
	pos := domain.Position{MarketIndex: 3, BaseAssetAmount: -2 * unit, QuoteEntryAmount: 200 * unit}

	marked := New(0).Mark(pos, lookup(map[int]int64{3: 90 * unit}))
	require.NotNil(t, marked.UnsettledPnl)
	assert.Equal(t, int64(20*unit), *marked.UnsettledPnl)
}

func TestMarkTruncatesTowardZero(t *testing.T) {
	a := New(1000)
	pos := domain.Position{MarketIndex: 0, BaseAssetAmount: -1, QuoteEntryAmount: 0}

	marked := a.Mark(pos, lookup(map[int]int64{0: 999}))
	require.NotNil(t, marked.UnsettledPnl)
	assert.Equal(t, int64(0), *marked.UnsettledPnl)
}

func TestMarkClampsHugeValues(t *testing.T) {
	a := New(1)
	prices := lookup(map[int]int64{0: math.MaxInt64})

	long := a.Mark(domain.Position{BaseAssetAmount: math.MaxInt64, QuoteEntryAmount: 5}, prices)
	require.NotNil(t, long.UnsettledPnl)
	assert.Equal(t, int64(math.MaxInt64), *long.UnsettledPnl)

	short := a.Mark(domain.Position{BaseAssetAmount: -math.MaxInt64, QuoteEntryAmount: -5}, prices)
	require.NotNil(t, short.UnsettledPnl)
	assert.Equal(t, int64(math.MinInt64), *short.UnsettledPnl)
}

func TestZeroPositionsExcluded(t *testing.T) {
	acc := domain.RawAccount{
		Positions: []domain.Position{
			{MarketIndex: 0},
			{MarketIndex: 1, LPShares: 5},
			{MarketIndex: 2, QuoteAssetAmount: -3},
		},
	}

	sub := New(0).Subaccount(acc, lookup(nil))
	require.Len(t, sub.Positions, 2)
	assert.Equal(t, 1, sub.Positions[0].MarketIndex)
	assert.Equal(t, 2, sub.Positions[1].MarketIndex)
}

func TestDepositAmount(t *testing.T) {
	acc := domain.RawAccount{TotalDeposits: 500, TotalWithdraws: 120, SettledPerpPnl: -30}
	assert.Equal(t, int64(350), DepositAmount(acc))
}

func TestAggregateMultipleSubaccounts(t *testing.T) {
	accounts := []domain.RawAccount{
		{ID: 0, TotalDeposits: 100 * unit, Positions: []domain.Position{
			{MarketIndex: 0, BaseAssetAmount: unit, QuoteEntryAmount: -10 * unit},
		}},
		{ID: 1, TotalDeposits: 50 * unit, TotalWithdraws: 20 * unit, Positions: []domain.Position{
			{MarketIndex: 0, BaseAssetAmount: -unit, QuoteEntryAmount: 15 * unit},
		}},
	}

	p := New(0).Aggregate(accounts, lookup(map[int]int64{0: 12 * unit}))

	assert.Equal(t, int64(2*unit), p.Subaccounts[0].NetUnsettledPnl)
	assert.Equal(t, int64(3*unit), p.Subaccounts[1].NetUnsettledPnl)
	assert.Equal(t, int64(130*unit), p.Totals.DepositAmount)
	assert.Equal(t, int64(5*unit), p.Totals.UnsettledPnl)
	assert.Equal(t, int64(135*unit), p.Totals.NetTotal)
}

func TestAggregateIsIdempotent(t *testing.T) {
	accounts := []domain.RawAccount{{TotalDeposits: unit, Positions: []domain.Position{
		{MarketIndex: 4, BaseAssetAmount: 3 * unit, QuoteEntryAmount: -7 * unit},
	}}}
	oracle := lookup(map[int]int64{4: 2 * unit})
	a := New(0)

	assert.Equal(t, a.Aggregate(accounts, oracle), a.Aggregate(accounts, oracle))
}

func TestNilOracleMeansUnknown(t *testing.T) {
	acc := domain.RawAccount{TotalDeposits: unit, Positions: []domain.Position{{MarketIndex: 0, BaseAssetAmount: unit}}}

	sub := New(0).Subaccount(acc, nil)
	require.Len(t, sub.Positions, 1)
	assert.Nil(t, sub.Positions[0].UnsettledPnl)
	assert.Equal(t, int64(unit), sub.NetTotal)
}

func TestMarkets(t *testing.T) {
	accounts := []domain.RawAccount{
		{Positions: []domain.Position{{MarketIndex: 5, BaseAssetAmount: 1}, {MarketIndex: 1, BaseAssetAmount: 1}}},
		{Positions: []domain.Position{{MarketIndex: 5, BaseAssetAmount: -1}, {MarketIndex: 7}}},
	}
	assert.Equal(t, []int{1, 5}, Markets(accounts))
}

func TestLookupFromMap(t *testing.T) {
	l := LookupFromMap(map[int]domain.OraclePrice{2: {MarketIndex: 2, Price: 42}})

	p, ok := l(2)
	assert.True(t, ok)
	assert.Equal(t, int64(42), p)

	_, ok = l(3)
	assert.False(t, ok)
}
