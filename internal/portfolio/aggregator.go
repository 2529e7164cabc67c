// Package portfolio marks raw subaccount positions against oracle prices and
// rolls the resulting unsettled PnL up into subaccount and wallet totals.
package portfolio

import (
	"slices"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/fixedpoint"
)

// Aggregator is stateless apart from the base precision used to value
// positions. It is safe for concurrent use.
type Aggregator struct {
	basePrecision decimal.Decimal
}

// New returns an Aggregator. A non-positive basePrecision falls back to
// domain.BasePrecision.
func New(basePrecision int64) *Aggregator {
	if basePrecision <= 0 {
		basePrecision = domain.BasePrecision
	}
	return &Aggregator{basePrecision: decimal.NewFromInt(basePrecision)}
}

// Aggregate values every account with oracleOf and returns the subaccounts in
// input order plus their totals. A nil oracleOf treats every price as unknown.
func (a *Aggregator) Aggregate(accounts []domain.RawAccount, oracleOf domain.OracleLookup) domain.Portfolio {
	out := domain.Portfolio{Subaccounts: make([]domain.Subaccount, 0, len(accounts))}
	for _, acc := range accounts {
		sub := a.Subaccount(acc, oracleOf)
		out.Subaccounts = append(out.Subaccounts, sub)
		out.Totals.DepositAmount += sub.DepositAmount
		out.Totals.UnsettledPnl += sub.NetUnsettledPnl
	}
	out.Totals.NetTotal = out.Totals.DepositAmount + out.Totals.UnsettledPnl
	return out
}

// Subaccount derives the valuation of a single account. Empty positions are
// dropped and positions without a price keep a nil PnL and are left out of
// the sum.
func (a *Aggregator) Subaccount(acc domain.RawAccount, oracleOf domain.OracleLookup) domain.Subaccount {
	sub := domain.Subaccount{
		ID:            acc.ID,
		Name:          acc.Name,
		DepositAmount: DepositAmount(acc),
		Positions:     make([]domain.PositionWithPNL, 0, len(acc.Positions)),
	}
	for _, p := range acc.Positions {
		if p.IsEmpty() {
			continue
		}
		marked := a.Mark(p, oracleOf)
		if marked.UnsettledPnl != nil {
			sub.NetUnsettledPnl += *marked.UnsettledPnl
		}
		sub.Positions = append(sub.Positions, marked)
	}
	sub.NetTotal = sub.DepositAmount + sub.NetUnsettledPnl
	return sub
}

// Mark attaches the oracle price and unsettled PnL to p:
// pnl = base*oracle/basePrecision + quoteEntry, truncated toward zero and
// clamped to the int64 range.
func (a *Aggregator) Mark(p domain.Position, oracleOf domain.OracleLookup) domain.PositionWithPNL {
	out := domain.PositionWithPNL{Position: p}
	if oracleOf == nil {
		return out
	}
	price, ok := oracleOf(p.MarketIndex)
	if !ok {
		return out
	}
	value := fixedpoint.TruncDiv(decimal.NewFromInt(p.BaseAssetAmount).Mul(decimal.NewFromInt(price)), a.basePrecision)
	pnl := fixedpoint.Saturate(decimal.NewFromInt(value).Add(decimal.NewFromInt(p.QuoteEntryAmount)))
	out.OraclePrice = &price
	out.UnsettledPnl = &pnl
	return out
}

// DepositAmount is deposits net of withdrawals plus settled PnL.
func DepositAmount(acc domain.RawAccount) int64 {
	return acc.TotalDeposits - acc.TotalWithdraws + acc.SettledPerpPnl
}

// Markets returns the sorted set of market indexes with an open position.
func Markets(accounts []domain.RawAccount) []int {
	var out []int
	for _, acc := range accounts {
		for _, p := range acc.Positions {
			if !p.IsEmpty() {
				out = append(out, p.MarketIndex)
			}
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// LookupFromMap adapts a price map to a domain.OracleLookup.
func LookupFromMap(prices map[int]domain.OraclePrice) domain.OracleLookup {
	return func(marketIndex int) (int64, bool) {
		p, ok := prices[marketIndex]
		if !ok {
			return 0, false
		}
		return p.Price, true
	}
}
