package domain

import "time"

// BasePrecision is the default fixed-point scale of base-asset amounts.
const BasePrecision int64 = Precision

// Position is a raw per-market holding as reported by the account source.
// Amounts are signed and fixed-point: a negative quote entry amount is a debit.
type Position struct {
	MarketIndex      int   `json:"market_index"`
	BaseAssetAmount  int64 `json:"base_asset_amount"`
	QuoteAssetAmount int64 `json:"quote_asset_amount"`
	QuoteEntryAmount int64 `json:"quote_entry_amount"`
	LPShares         int64 `json:"lp_shares"`
}

// IsEmpty reports whether the position was closed or never opened.
func (p Position) IsEmpty() bool {
	return p.BaseAssetAmount == 0 && p.QuoteAssetAmount == 0 && p.LPShares == 0
}

// PositionWithPNL is a Position marked against an oracle price. UnsettledPnl
// and OraclePrice are nil when no oracle price was available, which is not
// the same as a flat position.
type PositionWithPNL struct {
	Position
	UnsettledPnl *int64 `json:"unsettled_pnl"`
	OraclePrice  *int64 `json:"oracle_price"`
}

// RawAccount is one subaccount snapshot from the external account source.
type RawAccount struct {
	ID             int        `json:"id"`
	Name           string     `json:"name"`
	Authority      string     `json:"authority"`
	TotalDeposits  int64      `json:"total_deposits"`
	TotalWithdraws int64      `json:"total_withdraws"`
	SettledPerpPnl int64      `json:"settled_perp_pnl"`
	Positions      []Position `json:"positions"`
}

// Subaccount carries the derived valuation of one RawAccount.
type Subaccount struct {
	ID              int               `json:"id"`
	Name            string            `json:"name"`
	DepositAmount   int64             `json:"deposit_amount"`
	Positions       []PositionWithPNL `json:"positions"`
	NetUnsettledPnl int64             `json:"net_unsettled_pnl"`
	NetTotal        int64             `json:"net_total"`
}

// PortfolioTotals sums every subaccount of a wallet.
type PortfolioTotals struct {
	DepositAmount int64 `json:"deposit_amount"`
	UnsettledPnl  int64 `json:"unsettled_pnl"`
	NetTotal      int64 `json:"net_total"`
}

// Portfolio is the aggregated view of one wallet.
type Portfolio struct {
	Subaccounts []Subaccount    `json:"subaccounts"`
	Totals      PortfolioTotals `json:"totals"`
}

// PortfolioSnapshot is a Portfolio stamped with its wallet and refresh time.
type PortfolioSnapshot struct {
	Wallet    string    `json:"wallet"`
	Portfolio Portfolio `json:"portfolio"`
	TakenAt   time.Time `json:"taken_at"`
}
