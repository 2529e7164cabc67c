package domain

import "context"

// AccountSource returns the current subaccount snapshots of a wallet.
type AccountSource interface {
	Accounts(ctx context.Context, wallet string) ([]RawAccount, error)
}

// OracleSource returns the latest oracle prices for the given markets.
// Markets without a price are absent from the result.
type OracleSource interface {
	OraclePrices(ctx context.Context, marketIndexes []int) (map[int]OraclePrice, error)
}

// MaxTradeSizer reports the largest notional a wallet may open in a market.
// The value is an opaque ceiling computed by the protocol's risk engine.
type MaxTradeSizer interface {
	MaxTradeSize(ctx context.Context, wallet string, marketIndex int, direction Direction) (int64, error)
}

// OracleLookup resolves a market to its oracle price. ok is false when the
// price is unknown.
type OracleLookup func(marketIndex int) (price int64, ok bool)
