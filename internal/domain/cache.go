package domain

import (
	"context"
	"time"
)

// OraclePrice is a fixed-point oracle price with the time it was observed.
type OraclePrice struct {
	MarketIndex int       `json:"market_index"`
	Price       int64     `json:"price"`
	ObservedAt  time.Time `json:"observed_at"`
}

// PriceCache provides fast access to the latest oracle prices.
type PriceCache interface {
	SetPrice(ctx context.Context, p OraclePrice) error
	GetPrice(ctx context.Context, marketIndex int) (OraclePrice, error)
	GetPrices(ctx context.Context, marketIndexes []int) (map[int]OraclePrice, error)
}

// SnapshotCache holds the latest aggregated portfolio per wallet.
type SnapshotCache interface {
	Set(ctx context.Context, snap PortfolioSnapshot) error
	Get(ctx context.Context, wallet string) (PortfolioSnapshot, error)
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}
