package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// PriceCache implements domain.PriceCache. Each market is a hash at
// "{prefix}:oracle:{marketIndex}" with fields "price" (fixed-point integer)
// and "ts" (unix nanoseconds). Entries expire after ttl so a stalled feed
// reads as unknown rather than stale.
type PriceCache struct {
	c   *Client
	ttl time.Duration
}

// NewPriceCache creates a PriceCache. A zero ttl disables expiry.
func NewPriceCache(c *Client, ttl time.Duration) *PriceCache {
	return &PriceCache{c: c, ttl: ttl}
}

func (pc *PriceCache) key(marketIndex int) string {
	return pc.c.Key("oracle", strconv.Itoa(marketIndex))
}

// SetPrice stores the latest oracle price of a market.
func (pc *PriceCache) SetPrice(ctx context.Context, p domain.OraclePrice) error {
	key := pc.key(p.MarketIndex)
	pipe := pc.c.rdb.TxPipeline()
	pipe.HSet(ctx, key, encodePrice(p))
	if pc.ttl > 0 {
		pipe.Expire(ctx, key, pc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set price %d: %w", p.MarketIndex, err)
	}
	return nil
}

// GetPrice returns domain.ErrNotFound when no live price is cached.
func (pc *PriceCache) GetPrice(ctx context.Context, marketIndex int) (domain.OraclePrice, error) {
	vals, err := pc.c.rdb.HGetAll(ctx, pc.key(marketIndex)).Result()
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("redis: get price %d: %w", marketIndex, err)
	}
	p, ok := decodePrice(marketIndex, vals)
	if !ok {
		return domain.OraclePrice{}, domain.ErrNotFound
	}
	return p, nil
}

// GetPrices fetches several markets in one pipeline. Missing or malformed
// entries are omitted from the result.
func (pc *PriceCache) GetPrices(ctx context.Context, marketIndexes []int) (map[int]domain.OraclePrice, error) {
	out := make(map[int]domain.OraclePrice, len(marketIndexes))
	if len(marketIndexes) == 0 {
		return out, nil
	}

	pipe := pc.c.rdb.Pipeline()
	cmds := make(map[int]*redis.MapStringStringCmd, len(marketIndexes))
	for _, m := range marketIndexes {
		cmds[m] = pipe.HGetAll(ctx, pc.key(m))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis: get prices: %w", err)
	}

	for m, cmd := range cmds {
		vals, err := cmd.Result()
		if err != nil {
			continue
		}
		if p, ok := decodePrice(m, vals); ok {
			out[m] = p
		}
	}
	return out, nil
}

func encodePrice(p domain.OraclePrice) map[string]any {
	return map[string]any{
		"price": strconv.FormatInt(p.Price, 10),
		"ts":    strconv.FormatInt(p.ObservedAt.UnixNano(), 10),
	}
}

func decodePrice(marketIndex int, vals map[string]string) (domain.OraclePrice, bool) {
	raw, ok := vals["price"]
	if !ok {
		return domain.OraclePrice{}, false
	}
	price, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return domain.OraclePrice{}, false
	}
	p := domain.OraclePrice{MarketIndex: marketIndex, Price: price}
	if ts, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		p.ObservedAt = time.Unix(0, ts).UTC()
	}
	return p, true
}

var _ domain.PriceCache = (*PriceCache)(nil)
