package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// SnapshotCache stores the latest portfolio snapshot of each wallet as a JSON
// string at "{prefix}:portfolio:{wallet}".
type SnapshotCache struct {
	c   *Client
	ttl time.Duration
}

// NewSnapshotCache creates a SnapshotCache. A zero ttl disables expiry.
func NewSnapshotCache(c *Client, ttl time.Duration) *SnapshotCache {
	return &SnapshotCache{c: c, ttl: ttl}
}

func (sc *SnapshotCache) key(wallet string) string {
	return sc.c.Key("portfolio", strings.ToLower(wallet))
}

// Set overwrites the cached snapshot of snap.Wallet.
func (sc *SnapshotCache) Set(ctx context.Context, snap domain.PortfolioSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: encode snapshot %s: %w", snap.Wallet, err)
	}
	if err := sc.c.rdb.Set(ctx, sc.key(snap.Wallet), data, sc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set snapshot %s: %w", snap.Wallet, err)
	}
	return nil
}

// Get returns domain.ErrNotFound when nothing is cached for wallet.
func (sc *SnapshotCache) Get(ctx context.Context, wallet string) (domain.PortfolioSnapshot, error) {
	data, err := sc.c.rdb.Get(ctx, sc.key(wallet)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.PortfolioSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("redis: get snapshot %s: %w", wallet, err)
	}
	var snap domain.PortfolioSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("redis: decode snapshot %s: %w", wallet, err)
	}
	return snap, nil
}

var _ domain.SnapshotCache = (*SnapshotCache)(nil)
