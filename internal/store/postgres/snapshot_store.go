package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore. Totals are kept in columns
// for charting; the full portfolio is kept as JSONB.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a SnapshotStore.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

// Insert records one snapshot.
func (s *SnapshotStore) Insert(ctx context.Context, snap domain.PortfolioSnapshot) error {
	body, err := json.Marshal(snap.Portfolio)
	if err != nil {
		return fmt.Errorf("postgres: encode snapshot %s: %w", snap.Wallet, err)
	}
	t := snap.Portfolio.Totals
	_, err = s.pool.Exec(ctx,
		`INSERT INTO portfolio_snapshots (wallet, deposit_amount, unsettled_pnl, net_total, body, taken_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		snap.Wallet, t.DepositAmount, t.UnsettledPnl, t.NetTotal, body, snap.TakenAt)
	if err != nil {
		return fmt.Errorf("postgres: insert snapshot %s: %w", snap.Wallet, err)
	}
	return nil
}

// ListByWallet returns a wallet's snapshots newest first.
func (s *SnapshotStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.PortfolioSnapshot, error) {
	q := newListQuery(`SELECT wallet, body, taken_at FROM portfolio_snapshots WHERE wallet = $1`, wallet).
		window("taken_at", opts).
		page("taken_at", opts)
	return s.query(ctx, q.String(), q.args...)
}

// ListBefore returns up to limit snapshots older than the cutoff, oldest first.
func (s *SnapshotStore) ListBefore(ctx context.Context, before time.Time, limit int) ([]domain.PortfolioSnapshot, error) {
	return s.query(ctx,
		`SELECT wallet, body, taken_at FROM portfolio_snapshots
		 WHERE taken_at < $1 ORDER BY taken_at ASC LIMIT $2`, before, limit)
}

// DeleteBefore removes snapshots older than the cutoff.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM portfolio_snapshots WHERE taken_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (s *SnapshotStore) query(ctx context.Context, query string, args ...any) ([]domain.PortfolioSnapshot, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list snapshots: %w", err)
	}
	out, err := pgx.CollectRows(rows, func(r pgx.CollectableRow) (domain.PortfolioSnapshot, error) {
		var (
			snap domain.PortfolioSnapshot
			body []byte
		)
		if err := r.Scan(&snap.Wallet, &body, &snap.TakenAt); err != nil {
			return snap, err
		}
		return snap, json.Unmarshal(body, &snap.Portfolio)
	})
	if err != nil {
		return nil, fmt.Errorf("postgres: scan snapshots: %w", err)
	}
	return out, nil
}

var _ domain.SnapshotStore = (*SnapshotStore)(nil)
