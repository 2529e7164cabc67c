package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/metrics"
	"github.com/alanyoungcy/perpdash/internal/portfolio"
)

// maxParallelRefresh bounds concurrent wallet refreshes per tick.
const maxParallelRefresh = 8

// PortfolioService refreshes and serves aggregated wallet portfolios.
type PortfolioService struct {
	accounts  domain.AccountSource
	oracle    domain.OracleSource
	prices    domain.PriceCache
	cache     domain.SnapshotCache
	snapshots domain.SnapshotStore
	bus       domain.SignalBus
	agg       *portfolio.Aggregator
	metrics   *metrics.Metrics
	now       func() time.Time
	logger    *slog.Logger
}

// NewPortfolioService creates a PortfolioService. snapshots and bus may be
// nil to skip history and events.
func NewPortfolioService(
	accounts domain.AccountSource,
	oracle domain.OracleSource,
	prices domain.PriceCache,
	cache domain.SnapshotCache,
	snapshots domain.SnapshotStore,
	bus domain.SignalBus,
	agg *portfolio.Aggregator,
	logger *slog.Logger,
) *PortfolioService {
	return &PortfolioService{
		accounts:  accounts,
		oracle:    oracle,
		prices:    prices,
		cache:     cache,
		snapshots: snapshots,
		bus:       bus,
		agg:       agg,
		now:       time.Now,
		logger:    logger.With(slog.String("component", "portfolio_service")),
	}
}

// WithMetrics attaches refresh metrics.
func (s *PortfolioService) WithMetrics(m *metrics.Metrics) *PortfolioService {
	s.metrics = m
	return s
}

// Refresh pulls the wallet's subaccounts, prices every held market and
// stores the aggregated snapshot.
func (s *PortfolioService) Refresh(ctx context.Context, wallet string) (snap domain.PortfolioSnapshot, err error) {
	started := s.now()
	defer func() { s.metrics.RefreshDone(wallet, started, snap.Portfolio.Totals, err) }()

	accounts, err := s.accounts.Accounts(ctx, wallet)
	if err != nil {
		return domain.PortfolioSnapshot{}, fmt.Errorf("portfolio_service: accounts for %s: %w", wallet, err)
	}

	prices, err := s.oraclePrices(ctx, portfolio.Markets(accounts))
	if err != nil {
		return domain.PortfolioSnapshot{}, err
	}

	snap = domain.PortfolioSnapshot{
		Wallet:    wallet,
		Portfolio: s.agg.Aggregate(accounts, portfolio.LookupFromMap(prices)),
		TakenAt:   s.now().UTC(),
	}

	if err := s.cache.Set(ctx, snap); err != nil {
		s.logger.WarnContext(ctx, "portfolio_service: cache snapshot failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
	}
	if s.snapshots != nil {
		if err := s.snapshots.Insert(ctx, snap); err != nil {
			s.logger.WarnContext(ctx, "portfolio_service: store snapshot failed",
				slog.String("wallet", wallet),
				slog.String("error", err.Error()),
			)
		}
	}
	publish(ctx, s.bus, s.logger, ChannelPortfolio, "", "portfolio", snap)

	s.logger.DebugContext(ctx, "portfolio_service: refreshed",
		slog.String("wallet", wallet),
		slog.Int("subaccounts", len(snap.Portfolio.Subaccounts)),
		slog.Int64("net_total", snap.Portfolio.Totals.NetTotal),
	)
	return snap, nil
}

// oraclePrices reads markets from the price cache and asks the oracle
// source only for the ones it misses. A market neither knows is left out so
// its positions carry no PnL.
func (s *PortfolioService) oraclePrices(ctx context.Context, markets []int) (map[int]domain.OraclePrice, error) {
	prices := make(map[int]domain.OraclePrice, len(markets))
	if len(markets) == 0 {
		return prices, nil
	}

	cached, err := s.prices.GetPrices(ctx, markets)
	if err != nil {
		s.logger.WarnContext(ctx, "portfolio_service: price cache read failed",
			slog.String("error", err.Error()),
		)
	}
	var missing []int
	for _, m := range markets {
		if p, ok := cached[m]; ok {
			prices[m] = p
			continue
		}
		missing = append(missing, m)
	}
	if len(missing) == 0 || s.oracle == nil {
		return prices, nil
	}

	fetched, err := s.oracle.OraclePrices(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("portfolio_service: oracle prices: %w", err)
	}
	for m, p := range fetched {
		prices[m] = p
		if err := s.prices.SetPrice(ctx, p); err != nil {
			s.logger.DebugContext(ctx, "portfolio_service: cache price failed", slog.String("error", err.Error()))
		}
	}
	return prices, nil
}

// Latest returns the cached snapshot, refreshing when none is cached.
func (s *PortfolioService) Latest(ctx context.Context, wallet string) (domain.PortfolioSnapshot, error) {
	snap, err := s.cache.Get(ctx, wallet)
	if err == nil {
		return snap, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		s.logger.WarnContext(ctx, "portfolio_service: snapshot cache read failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
	}
	return s.Refresh(ctx, wallet)
}

// History returns stored snapshots for wallet, newest first.
func (s *PortfolioService) History(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.PortfolioSnapshot, error) {
	if s.snapshots == nil {
		return nil, nil
	}
	out, err := s.snapshots.ListByWallet(ctx, wallet, opts)
	if err != nil {
		return nil, fmt.Errorf("portfolio_service: history for %s: %w", wallet, err)
	}
	return out, nil
}

// Monitor refreshes every wallet on each tick until ctx is cancelled. A
// failing wallet is logged and retried on the next tick.
func (s *PortfolioService) Monitor(ctx context.Context, wallets []string, interval time.Duration) error {
	if len(wallets) == 0 {
		s.logger.InfoContext(ctx, "portfolio_service: no wallets to monitor")
		<-ctx.Done()
		return ctx.Err()
	}

	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		s.refreshAll(ctx, wallets)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
}

func (s *PortfolioService) refreshAll(ctx context.Context, wallets []string) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelRefresh)
	for _, w := range wallets {
		g.Go(func() error {
			if _, err := s.Refresh(gctx, w); err != nil && gctx.Err() == nil {
				s.logger.WarnContext(gctx, "portfolio_service: refresh failed",
					slog.String("wallet", w),
					slog.String("error", err.Error()),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
}
