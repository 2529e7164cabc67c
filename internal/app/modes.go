package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/executor"
	"github.com/alanyoungcy/perpdash/internal/feed"
	"github.com/alanyoungcy/perpdash/internal/fixedpoint"
	"github.com/alanyoungcy/perpdash/internal/order"
	"github.com/alanyoungcy/perpdash/internal/pipeline"
	"github.com/alanyoungcy/perpdash/internal/portfolio"
	"github.com/alanyoungcy/perpdash/internal/server"
	"github.com/alanyoungcy/perpdash/internal/server/handler"
	"github.com/alanyoungcy/perpdash/internal/server/ws"
	"github.com/alanyoungcy/perpdash/internal/service"
)

// shutdownTimeout bounds the graceful HTTP shutdown.
const shutdownTimeout = 5 * time.Second

// services are the domain services every mode draws from.
type services struct {
	exec      *executor.Executor
	orders    *service.OrderService
	sizing    *service.SizingService
	portfolio *service.PortfolioService
}

func (a *App) buildServices(deps *Dependencies) *services {
	eng := a.cfg.Engine

	exec := executor.New(deps.Venue, executor.Config{
		Policy:        domain.LegPolicy(eng.LegPolicy),
		DedupTTL:      eng.DedupTTL.Duration,
		CancelTimeout: eng.CancelTimeout.Duration,
	}, a.logger)

	builder := order.NewBuilder(
		order.NewValidator(order.Limits{MaxScaleOrders: eng.MaxScaleOrders, MinOrderSize: eng.MinOrderSize}),
		order.NewAllocator(order.WithTolerance(eng.ScaleTolerance)),
	)

	orders := service.NewOrderService(
		builder, deps.OrderSetStore, exec,
		deps.RateLimiter, deps.LockManager, deps.PriceCache,
		deps.SignalBus, deps.AuditStore,
		service.OrderServiceConfig{
			RateLimit:      eng.SubmitRateLimit,
			RateWindow:     eng.SubmitRateWindow.Duration,
			LockTTL:        eng.SubmitLockTTL.Duration,
			SuggestPercent: eng.TPSLDefaultPercent,
			Precision:      eng.Precision,
		},
		a.logger,
	).WithNotifier(deps.Notifier).WithMetrics(deps.Metrics)

	pf := service.NewPortfolioService(
		deps.Venue, deps.Venue, deps.PriceCache,
		deps.SnapshotCache, deps.SnapshotStore, deps.SignalBus,
		portfolio.New(a.cfg.Portfolio.BasePrecision),
		a.logger,
	).WithMetrics(deps.Metrics)

	return &services{
		exec:      exec,
		orders:    orders,
		sizing:    service.NewSizingService(deps.Venue, deps.PriceCache, fixedpoint.New(eng.Precision)),
		portfolio: pf,
	}
}

// ServerMode serves the HTTP API and the WebSocket relay.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")
	svc := a.buildServices(deps)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return svc.exec.Run(ctx) })
	a.startHTTPServer(ctx, g, deps, svc)
	return g.Wait()
}

// MonitorMode streams oracle prices and refreshes portfolios on a timer.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")
	svc := a.buildServices(deps)

	g, ctx := errgroup.WithContext(ctx)
	a.startMonitor(ctx, g, deps, svc)
	return g.Wait()
}

// FullMode runs the server, the monitor and, when enabled, the archive job.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")
	svc := a.buildServices(deps)

	g, ctx := errgroup.WithContext(ctx)
	if err := a.startArchiver(ctx, g, deps); err != nil {
		return err
	}
	g.Go(func() error { return svc.exec.Run(ctx) })
	a.startHTTPServer(ctx, g, deps, svc)
	a.startMonitor(ctx, g, deps, svc)
	return g.Wait()
}

// monitoredWallets returns the configured wallets, or the default wallet.
func (a *App) monitoredWallets(deps *Dependencies) []string {
	if len(a.cfg.Portfolio.Wallets) > 0 {
		return a.cfg.Portfolio.Wallets
	}
	if deps.DefaultWallet != "" {
		return []string{deps.DefaultWallet}
	}
	return nil
}

func (a *App) startMonitor(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) {
	sink := feed.NewPriceSink(deps.PriceCache, deps.SignalBus, deps.Metrics, a.logger)
	oracle := feed.NewOracleFeed(a.cfg.Venue.WsURL, a.cfg.Venue.Markets, sink.Handle, a.logger)
	g.Go(func() error { return oracle.Run(ctx) })

	wallets := a.monitoredWallets(deps)
	interval := a.cfg.Portfolio.RefreshInterval.Duration
	a.logger.InfoContext(ctx, "portfolio monitor configured",
		slog.Int("wallets", len(wallets)),
		slog.Duration("interval", interval),
	)
	g.Go(func() error { return svc.portfolio.Monitor(ctx, wallets, interval) })
}

func (a *App) startArchiver(ctx context.Context, g *errgroup.Group, deps *Dependencies) error {
	if deps.Archiver == nil {
		return nil
	}
	sched, err := pipeline.ParseSchedule(a.cfg.Archive.Cron)
	if err != nil {
		return fmt.Errorf("app: archive schedule: %w", err)
	}
	job := pipeline.NewRetentionJob(deps.Archiver, a.cfg.Archive.RetentionDays, a.logger)
	g.Go(func() error { return job.RunSchedule(ctx, sched) })
	return nil
}

// startHTTPServer adds the API server, its WebSocket hub and the graceful
// shutdown watcher to g.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, svc *services) {
	if !a.cfg.Server.Enabled {
		a.logger.InfoContext(ctx, "HTTP server disabled")
		return
	}

	hub := ws.NewHub(deps.SignalBus, ws.Config{
		Channels:       []string{service.ChannelOrderSets, service.ChannelPortfolio, feed.ChannelOracle},
		Mode:           a.cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
	}, a.logger)
	g.Go(func() error { return hub.Run(ctx) })

	checks := map[string]handler.Pinger{
		"postgres": deps.Postgres.Ping,
		"redis":    deps.Redis.Ping,
	}
	if deps.S3 != nil {
		checks["s3"] = deps.S3.Health
	}

	wallet := deps.DefaultWallet
	srv := server.NewServer(server.Config{
		Port:        a.cfg.Server.Port,
		CORSOrigins: a.cfg.Server.CORSOrigins,
		APIKey:      a.cfg.Server.APIKey,
		RateLimit:   a.cfg.Server.RateLimit,
		RateWindow:  a.cfg.Server.RateWindow.Duration,
	}, server.Handlers{
		Health:    handler.NewHealthHandler(checks, a.logger),
		Orders:    handler.NewOrderHandler(svc.orders, wallet, a.logger),
		Sizing:    handler.NewSizingHandler(svc.sizing, wallet, a.logger),
		Portfolio: handler.NewPortfolioHandler(svc.portfolio, wallet, a.logger),
		Metrics:   deps.Metrics.Handler(),
	}, hub, deps.RateLimiter, a.logger)

	g.Go(srv.Start)
	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}
