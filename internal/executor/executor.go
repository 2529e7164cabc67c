// Package executor submits generated order sets to the venue as one logical
// unit under a leg policy.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// Venue places and cancels single orders. clientID is the leg's own ID and
// lets the venue drop duplicate placements.
type Venue interface {
	PlaceOrder(ctx context.Context, wallet string, subaccount int, clientID string, o domain.GeneratedOrder) (domain.OrderResult, error)
	CancelOrder(ctx context.Context, wallet string, venueID string) error
}

// SetAuthorizer is implemented by venues that need the signed set digest
// before any leg is placed.
type SetAuthorizer interface {
	AuthorizeSet(ctx context.Context, set domain.OrderSet) error
}

// Config tunes the executor.
type Config struct {
	Policy          domain.LegPolicy
	DedupTTL        time.Duration
	CancelTimeout   time.Duration
	CleanupInterval time.Duration
}

// Executor is safe for concurrent use; callers serialise per wallet.
type Executor struct {
	venue           Venue
	policy          domain.LegPolicy
	dedup           *Dedup
	cancelTimeout   time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	logger          *slog.Logger
}

// New creates an Executor. Zero config fields take defaults: all_or_none,
// 2m dedup window, 10s cancel timeout, 30s cleanup.
func New(venue Venue, cfg Config, logger *slog.Logger) *Executor {
	if cfg.Policy == "" {
		cfg.Policy = domain.LegPolicyAllOrNone
	}
	if cfg.DedupTTL <= 0 {
		cfg.DedupTTL = 2 * time.Minute
	}
	if cfg.CancelTimeout <= 0 {
		cfg.CancelTimeout = 10 * time.Second
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 30 * time.Second
	}
	return &Executor{
		venue:           venue,
		policy:          cfg.Policy,
		dedup:           NewDedup(cfg.DedupTTL),
		cancelTimeout:   cfg.CancelTimeout,
		cleanupInterval: cfg.CleanupInterval,
		now:             time.Now,
		logger:          logger.With(slog.String("component", "executor")),
	}
}

// Submit places every leg of set in order and returns the set with per-leg
// results and a derived status. The error is domain.ErrDuplicateSet for a
// repeat within the dedup window, domain.ErrPartialSubmission when any leg
// failed, or nil.
func (e *Executor) Submit(ctx context.Context, set domain.OrderSet) (domain.OrderSet, error) {
	if e.dedup.Seen(set.ID) {
		return set, fmt.Errorf("executor: set %s: %w", set.ID, domain.ErrDuplicateSet)
	}

	if a, ok := e.venue.(SetAuthorizer); ok {
		if err := a.AuthorizeSet(ctx, set); err != nil {
			e.dedup.Forget(set.ID)
			for i := range set.Orders {
				e.markLeg(&set.Orders[i], domain.OrderStatusCancelled, "", "not sent: set not authorized")
			}
			set.Status = domain.SetStatusFailed
			set.UpdatedAt = e.now().UTC()
			return set, fmt.Errorf("executor: authorize set %s: %w", set.ID, err)
		}
	}

	out := e.placeLegs(ctx, &set, e.policy)
	set.Status = setStatus(out)
	set.UpdatedAt = e.now().UTC()

	e.logger.InfoContext(ctx, "executor: set submitted",
		slog.String("set_id", set.ID),
		slog.String("wallet", set.Wallet),
		slog.String("status", string(set.Status)),
		slog.Int("legs", len(set.Orders)),
		slog.Int("failed", out.failed),
	)

	if out.failed > 0 {
		return set, fmt.Errorf("executor: set %s: %d of %d legs failed (%v): %w",
			set.ID, out.failed, len(set.Orders), out.cause, domain.ErrPartialSubmission)
	}
	return set, nil
}

// Run evicts expired dedup entries until ctx is cancelled.
func (e *Executor) Run(ctx context.Context) error {
	t := time.NewTicker(e.cleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			e.dedup.Cleanup()
		}
	}
}
