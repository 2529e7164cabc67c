package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/fixedpoint"
	"github.com/alanyoungcy/perpdash/internal/metrics"
	"github.com/alanyoungcy/perpdash/internal/notify"
	"github.com/alanyoungcy/perpdash/internal/order"
)

// SetSubmitter sends a persisted set to the venue.
type SetSubmitter interface {
	Submit(ctx context.Context, set domain.OrderSet) (domain.OrderSet, error)
}

// OrderServiceConfig holds submission guards and the fixed-point scale of
// preview estimates. A zero Precision means domain.Precision.
type OrderServiceConfig struct {
	RateLimit      int
	RateWindow     time.Duration
	LockTTL        time.Duration
	SuggestPercent int64
	Precision      int64
}

// PreviewRequest is a build request plus the TP/SL toggles of the form. A
// toggle that is on without a spec asks for a suggested trigger price.
type PreviewRequest struct {
	order.Request
	SuggestTakeProfit bool `json:"suggest_take_profit"`
	SuggestStopLoss   bool `json:"suggest_stop_loss"`
}

// Suggestions are default exit prices shown to the user. They are never
// placed on their own.
type Suggestions struct {
	ReferencePrice int64  `json:"reference_price"`
	TakeProfit     *int64 `json:"take_profit,omitempty"`
	StopLoss       *int64 `json:"stop_loss,omitempty"`
}

// OrderPreview is the dry-run result of a build.
type OrderPreview struct {
	Orders            []domain.GeneratedOrder `json:"orders"`
	TotalSize         int64                   `json:"total_size"`
	EstimatedNotional int64                   `json:"estimated_notional"`
	Suggestions       *Suggestions            `json:"suggestions,omitempty"`
}

// SubmitRequest identifies the account a set is placed for. A caller-chosen
// SetID makes the submission idempotent.
type SubmitRequest struct {
	Wallet     string `json:"wallet"`
	Subaccount int    `json:"subaccount"`
	SetID      string `json:"set_id,omitempty"`
	order.Request
}

// OrderService turns order requests into persisted, submitted order sets.
type OrderService struct {
	builder  *order.Builder
	sets     domain.OrderSetStore
	exec     SetSubmitter
	limiter  domain.RateLimiter
	locks    domain.LockManager
	prices   domain.PriceCache
	bus      domain.SignalBus
	audit    domain.AuditStore
	notifier *notify.Notifier
	metrics  *metrics.Metrics
	cfg      OrderServiceConfig
	conv     fixedpoint.Converter
	newID    func() string
	now      func() time.Time
	logger   *slog.Logger
}

// NewOrderService creates an OrderService.
func NewOrderService(
	builder *order.Builder,
	sets domain.OrderSetStore,
	exec SetSubmitter,
	limiter domain.RateLimiter,
	locks domain.LockManager,
	prices domain.PriceCache,
	bus domain.SignalBus,
	audit domain.AuditStore,
	cfg OrderServiceConfig,
	logger *slog.Logger,
) *OrderService {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 5
	}
	if cfg.RateWindow <= 0 {
		cfg.RateWindow = time.Second
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.SuggestPercent <= 0 {
		cfg.SuggestPercent = order.DefaultSuggestPercent
	}
	return &OrderService{
		builder: builder,
		sets:    sets,
		exec:    exec,
		limiter: limiter,
		locks:   locks,
		prices:  prices,
		bus:     bus,
		audit:   audit,
		cfg:     cfg,
		conv:    fixedpoint.New(cfg.Precision),
		newID:   uuid.NewString,
		now:     time.Now,
		logger:  logger.With(slog.String("component", "order_service")),
	}
}

// WithNotifier attaches operator alerts.
func (s *OrderService) WithNotifier(n *notify.Notifier) *OrderService {
	s.notifier = n
	return s
}

// WithMetrics attaches order counters.
func (s *OrderService) WithMetrics(m *metrics.Metrics) *OrderService {
	s.metrics = m
	return s
}

// Preview builds the set without side effects.
func (s *OrderService) Preview(ctx context.Context, req PreviewRequest) (OrderPreview, error) {
	orders, err := s.builder.BuildSet(req.Request)
	if err != nil {
		return OrderPreview{}, fmt.Errorf("order_service: preview: %w", err)
	}

	ref := s.referencePrice(ctx, req.Request)
	out := OrderPreview{Orders: orders}
	for _, o := range orders {
		if o.Tag == domain.LegTagTakeProfit || o.Tag == domain.LegTagStopLoss {
			continue
		}
		out.TotalSize += o.Size
		price := o.PriceValue()
		if price == 0 {
			price = ref
		}
		out.EstimatedNotional += s.conv.NotionalFromSize(o.Size, price)
	}

	wantTP := req.SuggestTakeProfit && req.TakeProfit == nil
	wantSL := req.SuggestStopLoss && req.StopLoss == nil
	if ref > 0 && (wantTP || wantSL) {
		sug := &Suggestions{ReferencePrice: ref}
		d := req.Intent.Direction
		if wantTP {
			v := order.SuggestTakeProfit(d, ref, s.cfg.SuggestPercent)
			sug.TakeProfit = &v
		}
		if wantSL {
			v := order.SuggestStopLoss(d, ref, s.cfg.SuggestPercent)
			sug.StopLoss = &v
		}
		out.Suggestions = sug
	}
	return out, nil
}

// referencePrice is the price suggestions and notional estimates are based
// on: the limit price, the scale band midpoint, or the cached oracle price.
// Zero means unknown.
func (s *OrderService) referencePrice(ctx context.Context, req order.Request) int64 {
	switch {
	case req.Scale != nil:
		return req.Scale.MinPrice + (req.Scale.MaxPrice-req.Scale.MinPrice)/2
	case req.Intent.Price != nil:
		return *req.Intent.Price
	case s.prices == nil:
		return 0
	}
	p, err := s.prices.GetPrice(ctx, req.Intent.MarketIndex)
	if err != nil {
		return 0
	}
	if req.Intent.Kind == domain.OrderKindOracle && req.Intent.OraclePriceOffset != nil {
		return p.Price + *req.Intent.OraclePriceOffset
	}
	return p.Price
}

// Submit builds, persists and submits one order set for a wallet. Submissions
// per wallet are rate limited and serialised. The returned set carries the
// per-leg outcome even when err is domain.ErrPartialSubmission.
func (s *OrderService) Submit(ctx context.Context, req SubmitRequest) (domain.OrderSet, error) {
	if req.Wallet == "" {
		return domain.OrderSet{}, fmt.Errorf("order_service: submit: wallet required: %w", domain.ErrInvalidOrder)
	}

	allowed, err := s.limiter.Allow(ctx, "orders:"+req.Wallet, s.cfg.RateLimit, s.cfg.RateWindow)
	if err != nil {
		return domain.OrderSet{}, fmt.Errorf("order_service: rate limiter: %w", err)
	}
	if !allowed {
		return domain.OrderSet{}, fmt.Errorf("order_service: submit for %s: %w", req.Wallet, domain.ErrRateLimited)
	}

	unlock, err := s.locks.Acquire(ctx, "submit:"+req.Wallet, s.cfg.LockTTL)
	if err != nil {
		return domain.OrderSet{}, fmt.Errorf("order_service: submit for %s: %w", req.Wallet, err)
	}
	defer unlock()

	orders, err := s.builder.BuildSet(req.Request)
	if err != nil {
		return domain.OrderSet{}, fmt.Errorf("order_service: submit: %w", err)
	}
	s.metrics.OrdersGenerated(orders)

	set := s.newSet(req, orders)
	if err := s.sets.Create(ctx, set); err != nil {
		if errors.Is(err, domain.ErrAlreadyExists) {
			return domain.OrderSet{}, fmt.Errorf("order_service: set %s: %w", set.ID, domain.ErrDuplicateSet)
		}
		return domain.OrderSet{}, fmt.Errorf("order_service: create set: %w", err)
	}

	submitted, execErr := s.exec.Submit(ctx, set)

	// The venue has acted on the set; record it even if the request is gone.
	pctx := context.WithoutCancel(ctx)
	if err := s.persistOutcome(pctx, submitted); err != nil {
		s.logger.ErrorContext(ctx, "order_service: persist outcome failed",
			slog.String("set_id", set.ID),
			slog.String("error", err.Error()),
		)
	}
	s.metrics.SetSubmitted(submitted)
	publish(pctx, s.bus, s.logger, ChannelOrderSets, StreamOrderSets, "order_set_"+string(submitted.Status), submitted)
	audit(pctx, s.audit, s.logger, "order_set."+string(submitted.Status), map[string]any{
		"set_id":     submitted.ID,
		"wallet":     submitted.Wallet,
		"subaccount": submitted.Subaccount,
		"legs":       len(submitted.Orders),
		"error":      errString(execErr),
	})
	if err := s.notifier.Notify(pctx, notify.SetEvent(submitted)); err != nil {
		s.logger.WarnContext(ctx, "order_service: notify failed", slog.String("error", err.Error()))
	}

	s.logger.InfoContext(ctx, "order_service: set submitted",
		slog.String("set_id", submitted.ID),
		slog.String("wallet", submitted.Wallet),
		slog.String("status", string(submitted.Status)),
		slog.Int("legs", len(submitted.Orders)),
	)

	if execErr != nil {
		return submitted, fmt.Errorf("order_service: submit: %w", execErr)
	}
	return submitted, nil
}

func (s *OrderService) newSet(req SubmitRequest, orders []domain.GeneratedOrder) domain.OrderSet {
	now := s.now().UTC()
	id := req.SetID
	if id == "" {
		id = s.newID()
	}
	set := domain.OrderSet{
		ID:         id,
		Wallet:     req.Wallet,
		Subaccount: req.Subaccount,
		Status:     domain.SetStatusPending,
		Orders:     make([]domain.SubmittedOrder, len(orders)),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for i, o := range orders {
		set.Orders[i] = domain.SubmittedOrder{
			ID:      s.newID(),
			SetID:   id,
			Seq:     i,
			Order:   o,
			Status:  domain.OrderStatusPending,
			Updated: now,
		}
	}
	return set
}

func (s *OrderService) persistOutcome(ctx context.Context, set domain.OrderSet) error {
	var errs []error
	for _, o := range set.Orders {
		if err := s.sets.UpdateOrder(ctx, o); err != nil {
			errs = append(errs, fmt.Errorf("leg %d: %w", o.Seq, err))
		}
	}
	if err := s.sets.UpdateStatus(ctx, set.ID, set.Status); err != nil {
		errs = append(errs, fmt.Errorf("status: %w", err))
	}
	return errors.Join(errs...)
}

// GetSet returns one order set with its legs.
func (s *OrderService) GetSet(ctx context.Context, id string) (domain.OrderSet, error) {
	set, err := s.sets.GetByID(ctx, id)
	if err != nil {
		return domain.OrderSet{}, fmt.Errorf("order_service: get set %q: %w", id, err)
	}
	return set, nil
}

// ListSets returns a wallet's order sets, newest first.
func (s *OrderService) ListSets(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.OrderSet, error) {
	sets, err := s.sets.ListByWallet(ctx, wallet, opts)
	if err != nil {
		return nil, fmt.Errorf("order_service: list sets for %q: %w", wallet, err)
	}
	return sets, nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
