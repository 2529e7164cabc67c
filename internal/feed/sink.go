package feed

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/metrics"
)

// ChannelOracle is the bus channel oracle updates are published on.
const ChannelOracle = "oracle"

// PriceSink fans an oracle update out to the cache, the bus and the
// metrics. bus and m may be nil.
type PriceSink struct {
	cache  domain.PriceCache
	bus    domain.SignalBus
	m      *metrics.Metrics
	logger *slog.Logger
}

// NewPriceSink creates a PriceSink.
func NewPriceSink(cache domain.PriceCache, bus domain.SignalBus, m *metrics.Metrics, logger *slog.Logger) *PriceSink {
	return &PriceSink{
		cache:  cache,
		bus:    bus,
		m:      m,
		logger: logger.With(slog.String("component", "price_sink")),
	}
}

// Handle is a PriceHandler. Failures are logged; a lost update is replaced
// by the next tick.
func (s *PriceSink) Handle(ctx context.Context, p domain.OraclePrice) {
	if err := s.cache.SetPrice(ctx, p); err != nil {
		s.logger.Warn("feed: cache oracle price failed",
			slog.Int("market_index", p.MarketIndex),
			slog.String("error", err.Error()),
		)
	}
	s.m.OracleUpdate(p)

	if s.bus == nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := s.bus.Publish(ctx, ChannelOracle, payload); err != nil {
		s.logger.Debug("feed: publish oracle price failed", slog.String("error", err.Error()))
	}
}
