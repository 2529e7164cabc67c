package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/perpdash/internal/domain"
)

// Bus channels and streams.
const (
	ChannelOrderSets = "order_sets"
	ChannelPortfolio = "portfolio"
	StreamOrderSets  = "order_sets"
)

// event is the envelope of every bus message.
type event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// publish sends an event on channel and, when stream is set, appends it to
// the durable stream. Bus failures are logged and never fail the caller.
func publish(ctx context.Context, bus domain.SignalBus, logger *slog.Logger, channel, stream, name string, data any) {
	if bus == nil {
		return
	}
	payload, err := json.Marshal(event{Event: name, Data: data})
	if err != nil {
		logger.WarnContext(ctx, "service: marshal event failed",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
		return
	}
	if err := bus.Publish(ctx, channel, payload); err != nil {
		logger.WarnContext(ctx, "service: publish event failed",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
	}
	if stream == "" {
		return
	}
	if err := bus.StreamAppend(ctx, stream, payload); err != nil {
		logger.WarnContext(ctx, "service: stream append failed",
			slog.String("stream", stream),
			slog.String("error", err.Error()),
		)
	}
}

// audit writes an audit row and logs a failure instead of returning it.
func audit(ctx context.Context, store domain.AuditStore, logger *slog.Logger, name string, detail map[string]any) {
	if store == nil {
		return
	}
	if err := store.Log(ctx, name, detail); err != nil {
		logger.WarnContext(ctx, "service: audit log failed",
			slog.String("event", name),
			slog.String("error", err.Error()),
		)
	}
}
