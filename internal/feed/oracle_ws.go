// Package feed streams oracle prices from the gateway WebSocket into the
// price cache and the event bus.
package feed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/platform/venue"
)

const (
	writeWait         = 10 * time.Second
	pongWait          = 60 * time.Second
	pingPeriod        = (pongWait * 9) / 10
	handshakeTimeout  = 15 * time.Second
	reconnectDelay    = time.Second
	maxReconnectDelay = time.Minute
)

// PriceHandler receives every decoded oracle price.
type PriceHandler func(ctx context.Context, p domain.OraclePrice)

type subscribeCommand struct {
	Type    string `json:"type"`
	Channel string `json:"channel"`
	Markets []int  `json:"markets"`
}

type oracleMessage struct {
	Type string `json:"type"`
	venue.APIOraclePrice
}

// OracleFeed subscribes to oracle updates for a fixed set of markets and
// reconnects with exponential backoff until its context ends.
type OracleFeed struct {
	wsURL   string
	markets []int
	handle  PriceHandler
	dialer  websocket.Dialer
	logger  *slog.Logger
}

// NewOracleFeed creates a feed for markets.
func NewOracleFeed(wsURL string, markets []int, handle PriceHandler, logger *slog.Logger) *OracleFeed {
	return &OracleFeed{
		wsURL:   wsURL,
		markets: markets,
		handle:  handle,
		dialer:  websocket.Dialer{HandshakeTimeout: handshakeTimeout},
		logger:  logger.With(slog.String("component", "oracle_feed")),
	}
}

// Run blocks until ctx is cancelled.
func (f *OracleFeed) Run(ctx context.Context) error {
	if len(f.markets) == 0 {
		f.logger.Info("feed: no markets configured, oracle feed idle")
		<-ctx.Done()
		return ctx.Err()
	}

	attempt := 0
	for {
		connected, err := f.runConnection(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if connected {
			attempt = 0
		}
		delay := backoff(attempt)
		attempt++
		f.logger.Warn("feed: oracle ws disconnected, reconnecting",
			slog.String("error", err.Error()),
			slog.Duration("delay", delay),
		)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}

// backoff doubles the reconnect delay per failed attempt up to the cap.
func backoff(attempt int) time.Duration {
	d := reconnectDelay
	for i := 0; i < attempt && d < maxReconnectDelay; i++ {
		d *= 2
	}
	return min(d, maxReconnectDelay)
}

// runConnection reports whether the subscription was established.
func (f *OracleFeed) runConnection(ctx context.Context) (bool, error) {
	conn, _, err := f.dialer.DialContext(ctx, f.wsURL, nil)
	if err != nil {
		return false, fmt.Errorf("feed: dial: %w", err)
	}
	defer conn.Close()

	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(subscribeCommand{Type: "subscribe", Channel: "oracle", Markets: f.markets}); err != nil {
		return false, fmt.Errorf("feed: subscribe: %w", err)
	}
	f.logger.Info("feed: oracle ws subscribed", slog.Int("markets", len(f.markets)))

	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	readErr := make(chan error, 1)
	go func() { readErr <- f.readLoop(ctx, conn) }()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return true, ctx.Err()
		case err := <-readErr:
			return true, err
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return true, fmt.Errorf("feed: ping: %w", err)
			}
		}
	}
}

func (f *OracleFeed) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("feed: read: %w: %v", domain.ErrWSDisconnect, err)
		}
		p, err := decodeOracle(data)
		if errors.Is(err, errIgnored) {
			continue
		}
		if err != nil {
			f.logger.Warn("feed: bad oracle message", slog.String("error", err.Error()))
			continue
		}
		f.handle(ctx, p)
	}
}

var errIgnored = errors.New("not an oracle update")

func decodeOracle(data []byte) (domain.OraclePrice, error) {
	var msg oracleMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return domain.OraclePrice{}, fmt.Errorf("decode: %w", err)
	}
	if msg.Type != "oracle" {
		return domain.OraclePrice{}, errIgnored
	}
	return msg.ToDomain()
}
