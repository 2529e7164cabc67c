package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/metrics"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{6, time.Minute},
		{40, time.Minute},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, backoff(tt.attempt), "attempt %d", tt.attempt)
	}
}

func TestDecodeOracle(t *testing.T) {
	p, err := decodeOracle([]byte(`{"type":"oracle","market_index":1,"price":"3120.5","ts":1700000000}`))
	require.NoError(t, err)
	assert.Equal(t, 1, p.MarketIndex)
	assert.Equal(t, int64(3_120_500_000), p.Price)

	_, err = decodeOracle([]byte(`{"type":"heartbeat"}`))
	assert.ErrorIs(t, err, errIgnored)

	_, err = decodeOracle([]byte(`{"type":"oracle","price":"abc"}`))
	assert.Error(t, err)

	_, err = decodeOracle([]byte(`not json`))
	assert.Error(t, err)
}

func TestOracleFeedDeliversPrices(t *testing.T) {
	upgrader := websocket.Upgrader{}
	var sub subscribeCommand
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		if err := conn.ReadJSON(&sub); err != nil {
			return
		}
		for _, msg := range []string{
			`{"type":"heartbeat"}`,
			`{"type":"oracle","market_index":0,"price":"97.25","ts":1700000000}`,
			`{"type":"oracle","market_index":1,"price":"bad","ts":1700000000}`,
			`{"type":"oracle","market_index":1,"price":"3000","ts":1700000001}`,
		} {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
				return
			}
		}
		// hold the connection until the client closes it
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var mu sync.Mutex
	var got []domain.OraclePrice
	handle := func(_ context.Context, p domain.OraclePrice) {
		mu.Lock()
		got = append(got, p)
		if len(got) == 2 {
			cancel()
		}
		mu.Unlock()
	}

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	err := NewOracleFeed(wsURL, []int{0, 1}, handle, discardLogger()).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 2)
	assert.Equal(t, int64(97_250_000), got[0].Price)
	assert.Equal(t, 1, got[1].MarketIndex)
	assert.Equal(t, "oracle", sub.Channel)
	assert.Equal(t, []int{0, 1}, sub.Markets)
}

func TestOracleFeedIdleWithoutMarkets(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := NewOracleFeed("ws://unused", nil, nil, discardLogger()).Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type memCache struct {
	prices map[int]domain.OraclePrice
	err    error
}

func (c *memCache) SetPrice(_ context.Context, p domain.OraclePrice) error {
	if c.err != nil {
		return c.err
	}
	c.prices[p.MarketIndex] = p
	return nil
}

func (c *memCache) GetPrice(_ context.Context, idx int) (domain.OraclePrice, error) {
	p, ok := c.prices[idx]
	if !ok {
		return domain.OraclePrice{}, domain.ErrNotFound
	}
	return p, nil
}

func (c *memCache) GetPrices(_ context.Context, idx []int) (map[int]domain.OraclePrice, error) {
	out := map[int]domain.OraclePrice{}
	for _, i := range idx {
		if p, ok := c.prices[i]; ok {
			out[i] = p
		}
	}
	return out, nil
}

type memBus struct {
	published map[string][][]byte
}

func (b *memBus) Publish(_ context.Context, ch string, payload []byte) error {
	b.published[ch] = append(b.published[ch], payload)
	return nil
}

func (b *memBus) Subscribe(context.Context, string) (<-chan []byte, error) { return nil, nil }

func (b *memBus) StreamAppend(context.Context, string, []byte) error { return nil }

func (b *memBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, nil
}

func TestPriceSinkFansOut(t *testing.T) {
	cache := &memCache{prices: map[int]domain.OraclePrice{}}
	bus := &memBus{published: map[string][][]byte{}}
	sink := NewPriceSink(cache, bus, metrics.New(), discardLogger())

	p := domain.OraclePrice{MarketIndex: 2, Price: 42_000_000, ObservedAt: time.Unix(1700000000, 0).UTC()}
	sink.Handle(context.Background(), p)

	assert.Equal(t, p, cache.prices[2])
	require.Len(t, bus.published[ChannelOracle], 1)
	var decoded domain.OraclePrice
	require.NoError(t, json.Unmarshal(bus.published[ChannelOracle][0], &decoded))
	assert.Equal(t, p.Price, decoded.Price)
}

func TestPriceSinkSurvivesCacheError(t *testing.T) {
	cache := &memCache{prices: map[int]domain.OraclePrice{}, err: errors.New("redis down")}
	sink := NewPriceSink(cache, nil, nil, discardLogger())
	assert.NotPanics(t, func() {
		sink.Handle(context.Background(), domain.OraclePrice{MarketIndex: 1, Price: 1})
	})
}
