// Package venue is the REST client for the perpetuals execution gateway. It
// places and cancels legs, reads subaccount snapshots and oracle prices, and
// asks the protocol risk engine for max trade sizes.
package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/perpdash/internal/crypto"
	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/executor"
	"github.com/alanyoungcy/perpdash/internal/fixedpoint"
)

// maxConcurrentFetches bounds parallel subaccount reads per wallet.
const maxConcurrentFetches = 4

// Client talks to the gateway over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	signer     *crypto.Signer
	hmacAuth   *crypto.HMACAuth
}

// NewClient creates a gateway client. signer signs order-set digests and may
// be nil for read-only use; hmac may be nil when the gateway is open.
func NewClient(baseURL string, timeout time.Duration, signer *crypto.Signer, hmac *crypto.HMACAuth) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		signer:     signer,
		hmacAuth:   hmac,
	}
}

// AuthorizeSet sends the signed digest of set. The gateway refuses legs of
// a set it has not authorized.
func (c *Client) AuthorizeSet(ctx context.Context, set domain.OrderSet) error {
	if c.signer == nil {
		return fmt.Errorf("venue: authorize set: no signer: %w", domain.ErrSigningFailed)
	}
	sig, err := c.signer.SignOrderSet(set)
	if err != nil {
		return fmt.Errorf("venue: authorize set: %w", err)
	}
	body := AuthorizeSetRequest{
		SetID:      set.ID,
		Authority:  set.Wallet,
		Subaccount: set.Subaccount,
		Legs:       len(set.Orders),
		Signature:  sig,
	}
	if _, err := c.do(ctx, http.MethodPost, "/v1/order-sets", nil, body); err != nil {
		return fmt.Errorf("venue: authorize set %s: %w", set.ID, err)
	}
	return nil
}

// PlaceOrder submits one leg. A gateway rejection is returned as a result
// with Success false and a nil error.
func (c *Client) PlaceOrder(ctx context.Context, wallet string, subaccount int, clientID string, o domain.GeneratedOrder) (domain.OrderResult, error) {
	body := PlaceOrderRequest{
		Authority:  wallet,
		Subaccount: subaccount,
		ClientID:   clientID,
		Order:      toAPIOrder(o),
	}
	resp, err := c.do(ctx, http.MethodPost, "/v1/orders", nil, body)
	if err != nil {
		return domain.OrderResult{}, fmt.Errorf("venue: place order: %w", err)
	}
	var res APIOrderResult
	if err := json.Unmarshal(resp, &res); err != nil {
		return domain.OrderResult{}, fmt.Errorf("venue: decode order result: %w", err)
	}
	return res.ToDomainOrderResult(), nil
}

// CancelOrder cancels one resting order.
func (c *Client) CancelOrder(ctx context.Context, wallet, venueID string) error {
	q := url.Values{"authority": {wallet}}
	resp, err := c.do(ctx, http.MethodDelete, "/v1/orders/"+url.PathEscape(venueID), q, nil)
	if err != nil {
		return fmt.Errorf("venue: cancel order %s: %w", venueID, err)
	}
	var res APIOrderResult
	if err := json.Unmarshal(resp, &res); err != nil {
		return fmt.Errorf("venue: decode cancel response: %w", err)
	}
	if !res.Success {
		return fmt.Errorf("venue: cancel order %s: %s", venueID, res.Error)
	}
	return nil
}

// Accounts lists the wallet's subaccounts and fetches each snapshot
// concurrently. Results are ordered by subaccount ID.
func (c *Client) Accounts(ctx context.Context, wallet string) ([]domain.RawAccount, error) {
	base := "/v1/users/" + url.PathEscape(wallet) + "/subaccounts"
	resp, err := c.do(ctx, http.MethodGet, base, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("venue: list subaccounts: %w", err)
	}
	var ids []int
	if err := json.Unmarshal(resp, &ids); err != nil {
		return nil, fmt.Errorf("venue: decode subaccount ids: %w", err)
	}

	out := make([]domain.RawAccount, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFetches)
	for i, id := range ids {
		g.Go(func() error {
			body, err := c.do(gctx, http.MethodGet, base+"/"+strconv.Itoa(id), nil, nil)
			if err != nil {
				return fmt.Errorf("subaccount %d: %w", id, err)
			}
			var api APISubaccount
			if err := json.Unmarshal(body, &api); err != nil {
				return fmt.Errorf("decode subaccount %d: %w", id, err)
			}
			acc, err := api.ToDomain()
			if err != nil {
				return err
			}
			out[i] = acc
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("venue: accounts: %w", err)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// OraclePrices returns the latest prices for markets. Unknown markets are
// absent from the result.
func (c *Client) OraclePrices(ctx context.Context, marketIndexes []int) (map[int]domain.OraclePrice, error) {
	out := make(map[int]domain.OraclePrice, len(marketIndexes))
	if len(marketIndexes) == 0 {
		return out, nil
	}
	markets := make([]string, len(marketIndexes))
	for i, m := range marketIndexes {
		markets[i] = strconv.Itoa(m)
	}
	resp, err := c.do(ctx, http.MethodGet, "/v1/oracle", url.Values{"markets": {strings.Join(markets, ",")}}, nil)
	if err != nil {
		return nil, fmt.Errorf("venue: oracle prices: %w", err)
	}
	var prices []APIOraclePrice
	if err := json.Unmarshal(resp, &prices); err != nil {
		return nil, fmt.Errorf("venue: decode oracle prices: %w", err)
	}
	for _, p := range prices {
		op, err := p.ToDomain()
		if err != nil {
			return nil, fmt.Errorf("venue: %w", err)
		}
		out[op.MarketIndex] = op
	}
	return out, nil
}

// MaxTradeSize returns the largest notional the wallet may open in market.
func (c *Client) MaxTradeSize(ctx context.Context, wallet string, marketIndex int, direction domain.Direction) (int64, error) {
	q := url.Values{
		"authority": {wallet},
		"market":    {strconv.Itoa(marketIndex)},
		"direction": {string(direction)},
	}
	resp, err := c.do(ctx, http.MethodGet, "/v1/max-trade-size", q, nil)
	if err != nil {
		return 0, fmt.Errorf("venue: max trade size: %w", err)
	}
	var res APIMaxTradeSize
	if err := json.Unmarshal(resp, &res); err != nil {
		return 0, fmt.Errorf("venue: decode max trade size: %w", err)
	}
	v, err := fixedpoint.Default().Parse(res.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("venue: max trade size %q: %w", res.MaxSize, err)
	}
	return v, nil
}

// do builds, authenticates, sends and reads a request and returns the body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	var payload []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		payload = b
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if c.hmacAuth != nil {
		var address string
		if c.signer != nil {
			address = c.signer.Address().Hex()
		}
		c.hmacAuth.Apply(req.Header, address, method, path, payload)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, respBody); err != nil {
		return nil, err
	}
	return respBody, nil
}

// checkHTTPStatus maps non-2xx status codes to domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	msg := strings.TrimSpace(string(body))
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}

var (
	_ domain.AccountSource = (*Client)(nil)
	_ domain.OracleSource  = (*Client)(nil)
	_ domain.MaxTradeSizer = (*Client)(nil)

	_ executor.Venue         = (*Client)(nil)
	_ executor.SetAuthorizer = (*Client)(nil)
)
