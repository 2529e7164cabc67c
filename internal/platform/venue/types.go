package venue

import (
	"fmt"
	"time"

	"github.com/alanyoungcy/perpdash/internal/domain"
	"github.com/alanyoungcy/perpdash/internal/fixedpoint"
)

// The gateway exchanges amounts as decimal strings ("25.5"); they are
// converted to fixed-point at the client boundary.

// APIOrder is the wire form of a single leg.
type APIOrder struct {
	MarketIndex       int     `json:"market_index"`
	Direction         string  `json:"direction"`
	Kind              string  `json:"kind"`
	Size              string  `json:"size"`
	Price             *string `json:"price,omitempty"`
	TriggerPrice      *string `json:"trigger_price,omitempty"`
	TriggerCondition  *string `json:"trigger_condition,omitempty"`
	OraclePriceOffset *string `json:"oracle_price_offset,omitempty"`
	ReduceOnly        bool    `json:"reduce_only"`
}

// PlaceOrderRequest is the body of POST /v1/orders.
type PlaceOrderRequest struct {
	Authority  string   `json:"authority"`
	Subaccount int      `json:"subaccount"`
	ClientID   string   `json:"client_id"`
	Order      APIOrder `json:"order"`
}

// APIOrderResult is the gateway's answer to a placement.
type APIOrderResult struct {
	Success bool   `json:"success"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Error   string `json:"error_msg"`
}

// AuthorizeSetRequest is the body of POST /v1/order-sets.
type AuthorizeSetRequest struct {
	SetID      string `json:"set_id"`
	Authority  string `json:"authority"`
	Subaccount int    `json:"subaccount"`
	Legs       int    `json:"legs"`
	Signature  string `json:"signature"`
}

// APIPosition is one perp position of a subaccount.
type APIPosition struct {
	MarketIndex      int    `json:"market_index"`
	BaseAssetAmount  string `json:"base_asset_amount"`
	QuoteAssetAmount string `json:"quote_asset_amount"`
	QuoteEntryAmount string `json:"quote_entry_amount"`
	LPShares         string `json:"lp_shares"`
}

// APISubaccount is a subaccount snapshot.
type APISubaccount struct {
	ID             int           `json:"subaccount_id"`
	Name           string        `json:"name"`
	Authority      string        `json:"authority"`
	TotalDeposits  string        `json:"total_deposits"`
	TotalWithdraws string        `json:"total_withdraws"`
	SettledPerpPnl string        `json:"settled_perp_pnl"`
	Positions      []APIPosition `json:"perp_positions"`
}

// APIOraclePrice is one oracle reading.
type APIOraclePrice struct {
	MarketIndex int    `json:"market_index"`
	Price       string `json:"price"`
	Timestamp   int64  `json:"ts"`
}

// APIMaxTradeSize is the body of GET /v1/max-trade-size.
type APIMaxTradeSize struct {
	MaxSize string `json:"max_size"`
}

func toAPIOrder(o domain.GeneratedOrder) APIOrder {
	conv := fixedpoint.Default()
	format := func(v *int64) *string {
		if v == nil {
			return nil
		}
		s := conv.Format(*v)
		return &s
	}
	out := APIOrder{
		MarketIndex:       o.MarketIndex,
		Direction:         string(o.Direction),
		Kind:              string(o.Kind),
		Size:              conv.Format(o.Size),
		Price:             format(o.Price),
		TriggerPrice:      format(o.TriggerPrice),
		OraclePriceOffset: format(o.OraclePriceOffset),
		ReduceOnly:        o.ReduceOnly,
	}
	if o.TriggerCondition != nil {
		c := string(*o.TriggerCondition)
		out.TriggerCondition = &c
	}
	return out
}

// ToDomainOrderResult maps the gateway result onto a leg result.
func (r APIOrderResult) ToDomainOrderResult() domain.OrderResult {
	status := domain.OrderStatus(r.Status)
	switch status {
	case domain.OrderStatusAccepted, domain.OrderStatusRejected, domain.OrderStatusCancelled, domain.OrderStatusFailed:
	default:
		status = domain.OrderStatusRejected
		if r.Success {
			status = domain.OrderStatusAccepted
		}
	}
	return domain.OrderResult{
		Success: r.Success,
		VenueID: r.OrderID,
		Status:  status,
		Message: r.Error,
	}
}

// ToDomain converts a subaccount snapshot to fixed-point.
func (a APISubaccount) ToDomain() (domain.RawAccount, error) {
	p := amountParser{conv: fixedpoint.Default()}
	out := domain.RawAccount{
		ID:             a.ID,
		Name:           a.Name,
		Authority:      a.Authority,
		TotalDeposits:  p.parse("total_deposits", a.TotalDeposits),
		TotalWithdraws: p.parse("total_withdraws", a.TotalWithdraws),
		SettledPerpPnl: p.parse("settled_perp_pnl", a.SettledPerpPnl),
		Positions:      make([]domain.Position, 0, len(a.Positions)),
	}
	for _, pos := range a.Positions {
		out.Positions = append(out.Positions, domain.Position{
			MarketIndex:      pos.MarketIndex,
			BaseAssetAmount:  p.parse("base_asset_amount", pos.BaseAssetAmount),
			QuoteAssetAmount: p.parse("quote_asset_amount", pos.QuoteAssetAmount),
			QuoteEntryAmount: p.parse("quote_entry_amount", pos.QuoteEntryAmount),
			LPShares:         p.parse("lp_shares", pos.LPShares),
		})
	}
	if p.err != nil {
		return domain.RawAccount{}, fmt.Errorf("subaccount %d: %w", a.ID, p.err)
	}
	return out, nil
}

// ToDomain converts an oracle reading to fixed-point.
func (p APIOraclePrice) ToDomain() (domain.OraclePrice, error) {
	price, err := fixedpoint.Default().Parse(p.Price)
	if err != nil {
		return domain.OraclePrice{}, fmt.Errorf("oracle price market %d: %w", p.MarketIndex, err)
	}
	return domain.OraclePrice{
		MarketIndex: p.MarketIndex,
		Price:       price,
		ObservedAt:  time.Unix(p.Timestamp, 0).UTC(),
	}, nil
}

// amountParser keeps the first parse error so a struct converts in one pass.
// Empty strings are zero.
type amountParser struct {
	conv fixedpoint.Converter
	err  error
}

func (p *amountParser) parse(field, s string) int64 {
	if s == "" || p.err != nil {
		return 0
	}
	v, err := p.conv.Parse(s)
	if err != nil {
		p.err = fmt.Errorf("%s: %w", field, err)
		return 0
	}
	return v
}
