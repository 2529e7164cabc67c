package domain

import (
	"fmt"
	"time"
)

// Precision is the fixed-point scale shared by sizes, prices and notionals
// (1e6, mirroring the protocol's on-chain decimal convention).
const Precision int64 = 1_000_000

// Direction is the side of a perpetual order or position.
type Direction string

const (
	DirectionLong  Direction = "long"
	DirectionShort Direction = "short"
)

// Opposite returns the closing direction.
func (d Direction) Opposite() Direction {
	if d == DirectionLong {
		return DirectionShort
	}
	return DirectionLong
}

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionLong || d == DirectionShort
}

// OrderKind is the execution type of an order.
type OrderKind string

const (
	OrderKindMarket        OrderKind = "market"
	OrderKindLimit         OrderKind = "limit"
	OrderKindTriggerMarket OrderKind = "trigger_market"
	OrderKindTriggerLimit  OrderKind = "trigger_limit"
	OrderKindOracle        OrderKind = "oracle"
)

// NeedsPrice reports whether the kind carries a limit price.
func (k OrderKind) NeedsPrice() bool {
	return k == OrderKindLimit || k == OrderKindTriggerLimit
}

// NeedsTrigger reports whether the kind carries a trigger price and condition.
func (k OrderKind) NeedsTrigger() bool {
	return k == OrderKindTriggerMarket || k == OrderKindTriggerLimit
}

// Valid reports whether k is a known order kind.
func (k OrderKind) Valid() bool {
	switch k {
	case OrderKindMarket, OrderKindLimit, OrderKindTriggerMarket, OrderKindTriggerLimit, OrderKindOracle:
		return true
	}
	return false
}

// TriggerCondition is the price-crossing direction that arms a trigger order.
type TriggerCondition string

const (
	TriggerAbove TriggerCondition = "above"
	TriggerBelow TriggerCondition = "below"
)

// Distribution selects how a scale order spreads size across its legs.
type Distribution string

const (
	DistributionAscending  Distribution = "ascending"
	DistributionDescending Distribution = "descending"
	DistributionRandom     Distribution = "random"
	DistributionFlat       Distribution = "flat"
)

// Valid reports whether d is a known distribution policy.
func (d Distribution) Valid() bool {
	switch d {
	case DistributionAscending, DistributionDescending, DistributionRandom, DistributionFlat:
		return true
	}
	return false
}

// LegTag identifies the role of a generated order inside its set.
type LegTag string

const (
	LegTagPrimary    LegTag = "primary"
	LegTagTakeProfit LegTag = "take_profit"
	LegTagStopLoss   LegTag = "stop_loss"
)

// ScaleLegTag returns the tag of the i-th scale leg (zero based).
func ScaleLegTag(i int) LegTag {
	return LegTag(fmt.Sprintf("scale_leg_%d", i))
}

// OrderIntent is the user-level trading intent built once per submission.
// All amounts are fixed-point at Precision. Optional prices are nil when unset.
type OrderIntent struct {
	MarketIndex       int               `json:"market_index"`
	Direction         Direction         `json:"direction"`
	Kind              OrderKind         `json:"kind"`
	Size              int64             `json:"size"`
	Price             *int64            `json:"price,omitempty"`
	TriggerPrice      *int64            `json:"trigger_price,omitempty"`
	TriggerCondition  *TriggerCondition `json:"trigger_condition,omitempty"`
	OraclePriceOffset *int64            `json:"oracle_price_offset,omitempty"`
	ReduceOnly        bool              `json:"reduce_only"`
}

// ScaleOrderSpec extends a limit OrderIntent with a price band and a
// distribution policy. Intent.Size is the total size across all legs.
type ScaleOrderSpec struct {
	Intent       OrderIntent  `json:"intent"`
	MinPrice     int64        `json:"min_price"`
	MaxPrice     int64        `json:"max_price"`
	OrderCount   int          `json:"order_count"`
	Distribution Distribution `json:"distribution"`
}

// GeneratedOrder is one concrete order ready for submission.
type GeneratedOrder struct {
	MarketIndex       int               `json:"market_index"`
	Direction         Direction         `json:"direction"`
	Kind              OrderKind         `json:"kind"`
	Size              int64             `json:"size"`
	Price             *int64            `json:"price,omitempty"`
	TriggerPrice      *int64            `json:"trigger_price,omitempty"`
	TriggerCondition  *TriggerCondition `json:"trigger_condition,omitempty"`
	OraclePriceOffset *int64            `json:"oracle_price_offset,omitempty"`
	ReduceOnly        bool              `json:"reduce_only"`
	Tag               LegTag            `json:"tag"`
}

// PriceValue returns the limit price or zero when none is set.
func (o GeneratedOrder) PriceValue() int64 {
	if o.Price == nil {
		return 0
	}
	return *o.Price
}

// TriggerValue returns the trigger price or zero when none is set.
func (o GeneratedOrder) TriggerValue() int64 {
	if o.TriggerPrice == nil {
		return 0
	}
	return *o.TriggerPrice
}

// TPSLBundle is a primary order (or scale set) plus its dependent exits.
type TPSLBundle struct {
	Primary    []GeneratedOrder `json:"primary"`
	TakeProfit *GeneratedOrder  `json:"take_profit,omitempty"`
	StopLoss   *GeneratedOrder  `json:"stop_loss,omitempty"`
}

// Orders flattens the bundle into submission order: primary legs, then
// take-profit, then stop-loss.
func (b TPSLBundle) Orders() []GeneratedOrder {
	out := make([]GeneratedOrder, 0, len(b.Primary)+2)
	out = append(out, b.Primary...)
	if b.TakeProfit != nil {
		out = append(out, *b.TakeProfit)
	}
	if b.StopLoss != nil {
		out = append(out, *b.StopLoss)
	}
	return out
}

// OrderStatus tracks a submitted leg through its lifecycle.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusRejected  OrderStatus = "rejected"
	OrderStatusCancelled OrderStatus = "cancelled"
	OrderStatusFailed    OrderStatus = "failed"
)

// SetStatus tracks an order set as a single logical unit.
type SetStatus string

const (
	SetStatusPending   SetStatus = "pending"
	SetStatusSubmitted SetStatus = "submitted"
	SetStatusPartial   SetStatus = "partial"
	SetStatusFailed    SetStatus = "failed"
)

// SubmittedOrder is a GeneratedOrder after it has been handed to the venue.
type SubmittedOrder struct {
	ID      string         `json:"id"`
	SetID   string         `json:"set_id"`
	Seq     int            `json:"seq"`
	Order   GeneratedOrder `json:"order"`
	VenueID string         `json:"venue_id,omitempty"`
	Status  OrderStatus    `json:"status"`
	Message string         `json:"message,omitempty"`
	Updated time.Time      `json:"updated_at"`
}

// OrderSet is a persisted, atomically submitted list of generated orders.
type OrderSet struct {
	ID         string           `json:"id"`
	Wallet     string           `json:"wallet"`
	Subaccount int              `json:"subaccount"`
	Status     SetStatus        `json:"status"`
	Orders     []SubmittedOrder `json:"orders"`
	CreatedAt  time.Time        `json:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at"`
}

// OrderResult is the venue's answer for a single leg.
type OrderResult struct {
	Success bool        `json:"success"`
	VenueID string      `json:"venue_id,omitempty"`
	Status  OrderStatus `json:"status"`
	Message string      `json:"message,omitempty"`
}
