package model

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Side is the side of the book an order belongs to.
type Side string

// OrderType is the kind of an incoming order.
type OrderType string

// Constants for order types and sides
const (
	// Order types
	OrderTypeMarket OrderType = "market"
	OrderTypeLimit  OrderType = "limit"

	// Order sides
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is buy or sell.
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Opposite returns the other side of the book.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// Valid reports whether t is market or limit.
func (t OrderType) Valid() bool {
	return t == OrderTypeMarket || t == OrderTypeLimit
}

// OrderID identifies a resting order within one side of the book.
type OrderID uint64

func (id OrderID) String() string { return strconv.FormatUint(uint64(id), 10) }

// Timestamp is a logical clock value. Only its ordering carries meaning.
type Timestamp int64

// Order is a resting order. The book owns every Order value; callers only
// ever receive copies.
type Order struct {
	ID        OrderID         `json:"id"`
	OwnerID   string          `json:"owner_id"`
	Side      Side            `json:"side"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Timestamp Timestamp       `json:"timestamp"` // logical arrival time, FIFO tie-break
}

// OrderDescriptor is the intake form of an order.
//
// RestingID and Timestamp are only read in replay mode. In live mode the
// engine stamps Timestamp with the advanced clock value and, if the order
// comes to rest, RestingID with the assigned id.
type OrderDescriptor struct {
	Type      OrderType           `json:"type"`
	Side      Side                `json:"side"`
	Quantity  decimal.Decimal     `json:"quantity"`
	Price     decimal.NullDecimal `json:"price"`
	OwnerID   string              `json:"owner_id"`
	RestingID OrderID             `json:"resting_id,omitempty"`
	Timestamp Timestamp           `json:"timestamp,omitempty"`
}

// NewLimitOrder builds a limit descriptor. It is a convenience for callers
// and tests; the engine does not require it.
func NewLimitOrder(side Side, qty, price decimal.Decimal, owner string) *OrderDescriptor {
	return &OrderDescriptor{
		Type:     OrderTypeLimit,
		Side:     side,
		Quantity: qty,
		Price:    decimal.NewNullDecimal(price),
		OwnerID:  owner,
	}
}

// NewMarketOrder builds a market descriptor.
func NewMarketOrder(side Side, qty decimal.Decimal, owner string) *OrderDescriptor {
	return &OrderDescriptor{
		Type:     OrderTypeMarket,
		Side:     side,
		Quantity: qty,
		OwnerID:  owner,
	}
}

// TradeLeg is one counterparty of a trade. RestingID is nil for the
// aggressor since it was never booked.
type TradeLeg struct {
	OwnerID   string   `json:"owner_id"`
	Side      Side     `json:"side"`
	RestingID *OrderID `json:"resting_id,omitempty"`
}

// Trade is an immutable execution record.
type Trade struct {
	ID        uuid.UUID       `json:"id"`
	Timestamp Timestamp       `json:"timestamp"`
	Price     decimal.Decimal `json:"price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Maker     TradeLeg        `json:"maker"` // resting leg, its price is the trade price
	Taker     TradeLeg        `json:"taker"`
}
