package orderbook

import (
	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/shopspring/decimal"
)

// orderNode links a resting order into its level's FIFO queue.
type orderNode struct {
	order      model.Order
	level      *PriceLevel
	prev, next *orderNode
}

// PriceLevel holds all resting orders at one price, oldest first.
type PriceLevel struct {
	price      decimal.Decimal
	head, tail *orderNode
	count      int
	volume     decimal.Decimal
}

func newPriceLevel(price decimal.Decimal) *PriceLevel {
	return &PriceLevel{price: price}
}

// Price returns the level price.
func (pl *PriceLevel) Price() decimal.Decimal { return pl.price }

// Len returns the number of orders queued at this level.
func (pl *PriceLevel) Len() int { return pl.count }

// Volume returns the summed remaining quantity of the level.
func (pl *PriceLevel) Volume() decimal.Decimal { return pl.volume }

// IsEmpty reports whether the level has no orders left.
func (pl *PriceLevel) IsEmpty() bool { return pl.head == nil }

// Head returns a copy of the oldest order at this level.
func (pl *PriceLevel) Head() (model.Order, bool) {
	if pl.head == nil {
		return model.Order{}, false
	}
	return pl.head.order, true
}

// Orders returns copies of the queued orders in priority order.
func (pl *PriceLevel) Orders() []model.Order {
	orders := make([]model.Order, 0, pl.count)
	for n := pl.head; n != nil; n = n.next {
		orders = append(orders, n.order)
	}
	return orders
}

func (pl *PriceLevel) append(n *orderNode) {
	n.level = pl
	n.prev = pl.tail
	n.next = nil
	if pl.tail != nil {
		pl.tail.next = n
	} else {
		pl.head = n
	}
	pl.tail = n
	pl.count++
	pl.volume = pl.volume.Add(n.order.Quantity)
}

func (pl *PriceLevel) unlink(n *orderNode) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		pl.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		pl.tail = n.prev
	}
	pl.count--
	pl.volume = pl.volume.Sub(n.order.Quantity)
	n.prev, n.next, n.level = nil, nil, nil
}

// resize changes a node's quantity without touching its queue position.
func (pl *PriceLevel) resize(n *orderNode, qty decimal.Decimal) {
	pl.volume = pl.volume.Sub(n.order.Quantity).Add(qty)
	n.order.Quantity = qty
}
