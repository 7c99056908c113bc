// Price-indexed collection of resting orders for one side of the book.
//
// How it works:
// - Levels live in a B-tree ordered by price; each level is a FIFO queue.
// - The side owns every order record through its id index. Levels only link
//   the records, so an order can never sit in two places at once.
// - A level is dropped from the tree the moment its queue becomes empty.

package orderbook

import (
	"fmt"

	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/shopspring/decimal"
	"github.com/tidwall/btree"
)

// BookSide is the bid or ask half of an order book.
type BookSide struct {
	side   model.Side
	levels *btree.BTreeG[*PriceLevel]
	orders map[model.OrderID]*orderNode
}

// NewBookSide creates an empty side. Best price is the maximum for the buy
// side and the minimum for the sell side.
func NewBookSide(side model.Side) *BookSide {
	less := func(a, b *PriceLevel) bool { return a.price.LessThan(b.price) }
	return &BookSide{
		side:   side,
		levels: btree.NewBTreeGOptions(less, btree.Options{NoLocks: true}),
		orders: make(map[model.OrderID]*orderNode),
	}
}

// Side returns which side of the book this is.
func (bs *BookSide) Side() model.Side { return bs.side }

// Insert places an order at the back of its price level's queue.
func (bs *BookSide) Insert(order model.Order) error {
	if _, exists := bs.orders[order.ID]; exists {
		return fmt.Errorf("order %s already rests on the %s side", order.ID, bs.side)
	}
	if !order.Quantity.IsPositive() {
		return fmt.Errorf("order %s has non-positive quantity %s", order.ID, order.Quantity)
	}
	order.Side = bs.side
	level := bs.level(order.Price)
	if level == nil {
		level = newPriceLevel(order.Price)
		bs.levels.Set(level)
	}
	n := &orderNode{order: order}
	level.append(n)
	bs.orders[order.ID] = n
	return nil
}

// RemoveByID removes the order wherever it rests. Absent ids are ignored.
func (bs *BookSide) RemoveByID(id model.OrderID) (model.Order, bool) {
	n, ok := bs.orders[id]
	if !ok {
		return model.Order{}, false
	}
	bs.detach(n)
	delete(bs.orders, id)
	return n.order, true
}

// Exists reports whether an order with this id rests on the side.
func (bs *BookSide) Exists(id model.OrderID) bool {
	_, ok := bs.orders[id]
	return ok
}

// Get returns a copy of the resting order.
func (bs *BookSide) Get(id model.OrderID) (model.Order, bool) {
	n, ok := bs.orders[id]
	if !ok {
		return model.Order{}, false
	}
	return n.order, true
}

// Update amends a resting order.
//
// Same price: the quantity changes in place and the order keeps its queue
// position. Different price: the order moves to the back of the new level
// and takes the supplied timestamp as its arrival time. A non-positive
// quantity removes the order. Absent ids are ignored.
func (bs *BookSide) Update(order model.Order) bool {
	n, ok := bs.orders[order.ID]
	if !ok {
		return false
	}
	if !order.Quantity.IsPositive() {
		bs.RemoveByID(order.ID)
		return true
	}
	if n.order.Price.Equal(order.Price) {
		n.level.resize(n, order.Quantity)
		return true
	}
	bs.detach(n)
	n.order.Price = order.Price
	n.order.Quantity = order.Quantity
	n.order.Timestamp = order.Timestamp
	level := bs.level(order.Price)
	if level == nil {
		level = newPriceLevel(order.Price)
		bs.levels.Set(level)
	}
	level.append(n)
	return true
}

// PriceExists reports whether a level exists at price.
func (bs *BookSide) PriceExists(price decimal.Decimal) bool {
	return bs.level(price) != nil
}

// VolumeAt returns the resting quantity at price, zero if there is no level.
func (bs *BookSide) VolumeAt(price decimal.Decimal) decimal.Decimal {
	if level := bs.level(price); level != nil {
		return level.volume
	}
	return decimal.Zero
}

// BestPrice returns the highest bid or lowest ask.
func (bs *BookSide) BestPrice() (decimal.Decimal, bool) {
	if level := bs.BestQueue(); level != nil {
		return level.price, true
	}
	return decimal.Zero, false
}

// WorstPrice returns the opposite extreme of BestPrice on the same side.
func (bs *BookSide) WorstPrice() (decimal.Decimal, bool) {
	if level := bs.WorstQueue(); level != nil {
		return level.price, true
	}
	return decimal.Zero, false
}

// BestQueue returns the level at the best price, nil when the side is empty.
func (bs *BookSide) BestQueue() *PriceLevel {
	var level *PriceLevel
	if bs.side == model.SideBuy {
		level, _ = bs.levels.Max()
	} else {
		level, _ = bs.levels.Min()
	}
	return level
}

// WorstQueue returns the level at the worst price, nil when the side is empty.
func (bs *BookSide) WorstQueue() *PriceLevel {
	var level *PriceLevel
	if bs.side == model.SideBuy {
		level, _ = bs.levels.Min()
	} else {
		level, _ = bs.levels.Max()
	}
	return level
}

// IsEmpty reports whether no orders rest on the side.
func (bs *BookSide) IsEmpty() bool { return len(bs.orders) == 0 }

// Size returns the number of resting orders.
func (bs *BookSide) Size() int { return len(bs.orders) }

// Depth returns the number of price levels.
func (bs *BookSide) Depth() int { return bs.levels.Len() }

// Levels visits up to n levels from best to worst; n <= 0 visits all.
func (bs *BookSide) Levels(n int, visit func(*PriceLevel) bool) {
	seen := 0
	iter := func(level *PriceLevel) bool {
		if !visit(level) {
			return false
		}
		seen++
		return n <= 0 || seen < n
	}
	if bs.side == model.SideBuy {
		bs.levels.Reverse(iter)
	} else {
		bs.levels.Scan(iter)
	}
}

// Volume returns the total resting quantity on the side.
func (bs *BookSide) Volume() decimal.Decimal {
	total := decimal.Zero
	bs.levels.Scan(func(level *PriceLevel) bool {
		total = total.Add(level.volume)
		return true
	})
	return total
}

func (bs *BookSide) level(price decimal.Decimal) *PriceLevel {
	level, ok := bs.levels.Get(&PriceLevel{price: price})
	if !ok {
		return nil
	}
	return level
}

func (bs *BookSide) detach(n *orderNode) {
	level := n.level
	level.unlink(n)
	if level.IsEmpty() {
		bs.levels.Delete(level)
	}
}
