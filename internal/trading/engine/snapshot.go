package engine

import (
	"fmt"

	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/Aidin1998/pincex_matching/internal/trading/orderbook"
	"github.com/shopspring/decimal"
)

// LevelSnapshot is a point-in-time copy of one price level.
type LevelSnapshot struct {
	Price  decimal.Decimal
	Volume decimal.Decimal
	Orders []model.Order
}

// Snapshot is a point-in-time copy of the book, best levels first.
type Snapshot struct {
	Clock model.Timestamp
	Bids  []LevelSnapshot
	Asks  []LevelSnapshot
}

// Snapshot copies up to depth levels per side; depth <= 0 copies all.
func (e *Engine) Snapshot(depth int) Snapshot {
	return Snapshot{
		Clock: e.clock,
		Bids:  snapshotSide(e.bids, depth),
		Asks:  snapshotSide(e.asks, depth),
	}
}

func snapshotSide(side *orderbook.BookSide, depth int) []LevelSnapshot {
	var levels []LevelSnapshot
	side.Levels(depth, func(level *orderbook.PriceLevel) bool {
		levels = append(levels, LevelSnapshot{
			Price:  level.Price(),
			Volume: level.Volume(),
			Orders: level.Orders(),
		})
		return true
	})
	return levels
}

// CheckInvariants verifies the book state between calls. A non-nil result
// means the engine has a bug.
func (e *Engine) CheckInvariants() error {
	bestBid, hasBid := e.bids.BestPrice()
	bestAsk, hasAsk := e.asks.BestPrice()
	if hasBid && hasAsk && bestBid.GreaterThanOrEqual(bestAsk) {
		return fmt.Errorf("crossed book: best bid %s >= best ask %s", bestBid, bestAsk)
	}
	for _, side := range []*orderbook.BookSide{e.bids, e.asks} {
		count := 0
		var err error
		side.Levels(0, func(level *orderbook.PriceLevel) bool {
			if level.IsEmpty() {
				err = fmt.Errorf("empty %s level at %s", side.Side(), level.Price())
				return false
			}
			sum := decimal.Zero
			var prev model.Timestamp
			for i, o := range level.Orders() {
				if !o.Quantity.IsPositive() {
					err = fmt.Errorf("order %s rests with quantity %s", o.ID, o.Quantity)
					return false
				}
				if !o.Price.Equal(level.Price()) {
					err = fmt.Errorf("order %s at %s queued in level %s", o.ID, o.Price, level.Price())
					return false
				}
				if i > 0 && o.Timestamp < prev {
					err = fmt.Errorf("level %s out of arrival order at %s", level.Price(), o.ID)
					return false
				}
				prev = o.Timestamp
				sum = sum.Add(o.Quantity)
				count++
			}
			if !sum.Equal(level.Volume()) {
				err = fmt.Errorf("level %s volume %s != order sum %s", level.Price(), level.Volume(), sum)
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		if count != side.Size() {
			return fmt.Errorf("%s side indexes %d orders but levels hold %d", side.Side(), side.Size(), count)
		}
	}
	return nil
}
