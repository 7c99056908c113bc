package engine

import (
	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/Aidin1998/pincex_matching/internal/trading/orderbook"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// match consumes the opposite side for an aggressor of the given quantity.
// A nil limit matches at any price (market order). It returns the trades in
// execution order and the quantity left over.
func (e *Engine) match(taker model.TradeLeg, qty decimal.Decimal, limit *decimal.Decimal, ts model.Timestamp) ([]model.Trade, decimal.Decimal) {
	opposite := e.book(taker.Side.Opposite())
	var trades []model.Trade
	for qty.IsPositive() {
		level := opposite.BestQueue()
		if level == nil {
			break
		}
		if limit != nil && !crossesPrice(taker.Side, *limit, level.Price()) {
			break
		}
		var filled []model.Trade
		qty, filled = e.consumeLevel(opposite, level, qty, taker, ts)
		trades = append(trades, filled...)
	}
	return trades, qty
}

// consumeLevel fills toTrade against one level, oldest order first.
//
// A head larger than the remainder is reduced in place and keeps its queue
// position and id. A head that is matched exactly or exceeded is removed, and
// the remainder moves on to the next head. The level vanishes from the side
// once its last order is removed.
func (e *Engine) consumeLevel(side *orderbook.BookSide, level *orderbook.PriceLevel, toTrade decimal.Decimal, taker model.TradeLeg, ts model.Timestamp) (decimal.Decimal, []model.Trade) {
	var trades []model.Trade
	for toTrade.IsPositive() {
		head, ok := level.Head()
		if !ok {
			break
		}
		var traded decimal.Decimal
		switch toTrade.Cmp(head.Quantity) {
		case -1:
			traded = toTrade
			reduced := head
			reduced.Quantity = head.Quantity.Sub(toTrade)
			side.Update(reduced)
			toTrade = decimal.Zero
		case 0:
			traded = toTrade
			side.RemoveByID(head.ID)
			toTrade = decimal.Zero
		default:
			traded = head.Quantity
			side.RemoveByID(head.ID)
			toTrade = toTrade.Sub(traded)
		}
		trades = append(trades, e.record(head, traded, taker, ts))
	}
	return toTrade, trades
}

// record appends a trade at the resting order's price to the tape.
func (e *Engine) record(maker model.Order, qty decimal.Decimal, taker model.TradeLeg, ts model.Timestamp) model.Trade {
	makerID := maker.ID
	trade := model.Trade{
		ID:        uuid.New(),
		Timestamp: ts,
		Price:     maker.Price,
		Quantity:  qty,
		Maker: model.TradeLeg{
			OwnerID:   maker.OwnerID,
			Side:      maker.Side,
			RestingID: &makerID,
		},
		Taker: taker,
	}
	e.tape.Append(trade)
	e.logger.Debug("trade",
		zap.Int64("ts", int64(ts)),
		zap.Stringer("price", trade.Price),
		zap.Stringer("quantity", qty),
		zap.String("maker", maker.OwnerID),
		zap.Stringer("maker_id", makerID),
		zap.String("taker", taker.OwnerID))
	return trade
}

// crosses reports whether a limit at price on side would trade immediately.
func (e *Engine) crosses(side model.Side, price decimal.Decimal) bool {
	best, ok := e.book(side.Opposite()).BestPrice()
	return ok && crossesPrice(side, price, best)
}

// crossingVolume sums the opposite volume a limit at price on side could take.
func (e *Engine) crossingVolume(side model.Side, price decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	e.book(side.Opposite()).Levels(0, func(level *orderbook.PriceLevel) bool {
		if !crossesPrice(side, price, level.Price()) {
			return false
		}
		total = total.Add(level.Volume())
		return true
	})
	return total
}

func crossesPrice(side model.Side, limit, opposite decimal.Decimal) bool {
	if side == model.SideBuy {
		return opposite.LessThanOrEqual(limit)
	}
	return opposite.GreaterThanOrEqual(limit)
}
