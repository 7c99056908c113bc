// =============================
// Matching Engine
// =============================
// This file implements the single-instrument continuous double auction.
//
// How it works:
// - Every public call is one indivisible unit of work against the book.
// - The engine advances a logical clock per call (or adopts the supplied
//   timestamp in replay mode) and stamps it on trades and resting orders.
// - Incoming orders consume the best opposite level oldest-first until they
//   are exhausted, the opposite side is empty, or the limit no longer crosses.
//
// The engine holds no locks. Callers that share one instance across
// goroutines must serialize access (see the service package).

package engine

import (
	"fmt"
	"io"

	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/Aidin1998/pincex_matching/internal/trading/orderbook"
	"github.com/Aidin1998/pincex_matching/internal/trading/tape"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Config holds engine settings.
type Config struct {
	TickSize model.TickSize
}

// Engine is the order book and matching state machine for one instrument.
type Engine struct {
	bids   *orderbook.BookSide
	asks   *orderbook.BookSide
	tape   *tape.Tape
	tick   model.TickSize
	clock  model.Timestamp
	lastID model.OrderID
	logger *zap.Logger
}

// Result is what a mutating call produced.
type Result struct {
	Trades []model.Trade
	// Resting is the order left in the book, nil if nothing rests.
	Resting *model.Order
	// Unfilled is market order quantity discarded for lack of liquidity.
	Unfilled decimal.Decimal
}

// CancelRequest names a resting order to remove. Timestamp is only read in
// replay mode.
type CancelRequest struct {
	Side      model.Side      `json:"side"`
	ID        model.OrderID   `json:"id"`
	Timestamp model.Timestamp `json:"timestamp,omitempty"`
}

// ModifyRequest amends a resting order found on Side.
//
// An invalid Price keeps the current price. A non-empty NewSide moves the
// order to that side of the book. Timestamp is only read in replay mode.
type ModifyRequest struct {
	ID        model.OrderID       `json:"id"`
	Side      model.Side          `json:"side"`
	NewSide   model.Side          `json:"new_side,omitempty"`
	Quantity  decimal.Decimal     `json:"quantity"`
	Price     decimal.NullDecimal `json:"price"`
	Timestamp model.Timestamp     `json:"timestamp,omitempty"`
}

// New creates an empty engine.
func New(cfg Config, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		bids:   orderbook.NewBookSide(model.SideBuy),
		asks:   orderbook.NewBookSide(model.SideSell),
		tape:   tape.New(),
		tick:   cfg.TickSize,
		logger: logger,
	}
}

// Submit validates and processes an incoming order.
//
// In live mode the clock advances by one and the new value is written to
// d.Timestamp; if quantity comes to rest, the assigned id is written to
// d.RestingID. In replay mode d.Timestamp and d.RestingID are used as given.
// Limit prices are normalized to the tick grid and written back to d.Price.
func (e *Engine) Submit(d *model.OrderDescriptor, replay bool) (*Result, error) {
	if err := e.validate(d, replay); err != nil {
		return nil, err
	}
	ts := e.advance(d.Timestamp, replay)
	d.Timestamp = ts

	id := d.RestingID
	if replay {
		if id > e.lastID {
			e.lastID = id
		}
	} else {
		e.lastID++
		id = e.lastID
	}

	taker := model.TradeLeg{OwnerID: d.OwnerID, Side: d.Side}
	if d.Type == model.OrderTypeMarket {
		trades, left := e.match(taker, d.Quantity, nil, ts)
		if left.IsPositive() {
			e.logger.Debug("market order remainder discarded",
				zap.String("owner", d.OwnerID),
				zap.String("side", string(d.Side)),
				zap.Stringer("unfilled", left))
		}
		return &Result{Trades: trades, Unfilled: left}, nil
	}

	price := e.tick.Normalize(d.Price.Decimal)
	d.Price = decimal.NewNullDecimal(price)
	trades, left := e.match(taker, d.Quantity, &price, ts)
	res := &Result{Trades: trades, Unfilled: decimal.Zero}
	if left.IsPositive() {
		order := model.Order{
			ID:        id,
			OwnerID:   d.OwnerID,
			Side:      d.Side,
			Price:     price,
			Quantity:  left,
			Timestamp: ts,
		}
		if err := e.book(d.Side).Insert(order); err != nil {
			// validate rejects replay ids that would rest twice, so this is a broken invariant.
			panic(fmt.Sprintf("engine: resting insert failed: %v", err))
		}
		if !replay {
			d.RestingID = id
		}
		res.Resting = &order
	}
	return res, nil
}

// Cancel removes a resting order in full. Unknown ids are a silent no-op.
func (e *Engine) Cancel(req CancelRequest, replay bool) error {
	if !req.Side.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSide, req.Side)
	}
	e.advance(req.Timestamp, replay)
	if removed, ok := e.book(req.Side).RemoveByID(req.ID); ok {
		e.logger.Debug("order cancelled",
			zap.Stringer("id", removed.ID),
			zap.String("side", string(removed.Side)),
			zap.Stringer("quantity", removed.Quantity))
	}
	return nil
}

// Modify amends a resting order. Unknown ids are a silent no-op.
//
// Keeping price and side changes the quantity in place and the order keeps
// its time priority. Any price or side change removes the order and enters
// it again as the newest arrival, still under its resting id. If the new
// placement crosses the opposite side it trades first, so the result can
// carry trades.
func (e *Engine) Modify(req ModifyRequest, replay bool) (*Result, error) {
	if !req.Side.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSide, req.Side)
	}
	target := req.Side
	if req.NewSide != "" {
		if !req.NewSide.Valid() {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSide, req.NewSide)
		}
		target = req.NewSide
	}
	if !req.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidOrder, req.Quantity)
	}
	source := e.book(req.Side)
	if target != req.Side && source.Exists(req.ID) && e.book(target).Exists(req.ID) {
		return nil, fmt.Errorf("%w: resting id %s already used on the %s side", ErrInvalidOrder, req.ID, target)
	}

	ts := e.advance(req.Timestamp, replay)
	current, ok := source.Get(req.ID)
	if !ok {
		return &Result{Unfilled: decimal.Zero}, nil
	}
	price := current.Price
	if req.Price.Valid {
		price = e.tick.Normalize(req.Price.Decimal)
	}

	if target == req.Side && price.Equal(current.Price) {
		current.Quantity = req.Quantity
		source.Update(current)
		return &Result{Resting: &current, Unfilled: decimal.Zero}, nil
	}

	moved := model.Order{
		ID:        current.ID,
		OwnerID:   current.OwnerID,
		Side:      target,
		Price:     price,
		Quantity:  req.Quantity,
		Timestamp: ts,
	}
	if target == req.Side && !e.crosses(target, price) {
		source.Update(moved)
		return &Result{Resting: &moved, Unfilled: decimal.Zero}, nil
	}

	source.RemoveByID(current.ID)
	id := current.ID
	taker := model.TradeLeg{OwnerID: current.OwnerID, Side: target, RestingID: &id}
	trades, left := e.match(taker, req.Quantity, &price, ts)
	res := &Result{Trades: trades, Unfilled: decimal.Zero}
	if left.IsPositive() {
		moved.Quantity = left
		if err := e.book(target).Insert(moved); err != nil {
			panic(fmt.Sprintf("engine: relocating order %s failed: %v", id, err))
		}
		res.Resting = &moved
	}
	return res, nil
}

// BestPrice returns the highest bid or the lowest ask.
func (e *Engine) BestPrice(side model.Side) (decimal.Decimal, bool) {
	if !side.Valid() {
		return decimal.Zero, false
	}
	return e.book(side).BestPrice()
}

// WorstPrice returns the lowest bid or the highest ask.
func (e *Engine) WorstPrice(side model.Side) (decimal.Decimal, bool) {
	if !side.Valid() {
		return decimal.Zero, false
	}
	return e.book(side).WorstPrice()
}

// VolumeAtPrice returns the resting quantity at the normalized price.
func (e *Engine) VolumeAtPrice(side model.Side, price decimal.Decimal) decimal.Decimal {
	if !side.Valid() {
		return decimal.Zero
	}
	return e.book(side).VolumeAt(e.tick.Normalize(price))
}

// Order returns a copy of a resting order.
func (e *Engine) Order(side model.Side, id model.OrderID) (model.Order, bool) {
	if !side.Valid() {
		return model.Order{}, false
	}
	return e.book(side).Get(id)
}

// ExportTape writes the tape to w, clearing it afterwards if wipe is set.
func (e *Engine) ExportTape(w io.Writer, wipe bool) error {
	return e.tape.Export(w, wipe)
}

// ExportTapeFile writes the tape to a file.
func (e *Engine) ExportTapeFile(path string, appendMode, wipe bool) error {
	return e.tape.ExportFile(path, appendMode, wipe)
}

// Tape returns a copy of all trades, oldest first.
func (e *Engine) Tape() []model.Trade { return e.tape.Trades() }

// RecentTrades returns up to n trades, newest first.
func (e *Engine) RecentTrades(n int) []model.Trade { return e.tape.Recent(n) }

// Clock returns the current logical time.
func (e *Engine) Clock() model.Timestamp { return e.clock }

// LastOrderID returns the most recently issued or replayed resting id.
func (e *Engine) LastOrderID() model.OrderID { return e.lastID }

// TickSize returns the price grid.
func (e *Engine) TickSize() model.TickSize { return e.tick }

// RestingCount returns the number of resting orders on a side.
func (e *Engine) RestingCount(side model.Side) int {
	if !side.Valid() {
		return 0
	}
	return e.book(side).Size()
}

func (e *Engine) validate(d *model.OrderDescriptor, replay bool) error {
	if d == nil {
		return fmt.Errorf("%w: nil descriptor", ErrInvalidOrder)
	}
	if !d.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be positive, got %s", ErrInvalidOrder, d.Quantity)
	}
	if !d.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownOrderType, d.Type)
	}
	if !d.Side.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSide, d.Side)
	}
	if d.Type == model.OrderTypeLimit {
		if !d.Price.Valid {
			return fmt.Errorf("%w: limit order without price", ErrInvalidOrder)
		}
		// A replayed id may repeat one already resting only when the order
		// fills completely and never rests.
		if replay && e.book(d.Side).Exists(d.RestingID) &&
			e.crossingVolume(d.Side, e.tick.Normalize(d.Price.Decimal)).LessThan(d.Quantity) {
			return fmt.Errorf("%w: resting id %s already used on the %s side", ErrInvalidOrder, d.RestingID, d.Side)
		}
	}
	return nil
}

// advance moves the logical clock: verbatim in replay mode, one tick live.
func (e *Engine) advance(at model.Timestamp, replay bool) model.Timestamp {
	if replay {
		e.clock = at
	} else {
		e.clock++
	}
	return e.clock
}

func (e *Engine) book(side model.Side) *orderbook.BookSide {
	if side == model.SideBuy {
		return e.bids
	}
	return e.asks
}
