package engine

import (
	"math/rand"
	"testing"

	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type restingRef struct {
	side model.Side
	id   model.OrderID
}

// TestRandomFlowKeepsBookConsistent drives a seeded random order flow and
// checks the book after every call. Each trade removes its quantity from both
// the aggressor and the maker, so submitted quantity must equal twice the
// traded quantity plus whatever rests, was cancelled or was discarded.
func TestRandomFlowKeepsBookConsistent(t *testing.T) {
	for _, seed := range []int64{1, 7, 42, 2024} {
		rng := rand.New(rand.NewSource(seed))
		e := newTestEngine(t)

		submitted := decimal.Zero
		traded := decimal.Zero
		removed := decimal.Zero
		discarded := decimal.Zero
		restingPrice := map[restingRef]decimal.Decimal{}
		var refs []restingRef
		calls := 0

		randSide := func() model.Side {
			if rng.Intn(2) == 0 {
				return model.SideBuy
			}
			return model.SideSell
		}
		randQty := func() decimal.Decimal { return decimal.NewFromInt(int64(rng.Intn(20) + 1)) }
		randPrice := func() decimal.Decimal { return decimal.NewFromInt(int64(95 + rng.Intn(11))) }

		checkTrades := func(trades []model.Trade) {
			for _, tr := range trades {
				require.NotNil(t, tr.Maker.RestingID)
				ref := restingRef{tr.Maker.Side, *tr.Maker.RestingID}
				price, ok := restingPrice[ref]
				require.True(t, ok, "seed %d: maker %v not tracked", seed, ref)
				require.True(t, price.Equal(tr.Price), "seed %d: trade at %s, maker rested at %s", seed, tr.Price, price)
				require.True(t, tr.Quantity.IsPositive())
				require.NotEqual(t, tr.Maker.Side, tr.Taker.Side)
				traded = traded.Add(tr.Quantity)
			}
		}
		track := func(o *model.Order) {
			if o == nil {
				return
			}
			ref := restingRef{o.Side, o.ID}
			restingPrice[ref] = o.Price
			refs = append(refs, ref)
		}

		for step := 0; step < 600; step++ {
			switch op := rng.Intn(10); {
			case op < 6:
				qty := randQty()
				submitted = submitted.Add(qty)
				calls++
				res, err := e.Submit(model.NewLimitOrder(randSide(), qty, randPrice(), "p"), false)
				require.NoError(t, err)
				checkTrades(res.Trades)
				track(res.Resting)
			case op < 8:
				qty := randQty()
				submitted = submitted.Add(qty)
				calls++
				res, err := e.Submit(model.NewMarketOrder(randSide(), qty, "p"), false)
				require.NoError(t, err)
				checkTrades(res.Trades)
				discarded = discarded.Add(res.Unfilled)
			case op < 9 && len(refs) > 0:
				ref := refs[rng.Intn(len(refs))]
				if o, ok := e.Order(ref.side, ref.id); ok {
					removed = removed.Add(o.Quantity)
				}
				calls++
				require.NoError(t, e.Cancel(CancelRequest{Side: ref.side, ID: ref.id}, false))
			case len(refs) > 0:
				ref := refs[rng.Intn(len(refs))]
				req := ModifyRequest{ID: ref.id, Side: ref.side, Quantity: randQty()}
				if rng.Intn(2) == 0 {
					req.Price = decimal.NewNullDecimal(randPrice())
				}
				if rng.Intn(4) == 0 {
					req.NewSide = ref.side.Opposite()
				}
				o, ok := e.Order(ref.side, ref.id)
				res, err := e.Modify(req, false)
				require.NoError(t, err)
				calls++
				if ok {
					removed = removed.Add(o.Quantity)
					submitted = submitted.Add(req.Quantity)
					delete(restingPrice, ref)
				}
				checkTrades(res.Trades)
				track(res.Resting)
			}

			require.NoError(t, e.CheckInvariants(), "seed %d step %d", seed, step)
			resting := e.bids.Volume().Add(e.asks.Volume())
			require.True(t,
				submitted.Equal(traded.Add(traded).Add(resting).Add(removed).Add(discarded)),
				"seed %d step %d: submitted %s traded %s resting %s removed %s discarded %s",
				seed, step, submitted, traded, resting, removed, discarded)
		}
		require.Equal(t, model.Timestamp(calls), e.Clock())
	}
}
