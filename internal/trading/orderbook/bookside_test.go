package orderbook

import (
	"testing"

	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func order(id model.OrderID, price, qty string, ts model.Timestamp) model.Order {
	return model.Order{ID: id, OwnerID: "o" + id.String(), Price: dec(price), Quantity: dec(qty), Timestamp: ts}
}

func ids(level *PriceLevel) []model.OrderID {
	var out []model.OrderID
	for _, o := range level.Orders() {
		out = append(out, o.ID)
	}
	return out
}

func TestBookSide_BestAndWorst(t *testing.T) {
	bids := NewBookSide(model.SideBuy)
	asks := NewBookSide(model.SideSell)

	_, ok := bids.BestPrice()
	assert.False(t, ok)
	assert.Nil(t, asks.BestQueue())

	for i, p := range []string{"99", "101", "97", "98"} {
		require.NoError(t, bids.Insert(order(model.OrderID(i+1), p, "5", model.Timestamp(i))))
		require.NoError(t, asks.Insert(order(model.OrderID(i+1), p, "5", model.Timestamp(i))))
	}

	best, ok := bids.BestPrice()
	require.True(t, ok)
	assert.True(t, best.Equal(dec("101")))
	worst, _ := bids.WorstPrice()
	assert.True(t, worst.Equal(dec("97")))

	best, _ = asks.BestPrice()
	assert.True(t, best.Equal(dec("97")))
	worst, _ = asks.WorstPrice()
	assert.True(t, worst.Equal(dec("101")))

	assert.Equal(t, 4, bids.Size())
	assert.Equal(t, 4, bids.Depth())
	assert.Equal(t, model.SideBuy, bids.Side())
}

func TestBookSide_FIFOAndVolume(t *testing.T) {
	bs := NewBookSide(model.SideSell)
	require.NoError(t, bs.Insert(order(1, "101", "5", 1)))
	require.NoError(t, bs.Insert(order(2, "101", "3", 2)))
	require.NoError(t, bs.Insert(order(3, "103", "5", 3)))

	assert.True(t, bs.PriceExists(dec("101")))
	assert.False(t, bs.PriceExists(dec("102")))
	assert.True(t, bs.VolumeAt(dec("101")).Equal(dec("8")))
	assert.True(t, bs.VolumeAt(dec("102")).IsZero())
	assert.True(t, bs.Volume().Equal(dec("13")))

	level := bs.BestQueue()
	require.NotNil(t, level)
	assert.Equal(t, []model.OrderID{1, 2}, ids(level))
	head, ok := level.Head()
	require.True(t, ok)
	assert.Equal(t, model.OrderID(1), head.ID)
	assert.Equal(t, model.SideSell, head.Side)
}

func TestBookSide_DuplicateAndInvalidInsert(t *testing.T) {
	bs := NewBookSide(model.SideBuy)
	require.NoError(t, bs.Insert(order(1, "100", "1", 1)))
	assert.Error(t, bs.Insert(order(1, "101", "1", 2)))
	assert.Error(t, bs.Insert(order(2, "101", "0", 2)))
	assert.Equal(t, 1, bs.Size())
}

func TestBookSide_RemoveDropsEmptyLevel(t *testing.T) {
	bs := NewBookSide(model.SideBuy)
	require.NoError(t, bs.Insert(order(1, "100", "1", 1)))
	require.NoError(t, bs.Insert(order(2, "100", "2", 2)))

	removed, ok := bs.RemoveByID(1)
	require.True(t, ok)
	assert.Equal(t, model.OrderID(1), removed.ID)
	assert.True(t, bs.PriceExists(dec("100")))
	assert.True(t, bs.VolumeAt(dec("100")).Equal(dec("2")))

	_, ok = bs.RemoveByID(1)
	assert.False(t, ok)

	bs.RemoveByID(2)
	assert.False(t, bs.PriceExists(dec("100")))
	assert.True(t, bs.IsEmpty())
	assert.Equal(t, 0, bs.Depth())
}

func TestBookSide_UpdateSamePriceKeepsPosition(t *testing.T) {
	bs := NewBookSide(model.SideBuy)
	require.NoError(t, bs.Insert(order(1, "99", "5", 1)))
	require.NoError(t, bs.Insert(order(2, "99", "5", 2)))

	assert.True(t, bs.Update(order(1, "99", "14", 9)))

	level := bs.BestQueue()
	assert.Equal(t, []model.OrderID{1, 2}, ids(level))
	assert.True(t, level.Volume().Equal(dec("19")))
	got, _ := bs.Get(1)
	assert.True(t, got.Quantity.Equal(dec("14")))
	assert.Equal(t, model.Timestamp(1), got.Timestamp)
}

func TestBookSide_UpdateNewPriceLosesPriority(t *testing.T) {
	bs := NewBookSide(model.SideBuy)
	require.NoError(t, bs.Insert(order(1, "99", "5", 1)))
	require.NoError(t, bs.Insert(order(2, "98", "5", 2)))
	require.NoError(t, bs.Insert(order(3, "99", "5", 3)))

	assert.True(t, bs.Update(order(1, "98", "5", 10)))

	assert.Equal(t, []model.OrderID{3}, ids(bs.BestQueue()))
	assert.Equal(t, []model.OrderID{2, 1}, ids(bs.WorstQueue()))
	got, _ := bs.Get(1)
	assert.Equal(t, model.Timestamp(10), got.Timestamp)

	// Moving back to an existing price still goes to the back of the queue.
	assert.True(t, bs.Update(order(2, "99", "5", 11)))
	assert.Equal(t, []model.OrderID{3, 2}, ids(bs.BestQueue()))
	assert.Equal(t, 2, bs.Depth())
}

func TestBookSide_UpdateMissingOrZero(t *testing.T) {
	bs := NewBookSide(model.SideSell)
	assert.False(t, bs.Update(order(7, "100", "1", 1)))

	require.NoError(t, bs.Insert(order(1, "100", "1", 1)))
	assert.True(t, bs.Update(order(1, "100", "0", 2)))
	assert.False(t, bs.Exists(1))
	assert.False(t, bs.PriceExists(dec("100")))
}

func TestBookSide_LevelsIteration(t *testing.T) {
	bids := NewBookSide(model.SideBuy)
	asks := NewBookSide(model.SideSell)
	for i, p := range []string{"99", "101", "97"} {
		require.NoError(t, bids.Insert(order(model.OrderID(i), p, "1", 0)))
		require.NoError(t, asks.Insert(order(model.OrderID(i), p, "1", 0)))
	}

	var bidPrices, askPrices []string
	bids.Levels(0, func(l *PriceLevel) bool { bidPrices = append(bidPrices, l.Price().String()); return true })
	asks.Levels(2, func(l *PriceLevel) bool { askPrices = append(askPrices, l.Price().String()); return true })

	assert.Equal(t, []string{"101", "99", "97"}, bidPrices)
	assert.Equal(t, []string{"97", "99"}, askPrices)
}
