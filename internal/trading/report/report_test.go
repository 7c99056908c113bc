package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/Aidin1998/pincex_matching/internal/trading/engine"
	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func buildEngine(t *testing.T) *engine.Engine {
	e := engine.New(engine.Config{TickSize: model.DefaultTickSize}, zaptest.NewLogger(t))
	submit := func(desc *model.OrderDescriptor) {
		_, err := e.Submit(desc, false)
		require.NoError(t, err)
	}
	num := decimal.RequireFromString
	submit(model.NewLimitOrder(model.SideBuy, num("5"), num("99"), "a"))
	submit(model.NewLimitOrder(model.SideBuy, num("2"), num("98.5"), "b"))
	submit(model.NewLimitOrder(model.SideSell, num("4"), num("101"), "c"))
	submit(model.NewLimitOrder(model.SideSell, num("1"), num("101"), "d"))
	submit(model.NewMarketOrder(model.SideSell, num("1"), "e"))
	return e
}

func TestWriteText(t *testing.T) {
	e := buildEngine(t)
	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, e.Snapshot(0), e.RecentTrades(DefaultRecentTrades)))

	want := strings.Join([]string{
		"------ buys -------",
		"4 @ 99 t=1 id=1 owner=a",
		"2 @ 98.5 t=2 id=2 owner=b",
		"",
		"------ sells -------",
		"4 @ 101 t=3 id=3 owner=c",
		"1 @ 101 t=4 id=4 owner=d",
		"",
		"------ Trades ------",
		"1 @ 99 (5)",
		"",
		"",
	}, "\n")
	assert.Equal(t, want, buf.String())
}

func TestWriteYAML_RoundTrip(t *testing.T) {
	e := buildEngine(t)
	var buf bytes.Buffer
	require.NoError(t, WriteYAML(&buf, "BTC-USD", e.Snapshot(0)))
	assert.Contains(t, buf.String(), "instrument: BTC-USD")

	depth, err := ReadYAML(&buf)
	require.NoError(t, err)
	assert.Equal(t, "BTC-USD", depth.Instrument)
	assert.Equal(t, int64(5), depth.Clock)
	assert.Equal(t, "99", depth.BestBid)
	assert.Equal(t, "101", depth.BestAsk)
	assert.Equal(t, "2", depth.Spread)
	assert.Equal(t, []DepthLevel{{Price: "99", Volume: "4", Orders: 1}, {Price: "98.5", Volume: "2", Orders: 1}}, depth.Bids)
	assert.Equal(t, []DepthLevel{{Price: "101", Volume: "5", Orders: 2}}, depth.Asks)
}

func TestNewDepth_EmptyBook(t *testing.T) {
	depth := NewDepth("X", engine.Snapshot{})
	assert.Empty(t, depth.BestBid)
	assert.Empty(t, depth.Spread)
	assert.NotNil(t, depth.Bids)
	assert.Empty(t, depth.Asks)
}
