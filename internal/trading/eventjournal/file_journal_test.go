package eventjournal

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Aidin1998/pincex_matching/internal/trading/engine"
	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func collect(events *[]*Event) Handler {
	return func(e *Event) (bool, error) {
		*events = append(*events, e)
		return true, nil
	}
}

func TestFileJournal_AppendAndReplay(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "journal", "events.jsonl")
	j, err := NewFileJournal(path, zaptest.NewLogger(t))
	require.NoError(t, err)

	order := *model.NewLimitOrder(model.SideBuy, decimal.NewFromInt(5), decimal.RequireFromString("101.25"), "alice")
	order.Timestamp = 1
	order.RestingID = 1
	require.NoError(t, j.Append(ctx, SubmitEvent("BTC-USD", order)))
	require.NoError(t, j.Append(ctx, ModifyEvent("BTC-USD", engine.ModifyRequest{
		ID: 1, Side: model.SideBuy, Quantity: decimal.NewFromInt(3),
	}, 2)))
	require.NoError(t, j.Append(ctx, CancelEvent("BTC-USD", engine.CancelRequest{Side: model.SideBuy, ID: 1}, 3)))
	require.NoError(t, j.Close())
	require.NoError(t, j.Close())

	var events []*Event
	stats, err := ReplayFile(ctx, path, zaptest.NewLogger(t), collect(&events))
	require.NoError(t, err)
	assert.Equal(t, ReplayStats{Events: 3}, stats)
	require.Len(t, events, 3)

	assert.Equal(t, EventTypeSubmit, events[0].Type)
	assert.Equal(t, "BTC-USD", events[0].Instrument)
	require.NotNil(t, events[0].Order)
	assert.Equal(t, model.OrderID(1), events[0].Order.RestingID)
	assert.True(t, events[0].Order.Price.Valid)
	assert.True(t, events[0].Order.Price.Decimal.Equal(decimal.RequireFromString("101.25")))

	require.NotNil(t, events[1].Modify)
	assert.Equal(t, model.Timestamp(2), events[1].Modify.Timestamp)
	assert.False(t, events[1].Modify.Price.Valid)

	require.NotNil(t, events[2].Cancel)
	assert.Equal(t, model.Timestamp(3), events[2].Cancel.Timestamp)
	assert.Equal(t, model.OrderID(1), events[2].Cancel.ID)
}

func TestFileJournal_AppendRejectsInvalidEvent(t *testing.T) {
	j, err := NewFileJournal(filepath.Join(t.TempDir(), "events.jsonl"), zaptest.NewLogger(t))
	require.NoError(t, err)
	defer j.Close()

	assert.Error(t, j.Append(context.Background(), &Event{Type: EventTypeSubmit}))
	assert.Error(t, j.Append(context.Background(), &Event{Type: "REPLACE"}))

	info, err := os.Stat(j.Path())
	require.NoError(t, err)
	assert.Zero(t, info.Size())
}

func TestFileJournal_AppendAfterClose(t *testing.T) {
	j, err := NewFileJournal(filepath.Join(t.TempDir(), "events.jsonl"), zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NoError(t, j.Close())
	err = j.Append(context.Background(), CancelEvent("X", engine.CancelRequest{Side: model.SideSell, ID: 1}, 1))
	assert.Error(t, err)
}

func TestReplay_SkipsCorruptAndInvalidLines(t *testing.T) {
	feed := strings.Join([]string{
		`{"type":"SUBMIT","timestamp":4,"order":{"type":"market","side":"sell","quantity":"2","price":null,"owner_id":"bob"}}`,
		`not json`,
		``,
		`{"type":"CANCEL","timestamp":5}`,
		`{"type":"CANCEL","timestamp":6,"cancel":{"side":"buy","id":9}}`,
	}, "\n")

	var events []*Event
	stats, err := Replay(context.Background(), strings.NewReader(feed), zaptest.NewLogger(t), collect(&events))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Events)
	assert.Equal(t, 2, stats.Skipped)
	require.Len(t, events, 2)
	assert.Equal(t, model.OrderTypeMarket, events[0].Order.Type)
	assert.False(t, events[0].Order.Price.Valid)
	assert.Equal(t, model.OrderID(9), events[1].Cancel.ID)
}

func TestReplay_HandlerStops(t *testing.T) {
	feed := `{"type":"CANCEL","timestamp":1,"cancel":{"side":"buy","id":1}}
{"type":"CANCEL","timestamp":2,"cancel":{"side":"buy","id":2}}`

	boom := errors.New("boom")
	_, err := Replay(context.Background(), strings.NewReader(feed), zaptest.NewLogger(t), func(*Event) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)

	calls := 0
	stats, err := Replay(context.Background(), strings.NewReader(feed), zaptest.NewLogger(t), func(*Event) (bool, error) {
		calls++
		return false, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, stats.Events)
}

func TestReplay_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Replay(ctx, strings.NewReader(`{"type":"CANCEL","timestamp":1,"cancel":{"side":"buy","id":1}}`), zaptest.NewLogger(t), collect(new([]*Event)))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestReplayFile_Missing(t *testing.T) {
	stats, err := ReplayFile(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"), nil, collect(new([]*Event)))
	require.NoError(t, err)
	assert.Zero(t, stats.Events)
}
