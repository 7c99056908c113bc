package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func sampleTrade(ts model.Timestamp) model.Trade {
	id := model.OrderID(3)
	return model.Trade{
		ID:        uuid.New(),
		Timestamp: ts,
		Price:     decimal.RequireFromString("101.5"),
		Quantity:  decimal.RequireFromString("2"),
		Maker:     model.TradeLeg{OwnerID: "maker", Side: model.SideSell, RestingID: &id},
		Taker:     model.TradeLeg{OwnerID: "taker", Side: model.SideBuy},
	}
}

func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func TestKafkaTradePublisher_PublishTrades(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaTradePublisher("trades", w, zaptest.NewLogger(t))

	trades := []model.Trade{sampleTrade(7), sampleTrade(7)}
	require.NoError(t, p.PublishTrades(context.Background(), "BTC-USD", trades))
	require.Len(t, w.msgs, 2)

	for i, msg := range w.msgs {
		assert.Equal(t, trades[i].ID.String(), string(msg.Key))
		assert.Equal(t, "BTC-USD", header(msg, "instrument"))
		assert.Equal(t, "7", header(msg, "logical_ts"))

		var decoded model.Trade
		require.NoError(t, json.Unmarshal(msg.Value, &decoded))
		assert.Equal(t, trades[i].ID, decoded.ID)
		assert.True(t, decoded.Price.Equal(trades[i].Price))
		require.NotNil(t, decoded.Maker.RestingID)
		assert.Equal(t, model.OrderID(3), *decoded.Maker.RestingID)
		assert.Nil(t, decoded.Taker.RestingID)
	}
}

func TestKafkaTradePublisher_EmptyBatchSkipsWriter(t *testing.T) {
	w := &fakeWriter{err: errors.New("should not be called")}
	p := newKafkaTradePublisher("trades", w, zaptest.NewLogger(t))
	assert.NoError(t, p.PublishTrades(context.Background(), "X", nil))
}

func TestKafkaTradePublisher_WriteError(t *testing.T) {
	boom := errors.New("broker down")
	p := newKafkaTradePublisher("trades", &fakeWriter{err: boom}, zaptest.NewLogger(t))
	err := p.PublishTrades(context.Background(), "X", []model.Trade{sampleTrade(1)})
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestKafkaTradePublisher_Close(t *testing.T) {
	w := &fakeWriter{}
	p := newKafkaTradePublisher("trades", w, zaptest.NewLogger(t))
	require.NoError(t, p.Close())
	require.NoError(t, p.Close())
	assert.True(t, w.closed)
	assert.Error(t, p.PublishTrades(context.Background(), "X", []model.Trade{sampleTrade(1)}))
}

func TestNewKafkaTradePublisher_Validation(t *testing.T) {
	_, err := NewKafkaTradePublisher(KafkaPublisherConfig{Topic: "t"}, nil)
	assert.Error(t, err)
	_, err = NewKafkaTradePublisher(KafkaPublisherConfig{Brokers: []string{"localhost:9092"}}, nil)
	assert.Error(t, err)

	cfg := DefaultKafkaPublisherConfig()
	cfg.Brokers = []string{"localhost:9092"}
	cfg.Topic = "trades"
	p, err := NewKafkaTradePublisher(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	assert.Equal(t, "trades", p.Topic())
	require.NoError(t, p.Close())
}

func TestMemoryPublisher(t *testing.T) {
	var p MemoryPublisher
	require.NoError(t, p.PublishTrades(context.Background(), "X", []model.Trade{sampleTrade(1)}))
	p.FailWith(errors.New("nope"))
	assert.Error(t, p.PublishTrades(context.Background(), "X", []model.Trade{sampleTrade(2)}))
	assert.Len(t, p.Trades(), 1)
}
