package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// messageWriter is the part of kafka.Writer the publisher uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisherConfig contains configuration options for KafkaTradePublisher
type KafkaPublisherConfig struct {
	Brokers      []string
	Topic        string
	BatchSize    int
	BatchTimeout time.Duration
	WriteTimeout time.Duration
	RequiredAcks int
	Compression  string
	MaxAttempts  int
	Async        bool
}

// DefaultKafkaPublisherConfig returns low-latency settings for trade events
func DefaultKafkaPublisherConfig() KafkaPublisherConfig {
	return KafkaPublisherConfig{
		BatchSize:    100,
		BatchTimeout: 5 * time.Millisecond,
		WriteTimeout: time.Second,
		RequiredAcks: 1,
		Compression:  "snappy",
		MaxAttempts:  3,
	}
}

// KafkaTradePublisher writes one message per trade, keyed by trade id.
type KafkaTradePublisher struct {
	topic  string
	writer messageWriter
	logger *zap.Logger
	mu     sync.RWMutex
	closed bool
}

// NewKafkaTradePublisher creates a publisher backed by a kafka.Writer.
func NewKafkaTradePublisher(cfg KafkaPublisherConfig, logger *zap.Logger) (*KafkaTradePublisher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka publisher needs at least one broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("kafka publisher needs a topic")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.CRC32Balancer{},
		BatchSize:    cfg.BatchSize,
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		MaxAttempts:  cfg.MaxAttempts,
		Async:        cfg.Async,
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...), zap.String("topic", cfg.Topic))
		}),
	}

	switch cfg.Compression {
	case "gzip":
		writer.Compression = kafka.Gzip
	case "snappy":
		writer.Compression = kafka.Snappy
	case "lz4":
		writer.Compression = kafka.Lz4
	case "zstd":
		writer.Compression = kafka.Zstd
	}

	return newKafkaTradePublisher(cfg.Topic, writer, logger), nil
}

func newKafkaTradePublisher(topic string, writer messageWriter, logger *zap.Logger) *KafkaTradePublisher {
	return &KafkaTradePublisher{topic: topic, writer: writer, logger: logger}
}

// PublishTrades writes the trades as JSON in one batch.
func (p *KafkaTradePublisher) PublishTrades(ctx context.Context, instrument string, trades []model.Trade) error {
	if len(trades) == 0 {
		return nil
	}
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return errors.New("kafka publisher is closed")
	}

	msgs := make([]kafka.Message, 0, len(trades))
	now := time.Now()
	for _, t := range trades {
		value, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to encode trade %s: %w", t.ID, err)
		}
		msgs = append(msgs, kafka.Message{
			Key:   []byte(t.ID.String()),
			Value: value,
			Headers: []kafka.Header{
				{Key: "source", Value: []byte("matching-engine")},
				{Key: "instrument", Value: []byte(instrument)},
				{Key: "logical_ts", Value: []byte(strconv.FormatInt(int64(t.Timestamp), 10))},
			},
			Time: now,
		})
	}

	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		p.logger.Error("Failed to publish trades to Kafka",
			zap.String("topic", p.topic),
			zap.String("instrument", instrument),
			zap.Int("count", len(msgs)),
			zap.Error(err))
		return fmt.Errorf("failed to publish trades to kafka topic %s: %w", p.topic, err)
	}

	p.logger.Debug("Published trades",
		zap.String("topic", p.topic),
		zap.Int("count", len(msgs)))
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaTradePublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close kafka writer: %w", err)
	}
	return nil
}

// Topic returns the topic this publisher writes to
func (p *KafkaTradePublisher) Topic() string {
	return p.topic
}
