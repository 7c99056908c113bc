// Package service is the single-writer front of the matching engine.
//
// Every operation takes one mutex for its whole duration, so concurrent
// callers observe a total order of book mutations. Around each engine call
// the service records metrics, opens a span, appends the accepted operation
// to the journal and publishes the resulting trades. Journal appends happen
// under the lock so the journal keeps the book's order; publishing happens
// after the lock is released.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/Aidin1998/pincex_matching/internal/trading/engine"
	"github.com/Aidin1998/pincex_matching/internal/trading/eventjournal"
	"github.com/Aidin1998/pincex_matching/internal/trading/messaging"
	"github.com/Aidin1998/pincex_matching/internal/trading/model"
	"github.com/Aidin1998/pincex_matching/pkg/metrics"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Journal records accepted operations.
type Journal interface {
	Append(ctx context.Context, event *eventjournal.Event) error
}

// Config holds service settings.
type Config struct {
	Instrument string
	TickSize   model.TickSize
	// Replay makes every call use the caller-supplied timestamps and ids.
	Replay bool
}

// Option customizes a Service.
type Option func(*Service)

// WithPublisher sets the trade sink. The default drops trades.
func WithPublisher(p messaging.TradePublisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithJournal enables operation journaling.
func WithJournal(j Journal) Option {
	return func(s *Service) { s.journal = j }
}

// WithTracer overrides the global tracer.
func WithTracer(t trace.Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// Service serializes access to one engine.
type Service struct {
	mu        sync.Mutex
	cfg       Config
	engine    *engine.Engine
	publisher messaging.TradePublisher
	journal   Journal
	tracer    trace.Tracer
	logger    *zap.Logger
}

// New creates a service around a fresh engine.
func New(cfg Config, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("instrument", cfg.Instrument))
	s := &Service{
		cfg:       cfg,
		engine:    engine.New(engine.Config{TickSize: cfg.TickSize}, logger.Named("engine")),
		publisher: messaging.NopPublisher{},
		tracer:    otel.Tracer("pincex/matching"),
		logger:    logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Instrument returns the configured instrument name.
func (s *Service) Instrument() string { return s.cfg.Instrument }

// PlaceOrder submits an order. When a journal write fails the engine call
// has already taken effect, so the result is returned together with the
// error. Trades are published after the book lock is released.
func (s *Service) PlaceOrder(ctx context.Context, d *model.OrderDescriptor) (*engine.Result, error) {
	ctx, span := s.tracer.Start(ctx, "matching.PlaceOrder")
	defer span.End()
	if d != nil {
		span.SetAttributes(
			attribute.String("order.side", string(d.Side)),
			attribute.String("order.type", string(d.Type)),
			attribute.String("order.quantity", d.Quantity.String()),
		)
	}

	res, err := s.placeLocked(ctx, span, d)
	if res != nil {
		s.publish(ctx, res.Trades)
	}
	return res, err
}

func (s *Service) placeLocked(ctx context.Context, span trace.Span, d *model.OrderDescriptor) (*engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	res, err := s.engine.Submit(d, s.cfg.Replay)
	metrics.OrderLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		s.reject(span, "submit", err)
		return nil, err
	}

	metrics.OrdersProcessed.WithLabelValues(string(d.Side), string(d.Type)).Inc()
	if res.Unfilled.IsPositive() {
		metrics.UnfilledVolume.Add(res.Unfilled.InexactFloat64())
	}
	span.SetAttributes(
		attribute.Int64("order.timestamp", int64(d.Timestamp)),
		attribute.Int("order.trades", len(res.Trades)),
	)
	s.logger.Info("Order accepted",
		zap.String("owner", d.OwnerID),
		zap.String("side", string(d.Side)),
		zap.String("type", string(d.Type)),
		zap.Stringer("quantity", d.Quantity),
		zap.Int64("ts", int64(d.Timestamp)),
		zap.Int("trades", len(res.Trades)),
		zap.Bool("rested", res.Resting != nil))

	s.afterMutation(res.Trades)
	return res, s.record(ctx, span, eventjournal.SubmitEvent(s.cfg.Instrument, *d))
}

// CancelOrder removes a resting order. Unknown ids succeed without effect.
func (s *Service) CancelOrder(ctx context.Context, req engine.CancelRequest) error {
	ctx, span := s.tracer.Start(ctx, "matching.CancelOrder")
	defer span.End()
	span.SetAttributes(attribute.String("order.side", string(req.Side)), attribute.Int64("order.id", int64(req.ID)))

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.engine.Cancel(req, s.cfg.Replay); err != nil {
		s.reject(span, "cancel", err)
		return err
	}
	metrics.OrdersCancelled.Inc()
	s.logger.Info("Cancel handled", zap.Stringer("id", req.ID), zap.String("side", string(req.Side)))

	s.afterMutation(nil)
	return s.record(ctx, span, eventjournal.CancelEvent(s.cfg.Instrument, req, s.engine.Clock()))
}

// ModifyOrder amends a resting order. A relocation that crosses the book
// trades, so the result can carry trades.
func (s *Service) ModifyOrder(ctx context.Context, req engine.ModifyRequest) (*engine.Result, error) {
	ctx, span := s.tracer.Start(ctx, "matching.ModifyOrder")
	defer span.End()
	span.SetAttributes(
		attribute.String("order.side", string(req.Side)),
		attribute.Int64("order.id", int64(req.ID)),
		attribute.String("order.quantity", req.Quantity.String()),
	)

	res, err := s.modifyLocked(ctx, span, req)
	if res != nil {
		s.publish(ctx, res.Trades)
	}
	return res, err
}

func (s *Service) modifyLocked(ctx context.Context, span trace.Span, req engine.ModifyRequest) (*engine.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.engine.Modify(req, s.cfg.Replay)
	if err != nil {
		s.reject(span, "modify", err)
		return nil, err
	}
	metrics.OrdersModified.Inc()
	s.logger.Info("Modify handled",
		zap.Stringer("id", req.ID),
		zap.String("side", string(req.Side)),
		zap.Stringer("quantity", req.Quantity),
		zap.Int("trades", len(res.Trades)))

	s.afterMutation(res.Trades)
	return res, s.record(ctx, span, eventjournal.ModifyEvent(s.cfg.Instrument, req, s.engine.Clock()))
}

// BestPrice returns the best bid or ask.
func (s *Service) BestPrice(side model.Side) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.BestPrice(side)
}

// WorstPrice returns the worst bid or ask.
func (s *Service) WorstPrice(side model.Side) (decimal.Decimal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.WorstPrice(side)
}

// VolumeAtPrice returns the resting quantity at price.
func (s *Service) VolumeAtPrice(side model.Side, price decimal.Decimal) decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.VolumeAtPrice(side, price)
}

// Order returns a copy of a resting order.
func (s *Service) Order(side model.Side, id model.OrderID) (model.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Order(side, id)
}

// Snapshot copies up to depth levels per side.
func (s *Service) Snapshot(depth int) engine.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Snapshot(depth)
}

// RecentTrades returns up to n trades, newest first.
func (s *Service) RecentTrades(n int) []model.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.RecentTrades(n)
}

// Tape returns every trade on the tape, oldest first.
func (s *Service) Tape() []model.Trade {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Tape()
}

// Clock returns the engine's logical time.
func (s *Service) Clock() model.Timestamp {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.Clock()
}

// LastOrderID returns the highest resting id issued so far.
func (s *Service) LastOrderID() model.OrderID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.LastOrderID()
}

// CheckInvariants verifies the book.
func (s *Service) CheckInvariants() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.engine.CheckInvariants()
}

// ExportTape writes the tape to w and optionally clears it.
func (s *Service) ExportTape(w io.Writer, wipe bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.ExportTape(w, wipe); err != nil {
		return fmt.Errorf("failed to export tape: %w", err)
	}
	return nil
}

// ExportTapeFile writes the tape to path, appending or truncating.
func (s *Service) ExportTapeFile(path string, appendMode, wipe bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.engine.ExportTapeFile(path, appendMode, wipe); err != nil {
		return fmt.Errorf("failed to export tape to %s: %w", path, err)
	}
	s.logger.Info("Tape exported", zap.String("path", path), zap.Bool("wiped", wipe))
	return nil
}

// Replay applies a journal-format feed in replay mode: timestamps and
// resting ids come from the feed. Replayed operations are neither journaled
// nor published. Rejected events are logged and skipped.
func (s *Service) Replay(ctx context.Context, r io.Reader) (eventjournal.ReplayStats, error) {
	ctx, span := s.tracer.Start(ctx, "matching.Replay")
	defer span.End()

	s.mu.Lock()
	defer s.mu.Unlock()

	stats, err := eventjournal.Replay(ctx, r, s.logger, s.applyReplayed)
	s.updateRestingGauge()
	span.SetAttributes(attribute.Int("replay.events", stats.Events), attribute.Int("replay.skipped", stats.Skipped))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return stats, err
	}
	s.logger.Info("Replay finished",
		zap.Int("events", stats.Events),
		zap.Int64("clock", int64(s.engine.Clock())),
		zap.Stringer("last_id", s.engine.LastOrderID()))
	return stats, nil
}

// Feed applies a journal-format order feed as new operations. Each event
// goes through PlaceOrder, CancelOrder or ModifyOrder, so accepted operations
// are journaled and their trades published. In live mode the feed's
// timestamps and resting ids are dropped and the engine stamps its own; in
// replay mode they are used verbatim. Rejected events are logged and skipped;
// a journal failure stops the feed.
func (s *Service) Feed(ctx context.Context, r io.Reader) (eventjournal.ReplayStats, error) {
	stats, err := eventjournal.Replay(ctx, r, s.logger, func(ev *eventjournal.Event) (bool, error) {
		return s.applyFed(ctx, ev)
	})
	if err != nil {
		return stats, err
	}
	s.logger.Info("Feed finished",
		zap.Int("events", stats.Events),
		zap.Int64("clock", int64(s.Clock())),
		zap.Stringer("last_id", s.LastOrderID()))
	return stats, nil
}

func (s *Service) applyFed(ctx context.Context, ev *eventjournal.Event) (bool, error) {
	var err error
	switch ev.Type {
	case eventjournal.EventTypeSubmit:
		d := *ev.Order
		if s.cfg.Replay {
			if d.Timestamp == 0 {
				d.Timestamp = ev.Timestamp
			}
		} else {
			d.Timestamp, d.RestingID = 0, 0
		}
		_, err = s.PlaceOrder(ctx, &d)
	case eventjournal.EventTypeCancel:
		req := *ev.Cancel
		if s.cfg.Replay && req.Timestamp == 0 {
			req.Timestamp = ev.Timestamp
		}
		err = s.CancelOrder(ctx, req)
	case eventjournal.EventTypeModify:
		req := *ev.Modify
		if s.cfg.Replay && req.Timestamp == 0 {
			req.Timestamp = ev.Timestamp
		}
		_, err = s.ModifyOrder(ctx, req)
	}
	if err != nil && rejectReason(err) == "other" {
		return false, err
	}
	return true, err
}

func (s *Service) applyReplayed(ev *eventjournal.Event) (bool, error) {
	var err error
	switch ev.Type {
	case eventjournal.EventTypeSubmit:
		d := *ev.Order
		if d.Timestamp == 0 {
			d.Timestamp = ev.Timestamp
		}
		var res *engine.Result
		if res, err = s.engine.Submit(&d, true); err == nil {
			metrics.TradesExecuted.Add(float64(len(res.Trades)))
		}
	case eventjournal.EventTypeCancel:
		req := *ev.Cancel
		if req.Timestamp == 0 {
			req.Timestamp = ev.Timestamp
		}
		err = s.engine.Cancel(req, true)
	case eventjournal.EventTypeModify:
		req := *ev.Modify
		if req.Timestamp == 0 {
			req.Timestamp = ev.Timestamp
		}
		_, err = s.engine.Modify(req, true)
	}
	if err != nil {
		metrics.OrdersRejected.WithLabelValues(rejectReason(err)).Inc()
		return true, err
	}
	return true, nil
}

// afterMutation refreshes book gauges and trade counters. It runs under the
// book lock.
func (s *Service) afterMutation(trades []model.Trade) {
	s.updateRestingGauge()
	metrics.TradesExecuted.Add(float64(len(trades)))
	for _, t := range trades {
		metrics.TradedVolume.Add(t.Quantity.InexactFloat64())
	}
}

// publish sends trades to the publisher outside the book lock. Failures are
// logged; the tape stays the record of truth.
func (s *Service) publish(ctx context.Context, trades []model.Trade) {
	if len(trades) == 0 {
		return
	}
	if err := s.publisher.PublishTrades(ctx, s.cfg.Instrument, trades); err != nil {
		metrics.TradesPublishFailed.Inc()
		s.logger.Error("Failed to publish trades", zap.Int("count", len(trades)), zap.Error(err))
	}
}

func (s *Service) record(ctx context.Context, span trace.Span, event *eventjournal.Event) error {
	if s.journal == nil {
		return nil
	}
	if err := s.journal.Append(ctx, event); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "journal append failed")
		s.logger.Error("Failed to journal operation", zap.String("type", event.Type), zap.Error(err))
		return fmt.Errorf("failed to journal %s: %w", event.Type, err)
	}
	return nil
}

func (s *Service) reject(span trace.Span, op string, err error) {
	reason := rejectReason(err)
	metrics.OrdersRejected.WithLabelValues(reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, reason)
	s.logger.Warn("Operation rejected", zap.String("op", op), zap.String("reason", reason), zap.Error(err))
}

func (s *Service) updateRestingGauge() {
	metrics.RestingOrders.WithLabelValues(string(model.SideBuy)).Set(float64(s.engine.RestingCount(model.SideBuy)))
	metrics.RestingOrders.WithLabelValues(string(model.SideSell)).Set(float64(s.engine.RestingCount(model.SideSell)))
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, engine.ErrInvalidOrder):
		return "invalid_order"
	case errors.Is(err, engine.ErrUnknownOrderType):
		return "unknown_order_type"
	case errors.Is(err, engine.ErrUnknownSide):
		return "unknown_side"
	default:
		return "other"
	}
}
