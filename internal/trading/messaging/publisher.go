package messaging

import (
	"context"
	"sync"

	"github.com/Aidin1998/pincex_matching/internal/trading/model"
)

// TradePublisher delivers the trades produced by one engine call downstream.
// Trades arrive in tape order.
type TradePublisher interface {
	PublishTrades(ctx context.Context, instrument string, trades []model.Trade) error
	Close() error
}

// NopPublisher drops every trade. Used when no sink is configured.
type NopPublisher struct{}

func (NopPublisher) PublishTrades(context.Context, string, []model.Trade) error { return nil }
func (NopPublisher) Close() error                                              { return nil }

// MemoryPublisher keeps published trades in memory.
type MemoryPublisher struct {
	mu     sync.Mutex
	trades []model.Trade
	err    error
}

// FailWith makes subsequent publishes return err.
func (p *MemoryPublisher) FailWith(err error) {
	p.mu.Lock()
	p.err = err
	p.mu.Unlock()
}

func (p *MemoryPublisher) PublishTrades(_ context.Context, _ string, trades []model.Trade) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.trades = append(p.trades, trades...)
	return nil
}

// Trades returns a copy of everything published so far.
func (p *MemoryPublisher) Trades() []model.Trade {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.Trade, len(p.trades))
	copy(out, p.trades)
	return out
}

func (p *MemoryPublisher) Close() error { return nil }
